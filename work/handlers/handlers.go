package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hlsproxy/work/auth"
	"hlsproxy/work/logger"
	"hlsproxy/work/metrics"
	"hlsproxy/work/middleware"
	"hlsproxy/work/proxy"
	"hlsproxy/work/urlcodec"
	"hlsproxy/work/utils"
)

// NewRouter builds the HTTP routes.
//
// The router matches on the encoded path and never cleans it, otherwise the
// "//" of an unencoded target URL would be collapsed before it reaches the
// proxy handler.
func NewRouter(sp *proxy.HLSProxy, authz *auth.Authorizer) *mux.Router {
	router := mux.NewRouter().UseEncodedPath().SkipClean(true)
	router.Use(middleware.RequestID)

	proxyHandler := HandleProxy(sp, authz)
	if sp.Config.Gzip {
		proxyHandler = middleware.GzipMiddleware(proxyHandler)
	}

	router.PathPrefix(urlcodec.Prefix).HandlerFunc(HandlePreflight()).Methods(http.MethodOptions)
	router.PathPrefix(urlcodec.Prefix).HandlerFunc(proxyHandler).Methods(http.MethodGet, http.MethodHead, http.MethodPost)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", HandleHealth()).Methods(http.MethodGet, http.MethodHead)

	return router
}

// HandlePreflight answers CORS pre-flight requests. Authorization is not
// checked since browsers never attach credentials to a pre-flight.
func HandlePreflight() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proxy.WritePreflight(w)
		metrics.Requests.WithLabelValues(r.Method, strconv.Itoa(http.StatusNoContent)).Inc()
	}
}

// HandleProxy serves /proxy/<encoded URL>.
func HandleProxy(sp *proxy.HLSProxy, authz *auth.Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetRequestID(r.Context())
		status := http.StatusOK
		defer func() {
			metrics.Requests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		}()

		if err := authz.Check(r); err != nil {
			status = http.StatusUnauthorized
			proxy.WriteUnauthorized(w, auth.UnauthorizedMessage)
			return
		}

		target, err := urlcodec.DecodeTarget(r.URL.EscapedPath())
		if err != nil {
			logger.Debug("{handlers - HandleProxy} [%s] invalid proxy path: %s", requestID, r.URL.EscapedPath())
			status = http.StatusBadRequest
			proxy.WriteError(w, status, urlcodec.ErrInvalidTarget.Error())
			return
		}

		logURL := utils.LogURL(sp.Config, target)
		logger.Debug("{handlers - HandleProxy} [%s] %s %s", requestID, r.Method, logURL)

		resp, err := sp.Handle(r.Context(), target, r.Header)
		if err != nil {
			status = statusFor(err)
			logger.Error("{handlers - HandleProxy} [%s] failed to proxy %s: %v", requestID, logURL, err)
			proxy.WriteError(w, status, "proxy error: "+err.Error())
			return
		}

		proxy.WriteResponse(w, resp, sp.Config.CacheTTLSeconds)
		logger.Debug("{handlers - HandleProxy} [%s] served %s (playlist: %v) in %s", requestID, logURL, resp.Playlist, time.Since(start))
	}
}

// HandleHealth reports liveness.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	}
}

// statusFor maps a pipeline error onto a response status. Everything that
// escapes the pipeline is a server-side failure.
func statusFor(err error) int {
	if errors.Is(err, urlcodec.ErrInvalidTarget) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
