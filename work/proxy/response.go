package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"

	"hlsproxy/work/logger"
)

const (
	allowedMethods  = "GET, HEAD, POST, OPTIONS"
	preflightMaxAge = "86400"
	defaultBodyType = "application/octet-stream"
)

// passthroughSkipHeaders are upstream headers that do not survive a replay.
// Go's server computes length and framing for the new response itself.
var passthroughSkipHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Content-Length":      true,
	"Content-Encoding":    true,
}

// SetCORSHeaders adds the permissive cross-origin headers every response carries.
func SetCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", allowedMethods)
	h.Set("Access-Control-Allow-Headers", "*")
}

// WriteResponse writes a pipeline result, as a playlist or as a verbatim
// passthrough body.
func WriteResponse(w http.ResponseWriter, resp *Response, ttlSeconds int) {
	if resp.Playlist {
		WritePlaylist(w, resp.Body, ttlSeconds)
		return
	}
	WritePassthrough(w, resp, ttlSeconds)
}

// WritePlaylist writes a rewritten playlist.
func WritePlaylist(w http.ResponseWriter, playlist string, ttlSeconds int) {
	h := w.Header()
	h.Set("Content-Type", "application/vnd.apple.mpegurl")
	h.Set("Cache-Control", cacheControl(ttlSeconds))
	SetCORSHeaders(h)

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(playlist)); err != nil {
		logger.Debug("{proxy/response - WritePlaylist} client write failed: %v", err)
	}
}

// WritePassthrough replays a non-playlist body with the upstream headers.
func WritePassthrough(w http.ResponseWriter, resp *Response, ttlSeconds int) {
	h := w.Header()
	for name, values := range resp.Headers {
		if passthroughSkipHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, value := range values {
			h.Add(name, value)
		}
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = defaultBodyType
	}
	h.Set("Content-Type", contentType)
	h.Set("Cache-Control", cacheControl(ttlSeconds))
	SetCORSHeaders(h)

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(resp.Body)); err != nil {
		logger.Debug("{proxy/response - WritePassthrough} client write failed: %v", err)
	}
}

// WriteError writes a plain-text error with the cross-origin headers.
func WriteError(w http.ResponseWriter, status int, message string) {
	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	SetCORSHeaders(h)

	w.WriteHeader(status)
	fmt.Fprint(w, message)
}

// WriteUnauthorized writes the 401 JSON body clients expect when the
// authorization check fails.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	SetCORSHeaders(h)

	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}

// WritePreflight answers a CORS pre-flight request with an empty 204.
func WritePreflight(w http.ResponseWriter) {
	h := w.Header()
	SetCORSHeaders(h)
	h.Set("Access-Control-Max-Age", preflightMaxAge)
	w.WriteHeader(http.StatusNoContent)
}

func cacheControl(ttlSeconds int) string {
	return fmt.Sprintf("public, max-age=%d", ttlSeconds)
}
