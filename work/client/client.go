package client

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/ratelimit"

	"hlsproxy/work/buffer"
	"hlsproxy/work/config"
	"hlsproxy/work/logger"
	"hlsproxy/work/metrics"
	"hlsproxy/work/utils"
)

// FetchResult is the verbatim upstream response: body as text, declared
// media type and the response headers.
type FetchResult struct {
	Content     string
	ContentType string
	Headers     http.Header
}

// UpstreamError is returned for non-2xx responses and transport failures.
type UpstreamError struct {
	URL        string
	StatusCode int    // 0 for transport failures
	Status     string // status text, e.g. "404 Not Found"
	Snippet    string // leading part of the error body
	Err        error  // underlying transport error, if any
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upstream request failed for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("upstream request failed for %s: HTTP error %d: %s. Body: %s", e.URL, e.StatusCode, e.Status, e.Snippet)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Options configures the Fetcher behavior.
type Options struct {
	UserAgents     []string      // pool a User-Agent is drawn from per request
	AcceptLanguage string        // sent when the caller has no Accept-Language
	MaxRetries     int           // retries on transport errors and 5xx
	RetryWaitMin   time.Duration // minimum wait between retries
	RetryWaitMax   time.Duration // maximum wait between retries
	RateLimit      int           // requests per second per origin host, 0 disables
	ObfuscateURLs  bool          // mask URLs in log output
}

// OptionsFromConfig maps the application config onto fetcher options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		UserAgents:     cfg.UserAgents,
		AcceptLanguage: cfg.AcceptLanguage,
		MaxRetries:     cfg.UpstreamMaxRetries,
		RetryWaitMin:   cfg.UpstreamRetryWaitMin,
		RetryWaitMax:   cfg.UpstreamRetryWaitMax,
		RateLimit:      cfg.UpstreamRateLimit,
		ObfuscateURLs:  cfg.ObfuscateUrls,
	}
}

// Fetcher performs outbound requests with browser-like headers so upstream
// hosts are less inclined to reject the proxy as non-browser traffic.
type Fetcher struct {
	client   *retryablehttp.Client
	opts     Options
	limiters *xsync.MapOf[string, ratelimit.Limiter]
	buffers  *buffer.BufferPool
}

// New creates a Fetcher. Redirects are followed by the underlying client.
func New(opts Options) *Fetcher {
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = []string{config.DefaultUserAgent}
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = config.DefaultAcceptLanguage
	}

	client := retryablehttp.NewClient()
	client.RetryMax = opts.MaxRetries
	client.RetryWaitMin = opts.RetryWaitMin
	client.RetryWaitMax = opts.RetryWaitMax
	client.Logger = nil
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Fetcher{
		client:   client,
		opts:     opts,
		limiters: xsync.NewMapOf[string, ratelimit.Limiter](),
		buffers:  buffer.NewBufferPool(),
	}
}

// Fetch downloads targetURL and returns its body as text.
//
// callerHeaders are the inbound request's headers; Accept-Language and
// Referer are propagated from them when present.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string, callerHeaders http.Header) (*FetchResult, error) {
	logURL := targetURL
	if f.opts.ObfuscateURLs {
		logURL = utils.ObfuscateURL(targetURL)
	}

	target, err := url.Parse(targetURL)
	if err != nil {
		return nil, &UpstreamError{URL: targetURL, Err: fmt.Errorf("invalid target URL: %w", err)}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, &UpstreamError{URL: targetURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	f.setHeaders(req, target, callerHeaders)

	f.throttle(target.Host)

	logger.Debug("{client - Fetch} requesting %s", logURL)
	start := time.Now()

	// the passthrough error handler hands back the last response together
	// with the retry policy's error once retries run out on a 5xx
	resp, err := f.client.Do(req)
	metrics.UpstreamFetchDuration.Observe(time.Since(start).Seconds())
	if resp == nil {
		if err == nil {
			err = fmt.Errorf("no response")
		}
		metrics.UpstreamFetches.WithLabelValues("transport_error").Inc()
		logger.Debug("{client - Fetch} request failed for %s: %v", logURL, err)
		return nil, &UpstreamError{URL: targetURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := f.buffers.ReadString(resp.Body)
		metrics.UpstreamFetches.WithLabelValues("http_error").Inc()
		logger.Debug("{client - Fetch} HTTP %d for %s", resp.StatusCode, logURL)
		return nil, &UpstreamError{
			URL:        targetURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Snippet:    utils.Snippet(body),
		}
	}

	body, err := f.buffers.ReadString(resp.Body)
	if err != nil {
		metrics.UpstreamFetches.WithLabelValues("transport_error").Inc()
		return nil, &UpstreamError{URL: targetURL, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	metrics.UpstreamFetches.WithLabelValues("ok").Inc()
	contentType := resp.Header.Get("Content-Type")
	logger.Debug("{client - Fetch} fetched %s, Content-Type: %s, length: %d", logURL, contentType, len(body))

	return &FetchResult{
		Content:     body,
		ContentType: contentType,
		Headers:     resp.Header.Clone(),
	}, nil
}

// setHeaders applies the browser-like header set to an outbound request.
func (f *Fetcher) setHeaders(req *retryablehttp.Request, target *url.URL, caller http.Header) {
	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("Accept", "*/*")

	acceptLanguage := caller.Get("Accept-Language")
	if acceptLanguage == "" {
		acceptLanguage = f.opts.AcceptLanguage
	}
	req.Header.Set("Accept-Language", acceptLanguage)

	referer := caller.Get("Referer")
	if referer == "" {
		referer = target.Scheme + "://" + target.Host
	}
	req.Header.Set("Referer", referer)
}

// userAgent draws one agent from the configured pool.
func (f *Fetcher) userAgent() string {
	return f.opts.UserAgents[rand.IntN(len(f.opts.UserAgents))]
}

// throttle blocks until the per-host limiter admits another request.
func (f *Fetcher) throttle(host string) {
	if f.opts.RateLimit <= 0 {
		return
	}
	limiter, _ := f.limiters.LoadOrCompute(host, func() ratelimit.Limiter {
		logger.Debug("{client - throttle} created rate limiter for %s: %d req/sec", host, f.opts.RateLimit)
		return ratelimit.New(f.opts.RateLimit)
	})
	limiter.Take()
}
