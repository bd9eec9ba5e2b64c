package proxy

import (
	"context"
	"net/http"

	"hlsproxy/work/cache"
	"hlsproxy/work/client"
	"hlsproxy/work/config"
	"hlsproxy/work/logger"
	"hlsproxy/work/metrics"
	"hlsproxy/work/parser"
	"hlsproxy/work/utils"
)

// Fetcher retrieves an upstream resource.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string, callerHeaders http.Header) (*client.FetchResult, error)
}

// Cache is the two-namespace cache the pipeline reads and feeds.
type Cache interface {
	GetRaw(ctx context.Context, url string) (*cache.RawEntry, bool)
	PutRaw(ctx context.Context, url, body string, headers http.Header)
	GetProcessed(ctx context.Context, url string) (string, bool)
	PutProcessed(ctx context.Context, url, playlist string)
}

// Response is the outcome of one pass through the pipeline.
type Response struct {
	Body        string
	ContentType string      // upstream content type for passthrough bodies
	Headers     http.Header // upstream headers for passthrough bodies
	Playlist    bool        // Body is a rewritten playlist
}

// HLSProxy runs the fetch, classify, rewrite, recurse and cache pipeline
// for a single target URL. It holds no per-request state and is safe for
// concurrent use.
type HLSProxy struct {
	Config  *config.Config
	Fetcher Fetcher
	Cache   Cache
}

// New creates an HLSProxy.
func New(cfg *config.Config, fetcher Fetcher, cache Cache) *HLSProxy {
	return &HLSProxy{
		Config:  cfg,
		Fetcher: fetcher,
		Cache:   cache,
	}
}

// Handle produces the response for targetURL.
//
// The raw cache is consulted first. A cached playlist is processed again
// rather than returned verbatim, a cached non-playlist body is returned with
// its cached headers. On a miss the target is fetched, recorded in the raw
// cache and then processed the same way.
func (sp *HLSProxy) Handle(ctx context.Context, targetURL string, callerHeaders http.Header) (*Response, error) {
	logURL := utils.LogURL(sp.Config, targetURL)

	if entry, ok := sp.Cache.GetRaw(ctx, targetURL); ok {
		contentType := entry.Headers["content-type"]
		body := string(entry.Body)

		if parser.IsPlaylist(body, contentType) {
			logger.Debug("{proxy - Handle} raw cache hit (playlist), processing again: %s", logURL)
			return sp.playlistResponse(ctx, targetURL, body, callerHeaders)
		}

		logger.Debug("{proxy - Handle} raw cache hit, returning cached body: %s", logURL)
		headers := make(http.Header, len(entry.Headers))
		for name, value := range entry.Headers {
			headers.Set(name, value)
		}
		return &Response{
			Body:        body,
			ContentType: contentType,
			Headers:     headers,
		}, nil
	}

	result, err := sp.Fetcher.Fetch(ctx, targetURL, callerHeaders)
	if err != nil {
		return nil, err
	}

	sp.Cache.PutRaw(ctx, targetURL, result.Content, result.Headers)

	if parser.IsPlaylist(result.Content, result.ContentType) {
		logger.Debug("{proxy - Handle} content is a playlist, processing: %s", logURL)
		return sp.playlistResponse(ctx, targetURL, result.Content, callerHeaders)
	}

	logger.Debug("{proxy - Handle} content is not a playlist (type: %s), passing through: %s", result.ContentType, logURL)
	return &Response{
		Body:        result.Content,
		ContentType: result.ContentType,
		Headers:     result.Headers,
	}, nil
}

func (sp *HLSProxy) playlistResponse(ctx context.Context, sourceURL, content string, callerHeaders http.Header) (*Response, error) {
	playlist, err := sp.processPlaylist(ctx, sourceURL, content, 0, callerHeaders)
	if err != nil {
		return nil, err
	}
	return &Response{
		Body:        playlist,
		ContentType: parser.PlaylistContentType,
		Playlist:    true,
	}, nil
}

// processPlaylist routes a playlist to the master resolver or the media
// rewriter depending on its kind.
func (sp *HLSProxy) processPlaylist(ctx context.Context, sourceURL, content string, depth int, callerHeaders http.Header) (string, error) {
	if parser.Classify(content) == parser.Master {
		return sp.resolveMaster(ctx, sourceURL, content, depth, callerHeaders)
	}
	return sp.rewriteMedia(sourceURL, content), nil
}

func (sp *HLSProxy) rewriteMedia(sourceURL, content string) string {
	metrics.PlaylistsRewritten.WithLabelValues("media").Inc()
	return parser.RewriteMedia(sourceURL, content)
}
