package proxy

import (
	"context"
	"fmt"
	"net/http"

	"hlsproxy/work/logger"
	"hlsproxy/work/metrics"
	"hlsproxy/work/parser"
	"hlsproxy/work/utils"
)

// RecursionLimitError reports a chain of master playlists deeper than the
// configured maximum.
type RecursionLimitError struct {
	Limit int
	URL   string
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("too many nested master playlists (limit %d): %s", e.Limit, e.URL)
}

// resolveMaster replaces a master playlist with the rewritten media playlist
// of its highest-bandwidth variant.
//
// Variants are resolved one at a time: the processed cache is checked for the
// chosen variant, then it is fetched and run through processPlaylist again at
// depth+1. The result is written back to the processed cache without waiting.
func (sp *HLSProxy) resolveMaster(ctx context.Context, sourceURL, content string, depth int, callerHeaders http.Header) (string, error) {
	if depth > sp.Config.MaxRecursion {
		return "", &RecursionLimitError{Limit: sp.Config.MaxRecursion, URL: sourceURL}
	}

	variant, ok := parser.SelectVariant(sourceURL, content)
	if !ok {
		logger.Debug("{proxy/master - resolveMaster} no variant found in %s, treating it as a media playlist", utils.LogURL(sp.Config, sourceURL))
		return sp.rewriteMedia(sourceURL, content), nil
	}

	variantURL := variant.URL
	logVariant := utils.LogURL(sp.Config, variantURL)

	if cached, ok := sp.Cache.GetProcessed(ctx, variantURL); ok {
		logger.Debug("{proxy/master - resolveMaster} processed cache hit for variant %s", logVariant)
		return cached, nil
	}

	logger.Debug("{proxy/master - resolveMaster} selected variant (bandwidth: %d) at depth %d: %s", variant.Bandwidth, depth, logVariant)

	result, err := sp.Fetcher.Fetch(ctx, variantURL, callerHeaders)
	if err != nil {
		return "", err
	}

	if !parser.IsPlaylist(result.Content, result.ContentType) {
		logger.Debug("{proxy/master - resolveMaster} variant %s is not a playlist (type: %s), rewriting it as media", logVariant, result.ContentType)
		return sp.rewriteMedia(variantURL, result.Content), nil
	}

	processed, err := sp.processPlaylist(ctx, variantURL, result.Content, depth+1, callerHeaders)
	if err != nil {
		return "", err
	}

	metrics.PlaylistsRewritten.WithLabelValues("master").Inc()
	sp.Cache.PutProcessed(ctx, variantURL, processed)

	return processed, nil
}
