package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"hlsproxy/work/logger"
	"hlsproxy/work/metrics"
)

const (
	namespaceRaw       = "raw"
	namespaceProcessed = "processed"
)

// Backend is a string key-value store with per-entry expiry.
// Implementations must be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}

// RawEntry is an upstream body with the response headers it arrived with.
// Header names are lower-cased. Body is kept as bytes so keys, init maps and
// segments survive the JSON encoding unchanged (it is stored as base64).
type RawEntry struct {
	Body    []byte            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// Gateway is the proxy's view of the cache: two namespaces over a single
// backend, keyed "{namespace}:{url}".
//
// Lookups never fail; a backend error is logged and reported as a miss.
// Writes are fire-and-forget and run on a background worker pool, so a
// response never waits on the cache.
type Gateway struct {
	backend Backend
	ttl     time.Duration
	pool    *ants.Pool
	pending sync.WaitGroup
}

// NewGateway wraps backend. A nil backend yields a gateway where every lookup
// misses and every write is dropped.
func NewGateway(backend Backend, ttl time.Duration, workers int) (*Gateway, error) {
	if workers < 1 {
		workers = 1
	}

	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	return &Gateway{
		backend: backend,
		ttl:     ttl,
		pool:    pool,
	}, nil
}

// GetRaw returns the cached upstream response for url.
func (g *Gateway) GetRaw(ctx context.Context, url string) (*RawEntry, bool) {
	value, ok := g.get(ctx, namespaceRaw, url)
	if !ok {
		return nil, false
	}

	var entry RawEntry
	if err := json.Unmarshal([]byte(value), &entry); err != nil {
		logger.Warn("{cache - GetRaw} discarding malformed raw entry for %s: %v", url, err)
		metrics.CacheOperations.WithLabelValues(namespaceRaw, "error").Inc()
		return nil, false
	}

	return &entry, true
}

// PutRaw records an upstream response for url in the background.
func (g *Gateway) PutRaw(ctx context.Context, url, body string, headers http.Header) {
	entry := RawEntry{
		Body:    []byte(body),
		Headers: flattenHeaders(headers),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		logger.Error("{cache - PutRaw} failed to encode raw entry for %s: %v", url, err)
		return
	}

	g.put(ctx, namespaceRaw, url, string(data))
}

// GetProcessed returns the cached rewritten playlist for url.
func (g *Gateway) GetProcessed(ctx context.Context, url string) (string, bool) {
	return g.get(ctx, namespaceProcessed, url)
}

// PutProcessed records a rewritten playlist for url in the background.
func (g *Gateway) PutProcessed(ctx context.Context, url, playlist string) {
	g.put(ctx, namespaceProcessed, url, playlist)
}

// Wait blocks until every write submitted so far has finished.
func (g *Gateway) Wait() {
	g.pending.Wait()
}

// Close drains pending writes, stops the worker pool and closes the backend.
func (g *Gateway) Close() error {
	g.pending.Wait()
	g.pool.Release()

	if g.backend == nil {
		return nil
	}
	return g.backend.Close()
}

func (g *Gateway) get(ctx context.Context, namespace, url string) (string, bool) {
	if g.backend == nil {
		return "", false
	}

	value, ok, err := g.backend.Get(ctx, key(namespace, url))
	if err != nil {
		logger.Warn("{cache - get} %s lookup failed for %s: %v", namespace, url, err)
		metrics.CacheOperations.WithLabelValues(namespace, "error").Inc()
		return "", false
	}

	if !ok {
		metrics.CacheOperations.WithLabelValues(namespace, "miss").Inc()
		return "", false
	}

	metrics.CacheOperations.WithLabelValues(namespace, "hit").Inc()
	return value, true
}

// put hands the write to the pool. When every worker is busy the write runs
// on its own goroutine instead of being dropped.
func (g *Gateway) put(ctx context.Context, namespace, url, value string) {
	if g.backend == nil {
		return
	}

	// the write outlives the request that produced it
	ctx = context.WithoutCancel(ctx)
	k := key(namespace, url)

	g.pending.Add(1)
	task := func() {
		defer g.pending.Done()
		if err := g.backend.Put(ctx, k, value, g.ttl); err != nil {
			logger.Warn("{cache - put} %s write failed for %s: %v", namespace, url, err)
			metrics.CacheOperations.WithLabelValues(namespace, "error").Inc()
			return
		}
		metrics.CacheOperations.WithLabelValues(namespace, "write").Inc()
	}

	if err := g.pool.Submit(task); err != nil {
		if !errors.Is(err, ants.ErrPoolOverload) {
			logger.Debug("{cache - put} worker pool unavailable (%v), running write on its own goroutine", err)
		}
		go task()
	}
}

func key(namespace, url string) string {
	return namespace + ":" + url
}

// flattenHeaders lower-cases header names and joins repeated values.
func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for name, values := range headers {
		flat[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	return flat
}
