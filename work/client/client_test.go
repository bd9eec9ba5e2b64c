package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestFetcher(agents ...string) *Fetcher {
	return New(Options{
		UserAgents:   agents,
		MaxRetries:   0,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
	})
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.Write([]byte("#EXTM3U\n"))
	}))
	defer srv.Close()

	f := newTestFetcher("agent-one")
	res, err := f.Fetch(context.Background(), srv.URL+"/live/index.m3u8", http.Header{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got := <-headers

	if res.Content != "#EXTM3U\n" {
		t.Errorf("content = %q", res.Content)
	}
	if res.ContentType != "application/vnd.apple.mpegurl" {
		t.Errorf("content type = %q", res.ContentType)
	}
	if got.Get("User-Agent") != "agent-one" {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
	if got.Get("Accept") != "*/*" {
		t.Errorf("Accept = %q", got.Get("Accept"))
	}
	if got.Get("Accept-Language") != "zh-CN,zh;q=0.9,en;q=0.8" {
		t.Errorf("Accept-Language = %q", got.Get("Accept-Language"))
	}
	if got.Get("Referer") != srv.URL {
		t.Errorf("Referer = %q, want target origin %q", got.Get("Referer"), srv.URL)
	}
}

func TestFetchPropagatesCallerHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
	}))
	defer srv.Close()

	caller := http.Header{}
	caller.Set("Accept-Language", "en-GB")
	caller.Set("Referer", "https://player.example/watch")

	if _, err := newTestFetcher().Fetch(context.Background(), srv.URL, caller); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got := <-headers

	if got.Get("Accept-Language") != "en-GB" {
		t.Errorf("Accept-Language = %q", got.Get("Accept-Language"))
	}
	if got.Get("Referer") != "https://player.example/watch" {
		t.Errorf("Referer = %q", got.Get("Referer"))
	}
}

func TestFetchUserAgentFromPool(t *testing.T) {
	pool := map[string]bool{"ua-a": true, "ua-b": true, "ua-c": true}
	seen := make(chan string, 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	f := newTestFetcher("ua-a", "ua-b", "ua-c")
	for i := 0; i < 20; i++ {
		if _, err := f.Fetch(context.Background(), srv.URL, http.Header{}); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if ua := <-seen; !pool[ua] {
			t.Fatalf("User-Agent %q not from pool", ua)
		}
	}
}

func TestFetchHTTPError(t *testing.T) {
	body := strings.Repeat("x", 400)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, body, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/missing.m3u8", http.Header{})
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", upErr.StatusCode)
	}
	if len(upErr.Snippet) != 150 {
		t.Errorf("snippet length = %d, want 150", len(upErr.Snippet))
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error %q does not mention the status", err)
	}
}

func TestFetchServerErrorKeepsStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := New(Options{MaxRetries: 1, RetryWaitMin: time.Millisecond, RetryWaitMax: time.Millisecond})
	_, err := f.Fetch(context.Background(), srv.URL, http.Header{})

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upErr.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", upErr.StatusCode)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("upstream called %d times, want 2", n)
	}
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), url, http.Header{})
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upErr.StatusCode != 0 {
		t.Errorf("status = %d, want 0 for transport failure", upErr.StatusCode)
	}
}

func TestThrottleReusesLimiterPerHost(t *testing.T) {
	f := New(Options{RateLimit: 1000})
	f.throttle("a.example")
	f.throttle("a.example")
	f.throttle("b.example")

	if n := f.limiters.Size(); n != 2 {
		t.Errorf("limiters = %d, want 2", n)
	}
}
