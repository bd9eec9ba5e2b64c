package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestGzipMiddlewareCompresses(t *testing.T) {
	body := strings.Repeat("#EXTINF:10,\n/proxy/segment.ts\n", 50)
	h := GzipMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		io.WriteString(w, body)
	})

	req := httptest.NewRequest(http.MethodGet, "/proxy/x", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	rec := httptest.NewRecorder()
	h(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q", rec.Header().Get("Content-Encoding"))
	}

	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != body {
		t.Error("decompressed body differs")
	}
}

func TestGzipMiddlewareSkips(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		acceptEncoding string
	}{
		{"no gzip support", http.MethodGet, ""},
		{"head", http.MethodHead, "gzip"},
		{"preflight", http.MethodOptions, "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := GzipMiddleware(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(tt.method, "/proxy/x", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			rec := httptest.NewRecorder()
			h(rec, req)

			if rec.Header().Get("Content-Encoding") != "" {
				t.Errorf("unexpected Content-Encoding %q", rec.Header().Get("Content-Encoding"))
			}
			if rec.Body.Len() != 0 {
				t.Errorf("unexpected body of %d bytes", rec.Body.Len())
			}
		})
	}
}

func TestGzipMiddlewareLeavesMediaAlone(t *testing.T) {
	segment := strings.Repeat("\x47\x40\x11\x10\x00", 200)

	tests := []struct {
		name        string
		contentType string
		writeHeader bool
		wantGzip    bool
	}{
		{"transport stream", "video/mp2t", false, false},
		{"transport stream with explicit status", "video/mp2t", true, false},
		{"aes key", "application/octet-stream", false, false},
		{"image", "image/jpeg", true, false},
		{"no content type", "", false, false},
		{"subtitles", "text/vtt; charset=utf-8", false, true},
		{"mixed case playlist", "application/x-mpegURL", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := GzipMiddleware(func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				if tt.writeHeader {
					w.WriteHeader(http.StatusOK)
				}
				io.WriteString(w, segment)
			})

			req := httptest.NewRequest(http.MethodGet, "/proxy/x", nil)
			req.Header.Set("Accept-Encoding", "gzip")
			rec := httptest.NewRecorder()
			h(rec, req)

			gzipped := rec.Header().Get("Content-Encoding") == "gzip"
			if gzipped != tt.wantGzip {
				t.Fatalf("Content-Encoding = %q; want gzip=%v", rec.Header().Get("Content-Encoding"), tt.wantGzip)
			}

			body := rec.Body.Bytes()
			if gzipped {
				zr, err := gzip.NewReader(rec.Body)
				if err != nil {
					t.Fatalf("gzip.NewReader: %v", err)
				}
				if body, err = io.ReadAll(zr); err != nil {
					t.Fatalf("read: %v", err)
				}
			}
			if string(body) != segment {
				t.Errorf("body differs from what the handler wrote (%d bytes)", len(body))
			}
		})
	}
}

func TestGzipMiddlewareBodilessStatus(t *testing.T) {
	h := GzipMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/proxy/x", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h(rec, req)

	if rec.Header().Get("Content-Encoding") != "" || rec.Body.Len() != 0 {
		t.Errorf("204 got Content-Encoding %q and %d body bytes", rec.Header().Get("Content-Encoding"), rec.Body.Len())
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("generated id %q, response header %q", seen, rec.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "player-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "player-42" || rec.Header().Get(RequestIDHeader) != "player-42" {
		t.Errorf("caller id not reused: %q / %q", seen, rec.Header().Get(RequestIDHeader))
	}
}
