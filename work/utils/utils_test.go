package utils

import (
	"strings"
	"testing"

	"hlsproxy/work/config"
)

func TestObfuscateURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"http://example.com", "http://example.com"},
		{"http://example.com/secret/stream.m3u8?token=abc", "http://example.com/***?***"},
		{"https://cdn.example.com/a.ts#frag", "https://cdn.example.com/***#***"},
	}

	for _, tt := range tests {
		if got := ObfuscateURL(tt.in); got != tt.want {
			t.Errorf("ObfuscateURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLogURL(t *testing.T) {
	u := "https://example.com/live/index.m3u8"

	if got := LogURL(&config.Config{}, u); got != u {
		t.Errorf("LogURL without obfuscation = %q", got)
	}
	if got := LogURL(&config.Config{ObfuscateUrls: true}, u); got != "https://example.com/***" {
		t.Errorf("LogURL with obfuscation = %q", got)
	}
	if got := LogURL(nil, u); got != u {
		t.Errorf("LogURL(nil) = %q", got)
	}
}

func TestSnippet(t *testing.T) {
	if got := Snippet("short"); got != "short" {
		t.Errorf("Snippet(short) = %q", got)
	}

	long := strings.Repeat("é", 200)
	got := Snippet(long)
	if n := len([]rune(got)); n != 150 {
		t.Errorf("snippet has %d runes, want 150", n)
	}
}
