package auth

import (
	"errors"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestHashPassword(t *testing.T) {
	// sha256("secret")
	want := "2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b"
	if got := HashPassword("secret"); got != want {
		t.Errorf("HashPassword = %s, want %s", got, want)
	}
}

func TestCheck(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	hash := HashPassword("secret")
	fresh := strconv.FormatInt(now.Add(-time.Minute).UnixMilli(), 10)
	stale := strconv.FormatInt(now.Add(-11*time.Minute).UnixMilli(), 10)

	tests := []struct {
		name     string
		password string
		query    string
		want     error
	}{
		{"valid", "secret", "?auth=" + hash, nil},
		{"valid with fresh timestamp", "secret", "?auth=" + hash + "&t=" + fresh, nil},
		{"unparseable timestamp ignored", "secret", "?auth=" + hash + "&t=soon", nil},
		{"expired timestamp", "secret", "?auth=" + hash + "&t=" + stale, ErrExpired},
		{"wrong hash", "secret", "?auth=" + HashPassword("other"), ErrMismatch},
		{"missing hash", "secret", "", ErrMismatch},
		{"no password configured", "", "?auth=" + hash, ErrNoPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(tt.password, 10*time.Minute)
			a.now = func() time.Time { return now }

			r := httptest.NewRequest("GET", "/proxy/https%3A%2F%2Fexample.com%2Fa.m3u8"+tt.query, nil)
			if err := a.Check(r); !errors.Is(err, tt.want) {
				t.Errorf("Check = %v, want %v", err, tt.want)
			}
		})
	}
}
