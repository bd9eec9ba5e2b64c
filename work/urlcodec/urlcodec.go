// Package urlcodec maps remote URLs to and from the proxy's own /proxy/
// addressing form and resolves playlist references against their base.
package urlcodec

import (
	"errors"
	"net/url"
	"strings"

	regexp "github.com/grafana/regexp"

	"hlsproxy/work/logger"
)

// Prefix is the path prefix every proxied reference carries.
const Prefix = "/proxy/"

// ErrInvalidTarget is returned when the inbound path does not carry an
// absolute http(s) URL.
var ErrInvalidTarget = errors.New("invalid proxy request: path must be /proxy/<encoded URL>")

var absoluteHTTP = regexp.MustCompile(`(?i)^https?://`)

// IsAbsolute reports whether s starts with http:// or https://.
func IsAbsolute(s string) bool {
	return absoluteHTTP.MatchString(s)
}

// DecodeTarget extracts the remote URL from an inbound proxy path. The path
// should be the escaped form (r.URL.EscapedPath()) so encoded slashes survive.
//
// A remainder that fails to decode, or decodes to something other than an
// absolute URL, is still accepted when the raw remainder already looks like
// one; this covers clients that did not encode the target.
func DecodeTarget(path string) (string, error) {
	encoded := strings.TrimPrefix(path, Prefix)
	if encoded == "" || encoded == path {
		return "", ErrInvalidTarget
	}

	decoded, err := url.PathUnescape(encoded)
	if err != nil || !IsAbsolute(decoded) {
		if IsAbsolute(encoded) && validAbsolute(encoded) {
			logger.Debug("{urlcodec - DecodeTarget} path was not encoded but looks like a URL: %s", encoded)
			return encoded, nil
		}
		logger.Debug("{urlcodec - DecodeTarget} invalid target in path: %s", path)
		return "", ErrInvalidTarget
	}

	if !validAbsolute(decoded) {
		return "", ErrInvalidTarget
	}

	return decoded, nil
}

// validAbsolute reports whether the absolute URL s names a host.
func validAbsolute(s string) bool {
	rest := absoluteHTTP.ReplaceAllString(s, "")
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest != ""
}

// ToProxyPath returns the same-origin proxy path for an absolute URL.
// DecodeTarget(ToProxyPath(u)) == u for every absolute u.
func ToProxyPath(absoluteURL string) string {
	return Prefix + url.PathEscape(absoluteURL)
}

// IsProxyPath reports whether ref is already in proxy form, so a second
// rewrite pass leaves it alone.
func IsProxyPath(ref string) bool {
	if !strings.HasPrefix(ref, Prefix) {
		return false
	}
	_, err := DecodeTarget(ref)
	return err == nil
}

// BaseOf returns the directory of u: origin plus path with the last segment
// removed, always ending in a slash. Root paths collapse to origin + "/".
func BaseOf(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		// textual fallback: cut after the last slash that is not part of "://"
		idx := strings.LastIndex(u, "/")
		if idx > strings.Index(u, "://")+2 {
			return u[:idx+1]
		}
		return u + "/"
	}

	origin := parsed.Scheme + "://" + parsed.Host
	p := parsed.EscapedPath()
	if p == "" || p == "/" {
		return origin + "/"
	}

	return origin + p[:strings.LastIndex(p, "/")+1]
}

// Resolve turns a playlist reference into an absolute URL. Absolute
// references are returned unchanged; everything else goes through standard
// reference resolution against base, with a textual fallback when either
// side does not parse.
func Resolve(base, ref string) string {
	if IsAbsolute(ref) {
		return ref
	}

	baseURL, err := url.Parse(base)
	if err == nil {
		var refURL *url.URL
		if refURL, err = url.Parse(ref); err == nil {
			return baseURL.ResolveReference(refURL).String()
		}
	}

	logger.Debug("{urlcodec - Resolve} falling back to manual resolution: base=%s ref=%s err=%v", base, ref, err)

	if strings.HasPrefix(ref, "/") {
		if baseURL != nil && baseURL.Host != "" {
			return baseURL.Scheme + "://" + baseURL.Host + ref
		}
		if i := strings.Index(base, "://"); i >= 0 {
			if j := strings.Index(base[i+3:], "/"); j >= 0 {
				return base[:i+3+j] + ref
			}
			return base + ref
		}
	}

	dir := base
	if idx := strings.LastIndex(dir, "/"); idx >= 0 {
		dir = dir[:idx+1]
	}
	return dir + ref
}
