package parser

import (
	"strings"

	"hlsproxy/work/logger"
	"hlsproxy/work/urlcodec"
)

// RewriteMedia rewrites a media playlist so every key, map and segment
// reference points back at the proxy. Metadata tags pass through untouched,
// interior blank lines are dropped and a trailing blank line is kept.
//
// References already in proxy form are left as they are, so running the
// rewriter over its own output changes nothing.
func RewriteMedia(sourceURL, content string) string {
	base := urlcodec.BaseOf(sourceURL)
	lines := Parse(content)
	output := make([]string, 0, len(lines))

	for i, line := range lines {
		switch line.Kind {
		case LineBlank:
			if i == len(lines)-1 {
				output = append(output, "")
			}

		case LineKey, LineMap:
			output = append(output, rewriteURIAttribute(line, base))

		case LineURI:
			output = append(output, proxyReference(base, line.Text))

		default:
			output = append(output, line.Text)
		}
	}

	return strings.Join(output, "\n")
}

// rewriteURIAttribute swaps the quoted URI of a key or map line for its
// proxy path.
func rewriteURIAttribute(line Line, base string) string {
	uri, ok := line.URI()
	if !ok {
		return line.Text
	}

	proxied := proxyReference(base, uri)
	logger.Debug("{parser/rewrite - rewriteURIAttribute} original=%s proxied=%s", uri, proxied)

	return line.WithURI(proxied)
}

// proxyReference resolves ref against base and returns its proxy path.
func proxyReference(base, ref string) string {
	if urlcodec.IsProxyPath(ref) {
		return ref
	}
	return urlcodec.ToProxyPath(urlcodec.Resolve(base, ref))
}
