package parser

import (
	"strconv"
	"strings"

	"hlsproxy/work/logger"
	"hlsproxy/work/urlcodec"
)

// StreamVariant represents a single stream variant from an HLS master playlist.
// Each variant corresponds to a different encoding of the same content.
type StreamVariant struct {
	URL        string // Absolute URL of the variant's playlist
	Bandwidth  int64  // Declared peak bandwidth in bits per second, 0 when absent
	Resolution string // Video resolution in "WIDTHxHEIGHT" format, when declared
	Codecs     string // Codec list, when declared
}

// ParseVariants extracts every #EXT-X-STREAM-INF variant of a master
// playlist in declaration order, with URLs resolved against the playlist's
// directory.
//
// The grafov decoder is tried first; its result is used only when it agrees
// with the line scanner on every variant URI, otherwise the line scanner's
// view wins. Bandwidth always comes from the scanner: grafov holds it in a
// uint32 and wraps values above 4294967295.
func ParseVariants(sourceURL, content string) []StreamVariant {
	base := urlcodec.BaseOf(sourceURL)
	scanned := scanVariants(Parse(content))

	variants, err := decodeVariants(content)
	if err != nil || !sameVariants(variants, scanned) {
		logger.Debug("{parser/master - ParseVariants} grafov decode unusable (err=%v, variants=%d, scanned=%d), using line scan", err, len(variants), len(scanned))
		variants = scanned
	} else {
		for i := range variants {
			variants[i].Bandwidth = scanned[i].Bandwidth
		}
	}

	for i := range variants {
		variants[i].URL = urlcodec.Resolve(base, variants[i].URL)
	}

	return variants
}

// scanVariants walks the tagged lines, pairing each variant declaration with
// the next reference line.
func scanVariants(lines []Line) []StreamVariant {
	var variants []StreamVariant

	for i := 0; i < len(lines); i++ {
		if lines[i].Kind != LineStreamInf {
			continue
		}

		variant := parseStreamInf(lines[i])
		for j := i + 1; j < len(lines); j++ {
			if lines[j].Kind == LineURI {
				variant.URL = lines[j].Text
				variants = append(variants, variant)
				i = j
				break
			}
		}
	}

	return variants
}

// sameVariants reports whether both decodes found the same variant URIs in
// the same order.
func sameVariants(decoded, scanned []StreamVariant) bool {
	if len(decoded) != len(scanned) {
		return false
	}
	for i := range decoded {
		if decoded[i].URL != scanned[i].URL {
			return false
		}
	}
	return true
}

// parseStreamInf extracts variant attributes from a #EXT-X-STREAM-INF line.
// A missing or malformed bandwidth is treated as 0.
func parseStreamInf(line Line) StreamVariant {
	attributes := line.Attributes()
	variant := StreamVariant{
		Resolution: attributes["RESOLUTION"],
		Codecs:     attributes["CODECS"],
	}

	if bw, ok := attributes["BANDWIDTH"]; ok {
		if bandwidth, err := strconv.ParseInt(bw, 10, 64); err == nil {
			variant.Bandwidth = bandwidth
		}
	}

	return variant
}

// SelectVariant picks the variant a master playlist should resolve to.
//
// The highest bandwidth wins; on equal bandwidth the later declaration wins.
// When no variant is declared, the first reference that looks like a
// playlist (.m3u8) is used instead. The second return value is false when
// neither rule finds anything.
func SelectVariant(sourceURL, content string) (StreamVariant, bool) {
	variants := ParseVariants(sourceURL, content)

	var best StreamVariant
	highest := int64(-1)
	for _, variant := range variants {
		if variant.Bandwidth >= highest {
			highest = variant.Bandwidth
			best = variant
		}
	}

	if best.URL != "" {
		logger.Debug("{parser/master - SelectVariant} selected %s (%d bps) from %d variants", best.URL, best.Bandwidth, len(variants))
		return best, true
	}

	logger.Debug("{parser/master - SelectVariant} no bandwidth variants in %s, looking for a sub-playlist reference", sourceURL)

	base := urlcodec.BaseOf(sourceURL)
	for _, line := range Parse(content) {
		if line.Kind == LineURI && looksLikePlaylist(line.Text) {
			return StreamVariant{URL: urlcodec.Resolve(base, line.Text)}, true
		}
	}

	return StreamVariant{}, false
}

// looksLikePlaylist reports whether a reference names an .m3u8 resource.
func looksLikePlaylist(ref string) bool {
	return strings.HasSuffix(ref, ".m3u8") || strings.Contains(ref, ".m3u8?")
}
