package parser

import (
	"strings"

	regexp "github.com/grafana/regexp"
)

// LineKind classifies one playlist line by the tag it carries.
type LineKind int

const (
	LineBlank     LineKind = iota // empty after trimming
	LineHeader                    // #EXTM3U
	LineKey                       // #EXT-X-KEY
	LineMap                       // #EXT-X-MAP
	LineInf                       // #EXTINF segment duration and metadata
	LineStreamInf                 // #EXT-X-STREAM-INF variant declaration
	LineMedia                     // #EXT-X-MEDIA rendition group
	LineTag                       // any other line starting with '#'
	LineURI                       // a reference to a segment or sub-playlist
)

// Tag prefixes recognised by the parser.
const (
	TagHeader    = "#EXTM3U"
	TagKey       = "#EXT-X-KEY"
	TagMap       = "#EXT-X-MAP"
	TagInf       = "#EXTINF"
	TagStreamInf = "#EXT-X-STREAM-INF"
	TagMedia     = "#EXT-X-MEDIA:"
)

// Line is one trimmed playlist line with its kind and, for tags, the raw
// attribute text after the first colon.
type Line struct {
	Kind  LineKind
	Text  string
	Attrs string
}

var (
	attributePattern = regexp.MustCompile(`([A-Z0-9-]+)=("[^"]*"|[^,]*)`)
	uriPattern       = regexp.MustCompile(`URI="([^"]+)"`)
)

// Parse splits content into lines and tags each one. Lines are trimmed;
// the slice has one entry per "\n"-separated input line, so a trailing
// newline yields a final LineBlank.
func Parse(content string) []Line {
	raw := strings.Split(content, "\n")
	lines := make([]Line, len(raw))
	for i, r := range raw {
		lines[i] = parseLine(strings.TrimSpace(r))
	}
	return lines
}

func parseLine(text string) Line {
	line := Line{Text: text}

	switch {
	case text == "":
		line.Kind = LineBlank
		return line
	case !strings.HasPrefix(text, "#"):
		line.Kind = LineURI
		return line
	case strings.HasPrefix(text, TagKey):
		line.Kind = LineKey
	case strings.HasPrefix(text, TagMap):
		line.Kind = LineMap
	case strings.HasPrefix(text, TagStreamInf):
		line.Kind = LineStreamInf
	case strings.HasPrefix(text, TagMedia):
		line.Kind = LineMedia
	case strings.HasPrefix(text, TagInf):
		line.Kind = LineInf
	case strings.HasPrefix(text, TagHeader):
		line.Kind = LineHeader
	default:
		line.Kind = LineTag
	}

	if idx := strings.Index(text, ":"); idx >= 0 {
		line.Attrs = text[idx+1:]
	}

	return line
}

// Attributes parses the line's attribute list into a map. Quoted values are
// returned without their quotes.
func (l Line) Attributes() map[string]string {
	attributes := make(map[string]string)
	for _, match := range attributePattern.FindAllStringSubmatch(l.Attrs, -1) {
		if len(match) >= 3 {
			attributes[match[1]] = strings.Trim(match[2], "\"")
		}
	}
	return attributes
}

// URI returns the quoted URI attribute of a tag line, if it has one.
func (l Line) URI() (string, bool) {
	m := uriPattern.FindStringSubmatch(l.Text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// WithURI returns the line text with its first quoted URI attribute
// replaced; every other attribute is left byte-for-byte intact.
func (l Line) WithURI(uri string) string {
	loc := uriPattern.FindStringSubmatchIndex(l.Text)
	if loc == nil {
		return l.Text
	}
	return l.Text[:loc[2]] + uri + l.Text[loc[3]:]
}
