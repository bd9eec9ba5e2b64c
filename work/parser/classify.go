package parser

import "strings"

// PlaylistKind is what a fetched payload turned out to be.
type PlaylistKind int

const (
	NotAPlaylist PlaylistKind = iota
	Master
	Media
)

func (k PlaylistKind) String() string {
	switch k {
	case Master:
		return "master"
	case Media:
		return "media"
	default:
		return "none"
	}
}

// PlaylistContentType is the media type served for every rewritten playlist.
const PlaylistContentType = "application/vnd.apple.mpegurl"

// hlsContentTypes are the declared media types that identify a playlist.
var hlsContentTypes = []string{
	"application/vnd.apple.mpegurl",
	"application/x-mpegurl",
	"audio/mpegurl",
}

// IsPlaylist reports whether a payload is an HLS playlist, either by its
// declared content type or by the #EXTM3U marker. Origins mislabel
// playlists often enough that sniffing is required.
func IsPlaylist(content, contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, t := range hlsContentTypes {
		if strings.Contains(ct, t) {
			return true
		}
	}
	return strings.HasPrefix(strings.TrimSpace(content), TagHeader)
}

// Classify decides between a master and a media playlist by textual
// containment, so line order does not matter.
func Classify(content string) PlaylistKind {
	if strings.Contains(content, TagStreamInf) || strings.Contains(content, TagMedia) {
		return Master
	}
	return Media
}

// KindOf combines IsPlaylist and Classify for a fetch result.
func KindOf(content, contentType string) PlaylistKind {
	if !IsPlaylist(content, contentType) {
		return NotAPlaylist
	}
	return Classify(content)
}
