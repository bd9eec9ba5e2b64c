package parser

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/grafov/m3u8"
)

// decodeVariants decodes a master playlist with grafov and returns its
// #EXT-X-STREAM-INF variants in declaration order with their raw URIs.
// I-frame variants are skipped since they are not playable renditions.
func decodeVariants(content string) ([]StreamVariant, error) {
	playlist, listType, err := m3u8.DecodeFrom(bufio.NewReader(strings.NewReader(content)), false)
	if err != nil {
		return nil, fmt.Errorf("failed to decode playlist: %w", err)
	}

	if listType != m3u8.MASTER {
		return nil, fmt.Errorf("not a master playlist")
	}

	masterpl, ok := playlist.(*m3u8.MasterPlaylist)
	if !ok {
		return nil, fmt.Errorf("unexpected playlist type %T", playlist)
	}

	variants := make([]StreamVariant, 0, len(masterpl.Variants))
	for _, variant := range masterpl.Variants {
		if variant == nil {
			break
		}
		if variant.Iframe || variant.URI == "" {
			continue
		}

		variants = append(variants, StreamVariant{
			URL:        variant.URI,
			Bandwidth:  int64(variant.Bandwidth),
			Resolution: variant.Resolution,
			Codecs:     variant.Codecs,
		})
	}

	return variants, nil
}
