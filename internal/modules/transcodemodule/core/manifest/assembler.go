// Package manifest assembles the HLS master playlist referencing every
// produced rendition.
package manifest

import (
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/vodforge/vodforge/internal/modules/transcodemodule/types"
)

// MasterName is the file name of the master playlist within a video's prefix.
const MasterName = "master.m3u8"

// Assembler renders master playlists.
type Assembler struct {
	logger hclog.Logger
}

// NewAssembler creates a manifest assembler.
func NewAssembler(logger hclog.Logger) *Assembler {
	return &Assembler{logger: logger.Named("manifest")}
}

// Assemble writes the master playlist for the given renditions to w. Variant
// entries carry the encoded pixel dimensions, never the ladder label, and the
// bandwidth in bits per second. Renditions are listed in the order produced,
// lowest quality first.
func (a *Assembler) Assemble(w io.Writer, renditions []types.Rendition) error {
	if len(renditions) == 0 {
		return &types.AssemblyError{Cause: fmt.Errorf("no renditions to reference")}
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")

	for _, r := range renditions {
		if r.PlaylistKey == "" {
			return &types.AssemblyError{Cause: fmt.Errorf("rendition %s has no playlist", r.Spec.Label)}
		}
		b.WriteString(fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n",
			r.Spec.BitrateKbps*1000, r.Spec.Width, r.Spec.Height))
		b.WriteString(variantURI(r.PlaylistKey))
		b.WriteString("\n")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return &types.AssemblyError{Cause: fmt.Errorf("write master playlist: %w", err)}
	}

	a.logger.Debug("assembled master playlist", "renditions", len(renditions))
	return nil
}

// variantURI converts a storage key like videos/<id>/720p/playlist.m3u8 into
// the URI relative to the master playlist, which lives directly under the
// video prefix.
func variantURI(playlistKey string) string {
	parts := strings.Split(playlistKey, "/")
	if len(parts) < 2 {
		return playlistKey
	}
	return strings.Join(parts[len(parts)-2:], "/")
}
