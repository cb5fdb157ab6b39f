// Package local serves music files from the configured media directories.
// Directories become local:directory:<path> URIs and files become
// local:track:<path> URIs; tags come from ffprobe and from album.nfo and
// artist.nfo files found next to the music.
package local

import (
	"github.com/charmbracelet/log"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// Config selects what to scan
type Config struct {
	MediaDirs          []string
	ExcludedExtensions []string
}

// Backend is the local files backend
type Backend struct {
	library  *Library
	playback *backend.BasePlayback
}

// New creates the backend. The library is empty until refreshed.
func New(cfg Config, renderer backend.Renderer, logger *log.Logger) *Backend {
	library := NewLibrary(cfg.MediaDirs, NewScanner(cfg.ExcludedExtensions, logger), logger)
	return &Backend{
		library: library,
		playback: backend.NewBasePlayback(renderer, func(track types.Track) (string, error) {
			return library.Path(track.URI)
		}),
	}
}

func (b *Backend) Name() string                 { return "local" }
func (b *Backend) URISchemes() []string         { return []string{Scheme} }
func (b *Backend) Library() backend.Library     { return b.library }
func (b *Backend) Playback() backend.Playback   { return b.playback }
func (b *Backend) Playlists() backend.Playlists { return nil }
