// Package stream plays internet radio and other remote URLs. It has no
// library to browse: looking up a URL yields a single track for it and
// playback hands the URL straight to the renderer.
package stream

import (
	"context"
	"net/url"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// Backend is the stream backend
type Backend struct {
	schemes  []string
	library  *Library
	playback *backend.BasePlayback
}

// New creates a stream backend for schemes such as http and https
func New(schemes []string, renderer backend.Renderer) *Backend {
	return &Backend{
		schemes: schemes,
		library: &Library{},
		playback: backend.NewBasePlayback(renderer, func(track types.Track) (string, error) {
			return track.URI, nil
		}),
	}
}

func (b *Backend) Name() string                 { return "stream" }
func (b *Backend) URISchemes() []string         { return b.schemes }
func (b *Backend) Library() backend.Library     { return b.library }
func (b *Backend) Playback() backend.Playback   { return b.playback }
func (b *Backend) Playlists() backend.Playlists { return nil }

// Library resolves stream URLs
type Library struct{}

func (l *Library) RootDirectory() *types.Ref { return nil }

func (l *Library) Browse(ctx context.Context, uri string) ([]types.Ref, error) {
	return nil, backend.ErrNotFound
}

// Lookup returns one track for a valid URL. The name is the URL itself
// until the stream reports a title.
func (l *Library) Lookup(ctx context.Context, uri string) ([]types.Track, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return nil, backend.ErrNotFound
	}
	return []types.Track{{URI: uri, Name: uri}}, nil
}

func (l *Library) Search(ctx context.Context, query types.Query, uris []string, exact bool) (*types.SearchResult, error) {
	return nil, backend.ErrNotSupported
}

func (l *Library) Distinct(ctx context.Context, field string, query types.Query) ([]string, error) {
	return nil, backend.ErrNotSupported
}

func (l *Library) Refresh(ctx context.Context, uri string) error {
	return backend.ErrNotSupported
}
