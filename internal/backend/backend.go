// Package backend defines the capabilities a music source provides to the core:
// a library to browse and search, a playback provider, and stored playlists.
// Each backend owns one or more URI schemes.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/austinkregel/local-media/mpdd/internal/types"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateScheme = errors.New("uri scheme already registered")
	ErrNotSupported    = errors.New("operation not supported by backend")
)

// Backend is a source of music for one or more URI schemes. Any of the
// capability accessors may return nil.
type Backend interface {
	Name() string
	URISchemes() []string
	Library() Library
	Playback() Playback
	Playlists() Playlists
}

// Library exposes a browsable, searchable catalog
type Library interface {
	// RootDirectory is the entry shown at the top of the browse tree, or nil
	// if the backend has nothing to browse.
	RootDirectory() *types.Ref
	Browse(ctx context.Context, uri string) ([]types.Ref, error)
	Lookup(ctx context.Context, uri string) ([]types.Track, error)
	Search(ctx context.Context, query types.Query, uris []string, exact bool) (*types.SearchResult, error)
	Distinct(ctx context.Context, field string, query types.Query) ([]string, error)
	Refresh(ctx context.Context, uri string) error
}

// Playback starts and controls audio for tracks of this backend
type Playback interface {
	ChangeTrack(ctx context.Context, track types.Track) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	Seek(ctx context.Context, positionMs int64) error
	TimePosition() int64
}

// Playlists stores named playlists
type Playlists interface {
	List(ctx context.Context) ([]types.Ref, error)
	Lookup(ctx context.Context, uri string) (*types.Playlist, error)
	Create(ctx context.Context, name string) (*types.Playlist, error)
	Save(ctx context.Context, playlist types.Playlist) (*types.Playlist, error)
	Delete(ctx context.Context, uri string) error
}

// Registry routes URIs to the backend that owns their scheme
type Registry struct {
	backends []Backend
	byScheme map[string]Backend
}

// NewRegistry creates a registry from the given backends. Two backends
// claiming the same scheme is an error.
func NewRegistry(backends ...Backend) (*Registry, error) {
	r := &Registry{byScheme: make(map[string]Backend)}
	for _, b := range backends {
		for _, scheme := range b.URISchemes() {
			if other, ok := r.byScheme[scheme]; ok {
				return nil, fmt.Errorf("%w: %q claimed by %s and %s", ErrDuplicateScheme, scheme, other.Name(), b.Name())
			}
			r.byScheme[scheme] = b
		}
		r.backends = append(r.backends, b)
	}
	return r, nil
}

// Backends returns the registered backends in registration order
func (r *Registry) Backends() []Backend {
	return r.backends
}

// ForURI returns the backend owning the URI's scheme, or nil
func (r *Registry) ForURI(uri string) Backend {
	return r.byScheme[types.URIScheme(uri)]
}

// ForScheme returns the backend owning the scheme, or nil
func (r *Registry) ForScheme(scheme string) Backend {
	return r.byScheme[scheme]
}

// URISchemes returns every registered scheme, sorted
func (r *Registry) URISchemes() []string {
	schemes := make([]string, 0, len(r.byScheme))
	for s := range r.byScheme {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}
