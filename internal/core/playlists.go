package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// Playlists routes stored playlist operations to the owning backend. Like
// Library it is safe for concurrent use.
type Playlists struct {
	backends *backend.Registry
	bus      Publisher
	logger   *log.Logger
}

// NewPlaylists creates the stored playlist controller
func NewPlaylists(backends *backend.Registry, bus Publisher, logger *log.Logger) *Playlists {
	return &Playlists{backends: backends, bus: bus, logger: logger}
}

func (p *Playlists) providerFor(uri string) backend.Playlists {
	b := p.backends.ForURI(uri)
	if b == nil {
		return nil
	}
	return b.Playlists()
}

// URISchemes lists schemes whose backend stores playlists
func (p *Playlists) URISchemes() []string {
	var out []string
	for _, scheme := range p.backends.URISchemes() {
		if b := p.backends.ForScheme(scheme); b != nil && b.Playlists() != nil {
			out = append(out, scheme)
		}
	}
	return out
}

// List returns a ref for every stored playlist of every backend
func (p *Playlists) List(ctx context.Context) ([]types.Ref, error) {
	var refs []types.Ref
	for _, b := range p.backends.Backends() {
		pl := b.Playlists()
		if pl == nil {
			continue
		}
		r, err := pl.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to list playlists: %w", b.Name(), err)
		}
		refs = append(refs, r...)
	}
	return refs, nil
}

// Lookup returns the playlist with the given URI
func (p *Playlists) Lookup(ctx context.Context, uri string) (*types.Playlist, error) {
	provider := p.providerFor(uri)
	if provider == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	pl, err := provider.Lookup(ctx, uri)
	if errors.Is(err, backend.ErrNotFound) || (err == nil && pl == nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	return pl, err
}

// Create makes an empty playlist in the backend owning scheme
func (p *Playlists) Create(ctx context.Context, name, scheme string) (*types.Playlist, error) {
	b := p.backends.ForScheme(scheme)
	if b == nil || b.Playlists() == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, scheme)
	}
	pl, err := b.Playlists().Create(ctx, name)
	if err != nil {
		return nil, err
	}
	p.bus.Publish(Event{Type: EventPlaylistChanged, Playlist: pl})
	return pl, nil
}

// Save stores the playlist and returns the stored version
func (p *Playlists) Save(ctx context.Context, playlist types.Playlist) (*types.Playlist, error) {
	provider := p.providerFor(playlist.URI)
	if provider == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, playlist.URI)
	}
	saved, err := provider.Save(ctx, playlist)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, playlist.URI)
	}
	if err != nil {
		return nil, err
	}
	p.bus.Publish(Event{Type: EventPlaylistChanged, Playlist: saved})
	return saved, nil
}

// Delete removes the playlist
func (p *Playlists) Delete(ctx context.Context, uri string) error {
	provider := p.providerFor(uri)
	if provider == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	if err := provider.Delete(ctx, uri); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return err
	}
	p.bus.Publish(Event{Type: EventPlaylistDeleted, URI: uri})
	return nil
}

// Refresh announces that playlists may have changed on disk
func (p *Playlists) Refresh(ctx context.Context) {
	p.logger.Debug("playlists loaded")
	p.bus.Publish(Event{Type: EventPlaylistsLoaded})
}
