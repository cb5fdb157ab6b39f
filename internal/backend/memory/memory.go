// Package memory provides an in-memory backend. It keeps its library and
// playlists in maps and simulates playback without producing audio, which
// makes it the backend of choice for exercising the core and the protocol.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// Backend is an in-memory music source for one URI scheme
type Backend struct {
	scheme    string
	library   *Library
	playback  *Playback
	playlists *Playlists
}

// New creates a backend for scheme whose library holds tracks
func New(scheme string, tracks ...types.Track) *Backend {
	return &Backend{
		scheme:    scheme,
		library:   &Library{scheme: scheme, tracks: tracks},
		playback:  &Playback{unplayable: make(map[string]bool)},
		playlists: &Playlists{scheme: scheme, byURI: make(map[string]*types.Playlist)},
	}
}

func (b *Backend) Name() string                 { return "memory" }
func (b *Backend) URISchemes() []string         { return []string{b.scheme} }
func (b *Backend) Library() backend.Library     { return b.library }
func (b *Backend) Playback() backend.Playback   { return b.playback }
func (b *Backend) Playlists() backend.Playlists { return b.playlists }
func (b *Backend) MemoryPlayback() *Playback    { return b.playback }
func (b *Backend) MemoryPlaylists() *Playlists  { return b.playlists }

// Library is a flat list of tracks with one root directory
type Library struct {
	mu     sync.RWMutex
	scheme string
	tracks []types.Track
}

// SetTracks replaces the library contents
func (l *Library) SetTracks(tracks []types.Track) {
	l.mu.Lock()
	l.tracks = tracks
	l.mu.Unlock()
}

func (l *Library) RootDirectory() *types.Ref {
	return &types.Ref{Type: types.RefDirectory, URI: l.scheme + ":directory", Name: strings.ToUpper(l.scheme[:1]) + l.scheme[1:]}
}

func (l *Library) Browse(ctx context.Context, uri string) ([]types.Ref, error) {
	if uri != l.scheme+":directory" {
		return nil, backend.ErrNotFound
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	refs := make([]types.Ref, 0, len(l.tracks))
	for _, t := range l.tracks {
		refs = append(refs, types.Ref{Type: types.RefTrack, URI: t.URI, Name: t.Name})
	}
	return refs, nil
}

func (l *Library) Lookup(ctx context.Context, uri string) ([]types.Track, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, t := range l.tracks {
		if t.URI == uri {
			return []types.Track{t}, nil
		}
	}
	return nil, backend.ErrNotFound
}

func (l *Library) Search(ctx context.Context, query types.Query, uris []string, exact bool) (*types.SearchResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &types.SearchResult{
		URI:    l.scheme + ":search",
		Tracks: backend.FilterTracks(l.tracks, query, exact),
	}, nil
}

func (l *Library) Distinct(ctx context.Context, field string, query types.Query) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return backend.DistinctValues(l.tracks, field, query), nil
}

func (l *Library) Refresh(ctx context.Context, uri string) error {
	return nil
}

// Playback pretends to play. Tests move the clock with SetPosition.
type Playback struct {
	mu         sync.Mutex
	unplayable map[string]bool
	track      *types.Track
	position   int64
	playing    bool
	calls      []string
}

// SetUnplayable makes ChangeTrack fail for uri
func (p *Playback) SetUnplayable(uri string) {
	p.mu.Lock()
	p.unplayable[uri] = true
	p.mu.Unlock()
}

// SetPosition moves the simulated play position
func (p *Playback) SetPosition(ms int64) {
	p.mu.Lock()
	p.position = ms
	p.mu.Unlock()
}

// Calls returns the backend calls made so far
func (p *Playback) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *Playback) record(call string) {
	p.calls = append(p.calls, call)
}

func (p *Playback) ChangeTrack(ctx context.Context, track types.Track) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("change_track " + track.URI)
	if p.unplayable[track.URI] {
		return fmt.Errorf("cannot play %s", track.URI)
	}
	t := track
	p.track = &t
	p.position = 0
	return nil
}

func (p *Playback) Play(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("play")
	if p.track == nil {
		return backend.ErrNoTrack
	}
	p.playing = true
	return nil
}

func (p *Playback) Pause(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("pause")
	p.playing = false
	return nil
}

func (p *Playback) Resume(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("resume")
	p.playing = true
	return nil
}

func (p *Playback) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("stop")
	p.playing = false
	return nil
}

func (p *Playback) Seek(ctx context.Context, positionMs int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record(fmt.Sprintf("seek %d", positionMs))
	p.position = positionMs
	return nil
}

func (p *Playback) TimePosition() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Playlists keeps playlists in a map
type Playlists struct {
	mu     sync.RWMutex
	scheme string
	byURI  map[string]*types.Playlist
	order  []string
	nextID int
}

func (p *Playlists) List(ctx context.Context) ([]types.Ref, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	refs := make([]types.Ref, 0, len(p.order))
	for _, uri := range p.order {
		refs = append(refs, types.Ref{Type: types.RefPlaylist, URI: uri, Name: p.byURI[uri].Name})
	}
	return refs, nil
}

func (p *Playlists) Lookup(ctx context.Context, uri string) (*types.Playlist, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pl, ok := p.byURI[uri]
	if !ok {
		return nil, backend.ErrNotFound
	}
	c := *pl
	c.Tracks = append([]types.Track(nil), pl.Tracks...)
	return &c, nil
}

func (p *Playlists) Create(ctx context.Context, name string) (*types.Playlist, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	pl := &types.Playlist{
		URI:          fmt.Sprintf("%s:playlist:%d", p.scheme, p.nextID),
		Name:         name,
		LastModified: time.Now().UnixMilli(),
	}
	p.byURI[pl.URI] = pl
	p.order = append(p.order, pl.URI)
	c := *pl
	return &c, nil
}

func (p *Playlists) Save(ctx context.Context, playlist types.Playlist) (*types.Playlist, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byURI[playlist.URI]; !ok {
		return nil, backend.ErrNotFound
	}
	playlist.Tracks = append([]types.Track(nil), playlist.Tracks...)
	playlist.LastModified = time.Now().UnixMilli()
	p.byURI[playlist.URI] = &playlist
	c := playlist
	return &c, nil
}

func (p *Playlists) Delete(ctx context.Context, uri string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byURI[uri]; !ok {
		return backend.ErrNotFound
	}
	delete(p.byURI, uri)
	for i, u := range p.order {
		if u == uri {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return nil
}
