package mpd

import (
	"context"
	"fmt"
	"strings"

	"github.com/austinkregel/local-media/mpdd/internal/types"
)

var (
	browseNameReplacer   = strings.NewReplacer("\n", " ", "\r", " ")
	playlistNameReplacer = strings.NewReplacer("\n", " ", "\r", " ", "/", " ")
)

// PlaylistLister returns the stored playlists known to the core
type PlaylistLister func(ctx context.Context) ([]types.Ref, error)

// URIMap gives every URI a unique, protocol safe name for the lifetime of
// a connection. Clients see the names; the core only knows URIs.
type URIMap struct {
	playlists PlaylistLister

	uriFromName         map[string]string
	browseNameFromURI   map[string]string
	playlistNameFromURI map[string]string
}

// NewURIMap creates an empty map. playlists may be nil.
func NewURIMap(playlists PlaylistLister) *URIMap {
	return &URIMap{
		playlists:           playlists,
		uriFromName:         make(map[string]string),
		browseNameFromURI:   make(map[string]string),
		playlistNameFromURI: make(map[string]string),
	}
}

func (m *URIMap) uniqueName(name, uri string) string {
	stripped := browseNameReplacer.Replace(name)
	name = stripped
	for i := 2; ; i++ {
		existing, taken := m.uriFromName[name]
		if !taken || existing == uri {
			return name
		}
		name = fmt.Sprintf("%s [%d]", stripped, i)
	}
}

// Insert maps name to uri and returns the name actually used, which gets a
// " [n]" suffix when another URI already holds it
func (m *URIMap) Insert(name, uri string, playlist bool) string {
	name = m.uniqueName(name, uri)
	m.uriFromName[name] = uri
	if playlist {
		m.playlistNameFromURI[uri] = name
	} else {
		m.browseNameFromURI[uri] = name
	}
	return name
}

// URIFromName returns the URI for a name, if one was inserted
func (m *URIMap) URIFromName(name string) (string, bool) {
	uri, ok := m.uriFromName[name]
	return uri, ok
}

// BrowseNameFromURI returns the browse path previously assigned to uri
func (m *URIMap) BrowseNameFromURI(uri string) (string, bool) {
	name, ok := m.browseNameFromURI[uri]
	return name, ok
}

// RefreshPlaylists inserts every stored playlist
func (m *URIMap) RefreshPlaylists(ctx context.Context) error {
	if m.playlists == nil {
		return nil
	}
	refs, err := m.playlists(ctx)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if ref.Name == "" {
			continue
		}
		m.Insert(playlistNameReplacer.Replace(ref.Name), ref.URI, true)
	}
	return nil
}

// PlaylistURIFromName resolves a playlist name, refreshing on a miss
func (m *URIMap) PlaylistURIFromName(ctx context.Context, name string) (string, bool) {
	if _, ok := m.uriFromName[name]; !ok {
		if err := m.RefreshPlaylists(ctx); err != nil {
			return "", false
		}
	}
	uri, ok := m.uriFromName[name]
	return uri, ok
}

// PlaylistNameFromURI returns the unique name of a playlist, refreshing on
// a miss
func (m *URIMap) PlaylistNameFromURI(ctx context.Context, uri string) (string, bool) {
	if _, ok := m.playlistNameFromURI[uri]; !ok {
		if err := m.RefreshPlaylists(ctx); err != nil {
			return "", false
		}
	}
	name, ok := m.playlistNameFromURI[uri]
	return name, ok
}
