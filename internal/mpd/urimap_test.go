package mpd

import (
	"context"
	"testing"

	"github.com/austinkregel/local-media/mpdd/internal/types"
)

func TestURIMapDisambiguatesNames(t *testing.T) {
	m := NewURIMap(nil)

	if got := m.Insert("a", "x:1", false); got != "a" {
		t.Errorf("Expected a, got %q", got)
	}
	if got := m.Insert("a", "x:2", false); got != "a [2]" {
		t.Errorf("Expected %q, got %q", "a [2]", got)
	}
	if got := m.Insert("a", "x:3", false); got != "a [3]" {
		t.Errorf("Expected %q, got %q", "a [3]", got)
	}

	// The same URI keeps the name it already has
	if got := m.Insert("a", "x:1", false); got != "a" {
		t.Errorf("Expected a for a known uri, got %q", got)
	}

	uri, ok := m.URIFromName("a [2]")
	if !ok || uri != "x:2" {
		t.Errorf("Expected x:2, got %q (%v)", uri, ok)
	}
	name, ok := m.BrowseNameFromURI("x:3")
	if !ok || name != "a [3]" {
		t.Errorf("Expected %q, got %q (%v)", "a [3]", name, ok)
	}
}

func TestURIMapStripsLineBreaks(t *testing.T) {
	m := NewURIMap(nil)
	if got := m.Insert("two\nlines\r", "x:1", false); got != "two lines " {
		t.Errorf("Expected line breaks replaced, got %q", got)
	}
}

func TestURIMapPlaylistsRefreshOnMiss(t *testing.T) {
	calls := 0
	refs := []types.Ref{
		{Type: types.RefPlaylist, URI: "x:playlist:1", Name: "rock/roll"},
		{Type: types.RefPlaylist, URI: "x:playlist:2", Name: "rock/roll"},
		{Type: types.RefPlaylist, URI: "x:playlist:3", Name: ""},
	}
	m := NewURIMap(func(ctx context.Context) ([]types.Ref, error) {
		calls++
		return refs, nil
	})
	ctx := context.Background()

	uri, ok := m.PlaylistURIFromName(ctx, "rock roll")
	if !ok || uri != "x:playlist:1" {
		t.Errorf("Expected x:playlist:1, got %q (%v)", uri, ok)
	}
	name, ok := m.PlaylistNameFromURI(ctx, "x:playlist:2")
	if !ok || name != "rock roll [2]" {
		t.Errorf("Expected %q, got %q (%v)", "rock roll [2]", name, ok)
	}
	if calls != 1 {
		t.Errorf("Expected one refresh, got %d", calls)
	}

	// Unnamed playlists are never mapped
	if _, ok := m.PlaylistNameFromURI(ctx, "x:playlist:3"); ok {
		t.Error("Expected no name for an unnamed playlist")
	}
	if calls != 2 {
		t.Errorf("Expected a refresh on miss, got %d refreshes", calls)
	}
}
