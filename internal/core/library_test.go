package core

import (
	"context"
	"errors"
	"testing"

	"github.com/austinkregel/local-media/mpdd/internal/types"
)

func TestLibraryBrowse(t *testing.T) {
	c, _ := newTestCore(t, 2)
	ctx := context.Background()

	roots, err := c.Library.Browse(ctx, "")
	if err != nil {
		t.Fatalf("Browse failed: %v", err)
	}
	if len(roots) != 1 || roots[0].URI != "x:directory" || roots[0].Type != types.RefDirectory {
		t.Fatalf("Unexpected roots: %+v", roots)
	}

	refs, err := c.Library.Browse(ctx, roots[0].URI)
	if err != nil {
		t.Fatalf("Browse failed: %v", err)
	}
	if len(refs) != 2 || refs[0].URI != "x:1" {
		t.Errorf("Unexpected refs: %+v", refs)
	}

	if _, err := c.Library.Browse(ctx, "x:nowhere"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := c.Library.Browse(ctx, "y:directory"); !errors.Is(err, ErrNoBackend) {
		t.Errorf("Expected ErrNoBackend, got %v", err)
	}
}

func TestLibraryLookupSearchDistinct(t *testing.T) {
	c, _ := newTestCore(t, 3)
	ctx := context.Background()

	found, err := c.Library.Lookup(ctx, "x:2", "x:9", "y:1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(found["x:2"]) != 1 || len(found["x:9"]) != 0 || len(found["y:1"]) != 0 {
		t.Errorf("Unexpected lookup result: %+v", found)
	}

	results, err := c.Library.Search(ctx, types.Query{"track_name": {"track 3"}}, nil, true)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || len(results[0].Tracks) != 1 || results[0].Tracks[0].URI != "x:3" {
		t.Errorf("Unexpected search results: %+v", results)
	}

	results, _ = c.Library.Search(ctx, types.Query{"any": {"track"}}, nil, false)
	if len(results[0].Tracks) != 3 {
		t.Errorf("Expected substring search to match all tracks, got %d", len(results[0].Tracks))
	}

	values, err := c.Library.Distinct(ctx, "track_no", nil)
	if err != nil {
		t.Fatalf("Distinct failed: %v", err)
	}
	if !equalStrings(values, []string{"1", "2", "3"}) {
		t.Errorf("Unexpected distinct values: %v", values)
	}
}

func TestLibraryRefreshPublishes(t *testing.T) {
	c, _ := newTestCore(t, 0)
	listener := c.Bus.Subscribe()
	defer listener.Close()

	if err := c.Library.Refresh(context.Background(), ""); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	events := listener.Drain()
	if len(events) != 1 || events[0].Type != EventLibraryRefreshed {
		t.Errorf("Expected library_refreshed, got %v", eventTypes(events))
	}
}

func TestPlaylistsLifecycle(t *testing.T) {
	c, _ := newTestCore(t, 2)
	ctx := context.Background()
	listener := c.Bus.Subscribe()
	defer listener.Close()

	if _, err := c.Playlists.Create(ctx, "nope", "y"); !errors.Is(err, ErrNoBackend) {
		t.Errorf("Expected ErrNoBackend, got %v", err)
	}

	pl, err := c.Playlists.Create(ctx, "Road trip", "x")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	pl.Tracks = testTracks(2)
	if _, err := c.Playlists.Save(ctx, *pl); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	refs, _ := c.Playlists.List(ctx)
	if len(refs) != 1 || refs[0].Name != "Road trip" {
		t.Errorf("Unexpected playlists: %+v", refs)
	}

	got, err := c.Playlists.Lookup(ctx, pl.URI)
	if err != nil || len(got.Tracks) != 2 {
		t.Errorf("Lookup returned %+v, %v", got, err)
	}

	if err := c.Playlists.Delete(ctx, pl.URI); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.Playlists.Lookup(ctx, pl.URI); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	want := []EventType{EventPlaylistChanged, EventPlaylistChanged, EventPlaylistDeleted}
	got2 := eventTypes(listener.Drain())
	if len(got2) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got2)
	}
	for i := range want {
		if got2[i] != want[i] {
			t.Errorf("Event %d: expected %s, got %s", i, want[i], got2[i])
		}
	}
}
