package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/backend/memory"
	"github.com/austinkregel/local-media/mpdd/internal/logging"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// testTracks returns x:1 .. x:n, each one second long
func testTracks(n int) []types.Track {
	tracks := make([]types.Track, n)
	for i := range tracks {
		tracks[i] = types.Track{
			URI:     fmt.Sprintf("x:%d", i+1),
			Name:    fmt.Sprintf("Track %d", i+1),
			Artists: []types.Artist{{Name: "Artist"}},
			Album:   &types.Album{Name: "Album"},
			TrackNo: i + 1,
			Length:  1000,
		}
	}
	return tracks
}

func newTestTracklist() *Tracklist {
	return NewTracklist(NewBus(), 0, logging.Discard())
}

// newTestCore starts a core over a memory backend for scheme "x" holding
// x:1 .. x:n
func newTestCore(t *testing.T, n int) (*Core, *memory.Backend) {
	t.Helper()
	mem := memory.New("x", testTracks(n)...)
	reg, err := backend.NewRegistry(mem)
	if err != nil {
		t.Fatalf("Failed to create registry: %v", err)
	}
	c := New(reg, Config{Volume: -1}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(cancel)
	return c, mem
}

// do runs fn on the core executor and fails the test on error
func do(t *testing.T, c *Core, fn func(ctx context.Context)) {
	t.Helper()
	err := c.Do(context.Background(), func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
}

func currentURI(t *testing.T, c *Core) string {
	t.Helper()
	var uri string
	do(t, c, func(ctx context.Context) {
		if cur := c.Playback.Current(); cur != nil {
			uri = cur.Track.URI
		}
	})
	return uri
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
