package mpd

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/backend/memory"
	"github.com/austinkregel/local-media/mpdd/internal/core"
	"github.com/austinkregel/local-media/mpdd/internal/logging"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// testTracks returns x:1 .. x:n, each ten seconds long
func testTracks(n int) []types.Track {
	tracks := make([]types.Track, n)
	for i := range tracks {
		tracks[i] = types.Track{
			URI:     fmt.Sprintf("x:%d", i+1),
			Name:    fmt.Sprintf("Track %d", i+1),
			Artists: []types.Artist{{Name: "Artist"}},
			Album:   &types.Album{Name: "Album"},
			TrackNo: i + 1,
			Length:  10000,
		}
	}
	return tracks
}

// newTestCore starts a core over a memory backend for scheme "x" holding
// x:1 .. x:n
func newTestCore(t *testing.T, n int) (*core.Core, *memory.Backend) {
	t.Helper()
	mem := memory.New("x", testTracks(n)...)
	reg, err := backend.NewRegistry(mem)
	if err != nil {
		t.Fatalf("Failed to create registry: %v", err)
	}
	c := core.New(reg, core.Config{Volume: 50}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(cancel)
	return c, mem
}

// newTestDispatcher returns a dispatcher for one connection from localhost
func newTestDispatcher(t *testing.T, n int, opts Options) (*Dispatcher, *core.Core, *memory.Backend) {
	t.Helper()
	c, mem := newTestCore(t, n)
	conn := NewContext(c, opts, "127.0.0.1", logging.Discard())
	return NewDispatcher(NewDefaultTable(), conn), c, mem
}

// send runs each request in turn and returns the response to the last one
func send(t *testing.T, d *Dispatcher, requests ...string) []string {
	t.Helper()
	var response []string
	for _, r := range requests {
		response = d.Handle(context.Background(), r)
	}
	return response
}

func expectResponse(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unexpected response:\n got %q\nwant %q", got, want)
	}
}

// field returns the value of key in a "key: value" response, or ""
func field(lines []string, key string) string {
	prefix := key + ": "
	for _, l := range lines {
		if len(l) > len(prefix) && l[:len(prefix)] == prefix {
			return l[len(prefix):]
		}
	}
	return ""
}
