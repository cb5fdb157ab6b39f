package core

import (
	"context"
	"strings"
	"testing"

	"github.com/austinkregel/local-media/mpdd/internal/types"
)

func addTracks(t *testing.T, c *Core, n int) {
	t.Helper()
	do(t, c, func(ctx context.Context) {
		if _, err := c.Tracklist.Add(testTracks(n), -1); err != nil {
			t.Errorf("Add failed: %v", err)
		}
	})
}

func TestPlaybackPlayEmitsStateThenStarted(t *testing.T) {
	c, _ := newTestCore(t, 3)
	addTracks(t, c, 3)

	listener := c.Bus.Subscribe()
	defer listener.Close()

	do(t, c, func(ctx context.Context) { c.Playback.Play(ctx, nil) })

	events := listener.Drain()
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %v", eventTypes(events))
	}
	if events[0].Type != EventPlaybackStateChanged || events[0].OldState != StateStopped || events[0].NewState != StatePlaying {
		t.Errorf("Expected stopped -> playing first, got %+v", events[0])
	}
	if events[1].Type != EventTrackPlaybackStarted || events[1].TlTrack.Track.URI != "x:1" {
		t.Errorf("Expected track_playback_started for x:1, got %+v", events[1])
	}
	if got := currentURI(t, c); got != "x:1" {
		t.Errorf("Expected current x:1, got %s", got)
	}
}

func TestPlaybackNextOrderOfEvents(t *testing.T) {
	c, _ := newTestCore(t, 3)
	addTracks(t, c, 3)
	do(t, c, func(ctx context.Context) { c.Playback.Play(ctx, nil) })

	listener := c.Bus.Subscribe()
	defer listener.Close()
	do(t, c, func(ctx context.Context) { c.Playback.Next(ctx) })

	want := []EventType{
		EventPlaybackStateChanged,
		EventTrackPlaybackEnded,
		EventPlaybackStateChanged,
		EventTrackPlaybackStarted,
	}
	got := eventTypes(listener.Drain())
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if uri := currentURI(t, c); uri != "x:2" {
		t.Errorf("Expected current x:2, got %s", uri)
	}
}

func TestPlaybackEndOfTrackWithRepeatWraps(t *testing.T) {
	c, _ := newTestCore(t, 3)
	addTracks(t, c, 3)
	do(t, c, func(ctx context.Context) {
		c.Tracklist.SetRepeat(true)
		c.Playback.Play(ctx, nil)
	})

	for _, want := range []string{"x:2", "x:3", "x:1"} {
		do(t, c, func(ctx context.Context) { c.Playback.OnEndOfTrack(ctx) })
		if got := currentURI(t, c); got != want {
			t.Errorf("Expected %s after end of track, got %s", want, got)
		}
	}

	var state PlaybackState
	do(t, c, func(ctx context.Context) { state = c.Playback.State() })
	if state != StatePlaying {
		t.Errorf("Expected playing, got %s", state)
	}
}

func TestPlaybackNextWithRepeatWraps(t *testing.T) {
	c, _ := newTestCore(t, 3)
	addTracks(t, c, 3)

	var length int
	do(t, c, func(ctx context.Context) {
		length = c.Tracklist.Length()
		c.Playback.Play(ctx, nil)
	})
	if length != 3 {
		t.Fatalf("Expected 3 tracks, got %d", length)
	}
	if uri := currentURI(t, c); uri != "x:1" {
		t.Fatalf("Expected current x:1, got %s", uri)
	}

	do(t, c, func(ctx context.Context) { c.Playback.Next(ctx) })
	if uri := currentURI(t, c); uri != "x:2" {
		t.Fatalf("Expected current x:2, got %s", uri)
	}

	do(t, c, func(ctx context.Context) { c.Tracklist.SetRepeat(true) })
	for _, want := range []string{"x:3", "x:1"} {
		do(t, c, func(ctx context.Context) { c.Playback.Next(ctx) })
		if got := currentURI(t, c); got != want {
			t.Errorf("Expected %s after next, got %s", want, got)
		}
	}

	var state PlaybackState
	do(t, c, func(ctx context.Context) { state = c.Playback.State() })
	if state != StatePlaying {
		t.Errorf("Expected playing, got %s", state)
	}
}

func TestPlaybackRandomConsumeNextMovesOn(t *testing.T) {
	c, _ := newTestCore(t, 3)
	for trial := 0; trial < 50; trial++ {
		do(t, c, func(ctx context.Context) {
			c.Playback.Stop(ctx, true)
			c.Tracklist.Clear()
			c.Tracklist.Add(testTracks(3), -1)
			c.Tracklist.SetRandom(true)
			c.Tracklist.SetConsume(true)
			c.Playback.Play(ctx, nil)
		})

		first := currentURI(t, c)
		do(t, c, func(ctx context.Context) { c.Playback.Next(ctx) })
		second := currentURI(t, c)
		if second == "" || second == first {
			t.Fatalf("Trial %d: next stayed on %q", trial, first)
		}

		var next *types.TlTrack
		do(t, c, func(ctx context.Context) { next = c.Tracklist.NextTrack(c.Playback.Current()) })
		if next == nil || next.Track.URI == first || next.Track.URI == second {
			t.Fatalf("Trial %d: after %s, %s expected the remaining track, got %v", trial, first, second, next)
		}
	}
}

func TestPlaybackEndOfListStops(t *testing.T) {
	c, _ := newTestCore(t, 2)
	addTracks(t, c, 2)
	do(t, c, func(ctx context.Context) { c.Playback.Play(ctx, nil) })

	do(t, c, func(ctx context.Context) {
		c.Playback.OnEndOfTrack(ctx)
		c.Playback.OnEndOfTrack(ctx)
	})

	do(t, c, func(ctx context.Context) {
		if c.Playback.State() != StateStopped {
			t.Errorf("Expected stopped, got %s", c.Playback.State())
		}
		if c.Playback.Current() != nil {
			t.Errorf("Expected no current track, got %v", c.Playback.Current())
		}
	})
}

func TestPlaybackPauseFreezesPosition(t *testing.T) {
	c, mem := newTestCore(t, 1)
	addTracks(t, c, 1)
	do(t, c, func(ctx context.Context) { c.Playback.Play(ctx, nil) })

	mem.MemoryPlayback().SetPosition(420)

	listener := c.Bus.Subscribe()
	defer listener.Close()
	do(t, c, func(ctx context.Context) {
		if !c.Playback.Pause(ctx) {
			t.Error("Pause should succeed while playing")
		}
		if c.Playback.Pause(ctx) {
			t.Error("Pause should fail while paused")
		}
	})

	events := listener.Drain()
	if len(events) != 2 || events[1].Type != EventTrackPlaybackPaused {
		t.Fatalf("Expected state change and paused event, got %v", eventTypes(events))
	}
	if events[1].TimePosition != 420 {
		t.Errorf("Expected paused at 420, got %d", events[1].TimePosition)
	}

	do(t, c, func(ctx context.Context) {
		if pos := c.Playback.TimePosition(); pos != 420 {
			t.Errorf("Expected position to stay 420, got %d", pos)
		}
		if !c.Playback.Resume(ctx) {
			t.Error("Resume should succeed while paused")
		}
		if c.Playback.State() != StatePlaying {
			t.Errorf("Expected playing after resume, got %s", c.Playback.State())
		}
	})
}

func TestPlaybackPlayWhilePausedResumes(t *testing.T) {
	c, mem := newTestCore(t, 2)
	addTracks(t, c, 2)
	do(t, c, func(ctx context.Context) {
		c.Playback.Play(ctx, nil)
		c.Playback.Pause(ctx)
		c.Playback.Play(ctx, nil)
	})

	calls := mem.MemoryPlayback().Calls()
	if last := calls[len(calls)-1]; last != "resume" {
		t.Errorf("Expected play to resume, last call was %q", last)
	}
}

func TestPlaybackNextWhilePausedStaysPaused(t *testing.T) {
	c, mem := newTestCore(t, 2)
	addTracks(t, c, 2)
	do(t, c, func(ctx context.Context) {
		c.Playback.Play(ctx, nil)
		c.Playback.Pause(ctx)
		c.Playback.Next(ctx)
	})

	do(t, c, func(ctx context.Context) {
		if c.Playback.State() != StatePaused {
			t.Errorf("Expected paused, got %s", c.Playback.State())
		}
		if cur := c.Playback.Current(); cur == nil || cur.Track.URI != "x:2" {
			t.Errorf("Expected current x:2, got %v", cur)
		}
	})

	calls := mem.MemoryPlayback().Calls()
	if last := calls[len(calls)-1]; last != "change_track x:2" {
		t.Errorf("Expected the track to be prepared only, last call was %q", last)
	}
}

func TestPlaybackSkipsUnplayable(t *testing.T) {
	c, mem := newTestCore(t, 3)
	mem.MemoryPlayback().SetUnplayable("x:1")
	addTracks(t, c, 3)

	do(t, c, func(ctx context.Context) { c.Playback.Play(ctx, nil) })

	if got := currentURI(t, c); got != "x:2" {
		t.Errorf("Expected x:2 after skipping x:1, got %s", got)
	}
}

func TestPlaybackUnplayableRetryIsBounded(t *testing.T) {
	c, mem := newTestCore(t, 3)
	for _, uri := range []string{"x:1", "x:2", "x:3"} {
		mem.MemoryPlayback().SetUnplayable(uri)
	}
	addTracks(t, c, 3)

	do(t, c, func(ctx context.Context) {
		c.Tracklist.SetRepeat(true)
		c.Playback.Play(ctx, nil)
	})

	changes := 0
	for _, call := range mem.MemoryPlayback().Calls() {
		if strings.HasPrefix(call, "change_track") {
			changes++
		}
	}
	if changes != 3 {
		t.Errorf("Expected one attempt per track, got %d", changes)
	}
	do(t, c, func(ctx context.Context) {
		if c.Playback.State() != StateStopped || c.Playback.Current() != nil {
			t.Errorf("Expected stopped with no current track, got %s %v", c.Playback.State(), c.Playback.Current())
		}
	})
}

func TestPlaybackSeek(t *testing.T) {
	c, mem := newTestCore(t, 2)
	addTracks(t, c, 2)

	listener := c.Bus.Subscribe()
	defer listener.Close()

	do(t, c, func(ctx context.Context) {
		if !c.Playback.Seek(ctx, 500) {
			t.Error("Seek should start playback and succeed")
		}
	})
	if pos := mem.MemoryPlayback().TimePosition(); pos != 500 {
		t.Errorf("Expected position 500, got %d", pos)
	}

	var seeked bool
	for _, e := range listener.Drain() {
		if e.Type == EventSeeked && e.TimePosition == 500 {
			seeked = true
		}
	}
	if !seeked {
		t.Error("Expected seeked event")
	}

	// Past the end moves on
	do(t, c, func(ctx context.Context) { c.Playback.Seek(ctx, 5000) })
	if got := currentURI(t, c); got != "x:2" {
		t.Errorf("Expected x:2 after seeking past the end, got %s", got)
	}
}

func TestPlaybackSeekEmptyTracklist(t *testing.T) {
	c, _ := newTestCore(t, 0)
	do(t, c, func(ctx context.Context) {
		if c.Playback.Seek(ctx, 10) {
			t.Error("Seek on an empty tracklist should fail")
		}
	})
}

func TestPlaybackPrevious(t *testing.T) {
	c, _ := newTestCore(t, 3)
	addTracks(t, c, 3)
	do(t, c, func(ctx context.Context) {
		c.Playback.Play(ctx, c.Tracklist.At(1))
		c.Playback.Previous(ctx)
	})
	if got := currentURI(t, c); got != "x:1" {
		t.Errorf("Expected x:1, got %s", got)
	}
}

func TestPlaybackConsumeRemovesPlayed(t *testing.T) {
	c, _ := newTestCore(t, 3)
	addTracks(t, c, 3)
	do(t, c, func(ctx context.Context) {
		c.Tracklist.SetConsume(true)
		c.Playback.Play(ctx, nil)
		c.Playback.Next(ctx)
	})

	do(t, c, func(ctx context.Context) {
		if c.Tracklist.Length() != 2 {
			t.Errorf("Expected 2 tracks left, got %d", c.Tracklist.Length())
		}
		if len(c.Tracklist.FilterURI("x:1")) != 0 {
			t.Error("Played track should be consumed")
		}
	})
	if got := currentURI(t, c); got != "x:2" {
		t.Errorf("Expected x:2, got %s", got)
	}
}

func TestPlaybackTracklistChanges(t *testing.T) {
	c, _ := newTestCore(t, 3)
	addTracks(t, c, 3)

	do(t, c, func(ctx context.Context) {
		c.Playback.Play(ctx, nil)
		c.Tracklist.Remove([]int{c.Playback.Current().TLID})
		if c.Playback.Current() != nil {
			t.Error("Removing the current track should clear it")
		}

		c.Tracklist.Clear()
		if c.Playback.State() != StateStopped {
			t.Errorf("Clearing the tracklist should stop, got %s", c.Playback.State())
		}
	})
}

func TestPlaybackStopClearsCurrentOnRequest(t *testing.T) {
	c, _ := newTestCore(t, 1)
	addTracks(t, c, 1)

	var kept, cleared *types.TlTrack
	do(t, c, func(ctx context.Context) {
		c.Playback.Play(ctx, nil)
		c.Playback.Stop(ctx, false)
		kept = c.Playback.Current()
		c.Playback.Stop(ctx, true)
		cleared = c.Playback.Current()
	})
	if kept == nil {
		t.Error("Stop without clearing should keep the current track")
	}
	if cleared != nil {
		t.Error("Stop with clearing should drop the current track")
	}
}
