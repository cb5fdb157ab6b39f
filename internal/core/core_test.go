package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/logging"
)

func TestDoIsReentrant(t *testing.T) {
	c, _ := newTestCore(t, 0)

	done := make(chan error, 1)
	go func() {
		done <- c.Do(context.Background(), func(ctx context.Context) error {
			return c.Do(ctx, func(ctx context.Context) error {
				return nil
			})
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Nested Do failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Nested Do deadlocked")
	}
}

func TestDoReturnsErrors(t *testing.T) {
	c, _ := newTestCore(t, 0)
	want := errors.New("boom")

	if err := c.Do(context.Background(), func(ctx context.Context) error { return want }); err != want {
		t.Errorf("Expected %v, got %v", want, err)
	}

	err := c.Do(context.Background(), func(ctx context.Context) error { panic("oops") })
	if err == nil {
		t.Error("Expected panic to become an error")
	}

	// The executor survives a panic
	if err := c.Do(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("Executor unusable after panic: %v", err)
	}
}

func TestDoAfterStop(t *testing.T) {
	reg, _ := backend.NewRegistry()
	c := New(reg, Config{Volume: -1}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	err := c.Do(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrCoreStopped) {
		t.Errorf("Expected ErrCoreStopped, got %v", err)
	}
}

func TestEndOfStreamIgnoresStaleStreams(t *testing.T) {
	c, _ := newTestCore(t, 3)
	addTracks(t, c, 3)
	do(t, c, func(ctx context.Context) { c.Playback.Play(ctx, nil) })

	var active atomic.Uint64
	active.Store(2)
	onEOS := c.EndOfStreamHandler(active.Load)

	onEOS(1)
	time.Sleep(50 * time.Millisecond)
	if got := currentURI(t, c); got != "x:1" {
		t.Fatalf("Stale end of stream moved playback to %s", got)
	}

	onEOS(2)
	waitFor(t, "advance to x:2", func() bool { return currentURI(t, c) == "x:2" })
}

func TestPostRunsOnExecutor(t *testing.T) {
	c, _ := newTestCore(t, 1)

	ran := make(chan bool, 1)
	c.Post(func(ctx context.Context) {
		ran <- ctx.Value(executorKey{}) == c
	})

	select {
	case onExecutor := <-ran:
		if !onExecutor {
			t.Error("Posted work should run with the executor context")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Posted work never ran")
	}
}

func TestBusDeliversInOrderToAllListeners(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe()
	defer a.Close()

	order := []EventType{EventTracklistChanged, EventOptionsChanged, EventVolumeChanged}
	for _, typ := range order {
		bus.Publish(Event{Type: typ})
	}

	select {
	case <-a.C():
	default:
		t.Error("Listener was not woken")
	}

	for name, l := range map[string]*Listener{"a": a, "b": b} {
		got := eventTypes(l.Drain())
		if len(got) != len(order) {
			t.Fatalf("%s: expected %v, got %v", name, order, got)
		}
		for i := range order {
			if got[i] != order[i] {
				t.Errorf("%s: event %d is %s, want %s", name, i, got[i], order[i])
			}
		}
	}

	b.Close()
	bus.Publish(Event{Type: EventMuteChanged})
	if got := b.Drain(); len(got) != 0 {
		t.Errorf("Closed listener received %v", eventTypes(got))
	}
	if got := a.Drain(); len(got) != 1 {
		t.Errorf("Open listener should still receive events, got %d", len(got))
	}
}

func TestEventSubsystems(t *testing.T) {
	tests := map[EventType]string{
		EventPlaybackStateChanged: SubsystemPlayer,
		EventSeeked:               SubsystemPlayer,
		EventTracklistChanged:     SubsystemPlaylist,
		EventStreamTitleChanged:   SubsystemPlaylist,
		EventOptionsChanged:       SubsystemOptions,
		EventVolumeChanged:        SubsystemMixer,
		EventMuteChanged:          SubsystemOutput,
		EventPlaylistsLoaded:      SubsystemStoredPlaylist,
		EventPlaylistChanged:      SubsystemStoredPlaylist,
		EventPlaylistDeleted:      SubsystemStoredPlaylist,
		EventLibraryRefreshed:     SubsystemDatabase,
		EventTrackPlaybackStarted: "",
	}
	for typ, want := range tests {
		if got := (Event{Type: typ}).Subsystem(); got != want {
			t.Errorf("%s: expected %q, got %q", typ, want, got)
		}
	}
}

type recordingSink struct {
	gains []float64
}

func (s *recordingSink) SetVolume(v float64) {
	s.gains = append(s.gains, v)
}

func TestMixer(t *testing.T) {
	bus := NewBus()
	listener := bus.Subscribe()
	defer listener.Close()
	sink := &recordingSink{}

	m := NewMixer(bus, -1, sink)
	if m.Volume() != -1 {
		t.Errorf("Expected unknown volume, got %d", m.Volume())
	}

	if err := m.SetVolume(101); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange, got %v", err)
	}
	if err := m.SetVolume(50); err != nil {
		t.Fatalf("SetVolume failed: %v", err)
	}
	m.SetVolume(50)
	m.SetMute(true)
	m.SetMute(true)

	events := listener.Drain()
	if len(events) != 2 || events[0].Volume != 50 || !events[1].Mute {
		t.Errorf("Expected one volume and one mute event, got %+v", events)
	}

	want := []float64{1, 0.5, 0}
	if len(sink.gains) != len(want) {
		t.Fatalf("Expected gains %v, got %v", want, sink.gains)
	}
	for i := range want {
		if sink.gains[i] != want[i] {
			t.Errorf("Gain %d: expected %v, got %v", i, want[i], sink.gains[i])
		}
	}
}
