// Package core owns the shared music state: the tracklist, the playback
// state machine, the mixer, and the library and playlist controllers that
// route requests to backends. Tracklist and Playback are confined to a
// single executor goroutine; everything reaches them through Core.Do.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
)

// Config tunes the core
type Config struct {
	MaxTracklistLength int
	Volume             int
	VolumeSink         VolumeSink
}

// Core is the single owner of the tracklist and playback state
type Core struct {
	Bus       *Bus
	Tracklist *Tracklist
	Playback  *Playback
	Mixer     *Mixer
	Library   *Library
	Playlists *Playlists

	logger   *log.Logger
	requests chan func()
	done     chan struct{}
	started  time.Time
}

type executorKey struct{}

// New creates a core over the given backends. Call Run to start the executor.
func New(backends *backend.Registry, cfg Config, logger *log.Logger) *Core {
	bus := NewBus()
	tracklist := NewTracklist(bus, cfg.MaxTracklistLength, logger.WithPrefix("tracklist"))
	return &Core{
		Bus:       bus,
		Tracklist: tracklist,
		Playback:  NewPlayback(bus, tracklist, backends, logger.WithPrefix("playback")),
		Mixer:     NewMixer(bus, cfg.Volume, cfg.VolumeSink),
		Library:   NewLibrary(backends, bus, logger.WithPrefix("library")),
		Playlists: NewPlaylists(backends, bus, logger.WithPrefix("playlists")),
		logger:    logger,
		requests:  make(chan func()),
		done:      make(chan struct{}),
		started:   time.Now(),
	}
}

// Run executes submitted work until ctx is cancelled
func (c *Core) Run(ctx context.Context) error {
	defer close(c.done)
	c.logger.Debug("core executor started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("core executor stopped")
			return nil
		case fn := <-c.requests:
			fn()
		}
	}
}

// Do runs fn on the executor and waits for it. Calls made from inside fn
// (with the context it was given) run inline, so a caller can group several
// operations into one uninterrupted transaction.
func (c *Core) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(executorKey{}) == c {
		return fn(ctx)
	}

	inner := context.WithValue(ctx, executorKey{}, c)
	errc := make(chan error, 1)
	req := func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("panic in core", "panic", r)
				errc <- fmt.Errorf("core panic: %v", r)
			}
		}()
		errc <- fn(inner)
	}

	select {
	case c.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrCoreStopped
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post runs fn on the executor without waiting for it
func (c *Core) Post(fn func(ctx context.Context)) {
	go func() {
		err := c.Do(context.Background(), func(ctx context.Context) error {
			fn(ctx)
			return nil
		})
		if err != nil {
			c.logger.Warn("posted work dropped", "err", err)
		}
	}()
}

// EndOfStreamHandler returns the callback an audio renderer invokes when a
// stream finishes. current reports the renderer's active stream so that a
// stream replaced in the meantime is ignored.
func (c *Core) EndOfStreamHandler(current func() uint64) func(stream uint64) {
	return func(stream uint64) {
		c.Post(func(ctx context.Context) {
			if current() != stream {
				c.logger.Debug("ignoring end of stale stream", "stream", stream)
				return
			}
			c.Playback.OnEndOfTrack(ctx)
		})
	}
}

// Uptime is the time since the core was created
func (c *Core) Uptime() time.Duration {
	return time.Since(c.started)
}
