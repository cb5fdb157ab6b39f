package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// Renderer is the audio output shared by all backends. It plays one location
// at a time.
type Renderer interface {
	Load(ctx context.Context, location string, lengthMs, startMs int64) error
	Pause() error
	Resume() error
	Stop() error
	Seek(positionMs int64) error
	Position() int64
}

// LocationFunc translates a track into something the renderer can open
// (a file path or a URL)
type LocationFunc func(track types.Track) (string, error)

var ErrNoTrack = errors.New("no track prepared")

// BasePlayback implements Playback on top of a Renderer. Backends embed it
// and supply a LocationFunc for their URI scheme.
type BasePlayback struct {
	mu       sync.Mutex
	renderer Renderer
	locate   LocationFunc
	track    *types.Track
	location string
	loaded   bool
	startAt  int64
}

// NewBasePlayback creates a playback provider writing to the renderer
func NewBasePlayback(renderer Renderer, locate LocationFunc) *BasePlayback {
	return &BasePlayback{renderer: renderer, locate: locate}
}

// ChangeTrack prepares a track without starting audio
func (p *BasePlayback) ChangeTrack(ctx context.Context, track types.Track) error {
	location, err := p.locate(track)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", track.URI, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		if err := p.renderer.Stop(); err != nil {
			return err
		}
	}
	t := track
	p.track = &t
	p.location = location
	p.loaded = false
	p.startAt = 0
	return nil
}

// Play starts the prepared track from the beginning (or from a position set
// by Seek while it was not yet loaded)
func (p *BasePlayback) Play(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadLocked(ctx)
}

func (p *BasePlayback) loadLocked(ctx context.Context) error {
	if p.track == nil {
		return ErrNoTrack
	}
	if err := p.renderer.Load(ctx, p.location, p.track.Length, p.startAt); err != nil {
		p.loaded = false
		return err
	}
	p.loaded = true
	return nil
}

// Pause pauses the renderer
func (p *BasePlayback) Pause(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return nil
	}
	return p.renderer.Pause()
}

// Resume continues a paused track, loading it first if it was only prepared
func (p *BasePlayback) Resume(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return p.loadLocked(ctx)
	}
	return p.renderer.Resume()
}

// Stop stops audio output
func (p *BasePlayback) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startAt = 0
	if !p.loaded {
		return nil
	}
	p.loaded = false
	return p.renderer.Stop()
}

// Seek moves the play position
func (p *BasePlayback) Seek(ctx context.Context, positionMs int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		p.startAt = positionMs
		return nil
	}
	return p.renderer.Seek(positionMs)
}

// TimePosition returns the play position in milliseconds
func (p *BasePlayback) TimePosition() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return p.startAt
	}
	return p.renderer.Position()
}
