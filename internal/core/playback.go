package core

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// PlaybackState represents the current state of the player
type PlaybackState string

const (
	StateStopped PlaybackState = "stopped"
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
)

// Playback drives the backends through play, pause, stop and track changes.
// Like the Tracklist it is confined to the Core executor.
type Playback struct {
	bus       Publisher
	logger    *log.Logger
	tracklist *Tracklist
	backends  *backend.Registry
	state     PlaybackState
	current   *types.TlTrack
}

// NewPlayback creates a stopped playback controller bound to the tracklist
func NewPlayback(bus Publisher, tracklist *Tracklist, backends *backend.Registry, logger *log.Logger) *Playback {
	p := &Playback{
		bus:       bus,
		logger:    logger,
		tracklist: tracklist,
		backends:  backends,
		state:     StateStopped,
	}
	tracklist.onVersionChange = p.onTracklistChange
	return p
}

// State returns the playback state
func (p *Playback) State() PlaybackState {
	return p.state
}

// Current returns the current slot, or nil
func (p *Playback) Current() *types.TlTrack {
	if p.current == nil {
		return nil
	}
	tl := *p.current
	return &tl
}

// TimePosition returns the play position of the current track in milliseconds
func (p *Playback) TimePosition() int64 {
	pb := p.backendFor(p.current)
	if pb == nil {
		return 0
	}
	return pb.TimePosition()
}

func (p *Playback) backendFor(tl *types.TlTrack) backend.Playback {
	if tl == nil || p.backends == nil {
		return nil
	}
	b := p.backends.ForURI(tl.Track.URI)
	if b == nil {
		return nil
	}
	return b.Playback()
}

func (p *Playback) setCurrent(tl *types.TlTrack) {
	if tl == nil {
		p.current = nil
		return
	}
	c := *tl
	p.current = &c
}

func (p *Playback) setState(s PlaybackState) {
	old := p.state
	if old == s {
		return
	}
	p.state = s
	p.logger.Debug("playback state changed", "from", old, "to", s)
	p.bus.Publish(Event{Type: EventPlaybackStateChanged, OldState: old, NewState: s})
}

func (p *Playback) trigger(t EventType, position int64) {
	if p.current == nil {
		return
	}
	p.bus.Publish(Event{Type: t, TlTrack: p.Current(), TimePosition: position})
}

// Play starts tl, or with tl nil resumes a paused track, restarts the current
// one, or starts the first track the tracklist offers. Unplayable tracks are
// skipped forward, at most once per track in the tracklist.
func (p *Playback) Play(ctx context.Context, tl *types.TlTrack) {
	p.play(ctx, tl, 1)
}

func (p *Playback) play(ctx context.Context, tl *types.TlTrack, step int) {
	if tl == nil {
		if p.state == StatePaused {
			p.Resume(ctx)
			return
		}
		switch {
		case p.current != nil:
			tl = p.Current()
		case step > 0:
			tl = p.tracklist.NextTrack(nil)
		default:
			tl = p.tracklist.PreviousTrack(nil)
		}
		if tl == nil {
			return
		}
	}

	attempts := p.tracklist.Length()
	for tl != nil {
		if p.start(ctx, tl) {
			return
		}
		p.tracklist.MarkUnplayable(tl)
		attempts--
		if attempts <= 0 {
			p.logger.Warn("no playable track found, stopping")
			break
		}
		if step > 0 {
			tl = p.tracklist.NextTrack(tl)
		} else {
			tl = p.tracklist.PreviousTrack(tl)
		}
	}
	p.Stop(ctx, true)
}

// start asks the backend to play tl and reports whether it did
func (p *Playback) start(ctx context.Context, tl *types.TlTrack) bool {
	if p.state != StateStopped {
		p.Stop(ctx, false)
	}
	p.setCurrent(tl)

	pb := p.backendFor(tl)
	if pb == nil {
		p.logger.Warn("no playback backend for track", "uri", tl.Track.URI)
		return false
	}
	if err := pb.ChangeTrack(ctx, tl.Track); err != nil {
		p.logger.Warn("failed to change track", "uri", tl.Track.URI, "err", err)
		return false
	}
	if err := pb.Play(ctx); err != nil {
		p.logger.Warn("failed to start playback", "uri", tl.Track.URI, "err", err)
		return false
	}

	p.setState(StatePlaying)
	p.tracklist.MarkPlaying(tl)
	p.trigger(EventTrackPlaybackStarted, 0)
	return true
}

// Pause pauses a playing track
func (p *Playback) Pause(ctx context.Context) bool {
	if p.state != StatePlaying {
		return false
	}
	position := p.TimePosition()
	if pb := p.backendFor(p.current); pb != nil {
		if err := pb.Pause(ctx); err != nil {
			p.logger.Warn("failed to pause", "err", err)
			return false
		}
	}
	p.setState(StatePaused)
	p.trigger(EventTrackPlaybackPaused, position)
	return true
}

// Resume continues a paused track
func (p *Playback) Resume(ctx context.Context) bool {
	if p.state != StatePaused {
		return false
	}
	pb := p.backendFor(p.current)
	if pb == nil {
		return false
	}
	position := p.TimePosition()
	if err := pb.Resume(ctx); err != nil {
		p.logger.Warn("failed to resume", "err", err)
		return false
	}
	p.setState(StatePlaying)
	p.trigger(EventTrackPlaybackResumed, position)
	return true
}

// Stop stops playback, optionally forgetting the current track
func (p *Playback) Stop(ctx context.Context, clearCurrent bool) {
	if p.state != StateStopped {
		position := p.TimePosition()
		pb := p.backendFor(p.current)
		var err error
		if pb != nil {
			err = pb.Stop(ctx)
		}
		if err != nil {
			p.logger.Warn("failed to stop", "err", err)
		} else {
			p.setState(StateStopped)
			p.trigger(EventTrackPlaybackEnded, position)
		}
	}
	if clearCurrent {
		p.current = nil
	}
}

// changeTrack moves to tl while keeping the play/pause state
func (p *Playback) changeTrack(ctx context.Context, tl *types.TlTrack, step int) {
	old := p.state
	p.Stop(ctx, false)
	p.setCurrent(tl)
	if tl == nil {
		return
	}

	switch old {
	case StatePlaying:
		p.play(ctx, nil, step)
	case StatePaused:
		p.prepare(ctx, tl)
	}
}

// prepare loads tl without starting audio and enters the paused state
func (p *Playback) prepare(ctx context.Context, tl *types.TlTrack) {
	pb := p.backendFor(tl)
	if pb == nil {
		p.tracklist.MarkUnplayable(tl)
		return
	}
	if err := pb.ChangeTrack(ctx, tl.Track); err != nil {
		p.logger.Warn("failed to change track", "uri", tl.Track.URI, "err", err)
		p.tracklist.MarkUnplayable(tl)
		return
	}
	p.tracklist.MarkPlaying(tl)
	p.setState(StatePaused)
}

// Next skips to the following track
func (p *Playback) Next(ctx context.Context) {
	original := p.Current()
	if next := p.tracklist.NextTrack(original); next != nil {
		p.changeTrack(ctx, next, 1)
	} else {
		p.Stop(ctx, true)
	}
	p.tracklist.MarkPlayed(original)
}

// Previous goes back to the preceding track
func (p *Playback) Previous(ctx context.Context) {
	p.changeTrack(ctx, p.tracklist.PreviousTrack(p.Current()), -1)
}

// OnEndOfTrack handles the backend reporting that the current track ran out
func (p *Playback) OnEndOfTrack(ctx context.Context) {
	if p.state == StateStopped {
		return
	}
	original := p.Current()
	if next := p.tracklist.EOTTrack(original); next != nil {
		p.changeTrack(ctx, next, 1)
	} else {
		p.Stop(ctx, true)
	}
	p.tracklist.MarkPlayed(original)
}

// Seek moves within the current track. Seeking past the end skips to the
// next track instead.
func (p *Playback) Seek(ctx context.Context, positionMs int64) bool {
	if p.tracklist.Length() == 0 {
		return false
	}
	if p.state == StateStopped {
		p.Play(ctx, nil)
	}
	if p.current == nil {
		return false
	}

	if positionMs < 0 {
		positionMs = 0
	}
	if length := p.current.Track.Length; length > 0 && positionMs > length {
		p.Next(ctx)
		return true
	}

	pb := p.backendFor(p.current)
	if pb == nil {
		return false
	}
	if err := pb.Seek(ctx, positionMs); err != nil {
		p.logger.Warn("failed to seek", "position", positionMs, "err", err)
		return false
	}
	p.bus.Publish(Event{Type: EventSeeked, TimePosition: positionMs})
	return true
}

// onTracklistChange drops playback state that no longer refers to the list
func (p *Playback) onTracklistChange() {
	if p.tracklist.Length() == 0 {
		p.Stop(context.Background(), true)
		return
	}
	if p.current != nil && p.tracklist.Index(p.current.TLID) < 0 {
		p.current = nil
	}
}
