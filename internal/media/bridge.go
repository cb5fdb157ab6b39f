package media

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/austinkregel/local-media/mpdd/internal/core"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// Bridge keeps a Session in step with the core and executes the commands the
// session receives
type Bridge struct {
	core    *core.Core
	session Session
	logger  *log.Logger
}

// NewBridge connects session to c. Run starts the event loop.
func NewBridge(c *core.Core, session Session, logger *log.Logger) *Bridge {
	b := &Bridge{core: c, session: session, logger: logger}
	session.SetCommandHandler(b)
	return b
}

// snapshot is the player state a session shows
type snapshot struct {
	state    core.PlaybackState
	current  *types.TlTrack
	position int64
	options  core.Options
	volume   int
}

func (b *Bridge) snapshot(ctx context.Context) (snapshot, error) {
	var s snapshot
	err := b.core.Do(ctx, func(ctx context.Context) error {
		s.state = b.core.Playback.State()
		s.current = b.core.Playback.Current()
		s.position = b.core.Playback.TimePosition()
		s.options = b.core.Tracklist.Options()
		return nil
	})
	s.volume = b.core.Mixer.Volume()
	return s, err
}

// Run mirrors core events into the session until ctx is cancelled
func (b *Bridge) Run(ctx context.Context) error {
	listener := b.core.Bus.Subscribe()
	defer listener.Close()

	if err := b.syncAll(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-listener.C():
			b.handle(ctx, listener.Drain())
		}
	}
}

func (b *Bridge) handle(ctx context.Context, events []core.Event) {
	var player, options bool
	for _, e := range events {
		switch e.Type {
		case core.EventPlaybackStateChanged, core.EventTrackPlaybackStarted,
			core.EventTrackPlaybackEnded, core.EventStreamTitleChanged:
			player = true
		case core.EventSeeked:
			b.warn("position", b.session.UpdatePosition(msToDuration(e.TimePosition)))
		case core.EventOptionsChanged:
			options = true
		case core.EventVolumeChanged:
			b.warn("volume", b.session.UpdateVolume(float64(e.Volume)/100))
		case core.EventMuteChanged:
			volume := 0.0
			if !e.Mute {
				volume = float64(b.core.Mixer.Volume()) / 100
			}
			b.warn("volume", b.session.UpdateVolume(volume))
		}
	}
	if !player && !options {
		return
	}

	s, err := b.snapshot(ctx)
	if err != nil {
		b.logger.Debug("media session sync skipped", "err", err)
		return
	}
	if player {
		b.syncPlayer(s)
	}
	if options {
		b.syncOptions(s)
	}
}

func (b *Bridge) syncAll(ctx context.Context) error {
	s, err := b.snapshot(ctx)
	if err != nil {
		return err
	}
	b.syncPlayer(s)
	b.syncOptions(s)
	if s.volume >= 0 {
		b.warn("volume", b.session.UpdateVolume(float64(s.volume)/100))
	}
	return nil
}

func (b *Bridge) syncPlayer(s snapshot) {
	b.warn("metadata", b.session.UpdateMetadata(metadataFor(s.current)))
	b.warn("state", b.session.UpdatePlaybackState(sessionState(s.state), msToDuration(s.position)))
}

func (b *Bridge) syncOptions(s snapshot) {
	b.warn("shuffle", b.session.UpdateShuffle(s.options.Random))
	b.warn("loop status", b.session.UpdateLoopStatus(loopStatus(s.options)))
}

func (b *Bridge) warn(what string, err error) {
	if err != nil {
		b.logger.Debug("media session update failed", "update", what, "err", err)
	}
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func sessionState(s core.PlaybackState) PlaybackState {
	switch s {
	case core.StatePlaying:
		return StatePlaying
	case core.StatePaused:
		return StatePaused
	}
	return StateStopped
}

func loopStatus(o core.Options) LoopStatus {
	switch {
	case o.Repeat && o.Single:
		return LoopTrack
	case o.Repeat:
		return LoopPlaylist
	}
	return LoopNone
}

func metadataFor(tl *types.TlTrack) Metadata {
	if tl == nil {
		return Metadata{}
	}
	m := Metadata{
		TrackID:  tl.TLID,
		Title:    tl.Track.Name,
		Duration: msToDuration(tl.Track.Length),
		URL:      tl.Track.URI,
	}
	for _, a := range tl.Track.Artists {
		m.Artists = append(m.Artists, a.Name)
	}
	if tl.Track.Album != nil {
		m.Album = tl.Track.Album.Name
	}
	return m
}

// OnCommand runs a session command on the core
func (b *Bridge) OnCommand(cmd Command, data interface{}) error {
	b.logger.Debug("media command", "cmd", cmd)
	ctx := context.Background()

	switch cmd {
	case CmdSetVolume:
		v, ok := data.(float64)
		if !ok {
			return fmt.Errorf("invalid volume %v", data)
		}
		return b.core.Mixer.SetVolume(int(clamp(v, 0, 1)*100 + 0.5))
	}

	return b.core.Do(ctx, func(ctx context.Context) error {
		pb := b.core.Playback
		switch cmd {
		case CmdPlay:
			pb.Play(ctx, nil)
		case CmdPause:
			pb.Pause(ctx)
		case CmdPlayPause:
			if pb.State() == core.StatePlaying {
				pb.Pause(ctx)
			} else {
				pb.Play(ctx, nil)
			}
		case CmdStop:
			pb.Stop(ctx, false)
		case CmdNext:
			pb.Next(ctx)
		case CmdPrevious:
			pb.Previous(ctx)
		case CmdSeek:
			pos, ok := data.(time.Duration)
			if !ok {
				return fmt.Errorf("invalid seek position %v", data)
			}
			pb.Seek(ctx, pos.Milliseconds())
		case CmdSetShuffle:
			enabled, ok := data.(bool)
			if !ok {
				return fmt.Errorf("invalid shuffle value %v", data)
			}
			b.core.Tracklist.SetRandom(enabled)
		case CmdSetLoopStatus:
			status, ok := data.(LoopStatus)
			if !ok {
				return fmt.Errorf("invalid loop status %v", data)
			}
			switch status {
			case LoopNone:
				b.core.Tracklist.SetRepeat(false)
				b.core.Tracklist.SetSingle(false)
			case LoopTrack:
				b.core.Tracklist.SetRepeat(true)
				b.core.Tracklist.SetSingle(true)
			case LoopPlaylist:
				b.core.Tracklist.SetRepeat(true)
				b.core.Tracklist.SetSingle(false)
			default:
				return fmt.Errorf("unknown loop status %q", status)
			}
		default:
			return fmt.Errorf("unsupported command %s", cmd)
		}
		return nil
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
