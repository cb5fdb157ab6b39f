package mpd

import (
	"context"
	"strconv"
	"strings"

	"github.com/austinkregel/local-media/mpdd/internal/core"
)

func playbackCommands() []*Command {
	return []*Command{
		{Name: "consume", Params: []Param{{Name: "state", Coerce: Bool}}, Handle: setOption((*core.Tracklist).SetConsume)},
		{Name: "random", Params: []Param{{Name: "state", Coerce: Bool}}, Handle: setOption((*core.Tracklist).SetRandom)},
		{Name: "repeat", Params: []Param{{Name: "state", Coerce: Bool}}, Handle: setOption((*core.Tracklist).SetRepeat)},
		{Name: "single", Params: []Param{{Name: "state", Coerce: Bool}}, Handle: setOption((*core.Tracklist).SetSingle)},
		{Name: "crossfade", Params: []Param{{Name: "seconds", Coerce: Uint}}, Handle: handleNotImplemented},
		{Name: "mixrampdb", Params: []Param{{Name: "decibels", Coerce: Float}}, Handle: handleNotImplemented},
		{Name: "mixrampdelay", Params: []Param{{Name: "seconds", Coerce: Uint}}, Handle: handleNotImplemented},
		{Name: "replay_gain_mode", Params: []Param{{Name: "mode"}}, Handle: handleReplayGainMode},
		{Name: "replay_gain_status", Handle: handleReplayGainStatus},
		{Name: "setvol", Params: []Param{{Name: "volume", Coerce: Int}}, Handle: handleSetVol},
		{Name: "volume", Params: []Param{{Name: "change", Coerce: Int}}, Handle: handleVolume},
		{Name: "next", Handle: playbackAction((*core.Playback).Next)},
		{Name: "previous", Handle: playbackAction((*core.Playback).Previous)},
		{Name: "stop", Handle: handleStop},
		{Name: "pause", Params: []Param{{Name: "state", Coerce: Bool, Optional: true}}, Handle: handlePause},
		{Name: "play", Params: []Param{{Name: "songpos", Coerce: Int, Optional: true}}, Handle: handlePlay},
		{Name: "playid", Params: []Param{{Name: "songid", Coerce: Int, Optional: true}}, Handle: handlePlayID},
		{Name: "seek", Params: []Param{{Name: "songpos", Coerce: Uint}, {Name: "time", Coerce: Float}}, Handle: handleSeek},
		{Name: "seekid", Params: []Param{{Name: "songid", Coerce: Uint}, {Name: "time", Coerce: Float}}, Handle: handleSeekID},
		{Name: "seekcur", Params: []Param{{Name: "time"}}, Handle: handleSeekCur},
	}
}

func handleNotImplemented(ctx context.Context, c *Context, args Args) ([]string, error) {
	return nil, NotImplemented()
}

func setOption(set func(*core.Tracklist, bool)) Handler {
	return func(ctx context.Context, c *Context, args Args) ([]string, error) {
		return nil, c.Core.Do(ctx, func(ctx context.Context) error {
			set(c.Core.Tracklist, args.Bool(0, false))
			return nil
		})
	}
}

func playbackAction(action func(*core.Playback, context.Context)) Handler {
	return func(ctx context.Context, c *Context, args Args) ([]string, error) {
		return nil, c.Core.Do(ctx, func(ctx context.Context) error {
			action(c.Core.Playback, ctx)
			return nil
		})
	}
}

func handleReplayGainMode(ctx context.Context, c *Context, args Args) ([]string, error) {
	switch args.String(0) {
	case "off", "track", "album", "auto":
		return nil, NotImplemented()
	}
	return nil, ArgError("Unrecognized replay gain mode")
}

func handleReplayGainStatus(ctx context.Context, c *Context, args Args) ([]string, error) {
	return []string{"replay_gain_mode: off"}, nil
}

func clampVolume(v int) int {
	return min(max(v, 0), 100)
}

func handleSetVol(ctx context.Context, c *Context, args Args) ([]string, error) {
	if err := c.Core.Mixer.SetVolume(clampVolume(args.Int(0, 0))); err != nil {
		return nil, SystemError("problems setting volume")
	}
	return nil, nil
}

func handleVolume(ctx context.Context, c *Context, args Args) ([]string, error) {
	change := args.Int(0, 0)
	if change < -100 || change > 100 {
		return nil, ArgError("Invalid volume value")
	}
	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		old := c.Core.Mixer.Volume()
		if old < 0 {
			return SystemError("problems setting volume")
		}
		if err := c.Core.Mixer.SetVolume(clampVolume(old + change)); err != nil {
			return SystemError("problems setting volume")
		}
		return nil
	})
}

func handleStop(ctx context.Context, c *Context, args Args) ([]string, error) {
	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		c.Core.Playback.Stop(ctx, false)
		return nil
	})
}

func handlePause(ctx context.Context, c *Context, args Args) ([]string, error) {
	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		pb := c.Core.Playback
		if !args.Has(0) {
			switch pb.State() {
			case core.StatePlaying:
				pb.Pause(ctx)
			case core.StatePaused:
				pb.Resume(ctx)
			}
			return nil
		}
		if args.Bool(0, false) {
			pb.Pause(ctx)
		} else {
			pb.Resume(ctx)
		}
		return nil
	})
}

// playMinusOne resumes or restarts whatever is current, for play -1
func playMinusOne(ctx context.Context, c *Context) {
	pb := c.Core.Playback
	switch {
	case pb.State() == core.StatePlaying:
	case pb.State() == core.StatePaused:
		pb.Resume(ctx)
	case pb.Current() != nil:
		pb.Play(ctx, pb.Current())
	case c.Core.Tracklist.Length() > 0:
		pb.Play(ctx, c.Core.Tracklist.At(0))
	}
}

func playPosition(ctx context.Context, c *Context, pos int) error {
	tl := c.Core.Tracklist.At(pos)
	if tl == nil {
		return ArgError("Bad song index")
	}
	c.Core.Playback.Play(ctx, tl)
	return nil
}

func playTLID(ctx context.Context, c *Context, tlid int) error {
	tl := c.Core.Tracklist.FilterTLID(tlid)
	if tl == nil {
		return NoExistError("No such song")
	}
	c.Core.Playback.Play(ctx, tl)
	return nil
}

func handlePlay(ctx context.Context, c *Context, args Args) ([]string, error) {
	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		switch pos := args.Int(0, -2); {
		case pos == -2:
			c.Core.Playback.Play(ctx, nil)
		case pos == -1:
			playMinusOne(ctx, c)
		default:
			return playPosition(ctx, c, pos)
		}
		return nil
	})
}

func handlePlayID(ctx context.Context, c *Context, args Args) ([]string, error) {
	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		switch tlid := args.Int(0, -2); {
		case tlid == -2:
			c.Core.Playback.Play(ctx, nil)
		case tlid == -1:
			playMinusOne(ctx, c)
		default:
			return playTLID(ctx, c, tlid)
		}
		return nil
	})
}

func seekMs(seconds float64) int64 {
	return int64(seconds * 1000)
}

func handleSeek(ctx context.Context, c *Context, args Args) ([]string, error) {
	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		pos := args.Int(0, 0)
		current := c.Core.Playback.Current()
		if current == nil || c.Core.Tracklist.Index(current.TLID) != pos {
			if err := playPosition(ctx, c, pos); err != nil {
				return err
			}
		}
		c.Core.Playback.Seek(ctx, seekMs(args.Float(1, 0)))
		return nil
	})
}

func handleSeekID(ctx context.Context, c *Context, args Args) ([]string, error) {
	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		tlid := args.Int(0, 0)
		current := c.Core.Playback.Current()
		if current == nil || current.TLID != tlid {
			if err := playTLID(ctx, c, tlid); err != nil {
				return err
			}
		}
		c.Core.Playback.Seek(ctx, seekMs(args.Float(1, 0)))
		return nil
	})
}

func handleSeekCur(ctx context.Context, c *Context, args Args) ([]string, error) {
	raw := args.String(0)
	seconds, err := strconv.ParseFloat(strings.TrimPrefix(raw, "+"), 64)
	if err != nil {
		return nil, ArgError("Float expected: %s", raw)
	}
	relative := strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "-")

	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		position := seekMs(seconds)
		if relative {
			position += c.Core.Playback.TimePosition()
		}
		c.Core.Playback.Seek(ctx, position)
		return nil
	})
}
