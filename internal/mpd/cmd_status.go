package mpd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/core"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

func statusCommands() []*Command {
	return []*Command{
		{Name: "clearerror", Handle: handlePing},
		{Name: "currentsong", Handle: handleCurrentSong},
		{Name: "idle", NoBatch: true, Params: []Param{{Name: "subsystems", Optional: true, Variadic: true}}, Handle: handleIdle},
		{Name: "noidle", NoBatch: true, Handle: handleNoIdle},
		{Name: "stats", Handle: handleStats},
		{Name: "status", Handle: handleStatus},
	}
}

func handleCurrentSong(ctx context.Context, c *Context, args Args) ([]string, error) {
	var lines []string
	err := c.Core.Do(ctx, func(ctx context.Context) error {
		current := c.Core.Playback.Current()
		if current == nil {
			return nil
		}
		pos := c.Core.Tracklist.Index(current.TLID)
		lines = TrackLines(current.Track, pos, current.TLID, c.tagTypes)
		return nil
	})
	return lines, err
}

func handleIdle(ctx context.Context, c *Context, args Args) ([]string, error) {
	subsystems := args.Strings(0)
	if len(subsystems) == 0 {
		subsystems = core.Subsystems
	}
	for _, s := range subsystems {
		if !isSubsystem(s) {
			return nil, ArgError("Unrecognized idle event: %s", s)
		}
	}
	return c.Dispatcher.subscribe(subsystems), nil
}

func isSubsystem(name string) bool {
	for _, s := range core.Subsystems {
		if s == name {
			return true
		}
	}
	return false
}

func handleNoIdle(ctx context.Context, c *Context, args Args) ([]string, error) {
	c.Dispatcher.unsubscribe()
	return nil, nil
}

func handleStats(ctx context.Context, c *Context, args Args) ([]string, error) {
	results, err := c.Core.Library.Search(ctx, types.Query{}, nil, false)
	if err != nil {
		return nil, err
	}
	songs := 0
	var playtime int64
	for _, r := range results {
		songs += len(r.Tracks)
		for _, t := range r.Tracks {
			playtime += t.Length
		}
	}
	artists, err := c.Core.Library.Distinct(ctx, backend.FieldArtist, nil)
	if err != nil {
		return nil, err
	}
	albums, err := c.Core.Library.Distinct(ctx, backend.FieldAlbum, nil)
	if err != nil {
		return nil, err
	}

	return []string{
		"artists: " + strconv.Itoa(len(artists)),
		"albums: " + strconv.Itoa(len(albums)),
		"songs: " + strconv.Itoa(songs),
		"uptime: " + strconv.FormatInt(int64(c.Core.Uptime().Seconds()), 10),
		"db_playtime: " + strconv.FormatInt(playtime/1000, 10),
		"db_update: 0",
		"playtime: 0",
	}, nil
}

func handleStatus(ctx context.Context, c *Context, args Args) ([]string, error) {
	var lines []string
	add := func(key, value string) {
		lines = append(lines, key+": "+value)
	}

	err := c.Core.Do(ctx, func(ctx context.Context) error {
		tl := c.Core.Tracklist
		pb := c.Core.Playback
		opts := tl.Options()

		add("volume", strconv.Itoa(c.Core.Mixer.Volume()))
		add("repeat", boolDigit(opts.Repeat))
		add("random", boolDigit(opts.Random))
		add("single", boolDigit(opts.Single))
		add("consume", boolDigit(opts.Consume))
		add("playlist", strconv.Itoa(tl.Version()))
		add("playlistlength", strconv.Itoa(tl.Length()))
		add("mixrampdb", "0.000000")
		add("state", playbackStateName(pb.State()))

		current := pb.Current()
		if current != nil {
			if pos := tl.Index(current.TLID); pos >= 0 {
				add("song", strconv.Itoa(pos))
				add("songid", strconv.Itoa(current.TLID))
			}
		}
		if next := tl.NextTrack(current); next != nil {
			add("nextsong", strconv.Itoa(tl.Index(next.TLID)))
			add("nextsongid", strconv.Itoa(next.TLID))
		}

		if current != nil && pb.State() != core.StateStopped {
			position := pb.TimePosition()
			length := current.Track.Length
			add("time", fmt.Sprintf("%d:%d", position/1000, length/1000))
			add("elapsed", fmt.Sprintf("%.3f", float64(position)/1000))
			if length > 0 {
				add("duration", fmt.Sprintf("%.3f", float64(length)/1000))
			}
			add("bitrate", strconv.Itoa(current.Track.Bitrate))
		}
		if job := c.Options.Updates.Running(); job != 0 {
			add("updating_db", strconv.Itoa(job))
		}
		return nil
	})
	return lines, err
}
