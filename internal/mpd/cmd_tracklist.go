package mpd

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

func tracklistCommands() []*Command {
	return []*Command{
		{Name: "add", Params: []Param{{Name: "uri"}}, Handle: handleAdd},
		{Name: "addid", Params: []Param{{Name: "uri"}, {Name: "songpos", Coerce: Uint, Optional: true}}, Handle: handleAddID},
		{Name: "clear", Handle: handleClear},
		{Name: "delete", Params: []Param{{Name: "range", Coerce: RangeArg}}, Handle: handleDelete},
		{Name: "deleteid", Params: []Param{{Name: "songid", Coerce: Uint}}, Handle: handleDeleteID},
		{Name: "move", Params: []Param{{Name: "range", Coerce: RangeArg}, {Name: "to", Coerce: Uint}}, Handle: handleMove},
		{Name: "moveid", Params: []Param{{Name: "songid", Coerce: Uint}, {Name: "to", Coerce: Uint}}, Handle: handleMoveID},
		{Name: "playlist", Handle: handlePlaylistInfo},
		{Name: "playlistfind", Params: []Param{{Name: "tag"}, {Name: "needle"}, {Name: "more", Optional: true, Variadic: true}}, Handle: tracklistSearch(true)},
		{Name: "playlistsearch", Params: []Param{{Name: "tag"}, {Name: "needle"}, {Name: "more", Optional: true, Variadic: true}}, Handle: tracklistSearch(false)},
		{Name: "playlistid", Params: []Param{{Name: "songid", Coerce: Uint, Optional: true}}, Handle: handlePlaylistID},
		{Name: "playlistinfo", Params: []Param{{Name: "range", Optional: true}}, Handle: handlePlaylistInfo},
		{Name: "plchanges", Params: []Param{{Name: "version", Coerce: Int}}, Handle: handlePlChanges},
		{Name: "plchangesposid", Params: []Param{{Name: "version", Coerce: Int}}, Handle: handlePlChangesPosID},
		{Name: "shuffle", Params: []Param{{Name: "range", Coerce: RangeArg, Optional: true}}, Handle: handleShuffle},
		{Name: "swap", Params: []Param{{Name: "pos1", Coerce: Uint}, {Name: "pos2", Coerce: Uint}}, Handle: handleSwap},
		{Name: "swapid", Params: []Param{{Name: "songid1", Coerce: Uint}, {Name: "songid2", Coerce: Uint}}, Handle: handleSwapID},
		{Name: "prio", Params: []Param{{Name: "priority", Coerce: Uint}, {Name: "ranges", Variadic: true}}, Handle: handleNotImplemented},
		{Name: "prioid", Params: []Param{{Name: "priority", Coerce: Uint}, {Name: "ids", Variadic: true}}, Handle: handleNotImplemented},
		{Name: "rangeid", Params: []Param{{Name: "songid", Coerce: Uint}, {Name: "range"}}, Handle: handleNotImplemented},
		{Name: "addtagid", Params: []Param{{Name: "songid", Coerce: Uint}, {Name: "tag"}, {Name: "value"}}, Handle: handleNotImplemented},
		{Name: "cleartagid", Params: []Param{{Name: "songid", Coerce: Uint}, {Name: "tag", Optional: true}}, Handle: handleNotImplemented},
	}
}

// resolveTracks turns a URI or a browse path into tracks
func resolveTracks(ctx context.Context, c *Context, uri string) ([]types.Track, error) {
	tracks, err := c.LookupTracks(ctx, uri)
	var ack *AckError
	if errors.As(err, &ack) && ack.Code == AckNoExist {
		return nil, NoExistError("directory or file not found")
	}
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, NoExistError("directory or file not found")
	}
	return tracks, nil
}

func handleAdd(ctx context.Context, c *Context, args Args) ([]string, error) {
	uri := args.String(0)
	if strings.Trim(uri, "/") == "" {
		return nil, nil
	}
	tracks, err := resolveTracks(ctx, c, uri)
	if err != nil {
		return nil, err
	}
	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		_, err := c.Core.Tracklist.Add(tracks, -1)
		return err
	})
}

func handleAddID(ctx context.Context, c *Context, args Args) ([]string, error) {
	uri := args.String(0)
	found, err := c.Core.Library.Lookup(ctx, uri)
	if err != nil {
		return nil, err
	}
	tracks := found[uri]
	if len(tracks) == 0 {
		return nil, NoExistError("No such song")
	}

	var lines []string
	err = c.Core.Do(ctx, func(ctx context.Context) error {
		at := args.Int(1, -1)
		if at > c.Core.Tracklist.Length() {
			return ArgError("Bad song index")
		}
		added, err := c.Core.Tracklist.Add(tracks, at)
		if err != nil {
			return err
		}
		lines = []string{"Id: " + strconv.Itoa(added[0].TLID)}
		return nil
	})
	return lines, err
}

func handleClear(ctx context.Context, c *Context, args Args) ([]string, error) {
	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		c.Core.Tracklist.Clear()
		return nil
	})
}

func handleDelete(ctx context.Context, c *Context, args Args) ([]string, error) {
	r := args.Range(0)
	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		slots := c.Core.Tracklist.Slice(r.Start, r.End)
		if len(slots) == 0 {
			return ArgError("Bad song index")
		}
		c.Core.Tracklist.Remove(tlidsOf(slots))
		return nil
	})
}

func tlidsOf(slots []types.TlTrack) []int {
	ids := make([]int, len(slots))
	for i, tl := range slots {
		ids[i] = tl.TLID
	}
	return ids
}

func handleDeleteID(ctx context.Context, c *Context, args Args) ([]string, error) {
	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		if removed := c.Core.Tracklist.Remove([]int{args.Int(0, 0)}); len(removed) == 0 {
			return NoExistError("No such song")
		}
		return nil
	})
}

func handleMove(ctx context.Context, c *Context, args Args) ([]string, error) {
	r := args.Range(0)
	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		end := r.End
		if end < 0 {
			end = c.Core.Tracklist.Length()
		}
		return c.Core.Tracklist.Move(r.Start, end, args.Int(1, 0))
	})
}

func handleMoveID(ctx context.Context, c *Context, args Args) ([]string, error) {
	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		pos := c.Core.Tracklist.Index(args.Int(0, 0))
		if pos < 0 {
			return NoExistError("No such song")
		}
		return c.Core.Tracklist.Move(pos, pos+1, args.Int(1, 0))
	})
}

// tracklistSearch matches "tag needle" pairs against the tracklist
func tracklistSearch(exact bool) Handler {
	return func(ctx context.Context, c *Context, args Args) ([]string, error) {
		query, err := QueryFromArgs(args.Strings(0))
		if err != nil {
			return nil, err
		}
		var lines []string
		err = c.Core.Do(ctx, func(ctx context.Context) error {
			for pos, tl := range c.Core.Tracklist.TlTracks() {
				if backend.MatchTrack(tl.Track, query, exact) {
					lines = append(lines, TrackLines(tl.Track, pos, tl.TLID, c.tagTypes)...)
				}
			}
			return nil
		})
		return lines, err
	}
}

func handlePlaylistID(ctx context.Context, c *Context, args Args) ([]string, error) {
	var lines []string
	err := c.Core.Do(ctx, func(ctx context.Context) error {
		tl := c.Core.Tracklist
		if !args.Has(0) {
			lines = TlTrackLines(tl.TlTracks(), 0, c.tagTypes)
			return nil
		}
		pos := tl.Index(args.Int(0, 0))
		if pos < 0 {
			return NoExistError("No such song")
		}
		lines = TlTrackLines(tl.Slice(pos, pos+1), pos, c.tagTypes)
		return nil
	})
	return lines, err
}

func handlePlaylistInfo(ctx context.Context, c *Context, args Args) ([]string, error) {
	r := Range{Start: 0, End: -1}
	if raw := args.String(0); raw != "" && raw != "-1" {
		v, err := RangeArg(raw)
		if err != nil {
			return nil, ArgError("%s", err)
		}
		r = v.(Range)
	}

	var lines []string
	err := c.Core.Do(ctx, func(ctx context.Context) error {
		tl := c.Core.Tracklist
		if r.Start > 0 && r.Start >= tl.Length() {
			return ArgError("Bad song index")
		}
		lines = TlTrackLines(tl.Slice(r.Start, r.End), r.Start, c.tagTypes)
		return nil
	})
	return lines, err
}

func handlePlChanges(ctx context.Context, c *Context, args Args) ([]string, error) {
	var lines []string
	err := c.Core.Do(ctx, func(ctx context.Context) error {
		if args.Int(0, 0) < c.Core.Tracklist.Version() {
			lines = TlTrackLines(c.Core.Tracklist.TlTracks(), 0, c.tagTypes)
		}
		return nil
	})
	return lines, err
}

func handlePlChangesPosID(ctx context.Context, c *Context, args Args) ([]string, error) {
	var lines []string
	err := c.Core.Do(ctx, func(ctx context.Context) error {
		if args.Int(0, 0) == c.Core.Tracklist.Version() {
			return nil
		}
		for pos, tl := range c.Core.Tracklist.TlTracks() {
			lines = append(lines, "cpos: "+strconv.Itoa(pos), "Id: "+strconv.Itoa(tl.TLID))
		}
		return nil
	})
	return lines, err
}

func handleShuffle(ctx context.Context, c *Context, args Args) ([]string, error) {
	r := args.Range(0)
	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		return c.Core.Tracklist.Shuffle(r.Start, r.End)
	})
}

func handleSwap(ctx context.Context, c *Context, args Args) ([]string, error) {
	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		return c.Core.Tracklist.Swap(args.Int(0, 0), args.Int(1, 0))
	})
}

func handleSwapID(ctx context.Context, c *Context, args Args) ([]string, error) {
	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		a := c.Core.Tracklist.Index(args.Int(0, 0))
		b := c.Core.Tracklist.Index(args.Int(1, 0))
		if a < 0 || b < 0 {
			return NoExistError("No such song")
		}
		return c.Core.Tracklist.Swap(a, b)
	})
}
