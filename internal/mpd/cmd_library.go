package mpd

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

func libraryCommands() []*Command {
	query := []Param{{Name: "query", Variadic: true}}
	optionalPath := []Param{{Name: "uri", Optional: true}}
	return []*Command{
		{Name: "count", Params: query, Handle: handleCount},
		{Name: "find", Params: query, Handle: librarySearch(true)},
		{Name: "findadd", Params: query, Handle: librarySearchAdd(true)},
		{Name: "search", Params: query, Handle: librarySearch(false)},
		{Name: "searchadd", Params: query, Handle: librarySearchAdd(false)},
		{Name: "searchaddpl", Params: []Param{{Name: "name"}, {Name: "query", Variadic: true}}, Handle: handleSearchAddPl},
		{Name: "list", Params: []Param{{Name: "type"}, {Name: "query", Optional: true, Variadic: true}}, Handle: handleList},
		{Name: "listall", Params: optionalPath, Handle: handleListAll},
		{Name: "listallinfo", Params: optionalPath, Handle: handleListAllInfo},
		{Name: "lsinfo", Params: optionalPath, Handle: handleLsInfo},
		{Name: "update", Params: optionalPath, Handle: handleUpdate},
		{Name: "rescan", Params: optionalPath, Handle: handleUpdate},
	}
}

// UpdateJobs numbers library refreshes and allows one at a time
type UpdateJobs struct {
	mu      sync.Mutex
	running int
	last    int
}

// NewUpdateJobs creates an idle job tracker
func NewUpdateJobs() *UpdateJobs {
	return &UpdateJobs{}
}

// Start runs fn in the background and returns its job id. It refuses to
// start while another job is running.
func (u *UpdateJobs) Start(fn func()) (int, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.running != 0 {
		return 0, false
	}
	u.last++
	id := u.last
	u.running = id
	go func() {
		defer func() {
			u.mu.Lock()
			u.running = 0
			u.mu.Unlock()
		}()
		fn()
	}()
	return id, true
}

// Running returns the id of the running job, or 0
func (u *UpdateJobs) Running() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.running
}

func searchTracks(ctx context.Context, c *Context, args []string, exact bool) ([]types.Track, error) {
	query, err := QueryFromArgs(args)
	if err != nil {
		return nil, err
	}
	results, err := c.Core.Library.Search(ctx, query, nil, exact)
	if err != nil {
		return nil, err
	}
	var tracks []types.Track
	for _, r := range results {
		tracks = append(tracks, r.Tracks...)
	}
	return tracks, nil
}

func handleCount(ctx context.Context, c *Context, args Args) ([]string, error) {
	words := args.Strings(0)
	for _, w := range words {
		if strings.EqualFold(w, "group") {
			return nil, NotImplemented()
		}
	}
	tracks, err := searchTracks(ctx, c, words, true)
	if err != nil {
		return nil, err
	}
	var playtime int64
	for _, t := range tracks {
		playtime += t.Length
	}
	return []string{
		"songs: " + strconv.Itoa(len(tracks)),
		"playtime: " + strconv.FormatInt(playtime/1000, 10),
	}, nil
}

func librarySearch(exact bool) Handler {
	return func(ctx context.Context, c *Context, args Args) ([]string, error) {
		tracks, err := searchTracks(ctx, c, args.Strings(0), exact)
		if err != nil {
			return nil, err
		}
		return PlaylistLines(tracks, c.tagTypes), nil
	}
}

func librarySearchAdd(exact bool) Handler {
	return func(ctx context.Context, c *Context, args Args) ([]string, error) {
		tracks, err := searchTracks(ctx, c, args.Strings(0), exact)
		if err != nil {
			return nil, err
		}
		return nil, c.Core.Do(ctx, func(ctx context.Context) error {
			_, err := c.Core.Tracklist.Add(tracks, -1)
			return err
		})
	}
}

func handleSearchAddPl(ctx context.Context, c *Context, args Args) ([]string, error) {
	name := args.String(0)
	tracks, err := searchTracks(ctx, c, args.Strings(1), false)
	if err != nil {
		return nil, err
	}
	playlist, err := playlistByName(ctx, c, name, false)
	if err != nil {
		return nil, err
	}
	if playlist == nil {
		_, err := createPlaylist(ctx, c, name, "", tracks)
		return nil, err
	}
	updated := *playlist
	updated.Tracks = append(append([]types.Track{}, playlist.Tracks...), tracks...)
	return nil, savePlaylist(ctx, c, updated)
}

// listTagNames is how "list" labels each field in its output
var listTagNames = map[string]string{
	backend.FieldAlbum:       "Album",
	backend.FieldAlbumArtist: "AlbumArtist",
	backend.FieldArtist:      "Artist",
	backend.FieldComposer:    "Composer",
	backend.FieldDate:        "Date",
	backend.FieldGenre:       "Genre",
	backend.FieldPerformer:   "Performer",
}

func handleList(ctx context.Context, c *Context, args Args) ([]string, error) {
	name := strings.ToLower(args.String(0))
	field, ok := listFields[name]
	if !ok {
		return nil, unknownFieldError(name, listFields)
	}

	params := args.Strings(1)
	for _, p := range params {
		if strings.EqualFold(p, "group") {
			return nil, NotImplemented()
		}
	}

	var query types.Query
	switch {
	case len(params) == 0:
		query = types.Query{}
	case len(params) == 1:
		if field != backend.FieldAlbum {
			return nil, ArgError(`should be "Album" for 3 arguments`)
		}
		query = types.Query{}
		if params[0] != "" {
			query[backend.FieldArtist] = []string{params[0]}
		}
	default:
		q, err := QueryFromArgs(params)
		if err != nil {
			return nil, err
		}
		query = q
	}

	values, err := c.Core.Library.Distinct(ctx, field, query)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(values))
	for _, v := range values {
		lines = append(lines, listTagNames[field]+": "+v)
	}
	return lines, nil
}

func handleListAll(ctx context.Context, c *Context, args Args) ([]string, error) {
	var lines []string
	err := c.Browse(ctx, args.String(0), true, false, func(e BrowseEntry) error {
		if e.Ref != nil && e.Ref.Type == types.RefTrack {
			lines = append(lines, "file: "+e.Ref.URI)
		} else {
			lines = append(lines, "directory: "+strings.TrimLeft(e.Path, "/"))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, NoExistError("Not found")
	}
	return lines, nil
}

func handleListAllInfo(ctx context.Context, c *Context, args Args) ([]string, error) {
	var lines []string
	err := c.Browse(ctx, args.String(0), true, true, func(e BrowseEntry) error {
		switch {
		case e.Track != nil:
			lines = append(lines, TrackLines(*e.Track, -1, 0, c.tagTypes)...)
		case e.Ref != nil && e.Ref.Type == types.RefTrack:
		default:
			lines = append(lines, "directory: "+strings.TrimLeft(e.Path, "/"))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, NoExistError("Not found")
	}
	return lines, nil
}

func handleLsInfo(ctx context.Context, c *Context, args Args) ([]string, error) {
	path := args.String(0)
	var lines []string
	err := c.Browse(ctx, path, false, true, func(e BrowseEntry) error {
		switch {
		case e.Track != nil:
			lines = append(lines, TrackLines(*e.Track, -1, 0, c.tagTypes)...)
		case e.Ref != nil && e.Ref.Type == types.RefTrack:
		default:
			lines = append(lines, "directory: "+strings.TrimLeft(e.Path, "/"))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if strings.Trim(path, "/") == "" {
		playlists, err := handleListPlaylists(ctx, c, nil)
		if err != nil {
			return nil, err
		}
		lines = append(lines, playlists...)
	}
	return lines, nil
}

func handleUpdate(ctx context.Context, c *Context, args Args) ([]string, error) {
	uri := ""
	if path := args.String(0); strings.Trim(path, "/") != "" {
		resolved, err := c.ResolvePath(ctx, path)
		if err != nil {
			return nil, err
		}
		uri = resolved
	}

	logger := c.logger
	library := c.Core.Library
	id, ok := c.Options.Updates.Start(func() {
		if err := library.Refresh(context.Background(), uri); err != nil {
			logger.Error("library update failed", "uri", uri, "err", err)
		}
	})
	if !ok {
		return nil, newAck(AckUpdateAlready, "Already updating")
	}
	return []string{"updating_db: " + strconv.Itoa(id)}, nil
}
