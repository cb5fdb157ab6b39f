package mpd

import (
	"context"
	"errors"

	"github.com/austinkregel/local-media/mpdd/internal/core"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

func storedPlaylistCommands() []*Command {
	return []*Command{
		{Name: "listplaylist", Params: []Param{{Name: "name"}}, Handle: handleListPlaylist},
		{Name: "listplaylistinfo", Params: []Param{{Name: "name"}}, Handle: handleListPlaylistInfo},
		{Name: "listplaylists", Handle: handleListPlaylists},
		{Name: "load", Params: []Param{{Name: "name"}, {Name: "range", Coerce: RangeArg, Optional: true}}, Handle: handleLoad},
		{Name: "playlistadd", Params: []Param{{Name: "name"}, {Name: "uri"}}, Handle: handlePlaylistAdd},
		{Name: "playlistclear", Params: []Param{{Name: "name"}}, Handle: handlePlaylistClear},
		{Name: "playlistdelete", Params: []Param{{Name: "name"}, {Name: "songpos", Coerce: Uint}}, Handle: handlePlaylistDelete},
		{Name: "playlistmove", Params: []Param{{Name: "name"}, {Name: "from", Coerce: Uint}, {Name: "to", Coerce: Uint}}, Handle: handlePlaylistMove},
		{Name: "rename", Params: []Param{{Name: "name"}, {Name: "new_name"}}, Handle: handleRename},
		{Name: "rm", Params: []Param{{Name: "name"}}, Handle: handleRm},
		{Name: "save", Params: []Param{{Name: "name"}}, Handle: handleSave},
	}
}

// playlistByName looks a stored playlist up by its protocol name. A missing
// playlist is nil, or a no-exist error when mustExist is set.
func playlistByName(ctx context.Context, c *Context, name string, mustExist bool) (*types.Playlist, error) {
	var playlist *types.Playlist
	if uri, ok := c.uriMap.PlaylistURIFromName(ctx, name); ok {
		pl, err := c.Core.Playlists.Lookup(ctx, uri)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		playlist = pl
	}
	if playlist == nil && mustExist {
		return nil, NoExistError("No such playlist")
	}
	return playlist, nil
}

// createPlaylist stores a new playlist in the configured default backend
func createPlaylist(ctx context.Context, c *Context, name, scheme string, tracks []types.Track) (*types.Playlist, error) {
	if scheme == "" {
		scheme = c.Options.DefaultPlaylistScheme
	}
	created, err := c.Core.Playlists.Create(ctx, name, scheme)
	if err != nil {
		c.logger.Warn("failed to create playlist", "name", name, "scheme", scheme, "err", err)
		return nil, SystemError("Failed to create playlist")
	}
	created.Tracks = tracks
	saved, err := c.Core.Playlists.Save(ctx, *created)
	if err != nil {
		return nil, SystemError("Failed to save playlist")
	}
	c.uriMap.Insert(playlistNameReplacer.Replace(name), saved.URI, true)
	return saved, nil
}

func savePlaylist(ctx context.Context, c *Context, playlist types.Playlist) error {
	if _, err := c.Core.Playlists.Save(ctx, playlist); err != nil {
		return SystemError("Failed to save playlist")
	}
	return nil
}

func handleListPlaylist(ctx context.Context, c *Context, args Args) ([]string, error) {
	playlist, err := playlistByName(ctx, c, args.String(0), true)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(playlist.Tracks))
	for _, t := range playlist.Tracks {
		lines = append(lines, "file: "+t.URI)
	}
	return lines, nil
}

func handleListPlaylistInfo(ctx context.Context, c *Context, args Args) ([]string, error) {
	playlist, err := playlistByName(ctx, c, args.String(0), true)
	if err != nil {
		return nil, err
	}
	return PlaylistLines(playlist.Tracks, c.tagTypes), nil
}

func handleListPlaylists(ctx context.Context, c *Context, args Args) ([]string, error) {
	refs, err := c.Core.Playlists.List(ctx)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, ref := range refs {
		name, ok := c.uriMap.PlaylistNameFromURI(ctx, ref.URI)
		if !ok {
			continue
		}
		var modified int64
		if pl, err := c.Core.Playlists.Lookup(ctx, ref.URI); err == nil {
			modified = pl.LastModified
		}
		lines = append(lines, "playlist: "+name, "Last-Modified: "+formatLastModified(modified))
	}
	return lines, nil
}

func handleLoad(ctx context.Context, c *Context, args Args) ([]string, error) {
	playlist, err := playlistByName(ctx, c, args.String(0), true)
	if err != nil {
		return nil, err
	}
	tracks := playlist.Tracks
	r := args.Range(1)
	if r.Start > len(tracks) {
		return nil, ArgError("Bad song index")
	}
	end := r.End
	if end < 0 || end > len(tracks) {
		end = len(tracks)
	}
	tracks = tracks[r.Start:end]

	return nil, c.Core.Do(ctx, func(ctx context.Context) error {
		_, err := c.Core.Tracklist.Add(tracks, -1)
		return err
	})
}

func handlePlaylistAdd(ctx context.Context, c *Context, args Args) ([]string, error) {
	name := args.String(0)
	tracks, err := resolveTracks(ctx, c, args.String(1))
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

func handlePlaylistClear(ctx context.Context, c *Context, args Args) ([]string, error) {
	name := args.String(0)
	playlist, err := playlistByName(ctx, c, name, false)
	if err != nil {
		return nil, err
	}
	if playlist == nil {
		_, err := createPlaylist(ctx, c, name, "", nil)
		return nil, err
	}
	updated := *playlist
	updated.Tracks = nil
	return nil, savePlaylist(ctx, c, updated)
}

func handlePlaylistDelete(ctx context.Context, c *Context, args Args) ([]string, error) {
	playlist, err := playlistByName(ctx, c, args.String(0), true)
	if err != nil {
		return nil, err
	}
	pos := args.Int(1, 0)
	if pos >= len(playlist.Tracks) {
		return nil, ArgError("Bad song index")
	}
	updated := *playlist
	updated.Tracks = append(append([]types.Track{}, playlist.Tracks[:pos]...), playlist.Tracks[pos+1:]...)
	return nil, savePlaylist(ctx, c, updated)
}

func handlePlaylistMove(ctx context.Context, c *Context, args Args) ([]string, error) {
	from, to := args.Int(1, 0), args.Int(2, 0)
	if from == to {
		return nil, nil
	}
	playlist, err := playlistByName(ctx, c, args.String(0), true)
	if err != nil {
		return nil, err
	}
	n := len(playlist.Tracks)
	if from >= n || to >= n {
		return nil, ArgError("Bad song index")
	}
	tracks := append([]types.Track{}, playlist.Tracks...)
	moved := tracks[from]
	tracks = append(tracks[:from], tracks[from+1:]...)
	tracks = append(tracks[:to], append([]types.Track{moved}, tracks[to:]...)...)

	updated := *playlist
	updated.Tracks = tracks
	return nil, savePlaylist(ctx, c, updated)
}

func handleRename(ctx context.Context, c *Context, args Args) ([]string, error) {
	old, err := playlistByName(ctx, c, args.String(0), true)
	if err != nil {
		return nil, err
	}
	newName := args.String(1)
	existing, err := playlistByName(ctx, c, newName, false)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ExistError("Playlist already exists")
	}

	if _, err := createPlaylist(ctx, c, newName, types.URIScheme(old.URI), old.Tracks); err != nil {
		return nil, err
	}
	return nil, c.Core.Playlists.Delete(ctx, old.URI)
}

func handleRm(ctx context.Context, c *Context, args Args) ([]string, error) {
	uri, ok := c.uriMap.PlaylistURIFromName(ctx, args.String(0))
	if !ok {
		return nil, NoExistError("No such playlist")
	}
	if err := c.Core.Playlists.Delete(ctx, uri); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, NoExistError("No such playlist")
		}
		return nil, err
	}
	return nil, nil
}

func handleSave(ctx context.Context, c *Context, args Args) ([]string, error) {
	var tracks []types.Track
	err := c.Core.Do(ctx, func(ctx context.Context) error {
		for _, tl := range c.Core.Tracklist.TlTracks() {
			tracks = append(tracks, tl.Track)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	name := args.String(0)
	playlist, err := playlistByName(ctx, c, name, false)
	if err != nil {
		return nil, err
	}
	if playlist == nil {
		_, err := createPlaylist(ctx, c, name, "", tracks)
		return nil, err
	}
	updated := *playlist
	updated.Tracks = tracks
	return nil, savePlaylist(ctx, c, updated)
}
