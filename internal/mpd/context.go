package mpd

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/austinkregel/local-media/mpdd/internal/auth"
	"github.com/austinkregel/local-media/mpdd/internal/core"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// Options are the server wide settings every connection shares
type Options struct {
	Auth                  *auth.Manager
	CommandBlacklist      []string
	DefaultPlaylistScheme string

	// Updates tracks library refreshes started with "update". Connections
	// of one server share it.
	Updates *UpdateJobs
}

// Context is what command handlers see of the world: the shared core plus
// the state of their own connection
type Context struct {
	Core       *core.Core
	Dispatcher *Dispatcher
	Auth       *auth.Manager
	Host       string
	Options    Options

	uriMap   *URIMap
	tagTypes map[string]bool
	logger   *log.Logger
	closing  bool
}

// NewContext creates the state of a new connection from host
func NewContext(c *core.Core, opts Options, host string, logger *log.Logger) *Context {
	authManager := opts.Auth
	if authManager == nil {
		authManager = auth.NewManager("")
	}
	if opts.Updates == nil {
		opts.Updates = NewUpdateJobs()
	}
	ctx := &Context{
		Core:     c,
		Auth:     authManager,
		Host:     host,
		Options:  opts,
		tagTypes: make(map[string]bool, len(tagTypes)),
		logger:   logger,
	}
	for _, t := range tagTypes {
		ctx.tagTypes[t] = true
	}
	ctx.uriMap = NewURIMap(c.Playlists.List)
	return ctx
}

// URIMap returns the connection's name to URI map
func (c *Context) URIMap() *URIMap {
	return c.uriMap
}

// Close asks the session to drop the connection once the current response
// has been written
func (c *Context) Close() {
	c.closing = true
}

// Closing reports whether Close was called
func (c *Context) Closing() bool {
	return c.closing
}

// Logger returns the connection logger
func (c *Context) Logger() *log.Logger {
	return c.logger
}

// BrowseEntry is one node found while walking the virtual directory tree.
// Ref is nil for the starting directory; Track is set for tracks when the
// walk looks them up.
type BrowseEntry struct {
	Path  string
	Ref   *types.Ref
	Track *types.Track
}

// Browse walks the library below path depth first, calling fn for every
// node. path is a slash separated list of directory names as handed out by
// earlier listings. When recursive is set the starting directory is
// reported first and subdirectories are descended into.
func (c *Context) Browse(ctx context.Context, path string, recursive, lookup bool, fn func(BrowseEntry) error) error {
	rootPath, uri, err := c.resolvePath(ctx, path)
	if err != nil {
		return err
	}

	if recursive {
		if err := fn(BrowseEntry{Path: rootPath}); err != nil {
			return err
		}
	}

	type pending struct {
		path string
		uri  string
	}
	stack := []pending{{path: rootPath, uri: uri}}
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		refs, err := c.Core.Library.Browse(ctx, next.uri)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrNoBackend) {
				continue
			}
			return err
		}

		var children []pending
		for _, ref := range refs {
			if ref.Name == "" || ref.URI == "" {
				continue
			}
			ref := ref
			childPath := c.uriMap.Insert(next.path+"/"+strings.ReplaceAll(ref.Name, "/", ""), ref.URI, false)

			if ref.Type == types.RefTrack {
				entry := BrowseEntry{Path: childPath, Ref: &ref}
				if lookup {
					found, err := c.Core.Library.Lookup(ctx, ref.URI)
					if err != nil {
						return err
					}
					if tracks := found[ref.URI]; len(tracks) > 0 {
						entry.Track = &tracks[0]
					}
				}
				if err := fn(entry); err != nil {
					return err
				}
				continue
			}

			if err := fn(BrowseEntry{Path: childPath, Ref: &ref}); err != nil {
				return err
			}
			if recursive {
				children = append(children, pending{path: childPath, uri: ref.URI})
			}
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return nil
}

// ResolvePath returns the library URI of a browse path. The empty path is
// the root and resolves to "".
func (c *Context) ResolvePath(ctx context.Context, path string) (string, error) {
	_, uri, err := c.resolvePath(ctx, path)
	return uri, err
}

func (c *Context) resolvePath(ctx context.Context, path string) (string, string, error) {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	rootPath := strings.Join(append([]string{""}, parts...), "/")

	if uri, ok := c.uriMap.URIFromName(rootPath); ok {
		return rootPath, uri, nil
	}

	uri := ""
	for _, part := range parts {
		refs, err := c.Core.Library.Browse(ctx, uri)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return "", "", err
		}
		found := false
		for _, ref := range refs {
			if ref.Type != types.RefTrack && ref.Name == part {
				uri = ref.URI
				found = true
				break
			}
		}
		if !found {
			return "", "", NoExistError("Not found")
		}
	}
	return c.uriMap.Insert(rootPath, uri, false), uri, nil
}

// LookupTracks resolves a URI to tracks, or to the tracks below a browse
// path when uri names a directory
func (c *Context) LookupTracks(ctx context.Context, uri string) ([]types.Track, error) {
	found, err := c.Core.Library.Lookup(ctx, uri)
	if err != nil {
		return nil, err
	}
	if tracks := found[uri]; len(tracks) > 0 {
		return tracks, nil
	}

	var tracks []types.Track
	err = c.Browse(ctx, uri, true, true, func(e BrowseEntry) error {
		if e.Track != nil {
			tracks = append(tracks, *e.Track)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tracks, nil
}
