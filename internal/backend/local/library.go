package local

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// Scheme is the URI scheme of local files
const Scheme = "local"

const (
	rootURI        = Scheme + ":directory"
	trackPrefix    = Scheme + ":track:"
	directoryStart = rootURI + ":"
	albumPrefix    = Scheme + ":album:"
)

func escapePath(rel string) string {
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// TrackURI returns the URI of the file at rel below the library root
func TrackURI(rel string) string {
	return trackPrefix + escapePath(rel)
}

// DirectoryURI returns the URI of the directory at rel; "" is the root
func DirectoryURI(rel string) string {
	if rel == "" {
		return rootURI
	}
	return directoryStart + escapePath(rel)
}

// index is an immutable snapshot of one scan
type index struct {
	tracks map[string]types.Track
	all    []types.Track
	dirs   map[string][]types.Ref
	files  map[string]string // track uri to file path
}

func newIndex() *index {
	return &index{
		tracks: make(map[string]types.Track),
		dirs:   map[string][]types.Ref{rootURI: nil},
		files:  make(map[string]string),
	}
}

// rootNames names each media dir in the browse tree. A single media dir is
// the root itself.
func rootNames(dirs []string) []string {
	names := make([]string, len(dirs))
	if len(dirs) == 1 {
		return names
	}
	seen := make(map[string]int)
	for i, d := range dirs {
		name := filepath.Base(filepath.Clean(d))
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s (%d)", name, n)
		}
		names[i] = name
	}
	return names
}

func buildIndex(dirs []string, files []FileInfo) *index {
	idx := newIndex()
	names := rootNames(dirs)
	nfo := newNFOCache()
	seenDirs := make(map[string]bool)

	for _, f := range files {
		rel := f.RelPath
		if f.Root < len(names) && names[f.Root] != "" {
			rel = names[f.Root] + "/" + rel
		}
		track := trackFromFile(f, rel, nfo)
		idx.tracks[track.URI] = track
		idx.all = append(idx.all, track)
		idx.files[track.URI] = f.Path

		segments := strings.Split(rel, "/")
		for i := 0; i < len(segments)-1; i++ {
			dir := strings.Join(segments[:i+1], "/")
			if seenDirs[dir] {
				continue
			}
			seenDirs[dir] = true
			parent := DirectoryURI(strings.Join(segments[:i], "/"))
			idx.dirs[parent] = append(idx.dirs[parent], types.Ref{Type: types.RefDirectory, URI: DirectoryURI(dir), Name: segments[i]})
		}
		parent := DirectoryURI(strings.Join(segments[:len(segments)-1], "/"))
		idx.dirs[parent] = append(idx.dirs[parent], types.Ref{Type: types.RefTrack, URI: track.URI, Name: segments[len(segments)-1]})
	}

	for uri, refs := range idx.dirs {
		sort.SliceStable(refs, func(i, j int) bool {
			if (refs[i].Type == types.RefDirectory) != (refs[j].Type == types.RefDirectory) {
				return refs[i].Type == types.RefDirectory
			}
			return strings.ToLower(refs[i].Name) < strings.ToLower(refs[j].Name)
		})
		idx.dirs[uri] = refs
	}
	return idx
}

// splitNumber parses "3" or "3/10"
func splitNumber(s string) (int, int) {
	n, total, _ := strings.Cut(s, "/")
	num, _ := strconv.Atoi(strings.TrimSpace(n))
	tot, _ := strconv.Atoi(strings.TrimSpace(total))
	return num, tot
}

func trackFromFile(f FileInfo, rel string, nfo *nfoCache) types.Track {
	tags := f.Tags
	if tags == nil {
		tags = Tags{}
	}
	base := path.Base(rel)

	t := types.Track{
		URI:           TrackURI(rel),
		Name:          tags.get("title"),
		Genre:         tags.get("genre"),
		Date:          tags.get("date", "year"),
		Comment:       tags.get("comment", "description"),
		MusicBrainzID: tags.get("musicbrainztrackid", "musicbrainzreleasetrackid"),
		Length:        f.Duration,
		Bitrate:       f.Bitrate,
		LastModified:  f.ModifiedAt,
	}
	if t.Name == "" {
		t.Name = strings.TrimSuffix(base, path.Ext(base))
	}
	if name := tags.get("artist"); name != "" {
		t.Artists = []types.Artist{{
			Name:          name,
			SortName:      tags.get("artistsort", "sortartist"),
			MusicBrainzID: tags.get("musicbrainzartistid"),
		}}
	}
	if name := tags.get("composer"); name != "" {
		t.Composers = []types.Artist{{Name: name}}
	}
	if name := tags.get("performer"); name != "" {
		t.Performers = []types.Artist{{Name: name}}
	}

	var numTracks, numDiscs int
	t.TrackNo, numTracks = splitNumber(tags.get("track", "tracknumber"))
	t.DiscNo, numDiscs = splitNumber(tags.get("disc", "discnumber"))
	if total, err := strconv.Atoi(tags.get("tracktotal", "totaltracks")); err == nil {
		numTracks = total
	}

	album := &types.Album{
		Name:          tags.get("album"),
		NumTracks:     numTracks,
		NumDiscs:      numDiscs,
		Date:          t.Date,
		MusicBrainzID: tags.get("musicbrainzalbumid"),
	}
	if name := tags.get("albumartist"); name != "" {
		album.Artists = []types.Artist{{
			Name:          name,
			SortName:      tags.get("albumartistsort"),
			MusicBrainzID: tags.get("musicbrainzalbumartistid"),
		}}
	}

	dir := filepath.Dir(f.Path)
	if info := nfo.album(dir); info != nil {
		if album.Name == "" {
			album.Name = info.Title
		}
		if album.MusicBrainzID == "" {
			album.MusicBrainzID = info.MusicBrainzAlbumID
		}
		if album.Date == "" {
			album.Date = info.Date()
		}
		if t.Date == "" {
			t.Date = album.Date
		}
		if t.Genre == "" && len(info.Genre) > 0 {
			t.Genre = info.Genre[0]
		}
		if len(album.Artists) == 0 && info.Artist != "" {
			album.Artists = []types.Artist{{Name: info.Artist, MusicBrainzID: info.MusicBrainzArtistID}}
		}
	}
	for _, list := range [][]types.Artist{t.Artists, album.Artists} {
		for i := range list {
			a := &list[i]
			if a.SortName != "" && a.MusicBrainzID != "" {
				continue
			}
			if info := nfo.artist(dir, a.Name); info != nil {
				if a.SortName == "" {
					a.SortName = info.SortName
				}
				if a.MusicBrainzID == "" {
					a.MusicBrainzID = info.MusicBrainzID
				}
			}
		}
	}

	if album.Name != "" {
		key := album.Name
		if len(album.Artists) > 0 {
			key = album.Artists[0].Name + "/" + key
		}
		album.URI = albumPrefix + url.QueryEscape(key)
		t.Album = album
	}
	return t
}

// Library serves the files found by the last scan
type Library struct {
	scanner *Scanner
	dirs    []string
	logger  *log.Logger

	mu  sync.RWMutex
	idx *index
}

// NewLibrary creates an empty library over dirs. Refresh fills it.
func NewLibrary(dirs []string, scanner *Scanner, logger *log.Logger) *Library {
	return &Library{
		scanner: scanner,
		dirs:    dirs,
		logger:  logger,
		idx:     newIndex(),
	}
}

func (l *Library) snapshot() *index {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.idx
}

func (l *Library) RootDirectory() *types.Ref {
	return &types.Ref{Type: types.RefDirectory, URI: rootURI, Name: "Local media"}
}

func (l *Library) Browse(ctx context.Context, uri string) ([]types.Ref, error) {
	refs, ok := l.snapshot().dirs[uri]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return append([]types.Ref(nil), refs...), nil
}

// under returns the tracks at or below a track or directory URI
func (idx *index) under(uri string) ([]types.Track, bool) {
	if t, ok := idx.tracks[uri]; ok {
		return []types.Track{t}, true
	}
	if uri == rootURI {
		return idx.all, true
	}
	if _, ok := idx.dirs[uri]; !ok {
		return nil, false
	}
	prefix := trackPrefix + strings.TrimPrefix(uri, directoryStart) + "/"
	var out []types.Track
	for _, t := range idx.all {
		if strings.HasPrefix(t.URI, prefix) {
			out = append(out, t)
		}
	}
	return out, true
}

// Lookup resolves a track URI, or every track below a directory URI
func (l *Library) Lookup(ctx context.Context, uri string) ([]types.Track, error) {
	tracks, ok := l.snapshot().under(uri)
	if !ok {
		return nil, backend.ErrNotFound
	}
	return tracks, nil
}

func (l *Library) Search(ctx context.Context, query types.Query, uris []string, exact bool) (*types.SearchResult, error) {
	idx := l.snapshot()
	candidates := idx.all
	if len(uris) > 0 {
		candidates = nil
		for _, uri := range uris {
			tracks, _ := idx.under(uri)
			candidates = append(candidates, tracks...)
		}
	}
	return &types.SearchResult{
		URI:    Scheme + ":search",
		Tracks: backend.FilterTracks(candidates, query, exact),
	}, nil
}

func (l *Library) Distinct(ctx context.Context, field string, query types.Query) ([]string, error) {
	return backend.DistinctValues(l.snapshot().all, field, query), nil
}

// Refresh rescans every media dir and replaces the index
func (l *Library) Refresh(ctx context.Context, uri string) error {
	files, err := l.scanner.Scan(ctx, l.dirs)
	if err != nil {
		return err
	}
	idx := buildIndex(l.dirs, files)

	l.mu.Lock()
	l.idx = idx
	l.mu.Unlock()

	l.logger.Info("local library updated", "tracks", len(idx.all))
	return nil
}

// Path returns the file behind a track URI
func (l *Library) Path(uri string) (string, error) {
	p, ok := l.snapshot().files[uri]
	if !ok {
		return "", fmt.Errorf("%w: %s", backend.ErrNotFound, uri)
	}
	return p, nil
}
