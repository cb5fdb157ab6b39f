package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/logging"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

const albumNFO = `<?xml version="1.0" encoding="UTF-8"?>
<album>
  <title>Record</title>
  <artist>Band</artist>
  <musicbrainzalbumid>album-mbid</musicbrainzalbumid>
  <year>1999</year>
  <genre>Rock</genre>
</album>`

const artistNFO = `<artist>
  <name>Band</name>
  <sortname>Band, The</sortname>
  <musicbrainzartistid>artist-mbid</musicbrainzartistid>
</artist>`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// newMediaDir lays out a small music tree
func newMediaDir(t *testing.T) string {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Band", ArtistNFO), artistNFO)
	writeFile(t, filepath.Join(root, "Band", "Record", AlbumNFO), albumNFO)
	writeFile(t, filepath.Join(root, "Band", "Record", "01 Intro.mp3"), "")
	writeFile(t, filepath.Join(root, "Band", "Record", "02 Outro.flac"), "")
	writeFile(t, filepath.Join(root, "Band", "Record", "cover.jpg"), "")
	writeFile(t, filepath.Join(root, "loose.ogg"), "")
	writeFile(t, filepath.Join(root, ".hidden", "secret.mp3"), "")
	return root
}

// testScanner never runs ffprobe so tags come from file names and NFOs
func testScanner(excluded ...string) *Scanner {
	s := NewScanner(excluded, logging.Discard())
	s.ffprobePath = ""
	return s
}

func newTestLibrary(t *testing.T, dirs ...string) *Library {
	t.Helper()
	l := NewLibrary(dirs, testScanner(), logging.Discard())
	if err := l.Refresh(context.Background(), ""); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	return l
}

func TestLibraryBrowse(t *testing.T) {
	l := newTestLibrary(t, newMediaDir(t))
	ctx := context.Background()

	refs, err := l.Browse(ctx, l.RootDirectory().URI)
	if err != nil {
		t.Fatalf("Browse failed: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("Expected 2 entries at the root, got %+v", refs)
	}
	if refs[0].Type != types.RefDirectory || refs[0].Name != "Band" || refs[0].URI != "local:directory:Band" {
		t.Errorf("Unexpected first entry: %+v", refs[0])
	}
	if refs[1].Type != types.RefTrack || refs[1].URI != "local:track:loose.ogg" {
		t.Errorf("Unexpected second entry: %+v", refs[1])
	}

	refs, err = l.Browse(ctx, DirectoryURI("Band/Record"))
	if err != nil {
		t.Fatalf("Browse failed: %v", err)
	}
	if len(refs) != 2 || refs[0].URI != "local:track:Band/Record/01%20Intro.mp3" || refs[1].Name != "02 Outro.flac" {
		t.Errorf("Unexpected album entries: %+v", refs)
	}

	if _, err := l.Browse(ctx, DirectoryURI("Nope")); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLibraryLookup(t *testing.T) {
	l := newTestLibrary(t, newMediaDir(t))
	ctx := context.Background()

	tracks, err := l.Lookup(ctx, TrackURI("Band/Record/01 Intro.mp3"))
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("Expected one track, got %d", len(tracks))
	}
	track := tracks[0]
	if track.Name != "01 Intro" {
		t.Errorf("Expected name from file name, got %q", track.Name)
	}
	if track.Album == nil || track.Album.Name != "Record" || track.Album.Date != "1999" || track.Album.MusicBrainzID != "album-mbid" {
		t.Fatalf("Album not enriched from album.nfo: %+v", track.Album)
	}
	if track.Date != "1999" || track.Genre != "Rock" {
		t.Errorf("Expected date and genre from album.nfo, got %q %q", track.Date, track.Genre)
	}
	if len(track.Album.Artists) != 1 {
		t.Fatalf("Expected album artist, got %+v", track.Album.Artists)
	}
	if a := track.Album.Artists[0]; a.Name != "Band" || a.SortName != "Band, The" || a.MusicBrainzID != "artist-mbid" {
		t.Errorf("Album artist not enriched from artist.nfo: %+v", a)
	}

	tracks, err = l.Lookup(ctx, DirectoryURI("Band"))
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(tracks) != 2 {
		t.Errorf("Expected 2 tracks below Band, got %d", len(tracks))
	}

	tracks, _ = l.Lookup(ctx, l.RootDirectory().URI)
	if len(tracks) != 3 {
		t.Errorf("Expected 3 tracks in total (hidden dirs skipped), got %d", len(tracks))
	}

	if _, err := l.Lookup(ctx, TrackURI("missing.mp3")); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLibrarySearchDistinct(t *testing.T) {
	l := newTestLibrary(t, newMediaDir(t))
	ctx := context.Background()

	result, err := l.Search(ctx, types.Query{"album": {"rec"}}, nil, false)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(result.Tracks) != 2 {
		t.Errorf("Expected 2 tracks, got %d", len(result.Tracks))
	}

	result, _ = l.Search(ctx, types.Query{"album": {"rec"}}, nil, true)
	if len(result.Tracks) != 0 {
		t.Errorf("Exact search should not match a substring, got %d", len(result.Tracks))
	}

	result, _ = l.Search(ctx, types.Query{"track_name": {"o"}}, []string{DirectoryURI("Band")}, false)
	if len(result.Tracks) != 2 {
		t.Errorf("Expected search limited to Band, got %d", len(result.Tracks))
	}

	albums, err := l.Distinct(ctx, "album", nil)
	if err != nil {
		t.Fatalf("Distinct failed: %v", err)
	}
	if len(albums) != 1 || albums[0] != "Record" {
		t.Errorf("Unexpected albums: %v", albums)
	}
}

func TestLibraryRefreshPicksUpNewFiles(t *testing.T) {
	root := newMediaDir(t)
	l := newTestLibrary(t, root)
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "new.mp3"), "")
	if err := l.Refresh(ctx, ""); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := l.Lookup(ctx, TrackURI("new.mp3")); err != nil {
		t.Errorf("Expected new file after refresh: %v", err)
	}
}

func TestMultipleMediaDirs(t *testing.T) {
	a := filepath.Join(t.TempDir(), "music")
	b := filepath.Join(t.TempDir(), "music")
	writeFile(t, filepath.Join(a, "one.mp3"), "")
	writeFile(t, filepath.Join(b, "two.mp3"), "")

	l := newTestLibrary(t, a, b)
	refs, _ := l.Browse(context.Background(), l.RootDirectory().URI)
	if len(refs) != 2 || refs[0].Name != "music" || refs[1].Name != "music (2)" {
		t.Fatalf("Unexpected roots: %+v", refs)
	}

	path, err := l.Path(TrackURI("music (2)/two.mp3"))
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	if path != filepath.Join(b, "two.mp3") {
		t.Errorf("Unexpected path %q", path)
	}
}

func TestScannerExcludedExtensions(t *testing.T) {
	s := testScanner("FLAC", ".wav")
	tests := map[string]bool{
		"a.mp3":  true,
		"a.FLAC": false,
		"a.wav":  false,
		"a.txt":  false,
		"a.opus": true,
	}
	for name, want := range tests {
		if got := s.wanted(name); got != want {
			t.Errorf("wanted(%q) = %v, expected %v", name, got, want)
		}
	}
}

func TestParseProbe(t *testing.T) {
	var result probeResult
	result.Format.Duration = "12.5"
	result.Format.BitRate = "320000"
	result.Format.Tags = map[string]string{"TITLE": "From Format", "Album_Artist": "Someone"}
	result.Streams = append(result.Streams, struct {
		Tags map[string]string `json:"tags"`
	}{Tags: map[string]string{"title": "From Stream", "MusicBrainz Track Id": "mbid"}})

	tags, duration, bitrate := parseProbe(result)
	if duration != 12500 || bitrate != 320 {
		t.Errorf("Unexpected duration/bitrate %d %d", duration, bitrate)
	}
	if tags.get("title") != "From Format" {
		t.Errorf("Format tags should win, got %q", tags.get("title"))
	}
	if tags.get("albumartist") != "Someone" || tags.get("musicbrainztrackid") != "mbid" {
		t.Errorf("Tag keys not normalized: %v", tags)
	}
}

func TestTrackFromTags(t *testing.T) {
	f := FileInfo{
		Path:     filepath.Join(t.TempDir(), "x.mp3"),
		Duration: 1000,
		Tags: Tags{
			"title":       "Song",
			"artist":      "Singer",
			"albumartist": "Various",
			"album":       "Hits",
			"track":       "3/12",
			"disc":        "1/2",
			"date":        "2001-02-03",
			"composer":    "Writer",
		},
	}
	track := trackFromFile(f, "x.mp3", newNFOCache())
	if track.Name != "Song" || track.TrackNo != 3 || track.DiscNo != 1 || track.Length != 1000 {
		t.Errorf("Unexpected track: %+v", track)
	}
	if track.Album == nil || track.Album.NumTracks != 12 || track.Album.NumDiscs != 2 || track.Album.Artists[0].Name != "Various" {
		t.Errorf("Unexpected album: %+v", track.Album)
	}
	if track.Album.URI != "local:album:Various%2FHits" {
		t.Errorf("Unexpected album uri %q", track.Album.URI)
	}
	if types.ArtistNames(track.Composers) != "Writer" {
		t.Errorf("Unexpected composers: %+v", track.Composers)
	}
}

type fakeRenderer struct {
	location string
}

func (r *fakeRenderer) Load(ctx context.Context, location string, lengthMs, startMs int64) error {
	r.location = location
	return nil
}
func (r *fakeRenderer) Pause() error     { return nil }
func (r *fakeRenderer) Resume() error    { return nil }
func (r *fakeRenderer) Stop() error      { return nil }
func (r *fakeRenderer) Seek(int64) error { return nil }
func (r *fakeRenderer) Position() int64  { return 0 }

func TestBackendPlaysFilePath(t *testing.T) {
	root := newMediaDir(t)
	renderer := &fakeRenderer{}
	b := New(Config{MediaDirs: []string{root}}, renderer, logging.Discard())
	b.library.scanner.ffprobePath = ""
	ctx := context.Background()

	if err := b.Library().Refresh(ctx, ""); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if b.Playlists() != nil {
		t.Error("Local backend should not store playlists")
	}
	tracks, _ := b.Library().Lookup(ctx, TrackURI("loose.ogg"))
	if len(tracks) != 1 {
		t.Fatalf("Expected loose.ogg in library")
	}
	if err := b.Playback().ChangeTrack(ctx, tracks[0]); err != nil {
		t.Fatalf("ChangeTrack failed: %v", err)
	}
	if err := b.Playback().Play(ctx); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if renderer.location != filepath.Join(root, "loose.ogg") {
		t.Errorf("Renderer got %q", renderer.location)
	}

	unknown := types.Track{URI: TrackURI("gone.mp3")}
	if err := b.Playback().ChangeTrack(ctx, unknown); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown track, got %v", err)
	}
}
