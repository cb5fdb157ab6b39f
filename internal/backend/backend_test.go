package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/austinkregel/local-media/mpdd/internal/types"
)

type stubBackend struct {
	name    string
	schemes []string
}

func (b stubBackend) Name() string { return b.name }
func (b stubBackend) URISchemes() []string { return b.schemes }
func (b stubBackend) Library() Library { return nil }
func (b stubBackend) Playback() Playback { return nil }
func (b stubBackend) Playlists() Playlists { return nil }

func TestRegistryRoutesBySchemes(t *testing.T) {
	local := stubBackend{name: "local", schemes: []string{"local", "file"}}
	stream := stubBackend{name: "stream", schemes: []string{"http", "https"}}

	reg, err := NewRegistry(local, stream)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	tests := []struct {
		uri  string
		want string
	}{
		{"local:track:a.mp3", "local"},
		{"file:///music/a.mp3", "local"},
		{"https://radio.example/stream", "stream"},
		{"spotify:track:1", ""},
		{"no-scheme", ""},
	}
	for _, tt := range tests {
		b := reg.ForURI(tt.uri)
		got := ""
		if b != nil {
			got = b.Name()
		}
		if got != tt.want {
			t.Errorf("ForURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}

	schemes := reg.URISchemes()
	want := []string{"file", "http", "https", "local"}
	if len(schemes) != len(want) {
		t.Fatalf("Expected %v, got %v", want, schemes)
	}
	for i := range want {
		if schemes[i] != want[i] {
			t.Errorf("Scheme %d: expected %s, got %s", i, want[i], schemes[i])
		}
	}
}

func TestRegistryRejectsDuplicateScheme(t *testing.T) {
	_, err := NewRegistry(
		stubBackend{name: "a", schemes: []string{"local"}},
		stubBackend{name: "b", schemes: []string{"local"}},
	)
	if !errors.Is(err, ErrDuplicateScheme) {
		t.Errorf("Expected ErrDuplicateScheme, got %v", err)
	}
}

func sampleTrack() types.Track {
	return types.Track{
		URI:     "local:track:abba/waterloo.flac",
		Name:    "Waterloo",
		Artists: []types.Artist{{Name: "ABBA", MusicBrainzID: "d87e52c5"}},
		Album: &types.Album{
			Name:    "Waterloo",
			Artists: []types.Artist{{Name: "ABBA"}},
		},
		Genre:   "Pop",
		TrackNo: 1,
		Date:    "1974",
	}
}

func TestMatchTrack(t *testing.T) {
	track := sampleTrack()

	tests := []struct {
		name  string
		query types.Query
		exact bool
		want  bool
	}{
		{"exact artist", types.Query{"artist": {"abba"}}, true, true},
		{"exact partial", types.Query{"artist": {"abb"}}, true, false},
		{"substring", types.Query{"artist": {"abb"}}, false, true},
		{"any field", types.Query{"any": {"pop"}}, true, true},
		{"all terms must match", types.Query{"artist": {"abba"}, "genre": {"rock"}}, true, false},
		{"track number", types.Query{"track_no": {"1"}}, true, true},
		{"musicbrainz", types.Query{"musicbrainz_artistid": {"d87e52c5"}}, true, true},
		{"missing field", types.Query{"composer": {"benny"}}, false, false},
		{"empty query", types.Query{}, true, true},
	}

	for _, tt := range tests {
		if got := MatchTrack(track, tt.query, tt.exact); got != tt.want {
			t.Errorf("%s: MatchTrack = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDistinctValues(t *testing.T) {
	a := sampleTrack()
	b := sampleTrack()
	b.URI = "local:track:abba/sos.flac"
	b.Album = &types.Album{Name: "ABBA"}
	c := types.Track{URI: "local:track:x.mp3", Artists: []types.Artist{{Name: "Other"}}}

	got := DistinctValues([]types.Track{a, b, c}, FieldAlbum, types.Query{"artist": {"ABBA"}})
	if len(got) != 2 || got[0] != "Waterloo" || got[1] != "ABBA" {
		t.Errorf("Unexpected distinct albums: %v", got)
	}
}

type fakeRenderer struct {
	loads    []string
	startMs  int64
	paused   bool
	stopped  bool
	position int64
}

func (r *fakeRenderer) Load(ctx context.Context, location string, lengthMs, startMs int64) error {
	r.loads = append(r.loads, location)
	r.startMs = startMs
	r.position = startMs
	r.stopped = false
	return nil
}

func (r *fakeRenderer) Pause() error {
	r.paused = true
	return nil
}

func (r *fakeRenderer) Resume() error {
	r.paused = false
	return nil
}

func (r *fakeRenderer) Stop() error {
	r.stopped = true
	return nil
}

func (r *fakeRenderer) Seek(positionMs int64) error {
	r.position = positionMs
	return nil
}

func (r *fakeRenderer) Position() int64 { return r.position }

func TestBasePlaybackPrepareThenResume(t *testing.T) {
	r := &fakeRenderer{}
	pb := NewBasePlayback(r, func(tr types.Track) (string, error) { return "/music/" + tr.Name, nil })
	ctx := context.Background()

	if err := pb.Play(ctx); !errors.Is(err, ErrNoTrack) {
		t.Errorf("Expected ErrNoTrack before a track is prepared, got %v", err)
	}

	if err := pb.ChangeTrack(ctx, sampleTrack()); err != nil {
		t.Fatalf("ChangeTrack failed: %v", err)
	}
	if len(r.loads) != 0 {
		t.Error("ChangeTrack should not start the renderer")
	}

	// Seeking a prepared track sets the start offset
	pb.Seek(ctx, 3000)
	if pos := pb.TimePosition(); pos != 3000 {
		t.Errorf("Expected prepared position 3000, got %d", pos)
	}

	if err := pb.Resume(ctx); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if len(r.loads) != 1 || r.loads[0] != "/music/Waterloo" || r.startMs != 3000 {
		t.Errorf("Expected load of /music/Waterloo at 3000, got %v at %d", r.loads, r.startMs)
	}

	pb.Pause(ctx)
	if !r.paused {
		t.Error("Pause did not reach the renderer")
	}
	pb.Stop(ctx)
	if !r.stopped {
		t.Error("Stop did not reach the renderer")
	}
	if pos := pb.TimePosition(); pos != 0 {
		t.Errorf("Expected position 0 after stop, got %d", pos)
	}
}

func TestBasePlaybackLocateFailure(t *testing.T) {
	pb := NewBasePlayback(&fakeRenderer{}, func(types.Track) (string, error) {
		return "", errors.New("gone")
	})
	if err := pb.ChangeTrack(context.Background(), sampleTrack()); err == nil {
		t.Error("Expected ChangeTrack to fail when the track cannot be located")
	}
}
