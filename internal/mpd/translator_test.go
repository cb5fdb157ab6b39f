package mpd

import (
	"reflect"
	"testing"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

func TestTrackLines(t *testing.T) {
	track := types.Track{
		URI:     "x:song",
		Name:    "Song",
		Artists: []types.Artist{{Name: "A"}, {Name: "B", MusicBrainzID: "mb-b"}},
		Album: &types.Album{
			URI:       "x:album",
			Name:      "Record",
			NumTracks: 10,
			Artists:   []types.Artist{{Name: "Band", SortName: "Band, The"}},
		},
		Genre:        "Rock",
		TrackNo:      3,
		DiscNo:       1,
		Date:         "1999",
		Length:       61500,
		LastModified: 1000,
	}

	want := []string{
		"file: x:song",
		"Time: 61",
		"duration: 61.500",
		"Artist: A;B",
		"Album: Record",
		"Title: Song",
		"Date: 1999",
		"Track: 3/10",
		"Pos: 4",
		"Id: 9",
		"AlbumArtist: Band",
		"AlbumArtistSort: Band, The",
		"MUSICBRAINZ_ARTISTID: mb-b",
		"Genre: Rock",
		"Disc: 1",
		"Last-Modified: 1970-01-01T00:00:01Z",
		"X-AlbumUri: x:album",
	}
	if got := TrackLines(track, 4, 9, nil); !reflect.DeepEqual(got, want) {
		t.Errorf("Unexpected lines:\n got %q\nwant %q", got, want)
	}

	// Disabled tags are dropped but file, time and position stay
	got := TrackLines(track, -1, 0, map[string]bool{"Title": true})
	want = []string{"file: x:song", "Time: 61", "duration: 61.500", "Title: Song", "Track: 3/10", "Last-Modified: 1970-01-01T00:00:01Z"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unexpected filtered lines:\n got %q\nwant %q", got, want)
	}
}

func TestQueryFromArgs(t *testing.T) {
	q, err := QueryFromArgs([]string{"Artist", "A", "title", "Song", "artist", "B", "album", ""})
	if err != nil {
		t.Fatalf("QueryFromArgs failed: %v", err)
	}
	want := types.Query{
		backend.FieldArtist:    {"A", "B"},
		backend.FieldTrackName: {"Song"},
	}
	if !reflect.DeepEqual(q, want) {
		t.Errorf("Expected %v, got %v", want, q)
	}
}

func TestQueryFromArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"empty", nil, "incorrect arguments"},
		{"odd", []string{"artist"}, "incorrect arguments"},
		{"suggestion", []string{"artsit", "A"}, `Unknown tag type: artsit, did you mean "artist"?`},
		{"no suggestion", []string{"colour", "red"}, "Unknown tag type: colour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := QueryFromArgs(tt.args)
			if err == nil || err.Error() != tt.want {
				t.Errorf("Expected %q, got %v", tt.want, err)
			}
		})
	}
}
