package backend

import (
	"strconv"
	"strings"

	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// Query fields understood by every library
const (
	FieldAny                 = "any"
	FieldURI                 = "uri"
	FieldTrackName           = "track_name"
	FieldAlbum               = "album"
	FieldArtist              = "artist"
	FieldAlbumArtist         = "albumartist"
	FieldComposer            = "composer"
	FieldPerformer           = "performer"
	FieldGenre               = "genre"
	FieldTrackNo             = "track_no"
	FieldDiscNo              = "disc_no"
	FieldDate                = "date"
	FieldComment             = "comment"
	FieldMusicBrainzTrackID  = "musicbrainz_trackid"
	FieldMusicBrainzAlbumID  = "musicbrainz_albumid"
	FieldMusicBrainzArtistID = "musicbrainz_artistid"
)

// FieldValues returns the values a track has for a query field
func FieldValues(t types.Track, field string) []string {
	names := func(as []types.Artist) []string {
		out := make([]string, 0, len(as))
		for _, a := range as {
			out = append(out, a.Name)
		}
		return out
	}
	nonEmpty := func(vs ...string) []string {
		out := vs[:0]
		for _, v := range vs {
			if v != "" {
				out = append(out, v)
			}
		}
		return out
	}

	switch field {
	case FieldURI:
		return []string{t.URI}
	case FieldTrackName:
		return nonEmpty(t.Name)
	case FieldAlbum:
		if t.Album != nil {
			return nonEmpty(t.Album.Name)
		}
	case FieldArtist:
		return names(t.Artists)
	case FieldAlbumArtist:
		if t.Album != nil {
			return names(t.Album.Artists)
		}
	case FieldComposer:
		return names(t.Composers)
	case FieldPerformer:
		return names(t.Performers)
	case FieldGenre:
		return nonEmpty(t.Genre)
	case FieldTrackNo:
		if t.TrackNo > 0 {
			return []string{strconv.Itoa(t.TrackNo)}
		}
	case FieldDiscNo:
		if t.DiscNo > 0 {
			return []string{strconv.Itoa(t.DiscNo)}
		}
	case FieldDate:
		return nonEmpty(t.Date)
	case FieldComment:
		return nonEmpty(t.Comment)
	case FieldMusicBrainzTrackID:
		return nonEmpty(t.MusicBrainzID)
	case FieldMusicBrainzAlbumID:
		if t.Album != nil {
			return nonEmpty(t.Album.MusicBrainzID)
		}
	case FieldMusicBrainzArtistID:
		out := make([]string, 0, len(t.Artists))
		for _, a := range t.Artists {
			if a.MusicBrainzID != "" {
				out = append(out, a.MusicBrainzID)
			}
		}
		return out
	case FieldAny:
		var all []string
		for _, f := range []string{FieldURI, FieldTrackName, FieldAlbum, FieldArtist, FieldAlbumArtist,
			FieldComposer, FieldPerformer, FieldGenre, FieldTrackNo, FieldDate, FieldComment} {
			all = append(all, FieldValues(t, f)...)
		}
		return all
	}
	return nil
}

// MatchTrack reports whether the track satisfies every term of the query.
// Exact matching compares whole values case-insensitively; otherwise a
// case-insensitive substring is enough.
func MatchTrack(t types.Track, query types.Query, exact bool) bool {
	for field, wanted := range query {
		values := FieldValues(t, field)
		for _, w := range wanted {
			if !matchAny(values, w, exact) {
				return false
			}
		}
	}
	return true
}

func matchAny(values []string, wanted string, exact bool) bool {
	wanted = strings.ToLower(wanted)
	for _, v := range values {
		v = strings.ToLower(v)
		if exact && v == wanted {
			return true
		}
		if !exact && strings.Contains(v, wanted) {
			return true
		}
	}
	return false
}

// FilterTracks returns the tracks matching the query
func FilterTracks(tracks []types.Track, query types.Query, exact bool) []types.Track {
	var out []types.Track
	for _, t := range tracks {
		if MatchTrack(t, query, exact) {
			out = append(out, t)
		}
	}
	return out
}

// DistinctValues collects the distinct values of field over tracks matching
// query
func DistinctValues(tracks []types.Track, field string, query types.Query) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range tracks {
		if len(query) > 0 && !MatchTrack(t, query, true) {
			continue
		}
		for _, v := range FieldValues(t, field) {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	return out
}
