package mpd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/core"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// tagTypes are the tags a track listing can carry, in "tagtypes" order
var tagTypes = []string{
	"Artist",
	"ArtistSort",
	"Album",
	"AlbumArtist",
	"AlbumArtistSort",
	"Title",
	"Name",
	"Genre",
	"Date",
	"Composer",
	"Performer",
	"Comment",
	"Disc",
	"MUSICBRAINZ_ARTISTID",
	"MUSICBRAINZ_ALBUMID",
	"MUSICBRAINZ_ALBUMARTISTID",
	"MUSICBRAINZ_TRACKID",
	"X-AlbumUri",
}

// searchFields maps protocol query fields to library query fields
var searchFields = map[string]string{
	"album":                backend.FieldAlbum,
	"albumartist":          backend.FieldAlbumArtist,
	"any":                  backend.FieldAny,
	"artist":               backend.FieldArtist,
	"comment":              backend.FieldComment,
	"composer":             backend.FieldComposer,
	"date":                 backend.FieldDate,
	"disc":                 backend.FieldDiscNo,
	"file":                 backend.FieldURI,
	"filename":             backend.FieldURI,
	"genre":                backend.FieldGenre,
	"musicbrainz_albumid":  backend.FieldMusicBrainzAlbumID,
	"musicbrainz_artistid": backend.FieldMusicBrainzArtistID,
	"musicbrainz_trackid":  backend.FieldMusicBrainzTrackID,
	"performer":            backend.FieldPerformer,
	"title":                backend.FieldTrackName,
	"track":                backend.FieldTrackNo,
}

// listFields maps the fields "list" accepts to library fields
var listFields = map[string]string{
	"album":       backend.FieldAlbum,
	"albumartist": backend.FieldAlbumArtist,
	"artist":      backend.FieldArtist,
	"composer":    backend.FieldComposer,
	"date":        backend.FieldDate,
	"genre":       backend.FieldGenre,
	"performer":   backend.FieldPerformer,
}

// suggest returns the legal name closest to field, or "" when nothing is
// reasonably close
func suggest(field string, legal map[string]string) string {
	best, bestDist := "", 3
	names := make([]string, 0, len(legal))
	for name := range legal {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if d := levenshtein.ComputeDistance(field, name); d < bestDist {
			best, bestDist = name, d
		}
	}
	return best
}

func unknownFieldError(field string, legal map[string]string) *AckError {
	if s := suggest(field, legal); s != "" {
		return ArgError("Unknown tag type: %s, did you mean %q?", field, s)
	}
	return ArgError("Unknown tag type: %s", field)
}

// QueryFromArgs parses "field value [field value...]" pairs into a library
// query
func QueryFromArgs(args []string) (types.Query, error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, ArgError("incorrect arguments")
	}
	query := make(types.Query)
	for i := 0; i < len(args); i += 2 {
		name := strings.ToLower(args[i])
		field, ok := searchFields[name]
		if !ok {
			return nil, unknownFieldError(name, searchFields)
		}
		value := args[i+1]
		if value == "" {
			continue
		}
		query[field] = append(query[field], value)
	}
	return query, nil
}

func joinNames(artists []types.Artist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ";")
}

func joinMusicBrainzIDs(artists []types.Artist) string {
	ids := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.MusicBrainzID != "" {
			ids = append(ids, a.MusicBrainzID)
		}
	}
	return strings.Join(ids, ";")
}

func joinSortNames(artists []types.Artist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.SortName != "" {
			names = append(names, a.SortName)
		}
	}
	return strings.Join(names, ";")
}

// TrackLines renders a track as "Key: value" lines. pos and tlid are
// included when pos is not negative. Tags missing from enabled are left out;
// a nil enabled set keeps every tag.
func TrackLines(t types.Track, pos, tlid int, enabled map[string]bool) []string {
	var lines []string
	add := func(key, value string) {
		if value == "" {
			return
		}
		lines = append(lines, key+": "+value)
	}
	tag := func(key, value string) {
		if enabled != nil && !enabled[key] {
			return
		}
		add(key, value)
	}

	add("file", t.URI)
	add("Time", strconv.FormatInt(t.Length/1000, 10))
	add("duration", fmt.Sprintf("%.3f", float64(t.Length)/1000))
	tag("Artist", joinNames(t.Artists))
	tag("ArtistSort", joinSortNames(t.Artists))
	if t.Album != nil {
		tag("Album", t.Album.Name)
	}
	tag("Title", t.Name)
	tag("Date", t.Date)

	trackNo := strconv.Itoa(t.TrackNo)
	if t.Album != nil && t.Album.NumTracks > 0 {
		trackNo += "/" + strconv.Itoa(t.Album.NumTracks)
	}
	add("Track", trackNo)

	if pos >= 0 {
		add("Pos", strconv.Itoa(pos))
		add("Id", strconv.Itoa(tlid))
	}

	if t.Album != nil {
		tag("MUSICBRAINZ_ALBUMID", t.Album.MusicBrainzID)
		tag("AlbumArtist", joinNames(t.Album.Artists))
		tag("AlbumArtistSort", joinSortNames(t.Album.Artists))
		tag("MUSICBRAINZ_ALBUMARTISTID", joinMusicBrainzIDs(t.Album.Artists))
	}
	tag("MUSICBRAINZ_ARTISTID", joinMusicBrainzIDs(t.Artists))
	tag("Composer", joinNames(t.Composers))
	tag("Performer", joinNames(t.Performers))
	tag("Genre", t.Genre)
	if t.DiscNo > 0 {
		tag("Disc", strconv.Itoa(t.DiscNo))
	}
	if t.LastModified > 0 {
		add("Last-Modified", time.UnixMilli(t.LastModified).UTC().Format("2006-01-02T15:04:05Z"))
	}
	tag("Comment", t.Comment)
	tag("MUSICBRAINZ_TRACKID", t.MusicBrainzID)
	if t.Album != nil {
		tag("X-AlbumUri", t.Album.URI)
	}
	return lines
}

// TlTrackLines renders the tracklist slots starting at position start
func TlTrackLines(tlTracks []types.TlTrack, start int, enabled map[string]bool) []string {
	var lines []string
	for i, tl := range tlTracks {
		lines = append(lines, TrackLines(tl.Track, start+i, tl.TLID, enabled)...)
	}
	return lines
}

// PlaylistLines renders a stored playlist's tracks without positions
func PlaylistLines(tracks []types.Track, enabled map[string]bool) []string {
	var lines []string
	for _, t := range tracks {
		lines = append(lines, TrackLines(t, -1, 0, enabled)...)
	}
	return lines
}

// playbackStateName is the protocol spelling of a playback state
func playbackStateName(s core.PlaybackState) string {
	switch s {
	case core.StatePlaying:
		return "play"
	case core.StatePaused:
		return "pause"
	}
	return "stop"
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// formatLastModified renders a unix millisecond timestamp the way
// listplaylists does
func formatLastModified(ms int64) string {
	if ms <= 0 {
		ms = 0
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05Z")
}
