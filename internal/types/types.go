// Package types provides shared type definitions used across the mpdd daemon.
package types

import (
	"strings"
)

// Artist is a performer, composer or album artist
type Artist struct {
	Name          string `json:"name"`
	SortName      string `json:"sortName,omitempty"`
	MusicBrainzID string `json:"musicBrainzId,omitempty"`
}

// Album groups tracks released together
type Album struct {
	URI           string   `json:"uri,omitempty"`
	Name          string   `json:"name"`
	Artists       []Artist `json:"artists,omitempty"`
	NumTracks     int      `json:"numTracks,omitempty"`
	NumDiscs      int      `json:"numDiscs,omitempty"`
	Date          string   `json:"date,omitempty"`
	MusicBrainzID string   `json:"musicBrainzId,omitempty"`
}

// Track is an immutable description of a playable item. Backends produce
// tracks; nothing downstream mutates them.
type Track struct {
	URI           string   `json:"uri"`
	Name          string   `json:"name,omitempty"`
	Artists       []Artist `json:"artists,omitempty"`
	Album         *Album   `json:"album,omitempty"`
	Composers     []Artist `json:"composers,omitempty"`
	Performers    []Artist `json:"performers,omitempty"`
	Genre         string   `json:"genre,omitempty"`
	TrackNo       int      `json:"trackNo,omitempty"`
	DiscNo        int      `json:"discNo,omitempty"`
	Date          string   `json:"date,omitempty"`
	Length        int64    `json:"length,omitempty"` // milliseconds, 0 when unknown
	Bitrate       int      `json:"bitrate,omitempty"`
	Comment       string   `json:"comment,omitempty"`
	MusicBrainzID string   `json:"musicBrainzId,omitempty"`
	LastModified  int64    `json:"lastModified,omitempty"` // unix milliseconds
}

// ArtistNames joins the names of the given artists with ", "
func ArtistNames(artists []Artist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}

// TlTrack is one slot of the tracklist. The TLID is assigned on insertion and
// never changes or gets reused for the lifetime of the process.
type TlTrack struct {
	TLID  int   `json:"tlid"`
	Track Track `json:"track"`
}

// RefType is the kind of object a Ref points at
type RefType string

const (
	RefDirectory RefType = "directory"
	RefTrack     RefType = "track"
	RefPlaylist  RefType = "playlist"
	RefAlbum     RefType = "album"
	RefArtist    RefType = "artist"
)

// Ref is a lightweight pointer returned while browsing a library
type Ref struct {
	Type RefType `json:"type"`
	URI  string  `json:"uri"`
	Name string  `json:"name"`
}

// Playlist is a named, ordered list of tracks owned by a backend
type Playlist struct {
	URI          string  `json:"uri"`
	Name         string  `json:"name"`
	Tracks       []Track `json:"tracks,omitempty"`
	LastModified int64   `json:"lastModified,omitempty"` // unix milliseconds
}

// SearchResult is one backend's answer to a search
type SearchResult struct {
	URI     string   `json:"uri"`
	Tracks  []Track  `json:"tracks,omitempty"`
	Albums  []Album  `json:"albums,omitempty"`
	Artists []Artist `json:"artists,omitempty"`
}

// Query maps a field name (artist, album, any, ...) to the values that must
// all match
type Query map[string][]string

// URIScheme returns the scheme part of a URI, or "" if there is none
func URIScheme(uri string) string {
	if i := strings.Index(uri, ":"); i > 0 {
		return uri[:i]
	}
	return ""
}
