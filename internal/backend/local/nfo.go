package local

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// NFO files read next to the music
const (
	ArtistNFO = "artist.nfo"
	AlbumNFO  = "album.nfo"
)

// ArtistInfo is the part of an artist.nfo file the library uses
type ArtistInfo struct {
	Name          string   `xml:"name"`
	SortName      string   `xml:"sortname"`
	MusicBrainzID string   `xml:"musicbrainzartistid"`
	Genre         []string `xml:"genre"`
}

// AlbumInfo is the part of an album.nfo file the library uses
type AlbumInfo struct {
	Title               string   `xml:"title"`
	Artist              string   `xml:"artist"`
	MusicBrainzAlbumID  string   `xml:"musicbrainzalbumid"`
	MusicBrainzArtistID string   `xml:"musicbrainzartistid"`
	Year                int      `xml:"year"`
	ReleaseDate         string   `xml:"releasedate"`
	Genre               []string `xml:"genre"`
}

// Date returns the release date, falling back to the year
func (a *AlbumInfo) Date() string {
	if a.ReleaseDate != "" {
		return a.ReleaseDate
	}
	if a.Year > 0 {
		return strconv.Itoa(a.Year)
	}
	return ""
}

// ParseArtistNFO parses an artist.nfo file
func ParseArtistNFO(path string) (*ArtistInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var artist ArtistInfo
	if err := xml.Unmarshal(data, &artist); err != nil {
		return nil, err
	}
	return &artist, nil
}

// ParseAlbumNFO parses an album.nfo file
func ParseAlbumNFO(path string) (*AlbumInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var album AlbumInfo
	if err := xml.Unmarshal(data, &album); err != nil {
		return nil, err
	}
	return &album, nil
}

// nfoCache parses each directory's NFO files at most once per scan
type nfoCache struct {
	albums  map[string]*AlbumInfo
	artists map[string]*ArtistInfo
}

func newNFOCache() *nfoCache {
	return &nfoCache{
		albums:  make(map[string]*AlbumInfo),
		artists: make(map[string]*ArtistInfo),
	}
}

// album returns the album.nfo in dir, or nil
func (c *nfoCache) album(dir string) *AlbumInfo {
	if info, ok := c.albums[dir]; ok {
		return info
	}
	info, _ := ParseAlbumNFO(filepath.Join(dir, AlbumNFO))
	c.albums[dir] = info
	return info
}

// artist returns the artist.nfo in dir or its parent whose name matches
// name, or nil
func (c *nfoCache) artist(dir, name string) *ArtistInfo {
	for _, d := range []string{dir, filepath.Dir(dir)} {
		info, ok := c.artists[d]
		if !ok {
			info, _ = ParseArtistNFO(filepath.Join(d, ArtistNFO))
			c.artists[d] = info
		}
		if info != nil && strings.EqualFold(info.Name, name) {
			return info
		}
	}
	return nil
}
