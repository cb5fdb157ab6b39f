// Package stored keeps named playlists in a SQLite database. Playlists get
// stored:<uuid> URIs and keep a full copy of each track so they can be
// listed without asking the backend that owns the track.
package stored

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/austinkregel/local-media/mpdd/internal/backend"
	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// Scheme is the URI scheme of stored playlists
const Scheme = "stored"

// Backend is the stored playlists backend
type Backend struct {
	playlists *Playlists
}

// Open opens (creating if needed) the playlist database at path
func Open(path string, logger *log.Logger) (*Backend, error) {
	db, err := openDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("playlist database ready", "path", path)
	return &Backend{playlists: &Playlists{db: db, logger: logger}}, nil
}

// Close closes the database
func (b *Backend) Close() error {
	return b.playlists.db.Close()
}

func (b *Backend) Name() string                 { return "stored" }
func (b *Backend) URISchemes() []string         { return []string{Scheme} }
func (b *Backend) Library() backend.Library     { return nil }
func (b *Backend) Playback() backend.Playback   { return nil }
func (b *Backend) Playlists() backend.Playlists { return b.playlists }

// Playlists implements backend.Playlists over SQLite
type Playlists struct {
	db     *sql.DB
	logger *log.Logger
}

func playlistURI(id string) string {
	return Scheme + ":" + id
}

func playlistID(uri string) (string, error) {
	id, ok := strings.CutPrefix(uri, Scheme+":")
	if !ok {
		return "", backend.ErrNotFound
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", backend.ErrNotFound
	}
	return id, nil
}

// List returns every playlist sorted by name
func (p *Playlists) List(ctx context.Context) ([]types.Ref, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT id, name FROM playlists ORDER BY name COLLATE NOCASE, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer rows.Close()

	var refs []types.Ref
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		refs = append(refs, types.Ref{Type: types.RefPlaylist, URI: playlistURI(id), Name: name})
	}
	return refs, rows.Err()
}

// Lookup loads a playlist with its tracks
func (p *Playlists) Lookup(ctx context.Context, uri string) (*types.Playlist, error) {
	id, err := playlistID(uri)
	if err != nil {
		return nil, err
	}

	pl := &types.Playlist{URI: uri}
	err = p.db.QueryRowContext(ctx, "SELECT name, last_modified FROM playlists WHERE id = ?", id).
		Scan(&pl.Name, &pl.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, "SELECT uri, data FROM playlist_tracks WHERE playlist_id = ? ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist tracks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var trackURI, data string
		if err := rows.Scan(&trackURI, &data); err != nil {
			return nil, err
		}
		var track types.Track
		if err := json.Unmarshal([]byte(data), &track); err != nil {
			p.logger.Warn("dropping unreadable playlist entry", "playlist", uri, "track", trackURI, "err", err)
			track = types.Track{URI: trackURI}
		}
		pl.Tracks = append(pl.Tracks, track)
	}
	return pl, rows.Err()
}

// Create adds an empty playlist
func (p *Playlists) Create(ctx context.Context, name string) (*types.Playlist, error) {
	id := uuid.New().String()
	now := time.Now().UnixMilli()
	_, err := p.db.ExecContext(ctx, "INSERT INTO playlists (id, name, last_modified) VALUES (?, ?, ?)", id, name, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	p.logger.Info("playlist created", "name", name, "uri", playlistURI(id))
	return &types.Playlist{URI: playlistURI(id), Name: name, LastModified: now}, nil
}

// Save replaces the name and tracks of an existing playlist
func (p *Playlists) Save(ctx context.Context, playlist types.Playlist) (*types.Playlist, error) {
	id, err := playlistID(playlist.URI)
	if err != nil {
		return nil, err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	playlist.LastModified = time.Now().UnixMilli()
	res, err := tx.ExecContext(ctx, "UPDATE playlists SET name = ?, last_modified = ? WHERE id = ?",
		playlist.Name, playlist.LastModified, id)
	if err != nil {
		return nil, fmt.Errorf("failed to save playlist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, backend.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_tracks WHERE playlist_id = ?", id); err != nil {
		return nil, fmt.Errorf("failed to save playlist: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO playlist_tracks (playlist_id, position, uri, data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	for i, track := range playlist.Tracks {
		data, err := json.Marshal(track)
		if err != nil {
			return nil, err
		}
		if _, err := stmt.ExecContext(ctx, id, i, track.URI, string(data)); err != nil {
			return nil, fmt.Errorf("failed to save playlist: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	playlist.Tracks = append([]types.Track(nil), playlist.Tracks...)
	return &playlist, nil
}

// Delete removes a playlist and its tracks
func (p *Playlists) Delete(ctx context.Context, uri string) error {
	id, err := playlistID(uri)
	if err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM playlists WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return backend.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_tracks WHERE playlist_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return tx.Commit()
}
