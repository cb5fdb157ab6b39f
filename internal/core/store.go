package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// PersistentState is the tracklist state that gets persisted to disk
type PersistentState struct {
	TlTracks    []types.TlTrack `json:"tlTracks"`
	NextTLID    int             `json:"nextTlid"`
	Options     Options         `json:"options"`
	CurrentTLID int             `json:"currentTlid,omitempty"`
	Volume      int             `json:"volume"`
}

// Store handles tracklist persistence to disk
type Store struct {
	mu       sync.Mutex
	filePath string
	core     *Core
	logger   *log.Logger
}

// NewStore creates a store writing tracklist.json in dataDir
func NewStore(dataDir string, c *Core, logger *log.Logger) *Store {
	return &Store{
		filePath: filepath.Join(dataDir, "tracklist.json"),
		core:     c,
		logger:   logger,
	}
}

// Load restores the saved state. A missing file is not an error.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read tracklist file: %w", err)
	}

	var state PersistentState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse tracklist file: %w", err)
	}

	err = s.core.Do(ctx, func(ctx context.Context) error {
		s.core.Tracklist.restore(state.TlTracks, state.NextTLID, state.Options)
		if tl := s.core.Tracklist.FilterTLID(state.CurrentTLID); tl != nil {
			s.core.Playback.setCurrent(tl)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if state.Volume >= 0 && state.Volume <= 100 {
		if err := s.core.Mixer.SetVolume(state.Volume); err != nil {
			return err
		}
	}

	s.logger.Info("restored tracklist", "tracks", len(state.TlTracks), "current", state.CurrentTLID)
	return nil
}

// Save writes the current state to disk
func (s *Store) Save(ctx context.Context) error {
	var state PersistentState
	err := s.core.Do(ctx, func(ctx context.Context) error {
		state = PersistentState{
			TlTracks: s.core.Tracklist.TlTracks(),
			NextTLID: s.core.Tracklist.nextTLID,
			Options:  s.core.Tracklist.Options(),
		}
		if cur := s.core.Playback.Current(); cur != nil {
			state.CurrentTLID = cur.TLID
		}
		return nil
	})
	if err != nil {
		return err
	}
	state.Volume = s.core.Mixer.Volume()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tracklist state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write tracklist file: %w", err)
	}
	return nil
}

// AutoSave saves after tracklist, option or volume changes until ctx is
// done. Bursts of changes within delay are written once.
func (s *Store) AutoSave(ctx context.Context, delay time.Duration) {
	listener := s.core.Bus.Subscribe()
	defer listener.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-listener.C():
			dirty := false
			for _, e := range listener.Drain() {
				switch e.Type {
				case EventTracklistChanged, EventOptionsChanged, EventVolumeChanged, EventTrackPlaybackStarted:
					dirty = true
				}
			}
			if dirty && timer == nil {
				timer = time.NewTimer(delay)
				fire = timer.C
			}
		case <-fire:
			timer, fire = nil, nil
			if err := s.Save(ctx); err != nil {
				s.logger.Warn("failed to save tracklist", "err", err)
			}
		}
	}
}

// FilePath returns the path to the tracklist file
func (s *Store) FilePath() string {
	return s.filePath
}
