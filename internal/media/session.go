// Package media publishes the player to the desktop media session (MPRIS on
// Linux) and routes media keys and desktop controls back into the core.
package media

import (
	"time"
)

// PlaybackState represents the playback state for media sessions
type PlaybackState int

const (
	StateStopped PlaybackState = iota
	StatePlaying
	StatePaused
)

// Metadata contains track metadata for media session display
type Metadata struct {
	TrackID  int // tracklist id, 0 when nothing is current
	Title    string
	Artists  []string
	Album    string
	Duration time.Duration
	URL      string
}

// LoopStatus represents the loop/repeat mode for MPRIS
type LoopStatus string

const (
	LoopNone     LoopStatus = "None"
	LoopTrack    LoopStatus = "Track"
	LoopPlaylist LoopStatus = "Playlist"
)

// Session is the interface for OS media session integration
type Session interface {
	// UpdateMetadata updates the currently playing track metadata
	UpdateMetadata(metadata Metadata) error

	// UpdatePlaybackState updates the playback state and position
	UpdatePlaybackState(state PlaybackState, position time.Duration) error

	// UpdatePosition reports a jump in the play position
	UpdatePosition(position time.Duration) error

	// UpdateShuffle updates the shuffle state
	UpdateShuffle(enabled bool) error

	// UpdateLoopStatus updates the repeat/loop mode
	UpdateLoopStatus(status LoopStatus) error

	// UpdateVolume updates the volume, 0.0 - 1.0
	UpdateVolume(volume float64) error

	// SetCommandHandler sets the handler for media commands (play, pause, etc.)
	SetCommandHandler(handler CommandHandler)

	// Close releases resources
	Close() error
}

// Command represents a media command from the OS
type Command int

const (
	CmdPlay Command = iota
	CmdPause
	CmdPlayPause
	CmdStop
	CmdNext
	CmdPrevious
	CmdSeek
	CmdSetShuffle
	CmdSetLoopStatus
	CmdSetVolume
)

// String returns the command name
func (c Command) String() string {
	switch c {
	case CmdPlay:
		return "Play"
	case CmdPause:
		return "Pause"
	case CmdPlayPause:
		return "PlayPause"
	case CmdStop:
		return "Stop"
	case CmdNext:
		return "Next"
	case CmdPrevious:
		return "Previous"
	case CmdSeek:
		return "Seek"
	case CmdSetShuffle:
		return "SetShuffle"
	case CmdSetLoopStatus:
		return "SetLoopStatus"
	case CmdSetVolume:
		return "SetVolume"
	default:
		return "Unknown"
	}
}

// CommandHandler handles media commands from the OS. data is a
// time.Duration for CmdSeek, a bool for CmdSetShuffle, a LoopStatus for
// CmdSetLoopStatus and a float64 for CmdSetVolume.
type CommandHandler interface {
	OnCommand(cmd Command, data interface{}) error
}

// CommandHandlerFunc is a function adapter for CommandHandler
type CommandHandlerFunc func(cmd Command, data interface{}) error

func (f CommandHandlerFunc) OnCommand(cmd Command, data interface{}) error {
	return f(cmd, data)
}
