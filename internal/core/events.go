package core

import (
	"sync"

	"github.com/austinkregel/local-media/mpdd/internal/types"
)

// EventType names a domain state change
type EventType string

const (
	EventPlaybackStateChanged EventType = "playback_state_changed"
	EventTrackPlaybackStarted EventType = "track_playback_started"
	EventTrackPlaybackPaused  EventType = "track_playback_paused"
	EventTrackPlaybackResumed EventType = "track_playback_resumed"
	EventTrackPlaybackEnded   EventType = "track_playback_ended"
	EventSeeked               EventType = "seeked"
	EventTracklistChanged     EventType = "tracklist_changed"
	EventOptionsChanged       EventType = "options_changed"
	EventVolumeChanged        EventType = "volume_changed"
	EventMuteChanged          EventType = "mute_changed"
	EventStreamTitleChanged   EventType = "stream_title_changed"
	EventPlaylistsLoaded      EventType = "playlists_loaded"
	EventPlaylistChanged      EventType = "playlist_changed"
	EventPlaylistDeleted      EventType = "playlist_deleted"
	EventLibraryRefreshed     EventType = "library_refreshed"
)

// Idle subsystems, in the order they are reported
const (
	SubsystemDatabase       = "database"
	SubsystemMixer          = "mixer"
	SubsystemOptions        = "options"
	SubsystemOutput         = "output"
	SubsystemPlayer         = "player"
	SubsystemPlaylist       = "playlist"
	SubsystemStoredPlaylist = "stored_playlist"
	SubsystemUpdate         = "update"
)

// Subsystems lists every idle subsystem
var Subsystems = []string{
	SubsystemDatabase,
	SubsystemMixer,
	SubsystemOptions,
	SubsystemOutput,
	SubsystemPlayer,
	SubsystemPlaylist,
	SubsystemStoredPlaylist,
	SubsystemUpdate,
}

// Event is a notification published by the core. Only the fields relevant
// to Type are set.
type Event struct {
	Type         EventType
	TlTrack      *types.TlTrack
	TimePosition int64
	OldState     PlaybackState
	NewState     PlaybackState
	Volume       int
	Mute         bool
	Title        string
	Playlist     *types.Playlist
	URI          string
}

// Subsystem returns the idle subsystem the event wakes, or "" if it wakes none
func (e Event) Subsystem() string {
	switch e.Type {
	case EventPlaybackStateChanged, EventSeeked:
		return SubsystemPlayer
	case EventTracklistChanged, EventStreamTitleChanged:
		return SubsystemPlaylist
	case EventOptionsChanged:
		return SubsystemOptions
	case EventVolumeChanged:
		return SubsystemMixer
	case EventMuteChanged:
		return SubsystemOutput
	case EventPlaylistsLoaded, EventPlaylistChanged, EventPlaylistDeleted:
		return SubsystemStoredPlaylist
	case EventLibraryRefreshed:
		return SubsystemDatabase
	}
	return ""
}

// Publisher accepts events
type Publisher interface {
	Publish(e Event)
}

// Bus fans events out to every subscribed listener in publish order.
// Publish never blocks on a slow listener.
type Bus struct {
	mu        sync.Mutex
	listeners map[*Listener]struct{}
}

// NewBus creates an event bus
func NewBus() *Bus {
	return &Bus{listeners: make(map[*Listener]struct{})}
}

// Subscribe registers a new listener. Call Close when done with it.
func (b *Bus) Subscribe() *Listener {
	l := &Listener{bus: b, wake: make(chan struct{}, 1)}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Publish appends the event to every listener's mailbox. Holding the bus
// lock across the loop keeps the order identical for all listeners.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for l := range b.listeners {
		l.push(e)
	}
}

func (b *Bus) remove(l *Listener) {
	b.mu.Lock()
	delete(b.listeners, l)
	b.mu.Unlock()
}

// Listener is an unbounded FIFO mailbox of events
type Listener struct {
	bus   *Bus
	mu    sync.Mutex
	queue []Event
	wake  chan struct{}
}

func (l *Listener) push(e Event) {
	l.mu.Lock()
	l.queue = append(l.queue, e)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// C is signalled whenever new events are waiting
func (l *Listener) C() <-chan struct{} {
	return l.wake
}

// Drain returns and removes all pending events
func (l *Listener) Drain() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	events := l.queue
	l.queue = nil
	return events
}

// Close unsubscribes the listener
func (l *Listener) Close() {
	l.bus.remove(l)
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(e Event)

func (f PublisherFunc) Publish(e Event) { f(e) }
