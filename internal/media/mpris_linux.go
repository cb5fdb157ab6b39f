//go:build linux

package media

import (
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	mprisInterface       = "org.mpris.MediaPlayer2"
	mprisPlayerInterface = "org.mpris.MediaPlayer2.Player"
	mprisBusPrefix       = "org.mpris.MediaPlayer2."
	mprisObjectPath      = "/org/mpris/MediaPlayer2"
	mprisNoTrack         = "/org/mpris/MediaPlayer2/TrackList/NoTrack"
)

// MPRISSession implements MPRIS media session for Linux
type MPRISSession struct {
	conn    *dbus.Conn
	name    string
	schemes []string

	mu         sync.Mutex
	handler    CommandHandler
	metadata   Metadata
	state      PlaybackState
	position   time.Duration
	shuffle    bool
	loopStatus LoopStatus
	volume     float64
}

// NewSession claims org.mpris.MediaPlayer2.<name> on the session bus.
// schemes are advertised as SupportedUriSchemes.
func NewSession(name string, schemes []string) (Session, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	reply, err := conn.RequestName(mprisBusPrefix+name, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("bus name %s already taken", mprisBusPrefix+name)
	}

	session := &MPRISSession{
		conn:       conn,
		name:       name,
		schemes:    schemes,
		state:      StateStopped,
		loopStatus: LoopNone,
		volume:     1,
	}
	if err := session.exportInterfaces(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export interfaces: %w", err)
	}
	return session, nil
}

func (s *MPRISSession) exportInterfaces() error {
	path := dbus.ObjectPath(mprisObjectPath)
	for _, iface := range []string{mprisInterface, mprisPlayerInterface, "org.freedesktop.DBus.Properties"} {
		if err := s.conn.Export(s, path, iface); err != nil {
			return err
		}
	}
	return nil
}

// UpdateMetadata updates the track metadata
func (s *MPRISSession) UpdateMetadata(metadata Metadata) error {
	s.mu.Lock()
	s.metadata = metadata
	props := map[string]dbus.Variant{
		"Metadata": dbus.MakeVariant(s.metadataMap()),
	}
	s.mu.Unlock()
	return s.emitPropertiesChanged(props)
}

// UpdatePlaybackState updates the playback state. Clients extrapolate the
// position from Rate, so a Seeked signal is sent only on transitions into
// playing.
func (s *MPRISSession) UpdatePlaybackState(state PlaybackState, position time.Duration) error {
	s.mu.Lock()
	oldState := s.state
	s.state = state
	s.position = position
	props := map[string]dbus.Variant{
		"PlaybackStatus": dbus.MakeVariant(s.playbackStatus()),
	}
	s.mu.Unlock()

	if oldState != state && state == StatePlaying {
		s.emitSeeked(position)
	}
	return s.emitPropertiesChanged(props)
}

// UpdatePosition records a seek
func (s *MPRISSession) UpdatePosition(position time.Duration) error {
	s.mu.Lock()
	s.position = position
	s.mu.Unlock()
	return s.emitSeeked(position)
}

func (s *MPRISSession) emitSeeked(position time.Duration) error {
	return s.conn.Emit(
		dbus.ObjectPath(mprisObjectPath),
		mprisPlayerInterface+".Seeked",
		position.Microseconds(),
	)
}

// UpdateShuffle updates the shuffle state
func (s *MPRISSession) UpdateShuffle(enabled bool) error {
	s.mu.Lock()
	s.shuffle = enabled
	s.mu.Unlock()
	return s.emitPropertiesChanged(map[string]dbus.Variant{"Shuffle": dbus.MakeVariant(enabled)})
}

// UpdateLoopStatus updates the loop/repeat mode
func (s *MPRISSession) UpdateLoopStatus(status LoopStatus) error {
	s.mu.Lock()
	s.loopStatus = status
	s.mu.Unlock()
	return s.emitPropertiesChanged(map[string]dbus.Variant{"LoopStatus": dbus.MakeVariant(string(status))})
}

// UpdateVolume updates the volume
func (s *MPRISSession) UpdateVolume(volume float64) error {
	s.mu.Lock()
	s.volume = volume
	s.mu.Unlock()
	return s.emitPropertiesChanged(map[string]dbus.Variant{"Volume": dbus.MakeVariant(volume)})
}

// SetCommandHandler sets the handler for media commands
func (s *MPRISSession) SetCommandHandler(handler CommandHandler) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

// Close releases the bus name and the connection
func (s *MPRISSession) Close() error {
	if s.conn == nil {
		return nil
	}
	s.conn.ReleaseName(mprisBusPrefix + s.name)
	return s.conn.Close()
}

// dispatch forwards a command without holding the lock
func (s *MPRISSession) dispatch(cmd Command, data interface{}) *dbus.Error {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler == nil {
		return nil
	}
	if err := handler.OnCommand(cmd, data); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// org.mpris.MediaPlayer2 methods

func (s *MPRISSession) Raise() *dbus.Error {
	return nil
}

func (s *MPRISSession) Quit() *dbus.Error {
	return nil
}

// org.mpris.MediaPlayer2.Player methods

func (s *MPRISSession) Play() *dbus.Error {
	return s.dispatch(CmdPlay, nil)
}

func (s *MPRISSession) Pause() *dbus.Error {
	return s.dispatch(CmdPause, nil)
}

func (s *MPRISSession) PlayPause() *dbus.Error {
	return s.dispatch(CmdPlayPause, nil)
}

func (s *MPRISSession) Stop() *dbus.Error {
	return s.dispatch(CmdStop, nil)
}

func (s *MPRISSession) Next() *dbus.Error {
	return s.dispatch(CmdNext, nil)
}

func (s *MPRISSession) Previous() *dbus.Error {
	return s.dispatch(CmdPrevious, nil)
}

// Seek moves relative to the last known position, in microseconds
func (s *MPRISSession) Seek(offset int64) *dbus.Error {
	s.mu.Lock()
	newPos := s.position + time.Duration(offset)*time.Microsecond
	s.mu.Unlock()
	if newPos < 0 {
		newPos = 0
	}
	return s.dispatch(CmdSeek, newPos)
}

// SetPosition is ignored unless trackID is the current track
func (s *MPRISSession) SetPosition(trackID dbus.ObjectPath, position int64) *dbus.Error {
	s.mu.Lock()
	current := s.trackPath()
	s.mu.Unlock()
	if trackID != current || position < 0 {
		return nil
	}
	return s.dispatch(CmdSeek, time.Duration(position)*time.Microsecond)
}

func (s *MPRISSession) OpenUri(uri string) *dbus.Error {
	return dbus.MakeFailedError(fmt.Errorf("OpenUri is not supported"))
}

// org.freedesktop.DBus.Properties methods

func (s *MPRISSession) Get(iface, prop string) (dbus.Variant, *dbus.Error) {
	var props map[string]dbus.Variant
	switch iface {
	case mprisInterface:
		props = s.mediaPlayer2Properties()
	case mprisPlayerInterface:
		props = s.playerProperties()
	default:
		return dbus.Variant{}, dbus.MakeFailedError(fmt.Errorf("unknown interface: %s", iface))
	}
	if v, ok := props[prop]; ok {
		return v, nil
	}
	return dbus.Variant{}, dbus.MakeFailedError(fmt.Errorf("unknown property: %s", prop))
}

func (s *MPRISSession) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	switch iface {
	case mprisInterface:
		return s.mediaPlayer2Properties(), nil
	case mprisPlayerInterface:
		return s.playerProperties(), nil
	}
	return nil, dbus.MakeFailedError(fmt.Errorf("unknown interface: %s", iface))
}

func (s *MPRISSession) Set(iface, prop string, value dbus.Variant) *dbus.Error {
	if iface != mprisPlayerInterface {
		return nil
	}

	switch prop {
	case "Shuffle":
		enabled, ok := value.Value().(bool)
		if !ok {
			return dbus.MakeFailedError(fmt.Errorf("invalid type for Shuffle"))
		}
		return s.dispatch(CmdSetShuffle, enabled)
	case "LoopStatus":
		status, ok := value.Value().(string)
		if !ok {
			return dbus.MakeFailedError(fmt.Errorf("invalid type for LoopStatus"))
		}
		return s.dispatch(CmdSetLoopStatus, LoopStatus(status))
	case "Volume":
		volume, ok := value.Value().(float64)
		if !ok {
			return dbus.MakeFailedError(fmt.Errorf("invalid type for Volume"))
		}
		return s.dispatch(CmdSetVolume, volume)
	}
	return nil
}

func (s *MPRISSession) mediaPlayer2Properties() map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"CanQuit":             dbus.MakeVariant(false),
		"CanRaise":            dbus.MakeVariant(false),
		"HasTrackList":        dbus.MakeVariant(false),
		"Identity":            dbus.MakeVariant(s.name),
		"DesktopEntry":        dbus.MakeVariant(s.name),
		"SupportedUriSchemes": dbus.MakeVariant(s.schemes),
		"SupportedMimeTypes":  dbus.MakeVariant([]string{"audio/mpeg", "audio/flac", "audio/x-m4a", "audio/ogg", "audio/x-wav"}),
	}
}

func (s *MPRISSession) playerProperties() map[string]dbus.Variant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]dbus.Variant{
		"PlaybackStatus": dbus.MakeVariant(s.playbackStatus()),
		"Metadata":       dbus.MakeVariant(s.metadataMap()),
		"Position":       dbus.MakeVariant(s.position.Microseconds()),
		"Rate":           dbus.MakeVariant(1.0),
		"MinimumRate":    dbus.MakeVariant(1.0),
		"MaximumRate":    dbus.MakeVariant(1.0),
		"CanGoNext":      dbus.MakeVariant(true),
		"CanGoPrevious":  dbus.MakeVariant(true),
		"CanPlay":        dbus.MakeVariant(true),
		"CanPause":       dbus.MakeVariant(true),
		"CanSeek":        dbus.MakeVariant(s.metadata.Duration > 0),
		"CanControl":     dbus.MakeVariant(true),
		"Volume":         dbus.MakeVariant(s.volume),
		"Shuffle":        dbus.MakeVariant(s.shuffle),
		"LoopStatus":     dbus.MakeVariant(string(s.loopStatus)),
	}
}

// playbackStatus expects mu held
func (s *MPRISSession) playbackStatus() string {
	switch s.state {
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

// trackPath expects mu held
func (s *MPRISSession) trackPath() dbus.ObjectPath {
	if s.metadata.TrackID == 0 {
		return mprisNoTrack
	}
	return dbus.ObjectPath(fmt.Sprintf("/org/%s/track/%d", s.name, s.metadata.TrackID))
}

// metadataMap expects mu held
func (s *MPRISSession) metadataMap() map[string]dbus.Variant {
	m := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(s.trackPath()),
	}
	if s.metadata.Title != "" {
		m["xesam:title"] = dbus.MakeVariant(s.metadata.Title)
	}
	if len(s.metadata.Artists) > 0 {
		m["xesam:artist"] = dbus.MakeVariant(s.metadata.Artists)
	}
	if s.metadata.Album != "" {
		m["xesam:album"] = dbus.MakeVariant(s.metadata.Album)
	}
	if s.metadata.Duration > 0 {
		m["mpris:length"] = dbus.MakeVariant(s.metadata.Duration.Microseconds())
	}
	if s.metadata.URL != "" {
		m["xesam:url"] = dbus.MakeVariant(s.metadata.URL)
	}
	return m
}

func (s *MPRISSession) emitPropertiesChanged(props map[string]dbus.Variant) error {
	return s.conn.Emit(
		dbus.ObjectPath(mprisObjectPath),
		"org.freedesktop.DBus.Properties.PropertiesChanged",
		mprisPlayerInterface,
		props,
		[]string{},
	)
}
