package core

import (
	"fmt"
	"sync"
)

// VolumeSink receives the effective output gain (0.0 - 1.0)
type VolumeSink interface {
	SetVolume(v float64)
}

// Mixer holds the software volume and mute switch. It is safe for
// concurrent use.
type Mixer struct {
	mu     sync.Mutex
	bus    Publisher
	volume int // 0-100, -1 when unknown
	mute   bool
	sink   VolumeSink
}

// NewMixer creates a mixer. A negative volume means unknown. sink may be nil.
func NewMixer(bus Publisher, volume int, sink VolumeSink) *Mixer {
	if volume > 100 {
		volume = 100
	}
	m := &Mixer{bus: bus, volume: volume, sink: sink}
	m.apply()
	return m
}

// Volume returns the volume 0-100, or -1 if unknown
func (m *Mixer) Volume() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// SetVolume sets the volume 0-100
func (m *Mixer) SetVolume(v int) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%w: volume %d outside 0-100", ErrInvalidRange, v)
	}
	m.mu.Lock()
	if m.volume == v {
		m.mu.Unlock()
		return nil
	}
	m.volume = v
	m.apply()
	m.mu.Unlock()

	m.bus.Publish(Event{Type: EventVolumeChanged, Volume: v})
	return nil
}

// Mute reports whether output is muted
func (m *Mixer) Mute() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mute
}

// SetMute mutes or unmutes output
func (m *Mixer) SetMute(mute bool) {
	m.mu.Lock()
	if m.mute == mute {
		m.mu.Unlock()
		return
	}
	m.mute = mute
	m.apply()
	m.mu.Unlock()

	m.bus.Publish(Event{Type: EventMuteChanged, Mute: mute})
}

// apply pushes the effective gain to the sink; callers hold mu or own m
func (m *Mixer) apply() {
	if m.sink == nil {
		return
	}
	switch {
	case m.mute:
		m.sink.SetVolume(0)
	case m.volume < 0:
		m.sink.SetVolume(1)
	default:
		m.sink.SetVolume(float64(m.volume) / 100)
	}
}
