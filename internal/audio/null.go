package audio

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// NullRenderer keeps time like a real renderer but produces no sound. It
// serves test mode and machines without an audio device.
type NullRenderer struct {
	logger *log.Logger

	mu     sync.Mutex
	stream uint64
	length int64
	clock  clock
	paused bool
	volume float64
	timer  *time.Timer
	onEnd  func(stream uint64)
}

// NewNullRenderer creates a silent renderer
func NewNullRenderer(logger *log.Logger) *NullRenderer {
	return &NullRenderer{
		logger: logger,
		clock:  clock{now: time.Now},
		volume: 1.0,
	}
}

// SetOnEndOfStream registers the callback fired when a stream plays out
func (r *NullRenderer) SetOnEndOfStream(fn func(stream uint64)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEnd = fn
}

// CurrentStream is the id of the most recently loaded stream
func (r *NullRenderer) CurrentStream() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stream
}

// Load starts a new silent stream. Streams of unknown length never end.
func (r *NullRenderer) Load(ctx context.Context, location string, lengthMs, startMs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTimerLocked()
	r.stream++
	r.length = lengthMs
	r.paused = false
	r.clock.start(startMs)
	r.scheduleLocked()
	r.logger.Debug("starting silent stream", "stream", r.stream, "location", location)
	return nil
}

func (r *NullRenderer) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *NullRenderer) scheduleLocked() {
	if r.length <= 0 || r.paused {
		return
	}
	remaining := max(r.length-r.clock.position(), 0)
	stream := r.stream
	r.timer = time.AfterFunc(time.Duration(remaining)*time.Millisecond, func() {
		r.finish(stream)
	})
}

func (r *NullRenderer) finish(stream uint64) {
	r.mu.Lock()
	if r.stream != stream || r.timer == nil || r.paused {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	r.clock.stop()
	onEnd := r.onEnd
	r.mu.Unlock()

	if onEnd != nil {
		onEnd(stream)
	}
}

func (r *NullRenderer) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = true
	r.clock.pause()
	r.stopTimerLocked()
	return nil
}

func (r *NullRenderer) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		return nil
	}
	r.paused = false
	r.clock.resume()
	r.scheduleLocked()
	return nil
}

func (r *NullRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTimerLocked()
	r.clock.stop()
	r.paused = false
	return nil
}

func (r *NullRenderer) Seek(positionMs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTimerLocked()
	r.clock.base = max(positionMs, 0)
	r.clock.started = r.clock.now()
	r.scheduleLocked()
	return nil
}

func (r *NullRenderer) Position() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos := r.clock.position()
	if r.length > 0 && pos > r.length {
		pos = r.length
	}
	return pos
}

// SetVolume records the gain
func (r *NullRenderer) SetVolume(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volume = v
}

// Volume returns the last gain set
func (r *NullRenderer) Volume() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume
}
