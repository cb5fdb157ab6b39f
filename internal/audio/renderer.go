// Package audio renders tracks to the sound card. FFmpeg decodes files and
// streams to PCM and oto plays it. Every Load starts a new stream with its
// own id; when a stream plays to its end the renderer reports the id so a
// stream replaced in the meantime can be told apart.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// clock tracks the play position of a stream across pauses
type clock struct {
	now     func() time.Time
	base    int64
	started time.Time
	running bool
}

func (c *clock) start(atMs int64) {
	c.base = atMs
	c.started = c.now()
	c.running = true
}

func (c *clock) pause() {
	if c.running {
		c.base = c.position()
		c.running = false
	}
}

func (c *clock) resume() {
	if !c.running {
		c.started = c.now()
		c.running = true
	}
}

func (c *clock) stop() {
	c.base = 0
	c.running = false
}

func (c *clock) position() int64 {
	if !c.running {
		return c.base
	}
	return c.base + c.now().Sub(c.started).Milliseconds()
}

// countingWriter remembers how much PCM has been handed to the output
type countingWriter struct {
	PCMWriter
	mu      sync.Mutex
	written int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.PCMWriter.Write(p)
	w.mu.Lock()
	w.written += int64(n)
	w.mu.Unlock()
	return n, err
}

// decodedMs is the play time of everything written so far
func (w *countingWriter) decodedMs() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	rate := int64(w.SampleRate() * w.Channels() * bytesPerSample)
	if rate == 0 {
		return 0
	}
	return w.written * 1000 / rate
}

// Renderer plays one location at a time through an Output
type Renderer struct {
	decoder Decoder
	output  Output
	logger  *log.Logger

	playbackMu sync.Mutex // serializes Load and Seek

	mu       sync.Mutex
	stream   uint64
	location string
	length   int64
	clock    clock
	paused   bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopped  chan struct{} // done of a stream ended by Stop
	onEnd    func(stream uint64)
}

// NewRenderer plays through the system audio device using ffmpeg
func NewRenderer(sampleRate, bufferMs int, logger *log.Logger) (*Renderer, error) {
	output, err := NewOtoOutputWithConfig(sampleRate, defaultChannels, bufferMs)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio output: %w", err)
	}
	decoder, err := NewFFmpegDecoder()
	if err != nil {
		output.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	return NewRendererWith(decoder, output, logger), nil
}

// NewRendererWith builds a renderer from explicit parts
func NewRendererWith(decoder Decoder, output Output, logger *log.Logger) *Renderer {
	return &Renderer{
		decoder: decoder,
		output:  output,
		logger:  logger,
		clock:   clock{now: time.Now},
	}
}

// SetOnEndOfStream registers the callback fired when a stream plays out
func (r *Renderer) SetOnEndOfStream(fn func(stream uint64)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEnd = fn
}

// CurrentStream is the id of the most recently loaded stream
func (r *Renderer) CurrentStream() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stream
}

// Load stops whatever is playing and starts location at startMs. lengthMs
// may be zero when unknown.
func (r *Renderer) Load(ctx context.Context, location string, lengthMs, startMs int64) error {
	if !isRemote(location) {
		if _, err := os.Stat(location); err != nil {
			return fmt.Errorf("cannot open %s: %w", location, err)
		}
		if lengthMs <= 0 {
			if d, err := r.decoder.Duration(ctx, location); err == nil {
				lengthMs = d.Milliseconds()
			}
		}
	}

	r.playbackMu.Lock()
	defer r.playbackMu.Unlock()
	r.start(location, lengthMs, startMs, false)
	return nil
}

// start must be called with playbackMu held
func (r *Renderer) start(location string, lengthMs, startMs int64, paused bool) {
	r.mu.Lock()
	oldDone := r.cancelLocked()
	if oldDone == nil {
		oldDone = r.stopped
	}
	r.stopped = nil
	// Unblocks a decoder waiting on a full buffer
	r.output.Stop()
	r.mu.Unlock()
	if oldDone != nil {
		<-oldDone
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.output.Stop()

	r.stream++
	r.location = location
	r.length = lengthMs
	r.clock.start(startMs)
	r.paused = paused
	if paused {
		r.clock.pause()
		r.output.Pause()
	}

	playCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done

	stream := r.stream
	r.logger.Debug("starting stream", "stream", stream, "location", location, "start", startMs)
	go func() {
		defer close(done)
		r.run(playCtx, stream, location, startMs)
	}()
}

func (r *Renderer) cancelLocked() chan struct{} {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	r.cancel = nil
	done := r.done
	r.done = nil
	return done
}

func (r *Renderer) run(ctx context.Context, stream uint64, location string, startMs int64) {
	out := &countingWriter{PCMWriter: r.output}
	err := r.decoder.Decode(ctx, location, out, startMs)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		r.logger.Warn("decode failed", "stream", stream, "location", location, "err", err)
	}

	// Decoding runs ahead of the device; wait for the buffered audio
	end := startMs + out.decodedMs()
	if length := r.lengthOf(stream); length > 0 {
		end = min(end, length)
	}
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for r.Position() < end {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	r.mu.Lock()
	if ctx.Err() != nil || r.stream != stream {
		r.mu.Unlock()
		return
	}
	r.clock.stop()
	r.cancel = nil
	r.done = nil
	onEnd := r.onEnd
	r.mu.Unlock()

	r.logger.Debug("stream finished", "stream", stream, "location", location)
	if onEnd != nil {
		onEnd(stream)
	}
}

func (r *Renderer) lengthOf(stream uint64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stream != stream {
		return 0
	}
	return r.length
}

// Pause holds the current stream
func (r *Renderer) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused {
		return nil
	}
	r.paused = true
	r.clock.pause()
	r.output.Pause()
	return nil
}

// Resume continues a paused stream
func (r *Renderer) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		return nil
	}
	r.paused = false
	r.clock.resume()
	r.output.Resume()
	return nil
}

// Stop ends the current stream without reporting its end
func (r *Renderer) Stop() error {
	r.mu.Lock()
	if done := r.cancelLocked(); done != nil {
		r.stopped = done
	}
	r.clock.stop()
	r.paused = false
	r.output.Stop()
	r.mu.Unlock()
	return nil
}

// Seek restarts the current location at positionMs, keeping it paused if
// it was paused
func (r *Renderer) Seek(positionMs int64) error {
	r.playbackMu.Lock()
	defer r.playbackMu.Unlock()

	r.mu.Lock()
	location, length, paused := r.location, r.length, r.paused
	r.mu.Unlock()
	if location == "" {
		return errors.New("nothing loaded")
	}
	if positionMs < 0 {
		positionMs = 0
	}
	if length > 0 && positionMs > length {
		positionMs = length
	}
	r.start(location, length, positionMs, paused)
	return nil
}

// Position is the play position of the current stream in milliseconds
func (r *Renderer) Position() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos := r.clock.position()
	if r.length > 0 && pos > r.length {
		pos = r.length
	}
	return pos
}

// SetVolume sets the output gain (0.0 - 1.0)
func (r *Renderer) SetVolume(v float64) {
	r.output.SetVolume(v)
}

// Close stops playback and releases the device
func (r *Renderer) Close() error {
	r.mu.Lock()
	done := r.cancelLocked()
	if done == nil {
		done = r.stopped
	}
	r.output.Stop()
	r.mu.Unlock()
	if done != nil {
		<-done
	}
	return r.output.Close()
}
