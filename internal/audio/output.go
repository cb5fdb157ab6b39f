package audio

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hajimehoshi/oto/v2"
)

const (
	defaultSampleRate = 44100
	defaultChannels   = 2
	bytesPerSample    = 2

	// A short buffer keeps a stop or seek from playing stale audio
	defaultBufferMs = 100
)

// Output is the sink a Renderer plays PCM into
type Output interface {
	PCMWriter
	Pause()
	Resume()
	// Stop drops buffered audio
	Stop()
	SetVolume(v float64)
	Close() error
}

// OtoOutput plays PCM through the system audio device
type OtoOutput struct {
	context    *oto.Context
	player     oto.Player
	sampleRate int
	channels   int
	bufferSize int

	mu     sync.Mutex
	cond   *sync.Cond
	buffer *bytes.Buffer
	volume float64
	paused bool
	closed bool
}

// NewOtoOutput opens the default device at 44.1kHz stereo
func NewOtoOutput() (*OtoOutput, error) {
	return NewOtoOutputWithConfig(defaultSampleRate, defaultChannels, defaultBufferMs)
}

// NewOtoOutputWithConfig opens the default device with a custom format and
// buffer length
func NewOtoOutputWithConfig(sampleRate, channels, bufferMs int) (*OtoOutput, error) {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	if bufferMs <= 0 {
		bufferMs = defaultBufferMs
	}
	ctx, ready, err := oto.NewContext(sampleRate, channels, bytesPerSample)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	o := &OtoOutput{
		context:    ctx,
		sampleRate: sampleRate,
		channels:   channels,
		bufferSize: sampleRate * channels * bytesPerSample * bufferMs / 1000,
		buffer:     &bytes.Buffer{},
		volume:     1.0,
	}
	o.cond = sync.NewCond(&o.mu)
	o.player = ctx.NewPlayer(o)
	return o, nil
}

// Read feeds the oto player. An empty buffer plays silence so the device
// stream stays open between tracks.
func (o *OtoOutput) Read(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for o.paused && !o.closed {
		o.cond.Wait()
	}
	if o.closed {
		return 0, io.EOF
	}

	if o.buffer.Len() == 0 {
		clear(p)
		return len(p), nil
	}

	n, err := o.buffer.Read(p)
	if err != nil {
		return n, err
	}
	if o.volume < 1.0 && n > 0 {
		o.applyVolume(p[:n])
	}
	return n, nil
}

// applyVolume scales 16-bit PCM samples by the current volume
func (o *OtoOutput) applyVolume(data []byte) {
	vol := o.volume
	if vol >= 1.0 {
		return
	}
	for i := 0; i < len(data)-1; i += 2 {
		sample := int16(data[i]) | int16(data[i+1])<<8
		scaled := int16(float64(sample) * vol)
		data[i] = byte(scaled)
		data[i+1] = byte(scaled >> 8)
	}
}

// SetVolume sets the gain (0.0 - 1.0)
func (o *OtoOutput) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = min(max(v, 0), 1)
}

// Volume returns the current gain
func (o *OtoOutput) Volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// Write buffers PCM, blocking while the buffer is full so decoding keeps
// pace with playback
func (o *OtoOutput) Write(data []byte) (int, error) {
	for {
		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return 0, io.ErrClosedPipe
		}
		if o.buffer.Len() < o.bufferSize {
			break
		}
		o.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	defer o.mu.Unlock()

	n, err := o.buffer.Write(data)
	if err != nil {
		return n, err
	}
	if o.player != nil && !o.player.IsPlaying() && !o.paused {
		o.player.Play()
	}
	return n, nil
}

// Pause holds playback until Resume
func (o *OtoOutput) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = true
	if o.player != nil && o.player.IsPlaying() {
		o.player.Pause()
	}
}

// Resume continues after Pause
func (o *OtoOutput) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = false
	o.cond.Broadcast()
	if o.player != nil && !o.player.IsPlaying() {
		o.player.Play()
	}
}

// Stop pauses the device and drops buffered audio
func (o *OtoOutput) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = false
	o.cond.Broadcast()
	if o.player != nil {
		o.player.Pause()
	}
	o.buffer.Reset()
}

// Close releases the device
func (o *OtoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.cond.Broadcast()
	if o.player != nil {
		return o.player.Close()
	}
	return nil
}

func (o *OtoOutput) SampleRate() int { return o.sampleRate }
func (o *OtoOutput) Channels() int   { return o.channels }

var _ Output = (*OtoOutput)(nil)
