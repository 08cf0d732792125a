package audio

import (
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/emotion-kiosk/platform/internal/errors"
)

// framesPerBuffer keeps callback latency around 12ms at 44.1kHz.
const framesPerBuffer = 512

// Engine abstracts the playback device so the scheduler can be tested
// without audio hardware.
type Engine interface {
	// Play starts a clip. Non-blocking; fails if a clip is already playing.
	Play(clip *Clip) error
	// Busy reports whether the device is still producing audio.
	Busy() bool
	// Stop halts playback and releases the stream. Idempotent.
	Stop()
	// Close releases the device. Idempotent.
	Close()
}

// PortAudioEngine plays clips through the default output device.
type PortAudioEngine struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	clip    *Clip // set before Start, untouched until after Stop
	pos     int   // callback-owned cursor into clip.Samples
	playing atomic.Bool
	closed  bool
}

// NewPortAudioEngine initializes the audio subsystem.
func NewPortAudioEngine() (*PortAudioEngine, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Wrap(err, errors.CodeConnection, "audio device init failed")
	}
	return &PortAudioEngine{}, nil
}

// Play opens an output stream matched to the clip and starts it.
func (e *PortAudioEngine) Play(clip *Clip) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.New(errors.CodeConnection, "audio engine closed")
	}
	if e.stream != nil {
		return errors.New(errors.CodeResourceLoad, "a clip is already playing")
	}

	e.clip = clip
	e.pos = 0

	stream, err := portaudio.OpenDefaultStream(
		0, clip.Channels, float64(clip.SampleRate), framesPerBuffer, e.fill)
	if err != nil {
		return errors.Wrapf(err, errors.CodeResourceLoad, "cannot open output stream for %s", clip.Name)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return errors.Wrapf(err, errors.CodeResourceLoad, "cannot start output stream for %s", clip.Name)
	}

	e.stream = stream
	e.playing.Store(true)
	return nil
}

// fill runs on the portaudio callback goroutine. It must not take e.mu:
// Stop tears the stream down while holding the lock and waits for the
// callback to drain.
func (e *PortAudioEngine) fill(out []float32) {
	clip := e.clip
	if clip == nil || e.pos >= len(clip.Samples) {
		for i := range out {
			out[i] = 0
		}
		e.playing.Store(false)
		return
	}

	n := copy(out, clip.Samples[e.pos:])
	e.pos += n
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	if e.pos >= len(clip.Samples) {
		e.playing.Store(false)
	}
}

// Busy reports whether samples remain to be played.
func (e *PortAudioEngine) Busy() bool {
	return e.playing.Load()
}

// Stop halts and closes the active stream.
func (e *PortAudioEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream != nil {
		_ = e.stream.Stop()
		_ = e.stream.Close()
		e.stream = nil
	}
	e.clip = nil
	e.playing.Store(false)
}

// Close stops playback and terminates the audio subsystem.
func (e *PortAudioEngine) Close() {
	e.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		_ = portaudio.Terminate()
	}
}

// NopEngine is a silent engine used when no audio device is available: the
// kiosk keeps running, cues are simply inaudible.
type NopEngine struct{}

func (NopEngine) Play(*Clip) error { return nil }
func (NopEngine) Busy() bool       { return false }
func (NopEngine) Stop()            {}
func (NopEngine) Close()           {}
