// Package output binds decoded PCM to an audio device. A stream pulls its
// data through a Callback running on the audio thread.
package output

import (
	"fmt"

	"github.com/drgolem/chipplay/pkg/types"
)

// Callback fills buf with interleaved PCM in the stream's source format.
// It runs on the audio thread and must not block.
type Callback func(buf []byte)

// Stream is one opened output stream.
type Stream interface {
	Start() error
	Stop() error
	Close() error
	// Format is the source format the callback produces
	Format() types.AudioFormat
}

// Backend opens streams on one audio API.
type Backend interface {
	Name() string
	Open(format types.AudioFormat, cb Callback) (Stream, error)
	Close() error
}

// Config holds output configuration
type Config struct {
	Backend         string // "portaudio" or "oto"
	DeviceIndex     int    // PortAudio device index
	FramesPerBuffer int    // PortAudio frames per callback
	DeviceRate      int    // oto device sample rate, source audio is resampled to it
}

// DefaultConfig returns default output configuration
func DefaultConfig() Config {
	return Config{
		Backend:         "portaudio",
		DeviceIndex:     1,
		FramesPerBuffer: 512,
		DeviceRate:      48000,
	}
}

// New opens the backend named in cfg.
func New(cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "portaudio", "":
		return NewPortAudio(cfg.DeviceIndex, cfg.FramesPerBuffer)
	case "oto":
		return NewOto(cfg.DeviceRate), nil
	}
	return nil, fmt.Errorf("unknown output backend %q (supported: portaudio, oto)", cfg.Backend)
}
