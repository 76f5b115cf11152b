// Package config holds the player settings shared by the application and the
// command wiring.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/drgolem/chipplay/internal/output"
	"github.com/drgolem/chipplay/pkg/decoders"
)

// Settings holds player configuration
type Settings struct {
	SkipUnsupported       bool // keep going past files that fail to load
	SkipSubtunes          bool // next/prev move between files only
	AlwaysStartFirstTrack bool // ignore the container's default subtune

	DataPath      string        // directory holding the C64 ROM images
	SIDSongLength time.Duration // 0 plays SID tunes endlessly

	Backend         string // "portaudio" or "oto"
	DeviceIndex     int    // PortAudio device index
	FramesPerBuffer int    // PortAudio frames per callback
	DeviceRate      int    // oto device sample rate
}

// Default returns default settings
func Default() Settings {
	out := output.DefaultConfig()
	return Settings{
		SkipUnsupported: true,
		DataPath:        "data",
		Backend:         out.Backend,
		DeviceIndex:     out.DeviceIndex,
		FramesPerBuffer: out.FramesPerBuffer,
		DeviceRate:      out.DeviceRate,
	}
}

// Validate reports every invalid field.
func (s Settings) Validate() error {
	var errs []error
	switch s.Backend {
	case "portaudio", "oto":
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", s.Backend))
	}
	if s.FramesPerBuffer <= 0 {
		errs = append(errs, fmt.Errorf("frames per buffer must be positive, got %d", s.FramesPerBuffer))
	}
	if s.DeviceRate <= 0 {
		errs = append(errs, fmt.Errorf("device rate must be positive, got %d", s.DeviceRate))
	}
	if s.SIDSongLength < 0 {
		errs = append(errs, fmt.Errorf("SID song length must not be negative, got %s", s.SIDSongLength))
	}
	return errors.Join(errs...)
}

// Output returns the output backend configuration.
func (s Settings) Output() output.Config {
	return output.Config{
		Backend:         s.Backend,
		DeviceIndex:     s.DeviceIndex,
		FramesPerBuffer: s.FramesPerBuffer,
		DeviceRate:      s.DeviceRate,
	}
}

// Decoders returns the decoder registry options.
func (s Settings) Decoders() decoders.Options {
	return decoders.Options{
		DataPath:      s.DataPath,
		SIDSongLength: s.SIDSongLength,
	}
}
