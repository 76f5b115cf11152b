package types

import (
	"time"
)

// SampleFormat identifies the encoding of one PCM sample.
type SampleFormat int

const (
	SampleFormatUnknown SampleFormat = iota
	SampleFormatS16                  // signed 16-bit little-endian
	SampleFormatU8                   // unsigned 8-bit
	SampleFormatF32                  // 32-bit float little-endian
)

// BytesPerSample returns the width of one sample of this format.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleFormatS16:
		return 2
	case SampleFormatU8:
		return 1
	case SampleFormatF32:
		return 4
	default:
		return 0
	}
}

func (f SampleFormat) String() string {
	switch f {
	case SampleFormatS16:
		return "s16"
	case SampleFormatU8:
		return "u8"
	case SampleFormatF32:
		return "f32"
	default:
		return "unknown"
	}
}

// AudioFormat describes the fixed native output configuration of a decoder.
type AudioFormat struct {
	SampleRate   int // Hz (e.g. 44100, 48000)
	Channels     int // 1=mono, 2=stereo
	SampleFormat SampleFormat
}

// BytesPerFrame returns the size of one interleaved frame.
func (f AudioFormat) BytesPerFrame() int {
	return f.Channels * f.SampleFormat.BytesPerSample()
}

// BitsPerSample returns the bit depth of one sample.
func (f AudioFormat) BitsPerSample() int {
	return f.SampleFormat.BytesPerSample() * 8
}

// Status is the outcome of one Process call.
type Status int

const (
	StatusContinue Status = 0  // more data available
	StatusEnded    Status = 1  // stream exhausted (natural end)
	StatusError    Status = -1 // decode error
)

func (s Status) String() string {
	switch s {
	case StatusContinue:
		return "continue"
	case StatusEnded:
		return "ended"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Decoder is the common contract for all chiptune backends.
// One adapter wraps one emulation core; the adapter is set up once and then
// reused for every file of its supported type.
type Decoder interface {
	// Name returns the backend name (e.g. "sidplay")
	Name() string

	// Setup performs one-time backend initialization (allocations, ROM preloading).
	// A failing Setup disables the adapter for the process lifetime.
	Setup() error

	// Cleanup releases backend resources. Safe to call more than once.
	Cleanup()

	// Extensions lists the extensions CanRead accepts
	Extensions() []string

	// CanRead reports whether the backend handles the given lower-cased
	// extension, including the leading dot (".sid"). No content sniffing.
	CanRead(ext string) bool

	// GetFormat returns the fixed native output format of the backend
	GetFormat() AudioFormat

	// Play parses an in-memory container and selects the initial track:
	// the container's default track when defaultTrack is set, track 1 otherwise.
	// On failure the previously loaded container and metadata are kept.
	Play(data []byte, defaultTrack bool) error

	// Stop halts playback without discarding the parsed container
	Stop()

	// Process fills buf with interleaved PCM.
	// Parameters:
	//   buf: destination, filled completely unless the stream is exhausted
	// Returns: StatusContinue, StatusEnded (partial fill, tail zeroed) or
	// StatusError together with the decode error.
	// Note: must not block or allocate, it runs on the audio thread
	Process(buf []byte) (Status, error)

	// NextTrack advances to the next subtune. Returns false at the last
	// track or when the container has no subtunes.
	NextTrack() bool

	// PrevTrack retreats to the previous subtune. Returns false at track 1
	// or when the container has no subtunes.
	PrevTrack() bool

	// MetaData returns the current metadata, refreshing the playback position
	MetaData() MetaData
}

// PlaybackStatus holds unified playback information for audio players.
// This struct provides real-time metrics for monitoring audio playback.
type PlaybackStatus struct {
	FileName        string        // Name of the currently loaded file
	Decoder         string        // Name of the active backend
	SampleRate      int           // Audio sample rate in Hz (e.g., 44100, 48000)
	Channels        int           // Number of audio channels (1=mono, 2=stereo)
	BitsPerSample   int           // Bit depth
	FramesPerBuffer int           // Output frames per buffer (if applicable)
	PlayedSamples   uint64        // Frames actually sent to audio output
	ElapsedTime     time.Duration // Wall-clock time since playback started
}

// PlaybackMonitor is an interface for types that can report playback status.
type PlaybackMonitor interface {
	GetPlaybackStatus() PlaybackStatus
}
