package output

import (
	"fmt"
	"log/slog"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/drgolem/chipplay/pkg/types"
)

// PortAudio opens callback streams on a PortAudio device.
type PortAudio struct {
	deviceIndex     int
	framesPerBuffer int
}

// NewPortAudio initializes PortAudio. Close terminates it.
func NewPortAudio(deviceIdx, framesPerBuffer int) (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	slog.Debug("PortAudio initialized", "version", portaudio.GetVersion())
	return &PortAudio{
		deviceIndex:     deviceIdx,
		framesPerBuffer: framesPerBuffer,
	}, nil
}

func (p *PortAudio) Name() string {
	return "portaudio"
}

func (p *PortAudio) Close() error {
	portaudio.Terminate()
	return nil
}

func (p *PortAudio) Open(format types.AudioFormat, cb Callback) (Stream, error) {
	var sampleFormat portaudio.PaSampleFormat
	switch format.SampleFormat {
	case types.SampleFormatS16:
		sampleFormat = portaudio.SampleFmtInt16
	default:
		return nil, fmt.Errorf("unsupported sample format: %s", format.SampleFormat)
	}

	s := &paStream{
		format:     format,
		cb:         cb,
		frameBytes: format.BytesPerFrame(),
		stream: &portaudio.PaStream{
			OutputParameters: &portaudio.PaStreamParameters{
				DeviceIndex:  p.deviceIndex,
				ChannelCount: format.Channels,
				SampleFormat: sampleFormat,
			},
			SampleRate: float64(format.SampleRate),
		},
	}
	if err := s.stream.OpenCallback(p.framesPerBuffer, s.audioCallback); err != nil {
		return nil, fmt.Errorf("failed to open stream with callback: %w", err)
	}

	slog.Debug("PortAudio stream opened",
		"device_index", p.deviceIndex,
		"sample_rate", format.SampleRate,
		"channels", format.Channels,
		"frames_per_buffer", p.framesPerBuffer)
	return s, nil
}

type paStream struct {
	stream     *portaudio.PaStream
	format     types.AudioFormat
	cb         Callback
	frameBytes int
	running    bool
}

// audioCallback runs on PortAudio's own thread, outside the Go scheduler.
func (s *paStream) audioCallback(
	input, output []byte,
	frameCount uint,
	timeInfo *portaudio.StreamCallbackTimeInfo,
	statusFlags portaudio.StreamCallbackFlags,
) portaudio.StreamCallbackResult {
	n := min(int(frameCount)*s.frameBytes, len(output))
	s.cb(output[:n])
	return portaudio.Continue
}

func (s *paStream) Format() types.AudioFormat {
	return s.format
}

func (s *paStream) Start() error {
	if s.running {
		return nil
	}
	if err := s.stream.StartStream(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	s.running = true
	return nil
}

func (s *paStream) Stop() error {
	if !s.running {
		return nil
	}
	s.running = false
	if err := s.stream.StopStream(); err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}
	return nil
}

func (s *paStream) Close() error {
	if err := s.Stop(); err != nil {
		slog.Warn("Failed to stop stream", "error", err)
	}
	if err := s.stream.CloseCallback(); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}
