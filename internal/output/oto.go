package output

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ebitengine/oto/v3"
	soxr "github.com/zaf/resample"

	"github.com/drgolem/chipplay/pkg/types"
)

const (
	otoChannels = 2

	// source frames pulled from the callback per resampler write
	pullFrames = 1024
)

// Oto plays through an oto context. The context runs at one device rate
// for the life of the process; sources at other rates are resampled.
type Oto struct {
	deviceRate int

	mu  sync.Mutex
	ctx *oto.Context
}

// NewOto returns an oto backend. The context is created on first Open.
func NewOto(deviceRate int) *Oto {
	if deviceRate <= 0 {
		deviceRate = 48000
	}
	return &Oto{deviceRate: deviceRate}
}

func (o *Oto) Name() string {
	return "oto"
}

func (o *Oto) context() (*oto.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx != nil {
		return o.ctx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   o.deviceRate,
		ChannelCount: otoChannels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready
	o.ctx = ctx
	slog.Debug("oto context ready", "sample_rate", o.deviceRate, "channels", otoChannels)
	return ctx, nil
}

func (o *Oto) Open(format types.AudioFormat, cb Callback) (Stream, error) {
	if format.SampleFormat != types.SampleFormatS16 {
		return nil, fmt.Errorf("unsupported sample format: %s", format.SampleFormat)
	}
	if format.Channels != 1 && format.Channels != otoChannels {
		return nil, fmt.Errorf("unsupported channel count: %d", format.Channels)
	}
	ctx, err := o.context()
	if err != nil {
		return nil, err
	}

	s := &otoStream{
		format:  format,
		cb:      cb,
		src:     make([]byte, pullFrames*format.BytesPerFrame()),
		pending: newFIFO(4 * pullFrames * otoChannels * 2),
	}
	if format.SampleRate != o.deviceRate {
		s.resampler, err = soxr.New(&s.resampled,
			float64(format.SampleRate),
			float64(o.deviceRate),
			format.Channels,
			soxr.I16,
			soxr.HighQ)
		if err != nil {
			return nil, fmt.Errorf("failed to create resampler: %w", err)
		}
	}
	s.player = ctx.NewPlayer(s)

	slog.Debug("oto stream opened",
		"source_rate", format.SampleRate,
		"device_rate", o.deviceRate,
		"channels", format.Channels,
		"resampled", s.resampler != nil)
	return s, nil
}

// Close suspends the context. oto cannot create a second context, so a
// closed backend is not reopened.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx == nil {
		return nil
	}
	return o.ctx.Suspend()
}

// otoStream is the io.Reader the oto player pulls from.
type otoStream struct {
	format    types.AudioFormat
	cb        Callback
	player    *oto.Player
	resampler *soxr.Resampler

	src       []byte
	resampled bytes.Buffer // resampler output in the source channel layout
	stereo    []byte       // upmix scratch for mono sources
	pending   *fifo        // device-rate stereo PCM not yet handed to oto
}

func (s *otoStream) Format() types.AudioFormat {
	return s.format
}

// Read fills p with device-rate stereo PCM.
func (s *otoStream) Read(p []byte) (int, error) {
	want := len(p) &^ 3
	for s.pending.Len() < want {
		s.cb(s.src)
		if err := s.push(s.src); err != nil {
			slog.Warn("oto stream", "error", err)
			clear(p)
			return len(p), nil
		}
	}
	n, _ := s.pending.Read(p[:want])
	clear(p[n:])
	return len(p), nil
}

func (s *otoStream) push(pcm []byte) error {
	if s.resampler != nil {
		if _, err := s.resampler.Write(pcm); err != nil {
			return err
		}
		pcm = s.resampled.Bytes()
	}
	if s.format.Channels == 1 {
		s.stereo = upmix(s.stereo[:0], pcm)
		pcm = s.stereo
	}
	_, _ = s.pending.Write(pcm)
	s.resampled.Reset()
	return nil
}

// upmix appends 16-bit mono samples to dst as stereo frames.
func upmix(dst, mono []byte) []byte {
	for i := 0; i+1 < len(mono); i += 2 {
		dst = append(dst, mono[i], mono[i+1], mono[i], mono[i+1])
	}
	return dst
}

func (s *otoStream) Start() error {
	s.player.Play()
	return nil
}

func (s *otoStream) Stop() error {
	s.player.Pause()
	return nil
}

func (s *otoStream) Close() error {
	err := s.player.Close()
	if s.resampler != nil {
		if rerr := s.resampler.Close(); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}
