// Package dumb plays ProTracker style modules. Playback stops when the
// sequencer returns to a row it already played.
package dumb

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/drgolem/chipplay/pkg/types"
)

const (
	sampleRate = 44100
	channels   = 2
	frameBytes = channels * 2

	chunkFrames = 2048

	// bounds the length scan of a module that never revisits a row
	maxScanTicks = 1 << 20
)

var extensions = []string{".mod"}

// Decoder implements types.Decoder for MOD files.
type Decoder struct {
	mod  *module
	p    *player
	meta types.MetaData

	length   uint64 // frames
	rendered uint64
	stopped  bool

	scratch []int16
}

// NewDecoder creates a module decoder
func NewDecoder() *Decoder {
	return &Decoder{meta: types.NewMetaData()}
}

func (d *Decoder) Name() string {
	return "dumb"
}

func (d *Decoder) Setup() error {
	d.scratch = make([]int16, chunkFrames*channels)
	return nil
}

func (d *Decoder) Cleanup() {
	d.mod, d.p = nil, nil
	d.scratch = nil
	d.meta = types.NewMetaData()
}

func (d *Decoder) Extensions() []string {
	return slices.Clone(extensions)
}

func (d *Decoder) CanRead(ext string) bool {
	return slices.Contains(extensions, ext)
}

func (d *Decoder) GetFormat() types.AudioFormat {
	return types.AudioFormat{
		SampleRate:   sampleRate,
		Channels:     channels,
		SampleFormat: types.SampleFormatS16,
	}
}

// Play parses the module and measures its length. Modules have a single
// track, so defaultTrack has no effect.
func (d *Decoder) Play(data []byte, _ bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dumb: %w: %v", types.ErrMalformedContainer, r)
		}
	}()

	m, err := parseModule(data)
	if err != nil {
		return fmt.Errorf("dumb: %w", err)
	}
	length := scanLength(m)

	if d.scratch == nil {
		d.scratch = make([]int16, chunkFrames*channels)
	}
	d.mod = m
	d.p = newPlayer(m, sampleRate)
	d.length = length
	d.rendered = 0
	d.stopped = false
	d.meta = d.buildMetaData()

	slog.Debug("module loaded",
		"title", m.title,
		"tag", m.tag,
		"channels", m.channels,
		"orders", len(m.orders),
		"patterns", len(m.patterns),
		"frames", length)
	return nil
}

// scanLength runs the sequencer without mixing up to the natural end.
func scanLength(m *module) uint64 {
	p := newPlayer(m, sampleRate)
	var frames uint64
	for range maxScanTicks {
		n := p.skip()
		if n == 0 {
			break
		}
		frames += uint64(n)
	}
	return frames
}

func (d *Decoder) Stop() {
	d.stopped = true
}

func (d *Decoder) Process(buf []byte) (status types.Status, err error) {
	if d.p == nil {
		clear(buf)
		return types.StatusError, fmt.Errorf("dumb: %w", types.ErrNotLoaded)
	}
	if d.stopped {
		clear(buf)
		return types.StatusEnded, nil
	}

	written := 0
	defer func() {
		if r := recover(); r != nil {
			clear(buf[written:])
			status, err = types.StatusError, fmt.Errorf("dumb: %w: %v", types.ErrDecodeFault, r)
		}
	}()

	want := len(buf) / frameBytes
	for want > 0 {
		n := min(want, chunkFrames)
		got := d.p.render(d.scratch[:n*channels])
		written += types.PutS16(buf[written:], d.scratch[:got*channels])
		d.rendered += uint64(got)
		if got < n {
			break
		}
		want -= n
	}

	clear(buf[written:])
	if d.p.ended {
		return types.StatusEnded, nil
	}
	return types.StatusContinue, nil
}

// NextTrack always fails: a module is one track.
func (d *Decoder) NextTrack() bool {
	return false
}

// PrevTrack always fails: a module is one track.
func (d *Decoder) PrevTrack() bool {
	return false
}

func (d *Decoder) MetaData() types.MetaData {
	if d.p != nil {
		d.meta.TrackInformation.Position = position(d.rendered)
	}
	return d.meta
}

func (d *Decoder) buildMetaData() types.MetaData {
	meta := types.NewMetaData()
	meta.DiskInformation = types.DiskInformation{
		Title:      d.mod.title,
		TrackCount: 1,
		Duration:   int(d.length / sampleRate),
	}
	meta.TrackInformation = types.TrackInformation{
		Title:       d.mod.title,
		Comment:     strings.Join(d.mod.sampleNames(), "\n"),
		TrackNumber: 1,
		Duration:    int(d.length / sampleRate),
		Position:    -1,
	}
	return meta
}

// position is -1 until the first frame of the track is rendered
func position(rendered uint64) int {
	if rendered == 0 {
		return -1
	}
	return int(rendered / sampleRate)
}
