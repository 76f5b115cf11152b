// Package sc68 plays Atari ST YM register dumps on an emulated YM2149.
package sc68

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/drgolem/chipplay/pkg/emu/ay8910"
	"github.com/drgolem/chipplay/pkg/types"
)

const (
	sampleRate = 44100
	channels   = 2
	frameBytes = channels * 2
)

var extensions = []string{".ym"}

// Decoder implements types.Decoder for YM files.
type Decoder struct {
	ym   *ymFile
	chip *ay8910.Chip
	meta types.MetaData

	frame     int     // next register frame
	frameLeft float64 // samples until the next register frame
	perFrame  float64
	rendered  uint64
	stopped   bool
}

// NewDecoder creates a YM decoder
func NewDecoder() *Decoder {
	return &Decoder{meta: types.NewMetaData()}
}

func (d *Decoder) Name() string {
	return "sc68"
}

func (d *Decoder) Setup() error {
	return nil
}

func (d *Decoder) Cleanup() {
	d.ym, d.chip = nil, nil
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

// Play decodes the register dump. There is one track per file.
func (d *Decoder) Play(data []byte, _ bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sc68: %w: %v", types.ErrMalformedContainer, r)
		}
	}()

	ym, err := parseYM(data)
	if err != nil {
		return fmt.Errorf("sc68: %w", err)
	}

	d.ym = ym
	d.chip = ay8910.New(float64(ym.clockHz), sampleRate)
	d.perFrame = float64(sampleRate) / float64(ym.frameRate)
	d.frame = 0
	d.frameLeft = 0
	d.rendered = 0
	d.stopped = false
	d.meta = d.buildMetaData()

	slog.Debug("ym stream loaded",
		"id", ym.id,
		"frames", len(ym.frames),
		"frame_rate", ym.frameRate,
		"clock_hz", ym.clockHz,
		"loop_frame", ym.loopFrame)
	return nil
}

func (d *Decoder) Stop() {
	d.stopped = true
}

// writeFrame loads one frame of registers into the chip.
func (d *Decoder) writeFrame(regs *[ymRegisters]uint8) {
	for reg := range uint8(ay8910.RegEnvelopeMode) {
		d.chip.Write(reg, regs[reg]&effectMask[reg])
	}
	if v := regs[ay8910.RegEnvelopeMode]; v != noEnvelopeWrite {
		d.chip.Write(ay8910.RegEnvelopeMode, v&effectMask[ay8910.RegEnvelopeMode])
	}
}

func (d *Decoder) Process(buf []byte) (status types.Status, err error) {
	if d.ym == nil {
		clear(buf)
		return types.StatusError, fmt.Errorf("sc68: %w", types.ErrNotLoaded)
	}
	if d.stopped {
		clear(buf)
		return types.StatusEnded, nil
	}

	written := 0
	defer func() {
		if r := recover(); r != nil {
			clear(buf[written:])
			status, err = types.StatusError, fmt.Errorf("sc68: %w: %v", types.ErrDecodeFault, r)
		}
	}()

	for ; written+frameBytes <= len(buf); written += frameBytes {
		if d.frameLeft <= 0 {
			if d.frame >= len(d.ym.frames) {
				clear(buf[written:])
				return types.StatusEnded, nil
			}
			d.writeFrame(&d.ym.frames[d.frame])
			d.frame++
			d.frameLeft += d.perFrame
		}
		d.frameLeft--

		l, r := d.chip.Sample()
		pair := [channels]int16{types.ClampS16(l), types.ClampS16(r)}
		types.PutS16(buf[written:], pair[:])
		d.rendered++
	}
	clear(buf[written:])
	return types.StatusContinue, nil
}

// NextTrack always fails: a YM file is one track.
func (d *Decoder) NextTrack() bool {
	return false
}

// PrevTrack always fails: a YM file is one track.
func (d *Decoder) PrevTrack() bool {
	return false
}

func (d *Decoder) MetaData() types.MetaData {
	if d.ym != nil {
		d.meta.TrackInformation.Position = position(d.rendered)
	}
	return d.meta
}

func (d *Decoder) buildMetaData() types.MetaData {
	duration := len(d.ym.frames) / d.ym.frameRate
	meta := types.NewMetaData()
	meta.DiskInformation = types.DiskInformation{
		Title:      d.ym.title,
		Converter:  d.ym.id,
		TrackCount: 1,
		Duration:   duration,
	}
	meta.TrackInformation = types.TrackInformation{
		Title:       d.ym.title,
		Author:      d.ym.author,
		Comment:     d.ym.comment,
		TrackNumber: 1,
		Duration:    duration,
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
