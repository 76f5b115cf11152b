// Package gme plays video game music formats: NES Sound Format and the VGM
// register logs of the SN76489 and AY-3-8910 sound chips.
package gme

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/drgolem/chipplay/pkg/types"
)

const (
	sampleRate = 44100
	channels   = 2
	frameBytes = channels * 2

	// frames rendered per emulator call
	chunkFrames = 2048
)

var extensions = []string{".nsf", ".vgm", ".vgz"}

// Decoder implements types.Decoder on top of the musicEmu emulators.
type Decoder struct {
	emu   musicEmu
	track int // 0-based
	meta  types.MetaData

	length   uint64 // frames
	rendered uint64
	stopped  bool

	scratch []int16
}

// NewDecoder creates a game music decoder
func NewDecoder() *Decoder {
	return &Decoder{meta: types.NewMetaData()}
}

func (d *Decoder) Name() string {
	return "gme"
}

func (d *Decoder) Setup() error {
	d.scratch = make([]int16, chunkFrames*channels)
	return nil
}

func (d *Decoder) Cleanup() {
	d.emu = nil
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

// Play identifies the container by its signature and starts the default or
// first track
func (d *Decoder) Play(data []byte, defaultTrack bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("gme: %w: %v", types.ErrMalformedContainer, r)
		}
	}()

	emu, err := identify(data)
	if err != nil {
		return fmt.Errorf("gme: %w", err)
	}

	track := 0
	if defaultTrack {
		track = emu.defaultTrack()
	}
	if err := emu.startTrack(track); err != nil {
		return fmt.Errorf("gme: track %d: %w", track+1, err)
	}

	if d.scratch == nil {
		d.scratch = make([]int16, chunkFrames*channels)
	}
	d.emu = emu
	d.track = track
	d.rendered = 0
	d.stopped = false
	d.length = frames(emu.trackInfo(track).length)
	d.meta = d.buildMetaData()

	slog.Debug("gme container loaded",
		"system", emu.trackInfo(track).system,
		"tracks", emu.trackCount(),
		"track", track+1,
		"length", emu.trackInfo(track).length)
	return nil
}

func frames(length time.Duration) uint64 {
	return (uint64(length)*sampleRate + uint64(time.Second)/2) / uint64(time.Second)
}

func (d *Decoder) Stop() {
	d.stopped = true
}

// Process renders the current track until its play length is reached
func (d *Decoder) Process(buf []byte) (status types.Status, err error) {
	if d.emu == nil {
		clear(buf)
		return types.StatusError, fmt.Errorf("gme: %w", types.ErrNotLoaded)
	}
	if d.stopped {
		clear(buf)
		return types.StatusEnded, nil
	}

	written := 0
	defer func() {
		if r := recover(); r != nil {
			clear(buf[written:])
			status, err = types.StatusError, fmt.Errorf("gme: %w: %v", types.ErrDecodeFault, r)
		}
	}()

	want := uint64(len(buf) / frameBytes)
	if left := d.length - min(d.rendered, d.length); want > left {
		want = left
	}
	for want > 0 {
		n := min(want, chunkFrames)
		chunk := d.scratch[:n*channels]
		if perr := d.emu.play(chunk); perr != nil {
			clear(buf[written:])
			return types.StatusError, fmt.Errorf("gme: %w", perr)
		}
		written += types.PutS16(buf[written:], chunk)
		d.rendered += n
		want -= n
	}

	clear(buf[written:])
	if written < len(buf)/frameBytes*frameBytes {
		return types.StatusEnded, nil
	}
	return types.StatusContinue, nil
}

func (d *Decoder) NextTrack() bool {
	return d.moveTrack(1)
}

func (d *Decoder) PrevTrack() bool {
	return d.moveTrack(-1)
}

func (d *Decoder) moveTrack(delta int) (ok bool) {
	if d.emu == nil {
		return false
	}
	track := d.track + delta
	if track < 0 || track >= d.emu.trackCount() {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Warn("gme track start panicked", "track", track+1, "panic", r)
			ok = false
		}
	}()
	if err := d.emu.startTrack(track); err != nil {
		slog.Warn("gme track start failed", "track", track+1, "error", err)
		// leave the emulator on the previous track
		if rerr := d.emu.startTrack(d.track); rerr != nil {
			d.stopped = true
		}
		return false
	}

	d.track = track
	d.rendered = 0
	d.stopped = false
	d.length = frames(d.emu.trackInfo(track).length)
	d.meta.TrackInformation = d.trackInformation()
	return true
}

// MetaData returns the container metadata with the current position
func (d *Decoder) MetaData() types.MetaData {
	if d.emu != nil {
		d.meta.TrackInformation.Position = position(d.rendered)
	}
	return d.meta
}

func (d *Decoder) buildMetaData() types.MetaData {
	count := d.emu.trackCount()
	first := d.emu.trackInfo(0)

	var total time.Duration
	for i := range count {
		total += d.emu.trackInfo(i).length
	}

	meta := types.NewMetaData()
	meta.HasDiskInformation = count > 1
	meta.DiskInformation = types.DiskInformation{
		Title:      first.game,
		Ripper:     first.dumper,
		Copyright:  first.copyright,
		TrackCount: count,
		Duration:   int(total / time.Second),
	}
	meta.TrackInformation = d.trackInformation()
	return meta
}

func (d *Decoder) trackInformation() types.TrackInformation {
	info := d.emu.trackInfo(d.track)
	return types.TrackInformation{
		Title:       info.song,
		Author:      info.author,
		Copyright:   info.copyright,
		Comment:     info.comment,
		TrackNumber: d.track + 1,
		Duration:    int(info.length / time.Second),
		Position:    -1,
	}
}

// position is -1 until the first frame of the track is rendered
func position(rendered uint64) int {
	if rendered == 0 {
		return -1
	}
	return int(rendered / sampleRate)
}
