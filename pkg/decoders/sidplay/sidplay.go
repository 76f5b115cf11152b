// Package sidplay plays C64 PSID and RSID tunes on an emulated C64.
package sidplay

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/drgolem/chipplay/pkg/sidtune"
	"github.com/drgolem/chipplay/pkg/types"
)

const (
	sampleRate = 48000
	channels   = 2
	frameBytes = channels * 2
)

var extensions = []string{".sid", ".psid", ".rsid", ".mus"}

// Option configures a Decoder.
type Option func(*Decoder)

// WithDataPath sets the directory holding the kernal, basic and chargen ROMs.
func WithDataPath(path string) Option {
	return func(d *Decoder) {
		d.dataPath = path
	}
}

// WithSongLength ends every subtune after the given time. Zero plays
// endlessly.
func WithSongLength(length time.Duration) Option {
	return func(d *Decoder) {
		d.songLength = length
	}
}

// Decoder implements types.Decoder for SID files.
type Decoder struct {
	dataPath   string
	songLength time.Duration

	roms *roms
	tune *sidtune.Tune
	m    *machine
	meta types.MetaData

	rendered uint64
	limit    uint64
	stopped  bool
}

// NewDecoder creates a SID decoder
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{meta: types.NewMetaData()}
	for _, opt := range opts {
		opt(d)
	}
	if d.songLength > 0 {
		d.limit = uint64(d.songLength) * sampleRate / uint64(time.Second)
	}
	return d
}

func (d *Decoder) Name() string {
	return "sidplay"
}

// Setup preloads the C64 ROM images from the data path
func (d *Decoder) Setup() error {
	kernal, err := loadROM(d.dataPath, "kernal", kernalSize)
	if err != nil {
		return err
	}
	basic, err := loadROM(d.dataPath, "basic", basicSize)
	if err != nil {
		return err
	}
	chargen, err := loadROM(d.dataPath, "chargen", chargenSize)
	if err != nil {
		return err
	}
	d.roms = &roms{kernal: kernal, basic: basic, chargen: chargen}
	slog.Debug("sidplay roms loaded", "data_path", d.dataPath)
	return nil
}

func loadROM(dir, name string, size int) ([]byte, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("sidplay rom missing", "path", path, "error", err)
		return nil, fmt.Errorf("sidplay: %w: %s: %w", types.ErrAssetMissing, name, err)
	}
	if len(data) < size {
		slog.Warn("sidplay rom too short", "path", path, "size", len(data), "want", size)
		return nil, fmt.Errorf("sidplay: %w: %s is %d bytes, want %d", types.ErrAssetMissing, name, len(data), size)
	}
	return data[:size], nil
}

// Cleanup drops the ROMs and the loaded tune
func (d *Decoder) Cleanup() {
	d.roms = nil
	d.tune = nil
	d.m = nil
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

// Play parses a PSID/RSID file and starts its default or first subtune
func (d *Decoder) Play(data []byte, defaultTrack bool) (err error) {
	if d.roms == nil {
		return fmt.Errorf("sidplay: %w: roms not loaded", types.ErrAssetMissing)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sidplay: %w: %v", types.ErrMalformedContainer, r)
		}
	}()

	tune, err := sidtune.Parse(data)
	if err != nil {
		return fmt.Errorf("sidplay: %w: %w", types.ErrMalformedContainer, err)
	}
	if tune.UsesBASIC() {
		return fmt.Errorf("sidplay: %w: BASIC tunes", types.ErrUnsupportedFormat)
	}

	song := 1
	if defaultTrack {
		song = tune.StartSong
	}
	tune.SelectSong(song)

	m, err := newMachine(d.roms, tune, sampleRate)
	if err != nil {
		return fmt.Errorf("sidplay: init song %d: %w: %w", song, types.ErrDecodeFault, err)
	}

	d.tune = tune
	d.m = m
	d.rendered = 0
	d.stopped = false
	d.meta = d.buildMetaData()

	slog.Debug("sidplay tune loaded",
		"magic", tune.Magic,
		"version", tune.Version,
		"songs", tune.Songs,
		"song", song,
		"clock", tune.Clock().String(),
		"model", tune.Model().String(),
		"continuous", m.continuous)
	return nil
}

func (d *Decoder) Stop() {
	d.stopped = true
}

// Process renders mono SID output duplicated on both channels
func (d *Decoder) Process(buf []byte) (status types.Status, err error) {
	if d.m == nil {
		clear(buf)
		return types.StatusError, fmt.Errorf("sidplay: %w", types.ErrNotLoaded)
	}
	if d.stopped {
		clear(buf)
		return types.StatusEnded, nil
	}

	n := 0
	defer func() {
		if r := recover(); r != nil {
			clear(buf[n*frameBytes:])
			status, err = types.StatusError, fmt.Errorf("sidplay: %w: %v", types.ErrDecodeFault, r)
		}
	}()

	frames := len(buf) / frameBytes
	for ; n < frames; n++ {
		if d.limit > 0 && d.rendered >= d.limit {
			break
		}
		s, serr := d.m.sample()
		if serr != nil {
			clear(buf[n*frameBytes:])
			return types.StatusError, fmt.Errorf("sidplay: %w: %w", types.ErrDecodeFault, serr)
		}
		v := types.ClampS16(s)
		o := buf[n*frameBytes:]
		o[0], o[1] = byte(v), byte(v>>8)
		o[2], o[3] = byte(v), byte(v>>8)
		d.rendered++
	}
	clear(buf[n*frameBytes:])
	if n < frames {
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

func (d *Decoder) moveTrack(delta int) bool {
	if d.tune == nil || d.tune.Songs < 2 {
		return false
	}
	prev := d.tune.CurrentSong()
	song := prev + delta
	if song < 1 || song > d.tune.Songs {
		return false
	}

	d.tune.SelectSong(song)
	m, err := d.safeMachine()
	if err != nil {
		slog.Warn("sidplay subtune init failed", "song", song, "error", err)
		d.tune.SelectSong(prev)
		return false
	}

	d.m = m
	d.rendered = 0
	d.stopped = false
	d.meta.TrackInformation = d.trackInformation()
	return true
}

func (d *Decoder) safeMachine() (m *machine, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", types.ErrDecodeFault, r)
		}
	}()
	return newMachine(d.roms, d.tune, sampleRate)
}

// MetaData returns the tune metadata with the current position
func (d *Decoder) MetaData() types.MetaData {
	if d.m != nil {
		d.meta.TrackInformation.Position = position(d.rendered)
	}
	return d.meta
}

func (d *Decoder) buildMetaData() types.MetaData {
	t := d.tune
	meta := types.NewMetaData()
	meta.HasDiskInformation = t.Songs > 1
	meta.DiskInformation = types.DiskInformation{
		Title:      t.Title,
		Copyright:  t.Released,
		TrackCount: t.Songs,
		Duration:   d.trackDuration() * t.Songs,
	}
	meta.TrackInformation = d.trackInformation()
	return meta
}

func (d *Decoder) trackInformation() types.TrackInformation {
	t := d.tune
	return types.TrackInformation{
		Title:       t.Title,
		Author:      t.Author,
		Copyright:   t.Released,
		Comment:     fmt.Sprintf("%s, SID %s, %s", t.Magic, t.Model(), t.Clock()),
		TrackNumber: t.CurrentSong(),
		Duration:    d.trackDuration(),
		Position:    -1,
	}
}

func (d *Decoder) trackDuration() int {
	return int(d.songLength / time.Second)
}

// position is -1 until the first frame of the track is rendered
func position(rendered uint64) int {
	if rendered == 0 {
		return -1
	}
	return int(rendered / sampleRate)
}
