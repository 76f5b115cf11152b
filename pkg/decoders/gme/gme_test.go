package gme

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"testing"
	"unicode/utf16"

	"github.com/drgolem/chipplay/pkg/types"
)

// buildNSF creates a non-bankswitched NTSC file loaded at $8000. Init
// stores A and X at $00/$01; play bumps $02 and keeps pulse 1 sounding.
func buildNSF(songs, start uint8, playCode []byte) []byte {
	h := make([]byte, nsfHeaderSize)
	copy(h, magicNSF)
	h[0x05] = 1
	h[0x06] = songs
	h[0x07] = start
	binary.LittleEndian.PutUint16(h[0x08:], 0x8000)
	binary.LittleEndian.PutUint16(h[0x0A:], 0x8000)
	binary.LittleEndian.PutUint16(h[0x0C:], 0x8010)
	copy(h[0x0E:], "Test Game")
	copy(h[0x2E:], "Composer")
	copy(h[0x4E:], "1990 Test")

	code := make([]byte, 0x10)
	copy(code, []byte{
		0x85, 0x00, // STA $00
		0x86, 0x01, // STX $01
		0x60, // RTS
	})
	if playCode == nil {
		playCode = []byte{
			0xE6, 0x02, // INC $02
			0xA9, 0xBF, // LDA #$BF
			0x8D, 0x00, 0x40, // STA $4000
			0xA9, 0xFD, // LDA #$FD
			0x8D, 0x02, 0x40, // STA $4002
			0xA9, 0x00, // LDA #$00
			0x8D, 0x03, 0x40, // STA $4003
			0x60, // RTS
		}
	}
	return append(append(h, code...), playCode...)
}

type vgmSpec struct {
	version     uint32
	snClock     uint32
	ayClock     uint32
	total       uint32
	loopSamples uint32
	loopAt      int // offset into commands, -1 for no loop
	commands    []byte
	tags        []string
}

func buildVGM(s vgmSpec) []byte {
	const start = 0x80
	data := make([]byte, start)
	copy(data, magicVGM)
	le := binary.LittleEndian
	le.PutUint32(data[0x08:], s.version)
	le.PutUint32(data[0x0C:], s.snClock)
	le.PutUint32(data[0x18:], s.total)
	le.PutUint32(data[0x20:], s.loopSamples)
	le.PutUint32(data[0x34:], start-0x34)
	le.PutUint32(data[0x74:], s.ayClock)
	if s.loopAt >= 0 {
		le.PutUint32(data[0x1C:], uint32(start+s.loopAt-0x1C))
	}
	data = append(data, s.commands...)

	if s.tags != nil {
		le.PutUint32(data[0x14:], uint32(len(data)-0x14))
		var body []byte
		for i := 0; i < gd3Count; i++ {
			var tag string
			if i < len(s.tags) {
				tag = s.tags[i]
			}
			for _, u := range utf16.Encode([]rune(tag)) {
				body = le.AppendUint16(body, u)
			}
			body = le.AppendUint16(body, 0)
		}
		data = append(data, "Gd3 "...)
		data = le.AppendUint32(data, 0x100)
		data = le.AppendUint32(data, uint32(len(body)))
		data = append(data, body...)
	}
	le.PutUint32(data[0x04:], uint32(len(data)-4))
	return data
}

// snTone plays channel 0 at full volume for one second.
var snTone = []byte{
	0x50, 0x8E, // latch tone 0 low
	0x50, 0x0F, // tone 0 high
	0x50, 0x90, // attenuation 0
	0x61, 0x44, 0xAC, // wait 44100
	0x66,
}

func newTestDecoder(t *testing.T) *Decoder {
	t.Helper()
	d := NewDecoder()
	if err := d.Setup(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(d.Cleanup)
	return d
}

func isSilent(buf []byte) bool {
	return bytes.Equal(buf, make([]byte, len(buf)))
}

func TestCanRead(t *testing.T) {
	d := NewDecoder()
	tests := []struct {
		ext  string
		want bool
	}{
		{".nsf", true},
		{".vgm", true},
		{".vgz", true},
		{".sid", false},
		{".NSF", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := d.CanRead(tt.ext); got != tt.want {
			t.Errorf("CanRead(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}

func TestProcessBeforePlay(t *testing.T) {
	d := newTestDecoder(t)
	buf := bytes.Repeat([]byte{0x55}, 32)
	status, err := d.Process(buf)
	if status != types.StatusError || !errors.Is(err, types.ErrNotLoaded) {
		t.Errorf("Process = %v, %v", status, err)
	}
	if !isSilent(buf) {
		t.Error("buffer not zeroed")
	}
}

func TestNSFPlayback(t *testing.T) {
	d := newTestDecoder(t)
	if err := d.Play(buildNSF(2, 1, nil), true); err != nil {
		t.Fatalf("Play: %v", err)
	}

	buf := make([]byte, sampleRate*frameBytes)
	status, err := d.Process(buf)
	if status != types.StatusContinue || err != nil {
		t.Fatalf("Process = %v, %v", status, err)
	}
	if isSilent(buf) {
		t.Error("pulse channel produced silence")
	}

	n := d.emu.(*nsf)
	// NTSC play rate is about 60 Hz
	if calls := n.ram[2]; calls < 58 || calls > 62 {
		t.Errorf("play called %d times in one second", calls)
	}
	if n.ram[0] != 0 || n.ram[1] != 0 {
		t.Errorf("init got A=%d X=%d", n.ram[0], n.ram[1])
	}

	meta := d.MetaData()
	if !meta.HasDiskInformation || meta.DiskInformation.TrackCount != 2 {
		t.Errorf("disk info = %+v", meta.DiskInformation)
	}
	if meta.DiskInformation.Title != "Test Game" || meta.DiskInformation.Duration != 300 {
		t.Errorf("disk info = %+v", meta.DiskInformation)
	}
	ti := meta.TrackInformation
	if ti.Author != "Composer" || ti.TrackNumber != 1 || ti.Duration != 150 || ti.Position != 1 {
		t.Errorf("track info = %+v", ti)
	}
	if meta.DisplayTitle() != "Test Game" {
		t.Errorf("display title = %q", meta.DisplayTitle())
	}
}

func TestNSFTracks(t *testing.T) {
	d := newTestDecoder(t)
	if err := d.Play(buildNSF(2, 2, nil), true); err != nil {
		t.Fatal(err)
	}
	if got := d.MetaData().TrackInformation.TrackNumber; got != 2 {
		t.Fatalf("default track = %d, want 2", got)
	}
	if d.emu.(*nsf).ram[0] != 1 {
		t.Error("init did not receive the track index")
	}

	if d.NextTrack() {
		t.Error("NextTrack past the last track succeeded")
	}
	if !d.PrevTrack() {
		t.Fatal("PrevTrack failed")
	}
	if got := d.MetaData().TrackInformation.TrackNumber; got != 1 {
		t.Errorf("track = %d, want 1", got)
	}
	if d.PrevTrack() {
		t.Error("PrevTrack before track 1 succeeded")
	}

	if err := d.Play(buildNSF(2, 2, nil), false); err != nil {
		t.Fatal(err)
	}
	if got := d.MetaData().TrackInformation.TrackNumber; got != 1 {
		t.Errorf("first track = %d, want 1", got)
	}
}

func TestNSFDecodeFault(t *testing.T) {
	d := newTestDecoder(t)
	if err := d.Play(buildNSF(1, 1, []byte{0x02}), true); err != nil {
		t.Fatal(err)
	}
	status, err := d.Process(make([]byte, 1024))
	if status != types.StatusError || !errors.Is(err, types.ErrDecodeFault) {
		t.Errorf("Process = %v, %v", status, err)
	}
}

func TestNSFBankSwitch(t *testing.T) {
	data := buildNSF(1, 1, nil)
	data[0x70] = 0
	data[0x71] = 1
	data = append(data, make([]byte, 2*nsfBankSize)...)
	data[nsfHeaderSize+nsfBankSize] = 0xAB
	data[nsfHeaderSize+2*nsfBankSize] = 0xCD

	n, err := newNSF(data)
	if err != nil {
		t.Fatal(err)
	}
	if err := n.startTrack(0); err != nil {
		t.Fatal(err)
	}
	if got := n.Read(0x9000); got != 0xAB {
		t.Errorf("$9000 = $%02X, want bank 1", got)
	}
	n.Write(0x5FF9, 2)
	if got := n.Read(0x9000); got != 0xCD {
		t.Errorf("$9000 = $%02X after switch, want bank 2", got)
	}
}

func TestVGMPlayback(t *testing.T) {
	data := buildVGM(vgmSpec{
		version:  0x150,
		snClock:  3579545,
		total:    44100,
		loopAt:   -1,
		commands: snTone,
		tags:     []string{"Stage 1", "", "Test Game", "", "Sega Master System", "", "Composer", "", "1987", "Ripper", "Notes here"},
	})

	tests := []struct {
		name string
		data []byte
	}{
		{"vgm", data},
		{"vgz", gzipped(t, data)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDecoder(t)
			if err := d.Play(tt.data, true); err != nil {
				t.Fatalf("Play: %v", err)
			}

			meta := d.MetaData()
			ti := meta.TrackInformation
			if ti.Title != "Stage 1" || ti.Author != "Composer" || ti.Copyright != "1987" || ti.Comment != "Notes here" {
				t.Errorf("track info = %+v", ti)
			}
			if meta.HasDiskInformation || meta.DiskInformation.Title != "Test Game" || meta.DiskInformation.Ripper != "Ripper" {
				t.Errorf("disk info = %+v", meta.DiskInformation)
			}
			if ti.Duration != 1 {
				t.Errorf("duration = %d, want 1", ti.Duration)
			}

			buf := make([]byte, sampleRate*frameBytes)
			if status, err := d.Process(buf); status != types.StatusContinue || err != nil {
				t.Fatalf("Process = %v, %v", status, err)
			}
			if isSilent(buf) {
				t.Error("tone produced silence")
			}
			if status, _ := d.Process(buf); status != types.StatusEnded {
				t.Errorf("status after the log = %v, want ended", status)
			}
			if !isSilent(buf) {
				t.Error("buffer after end not zeroed")
			}
		})
	}
}

func TestVGMLoopLength(t *testing.T) {
	cmds := []byte{
		0x50, 0x90,
		0x61, 0xF4, 0x01, // wait 500
		0x61, 0xF4, 0x01, // loop: wait 500
		0x66,
	}
	d := newTestDecoder(t)
	err := d.Play(buildVGM(vgmSpec{
		version:     0x150,
		snClock:     3579545,
		total:       1000,
		loopSamples: 500,
		loopAt:      5,
		commands:    cmds,
	}), true)
	if err != nil {
		t.Fatal(err)
	}
	if d.length != 1500 {
		t.Errorf("length = %d frames, want intro + two loops", d.length)
	}

	buf := make([]byte, 1400*frameBytes)
	if status, _ := d.Process(buf); status != types.StatusContinue {
		t.Errorf("status = %v", status)
	}
	if status, _ := d.Process(buf); status != types.StatusEnded {
		t.Errorf("status = %v, want ended", status)
	}
}

func TestVGMAY(t *testing.T) {
	cmds := []byte{
		0xA0, 0x00, 0xFE, // tone A fine
		0xA0, 0x07, 0x3E, // mixer: tone A only
		0xA0, 0x08, 0x0F, // volume A
		0x61, 0x44, 0xAC,
		0x66,
	}
	d := newTestDecoder(t)
	err := d.Play(buildVGM(vgmSpec{
		version:  0x151,
		ayClock:  1789773,
		total:    44100,
		loopAt:   -1,
		commands: cmds,
	}), true)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 4096*frameBytes)
	if _, err := d.Process(buf); err != nil {
		t.Fatal(err)
	}
	if isSilent(buf) {
		t.Error("AY tone produced silence")
	}
}

func TestPlayErrors(t *testing.T) {
	noChips := buildVGM(vgmSpec{version: 0x150, total: 100, loopAt: -1, commands: []byte{0x66}})

	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"garbage", []byte("definitely not music"), types.ErrMalformedContainer},
		{"short nsf", magicNSF, types.ErrMalformedContainer},
		{"no songs", buildNSF(0, 0, nil), types.ErrMalformedContainer},
		{"short vgm", []byte("Vgm \x00\x00"), types.ErrMalformedContainer},
		{"no chips", noChips, types.ErrUnsupportedFormat},
		{"bad gzip", []byte{0x1F, 0x8B, 0x00, 0x01}, types.ErrMalformedContainer},
	}

	d := newTestDecoder(t)
	if err := d.Play(buildNSF(2, 1, nil), true); err != nil {
		t.Fatal(err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := d.Play(tt.data, true); !errors.Is(err, tt.err) {
				t.Errorf("err = %v, want %v", err, tt.err)
			}
			if got := d.MetaData().DiskInformation.Title; got != "Test Game" {
				t.Errorf("previous container lost, title = %q", got)
			}
		})
	}
}

func TestStop(t *testing.T) {
	d := newTestDecoder(t)
	if err := d.Play(buildNSF(2, 1, nil), true); err != nil {
		t.Fatal(err)
	}
	d.Stop()
	buf := bytes.Repeat([]byte{1}, 64)
	if status, err := d.Process(buf); status != types.StatusEnded || err != nil {
		t.Errorf("Process after Stop = %v, %v", status, err)
	}
	if !isSilent(buf) {
		t.Error("buffer not zeroed")
	}
	if !d.NextTrack() {
		t.Fatal("NextTrack failed")
	}
	if status, _ := d.Process(buf); status != types.StatusContinue {
		t.Errorf("Process after NextTrack = %v", status)
	}
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var b bytes.Buffer
	w := gzip.NewWriter(&b)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return b.Bytes()
}

func TestReload(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"nsf", buildNSF(3, 1, nil)},
		{"vgm", buildVGM(vgmSpec{
			version:  0x150,
			snClock:  3579545,
			total:    44100,
			loopAt:   -1,
			commands: snTone,
			tags:     []string{"Stage 1", "", "Test Game"},
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDecoder(t)
			if err := d.Play(tt.data, true); err != nil {
				t.Fatal(err)
			}
			first := d.MetaData()
			if first.TrackInformation.Position != -1 {
				t.Errorf("position before rendering = %d, want -1", first.TrackInformation.Position)
			}

			if _, err := d.Process(make([]byte, 4096*frameBytes)); err != nil {
				t.Fatal(err)
			}
			for d.NextTrack() {
			}
			last := d.MetaData()
			if d.NextTrack() {
				t.Error("NextTrack past the last track succeeded")
			}
			if d.MetaData() != last {
				t.Error("failed NextTrack changed metadata")
			}

			if err := d.Play(tt.data, true); err != nil {
				t.Fatal(err)
			}
			second := d.MetaData()
			if second.DiskInformation != first.DiskInformation {
				t.Errorf("disk info %+v, want %+v", second.DiskInformation, first.DiskInformation)
			}
			if second.TrackInformation != first.TrackInformation {
				t.Errorf("track info %+v, want %+v", second.TrackInformation, first.TrackInformation)
			}

			if err := d.Play(tt.data[:8], true); err == nil {
				t.Fatal("truncated file loaded")
			}
			if d.MetaData() != second {
				t.Error("failed load changed metadata")
			}
		})
	}
}

func TestCallStub(t *testing.T) {
	n, err := newNSF(buildNSF(1, 1, nil))
	if err != nil {
		t.Fatal(err)
	}
	if err := n.startTrack(0); err != nil {
		t.Fatal(err)
	}
	// JSR init ($8000), JMP to the return address
	want := []uint8{0x20, 0x00, 0x80, 0x4C, 0xF3, 0x5F}
	for i, w := range want {
		if got := n.Read(nsfStubBase + uint16(i)); got != w {
			t.Errorf("stub[%d] = $%02X, want $%02X", i, got, w)
		}
	}
}
