package sc68

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/drgolem/chipplay/pkg/types"
)

// toneFrame sounds channel A at full volume and leaves the envelope alone.
var toneFrame = [ymRegisters]uint8{0: 0xFE, 7: 0x3E, 8: 0x0F, 13: noEnvelopeWrite}

func buildYM6(frames [][ymRegisters]uint8, interleaved bool) []byte {
	var b bytes.Buffer
	be := binary.BigEndian
	b.WriteString("YM6!")
	b.WriteString(ymSignature)
	binary.Write(&b, be, uint32(len(frames)))
	var attrs uint32
	if interleaved {
		attrs = attrInterleaved
	}
	binary.Write(&b, be, attrs)
	binary.Write(&b, be, uint16(1)) // one digidrum
	binary.Write(&b, be, uint32(2000000))
	binary.Write(&b, be, uint16(50))
	binary.Write(&b, be, uint32(0))
	binary.Write(&b, be, uint16(0))
	binary.Write(&b, be, uint32(4))
	b.Write([]byte{1, 2, 3, 4})
	b.WriteString("Title\x00Author\x00Comment\x00")

	if interleaved {
		for reg := range ymRegisters {
			for _, f := range frames {
				b.WriteByte(f[reg])
			}
		}
	} else {
		for _, f := range frames {
			b.Write(f[:])
		}
	}
	b.WriteString("End!")
	return b.Bytes()
}

func repeatFrame(f [ymRegisters]uint8, n int) [][ymRegisters]uint8 {
	frames := make([][ymRegisters]uint8, n)
	for i := range frames {
		frames[i] = f
	}
	return frames
}

// buildYM3 numbers every register value as reg*10+frame.
func buildYM3(id string, count int) []byte {
	data := []byte(id)
	for reg := range ymLegacyRegs {
		for f := range count {
			data = append(data, byte(reg*10+f))
		}
	}
	return data
}

// lh0 wraps data in a level 0 stored LHA member.
func lh0(name string, data []byte) []byte {
	var b bytes.Buffer
	le := binary.LittleEndian
	b.WriteByte(byte(22 + len(name)))
	b.WriteByte(0)
	b.WriteString("-lh0-")
	binary.Write(&b, le, uint32(len(data)))
	binary.Write(&b, le, uint32(len(data)))
	binary.Write(&b, le, uint32(0))
	b.WriteByte(0x20)
	b.WriteByte(0)
	b.WriteByte(byte(len(name)))
	b.WriteString(name)
	binary.Write(&b, le, crcARC(data))
	b.Write(data)
	b.WriteByte(0)
	return b.Bytes()
}

func crcARC(data []byte) uint16 {
	var crc uint16
	for _, v := range data {
		crc ^= uint16(v)
		for range 8 {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

func TestParseYM(t *testing.T) {
	frames := [][ymRegisters]uint8{toneFrame, {0: 1, 1: 2, 15: 9}}
	tests := []struct {
		name string
		data []byte
	}{
		{"ym6 interleaved", buildYM6(frames, true)},
		{"ym6 sequential", buildYM6(frames, false)},
		{"lha", lh0("song.ym", buildYM6(frames, true))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ym, err := parseYM(tt.data)
			if err != nil {
				t.Fatal(err)
			}
			if ym.id != "YM6!" || ym.title != "Title" || ym.author != "Author" || ym.comment != "Comment" {
				t.Errorf("header = %+v", ym)
			}
			if ym.clockHz != 2000000 || ym.frameRate != 50 || len(ym.frames) != 2 {
				t.Errorf("clock %d, rate %d, %d frames", ym.clockHz, ym.frameRate, len(ym.frames))
			}
			if ym.frames[0] != toneFrame || ym.frames[1] != frames[1] {
				t.Errorf("frames = %v", ym.frames)
			}
		})
	}
}

func TestParseLegacy(t *testing.T) {
	ym, err := parseYM(buildYM3("YM3!", 3))
	if err != nil {
		t.Fatal(err)
	}
	if len(ym.frames) != 3 || ym.frames[1][3] != 31 || ym.frames[2][13] != 132 {
		t.Errorf("frames = %v", ym.frames)
	}
	if ym.frameRate != 50 || ym.clockHz != 2000000 {
		t.Errorf("rate %d, clock %d", ym.frameRate, ym.clockHz)
	}

	data := binary.BigEndian.AppendUint32(buildYM3("YM3b", 3), 2)
	ym, err = parseYM(data)
	if err != nil {
		t.Fatal(err)
	}
	if ym.loopFrame != 2 || len(ym.frames) != 3 || ym.frames[2][0] != 2 {
		t.Errorf("loop %d, frames %v", ym.loopFrame, ym.frames)
	}
}

func TestParseErrors(t *testing.T) {
	full := buildYM6(repeatFrame(toneFrame, 10), true)

	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"empty", nil, types.ErrMalformedContainer},
		{"unknown id", []byte("XXXX1234"), types.ErrMalformedContainer},
		{"ym4", []byte("YM4!LeOnArD!"), types.ErrUnsupportedFormat},
		{"bad signature", []byte("YM6!LeOnArd!0000"), types.ErrMalformedContainer},
		{"short header", full[:30], types.ErrMalformedContainer},
		{"short frames", full[:len(full)-40], types.ErrMalformedContainer},
		{"no legacy frames", []byte("YM3!abc"), types.ErrMalformedContainer},
		{"bad archive", lh0("x.ym", nil)[:24], types.ErrMalformedContainer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseYM(tt.data); !errors.Is(err, tt.err) {
				t.Errorf("err = %v, want %v", err, tt.err)
			}
		})
	}
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

func TestPlayback(t *testing.T) {
	d := newTestDecoder(t)
	if err := d.Play(buildYM6(repeatFrame(toneFrame, 50), true), true); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, sampleRate*frameBytes)
	status, err := d.Process(buf)
	if status != types.StatusContinue || err != nil {
		t.Fatalf("Process = %v, %v", status, err)
	}
	if bytes.Equal(buf, make([]byte, len(buf))) {
		t.Error("tone produced silence")
	}
	if pos := d.MetaData().TrackInformation.Position; pos != 1 {
		t.Errorf("position = %d", pos)
	}

	status, err = d.Process(buf)
	if status != types.StatusEnded || err != nil {
		t.Errorf("Process after the last frame = %v, %v", status, err)
	}
	if !bytes.Equal(buf, make([]byte, len(buf))) {
		t.Error("buffer after the end not zeroed")
	}
}

func TestEnvelopeRetrigger(t *testing.T) {
	d := newTestDecoder(t)
	frames := repeatFrame(toneFrame, 2)
	frames[0][13] = 0x0A
	frames[0][1] = 0xF3
	if err := d.Play(buildYM6(frames, false), true); err != nil {
		t.Fatal(err)
	}

	d.writeFrame(&d.ym.frames[0])
	if got := d.chip.Read(13); got != 0x0A {
		t.Fatalf("envelope shape = $%02X", got)
	}
	if got := d.chip.Read(1); got != 0x03 {
		t.Errorf("effect bits kept: $%02X", got)
	}
	d.writeFrame(&d.ym.frames[1])
	if got := d.chip.Read(13); got != 0x0A {
		t.Errorf("envelope shape = $%02X after a $FF frame", got)
	}
}

func TestMetaData(t *testing.T) {
	d := newTestDecoder(t)
	if err := d.Play(buildYM6(repeatFrame(toneFrame, 125), true), true); err != nil {
		t.Fatal(err)
	}
	meta := d.MetaData()
	if meta.HasDiskInformation || meta.DiskInformation.TrackCount != 1 || meta.DiskInformation.Converter != "YM6!" {
		t.Errorf("disk info = %v, %+v", meta.HasDiskInformation, meta.DiskInformation)
	}
	ti := meta.TrackInformation
	if ti.Title != "Title" || ti.Author != "Author" || ti.Comment != "Comment" || ti.Duration != 2 || ti.TrackNumber != 1 {
		t.Errorf("track info = %+v", ti)
	}
	if d.NextTrack() || d.PrevTrack() {
		t.Error("navigation succeeded on a YM file")
	}
}

func TestProcessStates(t *testing.T) {
	d := newTestDecoder(t)
	buf := bytes.Repeat([]byte{7}, 16)
	status, err := d.Process(buf)
	if status != types.StatusError || !errors.Is(err, types.ErrNotLoaded) {
		t.Errorf("Process before Play = %v, %v", status, err)
	}

	if err := d.Play(buildYM6(repeatFrame(toneFrame, 5), true), true); err != nil {
		t.Fatal(err)
	}
	if err := d.Play([]byte("YM6!"), true); err == nil {
		t.Fatal("truncated file played")
	}
	if d.MetaData().TrackInformation.Title != "Title" {
		t.Error("failed Play replaced the loaded file")
	}

	d.Stop()
	buf[0] = 7
	if status, err := d.Process(buf); status != types.StatusEnded || err != nil {
		t.Errorf("Process after Stop = %v, %v", status, err)
	}
	if !bytes.Equal(buf, make([]byte, len(buf))) {
		t.Error("buffer not zeroed")
	}
}

func TestReload(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"ym6", buildYM6(repeatFrame(toneFrame, 50), true)},
		{"ym3", buildYM3("YM3!", 50)},
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
		})
	}
}
