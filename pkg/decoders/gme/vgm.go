package gme

import (
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/drgolem/chipplay/pkg/emu/ay8910"
	"github.com/drgolem/chipplay/pkg/emu/sn76489"
	"github.com/drgolem/chipplay/pkg/types"
)

const (
	vgmHeaderMin   = 0x40
	vgmRate        = 44100
	vgmLoops       = 2
	vgmClockMask   = 0x3FFFFFFF
	vgmEndOfStream = 0x66

	// bounds a loop section that never waits
	maxCommandsPerSample = 1 << 20
)

// gd3 tag strings in file order
const (
	gd3Track = iota
	gd3TrackJP
	gd3Game
	gd3GameJP
	gd3System
	gd3SystemJP
	gd3Author
	gd3AuthorJP
	gd3Date
	gd3Ripper
	gd3Notes
	gd3Count
)

// vgm plays a register log of the SN76489 and AY-3-8910 chips. Commands
// for other chips are skipped.
type vgm struct {
	data         []byte
	version      uint32
	start        int
	loopStart    int
	totalSamples uint64
	loopSamples  uint64
	tags         [gd3Count]string

	snClock uint32
	ayClock uint32
	sn      *sn76489.Chip
	ay      *ay8910.Chip

	pos   int
	wait  uint64
	ended bool
}

func newVGM(data []byte) (*vgm, error) {
	if len(data) < vgmHeaderMin {
		return nil, fmt.Errorf("%w: vgm: %d bytes is too short", types.ErrMalformedContainer, len(data))
	}
	le := binary.LittleEndian
	v := &vgm{
		data:         data,
		version:      le.Uint32(data[0x08:]),
		totalSamples: uint64(le.Uint32(data[0x18:])),
		loopSamples:  uint64(le.Uint32(data[0x20:])),
		snClock:      le.Uint32(data[0x0C:]) & vgmClockMask,
	}

	v.start = 0x40
	if v.version >= 0x150 {
		if off := le.Uint32(data[0x34:]); off != 0 {
			v.start = 0x34 + int(off)
		}
	}
	if v.start >= len(data) {
		return nil, fmt.Errorf("%w: vgm: data offset $%X beyond end of file", types.ErrMalformedContainer, v.start)
	}
	if off := le.Uint32(data[0x1C:]); off != 0 {
		v.loopStart = 0x1C + int(off)
		if v.loopStart < v.start || v.loopStart >= len(data) {
			v.loopStart = 0
		}
	}
	if v.version >= 0x151 && v.start >= 0x78 {
		v.ayClock = le.Uint32(data[0x74:]) & vgmClockMask
	}

	if v.snClock == 0 && v.ayClock == 0 {
		return nil, fmt.Errorf("%w: vgm: unsupported chip configuration", types.ErrUnsupportedFormat)
	}

	if off := le.Uint32(data[0x14:]); off != 0 {
		v.tags = parseGD3(data, 0x14+int(off))
	}
	return v, nil
}

// parseGD3 reads the UTF-16LE tag block. A damaged block yields what could
// be read.
func parseGD3(data []byte, at int) [gd3Count]string {
	var tags [gd3Count]string
	if at+12 > len(data) || string(data[at:at+4]) != "Gd3 " {
		return tags
	}
	size := int(binary.LittleEndian.Uint32(data[at+8:]))
	body := data[at+12:]
	if size < len(body) {
		body = body[:size]
	}

	var units []uint16
	field := 0
	for i := 0; i+1 < len(body) && field < gd3Count; i += 2 {
		u := binary.LittleEndian.Uint16(body[i:])
		if u == 0 {
			tags[field] = string(utf16.Decode(units))
			units = units[:0]
			field++
			continue
		}
		units = append(units, u)
	}
	return tags
}

func (v *vgm) trackCount() int {
	return 1
}

func (v *vgm) defaultTrack() int {
	return 0
}

// playSamples is the intro plus two loops, or the whole log when it does
// not loop.
func (v *vgm) playSamples() uint64 {
	if v.loopStart != 0 && v.loopSamples > 0 {
		intro := v.totalSamples - min(v.loopSamples, v.totalSamples)
		return intro + v.loopSamples*vgmLoops
	}
	return v.totalSamples
}

func (v *vgm) trackInfo(int) trackInfo {
	pick := func(en, jp int) string {
		if v.tags[en] != "" {
			return v.tags[en]
		}
		return v.tags[jp]
	}
	length := time.Duration(v.playSamples()) * time.Second / vgmRate
	if length == 0 {
		length = defaultLength
	}
	return trackInfo{
		length:    length,
		system:    pick(gd3System, gd3SystemJP),
		game:      pick(gd3Game, gd3GameJP),
		song:      pick(gd3Track, gd3TrackJP),
		author:    pick(gd3Author, gd3AuthorJP),
		copyright: v.tags[gd3Date],
		comment:   v.tags[gd3Notes],
		dumper:    v.tags[gd3Ripper],
	}
}

func (v *vgm) startTrack(int) error {
	v.sn, v.ay = nil, nil
	if v.snClock != 0 {
		v.sn = sn76489.New(float64(v.snClock), sampleRate)
		if v.version >= 0x110 {
			le := binary.LittleEndian
			v.sn.SetNoise(le.Uint16(v.data[0x28:]), v.data[0x2A])
		}
	}
	if v.ayClock != 0 {
		v.ay = ay8910.New(float64(v.ayClock), sampleRate)
	}
	v.pos = v.start
	v.wait = 0
	v.ended = false
	return nil
}

func (v *vgm) play(out []int16) error {
	for i := 0; i+1 < len(out); i += 2 {
		for spins := 0; v.wait == 0 && !v.ended; spins++ {
			if spins > maxCommandsPerSample {
				return fmt.Errorf("%w: vgm: no wait command near $%X", types.ErrDecodeFault, v.pos)
			}
			if err := v.command(); err != nil {
				return err
			}
		}
		if v.wait > 0 {
			v.wait--
		}

		var l, r int32
		if v.sn != nil {
			sl, sr := v.sn.Sample()
			l, r = l+sl, r+sr
		}
		if v.ay != nil {
			al, ar := v.ay.Sample()
			l, r = l+al, r+ar
		}
		out[i], out[i+1] = types.ClampS16(l), types.ClampS16(r)
	}
	return nil
}

// operandBytes returns the operand size of commands that only need to be
// skipped.
func operandBytes(cmd uint8) int {
	switch {
	case cmd >= 0x30 && cmd <= 0x3F:
		return 1
	case cmd >= 0x40 && cmd <= 0x4E:
		return 2
	case cmd >= 0x51 && cmd <= 0x5F:
		return 2
	case cmd >= 0xA1 && cmd <= 0xBF:
		return 2
	case cmd >= 0xC0 && cmd <= 0xDF:
		return 3
	case cmd >= 0xE0:
		return 4
	case cmd == 0x90, cmd == 0x91, cmd == 0x95:
		return 4
	case cmd == 0x92:
		return 5
	case cmd == 0x93:
		return 10
	case cmd == 0x94:
		return 1
	case cmd == 0x68:
		return 11
	}
	return 0
}

// command executes one command at pos.
func (v *vgm) command() error {
	d := v.data
	if v.pos >= len(d) {
		v.finish()
		return nil
	}

	cmd := d[v.pos]
	need := func(n int) bool {
		if v.pos+1+n > len(d) {
			v.finish()
			return false
		}
		return true
	}

	switch {
	case cmd == vgmEndOfStream:
		v.finish()
	case cmd == 0x4F:
		if !need(1) {
			return nil
		}
		if v.sn != nil {
			v.sn.WriteStereo(d[v.pos+1])
		}
		v.pos += 2
	case cmd == 0x50:
		if !need(1) {
			return nil
		}
		if v.sn != nil {
			v.sn.Write(d[v.pos+1])
		}
		v.pos += 2
	case cmd == 0xA0:
		if !need(2) {
			return nil
		}
		// bit 7 of the register selects a second chip, which is not emulated
		if reg := d[v.pos+1]; v.ay != nil && reg&0x80 == 0 {
			v.ay.Write(reg, d[v.pos+2])
		}
		v.pos += 3
	case cmd == 0x61:
		if !need(2) {
			return nil
		}
		v.wait = uint64(binary.LittleEndian.Uint16(d[v.pos+1:]))
		v.pos += 3
	case cmd == 0x62:
		v.wait = 735
		v.pos++
	case cmd == 0x63:
		v.wait = 882
		v.pos++
	case cmd >= 0x70 && cmd <= 0x7F:
		v.wait = uint64(cmd&0x0F) + 1
		v.pos++
	case cmd >= 0x80 && cmd <= 0x8F:
		// YM2612 DAC write and wait
		v.wait = uint64(cmd & 0x0F)
		v.pos++
	case cmd == 0x67:
		if !need(6) {
			return nil
		}
		if d[v.pos+1] != 0x66 {
			return fmt.Errorf("%w: vgm: bad data block at $%X", types.ErrDecodeFault, v.pos)
		}
		size := int(binary.LittleEndian.Uint32(d[v.pos+3:]) & 0x7FFFFFFF)
		v.pos += 7 + size
	default:
		n := operandBytes(cmd)
		if !need(n) {
			return nil
		}
		v.pos += 1 + n
	}
	return nil
}

// finish handles the end of the command stream: jump to the loop point or
// stop producing chip writes.
func (v *vgm) finish() {
	if v.loopStart != 0 && v.loopSamples > 0 {
		v.pos = v.loopStart
		return
	}
	v.ended = true
}
