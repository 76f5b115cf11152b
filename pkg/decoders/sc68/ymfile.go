package sc68

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/drgolem/chipplay/pkg/emu/ay8910"
	"github.com/drgolem/chipplay/pkg/lha"
	"github.com/drgolem/chipplay/pkg/types"
)

const (
	ymRegisters     = 16
	ymLegacyRegs    = 14
	ymSignature     = "LeOnArD!"
	defaultFrameHz  = 50
	attrInterleaved = 0x01

	// register 13 value meaning the envelope is left running
	noEnvelopeWrite = 0xFF
)

// effectMask clears the bits YM5/YM6 use to flag SID voice, DigiDrum,
// Sinus-SID and Sync-Buzzer effects, leaving plain PSG register values.
var effectMask = [ymRegisters]uint8{
	0xFF, 0x0F, 0xFF, 0x0F, 0xFF, 0x0F,
	0x1F, 0xFF,
	0x1F, 0x1F, 0x1F,
	0xFF, 0xFF, 0xFF,
	0x00, 0x00,
}

// ymFile is a decoded register dump: one set of PSG registers per frame.
type ymFile struct {
	id        string
	frames    [][ymRegisters]uint8
	frameRate int
	clockHz   int
	loopFrame int
	title     string
	author    string
	comment   string
}

// parseYM unwraps an LHA archive if needed and decodes the YM stream.
func parseYM(data []byte) (*ymFile, error) {
	if lha.IsArchive(data) {
		raw, err := lha.ExtractFirst(data)
		if err != nil {
			return nil, fmt.Errorf("%w: ym archive: %w", types.ErrMalformedContainer, err)
		}
		data = raw
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: ym: %d bytes is too short", types.ErrMalformedContainer, len(data))
	}

	id := string(data[:4])
	switch id {
	case "YM2!", "YM3!":
		return parseLegacy(id, data[4:], false)
	case "YM3b":
		return parseLegacy(id, data[4:], true)
	case "YM5!", "YM6!":
		return parseTagged(id, data)
	case "YM1!", "YM4!":
		return nil, fmt.Errorf("%w: ym: %s streams are not supported", types.ErrUnsupportedFormat, id)
	}
	return nil, fmt.Errorf("%w: ym: unknown id %q", types.ErrMalformedContainer, id)
}

// parseLegacy reads YM2/YM3 streams: 14 registers, always interleaved, at
// 50 Hz on a 2 MHz chip. YM3b appends a big-endian loop frame.
func parseLegacy(id string, body []byte, hasLoop bool) (*ymFile, error) {
	ym := &ymFile{
		id:        id,
		frameRate: defaultFrameHz,
		clockHz:   ay8910.ClockAtariST,
	}
	if hasLoop {
		if len(body) < 4 {
			return nil, fmt.Errorf("%w: ym: missing loop frame", types.ErrMalformedContainer)
		}
		ym.loopFrame = int(binary.BigEndian.Uint32(body[len(body)-4:]))
		body = body[:len(body)-4]
	}

	count := len(body) / ymLegacyRegs
	if count == 0 {
		return nil, fmt.Errorf("%w: ym: no frames", types.ErrMalformedContainer)
	}
	ym.frames = deinterleave(body, count, ymLegacyRegs)
	return ym, nil
}

func parseTagged(id string, data []byte) (*ymFile, error) {
	if len(data) < 12 || string(data[4:12]) != ymSignature {
		return nil, fmt.Errorf("%w: ym: invalid signature", types.ErrMalformedContainer)
	}

	r := &reader{data: data, off: 12}
	frameCount := r.u32()
	attrs := r.u32()
	drums := r.u16()
	clock := r.u32()
	rate := r.u16()
	loop := r.u32()
	extra := r.u16()
	r.skip(int(extra))
	for range int(drums) {
		r.skip(int(r.u32()))
	}
	title := r.cString()
	author := r.cString()
	comment := r.cString()
	if r.err != nil {
		return nil, fmt.Errorf("%w: ym header: %w", types.ErrMalformedContainer, r.err)
	}

	count := int(frameCount)
	if count == 0 {
		return nil, fmt.Errorf("%w: ym: no frames", types.ErrMalformedContainer)
	}
	body := data[r.off:]
	if len(body)/ymRegisters < count {
		return nil, fmt.Errorf("%w: ym: frame data too short for %d frames", types.ErrMalformedContainer, count)
	}

	ym := &ymFile{
		id:        id,
		frameRate: int(rate),
		clockHz:   int(clock),
		loopFrame: int(loop),
		title:     title,
		author:    author,
		comment:   comment,
	}
	if ym.frameRate == 0 {
		ym.frameRate = defaultFrameHz
	}
	if ym.clockHz == 0 {
		ym.clockHz = ay8910.ClockAtariST
	}

	if attrs&attrInterleaved != 0 {
		ym.frames = deinterleave(body, count, ymRegisters)
	} else {
		ym.frames = make([][ymRegisters]uint8, count)
		for i := range ym.frames {
			copy(ym.frames[i][:], body[i*ymRegisters:])
		}
	}
	return ym, nil
}

// deinterleave converts register-major data (all frames of register 0,
// then register 1, and so on) into frames.
func deinterleave(body []byte, count, regs int) [][ymRegisters]uint8 {
	frames := make([][ymRegisters]uint8, count)
	for reg := range regs {
		base := reg * count
		for f := range frames {
			frames[f][reg] = body[base+f]
		}
	}
	return frames
}

// reader decodes big-endian header fields, remembering the first overrun.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = io.ErrUnexpectedEOF
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (r *reader) skip(n int) {
	r.take(n)
}

func (r *reader) cString() string {
	if r.err != nil {
		return ""
	}
	start := r.off
	for r.off < len(r.data) && r.data[r.off] != 0 {
		r.off++
	}
	if r.off == len(r.data) {
		r.err = io.ErrUnexpectedEOF
		return ""
	}
	s := string(r.data[start:r.off])
	r.off++
	return s
}
