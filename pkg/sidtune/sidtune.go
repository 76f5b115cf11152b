// Package sidtune parses PSID and RSID C64 music files.
package sidtune

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrFormat is returned for data that is not a valid PSID/RSID file
var ErrFormat = errors.New("sidtune: invalid file")

// MaxSongs is the largest song count the format allows
const MaxSongs = 256

const (
	headerV1 = 0x76
	headerV2 = 0x7C
)

// Clock is the video standard the tune was written for.
type Clock int

const (
	ClockUnknown Clock = iota
	ClockPAL
	ClockNTSC
	ClockAny
)

func (c Clock) String() string {
	switch c {
	case ClockPAL:
		return "PAL"
	case ClockNTSC:
		return "NTSC"
	case ClockAny:
		return "PAL/NTSC"
	default:
		return "unknown"
	}
}

// Model is the SID revision the tune was written for.
type Model int

const (
	ModelUnknown Model = iota
	Model6581
	Model8580
	ModelAny
)

func (m Model) String() string {
	switch m {
	case Model6581:
		return "6581"
	case Model8580:
		return "8580"
	case ModelAny:
		return "6581/8580"
	default:
		return "unknown"
	}
}

// Tune is a parsed SID file. Data holds the C64 program without the load
// address prefix.
type Tune struct {
	Magic       string // "PSID" or "RSID"
	Version     int
	LoadAddress uint16
	InitAddress uint16
	PlayAddress uint16
	Songs       int
	StartSong   int
	Speed       uint32
	Title       string
	Author      string
	Released    string
	Flags       uint16
	StartPage   uint8
	PageLength  uint8
	SecondSID   uint16
	ThirdSID    uint16
	Data        []byte

	song int
}

// Parse decodes a PSID/RSID file. The returned tune has its start song
// selected.
func Parse(data []byte) (*Tune, error) {
	if len(data) < headerV1 {
		return nil, fmt.Errorf("%w: %d bytes is shorter than a header", ErrFormat, len(data))
	}

	t := &Tune{Magic: string(data[0:4])}
	if t.Magic != "PSID" && t.Magic != "RSID" {
		return nil, fmt.Errorf("%w: magic %q", ErrFormat, t.Magic)
	}

	be := binary.BigEndian
	t.Version = int(be.Uint16(data[0x04:]))
	offset := int(be.Uint16(data[0x06:]))
	t.LoadAddress = be.Uint16(data[0x08:])
	t.InitAddress = be.Uint16(data[0x0A:])
	t.PlayAddress = be.Uint16(data[0x0C:])
	t.Songs = int(be.Uint16(data[0x0E:]))
	t.StartSong = int(be.Uint16(data[0x10:]))
	t.Speed = be.Uint32(data[0x12:])
	t.Title = latin1(data[0x16:0x36])
	t.Author = latin1(data[0x36:0x56])
	t.Released = latin1(data[0x56:0x76])

	if t.Version < 1 || t.Version > 4 {
		return nil, fmt.Errorf("%w: version %d", ErrFormat, t.Version)
	}
	if t.Version == 1 && offset != headerV1 || t.Version > 1 && offset != headerV2 {
		return nil, fmt.Errorf("%w: data offset $%04X for version %d", ErrFormat, offset, t.Version)
	}
	if t.Magic == "RSID" && t.Version == 1 {
		return nil, fmt.Errorf("%w: RSID requires version 2 or later", ErrFormat)
	}
	if offset > len(data) {
		return nil, fmt.Errorf("%w: data offset beyond end of file", ErrFormat)
	}

	if t.Version > 1 {
		t.Flags = be.Uint16(data[0x76:])
		t.StartPage = data[0x78]
		t.PageLength = data[0x79]
		if t.Version > 2 {
			t.SecondSID = extraSIDAddress(data[0x7A])
		}
		if t.Version > 3 {
			t.ThirdSID = extraSIDAddress(data[0x7B])
		}
	}

	prog := data[offset:]
	if t.LoadAddress == 0 {
		if len(prog) < 2 {
			return nil, fmt.Errorf("%w: missing embedded load address", ErrFormat)
		}
		t.LoadAddress = binary.LittleEndian.Uint16(prog)
		prog = prog[2:]
	}
	if len(prog) == 0 {
		return nil, fmt.Errorf("%w: no program data", ErrFormat)
	}
	if int(t.LoadAddress)+len(prog) > 0x10000 {
		return nil, fmt.Errorf("%w: program at $%04X overruns memory", ErrFormat, t.LoadAddress)
	}

	if t.Magic == "RSID" {
		if t.PlayAddress != 0 || t.Speed != 0 {
			return nil, fmt.Errorf("%w: RSID must not declare play address or speed", ErrFormat)
		}
		if t.LoadAddress < 0x07E8 {
			return nil, fmt.Errorf("%w: RSID load address $%04X below $07E8", ErrFormat, t.LoadAddress)
		}
	}
	if t.InitAddress == 0 {
		if t.Magic == "RSID" && !t.UsesBASIC() {
			return nil, fmt.Errorf("%w: RSID without init address", ErrFormat)
		}
		t.InitAddress = t.LoadAddress
	}

	if t.Songs == 0 {
		t.Songs = 1
	}
	if t.Songs > MaxSongs {
		t.Songs = MaxSongs
	}
	if t.StartSong == 0 || t.StartSong > t.Songs {
		t.StartSong = 1
	}

	t.Data = make([]byte, len(prog))
	copy(t.Data, prog)
	t.song = t.StartSong
	return t, nil
}

// extraSIDAddress decodes the $Dxx0 address byte of v3/v4 headers.
func extraSIDAddress(b uint8) uint16 {
	if b == 0 {
		return 0
	}
	return 0xD000 | uint16(b)<<4
}

func latin1(b []byte) string {
	if i := indexZero(b); i >= 0 {
		b = b[:i]
	}
	var sb strings.Builder
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return strings.TrimSpace(sb.String())
}

func indexZero(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

// SelectSong selects a song by 1-based number; 0 selects the start song.
// Out of range numbers also select the start song. Returns the selection.
func (t *Tune) SelectSong(n int) int {
	if n == 0 || n > t.Songs || n < 0 {
		n = t.StartSong
	}
	t.song = n
	return n
}

// CurrentSong returns the selected song number.
func (t *Tune) CurrentSong() int {
	return t.song
}

// IsRSID reports whether the tune needs a full C64 environment.
func (t *Tune) IsRSID() bool {
	return t.Magic == "RSID"
}

// UsesBASIC reports whether an RSID tune is a BASIC program.
func (t *Tune) UsesBASIC() bool {
	return t.IsRSID() && t.Flags&0x02 != 0
}

// SpeedIsCIA reports whether song n is driven by the CIA timer rather than
// the vertical blank interrupt.
func (t *Tune) SpeedIsCIA(n int) bool {
	if t.IsRSID() {
		return true
	}
	bit := n - 1
	if bit > 31 {
		bit = 31
	}
	if bit < 0 {
		return false
	}
	return t.Speed>>uint(bit)&1 != 0
}

// Clock returns the video standard from the header flags.
func (t *Tune) Clock() Clock {
	return Clock(t.Flags >> 2 & 0x03)
}

// Model returns the SID revision from the header flags.
func (t *Tune) Model() Model {
	return Model(t.Flags >> 4 & 0x03)
}

// InfoStrings returns title, author and release information in header order.
func (t *Tune) InfoStrings() []string {
	return []string{t.Title, t.Author, t.Released}
}

// EndAddress returns the address after the last program byte.
func (t *Tune) EndAddress() int {
	return int(t.LoadAddress) + len(t.Data)
}
