package gme

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/drgolem/chipplay/pkg/emu/apu2a03"
	"github.com/drgolem/chipplay/pkg/emu/mos6502"
	"github.com/drgolem/chipplay/pkg/types"
)

const (
	nsfHeaderSize = 0x80
	nsfBankSize   = 0x1000

	// default play rates in microseconds
	nsfSpeedNTSC = 16639
	nsfSpeedPAL  = 19997

	nsfStubBase   uint16 = 0x5FF0
	nsfStubReturn uint16 = nsfStubBase + 3

	nsfMaxCallCycles = 1000000
)

// nsf plays NES Sound Format files: a 6502 driving the 2A03 APU.
type nsf struct {
	songs     int
	startSong int
	load      uint16
	init      uint16
	playAddr  uint16
	name      string
	artist    string
	copyright string
	pal       bool
	speed     int // microseconds per play call
	chips     uint8

	image      []byte
	bankswitch bool
	initBanks  [8]uint8

	ram   [0x800]uint8
	sram  [0x2000]uint8
	banks [8]int
	stub  [6]uint8

	cpu *mos6502.CPU
	apu *apu2a03.APU

	cyclesPerSample float64
	tickCycles      float64
	tickLeft        float64
}

func newNSF(data []byte) (*nsf, error) {
	if len(data) <= nsfHeaderSize {
		return nil, fmt.Errorf("%w: nsf: %d bytes is too short", types.ErrMalformedContainer, len(data))
	}

	le := binary.LittleEndian
	n := &nsf{
		songs:     int(data[0x06]),
		startSong: int(data[0x07]),
		load:      le.Uint16(data[0x08:]),
		init:      le.Uint16(data[0x0A:]),
		playAddr:  le.Uint16(data[0x0C:]),
		name:      headerString(data[0x0E:0x2E]),
		artist:    headerString(data[0x2E:0x4E]),
		copyright: headerString(data[0x4E:0x6E]),
		chips:     data[0x7B],
	}
	copy(n.initBanks[:], data[0x70:0x78])
	for _, b := range n.initBanks {
		if b != 0 {
			n.bankswitch = true
		}
	}

	if n.songs == 0 {
		return nil, fmt.Errorf("%w: nsf: no songs", types.ErrMalformedContainer)
	}
	if n.startSong < 1 || n.startSong > n.songs {
		n.startSong = 1
	}

	region := data[0x7A]
	n.pal = region&0x03 == 0x01
	clock := float64(apu2a03.ClockNTSC)
	n.speed = int(le.Uint16(data[0x6E:]))
	if n.speed == 0 {
		n.speed = nsfSpeedNTSC
	}
	if n.pal {
		clock = apu2a03.ClockPAL
		n.speed = int(le.Uint16(data[0x78:]))
		if n.speed == 0 {
			n.speed = nsfSpeedPAL
		}
	}

	prog := data[nsfHeaderSize:]
	if n.bankswitch {
		pad := int(n.load & 0x0FFF)
		n.image = make([]byte, pad+len(prog))
		copy(n.image[pad:], prog)
	} else {
		if n.load < 0x8000 {
			return nil, fmt.Errorf("%w: nsf: load address $%04X below $8000", types.ErrMalformedContainer, n.load)
		}
		n.image = make([]byte, 0x8000)
		copy(n.image[n.load-0x8000:], prog)
	}

	n.cyclesPerSample = clock / sampleRate
	n.tickCycles = clock * float64(n.speed) / 1e6
	n.apu = apu2a03.New(clock, sampleRate, n.Read)
	n.cpu = mos6502.New(n)
	return n, nil
}

func headerString(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}

func (n *nsf) trackCount() int {
	return n.songs
}

func (n *nsf) defaultTrack() int {
	return n.startSong - 1
}

func (n *nsf) trackInfo(int) trackInfo {
	info := trackInfo{
		length:    defaultLength,
		system:    "Nintendo NES",
		game:      n.name,
		author:    n.artist,
		copyright: n.copyright,
	}
	if n.chips != 0 {
		info.comment = fmt.Sprintf("expansion audio $%02X not emulated", n.chips)
	}
	return info
}

func (n *nsf) startTrack(track int) error {
	n.ram = [0x800]uint8{}
	n.sram = [0x2000]uint8{}
	for i := range n.banks {
		if n.bankswitch {
			n.banks[i] = int(n.initBanks[i]) * nsfBankSize
		} else {
			n.banks[i] = i * nsfBankSize
		}
	}

	n.apu.Reset()
	for addr := uint16(0x4000); addr <= 0x4013; addr++ {
		n.apu.Write(addr, 0)
	}
	n.apu.Write(0x4015, 0x00)
	n.apu.Write(0x4015, 0x0F)
	n.apu.Write(0x4017, 0x40)

	n.cpu = mos6502.New(n)
	var region uint8
	if n.pal {
		region = 1
	}
	n.tickLeft = 0
	if err := n.call(n.init, uint8(track), region); err != nil {
		return fmt.Errorf("%w: nsf init: %w", types.ErrDecodeFault, err)
	}
	return nil
}

func (n *nsf) call(addr uint16, a, x uint8) error {
	n.stub = [6]uint8{
		0x20, uint8(addr), uint8(addr >> 8),
		0x4C, uint8(nsfStubReturn & 0xFF), uint8(nsfStubReturn >> 8),
	}
	c := n.cpu
	c.A, c.X, c.Y = a, x, 0
	c.P = mos6502.FlagU | mos6502.FlagI
	c.SP = 0xFF
	c.PC = nsfStubBase

	start := c.Cycles
	for c.PC != nsfStubReturn && c.Cycles-start < nsfMaxCallCycles {
		if _, err := c.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (n *nsf) play(out []int16) error {
	for i := 0; i+1 < len(out); i += 2 {
		n.tickLeft -= n.cyclesPerSample
		if n.tickLeft <= 0 {
			n.tickLeft += n.tickCycles
			if err := n.call(n.playAddr, 0, 0); err != nil {
				return fmt.Errorf("%w: nsf play: %w", types.ErrDecodeFault, err)
			}
		}
		s := types.ClampS16(n.apu.Sample())
		out[i], out[i+1] = s, s
	}
	return nil
}

func (n *nsf) Read(addr uint16) uint8 {
	switch {
	case addr < 0x2000:
		return n.ram[addr&0x7FF]
	case addr == 0x4015:
		return n.apu.Read(addr)
	case addr >= nsfStubBase && addr < nsfStubBase+6:
		return n.stub[addr-nsfStubBase]
	case addr >= 0x6000 && addr < 0x8000:
		return n.sram[addr-0x6000]
	case addr >= 0x8000:
		off := n.banks[(addr-0x8000)/nsfBankSize] + int(addr&0x0FFF)
		if off < len(n.image) {
			return n.image[off]
		}
	}
	return 0
}

func (n *nsf) Write(addr uint16, v uint8) {
	switch {
	case addr < 0x2000:
		n.ram[addr&0x7FF] = v
	case addr >= 0x4000 && addr <= 0x4017:
		n.apu.Write(addr, v)
	case addr >= 0x5FF8 && addr <= 0x5FFF:
		if n.bankswitch {
			n.banks[addr-0x5FF8] = int(v) * nsfBankSize
		}
	case addr >= 0x6000 && addr < 0x8000:
		n.sram[addr-0x6000] = v
	}
}
