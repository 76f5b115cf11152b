package sidplay

import (
	"github.com/drgolem/chipplay/pkg/emu/mos6502"
	"github.com/drgolem/chipplay/pkg/emu/sid"
	"github.com/drgolem/chipplay/pkg/sidtune"
)

const (
	kernalSize  = 8192
	basicSize   = 8192
	chargenSize = 4096
)

// driver stub: JSR target / JMP self
const (
	stubBase   uint16 = 0xFFF0
	stubReturn uint16 = stubBase + 3
	stubSize          = 6
)

// maxCallCycles bounds one init or play call
const maxCallCycles = 1000000

const (
	// default kernal CIA1 timer A latch (about 60 Hz)
	timerPAL  = 0x4025
	timerNTSC = 0x4295

	linesPAL, cyclesPerLinePAL   = 312, 63
	linesNTSC, cyclesPerLineNTSC = 263, 65
)

// kernal RAM vectors after a cold start
const (
	vecIRQ   = 0x0314
	vecBRK   = 0x0316
	vecNMI   = 0x0318
	kernIRQ  = 0xEA31
	kernBRK  = 0xFE66
	kernNMI  = 0xFE47
	portDDR  = 0x2F
	portBank = 0x37
)

type roms struct {
	kernal  []byte
	basic   []byte
	chargen []byte
}

// cia is the part of a 6526 the players use: two interval timers and the
// interrupt control register. Ports read as idle.
type cia struct {
	timerA, latchA uint16
	timerB, latchB uint16
	cra, crb       uint8
	icr, mask      uint8
}

func (c *cia) read(reg uint8) uint8 {
	switch reg & 0x0F {
	case 0x04:
		return uint8(c.timerA)
	case 0x05:
		return uint8(c.timerA >> 8)
	case 0x06:
		return uint8(c.timerB)
	case 0x07:
		return uint8(c.timerB >> 8)
	case 0x0D:
		v := c.icr
		if c.icr&c.mask != 0 {
			v |= 0x80
		}
		c.icr = 0
		return v
	case 0x0E:
		return c.cra
	case 0x0F:
		return c.crb
	default:
		return 0xFF
	}
}

func (c *cia) write(reg, v uint8) {
	switch reg & 0x0F {
	case 0x04:
		c.latchA = c.latchA&0xFF00 | uint16(v)
	case 0x05:
		c.latchA = c.latchA&0x00FF | uint16(v)<<8
		if c.cra&0x01 == 0 {
			c.timerA = c.latchA
		}
	case 0x06:
		c.latchB = c.latchB&0xFF00 | uint16(v)
	case 0x07:
		c.latchB = c.latchB&0x00FF | uint16(v)<<8
		if c.crb&0x01 == 0 {
			c.timerB = c.latchB
		}
	case 0x0D:
		if v&0x80 != 0 {
			c.mask |= v & 0x1F
		} else {
			c.mask &^= v & 0x1F
		}
	case 0x0E:
		if v&0x10 != 0 {
			c.timerA = c.latchA
		}
		c.cra = v &^ 0x10
	case 0x0F:
		if v&0x10 != 0 {
			c.timerB = c.latchB
		}
		c.crb = v &^ 0x10
	}
}

func (c *cia) clock(cycles int) {
	c.tick(&c.timerA, c.latchA, &c.cra, cycles, 0x01)
	c.tick(&c.timerB, c.latchB, &c.crb, cycles, 0x02)
}

// tick counts a timer down. One period is latch+1 cycles.
func (c *cia) tick(t *uint16, latch uint16, ctrl *uint8, cycles int, flag uint8) {
	if *ctrl&0x01 == 0 {
		return
	}
	left := int(*t) + 1
	if cycles < left {
		*t -= uint16(cycles)
		return
	}
	cycles -= left
	c.icr |= flag
	if *ctrl&0x08 != 0 {
		// one-shot
		*ctrl &^= 0x01
		*t = latch
		return
	}
	cycles %= int(latch) + 1
	*t = latch - uint16(cycles)
}

func (c *cia) irq() bool {
	return c.icr&c.mask != 0
}

// vic tracks the raster beam and the raster interrupt.
type vic struct {
	regs      [0x40]uint8
	raster    uint16
	compare   uint16
	lineCycle int
	flags     uint8
	mask      uint8

	lines, cyclesPerLine int
}

func (v *vic) read(reg uint8) uint8 {
	reg &= 0x3F
	switch reg {
	case 0x11:
		return v.regs[0x11]&0x7F | uint8(v.raster>>8)<<7
	case 0x12:
		return uint8(v.raster)
	case 0x19:
		f := v.flags | 0x70
		if v.flags&v.mask != 0 {
			f |= 0x80
		}
		return f
	case 0x1A:
		return v.mask | 0xF0
	}
	return v.regs[reg]
}

func (v *vic) write(reg, value uint8) {
	reg &= 0x3F
	switch reg {
	case 0x11:
		v.compare = v.compare&0xFF | uint16(value&0x80)<<1
	case 0x12:
		v.compare = v.compare&0x100 | uint16(value)
	case 0x19:
		v.flags &^= value & 0x0F
		return
	case 0x1A:
		v.mask = value & 0x0F
		return
	}
	v.regs[reg] = value
}

func (v *vic) clock(cycles int) {
	v.lineCycle += cycles
	for v.lineCycle >= v.cyclesPerLine {
		v.lineCycle -= v.cyclesPerLine
		v.raster++
		if int(v.raster) >= v.lines {
			v.raster = 0
		}
		if v.raster == v.compare {
			v.flags |= 0x01
		}
	}
}

func (v *vic) irq() bool {
	return v.flags&v.mask != 0
}

// machine is a C64 with one SID, enough to run PSID and RSID players.
type machine struct {
	ram    [0x10000]uint8
	colour [0x400]uint8
	roms   *roms
	ddr    uint8
	port   uint8
	stub   [stubSize]uint8

	cpu  *mos6502.CPU
	sid  *sid.Chip
	cia1 cia
	vic  vic

	// continuous mode runs the CPU between samples with interrupts live;
	// otherwise play is called once per tick
	continuous bool
	released   bool
	play       uint16
	tickCycles float64
	tickLeft   float64
	budget     float64

	cyclesPerSample float64
}

func newMachine(r *roms, tune *sidtune.Tune, sampleRate int) (*machine, error) {
	ntsc := tune.Clock() == sidtune.ClockNTSC
	clockHz := float64(sid.ClockPAL)
	if ntsc {
		clockHz = sid.ClockNTSC
	}

	m := &machine{
		roms:            r,
		ddr:             portDDR,
		port:            bankFor(tune),
		sid:             sid.New(clockHz, sampleRate),
		cyclesPerSample: clockHz / float64(sampleRate),
		play:            tune.PlayAddress,
		continuous:      tune.IsRSID() || tune.PlayAddress == 0,
	}
	if tune.Model() == sidtune.Model8580 {
		m.sid.SetModel(sid.Model8580)
	}
	m.cpu = mos6502.New(m)

	m.vic.lines, m.vic.cyclesPerLine = linesPAL, cyclesPerLinePAL
	latch := uint16(timerPAL)
	if ntsc {
		m.vic.lines, m.vic.cyclesPerLine = linesNTSC, cyclesPerLineNTSC
		latch = timerNTSC
	}
	m.cia1.latchA, m.cia1.timerA = latch, latch
	m.cia1.cra = 0x01
	m.cia1.mask = 0x01

	m.ram[vecIRQ], m.ram[vecIRQ+1] = uint8(kernIRQ&0xFF), kernIRQ>>8
	m.ram[vecBRK], m.ram[vecBRK+1] = uint8(kernBRK&0xFF), kernBRK>>8
	m.ram[vecNMI], m.ram[vecNMI+1] = uint8(kernNMI&0xFF), kernNMI>>8
	copy(m.ram[tune.LoadAddress:], tune.Data)

	song := uint8(tune.CurrentSong() - 1)
	if m.continuous {
		m.setStub(tune.InitAddress)
		m.cpu.A = song
		m.cpu.PC = stubBase
		return m, nil
	}

	if err := m.call(tune.InitAddress, song); err != nil {
		return nil, err
	}
	frameCycles := float64(m.vic.lines * m.vic.cyclesPerLine)
	if tune.SpeedIsCIA(tune.CurrentSong()) && m.cia1.latchA != 0 {
		frameCycles = float64(m.cia1.latchA) + 1
	}
	m.tickCycles = frameCycles
	return m, nil
}

// bankFor picks the $01 value a PSID driver would use so the init and play
// code is visible.
func bankFor(tune *sidtune.Tune) uint8 {
	if tune.IsRSID() {
		return portBank
	}
	addr := tune.InitAddress
	switch {
	case addr >= 0xE000:
		return 0x35
	case addr >= 0xD000:
		return 0x34
	case addr >= 0xA000 && addr < 0xC000:
		return 0x36
	}
	return portBank
}

func (m *machine) setStub(target uint16) {
	m.stub = [stubSize]uint8{
		0x20, uint8(target), uint8(target >> 8),
		0x4C, uint8(stubReturn & 0xFF), uint8(stubReturn >> 8),
	}
}

// bank returns the effective LORAM/HIRAM/CHAREN lines. Inputs float high.
func (m *machine) bank() uint8 {
	return (m.port | ^m.ddr) & 0x07
}

func (m *machine) Read(addr uint16) uint8 {
	switch {
	case addr >= stubBase && addr < stubBase+stubSize:
		return m.stub[addr-stubBase]
	case addr == 0:
		return m.ddr
	case addr == 1:
		return m.port
	}

	b := m.bank()
	switch {
	case addr >= 0xA000 && addr < 0xC000:
		if b&0x03 == 0x03 {
			return m.roms.basic[addr-0xA000]
		}
	case addr >= 0xD000 && addr < 0xE000:
		if b&0x03 != 0 {
			if b&0x04 != 0 {
				return m.readIO(addr)
			}
			return m.roms.chargen[addr-0xD000]
		}
	case addr >= 0xE000:
		if b&0x02 != 0 {
			return m.roms.kernal[addr-0xE000]
		}
	}
	return m.ram[addr]
}

func (m *machine) Write(addr uint16, v uint8) {
	switch addr {
	case 0:
		m.ddr = v
		return
	case 1:
		m.port = v
		return
	}
	if addr >= 0xD000 && addr < 0xE000 {
		if b := m.bank(); b&0x03 != 0 && b&0x04 != 0 {
			m.writeIO(addr, v)
			return
		}
	}
	m.ram[addr] = v
}

func (m *machine) readIO(addr uint16) uint8 {
	switch {
	case addr < 0xD400:
		return m.vic.read(uint8(addr))
	case addr < 0xD800:
		return m.sid.Read(uint8(addr & 0x1F))
	case addr < 0xDC00:
		return m.colour[addr-0xD800] | 0xF0
	case addr < 0xDD00:
		return m.cia1.read(uint8(addr))
	}
	return 0xFF
}

func (m *machine) writeIO(addr uint16, v uint8) {
	switch {
	case addr < 0xD400:
		m.vic.write(uint8(addr), v)
	case addr < 0xD800:
		m.sid.Write(uint8(addr&0x1F), v)
	case addr < 0xDC00:
		m.colour[addr-0xD800] = v & 0x0F
	case addr < 0xDD00:
		m.cia1.write(uint8(addr), v)
	}
}

func (m *machine) step() (int, error) {
	n, err := m.cpu.Step()
	if err != nil {
		return 0, err
	}
	m.cia1.clock(n)
	m.vic.clock(n)
	if m.continuous {
		m.cpu.SetIRQ(m.cia1.irq() || m.vic.irq())
	}
	return n, nil
}

// call runs a routine through the JSR stub with interrupts masked. A
// routine that does not return within maxCallCycles is abandoned.
func (m *machine) call(addr uint16, a uint8) error {
	m.setStub(addr)
	c := m.cpu
	c.A, c.X, c.Y = a, 0, 0
	c.P = mos6502.FlagU | mos6502.FlagI
	c.SP = 0xFF
	c.PC = stubBase

	start := c.Cycles
	for c.PC != stubReturn && c.Cycles-start < maxCallCycles {
		if _, err := m.step(); err != nil {
			return err
		}
	}
	return nil
}

// sample advances the machine by one output sample and returns the SID
// output.
func (m *machine) sample() (int32, error) {
	if m.continuous {
		m.budget += m.cyclesPerSample
		for m.budget > 0 {
			if !m.released && m.cpu.PC == stubReturn {
				// init has returned, let the installed interrupt drive it
				m.released = true
				m.cpu.P &^= mos6502.FlagI
			}
			n, err := m.step()
			if err != nil {
				return 0, err
			}
			m.budget -= float64(n)
		}
	} else {
		m.tickLeft -= m.cyclesPerSample
		if m.tickLeft <= 0 {
			m.tickLeft += m.tickCycles
			if err := m.call(m.play, 0); err != nil {
				return 0, err
			}
		}
	}
	return m.sid.Sample(), nil
}
