// Package apu2a03 emulates the audio processing unit of the Ricoh 2A03 used
// in the NES: two pulse channels, triangle, noise, the delta modulation
// channel and the frame sequencer, mixed through the non-linear DAC.
package apu2a03

// CPU clocks (Hz)
const (
	ClockNTSC = 1789773
	ClockPAL  = 1662607
)

const outputGain = 40000

var lengthTable = [32]uint8{
	10, 254, 20, 2, 40, 4, 80, 6, 160, 8, 60, 10, 14, 12, 26, 14,
	12, 16, 24, 18, 48, 20, 96, 22, 192, 24, 72, 26, 16, 28, 32, 30,
}

var dutyTable = [4][8]uint8{
	{0, 1, 0, 0, 0, 0, 0, 0},
	{0, 1, 1, 0, 0, 0, 0, 0},
	{0, 1, 1, 1, 1, 0, 0, 0},
	{1, 0, 0, 1, 1, 1, 1, 1},
}

var triangleTable = [32]uint8{
	15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0,
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

var noisePeriods = [16]uint16{
	4, 8, 16, 32, 64, 96, 128, 160, 202, 254, 380, 508, 762, 1016, 2034, 4068,
}

var dmcRates = [16]uint16{
	428, 380, 340, 320, 286, 254, 226, 214, 190, 160, 142, 128, 106, 84, 72, 54,
}

// quarter frame interval in CPU cycles
const frameStep = 7457.5

// MemoryReader fetches DMC sample bytes from CPU address space.
type MemoryReader func(addr uint16) uint8

type envelope struct {
	start    bool
	loop     bool
	constant bool
	period   uint8
	divider  uint8
	decay    uint8
}

func (e *envelope) clock() {
	if e.start {
		e.start = false
		e.decay = 15
		e.divider = e.period
		return
	}
	if e.divider > 0 {
		e.divider--
		return
	}
	e.divider = e.period
	if e.decay > 0 {
		e.decay--
	} else if e.loop {
		e.decay = 15
	}
}

func (e *envelope) volume() uint8 {
	if e.constant {
		return e.period
	}
	return e.decay
}

type pulse struct {
	negateOnes bool // pulse 1 negates with ones' complement

	enabled bool
	duty    uint8
	step    uint8
	timer   uint16
	counter float64
	length  uint8
	env     envelope

	sweepEnabled bool
	sweepPeriod  uint8
	sweepNegate  bool
	sweepShift   uint8
	sweepDivider uint8
	sweepReload  bool
}

func (p *pulse) target() uint16 {
	change := p.timer >> p.sweepShift
	if !p.sweepNegate {
		return p.timer + change
	}
	if p.negateOnes {
		return p.timer - change - 1
	}
	return p.timer - change
}

func (p *pulse) muted() bool {
	return p.timer < 8 || (!p.sweepNegate && p.target() > 0x7FF)
}

func (p *pulse) clockSweep() {
	if p.sweepDivider == 0 && p.sweepEnabled && p.sweepShift > 0 && !p.muted() {
		p.timer = p.target()
	}
	if p.sweepDivider == 0 || p.sweepReload {
		p.sweepDivider = p.sweepPeriod
		p.sweepReload = false
	} else {
		p.sweepDivider--
	}
}

func (p *pulse) clockLength() {
	if !p.env.loop && p.length > 0 {
		p.length--
	}
}

// advance runs the timer for the given CPU cycles.
func (p *pulse) advance(cycles float64) {
	period := float64(p.timer+1) * 2
	p.counter += cycles
	for p.counter >= period {
		p.counter -= period
		p.step = (p.step + 1) & 7
	}
}

func (p *pulse) output() uint8 {
	if p.length == 0 || p.muted() || dutyTable[p.duty][p.step] == 0 {
		return 0
	}
	return p.env.volume()
}

type triangle struct {
	enabled       bool
	control       bool
	linearReload  uint8
	linear        uint8
	reloadLinear  bool
	timer         uint16
	counter       float64
	step          uint8
	length        uint8
}

func (t *triangle) clockLinear() {
	if t.reloadLinear {
		t.linear = t.linearReload
	} else if t.linear > 0 {
		t.linear--
	}
	if !t.control {
		t.reloadLinear = false
	}
}

func (t *triangle) advance(cycles float64) {
	if t.length == 0 || t.linear == 0 || t.timer < 2 {
		// ultrasonic periods are silenced instead of aliasing
		return
	}
	period := float64(t.timer + 1)
	t.counter += cycles
	for t.counter >= period {
		t.counter -= period
		t.step = (t.step + 1) & 31
	}
}

func (t *triangle) output() uint8 {
	return triangleTable[t.step]
}

type noise struct {
	enabled bool
	mode    bool
	period  uint16
	counter float64
	shift   uint16
	length  uint8
	env     envelope
}

func (n *noise) advance(cycles float64) {
	period := float64(n.period)
	n.counter += cycles
	for n.counter >= period {
		n.counter -= period
		tap := uint16(1)
		if n.mode {
			tap = 6
		}
		bit := (n.shift ^ n.shift>>tap) & 1
		n.shift = n.shift>>1 | bit<<14
	}
}

func (n *noise) output() uint8 {
	if n.length == 0 || n.shift&1 != 0 {
		return 0
	}
	return n.env.volume()
}

type dmc struct {
	enabled    bool
	loop       bool
	rate       uint16
	counter    float64
	level      uint8
	sampleAddr uint16
	sampleLen  uint16

	addr      uint16
	remaining uint16
	buffer    uint8
	bits      uint8
	silent    bool
}

func (d *dmc) restart() {
	d.addr = d.sampleAddr
	d.remaining = d.sampleLen
}

func (d *dmc) advance(cycles float64, read MemoryReader) {
	period := float64(d.rate)
	d.counter += cycles
	for d.counter >= period {
		d.counter -= period
		if d.bits == 0 {
			if d.remaining == 0 || read == nil {
				d.silent = true
				d.bits = 8
			} else {
				d.buffer = read(d.addr)
				d.addr++
				if d.addr == 0 {
					d.addr = 0x8000
				}
				d.remaining--
				if d.remaining == 0 && d.loop {
					d.restart()
				}
				d.silent = false
				d.bits = 8
			}
		}
		if !d.silent {
			if d.buffer&1 != 0 {
				if d.level <= 125 {
					d.level += 2
				}
			} else if d.level >= 2 {
				d.level -= 2
			}
			d.buffer >>= 1
		}
		d.bits--
	}
}

// APU is one 2A03 sound unit. It is not safe for concurrent use.
type APU struct {
	cyclesPerSample float64
	read            MemoryReader

	pulse1, pulse2 pulse
	tri            triangle
	noise          noise
	dmc            dmc

	fiveStep     bool
	frameCounter float64
	frameIndex   int

	dcPrevIn, dcPrevOut float64
}

// New returns an APU clocked at cpuClock rendering at sampleRate. read is
// used by the DMC to fetch samples and may be nil.
func New(cpuClock float64, sampleRate int, read MemoryReader) *APU {
	a := &APU{
		cyclesPerSample: cpuClock / float64(sampleRate),
		read:            read,
	}
	a.Reset()
	return a
}

// Reset returns all channels to their power-up state.
func (a *APU) Reset() {
	a.pulse1 = pulse{negateOnes: true}
	a.pulse2 = pulse{}
	a.tri = triangle{step: 15} // rests at the zero point of the sequence
	a.noise = noise{shift: 1, period: noisePeriods[0]}
	a.dmc = dmc{rate: dmcRates[0], sampleLen: 1}
	a.fiveStep = false
	a.frameCounter = 0
	a.frameIndex = 0
	a.dcPrevIn, a.dcPrevOut = 0, 0
}

// Write handles a CPU write to $4000-$4017.
func (a *APU) Write(addr uint16, v uint8) {
	switch addr {
	case 0x4000, 0x4004:
		a.pulseFor(addr).writeControl(v)
	case 0x4001, 0x4005:
		p := a.pulseFor(addr)
		p.sweepEnabled = v&0x80 != 0
		p.sweepPeriod = (v >> 4) & 7
		p.sweepNegate = v&0x08 != 0
		p.sweepShift = v & 7
		p.sweepReload = true
	case 0x4002, 0x4006:
		p := a.pulseFor(addr)
		p.timer = p.timer&0x700 | uint16(v)
	case 0x4003, 0x4007:
		p := a.pulseFor(addr)
		p.timer = p.timer&0x0FF | uint16(v&7)<<8
		if p.enabled {
			p.length = lengthTable[v>>3]
		}
		p.step = 0
		p.env.start = true
	case 0x4008:
		a.tri.control = v&0x80 != 0
		a.tri.linearReload = v & 0x7F
	case 0x400A:
		a.tri.timer = a.tri.timer&0x700 | uint16(v)
	case 0x400B:
		a.tri.timer = a.tri.timer&0x0FF | uint16(v&7)<<8
		if a.tri.enabled {
			a.tri.length = lengthTable[v>>3]
		}
		a.tri.reloadLinear = true
	case 0x400C:
		a.noise.env.loop = v&0x20 != 0
		a.noise.env.constant = v&0x10 != 0
		a.noise.env.period = v & 0x0F
	case 0x400E:
		a.noise.mode = v&0x80 != 0
		a.noise.period = noisePeriods[v&0x0F]
	case 0x400F:
		if a.noise.enabled {
			a.noise.length = lengthTable[v>>3]
		}
		a.noise.env.start = true
	case 0x4010:
		a.dmc.loop = v&0x40 != 0
		a.dmc.rate = dmcRates[v&0x0F]
	case 0x4011:
		a.dmc.level = v & 0x7F
	case 0x4012:
		a.dmc.sampleAddr = 0xC000 | uint16(v)<<6
	case 0x4013:
		a.dmc.sampleLen = uint16(v)<<4 | 1
	case 0x4015:
		a.pulse1.enabled = v&0x01 != 0
		a.pulse2.enabled = v&0x02 != 0
		a.tri.enabled = v&0x04 != 0
		a.noise.enabled = v&0x08 != 0
		a.dmc.enabled = v&0x10 != 0
		if !a.pulse1.enabled {
			a.pulse1.length = 0
		}
		if !a.pulse2.enabled {
			a.pulse2.length = 0
		}
		if !a.tri.enabled {
			a.tri.length = 0
		}
		if !a.noise.enabled {
			a.noise.length = 0
		}
		if !a.dmc.enabled {
			a.dmc.remaining = 0
		} else if a.dmc.remaining == 0 {
			a.dmc.restart()
		}
	case 0x4017:
		a.fiveStep = v&0x80 != 0
		a.frameCounter = 0
		a.frameIndex = 0
		if a.fiveStep {
			a.quarterFrame()
			a.halfFrame()
		}
	}
}

// Read handles a CPU read of $4015.
func (a *APU) Read(addr uint16) uint8 {
	if addr != 0x4015 {
		return 0
	}
	var v uint8
	if a.pulse1.length > 0 {
		v |= 0x01
	}
	if a.pulse2.length > 0 {
		v |= 0x02
	}
	if a.tri.length > 0 {
		v |= 0x04
	}
	if a.noise.length > 0 {
		v |= 0x08
	}
	if a.dmc.remaining > 0 {
		v |= 0x10
	}
	return v
}

func (a *APU) pulseFor(addr uint16) *pulse {
	if addr < 0x4004 {
		return &a.pulse1
	}
	return &a.pulse2
}

func (p *pulse) writeControl(v uint8) {
	p.duty = v >> 6
	p.env.loop = v&0x20 != 0
	p.env.constant = v&0x10 != 0
	p.env.period = v & 0x0F
}

func (a *APU) quarterFrame() {
	a.pulse1.env.clock()
	a.pulse2.env.clock()
	a.noise.env.clock()
	a.tri.clockLinear()
}

func (a *APU) halfFrame() {
	a.pulse1.clockLength()
	a.pulse2.clockLength()
	a.pulse1.clockSweep()
	a.pulse2.clockSweep()
	if !a.tri.control && a.tri.length > 0 {
		a.tri.length--
	}
	if !a.noise.env.loop && a.noise.length > 0 {
		a.noise.length--
	}
}

func (a *APU) clockFrameSequencer(cycles float64) {
	a.frameCounter += cycles
	for a.frameCounter >= frameStep {
		a.frameCounter -= frameStep
		if a.fiveStep {
			// steps 0..4, step 3 does nothing
			switch a.frameIndex {
			case 0, 2:
				a.quarterFrame()
			case 1, 4:
				a.quarterFrame()
				a.halfFrame()
			}
			a.frameIndex = (a.frameIndex + 1) % 5
			continue
		}
		a.quarterFrame()
		if a.frameIndex == 1 || a.frameIndex == 3 {
			a.halfFrame()
		}
		a.frameIndex = (a.frameIndex + 1) % 4
	}
}

// Sample advances the APU by one output sample and returns the mixed output.
func (a *APU) Sample() int32 {
	cycles := a.cyclesPerSample
	a.clockFrameSequencer(cycles)
	a.pulse1.advance(cycles)
	a.pulse2.advance(cycles)
	a.tri.advance(cycles)
	a.noise.advance(cycles)
	if a.dmc.enabled || a.dmc.remaining > 0 {
		a.dmc.advance(cycles, a.read)
	}

	p := float64(a.pulse1.output()) + float64(a.pulse2.output())
	var pulseOut float64
	if p > 0 {
		pulseOut = 95.88 / (8128/p + 100)
	}

	t := float64(a.tri.output())
	n := float64(a.noise.output())
	d := float64(a.dmc.level)
	var tndOut float64
	if sum := t/8227 + n/12241 + d/22638; sum > 0 {
		tndOut = 159.79 / (1/sum + 100)
	}

	mix := (pulseOut + tndOut) * outputGain
	out := mix - a.dcPrevIn + 0.995*a.dcPrevOut
	a.dcPrevIn, a.dcPrevOut = mix, out
	return int32(out)
}
