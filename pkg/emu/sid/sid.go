// Package sid emulates the MOS 6581/8580 Sound Interface Device at sample
// granularity: three voices with combined waveforms, ring modulation, hard
// sync, the ADSR rate counter and a state-variable filter.
package sid

import "math"

// Model selects the chip revision.
type Model int

const (
	Model6581 Model = iota // original SID, non-linear filter
	Model8580              // revised SID, linear filter
)

func (m Model) String() string {
	if m == Model8580 {
		return "8580"
	}
	return "6581"
}

// Clock frequencies of the C64 system clock (Hz)
const (
	ClockPAL  = 985248
	ClockNTSC = 1022727
)

// Register offsets
const (
	RegFilterLo   = 0x15
	RegFilterHi   = 0x16
	RegResFilt    = 0x17
	RegModeVolume = 0x18
	RegPotX       = 0x19
	RegPotY       = 0x1A
	RegOsc3       = 0x1B
	RegEnv3       = 0x1C

	// NumRegisters is the size of the register window
	NumRegisters = 0x20
)

// Voice control bits
const (
	ctrlGate     = 0x01
	ctrlSync     = 0x02
	ctrlRing     = 0x04
	ctrlTest     = 0x08
	ctrlTriangle = 0x10
	ctrlSawtooth = 0x20
	ctrlPulse    = 0x40
	ctrlNoise    = 0x80
)

// Mode/volume bits
const (
	modeLP   = 0x10
	modeBP   = 0x20
	modeHP   = 0x40
	mode3Off = 0x80
)

// outputGain scales the summed 12-bit voices into the int16 range
const outputGain = 4

var resonance6581 = [16]float64{
	0.50, 0.55, 0.62, 0.72, 0.85, 1.00, 1.20, 1.50,
	1.90, 2.40, 3.00, 3.80, 4.80, 6.00, 8.00, 12.0,
}

var resonance8580 = [16]float64{
	0.50, 0.60, 0.70, 0.82, 0.95, 1.10, 1.30, 1.50,
	1.75, 2.00, 2.30, 2.65, 3.00, 3.50, 4.20, 5.00,
}

// Chip is one SID. It is not safe for concurrent use.
type Chip struct {
	model           Model
	clockHz         float64
	sampleRate      int
	cyclesPerSample float64

	regs   [NumRegisters]uint8
	voices [3]voice

	// filter state
	low, band float64
	filterF   float64
	filterQ   float64

	// one-pole DC blocker on the final mix
	dcPrevIn, dcPrevOut float64
}

// New returns a chip clocked at clockHz rendering at sampleRate.
func New(clockHz float64, sampleRate int) *Chip {
	c := &Chip{
		clockHz:    clockHz,
		sampleRate: sampleRate,
	}
	c.cyclesPerSample = clockHz / float64(sampleRate)
	c.Reset()
	return c
}

// SetModel switches the chip revision.
func (c *Chip) SetModel(m Model) {
	c.model = m
	c.updateFilter()
}

// Model returns the chip revision.
func (c *Chip) Model() Model {
	return c.model
}

// Reset clears all registers and voice state.
func (c *Chip) Reset() {
	c.regs = [NumRegisters]uint8{}
	for i := range c.voices {
		c.voices[i] = voice{noise: 0x7FFFF8}
	}
	c.low, c.band = 0, 0
	c.dcPrevIn, c.dcPrevOut = 0, 0
	c.updateFilter()
}

// Write stores a value into a register.
func (c *Chip) Write(reg, value uint8) {
	reg &= NumRegisters - 1
	c.regs[reg] = value

	if reg < 0x15 {
		v := &c.voices[reg/7]
		switch reg % 7 {
		case 0:
			v.freq = v.freq&0xFF00 | uint32(value)
		case 1:
			v.freq = v.freq&0x00FF | uint32(value)<<8
		case 2:
			v.pw = v.pw&0x0F00 | uint32(value)
		case 3:
			v.pw = v.pw&0x00FF | uint32(value&0x0F)<<8
		case 4:
			v.setControl(value)
		case 5:
			v.env.attack = value >> 4
			v.env.decay = value & 0x0F
		case 6:
			v.env.sustain = value >> 4
			v.env.release = value & 0x0F
		}
		return
	}

	switch reg {
	case RegFilterLo, RegFilterHi, RegResFilt:
		c.updateFilter()
	}
}

// Read returns a register value. Only the read-only registers reflect chip
// state; write-only registers read back as zero.
func (c *Chip) Read(reg uint8) uint8 {
	switch reg & (NumRegisters - 1) {
	case RegPotX, RegPotY:
		return 0xFF
	case RegOsc3:
		return uint8(c.voices[2].waveform(&c.voices[1]) >> 4)
	case RegEnv3:
		return c.voices[2].env.level
	}
	return 0
}

// Register returns the last value written to reg.
func (c *Chip) Register(reg uint8) uint8 {
	return c.regs[reg&(NumRegisters-1)]
}

func (c *Chip) updateFilter() {
	cutoff := float64(uint16(c.regs[RegFilterLo]&0x07) | uint16(c.regs[RegFilterHi])<<3)

	var hz, maxHz float64
	var q float64
	res := c.regs[RegResFilt] >> 4
	if c.model == Model8580 {
		hz = 30 + cutoff*5.8
		maxHz = 18000
		q = resonance8580[res]
	} else {
		hz = 30 + math.Pow(cutoff, 1.35)*0.22
		maxHz = 12000
		q = resonance6581[res]
	}
	if hz > maxHz {
		hz = maxHz
	}
	if nyquist := float64(c.sampleRate) / 2; hz > nyquist*0.9 {
		hz = nyquist * 0.9
	}

	f := 2 * math.Sin(math.Pi*hz/float64(c.sampleRate))
	if f > 0.95 {
		f = 0.95
	}
	c.filterF = f
	c.filterQ = 1 / q
}

// Sample advances the chip by one output sample period and returns the
// mixed output, roughly within the int16 range.
func (c *Chip) Sample() int32 {
	delta := c.cyclesPerSample

	// oscillators first so sync and ring modulation see the same phase
	var msbRise [3]bool
	for i := range c.voices {
		msbRise[i] = c.voices[i].clockOscillator(delta)
	}
	for i := range c.voices {
		v := &c.voices[i]
		src := (i + 2) % 3
		if v.ctrl&ctrlSync != 0 && msbRise[src] {
			v.acc = 0
		}
		v.env.clock(delta)
	}

	routing := c.regs[RegResFilt] & 0x07
	mode := c.regs[RegModeVolume]

	var direct, filtered float64
	for i := range c.voices {
		v := &c.voices[i]
		out := v.output(&c.voices[(i+2)%3])
		if routing&(1<<i) != 0 {
			filtered += out
			continue
		}
		if i == 2 && mode&mode3Off != 0 {
			continue
		}
		direct += out
	}

	if mode&(modeLP|modeBP|modeHP) != 0 || routing != 0 {
		high := filtered - c.low - c.filterQ*c.band
		c.band += c.filterF * high
		c.low += c.filterF * c.band

		filtered = 0
		if mode&modeLP != 0 {
			filtered += c.low
		}
		if mode&modeBP != 0 {
			filtered += c.band
		}
		if mode&modeHP != 0 {
			filtered += high
		}
	}

	volume := float64(mode & 0x0F)
	mix := (direct + filtered) * volume / 15

	// the 6581 leaks the volume register into the output, which is what
	// makes $D418 sample playback audible
	if c.model == Model6581 {
		mix += volume * 48
	}

	// DC blocker, R = 0.995
	out := mix - c.dcPrevIn + 0.995*c.dcPrevOut
	c.dcPrevIn, c.dcPrevOut = mix, out

	return int32(out * outputGain)
}
