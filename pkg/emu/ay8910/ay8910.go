// Package ay8910 emulates the General Instrument AY-3-8910 and Yamaha
// YM2149 programmable sound generators: three square-wave tone channels, a
// shared noise generator and the hardware envelope.
package ay8910

import "math"

// Common master clocks (Hz)
const (
	ClockAtariST    = 2000000
	ClockZXSpectrum = 1773400
	ClockCPC        = 1000000
	ClockMSX        = 1789773
)

// NumRegisters is the number of addressable registers
const NumRegisters = 16

const (
	RegMixer        = 7
	RegEnvelopeFine = 11
	RegEnvelopeHi   = 12
	RegEnvelopeMode = 13
)

var regMasks = [NumRegisters]uint8{
	0xFF, 0x0F, 0xFF, 0x0F, 0xFF, 0x0F, // tone periods
	0x1F,             // noise period
	0xFF,             // mixer
	0x1F, 0x1F, 0x1F, // amplitudes
	0xFF, 0xFF, // envelope period
	0x0F,       // envelope shape
	0xFF, 0xFF, // I/O ports
}

// levels is the 32-step YM2149 DAC curve, 1.5 dB per step. The AY's 16
// fixed levels map onto the odd entries.
var levels = func() [32]float64 {
	var t [32]float64
	for i := 1; i < 32; i++ {
		t[i] = math.Pow(10, -float64(31-i)*1.5/20)
	}
	return t
}()

// channelGain scales one channel at full volume into the int16 range
const channelGain = 8000

type tone struct {
	counter float64
	high    bool
}

// Chip is one PSG. It is not safe for concurrent use.
type Chip struct {
	clockHz    float64
	sampleRate int

	regs [NumRegisters]uint8

	toneTicks  float64 // tone half-period units per output sample
	noiseTicks float64
	envTicks   float64

	tones [3]tone

	noiseCounter float64
	noiseLFSR    uint32
	noiseHigh    bool

	envCounter float64
	envStep    int
	envAttack  bool
	envHolding bool

	panL, panR [3]float64

	dcL, dcR dcBlocker
}

// New returns a chip running at clockHz and rendering at sampleRate.
// All channels start centred.
func New(clockHz float64, sampleRate int) *Chip {
	c := &Chip{
		clockHz:    clockHz,
		sampleRate: sampleRate,
	}
	c.toneTicks = clockHz / 8 / float64(sampleRate)
	c.noiseTicks = clockHz / 16 / float64(sampleRate)
	c.envTicks = clockHz / 128 / float64(sampleRate)
	for i := 0; i < 3; i++ {
		c.panL[i], c.panR[i] = 1, 1
	}
	c.Reset()
	return c
}

// Reset clears registers and generator state.
func (c *Chip) Reset() {
	c.regs = [NumRegisters]uint8{}
	c.regs[RegMixer] = 0xFF
	c.tones = [3]tone{}
	c.noiseCounter = 0
	c.noiseLFSR = 1
	c.noiseHigh = false
	c.triggerEnvelope()
	c.dcL, c.dcR = dcBlocker{}, dcBlocker{}
}

// SetPanning sets the stereo gains of a channel (0=A, 1=B, 2=C).
func (c *Chip) SetPanning(ch int, left, right float64) {
	if ch < 0 || ch > 2 {
		return
	}
	c.panL[ch], c.panR[ch] = left, right
}

// Write stores a register. A write to the envelope shape register restarts
// the envelope.
func (c *Chip) Write(reg, value uint8) {
	if reg >= NumRegisters {
		return
	}
	c.regs[reg] = value & regMasks[reg]
	if reg == RegEnvelopeMode {
		c.triggerEnvelope()
	}
}

// Read returns a register as the chip would present it.
func (c *Chip) Read(reg uint8) uint8 {
	if reg >= NumRegisters {
		return 0xFF
	}
	return c.regs[reg]
}

func (c *Chip) tonePeriod(ch int) float64 {
	p := uint16(c.regs[ch*2]) | uint16(c.regs[ch*2+1])<<8
	if p == 0 {
		p = 1
	}
	return float64(p)
}

func (c *Chip) triggerEnvelope() {
	c.envCounter = 0
	c.envStep = 0
	c.envHolding = false
	c.envAttack = c.regs[RegEnvelopeMode]&0x04 != 0
}

func (c *Chip) envelopeLevel() int {
	shape := c.regs[RegEnvelopeMode]
	if c.envHolding {
		// shapes without CONT always settle at zero
		if shape&0x08 == 0 {
			return 0
		}
		if c.envAttack {
			return 31
		}
		return 0
	}
	if c.envAttack {
		return c.envStep
	}
	return 31 - c.envStep
}

func (c *Chip) clockEnvelope() {
	if c.envHolding {
		return
	}
	period := float64(uint16(c.regs[RegEnvelopeFine]) | uint16(c.regs[RegEnvelopeHi])<<8)
	if period == 0 {
		period = 1
	}

	c.envCounter += c.envTicks
	for c.envCounter >= period && !c.envHolding {
		c.envCounter -= period
		c.envStep++
		if c.envStep < 32 {
			continue
		}

		shape := c.regs[RegEnvelopeMode]
		cont := shape&0x08 != 0
		alt := shape&0x02 != 0
		hold := shape&0x01 != 0

		switch {
		case !cont:
			c.envHolding = true
		case hold:
			if alt {
				c.envAttack = !c.envAttack
			}
			c.envHolding = true
		default:
			if alt {
				c.envAttack = !c.envAttack
			}
			c.envStep = 0
		}
	}
}

func (c *Chip) clockNoise() {
	period := float64(c.regs[6])
	if period == 0 {
		period = 1
	}
	c.noiseCounter += c.noiseTicks
	for c.noiseCounter >= period {
		c.noiseCounter -= period
		bit := (c.noiseLFSR ^ c.noiseLFSR>>3) & 1
		c.noiseLFSR = c.noiseLFSR>>1 | bit<<16
		c.noiseHigh = c.noiseLFSR&1 != 0
	}
}

// Sample advances the chip by one output sample and returns the left and
// right mix.
func (c *Chip) Sample() (int32, int32) {
	for ch := range c.tones {
		t := &c.tones[ch]
		period := c.tonePeriod(ch)
		t.counter += c.toneTicks
		for t.counter >= period {
			t.counter -= period
			t.high = !t.high
		}
	}
	c.clockNoise()
	c.clockEnvelope()

	mixer := c.regs[RegMixer]
	env := c.envelopeLevel()

	var left, right float64
	for ch := 0; ch < 3; ch++ {
		toneOff := mixer&(1<<ch) != 0
		noiseOff := mixer&(8<<ch) != 0
		if !(c.tones[ch].high || toneOff) || !(c.noiseHigh || noiseOff) {
			continue
		}

		amp := c.regs[8+ch]
		var level float64
		if amp&0x10 != 0 {
			level = levels[env]
		} else if amp&0x0F != 0 {
			level = levels[int(amp&0x0F)*2+1]
		}
		left += level * c.panL[ch]
		right += level * c.panR[ch]
	}

	l := c.dcL.filter(left * channelGain)
	r := c.dcR.filter(right * channelGain)
	return int32(l), int32(r)
}

type dcBlocker struct {
	prevIn, prevOut float64
}

func (d *dcBlocker) filter(in float64) float64 {
	out := in - d.prevIn + 0.995*d.prevOut
	d.prevIn, d.prevOut = in, out
	return out
}
