// Package sn76489 emulates the Texas Instruments SN76489 PSG as found in the
// Sega Master System, Game Gear and Mega Drive: three square-wave tone
// channels and one noise channel, with the Game Gear stereo extension.
package sn76489

import "math/bits"

// Defaults for the Sega variant of the noise shift register
const (
	DefaultFeedback = 0x0009
	DefaultWidth    = 16
)

// ClockNTSC is the usual master clock (Hz)
const ClockNTSC = 3579545

const channelGain = 6000

var volumes = func() [16]float64 {
	var t [16]float64
	v := 1.0
	for i := 0; i < 15; i++ {
		t[i] = v
		v *= 0.794328 // -2 dB
	}
	return t
}()

// Chip is one PSG. It is not safe for concurrent use.
type Chip struct {
	ticks float64 // counter units per output sample

	periods [4]uint16 // tone 0-2, noise control in [3]
	atten   [4]uint8
	latched uint8

	counters [4]float64
	high     [4]bool

	lfsr     uint16
	feedback uint16
	width    uint8

	stereo uint8 // Game Gear: bits 7-4 left ch3-0, bits 3-0 right ch3-0
}

// New returns a chip running at clockHz and rendering at sampleRate.
func New(clockHz float64, sampleRate int) *Chip {
	c := &Chip{
		ticks:    clockHz / 16 / float64(sampleRate),
		feedback: DefaultFeedback,
		width:    DefaultWidth,
	}
	c.Reset()
	return c
}

// SetNoise configures the shift register taps and width (from the VGM header).
func (c *Chip) SetNoise(feedback uint16, width uint8) {
	if feedback != 0 {
		c.feedback = feedback
	}
	if width > 0 && width <= 16 {
		c.width = width
	}
	c.resetLFSR()
}

// Reset silences all channels.
func (c *Chip) Reset() {
	c.periods = [4]uint16{}
	c.atten = [4]uint8{0x0F, 0x0F, 0x0F, 0x0F}
	c.latched = 0
	c.counters = [4]float64{}
	c.high = [4]bool{}
	c.stereo = 0xFF
	c.resetLFSR()
}

func (c *Chip) resetLFSR() {
	c.lfsr = 1 << (c.width - 1)
}

// Write sends one byte to the chip data port.
func (c *Chip) Write(value uint8) {
	if value&0x80 != 0 {
		c.latched = (value >> 4) & 0x07
		c.writeLatched(uint16(value&0x0F), true)
		return
	}
	c.writeLatched(uint16(value&0x3F), false)
}

func (c *Chip) writeLatched(data uint16, low bool) {
	ch := c.latched >> 1
	if c.latched&1 != 0 {
		c.atten[ch] = uint8(data & 0x0F)
		return
	}
	if ch == 3 {
		c.periods[3] = data & 0x07
		c.resetLFSR()
		return
	}
	if low {
		c.periods[ch] = c.periods[ch]&0x3F0 | data
	} else {
		c.periods[ch] = c.periods[ch]&0x00F | (data&0x3F)<<4
	}
}

// WriteStereo sets the Game Gear stereo mask.
func (c *Chip) WriteStereo(mask uint8) {
	c.stereo = mask
}

// Period returns the 10-bit tone period of channel ch.
func (c *Chip) Period(ch int) uint16 {
	return c.periods[ch&3]
}

// Attenuation returns the 4-bit attenuation of channel ch (15 = off).
func (c *Chip) Attenuation(ch int) uint8 {
	return c.atten[ch&3]
}

func (c *Chip) noisePeriod() float64 {
	switch c.periods[3] & 0x03 {
	case 0:
		return 0x10
	case 1:
		return 0x20
	case 2:
		return 0x40
	default:
		return float64(max(c.periods[2], 1))
	}
}

func (c *Chip) shiftNoise() {
	var in uint16
	if c.periods[3]&0x04 != 0 {
		in = uint16(bits.OnesCount16(c.lfsr&c.feedback) & 1)
	} else {
		in = c.lfsr & 1
	}
	c.lfsr = c.lfsr>>1 | in<<(c.width-1)
}

// Sample advances the chip by one output sample and returns the left and
// right mix.
func (c *Chip) Sample() (int32, int32) {
	for ch := 0; ch < 3; ch++ {
		period := float64(max(c.periods[ch], 1))
		c.counters[ch] += c.ticks
		for c.counters[ch] >= period {
			c.counters[ch] -= period
			c.high[ch] = !c.high[ch]
		}
	}

	period := c.noisePeriod()
	c.counters[3] += c.ticks
	for c.counters[3] >= period {
		c.counters[3] -= period
		c.high[3] = !c.high[3]
		if c.high[3] {
			c.shiftNoise()
		}
	}

	var left, right float64
	for ch := 0; ch < 4; ch++ {
		v := volumes[c.atten[ch]]
		if v == 0 {
			continue
		}
		var out float64
		if ch < 3 {
			// period 0 and 1 hold the output high, used for PCM playback
			if c.high[ch] || c.periods[ch] <= 1 {
				out = v
			} else {
				out = -v
			}
		} else if c.lfsr&1 != 0 {
			out = v
		} else {
			out = -v
		}

		if c.stereo&(0x10<<ch) != 0 {
			left += out
		}
		if c.stereo&(0x01<<ch) != 0 {
			right += out
		}
	}
	return int32(left * channelGain), int32(right * channelGain)
}
