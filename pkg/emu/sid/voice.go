package sid

// ADSR rate counter periods in system clock cycles
var ratePeriods = [16]float64{
	9, 32, 63, 95, 149, 220, 267, 313,
	392, 977, 1954, 3126, 3907, 11720, 19532, 31251,
}

type envState uint8

const (
	envAttack envState = iota
	envDecaySustain
	envRelease
)

type envelope struct {
	attack, decay, sustain, release uint8

	state   envState
	level   uint8
	counter float64
	expDiv  uint8 // exponential divider position
}

// expPeriod returns the decay slowdown for the current level, giving the
// characteristic bent SID release curve.
func (e *envelope) expPeriod() uint8 {
	switch {
	case e.level > 93:
		return 1
	case e.level > 54:
		return 2
	case e.level > 26:
		return 4
	case e.level > 14:
		return 8
	case e.level > 6:
		return 16
	default:
		return 30
	}
}

func (e *envelope) gate(on bool) {
	if on {
		e.state = envAttack
	} else {
		e.state = envRelease
	}
}

func (e *envelope) clock(cycles float64) {
	var rate uint8
	switch e.state {
	case envAttack:
		rate = e.attack
	case envDecaySustain:
		rate = e.decay
	default:
		rate = e.release
	}
	period := ratePeriods[rate]

	e.counter += cycles
	for e.counter >= period {
		e.counter -= period
		e.step()
	}
}

func (e *envelope) step() {
	switch e.state {
	case envAttack:
		e.expDiv = 0
		if e.level == 0xFF {
			e.state = envDecaySustain
			return
		}
		e.level++
		if e.level == 0xFF {
			e.state = envDecaySustain
		}
	case envDecaySustain:
		if e.level <= e.sustain*0x11 {
			return
		}
		if e.advanceExp() {
			e.level--
		}
	case envRelease:
		if e.level == 0 {
			return
		}
		if e.advanceExp() {
			e.level--
		}
	}
}

func (e *envelope) advanceExp() bool {
	e.expDiv++
	if e.expDiv >= e.expPeriod() {
		e.expDiv = 0
		return true
	}
	return false
}

type voice struct {
	freq uint32 // 16-bit
	pw   uint32 // 12-bit
	ctrl uint8

	acc   uint32 // 24-bit phase accumulator
	frac  float64
	noise uint32 // 23-bit LFSR

	env envelope
}

func (v *voice) setControl(value uint8) {
	prev := v.ctrl
	v.ctrl = value

	if value&ctrlGate != prev&ctrlGate {
		v.env.gate(value&ctrlGate != 0)
	}
	if value&ctrlTest != 0 {
		v.acc = 0
		v.noise = 0x7FFFF8
	}
}

// clockOscillator advances the accumulator and reports whether bit 23 went high.
func (v *voice) clockOscillator(cycles float64) bool {
	if v.ctrl&ctrlTest != 0 {
		return false
	}

	step := float64(v.freq)*cycles + v.frac
	whole := uint64(step)
	v.frac = step - float64(whole)

	old := uint64(v.acc)
	next := old + whole

	// the noise LFSR is clocked each time bit 19 rises
	const bit19 = 1 << 19
	rises := int((next+bit19)>>20) - int((old+bit19)>>20)
	for i := 0; i < rises && i < 64; i++ {
		bit := (v.noise>>22 ^ v.noise>>17) & 1
		v.noise = (v.noise<<1 | bit) & 0x7FFFFF
	}

	v.acc = uint32(next) & 0xFFFFFF
	return old&0x800000 == 0 && (next&0x800000 != 0 || next > 0xFFFFFF)
}

// waveform returns the 12-bit oscillator output. src is the voice that
// ring-modulates this one.
func (v *voice) waveform(src *voice) uint32 {
	sel := v.ctrl & 0xF0
	if sel == 0 {
		return 0
	}

	out := uint32(0xFFF)
	if sel&ctrlTriangle != 0 {
		msb := v.acc & 0x800000
		if v.ctrl&ctrlRing != 0 {
			msb ^= src.acc & 0x800000
		}
		tri := v.acc
		if msb != 0 {
			tri = ^tri
		}
		out &= tri >> 11 & 0xFFF
	}
	if sel&ctrlSawtooth != 0 {
		out &= v.acc >> 12
	}
	if sel&ctrlPulse != 0 {
		if v.ctrl&ctrlTest == 0 && v.acc>>12 < v.pw {
			out = 0
		}
	}
	if sel&ctrlNoise != 0 {
		n := v.noise
		bits := (n>>22&1)<<11 | (n>>20&1)<<10 | (n>>16&1)<<9 | (n>>13&1)<<8 |
			(n>>11&1)<<7 | (n>>7&1)<<6 | (n>>4&1)<<5 | (n>>2&1)<<4
		out &= bits
	}
	return out
}

// output returns the enveloped voice signal centred on zero.
func (v *voice) output(src *voice) float64 {
	if v.ctrl&0xF0 == 0 {
		return 0
	}
	wave := float64(v.waveform(src)) - 2048
	return wave * float64(v.env.level) / 255
}
