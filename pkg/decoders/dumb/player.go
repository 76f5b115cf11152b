package dumb

import "math"

const (
	// PAL Paula clock divided by two: the rate periods count in
	paulaClock = 3546894.6

	defaultSpeed = 6
	defaultTempo = 125

	minPeriod = 113
	maxPeriod = 856

	// left and right pan positions of the Amiga's LRRL channel layout
	panLeft  = 0
	panRight = 255
)

// periods are the ProTracker note periods for finetune 0, C-1 to B-3
var periods = [36]int{
	856, 808, 762, 720, 678, 640, 604, 570, 538, 508, 480, 453,
	428, 404, 381, 360, 339, 320, 302, 285, 269, 254, 240, 226,
	214, 202, 190, 180, 170, 160, 151, 143, 135, 127, 120, 113,
}

var sine = [32]int{
	0, 24, 49, 74, 97, 120, 141, 161, 180, 197, 212, 224, 235, 244, 250, 253,
	255, 253, 250, 244, 235, 224, 212, 197, 180, 161, 141, 120, 97, 74, 49, 24,
}

// tunedPeriod snaps a stored period to the nearest note and applies a
// finetune in eighths of a semitone.
func tunedPeriod(period int, finetune int8) int {
	best := 0
	for i, p := range periods {
		if abs(p-period) < abs(periods[best]-period) {
			best = i
		}
	}
	if finetune == 0 {
		return periods[best]
	}
	return int(math.Round(float64(periods[best]) * math.Pow(2, -float64(finetune)/96)))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// oscillator is a vibrato or tremolo LFO.
type oscillator struct {
	speed, depth int
	pos          int // 0..63
	wave         uint8
}

func (o *oscillator) value() int {
	var v int
	switch o.wave & 3 {
	case 0:
		v = sine[o.pos&31]
	case 1:
		v = (o.pos & 31) * 8
		if o.pos >= 32 {
			v = 255 - v
		}
	default:
		v = 255
	}
	if o.pos >= 32 {
		v = -v
	}
	return v * o.depth
}

func (o *oscillator) advance() {
	o.pos = (o.pos + o.speed) & 63
}

func (o *oscillator) retrigger() {
	if o.wave&4 == 0 {
		o.pos = 0
	}
}

type voice struct {
	smp      *sample
	pos      float64
	step     float64
	active   bool
	finetune int8

	period     int
	target     int // tone portamento destination
	portaSpeed int
	volume     int
	pan        int

	outPeriod int
	outVolume int

	vibrato oscillator
	tremolo oscillator

	effect uint8
	param  uint8
	offset int
	delay  cell

	loopRow   int
	loopCount int
}

// player sequences a module and mixes its voices.
type player struct {
	mod  *module
	rate int
	gain float64

	speed, tempo int
	tick         int
	order, row   int
	tickLeft     int
	ended        bool

	jump         bool
	breakOrder   int
	breakRow     int
	patternDelay int
	delaying     bool

	visited [numOrders][rowsPerPat]bool
	voices  []voice
}

func newPlayer(m *module, rate int) *player {
	p := &player{
		mod:    m,
		rate:   rate,
		gain:   8 / float64(m.channels),
		voices: make([]voice, m.channels),
	}
	p.reset()
	return p
}

func (p *player) reset() {
	p.speed, p.tempo = defaultSpeed, defaultTempo
	p.tick, p.order, p.row = 0, 0, 0
	p.tickLeft = 0
	p.ended = false
	p.jump = false
	p.patternDelay = 0
	p.delaying = false
	p.visited = [numOrders][rowsPerPat]bool{}
	for i := range p.voices {
		v := voice{pan: panLeft}
		if i%4 == 1 || i%4 == 2 {
			v.pan = panRight
		}
		p.voices[i] = v
	}
}

func (p *player) tickFrames() int {
	return p.rate * 5 / (2 * p.tempo)
}

// looping reports whether a pattern loop is replaying rows.
func (p *player) looping() bool {
	for i := range p.voices {
		if p.voices[i].loopCount > 0 {
			return true
		}
	}
	return false
}

// advance runs one sequencer tick.
func (p *player) advance() {
	if p.tick == 0 && !p.delaying {
		p.playRow()
		if p.ended {
			return
		}
	} else {
		for i := range p.voices {
			p.tickEffects(&p.voices[i])
		}
	}
	for i := range p.voices {
		p.update(&p.voices[i])
	}
	p.tickLeft = p.tickFrames()

	p.tick++
	if p.tick >= p.speed {
		p.tick = 0
		if p.patternDelay > 0 {
			p.patternDelay--
			p.delaying = true
			return
		}
		p.delaying = false
		p.nextRow()
	}
}

func (p *player) nextRow() {
	if p.jump {
		p.order, p.row = p.breakOrder, p.breakRow
		p.jump = false
	} else {
		p.row++
		if p.row >= rowsPerPat {
			p.row = 0
			p.order++
		}
	}
	if p.order >= len(p.mod.orders) {
		p.order = p.mod.restart
	}
}

func (p *player) playRow() {
	if p.visited[p.order][p.row] && !p.looping() {
		p.ended = true
		return
	}
	p.visited[p.order][p.row] = true

	pattern := int(p.mod.orders[p.order])
	for i := range p.voices {
		v := &p.voices[i]
		c := p.mod.cell(pattern, p.row, i)
		v.effect, v.param = c.effect, c.param
		v.outPeriod, v.outVolume = v.period, v.volume

		if c.effect == 0x0E && c.param>>4 == 0x0D && c.param&0x0F != 0 {
			v.delay = c
		} else {
			p.trigger(v, c)
		}
		p.rowEffects(v, c)
	}
}

// trigger handles the instrument and note columns of a cell.
func (p *player) trigger(v *voice, c cell) {
	if c.sample > 0 && int(c.sample) <= numSamples {
		s := &p.mod.samples[c.sample-1]
		v.volume = s.volume
		v.outVolume = v.volume
		v.finetune = s.finetune
	}
	if c.period == 0 {
		return
	}
	if c.effect == 0x0E && c.param>>4 == 0x05 {
		v.finetune = int8(c.param<<4) >> 4
	}
	period := tunedPeriod(c.period, v.finetune)
	if c.effect == 0x03 || c.effect == 0x05 {
		v.target = period
		return
	}

	if c.sample > 0 && int(c.sample) <= numSamples {
		v.smp = &p.mod.samples[c.sample-1]
	}
	v.period = period
	v.outPeriod = period
	v.pos = 0
	if c.effect == 0x09 {
		if c.param != 0 {
			v.offset = int(c.param) << 8
		}
		v.pos = float64(v.offset)
	}
	v.active = v.smp != nil && int(v.pos) < len(v.smp.data)
	v.vibrato.retrigger()
	v.tremolo.retrigger()
}

// rowEffects applies the tick 0 part of an effect.
func (p *player) rowEffects(v *voice, c cell) {
	x, y := int(c.param>>4), int(c.param&0x0F)
	switch c.effect {
	case 0x03:
		if c.param != 0 {
			v.portaSpeed = int(c.param)
		}
	case 0x04:
		setOscillator(&v.vibrato, x, y)
	case 0x07:
		setOscillator(&v.tremolo, x, y)
	case 0x08:
		v.pan = int(c.param)
	case 0x0B:
		p.jump = true
		p.breakOrder = int(c.param)
		if p.breakOrder >= len(p.mod.orders) {
			p.breakOrder = 0
		}
		if !p.rowHasBreak() {
			p.breakRow = 0
		}
	case 0x0C:
		v.volume = min(int(c.param), 64)
		v.outVolume = v.volume
	case 0x0D:
		if !p.rowHasJump() {
			p.breakOrder = p.order + 1
		}
		p.jump = true
		p.breakRow = min(x*10+y, rowsPerPat-1)
	case 0x0E:
		p.extended(v, x, y)
	case 0x0F:
		switch {
		case c.param == 0:
			p.ended = true
		case c.param < 0x20:
			p.speed = int(c.param)
		default:
			p.tempo = int(c.param)
		}
	}
}

func (p *player) rowHasEffect(effect uint8) bool {
	pattern := int(p.mod.orders[p.order])
	for i := range p.voices {
		if p.mod.cell(pattern, p.row, i).effect == effect {
			return true
		}
	}
	return false
}

func (p *player) rowHasBreak() bool { return p.rowHasEffect(0x0D) }
func (p *player) rowHasJump() bool  { return p.rowHasEffect(0x0B) }

func setOscillator(o *oscillator, speed, depth int) {
	if speed != 0 {
		o.speed = speed
	}
	if depth != 0 {
		o.depth = depth
	}
}

func (p *player) extended(v *voice, x, y int) {
	switch x {
	case 0x1:
		v.period = max(v.period-y, minPeriod)
		v.outPeriod = v.period
	case 0x2:
		v.period = min(v.period+y, maxPeriod)
		v.outPeriod = v.period
	case 0x4:
		v.vibrato.wave = uint8(y)
	case 0x6:
		switch {
		case y == 0:
			v.loopRow = p.row
		case v.loopCount == 0:
			v.loopCount = y
			p.loopBack(v)
		default:
			v.loopCount--
			if v.loopCount > 0 {
				p.loopBack(v)
			}
		}
	case 0x7:
		v.tremolo.wave = uint8(y)
	case 0x8:
		v.pan = y * 17
	case 0xA:
		v.volume = min(v.volume+y, 64)
		v.outVolume = v.volume
	case 0xB:
		v.volume = max(v.volume-y, 0)
		v.outVolume = v.volume
	case 0xC:
		if y == 0 {
			v.volume = 0
			v.outVolume = 0
		}
	case 0xE:
		if !p.delaying {
			p.patternDelay = y
		}
	}
}

func (p *player) loopBack(v *voice) {
	p.jump = true
	p.breakOrder = p.order
	p.breakRow = v.loopRow
}

// tickEffects applies the effects that run on ticks after the first.
func (p *player) tickEffects(v *voice) {
	v.outPeriod, v.outVolume = v.period, v.volume
	x, y := int(v.param>>4), int(v.param&0x0F)

	switch v.effect {
	case 0x00:
		if v.param != 0 {
			semis := [3]int{0, x, y}[p.tick%3]
			v.outPeriod = int(float64(v.period) * math.Pow(2, -float64(semis)/12))
		}
	case 0x01:
		v.period = max(v.period-int(v.param), minPeriod)
		v.outPeriod = v.period
	case 0x02:
		v.period = min(v.period+int(v.param), maxPeriod)
		v.outPeriod = v.period
	case 0x03:
		p.tonePorta(v)
	case 0x04:
		p.vibrato(v)
	case 0x05:
		p.tonePorta(v)
		volumeSlide(v, x, y)
	case 0x06:
		p.vibrato(v)
		volumeSlide(v, x, y)
	case 0x07:
		v.outVolume = max(min(v.volume+v.tremolo.value()/64, 64), 0)
		v.tremolo.advance()
	case 0x0A:
		volumeSlide(v, x, y)
	case 0x0E:
		switch x {
		case 0x9:
			if y > 0 && p.tick%y == 0 && v.smp != nil {
				v.pos = 0
				v.active = len(v.smp.data) > 0
			}
		case 0xC:
			if p.tick == y {
				v.volume = 0
				v.outVolume = 0
			}
		case 0xD:
			if p.tick == y {
				p.trigger(v, v.delay)
			}
		}
	}
}

func (p *player) tonePorta(v *voice) {
	if v.target == 0 {
		return
	}
	if v.period < v.target {
		v.period = min(v.period+v.portaSpeed, v.target)
	} else if v.period > v.target {
		v.period = max(v.period-v.portaSpeed, v.target)
	}
	v.outPeriod = v.period
}

func (p *player) vibrato(v *voice) {
	v.outPeriod = v.period + v.vibrato.value()/128
	v.vibrato.advance()
}

func volumeSlide(v *voice, up, down int) {
	if up > 0 {
		v.volume = min(v.volume+up, 64)
	} else {
		v.volume = max(v.volume-down, 0)
	}
	v.outVolume = v.volume
}

// update recomputes the resampling step after the period changed.
func (p *player) update(v *voice) {
	if v.outPeriod <= 0 {
		v.step = 0
		return
	}
	v.step = paulaClock / float64(v.outPeriod) / float64(p.rate)
}

// render mixes stereo frames into out until the song ends and returns the
// number of frames written.
func (p *player) render(out []int16) int {
	frames := len(out) / 2
	for f := range frames {
		if p.tickLeft == 0 {
			p.advance()
			if p.ended {
				return f
			}
		}
		p.tickLeft--

		var l, r float64
		for i := range p.voices {
			v := &p.voices[i]
			if !v.active || v.outVolume == 0 {
				if v.active {
					v.move()
				}
				continue
			}
			s := v.sample() * float64(v.outVolume)
			l += s * float64(255-v.pan) / 255
			r += s * float64(v.pan) / 255
			v.move()
		}
		out[2*f] = clamp(l * p.gain)
		out[2*f+1] = clamp(r * p.gain)
	}
	return frames
}

// skip advances the sequencer by one tick without mixing and returns the
// frames it covers, or 0 at the end of the song.
func (p *player) skip() int {
	p.advance()
	if p.ended {
		return 0
	}
	n := p.tickLeft
	p.tickLeft = 0
	return n
}

func (v *voice) sample() float64 {
	data := v.smp.data
	i := int(v.pos)
	frac := v.pos - float64(i)
	a := float64(data[i])
	next := i + 1
	if v.smp.loopLength > 0 && next >= v.smp.loopStart+v.smp.loopLength {
		next = v.smp.loopStart
	}
	if next >= len(data) {
		return a
	}
	return a + (float64(data[next])-a)*frac
}

func (v *voice) move() {
	v.pos += v.step
	s := v.smp
	if s.loopLength > 0 {
		end := float64(s.loopStart + s.loopLength)
		for v.pos >= end {
			v.pos -= float64(s.loopLength)
		}
		return
	}
	if v.pos >= float64(len(s.data)) {
		v.active = false
	}
}

func clamp(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
