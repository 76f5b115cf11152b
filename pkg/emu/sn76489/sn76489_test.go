package sn76489

import "testing"

func TestLatchDataDecode(t *testing.T) {
	c := New(ClockNTSC, 44100)

	c.Write(0x80 | 0x0E) // latch ch0 tone, low nibble
	c.Write(0x0F)        // data, high six bits
	if got := c.Period(0); got != 0xFE {
		t.Errorf("period = $%03X, want $0FE", got)
	}

	c.Write(0x90 | 0x05) // ch0 attenuation
	if got := c.Attenuation(0); got != 5 {
		t.Errorf("attenuation = %d, want 5", got)
	}

	c.Write(0xC0 | 0x01) // latch ch2 tone
	c.Write(0x3F)
	if got := c.Period(2); got != 0x3F1 {
		t.Errorf("ch2 period = $%03X, want $3F1", got)
	}

	c.Write(0xE0 | 0x04) // white noise, rate 0
	if got := c.Period(3); got != 0x04 {
		t.Errorf("noise control = %d, want 4", got)
	}
	c.Write(0x03) // data byte after noise latch updates the noise register
	if got := c.Period(3); got != 0x03 {
		t.Errorf("noise control = %d, want 3", got)
	}
}

func TestResetSilences(t *testing.T) {
	c := New(ClockNTSC, 44100)
	for i := 0; i < 1000; i++ {
		if l, r := c.Sample(); l != 0 || r != 0 {
			t.Fatalf("sample %d = (%d,%d), want silence", i, l, r)
		}
	}
}

func TestToneFrequency(t *testing.T) {
	c := New(ClockNTSC, 44100)
	c.Write(0x80 | (254 & 0x0F))
	c.Write(254 >> 4)
	c.Write(0x90)

	toggles := 0
	prev := c.high[0]
	for i := 0; i < 44100; i++ {
		c.Sample()
		if c.high[0] != prev {
			toggles++
			prev = c.high[0]
		}
	}
	// 3579545 / (32 * 254) = 440.4 Hz
	if toggles < 879 || toggles > 883 {
		t.Errorf("toggles = %d, want ~881", toggles)
	}
}

func TestGameGearStereo(t *testing.T) {
	c := New(ClockNTSC, 44100)
	c.Write(0x80 | 0x00)
	c.Write(0x10)
	c.Write(0x90) // ch0 full volume
	c.WriteStereo(0x01)

	var sawRight bool
	for i := 0; i < 4410; i++ {
		l, r := c.Sample()
		if l != 0 {
			t.Fatalf("left should be muted, got %d", l)
		}
		if r != 0 {
			sawRight = true
		}
	}
	if !sawRight {
		t.Error("right channel produced no output")
	}
}

func TestWhiteNoiseVaries(t *testing.T) {
	c := New(ClockNTSC, 44100)
	c.Write(0xE4)
	c.Write(0xF0)

	var pos, neg int
	for i := 0; i < 4410; i++ {
		l, _ := c.Sample()
		if l > 0 {
			pos++
		} else if l < 0 {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		t.Errorf("noise output stuck: pos=%d neg=%d", pos, neg)
	}
}
