package config

import (
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if !s.SkipUnsupported || s.SkipSubtunes || s.AlwaysStartFirstTrack {
		t.Errorf("unexpected default flags: %+v", s)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Settings)
		wantErr bool
	}{
		{"oto", func(s *Settings) { s.Backend = "oto" }, false},
		{"unknown backend", func(s *Settings) { s.Backend = "alsa" }, true},
		{"zero frames", func(s *Settings) { s.FramesPerBuffer = 0 }, true},
		{"zero rate", func(s *Settings) { s.DeviceRate = 0 }, true},
		{"negative length", func(s *Settings) { s.SIDSongLength = -time.Second }, true},
		{"song length", func(s *Settings) { s.SIDSongLength = 3 * time.Minute }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.modify(&s)
			if err := s.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConversions(t *testing.T) {
	s := Default()
	s.Backend = "oto"
	s.DeviceRate = 44100
	s.DataPath = "/roms"
	s.SIDSongLength = time.Minute

	out := s.Output()
	if out.Backend != "oto" || out.DeviceRate != 44100 || out.FramesPerBuffer != s.FramesPerBuffer {
		t.Errorf("Output() = %+v", out)
	}
	opts := s.Decoders()
	if opts.DataPath != "/roms" || opts.SIDSongLength != time.Minute {
		t.Errorf("Decoders() = %+v", opts)
	}
}
