package gme

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/mholt/archives"

	"github.com/drgolem/chipplay/pkg/types"
)

// defaultLength is the play length of tracks with no length information
const defaultLength = 150 * time.Second

// trackInfo is what a container knows about one track.
type trackInfo struct {
	length    time.Duration
	system    string
	game      string
	song      string
	author    string
	copyright string
	comment   string
	dumper    string
}

// musicEmu is one emulated sound system playing one container type.
type musicEmu interface {
	trackCount() int
	// defaultTrack is 0-based
	defaultTrack() int
	// startTrack resets the system and runs the track's init code
	startTrack(n int) error
	// play renders len(out)/2 stereo frames
	play(out []int16) error
	trackInfo(n int) trackInfo
}

var (
	magicNSF  = []byte("NESM\x1a")
	magicVGM  = []byte("Vgm ")
	magicGzip = []byte{0x1F, 0x8B}
)

// maxVGMSize bounds a decompressed VGZ stream
const maxVGMSize = 64 << 20

// identify picks the emulator from the container header.
func identify(data []byte) (musicEmu, error) {
	switch {
	case bytes.HasPrefix(data, magicNSF):
		return newNSF(data)
	case bytes.HasPrefix(data, magicVGM):
		return newVGM(data)
	case bytes.HasPrefix(data, magicGzip):
		raw, err := gunzip(data)
		if err != nil {
			return nil, fmt.Errorf("%w: vgz: %w", types.ErrMalformedContainer, err)
		}
		if !bytes.HasPrefix(raw, magicVGM) {
			return nil, fmt.Errorf("%w: vgz does not contain a vgm stream", types.ErrMalformedContainer)
		}
		return newVGM(raw)
	}
	return nil, fmt.Errorf("%w: unknown file signature", types.ErrMalformedContainer)
}

func gunzip(data []byte) ([]byte, error) {
	rc, err := archives.Gz{}.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, maxVGMSize+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxVGMSize {
		return nil, fmt.Errorf("decompressed size exceeds %d bytes", maxVGMSize)
	}
	return raw, nil
}
