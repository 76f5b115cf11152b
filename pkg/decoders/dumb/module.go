package dumb

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/drgolem/chipplay/pkg/types"
)

const (
	numSamples  = 31
	numOrders   = 128
	rowsPerPat  = 64
	headerSize  = 1084
	tagOffset   = 1080
	cellBytes   = 4
	maxChannels = 32
)

type sample struct {
	name       string
	data       []int8
	finetune   int8
	volume     int
	loopStart  int
	loopLength int // 0 when the sample does not loop
}

type cell struct {
	sample uint8
	period int
	effect uint8
	param  uint8
}

// module is a parsed 31-sample ProTracker module.
type module struct {
	title    string
	tag      string
	channels int
	samples  [numSamples]sample
	orders   []uint8
	restart  int
	patterns [][]cell // rowsPerPat*channels cells each
}

func (m *module) cell(pattern, row, ch int) cell {
	return m.patterns[pattern][row*m.channels+ch]
}

// channelsForTag returns the channel count a format tag declares, or 0.
func channelsForTag(tag string) int {
	switch tag {
	case "M.K.", "M!K!", "M&K!", "FLT4", "4CHN":
		return 4
	case "FLT8", "OKTA", "CD81":
		return 8
	}
	if tag[1:] == "CHN" && tag[0] >= '1' && tag[0] <= '9' {
		return int(tag[0] - '0')
	}
	if tag[2:] == "CH" || tag[2:] == "CN" {
		if tag[0] >= '0' && tag[0] <= '9' && tag[1] >= '0' && tag[1] <= '9' {
			return int(tag[0]-'0')*10 + int(tag[1]-'0')
		}
	}
	return 0
}

func parseModule(data []byte) (*module, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: mod: %d bytes is too short", types.ErrMalformedContainer, len(data))
	}

	m := &module{
		title: cString(data[:20]),
		tag:   string(data[tagOffset : tagOffset+4]),
	}
	m.channels = channelsForTag(m.tag)
	if m.channels == 0 || m.channels > maxChannels {
		return nil, fmt.Errorf("%w: mod: unknown format tag %q", types.ErrMalformedContainer, m.tag)
	}

	songLength := int(data[950])
	if songLength == 0 || songLength > numOrders {
		return nil, fmt.Errorf("%w: mod: song length %d", types.ErrMalformedContainer, songLength)
	}
	m.orders = append([]uint8(nil), data[952:952+songLength]...)
	m.restart = int(data[951])
	if m.restart >= songLength {
		m.restart = 0
	}

	// every pattern named in the order table is stored, including orders
	// past the song length
	numPatterns := 0
	for _, p := range data[952 : 952+numOrders] {
		numPatterns = max(numPatterns, int(p)+1)
	}

	patBytes := rowsPerPat * m.channels * cellBytes
	off := headerSize
	if off+numPatterns*patBytes > len(data) {
		return nil, fmt.Errorf("%w: mod: %d patterns exceed the file", types.ErrMalformedContainer, numPatterns)
	}
	m.patterns = make([][]cell, numPatterns)
	for p := range m.patterns {
		cells := make([]cell, rowsPerPat*m.channels)
		for i := range cells {
			b := data[off+i*cellBytes:]
			cells[i] = cell{
				sample: b[0]&0xF0 | b[2]>>4,
				period: int(b[0]&0x0F)<<8 | int(b[1]),
				effect: b[2] & 0x0F,
				param:  b[3],
			}
		}
		m.patterns[p] = cells
		off += patBytes
	}

	// sample data may be cut short; keep what is there
	be := binary.BigEndian
	for i := range m.samples {
		h := data[20+i*30:]
		length := int(be.Uint16(h[22:])) * 2
		s := sample{
			name:     cString(h[:22]),
			finetune: int8(h[24]<<4) >> 4,
			volume:   min(int(h[25]), 64),
		}
		loopStart := int(be.Uint16(h[26:])) * 2
		loopLength := int(be.Uint16(h[28:])) * 2

		avail := min(length, max(len(data)-off, 0))
		s.data = make([]int8, avail)
		for j := range s.data {
			s.data[j] = int8(data[off+j])
		}
		off += length

		if loopLength > 2 && loopStart < avail {
			s.loopStart = loopStart
			s.loopLength = min(loopLength, avail-loopStart)
		}
		m.samples[i] = s
	}
	return m, nil
}

func cString(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimRight(string(b), " ")
}

// sampleNames lists the non-empty sample names, which trackers use for
// messages.
func (m *module) sampleNames() []string {
	return lo.FilterMap(m.samples[:], func(s sample, _ int) (string, bool) {
		return s.name, strings.TrimSpace(s.name) != ""
	})
}
