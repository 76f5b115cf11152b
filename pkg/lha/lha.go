// Package lha reads LHA/LZH archives with header levels 0, 1 and 2 and the
// -lh0- (stored) and -lh4- through -lh7- (LZSS + static Huffman) methods.
// Atari ST YM files are usually distributed as single-member -lh5- archives.
package lha

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrFormat is returned for data that is not a readable LHA archive
	ErrFormat = errors.New("lha: invalid archive")

	// ErrMethod is returned for compression methods this package does not decode
	ErrMethod = errors.New("lha: unsupported method")

	// ErrChecksum is returned when a decoded member fails its CRC
	ErrChecksum = errors.New("lha: checksum mismatch")
)

// File is one decoded archive member.
type File struct {
	Name   string
	Method string
	Level  int
	Data   []byte
}

type header struct {
	name       string
	method     string
	level      int
	packedSize int
	size       int
	crc        uint16
	dataOffset int // from the start of the header
}

// IsArchive reports whether data starts with an LHA member header.
func IsArchive(data []byte) bool {
	if len(data) < 22 {
		return false
	}
	m := data[2:7]
	return m[0] == '-' && m[1] == 'l' && (m[2] == 'h' || m[2] == 'z') && m[4] == '-'
}

// Extract decodes every member of the archive.
func Extract(data []byte) ([]File, error) {
	var files []File
	pos := 0
	for pos < len(data) && data[pos] != 0 {
		h, err := parseHeader(data[pos:])
		if err != nil {
			return files, err
		}

		start := pos + h.dataOffset
		end := start + h.packedSize
		if h.packedSize < 0 || end > len(data) {
			return files, fmt.Errorf("%w: member %q truncated", ErrFormat, h.name)
		}

		out, err := decode(h.method, data[start:end], h.size)
		if err != nil {
			return files, fmt.Errorf("member %q: %w", h.name, err)
		}
		if got := crc16(out); got != h.crc {
			return files, fmt.Errorf("%w: member %q crc %04x, want %04x", ErrChecksum, h.name, got, h.crc)
		}

		files = append(files, File{Name: h.name, Method: h.method, Level: h.level, Data: out})
		pos = end
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no members", ErrFormat)
	}
	return files, nil
}

// ExtractFirst decodes only the first member.
func ExtractFirst(data []byte) ([]byte, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	end := h.dataOffset + h.packedSize
	if h.packedSize < 0 || end > len(data) {
		return nil, fmt.Errorf("%w: member %q truncated", ErrFormat, h.name)
	}
	out, err := decode(h.method, data[h.dataOffset:end], h.size)
	if err != nil {
		return nil, err
	}
	if got := crc16(out); got != h.crc {
		return nil, fmt.Errorf("%w: crc %04x, want %04x", ErrChecksum, got, h.crc)
	}
	return out, nil
}

func parseHeader(b []byte) (header, error) {
	if len(b) < 22 {
		return header{}, fmt.Errorf("%w: short header", ErrFormat)
	}
	var h header
	h.method = string(b[2:7])
	if h.method[0] != '-' || h.method[4] != '-' {
		return header{}, fmt.Errorf("%w: bad method field %q", ErrFormat, h.method)
	}
	h.packedSize = int(binary.LittleEndian.Uint32(b[7:11]))
	h.size = int(binary.LittleEndian.Uint32(b[11:15]))
	h.level = int(b[20])

	switch h.level {
	case 0, 1:
		size := int(b[0]) + 2
		nameLen := int(b[21])
		if size > len(b) || 22+nameLen+2 > len(b) {
			return header{}, fmt.Errorf("%w: header overruns data", ErrFormat)
		}
		h.name = string(b[22 : 22+nameLen])
		h.crc = binary.LittleEndian.Uint16(b[22+nameLen:])
		h.dataOffset = size
		if h.level == 1 {
			// extended headers follow the base header and are counted in
			// the packed size
			next := int(binary.LittleEndian.Uint16(b[size-2:]))
			off := size
			for next != 0 {
				if next < 3 || off+next > len(b) {
					return header{}, fmt.Errorf("%w: bad extended header", ErrFormat)
				}
				h.applyExtension(b[off : off+next-2])
				off += next
				h.packedSize -= next
				next = int(binary.LittleEndian.Uint16(b[off-2:]))
			}
			h.dataOffset = off
		}
	case 2:
		size := int(binary.LittleEndian.Uint16(b[0:2]))
		if size > len(b) || size < 26 {
			return header{}, fmt.Errorf("%w: header overruns data", ErrFormat)
		}
		h.crc = binary.LittleEndian.Uint16(b[21:23])
		off := 24
		next := int(binary.LittleEndian.Uint16(b[off:]))
		off += 2
		for next != 0 {
			if next < 3 || off+next > size {
				return header{}, fmt.Errorf("%w: bad extended header", ErrFormat)
			}
			h.applyExtension(b[off : off+next-2])
			off += next
			next = int(binary.LittleEndian.Uint16(b[off-2:]))
		}
		h.dataOffset = size
	default:
		return header{}, fmt.Errorf("%w: header level %d", ErrFormat, h.level)
	}
	return h, nil
}

// applyExtension handles one extended header body (type byte + payload).
func (h *header) applyExtension(ext []byte) {
	if len(ext) == 0 {
		return
	}
	switch ext[0] {
	case 0x01: // file name
		h.name = string(ext[1:])
	}
}

// maxSize bounds the decoded size of one member
const maxSize = 64 << 20

func decode(method string, packed []byte, size int) ([]byte, error) {
	if size < 0 || size > maxSize {
		return nil, fmt.Errorf("%w: member size %d", ErrFormat, size)
	}
	switch method {
	case "-lh0-", "-lz4-":
		if len(packed) < size {
			return nil, fmt.Errorf("%w: stored member truncated", ErrFormat)
		}
		out := make([]byte, size)
		copy(out, packed)
		return out, nil
	case "-lh4-":
		return decodeLH(packed, size, 12)
	case "-lh5-":
		return decodeLH(packed, size, 13)
	case "-lh6-":
		return decodeLH(packed, size, 15)
	case "-lh7-":
		return decodeLH(packed, size, 16)
	default:
		return nil, fmt.Errorf("%w: %s", ErrMethod, method)
	}
}
