package lha

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

type bitWriter struct {
	out  []byte
	acc  uint64
	bits uint
}

func (w *bitWriter) write(v int, n uint) {
	w.acc = w.acc<<n | uint64(v)&(1<<n-1)
	w.bits += n
	for w.bits >= 8 {
		w.bits -= 8
		w.out = append(w.out, byte(w.acc>>w.bits))
	}
}

func (w *bitWriter) bytes() []byte {
	if w.bits > 0 {
		w.out = append(w.out, byte(w.acc<<(8-w.bits)))
		w.bits = 0
	}
	return w.out
}

func level0(method, name string, packed []byte, orig []byte) []byte {
	var b bytes.Buffer
	b.WriteByte(byte(22 + len(name)))
	b.WriteByte(0) // header checksum, not verified
	b.WriteString(method)
	binary.Write(&b, binary.LittleEndian, uint32(len(packed)))
	binary.Write(&b, binary.LittleEndian, uint32(len(orig)))
	binary.Write(&b, binary.LittleEndian, uint32(0))
	b.WriteByte(0x20)
	b.WriteByte(0)
	b.WriteByte(byte(len(name)))
	b.WriteString(name)
	binary.Write(&b, binary.LittleEndian, crc16(orig))
	b.Write(packed)
	return b.Bytes()
}

func level1(name string, data []byte) []byte {
	ext := append([]byte{0x01}, name...)
	ext = append(ext, 0, 0)
	extSize := len(ext)

	var b bytes.Buffer
	b.WriteByte(25)
	b.WriteByte(0)
	b.WriteString("-lh0-")
	binary.Write(&b, binary.LittleEndian, uint32(len(data)+extSize))
	binary.Write(&b, binary.LittleEndian, uint32(len(data)))
	binary.Write(&b, binary.LittleEndian, uint32(0))
	b.WriteByte(0x20)
	b.WriteByte(1)
	b.WriteByte(0) // empty base name, real one in the extension
	binary.Write(&b, binary.LittleEndian, crc16(data))
	b.WriteByte('U')
	binary.Write(&b, binary.LittleEndian, uint16(extSize))
	b.Write(ext)
	b.Write(data)
	return b.Bytes()
}

func level2(name string, data []byte) []byte {
	ext := append([]byte{0x01}, name...)
	ext = append(ext, 0, 0)

	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, uint16(26+len(ext)))
	b.WriteString("-lh0-")
	binary.Write(&b, binary.LittleEndian, uint32(len(data)))
	binary.Write(&b, binary.LittleEndian, uint32(len(data)))
	binary.Write(&b, binary.LittleEndian, uint32(0))
	b.WriteByte(0x20)
	b.WriteByte(2)
	binary.Write(&b, binary.LittleEndian, crc16(data))
	b.WriteByte('U')
	binary.Write(&b, binary.LittleEndian, uint16(len(ext)))
	b.Write(ext)
	b.Write(data)
	return b.Bytes()
}

// lh5Block encodes "abc" followed by a 6-byte back reference using flat
// nine-bit literal codes and a single-symbol position table.
func lh5Block() []byte {
	w := &bitWriter{}
	w.write(4, 16)   // codes in block
	w.write(0, 5)    // code-length table: single symbol
	w.write(11, 5)   // every literal length is 11-2 = 9 bits
	w.write(numC, 9) // literal table size
	w.write(0, 4)    // position table: single symbol
	w.write(2, 4)    // position code 2: distance 2 + one extra bit
	w.write('a', 9)
	w.write('b', 9)
	w.write('c', 9)
	w.write(256+6-threshold, 9) // match of length 6
	w.write(0, 1)               // extra position bit, distance 2
	return w.bytes()
}

func TestIsArchive(t *testing.T) {
	data := level0("-lh5-", "song.ym", []byte{0}, []byte("x"))
	if !IsArchive(data) {
		t.Error("level 0 archive not recognised")
	}
	if IsArchive([]byte("YM6!LeOnArD!....................")) {
		t.Error("raw YM data misdetected as archive")
	}
	if IsArchive([]byte{1, 2}) {
		t.Error("short input misdetected as archive")
	}
}

func TestExtractLH5(t *testing.T) {
	want := []byte("abcabcabc")
	data := level0("-lh5-", "song.ym", lh5Block(), want)

	got, err := ExtractFirst(data)
	if err != nil {
		t.Fatalf("ExtractFirst: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractLevels(t *testing.T) {
	payload := []byte("YM5!LeOnArD! payload")
	tests := []struct {
		name  string
		data  []byte
		level int
	}{
		{"level0", level0("-lh0-", "a.ym", payload, payload), 0},
		{"level1", level1("b.ym", payload), 1},
		{"level2", level2("c.ym", payload), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := Extract(tt.data)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if len(files) != 1 {
				t.Fatalf("got %d files", len(files))
			}
			f := files[0]
			if f.Level != tt.level {
				t.Errorf("level = %d, want %d", f.Level, tt.level)
			}
			if f.Name == "" || f.Method != "-lh0-" {
				t.Errorf("file = %+v", f)
			}
			if !bytes.Equal(f.Data, payload) {
				t.Errorf("data = %q", f.Data)
			}
		})
	}
}

func TestExtractMultipleMembers(t *testing.T) {
	a := level0("-lh0-", "a", []byte("one"), []byte("one"))
	b := level0("-lh0-", "b", []byte("two"), []byte("two"))
	archive := append(append(a, b...), 0)

	files, err := Extract(archive)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(files) != 2 || files[0].Name != "a" || string(files[1].Data) != "two" {
		t.Errorf("files = %+v", files)
	}
}

func TestExtractErrors(t *testing.T) {
	good := level0("-lh0-", "a", []byte("data"), []byte("data"))

	corrupt := bytes.Clone(good)
	corrupt[len(corrupt)-1] ^= 0xFF

	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"short", []byte{0x10}, ErrFormat},
		{"truncated", good[:len(good)-2], ErrFormat},
		{"checksum", corrupt, ErrChecksum},
		{"method", level0("-lh9-", "a", []byte("data"), []byte("data")), ErrMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractFirst(tt.data)
			if !errors.Is(err, tt.err) {
				t.Errorf("err = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestCRC16(t *testing.T) {
	// CRC-16/ARC check value
	if got := crc16([]byte("123456789")); got != 0xBB3D {
		t.Errorf("crc16 = %04x, want bb3d", got)
	}
}
