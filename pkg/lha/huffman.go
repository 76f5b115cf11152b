package lha

import "fmt"

const (
	maxMatch  = 256
	threshold = 3
	numC      = 255 + maxMatch + 2 - threshold // literal/length alphabet
	charBits  = 9
	numT      = 19 // code length alphabet
	tBits     = 5
	maxBits   = 16
)

type bitReader struct {
	data    []byte
	pos     int
	buf     uint64
	n       uint
	overrun int
}

func (r *bitReader) fill(n uint) {
	for r.n < n {
		var b byte
		if r.pos < len(r.data) {
			b = r.data[r.pos]
			r.pos++
		} else {
			r.overrun++
		}
		r.buf = r.buf<<8 | uint64(b)
		r.n += 8
	}
}

func (r *bitReader) bits(n uint) int {
	if n == 0 {
		return 0
	}
	r.fill(n)
	r.n -= n
	return int(r.buf>>r.n) & (1<<n - 1)
}

func (r *bitReader) bit() int {
	return r.bits(1)
}

// huffman is a canonical code: shorter codes first, ties broken by symbol.
type huffman struct {
	count   [maxBits + 1]int
	symbols []int
	single  int // the only symbol of a zero-bit code, or -1
}

func newHuffman(lengths []uint8) (*huffman, error) {
	h := &huffman{single: -1}
	for _, l := range lengths {
		if l > maxBits {
			return nil, fmt.Errorf("%w: code length %d", ErrFormat, l)
		}
		h.count[l]++
	}
	h.count[0] = 0

	var offs [maxBits + 2]int
	for i := 1; i <= maxBits; i++ {
		offs[i+1] = offs[i] + h.count[i]
	}
	h.symbols = make([]int, offs[maxBits+1])
	for sym, l := range lengths {
		if l != 0 {
			h.symbols[offs[l]] = sym
			offs[l]++
		}
	}
	return h, nil
}

func singleSymbol(sym int) *huffman {
	return &huffman{single: sym}
}

func (h *huffman) decode(r *bitReader) (int, error) {
	if h.single >= 0 {
		return h.single, nil
	}
	code, first, index := 0, 0, 0
	for l := 1; l <= maxBits; l++ {
		code |= r.bit()
		count := h.count[l]
		if code-first < count {
			return h.symbols[index+code-first], nil
		}
		index += count
		first = (first + count) << 1
		code <<= 1
	}
	return 0, fmt.Errorf("%w: invalid huffman code", ErrFormat)
}

type lhDecoder struct {
	r         bitReader
	np, pBits uint

	blockLeft int
	c, p      *huffman
}

// readPTLen reads the lengths of the code-length or position alphabet.
// special is the index after which a 2-bit run of zero lengths follows.
func (d *lhDecoder) readPTLen(nn int, nbit uint, special int) (*huffman, error) {
	n := d.r.bits(nbit)
	if n == 0 {
		return singleSymbol(d.r.bits(nbit)), nil
	}
	if n > nn {
		return nil, fmt.Errorf("%w: table size %d", ErrFormat, n)
	}

	lengths := make([]uint8, nn)
	for i := 0; i < n; {
		c := d.r.bits(3)
		if c == 7 {
			for d.r.bit() == 1 {
				c++
				if c > maxBits {
					return nil, fmt.Errorf("%w: code length overflow", ErrFormat)
				}
			}
		}
		lengths[i] = uint8(c)
		i++
		if i == special {
			for z := d.r.bits(2); z > 0 && i < nn; z-- {
				lengths[i] = 0
				i++
			}
		}
	}
	return newHuffman(lengths)
}

func (d *lhDecoder) readCLen(pt *huffman) (*huffman, error) {
	n := d.r.bits(charBits)
	if n == 0 {
		return singleSymbol(d.r.bits(charBits)), nil
	}
	if n > numC {
		return nil, fmt.Errorf("%w: literal table size %d", ErrFormat, n)
	}

	lengths := make([]uint8, numC)
	for i := 0; i < n; {
		c, err := pt.decode(&d.r)
		if err != nil {
			return nil, err
		}
		if c > 2 {
			lengths[i] = uint8(c - 2)
			i++
			continue
		}

		var run int
		switch c {
		case 0:
			run = 1
		case 1:
			run = d.r.bits(4) + 3
		default:
			run = d.r.bits(charBits) + 20
		}
		for ; run > 0 && i < numC; run-- {
			lengths[i] = 0
			i++
		}
	}
	return newHuffman(lengths)
}

func (d *lhDecoder) startBlock() error {
	d.blockLeft = d.r.bits(16)
	if d.blockLeft == 0 {
		return fmt.Errorf("%w: empty block", ErrFormat)
	}
	pt, err := d.readPTLen(numT, tBits, 3)
	if err != nil {
		return err
	}
	if d.c, err = d.readCLen(pt); err != nil {
		return err
	}
	d.p, err = d.readPTLen(int(d.np), d.pBits, -1)
	return err
}

func (d *lhDecoder) decodePosition() (int, error) {
	j, err := d.p.decode(&d.r)
	if err != nil {
		return 0, err
	}
	if j > 1 {
		j = 1<<(j-1) + d.r.bits(uint(j-1))
	}
	return j, nil
}

// decodeLH inflates an -lh4- to -lh7- stream with a 2^dicBits window.
func decodeLH(packed []byte, size int, dicBits uint) ([]byte, error) {
	d := &lhDecoder{
		r:     bitReader{data: packed},
		np:    dicBits + 1,
		pBits: 4,
	}
	if dicBits > 13 {
		d.pBits = 5
	}

	out := make([]byte, 0, size)
	for len(out) < size {
		if d.blockLeft == 0 {
			if err := d.startBlock(); err != nil {
				return nil, err
			}
		}
		d.blockLeft--

		c, err := d.c.decode(&d.r)
		if err != nil {
			return nil, err
		}
		if c < 256 {
			out = append(out, byte(c))
		} else {
			length := c - 256 + threshold
			dist, err := d.decodePosition()
			if err != nil {
				return nil, err
			}
			// the window starts out filled with spaces
			from := len(out) - dist - 1
			for k := 0; k < length && len(out) < size; k++ {
				if from+k < 0 {
					out = append(out, ' ')
					continue
				}
				out = append(out, out[from+k])
			}
		}

		if d.r.overrun > 8 {
			return nil, fmt.Errorf("%w: compressed data truncated", ErrFormat)
		}
	}
	return out, nil
}

var crcTable = func() [256]uint16 {
	var t [256]uint16
	for i := range t {
		c := uint16(i)
		for k := 0; k < 8; k++ {
			if c&1 != 0 {
				c = c>>1 ^ 0xA001
			} else {
				c >>= 1
			}
		}
		t[i] = c
	}
	return t
}()

// crc16 is CRC-16/ARC, the checksum LHA stores for each member.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = crcTable[byte(crc)^b] ^ crc>>8
	}
	return crc
}
