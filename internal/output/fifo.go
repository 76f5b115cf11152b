package output

// fifo is a byte ring holding device-rate PCM between the resampler and the
// oto player. It is used from the player's reader goroutine only. Capacity
// is a power of two and doubles when a write does not fit, so after the
// first few reads it settles at the high-water mark and stops allocating.
type fifo struct {
	buf      []byte
	mask     uint64
	readPos  uint64
	writePos uint64
}

func newFIFO(size int) *fifo {
	n := nextPowerOf2(uint64(size))
	return &fifo{buf: make([]byte, n), mask: n - 1}
}

func (f *fifo) Len() int {
	return int(f.writePos - f.readPos)
}

func (f *fifo) Cap() int {
	return len(f.buf)
}

// Write appends all of p.
func (f *fifo) Write(p []byte) (int, error) {
	if need := f.Len() + len(p); need > len(f.buf) {
		f.grow(need)
	}
	start := f.writePos & f.mask
	n := copy(f.buf[start:], p)
	copy(f.buf, p[n:])
	f.writePos += uint64(len(p))
	return len(p), nil
}

// Read moves up to len(p) bytes out. It returns 0 when empty.
func (f *fifo) Read(p []byte) (int, error) {
	n := min(len(p), f.Len())
	start := f.readPos & f.mask
	first := copy(p[:n], f.buf[start:])
	copy(p[first:n], f.buf)
	f.readPos += uint64(n)
	return n, nil
}

func (f *fifo) Reset() {
	f.readPos, f.writePos = 0, 0
}

func (f *fifo) grow(need int) {
	n := nextPowerOf2(uint64(need))
	buf := make([]byte, n)
	l := f.Len()
	_, _ = f.Read(buf[:l])
	f.buf, f.mask = buf, n-1
	f.readPos, f.writePos = 0, uint64(l)
}

// nextPowerOf2 rounds up to the next power of 2
func nextPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
