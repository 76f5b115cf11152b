package types

// PutS16 writes interleaved stereo int16 frames into a little-endian byte buffer.
// The caller guarantees len(out) >= len(samples)*2.
func PutS16(out []byte, samples []int16) int {
	n := 0
	for _, s := range samples {
		out[n] = byte(s)
		out[n+1] = byte(s >> 8)
		n += 2
	}
	return n
}

// ClampS16 saturates a mixed sample to the int16 range.
func ClampS16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
