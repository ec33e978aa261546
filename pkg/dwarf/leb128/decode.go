package leb128

// DecodeUnsigned decodes an unsigned Little Endian Base 128 number from
// the start of b. It returns the value and the number of bytes it was
// encoded in, or zero bytes if b ends before the number does.
func DecodeUnsigned(b []byte) (uint64, int) {
	var (
		result uint64
		shift  uint
	)
	for i, c := range b {
		if shift < 64 {
			result |= uint64(c&0x7f) << shift
		}
		if c&0x80 == 0 {
			return result, i + 1
		}
		shift += 7
	}
	return 0, 0
}

// DecodeSigned decodes a signed Little Endian Base 128 number from the
// start of b. It returns the value and the number of bytes it was encoded
// in, or zero bytes if b ends before the number does.
func DecodeSigned(b []byte) (int64, int) {
	var (
		result int64
		shift  uint
	)
	for i, c := range b {
		if shift < 64 {
			result |= int64(c&0x7f) << shift
		}
		shift += 7
		if c&0x80 == 0 {
			if shift < 64 && c&0x40 != 0 {
				result |= -1 << shift
			}
			return result, i + 1
		}
	}
	return 0, 0
}
