package leb128

import "io"

// EncodeUnsigned encodes x to the unsigned Little Endian Base 128 format
// into out.
func EncodeUnsigned(out io.ByteWriter, x uint64) {
	for {
		b := byte(x & 0x7f)
		x >>= 7
		if x != 0 {
			b |= 0x80
		}
		out.WriteByte(b)
		if x == 0 {
			return
		}
	}
}

// EncodeSigned encodes x to the signed Little Endian Base 128 format into
// out.
func EncodeSigned(out io.ByteWriter, x int64) {
	for {
		b := byte(x & 0x7f)
		x >>= 7
		signb := b & 0x40
		if (x == 0 && signb == 0) || (x == -1 && signb != 0) {
			out.WriteByte(b)
			return
		}
		out.WriteByte(b | 0x80)
	}
}

// AppendUnsigned appends the encoding of x to dst.
func AppendUnsigned(dst []byte, x uint64) []byte {
	for {
		b := byte(x & 0x7f)
		x >>= 7
		if x == 0 {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}
