// Package util contains the bounded reader used to decode DWARF sections.
package util

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-delve/nativedbg/pkg/dwarf/leb128"
)

// DecodeError is returned when a section can not be decoded.
type DecodeError struct {
	Section string
	Offset  uint64
	Msg     string
}

func (e *DecodeError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("decoding dwarf at offset %#x: %s", e.Offset, e.Msg)
	}
	return fmt.Sprintf("decoding dwarf section %s at offset %#x: %s", e.Section, e.Offset, e.Msg)
}

// Buf is a cursor over a DWARF section. Reads past the end of the data set a
// sticky error and return zero values, callers check Err once at the end of
// a record.
type Buf struct {
	Section string
	Order   binary.ByteOrder
	// Format64 is true for the 64-bit DWARF format, it changes the size of
	// section offsets.
	Format64 bool
	AddrSize int

	data []byte
	off  int
	Err  error
}

// MakeBuf returns a buffer positioned at off in data.
func MakeBuf(section string, data []byte, off uint64) Buf {
	b := Buf{Section: section, Order: binary.LittleEndian, data: data}
	b.Seek(off)
	return b
}

// Off returns the current offset into the section.
func (b *Buf) Off() uint64 { return uint64(b.off) }

// Len returns the number of bytes left.
func (b *Buf) Len() int {
	if b.Err != nil {
		return 0
	}
	return len(b.data) - b.off
}

// Data returns the whole section.
func (b *Buf) Data() []byte { return b.data }

// Valid returns true if off is inside the section.
func (b *Buf) Valid(off uint64) bool { return off < uint64(len(b.data)) }

// Seek moves the cursor to off.
func (b *Buf) Seek(off uint64) {
	if off > uint64(len(b.data)) {
		b.error("seek past the end of the section")
		return
	}
	b.off = int(off)
}

// Skip advances the cursor by n bytes.
func (b *Buf) Skip(n int) { b.Bytes(n) }

func (b *Buf) error(msg string) {
	if b.Err == nil {
		b.Err = &DecodeError{b.Section, uint64(b.off), msg}
	}
	b.off = len(b.data)
}

// Errorf records a decoding error at the current offset, unless an error was
// already recorded.
func (b *Buf) Errorf(format string, args ...interface{}) {
	b.error(fmt.Sprintf(format, args...))
}

// Bytes returns the next n bytes.
func (b *Buf) Bytes(n int) []byte {
	if n < 0 || b.Len() < n {
		b.error("underflow")
		return nil
	}
	r := b.data[b.off : b.off+n]
	b.off += n
	return r
}

// Slice returns a buffer over the next n bytes, sharing the format of b and
// keeping absolute offsets.
func (b *Buf) Slice(n int) Buf {
	start := b.off
	if b.Bytes(n) == nil && n != 0 {
		return Buf{Section: b.Section, Err: b.Err}
	}
	r := *b
	r.data = b.data[:start+n]
	r.off = start
	return r
}

func (b *Buf) U8() uint8 {
	if b.Len() < 1 {
		b.error("underflow")
		return 0
	}
	r := b.data[b.off]
	b.off++
	return r
}

func (b *Buf) U16() uint16 {
	a := b.Bytes(2)
	if a == nil {
		return 0
	}
	return b.Order.Uint16(a)
}

func (b *Buf) U32() uint32 {
	a := b.Bytes(4)
	if a == nil {
		return 0
	}
	return b.Order.Uint32(a)
}

func (b *Buf) U64() uint64 {
	a := b.Bytes(8)
	if a == nil {
		return 0
	}
	return b.Order.Uint64(a)
}

// UintN reads an unsigned number of size bytes.
func (b *Buf) UintN(size int) uint64 {
	switch size {
	case 1:
		return uint64(b.U8())
	case 2:
		return uint64(b.U16())
	case 4:
		return uint64(b.U32())
	case 8:
		return b.U64()
	case 3:
		a := b.Bytes(3)
		if a == nil {
			return 0
		}
		if b.Order == binary.BigEndian {
			return uint64(a[0])<<16 | uint64(a[1])<<8 | uint64(a[2])
		}
		return uint64(a[2])<<16 | uint64(a[1])<<8 | uint64(a[0])
	}
	b.Errorf("unsupported integer size %d", size)
	return 0
}

// Addr reads a target address of AddrSize bytes.
func (b *Buf) Addr() uint64 {
	if b.AddrSize != 4 && b.AddrSize != 8 && b.AddrSize != 2 && b.AddrSize != 1 {
		b.Errorf("unknown address size %d", b.AddrSize)
		return 0
	}
	return b.UintN(b.AddrSize)
}

// Offset reads a section offset, 4 or 8 bytes depending on Format64.
func (b *Buf) Offset() uint64 {
	if b.Format64 {
		return b.U64()
	}
	return uint64(b.U32())
}

// OffsetSize returns the size of a section offset.
func (b *Buf) OffsetSize() int {
	if b.Format64 {
		return 8
	}
	return 4
}

// InitialLength reads the length field at the start of a unit and sets
// Format64 accordingly.
func (b *Buf) InitialLength() uint64 {
	n := b.U32()
	switch {
	case n == 0xffffffff:
		b.Format64 = true
		return b.U64()
	case n >= 0xfffffff0:
		b.Errorf("reserved initial length %#x", n)
		return 0
	}
	b.Format64 = false
	return uint64(n)
}

// ULEB reads an unsigned LEB128 number.
func (b *Buf) ULEB() uint64 {
	if b.Len() == 0 {
		b.error("underflow")
		return 0
	}
	r, n := leb128.DecodeUnsigned(b.data[b.off:])
	if n == 0 {
		b.error("truncated uleb128")
		return 0
	}
	b.off += n
	return r
}

// SLEB reads a signed LEB128 number.
func (b *Buf) SLEB() int64 {
	if b.Len() == 0 {
		b.error("underflow")
		return 0
	}
	r, n := leb128.DecodeSigned(b.data[b.off:])
	if n == 0 {
		b.error("truncated sleb128")
		return 0
	}
	b.off += n
	return r
}

// CString reads a NUL terminated string.
func (b *Buf) CString() string {
	if b.Len() == 0 {
		b.error("underflow")
		return ""
	}
	i := bytes.IndexByte(b.data[b.off:], 0)
	if i < 0 {
		b.error("unterminated string")
		return ""
	}
	s := string(b.data[b.off : b.off+i])
	b.off += i + 1
	return s
}

// CStringAt returns the NUL terminated string at off in data, used to read
// .debug_str and .debug_line_str.
func CStringAt(data []byte, off uint64) (string, bool) {
	if off >= uint64(len(data)) {
		return "", false
	}
	s := data[off:]
	i := bytes.IndexByte(s, 0)
	if i < 0 {
		return "", false
	}
	return string(s[:i]), true
}
