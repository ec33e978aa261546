package proc

import (
	"bytes"
	"errors"
	"fmt"
)

// MemoryReader reads the memory of the target.
type MemoryReader interface {
	// ReadMemory copies the memory at addr into buf and returns the number
	// of bytes copied. A read that stops at the end of a readable region
	// returns fewer bytes and no error.
	ReadMemory(buf []byte, addr uint64) (n int, err error)
}

// ErrShortRead is returned on a short read.
var ErrShortRead = errors.New("short read")

// MemoryRegion is a region of the address space of the target.
type MemoryRegion struct {
	Base, End  uint64
	Readable   bool
	Writable   bool
	Executable bool
	Mapped     bool
}

// InvalidAddress is the End of an unmapped region that extends to the end
// of the address space.
const InvalidAddress = ^uint64(0)

func (r MemoryRegion) Contains(addr uint64) bool {
	return r.Base <= addr && addr < r.End
}

func (r MemoryRegion) String() string {
	perms := []byte("---")
	if r.Readable {
		perms[0] = 'r'
	}
	if r.Writable {
		perms[1] = 'w'
	}
	if r.Executable {
		perms[2] = 'x'
	}
	if !r.Mapped {
		return fmt.Sprintf("[%#016x-%#016x) unmapped", r.Base, r.End)
	}
	return fmt.Sprintf("[%#016x-%#016x) %s", r.Base, r.End, perms)
}

const cstringChunk = 256

// ReadCString reads the NUL terminated string at addr, at most max bytes
// are read.
func ReadCString(mem MemoryReader, addr uint64, max int) (string, error) {
	var out []byte
	buf := make([]byte, cstringChunk)
	for len(out) < max {
		if n := max - len(out); n < len(buf) {
			buf = buf[:n]
		}
		n, err := mem.ReadMemory(buf, addr)
		if i := bytes.IndexByte(buf[:n], 0); i >= 0 {
			return string(append(out, buf[:i]...)), nil
		}
		out = append(out, buf[:n]...)
		if err != nil {
			return string(out), err
		}
		if n == 0 {
			return string(out), ErrShortRead
		}
		addr += uint64(n)
	}
	return string(out), nil
}
