package proc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type bytesMem struct {
	base uint64
	data []byte
}

func (m bytesMem) ReadMemory(buf []byte, addr uint64) (int, error) {
	if addr < m.base || addr >= m.base+uint64(len(m.data)) {
		return 0, nil
	}
	return copy(buf, m.data[addr-m.base:]), nil
}

func TestReadCString(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'a'
	}
	mem := bytesMem{base: 0x1000, data: append([]byte("hello\x00world"), long...)}

	s, err := ReadCString(mem, 0x1000, 100)
	require.NoError(t, err)
	require.Equal(t, "hello", s)

	s, err = ReadCString(mem, 0x1006, 3)
	require.NoError(t, err)
	require.Equal(t, "wor", s)

	s, err = ReadCString(mem, 0x1006, 1000)
	require.Equal(t, ErrShortRead, err)
	require.Equal(t, "world"+string(long), s)
}

func TestMemoryRegion(t *testing.T) {
	r := MemoryRegion{Base: 0x1000, End: 0x2000, Readable: true, Executable: true, Mapped: true}
	require.True(t, r.Contains(0x1000))
	require.False(t, r.Contains(0x2000))
	require.Equal(t, "[0x0000000000001000-0x0000000000002000) r-x", r.String())
	require.Equal(t, "[0x0000000000002000-0xffffffffffffffff) unmapped", MemoryRegion{Base: 0x2000, End: InvalidAddress}.String())
}

func TestHistoryThreadName(t *testing.T) {
	th := NewHistoryThread(3, "previous write", []uint64{1, 2})
	require.Equal(t, "Previous write", th.Name())
	require.Nil(t, th.Common().StopInfo())
	th.Common().SetStopInfo(&StopInfo{Reason: StopInstrumentation})
	require.Equal(t, StopInstrumentation, th.Common().StopInfo().Reason)
}
