package minidump

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

type mapping struct {
	file   *os.File
	handle windows.Handle
	view   uintptr
	data   []byte
}

func mapFile(path string) (*mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	m := &mapping{file: f}
	size := fi.Size()
	if size == 0 {
		return m, nil
	}
	m.handle, err = windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READONLY, uint32(size>>32), uint32(size), nil)
	if err != nil {
		f.Close()
		return nil, &os.PathError{Op: "CreateFileMapping", Path: path, Err: err}
	}
	m.view, err = windows.MapViewOfFile(m.handle, windows.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		m.close()
		return nil, &os.PathError{Op: "MapViewOfFile", Path: path, Err: err}
	}
	m.data = unsafe.Slice((*byte)(unsafe.Pointer(m.view)), int(size))
	return m, nil
}

// close releases the view, the mapping and the file, in this order.
func (m *mapping) close() error {
	var err error
	if m.view != 0 {
		err = windows.UnmapViewOfFile(m.view)
		m.view = 0
		m.data = nil
	}
	if m.handle != 0 {
		if cerr := windows.CloseHandle(m.handle); err == nil {
			err = cerr
		}
		m.handle = 0
	}
	if m.file != nil {
		if cerr := m.file.Close(); err == nil {
			err = cerr
		}
		m.file = nil
	}
	return err
}
