package minidump

import (
	"encoding/binary"
	"os"
	"unicode/utf16"
)

// Writer builds a minidump file. Streams are written in the order they
// are added, except MemoryInfoList which follows all other streams.
type Writer struct {
	SystemInfo *SystemInfo
	Threads    []Thread
	Modules    []Module
	Exception  *Exception
	// Pid is written to a MiscInfo stream when HasPid is set.
	Pid    uint32
	HasPid bool

	MemoryRanges   []MemoryRange
	Memory64Ranges []MemoryRange
	MemoryInfo     []MemoryInfo
	Comment        string
}

type streamWriter struct {
	out []byte
	dir []byte
	n   uint32
}

// blob appends data to the file and returns its location descriptor.
func (w *streamWriter) blob(data []byte) (size, rva uint32) {
	rva = uint32(len(w.out))
	w.out = append(w.out, data...)
	return uint32(len(data)), rva
}

func (w *streamWriter) stream(typ StreamType, data []byte) {
	size, rva := w.blob(data)
	w.dir = binary.LittleEndian.AppendUint32(w.dir, uint32(typ))
	w.dir = binary.LittleEndian.AppendUint32(w.dir, size)
	w.dir = binary.LittleEndian.AppendUint32(w.dir, rva)
	w.n++
}

func (w *streamWriter) location(data []byte) []byte {
	size, rva := w.blob(data)
	var b []byte
	b = binary.LittleEndian.AppendUint32(b, size)
	return binary.LittleEndian.AppendUint32(b, rva)
}

func (w *streamWriter) memoryDescriptor(r MemoryRange) []byte {
	loc := w.location(r.Data)
	return append(binary.LittleEndian.AppendUint64(nil, r.Addr), loc...)
}

func encodeString(s string) []byte {
	u := utf16.Encode([]rune(s))
	b := binary.LittleEndian.AppendUint32(nil, uint32(2*len(u)))
	for _, c := range u {
		b = binary.LittleEndian.AppendUint16(b, c)
	}
	return b
}

// Bytes returns the contents of the minidump file.
func (mw *Writer) Bytes() []byte {
	w := &streamWriter{out: make([]byte, 32)}
	le := binary.LittleEndian

	if si := mw.SystemInfo; si != nil {
		var b []byte
		b = le.AppendUint16(b, uint16(si.Arch))
		b = le.AppendUint16(b, si.Level)
		b = le.AppendUint16(b, si.Revision)
		b = append(b, si.NumProcessors, si.ProductType)
		for _, v := range []uint32{si.MajorVersion, si.MinorVersion, si.BuildNumber, si.PlatformID, 0} {
			b = le.AppendUint32(b, v)
		}
		w.stream(SystemInfoStream, b)
	}

	if len(mw.Threads) > 0 {
		b := le.AppendUint32(nil, uint32(len(mw.Threads)))
		for _, th := range mw.Threads {
			b = le.AppendUint32(b, th.ID)
			b = le.AppendUint32(b, th.SuspendCount)
			b = le.AppendUint32(b, th.PriorityClass)
			b = le.AppendUint32(b, th.Priority)
			b = le.AppendUint64(b, th.TEB)
			b = append(b, w.memoryDescriptor(th.Stack)...)
			b = append(b, w.location(th.Context)...)
		}
		w.stream(ThreadListStream, b)
	}

	if len(mw.Modules) > 0 {
		b := le.AppendUint32(nil, uint32(len(mw.Modules)))
		for _, m := range mw.Modules {
			_, nameRva := w.blob(encodeString(m.Name))
			b = le.AppendUint64(b, m.BaseOfImage)
			b = le.AppendUint32(b, m.SizeOfImage)
			b = le.AppendUint32(b, m.Checksum)
			b = le.AppendUint32(b, m.TimeDateStamp)
			b = le.AppendUint32(b, nameRva)
			vi := m.VersionInfo
			for _, v := range []uint32{vi.Signature, vi.StructVersion, vi.FileVersionHi, vi.FileVersionLo,
				vi.ProductVersionHi, vi.ProductVersionLo, vi.FileFlagsMask, vi.FileFlags, vi.FileOS,
				vi.FileType, vi.FileSubtype, vi.FileDateHi, vi.FileDateLo} {
				b = le.AppendUint32(b, v)
			}
			b = append(b, w.location(m.CVRecord)...)
			b = append(b, w.location(m.MiscRecord)...)
			b = le.AppendUint64(b, 0)
			b = le.AppendUint64(b, 0)
		}
		w.stream(ModuleListStream, b)
	}

	if exc := mw.Exception; exc != nil {
		var b []byte
		b = le.AppendUint32(b, exc.ThreadID)
		b = le.AppendUint32(b, 0)
		b = le.AppendUint32(b, exc.Code)
		b = le.AppendUint32(b, exc.Flags)
		b = le.AppendUint64(b, exc.Record)
		b = le.AppendUint64(b, exc.Address)
		b = le.AppendUint32(b, uint32(len(exc.Params)))
		b = le.AppendUint32(b, 0)
		for i := 0; i < 15; i++ {
			var p uint64
			if i < len(exc.Params) {
				p = exc.Params[i]
			}
			b = le.AppendUint64(b, p)
		}
		b = append(b, w.location(exc.Context)...)
		w.stream(ExceptionStream, b)
	}

	if len(mw.MemoryRanges) > 0 {
		b := le.AppendUint32(nil, uint32(len(mw.MemoryRanges)))
		for _, r := range mw.MemoryRanges {
			b = append(b, w.memoryDescriptor(r)...)
		}
		w.stream(MemoryListStream, b)
	}

	if len(mw.Memory64Ranges) > 0 {
		var data []byte
		for _, r := range mw.Memory64Ranges {
			data = append(data, r.Data...)
		}
		_, baseRva := w.blob(data)
		b := le.AppendUint64(nil, uint64(len(mw.Memory64Ranges)))
		b = le.AppendUint64(b, uint64(baseRva))
		for _, r := range mw.Memory64Ranges {
			b = le.AppendUint64(b, r.Addr)
			b = le.AppendUint64(b, uint64(len(r.Data)))
		}
		w.stream(Memory64ListStream, b)
	}

	if mw.HasPid {
		var b []byte
		b = le.AppendUint32(b, miscInfoSize)
		b = le.AppendUint32(b, miscInfoProcessID)
		b = le.AppendUint32(b, mw.Pid)
		b = append(b, make([]byte, miscInfoSize-12)...)
		w.stream(MiscInfoStream, b)
	}

	if mw.Comment != "" {
		w.stream(CommentStreamA, []byte(mw.Comment))
	}

	if mw.MemoryInfo != nil {
		var b []byte
		b = le.AppendUint32(b, memoryInfoListSize)
		b = le.AppendUint32(b, memoryInfoEntrySize)
		b = le.AppendUint64(b, uint64(len(mw.MemoryInfo)))
		for _, mi := range mw.MemoryInfo {
			b = le.AppendUint64(b, mi.Addr)
			b = le.AppendUint64(b, mi.Addr)
			b = le.AppendUint32(b, uint32(mi.Protection))
			b = le.AppendUint32(b, 0)
			b = le.AppendUint64(b, mi.Size)
			b = le.AppendUint32(b, uint32(mi.State))
			b = le.AppendUint32(b, uint32(mi.Protection))
			b = le.AppendUint32(b, uint32(mi.Type))
			b = le.AppendUint32(b, 0)
		}
		w.stream(MemoryInfoListStream, b)
	}

	dirOff := uint32(len(w.out))
	w.out = append(w.out, w.dir...)

	hdr := w.out[:32]
	le.PutUint32(hdr[0:], minidumpSignature)
	le.PutUint16(hdr[4:], minidumpVersion)
	le.PutUint32(hdr[8:], w.n)
	le.PutUint32(hdr[12:], dirOff)
	le.PutUint64(hdr[24:], uint64(FileWithFullMemoryInfo))
	return w.out
}

// WriteFile writes the minidump to path.
func (mw *Writer) WriteFile(path string) error {
	return os.WriteFile(path, mw.Bytes(), 0o600)
}
