// Package minidump provides a loader for Windows Minidump files.
// Minidump files are the Windows equivalent of unix core dumps.
// They can be created by the kernel when a program crashes or
// programmatically using either WinDbg or the ProcDump utility.
//
// The file format is described on MSDN starting at:
//
//	https://docs.microsoft.com/en-us/windows/desktop/api/minidumpapiset/ns-minidumpapiset-_minidump_header
//
// which is the structure found at offset 0 on a minidump file.
//
// Further information on the format can be found reading
// chromium-breakpad's minidump loading code, specifically:
//
//	https://chromium.googlesource.com/breakpad/breakpad/+/master/src/google_breakpad/common/minidump_format.h
package minidump

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

type minidumpBuf struct {
	buf  []byte
	kind string
	off  int
	err  error
	ctx  string
	// file is the whole minidump file, location descriptors point into
	// it.
	file []byte
}

func (buf *minidumpBuf) truncated(stride int) bool {
	if buf.err != nil {
		return true
	}
	if buf.off < 0 || buf.off+stride > len(buf.buf) {
		buf.err = fmt.Errorf("minidump %s truncated at offset %#x while %s", buf.kind, buf.off, buf.ctx)
		return true
	}
	return false
}

func (buf *minidumpBuf) u8() uint8 {
	if buf.truncated(1) {
		return 0
	}
	r := buf.buf[buf.off]
	buf.off++
	return r
}

func (buf *minidumpBuf) u16() uint16 {
	const stride = 2
	if buf.truncated(stride) {
		return 0
	}
	r := binary.LittleEndian.Uint16(buf.buf[buf.off : buf.off+stride])
	buf.off += stride
	return r
}

func (buf *minidumpBuf) u32() uint32 {
	const stride = 4
	if buf.truncated(stride) {
		return 0
	}
	r := binary.LittleEndian.Uint32(buf.buf[buf.off : buf.off+stride])
	buf.off += stride
	return r
}

func (buf *minidumpBuf) u64() uint64 {
	const stride = 8
	if buf.truncated(stride) {
		return 0
	}
	r := binary.LittleEndian.Uint64(buf.buf[buf.off : buf.off+stride])
	buf.off += stride
	return r
}

func streamBuf(stream *Stream, buf *minidumpBuf, name string) *minidumpBuf {
	return &minidumpBuf{
		buf:  buf.file[:stream.Offset+len(stream.RawData)],
		kind: "stream",
		off:  stream.Offset,
		err:  nil,
		ctx:  fmt.Sprintf("reading %s stream at %#x", name, stream.Offset),
		file: buf.file,
	}
}

// ErrNotAMinidump is the error returned when the file being loaded is not a
// minidump file.
type ErrNotAMinidump struct {
	what string
	got  uint32
}

func (err ErrNotAMinidump) Error() string {
	return fmt.Sprintf("not a minidump, invalid %s %#x", err.what, err.got)
}

const (
	minidumpSignature = 0x504d444d // 'MDMP'
	minidumpVersion   = 0xa793

	miscInfoSize        = 24
	miscInfoProcessID   = 0x1
	memoryInfoListSize  = 16
	memoryInfoEntrySize = 48
)

var (
	ErrNoMemoryInfo         = errors.New("the mini dump contains no memory range information")
	ErrMemoryInfoEntrySize  = errors.New("the entries in the mini dump memory info list are smaller than expected")
	ErrMemoryInfoIncomplete = errors.New("the mini dump memory info list is incomplete")
)

// Minidump represents a minidump file. The memory of MemoryRange values
// and RawData of streams belong to the mapping of the file, they must not
// be used after Close.
type Minidump struct {
	Timestamp uint32
	Flags     FileFlags

	Streams []Stream

	SystemInfo *SystemInfo
	Threads    []Thread
	Modules    []Module
	Exception  *Exception

	// Pid is valid only if HasPid is set.
	Pid    uint32
	HasPid bool

	// MemoryRanges are the ranges of the MemoryList stream and
	// Memory64Ranges those of the Memory64List stream.
	MemoryRanges   []MemoryRange
	Memory64Ranges []MemoryRange

	MemoryInfo []MemoryInfo
	// MemoryInfoErr is the reason MemoryInfo could not be read.
	MemoryInfoErr error

	streamNum uint32
	streamOff uint32

	m *mapping
}

// Stream represents one (uninterpreted) stream in a minidump file.
// See: https://docs.microsoft.com/en-us/windows/desktop/api/minidumpapiset/ns-minidumpapiset-_minidump_directory
type Stream struct {
	Type    StreamType
	Offset  int
	RawData []byte
}

// SystemInfo represents the SystemInfo stream.
// See: https://docs.microsoft.com/en-us/windows/desktop/api/minidumpapiset/ns-minidumpapiset-_minidump_system_info
type SystemInfo struct {
	Arch          Arch
	Level         uint16
	Revision      uint16
	NumProcessors uint8
	ProductType   uint8
	MajorVersion  uint32
	MinorVersion  uint32
	BuildNumber   uint32
	PlatformID    uint32
}

// Thread represents an entry in the ThreadList stream.
// See: https://docs.microsoft.com/en-us/windows/desktop/api/minidumpapiset/ns-minidumpapiset-_minidump_thread
type Thread struct {
	ID            uint32
	SuspendCount  uint32
	PriorityClass uint32
	Priority      uint32
	TEB           uint64
	Stack         MemoryRange
	// Context is the raw CONTEXT structure of the thread, its layout
	// depends on the architecture of the process.
	Context []byte
}

// Exception represents the Exception stream.
// See: https://docs.microsoft.com/en-us/windows/desktop/api/minidumpapiset/ns-minidumpapiset-minidump_exception_stream
type Exception struct {
	ThreadID uint32
	Code     uint32
	Flags    uint32
	Record   uint64
	Address  uint64
	Params   []uint64
	Context  []byte
}

// Module represents an entry in the ModuleList stream.
// See: https://docs.microsoft.com/en-us/windows/desktop/api/minidumpapiset/ns-minidumpapiset-_minidump_module
type Module struct {
	BaseOfImage   uint64
	SizeOfImage   uint32
	Checksum      uint32
	TimeDateStamp uint32
	Name          string
	VersionInfo   VSFixedFileInfo

	// CVRecord stores a CodeView record and is populated when a module's debug information resides in a PDB file.  It identifies the PDB file.
	CVRecord []byte

	// MiscRecord is populated when a module's debug information resides in a DBG file.  It identifies the DBG file.  This field is effectively obsolete with modules built by recent toolchains.
	MiscRecord []byte
}

// VSFixedFileInfo: Visual Studio Fixed File Info.
// See: https://docs.microsoft.com/en-us/windows/desktop/api/verrsrc/ns-verrsrc-tagvs_fixedfileinfo
type VSFixedFileInfo struct {
	Signature        uint32
	StructVersion    uint32
	FileVersionHi    uint32
	FileVersionLo    uint32
	ProductVersionHi uint32
	ProductVersionLo uint32
	FileFlagsMask    uint32
	FileFlags        uint32
	FileOS           uint32
	FileType         uint32
	FileSubtype      uint32
	FileDateHi       uint32
	FileDateLo       uint32
}

// MemoryRange represents a region of memory saved to the minidump file.
type MemoryRange struct {
	Addr uint64
	Data []byte
}

func (m *MemoryRange) Contains(addr uint64) bool {
	return m.Addr <= addr && addr-m.Addr < uint64(len(m.Data))
}

// MemoryInfo reprents an entry in the MemoryInfoList stream.
// See: https://docs.microsoft.com/en-us/windows/desktop/api/minidumpapiset/ns-minidumpapiset-_minidump_memory_info
type MemoryInfo struct {
	Addr       uint64
	Size       uint64
	State      MemoryState
	Protection MemoryProtection
	Type       MemoryType
}

// Open maps the minidump file at path and reads it as a Minidump
// structure. The file stays mapped until Close is called.
func Open(path string, logfn func(fmt string, args ...interface{})) (*Minidump, error) {
	m, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	mdmp, err := parse(m.data, logfn)
	if err != nil {
		m.close()
		return nil, err
	}
	mdmp.m = m
	return mdmp, nil
}

// Close unmaps the file.
func (mdmp *Minidump) Close() error {
	if mdmp.m == nil {
		return nil
	}
	err := mdmp.m.close()
	mdmp.m = nil
	return err
}

func parse(rawbuf []byte, logfn func(fmt string, args ...interface{})) (*Minidump, error) {
	buf := &minidumpBuf{buf: rawbuf, kind: "file", file: rawbuf}

	var mdmp Minidump

	readMinidumpHeader(&mdmp, buf)
	if buf.err != nil {
		return nil, buf.err
	}

	if logfn != nil {
		logfn("Minidump Header\n")
		logfn("Num Streams: %d\n", mdmp.streamNum)
		logfn("Streams offset: %#x\n", mdmp.streamOff)
		logfn("File flags: %s\n", mdmp.Flags)
		logfn("Offset after header %#x\n", buf.off)
	}

	readDirectory(&mdmp, buf)
	if buf.err != nil {
		return nil, buf.err
	}

	mdmp.MemoryInfoErr = ErrNoMemoryInfo

	for i := range mdmp.Streams {
		stream := &mdmp.Streams[i]
		if logfn != nil {
			logfn("Stream %d: type:%s off:%#x size:%#x\n", i, stream.Type, stream.Offset, len(stream.RawData))
		}
		switch stream.Type {
		case SystemInfoStream:
			readSystemInfo(&mdmp, streamBuf(stream, buf, "system info"), &buf.err)
			if mdmp.SystemInfo != nil && logfn != nil {
				logfn("\tProcessor architecture %s level %d\n", mdmp.SystemInfo.Arch, mdmp.SystemInfo.Level)
			}
		case ThreadListStream:
			readThreadList(&mdmp, streamBuf(stream, buf, "thread list"), &buf.err)
			if logfn != nil {
				for i := range mdmp.Threads {
					logfn("\tID:%#x TEB:%#x\n", mdmp.Threads[i].ID, mdmp.Threads[i].TEB)
				}
			}
		case ModuleListStream:
			readModuleList(&mdmp, streamBuf(stream, buf, "module list"), &buf.err)
			if logfn != nil {
				for i := range mdmp.Modules {
					logfn("\tName:%q BaseOfImage:%#x SizeOfImage:%#x\n", mdmp.Modules[i].Name, mdmp.Modules[i].BaseOfImage, mdmp.Modules[i].SizeOfImage)
				}
			}
		case ExceptionStream:
			readException(&mdmp, streamBuf(stream, buf, "exception"), &buf.err)
			if mdmp.Exception != nil && logfn != nil {
				logfn("\tThread:%#x Code:%#x Address:%#x\n", mdmp.Exception.ThreadID, mdmp.Exception.Code, mdmp.Exception.Address)
			}
		case MemoryListStream:
			readMemoryList(&mdmp, streamBuf(stream, buf, "memory list"), &buf.err, logfn)
		case Memory64ListStream:
			readMemory64List(&mdmp, streamBuf(stream, buf, "memory64 list"), &buf.err, logfn)
		case MemoryInfoListStream:
			mdmp.MemoryInfoErr = readMemoryInfoList(&mdmp, streamBuf(stream, buf, "memory info list"), logfn)
		case MiscInfoStream:
			readMiscInfo(&mdmp, streamBuf(stream, buf, "misc info"), len(stream.RawData))
			if mdmp.HasPid && logfn != nil {
				logfn("\tPid: %#x\n", mdmp.Pid)
			}
		case CommentStreamW:
			if logfn != nil {
				logfn("\t%q\n", decodeUTF16(stream.RawData))
			}
		case CommentStreamA:
			if logfn != nil {
				logfn("\t%s\n", string(stream.RawData))
			}
		}
		if buf.err != nil {
			return nil, buf.err
		}
	}

	return &mdmp, nil
}

// StreamOfType returns the first stream of type typ.
func (mdmp *Minidump) StreamOfType(typ StreamType) (*Stream, bool) {
	for i := range mdmp.Streams {
		if mdmp.Streams[i].Type == typ {
			return &mdmp.Streams[i], true
		}
	}
	return nil, false
}

// FindMemoryRange returns the saved memory range containing addr. The
// ranges of the MemoryList stream are searched before the ones of the
// Memory64List stream.
func (mdmp *Minidump) FindMemoryRange(addr uint64) (*MemoryRange, bool) {
	for i := range mdmp.MemoryRanges {
		if mdmp.MemoryRanges[i].Contains(addr) {
			return &mdmp.MemoryRanges[i], true
		}
	}
	for i := range mdmp.Memory64Ranges {
		if mdmp.Memory64Ranges[i].Contains(addr) {
			return &mdmp.Memory64Ranges[i], true
		}
	}
	return nil, false
}

// decodeUTF16 converts a NUL-terminated UTF16LE string to (non NUL-terminated) UTF8.
func decodeUTF16(in []byte) string {
	utf16encoded := []uint16{}
	for i := 0; i+1 < len(in); i += 2 {
		ch := uint16(in[i]) + uint16(in[i+1])<<8
		utf16encoded = append(utf16encoded, ch)
	}
	s := string(utf16.Decode(utf16encoded))
	if len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return s
}

// readMinidumpHeader reads the minidump file header
func readMinidumpHeader(mdmp *Minidump, buf *minidumpBuf) {
	buf.ctx = "reading minidump header"

	if sig := buf.u32(); sig != minidumpSignature {
		if buf.err == nil {
			buf.err = ErrNotAMinidump{"signature", sig}
		}
		return
	}

	if ver := buf.u16(); ver != minidumpVersion {
		if buf.err == nil {
			buf.err = ErrNotAMinidump{"version", uint32(ver)}
		}
		return
	}

	buf.u16() // implementation specific version
	mdmp.streamNum = buf.u32()
	mdmp.streamOff = buf.u32()
	buf.u32() // checksum, but it's always 0
	mdmp.Timestamp = buf.u32()
	mdmp.Flags = FileFlags(buf.u64())
}

// readDirectory reads the list of streams (i.e. the minidump "directory")
func readDirectory(mdmp *Minidump, buf *minidumpBuf) {
	buf.off = int(mdmp.streamOff)

	mdmp.Streams = make([]Stream, 0, mdmp.streamNum)
	for i := 0; i < int(mdmp.streamNum); i++ {
		buf.ctx = fmt.Sprintf("reading stream directory entry %d", i)
		var stream Stream
		stream.Type = StreamType(buf.u32())
		stream.Offset, stream.RawData = readLocationDescriptor(buf)
		if buf.err != nil {
			return
		}
		mdmp.Streams = append(mdmp.Streams, stream)
	}
}

func readString(buf *minidumpBuf) string {
	startOff := buf.off
	sz := buf.u32()
	if buf.err != nil {
		return ""
	}
	end := buf.off + int(sz)
	if buf.off >= len(buf.buf) || end > len(buf.buf) {
		buf.err = fmt.Errorf("string starting at %#x of size %#x is past the end of file, while %s", startOff, sz, buf.ctx)
		return ""
	}
	return decodeUTF16(buf.buf[buf.off:end])
}

func readSystemInfo(mdmp *Minidump, buf *minidumpBuf, errp *error) {
	var si SystemInfo
	si.Arch = Arch(buf.u16())
	si.Level = buf.u16()
	si.Revision = buf.u16()
	si.NumProcessors = buf.u8()
	si.ProductType = buf.u8()
	si.MajorVersion = buf.u32()
	si.MinorVersion = buf.u32()
	si.BuildNumber = buf.u32()
	si.PlatformID = buf.u32()
	if buf.err != nil {
		*errp = buf.err
		return
	}
	mdmp.SystemInfo = &si
}

// readThreadList reads a thread list stream and adds the threads to the minidump.
func readThreadList(mdmp *Minidump, buf *minidumpBuf, errp *error) {
	threadNum := buf.u32()
	if buf.err != nil {
		*errp = buf.err
		return
	}

	mdmp.Threads = make([]Thread, 0, threadNum)

	for i := 0; i < int(threadNum); i++ {
		buf.ctx = fmt.Sprintf("reading thread list entry %d", i)
		var thread Thread

		thread.ID = buf.u32()
		thread.SuspendCount = buf.u32()
		thread.PriorityClass = buf.u32()
		thread.Priority = buf.u32()
		thread.TEB = buf.u64()
		thread.Stack = readMemoryDescriptor(buf)
		_, rawThreadContext := readLocationDescriptor(buf)
		if buf.err != nil {
			*errp = buf.err
			return
		}
		thread.Context = append([]byte(nil), rawThreadContext...)
		mdmp.Threads = append(mdmp.Threads, thread)
	}
}

// readModuleList reads a module list stream and adds the modules to the minidump.
func readModuleList(mdmp *Minidump, buf *minidumpBuf, errp *error) {
	moduleNum := buf.u32()
	if buf.err != nil {
		*errp = buf.err
		return
	}

	mdmp.Modules = make([]Module, 0, moduleNum)

	for i := 0; i < int(moduleNum); i++ {
		buf.ctx = fmt.Sprintf("reading module list entry %d", i)
		var module Module

		module.BaseOfImage = buf.u64()
		module.SizeOfImage = buf.u32()
		module.Checksum = buf.u32()
		module.TimeDateStamp = buf.u32()
		nameOff := int(buf.u32())

		vi := &module.VersionInfo
		for _, p := range []*uint32{&vi.Signature, &vi.StructVersion, &vi.FileVersionHi, &vi.FileVersionLo,
			&vi.ProductVersionHi, &vi.ProductVersionLo, &vi.FileFlagsMask, &vi.FileFlags, &vi.FileOS,
			&vi.FileType, &vi.FileSubtype, &vi.FileDateHi, &vi.FileDateLo} {
			*p = buf.u32()
		}

		_, module.CVRecord = readLocationDescriptor(buf)
		_, module.MiscRecord = readLocationDescriptor(buf)
		buf.u64() // reserved0
		buf.u64() // reserved1

		if buf.err != nil {
			*errp = buf.err
			return
		}

		nameBuf := &minidumpBuf{buf: buf.file, kind: "file", off: nameOff, ctx: buf.ctx, file: buf.file}
		module.Name = readString(nameBuf)
		if nameBuf.err != nil {
			*errp = nameBuf.err
			return
		}
		mdmp.Modules = append(mdmp.Modules, module)
	}
}

// readException reads the exception stream, describing the exception that
// caused the minidump to be written.
func readException(mdmp *Minidump, buf *minidumpBuf, errp *error) {
	var exc Exception
	exc.ThreadID = buf.u32()
	buf.u32() // alignment
	exc.Code = buf.u32()
	exc.Flags = buf.u32()
	exc.Record = buf.u64()
	exc.Address = buf.u64()
	nparams := buf.u32()
	buf.u32() // alignment
	var params [15]uint64
	for i := range params {
		params[i] = buf.u64()
	}
	_, ctx := readLocationDescriptor(buf)
	if buf.err != nil {
		*errp = buf.err
		return
	}
	if nparams > uint32(len(params)) {
		nparams = uint32(len(params))
	}
	exc.Params = append([]uint64(nil), params[:nparams]...)
	exc.Context = append([]byte(nil), ctx...)
	mdmp.Exception = &exc
}

// readMemoryList reads a _MINIDUMP_MEMORY_LIST structure.
// See: https://docs.microsoft.com/en-us/windows/desktop/api/minidumpapiset/ns-minidumpapiset-_minidump_memory_list
func readMemoryList(mdmp *Minidump, buf *minidumpBuf, errp *error, logfn func(fmt string, args ...interface{})) {
	rangesNum := buf.u32()
	for i := 0; i < int(rangesNum) && buf.err == nil; i++ {
		r := readMemoryDescriptor(buf)
		if buf.err != nil {
			break
		}
		mdmp.MemoryRanges = append(mdmp.MemoryRanges, r)
		if logfn != nil {
			logfn("\tMemory %d addr:%#x size:%#x\n", i, r.Addr, len(r.Data))
		}
	}
	if buf.err != nil {
		*errp = buf.err
	}
}

// readMemory64List reads a _MINIDUMP_MEMORY64_LIST structure, containing
// the description of the process memory.
// See: https://docs.microsoft.com/en-us/windows/desktop/api/minidumpapiset/ns-minidumpapiset-_minidump_memory64_list
// And: https://docs.microsoft.com/en-us/windows/desktop/api/minidumpapiset/ns-minidumpapiset-_minidump_memory_descriptor
func readMemory64List(mdmp *Minidump, buf *minidumpBuf, errp *error, logfn func(fmt string, args ...interface{})) {
	rangesNum := buf.u64()
	baseOff := buf.u64()
	if buf.err != nil {
		*errp = buf.err
		return
	}

	for i := uint64(0); i < rangesNum; i++ {
		addr := buf.u64()
		sz := buf.u64()
		if buf.err != nil {
			*errp = buf.err
			return
		}

		end := baseOff + sz
		if baseOff > uint64(len(buf.file)) || end > uint64(len(buf.file)) || end < baseOff {
			*errp = fmt.Errorf("memory range at %#x of size %#x is past the end of file, while %s", baseOff, sz, buf.ctx)
			return
		}

		mdmp.Memory64Ranges = append(mdmp.Memory64Ranges, MemoryRange{addr, buf.file[baseOff:end]})

		if logfn != nil {
			logfn("\tMemory %d addr:%#x size:%#x FileOffset:%#x\n", i, addr, sz, baseOff)
		}

		baseOff = end
	}
}

// readMemoryInfoList reads the MemoryInfoList stream. A malformed stream
// is not fatal, the error is returned to be reported to the callers that
// need the memory map.
func readMemoryInfoList(mdmp *Minidump, buf *minidumpBuf, logfn func(fmt string, args ...interface{})) error {
	startOff := buf.off
	size := len(buf.buf) - startOff
	if size < memoryInfoListSize {
		return ErrNoMemoryInfo
	}
	sizeOfHeader := int(buf.u32())
	sizeOfEntry := int(buf.u32())
	numEntries := buf.u64()

	if sizeOfEntry < memoryInfoEntrySize {
		return ErrMemoryInfoEntrySize
	}
	if sizeOfHeader < memoryInfoListSize || numEntries > uint64(size) || sizeOfHeader+int(numEntries)*sizeOfEntry > size {
		return ErrMemoryInfoIncomplete
	}

	buf.off = startOff + sizeOfHeader

	mdmp.MemoryInfo = make([]MemoryInfo, numEntries)

	for i := range mdmp.MemoryInfo {
		memInfo := &mdmp.MemoryInfo[i]
		startOff := buf.off

		memInfo.Addr = buf.u64()
		buf.u64() // allocation_base

		buf.u32() // allocation_protection
		buf.u32() // alignment

		memInfo.Size = buf.u64()

		memInfo.State = MemoryState(buf.u32())
		memInfo.Protection = MemoryProtection(buf.u32())
		memInfo.Type = MemoryType(buf.u32())

		if logfn != nil {
			logfn("\tMemoryInfo %d Addr:%#x Size:%#x %s %s %s\n", i, memInfo.Addr, memInfo.Size, memInfo.State, memInfo.Protection, memInfo.Type)
		}

		buf.off = startOff + sizeOfEntry
	}
	if buf.err != nil {
		mdmp.MemoryInfo = nil
		return ErrMemoryInfoIncomplete
	}
	return nil
}

// readMiscInfo reads the process_id from a MiscInfo stream, it is only
// valid if the corresponding flag is set.
func readMiscInfo(mdmp *Minidump, buf *minidumpBuf, size int) {
	if size < miscInfoSize {
		return
	}
	buf.u32() // size of info
	flags1 := buf.u32()
	pid := buf.u32()
	// there are more fields here, but we don't care about them
	if buf.err == nil && flags1&miscInfoProcessID != 0 {
		mdmp.Pid = pid
		mdmp.HasPid = true
	}
}

// readLocationDescriptor reads a location descriptor structure (a structure
// which describes a subregion of the file), and returns the destination
// offset and a slice into the minidump file's buffer.
func readLocationDescriptor(buf *minidumpBuf) (off int, rawData []byte) {
	sz := buf.u32()
	off = int(buf.u32())
	if buf.err != nil {
		return off, nil
	}
	end := off + int(sz)
	if off > len(buf.file) || end > len(buf.file) {
		buf.err = fmt.Errorf("location starting at %#x of size %#x is past the end of file, while %s", off, sz, buf.ctx)
		return 0, nil
	}
	rawData = buf.file[off:end]
	return
}

// readMemoryDescriptor reads a memory descriptor struct.
func readMemoryDescriptor(buf *minidumpBuf) MemoryRange {
	addr := buf.u64()
	_, rawData := readLocationDescriptor(buf)
	return MemoryRange{addr, rawData}
}
