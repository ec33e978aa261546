package minidump

import (
	"fmt"
	"strings"
)

// MemoryState is the type of the State field of MINIDUMP_MEMORY_INFO
type MemoryState uint32

const (
	MemoryStateCommit  MemoryState = 0x1000
	MemoryStateReserve MemoryState = 0x2000
	MemoryStateFree    MemoryState = 0x10000
)

func (s MemoryState) String() string {
	switch s {
	case MemoryStateCommit:
		return "MemoryStateCommit"
	case MemoryStateReserve:
		return "MemoryStateReserve"
	case MemoryStateFree:
		return "MemoryStateFree"
	}
	return fmt.Sprintf("MemoryState(%#x)", uint32(s))
}

// MemoryType is the type of the Type field of MINIDUMP_MEMORY_INFO
type MemoryType uint32

const (
	MemoryTypePrivate MemoryType = 0x20000
	MemoryTypeMapped  MemoryType = 0x40000
	MemoryTypeImage   MemoryType = 0x1000000
)

func (t MemoryType) String() string {
	switch t {
	case MemoryTypePrivate:
		return "MemoryTypePrivate"
	case MemoryTypeMapped:
		return "MemoryTypeMapped"
	case MemoryTypeImage:
		return "MemoryTypeImage"
	}
	return fmt.Sprintf("MemoryType(%#x)", uint32(t))
}

// MemoryProtection is the type of the Protection field of MINIDUMP_MEMORY_INFO
type MemoryProtection uint32

const (
	MemoryProtectNoAccess         MemoryProtection = 0x01 // PAGE_NOACCESS
	MemoryProtectReadOnly         MemoryProtection = 0x02 // PAGE_READONLY
	MemoryProtectReadWrite        MemoryProtection = 0x04 // PAGE_READWRITE
	MemoryProtectWriteCopy        MemoryProtection = 0x08 // PAGE_WRITECOPY
	MemoryProtectExecute          MemoryProtection = 0x10 // PAGE_EXECUTE
	MemoryProtectExecuteRead      MemoryProtection = 0x20 // PAGE_EXECUTE_READ
	MemoryProtectExecuteReadWrite MemoryProtection = 0x40 // PAGE_EXECUTE_READWRITE
	MemoryProtectExecuteWriteCopy MemoryProtection = 0x80 // PAGE_EXECUTE_WRITECOPY
	// These options can be combined with the previous flags
	MemoryProtectPageGuard    MemoryProtection = 0x100 // PAGE_GUARD
	MemoryProtectNoCache      MemoryProtection = 0x200 // PAGE_NOCACHE
	MemoryProtectWriteCombine MemoryProtection = 0x400 // PAGE_WRITECOMBINE
)

const (
	readableProtections   = MemoryProtectReadOnly | MemoryProtectReadWrite | MemoryProtectWriteCopy | MemoryProtectExecuteRead | MemoryProtectExecuteReadWrite | MemoryProtectExecuteWriteCopy
	writableProtections   = MemoryProtectReadWrite | MemoryProtectWriteCopy | MemoryProtectExecuteReadWrite | MemoryProtectExecuteWriteCopy
	executableProtections = MemoryProtectExecute | MemoryProtectExecuteRead | MemoryProtectExecuteReadWrite | MemoryProtectExecuteWriteCopy
)

func (p MemoryProtection) Readable() bool { return p&readableProtections != 0 }

func (p MemoryProtection) Writable() bool { return p&writableProtections != 0 }

func (p MemoryProtection) Executable() bool { return p&executableProtections != 0 }

var memoryProtectionNames = []struct {
	p    MemoryProtection
	name string
}{
	{MemoryProtectNoAccess, "NoAccess"},
	{MemoryProtectReadOnly, "ReadOnly"},
	{MemoryProtectReadWrite, "ReadWrite"},
	{MemoryProtectWriteCopy, "WriteCopy"},
	{MemoryProtectExecute, "Execute"},
	{MemoryProtectExecuteRead, "ExecuteRead"},
	{MemoryProtectExecuteReadWrite, "ExecuteReadWrite"},
	{MemoryProtectExecuteWriteCopy, "ExecuteWriteCopy"},
	{MemoryProtectPageGuard, "PageGuard"},
	{MemoryProtectNoCache, "NoCache"},
	{MemoryProtectWriteCombine, "WriteCombine"},
}

func (p MemoryProtection) String() string {
	var names []string
	rest := p
	for _, n := range memoryProtectionNames {
		if p&n.p != 0 {
			names = append(names, n.name)
			rest &^= n.p
		}
	}
	if rest != 0 || len(names) == 0 {
		names = append(names, fmt.Sprintf("%#x", uint32(rest)))
	}
	return "MemoryProtect" + strings.Join(names, "|")
}

// FileFlags is the type of the Flags field of MINIDUMP_HEADER
type FileFlags uint64

const (
	FileNormal                          FileFlags = 0x00000000
	FileWithDataSegs                    FileFlags = 0x00000001
	FileWithFullMemory                  FileFlags = 0x00000002
	FileWithHandleData                  FileFlags = 0x00000004
	FileFilterMemory                    FileFlags = 0x00000008
	FileScanMemory                      FileFlags = 0x00000010
	FileWithUnloadedModules             FileFlags = 0x00000020
	FileWithIncorrectlyReferencedMemory FileFlags = 0x00000040
	FileFilterModulePaths               FileFlags = 0x00000080
	FileWithProcessThreadData           FileFlags = 0x00000100
	FileWithPrivateReadWriteMemory      FileFlags = 0x00000200
	FileWithoutOptionalData             FileFlags = 0x00000400
	FileWithFullMemoryInfo              FileFlags = 0x00000800
	FileWithThreadInfo                  FileFlags = 0x00001000
	FileWithCodeSegs                    FileFlags = 0x00002000
	FileWithoutAuxilliarySegs           FileFlags = 0x00004000
	FileWithFullAuxilliaryState         FileFlags = 0x00008000
	FileWithPrivateCopyMemory           FileFlags = 0x00010000
	FileIgnoreInaccessibleMemory        FileFlags = 0x00020000
	FileWithTokenInformation            FileFlags = 0x00040000
)

var fileFlagNames = []string{
	"FileWithDataSegs",
	"FileWithFullMemory",
	"FileWithHandleData",
	"FileFilterMemory",
	"FileScanMemory",
	"FileWithUnloadedModules",
	"FileWithIncorrectlyReferencedMemory",
	"FileFilterModulePaths",
	"FileWithProcessThreadData",
	"FileWithPrivateReadWriteMemory",
	"FileWithoutOptionalData",
	"FileWithFullMemoryInfo",
	"FileWithThreadInfo",
	"FileWithCodeSegs",
	"FileWithoutAuxilliarySegs",
	"FileWithFullAuxilliaryState",
	"FileWithPrivateCopyMemory",
	"FileIgnoreInaccessibleMemory",
	"FileWithTokenInformation",
}

func (flags FileFlags) String() string {
	if flags == FileNormal {
		return "FileNormal"
	}
	out := []byte{}
	for i, name := range fileFlagNames {
		if flags&(1<<uint(i)) == 0 {
			continue
		}
		if len(out) > 0 {
			out = append(out, '|')
		}
		out = append(out, name...)
	}
	if rest := flags >> uint(len(fileFlagNames)); rest != 0 {
		if len(out) > 0 {
			out = append(out, '|')
		}
		out = append(out, fmt.Sprintf("%#x", uint64(rest<<uint(len(fileFlagNames))))...)
	}
	return string(out)
}

// StreamType is the type of the StreamType field of MINIDUMP_DIRECTORY
type StreamType uint32

const (
	UnusedStream              StreamType = 0
	ReservedStream0           StreamType = 1
	ReservedStream1           StreamType = 2
	ThreadListStream          StreamType = 3
	ModuleListStream          StreamType = 4
	MemoryListStream          StreamType = 5
	ExceptionStream           StreamType = 6
	SystemInfoStream          StreamType = 7
	ThreadExListStream        StreamType = 8
	Memory64ListStream        StreamType = 9
	CommentStreamA            StreamType = 10
	CommentStreamW            StreamType = 11
	HandleDataStream          StreamType = 12
	FunctionTableStream       StreamType = 13
	UnloadedModuleStream      StreamType = 14
	MiscInfoStream            StreamType = 15
	MemoryInfoListStream      StreamType = 16
	ThreadInfoListStream      StreamType = 17
	HandleOperationListStream StreamType = 18
	TokenStream               StreamType = 19
	JavascriptDataStream      StreamType = 20
	SystemMemoryInfoStream    StreamType = 21
	ProcessVMCounterStream    StreamType = 22
)

var streamTypeNames = [...]string{
	"UnusedStream", "ReservedStream0", "ReservedStream1", "ThreadListStream",
	"ModuleListStream", "MemoryListStream", "ExceptionStream", "SystemInfoStream",
	"ThreadExListStream", "Memory64ListStream", "CommentStreamA", "CommentStreamW",
	"HandleDataStream", "FunctionTableStream", "UnloadedModuleStream", "MiscInfoStream",
	"MemoryInfoListStream", "ThreadInfoListStream", "HandleOperationListStream", "TokenStream",
	"JavascriptDataStream", "SystemMemoryInfoStream", "ProcessVMCounterStream",
}

func (t StreamType) String() string {
	if int(t) < len(streamTypeNames) {
		return streamTypeNames[t]
	}
	return fmt.Sprintf("StreamType(%d)", uint32(t))
}

// Arch is the type of the ProcessorArchitecture field of MINIDUMP_SYSTEM_INFO.
type Arch uint16

const (
	CpuArchitectureX86     Arch = 0
	CpuArchitectureMips    Arch = 1
	CpuArchitectureAlpha   Arch = 2
	CpuArchitecturePPC     Arch = 3
	CpuArchitectureSHX     Arch = 4 // Super-H
	CpuArchitectureARM     Arch = 5
	CpuArchitectureIA64    Arch = 6
	CpuArchitectureAlpha64 Arch = 7
	CpuArchitectureMSIL    Arch = 8 // Microsoft Intermediate Language
	CpuArchitectureAMD64   Arch = 9
	CpuArchitectureWoW64   Arch = 10
	CpuArchitectureARM64   Arch = 12
	CpuArchitectureUnknown Arch = 0xffff
)

var archNames = map[Arch]string{
	CpuArchitectureX86:     "x86",
	CpuArchitectureMips:    "mips",
	CpuArchitectureAlpha:   "alpha",
	CpuArchitecturePPC:     "ppc",
	CpuArchitectureSHX:     "shx",
	CpuArchitectureARM:     "arm",
	CpuArchitectureIA64:    "ia64",
	CpuArchitectureAlpha64: "alpha64",
	CpuArchitectureMSIL:    "msil",
	CpuArchitectureAMD64:   "amd64",
	CpuArchitectureWoW64:   "wow64",
	CpuArchitectureARM64:   "arm64",
	CpuArchitectureUnknown: "unknown",
}

func (a Arch) String() string {
	if s, ok := archNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Arch(%d)", uint16(a))
}
