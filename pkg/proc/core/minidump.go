package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"github.com/go-delve/nativedbg/pkg/logflags"
	"github.com/go-delve/nativedbg/pkg/objfile"
	"github.com/go-delve/nativedbg/pkg/proc"
	"github.com/go-delve/nativedbg/pkg/proc/core/minidump"
	"github.com/go-delve/nativedbg/pkg/settings"
)

// Sizes of the CONTEXT structure saved for each thread.
const (
	amd64ContextSize = 1232
	x86ContextSize   = 716
)

const (
	// offset of TlsSlots[1] in the 64bit TEB
	teb64TLSSlot1 = 0x1480 + 8
	// the 32bit CONTEXT of a wow64 thread follows a ULONG in the structure
	// pointed to by TlsSlots[1]
	wow64ContextOffset = 4
)

// ErrNoMemoryInfo is returned by MemoryRegionInfo when the core file does
// not contain memory region information.
var ErrNoMemoryInfo = minidump.ErrNoMemoryInfo

// OpenMinidump opens the minidump file at path.
func OpenMinidump(path string) (*Process, error) {
	var logfn func(string, ...interface{})
	if logflags.Minidump() {
		logfn = logflags.MinidumpLogger().Debugf
	}

	mdmp, err := minidump.Open(path, logfn)
	if err != nil {
		var notAMinidump minidump.ErrNotAMinidump
		if errors.As(err, &notAMinidump) {
			return nil, ErrUnrecognizedFormat
		}
		return nil, err
	}

	p := &Process{
		path: path,
		mdmp: mdmp,
		arch: minidumpArch(mdmp.SystemInfo),
		byID: make(map[int]*Thread),
	}
	if mdmp.HasPid {
		p.pid = int(mdmp.Pid)
	}
	p.loadModules()
	p.loadThreads()
	p.RefreshStateAfterStop()

	logflags.MinidumpLogger().WithFields(logflags.Fields{
		"path":    path,
		"arch":    p.arch,
		"wow64":   p.wow64,
		"threads": len(p.threads),
		"modules": len(p.modules),
	}).Debugf("minidump loaded")
	return p, nil
}

func minidumpArch(si *minidump.SystemInfo) string {
	if si == nil {
		return "unknown"
	}
	switch si.Arch {
	case minidump.CpuArchitectureX86:
		if si.Level == 6 {
			return "i686-pc-windows"
		}
		return "i386-pc-windows"
	case minidump.CpuArchitectureAMD64:
		return "x86_64-pc-windows"
	}
	return "unknown"
}

// windowsBase returns the last element of a Windows path.
func windowsBase(path string) string {
	if i := strings.LastIndexAny(path, `\/`); i >= 0 {
		return path[i+1:]
	}
	return path
}

func (p *Process) loadModules() {
	log := logflags.MinidumpLogger()
	lookup := settings.Global().GetBool(settings.SymbolsEnableExternalLookup, true)
	for _, m := range p.mdmp.Modules {
		if strings.EqualFold(windowsBase(m.Name), "wow64.dll") {
			log.Debugf("minidump is for a WOW64 process")
			p.wow64 = true
		}
		mod := &proc.Module{Path: m.Name, Base: m.BaseOfImage, Size: uint64(m.SizeOfImage)}
		if lookup {
			mod.Obj = openModule(m.Name)
		}
		if mod.Obj != nil {
			mod.Bias = m.BaseOfImage - mod.Obj.ImageBase
		}
		p.modules = append(p.modules, mod)
	}
}

// openModule opens the symbol file of a module if it exists on this
// system.
func openModule(path string) *objfile.File {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	obj, err := objfile.Open(path)
	if err != nil {
		logflags.MinidumpLogger().Debugf("could not open module %s: %v", path, err)
		return nil
	}
	return obj
}

func (p *Process) contextSize() int {
	if strings.HasPrefix(p.arch, "x86_64") {
		return amd64ContextSize
	}
	return x86ContextSize
}

func (p *Process) loadThreads() {
	for i := range p.mdmp.Threads {
		mt := &p.mdmp.Threads[i]
		th := &Thread{ID: int(mt.ID), TEB: mt.TEB}
		if len(mt.Context) >= p.contextSize() {
			th.Context = mt.Context
			if p.wow64 {
				if ctx, ok := p.wow64Context(mt.TEB); ok {
					th.Context = ctx
				}
			}
		}
		p.threads = append(p.threads, th)
		p.byID[th.ID] = th
	}
	if len(p.threads) > 0 {
		p.currentThread = p.threads[0]
	}
}

// wow64Context returns the 32bit CONTEXT of a thread of a wow64 process,
// saved in the structure pointed to by the second TLS slot of its 64bit
// TEB.
func (p *Process) wow64Context(teb uint64) ([]byte, bool) {
	var slot [8]byte
	if n, _ := p.ReadMemory(slot[:], teb+teb64TLSSlot1); n != len(slot) {
		return nil, false
	}
	addr := binary.LittleEndian.Uint64(slot[:])
	r, ok := p.mdmp.FindMemoryRange(addr)
	if !ok {
		return nil, false
	}
	off := addr - r.Addr + wow64ContextOffset
	if off >= uint64(len(r.Data)) || uint64(len(r.Data))-off < x86ContextSize {
		return nil, false
	}
	return r.Data[off : off+x86ContextSize], true
}

// MemoryRegionInfo returns the memory region containing addr, as described
// by the memory info list of the minidump. An address outside of every
// region is reported as an unmapped region ending at the start of the next
// one.
func (p *Process) MemoryRegionInfo(addr uint64) (proc.MemoryRegion, error) {
	if p.mdmp == nil {
		return proc.MemoryRegion{}, fmt.Errorf("core file %s is closed", p.path)
	}
	if p.mdmp.MemoryInfoErr != nil {
		return proc.MemoryRegion{}, p.mdmp.MemoryInfoErr
	}

	var next *minidump.MemoryInfo
	for i := range p.mdmp.MemoryInfo {
		mi := &p.mdmp.MemoryInfo[i]
		head, tail := mi.Addr, mi.Addr+mi.Size
		if head <= addr && addr < tail {
			r := proc.MemoryRegion{
				Base:       head,
				End:        tail,
				Readable:   mi.Protection.Readable(),
				Writable:   mi.Protection.Writable(),
				Executable: mi.Protection.Executable(),
				Mapped:     mi.State != minidump.MemoryStateFree,
			}
			if !r.Mapped {
				r.Base = addr
			}
			return r, nil
		}
		if head > addr && (next == nil || head < next.Addr) {
			next = mi
		}
	}

	r := proc.MemoryRegion{Base: addr, End: proc.InvalidAddress}
	if next != nil {
		r.End = next.Addr
	}
	return r, nil
}

// RefreshStateAfterStop selects the thread that raised the exception saved
// in the minidump and sets its stop reason.
func (p *Process) RefreshStateAfterStop() {
	if p.mdmp == nil || p.mdmp.Exception == nil {
		return
	}
	exc := p.mdmp.Exception
	th, ok := p.byID[int(exc.ThreadID)]
	if !ok {
		logflags.MinidumpLogger().Errorf("exception thread %#x not found", exc.ThreadID)
		return
	}
	p.currentThread = th
	th.common.SetStopInfo(&proc.StopInfo{
		Reason:      proc.StopException,
		Description: fmt.Sprintf("Exception %s encountered at address %s", formatHex(uint64(exc.Code), 8), formatHex(exc.Address, 8)),
	})
}

// formatHex formats v in hexadecimal with a 0x prefix, padded with zeroes
// to width characters, prefix included.
func formatHex(v uint64, width int) string {
	return fmt.Sprintf("0x%0*x", width-2, v)
}

// ExceptionInstruction decodes the instruction at the address of the
// exception saved in the minidump and returns it in Intel syntax.
func (p *Process) ExceptionInstruction() (string, error) {
	if p.mdmp == nil || p.mdmp.Exception == nil {
		return "", errors.New("no exception")
	}
	mode := 32
	if strings.HasPrefix(p.arch, "x86_64") && !p.wow64 {
		mode = 64
	}
	if p.arch == "unknown" {
		return "", fmt.Errorf("can not decode instructions of unknown architecture")
	}
	pc := p.mdmp.Exception.Address
	buf := make([]byte, 15)
	n, err := p.ReadMemory(buf, pc)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("memory at %#x not saved in the core file", pc)
	}
	inst, err := x86asm.Decode(buf[:n], mode)
	if err != nil {
		return "", err
	}
	return x86asm.IntelSyntax(inst, pc, p.symbolName), nil
}

func (p *Process) symbolName(addr uint64) (string, uint64) {
	for _, m := range p.modules {
		if !m.Contains(addr) {
			continue
		}
		if sym, ok := m.SymbolAt(addr); ok {
			return sym.Name, sym.Addr + m.Bias
		}
	}
	return "", 0
}

// CocoaStoragePointer returns the address of the storage of a Cocoa
// container from its tagged pointer.
func CocoaStoragePointer(p uint64) uint64 {
	// for some reason the MSB needs to be zeroed out; figure out why.
	return p & 0x00FFFFFFFFFFFFFF
}
