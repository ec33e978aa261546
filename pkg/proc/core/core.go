package core

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-delve/nativedbg/pkg/proc"
	"github.com/go-delve/nativedbg/pkg/proc/core/minidump"
)

var (
	// ErrWriteCore is returned when attempting to write to the core
	// process memory.
	ErrWriteCore = errors.New("can not write to core process")

	// ErrContinueCore is returned when trying to continue execution of a core process.
	ErrContinueCore = errors.New("can not continue execution of core process")
)

type openFn func(string) (*Process, error)

var openFns = []openFn{OpenMinidump}

// ErrUnrecognizedFormat is returned when the core file is not recognized as
// any of the supported formats.
var ErrUnrecognizedFormat = errors.New("unrecognized core format")

// OpenCore opens the core file at path, trying every supported format.
func OpenCore(path string) (*Process, error) {
	for _, openFn := range openFns {
		p, err := openFn(path)
		if err != ErrUnrecognizedFormat {
			return p, err
		}
	}
	return nil, ErrUnrecognizedFormat
}

// Process represents a core file.
type Process struct {
	path  string
	mdmp  *minidump.Minidump
	pid   int
	arch  string
	wow64 bool

	modules       []*proc.Module
	threads       []*Thread
	byID          map[int]*Thread
	currentThread *Thread

	mu       sync.Mutex
	extended []proc.Thread
}

var _ proc.Process = &Process{}

// Thread represents a thread in the core file being debugged.
type Thread struct {
	ID  int
	TEB uint64
	// Context is the raw CONTEXT record of the thread, nil if the core
	// file does not contain a complete one.
	Context []byte

	common proc.CommonThread
}

var _ proc.Thread = &Thread{}

func (t *Thread) ThreadID() int { return t.ID }

func (t *Thread) Name() string { return "" }

// Common returns the CommonThread struct.
func (t *Thread) Common() *proc.CommonThread { return &t.common }

// Pid returns the process ID, 0 if the core file does not record it.
func (p *Process) Pid() int { return p.pid }

// Arch returns the target triple of the process.
func (p *Process) Arch() string { return p.arch }

// IsWow64 returns true if the core file is of a 32bit process captured
// on a 64bit system.
func (p *Process) IsWow64() bool { return p.wow64 }

func (p *Process) Modules() []*proc.Module { return p.modules }

// ThreadList returns the threads in the order they are saved in the core
// file.
func (p *Process) ThreadList() []proc.Thread {
	r := make([]proc.Thread, 0, len(p.threads))
	for _, th := range p.threads {
		r = append(r, th)
	}
	return r
}

// FindThread will return the thread with the corresponding thread ID.
func (p *Process) FindThread(threadID int) (proc.Thread, bool) {
	t, ok := p.byID[threadID]
	return t, ok
}

// CurrentThread returns the current active thread.
func (p *Process) CurrentThread() proc.Thread {
	if p.currentThread == nil {
		return nil
	}
	return p.currentThread
}

func (p *Process) AddExtendedThread(th proc.Thread) {
	p.mu.Lock()
	p.extended = append(p.extended, th)
	p.mu.Unlock()
}

func (p *Process) ExtendedThreads() []proc.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]proc.Thread(nil), p.extended...)
}

// ReadMemory copies the memory saved at addr into buf. The read stops at
// the end of the saved range containing addr, the number of bytes copied
// is returned. Reading an address not saved in the core file copies
// nothing.
func (p *Process) ReadMemory(buf []byte, addr uint64) (int, error) {
	if p.mdmp == nil {
		return 0, fmt.Errorf("core file %s is closed", p.path)
	}
	r, ok := p.mdmp.FindMemoryRange(addr)
	if !ok {
		return 0, nil
	}
	return copy(buf, r.Data[addr-r.Addr:]), nil
}

// WriteMemory implements the write half of a memory accessor, it always
// fails.
func (p *Process) WriteMemory(addr uint64, data []byte) (int, error) {
	return 0, ErrWriteCore
}

// FindMemoryRange returns true if addr is inside a range of memory saved
// in the core file.
func (p *Process) FindMemoryRange(addr uint64) bool {
	if p.mdmp == nil {
		return false
	}
	_, ok := p.mdmp.FindMemoryRange(addr)
	return ok
}

// Continue always fails, a core file can not be resumed.
func (p *Process) Continue() error {
	return ErrContinueCore
}

// Detach releases the core file, kill is ignored.
func (p *Process) Detach(kill bool) error {
	return p.Close()
}

// Close unmaps the core file.
func (p *Process) Close() error {
	if p.mdmp == nil {
		return nil
	}
	err := p.mdmp.Close()
	p.mdmp = nil
	p.mu.Lock()
	p.extended = nil
	p.mu.Unlock()
	return err
}
