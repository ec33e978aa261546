package proc

// Process represents the target of the debugger. This
// target could be a live process, a minidump, etc.
type Process interface {
	Info
	MemoryReader

	// MemoryRegionInfo returns the region of the address space containing
	// addr. Addresses outside of any known region are reported as an
	// unmapped region extending to the next known one.
	MemoryRegionInfo(addr uint64) (MemoryRegion, error)

	// AddExtendedThread adds a synthetic thread, for example a history
	// thread, to the process. The process keeps it until it is detached.
	AddExtendedThread(th Thread)
	ExtendedThreads() []Thread

	Detach(kill bool) error
}

// Info is an interface that provides general information on the target.
type Info interface {
	Pid() int
	// Arch returns the target triple of the process, "unknown" if it
	// could not be determined.
	Arch() string
	Modules() []*Module

	ThreadInfo
}

// ThreadInfo is an interface for getting information on the threads
// of the process.
type ThreadInfo interface {
	FindThread(threadID int) (Thread, bool)
	// ThreadList returns the threads in the order the process reports
	// them.
	ThreadList() []Thread
	CurrentThread() Thread
}

// Thread represents a thread.
type Thread interface {
	ThreadID() int
	Name() string
	// Common returns the CommonThread structure for this thread
	Common() *CommonThread
}
