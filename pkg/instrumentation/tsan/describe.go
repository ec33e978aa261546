package tsan

import (
	"fmt"

	"github.com/go-delve/nativedbg/pkg/instrumentation"
	"github.com/go-delve/nativedbg/pkg/proc"
)

var issueDescriptions = map[string]string{
	"data-race":                "Data race",
	"data-race-vptr":           "Data race on C++ virtual pointer",
	"heap-use-after-free":      "Use of deallocated memory",
	"heap-use-after-free-vptr": "Use of deallocated C++ virtual pointer",
	"thread-leak":              "Thread leak",
	"locked-mutex-destroy":     "Destruction of a locked mutex",
	"mutex-double-lock":        "Double lock of a mutex",
	"mutex-invalid-access":     "Use of an invalid mutex (e.g. uninitialized or destroyed)",
	"mutex-bad-unlock":         "Unlock of an unlocked mutex (or by a wrong thread)",
	"mutex-bad-read-lock":      "Read lock of a write locked mutex",
	"mutex-bad-read-unlock":    "Read unlock of a write locked mutex",
	"signal-unsafe-call":       "Signal-unsafe call inside a signal handler",
	"errno-in-signal-handler":  "Overwrite of errno in a signal handler",
	"lock-order-inversion":     "Lock order inversion (potential deadlock)",
}

// FormatDescription returns the human readable description of the issue
// type of report. Unknown issue types are returned unchanged.
func FormatDescription(report instrumentation.Dictionary) string {
	typ := report.String("issue_type")
	if d, ok := issueDescriptions[typ]; ok {
		return d
	}
	return typ
}

// firstNonRuntimePC returns the first frame of trace that doesn't belong
// to the runtime module.
func (r *Runtime) firstNonRuntimePC(trace []uint64) uint64 {
	rt := r.runtimeModule()
	for _, pc := range trace {
		_, mod := r.target.SymbolicatePC(pc)
		if mod == "" {
			continue
		}
		if rt != nil && mod == rt.Path {
			continue
		}
		return pc
	}
	return 0
}

// GenerateSummary returns a one line summary of report: the description,
// the function where the issue happened and the location involved.
func (r *Runtime) GenerateSummary(report instrumentation.Dictionary) string {
	summary := FormatDescription(report)

	var pc uint64
	if mops := report.Array("mops"); len(mops) > 0 {
		pc = r.firstNonRuntimePC(mops[0].Trace("trace"))
	}
	if stacks := report.Array("stacks"); len(stacks) > 0 {
		pc = r.firstNonRuntimePC(stacks[0].Trace("trace"))
	}
	if pc != 0 {
		sym, _ := r.target.SymbolicatePC(pc)
		summary += " in " + sym
	}

	if locs := report.Array("locs"); len(locs) > 0 {
		loc := locs[0]
		addr := loc.Uint("address")
		if addr == 0 {
			addr = loc.Uint("start")
		}
		if addr != 0 {
			summary += fmt.Sprintf(" at %#x", addr)
		} else if fd := loc.Uint("file_descriptor"); fd != 0 {
			summary += fmt.Sprintf(" on file descriptor %d", fd)
		}
	}
	return summary
}

// GetMainRacyAddress returns the lowest address accessed by the memory
// operations of report, 0 if there are none.
func GetMainRacyAddress(report instrumentation.Dictionary) uint64 {
	var result uint64
	for i, mop := range report.Array("mops") {
		addr := mop.Uint("address")
		if i == 0 || addr < result {
			result = addr
		}
	}
	return result
}

// GetLocationDescription describes the first location of report.
func (r *Runtime) GetLocationDescription(report instrumentation.Dictionary) string {
	locs := report.Array("locs")
	if len(locs) == 0 {
		return ""
	}
	loc := locs[0]
	switch loc.String("type") {
	case "global":
		sym, _ := r.target.SymbolicatePC(loc.Uint("address"))
		return fmt.Sprintf("Location is a global '%s'", sym)
	case "heap":
		return fmt.Sprintf("Location is a %d-byte heap object at %#x", loc.Uint("size"), loc.Uint("start"))
	case "stack":
		return fmt.Sprintf("Location is stack of thread %d", loc.Uint("thread_id"))
	case "tls":
		return fmt.Sprintf("Location is TLS of thread %d", loc.Uint("thread_id"))
	case "fd":
		return fmt.Sprintf("Location is file descriptor %d", loc.Uint("file_descriptor"))
	}
	return ""
}

// GenerateThreadName returns the name of the history thread showing the
// trace of o, an entry of the array path of report.
func GenerateThreadName(path string, o, report instrumentation.Dictionary) string {
	switch path {
	case "mops":
		kind := "read"
		if o.Bool("is_write") {
			kind = "write"
		}
		if o.Bool("is_atomic") {
			kind = "atomic " + kind
		}
		return fmt.Sprintf("%s of size %d at %#x by thread %d", kind, o.Uint("size"), o.Uint("address"), o.Uint("thread_id"))
	case "threads":
		return fmt.Sprintf("thread %d created by thread %d at", o.Uint("thread_id"), o.Uint("parent_thread_id"))
	case "locs":
		switch o.String("type") {
		case "heap":
			return fmt.Sprintf("Heap block allocated by thread %d at", o.Uint("thread_id"))
		case "fd":
			return fmt.Sprintf("File descriptor %d created by thread %d at", o.Uint("file_descriptor"), o.Uint("thread_id"))
		}
	case "mutexes":
		return fmt.Sprintf("mutex M%d created at", o.Uint("mutex_id"))
	case "stacks":
		return "happened at"
	}
	return "additional information"
}

// AddThreadsForPath appends to threads a history thread for every entry of
// the array path of report that has a trace. The threads are registered
// with the process as extended threads.
func (r *Runtime) AddThreadsForPath(path string, report instrumentation.Dictionary, threads []proc.Thread) []proc.Thread {
	p := r.target.Process()
	for _, o := range report.Array(path) {
		trace := o.Trace("trace")
		if len(trace) == 0 {
			continue
		}
		th := proc.NewHistoryThread(int(o.Uint("thread_id")), GenerateThreadName(path, o, report), trace)
		if p != nil {
			p.AddExtendedThread(th)
		}
		threads = append(threads, th)
	}
	return threads
}

// GetBacktracesFromExtendedStopInfo returns the history threads of a
// report attached to a stop.
func (r *Runtime) GetBacktracesFromExtendedStopInfo(info instrumentation.Dictionary) []proc.Thread {
	if info.String("instrumentation_class") != PluginName {
		return nil
	}
	var threads []proc.Thread
	for _, path := range []string{"stacks", "mops", "locs", "mutexes", "threads"} {
		threads = r.AddThreadsForPath(path, info, threads)
	}
	return threads
}
