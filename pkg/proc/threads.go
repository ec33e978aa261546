package proc

import "strings"

// StopReason describes the reason why a thread is stopped.
type StopReason uint8

const (
	StopNone StopReason = iota
	StopBreakpoint
	StopException
	// StopInstrumentation is the reason of threads stopped by an
	// instrumentation runtime reporting an issue.
	StopInstrumentation
)

// String maps StopReason to string representation.
func (sr StopReason) String() string {
	switch sr {
	case StopNone:
		return "none"
	case StopBreakpoint:
		return "breakpoint"
	case StopException:
		return "exception"
	case StopInstrumentation:
		return "instrumentation"
	default:
		return ""
	}
}

// StopInfo describes why a thread stopped.
type StopInfo struct {
	Reason      StopReason
	Description string
	// Extended is the structured report attached by the plugin that
	// stopped the thread, if any.
	Extended map[string]interface{}
}

// CommonThread contains fields used by all thread implementations.
type CommonThread struct {
	stopInfo *StopInfo
}

// StopInfo returns the reason the thread stopped, nil if it did not.
func (t *CommonThread) StopInfo() *StopInfo {
	return t.stopInfo
}

func (t *CommonThread) SetStopInfo(si *StopInfo) {
	t.stopInfo = si
}

// HistoryThread is a synthetic thread whose only content is a recorded
// stack trace.
type HistoryThread struct {
	ID int
	// ThreadName describes the event the trace was recorded for.
	ThreadName string
	// PCs are the program counters of the trace, innermost first.
	PCs []uint64

	common CommonThread
}

// NewHistoryThread returns a history thread for trace, the first
// character of name is uppercased.
func NewHistoryThread(id int, name string, trace []uint64) *HistoryThread {
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return &HistoryThread{ID: id, ThreadName: name, PCs: trace}
}

func (t *HistoryThread) ThreadID() int { return t.ID }

func (t *HistoryThread) Name() string { return t.ThreadName }

func (t *HistoryThread) Common() *CommonThread { return &t.common }
