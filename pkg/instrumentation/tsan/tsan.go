// Package tsan implements the instrumentation runtime plugin for
// ThreadSanitizer. When the runtime is loaded in the target a breakpoint is
// set on the function the runtime calls for every report. When it is hit
// the report is copied out of the target by evaluating an expression and
// attached to the stop of the reporting thread.
package tsan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-delve/nativedbg/pkg/instrumentation"
	"github.com/go-delve/nativedbg/pkg/logflags"
	"github.com/go-delve/nativedbg/pkg/proc"
	"github.com/go-delve/nativedbg/pkg/settings"
	"github.com/go-delve/nativedbg/pkg/symbolfile"
)

const (
	PluginName = "ThreadSanitizer"

	runtimeLibPrefix     = "libclang_rt.tsan_"
	currentReportSymbol  = "__tsan_get_current_report"
	onReportSymbol       = "__tsan_on_report"
	defaultReportTimeout = 2000000 // µs

	// maxTraceLen is REPORT_TRACE_SIZE of the injected expression.
	maxTraceLen     = 128
	maxStringLength = 4096
)

func init() {
	instrumentation.Register(PluginName, "ThreadSanitizer instrumentation runtime plugin.", instrumentation.TypeThreadSanitizer, func(t proc.Target) instrumentation.Runtime {
		return New(t)
	})
}

// Runtime is the ThreadSanitizer plugin of a target.
type Runtime struct {
	target proc.Target
	// Out receives the messages for the user, it may be nil.
	Out io.Writer

	mu            sync.Mutex
	active        bool
	module        *proc.Module
	breakpointID  proc.BreakpointID
	hasBreakpoint bool
}

var _ instrumentation.Runtime = &Runtime{}

// New returns an inactive plugin for target.
func New(target proc.Target) *Runtime {
	return &Runtime{target: target}
}

func (r *Runtime) Type() instrumentation.Type { return instrumentation.TypeThreadSanitizer }

func (r *Runtime) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Runtime) printf(format string, args ...interface{}) {
	if r.Out != nil {
		fmt.Fprintf(r.Out, format, args...)
	}
}

// CheckIfRuntimeIsValid returns true if m exports the report API of the
// runtime.
func (r *Runtime) CheckIfRuntimeIsValid(m *proc.Module) bool {
	if m.Obj == nil {
		return false
	}
	_, ok := m.Obj.LookupSymbol(currentReportSymbol)
	return ok
}

// ModulesDidLoad looks for the runtime in the executable and in the
// runtime shared library and activates the plugin when found.
func (r *Runtime) ModulesDidLoad(mods []*proc.Module) {
	if r.IsActive() {
		return
	}
	r.mu.Lock()
	found := r.module != nil
	if !found {
		for _, m := range mods {
			if m.Path == "" {
				continue
			}
			if !m.IsExecutable() && !strings.HasPrefix(m.BaseName(), runtimeLibPrefix) {
				continue
			}
			if r.CheckIfRuntimeIsValid(m) {
				r.module = m
				found = true
				break
			}
		}
	}
	r.mu.Unlock()
	if !found {
		return
	}
	if err := r.Activate(); err != nil {
		logflags.TSanLogger().Errorf("could not activate: %v", err)
	}
}

// Activate sets the internal breakpoint on the report callback of the
// runtime.
func (r *Runtime) Activate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return nil
	}
	if r.module == nil || r.module.Obj == nil {
		return errors.New("runtime module not loaded")
	}
	sym, ok := r.module.Obj.LookupSymbol(onReportSymbol)
	if !ok || !sym.Code {
		return fmt.Errorf("could not find %s in %s", onReportSymbol, r.module.Path)
	}
	addr := sym.Addr + r.module.Bias

	id, err := r.target.CreateInternalBreakpoint(addr, r.NotifyBreakpointHit)
	if err != nil {
		return err
	}
	r.breakpointID = id
	r.hasBreakpoint = true
	r.active = true
	logflags.TSanLogger().WithField("addr", fmt.Sprintf("%#x", addr)).Debugf("report breakpoint set")
	r.printf("ThreadSanitizer debugger support is active.\n")
	return nil
}

// Deactivate removes the report breakpoint.
func (r *Runtime) Deactivate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasBreakpoint {
		if err := r.target.RemoveBreakpoint(r.breakpointID); err != nil {
			logflags.TSanLogger().Errorf("could not remove report breakpoint: %v", err)
		}
		r.hasBreakpoint = false
	}
	r.active = false
}

func (r *Runtime) runtimeModule() *proc.Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.module
}

func reportTimeout() time.Duration {
	us := settings.Global().GetUInt(settings.TSanReportTimeout, defaultReportTimeout)
	return time.Duration(us) * time.Microsecond
}

// RetrieveReportData copies the current report out of the target, it
// returns nil if the report expression could not be evaluated.
func (r *Runtime) RetrieveReportData(ctx context.Context) instrumentation.Dictionary {
	ev := r.target.Evaluator()
	if ev == nil {
		return nil
	}
	v, err := ev.Evaluate(ctx, retrieveReportDataCommand, proc.EvaluateOptions{
		UnwindOnError:     true,
		TryAllThreads:     true,
		StopOthers:        true,
		IgnoreBreakpoints: true,
		Timeout:           reportTimeout(),
		Prefix:            retrieveReportDataPrefix,
		Language:          symbolfile.LanguageCPlusPlus,
	})
	if err != nil || v == nil {
		if err == nil {
			err = errors.New("no result")
		}
		logflags.TSanLogger().WithError(err).Errorf("cannot evaluate report expression")
		r.printf("Warning: Cannot evaluate ThreadSanitizer expression:\n%s\n", err)
		return nil
	}

	mem := r.target
	return instrumentation.Dictionary{
		"instrumentation_class": PluginName,
		"issue_type":            readString(mem, v, "description"),
		"report_count":          uintAt(v, "report_count"),
		"sleep_trace":           stackTrace(v, "sleep_trace"),
		"stacks": structuredArray(v, "stacks", "stack_count", func(o proc.ValueObject, d instrumentation.Dictionary) {
			d["index"] = uintAt(o, "idx")
			d["trace"] = stackTrace(o, "trace")
		}),
		"mops": structuredArray(v, "mops", "mop_count", func(o proc.ValueObject, d instrumentation.Dictionary) {
			d["index"] = uintAt(o, "idx")
			d["thread_id"] = uintAt(o, "tid")
			d["size"] = uintAt(o, "size")
			d["is_write"] = uintAt(o, "write") != 0
			d["is_atomic"] = uintAt(o, "atomic") != 0
			d["address"] = uintAt(o, "addr")
			d["trace"] = stackTrace(o, "trace")
		}),
		"locs": structuredArray(v, "locs", "loc_count", func(o proc.ValueObject, d instrumentation.Dictionary) {
			d["index"] = uintAt(o, "idx")
			d["type"] = readString(mem, o, "type")
			d["address"] = uintAt(o, "addr")
			d["start"] = uintAt(o, "start")
			d["size"] = uintAt(o, "size")
			d["thread_id"] = uintAt(o, "tid")
			d["file_descriptor"] = uintAt(o, "fd")
			d["suppressable"] = uintAt(o, "suppressable")
			d["trace"] = stackTrace(o, "trace")
		}),
		"mutexes": structuredArray(v, "mutexes", "mutex_count", func(o proc.ValueObject, d instrumentation.Dictionary) {
			d["index"] = uintAt(o, "idx")
			d["mutex_id"] = uintAt(o, "mutex_id")
			d["address"] = uintAt(o, "addr")
			d["destroyed"] = uintAt(o, "destroyed")
			d["trace"] = stackTrace(o, "trace")
		}),
		"threads": structuredArray(v, "threads", "thread_count", func(o proc.ValueObject, d instrumentation.Dictionary) {
			d["index"] = uintAt(o, "idx")
			d["thread_id"] = uintAt(o, "tid")
			d["process_id"] = uintAt(o, "pid")
			d["running"] = uintAt(o, "running")
			d["name"] = readString(mem, o, "name")
			d["parent_thread_id"] = uintAt(o, "parent_tid")
			d["trace"] = stackTrace(o, "trace")
		}),
		"unique_tids": structuredArray(v, "unique_tids", "unique_tid_count", func(o proc.ValueObject, d instrumentation.Dictionary) {
			d["index"] = uintAt(o, "idx")
			d["tid"] = uintAt(o, "tid")
		}),
	}
}

func uintAt(v proc.ValueObject, path string) uint64 {
	if c := v.ChildAtPath(path); c != nil {
		return c.Uint(0)
	}
	return 0
}

// stackTrace returns the program counters of the trace at path, up to
// the first zero.
func stackTrace(v proc.ValueObject, path string) []uint64 {
	trace := []uint64{}
	t := v.ChildAtPath(path)
	if t == nil {
		return trace
	}
	n := t.Len()
	if n > maxTraceLen {
		n = maxTraceLen
	}
	for i := 0; i < n; i++ {
		e := t.Index(i)
		if e == nil {
			break
		}
		pc := e.Uint(0)
		if pc == 0 {
			break
		}
		trace = append(trace, pc)
	}
	return trace
}

func structuredArray(v proc.ValueObject, items, count string, fill func(o proc.ValueObject, d instrumentation.Dictionary)) []instrumentation.Dictionary {
	r := []instrumentation.Dictionary{}
	n := uintAt(v, count)
	objs := v.ChildAtPath(items)
	if objs == nil {
		return r
	}
	for i := 0; i < int(n) && i < objs.Len(); i++ {
		o := objs.Index(i)
		if o == nil {
			break
		}
		d := instrumentation.Dictionary{}
		fill(o, d)
		r = append(r, d)
	}
	return r
}

func readString(t proc.Target, v proc.ValueObject, path string) string {
	ptr := uintAt(v, path)
	if ptr == 0 {
		return ""
	}
	s, err := proc.ReadCStringFromMemory(t, ptr, maxStringLength)
	if err != nil {
		logflags.TSanLogger().Debugf("reading string at %#x: %v", ptr, err)
	}
	return s
}

// NotifyBreakpointHit is the callback of the report breakpoint. It
// retrieves the report and sets the stop reason of thread.
func (r *Runtime) NotifyBreakpointHit(thread proc.Thread) bool {
	report := r.RetrieveReportData(context.Background())
	var stopDescription string
	if report != nil {
		description := FormatDescription(report)
		report["description"] = description
		stopDescription = description + " detected"
		report["stop_description"] = stopDescription
		report["summary"] = r.GenerateSummary(report)
		report["memory_address"] = GetMainRacyAddress(report)
		report["location_description"] = r.GetLocationDescription(report)
		logflags.TSanLogger().WithFields(logflags.Fields{
			"issue":   report.String("issue_type"),
			"summary": report.String("summary"),
		}).Infof("report received")
	}

	if thread == nil {
		return false
	}
	si := &proc.StopInfo{Reason: proc.StopInstrumentation, Description: stopDescription}
	if report != nil {
		si.Extended = report
	}
	thread.Common().SetStopInfo(si)
	r.printf("ThreadSanitizer report breakpoint hit. Use 'thread info -s' to get extended information about the report.\n")
	return true
}
