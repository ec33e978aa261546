package proc

import (
	"context"
	"errors"
	"time"

	"github.com/go-delve/nativedbg/pkg/symbolfile"
)

// Target represents the process being debugged along with the services
// plugins use to inspect it.
type Target interface {
	Process() Process

	// SymbolicatePC returns the name of the symbol containing pc and the
	// path of its module, empty if pc is not inside a known module.
	SymbolicatePC(pc uint64) (symbol, module string)

	// CreateInternalBreakpoint sets a breakpoint, not visible to the
	// user, calling cb every time it is hit. The thread stopped by the
	// breakpoint is resumed if cb returns false.
	CreateInternalBreakpoint(addr uint64, cb BreakpointCallback) (BreakpointID, error)
	RemoveBreakpoint(id BreakpointID) error

	Evaluator() Evaluator
}

// BreakpointID identifies a breakpoint of the target.
type BreakpointID int

// BreakpointCallback is called when an internal breakpoint is hit by
// thread.
type BreakpointCallback func(thread Thread) (stop bool)

// ErrTimeout is returned by Evaluate when the expression did not complete
// within EvaluateOptions.Timeout.
var ErrTimeout = errors.New("expression evaluation timed out")

// EvaluateOptions control the evaluation of an expression.
type EvaluateOptions struct {
	UnwindOnError     bool
	TryAllThreads     bool
	StopOthers        bool
	IgnoreBreakpoints bool
	Timeout           time.Duration
	// Prefix is source text compiled before the expression.
	Prefix   string
	Language symbolfile.Language
}

// Evaluator evaluates expressions in the current frame of the target.
type Evaluator interface {
	Evaluate(ctx context.Context, expr string, opts EvaluateOptions) (ValueObject, error)
}

// ValueObject is the result of an expression.
type ValueObject interface {
	// ChildAtPath returns the descendant at the dot separated path of
	// member names, nil if there isn't one.
	ChildAtPath(path string) ValueObject
	// Uint returns the value as an unsigned integer, fail if it is not a
	// scalar.
	Uint(fail uint64) uint64
	// Len returns the number of children of an array value.
	Len() int
	Index(i int) ValueObject
}

// ReadCStringFromMemory is ReadCString on the memory of t.
func ReadCStringFromMemory(t Target, addr uint64, max int) (string, error) {
	return ReadCString(t.Process(), addr, max)
}
