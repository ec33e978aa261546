// Package symbolfile selects and drives the symbol file backend of a
// module. Backends are registered with Register and chosen per object file
// by FindPlugin.
package symbolfile

import (
	"math/bits"
	"regexp"

	"github.com/go-delve/nativedbg/pkg/objfile"
)

// Abilities is the set of things a backend can read from an object file.
type Abilities uint32

const (
	CompileUnits Abilities = 1 << iota
	LineTables
	Functions
	Blocks
	GlobalVariables
	LocalVariables
	VariableTypes

	AllAbilities = CompileUnits | LineTables | Functions | Blocks | GlobalVariables | LocalVariables | VariableTypes
)

// Count returns the number of abilities in a.
func (a Abilities) Count() int {
	return bits.OnesCount32(uint32(a & AllAbilities))
}

// Backend reads symbols from an object file.
//
// Lookups append to dst and return the extended slice, pass nil (or dst[:0])
// to get only the new results.
type Backend interface {
	Name() string
	CalculateAbilities() Abilities
	// InitializeObject is called on the backend chosen by FindPlugin.
	InitializeObject()

	NumCompileUnits() int
	ParseCompileUnitAtIndex(idx int) (*CompileUnit, error)

	ResolveSymbolContext(file string, line int, checkInlines bool, dst []SymbolContext) []SymbolContext
	FindGlobalVariables(name string, max int, dst []*Variable) []*Variable
	FindGlobalVariablesRegexp(re *regexp.Regexp, max int, dst []*Variable) []*Variable
	FindFunctions(name string, mask NameTypeMask, includeInlines bool, dst []*Function) []*Function
	FindFunctionsRegexp(re *regexp.Regexp, includeInlines bool, dst []*Function) []*Function
	FindTypes(name, parentDecl string, max int, dst []*Type) []*Type
	FindTypesByContext(ctx []CompilerContext, dst []*Type) []*Type
	GetMangledNamesForFunction(scopeQualifiedName string) []string

	ForceInlineSourceFileCheck() bool
	SetLimitSourceFileRange(file string, firstLine, lastLine int) bool
	SymbolContextShouldBeExcluded(sc *SymbolContext, actualLine int) bool
}

type sourceRange struct {
	file      string
	firstLine int
	lastLine  int
}

// Base implements every lookup of Backend as a no-op, backends embed it
// and override what they support.
type Base struct {
	Obj   *objfile.File
	Mutex *ModuleMutex

	limitSourceRanges []sourceRange
}

// NewBase returns a Base for obj, guarded by mu.
func NewBase(obj *objfile.File, mu *ModuleMutex) Base {
	return Base{Obj: obj, Mutex: mu}
}

func (b *Base) InitializeObject() {}

func (b *Base) NumCompileUnits() int { return 0 }

func (b *Base) ParseCompileUnitAtIndex(idx int) (*CompileUnit, error) { return nil, nil }

func (b *Base) ResolveSymbolContext(file string, line int, checkInlines bool, dst []SymbolContext) []SymbolContext {
	return dst
}

func (b *Base) FindGlobalVariables(name string, max int, dst []*Variable) []*Variable {
	return dst
}

func (b *Base) FindGlobalVariablesRegexp(re *regexp.Regexp, max int, dst []*Variable) []*Variable {
	return dst
}

func (b *Base) FindFunctions(name string, mask NameTypeMask, includeInlines bool, dst []*Function) []*Function {
	return dst
}

func (b *Base) FindFunctionsRegexp(re *regexp.Regexp, includeInlines bool, dst []*Function) []*Function {
	return dst
}

func (b *Base) FindTypes(name, parentDecl string, max int, dst []*Type) []*Type {
	return dst
}

func (b *Base) FindTypesByContext(ctx []CompilerContext, dst []*Type) []*Type {
	return dst
}

func (b *Base) GetMangledNamesForFunction(scopeQualifiedName string) []string {
	return nil
}

// ForceInlineSourceFileCheck returns true if breakpoints by file and line
// must look at the line tables of every compile unit, not only the units
// whose primary file matches. JIT compiled code uses #line directives
// that point at the expression source, so its line tables do not match
// the unit's own file.
func (b *Base) ForceInlineSourceFileCheck() bool {
	return b.Obj != nil && b.Obj.Type == objfile.TypeJIT
}

// SetLimitSourceFileRange restricts the lines of file that symbol contexts
// may refer to. Returns false if the range is invalid.
func (b *Base) SetLimitSourceFileRange(file string, firstLine, lastLine int) bool {
	if file == "" || firstLine > lastLine {
		return false
	}
	b.limitSourceRanges = append(b.limitSourceRanges, sourceRange{file, firstLine, lastLine})
	return true
}

// SymbolContextShouldBeExcluded returns true if the file of sc has limit
// ranges and actualLine is outside all of them.
func (b *Base) SymbolContextShouldBeExcluded(sc *SymbolContext, actualLine int) bool {
	if len(b.limitSourceRanges) == 0 {
		return false
	}
	fileMatch, lineMatch := false, false
	for _, r := range b.limitSourceRanges {
		if r.file == sc.Line.File {
			fileMatch = true
			if r.firstLine <= actualLine && actualLine <= r.lastLine {
				lineMatch = true
			}
		}
	}
	return fileMatch && !lineMatch
}
