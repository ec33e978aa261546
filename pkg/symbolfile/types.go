package symbolfile

import (
	"fmt"

	"github.com/go-delve/nativedbg/pkg/dwarf/macro"
)

// Language is a source language, numbered like DW_AT_language.
type Language uint16

const (
	LanguageUnknown      Language = 0
	LanguageC89          Language = 0x1
	LanguageC            Language = 0x2
	LanguageCPlusPlus    Language = 0x4
	LanguageC99          Language = 0xc
	LanguageObjC         Language = 0x10
	LanguageObjCPlusPlus Language = 0x11
	LanguageGo           Language = 0x16
	LanguageRust         Language = 0x1c
	LanguageC11          Language = 0x1d
	LanguageSwift        Language = 0x1e
)

var languageNames = map[Language]string{
	LanguageC89:          "c89",
	LanguageC:            "c",
	LanguageCPlusPlus:    "c++",
	LanguageC99:          "c99",
	LanguageObjC:         "objective-c",
	LanguageObjCPlusPlus: "objective-c++",
	LanguageGo:           "go",
	LanguageRust:         "rust",
	LanguageC11:          "c11",
	LanguageSwift:        "swift",
}

func (l Language) String() string {
	if s, ok := languageNames[l]; ok {
		return s
	}
	if l == LanguageUnknown {
		return "unknown"
	}
	return fmt.Sprintf("language(%#x)", uint16(l))
}

// IsCFamily returns true for C, C++ and Objective-C dialects.
func (l Language) IsCFamily() bool {
	switch l {
	case LanguageC89, LanguageC, LanguageC99, LanguageC11, LanguageCPlusPlus, LanguageObjC, LanguageObjCPlusPlus:
		return true
	}
	return false
}

// Declaration is a source location.
type Declaration struct {
	File   string
	Line   int
	Column int
}

func (d Declaration) IsValid() bool {
	return d.File != "" || d.Line != 0 || d.Column != 0
}

func (d Declaration) String() string {
	switch {
	case d.Column != 0:
		return fmt.Sprintf("%s:%d:%d", d.File, d.Line, d.Column)
	case d.Line != 0:
		return fmt.Sprintf("%s:%d", d.File, d.Line)
	}
	return d.File
}

// LineEntry is a row of a line table.
type LineEntry struct {
	Addr   uint64
	File   string
	Line   int
	Column int
	IsStmt bool
}

// CompileUnit is a compile unit of a symbol file.
type CompileUnit struct {
	// ID identifies the unit in its backend, for DWARF it is the unit
	// offset.
	ID       uint64
	Index    int
	Name     string
	CompDir  string
	Producer string
	Language Language

	SupportFiles []string
	LineTable    []LineEntry
	// Macros is the list of macros defined by the unit, nil if the unit
	// has no macro information.
	Macros *macro.List

	Functions []*Function
}

// Range is an address range [Low, High).
type Range struct {
	Low, High uint64
}

// Function is a function (or inlined function instance).
type Function struct {
	ID          uint64
	Name        string
	MangledName string

	// Range spans every address range of a discontiguous function.
	Range Range
	// Section is the name of the section containing the entry point.
	Section   string
	FrameBase []byte
	// CanThrow is set when the function declares thrown types.
	CanThrow bool
	Inlined  bool
	Decl     Declaration
	CU       *CompileUnit
}

// DisplayName returns the name shown to the user.
func (fn *Function) DisplayName() string {
	if fn.Name != "" {
		return fn.Name
	}
	return fn.MangledName
}

// EncodingKind says how the compiler type of a Type was obtained.
type EncodingKind uint8

const (
	EncodingInvalid EncodingKind = iota
	EncodingIsUID
	EncodingIsForward
	EncodingFull
)

// ResolveState is how complete the compiler type of a Type is.
type ResolveState uint8

const (
	ResolveStateUnresolved ResolveState = iota
	ResolveStateForward
	ResolveStateFull
)

// Type is a type read from a symbol file.
type Type struct {
	ID          uint64
	Name        string
	MangledName string
	ByteSize    uint64
	HasByteSize bool
	Encoding    EncodingKind
	Resolve     ResolveState
	Decl        Declaration
	// Handle is the language specific representation of the type.
	Handle interface{}
	// FixedBuffer is set for types stored inline in a fixed size value
	// buffer.
	FixedBuffer bool
}

// Variable is a global or static variable.
type Variable struct {
	ID          uint64
	Name        string
	MangledName string
	Location    []byte
	External    bool
	Decl        Declaration
	CU          *CompileUnit
}

// SymbolContext is the result of a symbol lookup.
type SymbolContext struct {
	CU       *CompileUnit
	Function *Function
	Line     LineEntry
	Symbol   *Symbol
}

// Symbol is a symbol table entry.
type Symbol struct {
	Name string
	Addr uint64
	Size uint64
	Code bool
}

// NameTypeMask selects which names are matched by FindFunctions.
type NameTypeMask uint32

const (
	NameTypeNone NameTypeMask = 0
	// NameTypeFull matches fully qualified and mangled names.
	NameTypeFull NameTypeMask = 1 << iota
	// NameTypeBase matches the last component of qualified names.
	NameTypeBase
	// NameTypeMethod matches functions declared inside a type.
	NameTypeMethod
	NameTypeAuto = NameTypeFull | NameTypeBase
)

// CompilerContextKind is the kind of a component of a declaration context
// path.
type CompilerContextKind uint16

const (
	ContextInvalid   CompilerContextKind = 0
	ContextNamespace CompilerContextKind = 1 << iota
	ContextStructure
	ContextUnion
	ContextClass
	ContextEnumeration
	ContextTypedef
	ContextFunction
	ContextVariable
	// ContextAnyType matches any kind of type.
	ContextAnyType = ContextStructure | ContextUnion | ContextClass | ContextEnumeration | ContextTypedef
)

// CompilerContext is a component of a declaration context path, for
// example {ContextNamespace, "std"}.
type CompilerContext struct {
	Kind CompilerContextKind
	Name string
}
