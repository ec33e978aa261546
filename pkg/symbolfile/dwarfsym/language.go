package dwarfsym

import (
	"debug/dwarf"
	"strings"

	"github.com/go-delve/nativedbg/pkg/symbolfile"
)

// CompilerType is the language specific representation of a type.
type CompilerType interface {
	TypeName() string
	ByteSize() (uint64, bool)
	IsFunctionType() bool
	// IsObjCObjectOrInterface is true for Objective-C object and
	// interface types, which are only used through pointers.
	IsObjCObjectOrInterface() bool
	PointerType() CompilerType
}

// DIEInfo describes a type DIE to LanguageContext.TypeFromDIE.
type DIEInfo struct {
	Tag      dwarf.Tag
	Name     string
	ByteSize uint64
	HasSize  bool
	// Target is the type referenced by DW_AT_type, if any.
	Target *symbolfile.Type
}

// LanguageContext builds compiler types for the units of one language.
type LanguageContext interface {
	// IsMangledName returns true if name is a mangled type name that
	// TypeFromMangledName can resolve.
	IsMangledName(name string) bool
	TypeFromMangledName(mangled string) (CompilerType, error)
	// IsObjCSymbol returns true for mangled names of types that come
	// from Objective-C or C.
	IsObjCSymbol(mangled string) bool
	VoidFunctionType() CompilerType
	// RawPointerType returns the untyped pointer type, false if the
	// context is not usable.
	RawPointerType() (CompilerType, bool)
	// TypeFromDIE builds a type directly from the DWARF description,
	// it may return nil.
	TypeFromDIE(d DIEInfo) CompilerType
	// ClangImporter returns the importer used to bring C and
	// Objective-C types into this context, or nil.
	ClangImporter() ClangImporter
}

// ClangImporter copies types found in C and Objective-C debug information
// into a LanguageContext.
type ClangImporter interface {
	CopyType(t *symbolfile.Type) (CompilerType, bool)
	// ObjCIDType returns the generic object type "id".
	ObjCIDType() CompilerType
}

// cType is the CompilerType built by cContext.
type cType struct {
	name     string
	size     uint64
	hasSize  bool
	function bool
	objc     bool
}

func (t *cType) TypeName() string { return t.name }
func (t *cType) ByteSize() (uint64, bool) { return t.size, t.hasSize }
func (t *cType) IsFunctionType() bool { return t.function }
func (t *cType) IsObjCObjectOrInterface() bool { return t.objc }
func (t *cType) PointerType() CompilerType { return &cType{name: t.name + " *", size: 8, hasSize: true} }

// cContext builds types from the DWARF description alone. It is the
// context of C family units and the fallback for languages without a
// registered context.
type cContext struct{}

func (cContext) IsMangledName(name string) bool { return false }

func (cContext) TypeFromMangledName(mangled string) (CompilerType, error) {
	return nil, nil
}

func (cContext) IsObjCSymbol(mangled string) bool { return false }

func (cContext) VoidFunctionType() CompilerType {
	return &cType{name: "void (void)", function: true}
}

func (cContext) RawPointerType() (CompilerType, bool) {
	return &cType{name: "void *", size: 8, hasSize: true}, true
}

func (cContext) ClangImporter() ClangImporter { return nil }

func (cContext) TypeFromDIE(d DIEInfo) CompilerType {
	target := "void"
	if d.Target != nil {
		target = d.Target.Name
	}
	t := &cType{name: d.Name, size: d.ByteSize, hasSize: d.HasSize}
	switch d.Tag {
	case dwarf.TagBaseType, dwarf.TagTypedef, dwarf.TagUnspecifiedType:
		if d.Tag == dwarf.TagTypedef && d.Target != nil && !d.HasSize {
			t.size, t.hasSize = d.Target.ByteSize, d.Target.HasByteSize
		}
	case dwarf.TagStructType, dwarf.TagUnionType, dwarf.TagClassType, dwarf.TagEnumerationType:
		if t.name == "" {
			t.name = "(anonymous)"
		}
		switch d.Tag {
		case dwarf.TagStructType:
			t.name = "struct " + t.name
		case dwarf.TagUnionType:
			t.name = "union " + t.name
		case dwarf.TagEnumerationType:
			t.name = "enum " + t.name
		}
	case dwarf.TagPointerType:
		t.name = pointerName(target, "*")
	case dwarf.TagReferenceType:
		t.name = pointerName(target, "&")
	case dwarf.TagConstType:
		t.name = "const " + target
		t.size, t.hasSize = targetSize(d)
	case dwarf.TagVolatileType:
		t.name = "volatile " + target
		t.size, t.hasSize = targetSize(d)
	case dwarf.TagArrayType:
		t.name = target + "[]"
	case dwarf.TagSubroutineType, dwarf.TagSubprogram, dwarf.TagInlinedSubroutine:
		t.name = target + " (void)"
		if d.Tag != dwarf.TagSubroutineType && d.Name != "" {
			t.name = target + " " + d.Name + "(void)"
		}
		t.function = true
	default:
		return nil
	}
	return t
}

func pointerName(target, sigil string) string {
	if strings.HasSuffix(target, "*") || strings.HasSuffix(target, "&") {
		return target + sigil
	}
	return target + " " + sigil
}

func targetSize(d DIEInfo) (uint64, bool) {
	if d.Target == nil {
		return 0, false
	}
	return d.Target.ByteSize, d.Target.HasByteSize
}
