package dwarfsym

import (
	"debug/dwarf"
	"strings"

	"github.com/go-delve/nativedbg/pkg/dwarf/unit"
	"github.com/go-delve/nativedbg/pkg/logflags"
	"github.com/go-delve/nativedbg/pkg/symbolfile"
)

const (
	// fixedBufferName is the name of the wrapper DIE around values stored
	// inline in an existential container.
	fixedBufferName = "$swift.fixedbuffer"
	// rawPointerPrefix starts the mangled name of Builtin.RawPointer.
	rawPointerPrefix = "$sBp"
)

func unitLanguage(u *unit.Unit) symbolfile.Language {
	lang, _ := u.Uint(0, dwarf.AttrLanguage)
	return symbolfile.Language(lang)
}

// ParseTypeFromDWARF builds the type described by the DIE at i. Types with
// a mangled name are built by the language context of the unit and cached
// by mangled name, other types are built from their DWARF description.
func (s *SymbolFile) ParseTypeFromDWARF(u *unit.Unit, i int) *symbolfile.Type {
	d := u.DIE(i)
	if d == nil {
		return nil
	}
	if t, ok := s.dieToType[d.Offset]; ok {
		if t == DIEIsBeingParsed {
			return nil
		}
		return t
	}

	log := logflags.DWARFLogger()
	ctx := s.languageContext(unitLanguage(u))
	cu := s.unitCU(u)

	var (
		decl         symbolfile.Declaration
		name         string
		mangled      string
		size         uint64
		hasSize      bool
		typeRef      = -1
		typeRefUnit  *unit.Unit
		fields, ferr = u.Fields(i)
	)
	if ferr != nil {
		log.Errorf("DIE at %#x: %v", d.Offset, ferr)
	}
	decl = declaration(u, i, cu)
	for _, f := range fields {
		switch f.Attr {
		case dwarf.AttrName:
			name, _ = f.Val.(string)
		case dwarf.AttrLinkageName, unit.AttrMIPSLinkageName:
			mangled, _ = f.Val.(string)
		case dwarf.AttrByteSize:
			switch v := f.Val.(type) {
			case uint64:
				size, hasSize = v, true
			case int64:
				size, hasSize = uint64(v), true
			}
		case dwarf.AttrType:
			typeRefUnit, typeRef, _ = s.resolveRef(u, i, dwarf.AttrType)
		}
	}

	if mangled == "" && name != "" {
		if name == fixedBufferName {
			return s.fixedBufferType(u, i)
		}
		if ctx.IsMangledName(name) {
			mangled = name
		}
	}

	var (
		ct        CompilerType
		preferred string
		isClang   bool
	)
	if mangled != "" {
		if s.typeCache != nil {
			if v, ok := s.typeCache.Get(mangled); ok {
				t := v.(*symbolfile.Type)
				s.dieToType[d.Offset] = t
				return t
			}
		}
		s.dieToType[d.Offset] = DIEIsBeingParsed
		var err error
		ct, err = ctx.TypeFromMangledName(mangled)
		if err != nil {
			log.Debugf("could not resolve type %s: %v", mangled, err)
		}
	}

	if ct == nil && mangled != "" && ctx.IsObjCSymbol(mangled) {
		imp := ctx.ClangImporter()
		if imp == nil {
			delete(s.dieToType, d.Offset)
			return nil
		}
		if found := s.clangTypes(u, i); len(found) > 0 {
			if c, ok := imp.CopyType(found[0]); ok && c != nil {
				ct = c
				if ct.IsObjCObjectOrInterface() {
					ct = ct.PointerType()
				}
			}
		}
		if ct == nil {
			// Types that can not be found in any module are only used
			// through pointers.
			ct = imp.ObjCIDType()
			preferred = mangled
		}
		isClang = true
	}

	if ct == nil && name != "" && d.Tag == dwarf.TagTypedef && typeRef >= 0 &&
		strings.HasPrefix(typeRefUnit.Name(typeRef), rawPointerPrefix) {
		rp, ok := ctx.RawPointerType()
		if !ok {
			log.Errorf("empty language context while resolving %s", name)
			delete(s.dieToType, d.Offset)
			return nil
		}
		ct = rp
		preferred = name
	}

	if ct == nil {
		s.dieToType[d.Offset] = DIEIsBeingParsed
		info := DIEInfo{Tag: d.Tag, Name: name, ByteSize: size, HasSize: hasSize}
		if typeRef >= 0 {
			info.Target = s.ParseTypeFromDWARF(typeRefUnit, typeRef)
		}
		ct = ctx.TypeFromDIE(info)
	}

	switch d.Tag {
	case dwarf.TagSubprogram, dwarf.TagInlinedSubroutine, dwarf.TagSubroutineType:
		if ct == nil || !ct.IsFunctionType() {
			ct = ctx.VoidFunctionType()
		}
	}

	var t *symbolfile.Type
	if ct != nil {
		t = &symbolfile.Type{
			ID:          d.Offset,
			Name:        preferred,
			MangledName: mangled,
			Encoding:    symbolfile.EncodingIsUID,
			Decl:        decl,
			Handle:      ct,
		}
		if t.Name == "" {
			t.Name = ct.TypeName()
		}
		if isClang {
			t.ByteSize, t.HasByteSize = size, hasSize
			t.Resolve = symbolfile.ResolveStateForward
		} else {
			t.ByteSize, t.HasByteSize = ct.ByteSize()
			t.Resolve = symbolfile.ResolveStateFull
		}
		if mangled != "" && ctx.IsMangledName(mangled) && s.typeCache != nil {
			s.typeCache.Add(mangled, t)
		}
	}
	s.dieToType[d.Offset] = t
	return t
}

// fixedBufferType returns a copy of the type of the first child of the DIE
// at i, flagged as stored in a fixed buffer.
func (s *SymbolFile) fixedBufferType(u *unit.Unit, i int) *symbolfile.Type {
	children := u.Children(i)
	if len(children) == 0 {
		return nil
	}
	tu, ti, ok := s.resolveRef(u, children[0], dwarf.AttrType)
	if !ok {
		return nil
	}
	wrapped := s.ParseTypeFromDWARF(tu, ti)
	if wrapped == nil {
		return nil
	}
	t := *wrapped
	t.FixedBuffer = true
	return &t
}

// clangTypes searches the external modules, then this file, for the C
// declaration of the type at i.
func (s *SymbolFile) clangTypes(u *unit.Unit, i int) []*symbolfile.Type {
	ctx := s.declContext(u, i)
	if len(ctx) == 0 {
		return nil
	}
	// The DWARF tag of the imported declaration is not known.
	ctx[len(ctx)-1].Kind = symbolfile.ContextAnyType
	for _, m := range s.ExternalModules {
		if r := m.FindTypesByContext(ctx); len(r) > 0 {
			return r
		}
	}
	return s.FindTypesByContext(ctx, nil)
}

func contextKind(tag dwarf.Tag) symbolfile.CompilerContextKind {
	switch tag {
	case dwarf.TagNamespace:
		return symbolfile.ContextNamespace
	case dwarf.TagStructType:
		return symbolfile.ContextStructure
	case dwarf.TagUnionType:
		return symbolfile.ContextUnion
	case dwarf.TagClassType:
		return symbolfile.ContextClass
	case dwarf.TagEnumerationType:
		return symbolfile.ContextEnumeration
	case dwarf.TagTypedef:
		return symbolfile.ContextTypedef
	case dwarf.TagBaseType, dwarf.TagUnspecifiedType:
		return symbolfile.ContextAnyType
	case dwarf.TagSubprogram:
		return symbolfile.ContextFunction
	case dwarf.TagVariable:
		return symbolfile.ContextVariable
	}
	return symbolfile.ContextInvalid
}

// declContext returns the declaration context path of the DIE at i,
// outermost component first, ending with the DIE itself.
func (s *SymbolFile) declContext(u *unit.Unit, i int) []symbolfile.CompilerContext {
	var r []symbolfile.CompilerContext
	for j := i; j > 0; j = int(u.DIE(j).Parent) {
		d := u.DIE(j)
		if d == nil {
			break
		}
		kind := contextKind(d.Tag)
		if kind == symbolfile.ContextInvalid {
			if j == i {
				return nil
			}
			continue
		}
		r = append(r, symbolfile.CompilerContext{Kind: kind, Name: u.Name(j)})
	}
	for l, h := 0, len(r)-1; l < h; l, h = l+1, h-1 {
		r[l], r[h] = r[h], r[l]
	}
	return r
}

// qualifier returns the "::" separated names of the namespaces and types
// enclosing the DIE at i.
func qualifier(u *unit.Unit, i int) string {
	var parts []string
	for j := int(u.DIE(i).Parent); j > 0; j = int(u.DIE(j).Parent) {
		switch u.DIE(j).Tag {
		case dwarf.TagNamespace, dwarf.TagStructType, dwarf.TagClassType, dwarf.TagUnionType, dwarf.TagEnumerationType:
			name := u.Name(j)
			if name == "" {
				name = "(anonymous namespace)"
			}
			parts = append(parts, name)
		}
	}
	for l, h := 0, len(parts)-1; l < h; l, h = l+1, h-1 {
		parts[l], parts[h] = parts[h], parts[l]
	}
	return strings.Join(parts, "::")
}
