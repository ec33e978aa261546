package symbolfile

import (
	"regexp"

	"github.com/go-delve/nativedbg/pkg/objfile"
)

// symtab is the fallback backend: it only knows the functions and globals
// of the symbol table.
type symtab struct {
	Base
}

func newSymtab(obj *objfile.File, mu *ModuleMutex) Backend {
	return &symtab{Base: NewBase(obj, mu)}
}

func (s *symtab) Name() string { return "symtab" }

func (s *symtab) CalculateAbilities() Abilities {
	var a Abilities
	for i := range s.Obj.Symbols {
		if s.Obj.Symbols[i].Code {
			a |= Functions
		} else {
			a |= GlobalVariables
		}
	}
	return a
}

func (s *symtab) function(sym *objfile.Symbol) *Function {
	fn := &Function{ID: sym.Addr, Name: sym.Name, Range: Range{sym.Addr, sym.Addr + sym.Size}}
	if sect, ok := s.Obj.SectionContaining(sym.Addr); ok {
		fn.Section = sect.Name
	}
	return fn
}

func (s *symtab) FindFunctions(name string, mask NameTypeMask, includeInlines bool, dst []*Function) []*Function {
	s.Mutex.AssertHeld()
	if sym, ok := s.Obj.LookupSymbol(name); ok && sym.Code {
		dst = append(dst, s.function(sym))
	}
	return dst
}

func (s *symtab) FindFunctionsRegexp(re *regexp.Regexp, includeInlines bool, dst []*Function) []*Function {
	s.Mutex.AssertHeld()
	for i := range s.Obj.Symbols {
		if sym := &s.Obj.Symbols[i]; sym.Code && re.MatchString(sym.Name) {
			dst = append(dst, s.function(sym))
		}
	}
	return dst
}

func (s *symtab) FindGlobalVariables(name string, max int, dst []*Variable) []*Variable {
	s.Mutex.AssertHeld()
	if sym, ok := s.Obj.LookupSymbol(name); ok && !sym.Code {
		dst = append(dst, &Variable{ID: sym.Addr, Name: sym.Name, External: true})
	}
	return dst
}

func (s *symtab) FindGlobalVariablesRegexp(re *regexp.Regexp, max int, dst []*Variable) []*Variable {
	s.Mutex.AssertHeld()
	n := 0
	for i := range s.Obj.Symbols {
		if max > 0 && n >= max {
			break
		}
		if sym := &s.Obj.Symbols[i]; !sym.Code && re.MatchString(sym.Name) {
			dst = append(dst, &Variable{ID: sym.Addr, Name: sym.Name, External: true})
			n++
		}
	}
	return dst
}
