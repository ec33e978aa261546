package unit

import (
	"debug/dwarf"
	"errors"

	"github.com/go-delve/nativedbg/pkg/dwarf/util"
)

// AbbrevAttr is an attribute specification of an abbreviation.
type AbbrevAttr struct {
	Attr dwarf.Attr
	Form Form
	// ImplicitConst is the value of DW_FORM_implicit_const attributes.
	ImplicitConst int64
}

// Abbrev is an abbreviation declaration.
type Abbrev struct {
	Code        uint64
	Tag         dwarf.Tag
	HasChildren bool
	Attrs       []AbbrevAttr
}

// AbbrevTable is the set of abbreviations starting at an offset of
// .debug_abbrev.
type AbbrevTable struct {
	Offset uint64
	byCode map[uint64]*Abbrev
	// Abbrevs holds the declarations in the order they appear.
	Abbrevs []Abbrev
}

// Lookup returns the declaration for code.
func (t *AbbrevTable) Lookup(code uint64) (*Abbrev, bool) {
	a, ok := t.byCode[code]
	return a, ok
}

var errNoAbbrev = errors.New("No abbrev exists at the specified offset.")

// ParseAbbrevTable reads the abbreviation table at off.
func ParseAbbrevTable(abbrev []byte, off uint64) (*AbbrevTable, error) {
	if len(abbrev) == 0 {
		return nil, errors.New("No debug_abbrev data")
	}
	if off >= uint64(len(abbrev)) {
		return nil, errNoAbbrev
	}
	b := util.MakeBuf(".debug_abbrev", abbrev, off)
	t := &AbbrevTable{Offset: off, byCode: make(map[uint64]*Abbrev)}
	for b.Len() > 0 {
		code := b.ULEB()
		if code == 0 {
			break
		}
		a := Abbrev{Code: code, Tag: dwarf.Tag(b.ULEB()), HasChildren: b.U8() != 0}
		for {
			attr, form := b.ULEB(), Form(b.ULEB())
			if b.Err != nil || (attr == 0 && form == 0) {
				break
			}
			aa := AbbrevAttr{Attr: dwarf.Attr(attr), Form: form}
			if form == FormImplicitConst {
				aa.ImplicitConst = b.SLEB()
			}
			a.Attrs = append(a.Attrs, aa)
		}
		if b.Err != nil {
			return nil, b.Err
		}
		t.Abbrevs = append(t.Abbrevs, a)
	}
	if b.Err != nil {
		return nil, b.Err
	}
	if len(t.Abbrevs) == 0 {
		return nil, errNoAbbrev
	}
	for i := range t.Abbrevs {
		t.byCode[t.Abbrevs[i].Code] = &t.Abbrevs[i]
	}
	return t, nil
}
