// Package macro reads the macro information of .debug_macro (DWARF 5 and
// the GNU extension to DWARF 4) and .debug_macinfo (DWARF 2 to 4).
package macro

import (
	"fmt"
	"io"

	"github.com/go-delve/nativedbg/pkg/dwarf/util"
)

// Kind is the kind of a macro entry.
type Kind uint8

const (
	Invalid Kind = iota
	Define
	Undef
	StartFile
	EndFile
	// Indirect entries splice another list, produced by imports.
	Indirect
)

func (k Kind) String() string {
	switch k {
	case Define:
		return "DW_MACINFO_define"
	case Undef:
		return "DW_MACINFO_undef"
	case StartFile:
		return "DW_MACINFO_start_file"
	case EndFile:
		return "DW_MACINFO_end_file"
	case Indirect:
		return "DW_MACRO_import"
	}
	return "DW_MACINFO_invalid"
}

// Entry is a macro entry. Text is the macro definition, "NAME value" or
// "NAME(args) value", for Define and the name for Undef.
type Entry struct {
	Kind      Kind
	Line      uint64
	FileIndex uint64
	Text      string
	Indirect  *List
}

// List is the list of macro entries of a compile unit, or of an imported
// unit.
type List struct {
	Offset  uint64
	Entries []Entry
}

// Len returns the number of entries in l, a nil list has none.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Entries)
}

// .debug_macro opcodes.
const (
	macroEnd        = 0x00
	macroDefine     = 0x01
	macroUndef      = 0x02
	macroStartFile  = 0x03
	macroEndFile    = 0x04
	macroDefineStrp = 0x05
	macroUndefStrp  = 0x06
	macroImport     = 0x07
	macroDefineSup  = 0x08
	macroUndefSup   = 0x09
	macroImportSup  = 0x0a
	macroDefineStrx = 0x0b
	macroUndefStrx  = 0x0c
)

// .debug_macinfo types.
const (
	macinfoVendorExt = 0xff
)

const (
	flagOffsetSize64    = 1 << 0
	flagDebugLineOffset = 1 << 1
	flagOpcodeTable     = 1 << 2
)

// ParseMacro reads the .debug_macro unit at off, str is the contents of
// .debug_str and is used to resolve strp entries. Imported units are parsed
// recursively into Indirect entries.
func ParseMacro(data []byte, off uint64, str []byte) (*List, error) {
	return parseMacro(data, off, str, map[uint64]*List{})
}

func parseMacro(data []byte, off uint64, str []byte, seen map[uint64]*List) (*List, error) {
	if l := seen[off]; l != nil {
		return l, nil
	}
	l := &List{Offset: off}
	seen[off] = l

	b := util.MakeBuf(".debug_macro", data, off)
	version := b.U16()
	if b.Err == nil && (version < 4 || version > 5) {
		return nil, &util.DecodeError{Section: ".debug_macro", Offset: off, Msg: fmt.Sprintf("unsupported version %d", version)}
	}
	flags := b.U8()
	b.Format64 = flags&flagOffsetSize64 != 0
	if flags&flagDebugLineOffset != 0 {
		b.Offset()
	}
	// forms of the operands of vendor opcodes
	operands := map[uint8][]uint8{}
	if flags&flagOpcodeTable != 0 {
		n := int(b.U8())
		for i := 0; i < n && b.Err == nil; i++ {
			opcode := b.U8()
			forms := b.Bytes(int(b.ULEB()))
			operands[opcode] = forms
		}
	}

	for b.Err == nil {
		opcode := b.U8()
		var e Entry
		switch opcode {
		case macroEnd:
			return l, b.Err
		case macroDefine, macroUndef:
			e.Line = b.ULEB()
			e.Text = b.CString()
		case macroDefineStrp, macroUndefStrp:
			e.Line = b.ULEB()
			e.Text, _ = util.CStringAt(str, b.Offset())
		case macroDefineSup, macroUndefSup:
			// the supplementary object file is not read, the entry keeps
			// an empty text
			e.Line = b.ULEB()
			b.Offset()
		case macroDefineStrx, macroUndefStrx:
			// str_offsets_base is a property of the compile unit and is
			// not known here
			e.Line = b.ULEB()
			b.ULEB()
		case macroStartFile:
			e.Line = b.ULEB()
			e.FileIndex = b.ULEB()
		case macroEndFile:
		case macroImport:
			target := b.Offset()
			sub, err := parseMacro(data, target, str, seen)
			if err != nil {
				return nil, err
			}
			e.Indirect = sub
		case macroImportSup:
			b.Offset()
			continue
		default:
			forms, ok := operands[opcode]
			if !ok {
				b.Errorf("unknown macro opcode %#x", opcode)
				continue
			}
			skipForms(&b, forms)
			continue
		}
		switch opcode {
		case macroDefine, macroDefineStrp, macroDefineSup, macroDefineStrx:
			e.Kind = Define
		case macroUndef, macroUndefStrp, macroUndefSup, macroUndefStrx:
			e.Kind = Undef
		case macroStartFile:
			e.Kind = StartFile
		case macroEndFile:
			e.Kind = EndFile
		case macroImport:
			e.Kind = Indirect
		}
		if b.Err == nil {
			l.Entries = append(l.Entries, e)
		}
	}
	return nil, b.Err
}

func skipForms(b *util.Buf, forms []uint8) {
	for _, form := range forms {
		switch form {
		case 0x0b: // data1
			b.Skip(1)
		case 0x05: // data2
			b.Skip(2)
		case 0x06: // data4
			b.Skip(4)
		case 0x07: // data8
			b.Skip(8)
		case 0x0f, 0x1a: // udata, strx
			b.ULEB()
		case 0x0d: // sdata
			b.SLEB()
		case 0x08: // string
			b.CString()
		case 0x0e, 0x17, 0x1f: // strp, sec_offset, line_strp
			b.Offset()
		case 0x09: // block
			b.Skip(int(b.ULEB()))
		case 0x0c: // flag
			b.Skip(1)
		default:
			b.Errorf("unsupported macro operand form %#x", form)
		}
	}
}

// ParseMacinfo reads the .debug_macinfo entries at off.
func ParseMacinfo(data []byte, off uint64) (*List, error) {
	l := &List{Offset: off}
	b := util.MakeBuf(".debug_macinfo", data, off)
	for b.Err == nil && b.Len() > 0 {
		var e Entry
		switch typ := b.U8(); typ {
		case 0:
			return l, nil
		case macroDefine, macroUndef:
			e.Kind = Define
			if typ == macroUndef {
				e.Kind = Undef
			}
			e.Line = b.ULEB()
			e.Text = b.CString()
		case macroStartFile:
			e.Kind = StartFile
			e.Line = b.ULEB()
			e.FileIndex = b.ULEB()
		case macroEndFile:
			e.Kind = EndFile
		case macinfoVendorExt:
			b.ULEB()
			b.CString()
			continue
		default:
			b.Errorf("unknown macinfo type %#x", typ)
			continue
		}
		if b.Err == nil {
			l.Entries = append(l.Entries, e)
		}
	}
	return l, b.Err
}

// Dump writes the entries of l to w, recursing into imported lists.
func (l *List) Dump(w io.Writer) {
	if l.Len() == 0 {
		fmt.Fprintf(w, "< EMPTY >\n")
		return
	}
	l.dump(w, 0)
}

func (l *List) dump(w io.Writer, depth int) {
	for _, e := range l.Entries {
		fmt.Fprintf(w, "%*s", depth*2, "")
		switch e.Kind {
		case Define, Undef:
			fmt.Fprintf(w, "%s line:%d %s\n", e.Kind, e.Line, e.Text)
		case StartFile:
			fmt.Fprintf(w, "%s line:%d file:%d\n", e.Kind, e.Line, e.FileIndex)
		case EndFile:
			fmt.Fprintf(w, "%s\n", e.Kind)
		case Indirect:
			fmt.Fprintf(w, "%s offset:0x%08x\n", e.Kind, e.Indirect.Offset)
			e.Indirect.dump(w, depth+1)
		}
	}
}
