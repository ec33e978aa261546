package dwarfbuilder

import (
	"bytes"

	"github.com/go-delve/nativedbg/pkg/dwarf/leb128"
)

// Op is a DWARF expression opcode.
type Op byte

const (
	DW_OP_addr           Op = 0x03
	DW_OP_deref          Op = 0x06
	DW_OP_consts         Op = 0x11
	DW_OP_plus_uconst    Op = 0x23
	DW_OP_reg0           Op = 0x50
	DW_OP_breg0          Op = 0x70
	DW_OP_regx           Op = 0x90
	DW_OP_fbreg          Op = 0x91
	DW_OP_call_frame_cfa Op = 0x9c
)

// LocEntry represents one entry of debug_loc.
type LocEntry struct {
	Lowpc  uint64
	Highpc uint64
	Loc    []byte
}

// LocationBlock returns a DWARF expression corresponding to the list of
// arguments.
func LocationBlock(args ...interface{}) []byte {
	var buf bytes.Buffer
	for _, arg := range args {
		switch x := arg.(type) {
		case Op:
			buf.WriteByte(byte(x))
		case int:
			leb128.EncodeSigned(&buf, int64(x))
		case uint:
			leb128.EncodeUnsigned(&buf, uint64(x))
		default:
			panic("unsupported value type")
		}
	}
	return buf.Bytes()
}
