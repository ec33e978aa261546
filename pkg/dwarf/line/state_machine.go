package line

import (
	"sort"

	"github.com/go-delve/nativedbg/pkg/dwarf/util"
)

// Row is a row of the line number matrix.
type Row struct {
	Address       uint64
	File          string
	FileIndex     uint64
	Line          int
	Column        uint
	IsStmt        bool
	PrologueEnd   bool
	EpilogueBegin bool
	EndSequence   bool
}

// StateMachine executes a line number program.
type StateMachine struct {
	t *Table

	file          uint64
	line          int
	address       uint64
	column        uint
	isStmt        bool
	isa           uint64
	basicBlock    bool
	endSeq        bool
	prologueEnd   bool
	epilogueBegin bool
	// valid is true if the current value of the state machine is a row of
	// the matrix.
	valid bool

	buf util.Buf

	definedFiles []*FileEntry // files defined with DW_LNE_define_file
}

type opcodefn func(*StateMachine, *util.Buf)

// Standard opcodes
const (
	DW_LNS_copy             = 1
	DW_LNS_advance_pc       = 2
	DW_LNS_advance_line     = 3
	DW_LNS_set_file         = 4
	DW_LNS_set_column       = 5
	DW_LNS_negate_stmt      = 6
	DW_LNS_set_basic_block  = 7
	DW_LNS_const_add_pc     = 8
	DW_LNS_fixed_advance_pc = 9
	DW_LNS_prologue_end     = 10
	DW_LNS_epilogue_begin   = 11
	DW_LNS_set_isa          = 12
)

// Extended opcodes
const (
	DW_LINE_end_sequence = 1
	DW_LINE_set_address  = 2
	DW_LINE_define_file  = 3
)

var standardopcodes = map[byte]opcodefn{
	DW_LNS_copy:             copyfn,
	DW_LNS_advance_pc:       advancepc,
	DW_LNS_advance_line:     advanceline,
	DW_LNS_set_file:         setfile,
	DW_LNS_set_column:       setcolumn,
	DW_LNS_negate_stmt:      negatestmt,
	DW_LNS_set_basic_block:  setbasicblock,
	DW_LNS_const_add_pc:     constaddpc,
	DW_LNS_fixed_advance_pc: fixedadvancepc,
	DW_LNS_prologue_end:     prologueend,
	DW_LNS_epilogue_begin:   epiloguebegin,
	DW_LNS_set_isa:          setisa,
}

var extendedopcodes = map[byte]opcodefn{
	DW_LINE_end_sequence: endsequence,
	DW_LINE_set_address:  setaddress,
	DW_LINE_define_file:  definefile,
}

func newStateMachine(t *Table) *StateMachine {
	sm := &StateMachine{t: t, buf: util.MakeBuf(".debug_line", t.Instructions, 0)}
	sm.buf.AddrSize = int(t.Prologue.AddrSize)
	sm.reset()
	return sm
}

func (sm *StateMachine) reset() {
	sm.file = 1
	if sm.t.Prologue.Version >= 5 {
		sm.file = 0
	}
	sm.line = 1
	sm.address = 0
	sm.column = 0
	sm.isa = 0
	sm.isStmt = sm.t.Prologue.InitialIsStmt == 1
	sm.basicBlock = false
	sm.endSeq = false
}

func (sm *StateMachine) fileName(i uint64) string {
	files := sm.t.SupportFiles()
	if i < uint64(len(files)) {
		return files[i]
	}
	j := i - uint64(len(files))
	if j < uint64(len(sm.definedFiles)) {
		return sm.definedFiles[j].Path
	}
	return ""
}

// next executes one opcode. It returns false when the program ends.
func (sm *StateMachine) next() bool {
	if sm.valid {
		// valid is set by either a special opcode or a DW_LNS_copy, in both
		// cases we need to reset basic_block, prologue_end and
		// epilogue_begin
		sm.basicBlock = false
		sm.prologueEnd = false
		sm.epilogueBegin = false
	}
	if sm.endSeq {
		sm.reset()
	}
	sm.valid = false
	if sm.buf.Len() == 0 {
		return false
	}
	b := sm.buf.U8()
	p := sm.t.Prologue
	switch {
	case b >= p.OpcodeBase:
		execSpecialOpcode(sm, b)
	case b == 0:
		execExtendedOpcode(sm, &sm.buf)
	default:
		if fn, ok := standardopcodes[b]; ok {
			fn(sm, &sm.buf)
		} else {
			// unknown standard opcode, skip the number of arguments specified
			// in the prologue
			for i := 0; i < int(p.StdOpLengths[b-1]); i++ {
				sm.buf.ULEB()
			}
			sm.t.logf("unknown opcode %d(0x%x)", b, b)
		}
	}
	return sm.buf.Err == nil
}

func (sm *StateMachine) row() Row {
	return Row{
		Address:       sm.address,
		File:          sm.fileName(sm.file),
		FileIndex:     sm.file,
		Line:          sm.line,
		Column:        sm.column,
		IsStmt:        sm.isStmt,
		PrologueEnd:   sm.prologueEnd,
		EpilogueBegin: sm.epilogueBegin,
		EndSequence:   sm.endSeq,
	}
}

// Rows runs the line number program and returns its matrix. The result is
// cached.
func (t *Table) Rows() []Row {
	if t == nil {
		return nil
	}
	if t.ran {
		return t.rows
	}
	t.ran = true
	sm := newStateMachine(t)
	for sm.next() {
		if sm.valid {
			t.rows = append(t.rows, sm.row())
		}
	}
	if sm.buf.Err != nil {
		t.logf("line program error: %v", sm.buf.Err)
	}
	return t.rows
}

// PCToLine returns the filename and line number associated with pc. If pc
// isn't found inside the table it returns the row of the closest address
// preceding pc, in the same sequence.
func (t *Table) PCToLine(pc uint64) (string, int, bool) {
	rows := t.Rows()
	var best *Row
	for i := range rows {
		r := &rows[i]
		if r.EndSequence {
			if best != nil && pc < r.Address {
				return best.File, best.Line, true
			}
			best = nil
			continue
		}
		if r.Address == pc {
			return r.File, r.Line, true
		}
		if r.Address < pc {
			best = r
		} else if best != nil {
			return best.File, best.Line, true
		}
	}
	return "", 0, false
}

// LineToPCs returns every address marked as a statement for filename:line,
// in ascending order.
func (t *Table) LineToPCs(filename string, line int) []uint64 {
	var pcs []uint64
	for _, r := range t.Rows() {
		if r.EndSequence || !r.IsStmt || r.Line != line || r.File != filename {
			continue
		}
		pcs = append(pcs, r.Address)
	}
	sort.Slice(pcs, func(i, j int) bool { return pcs[i] < pcs[j] })
	return pcs
}

// LineToPC returns the first PC address associated with filename:lineno.
func (t *Table) LineToPC(filename string, line int) uint64 {
	pcs := t.LineToPCs(filename, line)
	if len(pcs) == 0 {
		return 0
	}
	return pcs[0]
}

func execSpecialOpcode(sm *StateMachine, instr byte) {
	p := sm.t.Prologue
	decoded := instr - p.OpcodeBase
	sm.line += int(p.LineBase + int8(decoded%p.LineRange))
	sm.address += uint64(decoded/p.LineRange) * uint64(p.MinInstrLength)
	sm.valid = true
}

func execExtendedOpcode(sm *StateMachine, buf *util.Buf) {
	n := buf.ULEB()
	if n == 0 {
		return
	}
	start := buf.Off()
	b := buf.U8()
	if fn, ok := extendedopcodes[b]; ok {
		fn(sm, buf)
	}
	buf.Seek(start + n)
}

func copyfn(sm *StateMachine, buf *util.Buf) {
	sm.valid = true
}

func advancepc(sm *StateMachine, buf *util.Buf) {
	sm.address += buf.ULEB() * uint64(sm.t.Prologue.MinInstrLength)
}

func advanceline(sm *StateMachine, buf *util.Buf) {
	sm.line += int(buf.SLEB())
}

func setfile(sm *StateMachine, buf *util.Buf) {
	sm.file = buf.ULEB()
}

func setcolumn(sm *StateMachine, buf *util.Buf) {
	sm.column = uint(buf.ULEB())
}

func negatestmt(sm *StateMachine, buf *util.Buf) {
	sm.isStmt = !sm.isStmt
}

func setbasicblock(sm *StateMachine, buf *util.Buf) {
	sm.basicBlock = true
}

func constaddpc(sm *StateMachine, buf *util.Buf) {
	p := sm.t.Prologue
	sm.address += uint64((255-p.OpcodeBase)/p.LineRange) * uint64(p.MinInstrLength)
}

func fixedadvancepc(sm *StateMachine, buf *util.Buf) {
	sm.address += uint64(buf.U16())
}

func endsequence(sm *StateMachine, buf *util.Buf) {
	sm.endSeq = true
	sm.valid = true
}

func setaddress(sm *StateMachine, buf *util.Buf) {
	sm.address = buf.Addr()
}

func definefile(sm *StateMachine, buf *util.Buf) {
	if entry := sm.t.readFileEntry(buf); entry != nil {
		sm.definedFiles = append(sm.definedFiles, entry)
	}
}

func prologueend(sm *StateMachine, buf *util.Buf) {
	sm.prologueEnd = true
}

func epiloguebegin(sm *StateMachine, buf *util.Buf) {
	sm.epilogueBegin = true
}

func setisa(sm *StateMachine, buf *util.Buf) {
	sm.isa = buf.ULEB()
}
