package line

import "github.com/go-delve/nativedbg/pkg/dwarf/util"

const (
	formBlock     = 0x09
	formBlock1    = 0x0a
	formBlock2    = 0x03
	formBlock4    = 0x04
	formData1     = 0x0b
	formData2     = 0x05
	formData4     = 0x06
	formData8     = 0x07
	formData16    = 0x1e
	formFlag      = 0x0c
	formLineStrp  = 0x1f
	formSdata     = 0x0d
	formSecOffset = 0x17
	formString    = 0x08
	formStrp      = 0x0e
	formStrx      = 0x1a
	formStrx1     = 0x25
	formStrx2     = 0x26
	formStrx3     = 0x27
	formStrx4     = 0x28
	formUdata     = 0x0f
)

const (
	lnctPath = 0x1 + iota
	lnctDirectoryIndex
	lnctTimestamp
	lnctSize
	lnctMD5
)

// formReader reads the entries of the DWARF 5 directory and file tables,
// whose layout is described by a list of (content type, form) pairs.
type formReader struct {
	contentTypes []uint64
	formCodes    []uint64

	contentType uint64
	formCode    uint64

	block []byte
	u64   uint64
	str   string

	nexti int
}

func readEntryFormat(b *util.Buf) *formReader {
	count := int(b.U8())
	r := &formReader{
		contentTypes: make([]uint64, count),
		formCodes:    make([]uint64, count),
	}
	for i := range r.contentTypes {
		r.contentTypes[i] = b.ULEB()
		r.formCodes[i] = b.ULEB()
	}
	return r
}

func (rdr *formReader) reset() {
	rdr.nexti = 0
}

func (rdr *formReader) next(b *util.Buf) bool {
	if rdr.nexti >= len(rdr.contentTypes) || b.Err != nil {
		return false
	}
	rdr.contentType = rdr.contentTypes[rdr.nexti]
	rdr.formCode = rdr.formCodes[rdr.nexti]
	rdr.nexti++

	rdr.block, rdr.u64, rdr.str = nil, 0, ""

	switch rdr.formCode {
	case formBlock:
		rdr.block = b.Bytes(int(b.ULEB()))
	case formBlock1:
		rdr.block = b.Bytes(int(b.U8()))
	case formBlock2:
		rdr.block = b.Bytes(int(b.U16()))
	case formBlock4:
		rdr.block = b.Bytes(int(b.U32()))
	case formData1, formFlag, formStrx1:
		rdr.u64 = uint64(b.U8())
	case formData2, formStrx2:
		rdr.u64 = uint64(b.U16())
	case formStrx3:
		rdr.u64 = b.UintN(3)
	case formData4, formStrx4:
		rdr.u64 = uint64(b.U32())
	case formData8:
		rdr.u64 = b.U64()
	case formData16:
		rdr.block = b.Bytes(16)
	case formLineStrp, formSecOffset, formStrp:
		rdr.u64 = b.Offset()
	case formSdata:
		rdr.u64 = uint64(b.SLEB())
	case formUdata, formStrx:
		rdr.u64 = b.ULEB()
	case formString:
		rdr.str = b.CString()
	default:
		b.Errorf("unknown form code %#x", rdr.formCode)
	}
	return b.Err == nil
}
