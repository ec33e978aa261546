package unit

import (
	"debug/dwarf"

	"github.com/go-delve/nativedbg/pkg/dwarf/util"
)

// Form is an attribute encoding (DW_FORM_*).
type Form uint16

const (
	FormAddr          Form = 0x01
	FormBlock2        Form = 0x03
	FormBlock4        Form = 0x04
	FormData2         Form = 0x05
	FormData4         Form = 0x06
	FormData8         Form = 0x07
	FormString        Form = 0x08
	FormBlock         Form = 0x09
	FormBlock1        Form = 0x0a
	FormData1         Form = 0x0b
	FormFlag          Form = 0x0c
	FormSdata         Form = 0x0d
	FormStrp          Form = 0x0e
	FormUdata         Form = 0x0f
	FormRefAddr       Form = 0x10
	FormRef1          Form = 0x11
	FormRef2          Form = 0x12
	FormRef4          Form = 0x13
	FormRef8          Form = 0x14
	FormRefUdata      Form = 0x15
	FormIndirect      Form = 0x16
	FormSecOffset     Form = 0x17
	FormExprloc       Form = 0x18
	FormFlagPresent   Form = 0x19
	FormStrx          Form = 0x1a
	FormAddrx         Form = 0x1b
	FormRefSup4       Form = 0x1c
	FormStrpSup       Form = 0x1d
	FormData16        Form = 0x1e
	FormLineStrp      Form = 0x1f
	FormRefSig8       Form = 0x20
	FormImplicitConst Form = 0x21
	FormLoclistx      Form = 0x22
	FormRnglistx      Form = 0x23
	FormRefSup8       Form = 0x24
	FormStrx1         Form = 0x25
	FormStrx2         Form = 0x26
	FormStrx3         Form = 0x27
	FormStrx4         Form = 0x28
	FormAddrx1        Form = 0x29
	FormAddrx2        Form = 0x2a
	FormAddrx3        Form = 0x2b
	FormAddrx4        Form = 0x2c

	FormGNUAddrIndex Form = 0x1f01
	FormGNUStrIndex  Form = 0x1f02
	FormGNURefAlt    Form = 0x1f20
	FormGNUStrpAlt   Form = 0x1f21
)

// Attributes not defined by debug/dwarf.
const (
	AttrMIPSLinkageName dwarf.Attr = 0x2007
	AttrGNUMacros       dwarf.Attr = 0x2119
)

// Unit types of DWARF 5 headers (DW_UT_*).
const (
	UnitTypeCompile      uint8 = 0x01
	UnitTypeType         uint8 = 0x02
	UnitTypePartial      uint8 = 0x03
	UnitTypeSkeleton     uint8 = 0x04
	UnitTypeSplitCompile uint8 = 0x05
	UnitTypeSplitType    uint8 = 0x06
)

// Field is a decoded attribute.
//
// Val holds:
//
//	ClassAddress             uint64 (addrx forms are resolved through DW_AT_addr_base)
//	ClassBlock, ClassExprLoc []byte
//	ClassConstant            int64 for signed forms, uint64 otherwise, []byte for data16
//	ClassFlag                bool
//	ClassReference           dwarf.Offset, relative to the start of .debug_info
//	ClassReferenceSig        uint64
//	ClassString              string (strx forms are resolved through DW_AT_str_offsets_base)
//	ClassStringAlt           uint64, offset in the supplementary string section
//	other pointer classes    uint64
type Field struct {
	Attr  dwarf.Attr
	Form  Form
	Class dwarf.Class
	Val   interface{}
}

// bases are the DWARF 5 table bases declared by the unit DIE.
type bases struct {
	str, addr, rnglists, loclists uint64
}

// readForm decodes a value of the given form. Index forms are returned
// unresolved as uint64, with resolve set to true.
func (u *Unit) readForm(b *util.Buf, form Form, implicit int64) (val interface{}, class dwarf.Class, resolve bool) {
	switch form {
	case FormAddr:
		return b.Addr(), dwarf.ClassAddress, false
	case FormAddrx, FormGNUAddrIndex:
		return b.ULEB(), dwarf.ClassAddress, true
	case FormAddrx1:
		return uint64(b.U8()), dwarf.ClassAddress, true
	case FormAddrx2:
		return uint64(b.U16()), dwarf.ClassAddress, true
	case FormAddrx3:
		return b.UintN(3), dwarf.ClassAddress, true
	case FormAddrx4:
		return uint64(b.U32()), dwarf.ClassAddress, true

	case FormBlock1:
		return b.Bytes(int(b.U8())), dwarf.ClassBlock, false
	case FormBlock2:
		return b.Bytes(int(b.U16())), dwarf.ClassBlock, false
	case FormBlock4:
		return b.Bytes(int(b.U32())), dwarf.ClassBlock, false
	case FormBlock:
		return b.Bytes(int(b.ULEB())), dwarf.ClassBlock, false
	case FormExprloc:
		return b.Bytes(int(b.ULEB())), dwarf.ClassExprLoc, false

	case FormData1:
		return uint64(b.U8()), dwarf.ClassConstant, false
	case FormData2:
		return uint64(b.U16()), dwarf.ClassConstant, false
	case FormData4:
		return uint64(b.U32()), dwarf.ClassConstant, false
	case FormData8:
		return b.U64(), dwarf.ClassConstant, false
	case FormData16:
		return b.Bytes(16), dwarf.ClassConstant, false
	case FormSdata:
		return b.SLEB(), dwarf.ClassConstant, false
	case FormUdata:
		return b.ULEB(), dwarf.ClassConstant, false
	case FormImplicitConst:
		return implicit, dwarf.ClassConstant, false

	case FormFlag:
		return b.U8() != 0, dwarf.ClassFlag, false
	case FormFlagPresent:
		return true, dwarf.ClassFlag, false

	case FormRef1:
		return dwarf.Offset(u.Offset + uint64(b.U8())), dwarf.ClassReference, false
	case FormRef2:
		return dwarf.Offset(u.Offset + uint64(b.U16())), dwarf.ClassReference, false
	case FormRef4:
		return dwarf.Offset(u.Offset + uint64(b.U32())), dwarf.ClassReference, false
	case FormRef8:
		return dwarf.Offset(u.Offset + b.U64()), dwarf.ClassReference, false
	case FormRefUdata:
		return dwarf.Offset(u.Offset + b.ULEB()), dwarf.ClassReference, false
	case FormRefAddr:
		if u.Version <= 2 {
			return dwarf.Offset(b.UintN(int(u.AddrSize))), dwarf.ClassReference, false
		}
		return dwarf.Offset(b.Offset()), dwarf.ClassReference, false
	case FormRefSig8:
		return b.U64(), dwarf.ClassReferenceSig, false
	case FormRefSup4:
		return uint64(b.U32()), dwarf.ClassReferenceAlt, false
	case FormRefSup8:
		return b.U64(), dwarf.ClassReferenceAlt, false
	case FormGNURefAlt:
		return b.Offset(), dwarf.ClassReferenceAlt, false

	case FormString:
		return b.CString(), dwarf.ClassString, false
	case FormStrp:
		off := b.Offset()
		s, _ := util.CStringAt(u.sec.Str, off)
		return s, dwarf.ClassString, false
	case FormLineStrp:
		off := b.Offset()
		s, _ := util.CStringAt(u.sec.LineStr, off)
		return s, dwarf.ClassString, false
	case FormStrpSup, FormGNUStrpAlt:
		return b.Offset(), dwarf.ClassStringAlt, false
	case FormStrx, FormGNUStrIndex:
		return b.ULEB(), dwarf.ClassString, true
	case FormStrx1:
		return uint64(b.U8()), dwarf.ClassString, true
	case FormStrx2:
		return uint64(b.U16()), dwarf.ClassString, true
	case FormStrx3:
		return b.UintN(3), dwarf.ClassString, true
	case FormStrx4:
		return uint64(b.U32()), dwarf.ClassString, true

	case FormSecOffset:
		return b.Offset(), dwarf.ClassLinePtr, false
	case FormLoclistx:
		return b.ULEB(), dwarf.ClassLocList, false
	case FormRnglistx:
		return b.ULEB(), dwarf.ClassRngList, false

	case FormIndirect:
		return u.readForm(b, Form(b.ULEB()), implicit)
	}
	b.Errorf("unknown form %#x", uint16(form))
	return nil, 0, false
}

// sectionOffsetClass refines the class of a DW_FORM_sec_offset value by
// looking at the attribute it belongs to.
func sectionOffsetClass(attr dwarf.Attr) dwarf.Class {
	switch attr {
	case dwarf.AttrStmtList:
		return dwarf.ClassLinePtr
	case dwarf.AttrLocation, dwarf.AttrFrameBase, dwarf.AttrDataMemberLoc:
		return dwarf.ClassLocListPtr
	case dwarf.AttrRanges:
		return dwarf.ClassRangeListPtr
	case dwarf.AttrMacros, dwarf.AttrMacroInfo, AttrGNUMacros:
		return dwarf.ClassMacPtr
	case dwarf.AttrStrOffsetsBase:
		return dwarf.ClassStrOffsetsPtr
	case dwarf.AttrAddrBase:
		return dwarf.ClassAddrPtr
	case dwarf.AttrRnglistsBase:
		return dwarf.ClassRngListsPtr
	case dwarf.AttrLoclistsBase:
		return dwarf.ClassLocListPtr
	}
	return dwarf.ClassLinePtr
}

// resolveIndex turns the index read for an addrx or strx form into the
// address or string it designates.
func (u *Unit) resolveIndex(class dwarf.Class, idx uint64) (interface{}, bool) {
	bs := u.tableBases()
	switch class {
	case dwarf.ClassAddress:
		off := bs.addr + idx*uint64(u.AddrSize)
		b := util.MakeBuf(".debug_addr", u.sec.Addr, 0)
		b.Order = u.sec.order()
		b.AddrSize = int(u.AddrSize)
		b.Seek(off)
		a := b.Addr()
		return a, b.Err == nil
	case dwarf.ClassString:
		osz := uint64(4)
		if u.Format64 {
			osz = 8
		}
		b := util.MakeBuf(".debug_str_offsets", u.sec.StrOffsets, 0)
		b.Order = u.sec.order()
		b.Format64 = u.Format64
		b.Seek(bs.str + idx*osz)
		off := b.Offset()
		if b.Err != nil {
			return "", false
		}
		return util.CStringAt(u.sec.Str, off)
	}
	return nil, false
}
