package encoder

import "github.com/aixtools/xcoffld/pkg/fixup"

// HPPACatalog is a minimal HP-PA opcode table covering the branch and call
// forms spec.md §8 scenario 6 exercises: "bl foo,%r2" with a PCREL17F
// fixup, whose displacement boundary (±max signed 17-bit) is tested by
// pkg/relax's HP-PA subtype table.
func HPPACatalog() *Catalog {
	return NewCatalog([]Opcode{
		{
			Name:  "bl",
			Match: 0xe8000000,
			Mask:  0xfc00e000,
			Operands: []OperandLetter{
				{Letter: 'w', Class: ClassPCRelative, Bits: 17, Shift: 0, Signed: true, PCRel: true, FixupKind: fixup.PCDISP, FieldSel: fixup.NoSelector},
				{Letter: 'b', Class: ClassGPR, Bits: 5, Shift: 21},
			},
		},
		{
			Name:  "ldil",
			Match: 0x20000000,
			Mask:  0xfc000000,
			Operands: []OperandLetter{
				{Letter: 'k', Class: ClassImmediate, Bits: 21, Shift: 0, FixupKind: fixup.PCDISP, FieldSel: fixup.LSel},
				{Letter: 't', Class: ClassGPR, Bits: 5, Shift: 21},
			},
		},
		{
			// j pairs with ldil's k (FieldSel: LSel) to reconstruct a full
			// 32-bit value: LSel takes the high 21 bits, so RSel's matching
			// low half is 11 bits, not the instruction's nominal 14-bit
			// displacement field -- an ldo used standalone (without a
			// paired ldil) would want a direct 14-bit immediate instead.
			Name:  "ldo",
			Match: 0x34000000,
			Mask:  0xfc000000,
			Operands: []OperandLetter{
				{Letter: 'j', Class: ClassImmediate, Bits: 11, Shift: 0, Signed: true, FixupKind: fixup.PCDISP, FieldSel: fixup.RSel},
				{Letter: 'b', Class: ClassGPR, Bits: 5, Shift: 16},
				{Letter: 't', Class: ClassGPR, Bits: 5, Shift: 21},
			},
		},
	})
}

// BigEndian32HPPA reuses the generic 32-bit big-endian word writer; HP-PA
// object code is always big-endian.
var BigEndian32HPPA = BigEndian32
