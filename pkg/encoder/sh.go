package encoder

import "github.com/aixtools/xcoffld/pkg/fixup"

// SHCatalog is a minimal SH opcode table covering the forms pkg/relax's SH
// subtype table needs to exercise: a conditional branch (short/disp form)
// and the unconditional branch that upgrades through UNCOND12/UNCOND32
// (spec.md §4.C7 scenario 5, §8 "SH conditional branch").
func SHCatalog() *Catalog {
	return NewCatalog([]Opcode{
		{
			Name:  "bt",
			Match: 0x8900,
			Mask:  0xff00,
			Operands: []OperandLetter{
				{Letter: 'd', Class: ClassPCRelative, Bits: 8, Shift: 0, Signed: true, PCRel: true, FixupKind: fixup.PCDISP},
			},
		},
		{
			Name:  "bf",
			Match: 0x8b00,
			Mask:  0xff00,
			Operands: []OperandLetter{
				{Letter: 'd', Class: ClassPCRelative, Bits: 8, Shift: 0, Signed: true, PCRel: true, FixupKind: fixup.PCDISP},
			},
		},
		{
			Name:  "bra",
			Match: 0xa000,
			Mask:  0xf000,
			Operands: []OperandLetter{
				{Letter: 'd', Class: ClassPCRelative, Bits: 12, Shift: 0, Signed: true, PCRel: true, FixupKind: fixup.PCDISP},
			},
		},
		{
			Name:  "brl",
			Match: 0x0003,
			Mask:  0xf0ff,
			Operands: []OperandLetter{
				{Letter: 'm', Class: ClassGPR, Bits: 4, Shift: 8},
			},
		},
		{
			Name:     "nop",
			Match:    0x0009,
			Mask:     0xffff,
			Operands: nil,
		},
	})
}

// BigEndian16/LittleEndian16 encode a 16-bit SH instruction word; SH can run
// either endian per spec.md §6 (-little/-EL/-EB options).
func BigEndian16(b []byte, word uint32) []byte {
	if len(b) < 2 {
		b = make([]byte, 2)
	}
	b[0] = byte(word >> 8)
	b[1] = byte(word)
	return b[:2]
}

func LittleEndian16(b []byte, word uint32) []byte {
	if len(b) < 2 {
		b = make([]byte, 2)
	}
	b[0] = byte(word)
	b[1] = byte(word >> 8)
	return b[:2]
}
