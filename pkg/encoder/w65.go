package encoder

import "github.com/aixtools/xcoffld/pkg/fixup"

// W65Catalog covers the branch form whose relaxation subtype chain is the
// simplest in the corpus (one widening step: 8-bit branch to a long
// jmp+indirection), included so pkg/relax's generic fixpoint algorithm is
// exercised by more than one target's table.
func W65Catalog() *Catalog {
	return NewCatalog([]Opcode{
		{
			Name:  "bra",
			Match: 0x80,
			Mask:  0xff,
			Operands: []OperandLetter{
				{Letter: 'd', Class: ClassPCRelative, Bits: 8, Shift: 0, Signed: true, PCRel: true, FixupKind: fixup.PCDISP},
			},
		},
		{
			Name:     "jmp",
			Match:    0x4c,
			Mask:     0xff,
			Operands: []OperandLetter{{Letter: 'a', Class: ClassImmediate, Bits: 16, Shift: 0, FixupKind: fixup.BDISP}},
		},
	})
}
