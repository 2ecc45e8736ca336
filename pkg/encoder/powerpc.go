package encoder

import "github.com/aixtools/xcoffld/pkg/fixup"

// PowerPCCatalog is the subset of the XCOFF/PowerPC opcode table the linker
// and its stub synthesizer need to recognize and re-emit: loads/stores used
// by the glink stub and function descriptors, branch/call forms that carry
// R_BR/R_RBR fixups, and the TOC-relative forms that carry R_TOC.
//
// This mirrors spec.md §6's glink byte sequence and §4.C12's "instruction
// after bl, if originally cror 15,15,15 or cror 31,31,31, is rewritten to
// lwz r2,20(r1)" scenario.
func PowerPCCatalog() *Catalog {
	return NewCatalog([]Opcode{
		{
			Name:  "lwz",
			Match: 0x80000000,
			Mask:  0xfc000000,
			Operands: []OperandLetter{
				{Letter: 'D', Class: ClassGPR, Bits: 5, Shift: 21},
				{Letter: 'd', Class: ClassImmediate, Bits: 16, Shift: 0, Signed: true},
				{Letter: 'A', Class: ClassGPR, Bits: 5, Shift: 16},
			},
		},
		{
			Name:  "stw",
			Match: 0x90000000,
			Mask:  0xfc000000,
			Operands: []OperandLetter{
				{Letter: 'S', Class: ClassGPR, Bits: 5, Shift: 21},
				{Letter: 'd', Class: ClassImmediate, Bits: 16, Shift: 0, Signed: true},
				{Letter: 'A', Class: ClassGPR, Bits: 5, Shift: 16},
			},
		},
		{
			Name:  "addi",
			Match: 0x38000000,
			Mask:  0xfc000000,
			Operands: []OperandLetter{
				{Letter: 'D', Class: ClassGPR, Bits: 5, Shift: 21},
				{Letter: 'A', Class: ClassGPR, Bits: 5, Shift: 16},
				{Letter: 'i', Class: ClassImmediate, Bits: 16, Shift: 0, Signed: true, FixupKind: fixup.R_TOC},
			},
		},
		{
			Name:     "mtctr",
			Match:    0x7C0903A6,
			Mask:     0xffffffff,
			Operands: nil,
		},
		{
			Name:     "bctr",
			Match:    0x4e800420,
			Mask:     0xffffffff,
			Operands: nil,
		},
		{
			Name:  "bl",
			Match: 0x48000001,
			Mask:  0xfc000003,
			Operands: []OperandLetter{
				{Letter: 'L', Class: ClassPCRelative, Bits: 24, Shift: 2, Signed: true, PCRel: true, FixupKind: fixup.R_RBR},
			},
		},
		{
			Name:  "b",
			Match: 0x48000000,
			Mask:  0xfc000003,
			Operands: []OperandLetter{
				{Letter: 'L', Class: ClassPCRelative, Bits: 24, Shift: 2, Signed: true, PCRel: true, FixupKind: fixup.R_BR},
			},
		},
		{
			// cror 15,15,15 / cror 31,31,31: the no-op placeholders left
			// after a bl through a glink stub, rewritten in place by stub
			// synthesis to "lwz r2,20(r1)" (spec.md §4.C12 scenario 3).
			Name:  "cror",
			Match: 0x4C000382,
			Mask:  0xfc0007fe,
			Operands: []OperandLetter{
				{Letter: 'D', Class: ClassCR, Bits: 5, Shift: 21},
				{Letter: 'A', Class: ClassCR, Bits: 5, Shift: 16},
				{Letter: 'B', Class: ClassCR, Bits: 5, Shift: 11},
			},
		},
	})
}

// CrorNopPattern reports whether word is the specific "cror 15,15,15" or
// "cror 31,31,31" no-op the linker recognizes and rewrites after a
// glink-routed bl (spec.md §4.C12 scenario 3).
func CrorNopPattern(word uint32) bool {
	return word == 0x4DEF7B82 || word == 0x4FFFFB82
}

// LwzR2Toc20 is the fixed replacement instruction "lwz r2,20(r1)".
const LwzR2Toc20 uint32 = 0x80410014

// BigEndian32 writes word as a 4-byte big-endian instruction, the PowerPC
// encoding used throughout XCOFF.
func BigEndian32(b []byte, word uint32) []byte {
	if len(b) < 4 {
		b = make([]byte, 4)
	}
	b[0] = byte(word >> 24)
	b[1] = byte(word >> 16)
	b[2] = byte(word >> 8)
	b[3] = byte(word)
	return b[:4]
}
