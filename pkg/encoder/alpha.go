package encoder

import "github.com/aixtools/xcoffld/pkg/fixup"

// AlphaCatalog covers the ECOFF forms the ldgp pseudo-op expands to: ldah
// and lda, carrying a GPDISP_HI/GPDISP_LO fixup pair resolved at link time
// from the GP value. The encoder itself only emits one real instruction at
// a time; the two-instruction expansion is asm.Context.Ldgp.
func AlphaCatalog() *Catalog {
	return NewCatalog([]Opcode{
		{
			Name:  "ldah",
			Match: 0x24000000,
			Mask:  0xfc000000,
			Operands: []OperandLetter{
				{Letter: 'a', Class: ClassGPR, Bits: 5, Shift: 21},
				{Letter: 'i', Class: ClassImmediate, Bits: 16, Shift: 0, Signed: true, FixupKind: fixup.GPDISP_HI},
				{Letter: 'b', Class: ClassGPR, Bits: 5, Shift: 16},
			},
		},
		{
			Name:  "lda",
			Match: 0x20000000,
			Mask:  0xfc000000,
			Operands: []OperandLetter{
				{Letter: 'a', Class: ClassGPR, Bits: 5, Shift: 21},
				{Letter: 'i', Class: ClassImmediate, Bits: 16, Shift: 0, Signed: true, FixupKind: fixup.GPDISP_LO},
				{Letter: 'b', Class: ClassGPR, Bits: 5, Shift: 16},
			},
		},
	})
}

// LittleEndian32 writes word as a 4-byte little-endian instruction; Alpha
// is always little-endian.
func LittleEndian32(b []byte, word uint32) []byte {
	if len(b) < 4 {
		b = make([]byte, 4)
	}
	b[0] = byte(word)
	b[1] = byte(word >> 8)
	b[2] = byte(word >> 16)
	b[3] = byte(word >> 24)
	return b[:4]
}
