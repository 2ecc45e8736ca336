// Package encoder implements the data-driven instruction encoder shared by
// every assembler target (spec.md §4.C6): a per-target opcode catalog of
// {name, match, mask, operand letters, arch flags}, matched against a
// mnemonic and a tokenised operand list, producing encoded bytes plus any
// fixups the operands couldn't resolve immediately.
package encoder

import (
	"fmt"

	"github.com/aixtools/xcoffld/pkg/fixup"
)

// Operand is one tokenised operand: either a resolved numeric value or an
// unresolved symbolic expression (symbol + addend) that must become a
// fixup if the matched opcode can't encode it as an immediate.
type Operand struct {
	IsSymbolic bool
	Value      int64  // valid when !IsSymbolic
	SymbolName string // valid when IsSymbolic
	Addend     int64
}

// OperandLetter describes one operand slot in an opcode's operand-letter
// sequence: its class, bit width, shift, signedness, and (for PC-relative
// slots) the fixup kind/selector to emit when the operand can't be encoded
// as an immediate.
type OperandLetter struct {
	Letter    byte
	Class     OperandClass
	Bits      uint
	Shift     uint
	Signed    bool
	PCRel     bool
	FixupKind fixup.Kind
	FieldSel  fixup.Selector
}

// OperandClass groups the kinds of operand an instruction letter can bind.
type OperandClass int

const (
	ClassImmediate OperandClass = iota
	ClassGPR
	ClassFPR
	ClassSR
	ClassCR
	ClassCompleter
	ClassPCRelative
)

// Opcode is one catalog entry: a mnemonic, its match/mask bit patterns, and
// the operand-letter sequence spec.md §4.C6 describes.
type Opcode struct {
	Name      string
	Match     uint32
	Mask      uint32
	Operands  []OperandLetter
	ArchFlags uint32
}

// Catalog is a per-target opcode table, grouped by mnemonic so a lookup
// only has to scan candidates that share the mnemonic (spec.md §4.C6).
type Catalog struct {
	ByName map[string][]Opcode
}

// NewCatalog builds a lookup-by-name index over a flat opcode list.
func NewCatalog(ops []Opcode) *Catalog {
	c := &Catalog{ByName: make(map[string][]Opcode)}
	for _, op := range ops {
		c.ByName[op.Name] = append(c.ByName[op.Name], op)
	}
	return c
}

// Encoded is the result of a successful match: the raw instruction word(s)
// and any fixups generated for symbolic operands.
type Encoded struct {
	Bytes  []byte
	Fixups []*fixup.Fixup
}

// Encode matches mnemonic/operands against the catalog and produces the
// encoded bytes plus fixups, per spec.md §4.C6: for every operand letter,
// attempt to consume one operand token; range-check immediates; if a
// symbolic expression doesn't fit, enqueue a fixup and encode zero.
// emit is supplied by the caller's per-target word-encoding helper (most
// targets are 32-bit fixed instructions; some, like SH, are 16-bit).
func (c *Catalog) Encode(mnemonic string, operands []Operand, emit func(word uint32, byteOrder ByteOrderFn) []byte, byteOrder ByteOrderFn) (*Encoded, error) {
	candidates := c.ByName[mnemonic]
	if len(candidates) == 0 {
		return nil, fmt.Errorf("encoder: unrecognized mnemonic %q", mnemonic)
	}
	for _, op := range candidates {
		word, fixups, ok := tryMatch(op, operands)
		if !ok {
			continue
		}
		return &Encoded{Bytes: emit(word, byteOrder), Fixups: fixups}, nil
	}
	return nil, fmt.Errorf("encoder: no matching form of %q for %d operand(s)", mnemonic, len(operands))
}

// ByteOrderFn writes a uint32 in the target's byte order into b (growing
// it to 4 bytes if necessary) and returns the 4-byte result; kept as a
// function type here (rather than importing types) so pkg/encoder stays
// decoupled from the on-disk struct package. BigEndian32 is the PowerPC
// instance; HP-PA reuses it as BigEndian32HPPA.
type ByteOrderFn func(b []byte, word uint32) []byte

func tryMatch(op Opcode, operands []Operand) (uint32, []*fixup.Fixup, bool) {
	if len(operands) != len(op.Operands) {
		return 0, nil, false
	}
	word := op.Match
	var fixups []*fixup.Fixup
	for i, letter := range op.Operands {
		o := operands[i]
		if o.IsSymbolic {
			if letter.Class != ClassPCRelative && letter.Class != ClassImmediate {
				return 0, nil, false
			}
			// Range can't be checked yet; defer to a fixup, encoding zero.
			fx := &fixup.Fixup{
				Where:      0, // patched by caller once the fragment offset is known
				Size:       int(letter.Bits),
				Kind:       letter.FixupKind,
				Addend:     o.Addend,
				PCRelative: letter.PCRel,
				FieldSel:   letter.FieldSel,
			}
			fixups = append(fixups, fx)
			continue
		}
		v := o.Value
		max := int64(1) << letter.Bits
		if letter.Signed {
			lo, hi := -(max / 2), max/2-1
			if v < lo || v > hi {
				if letter.Class == ClassPCRelative {
					// out of range but expression-shaped: caller should have
					// marked this symbolic; a pure out-of-range literal is
					// just an encoder error.
				}
				return 0, nil, false
			}
		} else if v < 0 || v >= max {
			return 0, nil, false
		}
		field := uint32(v) & uint32(max-1)
		word |= field << letter.Shift
	}
	return word, fixups, true
}
