// Package fixup implements the fixup/relocation pipeline shared by the
// assembler and the linker (spec.md §4.C5): fix_new, value computation,
// field-selector application, range checking, and the "must keep for
// output" decision.
package fixup

import (
	"github.com/aixtools/xcoffld/pkg/linkerr"
	"github.com/aixtools/xcoffld/pkg/symtab"
)

// Kind identifies the arithmetic or marker semantics of a Fixup. Target
// encoders in pkg/encoder select these when they can't resolve an operand
// immediately (spec.md §3 "Fixup").
type Kind int

const (
	R_POS Kind = iota
	R_NEG
	R_BR
	R_RBR
	R_TOC
	R_GL
	R_TCL
	R_RL
	R_RLA
	R_REF
	R_REL
	R_BA
	R_RBA

	// Assembler-internal kinds.
	GPDISP_HI
	GPDISP_LO
	LITERAL
	LITUSE

	// Marker kinds: never arithmetic, always kept as-is (spec.md §4.C5).
	ENTRY
	EXIT
	BEGIN_BRTAB
	END_BRTAB
	BEGIN_TRY
	END_TRY
	SH_USES
	SH_COUNT
	SH_ALIGN
	SH_CODE
	SH_DATA
	SH_LABEL

	// HP-PA displacement kinds: arithmetic, not markers (IsMarker excludes
	// them).
	PCDISP
	BDISP
)

// IsMarker reports whether k is a marker kind that must always be kept in
// the output reloc list rather than resolved arithmetically.
func IsMarker(k Kind) bool {
	switch k {
	case ENTRY, EXIT, BEGIN_BRTAB, END_BRTAB, BEGIN_TRY, END_TRY,
		SH_USES, SH_COUNT, SH_ALIGN, SH_CODE, SH_DATA, SH_LABEL:
		return true
	default:
		return false
	}
}

// Fixup records (frag, offset, size, kind, symbol, addend, pcrel) plus the
// extra fields needed by HP-PA (field selector, arg-reloc bits) and the
// subtract-symbol form used by difference relocations.
type Fixup struct {
	Frag  FragmentRef
	Where int // byte offset within the fragment
	Size  int // bits
	Kind  Kind

	Target         *symtab.Symbol
	SubtractTarget *symtab.Symbol
	Addend         int64

	PCRelative   bool
	ArgRelocBits uint32
	FieldSel     Selector

	Done bool // true once resolved in place; false means it is queued for output
}

// FragmentRef is the minimal view a Fixup needs of its owning fragment: its
// base address (once frozen) and a place to patch bytes.
type FragmentRef interface {
	Address() uint64
	Patch(where, size int, value uint64) error
}

func (f *Fixup) FragOffset() int { return f.Where }

// New builds a fixup the way fix_new does in spec.md §4.C5.
func New(frag FragmentRef, where, size int, kind Kind, target *symtab.Symbol, addend int64, pcrel bool) *Fixup {
	return &Fixup{Frag: frag, Where: where, Size: size, Kind: kind, Target: target, Addend: addend, PCRelative: pcrel}
}

// TOCDisplacement returns the displacement of the target's TOC slot from
// the TOC anchor (r2) — the value an R_TOC/R_TCL field encodes, as opposed
// to the absolute address Value computes for the other kinds. The slot
// offset is only known once the linker has laid out the TOC section and
// assigned it (symtab.TOCRef.HasOffset); before that the fixup is kept by
// MustKeep rule (b) rather than resolved here.
func (f *Fixup) TOCDisplacement(tocAnchor int64) (int64, error) {
	if f.Target == nil || !f.Target.TOC.HasOffset {
		return 0, linkerr.New(linkerr.BadValue, "fixup.TOCDisplacement")
	}
	return f.Target.TOC.Offset - tocAnchor + f.Addend, nil
}

// Value computes `sym.value + offset − (pcrel ? frag.address + where + bias : 0)`
// per spec.md §4.C5 step 1. pcAddr is the resolved address of the fixup
// field itself (frag.Address()+Where); bias lets callers model "PC is the
// address of the next instruction" without a second code path.
func (f *Fixup) Value(pcAddr uint64, bias int64) (int64, error) {
	if f.Target == nil {
		return f.Addend, nil
	}
	if f.Target.State == symtab.StateUndefined || f.Target.State == symtab.StateUndefWeak {
		return 0, linkerr.New(linkerr.UndefinedSymbol, "fixup.Value")
	}
	v := f.Target.Value + f.Addend
	if f.SubtractTarget != nil {
		v -= f.SubtractTarget.Value
	}
	if f.PCRelative {
		v -= int64(pcAddr) + bias
	}
	return v, nil
}
