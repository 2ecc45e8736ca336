package section

// Fixup is declared via an opaque interface here (rather than importing
// pkg/fixup, which would create an import cycle: fixup resolution needs to
// see fragment addresses). Concrete fixups implement this by embedding
// their fragment/offset pair; pkg/fixup.Fixup satisfies it.
type Fixup interface {
	FragOffset() int
}

// Fragment is a contiguous payload. A fixed fragment just carries Bytes; a
// variable fragment additionally carries the relaxation descriptor
// (Kind, Subtype, Symbol, SymOffset, MaxGrowth) spec.md §3 "Fragment"
// describes, and its Bytes grow in place as pkg/relax upgrades its Subtype.
type Fragment struct {
	Subsegment int
	Address    uint64 // byte offset within the owning section, set by Freeze

	Bytes []byte

	Variable  bool
	Kind      int // relax.Base, opaque here to avoid an import cycle
	Subtype   int
	Symbol    any // *symtab.Symbol, opaque for the same reason
	SymOffset int64
	MaxGrowth int

	Fixups []Fixup
}

// AddFixup appends a fixup to this fragment's pending list.
func (f *Fragment) AddFixup(fx Fixup) { f.Fixups = append(f.Fixups, fx) }

// Len returns the fragment's current byte length.
func (f *Fragment) Len() int { return len(f.Bytes) }
