// Package symtab implements the linker's symbol records (spec.md §3): a
// discriminated state lattice, the XCOFF-specific extra fields each symbol
// carries, and a chained name hash analogous to go-macho's FileTOC being
// the single place every higher-level package reaches into for symbol
// identity.
package symtab

import "fmt"

// State is the discriminated state of a symbol. Transitions are monotone in
// the lattice undef < common < defweak < defined (spec.md §3 Invariants);
// dynamic definitions never promote over a regular definition.
type State int

const (
	StateUndefined State = iota
	StateCommon
	StateDefWeak
	StateUndefWeak
	StateDefined
	StateIndirect
)

func (s State) String() string {
	switch s {
	case StateUndefined:
		return "undefined"
	case StateCommon:
		return "common"
	case StateDefWeak:
		return "defweak"
	case StateUndefWeak:
		return "undefweak"
	case StateDefined:
		return "defined"
	case StateIndirect:
		return "indirect"
	default:
		return "invalid"
	}
}

// rank gives the lattice position used by CanPromote; states not comparable
// on the undef<common<defweak<defined chain (undefweak, indirect) are
// handled as special cases in CanPromote itself.
func (s State) rank() int {
	switch s {
	case StateUndefined, StateUndefWeak:
		return 0
	case StateCommon:
		return 1
	case StateDefWeak:
		return 2
	case StateDefined:
		return 3
	default:
		return -1
	}
}

// Flag is a bit in the per-symbol XCOFF flag bitfield (spec.md §3).
type Flag uint32

const (
	FlagRefRegular Flag = 1 << iota
	FlagDefRegular
	FlagDefDynamic
	FlagLDRel
	FlagEntry
	FlagCalled
	FlagSetTOC
	FlagImport
	FlagExport
	FlagBuiltLDSym
	FlagMark
	FlagHasSize
	FlagDescriptor
)

// TOCRef records how a symbol's TOC slot is known: either we own the slot
// at a given offset in the output TOC section (created by this link), or we
// inherited a TOC-symbol index from an already-processed entry (spec.md §3).
type TOCRef struct {
	Section   *int // identifies the owning TOC section by its index in the section table; nil if none
	Offset    int64
	SymIndex  int // valid when inherited rather than offset-owning
	HasOffset bool
}

// Symbol is one entry in the linker's symbol table.
type Symbol struct {
	Name  string
	State State

	// Definition location, valid when State is StateDefined/StateDefWeak.
	Section *int // index into the owning input's/output's section list
	Value   int64

	// Common-symbol sizing, valid when State is StateCommon.
	CommonSize  int64
	CommonAlign uint8

	// Indirect target, valid when State is StateIndirect.
	IndirectTarget *Symbol

	// Input that first referenced this symbol while undefined, if any.
	ReferencingInput string

	// --- XCOFF extra state (spec.md §3) ---
	OutSymIndex  int // initial -1; -2 means "must not be stripped"
	TOC          TOCRef
	Descriptor   *Symbol // cross-link to the paired descriptor/entry symbol
	IsDescriptor bool    // exactly one of {this, Descriptor} carries FlagDescriptor

	LoaderSym   *LoaderSymbol
	LoaderIndex int

	SMClass      uint8 // storage-mapping class (XMC_*)
	StorageClass uint8 // COFF storage class (C_*), distinct from SMClass: the two share small integer values
	Flags        Flag
}

// LoaderSymbol is the optional loader-table record a symbol owns once it is
// marked IMPORT/EXPORT/ENTRY (spec.md §3 "Loader entry").
type LoaderSymbol struct {
	Name          string
	Value         uint32
	SectionNumber int16
	StorageType   uint8
	StorageClass  uint8
	ImportFileID  uint32
	ParmTypeOff   uint32
}

func NewUndefined(name string) *Symbol {
	return &Symbol{Name: name, State: StateUndefined, OutSymIndex: -1, LoaderIndex: -1}
}

func (s *Symbol) Has(f Flag) bool { return s.Flags&f != 0 }
func (s *Symbol) Set(f Flag)      { s.Flags |= f }
func (s *Symbol) Clear(f Flag)    { s.Flags &^= f }

// IsEntryPointName reports whether the symbol's name begins with "." — the
// XCOFF convention for a function's entry point as opposed to its
// descriptor (spec.md §3 Invariants, GLOSSARY "Function descriptor").
func (s *Symbol) IsEntryPointName() bool {
	return len(s.Name) > 0 && s.Name[0] == '.'
}

// DescriptorName strips the leading '.' to get the descriptor's name.
func (s *Symbol) DescriptorName() string {
	if s.IsEntryPointName() {
		return s.Name[1:]
	}
	return s.Name
}

// CanPromote reports whether a transition from s.State to next is a legal
// monotone move in the state lattice (spec.md §3 Invariants). A dynamic
// definition (fromDynamic) is never allowed to promote over an existing
// regular definition.
func (s *Symbol) CanPromote(next State, fromDynamic bool) bool {
	if s.State == next {
		return true
	}
	if fromDynamic && s.State == StateDefined && s.Has(FlagDefRegular) {
		return false
	}
	if s.State == StateUndefWeak || next == StateUndefWeak {
		// undefweak can be promoted to anything higher than undef; treat
		// like undefined for ranking purposes.
		return next.rank() >= StateUndefined.rank()
	}
	if s.State == StateIndirect || next == StateIndirect {
		return true
	}
	return next.rank() >= s.State.rank()
}

// String renders a compact diagnostic form, e.g. for multiple-definition
// callbacks (spec.md §5).
func (s *Symbol) String() string {
	return fmt.Sprintf("%s [%s]", s.Name, s.State)
}
