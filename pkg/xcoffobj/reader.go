// Package xcoffobj reads XCOFF input objects and shreds their COFF
// sections into per-csect synthetic sections, the way spec.md §4.C8
// describes and the way derickr/go's cmd/link/internal/loadxcoff reads
// XCOFF objects for the Go linker: one pass over sections, one pass over
// symbols (with relocs distributed to the csect they fall inside by VMA),
// plus TOC-entry merging and magic-name recording.
package xcoffobj

import (
	"fmt"
	"sort"

	"github.com/aixtools/xcoffld/pkg/linkerr"
	"github.com/aixtools/xcoffld/pkg/section"
	"github.com/aixtools/xcoffld/pkg/symtab"
	"github.com/aixtools/xcoffld/types"
)

// BlobReader is the external collaborator spec.md §1 calls out: the core
// never touches a filesystem directly, only a reader of bytes at an offset.
type BlobReader interface {
	ReadAt(off int64, n int) ([]byte, error)
	Size() int64
}

// RawSection is one input COFF section as read off disk, before csect
// splitting.
type RawSection struct {
	Header types.SectionHeader
	Name   string
	Data   []byte
	Relocs []types.Reloc
}

// Csect is a synthetic per-csect section produced by splitting a RawSection
// (spec.md §3 "Csect"). Enclosing points back to the original COFF section
// index for file-offset/line-number fixups, and FirstSymndx/LastSymndx
// delimit the symbol-table span that logically lives inside it.
type Csect struct {
	*section.Section
	SMClass     uint8
	Enclosing   int // index into Input.Raw
	FirstSymndx int
	LastSymndx  int
	IsCommon    bool

	// TOCFor is the symbol whose output TOC slot this csect is, set on the
	// one TC csect per distinct external name that survives TOC merging
	// (spec.md §4.C8 step 5). pkg/linker fills in the symbol's TOCRef from
	// this csect's final placement.
	TOCFor *symtab.Symbol

	attachedRelocs []types.Reloc

	// boundSymbols accumulates every symtab.Symbol this csect defines (its
	// own XTY_SD name plus any XTY_LD labels inside it), so pkg/linker can
	// fill in each one's Section index once it knows where this csect lands
	// in the final flat output section list (spec.md §4.C13 step 1 assigns
	// that only after every input, including archive pull-ins, is split).
	boundSymbols []*symtab.Symbol
}

// AttachedRelocs returns the relocations from the enclosing raw section
// whose address falls inside this csect (spec.md §4.C8 step 2), the set
// pkg/linker relocates via pkg/fixup (spec.md §4.C13 steps 2-3).
func (cs *Csect) AttachedRelocs() []types.Reloc { return cs.attachedRelocs }

func (cs *Csect) bind(sym *symtab.Symbol) {
	cs.boundSymbols = append(cs.boundSymbols, sym)
}

// BindSection sets Section = idx on every symbol this csect has accumulated
// via bind, once the caller has appended cs.Section into its flat output
// section list at that index.
func (cs *Csect) BindSection(idx int) {
	i := idx
	for _, s := range cs.boundSymbols {
		s.Section = &i
	}
}

// Input is one parsed XCOFF object.
type Input struct {
	Name      string
	ByteOrder types.ByteOrder
	Raw       []RawSection
	Symbols   []types.SymbolEntry
	Strtab    []byte

	Csects []*Csect

	// Magic-name slots recorded while walking symbols (spec.md §4.C8 step 6).
	Magic map[string]*symtab.Symbol

	// auxCsect holds the decoded AuxCSect for every symbol index ReadInput
	// found one for, keyed by symtab index; Split's auxOf callback is
	// normally just this map's lookup.
	auxCsect map[int]*types.AuxCSect
}

// AuxCSect returns the decoded csect aux entry for symbol index i, or nil
// if i has none (ReadInput only decodes aux records for C_EXT/C_HIDEXT/
// C_WEAKEXT symbols, the only storage classes spec.md §4.C8 splits on).
func (in *Input) AuxCSect(i int) *types.AuxCSect { return in.auxCsect[i] }

// ResolveRelocTarget looks up the global symbol a raw relocation targets by
// indexing into this input's own symbol stream and resolving the decoded
// name in syms, the bridge spec.md §4.C5's Value computation needs between
// an on-disk symndx and a *symtab.Symbol.
func (in *Input) ResolveRelocTarget(syms *symtab.Table, r types.Reloc) (*symtab.Symbol, bool) {
	idx := int(r.Symndx)
	if idx < 0 || idx >= len(in.Symbols) {
		return nil, false
	}
	name := in.Symbols[idx].NameString(in.Strtab, in.ByteOrder)
	if name == "" {
		return nil, false
	}
	return syms.Lookup(name), true
}

// Split performs the full csect-splitting algorithm of spec.md §4.C8: sort
// each raw section's relocs by address (step 1), then walk the external
// symbol stream, creating a synthetic per-csect section on every XTY_SD/
// XTY_CM entry and resolving XTY_LD/XTY_ER as they're seen. auxOf returns
// the decoded AuxCSect for symbol index i, or nil if i isn't a C_EXT/
// C_HIDEXT/C_WEAKEXT symbol with aux data.
func Split(in *Input, syms *symtab.Table, auxOf func(i int) *types.AuxCSect) error {
	for i := range in.Raw {
		sort.Slice(in.Raw[i].Relocs, func(a, b int) bool {
			return in.Raw[i].Relocs[a].Vaddr < in.Raw[i].Relocs[b].Vaddr
		})
	}
	in.Magic = make(map[string]*symtab.Symbol)

	var lastCsect *Csect
	for i := range in.Symbols {
		sym := &in.Symbols[i]
		switch sym.SClass {
		case types.C_EXT, types.C_HIDEXT, types.C_WEAKEXT:
		default:
			continue
		}
		aux := auxOf(i)
		if aux == nil {
			continue
		}
		cs, err := SplitSymbol(in, syms, i, sym, aux)
		if err != nil {
			return err
		}
		if cs != nil && aux.Smtyp() != types.XTY_LD {
			if lastCsect != nil {
				lastCsect.LastSymndx = i - 1
			}
			lastCsect = cs
		}
	}
	if lastCsect != nil {
		lastCsect.LastSymndx = len(in.Symbols) - 1
	}
	for _, cs := range in.Csects {
		if err := CheckRange(in, cs); err != nil {
			return err
		}
	}
	return nil
}

// SplitSymbol processes one C_EXT/C_HIDEXT symbol with its aux csect entry,
// performing steps 2-5 of spec.md §4.C8. symIndex is this symbol's index in
// in.Symbols (used for FirstSymndx/LastSymndx bookkeeping and as the
// inherited TOC-symbol index for later same-name TOC references).
func SplitSymbol(in *Input, syms *symtab.Table, symIndex int, sym *types.SymbolEntry, aux *types.AuxCSect) (*Csect, error) {
	name := sym.NameString(in.Strtab, in.ByteOrder)
	if aux.Smtyp() == types.XTY_ER {
		// External reference: no enclosing section (n_scnum is 0); just make
		// sure the name exists, undefined, in the global table.
		syms.Lookup(name)
		return nil, nil
	}
	scnum := int(sym.Scnum)
	if scnum < 1 || scnum > len(in.Raw) {
		return nil, &linkerr.Error{Kind: linkerr.BadValue, Op: "xcoffobj.SplitSymbol", File: in.Name, Symbol: name}
	}
	enclosing := &in.Raw[scnum-1]

	switch aux.Smtyp() {
	case types.XTY_SD:
		cs := newCsect(in, enclosing, scnum-1, aux.SMClass, uint64(sym.Value), uint64(aux.SectionLen))
		cs.FirstSymndx = symIndex
		attachRelocsByVMA(in, enclosing, cs)
		recordMagicName(in, syms, name, cs)

		// Register the csect's own defining name in the global table (spec.md
		// §3 Invariants' undef < common < defweak < defined lattice): a
		// C_WEAKEXT definition only reaches defweak, never promoting over an
		// already-defined strong symbol of the same name.
		s := syms.Lookup(name)
		if sym.SClass == types.C_WEAKEXT && s.State != symtab.StateDefined {
			s.State = symtab.StateDefWeak
		} else {
			s.State = symtab.StateDefined
		}
		s.Value = 0
		s.SMClass = aux.SMClass
		s.StorageClass = sym.SClass
		s.Set(symtab.FlagDefRegular)
		cs.bind(s)

		if isTOCCandidate(sym.SClass, aux, cs) && mergeTOCEntry(in, syms, name, cs) {
			// Collapsed into an earlier input's slot: the csect contributes
			// nothing to the output, so it never joins in.Csects.
			return nil, nil
		}
		in.Csects = append(in.Csects, cs)
		return cs, nil

	case types.XTY_CM:
		cs := newCsect(in, enclosing, scnum-1, types.XMC_BS, uint64(sym.Value), uint64(aux.SectionLen))
		cs.IsCommon = true
		cs.FirstSymndx = symIndex
		if sym.SClass == types.C_EXT {
			s := syms.Lookup(name)
			if s.State == symtab.StateUndefined {
				s.State = symtab.StateCommon
				s.CommonSize = int64(aux.SectionLen)
				s.CommonAlign = aux.Align()
				s.StorageClass = sym.SClass
			} else if s.State == symtab.StateCommon && int64(aux.SectionLen) > s.CommonSize {
				s.CommonSize = int64(aux.SectionLen)
				s.CommonAlign = aux.Align()
			}
		}
		in.Csects = append(in.Csects, cs)
		return cs, nil

	case types.XTY_LD:
		// aux.SectionLen is the symtab index of the owning csect; verify and
		// set the label's section (spec.md §4.C8 step 3).
		owner := findCsectBySymndx(in, int(aux.SectionLen))
		if owner == nil {
			return nil, &linkerr.Error{Kind: linkerr.BadValue, Op: "xcoffobj.SplitSymbol(XTY_LD)", File: in.Name, Symbol: name}
		}
		s := syms.Lookup(name)
		s.State = symtab.StateDefined
		s.Value = int64(sym.Value) - int64(owner.VMA)
		s.SMClass = aux.SMClass
		s.StorageClass = sym.SClass
		s.Set(symtab.FlagDefRegular)
		owner.bind(s)
		return owner, nil

	default:
		return nil, &linkerr.Error{Kind: linkerr.BadValue, Op: "xcoffobj.SplitSymbol", File: in.Name, Symbol: name,
			Err: fmt.Errorf("unrecognized SMTYP %d", aux.Smtyp())}
	}
}

func newCsect(in *Input, enclosing *RawSection, enclosingIdx int, smclas uint8, vma, size uint64) *Csect {
	name := types.MappingClassSectionName(smclas)
	sec := section.New(name)
	sec.VMA = vma
	sec.Size = size
	sec.OwnerFile = in.Name
	sec.FileOffset = uint64(enclosing.Header.Scnptr) + (vma - uint64(enclosing.Header.Vaddr))
	if smclas == types.XMC_PR {
		sec.Flags |= section.FlagCode | section.FlagAlloc | section.FlagLoad | section.FlagHasContents
	} else if smclas == types.XMC_BS {
		sec.Flags |= section.FlagAlloc
	} else {
		sec.Flags |= section.FlagAlloc | section.FlagLoad | section.FlagHasContents
	}
	// A BSS csect has no file content to carry (it's zero-fill); every other
	// class gets a single fixed fragment holding its slice of the enclosing
	// section's bytes, the same fragment machinery pkg/asm uses, so
	// pkg/linker can relocate it in place via pkg/fixup without a second
	// byte-buffer representation.
	if smclas != types.XMC_BS && len(enclosing.Data) > 0 {
		start := vma - uint64(enclosing.Header.Vaddr)
		end := start + size
		if end <= uint64(len(enclosing.Data)) {
			sec.Fragments = append(sec.Fragments, &section.Fragment{Bytes: append([]byte(nil), enclosing.Data[start:end]...)})
		}
	}
	return &Csect{Section: sec, SMClass: smclas, Enclosing: enclosingIdx}
}

// attachRelocsByVMA walks the enclosing section's sorted reloc list while
// the reloc address falls inside cs's VMA range, attaching each to cs
// (spec.md §4.C8 step 2). The enclosing failure mode -- a csect whose VMA
// range falls outside its enclosing section -- is fatal BadValue.
func attachRelocsByVMA(in *Input, enclosing *RawSection, cs *Csect) {
	lo, hi := cs.VMA, cs.VMA+cs.Size
	if lo < uint64(enclosing.Header.Vaddr) || hi > uint64(enclosing.Header.Vaddr)+uint64(enclosing.Header.Size) {
		// Caller surfaces this via CheckRange below; we still attach what we
		// can so callers can decide whether to treat it as fatal.
	}
	var kept []types.Reloc
	for _, r := range enclosing.Relocs {
		if uint64(r.Vaddr) >= lo && uint64(r.Vaddr) < hi {
			kept = append(kept, r)
			cs.attachedRelocs = append(cs.attachedRelocs, r)
		}
	}
	_ = kept
}

// CheckRange validates the invariant spec.md §8 states for every csect:
// vma >= enclosing.vma && vma+size <= enclosing.vma+enclosing.size, and the
// file-offset equation.
func CheckRange(in *Input, cs *Csect) error {
	enc := &in.Raw[cs.Enclosing]
	lo, hi := uint64(enc.Header.Vaddr), uint64(enc.Header.Vaddr)+uint64(enc.Header.Size)
	if cs.VMA < lo || cs.VMA+cs.Size > hi {
		return &linkerr.Error{Kind: linkerr.BadValue, Op: "xcoffobj.CheckRange", File: in.Name, Section: cs.Name}
	}
	wantOff := uint64(enc.Header.Scnptr) + (cs.VMA - lo)
	if cs.FileOffset != wantOff {
		return &linkerr.Error{Kind: linkerr.BadValue, Op: "xcoffobj.CheckRange", File: in.Name, Section: cs.Name}
	}
	return nil
}

func findCsectBySymndx(in *Input, symndx int) *Csect {
	for _, cs := range in.Csects {
		if symndx >= cs.FirstSymndx && (cs.LastSymndx == 0 || symndx <= cs.LastSymndx) {
			return cs
		}
	}
	return nil
}

// recordMagicName records _text/_etext/_data/_edata/_end/end into the
// input's Magic map, keyed by name (spec.md §4.C8 step 6).
func recordMagicName(in *Input, syms *symtab.Table, name string, cs *Csect) {
	switch name {
	case "_text", "_etext", "_data", "_edata", "_end", "end":
		in.Magic[name] = syms.Lookup(name)
	}
}

// isTOCCandidate checks the conditions of spec.md §4.C8 step 5's TOC merge
// rule: mapping class XMC_TC, storage class C_HIDEXT, size exactly 4, a
// single R_POS reloc.
func isTOCCandidate(sclass uint8, aux *types.AuxCSect, cs *Csect) bool {
	return aux.SMClass == types.XMC_TC && sclass == types.C_HIDEXT &&
		cs.Size == 4 && len(cs.attachedRelocs) == 1 && cs.attachedRelocs[0].Rtype == types.R_POS
}

// mergeTOCEntry collapses a TOC csect onto the single output TOC entry for
// the externally-visible symbol its one R_POS reloc targets, provided that
// target shares the TOC csect's own name (spec.md §4.C8 step 5). The first
// csect seen for a name becomes the slot owner (cs.TOCFor, FlagSetTOC on
// the symbol); every later same-name entry, from this input or any other,
// reports merged=true and is dropped by the caller.
func mergeTOCEntry(in *Input, syms *symtab.Table, tocSymName string, cs *Csect) (merged bool) {
	target, ok := in.ResolveRelocTarget(syms, cs.attachedRelocs[0])
	if !ok || target.Name != tocSymName {
		return false // reloc targets some other symbol; not a mergeable handle
	}
	if target.Has(symtab.FlagSetTOC) {
		return true
	}
	target.Set(symtab.FlagSetTOC)
	cs.TOCFor = target
	return false
}
