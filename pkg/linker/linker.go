// Package linker implements the final link pass (spec.md §4.C13): it takes
// already-read, csect-split XCOFF inputs (pkg/xcoffobj) whose symbols have
// been merged into one global table (pkg/linkhash) and GC'd (pkg/gc), lays
// out the output sections, resolves or defers every fixup (pkg/fixup),
// synthesizes glink stubs and function descriptors (pkg/stub), builds the
// `.loader` section (pkg/loader), and assembles the output symbol table.
package linker

import (
	"sort"

	"github.com/aixtools/xcoffld/pkg/gc"
	"github.com/aixtools/xcoffld/pkg/linkerr"
	"github.com/aixtools/xcoffld/pkg/linkhash"
	"github.com/aixtools/xcoffld/pkg/loader"
	"github.com/aixtools/xcoffld/pkg/section"
	"github.com/aixtools/xcoffld/pkg/stub"
	"github.com/aixtools/xcoffld/pkg/symtab"
	"github.com/aixtools/xcoffld/types"
)

// Linker holds the state one link accumulates across its phases.
type Linker struct {
	Options   LinkOptions
	Callbacks Callbacks

	Hash   *linkhash.Hash
	Loader *loader.Builder
	Stubs  *stub.Builder

	Sections []*section.Section // output sections, in final emission order
	GCResult gc.Result

	entry   *symtab.Symbol
	exports []*symtab.Symbol
}

// New creates a Linker ready to accumulate sections and symbols. glink and
// ds are the targets the stub builder appends generated code/descriptors
// into. They are not added to Sections: RunXCOFF sets Sections from the
// input csects alone.
func New(opts LinkOptions, cb Callbacks, syms *symtab.Table, glink, ds stub.Target) *Linker {
	return &Linker{
		Options:   opts,
		Callbacks: cb,
		Hash:      linkhash.New(syms),
		Loader:    loader.NewBuilder(opts.LibraryPath),
		Stubs:     stub.NewBuilder(glink, ds),
	}
}

// resolveEntryAndExports looks up the configured entry point and export
// names in the global symbol table, pinning each against stripping
// (spec.md §4.C13 step 4: OutSymIndex -2 means "must not be stripped").
func (l *Linker) resolveEntryAndExports() {
	if l.Options.Entry != "" {
		if s, ok := l.Hash.Symbols.Find(l.Options.Entry); ok {
			s.Set(symtab.FlagEntry)
			s.OutSymIndex = -2
			l.entry = s
		}
	}
	for _, name := range l.Options.Exports {
		if s, ok := l.Hash.Symbols.Find(name); ok {
			s.Set(symtab.FlagExport)
			s.OutSymIndex = -2
			l.exports = append(l.exports, s)
		}
	}
}

// runGC performs spec.md §4.C10's mark/sweep over sectionOf/tocSectionOf,
// both supplied by the caller since only it knows how to map a symbol back
// to the Section that owns it (the linker keeps no symbol->section index
// of its own; pkg/xcoffobj's Csect.Section pointer already carries that).
func (l *Linker) runGC(sectionOf, tocSectionOf func(*symtab.Symbol) gc.Section, gcSections []gc.Section) {
	entryUndefined := l.entry == nil || l.entry.State == symtab.StateUndefined
	l.GCResult = gc.Mark(l.entry, l.exports, sectionOf, tocSectionOf)
	gc.Sweep(gcSections, entryUndefined)
}

// SynthesizeStubs walks every symbol with FlagCalled set and still
// undefined (or defined only in a dynamic input) and gives it a glink stub
// plus TOC entry, per spec.md §4.C12. It also synthesizes a function
// descriptor for every exported descriptor-named symbol (no leading '.')
// whose "."-prefixed entry point is defined and which is not already a
// defined descriptor; exported entry-point names themselves are skipped.
func (l *Linker) SynthesizeStubs(allSymbols []*symtab.Symbol) {
	for _, s := range allSymbols {
		needsStub := s.Has(symtab.FlagCalled) &&
			(s.State == symtab.StateUndefined || s.Has(symtab.FlagDefDynamic)) &&
			!s.Has(symtab.FlagDefRegular)
		if needsStub {
			off, _ := l.Stubs.Glink(s)
			s.State = symtab.StateDefined
			s.Value = int64(off)
			s.SMClass = types.XMC_GL
		}
	}
	for _, e := range l.exports {
		if e.IsEntryPointName() {
			continue
		}
		entry, ok := l.Hash.Symbols.Find("." + e.Name)
		if !ok || entry.State != symtab.StateDefined {
			continue
		}
		if e.State == symtab.StateDefined && e.Has(symtab.FlagDescriptor) {
			continue
		}
		// The TOC word is 0 until layout settles the anchor; RunXCOFF calls
		// Stubs.PatchDescriptorTOC after Layout to fill it in.
		off := l.Stubs.Descriptor(uint32(entry.Value), 0)
		e.State = symtab.StateDefined
		e.Value = int64(off)
		e.Set(symtab.FlagDescriptor)
		e.IsDescriptor = true
		e.Descriptor = entry
		entry.Descriptor = e
	}
}

// Layout assigns file offsets/VMAs to every output section in the order
// given (spec.md §4.C13 step 1), then computes and returns the TOC anchor
// over the combined span of every TOC section (.tc, .tc0, .td — each input
// TOC csect is its own output section, so the anchor must cover them all),
// so callers can resolve every R_TOC/R_TCL fixup against it.
func (l *Linker) Layout(headerEnd uint64) (layouts []Layout, tocAnchor uint64, err error) {
	for _, s := range l.Sections {
		s.Freeze()
	}
	layouts = AssignFileOffsets(l.Sections, headerEnd, l.Options.FileAlign)
	var tocStart, tocEnd uint64
	haveTOC := false
	for _, lay := range layouts {
		switch lay.Section.Name {
		case ".tc", ".tc0", ".td":
			if !haveTOC || lay.Section.VMA < tocStart {
				tocStart = lay.Section.VMA
			}
			if end := lay.Section.VMA + lay.Section.Size; !haveTOC || end > tocEnd {
				tocEnd = end
			}
			haveTOC = true
		}
	}
	if haveTOC {
		anchor, aerr := ComputeTOCAnchor(tocEnd - tocStart)
		if aerr != nil {
			return layouts, 0, aerr
		}
		tocAnchor = tocStart + anchor
	}
	return layouts, tocAnchor, nil
}

// EmitSymbols assigns final output symbol-table indices in input order,
// skipping everything ShouldKeep rejects (spec.md §4.C13 step 4), and
// returns the ordered slice of kept symbols -- the same order their
// SYMENT/AUXCSECT pairs will be written in.
func (l *Linker) EmitSymbols(all []*symtab.Symbol, gcRan bool) []*symtab.Symbol {
	kept := make([]*symtab.Symbol, 0, len(all))
	for _, s := range all {
		if !ShouldKeep(s, l.Options.Strip, gcRan) {
			s.OutSymIndex = -1
			continue
		}
		s.OutSymIndex = len(kept)
		kept = append(kept, s)
	}
	return kept
}

// BuildLoaderSection fills in l.Loader's symbol/reloc tables from every
// kept symbol flagged IMPORT/EXPORT/ENTRY and every reloc gc.Mark flagged
// via FlagLDRel, per spec.md §4.C11's "sizing precedes writing" rule.
// ldrelFor supplies, for a symbol carrying FlagLDRel, the (vaddr, rtype,
// rsecnm) of the one loader reloc it needs; entries with no reloc (pure
// imports/exports) get only a loader symbol.
func (l *Linker) BuildLoaderSection(kept []*symtab.Symbol, bo types.ByteOrder, sectionNumOf func(*symtab.Symbol) int16, ldrelFor func(*symtab.Symbol) (vaddr uint32, rtype, rsecnm uint16, ok bool)) {
	for _, s := range kept {
		if !s.Has(symtab.FlagImport) && !s.Has(symtab.FlagExport) && !s.Has(symtab.FlagEntry) {
			continue
		}
		symType := uint8(0)
		if s.Has(symtab.FlagEntry) {
			symType = types.L_ENTRY
		} else if s.Has(symtab.FlagExport) {
			symType = types.L_EXPORT
		} else if s.Has(symtab.FlagImport) {
			symType = types.L_IMPORT
		}
		idx := l.Loader.AddSymbol(s.Name, uint32(s.Value), sectionNumOf(s), symType, s.SMClass, 0, 0, bo)
		s.LoaderIndex = idx
	}
	for _, s := range kept {
		if !s.Has(symtab.FlagLDRel) {
			continue
		}
		if vaddr, rtype, rsecnm, ok := ldrelFor(s); ok {
			l.Loader.AddReloc(vaddr, uint32(s.LoaderIndex), rtype, rsecnm)
		}
	}
}

// ArchiveScan runs the repeat-until-no-progress archive pull-in loop
// (spec.md §4.C9) ahead of GC, delegating to l.Hash.
func (l *Linker) ArchiveScan(iters []linkhash.ArchiveIterator, pull func(linkhash.ArchiveMember) error) error {
	return l.Hash.ScanArchives(iters, pull)
}

// CheckUndefined returns an UndefinedSymbol error naming the first symbol
// still undefined after archive scanning that has a regular reference
// (FlagRefRegular). Only that first symbol is reported, and nothing is
// offered to Callbacks: the condition is always fatal, matching ld's
// default.
func (l *Linker) CheckUndefined(all []*symtab.Symbol) error {
	var firstOffender *symtab.Symbol
	for _, s := range all {
		if s.State == symtab.StateUndefined && s.Has(symtab.FlagRefRegular) {
			firstOffender = s
			break
		}
	}
	if firstOffender != nil {
		return &linkerr.Error{Kind: linkerr.UndefinedSymbol, Op: "linker.CheckUndefined", Symbol: firstOffender.Name}
	}
	return nil
}

// SortSectionsForOutput orders output sections the way XCOFF conventionally
// lays them out: .text, .data (TOC/data csects), .bss, then the synthetic
// .loader/.debug/line-number sections last, preserving relative input order
// within each group (spec.md §4.C13 step 1).
func SortSectionsForOutput(secs []*section.Section) []*section.Section {
	rank := func(s *section.Section) int {
		switch {
		case s.Flags&section.FlagCode != 0:
			return 0
		case s.Name == ".bss":
			return 2
		case s.Name == ".loader" || s.Name == ".debug":
			return 3
		default:
			return 1
		}
	}
	out := append([]*section.Section(nil), secs...)
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}
