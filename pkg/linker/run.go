package linker

import (
	"github.com/aixtools/xcoffld/pkg/debugpass"
	"github.com/aixtools/xcoffld/pkg/fixup"
	"github.com/aixtools/xcoffld/pkg/gc"
	"github.com/aixtools/xcoffld/pkg/linkerr"
	"github.com/aixtools/xcoffld/pkg/section"
	"github.com/aixtools/xcoffld/pkg/strtab"
	"github.com/aixtools/xcoffld/pkg/stub"
	"github.com/aixtools/xcoffld/pkg/symtab"
	"github.com/aixtools/xcoffld/pkg/xcoffobj"
	"github.com/aixtools/xcoffld/types"
)

// PendingFixup bundles one raw XCOFF relocation with the owning csect, its
// byte offset within that csect's own fragment, and its resolved target, so
// RelocateAll can patch or queue it once section layout is final (spec.md
// §4.C13 steps 2-3). Where is captured before Layout runs, while the
// csect's Section still carries its pre-link VMA.
type PendingFixup struct {
	Csect  *xcoffobj.Csect
	Where  int
	Reloc  types.Reloc
	Target *symtab.Symbol
}

// CollectFixups resolves every relocation attached to in's csects
// (pkg/xcoffobj, spec.md §4.C8 step 2) against the global symbol table,
// producing the work list RelocateAll and GC's reachability walk both
// consume. Must run before Layout reassigns each csect's VMA.
func CollectFixups(in *xcoffobj.Input, syms *symtab.Table) []PendingFixup {
	var out []PendingFixup
	for _, cs := range in.Csects {
		base := cs.VMA
		for _, r := range cs.AttachedRelocs() {
			target, _ := in.ResolveRelocTarget(syms, r)
			if target != nil {
				switch r.Rtype {
				case types.R_BR, types.R_RBR, types.R_BA, types.R_RBA:
					target.Set(symtab.FlagCalled)
				}
			}
			out = append(out, PendingFixup{
				Csect:  cs,
				Where:  int(uint64(r.Vaddr) - base),
				Reloc:  r,
				Target: target,
			})
		}
	}
	return out
}

// relocKindOf maps an on-disk XCOFF relocation type to pkg/fixup's Kind,
// the inverse of the table an assembler's catalog uses to pick one
// (spec.md §3 "Fixup"). ok is false for a type this pass doesn't resolve
// arithmetically (kept verbatim for output instead).
func relocKindOf(rtype uint8) (fixup.Kind, bool) {
	switch rtype {
	case types.R_POS:
		return fixup.R_POS, true
	case types.R_NEG:
		return fixup.R_NEG, true
	case types.R_REL:
		return fixup.R_REL, true
	case types.R_TOC:
		return fixup.R_TOC, true
	case types.R_GL:
		return fixup.R_GL, true
	case types.R_TCL:
		return fixup.R_TCL, true
	case types.R_RL:
		return fixup.R_RL, true
	case types.R_RLA:
		return fixup.R_RLA, true
	case types.R_REF:
		return fixup.R_REF, true
	case types.R_BA:
		return fixup.R_BA, true
	case types.R_RBA:
		return fixup.R_RBA, true
	case types.R_BR:
		return fixup.R_BR, true
	case types.R_RBR:
		return fixup.R_RBR, true
	default:
		return 0, false
	}
}

// csectFrag adapts *xcoffobj.Csect to fixup.FragmentRef, patching bytes into
// the single data fragment pkg/xcoffobj.newCsect populates from the input's
// raw section contents. Address reads cs.VMA live, so a fixup collected
// before Layout and resolved after it naturally picks up the final address.
type csectFrag struct {
	cs *xcoffobj.Csect
	bo types.ByteOrder
}

func (c csectFrag) Address() uint64 { return c.cs.VMA }

func (c csectFrag) Patch(where, size int, value uint64) error {
	if len(c.cs.Fragments) == 0 || where < 0 || where+4 > len(c.cs.Fragments[0].Bytes) {
		return &linkerr.Error{Kind: linkerr.BadValue, Op: "linker.RelocateAll", Section: c.cs.Name}
	}
	b := c.cs.Fragments[0].Bytes[where:]
	if size >= 32 {
		c.bo.PutUint32(b, uint32(value))
		return nil
	}
	// A sub-word reloc (an R_POS size 31, a 26-bit branch field) patches
	// only its own low-order bits; the surrounding bits keep whatever the
	// input carried there.
	mask := uint32(1)<<uint(size) - 1
	word := c.bo.Uint32(b)
	c.bo.PutUint32(b, word&^mask|uint32(value)&mask)
	return nil
}

// RelocateAll performs spec.md §4.C13 steps 2-3: patch every fixup whose
// value pkg/fixup can resolve now that Layout has assigned final addresses,
// and return whatever MustKeep rejects (or whose target never resolved) for
// the output relocation list. tocAnchor is the r2 value R_TOC/R_TCL fields
// resolve against. callerArgSig is always 0: arg-reloc signature tracking
// is an assembler-time concern (pkg/fixup.MustKeep rule (a)), not one the
// final link pass re-derives from a linked object.
func (l *Linker) RelocateAll(pending []PendingFixup, bo types.ByteOrder, tocAnchor int64, signedOverflowOK bool) ([]PendingFixup, error) {
	var kept []PendingFixup
	for _, p := range pending {
		if p.Target == nil {
			if !l.Callbacks.UnattachedReloc(p.Csect.Name, uint64(p.Reloc.Vaddr), "") {
				return kept, &linkerr.Error{Kind: linkerr.UnattachedReloc, Op: "linker.RelocateAll", Section: p.Csect.Name}
			}
			kept = append(kept, p)
			continue
		}
		kind, ok := relocKindOf(p.Reloc.Rtype)
		if !ok {
			kept = append(kept, p)
			continue
		}
		pcrel := kind == fixup.R_REL || kind == fixup.R_BR || kind == fixup.R_RBR
		fx := fixup.New(csectFrag{cs: p.Csect, bo: bo}, p.Where, p.Reloc.Bitsize(), kind, p.Target, 0, pcrel)
		pcAddr := fx.Frag.Address() + uint64(fx.Where)
		res, err := fixup.Resolve(fx, pcAddr, 0, tocAnchor, 0, signedOverflowOK)
		if err != nil {
			if !l.Callbacks.RelocOverflow(p.Csect.Name, uint64(p.Reloc.Vaddr), p.Target.Name, "relocation") {
				return kept, err
			}
			kept = append(kept, p)
			continue
		}
		if res.Done {
			if err := fx.Frag.Patch(fx.Where, fx.Size, uint64(res.Value)); err != nil {
				return kept, err
			}
			continue
		}
		kept = append(kept, p)
	}
	return kept, nil
}

// linkDescriptors pairs every called entry-point symbol (".foo") with its
// descriptor companion ("foo"), creating the companion if absent; the
// companion, not the entry point, carries the DESCRIPTOR bit (spec.md §3
// Invariants). GC's loader-copy classification and stub synthesis both
// consult these links.
func linkDescriptors(syms *symtab.Table) {
	for _, s := range syms.All() {
		if !s.Has(symtab.FlagCalled) || !s.IsEntryPointName() || s.Descriptor != nil {
			continue
		}
		d := syms.Lookup(s.DescriptorName())
		s.Descriptor = d
		d.Descriptor = s
		d.Set(symtab.FlagDescriptor)
		d.IsDescriptor = true
	}
}

// rewriteStubCallSites walks every branch relocation whose target just got
// a glink stub and rewrites the instruction after the bl, if it is the
// compiler's "cror 15,15,15"/"cror 31,31,31" padding, to "lwz r2,20(r1)"
// so the caller's TOC pointer is restored on return through the stub
// (spec.md §4.C12, §8 scenario 3).
func rewriteStubCallSites(l *Linker, pending []PendingFixup, bo types.ByteOrder) {
	for _, p := range pending {
		if p.Target == nil || !l.Stubs.Stubbed(p.Target) {
			continue
		}
		if p.Reloc.Rtype != types.R_BR && p.Reloc.Rtype != types.R_RBR {
			continue
		}
		if len(p.Csect.Fragments) == 0 {
			continue
		}
		b := p.Csect.Fragments[0].Bytes
		next := p.Where + 4
		if next < 0 || next+4 > len(b) {
			continue
		}
		if word, ok := stub.RewriteCrorNop(bo.Uint32(b[next:])); ok {
			bo.PutUint32(b[next:], word)
		}
	}
}

// BuildOutputRelocs groups every kept PendingFixup by its owning output
// section, sorts each group by address, resolves r_symndx from the target's
// final OutSymIndex (spec.md §4.C13 steps 5-6), and renders the on-disk
// bytes.
func BuildOutputRelocs(kept []PendingFixup, bo types.ByteOrder) map[*section.Section][]byte {
	bySection := make(map[*section.Section][]PendingFixup)
	for _, p := range kept {
		bySection[p.Csect.Section] = append(bySection[p.Csect.Section], p)
	}
	out := make(map[*section.Section][]byte, len(bySection))
	for sec, ps := range bySection {
		sortByVaddr(ps)
		buf := make([]byte, 0, len(ps)*types.RelocSize)
		for _, p := range ps {
			var symndx uint32
			if p.Target != nil && p.Target.OutSymIndex >= 0 {
				symndx = uint32(p.Target.OutSymIndex)
			}
			r := types.Reloc{Vaddr: p.Reloc.Vaddr, Symndx: symndx, Size: p.Reloc.Size, Rtype: p.Reloc.Rtype}
			b := make([]byte, types.RelocSize)
			r.Put(b, bo)
			buf = append(buf, b...)
		}
		out[sec] = buf
	}
	return out
}

func sortByVaddr(ps []PendingFixup) {
	for i := 1; i < len(ps); i++ {
		for j := i; j > 0 && ps[j].Reloc.Vaddr < ps[j-1].Reloc.Vaddr; j-- {
			ps[j], ps[j-1] = ps[j-1], ps[j]
		}
	}
}

// Rendered is every output byte range spec.md §4.C13 steps 5-8 compute: the
// resolved relocation list per section, the `.loader` section body, the
// output string table, the debug string table, and each output section's
// final contents. Writing these at specific file offsets is the embedder's
// BlobWriter, spec.md §1's named external collaborator -- Render only
// computes what such a writer needs.
type Rendered struct {
	SectionRelocs map[*section.Section][]byte
	SectionBytes  map[*section.Section][]byte
	Loader        []byte
	Strtab        []byte
	DebugStrtab   []byte
}

// Render performs spec.md §4.C13 steps 5-8 over already-laid-out sections
// and an already-emitted symbol list.
func (l *Linker) Render(kept []PendingFixup, keptSyms []*symtab.Symbol, bo types.ByteOrder) Rendered {
	out := Rendered{
		SectionRelocs: BuildOutputRelocs(kept, bo),
		SectionBytes:  make(map[*section.Section][]byte, len(l.Sections)),
		Loader:        l.Loader.Write(bo),
	}
	for _, sec := range l.Sections {
		out.SectionBytes[sec] = sec.Bytes()
	}

	st := strtab.New(false)
	dst := strtab.New(false)
	for _, s := range keptSyms {
		if len(s.Name) > 8 {
			st.Add(s.Name)
		}
		if s.StorageClass == types.C_FILE {
			dst.Add(s.Name)
		}
	}
	out.Strtab = st.WithLengthPrefix(bo.PutUint32)
	out.DebugStrtab = dst.WithLengthPrefix(bo.PutUint32)
	return out
}

// ValidateDebug runs pkg/debugpass over one input's embedded DWARF sections
// when LinkOptions.ValidateDebug is set (SPEC_FULL.md §B), surfacing a
// malformed-debug diagnostic before the link proceeds. It is a no-op when
// the option is off.
func (l *Linker) ValidateDebug(get debugpass.SectionData) error {
	if !l.Options.ValidateDebug {
		return nil
	}
	_, err := debugpass.Validate(get)
	return err
}

// rawSectionData adapts one xcoffobj.Input's raw COFF sections to
// debugpass.SectionData, so RunXCOFF can offer every input's .dw* sections
// (if any) to ValidateDebug, looked up by RawSection.Name rather than by
// section index.
func rawSectionData(in *xcoffobj.Input) debugpass.SectionData {
	return func(name string) ([]byte, bool) {
		for _, rs := range in.Raw {
			if rs.Name == name {
				return rs.Data, len(rs.Data) > 0
			}
		}
		return nil, false
	}
}

// gcSection adapts *xcoffobj.Csect to gc.Section, reusing section.FlagMark
// (the same bit pkg/section already reserves for this) for the mark phase
// and zeroing the csect's single data fragment on sweep.
type gcSection struct {
	cs     *xcoffobj.Csect
	relocs []gc.Reloc
}

func (g gcSection) Mark()              { g.cs.Flags |= section.FlagMark }
func (g gcSection) Marked() bool       { return g.cs.Flags&section.FlagMark != 0 }
func (g gcSection) Owned() bool        { return true }
func (g gcSection) Special() bool      { return false }
func (g gcSection) Relocs() []gc.Reloc { return g.relocs }
func (g gcSection) Zero() {
	g.cs.Size = 0
	g.cs.Fragments = nil
}

func gcRelocKind(rtype uint8) gc.RelocKind {
	switch rtype {
	case types.R_POS:
		return gc.RelocPOS
	case types.R_NEG:
		return gc.RelocNEG
	case types.R_RL:
		return gc.RelocRL
	case types.R_RLA:
		return gc.RelocRLA
	default:
		return gc.RelocOther
	}
}

// RunXCOFF drives every phase of spec.md §4.C13 over a set of already-split
// XCOFF inputs (pkg/xcoffobj.Split), in ld's own order: resolve the entry
// point and exports, scan archives, run GC, synthesize stubs, reject
// anything still undefined, lay out sections, relocate their contents,
// emit the symbol table, build the loader section, and render the output
// byte ranges. This is the one call site that runs Linker's
// resolveEntryAndExports/runGC phases (and pkg/xcoffobj/pkg/fixup together)
// over real parsed input rather than each package's own unit tests.
func RunXCOFF(l *Linker, inputs []*xcoffobj.Input, syms *symtab.Table, headerEnd uint64, bo types.ByteOrder, signedOverflowOK bool) (Rendered, error) {
	l.resolveEntryAndExports()

	var pending []PendingFixup
	var allCsects []*xcoffobj.Csect
	for _, in := range inputs {
		if err := l.ValidateDebug(rawSectionData(in)); err != nil {
			return Rendered{}, err
		}
		pending = append(pending, CollectFixups(in, syms)...)
		allCsects = append(allCsects, in.Csects...)
	}

	linkDescriptors(syms)

	relocsByCsect := make(map[*xcoffobj.Csect][]gc.Reloc, len(allCsects))
	for _, p := range pending {
		relocsByCsect[p.Csect] = append(relocsByCsect[p.Csect], gc.Reloc{
			Target: p.Target,
			Kind:   gcRelocKind(p.Reloc.Rtype),
			DynDef: p.Target != nil && p.Target.Has(symtab.FlagDefDynamic),
			Descr: p.Target != nil && p.Target.State == symtab.StateUndefined &&
				p.Target.Descriptor != nil && p.Target.Descriptor.Has(symtab.FlagCalled),
		})
	}

	csectOf := make(map[*section.Section]*xcoffobj.Csect, len(allCsects))
	for _, cs := range allCsects {
		csectOf[cs.Section] = cs
	}

	sectionFor := func(idx *int) gc.Section {
		if idx == nil || *idx < 0 || *idx >= len(l.Sections) {
			return nil
		}
		cs, ok := csectOf[l.Sections[*idx]]
		if !ok {
			return nil
		}
		return gcSection{cs: cs, relocs: relocsByCsect[cs]}
	}
	sectionOf := func(s *symtab.Symbol) gc.Section { return sectionFor(s.Section) }
	tocSectionOf := func(s *symtab.Symbol) gc.Section { return sectionFor(s.TOC.Section) }

	// ArchiveScan (spec.md §4.C9) runs ahead of GC; this front end doesn't
	// yet feed it real archive iterators (cmd/xcoffld only links plain
	// object files), so it's called with none to give it a real, if
	// presently trivial, non-test call site.
	if err := l.ArchiveScan(nil, nil); err != nil {
		return Rendered{}, err
	}

	// Sort and bind sections before GC: the mark walk resolves symbols to
	// sections through their Section/TOC.Section indices, which only exist
	// once every csect knows its place in the flat output list. Sweep zeros
	// a section's contents but never removes it, so binding first is safe.
	rawSections := make([]*section.Section, len(allCsects))
	for i, cs := range allCsects {
		rawSections[i] = cs.Section
	}
	l.Sections = SortSectionsForOutput(rawSections)
	for idx, sec := range l.Sections {
		sec.TargetIndex = idx
		cs := csectOf[sec]
		cs.BindSection(idx)
		if cs.TOCFor != nil {
			i := idx
			cs.TOCFor.TOC.Section = &i
		}
	}

	if l.Options.GC {
		gcSections := make([]gc.Section, len(allCsects))
		for i, cs := range allCsects {
			gcSections[i] = gcSection{cs: cs, relocs: relocsByCsect[cs]}
		}
		l.runGC(sectionOf, tocSectionOf, gcSections)
	}

	l.SynthesizeStubs(syms.All())
	rewriteStubCallSites(l, pending, bo)

	if err := l.CheckUndefined(syms.All()); err != nil {
		return Rendered{}, err
	}

	_, tocAnchor, err := l.Layout(headerEnd)
	if err != nil {
		return Rendered{}, err
	}

	// Layout fixed every TOC csect's VMA; give each merged symbol its slot
	// address (spec.md §3's "a symbol with SET_TOC owns a unique 4-byte
	// slot") and fill in the toc_addr word of every synthesized descriptor.
	for _, cs := range allCsects {
		if cs.TOCFor != nil {
			cs.TOCFor.TOC.Offset = int64(cs.VMA)
			cs.TOCFor.TOC.HasOffset = true
		}
	}
	l.Stubs.PatchDescriptorTOC(uint32(tocAnchor))

	kept, err := l.RelocateAll(pending, bo, int64(tocAnchor), signedOverflowOK)
	if err != nil {
		return Rendered{}, err
	}

	ldrel := make(map[*symtab.Symbol]types.LoaderReloc)
	for _, p := range pending {
		if p.Target == nil || !p.Target.Has(symtab.FlagLDRel) {
			continue
		}
		if _, exists := ldrel[p.Target]; exists {
			continue
		}
		ldrel[p.Target] = types.LoaderReloc{
			Vaddr:  uint32(p.Csect.VMA) + uint32(p.Where),
			Rtype:  uint16(p.Reloc.Rtype),
			Rsecnm: uint16(p.Csect.TargetIndex),
		}
	}

	keptSyms := l.EmitSymbols(syms.All(), l.Options.GC)

	l.BuildLoaderSection(keptSyms, bo,
		func(s *symtab.Symbol) int16 {
			if s.Section == nil {
				return 0
			}
			return int16(*s.Section)
		},
		func(s *symtab.Symbol) (uint32, uint16, uint16, bool) {
			lr, ok := ldrel[s]
			if !ok {
				return 0, 0, 0, false
			}
			return lr.Vaddr, lr.Rtype, lr.Rsecnm, true
		},
	)

	return l.Render(kept, keptSyms, bo), nil
}
