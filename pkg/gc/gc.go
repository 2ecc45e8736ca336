// Package gc implements the mark/sweep garbage collector spec.md §4.C10
// describes: mark every csect reachable from the entry point and exported
// symbols, classify which relocs need a copy in the loader section as a
// side effect, then sweep every unmarked, non-special section owned by an
// XCOFF input down to zero size.
package gc

import "github.com/aixtools/xcoffld/pkg/symtab"

// Section is the minimal view GC needs of a section: its relocs (as
// symbols they reference, since the classification only cares about the
// target symbol and reloc kind) and whether it's one of the special
// sections that sweep must never touch.
type Section interface {
	Mark()
	Marked() bool
	Owned() bool   // owned by an XCOFF input (as opposed to a synthetic output section)
	Special() bool // .debug, loader, linkage, TOC, descriptor sections
	Relocs() []Reloc
	Zero() // sweep: zero size, reloc count, lineno count
}

// Reloc is the minimal view GC needs of one relocation.
type Reloc struct {
	Target *symtab.Symbol
	Kind   RelocKind
	DynDef bool // target is a dynamic-object definition
	Descr  bool // target is a called-but-undefined descriptor companion
}

// RelocKind classifies a relocation for the "needs loader copy" test
// (spec.md §4.C10): only R_POS/R_NEG/R_RL/R_RLA can ever need one.
type RelocKind int

const (
	RelocOther RelocKind = iota
	RelocPOS
	RelocNEG
	RelocRL
	RelocRLA
)

// Result accumulates the ldrel_count side effect of the mark walk.
type Result struct {
	LDRelCount int
}

// Mark walks the reachability graph from the entry set (the ENTRY symbol
// plus every EXPORT symbol) per spec.md §4.C10. sectionOf resolves a
// symbol to its defining Section (and TOC section, via tocSectionOf);
// both may return nil.
func Mark(entry *symtab.Symbol, exports []*symtab.Symbol, sectionOf func(*symtab.Symbol) Section, tocSectionOf func(*symtab.Symbol) Section) Result {
	var res Result
	visited := make(map[*symtab.Symbol]bool)

	var markSymbol func(s *symtab.Symbol)
	var markSection func(sec Section)

	markSymbol = func(s *symtab.Symbol) {
		if s == nil || visited[s] {
			return
		}
		visited[s] = true
		s.Set(symtab.FlagMark)
		if sec := sectionOf(s); sec != nil {
			markSection(sec)
		}
		if sec := tocSectionOf(s); sec != nil {
			markSection(sec)
		}
	}

	markSection = func(sec Section) {
		if sec == nil || sec.Marked() {
			return
		}
		sec.Mark()
		for _, r := range sec.Relocs() {
			markSymbol(r.Target)
			if needsLoaderCopy(r) {
				res.LDRelCount++
				if r.Target != nil {
					r.Target.Set(symtab.FlagLDRel)
				}
			}
		}
	}

	if entry != nil {
		markSymbol(entry)
	}
	for _, e := range exports {
		markSymbol(e)
	}
	return res
}

// needsLoaderCopy classifies one reloc per spec.md §4.C10: R_POS/NEG/RL/RLA
// against a non-defined symbol, a dynamic-object definition, or a
// called-but-undefined descriptor companion.
func needsLoaderCopy(r Reloc) bool {
	switch r.Kind {
	case RelocPOS, RelocNEG, RelocRL, RelocRLA:
	default:
		return false
	}
	if r.Target == nil {
		return false
	}
	if r.DynDef {
		return true
	}
	if r.Descr {
		return true
	}
	return r.Target.State == symtab.StateUndefined || r.Target.State == symtab.StateUndefWeak
}

// Sweep zeros every owned, unmarked, non-special section (spec.md §4.C10
// sweep phase). When entryUndefined is true, sections are still walked for
// LDRelCount accuracy (the caller should have already done the Mark pass
// regardless) but the sweep itself is skipped, since GC is disabled when
// the entry symbol is undefined.
func Sweep(sections []Section, entryUndefined bool) {
	if entryUndefined {
		return
	}
	for _, sec := range sections {
		if !sec.Owned() || sec.Special() || sec.Marked() {
			continue
		}
		sec.Zero()
	}
}
