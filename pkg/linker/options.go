package linker

import "github.com/aixtools/xcoffld/pkg/symtab"

// LinkOptions configures one run of the final link pass (spec.md §4.C13,
// §5 "Link Options").
type LinkOptions struct {
	Entry       string   // entry point symbol name, "" disables GC (spec.md §5)
	Exports     []string // additional EXPORT symbol names
	LibraryPath string   // id-0 import file entry (spec.md §3 "Import file")
	FileAlign   uint32   // section file-offset alignment; 0 defaults to 4

	GC            bool // run pkg/gc mark/sweep before emitting symbols
	ValidateDebug bool // run pkg/debugpass over embedded DWARF, non-mutating

	// Strip controls which symbol classes are dropped from the output
	// symbol table (spec.md §4.C13 step 4 "stripping rules").
	Strip StripLevel
}

// StripLevel mirrors the strip/discard knobs xcofflink.c exposes
// (SPEC_FULL.md §D): "none" keeps everything strip-eligible, "debugger"
// drops line-number/debug-only symbols, "all" additionally drops locals
// with no relocations referencing them.
type StripLevel int

const (
	StripNone StripLevel = iota
	StripDebugger
	StripAll
)

// Callbacks lets the embedder observe and veto the three recoverable
// conditions spec.md §5 names; each returns whether the link should
// continue (true) or abort (false).
type Callbacks interface {
	MultipleDefinition(sym *symtab.Symbol, oldInput, newInput string) bool
	UnattachedReloc(sectionName string, offset uint64, symbolName string) bool
	RelocOverflow(sectionName string, offset uint64, symbolName string, kind string) bool
}

// DefaultCallbacks warns and continues past multiple definitions and
// unattached relocs, and warns and aborts on reloc overflow.
type DefaultCallbacks struct {
	Warn func(format string, args ...any)
}

func (d DefaultCallbacks) MultipleDefinition(sym *symtab.Symbol, oldInput, newInput string) bool {
	if d.Warn != nil {
		d.Warn("multiple definition of %s: %s redefines %s", sym.Name, newInput, oldInput)
	}
	return true
}

func (d DefaultCallbacks) UnattachedReloc(sectionName string, offset uint64, symbolName string) bool {
	if d.Warn != nil {
		d.Warn("reloc in %s at %#x against unattached symbol %s", sectionName, offset, symbolName)
	}
	return true
}

func (d DefaultCallbacks) RelocOverflow(sectionName string, offset uint64, symbolName string, kind string) bool {
	if d.Warn != nil {
		d.Warn("%s overflow in %s at %#x against %s", kind, sectionName, offset, symbolName)
	}
	return false // overflow is fatal by default, matching as.c's bfd_reloc_overflow handling
}
