package linker

import (
	"github.com/aixtools/xcoffld/pkg/symtab"
	"github.com/aixtools/xcoffld/types"
)

// ShouldKeep decides whether sym survives into the output symbol table
// (spec.md §4.C13 step 4 "stripping rules"):
//   - C_STAT symbols (section-definition auxiliary records) are always
//     dropped; the section header carries the same information.
//   - Only the first XMC_TC0 (TOC anchor) csect in the whole link is kept;
//     duplicates collapse into it during TOC merging (pkg/xcoffobj) and
//     never reach this stage as distinct symbols.
//   - A resolved XTY_ER (external reference) symbol, once it points at a
//     real definition, carries no information the definition doesn't
//     already provide and is dropped.
//   - An unused common symbol (never marked during GC, no relocation ever
//     resolved against it) is dropped like any other unreferenced local.
//   - Beyond those always-applied rules, level trims further: Debugger
//     drops line-number-only/debug symbols, All additionally drops locals
//     the GC mark pass never reached.
func ShouldKeep(sym *symtab.Symbol, level StripLevel, gcRan bool) bool {
	if sym.StorageClass == types.C_STAT {
		return false
	}
	if sym.OutSymIndex == -2 {
		return true // explicitly pinned: entry point, export, or referenced externally
	}
	if sym.State == symtab.StateUndefined && !sym.Has(symtab.FlagRefRegular) {
		return false // resolved XTY_ER with nothing left referencing it
	}
	if sym.State == symtab.StateCommon && !sym.Has(symtab.FlagMark) && gcRan {
		return false
	}
	switch level {
	case StripDebugger:
		if sym.StorageClass == types.C_FILE {
			return false
		}
	case StripAll:
		if sym.StorageClass == types.C_FILE {
			return false
		}
		if !sym.Has(symtab.FlagMark) && !sym.Has(symtab.FlagRefRegular) && gcRan {
			return false
		}
	}
	return true
}
