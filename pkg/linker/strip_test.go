package linker

import (
	"testing"

	"github.com/aixtools/xcoffld/pkg/symtab"
	"github.com/aixtools/xcoffld/types"
)

func TestShouldKeepDropsCStat(t *testing.T) {
	s := &symtab.Symbol{StorageClass: types.C_STAT}
	if ShouldKeep(s, StripNone, false) {
		t.Fatal("C_STAT symbol must always be dropped")
	}
}

func TestShouldKeepTOCEntryNotMistakenForCStat(t *testing.T) {
	// XMC_TC and C_STAT share the value 3; only the storage class may
	// trigger the C_STAT drop rule.
	s := &symtab.Symbol{StorageClass: types.C_HIDEXT, SMClass: types.XMC_TC, State: symtab.StateDefined, OutSymIndex: -2}
	if !ShouldKeep(s, StripNone, false) {
		t.Fatal("a TOC-entry symbol (SMClass XMC_TC) must not be stripped as C_STAT")
	}
}

func TestShouldKeepAlwaysKeepsPinned(t *testing.T) {
	s := &symtab.Symbol{StorageClass: types.C_EXT, OutSymIndex: -2}
	if !ShouldKeep(s, StripAll, true) {
		t.Fatal("pinned symbol (OutSymIndex -2) must survive even under StripAll")
	}
}

func TestShouldKeepDropsUnreferencedUndefined(t *testing.T) {
	s := &symtab.Symbol{State: symtab.StateUndefined}
	if ShouldKeep(s, StripNone, false) {
		t.Fatal("resolved external reference with no remaining referencer should be dropped")
	}
}

func TestShouldKeepDropsUnmarkedCommonAfterGC(t *testing.T) {
	s := &symtab.Symbol{State: symtab.StateCommon}
	if ShouldKeep(s, StripNone, true) {
		t.Fatal("common symbol never marked during GC should be dropped once GC has run")
	}
}

func TestShouldKeepKeepsUnmarkedCommonWithoutGC(t *testing.T) {
	s := &symtab.Symbol{State: symtab.StateCommon}
	if !ShouldKeep(s, StripNone, false) {
		t.Fatal("without GC having run, an unmarked common symbol should still be kept")
	}
}

func TestShouldKeepStripAllDropsUnreferencedLocal(t *testing.T) {
	s := &symtab.Symbol{StorageClass: types.C_EXT, State: symtab.StateDefined}
	if ShouldKeep(s, StripAll, true) {
		t.Fatal("StripAll should drop a local never marked and never referenced")
	}
	s.Set(symtab.FlagMark)
	if !ShouldKeep(s, StripAll, true) {
		t.Fatal("StripAll should keep a symbol the GC mark pass reached")
	}
}

func TestShouldKeepDebuggerDropsFileSymbol(t *testing.T) {
	s := &symtab.Symbol{StorageClass: types.C_FILE, State: symtab.StateDefined}
	if ShouldKeep(s, StripDebugger, false) {
		t.Fatal("StripDebugger should drop C_FILE symbols")
	}
}
