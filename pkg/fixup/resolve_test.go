package fixup

import (
	"errors"
	"testing"

	"github.com/aixtools/xcoffld/pkg/linkerr"
	"github.com/aixtools/xcoffld/pkg/symtab"
)

// fakeFrag is the minimal FragmentRef a resolve test needs: a fixed address
// and a byte sink recording the last patched value.
type fakeFrag struct {
	addr    uint64
	patched uint64
}

func (f *fakeFrag) Address() uint64 { return f.addr }
func (f *fakeFrag) Patch(where, size int, value uint64) error {
	f.patched = value
	return nil
}

func definedSymbol(name string, value int64) *symtab.Symbol {
	s := symtab.NewUndefined(name)
	s.State = symtab.StateDefined
	s.Value = value
	return s
}

func TestResolveRPosInRange(t *testing.T) {
	target := definedSymbol("foo", 0x1000)
	frag := &fakeFrag{addr: 0x2000}
	f := New(frag, 4, 32, R_POS, target, 0, false)

	res, err := Resolve(f, frag.Address()+4, 0, 0, 0, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Done {
		t.Fatalf("Resolve: want Done=true for a plain R_POS against a defined symbol")
	}
	if res.Value != 0x1000 {
		t.Fatalf("Resolve value = %#x, want %#x", res.Value, 0x1000)
	}
}

func TestResolveUndefinedSymbolErrors(t *testing.T) {
	target := symtab.NewUndefined("bar")
	frag := &fakeFrag{addr: 0}
	f := New(frag, 0, 32, R_POS, target, 0, false)

	_, err := Resolve(f, 0, 0, 0, 0, false)
	var lerr *linkerr.Error
	if !errors.As(err, &lerr) || lerr.Kind != linkerr.UndefinedSymbol {
		t.Fatalf("Resolve against undefined symbol: got %v, want linkerr.UndefinedSymbol", err)
	}
}

func TestResolveOverflowSignedField(t *testing.T) {
	// A 17-bit signed field (HP-PA PCREL17F) can't hold a displacement
	// beyond ±2^16-1; spec.md §8 "branch displacement exactly at ±max
	// signed 17-bit emits the short form; one beyond emits the long form" —
	// the overflow boundary itself is this property.
	target := definedSymbol("far", 1<<17)
	frag := &fakeFrag{addr: 0}
	f := New(frag, 0, 17, R_BR, target, 0, false)

	_, err := Resolve(f, 0, 0, 0, 0, false)
	var lerr *linkerr.Error
	if !errors.As(err, &lerr) || lerr.Kind != linkerr.RelocOverflow {
		t.Fatalf("Resolve overflowing 17-bit field: got %v, want linkerr.RelocOverflow", err)
	}
}

func TestResolveWithinSignedFieldBoundary(t *testing.T) {
	target := definedSymbol("near", (1<<16)-1)
	frag := &fakeFrag{addr: 0}
	f := New(frag, 0, 17, R_BR, target, 0, false)

	res, err := Resolve(f, 0, 0, 0, 0, false)
	if err != nil {
		t.Fatalf("Resolve at boundary: %v", err)
	}
	if !res.Done {
		t.Fatalf("Resolve at boundary: want Done=true")
	}
}

func TestResolveTOCRelative(t *testing.T) {
	// An R_TOC field encodes the displacement of the symbol's TOC slot from
	// the anchor (r2), not the symbol's absolute value.
	target := definedSymbol("toctgt", 0x12345678)
	target.Set(symtab.FlagSetTOC)
	target.TOC.Offset = 0x3100
	target.TOC.HasOffset = true
	frag := &fakeFrag{addr: 0x2000}
	f := New(frag, 0, 16, R_TOC, target, 0, false)

	res, err := Resolve(f, frag.Address(), 0, 0x3080, 0, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Done {
		t.Fatal("R_TOC against a symbol with a known TOC slot should resolve now")
	}
	if res.Value != 0x80 {
		t.Fatalf("R_TOC value = %#x, want %#x (slot - anchor, not the symbol's value)", res.Value, 0x80)
	}
}

func TestResolveTOCRelativeUnknownSlotKept(t *testing.T) {
	target := definedSymbol("toctgt", 0x1000)
	target.Set(symtab.FlagSetTOC)
	f := New(&fakeFrag{}, 0, 16, R_TOC, target, 0, false)

	res, err := Resolve(f, 0, 0, 0, 0, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Done {
		t.Fatal("R_TOC with no known TOC slot must be kept for output, not resolved")
	}
}

func TestMustKeepMarkerKinds(t *testing.T) {
	f := &Fixup{Kind: ENTRY}
	if !MustKeep(f, 0) {
		t.Fatalf("MustKeep(ENTRY marker) = false, want true (spec.md §4.C5 step 4 rule 4)")
	}
}

func TestMustKeepDifferingArgRelocSignature(t *testing.T) {
	target := definedSymbol("callee", 0x100)
	target.Set(symtab.FlagCalled)
	f := &Fixup{Kind: R_BR, Target: target, ArgRelocBits: 0x2}

	if !MustKeep(f, 0x1) {
		t.Fatalf("MustKeep: differing arg-reloc signature must force a keep (rule a)")
	}
	if MustKeep(f, 0x2) {
		t.Fatalf("MustKeep: matching arg-reloc signature should not force a keep")
	}
}

func TestMustKeepUnknownTOCIndex(t *testing.T) {
	target := definedSymbol("tocsym", 0)
	target.Set(symtab.FlagSetTOC)
	// Neither HasOffset nor a non-zero inherited SymIndex: TOC index unknown.
	f := &Fixup{Kind: R_TOC, Target: target}

	if !MustKeep(f, 0) {
		t.Fatalf("MustKeep: R_TOC against a FlagSetTOC symbol with no known index must be kept (rule b)")
	}

	target.TOC.HasOffset = true
	if MustKeep(f, 0) {
		t.Fatalf("MustKeep: R_TOC against a symbol with a known TOC offset should resolve now")
	}
}

func TestMustKeepPlainDataFixupResolvesNow(t *testing.T) {
	target := definedSymbol("plain", 4)
	f := &Fixup{Kind: R_POS, Target: target}
	if MustKeep(f, 0) {
		t.Fatalf("MustKeep: an ordinary R_POS against a plain defined symbol should resolve now")
	}
}
