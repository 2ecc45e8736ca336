package asm

import (
	"testing"

	"github.com/aixtools/xcoffld/pkg/encoder"
	"github.com/aixtools/xcoffld/pkg/fixup"
	"github.com/aixtools/xcoffld/pkg/relax"
	"github.com/aixtools/xcoffld/pkg/section"
	"github.com/aixtools/xcoffld/pkg/symtab"
	"github.com/aixtools/xcoffld/types"
)

func powerPCContext() *Context {
	return NewContext(encoder.PowerPCCatalog(), encoder.BigEndian32, func(word uint32, bo encoder.ByteOrderFn) []byte {
		return bo(nil, word)
	}, types.BigEndian)
}

func TestAssembleThenResolveFixupPatchesInPlace(t *testing.T) {
	c := powerPCContext()
	c.Switch(".text", 0)

	target := symtab.NewUndefined("foo")
	target.State = symtab.StateDefined
	target.Value = 0x40
	// addi's immediate is an R_TOC field, so what gets patched is the
	// target's TOC slot offset from the anchor (0 here).
	target.TOC.Offset = 0x40
	target.TOC.HasOffset = true

	enc, err := c.Assemble("addi", []encoder.Operand{
		{Value: 3},
		{Value: 0},
		{IsSymbolic: true, SymbolName: "foo"},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(enc.Fixups) != 1 {
		t.Fatalf("len(Fixups) = %d, want 1", len(enc.Fixups))
	}
	enc.Fixups[0].Target = target

	kept, err := c.ResolveFixups(false)
	if err != nil {
		t.Fatalf("ResolveFixups: %v", err)
	}
	if len(kept) != 0 {
		t.Fatalf("kept = %d, want 0 (resolvable in place)", len(kept))
	}

	sec := c.Section(".text")
	word := types.BigEndian.Uint32(sec.Bytes())
	if got := word & 0xffff; got != 0x40 {
		t.Fatalf("patched immediate = %#x, want %#x", got, 0x40)
	}
}

func TestAssembleWithoutSwitchErrors(t *testing.T) {
	c := powerPCContext()
	_, err := c.Assemble("addi", []encoder.Operand{{Value: 3}, {Value: 0}, {Value: 0}})
	if err == nil {
		t.Fatal("Assemble before Switch should error")
	}
}

func TestLdgpExpandsToPairedGPDISPFixups(t *testing.T) {
	c := NewContext(encoder.AlphaCatalog(), encoder.LittleEndian32, func(word uint32, bo encoder.ByteOrderFn) []byte {
		return bo(nil, word)
	}, types.LittleEndian)
	c.Switch(".text", 0)

	hi, lo, err := c.Ldgp(1, 27, "_gp", 8)
	if err != nil {
		t.Fatalf("Ldgp: %v", err)
	}
	if len(hi.Fixups) != 1 || len(lo.Fixups) != 1 {
		t.Fatalf("fixup counts = %d/%d, want 1/1", len(hi.Fixups), len(lo.Fixups))
	}
	if hi.Fixups[0].Kind != fixup.GPDISP_HI {
		t.Fatalf("hi kind = %d, want GPDISP_HI", hi.Fixups[0].Kind)
	}
	if lo.Fixups[0].Kind != fixup.GPDISP_LO {
		t.Fatalf("lo kind = %d, want GPDISP_LO", lo.Fixups[0].Kind)
	}
	if hi.Fixups[0].Addend != lo.Fixups[0].Addend {
		t.Fatalf("addends differ: %d vs %d, want shared", hi.Fixups[0].Addend, lo.Fixups[0].Addend)
	}

	b := c.Section(".text").Bytes()
	if len(b) != 8 {
		t.Fatalf("ldgp expansion emitted %d bytes, want 8 (ldah+lda)", len(b))
	}
	// Opcode fields survive with a zeroed displacement: ldah r1,0(r27) then
	// lda r1,0(r1), little-endian.
	if got := types.LittleEndian.Uint32(b[0:4]); got != 0x243b0000 {
		t.Fatalf("ldah word = %#x, want 0x243b0000", got)
	}
	if got := types.LittleEndian.Uint32(b[4:8]); got != 0x20210000 {
		t.Fatalf("lda word = %#x, want 0x20210000", got)
	}
}

func TestRelaxUpgradesW65BranchAndRendersNewBytes(t *testing.T) {
	c := powerPCContext() // catalog/emit unused by this test; only section/relax matter
	sec := c.Switch(".text", 0)

	target := &symtab.Symbol{Name: "far", State: symtab.StateDefined, Value: 10000}
	sec.Var(0, relax.BaseW65Branch, relax.W65BraShort, target, 0, 1, []byte{0x80, 0x00})

	rendered := false
	passes, err := c.Relax(relax.W65Table(), func(kind, subtype int, frag *section.Fragment) []byte {
		rendered = true
		if subtype != relax.W65BraLong {
			t.Fatalf("subtype = %d, want upgraded W65BraLong", subtype)
		}
		return []byte{0x4C, 0x00, 0x00} // jmp absolute, 3 bytes
	})
	if err != nil {
		t.Fatalf("Relax: %v", err)
	}
	if passes < 1 {
		t.Fatalf("passes = %d, want >= 1", passes)
	}
	if !rendered {
		t.Fatal("render callback never invoked for the upgraded fragment")
	}
	frag := sec.Fragments[0]
	if frag.Subtype != relax.W65BraLong {
		t.Fatalf("Subtype = %d, want %d", frag.Subtype, relax.W65BraLong)
	}
	if len(frag.Bytes) != 3 {
		t.Fatalf("len(Bytes) = %d, want 3 after render", len(frag.Bytes))
	}
}
