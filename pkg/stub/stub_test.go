package stub

import (
	"testing"

	"github.com/aixtools/xcoffld/pkg/symtab"
	"github.com/aixtools/xcoffld/types"
)

// fakeTarget is a minimal Target that just appends to a byte slice,
// counting how many TOC entries were requested.
type fakeTarget struct {
	buf      []byte
	tocCalls int
}

func (f *fakeTarget) Append(b []byte) uint32 {
	off := uint32(len(f.buf))
	f.buf = append(f.buf, b...)
	return off
}

func (f *fakeTarget) AddTOCEntry() uint32 {
	f.tocCalls++
	return uint32(f.tocCalls * 4)
}

func (f *fakeTarget) PatchWord(off uint32, v uint32) {
	if int(off)+4 <= len(f.buf) {
		types.BigEndian.PutUint32(f.buf[off:], v)
	}
}

func TestGlinkMemoizesPerSymbol(t *testing.T) {
	glink := &fakeTarget{}
	ds := &fakeTarget{}
	b := NewBuilder(glink, ds)

	sym := symtab.NewUndefined("printf")

	off1, isNew1 := b.Glink(sym)
	if !isNew1 {
		t.Fatal("first Glink call for a symbol should report isNew")
	}
	off2, isNew2 := b.Glink(sym)
	if isNew2 {
		t.Fatal("second Glink call for the same symbol should be memoized, not new")
	}
	if off1 != off2 {
		t.Fatalf("memoized Glink offsets differ: %d vs %d", off1, off2)
	}
	if len(glink.buf) != types.GlinkStubSize {
		t.Fatalf("glink section grew to %d bytes, want exactly one %d-byte stub", len(glink.buf), types.GlinkStubSize)
	}
	if glink.tocCalls != 1 {
		t.Fatalf("AddTOCEntry called %d times, want exactly 1 (memoized)", glink.tocCalls)
	}
}

func TestGlinkDistinctSymbolsGetDistinctStubs(t *testing.T) {
	glink := &fakeTarget{}
	ds := &fakeTarget{}
	b := NewBuilder(glink, ds)

	a := symtab.NewUndefined("foo")
	c := symtab.NewUndefined("bar")

	offA, _ := b.Glink(a)
	offC, _ := b.Glink(c)
	if offA == offC {
		t.Fatal("distinct called-undefined symbols must get distinct glink stubs")
	}
	if len(glink.buf) != 2*types.GlinkStubSize {
		t.Fatalf("glink section = %d bytes, want two %d-byte stubs", len(glink.buf), types.GlinkStubSize)
	}
}

func TestDescriptorWritesTwelveBytes(t *testing.T) {
	glink := &fakeTarget{}
	ds := &fakeTarget{}
	b := NewBuilder(glink, ds)

	off := b.Descriptor(0x1000, 0x2000)
	if len(ds.buf) != types.FunctionDescriptorSize {
		t.Fatalf("descriptor section = %d bytes, want %d", len(ds.buf), types.FunctionDescriptorSize)
	}
	if off != 0 {
		t.Fatalf("first descriptor offset = %d, want 0", off)
	}
	entry := types.BigEndian.Uint32(ds.buf[0:4])
	toc := types.BigEndian.Uint32(ds.buf[4:8])
	if entry != 0x1000 || toc != 0x2000 {
		t.Fatalf("descriptor fields = (%#x, %#x), want (0x1000, 0x2000)", entry, toc)
	}
}

func TestPatchDescriptorTOCFillsEveryDescriptor(t *testing.T) {
	glink := &fakeTarget{}
	ds := &fakeTarget{}
	b := NewBuilder(glink, ds)

	// Synthesized before layout: the TOC word starts as 0.
	b.Descriptor(0x1000, 0)
	b.Descriptor(0x2000, 0)
	b.PatchDescriptorTOC(0x30008000)

	for i := 0; i < 2; i++ {
		base := i * types.FunctionDescriptorSize
		if got := types.BigEndian.Uint32(ds.buf[base+4 : base+8]); got != 0x30008000 {
			t.Fatalf("descriptor %d toc_addr = %#x, want 0x30008000 after PatchDescriptorTOC", i, got)
		}
		if got := types.BigEndian.Uint32(ds.buf[base+8 : base+12]); got != 0 {
			t.Fatalf("descriptor %d env word = %#x, want 0 untouched", i, got)
		}
	}
}

func TestStubbedReflectsGlinkSynthesis(t *testing.T) {
	b := NewBuilder(&fakeTarget{}, &fakeTarget{})
	sym := symtab.NewUndefined("printf")
	if b.Stubbed(sym) {
		t.Fatal("Stubbed before Glink should be false")
	}
	b.Glink(sym)
	if !b.Stubbed(sym) {
		t.Fatal("Stubbed after Glink should be true")
	}
}

func TestRewriteCrorNop(t *testing.T) {
	cases := []struct {
		in      uint32
		want    uint32
		rewrote bool
	}{
		{0x4DEF7B82, 0x80410014, true},
		{0x4FFFFB82, 0x80410014, true},
		{0x60000000, 0x60000000, false}, // ordinary nop, untouched
	}
	for _, c := range cases {
		got, rewrote := RewriteCrorNop(c.in)
		if got != c.want || rewrote != c.rewrote {
			t.Errorf("RewriteCrorNop(%#x) = (%#x, %v), want (%#x, %v)", c.in, got, rewrote, c.want, c.rewrote)
		}
	}
}
