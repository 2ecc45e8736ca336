package loader

import (
	"testing"

	"github.com/aixtools/xcoffld/types"
)

func TestNewImportTableReservesSlotZero(t *testing.T) {
	it := NewImportTable("/usr/lib:/lib")
	if it.Count() != 1 {
		t.Fatalf("Count() = %d, want 1 (library-path entry only)", it.Count())
	}
	id := it.Add("/usr/lib:/lib", "", "")
	if id != 0 {
		t.Fatalf("Add of the same triple as the library-path entry = %d, want 0", id)
	}
}

func TestImportTableAddDeduplicates(t *testing.T) {
	it := NewImportTable("/usr/lib")
	a := it.Add("/home/x", "libfoo.a", "foo.o")
	b := it.Add("/home/x", "libfoo.a", "foo.o")
	if a != b {
		t.Fatalf("Add returned distinct ids %d, %d for an identical triple", a, b)
	}
	c := it.Add("/home/x", "libfoo.a", "bar.o")
	if c == a {
		t.Fatal("distinct members of the same archive must get distinct import ids")
	}
}

func TestBuilderAddSymbolShortName(t *testing.T) {
	b := NewBuilder("/usr/lib")
	idx := b.AddSymbol("foo", 0x1000, 1, types.L_ENTRY, types.XMC_PR, 0, 0, types.BigEndian)
	if idx != 0 {
		t.Fatalf("AddSymbol returned index %d, want 0", idx)
	}
	if len(b.Symbols) != 1 {
		t.Fatalf("len(Symbols) = %d, want 1", len(b.Symbols))
	}
	if b.Symbols[0].Value != 0x1000 {
		t.Fatalf("Symbols[0].Value = %#x, want 0x1000", b.Symbols[0].Value)
	}
}

func TestBuilderAddSymbolLongNameGoesThroughStrtab(t *testing.T) {
	b := NewBuilder("/usr/lib")
	longName := "a_name_longer_than_eight_bytes"
	b.AddSymbol(longName, 0, 1, types.L_EXPORT, types.XMC_PR, 0, 0, types.BigEndian)
	if b.Strtab.Size() == 0 {
		t.Fatal("a symbol name longer than 8 bytes should be recorded in the loader string table")
	}
}

func TestWriteProducesConsistentHeader(t *testing.T) {
	b := NewBuilder("/usr/lib")
	b.AddSymbol("foo", 0x10, 1, types.L_ENTRY, types.XMC_PR, 0, 0, types.BigEndian)
	b.AddReloc(0x10, 0, uint16(types.R_POS), 1)

	out := b.Write(types.BigEndian)
	gotNSyms := types.BigEndian.Uint32(out[4:8])
	gotNRelocs := types.BigEndian.Uint32(out[8:12])
	if gotNSyms != 1 {
		t.Fatalf("header NSyms = %d, want 1", gotNSyms)
	}
	if gotNRelocs != 1 {
		t.Fatalf("header NRelocs = %d, want 1", gotNRelocs)
	}
	wantLen := types.LoaderHeaderSize + types.LoaderSymbolSize + types.LoaderRelocSize + len(b.Imports.Bytes()) + int(b.Strtab.Size())
	if len(out) != wantLen {
		t.Fatalf("len(Write()) = %d, want %d", len(out), wantLen)
	}
}

func TestExpectedCounts(t *testing.T) {
	eligible := map[int]bool{0: true, 2: true}
	got := ExpectedCounts(func(i int) bool { return eligible[i] }, 4)
	if got != 2 {
		t.Fatalf("ExpectedCounts = %d, want 2", got)
	}
}
