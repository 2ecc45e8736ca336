package relax

import "testing"

// fakeFrag is a minimal Frag backed by a fixed target address: its
// displacement is simply target-addr, exercising the engine without any
// dependency on pkg/section.
type fakeFrag struct {
	base    int
	subtype int
	length  int
	addr    int64
	target  int64
}

func (f *fakeFrag) Base() int                     { return f.base }
func (f *fakeFrag) Subtype() int                  { return f.subtype }
func (f *fakeFrag) SetSubtype(s int)              { f.subtype = s }
func (f *fakeFrag) Length() int                   { return f.length }
func (f *fakeFrag) SetLength(l int)               { f.length = l }
func (f *fakeFrag) Displacement(addr int64) int64 { return f.target - addr }
func (f *fakeFrag) Address() int64                { return f.addr }
func (f *fakeFrag) SetAddress(a int64)            { f.addr = a }

type fakeSection struct {
	frags []Frag
}

func (s *fakeSection) Frags() []Frag             { return s.frags }
func (s *fakeSection) FixedLenAfter(i int) int64 { return 0 }

func TestRunUpgradesOutOfRangeSHConditional(t *testing.T) {
	// A conditional branch starting at the 2-byte subtype whose target is
	// 10000 bytes away must upgrade to the 6-byte trampoline form
	// (spec.md §8 scenario: SH conditional branch displacement overflow).
	f := &fakeFrag{base: BaseSHCond, subtype: SHCondDisp8, length: 2, target: 10000}
	sec := &fakeSection{frags: []Frag{f}}

	passes, err := Run([]Section{sec}, SHTable())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if passes < 2 {
		t.Fatalf("expected at least 2 passes to reach the widened form, got %d", passes)
	}
	if f.Subtype() != SHCondDisp32 {
		t.Fatalf("Subtype() = %d, want SHCondDisp32 (%d)", f.Subtype(), SHCondDisp32)
	}
	if f.Length() != 6 {
		t.Fatalf("Length() = %d, want 6", f.Length())
	}
}

func TestRunLeavesInRangeBranchAlone(t *testing.T) {
	f := &fakeFrag{base: BaseSHCond, subtype: SHCondDisp8, length: 2, target: 50}
	sec := &fakeSection{frags: []Frag{f}}

	_, err := Run([]Section{sec}, SHTable())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if f.Subtype() != SHCondDisp8 {
		t.Fatalf("in-range branch should not be upgraded, got subtype %d", f.Subtype())
	}
}

func TestRunTerminatesAtTopOfChain(t *testing.T) {
	// Even a displacement beyond the widest subtype's declared range must
	// not loop forever: Next == self at the top of the chain.
	f := &fakeFrag{base: BaseW65Branch, subtype: W65BraLong, length: 3, target: 1 << 20}
	sec := &fakeSection{frags: []Frag{f}}

	passes, err := Run([]Section{sec}, W65Table())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if passes != 1 {
		t.Fatalf("expected exactly 1 pass once already at the top subtype, got %d", passes)
	}
}

func TestRunW65ShortToLong(t *testing.T) {
	f := &fakeFrag{base: BaseW65Branch, subtype: W65BraShort, length: 2, target: 5000}
	sec := &fakeSection{frags: []Frag{f}}

	_, err := Run([]Section{sec}, W65Table())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if f.Subtype() != W65BraLong {
		t.Fatalf("Subtype() = %d, want W65BraLong", f.Subtype())
	}
}
