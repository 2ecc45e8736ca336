package gc

import (
	"testing"

	"github.com/aixtools/xcoffld/pkg/symtab"
)

// fakeSection is a minimal Section for exercising Mark/Sweep without any
// of the higher-level packages.
type fakeSection struct {
	name    string
	marked  bool
	owned   bool
	special bool
	relocs  []Reloc
	zeroed  bool
}

func (f *fakeSection) Mark()           { f.marked = true }
func (f *fakeSection) Marked() bool    { return f.marked }
func (f *fakeSection) Owned() bool     { return f.owned }
func (f *fakeSection) Special() bool   { return f.special }
func (f *fakeSection) Relocs() []Reloc { return f.relocs }
func (f *fakeSection) Zero()           { f.zeroed = true }

func TestMarkReachesTransitively(t *testing.T) {
	callee := symtab.NewUndefined("callee")
	callee.State = symtab.StateDefined
	caller := symtab.NewUndefined("caller")
	caller.State = symtab.StateDefined

	calleeSec := &fakeSection{name: ".text.callee", owned: true}
	callerSec := &fakeSection{name: ".text.caller", owned: true, relocs: []Reloc{{Target: callee, Kind: RelocPOS}}}
	unreached := &fakeSection{name: ".text.dead", owned: true}

	sectionOf := func(s *symtab.Symbol) Section {
		switch s {
		case callee:
			return calleeSec
		case caller:
			return callerSec
		}
		return nil
	}
	noTOC := func(*symtab.Symbol) Section { return nil }

	Mark(caller, nil, sectionOf, noTOC)

	if !callerSec.Marked() {
		t.Fatal("entry symbol's own section should be marked")
	}
	if !calleeSec.Marked() {
		t.Fatal("section reachable via a reloc from the entry's section should be marked")
	}
	if unreached.Marked() {
		t.Fatal("unreachable section should not be marked")
	}
}

func TestNeedsLoaderCopyRules(t *testing.T) {
	undef := &symtab.Symbol{State: symtab.StateUndefined}
	defined := &symtab.Symbol{State: symtab.StateDefined}

	cases := []struct {
		name string
		r    Reloc
		want bool
	}{
		{"other kind never needs copy", Reloc{Target: defined, Kind: RelocOther}, false},
		{"nil target never needs copy", Reloc{Target: nil, Kind: RelocPOS}, false},
		{"dynamic definition needs copy", Reloc{Target: defined, Kind: RelocPOS, DynDef: true}, true},
		{"descriptor companion needs copy", Reloc{Target: defined, Kind: RelocRL, Descr: true}, true},
		{"undefined target needs copy", Reloc{Target: undef, Kind: RelocNEG}, true},
		{"defined regular target does not need copy", Reloc{Target: defined, Kind: RelocPOS}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := needsLoaderCopy(c.r); got != c.want {
				t.Errorf("needsLoaderCopy(%+v) = %v, want %v", c.r, got, c.want)
			}
		})
	}
}

func TestSweepZeroesUnmarkedOwnedSections(t *testing.T) {
	marked := &fakeSection{owned: true, marked: true}
	unmarked := &fakeSection{owned: true}
	special := &fakeSection{owned: true, special: true}
	foreign := &fakeSection{owned: false}

	Sweep([]Section{marked, unmarked, special, foreign}, false)

	if marked.zeroed {
		t.Fatal("marked section should survive sweep")
	}
	if !unmarked.zeroed {
		t.Fatal("unmarked owned section should be zeroed")
	}
	if special.zeroed {
		t.Fatal("special section should never be swept")
	}
	if foreign.zeroed {
		t.Fatal("non-owned section should never be swept")
	}
}

func TestSweepSkippedWhenEntryUndefined(t *testing.T) {
	unmarked := &fakeSection{owned: true}
	Sweep([]Section{unmarked}, true)
	if unmarked.zeroed {
		t.Fatal("sweep must be a no-op when the entry symbol is undefined (GC disabled)")
	}
}
