// Package relax implements the fixpoint relaxation engine shared by every
// variable-length-fragment target (spec.md §4.C7): each variable fragment
// starts at its smallest plausible subtype and is upgraded along a finite
// chain until every displacement fits, then the engine terminates.
package relax

// Row is one entry of a per-target relaxation table, indexed by
// (base, subtype): the forward/backward displacement this subtype can
// reach, its encoded length, and the subtype to upgrade to when it can't.
type Row struct {
	ForwardMax  int64
	BackwardMax int64
	Length      int
	Next        int // subtype to upgrade to; equal to self at the top of the chain
}

// Table maps (base, subtype) -> Row for one target.
type Table map[[2]int]Row

// Frag is the minimal view the engine needs of a variable fragment; it is
// satisfied by *section.Fragment through a small adapter in pkg/asm so this
// package doesn't import pkg/section (keeping the dependency graph a DAG:
// section -> relax is backwards, relax only depends on the engine's own
// Table/Row types).
type Frag interface {
	Base() int
	Subtype() int
	SetSubtype(int)
	Length() int
	SetLength(int)
	// Displacement returns the current symbolic forward displacement
	// (positive) or backward displacement (negative) estimate, given the
	// fragment's own provisional address addr.
	Displacement(addr int64) int64
	Address() int64
	SetAddress(int64)
}

// Section groups the fragments that must be assigned addresses together in
// definition order (spec.md §4.C7 step 2: "assign provisional addresses
// section-by-section in definition order").
type Section interface {
	Frags() []Frag
	// FixedLenAfter returns the byte length contributed by fixed (non-variable)
	// content immediately following fragment index i, i.e. everything that
	// isn't itself a Frag but still occupies space between variable
	// fragments. Most callers return 0 here because fixed bytes are
	// already folded into a preceding/following Frag's own accounting.
	FixedLenAfter(i int) int64
}

// Run iterates the fixpoint algorithm (spec.md §4.C7) over all sections:
// assign addresses, check each variable fragment's displacement against its
// current subtype's limits, upgrade if needed, and repeat until a full pass
// makes no changes. Termination is guaranteed because subtypes only grow
// along Table's finite chain (a fragment whose Next == its own subtype is
// already at the top and can never upgrade again).
func Run(sections []Section, table Table) (passes int, err error) {
	for {
		passes++
		assignAddresses(sections)
		changed := false
		for _, sec := range sections {
			for _, f := range sec.Frags() {
				key := [2]int{f.Base(), f.Subtype()}
				row, ok := table[key]
				if !ok {
					continue
				}
				disp := f.Displacement(f.Address())
				if disp > row.ForwardMax || disp < -row.BackwardMax {
					if row.Next == f.Subtype() {
						// Already at the widest subtype for this base kind;
						// an out-of-range displacement here is a caller
						// bug (the top subtype's table row should cover
						// the architecture's full address range), not a
						// relaxation failure.
						continue
					}
					f.SetSubtype(row.Next)
					f.SetLength(table[[2]int{f.Base(), row.Next}].Length)
					changed = true
				}
			}
		}
		if !changed {
			return passes, nil
		}
	}
}

func assignAddresses(sections []Section) {
	for _, sec := range sections {
		var addr int64
		for i, f := range sec.Frags() {
			f.SetAddress(addr)
			addr += int64(f.Length())
			addr += sec.FixedLenAfter(i)
		}
	}
}
