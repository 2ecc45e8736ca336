// Package section implements the ordered section/fragment model shared by
// the assembler and the linker (spec.md §3, §4.C4): sections own fragments,
// fragments accumulate bytes and pending fixups, and variable fragments are
// finalized by the relaxation engine in pkg/relax.
package section

// Flag is a bit in a Section's flag set (spec.md §3 "Section").
type Flag uint32

const (
	FlagAlloc Flag = 1 << iota
	FlagLoad
	FlagCode
	FlagReadOnly
	FlagHasContents
	FlagInMemory
	FlagRelocs
	FlagMark
)

// Section is an ordered list of fragments with an alignment, a flag set, an
// owning input, a VMA, a file offset, and (assigned at final-link time) a
// target_index identifying its place in the output file.
type Section struct {
	Name      string
	Align     uint8 // power-of-two exponent
	Flags     Flag
	OwnerFile string // name of the owning input, "" for synthetic output sections

	VMA        uint64
	FileOffset uint64
	Size       uint64 // sum of fragment lengths once frozen; authoritative after Freeze

	TargetIndex int // assigned at final-link time; -1 until then

	Fragments []*Fragment

	// subsegs holds, for each (subsegment) the index of its most recently
	// appended fragment in Fragments, so writes to a (section, subsegment)
	// pair continue the right fragment (spec.md §4.C4 subspace API).
	subsegs map[int]int
}

// New creates an empty section.
func New(name string) *Section {
	return &Section{Name: name, TargetIndex: -1, subsegs: make(map[int]int)}
}

// RecordAlignment monotonically raises the section's alignment, as
// spec.md §4.C4 requires (record_alignment never lowers align).
func (s *Section) RecordAlignment(power uint8) {
	if power > s.Align {
		s.Align = power
	}
}

// currentFragment returns the most recent fragment for a subsegment,
// creating a new fixed fragment if none exists yet.
func (s *Section) currentFragment(subseg int) *Fragment {
	if idx, ok := s.subsegs[subseg]; ok {
		f := s.Fragments[idx]
		if !f.Variable {
			return f
		}
	}
	f := &Fragment{Subsegment: subseg}
	s.Fragments = append(s.Fragments, f)
	s.subsegs[subseg] = len(s.Fragments) - 1
	return f
}

// More reserves n bytes in the current fragment of subseg and returns a
// writable slice into it (frag_more in spec.md §4.C4). The slice is stable
// only until the next call that appends to the same fragment.
func (s *Section) More(subseg int, n int) []byte {
	b, _, _ := s.MoreAt(subseg, n)
	return b
}

// MoreAt behaves like More but also returns the fragment being appended to
// and the byte offset within it where the new bytes start, so a caller
// that must attach a fixup (pkg/fixup) at a precise offset -- rather than
// just reserve space -- doesn't have to re-derive the fragment itself
// (used by pkg/asm's instruction-encoding driver).
func (s *Section) MoreAt(subseg int, n int) ([]byte, *Fragment, int) {
	f := s.currentFragment(subseg)
	start := len(f.Bytes)
	f.Bytes = append(f.Bytes, make([]byte, n)...)
	return f.Bytes[start : start+n], f, start
}

// CurrentFragment exposes the fragment currentFragment would hand back,
// for callers (pkg/asm) that need to inspect it without reserving bytes.
func (s *Section) CurrentFragment(subseg int) *Fragment {
	return s.currentFragment(subseg)
}

// Var finishes the current fragment of subseg and starts a new variable
// fragment whose final size the relaxation engine (pkg/relax) will choose
// (frag_var in spec.md §4.C4).
func (s *Section) Var(subseg int, kind, subtype int, sym any, off int64, maxGrow int, initial []byte) *Fragment {
	f := &Fragment{
		Subsegment: subseg,
		Variable:   true,
		Kind:       kind,
		Subtype:    subtype,
		Symbol:     sym,
		SymOffset:  off,
		MaxGrowth:  maxGrow,
		Bytes:      append([]byte(nil), initial...),
	}
	s.Fragments = append(s.Fragments, f)
	s.subsegs[subseg] = len(s.Fragments) - 1
	// Next write to this subsegment starts a fresh fixed fragment after the
	// variable one, so bytes never get appended past a variable fragment's
	// chosen length.
	delete(s.subsegs, subseg)
	return f
}

// Freeze assigns byte offsets to every fragment (insertion order) and sets
// s.Size, used once the relaxation fixpoint (pkg/relax) is reached.
func (s *Section) Freeze() {
	var off uint64
	for _, f := range s.Fragments {
		f.Address = off
		off += uint64(len(f.Bytes))
	}
	s.Size = off
}

// Bytes concatenates every fragment's bytes in order, valid after Freeze.
func (s *Section) Bytes() []byte {
	out := make([]byte, 0, s.Size)
	for _, f := range s.Fragments {
		out = append(out, f.Bytes...)
	}
	return out
}
