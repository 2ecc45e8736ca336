package fixup

import (
	"github.com/aixtools/xcoffld/pkg/linkerr"
	"github.com/aixtools/xcoffld/pkg/symtab"
)

// Resolution is the outcome of attempting to resolve a Fixup: either it was
// patched in place (Done), or it must be kept in the section's reloc list
// for output (spec.md §4.C5 step 4).
type Resolution struct {
	Done  bool
	Value int64 // the patched value, valid when Done
}

// MustKeep decides whether a fixup has to survive into the output reloc
// list even though its value could be computed now, per spec.md §4.C5 step
// 4's three rules. callerArgSig is the calling function's own arg-reloc
// signature, used for rule (a); 0 if not applicable (e.g. a data fixup).
func MustKeep(f *Fixup, callerArgSig uint32) bool {
	if IsMarker(f.Kind) {
		return true
	}
	if f.Target == nil {
		return false
	}
	// (a) externally visible symbol called with a differing arg-reloc
	// signature: a stub will be required at link time.
	if f.Target.Has(symtab.FlagCalled) && f.ArgRelocBits != 0 && f.ArgRelocBits != callerArgSig {
		return true
	}
	// (b) TOC-relative reloc against a global symbol whose TOC index isn't
	// known yet.
	if (f.Kind == R_TOC || f.Kind == R_TCL) && f.Target.Has(symtab.FlagSetTOC) && !f.Target.TOC.HasOffset && f.Target.TOC.SymIndex == 0 {
		return true
	}
	return false
}

// RangeCheck verifies that value fits in the fixup's field width, per
// spec.md §4.C5 step 3: signed range for pc-relative/signed kinds,
// bitfield (unsigned) range otherwise.
func RangeCheck(value int64, bits int, signed bool) error {
	if bits <= 0 || bits >= 64 {
		return nil
	}
	if signed {
		lo := -(int64(1) << (bits - 1))
		hi := (int64(1) << (bits - 1)) - 1
		if value < lo || value > hi {
			return linkerr.New(linkerr.RelocOverflow, "fixup.RangeCheck")
		}
		return nil
	}
	hi := (int64(1) << bits) - 1
	if value < 0 || value > hi {
		return linkerr.New(linkerr.RelocOverflow, "fixup.RangeCheck")
	}
	return nil
}

// Resolve runs spec.md §4.C5's full algorithm for one fixup: compute the
// value, apply the field selector, range-check it, and decide whether it
// can be patched now or must be kept. pcAddr/bias feed Value (see
// Fixup.Value); tocAnchor is the r2 value TOC-relative kinds resolve
// against (see TOCDisplacement); callerArgSig feeds MustKeep.
func Resolve(f *Fixup, pcAddr uint64, bias int64, tocAnchor int64, callerArgSig uint32, signedOverflowOK bool) (Resolution, error) {
	if MustKeep(f, callerArgSig) {
		return Resolution{Done: false}, nil
	}
	var v int64
	var err error
	if f.Kind == R_TOC || f.Kind == R_TCL {
		v, err = f.TOCDisplacement(tocAnchor)
	} else {
		v, err = f.Value(pcAddr, bias)
	}
	if err != nil {
		return Resolution{}, err
	}
	raw := uint32(v)
	if f.FieldSel != NoSelector {
		raw = Apply(raw, f.FieldSel)
	}
	signed := !signedOverflowOK
	if err := RangeCheck(int64(int32(raw)), f.Size, signed && f.Size < 32); err != nil {
		return Resolution{}, err
	}
	return Resolution{Done: true, Value: int64(raw)}, nil
}
