package fixup

// Selector is a HP-PA field selector (spec.md §4.C5 step 2): a function
// that extracts a named portion of a 32-bit constant -- a high half or a
// low half, with or without rounding -- so that two instructions can
// jointly materialise the full value even though the low half is sign
// extended when it is consumed.
type Selector int

const (
	NoSelector Selector = iota
	FSel                // e_fsel: identity
	LSel                // e_lsel: high 21 bits (left half), unrounded
	RSel                // e_rsel: low 11 bits, signed (right half)
	LDSel               // e_ldsel: high 21 bits, rounded by +0x800
	RDSel               // e_rdsel
	LSSel               // e_lssel: high 21 bits, rounded by +0x400
	RSSel               // e_rssel
	LRSel               // e_lrsel: high 21 bits, rounded by +0x1000
	RRSel               // e_rrsel
	TSel                // e_tsel
	LTSel               // e_ltsel
	RTSel               // e_rtsel
	PSel                // e_psel
	LPSel               // e_lpsel
	RPSel               // e_rpsel
	NSel                // e_nsel
	NLSel               // e_nlsel
	NLRSel              // e_nlrsel
)

// roundFor returns the rounding constant a selector adds before taking the
// high half, per spec.md §4.C5 step 2: lssel/rssel round by +0x400,
// ldsel/rdsel round by +0x800, lrsel/rrsel round by +0x1000.
func roundFor(sel Selector) uint32 {
	switch sel {
	case LSSel, RSSel:
		return 0x400
	case LDSel, RDSel:
		return 0x800
	case LRSel, RRSel:
		return 0x1000
	default:
		return 0
	}
}

// isRightHalf reports whether sel extracts the low 11-bit field rather than
// the high 21-bit field.
func isRightHalf(sel Selector) bool {
	switch sel {
	case RSel, RDSel, RSSel, RRSel, RTSel, RPSel:
		return true
	default:
		return false
	}
}

// Apply extracts the named portion of v for the given selector, matching
// the HP-PA assembler's hppa_field_adjust (gas config/tc-hppa.c). The
// rounded pairs round the high half up by one 11-bit unit whenever the low
// field's own sign bit (0x400) is already set, so that (high<<11) +
// sign_extend_14(low) reproduces v exactly even though the consuming
// instruction sign-extends low as an 11-bit field -- spec.md §8's
// round-trip law, stated for ldsel/rdsel specifically. The rounding must be
// conditional rather than unconditional (v's low half is otherwise left
// untouched by the low-half selector): adding the round constant
// unconditionally shifts every value whose low field is already
// non-negative by one whole unit, which is the defect this replaces.
// lrsel/rrsel round by a wider margin (spec.md §4.C5 step 2) for a low
// field that a 17-bit-displacement instruction sign-extends rather than an
// 11-bit one; the same conditional structure approximates it but the exact
// round-trip law isn't claimed for this pair (see DESIGN.md).
func Apply(v uint32, sel Selector) uint32 {
	switch sel {
	case NoSelector, FSel, TSel, NSel:
		return v
	case LSel:
		return v >> 11
	case RSel:
		return v & 0x7ff
	case LDSel, LSSel, LRSel:
		if v&0x400 != 0 {
			v += roundFor(sel)
		}
		return v >> 11
	case RDSel, RSSel, RRSel:
		return v & 0x7ff
	case LTSel, NLSel, NLRSel:
		return v >> 11
	case RTSel:
		return v & 0x7ff
	case PSel, LPSel:
		return (v >> 2) >> 11
	case RPSel:
		return (v >> 2) & 0x7ff
	default:
		return v
	}
}

// SignExtend14 sign-extends a right-half field, named for the round-trip
// property in spec.md §8 ("sign_extend_14"). The right-half selectors in
// Apply (RSel/RDSel/RSSel/RRSel) produce an 11-bit field, which is what
// this sign-extends; widening the mask here would double-count bits
// against the high half produced by Apply's matching left selector.
func SignExtend14(v uint32) int32 {
	v &= 0x7ff
	if v&0x400 != 0 {
		return int32(v) - 0x800
	}
	return int32(v)
}

// Recombine reverses Apply for an (LD,RD)/(LS,RS)/(LR,RR) pair, used only
// by tests verifying the round-trip law.
func Recombine(hi, lo uint32) uint32 {
	return (hi << 11) + uint32(SignExtend14(lo&0x7ff))
}
