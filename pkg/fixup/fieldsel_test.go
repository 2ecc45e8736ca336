package fixup

import (
	"math/rand"
	"testing"
)

func TestApplyIdentitySelectors(t *testing.T) {
	if got := Apply(0x12345678, NoSelector); got != 0x12345678 {
		t.Fatalf("Apply(v, NoSelector) = %#x, want v unchanged", got)
	}
	if got := Apply(0x12345678, FSel); got != 0x12345678 {
		t.Fatalf("Apply(v, FSel) = %#x, want v unchanged", got)
	}
}

func TestApplyRightHalfMasksTo11Bits(t *testing.T) {
	got := Apply(0xFFFFFFFF, RSel)
	if got != 0x7ff {
		t.Fatalf("Apply(all-ones, RSel) = %#x, want 0x7ff (11-bit field)", got)
	}
}

// roundTrips asserts the spec.md §8 law for one (hi, lo) selector pair:
// (Apply(v,hi)<<11) + sign_extend_14(Apply(v,lo)) must reproduce v exactly,
// for every v -- not just agree on the low 11 bits, which is true of any
// masking function regardless of whether the high half rounds correctly.
func roundTrips(t *testing.T, hiSel, loSel Selector, v uint32) {
	t.Helper()
	hi := Apply(v, hiSel)
	lo := Apply(v, loSel)
	got := Recombine(hi, lo)
	if got != v {
		t.Errorf("(Apply(%#x,%v)<<11)+sign_extend_14(Apply(%#x,%v)) = %#x, want %#x", v, hiSel, v, loSel, got, v)
	}
}

func TestLDSelRDSelRoundTrip(t *testing.T) {
	cases := []uint32{
		0, 1, 0x3ff, 0x400, 0x401, 0x7ff, 0x800, 0x1000,
		0xABCDE000, 0xFFFFFFFF, 0x80000000, 0x7FFFFFFF,
	}
	for _, v := range cases {
		roundTrips(t, LDSel, RDSel, v)
	}
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 5000; i++ {
		roundTrips(t, LDSel, RDSel, r.Uint32())
	}
}

func TestLSSelRSSelRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 5000; i++ {
		roundTrips(t, LSSel, RSSel, r.Uint32())
	}
}

func TestLSelRSelRoundTripWithoutRounding(t *testing.T) {
	// LSel/RSel never round, so the plain (unsigned) reconstruction only
	// reproduces v when the low field's own sign bit is clear; this is the
	// property the ldil/ldo pair relies on when the caller (not Apply)
	// already knows the low half won't need rounding compensation.
	for _, v := range []uint32{0, 1, 0x3ff, 0x7FFFF800} {
		hi := Apply(v, LSel)
		lo := Apply(v, RSel)
		if got := (hi << 11) | lo; got != v {
			t.Errorf("(Apply(%#x,LSel)<<11)|Apply(%#x,RSel) = %#x, want %#x", v, v, got, v)
		}
	}
}

func TestSignExtend14Sign(t *testing.T) {
	if got := SignExtend14(0x000); got != 0 {
		t.Fatalf("SignExtend14(0) = %d, want 0", got)
	}
	if got := SignExtend14(0x3ff); got != 0x3ff {
		t.Fatalf("SignExtend14(0x3ff) = %d, want %d (positive, below sign bit)", got, 0x3ff)
	}
	if got := SignExtend14(0x400); got != -1024 {
		t.Fatalf("SignExtend14(0x400) = %d, want -1024 (sign bit set)", got)
	}
	if got := SignExtend14(0x7ff); got != -1 {
		t.Fatalf("SignExtend14(0x7ff) = %d, want -1", got)
	}
}

func TestRoundForMatchesSelectorFamily(t *testing.T) {
	cases := []struct {
		sel  Selector
		want uint32
	}{
		{LSSel, 0x400},
		{RSSel, 0x400},
		{LDSel, 0x800},
		{RDSel, 0x800},
		{LRSel, 0x1000},
		{RRSel, 0x1000},
		{FSel, 0},
	}
	for _, c := range cases {
		if got := roundFor(c.sel); got != c.want {
			t.Errorf("roundFor(%v) = %#x, want %#x", c.sel, got, c.want)
		}
	}
}
