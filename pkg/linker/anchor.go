package linker

import "github.com/aixtools/xcoffld/pkg/linkerr"

// tocAnchorBias is the offset subtracted from the end of the TOC section to
// get the r2 anchor value: XCOFF TOC-relative instructions use a signed
// 16-bit displacement, so the anchor sits 0x8000 bytes before tocend,
// letting both halves of a split TOC reach with a signed offset
// (SPEC_FULL.md §D, ground in xcofflink.c's TOC-anchor computation).
const tocAnchorBias = 0x8000

// maxTOCReach is the largest a TOC section may be (in bytes) while still
// letting every entry be addressed relative to the single anchor: the
// anchor sits 0x8000 before the end, and a signed 16-bit displacement can
// reach forward 0x7fff and back 0x8000 from the anchor, for a total
// addressable span of 0x10000 bytes (spec.md §9 "TOC overflow").
const maxTOCReach = 0x10000

// ComputeTOCAnchor returns the r2 value (relative to the TOC section's own
// VMA) and reports a fatal linkerr.FileTooBig once the TOC section has
// grown to 0x10000 bytes or more. A TOC of 0xFFFC bytes is the largest
// accepted; exactly 0x10000 is rejected.
func ComputeTOCAnchor(tocSize uint64) (anchor uint64, err error) {
	if tocSize >= maxTOCReach {
		return 0, &linkerr.Error{
			Kind: linkerr.FileTooBig,
			Op:   "linker.ComputeTOCAnchor",
			Err:  linkerr.ErrTOCTooLarge,
		}
	}
	if tocSize < tocAnchorBias {
		return 0, nil
	}
	return tocSize - tocAnchorBias, nil
}
