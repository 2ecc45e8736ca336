package linker

import "github.com/aixtools/xcoffld/pkg/section"

// Layout is one output section's assigned placement: its final index,
// file offset, and VMA (spec.md §4.C13 step 1).
type Layout struct {
	Section    *section.Section
	Index      int
	FileOffset uint64
	VMA        uint64
}

// AssignFileOffsets lays out sections in order, starting at headerEnd (the
// end of the file/section/optional headers). The first section starts at
// headerEnd as is; every later section's file offset is aligned up to
// fileAlign. No synthetic ".pad" entry is created: the gap is left as
// unwritten space between the two sections in the returned layout. Per spec.md
// §9's second Open Question, the last section is never followed by a pad:
// trailing alignment is left to the caller writing the file, matching the
// original's behavior rather than guessing at a fix.
func AssignFileOffsets(sections []*section.Section, headerEnd uint64, fileAlign uint32) []Layout {
	if fileAlign == 0 {
		fileAlign = 4
	}
	out := make([]Layout, 0, len(sections))
	off := headerEnd
	vma := uint64(0)
	for i, s := range sections {
		aligned := alignUp(off, uint64(fileAlign))
		if aligned != off && i > 0 {
			// The gap is absorbed into the previous section's padding rather
			// than a separate .pad entry, since XCOFF section file offsets
			// (unlike a.out) are independently aligned fields, not a shared
			// stream offset; no bytes need to be materialized here.
			off = aligned
		}
		s.FileOffset = off
		s.VMA = vma
		out = append(out, Layout{Section: s, Index: i, FileOffset: off, VMA: vma})
		off += s.Size
		vma += s.Size
	}
	return out
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}
