// Package stub synthesizes the global-linkage (glink) code and function
// descriptors the final link pass emits for called undefined/dynamic
// symbols (spec.md §4.C12).
package stub

import (
	"github.com/aixtools/xcoffld/pkg/symtab"
	"github.com/aixtools/xcoffld/types"
)

// Target is the minimal view Builder needs of the sections it writes into:
// append bytes, return the offset they landed at, and patch a previously
// appended word once a value that wasn't known at append time (the TOC
// anchor) settles.
type Target interface {
	Append(b []byte) (offset uint32)
	AddTOCEntry() (offset uint32) // 4-byte slot + one R_POS reloc, one loader reloc
	PatchWord(off uint32, v uint32)
}

// Builder synthesizes glink stubs and function descriptors, memoizing one
// stub per distinct called-and-undefined descriptor symbol rather than per
// call site (SPEC_FULL.md §D, grounded on xcofflink.c's stub-pool reuse).
type Builder struct {
	glink  Target // the .gl section
	ds     Target // the .ds section
	byStub map[*symtab.Symbol]uint32

	// descOffsets records every descriptor synthesized before the TOC
	// anchor was known, so PatchDescriptorTOC can fill in their toc_addr
	// words after layout.
	descOffsets []uint32
}

func NewBuilder(glink, ds Target) *Builder {
	return &Builder{glink: glink, ds: ds, byStub: make(map[*symtab.Symbol]uint32)}
}

// Stubbed reports whether sym already has a glink stub, so the final pass
// can find the call sites whose post-bl instruction needs the
// RewriteCrorNop treatment.
func (b *Builder) Stubbed(sym *symtab.Symbol) bool {
	_, ok := b.byStub[sym]
	return ok
}

// Glink synthesizes (or returns the memoized offset of) a 36-byte glink
// stub for sym, called when sym is defined in a dynamic object, imported,
// or defined-in-shared-only (spec.md §4.C12). It also creates sym's TOC
// entry. The returned symbol state transition (sym becomes defined at the
// stub's offset with SMClass XMC_GL) is the caller's responsibility to
// apply to the symbol table.
func (b *Builder) Glink(sym *symtab.Symbol) (offset uint32, isNew bool) {
	if off, ok := b.byStub[sym]; ok {
		return off, false
	}
	bytes := make([]byte, types.GlinkStubSize)
	for i, w := range types.GlinkStub {
		types.PutUint32At(bytes, i*4, w, types.BigEndian)
	}
	off := b.glink.Append(bytes)
	b.glink.AddTOCEntry()
	b.byStub[sym] = off
	return off, true
}

// Descriptor synthesizes a 12-byte {entry, toc, env} record in .ds for an
// exported function symbol that has a defined entry point but no defined
// descriptor yet (spec.md §4.C12, scenario 2). entryVMA/tocVMA are the
// final addresses of the entry point and the TOC anchor/entry used to
// populate the two R_POS relocs the caller must also record (one at
// offset 0 targeting the entry point, one at offset 4 targeting the TOC).
func (b *Builder) Descriptor(entryVMA, tocVMA uint32) (offset uint32) {
	d := types.FunctionDescriptor{Entry: entryVMA, TOC: tocVMA, Env: 0}
	bytes := make([]byte, types.FunctionDescriptorSize)
	d.Put(bytes, types.BigEndian)
	off := b.ds.Append(bytes)
	b.descOffsets = append(b.descOffsets, off)
	return off
}

// PatchDescriptorTOC fills in the toc_addr word (offset 4) of every
// descriptor synthesized so far. Descriptors are created while stubs are
// sized, before section layout fixes the TOC anchor, so the caller invokes
// this once the anchor is known.
func (b *Builder) PatchDescriptorTOC(tocVMA uint32) {
	for _, off := range b.descOffsets {
		b.ds.PatchWord(off+4, tocVMA)
	}
}

// RewriteCrorNop implements spec.md §4.C12 scenario 3: the instruction
// immediately after a bl routed through a glink stub, if it originally was
// "cror 15,15,15" or "cror 31,31,31" (the compiler's call-convention
// padding), is rewritten in place to "lwz r2,20(r1)" so the TOC pointer is
// restored after the call returns through the stub.
func RewriteCrorNop(word uint32) (uint32, bool) {
	if word == 0x4DEF7B82 || word == 0x4FFFFB82 {
		return 0x80410014, true // lwz r2,20(r1)
	}
	return word, false
}
