// Package asm is the assembler-side driver spec.md §2 names
// ("source -> C6 -> C4 -> C7 -> fix-up resolution"): it threads one
// Context through instruction matching (pkg/encoder), fragment
// accumulation (pkg/section), relaxation (pkg/relax), and fixup
// resolution (pkg/fixup), in place of gas's global frag_now/now_seg
// pair (spec.md §9's AssemblerContext design note).
//
// pkg/section, pkg/relax, and pkg/fixup each declare the other side of
// this wiring as a narrow interface to avoid an import cycle (section is
// imported by both relax's and fixup's callers, not the reverse); the two
// adapter types here (relaxFrag, fixupFrag) are what actually satisfy
// relax.Frag and fixup.FragmentRef, since *section.Fragment's own
// Address field (a byte offset, uint64) can't also carry an Address()
// method of either interface's required signature.
package asm

import (
	"github.com/aixtools/xcoffld/pkg/encoder"
	"github.com/aixtools/xcoffld/pkg/fixup"
	"github.com/aixtools/xcoffld/pkg/linkerr"
	"github.com/aixtools/xcoffld/pkg/relax"
	"github.com/aixtools/xcoffld/pkg/section"
	"github.com/aixtools/xcoffld/pkg/symtab"
	"github.com/aixtools/xcoffld/types"
)

// Context is the aggregate assembler state for one source file: the
// sections accumulated so far, the current (section, subsegment) pair,
// and the target's opcode catalog/byte order.
type Context struct {
	Catalog   *encoder.Catalog
	ByteOrder encoder.ByteOrderFn
	Emit      func(word uint32, bo encoder.ByteOrderFn) []byte
	BO        types.ByteOrder

	// Lookup resolves a symbolic operand's name to its symbol-table entry
	// (pkg/symtab), so Assemble can fill in each generated fixup's Target
	// immediately instead of leaving that to a second pass over the
	// source. Optional: nil leaves Target unset for the caller to fill in.
	Lookup func(name string) *symtab.Symbol

	sections map[string]*section.Section
	order    []string
	curSec   string
	curSub   int
}

// NewContext builds a Context for one target's catalog/byte order pair.
// emit turns a matched opcode word into bytes (most targets are 32-bit
// fixed instructions; a 16-bit target like SH supplies its own).
func NewContext(catalog *encoder.Catalog, bo encoder.ByteOrderFn, emit func(uint32, encoder.ByteOrderFn) []byte, byteOrder types.ByteOrder) *Context {
	return &Context{
		Catalog:   catalog,
		ByteOrder: bo,
		Emit:      emit,
		BO:        byteOrder,
		sections:  make(map[string]*section.Section),
	}
}

// Switch selects (section, subsegment) as the target of subsequent
// Assemble calls, creating the section on first use (spec.md §4.C4's
// subspace API).
func (c *Context) Switch(name string, subseg int) *section.Section {
	sec, ok := c.sections[name]
	if !ok {
		sec = section.New(name)
		c.sections[name] = sec
		c.order = append(c.order, name)
	}
	c.curSec, c.curSub = name, subseg
	return sec
}

// Section returns a previously-Switch'd-to section by name, or nil.
func (c *Context) Section(name string) *section.Section { return c.sections[name] }

// Sections returns every section touched so far, in first-use order.
func (c *Context) Sections() []*section.Section {
	out := make([]*section.Section, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.sections[name])
	}
	return out
}

// Assemble matches one instruction (pkg/encoder, spec.md §4.C6) and
// appends its bytes plus fixups to the current section's current
// fragment (pkg/section, spec.md §4.C4). encoder.Encode doesn't know the
// fragment an instruction lands in until it is appended, so this fills in
// each returned fixup's Frag/Where only after that.
func (c *Context) Assemble(mnemonic string, operands []encoder.Operand) (*encoder.Encoded, error) {
	if c.curSec == "" {
		return nil, linkerr.New(linkerr.InvalidOperation, "asm.Assemble: no current section")
	}
	enc, err := c.Catalog.Encode(mnemonic, operands, c.Emit, c.ByteOrder)
	if err != nil {
		return nil, err
	}
	sec := c.sections[c.curSec]
	data, frag, offset := sec.MoreAt(c.curSub, len(enc.Bytes))
	copy(data, enc.Bytes)

	// tryMatch appends one fixup per symbolic operand, in the order those
	// operands appear; zip them back up so Lookup can fill in Target
	// without the caller re-deriving which operand produced which fixup.
	symbolic := 0
	for _, fx := range enc.Fixups {
		fx.Where = offset
		fx.Frag = fixupFrag{f: frag, bo: c.BO}
		if c.Lookup != nil {
			for ; symbolic < len(operands); symbolic++ {
				if operands[symbolic].IsSymbolic {
					fx.Target = c.Lookup(operands[symbolic].SymbolName)
					symbolic++
					break
				}
			}
		}
		frag.AddFixup(fx)
	}
	return enc, nil
}

// Ldgp expands the Alpha ldgp pseudo-op: `ldgp rdest, addend(rbase)`
// becomes `ldah rdest,0(rbase)` + `lda rdest,0(rdest)` whose GPDISP_HI and
// GPDISP_LO fixups share the same symbolic target and addend, resolved at
// link time from the GP value. The catalog on c must be AlphaCatalog.
func (c *Context) Ldgp(rdest, rbase int, gpName string, addend int64) (hi, lo *encoder.Encoded, err error) {
	hi, err = c.Assemble("ldah", []encoder.Operand{
		{Value: int64(rdest)},
		{IsSymbolic: true, SymbolName: gpName, Addend: addend},
		{Value: int64(rbase)},
	})
	if err != nil {
		return nil, nil, err
	}
	lo, err = c.Assemble("lda", []encoder.Operand{
		{Value: int64(rdest)},
		{IsSymbolic: true, SymbolName: gpName, Addend: addend},
		{Value: int64(rdest)},
	})
	if err != nil {
		return hi, nil, err
	}
	return hi, lo, nil
}

// Var starts a variable fragment for a branch whose final encoding
// pkg/relax will decide (spec.md §4.C4's frag_var), analogous to
// Assemble but for instructions with more than one possible length.
func (c *Context) Var(kind, subtype int, sym *symtab.Symbol, off int64, maxGrow int, initial []byte) *section.Fragment {
	sec := c.sections[c.curSec]
	return sec.Var(c.curSub, kind, subtype, sym, off, maxGrow, initial)
}

// Relax runs the fixpoint engine (pkg/relax) over every section this
// context has accumulated, then re-renders every variable fragment (whether
// or not its subtype changed) using render: the per-target callback that knows how to
// produce the bytes for a (base, subtype) pair once its final length is
// settled (spec.md §4.C7 step 5, "emit the chosen length's bytes"). render
// may be nil if no variable fragments were created (relax.Run is then a
// no-op over plain fixed sections).
func (c *Context) Relax(table relax.Table, render func(kind, subtype int, frag *section.Fragment) []byte) (int, error) {
	secs := make([]relax.Section, 0, len(c.order))
	for _, name := range c.order {
		secs = append(secs, relaxSection{sec: c.sections[name]})
	}
	passes, err := relax.Run(secs, table)
	if err != nil {
		return passes, err
	}
	if render == nil {
		return passes, nil
	}
	for _, name := range c.order {
		for _, f := range c.sections[name].Fragments {
			if f.Variable {
				f.Bytes = render(f.Kind, f.Subtype, f)
			}
		}
	}
	return passes, nil
}

// ResolveFixups freezes every section's fragment addresses (pkg/section)
// and resolves every pending fixup against them (pkg/fixup): patches what
// it can in place and returns everything that must be kept for output
// (spec.md §4.C5 step 4).
func (c *Context) ResolveFixups(signedOverflowOK bool) ([]*fixup.Fixup, error) {
	var kept []*fixup.Fixup
	for _, name := range c.order {
		sec := c.sections[name]
		sec.Freeze()
		for _, f := range sec.Fragments {
			for _, sfx := range f.Fixups {
				fx, ok := sfx.(*fixup.Fixup)
				if !ok {
					continue
				}
				pcAddr := fx.Frag.Address() + uint64(fx.Where)
				res, err := fixup.Resolve(fx, pcAddr, 0, 0, 0, signedOverflowOK)
				if err != nil {
					return kept, err
				}
				if res.Done {
					if err := fx.Frag.Patch(fx.Where, fx.Size, uint64(res.Value)); err != nil {
						return kept, err
					}
					fx.Done = true
					continue
				}
				kept = append(kept, fx)
			}
		}
	}
	return kept, nil
}

// relaxFrag adapts *section.Fragment to relax.Frag. Length/SetLength
// operate on the fragment's own Bytes slice: relax.Run decides only the
// final byte length here (growing or truncating it with zero padding);
// Context.Relax's render callback overwrites the content afterward once
// the subtype (and therefore the real encoding) is settled.
type relaxFrag struct {
	f *section.Fragment
}

func (r relaxFrag) Base() int {
	if !r.f.Variable {
		return -1 // never matches a real (base, subtype) table key
	}
	return r.f.Kind
}
func (r relaxFrag) Subtype() int     { return r.f.Subtype }
func (r relaxFrag) SetSubtype(s int) { r.f.Subtype = s }
func (r relaxFrag) Length() int      { return len(r.f.Bytes) }
func (r relaxFrag) SetLength(n int) {
	if n <= len(r.f.Bytes) {
		r.f.Bytes = r.f.Bytes[:n]
		return
	}
	r.f.Bytes = append(r.f.Bytes, make([]byte, n-len(r.f.Bytes))...)
}

// Displacement is the provisional forward (positive) or backward
// (negative) byte distance from this fragment's own provisional address
// addr to its target symbol, spec.md §4.C7 step 3's "check each variable
// fragment's displacement against its current subtype's limits."
func (r relaxFrag) Displacement(addr int64) int64 {
	sym, _ := r.f.Symbol.(*symtab.Symbol)
	if sym == nil {
		return 0
	}
	return sym.Value + r.f.SymOffset - addr
}
func (r relaxFrag) Address() int64     { return int64(r.f.Address) }
func (r relaxFrag) SetAddress(a int64) { r.f.Address = uint64(a) }

type relaxSection struct {
	sec *section.Section
}

func (s relaxSection) Frags() []relax.Frag {
	out := make([]relax.Frag, 0, len(s.sec.Fragments))
	for _, f := range s.sec.Fragments {
		out = append(out, relaxFrag{f: f})
	}
	return out
}

// FixedLenAfter is always 0: every byte this context writes, fixed or
// variable, is already one of sec.Fragments, so Frags() alone accounts
// for the section's full length.
func (s relaxSection) FixedLenAfter(i int) int64 { return 0 }

// fixupFrag adapts *section.Fragment to fixup.FragmentRef, patching
// bytes directly into the fragment's own slice once Context.ResolveFixups
// has frozen every section's addresses (spec.md §4.C5's "patch the bytes
// in place" case).
type fixupFrag struct {
	f  *section.Fragment
	bo types.ByteOrder
}

func (r fixupFrag) Address() uint64 { return r.f.Address }

func (r fixupFrag) Patch(where, size int, value uint64) error {
	if where < 0 || where+4 > len(r.f.Bytes) {
		return linkerr.New(linkerr.BadValue, "asm.Patch")
	}
	// Every fixup kind this core resolves in place targets a 32-bit
	// instruction word or data slot; a narrower size patches only the
	// low-order field bits, leaving the opcode bits around it intact.
	if size >= 32 {
		r.bo.PutUint32(r.f.Bytes[where:], uint32(value))
		return nil
	}
	mask := uint32(1)<<uint(size) - 1
	word := r.bo.Uint32(r.f.Bytes[where:])
	r.bo.PutUint32(r.f.Bytes[where:], word&^mask|uint32(value)&mask)
	return nil
}
