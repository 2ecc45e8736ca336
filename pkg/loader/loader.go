// Package loader builds the XCOFF `.loader` section (spec.md §4.C11):
// header, symbol table, relocation table, import-file table, and the
// string table for long symbol names, in that on-disk order.
package loader

import (
	"github.com/aixtools/xcoffld/pkg/strtab"
	"github.com/aixtools/xcoffld/types"
)

// ImportTable de-duplicates {path, file, member} triples, id 0 reserved
// for the library search path (spec.md §3 "Import file"), matching
// xcoff_get_import_path's behavior (SPEC_FULL.md §D).
type ImportTable struct {
	entries []types.ImportFileRef
	index   map[types.ImportFileRef]uint32
}

func NewImportTable(libraryPath string) *ImportTable {
	t := &ImportTable{index: make(map[types.ImportFileRef]uint32)}
	first := types.ImportFileRef{Path: libraryPath}
	t.entries = append(t.entries, first)
	t.index[first] = 0
	return t
}

// Add returns the id for (path, file, member), creating a new entry if this
// exact triple hasn't been seen.
func (t *ImportTable) Add(path, file, member string) uint32 {
	key := types.ImportFileRef{Path: path, File: file, Member: member}
	if id, ok := t.index[key]; ok {
		return id
	}
	id := uint32(len(t.entries))
	t.entries = append(t.entries, key)
	t.index[key] = id
	return id
}

// Bytes renders the import-file table: "path\0file\0member\0" per entry.
func (t *ImportTable) Bytes() []byte {
	var out []byte
	for _, e := range t.entries {
		out = append(out, e.Path...)
		out = append(out, 0)
		out = append(out, e.File...)
		out = append(out, 0)
		out = append(out, e.Member...)
		out = append(out, 0)
	}
	return out
}

func (t *ImportTable) Count() int { return len(t.entries) }

// Builder accumulates loader symbols and relocs as the final pass (pkg
// linker) emits the corresponding regular symbols/relocs, indexed by the
// loader index AddSymbol returns, which linker.BuildLoaderSection stores on
// each symbol; GC does not assign it (spec.md §4.C11 "Sizing precedes
// writing").
type Builder struct {
	Imports *ImportTable
	Strtab  *strtab.Table

	Symbols []types.LoaderSymbol
	Relocs  []types.LoaderReloc
}

func NewBuilder(libraryPath string) *Builder {
	return &Builder{Imports: NewImportTable(libraryPath), Strtab: strtab.New(false)}
}

// AddSymbol appends a loader symbol, returning its loader index. Names
// longer than 8 bytes go through the string table, the same (0,stroff)
// convention the regular XCOFF symbol table uses.
func (b *Builder) AddSymbol(name string, value uint32, scnum int16, symtype, smclass uint8, ifile, parmoff uint32, bo types.ByteOrder) int {
	var ls types.LoaderSymbol
	if len(name) <= 8 {
		copy(ls.Name[:], name)
	} else {
		off := b.Strtab.Add(name)
		bo.PutUint32(ls.Name[0:4], 0)
		bo.PutUint32(ls.Name[4:8], off)
	}
	ls.Value = value
	ls.Scnum = scnum
	ls.SymType = symtype
	ls.SMClass = smclass
	ls.IFile = ifile
	ls.ParmOff = parmoff
	idx := len(b.Symbols)
	b.Symbols = append(b.Symbols, ls)
	return idx
}

// AddReloc appends a loader relocation.
func (b *Builder) AddReloc(vaddr, symndx uint32, rtype, rsecnm uint16) {
	b.Relocs = append(b.Relocs, types.LoaderReloc{Vaddr: vaddr, Symndx: symndx, Rtype: rtype, Rsecnm: rsecnm})
}

// Sizes returns the byte lengths of each loader sub-table, used to compute
// file offsets before writing (spec.md §4.C11 "Sizing precedes writing").
func (b *Builder) Sizes() (symsLen, relocsLen, importsLen, strtabLen uint32) {
	symsLen = uint32(len(b.Symbols)) * types.LoaderSymbolSize
	relocsLen = uint32(len(b.Relocs)) * types.LoaderRelocSize
	importsLen = uint32(len(b.Imports.Bytes()))
	strtabLen = b.Strtab.Size()
	return
}

// Write renders the whole `.loader` section: header, symbols, relocs,
// imports, string table, in that order (spec.md §4.C11 layout).
func (b *Builder) Write(bo types.ByteOrder) []byte {
	symsLen, relocsLen, importsLen, strtabLen := b.Sizes()

	h := types.LoaderHeader{
		Version:   1,
		NSyms:     uint32(len(b.Symbols)),
		NRelocs:   uint32(len(b.Relocs)),
		ImportLen: importsLen,
		NImports:  uint32(b.Imports.Count()),
		StrtabLen: strtabLen,
	}
	h.ImportOff = types.LoaderHeaderSize + symsLen + relocsLen
	h.StrtabOff = h.ImportOff + importsLen

	out := make([]byte, h.StrtabOff+strtabLen)
	h.Put(out[0:types.LoaderHeaderSize], bo)

	off := types.LoaderHeaderSize
	for i := range b.Symbols {
		b.Symbols[i].Put(out[off:], bo)
		off += types.LoaderSymbolSize
	}
	for i := range b.Relocs {
		b.Relocs[i].Put(out[off:], bo)
		off += types.LoaderRelocSize
	}
	copy(out[h.ImportOff:], b.Imports.Bytes())
	copy(out[h.StrtabOff:], b.Strtab.Bytes())
	return out
}

// ExpectedCounts implements the testable property in spec.md §8: l_nsyms
// equals the number of symbols with IMPORT/EXPORT/ENTRY set after GC and
// LDREL set (or the entry-point symbol itself); l_nreloc equals the count
// of relocs so classified. Exposed so pkg/linker's final pass can assert it
// before writing.
func ExpectedCounts(isEligible func(i int) bool, n int) int {
	count := 0
	for i := 0; i < n; i++ {
		if isEligible(i) {
			count++
		}
	}
	return count
}
