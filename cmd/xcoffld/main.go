// Command xcoffld is a thin wiring demo over the pkg/linker pipeline: an
// os.File-backed BlobReader over plain object files (no archives).
// It is deliberately not a full command-line driver -- flag parsing,
// response files, and the rest of a real `ld` front end are out of scope
// (spec.md §1 Non-goals) -- it exists so the packages above have one
// concrete, runnable assembly point: every input is actually read
// (xcoffobj.ReadInput), split into csects (xcoffobj.Split), driven through
// the full link sequence (linker.RunXCOFF), and the result is written back
// out as real XCOFF bytes.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aixtools/xcoffld/pkg/linker"
	"github.com/aixtools/xcoffld/pkg/section"
	"github.com/aixtools/xcoffld/pkg/symtab"
	"github.com/aixtools/xcoffld/pkg/xcoffobj"
	"github.com/aixtools/xcoffld/types"
)

// fileReader adapts *os.File to xcoffobj.BlobReader.
type fileReader struct{ f *os.File }

func (r fileReader) ReadAt(off int64, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := r.f.ReadAt(b, off); err != nil {
		return nil, err
	}
	return b, nil
}

func (r fileReader) Size() int64 {
	fi, err := r.f.Stat()
	if err != nil {
		return 0
	}
	return fi.Size()
}

// warnCallbacks logs every recoverable condition to stderr. It continues
// past multiple definitions and unattached relocs, and aborts on reloc
// overflow.
type warnCallbacks struct{}

func (warnCallbacks) MultipleDefinition(sym *symtab.Symbol, oldInput, newInput string) bool {
	fmt.Fprintf(os.Stderr, "xcoffld: multiple definition of %s: %s redefines %s\n", sym.Name, newInput, oldInput)
	return true
}

func (warnCallbacks) UnattachedReloc(sectionName string, offset uint64, symbolName string) bool {
	fmt.Fprintf(os.Stderr, "xcoffld: reloc in %s at %#x against unattached symbol %s\n", sectionName, offset, symbolName)
	return true
}

func (warnCallbacks) RelocOverflow(sectionName string, offset uint64, symbolName string, kind string) bool {
	fmt.Fprintf(os.Stderr, "xcoffld: %s overflow in %s at %#x against %s\n", kind, sectionName, offset, symbolName)
	return false
}

func main() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: xcoffld <entry-symbol> <output-file> <input-files...>")
		os.Exit(2)
	}
	entry := os.Args[1]
	outputPath := os.Args[2]
	inputPaths := os.Args[3:]

	opts := linker.LinkOptions{
		Entry:       entry,
		LibraryPath: "/usr/lib:/lib",
		FileAlign:   4,
		GC:          true,
		Strip:       linker.StripNone,
	}

	syms := symtab.NewTable(1024)
	glink := &appendSection{}
	ds := &appendSection{}
	l := linker.New(opts, warnCallbacks{}, syms, glink, ds)

	var inputs []*xcoffobj.Input
	var totalCsects int
	for _, path := range inputPaths {
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "xcoffld: %v\n", err)
			os.Exit(1)
		}
		in, err := xcoffobj.ReadInput(path, fileReader{f: f}, types.BigEndian)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "xcoffld: %v\n", err)
			os.Exit(1)
		}
		if err := xcoffobj.Split(in, syms, in.AuxCSect); err != nil {
			fmt.Fprintf(os.Stderr, "xcoffld: %s: %v\n", path, err)
			os.Exit(1)
		}
		inputs = append(inputs, in)
		totalCsects += len(in.Csects)
	}

	// The section-header table's size (and therefore where section/reloc/
	// symbol data can start) depends on the final csect count, which is
	// settled by Split above before GC ever drops a section's contents
	// (Sweep zeros a section's bytes but never removes it from the table).
	headerEnd := uint64(types.FileHeaderSize) + uint64(totalCsects)*uint64(types.SectionHeaderSize)

	rendered, err := linker.RunXCOFF(l, inputs, syms, headerEnd, types.BigEndian, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xcoffld: %v\n", err)
		os.Exit(1)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xcoffld: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	if err := writeOutput(out, l, rendered, syms, types.BigEndian); err != nil {
		fmt.Fprintf(os.Stderr, "xcoffld: %v\n", err)
		os.Exit(1)
	}
}

// writeOutput lays out and writes the file header, section header table,
// section contents, per-section relocations, symbol table, and string
// table that spec.md §4.C13 steps 5-8 compute (in linker.Rendered) but
// leave to the embedder to place at file offsets (spec.md §1's BlobWriter
// collaborator). Relocations for every section are grouped into one
// contiguous block following the section contents, in section order, the
// simplest layout that keeps each section header's Relptr/Nreloc pair
// self-consistent; the symbol table and string table follow that block.
func writeOutput(out *os.File, l *linker.Linker, r linker.Rendered, syms *symtab.Table, bo types.ByteOrder) error {
	var relocCursor uint32
	for _, sec := range l.Sections {
		end := sec.FileOffset + sec.Size
		if end > uint64(relocCursor) {
			relocCursor = uint32(end)
		}
	}

	relptrOf := make(map[*section.Section]uint32, len(l.Sections))
	nrelocOf := make(map[*section.Section]uint16, len(l.Sections))
	relocCursor = alignUp32(relocCursor, 4)
	cursor := relocCursor
	for _, sec := range l.Sections {
		b := r.SectionRelocs[sec]
		n := len(b) / types.RelocSize
		if n == 0 {
			continue
		}
		relptrOf[sec] = cursor
		nrelocOf[sec] = uint16(n)
		cursor += uint32(len(b))
	}
	symPtr := cursor

	kept := emittedSymbols(syms)
	symBytes := buildSymbolTable(kept, bo)
	strOff := symPtr + uint32(len(symBytes))

	h := types.FileHeader{
		Magic:    types.MagicXCOFF32,
		NumSctns: uint16(len(l.Sections)),
		SymPtr:   symPtr,
		NumSyms:  uint32(len(symBytes) / types.SymbolEntrySize),
	}
	hb := make([]byte, types.FileHeaderSize)
	h.Put(hb, bo)
	if _, err := out.Write(hb); err != nil {
		return err
	}

	for _, sec := range l.Sections {
		sh := types.SectionHeader{
			Vaddr:  uint32(sec.VMA),
			Paddr:  uint32(sec.VMA),
			Size:   uint32(sec.Size),
			Scnptr: uint32(sec.FileOffset),
			Relptr: relptrOf[sec],
			Nreloc: nrelocOf[sec],
			Flags:  sectionFlags(sec),
		}
		copy(sh.Name[:], sec.Name)
		b := make([]byte, types.SectionHeaderSize)
		sh.Put(b, bo)
		if _, err := out.Write(b); err != nil {
			return err
		}
	}

	for _, sec := range l.Sections {
		if err := padTo(out, int64(sec.FileOffset)); err != nil {
			return err
		}
		if _, err := out.Write(r.SectionBytes[sec]); err != nil {
			return err
		}
	}

	if err := padTo(out, int64(relocCursor)); err != nil {
		return err
	}
	for _, sec := range l.Sections {
		if b := r.SectionRelocs[sec]; len(b) > 0 {
			if _, err := out.Write(b); err != nil {
				return err
			}
		}
	}

	if err := padTo(out, int64(symPtr)); err != nil {
		return err
	}
	if _, err := out.Write(symBytes); err != nil {
		return err
	}

	if err := padTo(out, int64(strOff)); err != nil {
		return err
	}
	_, err := out.Write(r.Strtab)
	return err
}

// sectionFlags derives the on-disk STYP_* flag word from the in-memory
// section flags pkg/section tracks (spec.md §3 "Section").
func sectionFlags(sec *section.Section) uint32 {
	switch {
	case sec.Flags&section.FlagCode != 0:
		return types.STYP_TEXT
	case sec.Name == ".bss":
		return types.STYP_BSS
	case sec.Name == ".loader":
		return types.STYP_LOADER
	default:
		return types.STYP_DATA
	}
}

// emittedSymbols returns every symbol EmitSymbols already decided to keep,
// ordered by its assigned OutSymIndex (spec.md §4.C13 step 4).
func emittedSymbols(syms *symtab.Table) []*symtab.Symbol {
	all := syms.All()
	kept := make([]*symtab.Symbol, 0, len(all))
	for _, s := range all {
		if s.OutSymIndex >= 0 || s.OutSymIndex == -2 {
			kept = append(kept, s)
		}
	}
	for i := 1; i < len(kept); i++ {
		for j := i; j > 0 && rankOf(kept[j]) < rankOf(kept[j-1]); j-- {
			kept[j], kept[j-1] = kept[j-1], kept[j]
		}
	}
	return kept
}

func rankOf(s *symtab.Symbol) int {
	if s.OutSymIndex == -2 {
		return -1
	}
	return s.OutSymIndex
}

// buildSymbolTable renders one SYMENT per kept symbol, followed by one
// AUXCSECT when the symbol defines a csect (spec.md §6's on-disk symbol
// table layout, the inverse of xcoffobj.ReadInput's decode). Names longer
// than 8 bytes use the (0, stroff) indirection; offsets are computed in the
// same order linker.Render appends them to the output string table, whose
// 4-byte length prefix counts toward every offset.
func buildSymbolTable(kept []*symtab.Symbol, bo types.ByteOrder) []byte {
	var buf []byte
	strOff := uint32(4)
	for _, s := range kept {
		scnum := int16(0)
		if s.Section != nil {
			scnum = int16(*s.Section + 1)
		}
		numAux := uint8(0)
		if s.SMClass != 0 {
			numAux = 1
		}
		se := types.SymbolEntry{Value: uint32(s.Value), Scnum: scnum, SClass: storageClassOf(s), NumAux: numAux}
		if len(s.Name) <= 8 {
			copy(se.Name[:], s.Name)
		} else {
			bo.PutUint32(se.Name[0:4], 0)
			bo.PutUint32(se.Name[4:8], strOff)
			strOff += uint32(len(s.Name)) + 1
		}
		b := make([]byte, types.SymbolEntrySize)
		se.Put(b, bo)
		buf = append(buf, b...)

		if numAux == 1 {
			aux := types.AuxCSect{SMClass: s.SMClass}
			if s.State == symtab.StateCommon {
				aux.SectionLen = uint32(s.CommonSize)
			}
			ab := make([]byte, types.AuxCSectSize)
			aux.Put(ab, bo)
			buf = append(buf, ab...)
		}
	}
	return buf
}

func storageClassOf(s *symtab.Symbol) uint8 {
	if s.StorageClass != 0 {
		return s.StorageClass
	}
	if s.Has(symtab.FlagDefRegular) {
		return types.C_HIDEXT
	}
	return types.C_EXT
}

func alignUp32(v uint32, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}

func mustSeekPos(f *os.File) int64 {
	off, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0
	}
	return off
}

func padTo(f *os.File, pos int64) error {
	cur := mustSeekPos(f)
	if pos <= cur {
		return nil
	}
	_, err := f.Write(make([]byte, pos-cur))
	return err
}

// appendSection is the minimal stub.Target the glink/descriptor sections
// need: a plain growable byte arena keyed by append order.
type appendSection struct {
	buf []byte
}

func (a *appendSection) Append(b []byte) uint32 {
	off := uint32(len(a.buf))
	a.buf = append(a.buf, b...)
	return off
}

func (a *appendSection) AddTOCEntry() uint32 {
	return uint32(len(a.buf))
}

func (a *appendSection) PatchWord(off uint32, v uint32) {
	if int(off)+4 <= len(a.buf) {
		types.BigEndian.PutUint32(a.buf[off:], v)
	}
}
