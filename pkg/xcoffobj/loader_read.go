package xcoffobj

import (
	"errors"

	"github.com/aixtools/xcoffld/pkg/linkerr"
	"github.com/aixtools/xcoffld/types"
)

// DynamicLoader is the parsed `.loader` section of a dynamic (shared
// object) input, read so the linker can see which symbols it exports and
// which import files it names (spec.md §4.C8 "reads .loader of dynamic
// inputs").
type DynamicLoader struct {
	Header  types.LoaderHeader
	Symbols []types.LoaderSymbol
	Relocs  []types.LoaderReloc
	Imports []types.ImportFileRef
	Strtab  []byte
}

// ReadLoader decodes a `.loader` section payload (spec.md §4.C11 layout,
// §6 field layouts) for a dynamic input. l_rsecnm's true howto-selecting
// meaning cannot be recovered from the fields XCOFF actually stores, so
// ReadLoader reads the raw l_rsecnm value without mapping it to a howto,
// leaving that to the caller with an explicit TODO rather than silently
// assuming R_POS/size-32.
func ReadLoader(b []byte, bo types.ByteOrder) (*DynamicLoader, error) {
	if len(b) < types.LoaderHeaderSize {
		return nil, &linkerr.Error{Kind: linkerr.WrongFormat, Op: "xcoffobj.ReadLoader", Err: errShortLoader}
	}
	dl := &DynamicLoader{}
	h := &dl.Header
	h.Version = bo.Uint32(b[0:])
	h.NSyms = bo.Uint32(b[4:])
	h.NRelocs = bo.Uint32(b[8:])
	h.ImportLen = bo.Uint32(b[12:])
	h.NImports = bo.Uint32(b[16:])
	h.ImportOff = bo.Uint32(b[20:])
	h.StrtabLen = bo.Uint32(b[24:])
	h.StrtabOff = bo.Uint32(b[28:])

	off := types.LoaderHeaderSize
	for i := uint32(0); i < h.NSyms; i++ {
		if off+types.LoaderSymbolSize > len(b) {
			return nil, &linkerr.Error{Kind: linkerr.WrongFormat, Op: "xcoffobj.ReadLoader", Err: errShortLoader}
		}
		var s types.LoaderSymbol
		copy(s.Name[:], b[off:off+8])
		s.Value = bo.Uint32(b[off+8:])
		s.Scnum = int16(bo.Uint16(b[off+12:]))
		s.SymType = b[off+14]
		s.SMClass = b[off+15]
		s.IFile = bo.Uint32(b[off+16:])
		s.ParmOff = bo.Uint32(b[off+20:])
		dl.Symbols = append(dl.Symbols, s)
		off += types.LoaderSymbolSize
	}

	relOff := types.LoaderHeaderSize + int(h.NSyms)*types.LoaderSymbolSize
	for i := uint32(0); i < h.NRelocs; i++ {
		if relOff+types.LoaderRelocSize > len(b) {
			return nil, &linkerr.Error{Kind: linkerr.WrongFormat, Op: "xcoffobj.ReadLoader", Err: errShortLoader}
		}
		var r types.LoaderReloc
		r.Vaddr = bo.Uint32(b[relOff:])
		r.Symndx = bo.Uint32(b[relOff+4:])
		r.Rtype = bo.Uint16(b[relOff+8:])
		// TODO: r_rsecnm's true howto-selecting meaning is not recovered
		// here; see the package doc comment and DESIGN.md's Open Question
		// entry. We keep the raw field rather than assuming a dummy howto.
		r.Rsecnm = bo.Uint16(b[relOff+10:])
		dl.Relocs = append(dl.Relocs, r)
		relOff += types.LoaderRelocSize
	}

	if int(h.ImportOff)+int(h.ImportLen) <= len(b) {
		dl.Imports = parseImportTable(b[h.ImportOff : h.ImportOff+h.ImportLen])
	}
	if int(h.StrtabOff)+int(h.StrtabLen) <= len(b) {
		dl.Strtab = b[h.StrtabOff : h.StrtabOff+h.StrtabLen]
	}
	return dl, nil
}

var errShortLoader = errors.New("xcoffobj: truncated loader section")

func parseImportTable(b []byte) []types.ImportFileRef {
	var out []types.ImportFileRef
	i := 0
	for i < len(b) {
		path, n := cstrN(b[i:])
		i += n
		file, n := cstrN(b[i:])
		i += n
		member, n := cstrN(b[i:])
		i += n
		out = append(out, types.ImportFileRef{Path: path, File: file, Member: member})
	}
	return out
}

func cstrN(b []byte) (string, int) {
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), i + 1
		}
	}
	return string(b), len(b)
}
