package xcoffobj

import (
	"github.com/aixtools/xcoffld/pkg/linkerr"
	"github.com/aixtools/xcoffld/types"
)

// ReadInput reads one XCOFF object's section headers, section contents,
// relocations, and symbol table off r (spec.md §6's on-disk layout: file
// header, section headers, section contents, relocations, symbol table,
// string table), producing the *Input that Split shreds into csects. Only
// 32-bit XCOFF is supported; XCOFF64 is out of scope (spec.md §1 Non-goals).
func ReadInput(name string, r BlobReader, bo types.ByteOrder) (*Input, error) {
	hdrBytes, err := r.ReadAt(0, types.FileHeaderSize)
	if err != nil {
		return nil, &linkerr.Error{Kind: linkerr.WrongFormat, Op: "xcoffobj.ReadInput", File: name, Err: err}
	}
	var h types.FileHeader
	h.Get(hdrBytes, bo)
	if h.Magic != types.MagicXCOFF32 {
		return nil, &linkerr.Error{Kind: linkerr.WrongFormat, Op: "xcoffobj.ReadInput", File: name}
	}

	in := &Input{Name: name, ByteOrder: bo}

	scnOff := int64(types.FileHeaderSize) + int64(h.OptHdrSize)
	in.Raw = make([]RawSection, h.NumSctns)
	for i := 0; i < int(h.NumSctns); i++ {
		b, err := r.ReadAt(scnOff+int64(i)*types.SectionHeaderSize, types.SectionHeaderSize)
		if err != nil {
			return nil, &linkerr.Error{Kind: linkerr.WrongFormat, Op: "xcoffobj.ReadInput", File: name, Err: err}
		}
		var sh types.SectionHeader
		sh.Get(b, bo)
		rs := RawSection{Header: sh, Name: cstr(sh.Name[:])}

		if sh.Flags&types.STYP_BSS == 0 && sh.Scnptr != 0 && sh.Size != 0 {
			data, err := r.ReadAt(int64(sh.Scnptr), int(sh.Size))
			if err != nil {
				return nil, &linkerr.Error{Kind: linkerr.WrongFormat, Op: "xcoffobj.ReadInput", File: name, Section: rs.Name, Err: err}
			}
			rs.Data = data
		}
		for j := 0; j < int(sh.Nreloc); j++ {
			rb, err := r.ReadAt(int64(sh.Relptr)+int64(j)*types.RelocSize, types.RelocSize)
			if err != nil {
				return nil, &linkerr.Error{Kind: linkerr.WrongFormat, Op: "xcoffobj.ReadInput", File: name, Section: rs.Name, Err: err}
			}
			var rl types.Reloc
			rl.Get(rb, bo)
			rs.Relocs = append(rs.Relocs, rl)
		}
		in.Raw[i] = rs
	}

	in.Symbols = make([]types.SymbolEntry, 0, h.NumSyms)
	auxMap := make(map[int]*types.AuxCSect)
	for idx := 0; idx < int(h.NumSyms); {
		b, err := r.ReadAt(int64(h.SymPtr)+int64(idx)*types.SymbolEntrySize, types.SymbolEntrySize)
		if err != nil {
			return nil, &linkerr.Error{Kind: linkerr.WrongFormat, Op: "xcoffobj.ReadInput", File: name, Err: err}
		}
		var se types.SymbolEntry
		se.Get(b, bo)
		symIndex := len(in.Symbols)
		in.Symbols = append(in.Symbols, se)

		if se.NumAux > 0 {
			switch se.SClass {
			case types.C_EXT, types.C_HIDEXT, types.C_WEAKEXT:
				ab, err := r.ReadAt(int64(h.SymPtr)+int64(idx+1)*types.SymbolEntrySize, types.AuxCSectSize)
				if err == nil {
					var aux types.AuxCSect
					aux.Get(ab, bo)
					auxMap[symIndex] = &aux
				}
			}
			// Every aux slot still occupies one symtab entry; keep the
			// placeholder entries so reloc symndx values (which count aux
			// slots) index correctly into in.Symbols.
			for k := 0; k < int(se.NumAux); k++ {
				in.Symbols = append(in.Symbols, types.SymbolEntry{})
			}
		}
		idx += 1 + int(se.NumAux)
	}
	in.auxCsect = auxMap

	strOff := int64(h.SymPtr) + int64(len(in.Symbols))*types.SymbolEntrySize
	if lenBytes, err := r.ReadAt(strOff, 4); err == nil {
		if strLen := bo.Uint32(lenBytes); strLen > 4 {
			if body, err := r.ReadAt(strOff, int(strLen)); err == nil {
				in.Strtab = body
			}
		}
	}

	return in, nil
}

func cstr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
