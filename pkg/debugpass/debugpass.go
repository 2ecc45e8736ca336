// Package debugpass validates embedded DWARF debug information carried in
// an XCOFF input's .dwabrev/.dwinfo/.dwline/.dwrnge/.dwstr sections
// (SPEC_FULL.md §B), the way blacktop/go-macho's File.DWARF loads Mach-O
// __debug_* sections into debug/dwarf. The linker never mutates debug
// info; this pass only confirms it parses, surfacing a malformed-debug
// diagnostic early rather than letting a corrupt .dwinfo silently ride
// into the output file.
package debugpass

import (
	"fmt"

	"github.com/blacktop/go-dwarf"

	"github.com/aixtools/xcoffld/pkg/linkerr"
)

// SectionData supplies the raw bytes of one DWARF-carrying section by its
// XCOFF name (".dwinfo", ".dwabrev", ".dwline", ".dwrnge", ".dwstr"),
// returning ok=false if the input doesn't carry that section.
type SectionData func(name string) (data []byte, ok bool)

// xcoffDwarfSections maps the five section names debug/dwarf (via
// go-dwarf) consumes to the key dwarf.New expects them under, mirroring
// blacktop/go-macho's File.DWARF suffix table but for XCOFF's own
// ".dw*" naming instead of Mach-O's "__debug_*"/"__zdebug_*" prefixes.
var xcoffDwarfSections = map[string]string{
	".dwabrev": "abbrev",
	".dwinfo":  "info",
	".dwline":  "line",
	".dwrnge":  "ranges",
	".dwstr":   "str",
}

// Validate loads every DWARF section present via get and runs a full
// dwarf.Data.Reader() pass over the top-level compile units, returning the
// first parse error encountered. It never mutates the input; a successful
// return means the embedded debug info is well-formed, nothing more.
func Validate(get SectionData) (*dwarf.Data, error) {
	dat := map[string][]byte{"abbrev": nil, "info": nil, "line": nil, "ranges": nil, "str": nil}
	for xcoffName, key := range xcoffDwarfSections {
		if b, ok := get(xcoffName); ok {
			dat[key] = b
		}
	}
	if dat["info"] == nil {
		return nil, nil // no embedded debug info; nothing to validate
	}
	d, err := dwarf.New(dat["abbrev"], nil, nil, dat["info"], dat["line"], nil, dat["ranges"], dat["str"])
	if err != nil {
		return nil, linkerr.Wrap(linkerr.WrongFormat, "debugpass.Validate", fmt.Errorf("parsing embedded DWARF: %w", err))
	}
	r := d.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return nil, linkerr.Wrap(linkerr.WrongFormat, "debugpass.Validate", fmt.Errorf("walking DWARF entries: %w", err))
		}
		if entry == nil {
			break
		}
	}
	return d, nil
}
