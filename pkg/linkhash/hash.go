// Package linkhash implements the linker's global symbol hash and the
// archive-member pull-in decision (spec.md §4.C9): a table keyed by
// external name shared across every input, plus the logic that decides
// which archive members (static or dynamic) must be loaded because an
// already-seen input references one of their defined symbols.
package linkhash

import "github.com/aixtools/xcoffld/pkg/symtab"

// ArchiveMember is the interface the core needs from one member of an
// archive: its defined external names (for the pull-in decision) and an
// opaque handle the caller uses to actually load it.
type ArchiveMember interface {
	DefinedNames() []string
	Handle() any
}

// ArchiveIterator is the external collaborator spec.md §1 calls out:
// archive member iteration is implemented outside the core.
type ArchiveIterator interface {
	// Next returns the next member, or ok=false at end of archive.
	Next() (ArchiveMember, bool)
	// Reset rewinds the iterator so a second pass can pull in members that
	// satisfy symbols discovered only after the first pass (spec.md §4.C9
	// "archive scan" repeats until a full pass pulls in nothing new).
	Reset()
}

// Hash is the global symbol table plus bookkeeping for which archive
// members have already been pulled in.
type Hash struct {
	Symbols *symtab.Table
	pulled  map[any]bool

	// commons tracks, per name, the current winning common definition's
	// size/alignment so RecordCommon can implement the "largest size wins"
	// rule from xcofflink.c (SPEC_FULL.md §D).
	commons map[string]commonRecord
}

type commonRecord struct {
	size  int64
	align uint8
}

func New(syms *symtab.Table) *Hash {
	return &Hash{Symbols: syms, pulled: make(map[any]bool), commons: make(map[string]commonRecord)}
}

// RecordCommon implements bfd_xcoff_link_record_set's rule (SPEC_FULL.md
// §D): when a common-state symbol is redefined, the larger of the two
// size/alignment pairs wins; the loser's LDREL flag (if set) is cleared
// since it is no longer the defining record.
func (h *Hash) RecordCommon(s *symtab.Symbol, size int64, align uint8) {
	cur, seen := h.commons[s.Name]
	if !seen || size > cur.size {
		h.commons[s.Name] = commonRecord{size: size, align: align}
		s.CommonSize = size
		s.CommonAlign = align
		if seen {
			s.Clear(symtab.FlagLDRel)
		}
	}
}

// ScanArchives runs spec.md §4.C9's pull-in loop: repeatedly scan every
// iterator from the start, pulling in any member that defines a symbol
// currently undefined in h.Symbols, until a full pass pulls in nothing.
// pull is called once per member that must be loaded; it should add the
// member's symbols/csects into h.Symbols the same way a regular input does.
func (h *Hash) ScanArchives(iters []ArchiveIterator, pull func(ArchiveMember) error) error {
	for {
		progressed := false
		for _, it := range iters {
			it.Reset()
			for {
				m, ok := it.Next()
				if !ok {
					break
				}
				if h.pulled[m.Handle()] {
					continue
				}
				if !h.needsMember(m) {
					continue
				}
				if err := pull(m); err != nil {
					return err
				}
				h.pulled[m.Handle()] = true
				progressed = true
			}
		}
		if !progressed {
			return nil
		}
	}
}

// needsMember reports whether any name the member defines is currently
// referenced but undefined (or a weaker state it could legally promote).
func (h *Hash) needsMember(m ArchiveMember) bool {
	for _, name := range m.DefinedNames() {
		if s, ok := h.Symbols.Find(name); ok {
			if s.State == symtab.StateUndefined || s.State == symtab.StateUndefWeak || s.State == symtab.StateCommon {
				if s.Has(symtab.FlagRefRegular) || s.State != symtab.StateUndefined {
					return true
				}
			}
		}
	}
	return false
}
