package linker

import (
	"github.com/google/go-cmp/cmp"

	"github.com/aixtools/xcoffld/pkg/symtab"
)

// symbolSnapshot is the subset of *symtab.Symbol state worth comparing
// across a relink: enough to say "this symbol moved, changed value, or
// changed storage-mapping class," without the cross-links (Descriptor,
// IndirectTarget) that would make the full struct self-referential under
// cmp.Diff.
type symbolSnapshot struct {
	State   symtab.State
	Value   int64
	SMClass uint8
}

// snapshotTable captures one comparable view of every symbol in t, keyed
// by name, for Diff.
func snapshotTable(t *symtab.Table) map[string]symbolSnapshot {
	out := make(map[string]symbolSnapshot, len(t.All()))
	for _, s := range t.All() {
		out[s.Name] = symbolSnapshot{State: s.State, Value: s.Value, SMClass: s.SMClass}
	}
	return out
}

// Diff reports, in unified-diff form, every symbol whose state, value, or
// storage-mapping class differs between two symbol tables -- typically one
// from a fresh link and one reloaded from a previously-written output file
// (cmd/xcoffdump's -verify mode), surfacing an unintended relink drift. A
// name present in only one table is reported too, so an empty string means
// both tables hold the same names and agree on each of them.
func Diff(old, new *symtab.Table) string {
	return cmp.Diff(snapshotTable(old), snapshotTable(new))
}
