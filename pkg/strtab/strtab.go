// Package strtab implements the append-only string arena shared by the
// XCOFF output string table and the loader section's long-name table
// (spec.md §4.C2): stable offsets, optional de-duplication.
package strtab

// Table is an append-only byte arena. The XCOFF convention (spec.md §4.C13
// step 7) is that the table is written prefixed by its own length,
// including the four bytes of the length itself; callers needing that
// layout use Bytes() and prepend the length themselves via Size().
type Table struct {
	buf    []byte
	index  map[string]uint32 // optional de-dup; nil disables it
	dedupe bool
}

// New creates a Table. When dedupe is true, Add returns the offset of an
// existing identical string instead of appending a duplicate.
func New(dedupe bool) *Table {
	t := &Table{dedupe: dedupe}
	if dedupe {
		t.index = make(map[string]uint32)
	}
	return t
}

// Add appends s (NUL-terminated) and returns its stable byte offset.
func (t *Table) Add(s string) uint32 {
	if t.dedupe {
		if off, ok := t.index[s]; ok {
			return off
		}
	}
	off := uint32(len(t.buf))
	t.buf = append(t.buf, s...)
	t.buf = append(t.buf, 0)
	if t.dedupe {
		t.index[s] = off
	}
	return off
}

// Bytes returns the raw arena contents (no length prefix).
func (t *Table) Bytes() []byte { return t.buf }

// Size returns len(Bytes()).
func (t *Table) Size() uint32 { return uint32(len(t.buf)) }

// String returns the NUL-terminated string starting at off.
func (t *Table) String(off uint32) string {
	if int(off) >= len(t.buf) {
		return ""
	}
	end := off
	for end < uint32(len(t.buf)) && t.buf[end] != 0 {
		end++
	}
	return string(t.buf[off:end])
}

// WithLengthPrefix returns the arena bytes prefixed by a 4-byte length
// field, written with putUint32 (so in the caller's byte order), that
// includes the prefix itself, per spec.md §4.C13 step 7.
func (t *Table) WithLengthPrefix(putUint32 func([]byte, uint32)) []byte {
	total := t.Size() + 4
	out := make([]byte, 4, total)
	putUint32(out[0:4], total)
	return append(out, t.buf...)
}
