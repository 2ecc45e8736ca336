package symtab

// Table is the global symbol table: a chained hash keyed by external name,
// one table shared by every input for the whole link.
type Table struct {
	buckets []*entry
	names   map[string]*Symbol
	order   []*Symbol // insertion order, for deterministic output symbol emission
}

type entry struct {
	sym  *Symbol
	next *entry
}

// NewTable creates an empty symbol table sized for n expected entries.
func NewTable(n int) *Table {
	size := 16
	for size < n {
		size <<= 1
	}
	return &Table{
		buckets: make([]*entry, size),
		names:   make(map[string]*Symbol, n),
	}
}

// Lookup returns the symbol named name, creating an undefined one if absent.
func (t *Table) Lookup(name string) *Symbol {
	if s, ok := t.names[name]; ok {
		return s
	}
	s := NewUndefined(name)
	t.insert(s)
	return s
}

// Find returns the symbol named name without creating it.
func (t *Table) Find(name string) (*Symbol, bool) {
	s, ok := t.names[name]
	return s, ok
}

func (t *Table) insert(s *Symbol) {
	t.names[s.Name] = s
	t.order = append(t.order, s)
	h := hashName(s.Name) & uint32(len(t.buckets)-1)
	t.buckets[h] = &entry{sym: s, next: t.buckets[h]}
}

// All returns every symbol in insertion order.
func (t *Table) All() []*Symbol { return t.order }

// Len returns the number of distinct symbol names.
func (t *Table) Len() int { return len(t.order) }

// hashName is a simple FNV-1a variant; the exact constant doesn't matter
// for correctness (only bucket distribution), so a well-known public-domain
// hash is used rather than inventing one.
func hashName(s string) uint32 {
	const prime = 16777619
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}
