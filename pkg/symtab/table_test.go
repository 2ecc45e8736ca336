package symtab

import "testing"

func TestLookupCreatesUndefined(t *testing.T) {
	tab := NewTable(4)
	s := tab.Lookup("foo")
	if s.State != StateUndefined {
		t.Fatalf("freshly looked-up symbol State = %v, want StateUndefined", s.State)
	}
	if s.OutSymIndex != -1 {
		t.Fatalf("OutSymIndex = %d, want -1", s.OutSymIndex)
	}
}

func TestLookupIsIdempotent(t *testing.T) {
	tab := NewTable(4)
	a := tab.Lookup("foo")
	b := tab.Lookup("foo")
	if a != b {
		t.Fatal("Lookup returned distinct *Symbol for the same name")
	}
}

func TestFindMissing(t *testing.T) {
	tab := NewTable(4)
	if _, ok := tab.Find("nope"); ok {
		t.Fatal("Find reported a symbol that was never looked up")
	}
}

func TestAllPreservesInsertionOrder(t *testing.T) {
	tab := NewTable(4)
	names := []string{"c", "a", "b"}
	for _, n := range names {
		tab.Lookup(n)
	}
	all := tab.All()
	if len(all) != len(names) {
		t.Fatalf("All() returned %d symbols, want %d", len(all), len(names))
	}
	for i, n := range names {
		if all[i].Name != n {
			t.Fatalf("All()[%d].Name = %q, want %q (insertion order not preserved)", i, all[i].Name, n)
		}
	}
}

func TestLenGrowsWithDistinctNames(t *testing.T) {
	tab := NewTable(4)
	tab.Lookup("a")
	tab.Lookup("b")
	tab.Lookup("a") // repeat, should not grow Len
	if tab.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tab.Len())
	}
}
