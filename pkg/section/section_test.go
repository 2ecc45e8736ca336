package section

import "testing"

func TestRecordAlignmentOnlyRaises(t *testing.T) {
	s := New(".text")
	s.RecordAlignment(2)
	if s.Align != 2 {
		t.Fatalf("Align = %d, want 2", s.Align)
	}
	s.RecordAlignment(1)
	if s.Align != 2 {
		t.Fatalf("RecordAlignment(1) lowered Align to %d, want it to stay at 2", s.Align)
	}
	s.RecordAlignment(4)
	if s.Align != 4 {
		t.Fatalf("Align = %d, want 4", s.Align)
	}
}

func TestMoreAppendsToCurrentFragment(t *testing.T) {
	s := New(".data")
	b1 := s.More(0, 4)
	copy(b1, []byte{1, 2, 3, 4})
	b2 := s.More(0, 2)
	copy(b2, []byte{5, 6})

	if len(s.Fragments) != 1 {
		t.Fatalf("len(Fragments) = %d, want 1 (same subsegment continues the fragment)", len(s.Fragments))
	}
	want := []byte{1, 2, 3, 4, 5, 6}
	got := s.Fragments[0].Bytes
	if len(got) != len(want) {
		t.Fatalf("Fragment bytes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Fragment bytes = %v, want %v", got, want)
		}
	}
}

func TestMoreDifferentSubsegmentsGetDifferentFragments(t *testing.T) {
	s := New(".data")
	s.More(0, 2)
	s.More(1, 2)
	if len(s.Fragments) != 2 {
		t.Fatalf("len(Fragments) = %d, want 2 (distinct subsegments)", len(s.Fragments))
	}
}

func TestVarStartsNewFragmentBetweenFixedOnes(t *testing.T) {
	s := New(".text")
	s.More(0, 2)
	frag := s.Var(0, 1, 0, nil, 0, 4, []byte{0xAA})
	if !frag.Variable {
		t.Fatal("Var-created fragment should be Variable")
	}
	nextFixed := s.More(0, 2)
	copy(nextFixed, []byte{1, 2})

	if len(s.Fragments) != 3 {
		t.Fatalf("len(Fragments) = %d, want 3 (fixed, variable, fixed)", len(s.Fragments))
	}
}

func TestFreezeAssignsSequentialAddressesAndSize(t *testing.T) {
	s := New(".text")
	s.More(0, 3)
	s.Var(0, 0, 0, nil, 0, 0, []byte{0, 0})
	s.Freeze()

	if s.Fragments[0].Address != 0 {
		t.Fatalf("first fragment Address = %d, want 0", s.Fragments[0].Address)
	}
	if s.Fragments[1].Address != 3 {
		t.Fatalf("second fragment Address = %d, want 3", s.Fragments[1].Address)
	}
	if s.Size != 5 {
		t.Fatalf("Size = %d, want 5", s.Size)
	}
}

func TestBytesConcatenatesFragmentsInOrder(t *testing.T) {
	s := New(".text")
	copy(s.More(0, 2), []byte{1, 2})
	copy(s.More(1, 2), []byte{3, 4})
	s.Freeze()

	got := s.Bytes()
	want := []byte{1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("Bytes() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Bytes() = %v, want %v", got, want)
		}
	}
}
