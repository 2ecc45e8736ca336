package strtab

import (
	"encoding/binary"
	"testing"
)

func TestAddAndString(t *testing.T) {
	tab := New(false)
	off1 := tab.Add("hello")
	off2 := tab.Add("world")
	if got := tab.String(off1); got != "hello" {
		t.Fatalf("String(off1) = %q, want %q", got, "hello")
	}
	if got := tab.String(off2); got != "world" {
		t.Fatalf("String(off2) = %q, want %q", got, "world")
	}
	if tab.Size() != uint32(len("hello\x00world\x00")) {
		t.Fatalf("Size() = %d, want %d", tab.Size(), len("hello\x00world\x00"))
	}
}

func TestAddDedupe(t *testing.T) {
	tab := New(true)
	off1 := tab.Add("repeat")
	off2 := tab.Add("repeat")
	if off1 != off2 {
		t.Fatalf("dedupe table returned distinct offsets %d, %d for identical strings", off1, off2)
	}
	if tab.Size() != uint32(len("repeat\x00")) {
		t.Fatalf("Size() = %d, want one copy only", tab.Size())
	}
}

func TestAddNoDedupe(t *testing.T) {
	tab := New(false)
	off1 := tab.Add("repeat")
	off2 := tab.Add("repeat")
	if off1 == off2 {
		t.Fatalf("non-dedupe table collapsed two Add calls onto one offset")
	}
}

func TestWithLengthPrefix(t *testing.T) {
	tab := New(false)
	tab.Add("a")
	out := tab.WithLengthPrefix(binary.BigEndian.PutUint32)
	wantLen := tab.Size() + 4
	if got := binary.BigEndian.Uint32(out[0:4]); got != wantLen {
		t.Fatalf("length prefix = %d, want %d (includes its own 4 bytes)", got, wantLen)
	}
	if uint32(len(out)) != wantLen {
		t.Fatalf("len(out) = %d, want %d", len(out), wantLen)
	}
}

func TestStringOutOfRange(t *testing.T) {
	tab := New(false)
	if got := tab.String(100); got != "" {
		t.Fatalf("String(100) on empty table = %q, want empty", got)
	}
}
