package linker

import (
	"errors"
	"testing"

	"github.com/aixtools/xcoffld/pkg/linkerr"
)

func TestComputeTOCAnchorSmallTOC(t *testing.T) {
	anchor, err := ComputeTOCAnchor(100)
	if err != nil {
		t.Fatalf("ComputeTOCAnchor(100) error: %v", err)
	}
	if anchor != 0 {
		t.Fatalf("ComputeTOCAnchor(100) = %d, want 0 (TOC smaller than the bias)", anchor)
	}
}

func TestComputeTOCAnchorBiasedOffset(t *testing.T) {
	anchor, err := ComputeTOCAnchor(0x9000)
	if err != nil {
		t.Fatalf("ComputeTOCAnchor error: %v", err)
	}
	if want := uint64(0x9000 - tocAnchorBias); anchor != want {
		t.Fatalf("ComputeTOCAnchor(0x9000) = %#x, want %#x", anchor, want)
	}
}

func TestComputeTOCAnchorRejectsExactly0x10000(t *testing.T) {
	// A TOC of exactly 0x10000 bytes is the smallest size ComputeTOCAnchor
	// rejects.
	_, err := ComputeTOCAnchor(maxTOCReach)
	if err == nil {
		t.Fatal("expected an error for a TOC of exactly 0x10000 bytes")
	}
	var lerr *linkerr.Error
	if !errors.As(err, &lerr) || lerr.Kind != linkerr.FileTooBig {
		t.Fatalf("error = %v, want a *linkerr.Error with Kind FileTooBig", err)
	}
}

func TestComputeTOCAnchorAcceptsJustUnderLimit(t *testing.T) {
	anchor, err := ComputeTOCAnchor(0xFFFC)
	if err != nil {
		t.Fatalf("ComputeTOCAnchor(0xFFFC) should accept: %v", err)
	}
	if want := uint64(0xFFFC - tocAnchorBias); anchor != want {
		t.Fatalf("ComputeTOCAnchor(0xFFFC) = %#x, want %#x (tocend - 0x8000)", anchor, want)
	}
}
