package types

import (
	"encoding/binary"
	"math"
)

// ByteOrder is the fixed big- or little-endian layout an object or output
// image is read/written with. XCOFF/PowerPC objects are always big-endian;
// the assembler targets covered by pkg/encoder (SH, W65) can be either, so
// the codec is parameterized rather than hard-coded, the way go-macho's
// FileTOC.ByteOrder is threaded through every Put/Write call.
type ByteOrder = binary.ByteOrder

// BigEndian and LittleEndian re-export the stdlib orders so callers that
// only import types don't need a second import of encoding/binary.
var (
	BigEndian    = binary.BigEndian
	LittleEndian = binary.LittleEndian
)

// Uint16At/Uint32At read a fixed-width integer at an offset in b using bo,
// the read-side counterpart to the Put methods on the on-disk structs below.
func Uint16At(b []byte, off int, bo ByteOrder) uint16 { return bo.Uint16(b[off:]) }
func Uint32At(b []byte, off int, bo ByteOrder) uint32 { return bo.Uint32(b[off:]) }

// PutUint16At/PutUint32At write a fixed-width integer at an offset in b.
func PutUint16At(b []byte, off int, v uint16, bo ByteOrder) { bo.PutUint16(b[off:], v) }
func PutUint32At(b []byte, off int, v uint32, bo ByteOrder) { bo.PutUint32(b[off:], v) }

// FloatBits64/FloatBits32 convert a float into its IEEE-754 bit pattern for
// the assembler's float literal encoder (gas config/tc-*.c's md_atof,
// generalized here: bignum->bytes for .float/.double directives).
func FloatBits64(f float64) uint64 { return math.Float64bits(f) }
func FloatBits32(f float32) uint32 { return math.Float32bits(f) }
