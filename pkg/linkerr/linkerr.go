// Package linkerr defines the flat error-kind taxonomy shared by the XCOFF
// linker and the instruction-encoding pipeline.
package linkerr

import "fmt"

// Kind is one of the error kinds from the core's error handling design.
// It is intentionally flat rather than hierarchical: a caller that wants to
// react to a particular failure mode switches on Kind rather than walking a
// tree of wrapped types.
type Kind int

const (
	InvalidOperation Kind = iota
	WrongFormat
	BadValue
	NoSymbols
	NoMoreArchivedFiles
	NonRepresentableSection
	FileTooBig
	NoMemory
	RelocOverflow
	MultipleDefinition
	UnattachedReloc
	UndefinedSymbol
	AmbiguousFormat
)

func (k Kind) String() string {
	switch k {
	case InvalidOperation:
		return "invalid operation"
	case WrongFormat:
		return "wrong format"
	case BadValue:
		return "bad value"
	case NoSymbols:
		return "no symbols"
	case NoMoreArchivedFiles:
		return "no more archived files"
	case NonRepresentableSection:
		return "non-representable section"
	case FileTooBig:
		return "file too big"
	case NoMemory:
		return "no memory"
	case RelocOverflow:
		return "relocation overflow"
	case MultipleDefinition:
		return "multiple definition"
	case UnattachedReloc:
		return "unattached relocation"
	case UndefinedSymbol:
		return "undefined symbol"
	case AmbiguousFormat:
		return "ambiguous format"
	default:
		return "unknown error"
	}
}

// ErrTOCTooLarge is the wrapped cause of the FileTooBig error raised when
// the TOC section grows past the span a single r2 anchor can reach.
var ErrTOCTooLarge = fmt.Errorf("TOC section exceeds %#x bytes addressable from a single anchor", 0x10000)

// Error carries the diagnostic context spec.md §7 asks for: input file name,
// symbol name, and section name where known. Assembler-side callers also
// set Source/Line.
type Error struct {
	Kind    Kind
	Op      string // component/operation that raised it, e.g. "xcoffobj.Split"
	File    string
	Symbol  string
	Section string
	Source  string // assembler source file, if applicable
	Line    int    // assembler source line, if applicable
	Err     error  // wrapped cause, if any
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.File != "" {
		s += fmt.Sprintf(" (file %s)", e.File)
	}
	if e.Section != "" {
		s += fmt.Sprintf(" (section %s)", e.Section)
	}
	if e.Symbol != "" {
		s += fmt.Sprintf(" (symbol %s)", e.Symbol)
	}
	if e.Source != "" {
		s += fmt.Sprintf(" (%s:%d)", e.Source, e.Line)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// do errors.Is(err, linkerr.New(linkerr.RelocOverflow, "")) style checks,
// or more idiomatically switch on errors.As + Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error of the given kind with an operation tag.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap builds an *Error of the given kind wrapping err.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Fatal reports whether a Kind always aborts the link unconditionally,
// regardless of a user callback's answer (spec.md §7).
func Fatal(k Kind) bool {
	return k == NoMemory || k == FileTooBig
}

// Recoverable reports whether a Kind is offered to the user callback before
// aborting (spec.md §7): MultipleDefinition, UnattachedReloc, RelocOverflow.
func Recoverable(k Kind) bool {
	return k == MultipleDefinition || k == UnattachedReloc || k == RelocOverflow
}
