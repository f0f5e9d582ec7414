package zip

import (
	"fmt"

	"golang.org/x/xerrors"
)

// Kind distinguishes the error taxonomy of §7: a caller can xerrors.Is
// against the matching Err* sentinel below regardless of which record or
// operation produced the wrapped error.
type Kind int

const (
	// KindStructural covers bad signatures, short reads on fixed records,
	// and inconsistent length fields.
	KindStructural Kind = iota
	// KindUnsupported covers the multi-disk flag, unknown compression
	// methods, writable in-memory archives, and the declared-but-stubbed
	// rename/addFile/addEntry operations.
	KindUnsupported
	// KindCorruption covers a CRC-32 mismatch after decompression.
	KindCorruption
	// KindInvalidArgument covers an absolute path given to AddData.
	KindInvalidArgument
	// KindIO covers a byte-source or sink failure.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindStructural:
		return "structural"
	case KindUnsupported:
		return "unsupported"
	case KindCorruption:
		return "corruption"
	case KindInvalidArgument:
		return "invalid argument"
	case KindIO:
		return "i/o"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with the Kind it belongs to, plus enough
// context (record name, byte offset) to diagnose it without a debugger.
type Error struct {
	Kind   Kind
	Op     string // operation that failed, e.g. "Archive.Open"
	Record string // record kind involved, if any, e.g. "EOCD", "CDFH", "LFH"
	Offset int64  // byte offset involved, if known; -1 if not applicable
	Err    error
}

func (e *Error) Error() string {
	if e.Record != "" {
		if e.Offset >= 0 {
			return fmt.Sprintf("%s: %s %s at offset %d: %v", e.Op, e.Kind, e.Record, e.Offset, e.Err)
		}
		return fmt.Sprintf("%s: %s %s: %v", e.Op, e.Kind, e.Record, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the Kind sentinel for e's kind, so callers
// can do xerrors.Is(err, zip.ErrCorruption) without type-asserting *Error.
func (e *Error) Is(target error) bool {
	k, ok := target.(kindSentinel)
	return ok && k.kind == e.Kind
}

type kindSentinel struct{ kind Kind }

func (s kindSentinel) Error() string { return s.kind.String() }

// sentinel values usable with xerrors.Is(err, zip.ErrStructural) etc.
var (
	ErrStructural      error = kindSentinel{KindStructural}
	ErrUnsupported     error = kindSentinel{KindUnsupported}
	ErrCorruption      error = kindSentinel{KindCorruption}
	ErrInvalidArgument error = kindSentinel{KindInvalidArgument}
	ErrIO              error = kindSentinel{KindIO}
)

func newError(kind Kind, op, record string, offset int64, err error) error {
	return &Error{Kind: kind, Op: op, Record: record, Offset: offset, Err: err}
}

func wrapf(kind Kind, op, record string, offset int64, format string, args ...interface{}) error {
	return newError(kind, op, record, offset, xerrors.Errorf(format, args...))
}
