// Package errkind defines the core's exception-free error model: a closed
// set of Kinds (spec.md §7), a typed Error carrying an optional suggestion,
// and the Kind-to-exit-code table that an external CLI collaborator (out of
// scope here) would use without having to re-derive it.
package errkind

import "fmt"

// Kind is a closed enumeration of the ways a core operation can fail. Tests
// assert on Kind, never on message text.
type Kind string

const (
	NotFound        Kind = "NOT_FOUND"
	AmbiguousID     Kind = "AMBIGUOUS_ID"
	AlreadyExists   Kind = "ALREADY_EXISTS"
	InvalidArgument Kind = "INVALID_ARGUMENT"
	CycleDetected   Kind = "CYCLE_DETECTED"
	Blocked         Kind = "BLOCKED"
	GateNotRequired Kind = "GATE_NOT_REQUIRED"
	LockTimeout     Kind = "LOCK_TIMEOUT"
	AlreadyClaimed  Kind = "ALREADY_CLAIMED"
	CheckerTimeout  Kind = "CHECKER_TIMEOUT"
	Corruption      Kind = "CORRUPTION"
	IO              Kind = "IO"
)

// ExitCode maps a Kind to the process exit code spec.md §6 defines. Kinds
// not named in the table (there are none, today) fall back to 1 (generic).
func (k Kind) ExitCode() int {
	switch k {
	case NotFound:
		return 3
	case AmbiguousID, InvalidArgument, CycleDetected, Blocked, GateNotRequired, Corruption:
		return 4
	case AlreadyExists, AlreadyClaimed:
		return 6
	case LockTimeout:
		return 5
	case CheckerTimeout:
		return 10
	case IO:
		return 1
	default:
		return 1
	}
}

// Error is the single error type returned by every fallible core operation.
// It is a value, not a control-flow mechanism: callers inspect Kind and
// Suggestion rather than relying on errors.Is chains of sentinel values.
type Error struct {
	Kind       Kind
	Message    string
	Suggestion string
	// Cause is the underlying error, if any (e.g. an os.PathError). It is
	// wrapped so that errors.Is/As still work for callers that need them,
	// without making Kind comparison dependent on wrapping depth.
	Cause error
}

func (e *Error) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Suggestion)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error with no suggestion and no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error around an existing error, tagging it with Kind.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithSuggestion attaches a remediation hint and returns the receiver for
// chaining at the call site, e.g. errkind.New(...).WithSuggestion("...").
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// Is reports whether err is an *Error of the given Kind. Safe to call on any
// error, including nil or non-*Error values.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
