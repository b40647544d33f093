// Package flowerr defines the error taxonomy shared by every flowcore
// component: a small closed set of error kinds, plus helpers that wrap an
// underlying cause while keeping the stack of the first failure.
package flowerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind enumerates the error taxonomy from the flowcore error handling
// design. Every exported error from this module carries one of these.
type Kind uint8

const (
	// Args marks a null or semantically invalid argument.
	Args Kind = iota
	// Memory marks an allocation failure.
	Memory
	// IO marks an underlying channel read/write/seek failure.
	IO
	// ShortRead marks a read that returned fewer bytes than required.
	ShortRead
	// ShortWrite marks a write that accepted fewer bytes than requested.
	ShortWrite
	// BadMagic marks a file-header magic mismatch.
	BadMagic
	// BadVersion marks an unsupported file or record version.
	BadVersion
	// BadCompression marks an unknown or disabled compression method.
	BadCompression
	// BadHeader marks a truncated or malformed header entry.
	BadHeader
	// CorruptTree marks a structural trie violation (depth overflow,
	// child index past the record count, invalid child).
	CorruptTree
	// Duplicate marks a dictionary word already bound to a different code.
	Duplicate
	// NotEmpty marks a mutation attempted after the object left its
	// initial, empty state (e.g. SetDefaultCode after an insert).
	NotEmpty
	// NoIPv6 marks an IPv6 payload encountered on an IPv6-less build.
	NoIPv6
	// CallOrder marks an operation invoked out of its required sequence.
	CallOrder
	// Locked marks a header mutation attempted after the header locked.
	Locked
)

func (k Kind) String() string {
	switch k {
	case Args:
		return "ARGS"
	case Memory:
		return "MEMORY"
	case IO:
		return "IO"
	case ShortRead:
		return "SHORT_READ"
	case ShortWrite:
		return "SHORT_WRITE"
	case BadMagic:
		return "BAD_MAGIC"
	case BadVersion:
		return "BAD_VERSION"
	case BadCompression:
		return "BAD_COMPRESSION"
	case BadHeader:
		return "BAD_HEADER"
	case CorruptTree:
		return "CORRUPT_TREE"
	case Duplicate:
		return "DUPLICATE"
	case NotEmpty:
		return "NOT_EMPTY"
	case NoIPv6:
		return "NO_IPV6"
	case CallOrder:
		return "CALL_ORDER"
	case Locked:
		return "LOCKED"
	default:
		return "UNKNOWN"
	}
}

// Error is a flowcore error: a Kind plus a message, carrying a stack trace
// captured at the point the error was first raised.
type Error struct {
	Kind Kind
	msg  string
	// cause, when set, wraps an underlying error (e.g. the channel's own
	// I/O error) without discarding its stack.
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a Kind-tagged error with a captured stack.
func New(kind Kind, msg string) error {
	return errors.WithStack(&Error{Kind: kind, msg: msg})
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap attaches kind/msg to cause, unless cause already carries a flowcore
// Error — in which case the original (first) error is returned unchanged,
// per the "first error wins" propagation policy.
func Wrap(cause error, kind Kind, msg string) error {
	if cause == nil {
		return nil
	}
	var existing *Error
	if errors.As(cause, &existing) {
		return cause
	}
	return errors.WithStack(&Error{Kind: kind, msg: msg, cause: cause})
}

// Is reports whether err (or something it wraps) is a flowcore Error of
// the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
