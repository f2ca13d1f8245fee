// Package errs defines the tagged error kinds shared by every subsystem.
//
// Each kind is a sentinel comparable with errors.Is; subsystems build an
// *Error with New or Wrap rather than inventing per-package error
// types. Any *Error can additionally carry a SourceLocation (WithLocation)
// for user-facing diagnostics.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the ten tagged error categories the core distinguishes.
type Kind int

const (
	IoError Kind = iota
	FormatError
	SyntaxError
	SemanticError
	TypeError
	IrMalformed
	MemoryError
	ConcurrencyError
	NotFound
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case IoError:
		return "io error"
	case FormatError:
		return "format error"
	case SyntaxError:
		return "syntax error"
	case SemanticError:
		return "semantic error"
	case TypeError:
		return "type error"
	case IrMalformed:
		return "ir malformed"
	case MemoryError:
		return "memory error"
	case ConcurrencyError:
		return "concurrency error"
	case NotFound:
		return "not found"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown error"
	}
}

// sentinel is the comparable value errors.Is matches against; Kind alone
// isn't an error, so each kind gets one.
type sentinel struct{ k Kind }

func (s *sentinel) Error() string { return s.k.String() }

var sentinels = func() map[Kind]*sentinel {
	m := make(map[Kind]*sentinel)
	for _, k := range []Kind{IoError, FormatError, SyntaxError, SemanticError,
		TypeError, IrMalformed, MemoryError, ConcurrencyError, NotFound, Unsupported} {
		m[k] = &sentinel{k}
	}
	return m
}()

// Sentinel returns the comparable base error for a kind, for use with errors.Is.
func Sentinel(k Kind) error { return sentinels[k] }

// SourceLocation pinpoints a position in source text, mirroring the
// teacher's SourceLocation shape.
type SourceLocation struct {
	File   string
	Line   int
	Column int
	Length int
}

func (loc SourceLocation) String() string {
	if loc.File == "" {
		return fmt.Sprintf("%d:%d", loc.Line, loc.Column)
	}
	return fmt.Sprintf("%s:%d:%d", loc.File, loc.Line, loc.Column)
}

// Error is a tagged error: a Kind, a human description, the stage that
// raised it, and an optional source location for user-facing diagnostics.
type Error struct {
	Kind     Kind
	Stage    string
	Location *SourceLocation
	Message  string
	Cause    error
}

func New(k Kind, stage, message string) *Error {
	return &Error{Kind: k, Stage: stage, Message: message}
}

func (e *Error) WithLocation(loc SourceLocation) *Error {
	e.Location = &loc
	return e
}

func (e *Error) Error() string {
	if e.Location != nil {
		return fmt.Sprintf("%s: %s: %s (%s)", e.Stage, e.Kind, e.Message, e.Location)
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return sentinels[e.Kind]
}

func (e *Error) Is(target error) bool {
	return errors.Is(sentinels[e.Kind], target)
}

// Wrap attaches a tagged kind to an underlying error without discarding it.
func Wrap(k Kind, stage string, cause error) *Error {
	return &Error{Kind: k, Stage: stage, Message: cause.Error(), Cause: cause}
}
