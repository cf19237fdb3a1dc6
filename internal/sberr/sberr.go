// Package sberr implements the reader's error taxonomy (Io, Format,
// Unsupported, NotFound, Coercion) as a single wrapped error type, in the
// style of the sentinel errors (soma.ErrUnsupported) and %w-wrapping seen
// throughout this module's lineage.
package sberr

import (
	"errors"
	"fmt"
)

// Kind classifies a reader error.
type Kind int

const (
	// Io is an underlying filesystem/stream failure.
	Io Kind = iota
	// Format is a structural violation of the expected document or binary layout.
	Format
	// Unsupported is a recognised but unimplemented feature (e.g. a codec tag).
	Unsupported
	// NotFound is an expected document or data file absent from disk.
	NotFound
	// Coercion is a scalar parse failure. Per the decoder's numeric semantics
	// these are logged and swallowed at load time, never returned to a caller,
	// but the Kind still exists so tests can assert on what was swallowed.
	Coercion
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "io"
	case Format:
		return "format"
	case Unsupported:
		return "unsupported"
	case NotFound:
		return "not_found"
	case Coercion:
		return "coercion"
	default:
		return "unknown"
	}
}

// Error is a taxonomy-tagged, operation-scoped error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a taxonomy error. op should be a short "pkg.Func" label.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// EmptyContainer is returned by Open when a slide has zero valid image groups.
var EmptyContainer = New(NotFound, "slide.Open", errors.New("no valid image groups"))

// PathSyntax is returned when a slide path lacks the .sldy/.sldyz suffix.
var PathSyntax = New(Format, "container.SlideRoot", errors.New("path missing .sldy/.sldyz suffix"))
