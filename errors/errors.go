// Package errors provides error handling for tabx.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details for user-facing messages
//
// It also defines the stable error kinds of the import/serve pipeline.
// Callers match kinds with errors.Is(); the kind survives any amount of
// wrapping.
//
// Usage:
//
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	if errors.Is(err, errors.ErrMalformedInput) {
//	    // unrecoverable CSV structure problem
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is     = crdb.Is
	IsAny  = crdb.IsAny
	As     = crdb.As
	Unwrap = crdb.Unwrap

	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
)

// Stable error kinds for the tabular→XML pipeline.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the kind.
var (
	// ErrMalformedInput indicates the source file has no usable tabular
	// structure: no delimiter candidate yields a consistent column count,
	// or the file carries zero data rows.
	ErrMalformedInput = New("malformed input")

	// ErrSchemaMismatch indicates a cell failed to coerce under an
	// already-committed schema. The importer recovers locally (string
	// fallback + log); this kind never crosses a package boundary except
	// inside import log details.
	ErrSchemaMismatch = New("schema mismatch")

	// ErrArtifactMissing indicates validation or querying was requested
	// before the dataset's XML/XSD artifacts were generated.
	ErrArtifactMissing = New("artifact missing")

	// ErrInvalidQuery indicates an unparseable path or FLWOR expression.
	ErrInvalidQuery = New("invalid query")

	// ErrNotFound indicates the requested dataset does not exist.
	ErrNotFound = New("not found")
)

// IsMalformedInput checks if an error is or wraps ErrMalformedInput.
func IsMalformedInput(err error) bool {
	return err != nil && Is(err, ErrMalformedInput)
}

// IsSchemaMismatch checks if an error is or wraps ErrSchemaMismatch.
func IsSchemaMismatch(err error) bool {
	return err != nil && Is(err, ErrSchemaMismatch)
}

// IsArtifactMissing checks if an error is or wraps ErrArtifactMissing.
func IsArtifactMissing(err error) bool {
	return err != nil && Is(err, ErrArtifactMissing)
}

// IsInvalidQuery checks if an error is or wraps ErrInvalidQuery.
func IsInvalidQuery(err error) bool {
	return err != nil && Is(err, ErrInvalidQuery)
}

// IsNotFound checks if an error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// NewMalformedInput creates a malformed-input error with a formatted reason.
func NewMalformedInput(format string, args ...interface{}) error {
	return Wrap(ErrMalformedInput, Newf(format, args...).Error())
}

// NewInvalidQuery creates an invalid-query error with a formatted reason.
func NewInvalidQuery(format string, args ...interface{}) error {
	return Wrap(ErrInvalidQuery, Newf(format, args...).Error())
}

// NewArtifactMissing creates an artifact-missing error with a formatted reason.
func NewArtifactMissing(format string, args ...interface{}) error {
	return Wrap(ErrArtifactMissing, Newf(format, args...).Error())
}
