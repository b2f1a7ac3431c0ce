package sql

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for the query builder and transaction layers.
var (
	// ErrInvalidPredicate is returned when a fluent method receives
	// malformed clause arguments. It is raised at build time, before any
	// statement is compiled or sent.
	ErrInvalidPredicate = errors.New("fluent: invalid predicate")

	// ErrMissingTable is returned by terminal operations invoked on a
	// builder that has no target table.
	ErrMissingTable = errors.New("fluent: missing table")

	// ErrUnsupportedKind is returned when a grammar encounters a
	// predicate kind it cannot render. This indicates a defect in this
	// library, never a silently dropped clause.
	ErrUnsupportedKind = errors.New("fluent: unsupported predicate kind")

	// ErrUnsupportedFeature is returned when a dialect cannot express a
	// requested operation (for example InsertGetID on SQL Server).
	ErrUnsupportedFeature = errors.New("fluent: unsupported dialect feature")

	// ErrBindingMismatch is returned when the number of placeholders in a
	// compiled statement does not equal the number of flattened bindings.
	// This is an internal-consistency failure, not a user error.
	ErrBindingMismatch = errors.New("fluent: binding count mismatch")

	// ErrTxState is returned when Commit or Rollback is called on a
	// transaction whose depth no longer permits it.
	ErrTxState = errors.New("fluent: invalid transaction state")

	// ErrStopIteration signals Chunk and ChunkByID to stop fetching
	// further pages. It is swallowed by the chunker and never surfaced
	// to the caller.
	ErrStopIteration = errors.New("fluent: stop iteration")
)

// InvalidPredicateError describes a malformed clause argument.
type InvalidPredicateError struct {
	Reason string
}

// Error returns the error string.
func (e *InvalidPredicateError) Error() string {
	return fmt.Sprintf("fluent: invalid predicate: %s", e.Reason)
}

// Is reports whether the target matches ErrInvalidPredicate.
func (e *InvalidPredicateError) Is(err error) bool {
	return err == ErrInvalidPredicate
}

// IsInvalidPredicate reports whether err is an InvalidPredicateError.
func IsInvalidPredicate(err error) bool {
	if err == nil {
		return false
	}
	var e *InvalidPredicateError
	return errors.As(err, &e) || errors.Is(err, ErrInvalidPredicate)
}

// MissingTableError is returned by a terminal operation on a builder with
// no target table.
type MissingTableError struct {
	Op string // the terminal operation: "Get", "Insert", "Update", "Delete", ...
}

// Error returns the error string.
func (e *MissingTableError) Error() string {
	return fmt.Sprintf("fluent: %s: no target table set", e.Op)
}

// Is reports whether the target matches ErrMissingTable.
func (e *MissingTableError) Is(err error) bool {
	return err == ErrMissingTable
}

// IsMissingTable reports whether err is a MissingTableError.
func IsMissingTable(err error) bool {
	if err == nil {
		return false
	}
	var e *MissingTableError
	return errors.As(err, &e) || errors.Is(err, ErrMissingTable)
}

// UnsupportedKindError is returned when a grammar walks a predicate node
// whose kind it does not know how to render.
type UnsupportedKindError struct {
	Kind Kind
}

// Error returns the error string.
func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("fluent: unsupported predicate kind %q", e.Kind)
}

// Is reports whether the target matches ErrUnsupportedKind.
func (e *UnsupportedKindError) Is(err error) bool {
	return err == ErrUnsupportedKind
}

// UnsupportedFeatureError is returned when a dialect cannot express the
// requested operation.
type UnsupportedFeatureError struct {
	Dialect string
	Feature string
}

// Error returns the error string.
func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("fluent: dialect %q does not support %s", e.Dialect, e.Feature)
}

// Is reports whether the target matches ErrUnsupportedFeature.
func (e *UnsupportedFeatureError) Is(err error) bool {
	return err == ErrUnsupportedFeature
}

// IsUnsupportedFeature reports whether err is an UnsupportedFeatureError.
func IsUnsupportedFeature(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedFeatureError
	return errors.As(err, &e) || errors.Is(err, ErrUnsupportedFeature)
}

// BindingMismatchError reports a compiled statement whose placeholder count
// diverged from its flattened binding list.
type BindingMismatchError struct {
	SQL          string
	Placeholders int
	Bindings     int
}

// Error returns the error string.
func (e *BindingMismatchError) Error() string {
	return fmt.Sprintf("fluent: statement has %d placeholders but %d bindings: %s",
		e.Placeholders, e.Bindings, e.SQL)
}

// Is reports whether the target matches ErrBindingMismatch.
func (e *BindingMismatchError) Is(err error) bool {
	return err == ErrBindingMismatch
}

// IsBindingMismatch reports whether err is a BindingMismatchError.
func IsBindingMismatch(err error) bool {
	if err == nil {
		return false
	}
	var e *BindingMismatchError
	return errors.As(err, &e) || errors.Is(err, ErrBindingMismatch)
}

// TxStateError is returned when a transaction operation is illegal at the
// current nesting depth.
type TxStateError struct {
	Op    string // "commit", "rollback" or "begin"
	Depth int
}

// Error returns the error string.
func (e *TxStateError) Error() string {
	return fmt.Sprintf("fluent: %s at transaction depth %d", e.Op, e.Depth)
}

// Is reports whether the target matches ErrTxState.
func (e *TxStateError) Is(err error) bool {
	return err == ErrTxState
}

// IsTxState reports whether err is a TxStateError.
func IsTxState(err error) bool {
	if err == nil {
		return false
	}
	var e *TxStateError
	return errors.As(err, &e) || errors.Is(err, ErrTxState)
}
