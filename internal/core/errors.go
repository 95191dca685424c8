package core

import (
	"errors"
	"fmt"
)

var (
	// ErrScope marks a caller identity that lacks the context its role requires.
	// It is a wiring bug upstream and must never degrade into an unscoped query.
	ErrScope = errors.New("scope error")

	// ErrDataAccess marks a failure of the data-access collaborator.
	ErrDataAccess = errors.New("data access error")

	// ErrOutOfScope is returned when the caller's scope cannot reach the requested
	// event/institution pair. Callers render it as "not found".
	ErrOutOfScope = errors.New("not found in caller scope")

	// ErrNotFound is returned by scoped record lookups that match nothing.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedPredicate is returned by a data-access implementation that
	// cannot express a predicate field.
	ErrUnsupportedPredicate = errors.New("unsupported predicate field")

	ErrInvalidAmount = errors.New("invalid amount")
)

// ScopeError reports the missing identity attribute for a role.
type ScopeError struct {
	Role    string
	Missing string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("scope error: role %q requires %s", e.Role, e.Missing)
}

func (e *ScopeError) Unwrap() error {
	return ErrScope
}

// DataAccessError wraps a collaborator failure with the aggregation or lookup
// that produced it.
type DataAccessError struct {
	Source string
	Err    error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access (%s): %v", e.Source, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

func (e *DataAccessError) Is(target error) bool {
	return target == ErrDataAccess
}

// NewDataAccessError wraps err unless it is nil or already a DataAccessError.
func NewDataAccessError(source string, err error) error {
	if err == nil {
		return nil
	}
	var dae *DataAccessError
	if errors.As(err, &dae) {
		return err
	}
	return &DataAccessError{Source: source, Err: err}
}

func IsScopeError(err error) bool {
	return errors.Is(err, ErrScope)
}

func IsDataAccess(err error) bool {
	return errors.Is(err, ErrDataAccess)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrOutOfScope) || errors.Is(err, ErrNotFound)
}
