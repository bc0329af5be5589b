package column

import (
	"errors"
	"fmt"
	"strings"
)

// resolutionError marks errors produced by the resolver itself so that nested
// failures are propagated unchanged instead of being wrapped once per level.
type resolutionError interface {
	error
	resolution()
}

// DuplicateColumnError is returned when a column name is registered twice.
type DuplicateColumnError struct {
	Name string
}

func (e *DuplicateColumnError) Error() string {
	return fmt.Sprintf("column %q is already registered", e.Name)
}

// UnknownColumnError is returned when a column has no registered spec.
type UnknownColumnError struct {
	Name string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q", e.Name)
}

func (e *UnknownColumnError) resolution() {}

// MissingFieldError is returned when a raw column's field is absent from the row.
type MissingFieldError struct {
	Column string
	Field  string
	RowID  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("row %s: raw field %q for column %q is missing", e.RowID, e.Field, e.Column)
}

func (e *MissingFieldError) resolution() {}

// CyclicDependencyError is returned when a column depends on itself.
// Path lists the columns in resolution order, ending with the repeated one.
type CyclicDependencyError struct {
	Path  []string
	RowID string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("row %s: cyclic column dependency: %s", e.RowID, strings.Join(e.Path, " -> "))
}

func (e *CyclicDependencyError) resolution() {}

// ColumnComputationError wraps a getter failure with the column and row it happened on.
type ColumnComputationError struct {
	Column string
	RowID  string
	Err    error
}

func (e *ColumnComputationError) Error() string {
	return fmt.Sprintf("row %s: computing column %q: %v", e.RowID, e.Column, e.Err)
}

func (e *ColumnComputationError) Unwrap() error { return e.Err }

func (e *ColumnComputationError) resolution() {}

// ErrSealed is returned when registering into a sealed registry.
var ErrSealed = errors.New("column registry is sealed")

// ColumnOf extracts the offending column name from a resolution error, if any.
func ColumnOf(err error) string {
	var cce *ColumnComputationError
	if errors.As(err, &cce) {
		return cce.Column
	}
	var mfe *MissingFieldError
	if errors.As(err, &mfe) {
		return mfe.Column
	}
	var ue *UnknownColumnError
	if errors.As(err, &ue) {
		return ue.Name
	}
	var ce *CyclicDependencyError
	if errors.As(err, &ce) && len(ce.Path) > 0 {
		return ce.Path[0]
	}
	return ""
}
