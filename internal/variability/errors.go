package variability

import (
	"errors"
	"fmt"
)

// ErrNoData is returned by loaders when a light curve key has no backing data.
var ErrNoData = errors.New("no light curve data")

// VariabilityParseError is returned for malformed parameter strings.
// ComputeOffsets recovers it and reports zero offsets.
type VariabilityParseError struct {
	Raw string
	Err error
}

func (e *VariabilityParseError) Error() string {
	return fmt.Sprintf("malformed variability parameters %q: %v", e.Raw, e.Err)
}

func (e *VariabilityParseError) Unwrap() error { return e.Err }

// UnknownVariabilityMethodError is returned when no model is registered for a method.
type UnknownVariabilityMethodError struct {
	Method   string
	ObjectID string
}

func (e *UnknownVariabilityMethodError) Error() string {
	return fmt.Sprintf("object %s: unknown variability method %q", e.ObjectID, e.Method)
}

// LightCurveNotFoundError is returned when a light curve key has no backing data.
type LightCurveNotFoundError struct {
	Key string
	Err error
}

func (e *LightCurveNotFoundError) Error() string {
	return fmt.Sprintf("light curve %q not found", e.Key)
}

func (e *LightCurveNotFoundError) Unwrap() error { return e.Err }
