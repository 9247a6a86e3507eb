package model

import "fmt"

// InputError reports malformed input or input that left nothing to cluster.
// It aborts only the collection it names.
type InputError struct {
	Collection ZoneKind
	Reason     string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input error (%s): %s", e.Collection, e.Reason)
}

// NewInputError builds an InputError with a formatted reason.
func NewInputError(collection ZoneKind, format string, args ...any) *InputError {
	return &InputError{Collection: collection, Reason: fmt.Sprintf(format, args...)}
}

// ParameterError reports a tunable that is out of range. It is raised before
// any clustering work starts.
type ParameterError struct {
	Field  string
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

// NewParameterError builds a ParameterError.
func NewParameterError(field, format string, args ...any) *ParameterError {
	return &ParameterError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
