package transformer

import (
	"errors"
	"fmt"
)

var (
	// ErrUnresolvedTransformer matches every *UnresolvedTransformerError
	ErrUnresolvedTransformer = errors.New("unresolved transformer")

	// ErrNotRegistered is returned when no constructor is registered for an identifier
	ErrNotRegistered = errors.New("transformer not registered")
)

// UnresolvedTransformerError is returned when a resource holds a model
// but no transformer can be built for it
type UnresolvedTransformerError struct {
	// Model is the short name of the model, if one was found
	Model string
	// Identifier is the conventional transformer identifier, if computed
	Identifier string
	Reason     string
	Cause      error
}

// Error implements the error interface
func (e *UnresolvedTransformerError) Error() string {
	msg := "unable to resolve transformer"
	if e.Model != "" {
		msg += " for model " + e.Model
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *UnresolvedTransformerError) Unwrap() error {
	return e.Cause
}

// Is matches ErrUnresolvedTransformer
func (e *UnresolvedTransformerError) Is(target error) bool {
	return target == ErrUnresolvedTransformer
}
