package introspect

import "errors"

// ErrModelNotFound is returned when the model to introspect is nil, not
// registered, or missing from the source index
var ErrModelNotFound = errors.New("model not found")
