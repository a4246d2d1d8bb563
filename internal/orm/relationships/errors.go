package relationships

import "errors"

var (
	// ErrMaxDepthExceeded is returned when the maximum nesting depth is exceeded
	ErrMaxDepthExceeded = errors.New("maximum relationship depth exceeded")

	// ErrUnknownRelationship is returned when a relation key is not declared on the schema
	ErrUnknownRelationship = errors.New("unknown relationship")

	// ErrInvalidRelationType is returned for relation families the SQL loader cannot batch
	ErrInvalidRelationType = errors.New("invalid relationship type")

	// ErrUnsupportedModel is returned for models that are not column-map records
	ErrUnsupportedModel = errors.New("unsupported model")
)
