package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/conduit-lang/smokescreen/internal/engine"
	"github.com/conduit-lang/smokescreen/internal/introspect"
	"github.com/conduit-lang/smokescreen/internal/orm/crud"
	"github.com/conduit-lang/smokescreen/internal/orm/relationships"
	"github.com/conduit-lang/smokescreen/internal/web/query"
	"github.com/conduit-lang/smokescreen/pkg/smokescreen"
)

// ErrorResponse is the JSON body of an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Respond writes the rendered resource of s. Includes are read from r
// unless s already has a request. Render failures are written with Error.
func Respond(w http.ResponseWriter, r *http.Request, s *smokescreen.Smokescreen) {
	if s.Request() == nil {
		s.SetRequest(smokescreen.HTTPRequest(r))
	}
	if err := s.WriteResponse(r.Context(), w); err != nil {
		Error(w, err)
	}
}

// Error writes err as a JSON error with the status StatusOf reports
func Error(w http.ResponseWriter, err error) {
	WriteError(w, StatusOf(err), err.Error())
}

// StatusOf maps an error to its HTTP status
func StatusOf(err error) int {
	switch {
	case errors.Is(err, introspect.ErrModelNotFound),
		errors.Is(err, crud.ErrNotFound),
		errors.Is(err, crud.ErrUnknownTable):
		return http.StatusNotFound
	case errors.Is(err, relationships.ErrUnknownRelationship),
		errors.Is(err, crud.ErrFieldNotFound),
		errors.Is(err, crud.ErrRelationshipField),
		errors.Is(err, query.ErrInvalidField),
		errors.Is(err, engine.ErrMaxDepthExceeded),
		errors.Is(err, relationships.ErrMaxDepthExceeded):
		return http.StatusBadRequest
	default:
		// Unresolved transformers and missing resources are server faults
		return http.StatusInternalServerError
	}
}

// WriteError writes a JSON error body with the given status
func WriteError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   errorCode(status),
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorCode derives a snake_case code from the status text
func errorCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
