package smokescreen

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RequestSource provides request input values
type RequestSource interface {
	InputValue(key string) (string, bool)
}

// Input is a fixed set of input values
type Input map[string]string

// InputValue implements RequestSource
func (in Input) InputValue(key string) (string, bool) {
	v, ok := in[key]
	return v, ok
}

type httpRequest struct {
	r *http.Request
}

// HTTPRequest reads input values from the query string of r, then from
// its chi URL parameters
func HTTPRequest(r *http.Request) RequestSource {
	return httpRequest{r: r}
}

// InputValue implements RequestSource
func (h httpRequest) InputValue(key string) (string, bool) {
	if values, ok := h.r.URL.Query()[key]; ok && len(values) > 0 {
		return values[0], true
	}
	if rctx := chi.RouteContext(h.r.Context()); rctx != nil {
		if v := rctx.URLParam(key); v != "" {
			return v, true
		}
	}
	return "", false
}
