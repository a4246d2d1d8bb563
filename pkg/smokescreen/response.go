package smokescreen

import (
	"net/http"
)

// Response is a rendered JSON response
type Response struct {
	Status int
	Header http.Header
	// Data is the rendered tree
	Data any
	// Body is the JSON encoding of Data
	Body []byte
}

// Write writes the response to w
func (r *Response) Write(w http.ResponseWriter) error {
	for key, values := range r.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(r.Status)
	_, err := w.Write(r.Body)
	return err
}
