// Package httputil maps domain errors to HTTP responses and writes JSON
// bodies with consistent headers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "equitrail/pkg/domain-errors"
)

// errorBody is the wire shape for error responses.
type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to an HTTP status and JSON body. Internal
// errors never leak their description to the client.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)

	status := http.StatusInternalServerError
	wire := "internal_error"
	description := ""

	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		status = http.StatusBadRequest
		wire = "bad_request"
		description = messageOf(err)
	case dErrors.CodeNotFound:
		status = http.StatusNotFound
		wire = "not_found"
		description = messageOf(err)
	case dErrors.CodeConflict:
		status = http.StatusConflict
		wire = "conflict"
		description = messageOf(err)
	case dErrors.CodeUnavailable:
		status = http.StatusServiceUnavailable
		wire = "unavailable"
	}

	WriteJSON(w, status, errorBody{Error: wire, Description: description})
}

func messageOf(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
