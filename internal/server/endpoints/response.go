package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jackzampolin/clickread/internal/library"
	"github.com/jackzampolin/clickread/internal/region"
)

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeErr maps a domain error to its status code.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// statusFor maps the region error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, region.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, region.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, region.ErrFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, region.ErrConsistency), errors.Is(err, library.ErrExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// pageParam parses the zero-based page index from the path.
func pageParam(r *http.Request) (int, bool) {
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil || page < 0 {
		return 0, false
	}
	return page, true
}

// decodeBody decodes a JSON request body, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
