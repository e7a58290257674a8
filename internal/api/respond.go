package api

import (
	"encoding/json"
	"net/http"

	"github.com/slotline/booking-core/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps the error-kind taxonomy onto HTTP statuses.
// Infrastructure details stay out of the response body.
func writeServiceError(w http.ResponseWriter, err error) {
	switch apperr.KindOf(err) {
	case apperr.NotFound:
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case apperr.Validation:
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case apperr.Conflict:
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}
