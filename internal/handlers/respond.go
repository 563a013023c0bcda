package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"folio/internal/query"
	"folio/internal/store"
)

// apiError is one entry of the {"errors": [...]} body.
type apiError struct {
	Message string       `json:"message"`
	Field   string       `json:"field,omitempty"`
	Data    []FieldError `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write json failed", "error", err)
	}
}

func writeErrors(w http.ResponseWriter, status int, errs ...apiError) {
	writeJSON(w, status, map[string]any{"errors": errs})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeErrors(w, status, apiError{Message: msg})
}

// writeError maps domain errors to HTTP statuses. Unknown errors are
// logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeErrors(w, http.StatusBadRequest, apiError{Message: "The following field is invalid.", Data: verrs})
	case errors.Is(err, query.ErrInvalidQuery):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrSlugTaken):
		writeErrors(w, http.StatusConflict, apiError{Message: "A document with this slug already exists.", Field: "slug"})
	case errors.Is(err, store.ErrEmailTaken):
		writeErrors(w, http.StatusConflict, apiError{Message: "A user with this email already exists.", Field: "email"})
	case errors.Is(err, ErrNotFound):
		writeMessage(w, http.StatusNotFound, "The requested resource was not found.")
	case errors.Is(err, ErrStorageDisabled):
		writeMessage(w, http.StatusServiceUnavailable, "Object storage is not configured.")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Something went wrong.")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 2<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return ValidationErrors{{Field: "body", Message: "Request body must be valid JSON: " + err.Error()}}
	}
	return nil
}
