package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"photoshelf/internal/database"
	"photoshelf/internal/library"
	"photoshelf/internal/logging"
)

// errorResponse is the body of every failed API call.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v onto w. The status line may already be sent, so an
// encoding failure can only be logged.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Encoding JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, errorResponse{Error: message})
}

func writeJSONStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": status})
}

// writeLibraryError maps library and database errors to a status code.
func writeLibraryError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeJSONError(w, "Not found", http.StatusNotFound)
	case errors.Is(err, library.ErrInvalidLicense), errors.Is(err, library.ErrInvalidKind):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, library.ErrFileMissing):
		writeJSONError(w, "File is missing", http.StatusNotFound)
	default:
		logging.Op(op).Error("%v", err)
		writeJSONError(w, "Internal error", http.StatusInternalServerError)
	}
}
