package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/driftbyte/hookline/internal/errors"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps domain sentinels to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case apperrors.Is(err, apperrors.ErrEndpointInactive):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
