package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/bimakw/stage-rebalancer/internal/application/services"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors onto status codes. Unexpected
// errors are logged and never echoed to the client.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, msg string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInsufficientData):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error(msg, zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
