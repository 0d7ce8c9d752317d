package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/stage-rebalancer/internal/application/services"
)

// SignalsHandler handles HTTP requests for derived market signals
type SignalsHandler struct {
	service *services.SignalsService
	logger  *zap.Logger
}

// NewSignalsHandler creates a new signals handler
func NewSignalsHandler(service *services.SignalsService, logger *zap.Logger) *SignalsHandler {
	return &SignalsHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the signals routes
func (h *SignalsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/signals", h.GetSignals)
}

// GetSignals handles GET /api/v1/signals
func (h *SignalsHandler) GetSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := h.service.GetMarketSignals(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get market signals")
		return
	}

	respondJSON(w, http.StatusOK, signals)
}
