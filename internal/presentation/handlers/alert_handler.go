package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bimakw/stage-rebalancer/internal/application/services"
	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

// AlertHandler handles HTTP requests for alert rules
type AlertHandler struct {
	service *services.AlertService
	logger  *zap.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(service *services.AlertService, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the alert routes
func (h *AlertHandler) RegisterRoutes(r chi.Router) {
	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Delete("/{id}", h.Delete)
	})
}

// List handles GET /api/v1/alerts
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	rules, err := h.service.ListRules(r.Context(), email)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list alert rules")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "alerts": rules})
}

// Create handles POST /api/v1/alerts
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := services.CreateAlertInput{
		Email:           req.Email,
		Type:            entities.AlertType(req.Type),
		Enabled:         req.Enabled,
		Symbol:          req.Symbol,
		Threshold:       req.Threshold,
		CooldownMinutes: req.CooldownMinutes,
	}
	if req.Chain != nil {
		chain := entities.Chain(*req.Chain)
		in.Chain = &chain
	}
	if req.Op != nil {
		op := entities.AlertOp(*req.Op)
		in.Op = &op
	}

	rule, err := h.service.CreateRule(r.Context(), in)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to create alert rule")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "alert": rule})
}

// Delete handles DELETE /api/v1/alerts/{id}
func (h *AlertHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid alert id")
		return
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	deleted, err := h.service.DeleteRule(r.Context(), email, id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to delete alert rule")
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "alert rule not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
