package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/stage-rebalancer/internal/application/services"
	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

// SnapshotHandler handles HTTP requests for saved snapshots
type SnapshotHandler struct {
	service *services.SnapshotService
	logger  *zap.Logger
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(service *services.SnapshotService, logger *zap.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the snapshot routes
func (h *SnapshotHandler) RegisterRoutes(r chi.Router) {
	r.Route("/snapshots", func(r chi.Router) {
		r.Post("/", h.Save)
		r.Get("/", h.List)
		r.Get("/latest", h.Latest)
	})
}

type snapshotSummaryResponse struct {
	OK       bool                      `json:"ok"`
	Snapshot *entities.SnapshotSummary `json:"snapshot"`
}

type snapshotRecordResponse struct {
	OK       bool                     `json:"ok"`
	Snapshot *entities.SnapshotRecord `json:"snapshot"`
}

type snapshotListResponse struct {
	OK        bool                       `json:"ok"`
	Snapshots []entities.SnapshotSummary `json:"snapshots"`
}

// Save handles POST /api/v1/snapshots
func (h *SnapshotHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveSnapshotRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.service.SaveSnapshot(r.Context(), services.SaveSnapshotInput{
		Email:        req.Email,
		Stage:        req.Stage.Value,
		SnapshotJSON: req.SnapshotJSON,
		DriftResult:  req.DriftResult,
		Suggestions:  req.Suggestions,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to save snapshot")
		return
	}

	respondJSON(w, http.StatusCreated, snapshotSummaryResponse{OK: true, Snapshot: summary})
}

// Latest handles GET /api/v1/snapshots/latest
func (h *SnapshotHandler) Latest(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	record, err := h.service.GetLatestSnapshot(r.Context(), email)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get latest snapshot")
		return
	}

	respondJSON(w, http.StatusOK, snapshotRecordResponse{OK: true, Snapshot: record})
}

// List handles GET /api/v1/snapshots
func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = l
	}

	summaries, err := h.service.ListSnapshots(r.Context(), email, limit)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list snapshots")
		return
	}

	respondJSON(w, http.StatusOK, snapshotListResponse{OK: true, Snapshots: summaries})
}
