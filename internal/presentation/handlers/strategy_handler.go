package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/stage-rebalancer/internal/application/services"
	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

// StrategyHandler handles HTTP requests for the rules engine
type StrategyHandler struct {
	service *services.StrategyService
	signals *services.SignalsService
	logger  *zap.Logger
}

// NewStrategyHandler creates a new strategy handler. signals may be nil,
// in which case signal-driven stage decisions report 503.
func NewStrategyHandler(service *services.StrategyService, signals *services.SignalsService, logger *zap.Logger) *StrategyHandler {
	return &StrategyHandler{
		service: service,
		signals: signals,
		logger:  logger,
	}
}

// RegisterRoutes registers the strategy routes
func (h *StrategyHandler) RegisterRoutes(r chi.Router) {
	r.Route("/strategy", func(r chi.Router) {
		r.Get("/targets", h.GetTargets)
		r.Post("/drift", h.ComputeDrift)
		r.Post("/suggest", h.SuggestActions)
		r.Post("/stage", h.DecideStage)
		r.Get("/stage", h.DecideStageFromSignals)
	})
}

// GetTargets handles GET /api/v1/strategy/targets
func (h *StrategyHandler) GetTargets(w http.ResponseWriter, r *http.Request) {
	stage, err := stageParam(r, "stage")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	targets, err := h.service.Targets(stage)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get stage targets")
		return
	}

	respondJSON(w, http.StatusOK, targets)
}

// ComputeDrift handles POST /api/v1/strategy/drift
func (h *StrategyHandler) ComputeDrift(w http.ResponseWriter, r *http.Request) {
	stage, err := stageParam(r, "stage")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot, ok := h.decodeSnapshot(w, r)
	if !ok {
		return
	}

	drift, err := h.service.Drift(snapshot, stage)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to compute drift")
		return
	}

	respondJSON(w, http.StatusOK, drift)
}

// SuggestActions handles POST /api/v1/strategy/suggest
func (h *StrategyHandler) SuggestActions(w http.ResponseWriter, r *http.Request) {
	var opts services.SuggestOptions
	var err error

	if opts.Stage, err = stageParam(r, "stage"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if v := r.URL.Query().Get("trim_threshold_pct"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "trim_threshold_pct must be a number")
			return
		}
		opts.TrimThresholdPct = &threshold
	}
	if v := r.URL.Query().Get("refill_only"); v != "" {
		refillOnly, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "refill_only must be true or false")
			return
		}
		opts.RefillOnly = &refillOnly
	}

	snapshot, ok := h.decodeSnapshot(w, r)
	if !ok {
		return
	}

	actions, err := h.service.Suggest(snapshot, opts)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to suggest actions")
		return
	}

	respondJSON(w, http.StatusOK, actions)
}

// DecideStage handles POST /api/v1/strategy/stage
func (h *StrategyHandler) DecideStage(w http.ResponseWriter, r *http.Request) {
	var req stageSignalsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	in, err := req.toEntity()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := h.service.DecideStage(in)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to decide stage")
		return
	}

	respondJSON(w, http.StatusOK, decision)
}

// stageDecisionResponse is a decision together with the signals it used
type stageDecisionResponse struct {
	entities.StageDecision
	Signals *entities.MarketSignals `json:"signals"`
}

// DecideStageFromSignals handles GET /api/v1/strategy/stage
func (h *StrategyHandler) DecideStageFromSignals(w http.ResponseWriter, r *http.Request) {
	current, err := stageParam(r, "current_stage")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if current == nil {
		respondError(w, http.StatusBadRequest, "current_stage is required")
		return
	}

	if h.signals == nil {
		respondError(w, http.StatusServiceUnavailable, "market signals are not available")
		return
	}

	decision, signals, err := h.signals.DecideStage(r.Context(), *current)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to decide stage from signals")
		return
	}

	respondJSON(w, http.StatusOK, stageDecisionResponse{StageDecision: *decision, Signals: signals})
}

func (h *StrategyHandler) decodeSnapshot(w http.ResponseWriter, r *http.Request) (entities.PortfolioSnapshot, bool) {
	var req snapshotRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return entities.PortfolioSnapshot{}, false
	}

	snapshot, err := req.toEntity()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return entities.PortfolioSnapshot{}, false
	}

	return snapshot, true
}
