package services

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bimakw/stage-rebalancer/internal/config"
	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
	"github.com/bimakw/stage-rebalancer/internal/domain/strategy"
)

// StrategyService applies the rules engine with configured defaults
type StrategyService struct {
	config  config.StrategyConfig
	stables strategy.StableSet
	logger  *zap.Logger
}

// NewStrategyService creates a new strategy service
func NewStrategyService(cfg config.StrategyConfig, logger *zap.Logger) *StrategyService {
	return &StrategyService{
		config:  cfg,
		stables: strategy.NewStableSet(cfg.StableSymbols...),
		logger:  logger,
	}
}

// SuggestOptions overrides the configured suggestion defaults; nil fields
// fall back to config
type SuggestOptions struct {
	Stage            *entities.Stage
	TrimThresholdPct *float64
	RefillOnly       *bool
}

// DefaultStage returns the configured stage
func (s *StrategyService) DefaultStage() entities.Stage {
	return entities.Stage(s.config.DefaultStage)
}

// Targets returns the allocation targets of stage, or of the default
// stage when nil
func (s *StrategyService) Targets(stage *entities.Stage) (entities.StageTargets, error) {
	targets, err := strategy.GetStageTargets(s.stageOrDefault(stage))
	if err != nil {
		return entities.StageTargets{}, invalidInput(err)
	}
	return targets, nil
}

// Drift computes per-chain drift of a snapshot against a stage
func (s *StrategyService) Drift(snapshot entities.PortfolioSnapshot, stage *entities.Stage) ([]entities.Drift, error) {
	if err := snapshot.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	drift, err := strategy.ComputeDrift(snapshot, s.stageOrDefault(stage), s.stables)
	if err != nil {
		return nil, invalidInput(err)
	}
	return drift, nil
}

// Suggest proposes one rebalance action per chain
func (s *StrategyService) Suggest(snapshot entities.PortfolioSnapshot, opts SuggestOptions) ([]entities.SuggestedAction, error) {
	if err := snapshot.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	in := strategy.SuggestionInputs{
		Stage:            s.stageOrDefault(opts.Stage),
		TrimThresholdPct: s.config.TrimThresholdPct,
		RefillOnly:       s.config.RefillOnly,
		Stables:          s.stables,
	}
	if opts.TrimThresholdPct != nil {
		in.TrimThresholdPct = *opts.TrimThresholdPct
	}
	if opts.RefillOnly != nil {
		in.RefillOnly = *opts.RefillOnly
	}

	actions, err := strategy.SuggestRebalanceActions(snapshot, in)
	if err != nil {
		return nil, invalidInput(err)
	}

	for _, a := range actions {
		suggestedActionsTotal.WithLabelValues(string(a.Chain), string(a.Type)).Inc()
	}

	s.logger.Debug("Suggested rebalance actions",
		zap.Int("stage", int(in.Stage)),
		zap.Float64("trim_threshold_pct", in.TrimThresholdPct),
		zap.Int("actions", len(actions)),
	)

	return actions, nil
}

// DecideStage evaluates the stage rules against caller-supplied signals
func (s *StrategyService) DecideStage(in entities.StageSignalInputs) (entities.StageDecision, error) {
	decision, err := strategy.DecideNextStage(in)
	if err != nil {
		return entities.StageDecision{}, invalidInput(err)
	}
	recordDecision(decision)
	return decision, nil
}

func (s *StrategyService) stageOrDefault(stage *entities.Stage) entities.Stage {
	if stage != nil {
		return *stage
	}
	return s.DefaultStage()
}

func recordDecision(d entities.StageDecision) {
	stageDecisionsTotal.WithLabelValues(string(d.AppliedRule)).Inc()
}

// invalidInput tags err as caller error while keeping its own chain
func invalidInput(err error) error {
	if errors.Is(err, ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}
