package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
	"github.com/bimakw/stage-rebalancer/internal/domain/repositories"
	"github.com/bimakw/stage-rebalancer/internal/domain/strategy"
)

// AlertService manages users' alert rules and evaluates them
type AlertService struct {
	users  repositories.SnapshotRepository
	alerts repositories.AlertRepository
	logger *zap.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(
	users repositories.SnapshotRepository,
	alerts repositories.AlertRepository,
	logger *zap.Logger,
) *AlertService {
	return &AlertService{
		users:  users,
		alerts: alerts,
		logger: logger,
	}
}

// CreateAlertInput is a new rule for a user. Enabled defaults to true.
type CreateAlertInput struct {
	Email           string
	Type            entities.AlertType
	Enabled         *bool
	Chain           *entities.Chain
	Symbol          *string
	Op              *entities.AlertOp
	Threshold       *float64
	CooldownMinutes *int
}

// CreateRule validates and stores a rule
func (s *AlertService) CreateRule(ctx context.Context, in CreateAlertInput) (*entities.AlertRule, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	rule := &entities.AlertRule{
		ID:              uuid.New(),
		Type:            in.Type,
		Enabled:         true,
		Chain:           in.Chain,
		Symbol:          in.Symbol,
		Op:              in.Op,
		Threshold:       in.Threshold,
		CooldownMinutes: in.CooldownMinutes,
	}
	if in.Enabled != nil {
		rule.Enabled = *in.Enabled
	}

	if err := strategy.ValidateAlertRule(*rule); err != nil {
		return nil, invalidInput(err)
	}

	user, err := s.users.UpsertUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	rule.UserID = user.ID

	if err := s.alerts.CreateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create alert rule: %w", err)
	}

	s.logger.Info("Created alert rule",
		zap.String("id", rule.ID.String()),
		zap.String("type", string(rule.Type)),
		zap.Int64("user_id", user.ID),
	)

	return rule, nil
}

// ListRules returns a user's rules; an unknown user has none
func (s *AlertService) ListRules(ctx context.Context, email string) ([]entities.AlertRule, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return []entities.AlertRule{}, nil
	}

	rules, err := s.alerts.ListRules(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}
	return rules, nil
}

// DeleteRule removes a rule owned by the user and reports whether it existed
func (s *AlertService) DeleteRule(ctx context.Context, email string, id uuid.UUID) (bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return false, nil
	}

	deleted, err := s.alerts.DeleteRule(ctx, user.ID, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete alert rule: %w", err)
	}
	return deleted, nil
}

// EvaluateAll checks every enabled rule against signals and records the
// ones that fire. A failure to mark one rule does not stop the others.
func (s *AlertService) EvaluateAll(ctx context.Context, signals entities.MarketSignals, now time.Time) ([]entities.AlertTrigger, error) {
	rules, err := s.alerts.ListEnabledRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled alert rules: %w", err)
	}

	triggers := make([]entities.AlertTrigger, 0)
	for _, rule := range rules {
		trigger, fired := strategy.EvaluateAlert(rule, signals, now)
		if !fired {
			continue
		}

		if err := s.alerts.MarkTriggered(ctx, rule.ID, now); err != nil {
			s.logger.Error("Failed to mark alert triggered",
				zap.String("rule_id", rule.ID.String()),
				zap.Error(err),
			)
			continue
		}

		alertsTriggeredTotal.WithLabelValues(string(rule.Type)).Inc()
		s.logger.Info("Alert triggered",
			zap.String("rule_id", rule.ID.String()),
			zap.Int64("user_id", rule.UserID),
			zap.String("type", string(rule.Type)),
			zap.String("message", trigger.Message),
		)
		triggers = append(triggers, trigger)
	}

	return triggers, nil
}
