package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

// AlertRepository defines interface for alert rule persistence
type AlertRepository interface {
	CreateRule(ctx context.Context, rule *entities.AlertRule) error

	// ListRules returns a user's rules, newest first
	ListRules(ctx context.Context, userID int64) ([]entities.AlertRule, error)

	// ListEnabledRules returns every enabled rule across users
	ListEnabledRules(ctx context.Context) ([]entities.AlertRule, error)

	// DeleteRule reports whether a rule owned by userID was removed
	DeleteRule(ctx context.Context, userID int64, id uuid.UUID) (bool, error)

	MarkTriggered(ctx context.Context, id uuid.UUID, at time.Time) error
}
