package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
	"github.com/bimakw/stage-rebalancer/internal/domain/repositories"
)

// Ensure AlertRepo implements AlertRepository
var _ repositories.AlertRepository = (*AlertRepo)(nil)

// AlertRepo implements AlertRepository using PostgreSQL
type AlertRepo struct {
	db *sqlx.DB
}

// NewAlertRepo creates a new alert rule repository
func NewAlertRepo(db *sqlx.DB) *AlertRepo {
	return &AlertRepo{db: db}
}

const alertColumns = `id, user_id, type, enabled, chain, symbol, op, threshold, cooldown_minutes, last_triggered_at, created_at`

// CreateRule inserts a rule and fills in its CreatedAt
func (r *AlertRepo) CreateRule(ctx context.Context, rule *entities.AlertRule) error {
	query := `
		INSERT INTO alert_rules (id, user_id, type, enabled, chain, symbol, op, threshold, cooldown_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	var chain, op *string
	if rule.Chain != nil {
		c := string(*rule.Chain)
		chain = &c
	}
	if rule.Op != nil {
		o := string(*rule.Op)
		op = &o
	}

	err := r.db.QueryRowxContext(ctx, query,
		rule.ID, rule.UserID, string(rule.Type), rule.Enabled,
		chain, rule.Symbol, op, rule.Threshold, rule.CooldownMinutes,
	).Scan(&rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create alert rule: %w", err)
	}

	return nil
}

// ListRules returns a user's rules, newest first
func (r *AlertRepo) ListRules(ctx context.Context, userID int64) ([]entities.AlertRule, error) {
	query := `SELECT ` + alertColumns + ` FROM alert_rules WHERE user_id = $1 ORDER BY created_at DESC`

	rules := make([]entities.AlertRule, 0)
	if err := r.db.SelectContext(ctx, &rules, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}

	return rules, nil
}

// ListEnabledRules returns every enabled rule across users
func (r *AlertRepo) ListEnabledRules(ctx context.Context) ([]entities.AlertRule, error) {
	query := `SELECT ` + alertColumns + ` FROM alert_rules WHERE enabled ORDER BY created_at`

	rules := make([]entities.AlertRule, 0)
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("failed to list enabled alert rules: %w", err)
	}

	return rules, nil
}

// DeleteRule reports whether a rule owned by userID was removed
func (r *AlertRepo) DeleteRule(ctx context.Context, userID int64, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete alert rule: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return n > 0, nil
}

// MarkTriggered records when a rule last fired
func (r *AlertRepo) MarkTriggered(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE alert_rules SET last_triggered_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("failed to mark alert rule triggered: %w", err)
	}
	return nil
}
