package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
	"github.com/bimakw/stage-rebalancer/internal/domain/repositories"
)

// Ensure PriceRepo implements PriceRepository
var _ repositories.PriceRepository = (*PriceRepo)(nil)

// PriceRepo implements PriceRepository using PostgreSQL
type PriceRepo struct {
	db *sqlx.DB
}

// NewPriceRepo creates a new price repository
func NewPriceRepo(db *sqlx.DB) *PriceRepo {
	return &PriceRepo{db: db}
}

// InsertObservation stores one reading; a repeated (asset, round) is ignored
func (r *PriceRepo) InsertObservation(ctx context.Context, obs *entities.PriceObservation) error {
	query := `
		INSERT INTO price_observations (asset, price_usd, round_id, updated_at, observed_at)
		VALUES (:asset, :price_usd, :round_id, :updated_at, :observed_at)
		ON CONFLICT (asset, round_id) DO NOTHING
	`

	if _, err := r.db.NamedExecContext(ctx, query, obs); err != nil {
		return fmt.Errorf("failed to insert price observation: %w", err)
	}

	return nil
}

// GetLatest returns the newest observation of an asset, or nil
func (r *PriceRepo) GetLatest(ctx context.Context, asset entities.Asset) (*entities.PriceObservation, error) {
	query := `
		SELECT id, asset, price_usd, round_id, updated_at, observed_at
		FROM price_observations
		WHERE asset = $1
		ORDER BY observed_at DESC
		LIMIT 1
	`

	return r.getOne(ctx, query, asset)
}

// GetAt returns the newest observation at or before t, or nil
func (r *PriceRepo) GetAt(ctx context.Context, asset entities.Asset, t time.Time) (*entities.PriceObservation, error) {
	query := `
		SELECT id, asset, price_usd, round_id, updated_at, observed_at
		FROM price_observations
		WHERE asset = $1 AND observed_at <= $2
		ORDER BY observed_at DESC
		LIMIT 1
	`

	return r.getOne(ctx, query, asset, t)
}

func (r *PriceRepo) getOne(ctx context.Context, query string, args ...interface{}) (*entities.PriceObservation, error) {
	var obs entities.PriceObservation
	if err := r.db.GetContext(ctx, &obs, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get price observation: %w", err)
	}
	return &obs, nil
}

// GetDailyCloses returns the last observation of each UTC day in
// [from, to), oldest first
func (r *PriceRepo) GetDailyCloses(ctx context.Context, asset entities.Asset, from, to time.Time) ([]entities.DailyClose, error) {
	query := `
		SELECT DISTINCT ON (day) day, price_usd
		FROM (
			SELECT date_trunc('day', observed_at AT TIME ZONE 'UTC') AS day, price_usd, observed_at
			FROM price_observations
			WHERE asset = $1 AND observed_at >= $2 AND observed_at < $3
		) o
		ORDER BY day ASC, observed_at DESC
	`

	closes := make([]entities.DailyClose, 0)
	if err := r.db.SelectContext(ctx, &closes, query, asset, from, to); err != nil {
		return nil, fmt.Errorf("failed to get daily closes: %w", err)
	}

	return closes, nil
}
