package repositories

import (
	"context"
	"time"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

// PriceRepository defines interface for oracle price history
type PriceRepository interface {
	// InsertObservation stores one reading; a repeated (asset, round) is ignored
	InsertObservation(ctx context.Context, obs *entities.PriceObservation) error

	// GetLatest returns the newest observation of an asset, or nil
	GetLatest(ctx context.Context, asset entities.Asset) (*entities.PriceObservation, error)

	// GetAt returns the newest observation at or before t, or nil
	GetAt(ctx context.Context, asset entities.Asset, t time.Time) (*entities.PriceObservation, error)

	// GetDailyCloses returns the last observation of each UTC day in
	// [from, to), oldest first
	GetDailyCloses(ctx context.Context, asset entities.Asset, from, to time.Time) ([]entities.DailyClose, error)
}
