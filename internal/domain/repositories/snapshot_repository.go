package repositories

import (
	"context"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

// SnapshotRepository defines interface for user and snapshot persistence
type SnapshotRepository interface {
	// UpsertUser returns the user with the given email, creating it if needed
	UpsertUser(ctx context.Context, email string) (*entities.User, error)

	// FindUserByEmail returns nil, nil when no user has the email
	FindUserByEmail(ctx context.Context, email string) (*entities.User, error)

	// CreateSnapshot inserts a record and fills in its CreatedAt
	CreateSnapshot(ctx context.Context, record *entities.SnapshotRecord) error

	// GetLatestSnapshot returns the newest record of a user, or nil
	GetLatestSnapshot(ctx context.Context, userID int64) (*entities.SnapshotRecord, error)

	// ListSnapshots returns up to limit summaries, newest first
	ListSnapshots(ctx context.Context, userID int64, limit int) ([]entities.SnapshotSummary, error)
}
