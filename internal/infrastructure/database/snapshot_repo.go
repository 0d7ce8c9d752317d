package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
	"github.com/bimakw/stage-rebalancer/internal/domain/repositories"
)

// Ensure SnapshotRepo implements SnapshotRepository
var _ repositories.SnapshotRepository = (*SnapshotRepo)(nil)

// SnapshotRepo implements SnapshotRepository using PostgreSQL
type SnapshotRepo struct {
	db *sqlx.DB
}

// NewSnapshotRepo creates a new snapshot repository
func NewSnapshotRepo(db *sqlx.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// UpsertUser returns the user with the given email, creating it if needed
func (r *SnapshotRepo) UpsertUser(ctx context.Context, email string) (*entities.User, error) {
	// The no-op update makes RETURNING yield the existing row on conflict
	query := `
		INSERT INTO users (email)
		VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, created_at
	`

	var user entities.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return &user, nil
}

// FindUserByEmail returns nil, nil when no user has the email
func (r *SnapshotRepo) FindUserByEmail(ctx context.Context, email string) (*entities.User, error) {
	query := `SELECT id, email, created_at FROM users WHERE email = $1`

	var user entities.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return &user, nil
}

// CreateSnapshot inserts a record and fills in its CreatedAt
func (r *SnapshotRepo) CreateSnapshot(ctx context.Context, record *entities.SnapshotRecord) error {
	query := `
		INSERT INTO snapshots (id, user_id, stage, snapshot_json, drift_result, suggestions)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	var createdAt time.Time
	err := r.db.QueryRowxContext(ctx, query,
		record.ID,
		record.UserID,
		int(record.Stage),
		string(record.SnapshotJSON),
		nullableJSON(record.DriftResult),
		nullableJSON(record.Suggestions),
	).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	record.CreatedAt = createdAt
	return nil
}

// snapshotRow holds a full snapshots row
type snapshotRow struct {
	ID           uuid.UUID `db:"id"`
	UserID       int64     `db:"user_id"`
	Stage        int       `db:"stage"`
	SnapshotJSON []byte    `db:"snapshot_json"`
	DriftResult  []byte    `db:"drift_result"`
	Suggestions  []byte    `db:"suggestions"`
	CreatedAt    time.Time `db:"created_at"`
}

// GetLatestSnapshot returns the newest record of a user, or nil
func (r *SnapshotRepo) GetLatestSnapshot(ctx context.Context, userID int64) (*entities.SnapshotRecord, error) {
	query := `
		SELECT id, user_id, stage, snapshot_json, drift_result, suggestions, created_at
		FROM snapshots
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var row snapshotRow
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	return &entities.SnapshotRecord{
		ID:           row.ID,
		UserID:       row.UserID,
		Stage:        entities.Stage(row.Stage),
		SnapshotJSON: json.RawMessage(row.SnapshotJSON),
		DriftResult:  rawOrNil(row.DriftResult),
		Suggestions:  rawOrNil(row.Suggestions),
		CreatedAt:    row.CreatedAt,
	}, nil
}

// ListSnapshots returns up to limit summaries, newest first
func (r *SnapshotRepo) ListSnapshots(ctx context.Context, userID int64, limit int) ([]entities.SnapshotSummary, error) {
	query := `
		SELECT id, created_at, stage
		FROM snapshots
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	summaries := make([]entities.SnapshotSummary, 0)
	if err := r.db.SelectContext(ctx, &summaries, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	return summaries, nil
}

// nullableJSON maps an absent document to SQL NULL
func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return string(raw)
}

func rawOrNil(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}
