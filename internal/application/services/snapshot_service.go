package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
	"github.com/bimakw/stage-rebalancer/internal/domain/repositories"
	"github.com/bimakw/stage-rebalancer/internal/domain/strategy"
	"github.com/bimakw/stage-rebalancer/internal/infrastructure/cache"
)

const (
	DefaultSnapshotListLimit = 20
	MaxSnapshotListLimit     = 100
)

// SnapshotService stores and retrieves users' saved snapshots
type SnapshotService struct {
	repo     repositories.SnapshotRepository
	cache    *cache.RedisCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewSnapshotService creates a new snapshot service. cache may be nil.
func NewSnapshotService(
	repo repositories.SnapshotRepository,
	cache *cache.RedisCache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *SnapshotService {
	return &SnapshotService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// SaveSnapshotInput is a snapshot to persist for a user
type SaveSnapshotInput struct {
	Email        string
	Stage        entities.Stage
	SnapshotJSON json.RawMessage
	DriftResult  json.RawMessage
	Suggestions  json.RawMessage
}

// SaveSnapshot validates and stores a snapshot, returning its summary
func (s *SnapshotService) SaveSnapshot(ctx context.Context, in SaveSnapshotInput) (*entities.SnapshotSummary, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if err := strategy.ValidateStage(in.Stage); err != nil {
		return nil, invalidInput(err)
	}
	if !isJSONObject(in.SnapshotJSON) {
		return nil, fmt.Errorf("%w: snapshotJson must be an object", ErrInvalidInput)
	}
	for name, raw := range map[string]json.RawMessage{"driftResult": in.DriftResult, "suggestions": in.Suggestions} {
		if len(raw) > 0 && !json.Valid(raw) {
			return nil, fmt.Errorf("%w: %s is not valid JSON", ErrInvalidInput, name)
		}
	}

	user, err := s.repo.UpsertUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	record := &entities.SnapshotRecord{
		ID:           uuid.New(),
		UserID:       user.ID,
		Stage:        in.Stage,
		SnapshotJSON: in.SnapshotJSON,
		DriftResult:  nullIfEmpty(in.DriftResult),
		Suggestions:  nullIfEmpty(in.Suggestions),
	}
	if err := s.repo.CreateSnapshot(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}

	if err := s.cache.Delete(ctx, cache.LatestSnapshotKey(email)); err != nil {
		s.logger.Warn("Failed to invalidate snapshot cache", zap.String("email", email), zap.Error(err))
	}

	s.logger.Info("Saved snapshot",
		zap.String("id", record.ID.String()),
		zap.Int64("user_id", user.ID),
		zap.Int("stage", int(record.Stage)),
	)

	summary := record.Summary()
	return &summary, nil
}

// GetLatestSnapshot returns a user's newest snapshot, or nil when the user
// or their history does not exist
func (s *SnapshotService) GetLatestSnapshot(ctx context.Context, email string) (*entities.SnapshotRecord, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	return cache.Fetch(ctx, s.cache, cache.LatestSnapshotKey(email), s.cacheTTL,
		func(ctx context.Context) (*entities.SnapshotRecord, error) {
			user, err := s.repo.FindUserByEmail(ctx, email)
			if err != nil {
				return nil, fmt.Errorf("failed to find user: %w", err)
			}
			if user == nil {
				return nil, nil
			}

			record, err := s.repo.GetLatestSnapshot(ctx, user.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
			}
			return record, nil
		})
}

// ListSnapshots returns up to limit summaries, newest first. A
// non-positive limit uses the default; larger limits are capped.
func (s *SnapshotService) ListSnapshots(ctx context.Context, email string, limit int) ([]entities.SnapshotSummary, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	if limit <= 0 {
		limit = DefaultSnapshotListLimit
	}
	if limit > MaxSnapshotListLimit {
		limit = MaxSnapshotListLimit
	}

	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return []entities.SnapshotSummary{}, nil
	}

	summaries, err := s.repo.ListSnapshots(ctx, user.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	return summaries, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}

func nullIfEmpty(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}
