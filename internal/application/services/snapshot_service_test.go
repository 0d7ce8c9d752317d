package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
	"github.com/bimakw/stage-rebalancer/internal/domain/strategy"
	"github.com/bimakw/stage-rebalancer/internal/infrastructure/cache"
	"github.com/bimakw/stage-rebalancer/internal/testutil"
)

func setupSnapshotServiceTest() (*SnapshotService, *testutil.MockSnapshotRepository) {
	repo := testutil.NewMockSnapshotRepository()
	service := NewSnapshotService(repo, nil, time.Minute, zap.NewNop())
	return service, repo
}

func newTestCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisCacheFromClient(client, time.Minute, zap.NewNop()), mr
}

func validSaveInput() SaveSnapshotInput {
	return SaveSnapshotInput{
		Email:        testutil.AliceEmail,
		Stage:        3,
		SnapshotJSON: json.RawMessage(`{"asOf":"2024-06-01T00:00:00Z","holdings":[]}`),
		Suggestions:  json.RawMessage(`[{"chain":"base","type":"NO_ACTION"}]`),
	}
}

func TestSnapshotService_SaveSnapshot_Success(t *testing.T) {
	service, repo := setupSnapshotServiceTest()
	ctx := context.Background()

	summary, err := service.SaveSnapshot(ctx, validSaveInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Stage != 3 {
		t.Errorf("expected stage 3, got %d", summary.Stage)
	}
	if summary.CreatedAt.IsZero() {
		t.Error("expected createdAt to be set")
	}

	latest, err := service.GetLatestSnapshot(ctx, testutil.AliceEmail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest == nil || latest.ID != summary.ID {
		t.Fatalf("expected latest to be the saved snapshot, got %+v", latest)
	}
	if latest.DriftResult != nil {
		t.Errorf("expected nil driftResult, got %s", latest.DriftResult)
	}
	if repo.CallCount("UpsertUser") != 1 {
		t.Errorf("expected 1 UpsertUser call, got %d", repo.CallCount("UpsertUser"))
	}
}

func TestSnapshotService_SaveSnapshot_Validation(t *testing.T) {
	service, repo := setupSnapshotServiceTest()

	tests := []struct {
		name   string
		mutate func(*SaveSnapshotInput)
	}{
		{"missing email", func(in *SaveSnapshotInput) { in.Email = "  " }},
		{"stage zero", func(in *SaveSnapshotInput) { in.Stage = 0 }},
		{"stage six", func(in *SaveSnapshotInput) { in.Stage = 6 }},
		{"missing snapshot", func(in *SaveSnapshotInput) { in.SnapshotJSON = nil }},
		{"snapshot array", func(in *SaveSnapshotInput) { in.SnapshotJSON = json.RawMessage(`[1,2]`) }},
		{"snapshot null", func(in *SaveSnapshotInput) { in.SnapshotJSON = json.RawMessage(`null`) }},
		{"snapshot scalar", func(in *SaveSnapshotInput) { in.SnapshotJSON = json.RawMessage(`"x"`) }},
		{"broken suggestions", func(in *SaveSnapshotInput) { in.Suggestions = json.RawMessage(`{`) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validSaveInput()
			tt.mutate(&in)

			_, err := service.SaveSnapshot(context.Background(), in)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	if repo.CallCount("CreateSnapshot") != 0 {
		t.Errorf("expected no snapshots stored, got %d", repo.CallCount("CreateSnapshot"))
	}
}

func TestSnapshotService_SaveSnapshot_StageErrorChain(t *testing.T) {
	service, _ := setupSnapshotServiceTest()
	in := validSaveInput()
	in.Stage = 9

	_, err := service.SaveSnapshot(context.Background(), in)
	if !errors.Is(err, strategy.ErrInvalidStage) {
		t.Errorf("expected ErrInvalidStage in chain, got %v", err)
	}
}

func TestSnapshotService_SaveSnapshot_RepositoryError(t *testing.T) {
	service, repo := setupSnapshotServiceTest()
	repo.CreateSnapshotFunc = func(ctx context.Context, rec *entities.SnapshotRecord) error {
		return errors.New("database down")
	}

	_, err := service.SaveSnapshot(context.Background(), validSaveInput())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrInvalidInput) {
		t.Error("repository failure must not be reported as invalid input")
	}
}

func TestSnapshotService_GetLatestSnapshot_UnknownUser(t *testing.T) {
	service, _ := setupSnapshotServiceTest()

	latest, err := service.GetLatestSnapshot(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest != nil {
		t.Errorf("expected nil, got %+v", latest)
	}
}

func TestSnapshotService_GetLatestSnapshot_EmailNormalized(t *testing.T) {
	service, _ := setupSnapshotServiceTest()
	ctx := context.Background()

	if _, err := service.SaveSnapshot(ctx, validSaveInput()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	latest, err := service.GetLatestSnapshot(ctx, "  Alice@Example.com ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest == nil {
		t.Fatal("expected snapshot for differently cased email")
	}
}

func TestSnapshotService_GetLatestSnapshot_Cached(t *testing.T) {
	repo := testutil.NewMockSnapshotRepository()
	c, mr := newTestCache(t)
	service := NewSnapshotService(repo, c, time.Minute, zap.NewNop())
	ctx := context.Background()

	first, err := service.SaveSnapshot(ctx, validSaveInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := service.GetLatestSnapshot(ctx, testutil.AliceEmail); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mr.Exists(cache.LatestSnapshotKey(testutil.AliceEmail)) {
		t.Fatal("expected latest snapshot to be cached")
	}

	before := repo.CallCount("GetLatestSnapshot")
	cached, err := service.GetLatestSnapshot(ctx, testutil.AliceEmail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached.ID != first.ID {
		t.Errorf("expected cached ID %s, got %s", first.ID, cached.ID)
	}
	if repo.CallCount("GetLatestSnapshot") != before {
		t.Error("expected cache hit to skip the repository")
	}

	// saving again invalidates the cached entry
	in := validSaveInput()
	in.Stage = 5
	second, err := service.SaveSnapshot(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists(cache.LatestSnapshotKey(testutil.AliceEmail)) {
		t.Fatal("expected cache entry to be invalidated")
	}

	latest, _ := service.GetLatestSnapshot(ctx, testutil.AliceEmail)
	if latest.ID != second.ID || latest.Stage != 5 {
		t.Errorf("expected newest snapshot after invalidation, got %+v", latest)
	}
}

func TestSnapshotService_SaveSnapshot_InvalidatesGlobLikeEmail(t *testing.T) {
	repo := testutil.NewMockSnapshotRepository()
	c, mr := newTestCache(t)
	service := NewSnapshotService(repo, c, time.Minute, zap.NewNop())
	ctx := context.Background()

	const email = "a[1]@example.com"

	in := validSaveInput()
	in.Email = email
	in.Stage = 1
	if _, err := service.SaveSnapshot(ctx, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest, err := service.GetLatestSnapshot(ctx, email); err != nil || latest.Stage != 1 {
		t.Fatalf("expected stage 1, got %+v (err %v)", latest, err)
	}
	if !mr.Exists(cache.LatestSnapshotKey(email)) {
		t.Fatal("expected latest snapshot to be cached")
	}

	in.Stage = 5
	if _, err := service.SaveSnapshot(ctx, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	latest, err := service.GetLatestSnapshot(ctx, email)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest.Stage != 5 {
		t.Errorf("expected stage 5 after invalidation, got %d", latest.Stage)
	}
}

func TestSnapshotService_ListSnapshots_Limits(t *testing.T) {
	service, repo := setupSnapshotServiceTest()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := service.SaveSnapshot(ctx, validSaveInput()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{"zero uses default", 0, DefaultSnapshotListLimit},
		{"negative uses default", -5, DefaultSnapshotListLimit},
		{"within range", 2, 2},
		{"capped", 1000, MaxSnapshotListLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo.Calls = nil
			if _, err := service.ListSnapshots(ctx, testutil.AliceEmail, tt.limit); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var got int
			for _, c := range repo.Calls {
				if c.Method == "ListSnapshots" {
					got = c.Args[1].(int)
				}
			}
			if got != tt.wantLimit {
				t.Errorf("expected repository limit %d, got %d", tt.wantLimit, got)
			}
		})
	}

	list, _ := service.ListSnapshots(ctx, testutil.AliceEmail, 2)
	if len(list) != 2 {
		t.Errorf("expected 2 summaries, got %d", len(list))
	}
}

func TestSnapshotService_ListSnapshots_UnknownUser(t *testing.T) {
	service, _ := setupSnapshotServiceTest()

	list, err := service.ListSnapshots(context.Background(), "nobody@example.com", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil list, got %v", list)
	}
}
