package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

func TestMockSnapshotRepository_UpsertUser(t *testing.T) {
	repo := NewMockSnapshotRepository()
	ctx := context.Background()

	first, err := repo.UpsertUser(ctx, AliceEmail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := repo.UpsertUser(ctx, AliceEmail)
	bob, _ := repo.UpsertUser(ctx, BobEmail)

	if first.ID != second.ID {
		t.Errorf("expected same user ID, got %d and %d", first.ID, second.ID)
	}
	if bob.ID == first.ID {
		t.Error("expected distinct IDs for distinct emails")
	}
	if repo.CallCount("UpsertUser") != 3 {
		t.Errorf("expected 3 UpsertUser calls, got %d", repo.CallCount("UpsertUser"))
	}
}

func TestMockSnapshotRepository_LatestAndList(t *testing.T) {
	repo := NewMockSnapshotRepository()
	ctx := context.Background()

	user, _ := repo.UpsertUser(ctx, AliceEmail)
	for stage := entities.Stage(1); stage <= 3; stage++ {
		rec := &entities.SnapshotRecord{ID: uuid.New(), UserID: user.ID, Stage: stage}
		if err := repo.CreateSnapshot(ctx, rec); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	latest, err := repo.GetLatestSnapshot(ctx, user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest == nil || latest.Stage != 3 {
		t.Fatalf("expected latest stage 3, got %+v", latest)
	}

	list, _ := repo.ListSnapshots(ctx, user.ID, 2)
	if len(list) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(list))
	}
	if list[0].Stage != 3 || list[1].Stage != 2 {
		t.Errorf("expected newest first, got %v then %v", list[0].Stage, list[1].Stage)
	}
	if !list[0].CreatedAt.After(list[1].CreatedAt) {
		t.Error("expected strictly increasing creation times")
	}

	none, _ := repo.GetLatestSnapshot(ctx, 999)
	if none != nil {
		t.Error("expected nil for unknown user")
	}
}

func TestMockSnapshotRepository_FuncHook(t *testing.T) {
	repo := NewMockSnapshotRepository()
	repo.FindUserByEmailFunc = func(ctx context.Context, email string) (*entities.User, error) {
		return nil, errors.New("boom")
	}

	if _, err := repo.FindUserByEmail(context.Background(), AliceEmail); err == nil {
		t.Error("expected hook error")
	}
}

func TestMockPriceRepository_DailyCloses(t *testing.T) {
	repo := NewMockPriceRepository()
	now := time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)
	repo.AddObservations(CreatePriceHistory(entities.AssetETH, now, []float64{100, 110, 120}, 130)...)

	today := now.Truncate(24 * time.Hour)
	closes, err := repo.GetDailyCloses(context.Background(), entities.AssetETH, today.AddDate(0, 0, -20), today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(closes) != 3 {
		t.Fatalf("expected 3 closes, got %d", len(closes))
	}
	if closes[0].PriceUSD != 100 || closes[2].PriceUSD != 120 {
		t.Errorf("unexpected closes: %+v", closes)
	}

	latest, _ := repo.GetLatest(context.Background(), entities.AssetETH)
	if latest == nil || latest.PriceUSD != 130 {
		t.Errorf("expected latest 130, got %+v", latest)
	}

	at, _ := repo.GetAt(context.Background(), entities.AssetETH, today.Add(-time.Hour))
	if at == nil || at.PriceUSD != 120 {
		t.Errorf("expected 120 before today, got %+v", at)
	}
}

func TestMockPriceRepository_InsertIgnoresDuplicateRound(t *testing.T) {
	repo := NewMockPriceRepository()
	obs := &entities.PriceObservation{Asset: entities.AssetSOL, PriceUSD: 150, RoundID: "1", ObservedAt: time.Now()}

	_ = repo.InsertObservation(context.Background(), obs)
	_ = repo.InsertObservation(context.Background(), obs)

	if n := len(repo.Observations()); n != 1 {
		t.Errorf("expected 1 observation, got %d", n)
	}
}

func TestMockAlertRepository_DeleteScopedToUser(t *testing.T) {
	repo := NewMockAlertRepository()
	rule := CreateTestAlertRule(RuleWithUser(1))
	repo.AddRules(rule)

	ok, _ := repo.DeleteRule(context.Background(), 2, rule.ID)
	if ok {
		t.Error("expected delete by another user to fail")
	}

	ok, _ = repo.DeleteRule(context.Background(), 1, rule.ID)
	if !ok {
		t.Error("expected delete by owner to succeed")
	}
}

func TestMockAlertRepository_MarkTriggered(t *testing.T) {
	repo := NewMockAlertRepository()
	rule := CreateTestAlertRule()
	repo.AddRules(rule)

	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_ = repo.MarkTriggered(context.Background(), rule.ID, at)

	stored, ok := repo.Rule(rule.ID)
	if !ok || stored.LastTriggeredAt == nil || !stored.LastTriggeredAt.Equal(at) {
		t.Errorf("expected last triggered %v, got %+v", at, stored.LastTriggeredAt)
	}
}

func TestMockHealthChecker(t *testing.T) {
	hc := NewMockHealthChecker(true)
	if err := hc.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy, got %v", err)
	}

	hc.SetHealthy(false)
	if err := hc.HealthCheck(context.Background()); err == nil {
		t.Error("expected error after SetHealthy(false)")
	}
}
