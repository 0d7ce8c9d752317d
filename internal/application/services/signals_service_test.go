package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
	"github.com/bimakw/stage-rebalancer/internal/testutil"
)

var signalsNow = time.Date(2024, 6, 21, 15, 0, 0, 0, time.UTC)

func setupSignalsServiceTest() (*SignalsService, *testutil.MockPriceRepository) {
	repo := testutil.NewMockPriceRepository()
	service := NewSignalsService(repo, nil, time.Minute, zap.NewNop())
	service.now = func() time.Time { return signalsNow }
	return service, repo
}

// seedHistory stores 20 daily ETH closes at 100 with a 120 spike and an
// 80 dip, and 20 flat SOL closes at 50
func seedHistory(repo *testutil.MockPriceRepository, ethNow, solNow float64) {
	eth := testutil.FlatCloses(BandDays, 100)
	eth[5] = 120
	eth[10] = 80
	repo.AddObservations(testutil.CreatePriceHistory(entities.AssetETH, signalsNow, eth, ethNow)...)
	repo.AddObservations(testutil.CreatePriceHistory(entities.AssetSOL, signalsNow, testutil.FlatCloses(BandDays, 50), solNow)...)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSignalsService_GetMarketSignals(t *testing.T) {
	service, repo := setupSignalsServiceTest()
	seedHistory(repo, 110, 45)

	signals, err := service.GetMarketSignals(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if signals.ETH.Close != 110 || signals.ETH.High20d != 120 || signals.ETH.Low20d != 80 {
		t.Errorf("unexpected ETH signals: %+v", signals.ETH)
	}
	if signals.SOL.High20d != 50 || signals.SOL.Low20d != 50 {
		t.Errorf("unexpected SOL band: %+v", signals.SOL)
	}
	if !approx(signals.ETH.PctChange24h, 10) {
		t.Errorf("expected ETH +10%%, got %v", signals.ETH.PctChange24h)
	}
	if !approx(signals.SOL.PctChange24h, -10) {
		t.Errorf("expected SOL -10%%, got %v", signals.SOL.PctChange24h)
	}
	if !approx(signals.PctChange24h, -10) {
		t.Errorf("expected worst change -10%%, got %v", signals.PctChange24h)
	}
	if !signals.AsOf.Equal(signalsNow) {
		t.Errorf("expected asOf %v, got %v", signalsNow, signals.AsOf)
	}
}

func TestSignalsService_BandUsesOnlyLastTwentyCloses(t *testing.T) {
	service, repo := setupSignalsServiceTest()

	eth := append([]float64{1000, 1000, 1000, 1000, 1000}, testutil.FlatCloses(BandDays, 100)...)
	repo.AddObservations(testutil.CreatePriceHistory(entities.AssetETH, signalsNow, eth, 100)...)
	repo.AddObservations(testutil.CreatePriceHistory(entities.AssetSOL, signalsNow, testutil.FlatCloses(BandDays, 50), 50)...)

	signals, err := service.GetMarketSignals(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signals.ETH.High20d != 100 {
		t.Errorf("expected closes older than 20 days to be ignored, got high %v", signals.ETH.High20d)
	}
}

func TestSignalsService_TodayExcludedFromBand(t *testing.T) {
	service, repo := setupSignalsServiceTest()
	seedHistory(repo, 500, 50)

	signals, err := service.GetMarketSignals(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signals.ETH.High20d != 120 {
		t.Errorf("expected today's price to stay out of the band, got high %v", signals.ETH.High20d)
	}
}

func TestSignalsService_InsufficientData(t *testing.T) {
	tests := []struct {
		name string
		seed func(repo *testutil.MockPriceRepository)
	}{
		{"no observations", func(repo *testutil.MockPriceRepository) {}},
		{"short ETH history", func(repo *testutil.MockPriceRepository) {
			repo.AddObservations(testutil.CreatePriceHistory(entities.AssetETH, signalsNow, testutil.FlatCloses(5, 100), 100)...)
			repo.AddObservations(testutil.CreatePriceHistory(entities.AssetSOL, signalsNow, testutil.FlatCloses(BandDays, 50), 50)...)
		}},
		{"SOL missing", func(repo *testutil.MockPriceRepository) {
			repo.AddObservations(testutil.CreatePriceHistory(entities.AssetETH, signalsNow, testutil.FlatCloses(BandDays, 100), 100)...)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, repo := setupSignalsServiceTest()
			tt.seed(repo)

			_, err := service.GetMarketSignals(context.Background())
			if !errors.Is(err, ErrInsufficientData) {
				t.Errorf("expected ErrInsufficientData, got %v", err)
			}
		})
	}
}

func TestSignalsService_RepositoryError(t *testing.T) {
	service, repo := setupSignalsServiceTest()
	repo.GetLatestFunc = func(ctx context.Context, asset entities.Asset) (*entities.PriceObservation, error) {
		return nil, errors.New("database down")
	}

	_, err := service.GetMarketSignals(context.Background())
	if err == nil || errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected a plain repository error, got %v", err)
	}
}

func TestSignalsService_DecideStage_Upgrade(t *testing.T) {
	service, repo := setupSignalsServiceTest()
	seedHistory(repo, 130, 60)

	decision, signals, err := service.DecideStage(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.NextStage != 4 || decision.AppliedRule != entities.RuleUpgradeConfirmation {
		t.Errorf("expected upgrade to 4, got %+v", decision)
	}
	if signals == nil || signals.ETH.Close != 130 {
		t.Errorf("expected signals to be returned, got %+v", signals)
	}
}

func TestSignalsService_DecideStage_InvalidStage(t *testing.T) {
	service, repo := setupSignalsServiceTest()

	_, _, err := service.DecideStage(context.Background(), 0)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if len(repo.Calls) != 0 {
		t.Errorf("expected no repository calls, got %d", len(repo.Calls))
	}
}

func TestSignalsService_Cache(t *testing.T) {
	repo := testutil.NewMockPriceRepository()
	c, _ := newTestCache(t)
	service := NewSignalsService(repo, c, time.Minute, zap.NewNop())
	service.now = func() time.Time { return signalsNow }
	seedHistory(repo, 110, 45)
	ctx := context.Background()

	if _, err := service.GetMarketSignals(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := len(repo.Calls)

	if _, err := service.GetMarketSignals(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.Calls) != calls {
		t.Error("expected second read to be served from cache")
	}

	service.InvalidateCache(ctx)
	if _, err := service.GetMarketSignals(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.Calls) == calls {
		t.Error("expected read after invalidation to hit the repository")
	}
}
