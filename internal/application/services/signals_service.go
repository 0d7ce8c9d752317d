package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
	"github.com/bimakw/stage-rebalancer/internal/domain/repositories"
	"github.com/bimakw/stage-rebalancer/internal/domain/strategy"
	"github.com/bimakw/stage-rebalancer/internal/infrastructure/cache"
)

const (
	// BandDays is the number of daily closes the 20D high and low span
	BandDays = 20

	// bandLookbackDays bounds the history scanned for BandDays closes,
	// leaving room for days the oracle missed
	bandLookbackDays = 40
)

// SignalsService derives market signals from stored oracle prices
type SignalsService struct {
	priceRepo repositories.PriceRepository
	cache     *cache.RedisCache
	cacheTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewSignalsService creates a new signals service. cache may be nil.
func NewSignalsService(
	priceRepo repositories.PriceRepository,
	cache *cache.RedisCache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *SignalsService {
	return &SignalsService{
		priceRepo: priceRepo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// GetMarketSignals returns the latest close, 20D band and 24h change of
// each reference asset
func (s *SignalsService) GetMarketSignals(ctx context.Context) (*entities.MarketSignals, error) {
	return cache.Fetch(ctx, s.cache, cache.SignalsKey, s.cacheTTL, s.ComputeMarketSignals)
}

// ComputeMarketSignals builds signals from the repository, bypassing the
// cache
func (s *SignalsService) ComputeMarketSignals(ctx context.Context) (*entities.MarketSignals, error) {
	now := s.now().UTC()

	eth, err := s.assetSignals(ctx, entities.AssetETH, now)
	if err != nil {
		return nil, err
	}
	sol, err := s.assetSignals(ctx, entities.AssetSOL, now)
	if err != nil {
		return nil, err
	}

	return &entities.MarketSignals{
		AsOf:         now,
		ETH:          eth,
		SOL:          sol,
		PctChange24h: math.Min(eth.PctChange24h, sol.PctChange24h),
	}, nil
}

func (s *SignalsService) assetSignals(ctx context.Context, asset entities.Asset, now time.Time) (entities.AssetSignals, error) {
	latest, err := s.priceRepo.GetLatest(ctx, asset)
	if err != nil {
		return entities.AssetSignals{}, fmt.Errorf("failed to get latest %s price: %w", asset, err)
	}
	if latest == nil {
		return entities.AssetSignals{}, fmt.Errorf("%w: no %s observations", ErrInsufficientData, asset)
	}

	today := now.Truncate(24 * time.Hour)
	closes, err := s.priceRepo.GetDailyCloses(ctx, asset, today.AddDate(0, 0, -bandLookbackDays), today)
	if err != nil {
		return entities.AssetSignals{}, fmt.Errorf("failed to get %s daily closes: %w", asset, err)
	}
	if len(closes) < BandDays {
		return entities.AssetSignals{}, fmt.Errorf("%w: %d of %d %s daily closes", ErrInsufficientData, len(closes), BandDays, asset)
	}
	high, low := band(closes[len(closes)-BandDays:])

	prev, err := s.priceRepo.GetAt(ctx, asset, latest.ObservedAt.Add(-24*time.Hour))
	if err != nil {
		return entities.AssetSignals{}, fmt.Errorf("failed to get %s price 24h ago: %w", asset, err)
	}
	if prev == nil || prev.PriceUSD <= 0 {
		return entities.AssetSignals{}, fmt.Errorf("%w: no %s price 24h before latest", ErrInsufficientData, asset)
	}

	return entities.AssetSignals{
		Close:        latest.PriceUSD,
		High20d:      high,
		Low20d:       low,
		PctChange24h: (latest.PriceUSD - prev.PriceUSD) / prev.PriceUSD * 100,
	}, nil
}

func band(closes []entities.DailyClose) (high, low float64) {
	high, low = math.Inf(-1), math.Inf(1)
	for _, c := range closes {
		high = math.Max(high, c.PriceUSD)
		low = math.Min(low, c.PriceUSD)
	}
	return high, low
}

// DecideStage applies the stage rules to the current market signals
func (s *SignalsService) DecideStage(ctx context.Context, current entities.Stage) (*entities.StageDecision, *entities.MarketSignals, error) {
	if err := strategy.ValidateStage(current); err != nil {
		return nil, nil, invalidInput(err)
	}

	signals, err := s.GetMarketSignals(ctx)
	if err != nil {
		return nil, nil, err
	}

	decision, err := strategy.DecideNextStage(signals.StageInputs(current))
	if err != nil {
		return nil, nil, invalidInput(err)
	}
	recordDecision(decision)

	s.logger.Info("Stage decision",
		zap.Int("current_stage", int(current)),
		zap.Int("next_stage", int(decision.NextStage)),
		zap.String("rule", string(decision.AppliedRule)),
	)

	return &decision, signals, nil
}

// InvalidateCache drops cached signals after new observations land
func (s *SignalsService) InvalidateCache(ctx context.Context) {
	if err := s.cache.Delete(ctx, cache.SignalsKey); err != nil {
		s.logger.Warn("Failed to invalidate signals cache", zap.Error(err))
	}
}
