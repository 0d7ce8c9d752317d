package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimakw/stage-rebalancer/internal/config"
	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
	"github.com/bimakw/stage-rebalancer/internal/domain/repositories"
	"github.com/bimakw/stage-rebalancer/internal/infrastructure/ethereum"
)

// PriceSource yields the current USD price of one asset
type PriceSource interface {
	LatestPrice(ctx context.Context) (*ethereum.PriceReading, error)
}

// OracleService polls price feeds, stores observations and evaluates
// alert rules against the refreshed signals
type OracleService struct {
	feeds     map[entities.Asset]PriceSource
	priceRepo repositories.PriceRepository
	signals   *SignalsService
	alerts    *AlertService
	config    config.OracleConfig
	logger    *zap.Logger
	metrics   *OracleMetrics
	status    *OracleStatus
	now       func() time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// OracleStatus tracks oracle progress
type OracleStatus struct {
	mu            sync.RWMutex
	Observations  int64
	LastPollTime  time.Time
	PollLatencyMs int64
	ErrorCount    int64
	LastTriggered int
}

// NewOracleService creates a new oracle service. alerts may be nil.
func NewOracleService(
	feeds map[entities.Asset]PriceSource,
	priceRepo repositories.PriceRepository,
	signals *SignalsService,
	alerts *AlertService,
	cfg config.OracleConfig,
	metrics *OracleMetrics,
	logger *zap.Logger,
) *OracleService {
	return &OracleService{
		feeds:     feeds,
		priceRepo: priceRepo,
		signals:   signals,
		alerts:    alerts,
		config:    cfg,
		logger:    logger,
		metrics:   metrics,
		status:    &OracleStatus{},
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start begins polling in the background
func (s *OracleService) Start(ctx context.Context) error {
	if len(s.feeds) == 0 {
		return errors.New("no price feeds configured")
	}

	s.logger.Info("Starting oracle service",
		zap.Int("feeds", len(s.feeds)),
		zap.Duration("poll_interval", s.config.PollInterval),
	)

	s.wg.Add(1)
	go s.runPollingLoop(ctx)

	return nil
}

// Stop gracefully stops the poller
func (s *OracleService) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping oracle service")
		close(s.stopCh)
	})
	s.wg.Wait()
}

// GetStatus returns a copy of the current progress counters
func (s *OracleService) GetStatus() OracleStatus {
	s.status.mu.RLock()
	defer s.status.mu.RUnlock()
	return OracleStatus{
		Observations:  s.status.Observations,
		LastPollTime:  s.status.LastPollTime,
		PollLatencyMs: s.status.PollLatencyMs,
		ErrorCount:    s.status.ErrorCount,
		LastTriggered: s.status.LastTriggered,
	}
}

func (s *OracleService) runPollingLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	// Run immediately on start
	s.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *OracleService) poll(ctx context.Context) {
	if err := s.PollOnce(ctx); err != nil {
		s.logger.Error("Oracle poll failed", zap.Error(err))
	}
}

// PollOnce reads every feed concurrently, stores the readings, then
// evaluates alerts. Feeds that fail are counted and reported but do not
// prevent the others from being stored.
func (s *OracleService) PollOnce(ctx context.Context) error {
	startTime := time.Now()
	observedAt := s.now().UTC()

	assets := make([]entities.Asset, 0, len(s.feeds))
	for asset := range s.feeds {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })

	var g errgroup.Group
	g.SetLimit(s.config.WorkerCount)

	// one slot per asset so a failing feed never hides another
	errs := make([]error, len(assets))
	for i, asset := range assets {
		i, asset := i, asset
		feed := s.feeds[asset]
		g.Go(func() error {
			errs[i] = s.observe(ctx, asset, feed, observedAt)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			s.incrementErrorCount()
			s.logger.Warn("Price observation failed", zap.Error(err))
		}
	}
	pollErr := errors.Join(errs...)

	elapsed := time.Since(startTime)
	if s.metrics != nil {
		s.metrics.PollLatency.Observe(elapsed.Seconds())
	}

	s.status.mu.Lock()
	s.status.PollLatencyMs = elapsed.Milliseconds()
	s.status.LastPollTime = observedAt
	s.status.mu.Unlock()

	if s.signals != nil {
		s.signals.InvalidateCache(ctx)
		if err := s.evaluateAlerts(ctx, observedAt); err != nil {
			s.incrementErrorCount()
			return errors.Join(pollErr, err)
		}
	}

	return pollErr
}

func (s *OracleService) observe(ctx context.Context, asset entities.Asset, feed PriceSource, observedAt time.Time) error {
	reading, err := feed.LatestPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to read %s feed: %w", asset, err)
	}

	obs := &entities.PriceObservation{
		Asset:      asset,
		PriceUSD:   reading.PriceUSD,
		RoundID:    reading.RoundID,
		UpdatedAt:  reading.UpdatedAt,
		ObservedAt: observedAt,
	}
	if err := s.priceRepo.InsertObservation(ctx, obs); err != nil {
		return fmt.Errorf("failed to store %s observation: %w", asset, err)
	}

	if s.metrics != nil {
		s.metrics.Observations.WithLabelValues(string(asset)).Inc()
		s.metrics.LastPrice.WithLabelValues(string(asset)).Set(reading.PriceUSD)
	}

	s.status.mu.Lock()
	s.status.Observations++
	s.status.mu.Unlock()

	s.logger.Debug("Stored price observation",
		zap.String("asset", string(asset)),
		zap.Float64("price_usd", reading.PriceUSD),
		zap.String("round_id", reading.RoundID),
	)

	return nil
}

func (s *OracleService) evaluateAlerts(ctx context.Context, now time.Time) error {
	if s.alerts == nil {
		return nil
	}

	signals, err := s.signals.ComputeMarketSignals(ctx)
	if err != nil {
		if errors.Is(err, ErrInsufficientData) {
			s.logger.Debug("Skipping alert evaluation", zap.Error(err))
			return nil
		}
		return fmt.Errorf("failed to compute market signals: %w", err)
	}

	triggers, err := s.alerts.EvaluateAll(ctx, *signals, now)
	if err != nil {
		return err
	}

	s.status.mu.Lock()
	s.status.LastTriggered = len(triggers)
	s.status.mu.Unlock()

	return nil
}

func (s *OracleService) incrementErrorCount() {
	if s.metrics != nil {
		s.metrics.Errors.Inc()
	}
	s.status.mu.Lock()
	defer s.status.mu.Unlock()
	s.status.ErrorCount++
}
