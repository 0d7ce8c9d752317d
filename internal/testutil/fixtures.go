package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

// Common test identities
const (
	AliceEmail = "alice@example.com"
	BobEmail   = "bob@example.com"
	TestAsOf   = "2024-06-01T00:00:00Z"
)

// Holding builds a holding on a chain
func Holding(chain entities.Chain, symbol string, usdValue float64) entities.Holding {
	return entities.Holding{
		Chain:    chain,
		Symbol:   symbol,
		Quantity: usdValue,
		USDValue: usdValue,
	}
}

// CreateTestSnapshot creates a snapshot with default values: base holds
// 400 USDC and 600 ETH, solana holds 500 USDC and 500 SOL
func CreateTestSnapshot(opts ...SnapshotOption) entities.PortfolioSnapshot {
	s := entities.PortfolioSnapshot{
		AsOf: TestAsOf,
		Holdings: []entities.Holding{
			Holding(entities.ChainBase, "USDC", 400),
			Holding(entities.ChainBase, "ETH", 600),
			Holding(entities.ChainSolana, "USDC", 500),
			Holding(entities.ChainSolana, "SOL", 500),
		},
	}

	for _, opt := range opts {
		opt(&s)
	}

	return s
}

type SnapshotOption func(*entities.PortfolioSnapshot)

func WithHoldings(holdings ...entities.Holding) SnapshotOption {
	return func(s *entities.PortfolioSnapshot) {
		s.Holdings = holdings
	}
}

func WithAsOf(asOf string) SnapshotOption {
	return func(s *entities.PortfolioSnapshot) {
		s.AsOf = asOf
	}
}

// CreateTestAlertRule creates an enabled PRICE_LEVEL rule on ETH
func CreateTestAlertRule(opts ...AlertRuleOption) entities.AlertRule {
	op := entities.OpGTE
	rule := entities.AlertRule{
		ID:        uuid.New(),
		UserID:    1,
		Type:      entities.AlertPriceLevel,
		Enabled:   true,
		Symbol:    PointerTo("ETH"),
		Op:        &op,
		Threshold: PointerTo(3000.0),
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	for _, opt := range opts {
		opt(&rule)
	}

	return rule
}

type AlertRuleOption func(*entities.AlertRule)

func RuleWithUser(userID int64) AlertRuleOption {
	return func(r *entities.AlertRule) {
		r.UserID = userID
	}
}

func RuleWithType(t entities.AlertType) AlertRuleOption {
	return func(r *entities.AlertRule) {
		r.Type = t
	}
}

func RuleWithOp(op entities.AlertOp) AlertRuleOption {
	return func(r *entities.AlertRule) {
		r.Op = &op
	}
}

func RuleWithSymbol(symbol *string) AlertRuleOption {
	return func(r *entities.AlertRule) {
		r.Symbol = symbol
	}
}

func RuleWithThreshold(v float64) AlertRuleOption {
	return func(r *entities.AlertRule) {
		r.Threshold = &v
	}
}

func RuleWithCooldown(minutes int, lastTriggered *time.Time) AlertRuleOption {
	return func(r *entities.AlertRule) {
		r.CooldownMinutes = &minutes
		r.LastTriggeredAt = lastTriggered
	}
}

func RuleDisabled() AlertRuleOption {
	return func(r *entities.AlertRule) {
		r.Enabled = false
	}
}

// CreatePriceHistory creates one observation per UTC day at noon for the
// days before now, oldest first, with prices taken from closes in order.
// A final observation at now carries current.
func CreatePriceHistory(asset entities.Asset, now time.Time, closes []float64, current float64) []entities.PriceObservation {
	today := now.UTC().Truncate(24 * time.Hour)
	out := make([]entities.PriceObservation, 0, len(closes)+1)

	for i, p := range closes {
		day := today.AddDate(0, 0, i-len(closes))
		observed := day.Add(12 * time.Hour)
		out = append(out, entities.PriceObservation{
			Asset:      asset,
			PriceUSD:   p,
			RoundID:    fmt.Sprintf("%s-%d", asset, i),
			UpdatedAt:  observed,
			ObservedAt: observed,
		})
	}

	out = append(out, entities.PriceObservation{
		Asset:      asset,
		PriceUSD:   current,
		RoundID:    fmt.Sprintf("%s-now", asset),
		UpdatedAt:  now,
		ObservedAt: now,
	})

	return out
}

// FlatCloses returns n copies of price
func FlatCloses(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

// PointerTo returns a pointer to the given value
func PointerTo[T any](v T) *T {
	return &v
}
