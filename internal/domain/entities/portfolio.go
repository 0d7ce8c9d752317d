package entities

import (
	"errors"
	"fmt"
	"math"
)

// Chain identifies one of the two networks a portfolio is held on
type Chain string

const (
	ChainBase   Chain = "base"
	ChainSolana Chain = "solana"
)

// Chains lists the recognized chains in the order every per-chain result
// is emitted
var Chains = []Chain{ChainBase, ChainSolana}

// Valid reports whether c is one of the recognized chains
func (c Chain) Valid() bool {
	switch c {
	case ChainBase, ChainSolana:
		return true
	}
	return false
}

// Holding is one asset position on one chain
type Holding struct {
	Chain    Chain   `json:"chain"`
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	USDValue float64 `json:"usdValue"`
}

// PortfolioSnapshot is a point-in-time statement of holdings
type PortfolioSnapshot struct {
	AsOf     string    `json:"asOf"` // ISO-8601, kept as text
	Holdings []Holding `json:"holdings"`
}

// ErrEmptySnapshot is returned when a snapshot carries no holdings
var ErrEmptySnapshot = errors.New("snapshot must contain at least one holding")

// Validate performs the schema checks a snapshot must pass before it is
// handed to the rules engine
func (s PortfolioSnapshot) Validate() error {
	if len(s.Holdings) == 0 {
		return ErrEmptySnapshot
	}
	for i, h := range s.Holdings {
		if !h.Chain.Valid() {
			return fmt.Errorf("holdings[%d]: chain must be one of base, solana, got %q", i, h.Chain)
		}
		if math.IsNaN(h.Quantity) || math.IsInf(h.Quantity, 0) || h.Quantity < 0 {
			return fmt.Errorf("holdings[%d]: quantity must be a non-negative number", i)
		}
		if math.IsNaN(h.USDValue) || math.IsInf(h.USDValue, 0) || h.USDValue < 0 {
			return fmt.Errorf("holdings[%d]: usdValue must be a non-negative number", i)
		}
	}
	return nil
}

// ChainSlice is the per-chain aggregate of a snapshot.
// TotalUSD == USDCUSD + CoreUSD by construction.
type ChainSlice struct {
	Chain    Chain   `json:"chain"`
	TotalUSD float64 `json:"totalUsd"`
	USDCUSD  float64 `json:"usdcUsd"`
	CoreUSD  float64 `json:"coreUsd"`
}
