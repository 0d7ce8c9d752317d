package strategy

import (
	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

// DefaultStableSymbol is the only stable asset unless configured otherwise
const DefaultStableSymbol = "USDC"

// StableSet is the set of symbols counted in the USDC bucket. Matching is
// exact and case-sensitive: "usdc" is a core asset.
type StableSet map[string]struct{}

// NewStableSet builds a set from symbols. With no symbols it returns the
// default set.
func NewStableSet(symbols ...string) StableSet {
	if len(symbols) == 0 {
		return DefaultStableSet()
	}
	set := make(StableSet, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return set
}

// DefaultStableSet returns {"USDC"}
func DefaultStableSet() StableSet {
	return StableSet{DefaultStableSymbol: {}}
}

// IsStable reports whether symbol belongs to the USDC bucket. A nil set
// behaves as the default set.
func (s StableSet) IsStable(symbol string) bool {
	if s == nil {
		return symbol == DefaultStableSymbol
	}
	_, ok := s[symbol]
	return ok
}

// SliceByChain aggregates a snapshot into per-chain totals. Every
// recognized chain gets an entry, zeroed when it has no holdings.
// Holdings on unrecognized chains are ignored; use UnrecognizedHoldings to
// find them.
func SliceByChain(snapshot entities.PortfolioSnapshot, stables StableSet) map[entities.Chain]entities.ChainSlice {
	slices := make(map[entities.Chain]entities.ChainSlice, len(entities.Chains))
	for _, chain := range entities.Chains {
		slices[chain] = entities.ChainSlice{Chain: chain}
	}

	for _, h := range snapshot.Holdings {
		s, ok := slices[h.Chain]
		if !ok {
			continue
		}
		s.TotalUSD += h.USDValue
		if stables.IsStable(h.Symbol) {
			s.USDCUSD += h.USDValue
		} else {
			s.CoreUSD += h.USDValue
		}
		slices[h.Chain] = s
	}

	return slices
}

// UnrecognizedHoldings returns the holdings SliceByChain skips
func UnrecognizedHoldings(snapshot entities.PortfolioSnapshot) []entities.Holding {
	var skipped []entities.Holding
	for _, h := range snapshot.Holdings {
		if !h.Chain.Valid() {
			skipped = append(skipped, h)
		}
	}
	return skipped
}
