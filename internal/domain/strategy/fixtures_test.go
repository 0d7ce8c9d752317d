package strategy

import (
	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

func snapshotOf(holdings ...entities.Holding) entities.PortfolioSnapshot {
	return entities.PortfolioSnapshot{
		AsOf:     "2026-01-09T16:00:00Z",
		Holdings: holdings,
	}
}

func holding(chain entities.Chain, symbol string, usd float64) entities.Holding {
	return entities.Holding{Chain: chain, Symbol: symbol, Quantity: usd, USDValue: usd}
}

func actionFor(actions []entities.SuggestedAction, chain entities.Chain) entities.SuggestedAction {
	for _, a := range actions {
		if a.Chain == chain {
			return a
		}
	}
	return entities.SuggestedAction{}
}
