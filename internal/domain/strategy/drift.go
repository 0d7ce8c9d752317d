package strategy

import (
	"math"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

// pct returns part as a percentage of whole, or 0 when whole is not a
// positive finite number
func pct(part, whole float64) float64 {
	if math.IsNaN(whole) || math.IsInf(whole, 0) || whole <= 0 {
		return 0
	}
	return part / whole * 100
}

// ComputeDrift compares each chain's actual allocation to the stage target.
// Results follow entities.Chains order and are not rounded.
func ComputeDrift(snapshot entities.PortfolioSnapshot, stage entities.Stage, stables StableSet) ([]entities.Drift, error) {
	targets, err := GetStageTargets(stage)
	if err != nil {
		return nil, err
	}
	slices := SliceByChain(snapshot, stables)

	drifts := make([]entities.Drift, 0, len(entities.Chains))
	for _, chain := range entities.Chains {
		s := slices[chain]
		target := targets.PerChain[chain]
		actual := entities.Allocation{
			USDCPct: pct(s.USDCUSD, s.TotalUSD),
			CorePct: pct(s.CoreUSD, s.TotalUSD),
		}

		drifts = append(drifts, entities.Drift{
			Chain:    chain,
			TotalUSD: s.TotalUSD,
			Actual:   actual,
			Target:   target,
			Drift: entities.Allocation{
				USDCPct: actual.USDCPct - target.USDCPct,
				CorePct: actual.CorePct - target.CorePct,
			},
		})
	}

	return drifts, nil
}
