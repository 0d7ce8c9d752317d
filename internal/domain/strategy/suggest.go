package strategy

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

const (
	// DefaultTrimThresholdPct is how far (in percentage points) core may
	// exceed its target before a trim is suggested
	DefaultTrimThresholdPct = 5.0

	// refillEpsilonUSD absorbs float noise when deciding core is under target
	refillEpsilonUSD = 0.01
)

// ErrInvalidThreshold is returned for a negative or non-finite trim threshold
var ErrInvalidThreshold = errors.New("trim threshold must be a non-negative number")

// SuggestionInputs parameterizes SuggestRebalanceActions
type SuggestionInputs struct {
	Stage entities.Stage

	// Trim only when core exceeds target by more than this many points
	TrimThresholdPct float64

	// Only refill up to target. When false the purchase is capped by the
	// available USDC first, which the final clamp already enforces, so both
	// settings currently produce the same actions.
	RefillOnly bool

	// Symbols counted as USDC; nil means the default set
	Stables StableSet
}

// DefaultSuggestionInputs returns inputs with threshold 5 and refill-only on
func DefaultSuggestionInputs(stage entities.Stage) SuggestionInputs {
	return SuggestionInputs{
		Stage:            stage,
		TrimThresholdPct: DefaultTrimThresholdPct,
		RefillOnly:       true,
	}
}

// SuggestRebalanceActions proposes exactly one action per recognized chain,
// in entities.Chains order. Value only moves between core and USDC, so
// CoreDeltaUSD == -USDCDeltaUSD on every action.
func SuggestRebalanceActions(snapshot entities.PortfolioSnapshot, in SuggestionInputs) ([]entities.SuggestedAction, error) {
	if math.IsNaN(in.TrimThresholdPct) || math.IsInf(in.TrimThresholdPct, 0) || in.TrimThresholdPct < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, in.TrimThresholdPct)
	}
	targets, err := GetStageTargets(in.Stage)
	if err != nil {
		return nil, err
	}
	slices := SliceByChain(snapshot, in.Stables)

	actions := make([]entities.SuggestedAction, 0, len(entities.Chains))
	for _, chain := range entities.Chains {
		actions = append(actions, suggestForChain(slices[chain], targets.PerChain[chain], in))
	}

	return actions, nil
}

func suggestForChain(s entities.ChainSlice, t entities.Allocation, in SuggestionInputs) entities.SuggestedAction {
	if s.TotalUSD <= 0 {
		return noAction(s.Chain, "No holdings detected on this chain.")
	}

	targetCoreUSD := t.CorePct / 100 * s.TotalUSD
	deltaCoreUSD := targetCoreUSD - s.CoreUSD // + buy core with USDC, - sell core to USDC
	actualCorePct := pct(s.CoreUSD, s.TotalUSD)

	if deltaCoreUSD > refillEpsilonUSD {
		maxBuy := deltaCoreUSD
		if !in.RefillOnly {
			maxBuy = math.Min(deltaCoreUSD, s.USDCUSD)
		}
		buyUSD := math.Max(0, math.Min(maxBuy, s.USDCUSD))

		if buyUSD <= 0 {
			return noAction(s.Chain, "Core is under target but there is no USDC available to refill.")
		}
		return entities.SuggestedAction{
			Chain: s.Chain,
			Type:  entities.ActionRefillCore,
			Reason: fmt.Sprintf("Core is under target (%.2f%% vs %s%%). Refill core up to target.",
				actualCorePct, formatNum(t.CorePct)),
			CoreDeltaUSD: buyUSD,
			USDCDeltaUSD: -buyUSD,
		}
	}

	overPct := actualCorePct - t.CorePct
	if overPct > in.TrimThresholdPct {
		sellUSD := math.Abs(deltaCoreUSD)
		return entities.SuggestedAction{
			Chain: s.Chain,
			Type:  entities.ActionTrimCore,
			Reason: fmt.Sprintf("Core exceeds target by %.2f%% (> %s%%). Trim back to target.",
				overPct, formatNum(in.TrimThresholdPct)),
			CoreDeltaUSD: -sellUSD,
			USDCDeltaUSD: sellUSD,
		}
	}

	return noAction(s.Chain, fmt.Sprintf("Core is within drift limits (%.2f%% vs target %s%%).",
		actualCorePct, formatNum(t.CorePct)))
}

func noAction(chain entities.Chain, reason string) entities.SuggestedAction {
	return entities.SuggestedAction{
		Chain:  chain,
		Type:   entities.ActionNoAction,
		Reason: reason,
	}
}

// formatNum renders a number the shortest way ("40", "2.5", "-12.1")
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
