package strategy

import (
	"fmt"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

// CrashThresholdPct is the 24h move at or below which crash protection fires
const CrashThresholdPct = -12.0

// DecideNextStage evaluates the stage rules in priority order; the first
// match wins:
//
//  1. CRASH_PROTECTION: 24h change <= -12% drops to stage 1 (from 1-2) or 2.
//  2. UPGRADE_CONFIRMATION: ETH and SOL both close above their 20D highs.
//  3. DOWNGRADE_CONFIRMATION: ETH or SOL closes below its 20D low.
//  4. NO_CHANGE.
func DecideNextStage(in entities.StageSignalInputs) (entities.StageDecision, error) {
	current := in.CurrentStage
	if err := ValidateStage(current); err != nil {
		return entities.StageDecision{}, err
	}

	if in.PctChange24h <= CrashThresholdPct {
		next := entities.Stage(2)
		if current <= 2 {
			next = 1
		}
		return entities.StageDecision{
			NextStage:   next,
			Reason:      fmt.Sprintf("Crash protection triggered (24h change %s%%). Moving to Stage %d.", formatNum(in.PctChange24h), next),
			AppliedRule: entities.RuleCrashProtection,
		}, nil
	}

	upgrade := in.ETHClose > in.ETH20dHigh && in.SOLClose > in.SOL20dHigh
	if upgrade && current < entities.MaxStage {
		return entities.StageDecision{
			NextStage: current + 1,
			Reason: fmt.Sprintf("Both ETH (%s > %s) and SOL (%s > %s) confirmed above their 20D highs. Upgrade one stage.",
				formatNum(in.ETHClose), formatNum(in.ETH20dHigh), formatNum(in.SOLClose), formatNum(in.SOL20dHigh)),
			AppliedRule: entities.RuleUpgradeConfirmation,
		}, nil
	}

	downgrade := in.ETHClose < in.ETH20dLow || in.SOLClose < in.SOL20dLow
	if downgrade && current > entities.MinStage {
		return entities.StageDecision{
			NextStage: current - 1,
			Reason: fmt.Sprintf("Either ETH (%s vs low %s) or SOL (%s vs low %s) confirmed below its 20D low. Downgrade one stage.",
				formatNum(in.ETHClose), formatNum(in.ETH20dLow), formatNum(in.SOLClose), formatNum(in.SOL20dLow)),
			AppliedRule: entities.RuleDowngradeConfirmation,
		}, nil
	}

	return entities.StageDecision{
		NextStage:   current,
		Reason:      fmt.Sprintf("No stage rule triggered. Staying at Stage %d.", current),
		AppliedRule: entities.RuleNoChange,
	}, nil
}
