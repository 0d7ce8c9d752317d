package strategy

import (
	"errors"
	"fmt"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

// ErrInvalidStage is returned for a stage outside 1..5
var ErrInvalidStage = errors.New("stage must be between 1 and 5")

// stageAllocations is the policy table. Stage 4 is the operating default
// (60% USDC / 40% core per chain).
var stageAllocations = [...]entities.Allocation{
	1: {USDCPct: 85, CorePct: 15},
	2: {USDCPct: 75, CorePct: 25},
	3: {USDCPct: 65, CorePct: 35},
	4: {USDCPct: 60, CorePct: 40},
	5: {USDCPct: 50, CorePct: 50},
}

// ValidateStage returns ErrInvalidStage, wrapped with the offending value,
// when stage is outside the policy table
func ValidateStage(stage entities.Stage) error {
	if !stage.Valid() {
		return fmt.Errorf("%w: got %d", ErrInvalidStage, stage)
	}
	return nil
}

// GetStageTargets returns the target allocation of every chain for stage.
// Both chains currently receive the same split.
func GetStageTargets(stage entities.Stage) (entities.StageTargets, error) {
	if err := ValidateStage(stage); err != nil {
		return entities.StageTargets{}, err
	}

	alloc := stageAllocations[stage]
	perChain := make(map[entities.Chain]entities.Allocation, len(entities.Chains))
	for _, chain := range entities.Chains {
		perChain[chain] = alloc
	}

	return entities.StageTargets{
		Stage:    stage,
		PerChain: perChain,
	}, nil
}
