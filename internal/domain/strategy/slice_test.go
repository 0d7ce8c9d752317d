package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

func TestSliceByChain(t *testing.T) {
	snap := snapshotOf(
		holding(entities.ChainBase, "USDC", 700),
		holding(entities.ChainBase, "ETH", 250),
		holding(entities.ChainBase, "cbBTC", 50),
		holding(entities.ChainSolana, "USDC", 100),
		holding(entities.ChainSolana, "SOL", 300),
	)

	slices := SliceByChain(snap, nil)

	assert.Equal(t, entities.ChainSlice{Chain: entities.ChainBase, TotalUSD: 1000, USDCUSD: 700, CoreUSD: 300}, slices[entities.ChainBase])
	assert.Equal(t, entities.ChainSlice{Chain: entities.ChainSolana, TotalUSD: 400, USDCUSD: 100, CoreUSD: 300}, slices[entities.ChainSolana])
}

func TestSliceByChain_ZeroedForEmptyChain(t *testing.T) {
	slices := SliceByChain(snapshotOf(holding(entities.ChainBase, "ETH", 10)), nil)

	assert.Len(t, slices, 2)
	assert.Equal(t, entities.ChainSlice{Chain: entities.ChainSolana}, slices[entities.ChainSolana])
}

func TestSliceByChain_SkipsUnrecognizedChains(t *testing.T) {
	snap := snapshotOf(
		holding(entities.ChainBase, "USDC", 100),
		holding("ethereum", "USDC", 5000),
		holding("Base", "ETH", 5000),
	)

	slices := SliceByChain(snap, nil)

	assert.Len(t, slices, 2)
	assert.Equal(t, 100.0, slices[entities.ChainBase].TotalUSD)
	assert.Equal(t, 0.0, slices[entities.ChainSolana].TotalUSD)

	skipped := UnrecognizedHoldings(snap)
	assert.Len(t, skipped, 2)
	assert.Equal(t, entities.Chain("ethereum"), skipped[0].Chain)
}

func TestSliceByChain_StableMatchIsCaseSensitive(t *testing.T) {
	snap := snapshotOf(
		holding(entities.ChainBase, "usdc", 100),
		holding(entities.ChainBase, "Usdc", 100),
		holding(entities.ChainBase, "USDC", 100),
	)

	base := SliceByChain(snap, DefaultStableSet())[entities.ChainBase]

	assert.Equal(t, 100.0, base.USDCUSD)
	assert.Equal(t, 200.0, base.CoreUSD)
}

func TestSliceByChain_CustomStableSet(t *testing.T) {
	snap := snapshotOf(
		holding(entities.ChainSolana, "USDC", 100),
		holding(entities.ChainSolana, "USDT", 50),
		holding(entities.ChainSolana, "SOL", 50),
	)

	sol := SliceByChain(snap, NewStableSet("USDC", "USDT"))[entities.ChainSolana]

	assert.Equal(t, 150.0, sol.USDCUSD)
	assert.Equal(t, 50.0, sol.CoreUSD)
}

func TestNewStableSet_EmptyFallsBackToDefault(t *testing.T) {
	set := NewStableSet()
	assert.True(t, set.IsStable("USDC"))
	assert.False(t, set.IsStable("USDT"))

	var nilSet StableSet
	assert.True(t, nilSet.IsStable("USDC"))
	assert.False(t, nilSet.IsStable("usdc"))
}
