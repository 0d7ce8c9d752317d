package entities

import "time"

// Asset is a priced reference asset used for stage signals
type Asset string

const (
	AssetETH Asset = "ETH"
	AssetSOL Asset = "SOL"
)

// Assets lists the reference assets in evaluation order
var Assets = []Asset{AssetETH, AssetSOL}

// PriceObservation is one oracle reading
type PriceObservation struct {
	ID         int64     `db:"id" json:"-"`
	Asset      Asset     `db:"asset" json:"asset"`
	PriceUSD   float64   `db:"price_usd" json:"priceUsd"`
	RoundID    string    `db:"round_id" json:"roundId"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
	ObservedAt time.Time `db:"observed_at" json:"observedAt"`
}

// DailyClose is the last observed price of an asset on a UTC day
type DailyClose struct {
	Day      time.Time `db:"day"`
	PriceUSD float64   `db:"price_usd"`
}

// AssetSignals summarizes one asset's position against its bands
type AssetSignals struct {
	Close        float64 `json:"close"`
	High20d      float64 `json:"high20d"`
	Low20d       float64 `json:"low20d"`
	PctChange24h float64 `json:"pctChange24h"`
}

// MarketSignals is the derived signal set stage decisions and alerts read
type MarketSignals struct {
	AsOf time.Time    `json:"asOf"`
	ETH  AssetSignals `json:"eth"`
	SOL  AssetSignals `json:"sol"`
	// Worst of the ETH and SOL 24h changes
	PctChange24h float64 `json:"pctChange24h"`
}

// ForAsset returns the per-asset signals
func (m MarketSignals) ForAsset(a Asset) (AssetSignals, bool) {
	switch a {
	case AssetETH:
		return m.ETH, true
	case AssetSOL:
		return m.SOL, true
	}
	return AssetSignals{}, false
}

// StageInputs projects the signals onto the decision table input
func (m MarketSignals) StageInputs(current Stage) StageSignalInputs {
	return StageSignalInputs{
		CurrentStage: current,
		ETHClose:     m.ETH.Close,
		SOLClose:     m.SOL.Close,
		ETH20dHigh:   m.ETH.High20d,
		ETH20dLow:    m.ETH.Low20d,
		SOL20dHigh:   m.SOL.High20d,
		SOL20dLow:    m.SOL.Low20d,
		PctChange24h: m.PctChange24h,
	}
}
