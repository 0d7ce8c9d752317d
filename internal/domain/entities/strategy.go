package entities

// Stage is the market-risk posture, 1 (defensive) through 5 (most core)
type Stage int

const (
	MinStage Stage = 1
	MaxStage Stage = 5
)

// Valid reports whether s lies in the policy table
func (s Stage) Valid() bool {
	return s >= MinStage && s <= MaxStage
}

// Allocation is a USDC/core split in percent
type Allocation struct {
	USDCPct float64 `json:"usdcPct"`
	CorePct float64 `json:"corePct"`
}

// StageTargets holds the target allocation of every chain for a stage
type StageTargets struct {
	Stage    Stage                `json:"stage"`
	PerChain map[Chain]Allocation `json:"perChain"`
}

// Drift compares actual against target allocation for one chain.
// Drift = Actual - Target; positive CorePct drift means over-allocated to core.
type Drift struct {
	Chain    Chain      `json:"chain"`
	TotalUSD float64    `json:"totalUsd"`
	Actual   Allocation `json:"actual"`
	Target   Allocation `json:"target"`
	Drift    Allocation `json:"drift"`
}

// ActionType names a rebalancing move
type ActionType string

const (
	ActionRefillCore        ActionType = "REFILL_CORE"
	ActionTrimCore          ActionType = "TRIM_CORE"
	ActionNoAction          ActionType = "NO_ACTION"
	ActionRebalanceToTarget ActionType = "REBALANCE_TO_TARGET"
)

// SuggestedAction is one recommended move for one chain
type SuggestedAction struct {
	Chain  Chain      `json:"chain"`
	Type   ActionType `json:"type"`
	Reason string     `json:"reason"`
	// Positive means buy core with USDC; negative means sell core to USDC
	CoreDeltaUSD float64 `json:"coreDeltaUsd"`
	// Always -CoreDeltaUSD
	USDCDeltaUSD float64 `json:"usdcDeltaUsd"`
}

// AppliedRule tags which stage transition rule fired
type AppliedRule string

const (
	RuleCrashProtection       AppliedRule = "CRASH_PROTECTION"
	RuleUpgradeConfirmation   AppliedRule = "UPGRADE_CONFIRMATION"
	RuleDowngradeConfirmation AppliedRule = "DOWNGRADE_CONFIRMATION"
	RuleNoChange              AppliedRule = "NO_CHANGE"
)

// StageSignalInputs are the market signals a stage decision is made from
type StageSignalInputs struct {
	CurrentStage Stage `json:"currentStage"`

	// Daily closes
	ETHClose float64 `json:"ethClose"`
	SOLClose float64 `json:"solClose"`

	// 20-day bands
	ETH20dHigh float64 `json:"eth20dHigh"`
	ETH20dLow  float64 `json:"eth20dLow"`
	SOL20dHigh float64 `json:"sol20dHigh"`
	SOL20dLow  float64 `json:"sol20dLow"`

	// Percent move over the last 24h, negative means down (e.g. -12.3)
	PctChange24h float64 `json:"pctChange24h"`
}

// StageDecision is the outcome of evaluating signals against a stage
type StageDecision struct {
	NextStage   Stage       `json:"nextStage"`
	Reason      string      `json:"reason"`
	AppliedRule AppliedRule `json:"appliedRule"`
}
