package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bimakw/stage-rebalancer/internal/config"
	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

const cliSnapshot = `{
	"asOf": "2024-06-01T00:00:00Z",
	"holdings": [
		{"chain": "base", "symbol": "USDC", "quantity": 600, "usdValue": 600},
		{"chain": "base", "symbol": "ETH", "quantity": 0.1, "usdValue": 300},
		{"chain": "solana", "symbol": "USDC", "quantity": 500, "usdValue": 500},
		{"chain": "solana", "symbol": "SOL", "quantity": 3, "usdValue": 500},
		{"chain": "arbitrum", "symbol": "ARB", "quantity": 10, "usdValue": 9000}
	]
}`

func testConfig() *config.Config {
	return &config.Config{
		Strategy: config.StrategyConfig{
			DefaultStage:     4,
			TrimThresholdPct: 5,
			RefillOnly:       true,
			StableSymbols:    []string{"USDC"},
		},
	}
}

func run(t *testing.T, stdin string, args ...string) (string, *observer.ObservedLogs, error) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)

	cmd := NewRootCmd(testConfig(), zap.New(core))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), logs, err
}

func TestTargetsCmd(t *testing.T) {
	out, _, err := run(t, "", "targets")
	require.NoError(t, err)

	var targets entities.StageTargets
	require.NoError(t, json.Unmarshal([]byte(out), &targets))
	assert.Equal(t, entities.Stage(4), targets.Stage)
	assert.Equal(t, 60.0, targets.PerChain[entities.ChainBase].USDCPct)

	out, _, err = run(t, "", "targets", "--stage", "5")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &targets))
	assert.Equal(t, 50.0, targets.PerChain[entities.ChainSolana].CorePct)

	_, _, err = run(t, "", "targets", "--stage", "0")
	assert.ErrorContains(t, err, "stage must be between 1 and 5")
}

func TestDriftCmd_DropsUnrecognizedChains(t *testing.T) {
	out, logs, err := run(t, cliSnapshot, "drift", "-")
	require.NoError(t, err)

	var drift []entities.Drift
	require.NoError(t, json.Unmarshal([]byte(out), &drift))
	require.Len(t, drift, 2)
	assert.Equal(t, 900.0, drift[0].TotalUSD)
	assert.Equal(t, 10.0, drift[1].Drift.CorePct)

	warned := logs.FilterMessage("Ignoring holding on unrecognized chain").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "arbitrum", warned[0].ContextMap()["chain"])
}

func TestSuggestCmd_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(cliSnapshot), 0o600))

	out, _, err := run(t, "", "suggest", path)
	require.NoError(t, err)

	var actions []entities.SuggestedAction
	require.NoError(t, json.Unmarshal([]byte(out), &actions))
	require.Len(t, actions, 2)
	assert.Equal(t, entities.ActionRefillCore, actions[0].Type)
	assert.Equal(t, entities.ActionTrimCore, actions[1].Type)

	out, _, err = run(t, "", "suggest", "--trim-threshold", "15", path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &actions))
	assert.Equal(t, entities.ActionNoAction, actions[1].Type)
}

func TestSuggestCmd_Errors(t *testing.T) {
	_, _, err := run(t, "", "suggest", "-")
	assert.ErrorContains(t, err, "snapshot is empty")

	_, _, err = run(t, "{", "suggest", "-")
	assert.ErrorContains(t, err, "failed to decode snapshot")

	_, _, err = run(t, "", "suggest", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to open snapshot")

	_, _, err = run(t, cliSnapshot, "suggest", "--trim-threshold=-2", "-")
	assert.Error(t, err)
}

func TestStageCmd(t *testing.T) {
	out, _, err := run(t, "", "stage",
		"--current", "4",
		"--eth-close", "100", "--sol-close", "100",
		"--eth-high", "110", "--eth-low", "90",
		"--sol-high", "110", "--sol-low", "95",
		"--change-24h", "-12",
	)
	require.NoError(t, err)

	var decision entities.StageDecision
	require.NoError(t, json.Unmarshal([]byte(out), &decision))
	assert.Equal(t, entities.Stage(2), decision.NextStage)
	assert.Equal(t, entities.RuleCrashProtection, decision.AppliedRule)
}

func TestStageCmd_RequiresAllSignals(t *testing.T) {
	_, _, err := run(t, "", "stage", "--current", "3", "--eth-close", "100")
	assert.ErrorContains(t, err, "required flag")
}
