// Package cli implements rebalancectl, an offline front end to the rules
// engine plus database maintenance commands.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bimakw/stage-rebalancer/internal/application/services"
	"github.com/bimakw/stage-rebalancer/internal/config"
	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
	"github.com/bimakw/stage-rebalancer/internal/domain/strategy"
	"github.com/bimakw/stage-rebalancer/internal/infrastructure/database"
)

// NewRootCmd creates the root command
func NewRootCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	service := services.NewStrategyService(cfg.Strategy, logger)

	rootCmd := &cobra.Command{
		Use:           "rebalancectl",
		Short:         "Stage-based rebalancing for a base + solana portfolio",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newTargetsCmd(service))
	rootCmd.AddCommand(newDriftCmd(service, logger))
	rootCmd.AddCommand(newSuggestCmd(service, logger))
	rootCmd.AddCommand(newStageCmd(service))
	rootCmd.AddCommand(newMigrateCmd(cfg.Database, logger))

	return rootCmd
}

func addStageFlag(cmd *cobra.Command) {
	cmd.Flags().Int("stage", 0, "Portfolio stage 1-5 (configured default if not provided)")
}

// stageFlag returns nil when --stage was not given
func stageFlag(cmd *cobra.Command) (*entities.Stage, error) {
	if !cmd.Flags().Changed("stage") {
		return nil, nil
	}
	v, err := cmd.Flags().GetInt("stage")
	if err != nil {
		return nil, err
	}
	stage := entities.Stage(v)
	return &stage, nil
}

func newTargetsCmd(service *services.StrategyService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "Print the per-chain target allocation of a stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := stageFlag(cmd)
			if err != nil {
				return err
			}
			targets, err := service.Targets(stage)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), targets)
		},
	}
	addStageFlag(cmd)
	return cmd
}

func newDriftCmd(service *services.StrategyService, logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drift FILE",
		Short: "Compare a snapshot's allocation to the stage targets",
		Long: `Compare a portfolio snapshot's per-chain allocation to the stage targets.
FILE is a snapshot JSON document, or - to read standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := stageFlag(cmd)
			if err != nil {
				return err
			}
			snapshot, err := readSnapshot(cmd, args[0], logger)
			if err != nil {
				return err
			}
			drift, err := service.Drift(snapshot, stage)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), drift)
		},
	}
	addStageFlag(cmd)
	return cmd
}

func newSuggestCmd(service *services.StrategyService, logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest FILE",
		Short: "Suggest one rebalancing action per chain",
		Long: `Suggest one rebalancing action per chain for a portfolio snapshot.
FILE is a snapshot JSON document, or - to read standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts services.SuggestOptions
			var err error

			if opts.Stage, err = stageFlag(cmd); err != nil {
				return err
			}
			if cmd.Flags().Changed("trim-threshold") {
				threshold, err := cmd.Flags().GetFloat64("trim-threshold")
				if err != nil {
					return err
				}
				opts.TrimThresholdPct = &threshold
			}
			if cmd.Flags().Changed("refill-only") {
				refillOnly, err := cmd.Flags().GetBool("refill-only")
				if err != nil {
					return err
				}
				opts.RefillOnly = &refillOnly
			}

			snapshot, err := readSnapshot(cmd, args[0], logger)
			if err != nil {
				return err
			}
			actions, err := service.Suggest(snapshot, opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), actions)
		},
	}
	addStageFlag(cmd)
	cmd.Flags().Float64("trim-threshold", 0, "Points core may exceed target before trimming (configured default if not provided)")
	cmd.Flags().Bool("refill-only", true, "Only refill core up to target")
	return cmd
}

func newStageCmd(service *services.StrategyService) *cobra.Command {
	var in entities.StageSignalInputs
	var current int

	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Decide the next stage from market signals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.CurrentStage = entities.Stage(current)
			decision, err := service.DecideStage(in)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), decision)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&current, "current", 0, "Current stage 1-5")
	flags.Float64Var(&in.ETHClose, "eth-close", 0, "ETH daily close")
	flags.Float64Var(&in.SOLClose, "sol-close", 0, "SOL daily close")
	flags.Float64Var(&in.ETH20dHigh, "eth-high", 0, "ETH 20D high")
	flags.Float64Var(&in.ETH20dLow, "eth-low", 0, "ETH 20D low")
	flags.Float64Var(&in.SOL20dHigh, "sol-high", 0, "SOL 20D high")
	flags.Float64Var(&in.SOL20dLow, "sol-low", 0, "SOL 20D low")
	flags.Float64Var(&in.PctChange24h, "change-24h", 0, "24h change in percent")
	for _, name := range []string{"current", "eth-close", "sol-close", "eth-high", "eth-low", "sol-high", "sol-low", "change-24h"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func newMigrateCmd(cfg config.DatabaseConfig, logger *zap.Logger) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.RunMigrations(cfg.URL(), cfg.MigrationsPath); err != nil {
				return err
			}
			logger.Info("Migrations applied", zap.String("path", cfg.MigrationsPath))
			return nil
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.RollbackMigrations(cfg.URL(), cfg.MigrationsPath); err != nil {
				return err
			}
			logger.Info("Rolled back one migration")
			return nil
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, dirty, err := database.MigrationVersion(cfg.URL(), cfg.MigrationsPath)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"version": version, "dirty": dirty})
		},
	})

	return migrateCmd
}

// readSnapshot loads a snapshot from path ("-" is stdin). Holdings on
// chains the engine does not know are logged and dropped.
func readSnapshot(cmd *cobra.Command, path string, logger *zap.Logger) (entities.PortfolioSnapshot, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return entities.PortfolioSnapshot{}, fmt.Errorf("failed to open snapshot: %w", err)
		}
		defer f.Close()
		r = f
	}

	var snapshot entities.PortfolioSnapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		if errors.Is(err, io.EOF) {
			return entities.PortfolioSnapshot{}, errors.New("snapshot is empty")
		}
		return entities.PortfolioSnapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	skipped := strategy.UnrecognizedHoldings(snapshot)
	if len(skipped) == 0 {
		return snapshot, nil
	}
	for _, h := range skipped {
		logger.Warn("Ignoring holding on unrecognized chain",
			zap.String("chain", string(h.Chain)),
			zap.String("symbol", h.Symbol),
			zap.Float64("usd_value", h.USDValue),
		)
	}

	kept := make([]entities.Holding, 0, len(snapshot.Holdings)-len(skipped))
	for _, h := range snapshot.Holdings {
		if h.Chain.Valid() {
			kept = append(kept, h)
		}
	}
	snapshot.Holdings = kept
	return snapshot, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
