// Package cliapp provides the cobra command tree shared by the per-chain
// binaries (cmd/sui, cmd/aptos): a global -f/--config flag, a "config
// {get,set}" subcommand, and the default no-subcommand behavior of
// running the engine until a shutdown signal arrives (spec.md §6).
package cliapp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scale-bot/internal/chain"
	"scale-bot/internal/config"
	"scale-bot/internal/engine"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// NewRootCmd builds the root command for one chain's binary. chainName names
// the chain ("sui" or "aptos"); it selects the default config path
// (~/.scale/<chain>_config.yaml) and is logged on startup.
func NewRootCmd(chainName string) *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   chainName,
		Short: fmt.Sprintf("Liquidation and price-oracle bot for %s", chainName),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(chainName, cfgPath)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "f", "", "path to config file (default ~/.scale/"+chainName+"_config.yaml)")

	root.AddCommand(newConfigCmd(chainName, &cfgPath))
	return root
}

func resolvePath(chainName, cfgPath string) (string, error) {
	if cfgPath != "" {
		return cfgPath, nil
	}
	return config.DefaultPath(chainName)
}

func runEngine(chainName, cfgPath string) error {
	path, err := resolvePath(chainName, cfgPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg)

	noop := chain.Noop{Log: logger}
	eng, err := engine.New(*cfg, engine.Chain{Oracle: noop, Positions: noop, Funding: noop}, logger)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	if err := eng.Hydrate(); err != nil {
		return fmt.Errorf("hydrate engine: %w", err)
	}

	eng.Start()
	logger.Info("engine started", "chain", chainName, "config", path)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
	return nil
}

func newConfigCmd(chainName string, cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit the chain's config file",
	}
	cmd.AddCommand(newConfigGetCmd(chainName, cfgPath))
	cmd.AddCommand(newConfigSetCmd(chainName, cfgPath))
	return cmd
}

func newConfigGetCmd(chainName string, cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the resolved config as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolvePath(chainName, *cfgPath)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
}

// newConfigSetCmd sets a single dotted-path field (e.g. "tasks",
// "logging.level") and writes the result back to disk.
func newConfigSetCmd(chainName string, cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <field> <value>",
		Short: "Set one config field and persist it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolvePath(chainName, *cfgPath)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := setField(cfg, args[0], args[1]); err != nil {
				return err
			}
			return config.Save(path, cfg)
		},
	}
}

// setField supports the handful of scalar fields a deployment operator is
// expected to tune from the CLI (tasks, burst_rate, sweep_interval_sec,
// write_price_to_db, logging.level, logging.format); every other field,
// including price_config.*, is edited directly in the YAML file.
func setField(cfg *config.Config, field, value string) error {
	switch field {
	case "tasks":
		var v int
		if _, err := fmt.Sscanf(value, "%d", &v); err != nil {
			return fmt.Errorf("tasks: %w", err)
		}
		cfg.Tasks = v
	case "burst_rate":
		var v float64
		if _, err := fmt.Sscanf(value, "%f", &v); err != nil {
			return fmt.Errorf("burst_rate: %w", err)
		}
		cfg.BurstRate = v
	case "sweep_interval_sec":
		var v int
		if _, err := fmt.Sscanf(value, "%d", &v); err != nil {
			return fmt.Errorf("sweep_interval_sec: %w", err)
		}
		cfg.SweepIntervalSec = v
	case "write_price_to_db":
		cfg.WritePriceToDB = value == "true"
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.format":
		cfg.Logging.Format = value
	default:
		return fmt.Errorf("unknown or unsettable field %q", field)
	}
	return nil
}
