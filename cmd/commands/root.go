// Package commands holds the CLI surface: serving the simulation over MCP
// or HTTP, running call scripts against it, and scoring traces.
package commands

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/strangeloopcanon/vei/internal/config"
	"github.com/strangeloopcanon/vei/internal/router"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "vei",
		Usage: "Deterministic virtual-enterprise simulation for agent evaluation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to JSONC config file",
			},
			&cli.UintFlag{
				Name:  "seed",
				Usage: "Simulation seed (overrides config)",
			},
			&cli.StringFlag{
				Name:  "scenario",
				Usage: "Path to a scenario file (JSON, JSONC or YAML)",
			},
			&cli.StringFlag{
				Name:  "artifacts",
				Usage: "Directory for trace.jsonl and other run artifacts",
			},
			&cli.StringFlag{
				Name:  "state-dir",
				Usage: "Directory for the append-only state store",
			},
			&cli.StringFlag{
				Name:  "drift",
				Usage: "Background drift mode: off, light, fast or aggressive",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewMCPServeCommand(),
			NewGatewayCommand(),
			NewRunCommand(),
			NewScoreCommand(),
		},
	}
}

// setupLogging routes logs to stderr; stdout stays clean for MCP stdio
// and command output.
func setupLogging(cmd *cli.Command) {
	level := slog.LevelWarn
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig loads the config file, then applies CLI flag overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if cmd.IsSet("seed") {
		cfg.Seed = uint32(cmd.Uint("seed"))
		cfg.DriftSeed = cfg.Seed
	}
	if cmd.IsSet("scenario") {
		cfg.ScenarioPath = cmd.String("scenario")
	}
	if cmd.IsSet("artifacts") {
		cfg.ArtifactsDir = cmd.String("artifacts")
	}
	if cmd.IsSet("state-dir") {
		cfg.StateDir = cmd.String("state-dir")
	}
	if cmd.IsSet("drift") {
		cfg.DriftMode = cmd.String("drift")
	}
	return cfg, nil
}

func buildRouter(cmd *cli.Command) (*router.Router, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return router.New(cfg, nil)
}
