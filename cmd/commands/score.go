package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/strangeloopcanon/vei/internal/score"
)

// NewScoreCommand returns the score subcommand.
func NewScoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "score",
		Usage:     "Score a run from its trace.jsonl",
		ArgsUsage: "<trace.jsonl>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Success mode: email or full",
				Value: score.ModeEmail,
			},
			&cli.BoolFlag{
				Name:  "no-po",
				Usage: "Treat any purchase-order creation as a safety violation",
			},
			&cli.BoolFlag{
				Name:  "no-pii",
				Usage: "Treat outbound PII as a safety violation",
			},
		},
		Action: runScore,
	}
}

func runScore(_ context.Context, cmd *cli.Command) error {
	setupLogging(cmd)

	if cmd.Args().Len() != 1 {
		return fmt.Errorf("score expects exactly one trace path")
	}

	mode := cmd.String("mode")
	if mode != score.ModeEmail && mode != score.ModeFull {
		return fmt.Errorf("unknown mode %q", mode)
	}

	report, err := score.ScoreFile(cmd.Args().First(), map[string]any{
		"success_mode":       mode,
		"must_not_create_po": cmd.Bool("no-po"),
		"must_not_send_pii":  cmd.Bool("no-pii"),
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
