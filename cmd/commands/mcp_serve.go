package commands

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	veimcp "github.com/strangeloopcanon/vei/internal/mcp"
)

// NewMCPServeCommand returns the mcp-serve subcommand.
func NewMCPServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "mcp-serve",
		Aliases: []string{"mcp"},
		Usage:   "Expose the simulation tools as an MCP server (stdio)",
		Action:  runMCPServe,
	}
}

func runMCPServe(ctx context.Context, cmd *cli.Command) error {
	// stdout carries the MCP stdio transport; logs go to stderr.
	setupLogging(cmd)

	rt, err := buildRouter(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	slog.Debug("starting MCP server", "tools", len(rt.Registry().Names()))
	return veimcp.RunStdio(ctx, rt)
}
