package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/strangeloopcanon/vei/internal/replay"
	"github.com/strangeloopcanon/vei/internal/router"
)

// NewRunCommand returns the run subcommand: it executes a JSONL script of
// tool calls against a fresh simulation and prints one result per line.
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a JSONL script of tool calls against the simulation",
		ArgsUsage: "<script.jsonl>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "timeline",
				Usage: "JSONL event timeline to preload onto the bus",
			},
			&cli.StringFlag{
				Name:  "capture-db",
				Usage: "SQLite capture database to preload onto the bus",
			},
		},
		Action: runScript,
	}
}

type scriptCall struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

func runScript(_ context.Context, cmd *cli.Command) error {
	setupLogging(cmd)

	if cmd.Args().Len() != 1 {
		return fmt.Errorf("run expects exactly one script path")
	}
	scriptPath := cmd.Args().First()

	rt, err := buildRouter(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := preloadTimeline(rt, cmd.String("timeline"), cmd.String("capture-db")); err != nil {
		return err
	}

	f, err := os.Open(scriptPath)
	if err != nil {
		return fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(os.Stdout)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var call scriptCall
		if err := json.Unmarshal(raw, &call); err != nil {
			return fmt.Errorf("script line %d: %w", line, err)
		}

		result, err := rt.Call(call.Tool, call.Args)
		out := map[string]any{"tool": call.Tool, "time_ms": rt.Now()}
		if err != nil {
			out["error"] = err.Error()
		} else {
			out["result"] = result
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return sc.Err()
}

// preloadTimeline schedules recorded events before the script starts.
func preloadTimeline(rt *router.Router, timelinePath, dbPath string) error {
	var events []replay.Event
	switch {
	case timelinePath != "" && dbPath != "":
		return fmt.Errorf("timeline and capture-db are mutually exclusive")
	case timelinePath != "":
		loaded, err := replay.LoadJSONL(timelinePath)
		if err != nil {
			return err
		}
		events = loaded
	case dbPath != "":
		loaded, err := replay.LoadSQLite(dbPath)
		if err != nil {
			return err
		}
		events = loaded
	default:
		return nil
	}

	for _, ev := range events {
		if _, err := rt.Call("vei.inject", map[string]any{
			"target":  ev.Target,
			"payload": ev.Payload,
			"dt_ms":   ev.AtMS - rt.Now(),
		}); err != nil {
			return fmt.Errorf("schedule replay event at %dms: %w", ev.AtMS, err)
		}
	}
	return nil
}
