// Package providers implements the per-domain service twins behind the tool
// surface: chat, mail, browser, ERP, CRM, identity, docs, tickets, calendar
// and service desk.
//
// Expected domain failures (unknown PO, consent violation, ...) come back as
// plain {"error": {"code", "message"}} results. Protocol violations and
// resource misses raise typed toolerr errors.
package providers

import (
	"strings"

	"github.com/strangeloopcanon/vei/internal/bus"
	"github.com/strangeloopcanon/vei/internal/registry"
	"github.com/strangeloopcanon/vei/internal/scenario"
	"github.com/strangeloopcanon/vei/internal/simrand"
)

// Env is the shared simulation environment handed to every provider. The
// RNG is the single stream all fault and variant decisions consume from.
type Env struct {
	Bus          *bus.Bus
	RNG          *simrand.Stream
	Scenario     *scenario.Scenario
	ERPErrorRate float64
	CRMErrorRate float64
}

// Provider is the common tool-handler contract.
type Provider interface {
	Specs() []*registry.Spec
	Handles(tool string) bool
	Call(tool string, args map[string]any) (map[string]any, error)
}

// Deliverer receives bus entries addressed to its target.
type Deliverer interface {
	Target() string
	Deliver(payload bus.Payload)
}

// Snapshotter exposes a read-only state view for monitors and observations.
type Snapshotter interface {
	Name() string
	StateSnapshot() map[string]any
}

// domainError builds the inline error envelope for expected failures.
func domainError(code, message string) map[string]any {
	return map[string]any{
		"error": map[string]any{"code": code, "message": message},
	}
}

func strArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func int64Arg(args map[string]any, key string) (int64, bool) {
	switch v := args[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	}
	return 0, false
}

func floatArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func listArg(args map[string]any, key string) []any {
	if v, ok := args[key].([]any); ok {
		return v
	}
	return nil
}

func stringsArg(args map[string]any, key string) []string {
	var out []string
	for _, v := range listArg(args, key) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func hasPrefix(tool, prefix string) bool {
	return strings.HasPrefix(tool, prefix+".")
}
