package router

import (
	"github.com/strangeloopcanon/vei/internal/bus"
	"github.com/strangeloopcanon/vei/internal/registry"
	"github.com/strangeloopcanon/vei/internal/toolerr"
)

func metaSpecs() []*registry.Spec {
	return []*registry.Spec{
		{Name: "vei.observe", Description: "Observe the environment: pending events, focus summary and action menu"},
		{Name: "vei.tick", Description: "Advance logical time by dt_ms, delivering every due event"},
		{Name: "vei.pending", Description: "Count pending bus events by target"},
		{Name: "vei.ping", Description: "Liveness check returning the logical clock"},
		{Name: "vei.reset", Description: "Rebuild the simulation, optionally with a new seed"},
		{Name: "vei.state", Description: "Dump materialised state, tool tail and receipts"},
		{Name: "vei.help", Description: "List registered tools"},
		{Name: "vei.act_and_observe", Description: "Run one tool call, then observe"},
		{Name: "vei.call", Description: "Run one tool call by name"},
		{Name: "vei.inject", Description: "Schedule an event on the bus"},
	}
}

// metaCall handles the vei.* surface. Callers hold the router lock.
func (r *Router) metaCall(tool string, args map[string]any) (map[string]any, error) {
	switch tool {
	case "vei.observe":
		return r.observe(stringArg(args, "focus")), nil
	case "vei.tick":
		dt, ok := intArg(args, "dt_ms")
		if !ok {
			dt = StepGraceMS
		}
		delivered := r.tick(dt)
		return map[string]any{"time_ms": r.bus.Now(), "delivered": delivered}, nil
	case "vei.pending":
		return map[string]any{
			"count":     r.bus.PendingCount(""),
			"by_target": r.bus.PendingTargets(),
		}, nil
	case "vei.ping":
		return map[string]any{"ok": true, "time_ms": r.bus.Now()}, nil
	case "vei.reset":
		seed, _ := intArg(args, "seed")
		r.trace.Close()
		s := uint32(seed)
		if s == 0 {
			s = r.cfg.Seed
		}
		if err := r.init(s, r.seedScen); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true, "seed": s}, nil
	case "vei.state":
		return r.stateDump(args), nil
	case "vei.help":
		return r.help(), nil
	case "vei.act_and_observe":
		inner := stringArg(args, "tool")
		innerArgs, _ := args["args"].(map[string]any)
		result, err := r.dispatch(inner, innerArgs)
		if err != nil {
			return nil, err
		}
		obs := r.observe("")
		obs["result"] = result
		return obs, nil
	case "vei.call":
		inner := stringArg(args, "tool")
		innerArgs, _ := args["args"].(map[string]any)
		return r.dispatch(inner, innerArgs)
	case "vei.inject":
		target := stringArg(args, "target")
		if target == "" {
			return nil, toolerr.Newf(toolerr.CodeInvalidArgs, "inject requires a target")
		}
		payload, _ := args["payload"].(map[string]any)
		dt, _ := intArg(args, "dt_ms")
		entry := r.bus.Schedule(dt, target, bus.Payload(payload))
		return map[string]any{"due_ms": entry.Due, "target": target}, nil
	}
	return nil, toolerr.Newf(toolerr.CodeUnknownTool, "no tool %s", tool)
}

func (r *Router) stateDump(args map[string]any) map[string]any {
	out := map[string]any{
		"time_ms": r.bus.Now(),
		"branch":  r.store.Branch(),
		"head":    r.store.Head(),
	}
	if include, ok := args["include_state"].(bool); !ok || include {
		out["state"] = r.store.State()
		out["providers"] = r.stateSnapshot()
	}
	if n, ok := intArg(args, "tool_tail"); ok && n > 0 {
		tail, _ := r.store.State()["tool_calls"].([]any)
		if int64(len(tail)) > n {
			tail = tail[int64(len(tail))-n:]
		}
		out["tool_calls"] = tail
	}
	if include, _ := args["include_receipts"].(bool); include {
		out["receipts"] = r.store.Receipts()
	}
	return out
}

func (r *Router) help() map[string]any {
	specs := r.registry.Specs()
	tools := make([]map[string]any, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, map[string]any{
			"name":        s.Name,
			"description": s.Description,
			"permissions": s.Permissions,
		})
	}
	return map[string]any{"tools": tools, "count": len(tools)}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]any, key string) (int64, bool) {
	switch v := args[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}
