// Package router wires the simulation together: tool registry, providers,
// event bus, trace, state store, monitors, policy and drift. One router
// runs one simulation; all calls serialise behind its lock.
package router

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/strangeloopcanon/vei/internal/alias"
	"github.com/strangeloopcanon/vei/internal/bus"
	"github.com/strangeloopcanon/vei/internal/config"
	"github.com/strangeloopcanon/vei/internal/drift"
	"github.com/strangeloopcanon/vei/internal/monitors"
	"github.com/strangeloopcanon/vei/internal/policy"
	"github.com/strangeloopcanon/vei/internal/providers"
	"github.com/strangeloopcanon/vei/internal/registry"
	"github.com/strangeloopcanon/vei/internal/scenario"
	"github.com/strangeloopcanon/vei/internal/simrand"
	"github.com/strangeloopcanon/vei/internal/store"
	"github.com/strangeloopcanon/vei/internal/toolerr"
	"github.com/strangeloopcanon/vei/internal/trace"
)

// StepGraceMS is the fixed clock advance applied after every call or
// observation (the one-tick-per-step rule).
const StepGraceMS = 1000

// ToolTailLimit bounds the tool_calls tail kept in materialised state.
const ToolTailLimit = 200

// Router is one simulation instance.
type Router struct {
	mu       sync.Mutex
	cfg      *config.Config
	seedScen *scenario.Scenario // explicit scenario, survives Reset

	bus      *bus.Bus
	rng      *simrand.Stream
	scen     *scenario.Scenario
	registry *registry.Registry
	trace    *trace.Logger
	store    *store.Store
	monitors *monitors.Manager
	policy   *policy.Engine
	drift    *drift.Engine
	aliases  map[string]string
	deny     map[string]bool

	provs      []providers.Provider
	deliverers map[string]providers.Deliverer
	snaps      []providers.Snapshotter

	chat    *providers.Chat
	mail    *providers.Mail
	browser *providers.Browser
}

// New builds a simulation from cfg. The scenario source is, in order of
// preference: explicit scenario object (scen != nil), cfg.ScenarioPath, a
// random or named pick from the built-in pack, the built-in default.
func New(cfg *config.Config, scen *scenario.Scenario) (*Router, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	r := &Router{cfg: cfg, seedScen: scen}
	if err := r.init(cfg.Seed, scen); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Router) init(seed uint32, scen *scenario.Scenario) error {
	cfg := r.cfg
	if scen == nil {
		switch {
		case cfg.ScenarioPath != "":
			loaded, err := scenario.LoadFile(cfg.ScenarioPath, seed)
			if err != nil {
				return err
			}
			scen = loaded
		case cfg.RandomScenario:
			scen = scenario.RandomFromPack(seed)
		case cfg.ScenarioPack != "":
			picked, err := scenario.FromPack(cfg.ScenarioPack)
			if err != nil {
				return err
			}
			scen = picked
		default:
			scen = scenario.Default()
		}
	}

	r.bus = bus.New()
	r.rng = simrand.New(seed)
	r.scen = scen
	r.registry = registry.New()
	r.trace = trace.NewLogger(cfg.ArtifactsDir)
	if cfg.StreamEndpoint != "" {
		r.trace.SetStreamer(trace.NewStreamer(cfg.StreamEndpoint, 0))
	}
	r.store = store.Open(cfg.StateDir, cfg.Branch)
	r.registerReducers()
	r.monitors = monitors.NewManager(cfg.Monitors)
	r.policy = policy.NewEngine(policy.ParsePromotions(cfg.Promotions))
	r.drift = drift.New(r.bus, simrand.New(cfg.DriftSeed), cfg.DriftMode)

	r.deny = map[string]bool{}
	for _, tool := range cfg.DenyTools {
		r.deny[tool] = true
	}

	env := &providers.Env{
		Bus:          r.bus,
		RNG:          r.rng,
		Scenario:     scen,
		ERPErrorRate: cfg.ERPErrorRate,
		CRMErrorRate: cfg.CRMErrorRate,
	}
	r.chat = providers.NewChat(env)
	r.mail = providers.NewMail(env)
	r.browser = providers.NewBrowser(env)
	erp := providers.NewERP(env)
	crm := providers.NewCRM(env)
	identity := providers.NewIdentity(env)
	docs := providers.NewDocs(env)
	tickets := providers.NewTickets(env)
	calendar := providers.NewCalendar(env)
	desk := providers.NewServiceDesk(env)

	r.provs = []providers.Provider{
		r.chat, r.mail, r.browser, erp, crm, identity, docs, tickets, calendar, desk,
	}
	r.deliverers = map[string]providers.Deliverer{}
	r.snaps = nil
	for _, p := range r.provs {
		for _, spec := range p.Specs() {
			spec.FaultProb *= cfg.FaultScale
			if err := r.registry.Register(spec); err != nil {
				return fmt.Errorf("register %s: %w", spec.Name, err)
			}
		}
		if d, ok := p.(providers.Deliverer); ok {
			r.deliverers[d.Target()] = d
		}
		if s, ok := p.(providers.Snapshotter); ok {
			r.snaps = append(r.snaps, s)
		}
	}

	r.aliases = alias.Resolve(cfg.AliasPacks)
	for aliasName, base := range r.aliases {
		baseSpec := r.registry.Get(base)
		if baseSpec == nil {
			continue
		}
		cloned := *baseSpec
		cloned.Name = aliasName
		cloned.Description = baseSpec.Description + " (alias of " + base + ")"
		if err := r.registry.Register(&cloned); err != nil {
			return fmt.Errorf("register alias %s: %w", aliasName, err)
		}
	}
	for _, spec := range metaSpecs() {
		if err := r.registry.Register(spec); err != nil {
			return fmt.Errorf("register %s: %w", spec.Name, err)
		}
	}
	r.registry.Freeze()

	for _, tr := range scen.Triggers {
		r.bus.Schedule(tr.AtMS, tr.Target, bus.Payload(tr.Payload))
	}
	r.drift.Prime()

	slog.Debug("simulation initialised",
		"scenario", scen.Name, "seed", seed,
		"drift", cfg.DriftMode, "tools", len(r.registry.Names()))
	return nil
}

func (r *Router) registerReducers() {
	tail := func(key string) store.Reducer {
		return func(state map[string]any, ev store.Event) {
			list, _ := state[key].([]any)
			list = append(list, ev.Payload)
			if len(list) > ToolTailLimit {
				list = list[len(list)-ToolTailLimit:]
			}
			state[key] = list
		}
	}
	r.store.RegisterReducer("tool_calls", tail("tool_calls"))
	r.store.RegisterReducer("monitor_findings", tail("monitor_findings"))
	r.store.RegisterReducer("policy_findings", tail("policy_findings"))
	r.store.RegisterReducer("drift.delivered", func(state map[string]any, ev store.Event) {
		d, _ := state["drift"].(map[string]any)
		if d == nil {
			d = map[string]any{"delivered": 0, "by_job": map[string]any{}}
		}
		d["delivered"] = stateInt(d["delivered"]) + 1
		byJob, _ := d["by_job"].(map[string]any)
		if byJob == nil {
			byJob = map[string]any{}
		}
		if job, ok := ev.Payload["job"].(string); ok {
			byJob[job] = stateInt(byJob[job]) + 1
		}
		d["by_job"] = byJob
		state["drift"] = d
	})
}

// stateInt reads a counter from materialised state. Snapshot and branch
// copies go through a JSON round-trip that turns ints into float64.
func stateInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// Scenario returns the compiled scenario.
func (r *Router) Scenario() *scenario.Scenario { return r.scen }

// Registry exposes the frozen tool registry.
func (r *Router) Registry() *registry.Registry { return r.registry }

// Trace exposes the trace logger (for adapters subscribing to lines).
func (r *Router) Trace() *trace.Logger { return r.trace }

// Store exposes the state store.
func (r *Router) Store() *store.Store { return r.store }

// Now returns the logical clock.
func (r *Router) Now() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bus.Now()
}

// Call executes one tool call: meta tools directly, everything else via
// the dispatch pipeline.
func (r *Router) Call(tool string, args map[string]any) (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if args == nil {
		args = map[string]any{}
	}
	if strings.HasPrefix(tool, "vei.") {
		return r.metaCall(tool, args)
	}
	return r.dispatch(tool, args)
}

// dispatch runs the full pipeline for a domain tool.
func (r *Router) dispatch(tool string, args map[string]any) (map[string]any, error) {
	spec := r.registry.Get(tool)
	if spec == nil {
		return nil, r.failCall(tool, args, toolerr.Newf(toolerr.CodeUnknownTool, "no tool %s", tool))
	}
	target := tool
	if base, ok := r.aliases[tool]; ok {
		target = base
	}
	if r.deny[tool] || r.deny[target] {
		return nil, r.failCall(tool, args, toolerr.Newf(toolerr.CodePermissionDenied, "%s is denied by policy", tool))
	}
	if err := r.registry.ValidateArgs(tool, args); err != nil {
		return nil, r.failCall(tool, args, err)
	}
	if p := spec.FaultProb; p > 0 && r.rng.NextFloat() < p {
		return nil, r.failCall(tool, args, toolerr.Newf(toolerr.CodeFaultInjected, "injected fault on %s", tool))
	}

	latency := spec.LatencyMS
	if spec.JitterMS > 0 {
		latency += r.rng.IntN(0, spec.JitterMS)
	}
	r.bus.Advance(latency)

	provider := r.providerFor(target)
	if provider == nil {
		return nil, r.failCall(tool, args, toolerr.Newf(toolerr.CodeUnsupportedTool, "no provider for %s", target))
	}
	result, err := provider.Call(target, args)
	if err != nil {
		return nil, r.failCall(tool, args, err)
	}
	r.finishCall(tool, args, result, nil)
	return result, nil
}

func (r *Router) providerFor(tool string) providers.Provider {
	for _, p := range r.provs {
		if p.Handles(tool) {
			return p
		}
	}
	return nil
}

// failCall records an errored call through the same post-call pipeline,
// then returns the error for the adapter to surface.
func (r *Router) failCall(tool string, args map[string]any, err error) error {
	response := map[string]any{
		"error": map[string]any{
			"code":    toolerr.CodeOf(err),
			"message": toolerr.MessageOf(err),
		},
	}
	r.finishCall(tool, args, response, err)
	return err
}

// finishCall runs steps shared by success and failure: trace, state tail,
// single-event drain, grace advance, monitors, policy, flush.
func (r *Router) finishCall(tool string, args, response map[string]any, callErr error) {
	now := r.bus.Now()
	r.trace.RecordCall(tool, args, response, now)
	r.store.Append("tool_calls", map[string]any{
		"tool": tool, "args": args, "time_ms": now, "ok": callErr == nil,
	}, now, nil)

	r.drainOne()
	r.bus.Advance(StepGraceMS)

	r.runMonitors(tool, args, response, callErr)
	r.trace.Flush()
}

// drainOne delivers at most one due event.
func (r *Router) drainOne() {
	entry, ok := r.bus.NextIfDue()
	if !ok {
		return
	}
	r.deliver(entry)
}

// deliver routes an entry to its target twin, records drift re-arms and
// traces the delivery.
func (r *Router) deliver(entry *bus.Entry) {
	if job, isDrift := r.drift.HandleDelivery(entry.Payload); isDrift {
		r.store.Append("drift.delivered", map[string]any{
			"job": job, "target": entry.Target,
		}, r.bus.Now(), nil)
	}
	emitted := false
	if d, ok := r.deliverers[entry.Target]; ok {
		d.Deliver(entry.Payload)
		emitted = true
	}
	r.trace.RecordEvent(entry.Target, entry.Payload, emitted, r.bus.Now())
}

func (r *Router) runMonitors(tool string, args, response map[string]any, callErr error) {
	snapshot := r.stateSnapshot()
	found := r.monitors.OnToolCall(tool, args, response, callErr, r.bus.Now(), snapshot)
	if len(found) == 0 {
		return
	}
	now := r.bus.Now()
	for _, f := range found {
		r.store.Append("monitor_findings", map[string]any{
			"monitor": f.Monitor, "code": f.Code, "message": f.Message, "tool": f.Tool,
		}, now, nil)
	}
	for _, pf := range r.policy.Evaluate(found) {
		r.store.Append("policy_findings", map[string]any{
			"code": pf.Code, "severity": pf.Severity, "message": pf.Message, "tool": pf.Tool,
		}, now, nil)
	}
}

// stateSnapshot collects every provider's read-only view.
func (r *Router) stateSnapshot() map[string]map[string]any {
	out := make(map[string]map[string]any, len(r.snaps))
	for _, s := range r.snaps {
		out[s.Name()] = s.StateSnapshot()
	}
	return out
}

// tick delivers every event due within dt, using each event's due time as
// the delivery clock, then settles at start+dt.
func (r *Router) tick(dt int64) int {
	if dt < 0 {
		dt = 0
	}
	start := r.bus.Now()
	delivered := 0
	for {
		due, ok := r.bus.PeekDue()
		if !ok || due > start+dt {
			break
		}
		r.bus.SetClock(due)
		entry, ok := r.bus.NextIfDue()
		if !ok {
			break
		}
		r.deliver(entry)
		delivered++
	}
	r.bus.SetClock(start + dt)
	r.trace.Flush()
	return delivered
}

// Reset rebuilds the simulation from scratch. A zero seed keeps the
// configured seed.
func (r *Router) Reset(seed uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace.Close()
	if seed == 0 {
		seed = r.cfg.Seed
	}
	return r.init(seed, r.seedScen)
}

// Close flushes and shuts down the trace sink.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace.Close()
}
