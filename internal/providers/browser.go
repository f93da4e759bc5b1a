package providers

import (
	"strings"

	"github.com/strangeloopcanon/vei/internal/registry"
	"github.com/strangeloopcanon/vei/internal/scenario"
	"github.com/strangeloopcanon/vei/internal/toolerr"
)

// Browser walks the scenario's directed node graph. Navigation is pure
// state transition; pages never change underneath the agent.
type Browser struct {
	env     *Env
	current string
}

// NewBrowser starts at the scenario's start node.
func NewBrowser(env *Env) *Browser {
	return &Browser{env: env, current: env.Scenario.BrowserStart}
}

func (b *Browser) node() *scenario.Node {
	return b.env.Scenario.BrowserNodes[b.current]
}

func (b *Browser) Specs() []*registry.Spec {
	return []*registry.Spec{
		{
			Name:        "browser.read",
			Description: "Read the current page: url, title and excerpt",
			Permissions: []string{"web.read"},
			LatencyMS:   80, JitterMS: 40, Cost: 0.01,
		},
		{
			Name:        "browser.find",
			Description: "Find clickable affordances on the current page",
			Permissions: []string{"web.read"},
			LatencyMS:   60, JitterMS: 30, Cost: 0.01,
			Returns: "list of {tool, node_id, label} hits",
		},
		{
			Name:        "browser.click",
			Description: "Click an affordance by node_id and navigate to it",
			Permissions: []string{"web.read"},
			SideEffects: []string{"navigation"},
			LatencyMS:   120, JitterMS: 60, Cost: 0.01,
			ArgsSchema: registry.ObjectSchema([]string{"node_id"}, map[string]any{
				"node_id": map[string]any{"type": "string"},
			}),
		},
		{
			Name:        "browser.back",
			Description: "Navigate back to the parent page",
			Permissions: []string{"web.read"},
			SideEffects: []string{"navigation"},
			LatencyMS:   60, JitterMS: 20, Cost: 0.01,
		},
		{
			Name:        "browser.open",
			Description: "Open a url directly",
			Permissions: []string{"web.read"},
			SideEffects: []string{"navigation"},
			LatencyMS:   100, JitterMS: 50, Cost: 0.01,
		},
	}
}

func (b *Browser) Handles(tool string) bool { return hasPrefix(tool, "browser") }

func (b *Browser) Call(tool string, args map[string]any) (map[string]any, error) {
	switch tool {
	case "browser.read":
		return b.read(), nil
	case "browser.find":
		return b.find(args), nil
	case "browser.click":
		return b.click(args)
	case "browser.back":
		return b.back(), nil
	case "browser.open":
		return b.open(args), nil
	}
	return nil, toolerr.Newf(toolerr.CodeUnsupportedTool, "browser does not handle %s", tool)
}

func (b *Browser) read() map[string]any {
	n := b.node()
	if n == nil {
		return map[string]any{"url": "", "title": "", "excerpt": ""}
	}
	return map[string]any{"url": n.URL, "title": n.Title, "excerpt": n.Excerpt}
}

// find lists affordances with a concrete node_id, excluding BACK edges.
// A non-empty query filters by case-insensitive label match.
func (b *Browser) find(args map[string]any) map[string]any {
	n := b.node()
	topK, ok := int64Arg(args, "top_k")
	if !ok || topK <= 0 {
		topK = 5
	}
	query := strings.ToLower(strArg(args, "query"))

	hits := []map[string]any{}
	if n != nil {
		for _, a := range n.Affordances {
			if a.NodeID == "" || a.NodeID == scenario.BackKey {
				continue
			}
			if query != "" && !strings.Contains(strings.ToLower(a.Label), query) {
				continue
			}
			hits = append(hits, map[string]any{
				"tool": a.Tool, "node_id": a.NodeID, "label": a.Label,
			})
			if int64(len(hits)) == topK {
				break
			}
		}
	}
	return map[string]any{"hits": hits}
}

func (b *Browser) click(args map[string]any) (map[string]any, error) {
	nodeID := strArg(args, "node_id")
	n := b.node()
	if n == nil {
		return nil, toolerr.Newf(toolerr.CodeInvalidAction, "no current page")
	}
	next, ok := n.Next[nodeID]
	if !ok {
		return nil, toolerr.Newf(toolerr.CodeInvalidAction, "no affordance %q on %s", nodeID, b.current)
	}
	b.current = next
	return b.read(), nil
}

// back follows the recorded BACK edge, or stays put when there is none.
func (b *Browser) back() map[string]any {
	if n := b.node(); n != nil {
		if parent, ok := n.Next[scenario.BackKey]; ok {
			b.current = parent
		}
	}
	return b.read()
}

func (b *Browser) open(args map[string]any) map[string]any {
	url := strArg(args, "url")
	for id, n := range b.env.Scenario.BrowserNodes {
		if n.URL == url {
			b.current = id
			return b.read()
		}
	}
	if strings.Contains(url, "pdp") {
		if _, ok := b.env.Scenario.BrowserNodes["pdp"]; ok {
			b.current = "pdp"
			return b.read()
		}
	}
	if _, ok := b.env.Scenario.BrowserNodes["home"]; ok {
		b.current = "home"
	} else {
		b.current = b.env.Scenario.BrowserStart
	}
	return b.read()
}

func (b *Browser) Name() string { return "browser" }

func (b *Browser) StateSnapshot() map[string]any {
	snap := map[string]any{"node": b.current}
	if n := b.node(); n != nil {
		snap["url"] = n.URL
		snap["title"] = n.Title
	}
	return snap
}

// Current returns the focused node, or nil.
func (b *Browser) Current() *scenario.Node { return b.node() }
