// Package registry holds tool metadata and ranked tool search.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/strangeloopcanon/vei/internal/toolerr"
)

// Spec describes one registered tool.
type Spec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Permissions []string       `json:"permissions,omitempty"`
	SideEffects []string       `json:"side_effects,omitempty"`
	LatencyMS   int64          `json:"latency_ms"`
	JitterMS    int64          `json:"latency_jitter_ms"`
	Cost        float64        `json:"cost"`
	FaultProb   float64        `json:"fault_probability"`
	Returns     string         `json:"returns,omitempty"`
	ArgsSchema  map[string]any `json:"args_schema,omitempty"`
}

// Registry owns ToolSpecs keyed by unique name. Registration is forbidden
// once the router starts (Freeze).
type Registry struct {
	mu       sync.RWMutex
	specs    map[string]*Spec
	compiled map[string]*jsonschema.Schema
	frozen   bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		specs:    map[string]*Spec{},
		compiled: map[string]*jsonschema.Schema{},
	}
}

// Register adds a spec. Duplicate names and post-freeze registration fail.
func (r *Registry) Register(spec *Spec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("registry frozen, cannot register %q", spec.Name)
	}
	if spec.Name == "" {
		return fmt.Errorf("tool spec without a name")
	}
	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("tool %q already registered", spec.Name)
	}
	r.specs[spec.Name] = spec
	return nil
}

// Freeze forbids further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Get returns the spec for name, or nil.
func (r *Registry) Get(name string) *Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.specs[name]
}

// Names returns all tool names in ascending order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns all specs ordered by name.
func (r *Registry) Specs() []*Spec {
	out := make([]*Spec, 0)
	for _, name := range r.Names() {
		out = append(out, r.Get(name))
	}
	return out
}

var tokenSplit = func(c rune) bool {
	switch c {
	case '.', '-', ':', '/', '_', ' ', '\t', '\n':
		return true
	}
	return false
}

// Search ranks specs against query. Empty queries and queries with no
// positive score fall back to the alphabetical head.
func (r *Registry) Search(query string, topK int) []*Spec {
	if topK <= 0 {
		topK = 5
	}
	all := r.Specs()
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return head(all, topK)
	}
	qtokens := strings.FieldsFunc(q, tokenSplit)

	type scored struct {
		spec  *Spec
		score float64
	}
	var ranked []scored
	for _, spec := range all {
		s := score(spec, q, qtokens)
		if s > 0 {
			ranked = append(ranked, scored{spec, s})
		}
	}
	if len(ranked) == 0 {
		return head(all, topK)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].spec.Name < ranked[j].spec.Name
	})
	out := make([]*Spec, 0, topK)
	for _, rs := range ranked {
		out = append(out, rs.spec)
		if len(out) == topK {
			break
		}
	}
	return out
}

func score(spec *Spec, q string, qtokens []string) float64 {
	name := strings.ToLower(spec.Name)
	desc := strings.ToLower(spec.Description)
	nameTokens := strings.FieldsFunc(name, tokenSplit)
	descTokens := strings.FieldsFunc(desc, tokenSplit)

	var s float64
	if strings.Contains(name, q) {
		s += 6
	}
	if strings.Contains(desc, q) {
		s += 2.5
	}
	for _, qt := range qtokens {
		exact := false
		for _, nt := range nameTokens {
			if nt == qt {
				exact = true
				break
			}
		}
		if exact {
			s += 3
		} else {
			for _, nt := range nameTokens {
				if strings.HasPrefix(nt, qt) {
					s += 1.5
					break
				}
			}
		}
		for _, dt := range descTokens {
			if dt == qt {
				s += 1.0
				break
			}
		}
	}
	if s > 0 && strings.HasPrefix(name, "vei.") {
		s += 0.25
	}
	return s
}

func head(specs []*Spec, topK int) []*Spec {
	if len(specs) > topK {
		specs = specs[:topK]
	}
	return specs
}

// ValidateArgs checks args against the tool's schema, when one is declared.
// Violations surface as invalid_args.
func (r *Registry) ValidateArgs(name string, args map[string]any) error {
	spec := r.Get(name)
	if spec == nil || spec.ArgsSchema == nil {
		return nil
	}
	sch, err := r.compile(name, spec.ArgsSchema)
	if err != nil {
		return nil // a broken schema never blocks a call
	}
	// Round-trip so Go-native numbers validate like decoded JSON.
	data, err := json.Marshal(args)
	if err != nil {
		return toolerr.Newf(toolerr.CodeInvalidArgs, "unencodable arguments for %s", name)
	}
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return toolerr.Newf(toolerr.CodeInvalidArgs, "unencodable arguments for %s", name)
	}
	if err := sch.Validate(value); err != nil {
		return toolerr.Newf(toolerr.CodeInvalidArgs, "invalid arguments for %s: %v", name, err)
	}
	return nil
}

func (r *Registry) compile(name string, raw map[string]any) (*jsonschema.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sch, ok := r.compiled[name]; ok {
		return sch, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	url := "mem://" + name + ".json"
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, err
	}
	r.compiled[name] = sch
	return sch, nil
}

// ObjectSchema is a helper for the common object-with-required-strings shape.
func ObjectSchema(required []string, props map[string]any) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
