package providers

import (
	"fmt"
	"strings"

	"github.com/strangeloopcanon/vei/internal/registry"
	"github.com/strangeloopcanon/vei/internal/toolerr"
)

type doc struct {
	ID      string
	Title   string
	Body    string
	History []map[string]any
}

// Docs is a simple document store with append-only per-document history.
type Docs struct {
	env  *Env
	docs map[string]*doc
	seq  int
}

// NewDocs seeds documents from the scenario.
func NewDocs(env *Env) *Docs {
	d := &Docs{env: env, docs: map[string]*doc{}}
	for _, sd := range env.Scenario.Documents {
		d.docs[sd.ID] = &doc{ID: sd.ID, Title: sd.Title, Body: sd.Body}
		d.seq++
	}
	return d
}

func (d *Docs) Specs() []*registry.Spec {
	return []*registry.Spec{
		{Name: "docs.create", Description: "Create a document", Permissions: []string{"docs.write"}, SideEffects: []string{"docs"}, LatencyMS: 80, JitterMS: 30, Cost: 0.02,
			ArgsSchema: registry.ObjectSchema([]string{"title"}, map[string]any{
				"title": map[string]any{"type": "string"},
				"body":  map[string]any{"type": "string"},
			})},
		{Name: "docs.read", Description: "Read a document by id", Permissions: []string{"docs.read"}, LatencyMS: 40, JitterMS: 15, Cost: 0.01},
		{Name: "docs.update", Description: "Replace a document body", Permissions: []string{"docs.write"}, SideEffects: []string{"docs"}, LatencyMS: 80, JitterMS: 30, Cost: 0.02},
		{Name: "docs.list", Description: "List documents", Permissions: []string{"docs.read"}, LatencyMS: 40, JitterMS: 15, Cost: 0.01},
		{Name: "docs.search", Description: "Search documents by title or body substring", Permissions: []string{"docs.read"}, LatencyMS: 60, JitterMS: 20, Cost: 0.01},
	}
}

func (d *Docs) Handles(tool string) bool { return hasPrefix(tool, "docs") }

func (d *Docs) Call(tool string, args map[string]any) (map[string]any, error) {
	switch tool {
	case "docs.create":
		d.seq++
		nd := &doc{
			ID:    fmt.Sprintf("doc-%d", d.seq),
			Title: strArg(args, "title"),
			Body:  strArg(args, "body"),
		}
		d.docs[nd.ID] = nd
		return map[string]any{"doc_id": nd.ID}, nil
	case "docs.read":
		nd, ok := d.docs[strArg(args, "doc_id")]
		if !ok {
			return domainError("unknown_doc", "no document "+strArg(args, "doc_id")), nil
		}
		return map[string]any{"doc_id": nd.ID, "title": nd.Title, "body": nd.Body, "history": nd.History}, nil
	case "docs.update":
		nd, ok := d.docs[strArg(args, "doc_id")]
		if !ok {
			return domainError("unknown_doc", "no document "+strArg(args, "doc_id")), nil
		}
		nd.Body = strArg(args, "body")
		nd.History = append(nd.History, map[string]any{
			"update": "body", "time_ms": d.env.Bus.Now(),
		})
		return map[string]any{"doc_id": nd.ID, "revisions": len(nd.History)}, nil
	case "docs.list":
		ids := sortedKeys(d.docs)
		out := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			out = append(out, map[string]any{"doc_id": id, "title": d.docs[id].Title})
		}
		return map[string]any{"docs": out}, nil
	case "docs.search":
		q := strings.ToLower(strArg(args, "query"))
		var hits []map[string]any
		for _, id := range sortedKeys(d.docs) {
			nd := d.docs[id]
			if q == "" || strings.Contains(strings.ToLower(nd.Title), q) || strings.Contains(strings.ToLower(nd.Body), q) {
				hits = append(hits, map[string]any{"doc_id": nd.ID, "title": nd.Title})
			}
		}
		return map[string]any{"hits": hits}, nil
	}
	return nil, toolerr.Newf(toolerr.CodeUnsupportedTool, "docs does not handle %s", tool)
}

func (d *Docs) Name() string { return "docs" }

func (d *Docs) StateSnapshot() map[string]any {
	titles := make([]string, 0, len(d.docs))
	for _, id := range sortedKeys(d.docs) {
		titles = append(titles, d.docs[id].Title)
	}
	return map[string]any{"count": len(d.docs), "titles": titles}
}
