package mcp

import (
	"encoding/json"
	"testing"

	"github.com/strangeloopcanon/vei/internal/config"
	"github.com/strangeloopcanon/vei/internal/registry"
	"github.com/strangeloopcanon/vei/internal/router"
)

func TestSpecToMCPTool(t *testing.T) {
	spec := &registry.Spec{
		Name:        "mail.compose",
		Description: "Send an email",
		ArgsSchema: registry.ObjectSchema([]string{"to", "subj"}, map[string]any{
			"to":        map[string]any{"type": "string"},
			"subj":      map[string]any{"type": "string"},
			"body_text": map[string]any{"type": "string"},
		}),
	}

	tool := specToMCPTool(spec)
	if tool.Name != "mail.compose" {
		t.Errorf("Name = %q, want %q", tool.Name, "mail.compose")
	}

	schemaBytes, err := json.Marshal(tool.InputSchema)
	if err != nil {
		t.Fatalf("marshal InputSchema: %v", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(schemaBytes, &schema); err != nil {
		t.Fatalf("unmarshal InputSchema: %v", err)
	}
	if schema["type"] != "object" {
		t.Errorf("schema type = %v, want %q", schema["type"], "object")
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok || len(props) != 3 {
		t.Fatalf("schema properties = %v, want 3 entries", schema["properties"])
	}
	req, ok := schema["required"].([]any)
	if !ok || len(req) != 2 {
		t.Fatalf("schema required = %v, want 2 entries", schema["required"])
	}
}

func TestSpecToMCPToolNoSchema(t *testing.T) {
	tool := specToMCPTool(&registry.Spec{Name: "vei.ping", Description: "Liveness check"})

	schemaBytes, err := json.Marshal(tool.InputSchema)
	if err != nil {
		t.Fatalf("marshal InputSchema: %v", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(schemaBytes, &schema); err != nil {
		t.Fatalf("unmarshal InputSchema: %v", err)
	}
	if schema["type"] != "object" {
		t.Errorf("schema type = %v, want %q", schema["type"], "object")
	}
	if _, ok := schema["required"]; ok {
		t.Error("schema should not carry required without declared args")
	}
}

func TestNewServer(t *testing.T) {
	cfg := config.Default()
	cfg.ArtifactsDir = t.TempDir()
	cfg.StateDir = t.TempDir()

	rt, err := router.New(cfg, nil)
	if err != nil {
		t.Fatalf("router.New: %v", err)
	}
	defer rt.Close()

	server := NewServer(rt)
	if server == nil {
		t.Fatal("NewServer returned nil")
	}
}
