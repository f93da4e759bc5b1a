// Package mcp exposes the simulation's tool surface over the Model Context
// Protocol, so any MCP client can drive a run.
package mcp

import (
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/strangeloopcanon/vei/internal/registry"
)

// specToMCPTool converts a registry.Spec to an mcp.Tool. Registered schemas
// pass through verbatim; tools without one advertise a free-form object.
func specToMCPTool(spec *registry.Spec) *mcpsdk.Tool {
	inputSchema := spec.ArgsSchema
	if inputSchema == nil {
		inputSchema = map[string]any{"type": "object"}
	}
	return &mcpsdk.Tool{
		Name:        spec.Name,
		Description: spec.Description,
		InputSchema: inputSchema,
	}
}
