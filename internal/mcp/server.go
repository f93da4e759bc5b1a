package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/strangeloopcanon/vei/internal/router"
)

// NewServer creates an MCP server exposing every registered tool, the
// vei.* meta surface included. Tool results are returned as one JSON text
// block; typed simulation errors come back as IsError results so the
// client sees the error code instead of a transport failure.
func NewServer(rt *router.Router) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "vei",
		Version: "0.1.0",
	}, nil)

	for _, spec := range rt.Registry().Specs() {
		tool := specToMCPTool(spec)
		toolName := spec.Name

		server.AddTool(tool, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			var args map[string]any
			if len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					return &mcpsdk.CallToolResult{
						IsError: true,
						Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "invalid arguments: " + err.Error()}},
					}, nil
				}
			}

			result, err := rt.Call(toolName, args)
			if err != nil {
				slog.Debug("mcp tool error", "tool", toolName, "error", err)
				return &mcpsdk.CallToolResult{
					IsError: true,
					Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
				}, nil
			}

			data, err := json.Marshal(result)
			if err != nil {
				return &mcpsdk.CallToolResult{
					IsError: true,
					Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "unencodable result: " + err.Error()}},
				}, nil
			}
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
			}, nil
		})

		slog.Debug("mcp tool registered", "tool", toolName)
	}

	return server
}

// RunStdio serves MCP over stdio until the context ends.
func RunStdio(ctx context.Context, rt *router.Router) error {
	return NewServer(rt).Run(ctx, &mcpsdk.StdioTransport{})
}
