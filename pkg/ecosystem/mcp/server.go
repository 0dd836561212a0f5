package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/rulekit/pkg/session"
)

// NewServer creates a new MCP server with rulekit tools registered.
// Workflows are opened with opts on every call.
func NewServer(version string, opts session.Options) *server.MCPServer {
	s := server.NewMCPServer(
		"rulekit",
		version,
		server.WithToolCapabilities(true),
	)
	h := &Handlers{Options: opts}

	s.AddTool(
		mcp.NewTool("rulekit/validate",
			mcp.WithDescription("Validate a rulekit workflow file (YAML or TOML)"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow file")),
		),
		h.HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("rulekit/rules",
			mcp.WithDescription("List the rules of a workflow with their wildcards and output templates"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow file")),
		),
		h.HandleRules,
	)

	s.AddTool(
		mcp.NewTool("rulekit/match",
			mcp.WithDescription("Find the rule producing a target file and the wildcard values it implies"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow file")),
			mcp.WithString("target", mcp.Required(), mcp.Description("Requested output path")),
			mcp.WithObject("wildcards", mcp.Description("Known wildcard values (optional)")),
		),
		h.HandleMatch,
	)

	s.AddTool(
		mcp.NewTool("rulekit/expand",
			mcp.WithDescription("Expand a job, either for a target file or for a rule and wildcard values"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow file")),
			mcp.WithString("target", mcp.Description("Requested output path")),
			mcp.WithString("rule", mcp.Description("Rule name, used when no target is given")),
			mcp.WithObject("wildcards", mcp.Description("Wildcard values")),
		),
		h.HandleExpand,
	)

	s.AddTool(
		mcp.NewTool("rulekit/graph",
			mcp.WithDescription("Draw the rule dependency graph"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow file")),
			mcp.WithString("format", mcp.Description("Diagram format: 'mermaid' (default) or 'ascii'")),
		),
		h.HandleGraph,
	)

	s.AddTool(
		mcp.NewTool("rulekit/schema",
			mcp.WithDescription("Export the rulekit/v0 workflow JSON Schema"),
		),
		h.HandleSchema,
	)

	return s
}
