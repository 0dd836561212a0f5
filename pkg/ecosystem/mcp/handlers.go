package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/rulekit/pkg/diagram"
	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
	"github.com/ormasoftchile/rulekit/pkg/kernel/resolve"
	kschema "github.com/ormasoftchile/rulekit/pkg/kernel/schema"
	kvalidate "github.com/ormasoftchile/rulekit/pkg/kernel/validate"
	"github.com/ormasoftchile/rulekit/pkg/session"
)

// Handlers implements the rulekit MCP tools.
type Handlers struct {
	Options session.Options
}

// HandleValidate implements the rulekit/validate MCP tool.
func (h *Handlers) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	_, w, errs := kvalidate.ValidateFile(path)
	if kvalidate.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	msg := fmt.Sprintf("✓ %s is valid (%d rules)", path, len(w.Rules()))
	if warns := kvalidate.Warnings(errs); len(warns) > 0 {
		msg += "\n" + formatErrors(warns)
	}
	return textResult(msg), nil
}

// HandleRules implements the rulekit/rules MCP tool.
func (h *Handlers) HandleRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, res := h.open(req)
	if res != nil {
		return res, nil
	}
	type ruleJSON struct {
		Name       string   `json:"name"`
		Wildcards  []string `json:"wildcards,omitempty"`
		Output     []string `json:"output"`
		Checkpoint bool     `json:"checkpoint,omitempty"`
		Docstring  string   `json:"docstring,omitempty"`
	}
	var out []ruleJSON
	for _, r := range sess.Workflow.Rules() {
		rj := ruleJSON{
			Name:       r.Name,
			Wildcards:  r.WildcardNames(),
			Checkpoint: r.IsCheckpoint,
			Docstring:  r.Docstring,
		}
		for _, it := range r.Output().Items() {
			rj.Output = append(rj.Output, it.String())
		}
		out = append(out, rj)
	}
	return jsonResult(out)
}

// HandleMatch implements the rulekit/match MCP tool.
func (h *Handlers) HandleMatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	target, _ := args["target"].(string)
	if target == "" {
		return errorResult("target argument is required"), nil
	}
	sess, res := h.open(req)
	if res != nil {
		return res, nil
	}
	m, err := sess.Resolver.Match(target, wildcards(args))
	if err != nil {
		return resolutionError(err), nil
	}
	return jsonResult(map[string]any{
		"rule":       m.Rule.Name,
		"wildcards":  m.Wildcards,
		"candidates": m.Candidates,
	})
}

// HandleExpand implements the rulekit/expand MCP tool.
func (h *Handlers) HandleExpand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	target, _ := args["target"].(string)
	name, _ := args["rule"].(string)
	if target == "" && name == "" {
		return errorResult("either target or rule is required"), nil
	}
	sess, res := h.open(req)
	if res != nil {
		return res, nil
	}
	if target != "" {
		r, err := sess.Resolver.Resolve(target, wildcards(args))
		if err != nil {
			return resolutionError(err), nil
		}
		return jsonResult(r.Job)
	}
	job, err := sess.Resolver.Expand(name, wildcards(args))
	if err != nil {
		return resolutionError(err), nil
	}
	return jsonResult(job)
}

// HandleGraph implements the rulekit/graph MCP tool.
func (h *Handlers) HandleGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, _ := req.GetArguments()["format"].(string)
	if format == "" {
		format = string(diagram.FormatMermaid)
	}
	sess, res := h.open(req)
	if res != nil {
		return res, nil
	}
	out, err := diagram.Generate(sess.Workflow, diagram.Format(format))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(out), nil
}

// HandleSchema implements the rulekit/schema MCP tool.
func (h *Handlers) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := kschema.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// open loads the workflow named by the path argument. A non-nil result
// reports the failure to the caller.
func (h *Handlers) open(req mcp.CallToolRequest) (*session.Session, *mcp.CallToolResult) {
	path, _ := req.GetArguments()["path"].(string)
	if path == "" {
		return nil, errorResult("path argument is required")
	}
	sess, err := session.Open(path, h.Options)
	if err != nil {
		return nil, errorResult(fmt.Sprintf("load workflow: %s", err))
	}
	return sess, nil
}

func wildcards(args map[string]any) pattern.Wildcards {
	raw, ok := args["wildcards"].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	wc := make(pattern.Wildcards, len(raw))
	for k, v := range raw {
		wc[k] = fmt.Sprint(v)
	}
	return wc
}

func formatErrors(errs []*kvalidate.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func resolutionError(err error) *mcp.CallToolResult {
	return errorResult(fmt.Sprintf("%s: %s", resolve.Kind(err), err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
