package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/rulekit/pkg/diagram"
	"github.com/ormasoftchile/rulekit/pkg/kernel/rule"
	"github.com/ormasoftchile/rulekit/pkg/render"
)

// --- rules ---

var rulesCmd = &cobra.Command{
	Use:   "rules [workflow.yaml]",
	Short: "List the rules of a workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runRules,
}

func runRules(cmd *cobra.Command, args []string) error {
	sess, err := open(args[0], nil)
	if err != nil {
		return err
	}
	if !flagJSON {
		fmt.Fprint(cmd.OutOrStdout(), render.Rules(sess.Workflow))
		return nil
	}
	type ruleJSON struct {
		Name       string   `json:"name"`
		Wildcards  []string `json:"wildcards,omitempty"`
		Input      []string `json:"input,omitempty"`
		Output     []string `json:"output"`
		Checkpoint bool     `json:"checkpoint,omitempty"`
	}
	var out []ruleJSON
	for _, r := range sess.Workflow.Rules() {
		rj := ruleJSON{Name: r.Name, Wildcards: r.WildcardNames(), Checkpoint: r.IsCheckpoint}
		for _, it := range r.Input().Items() {
			rj.Input = append(rj.Input, it.String())
		}
		for _, it := range r.Output().Items() {
			rj.Output = append(rj.Output, it.String())
		}
		out = append(out, rj)
	}
	return printJSON(cmd, out)
}

// --- describe ---

var describeWidth int

var describeCmd = &cobra.Command{
	Use:   "describe [workflow.yaml] [rule]",
	Short: "Show a rule's documentation and templates",
	Args:  cobra.ExactArgs(2),
	RunE:  runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	sess, err := open(args[0], nil)
	if err != nil {
		return err
	}
	r, ok := sess.Workflow.Rule(args[1])
	if !ok {
		return fmt.Errorf("no rule named %q", args[1])
	}
	fmt.Fprint(cmd.OutOrStdout(), render.Describe(r, describeWidth))
	return nil
}

// --- order ---

var orderCmd = &cobra.Command{
	Use:   "order [workflow.yaml] [ruleA ruleB]",
	Short: "Show the ruleorder clauses, or compare two rules",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 && len(args) != 3 {
			return fmt.Errorf("accepts a workflow and optionally two rule names, received %d args", len(args))
		}
		return nil
	},
	RunE: runOrder,
}

func runOrder(cmd *cobra.Command, args []string) error {
	sess, err := open(args[0], nil)
	if err != nil {
		return err
	}
	if len(args) == 3 {
		return compareRules(cmd, sess.Workflow, args[1], args[2])
	}
	clauses := sess.Workflow.Ruleorder.Clauses()
	if flagJSON {
		return printJSON(cmd, clauses)
	}
	if len(clauses) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No ruleorder declared.")
		return nil
	}
	for _, c := range clauses {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(c, " > "))
	}
	return nil
}

// compareRules reports which of two rules wins when both produce a file.
func compareRules(cmd *cobra.Command, w *rule.Workflow, a, b string) error {
	ra, ok := w.Rule(a)
	if !ok {
		return fmt.Errorf("no rule named %q", a)
	}
	rb, ok := w.Rule(b)
	if !ok {
		return fmt.Errorf("no rule named %q", b)
	}
	c := w.Ruleorder.Compare(ra, rb)
	if flagJSON {
		return printJSON(cmd, map[string]any{"a": a, "b": b, "compare": c})
	}
	switch {
	case c > 0:
		fmt.Fprintf(cmd.OutOrStdout(), "%s > %s\n", a, b)
	case c < 0:
		fmt.Fprintf(cmd.OutOrStdout(), "%s < %s\n", a, b)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (ambiguous)\n", a, b)
	}
	return nil
}

// --- graph ---

var graphFormat string

var graphCmd = &cobra.Command{
	Use:   "graph [workflow.yaml]",
	Short: "Draw the rule dependency graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	sess, err := open(args[0], nil)
	if err != nil {
		return err
	}
	if flagJSON {
		g := diagram.Build(sess.Workflow)
		return printJSON(cmd, map[string]any{"order": g.Order(), "edges": g.Edges})
	}
	out, err := diagram.Generate(sess.Workflow, diagram.Format(graphFormat))
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func init() {
	describeCmd.Flags().IntVar(&describeWidth, "width", 80, "Word-wrap width for the docstring")
	graphCmd.Flags().StringVar(&graphFormat, "format", "ascii", "Diagram format: ascii or mermaid")
}
