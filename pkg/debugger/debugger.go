// Package debugger implements the interactive resolution REPL for
// workflows.
package debugger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ormasoftchile/rulekit/pkg/kernel/resolve"
	"github.com/ormasoftchile/rulekit/pkg/kernel/rule"
)

// Debugger provides an interactive REPL for querying a loaded workflow:
// which rule produces a path, and which job a rule expands to.
type Debugger struct {
	resolver *resolve.Resolver
	workflow *rule.Workflow
	name     string
	output   io.Writer
	rl       *readline.Instance
	history  []*rule.Job
	width    int
}

// New creates a debugger over the resolver's workflow. name labels the
// prompt, usually the workflow file.
func New(r *resolve.Resolver, name string) *Debugger {
	return &Debugger{
		resolver: r,
		workflow: r.Workflow(),
		name:     name,
		output:   os.Stdout,
		width:    80,
	}
}

// SetOutput redirects command output.
func (d *Debugger) SetOutput(w io.Writer) { d.output = w }

// Run starts the interactive REPL loop.
func (d *Debugger) Run(ctx context.Context) error {
	ruleNames := readline.PcItemDynamic(func(string) []string { return d.ruleNames() })
	completer := readline.NewPrefixCompleter(
		readline.PcItem("match"),
		readline.PcItem("resolve"),
		readline.PcItem("expand", ruleNames),
		readline.PcItem("describe", ruleNames),
		readline.PcItem("rules"),
		readline.PcItem("order"),
		readline.PcItem("graph", readline.PcItem("ascii"), readline.PcItem("mermaid")),
		readline.PcItem("history"),
		readline.PcItem("show", readline.PcItem("json")),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          d.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdout:          d.output,
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	d.rl = rl
	defer rl.Close()
	if w := readline.GetScreenWidth(); w > 0 {
		d.width = w
	}

	fmt.Fprintf(d.output, "rulekit debugger: %d rules in %s\n", len(d.workflow.Rules()), d.name)
	fmt.Fprintf(d.output, "Type 'help' for available commands, 'resolve <path>' to resolve a file.\n\n")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rl.SetPrompt(d.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}
		if quit := d.Execute(line); quit {
			return nil
		}
	}
}

// Execute runs one command line and reports whether the session should
// end.
func (d *Debugger) Execute(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	parts := strings.Fields(line)
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "match", "m":
		d.handleMatch(args)
	case "resolve", "r":
		d.handleResolve(args)
	case "expand", "e":
		d.handleExpand(args)
	case "describe", "d":
		d.handleDescribe(args)
	case "rules", "ls":
		d.handleRules()
	case "order":
		d.handleOrder()
	case "graph", "g":
		d.handleGraph(args)
	case "history", "h":
		d.handleHistory()
	case "show", "s":
		d.handleShow(args)
	case "help", "?":
		d.handleHelp()
	case "quit", "q":
		fmt.Fprintf(d.output, "Exiting debugger.\n")
		return true
	default:
		fmt.Fprintf(d.output, "Unknown command: %q. Type 'help' for available commands.\n", cmd)
	}
	return false
}

// buildPrompt creates the prompt string: rulekit[file | last rule]>
func (d *Debugger) buildPrompt() string {
	if len(d.history) == 0 {
		return fmt.Sprintf("rulekit[%s]> ", d.name)
	}
	last := d.history[len(d.history)-1]
	return fmt.Sprintf("rulekit[%s | %s]> ", d.name, last.Rule)
}

func (d *Debugger) ruleNames() []string {
	var names []string
	for _, r := range d.workflow.Rules() {
		names = append(names, r.Name)
	}
	return names
}
