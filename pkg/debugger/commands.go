package debugger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ormasoftchile/rulekit/pkg/diagram"
	"github.com/ormasoftchile/rulekit/pkg/kernel/resolve"
	"github.com/ormasoftchile/rulekit/pkg/render"
)

// handleMatch shows the producer of a path without expanding it.
func (d *Debugger) handleMatch(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(d.output, "Usage: match <path> [name=value ...]\n")
		return
	}
	hint, err := resolve.ParseWildcards(args[1:])
	if err != nil {
		d.printError(err)
		return
	}
	m, err := d.resolver.Match(args[0], hint)
	if err != nil {
		d.printError(err)
		return
	}
	pairs := [][2]string{
		{"rule", m.Rule.Name},
		{"wildcards", m.Wildcards.String()},
	}
	if len(m.Candidates) > 1 {
		pairs = append(pairs, [2]string{"candidates", strings.Join(m.Candidates, ", ")})
	}
	fmt.Fprint(d.output, render.KeyValues(pairs))
}

// handleResolve matches a path and expands the producing job.
func (d *Debugger) handleResolve(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(d.output, "Usage: resolve <path> [name=value ...]\n")
		return
	}
	hint, err := resolve.ParseWildcards(args[1:])
	if err != nil {
		d.printError(err)
		return
	}
	res, err := d.resolver.Resolve(args[0], hint)
	if err != nil {
		d.printError(err)
		return
	}
	d.history = append(d.history, res.Job)
	fmt.Fprint(d.output, render.Job(res.Job))
}

// handleExpand expands a rule under explicit wildcards.
func (d *Debugger) handleExpand(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(d.output, "Usage: expand <rule> [name=value ...]\n")
		return
	}
	wc, err := resolve.ParseWildcards(args[1:])
	if err != nil {
		d.printError(err)
		return
	}
	job, err := d.resolver.Expand(args[0], wc)
	if err != nil {
		d.printError(err)
		return
	}
	d.history = append(d.history, job)
	fmt.Fprint(d.output, render.Job(job))
}

func (d *Debugger) handleDescribe(args []string) {
	if len(args) != 1 {
		fmt.Fprintf(d.output, "Usage: describe <rule>\n")
		return
	}
	r, ok := d.workflow.Rule(args[0])
	if !ok {
		fmt.Fprintf(d.output, "No rule named %q.\n", args[0])
		return
	}
	fmt.Fprint(d.output, render.Describe(r, d.width))
}

func (d *Debugger) handleRules() {
	if len(d.workflow.Rules()) == 0 {
		fmt.Fprintf(d.output, "No rules defined.\n")
		return
	}
	fmt.Fprint(d.output, render.Rules(d.workflow))
}

// handleOrder lists the ruleorder clauses, highest priority first.
func (d *Debugger) handleOrder() {
	clauses := d.workflow.Ruleorder.Clauses()
	if len(clauses) == 0 {
		fmt.Fprintf(d.output, "No ruleorder declared.\n")
		return
	}
	for _, c := range clauses {
		fmt.Fprintf(d.output, "  %s\n", strings.Join(c, " > "))
	}
}

func (d *Debugger) handleGraph(args []string) {
	format := diagram.FormatASCII
	if len(args) > 0 {
		format = diagram.Format(args[0])
	}
	out, err := diagram.Generate(d.workflow, format)
	if err != nil {
		d.printError(err)
		return
	}
	fmt.Fprint(d.output, out)
}

// handleHistory lists the jobs expanded in this session.
func (d *Debugger) handleHistory() {
	if len(d.history) == 0 {
		fmt.Fprintf(d.output, "No jobs expanded yet.\n")
		return
	}
	for i, job := range d.history {
		status := render.GlyphOK
		if job.Incomplete {
			status = render.GlyphWarning
		}
		fmt.Fprintf(d.output, "  %s [%d] %s %s\n", status, i+1, job.Rule, job.Wildcards)
	}
}

// handleShow prints a job from the history, the latest by default.
func (d *Debugger) handleShow(args []string) {
	if len(d.history) == 0 {
		fmt.Fprintf(d.output, "No jobs expanded yet.\n")
		return
	}
	asJSON := len(args) > 0 && args[0] == "json"
	if asJSON {
		args = args[1:]
	}
	idx := len(d.history)
	if len(args) > 0 {
		if _, err := fmt.Sscanf(args[0], "%d", &idx); err != nil || idx < 1 || idx > len(d.history) {
			fmt.Fprintf(d.output, "Usage: show [json] [1-%d]\n", len(d.history))
			return
		}
	}
	job := d.history[idx-1]
	if !asJSON {
		fmt.Fprint(d.output, render.Job(job))
		return
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		fmt.Fprintf(d.output, "  Error marshaling job: %v\n", err)
		return
	}
	fmt.Fprintln(d.output, string(data))
}

func (d *Debugger) printError(err error) {
	fmt.Fprintln(d.output, render.Error(fmt.Sprintf("%s: %v", resolve.Kind(err), err)))
}

// handleHelp displays available commands.
func (d *Debugger) handleHelp() {
	fmt.Fprintln(d.output, "Available commands:")
	fmt.Fprintln(d.output, "  match (m)        Show the producer of a path: match <path> [name=value ...]")
	fmt.Fprintln(d.output, "  resolve (r)      Match a path and expand its job: resolve <path> [name=value ...]")
	fmt.Fprintln(d.output, "  expand (e)       Expand a rule: expand <rule> [name=value ...]")
	fmt.Fprintln(d.output, "  describe (d)     Show a rule's templates: describe <rule>")
	fmt.Fprintln(d.output, "  rules (ls)       List rules")
	fmt.Fprintln(d.output, "  order            Show ruleorder clauses")
	fmt.Fprintln(d.output, "  graph (g)        Draw the rule graph: graph [ascii|mermaid]")
	fmt.Fprintln(d.output, "  history (h)      List expanded jobs")
	fmt.Fprintln(d.output, "  show (s)         Show a job again: show [json] [n]")
	fmt.Fprintln(d.output, "  help (?)         Show this help")
	fmt.Fprintln(d.output, "  quit (q)         Exit debugger")
}
