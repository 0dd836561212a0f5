// Package diagram renders the rule dependency graph of a workflow.
// Supports Mermaid flowchart and ASCII formats.
package diagram

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
	"github.com/ormasoftchile/rulekit/pkg/kernel/rule"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Edge connects the rule producing a file to the rule consuming it.
type Edge struct {
	From string
	To   string
	// Via is the consumer's input template.
	Via string
}

// Graph is the static rule graph of a workflow. Edges are derived from
// declarations only; input functions are not evaluated.
type Graph struct {
	Rules []*rule.Rule
	Edges []Edge
}

// Build derives the rule graph of w. An input is connected to a producer
// when it references the producer's output, when its literal path has a
// producer, or when its template has the same shape as a producer's output
// template once constraints and wildcard names are ignored.
func Build(w *rule.Workflow) *Graph {
	g := &Graph{Rules: w.Rules()}
	seen := map[[2]string]bool{}
	add := func(from, to, via string) {
		k := [2]string{from, to}
		if seen[k] {
			return
		}
		seen[k] = true
		g.Edges = append(g.Edges, Edge{From: from, To: to, Via: via})
	}

	outputs := map[string][]string{}
	for _, r := range g.Rules {
		for _, it := range r.Output().Items() {
			if it.Pattern == nil {
				continue
			}
			s := shape(it.Pattern.String())
			if !slices.Contains(outputs[s], r.Name) {
				outputs[s] = append(outputs[s], r.Name)
			}
		}
	}

	for _, r := range g.Rules {
		deps := r.Dependencies()
		for _, it := range r.Input().Items() {
			if it.Pattern == nil {
				continue
			}
			tmpl := it.Pattern.String()
			if dep, ok := deps[tmpl]; ok {
				add(dep, r.Name, tmpl)
				continue
			}
			if !it.Pattern.HasWildcards() {
				if p, _, err := w.Producer(tmpl, nil); err == nil {
					add(p.Name, r.Name, tmpl)
				}
				continue
			}
			for _, name := range outputs[shape(tmpl)] {
				if name != r.Name {
					add(name, r.Name, tmpl)
				}
			}
		}
	}
	return g
}

// Order returns rule names with producers ahead of their consumers. Rules
// on a cycle keep registration order after everything else.
func (g *Graph) Order() []string {
	indeg := map[string]int{}
	next := map[string][]string{}
	for _, e := range g.Edges {
		indeg[e.To]++
		next[e.From] = append(next[e.From], e.To)
	}
	done := map[string]bool{}
	var out []string
	for len(out) < len(g.Rules) {
		progress := false
		for _, r := range g.Rules {
			if done[r.Name] || indeg[r.Name] > 0 {
				continue
			}
			done[r.Name] = true
			out = append(out, r.Name)
			for _, n := range next[r.Name] {
				indeg[n]--
			}
			progress = true
		}
		if !progress {
			break
		}
	}
	for _, r := range g.Rules {
		if !done[r.Name] {
			out = append(out, r.Name)
		}
	}
	return out
}

// Incoming returns the edges ending at the named rule.
func (g *Graph) Incoming(name string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.To == name {
			out = append(out, e)
		}
	}
	return out
}

func (g *Graph) rule(name string) *rule.Rule {
	for _, r := range g.Rules {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Generate produces a diagram string from a workflow.
func Generate(w *rule.Workflow, format Format) (string, error) {
	if w == nil {
		return "", fmt.Errorf("nil workflow")
	}
	g := Build(w)
	switch format {
	case FormatMermaid:
		return generateMermaid(g), nil
	case FormatASCII:
		return generateASCII(g), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// --- Mermaid flowchart ---

func generateMermaid(g *Graph) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	for _, name := range g.Order() {
		b.WriteString("    " + nodeDefinition(g.rule(name)) + "\n")
	}
	for _, e := range g.Edges {
		b.WriteString(fmt.Sprintf("    %s -->|\"%s\"| %s\n",
			safeID(e.From), escMermaid(truncate(e.Via, 40)), safeID(e.To)))
	}
	for _, r := range g.Rules {
		if r.IsCheckpoint {
			b.WriteString(fmt.Sprintf("    style %s fill:#1a3a4a,stroke:#0af\n", safeID(r.Name)))
		}
	}
	return b.String()
}

func nodeDefinition(r *rule.Rule) string {
	id := safeID(r.Name)
	label := escMermaid(r.Name)
	if r.HasWildcards() {
		label += "<br/>" + escMermaid(strings.Join(r.WildcardNames(), ", "))
	}
	switch {
	case r.IsCheckpoint:
		return fmt.Sprintf(`%s{{"%s"}}`, id, label)
	case r.HasDynamicOutput():
		return fmt.Sprintf(`%s[/"%s"/]`, id, label)
	case r.Input().Len() == 0:
		return fmt.Sprintf(`%s(["%s"])`, id, label)
	default:
		return fmt.Sprintf(`%s["%s"]`, id, label)
	}
}

// --- ASCII ---

func generateASCII(g *Graph) string {
	var b strings.Builder

	header := fmt.Sprintf("workflow (%d rules)", len(g.Rules))
	if len(g.Rules) == 0 {
		b.WriteString("workflow (empty)\n")
		return b.String()
	}

	order := g.Order()
	const indent = 2
	boxWidth := computeUniformBoxWidth(g, header)
	pad := strings.Repeat(" ", indent)

	b.WriteString(pad + "╔" + strings.Repeat("═", boxWidth) + "╗\n")
	b.WriteString(pad + "║" + centerPad(header, boxWidth) + "║\n")
	b.WriteString(pad + "╚" + strings.Repeat("═", boxWidth) + "╝\n")

	for _, name := range order {
		lines := boxLines(g, name)
		b.WriteString(pad + "┌" + strings.Repeat("─", boxWidth) + "┐\n")
		for _, l := range lines {
			b.WriteString(pad + "│" + l + strings.Repeat(" ", boxWidth-runewidth.StringWidth(l)) + "│\n")
		}
		b.WriteString(pad + "└" + strings.Repeat("─", boxWidth) + "┘\n")
	}
	return b.String()
}

// boxLines returns the interior lines of a rule box: the rule itself and
// one line per producer it consumes from.
func boxLines(g *Graph, name string) []string {
	icon := "◆"
	if r := g.rule(name); r != nil && r.IsCheckpoint {
		icon = "◇"
	}
	lines := []string{fmt.Sprintf(" %s %s ", icon, name)}
	for _, e := range g.Incoming(name) {
		lines = append(lines, fmt.Sprintf("   ← %s (%s) ", e.From, truncate(e.Via, 40)))
	}
	return lines
}

// computeUniformBoxWidth returns the widest interior width needed
// across all rule boxes and the header.
func computeUniformBoxWidth(g *Graph, header string) int {
	w := 22
	if hw := runewidth.StringWidth(header) + 4; hw > w {
		w = hw
	}
	for _, r := range g.Rules {
		for _, l := range boxLines(g, r.Name) {
			if lw := runewidth.StringWidth(l); lw > w {
				w = lw
			}
		}
	}
	return w
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	total := width - sw
	left := total / 2
	right := total - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

// --- string helpers ---

// shape reduces a template to its literal skeleton: constraints are
// dropped and every wildcard becomes "{}".
func shape(template string) string {
	text, err := pattern.StripConstraints(template)
	if err != nil {
		return template
	}
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case (c == '{' || c == '}') && i+1 < len(text) && text[i+1] == c:
			b.WriteByte(c)
			b.WriteByte(c)
			i++
		case c == '{':
			end := strings.IndexByte(text[i:], '}')
			if end < 0 {
				return text
			}
			b.WriteString("{}")
			i += end
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func safeID(id string) string {
	r := strings.NewReplacer("-", "_", " ", "_", ".", "_")
	return r.Replace(id)
}

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}

func truncate(s string, max int) string {
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max, "...")
}
