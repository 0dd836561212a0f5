package render

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/ormasoftchile/rulekit/pkg/kernel/namedlist"
	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
	"github.com/ormasoftchile/rulekit/pkg/kernel/rule"
	"github.com/ormasoftchile/rulekit/pkg/kernel/validate"
)

// Job renders a concrete job as labelled sections.
func Job(job *rule.Job) string {
	var b strings.Builder
	b.WriteString(Title(GlyphRule+" "+job.Rule) + "  " + Label(job.ID.String()) + "\n")
	if job.Incomplete {
		b.WriteString(Warning("incomplete: inputs depend on an unfinished checkpoint") + "\n")
	}

	pairs := [][2]string{{"wildcards", job.Wildcards.String()}}
	pairs = append(pairs, [2]string{"input", files(job.Input)})
	pairs = append(pairs, [2]string{"output", files(job.Output)})
	if job.Log.Len() > 0 {
		pairs = append(pairs, [2]string{"log", files(job.Log)})
	}
	if job.Benchmark != nil {
		pairs = append(pairs, [2]string{"benchmark", job.Benchmark.Path})
	}
	if job.Params.Len() > 0 {
		pairs = append(pairs, [2]string{"params", params(job.Params)})
	}
	var res []string
	for _, name := range job.Resources.Names() {
		v, _ := job.Resources.Get(name)
		res = append(res, name+"="+v.String())
	}
	pairs = append(pairs, [2]string{"resources", strings.Join(res, ", ")})
	if job.Group != nil {
		pairs = append(pairs, [2]string{"group", fmt.Sprint(job.Group)})
	}
	if len(job.Dependencies) > 0 {
		var deps []string
		for _, path := range slices.Sorted(maps.Keys(job.Dependencies)) {
			deps = append(deps, path+" ← "+job.Dependencies[path])
		}
		pairs = append(pairs, [2]string{"dependencies", strings.Join(deps, "\n")})
	}
	b.WriteString(keyValuesMultiline(pairs))
	return b.String()
}

// files lists paths one per line, prefixing named entries.
func files(l *rule.Files) string {
	var lines []string
	for i, f := range l.Items() {
		lines = append(lines, entry(l, i, f.Path+flagSuffix(f.Flags)))
	}
	return strings.Join(lines, "\n")
}

func params(l *namedlist.List[any]) string {
	var lines []string
	for i, v := range l.Items() {
		lines = append(lines, entry(l, i, fmt.Sprint(v)))
	}
	return strings.Join(lines, "\n")
}

func entry[T any](l *namedlist.List[T], i int, text string) string {
	if name, ok := l.NameOf(i); ok {
		return name + ": " + text
	}
	return text
}

func flagSuffix(f pattern.Flags) string {
	var names []string
	for _, n := range f.Names() {
		if n == pattern.FlagMultiext || n == pattern.FlagModifiedBy {
			continue
		}
		names = append(names, n)
	}
	if len(names) == 0 {
		return ""
	}
	return " (" + strings.Join(names, ", ") + ")"
}

// keyValuesMultiline aligns pairs whose values span several lines.
func keyValuesMultiline(pairs [][2]string) string {
	rows := make([][]string, len(pairs))
	for i, p := range pairs {
		rows[i] = []string{p[0], p[1]}
	}
	return table(nil, rows, []func(string) string{Label, nil})
}

// Validation renders validation results: warnings first, then numbered
// errors, then a one-line verdict.
func Validation(path string, errs []*validate.ValidationError) string {
	var b strings.Builder
	for _, w := range validate.Warnings(errs) {
		b.WriteString(Warning(w.Error()) + "\n")
	}
	errors := validate.Errors(errs)
	for i, e := range errors {
		b.WriteString(Error(fmt.Sprintf("%d. %s", i+1, e.Error())) + "\n")
	}
	if len(errors) == 0 {
		b.WriteString(OK(path+" is valid") + "\n")
	} else {
		b.WriteString(errorStyle.Render(fmt.Sprintf("%s: %d error(s)", path, len(errors))) + "\n")
	}
	return b.String()
}

// Rules renders the rule table of a workflow.
func Rules(w *rule.Workflow) string {
	var rows [][]string
	for _, r := range w.Rules() {
		var outs []string
		for _, it := range r.Output().Items() {
			outs = append(outs, it.Pattern.String())
		}
		kind := ""
		if r.IsCheckpoint {
			kind = "checkpoint"
		}
		rows = append(rows, []string{
			r.Name,
			strings.Join(r.WildcardNames(), ", "),
			strings.Join(outs, "\n"),
			kind,
		})
	}
	return Table([]string{"RULE", "WILDCARDS", "OUTPUT", ""}, rows)
}

// Describe renders a rule: its docstring as markdown, then its templates.
func Describe(r *rule.Rule, width int) string {
	var b strings.Builder
	b.WriteString(Title(GlyphRule+" "+r.Name) + "\n")
	if r.Docstring != "" {
		b.WriteString(Markdown(r.Docstring, width) + "\n")
	}
	var pairs [][2]string
	add := func(label string, l *namedlist.List[rule.Item]) {
		if l.Len() == 0 {
			return
		}
		var lines []string
		for i, it := range l.Items() {
			lines = append(lines, entry(l, i, it.String()))
		}
		pairs = append(pairs, [2]string{label, strings.Join(lines, "\n")})
	}
	add("input", r.Input())
	add("output", r.Output())
	add("log", r.Log())
	if bm := r.Benchmark(); bm != nil {
		pairs = append(pairs, [2]string{"benchmark", bm.String()})
	}
	add("params", r.Params())
	var res []string
	for _, name := range r.ResourceNames() {
		s, _ := r.Resource(name)
		res = append(res, name+"="+s.String())
	}
	pairs = append(pairs, [2]string{"resources", strings.Join(res, ", ")})
	if g := r.Group(); g != nil {
		pairs = append(pairs, [2]string{"group", g.String()})
	}
	if v := r.Version(); v != "" {
		pairs = append(pairs, [2]string{"version", v})
	}
	if r.Message != "" {
		pairs = append(pairs, [2]string{"message", r.Message})
	}
	b.WriteString(keyValuesMultiline(pairs))
	return b.String()
}
