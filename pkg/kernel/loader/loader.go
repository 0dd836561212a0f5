// Package loader builds a rule registry from a rulekit/v0 document.
package loader

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ormasoftchile/rulekit/pkg/kernel/eval"
	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
	"github.com/ormasoftchile/rulekit/pkg/kernel/resources"
	"github.com/ormasoftchile/rulekit/pkg/kernel/rule"
	"github.com/ormasoftchile/rulekit/pkg/kernel/schema"
)

// Options configures Build.
type Options struct {
	// Basedir is joined to report captions. LoadFile sets it to the
	// document's directory.
	Basedir string
	Log     *zap.SugaredLogger
}

// LoadFile decodes the document at path and builds its workflow.
func LoadFile(path string, log *zap.SugaredLogger) (*rule.Workflow, *schema.Workflow, error) {
	doc, err := schema.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	w, err := Build(doc, Options{Basedir: filepath.Dir(path), Log: log})
	if err != nil {
		return nil, doc, err
	}
	return w, doc, nil
}

// Build registers every rule of doc. Rules are registered in two passes:
// outputs, logs and benchmarks first, so that inputs may reference the
// outputs of any rule regardless of declaration order.
func Build(doc *schema.Workflow, opts Options) (*rule.Workflow, error) {
	if doc.APIVersion != schema.APIVersion {
		return nil, fmt.Errorf("unsupported apiVersion %q (want %s)", doc.APIVersion, schema.APIVersion)
	}
	w := rule.NewWorkflow(opts.Log)
	w.Basedir = opts.Basedir

	var global *rule.PathModifier
	if c := doc.Config; c != nil {
		if err := applyConfig(w, c); err != nil {
			return nil, err
		}
		global = modifier(c.PathModifier)
	}
	for _, clause := range doc.Ruleorder {
		w.Ruleorder.Add(clause...)
	}

	built := make([]*rule.Rule, len(doc.Rules))
	for i := range doc.Rules {
		r, err := declare(w, &doc.Rules[i], global)
		if err != nil {
			return nil, err
		}
		built[i] = r
	}
	for i := range doc.Rules {
		if err := define(w, built[i], &doc.Rules[i]); err != nil {
			return nil, err
		}
	}
	for _, clause := range doc.Ruleorder {
		for _, name := range clause {
			if _, ok := w.Rule(name); !ok {
				return nil, fmt.Errorf("ruleorder: no rule named %q", name)
			}
		}
	}
	return w, nil
}

func applyConfig(w *rule.Workflow, c *schema.Config) error {
	w.MaxThreads = c.MaxThreads
	w.AllTemp = c.AllTemp
	for k, v := range c.WildcardConstraints {
		w.WildcardConstraints[k] = v
	}
	for _, name := range c.CacheRules {
		w.CacheRules[name] = true
	}
	for name, raw := range c.GlobalResources {
		v, err := resources.FromAny(raw)
		if err != nil {
			return fmt.Errorf("config.global_resources.%s: %w", name, err)
		}
		w.GlobalResources[name] = v
	}
	return nil
}

func modifier(m *schema.PathModifier) *rule.PathModifier {
	if m == nil {
		return nil
	}
	return &rule.PathModifier{Prefix: m.Prefix, ReplacePrefix: m.ReplacePrefix}
}

// declare creates the rule and registers everything other rules may refer to.
func declare(w *rule.Workflow, d *schema.Rule, global *rule.PathModifier) (*rule.Rule, error) {
	r, err := w.NewRule(d.Name)
	if err != nil {
		return nil, err
	}
	r.Docstring = d.Docstring
	r.Message = d.Message
	r.Priority = d.Priority
	r.IsCheckpoint = d.Checkpoint

	m := global
	if d.PathModifier != nil {
		m = modifier(d.PathModifier)
	}
	r.InputModifier, r.OutputModifier = m, m
	r.LogModifier, r.BenchmarkModifier = m, m

	if len(d.WildcardConstraints) > 0 {
		r.SetWildcardConstraints(d.WildcardConstraints)
	}

	c := &converter{w: w, rule: d.Name}
	outputs, err := c.items("output", d.Output)
	if err != nil {
		return nil, err
	}
	if err := r.SetOutput(outputs...); err != nil {
		return nil, err
	}
	logs, err := c.items("log", d.Log)
	if err != nil {
		return nil, err
	}
	if err := r.SetLog(logs...); err != nil {
		return nil, err
	}
	if d.Benchmark != nil {
		b, err := c.item("benchmark", 0, *d.Benchmark)
		if err != nil {
			return nil, err
		}
		if err := r.SetBenchmark(b); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// define registers inputs, params and the per-job specifications.
func define(w *rule.Workflow, r *rule.Rule, d *schema.Rule) error {
	c := &converter{w: w, rule: d.Name}
	inputs, err := c.items("input", d.Input)
	if err != nil {
		return err
	}
	if err := r.SetInput(inputs...); err != nil {
		return err
	}

	params, err := c.params(d.Params)
	if err != nil {
		return err
	}
	if err := r.SetParams(params...); err != nil {
		return err
	}

	if d.Threads != nil {
		s, err := c.spec("threads", *d.Threads)
		if err != nil {
			return err
		}
		r.SetThreads(s)
	}
	for _, ns := range d.Resources {
		if ns.Name == resources.Cores {
			return fmt.Errorf("rule %s: resource %s is reserved, use threads", d.Name, ns.Name)
		}
		s, err := c.spec("resources."+ns.Name, ns.Spec)
		if err != nil {
			return err
		}
		r.SetResource(ns.Name, s)
	}
	if d.Group != nil {
		s, err := c.spec("group", *d.Group)
		if err != nil {
			return err
		}
		r.SetGroup(s)
	}
	if d.Version != "" {
		if err := r.SetVersion(d.Version); err != nil {
			return err
		}
	}
	return nil
}

// converter turns document items into the values accepted by the rule
// setters.
type converter struct {
	w    *rule.Workflow
	rule string
}

func (c *converter) items(field string, items []schema.Item) ([]any, error) {
	out := make([]any, 0, len(items))
	for i, it := range items {
		v, err := c.item(field, i, it)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *converter) item(field string, i int, it schema.Item) (any, error) {
	where := fmt.Sprintf("rule %s: %s[%d]", c.rule, field, i)
	kind := it.Kind()
	if kind == "" {
		return nil, fmt.Errorf("%s: an item needs exactly one of path, paths, expr, multiext or rule", where)
	}
	if it.Unpack && kind != "expr" {
		return nil, fmt.Errorf("%s: unpack requires expr", where)
	}
	if it.Output != "" && kind != "rule" {
		return nil, fmt.Errorf("%s: output requires rule", where)
	}
	if kind == "rule" && field != "input" {
		return nil, fmt.Errorf("%s: rule references are only allowed in inputs", where)
	}
	if field == "benchmark" {
		if it.Name != "" {
			return nil, fmt.Errorf("%s: a benchmark file cannot be named", where)
		}
		if kind == "paths" || kind == "multiext" {
			return nil, fmt.Errorf("%s: a benchmark is a single file, %s is not allowed", where, kind)
		}
	}

	var v any
	switch kind {
	case "path":
		v = c.annotate(it, it.Path)
	case "paths":
		list := make([]any, len(it.Paths))
		for j, p := range it.Paths {
			list[j] = c.annotate(it, p)
		}
		v = list
	case "multiext":
		var list []any
		for _, a := range pattern.Multiext(it.Multiext.Prefix, it.Multiext.Exts...) {
			list = append(list, c.annotate(it, a))
		}
		v = list
	case "expr":
		if len(it.Flags) > 0 {
			return nil, fmt.Errorf("%s: flags cannot be attached to an expression", where)
		}
		f, err := eval.CompileExpr(fmt.Sprintf("%s.%s[%d]", c.rule, field, i), it.Expr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", where, err)
		}
		if it.Unpack {
			v = rule.Unpack(f)
		} else {
			v = f
		}
	case "rule":
		refs, err := c.reference(it)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", where, err)
		}
		v = refs
	}
	if it.Name != "" {
		v = rule.Named(it.Name, v)
	}
	return v, nil
}

// reference resolves {rule: name, output: name} to the referenced rule's
// output templates. Flags are attached without losing the producing rule.
func (c *converter) reference(it schema.Item) ([]any, error) {
	proxy, err := c.w.Proxy(it.Rule)
	if err != nil {
		return nil, err
	}
	var pats []*pattern.Pattern
	if it.Output != "" {
		pats, err = proxy.OutputNamed(it.Output)
		if err != nil {
			return nil, err
		}
	} else {
		pats = proxy.Output().Items()
	}
	out := make([]any, len(pats))
	for i, p := range pats {
		for _, f := range it.Flags {
			p = p.WithFlag(f, true)
		}
		out[i] = p
	}
	return out, nil
}

// annotate attaches the item's flags, report and subworkflow to a path.
func (c *converter) annotate(it schema.Item, v any) pattern.Annotated {
	var a pattern.Annotated
	switch t := v.(type) {
	case pattern.Annotated:
		a = t
	case string:
		a = pattern.Annotated{Text: t}
	}
	for _, f := range it.Flags {
		a = pattern.Flag(a, f, true)
	}
	if it.Report != nil {
		a = pattern.Flag(a, pattern.FlagReport, &pattern.Report{
			Caption:     it.Report.Caption,
			Category:    it.Report.Category,
			Subcategory: it.Report.Subcategory,
			Labels:      it.Report.Labels,
			Patterns:    it.Report.Patterns,
			HTMLIndex:   it.Report.HTMLIndex,
		})
	}
	if it.Subworkflow != "" {
		a = pattern.Flag(a, pattern.FlagSubworkflow, it.Subworkflow)
	}
	return a
}

func (c *converter) params(params []schema.Param) ([]any, error) {
	out := make([]any, 0, len(params))
	for i, p := range params {
		where := fmt.Sprintf("rule %s: params[%d]", c.rule, i)
		var v any
		switch {
		case p.Expr != "" && p.Value != nil:
			return nil, fmt.Errorf("%s: value and expr are mutually exclusive", where)
		case p.Expr != "":
			f, err := eval.CompileExpr(fmt.Sprintf("%s.params[%d]", c.rule, i), p.Expr)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", where, err)
			}
			v = f
			if p.Unpack {
				if p.Name != "" {
					return nil, fmt.Errorf("%s: an unpacked parameter cannot be named", where)
				}
				v = rule.Unpack(f)
			}
		case p.Unpack:
			return nil, fmt.Errorf("%s: unpack requires expr", where)
		default:
			v = p.Value
		}
		if p.Name != "" {
			v = rule.Named(p.Name, v)
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *converter) spec(field string, s schema.Spec) (rule.Spec, error) {
	if s.Expr == "" {
		return rule.Spec{Value: s.Value}, nil
	}
	if s.Value != nil {
		return rule.Spec{}, fmt.Errorf("rule %s: %s: value and expr are mutually exclusive", c.rule, field)
	}
	f, err := eval.CompileExpr(c.rule+"."+field, s.Expr)
	if err != nil {
		return rule.Spec{}, fmt.Errorf("rule %s: %s: %w", c.rule, field, err)
	}
	return rule.Spec{Func: f}, nil
}
