package validate

import (
	"fmt"
	"regexp"
	"slices"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ormasoftchile/rulekit/pkg/kernel/eval"
	"github.com/ormasoftchile/rulekit/pkg/kernel/loader"
	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
	"github.com/ormasoftchile/rulekit/pkg/kernel/rule"
	"github.com/ormasoftchile/rulekit/pkg/kernel/schema"
)

var ruleNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var knownFlags = []string{
	pattern.FlagTemp, "temporary", pattern.FlagProtected, pattern.FlagTouch,
	pattern.FlagDirectory, pattern.FlagPipe, pattern.FlagService, pattern.FlagEnsure,
	pattern.FlagAncient, pattern.FlagDynamic, pattern.FlagLocal,
}

// validateDomain runs rulekit/v0 domain-level validation rules. When the
// document passes them it is built into a rule registry, and warnings
// raised during registration are reported as domain warnings.
func validateDomain(doc *schema.Workflow, baseDir string) (*rule.Workflow, []*ValidationError) {
	var errs []*ValidationError

	// D1: apiVersion must be rulekit/v0
	if doc.APIVersion != schema.APIVersion {
		errs = append(errs, errorf(PhaseDomain, "apiVersion", "expected %q, got %q", schema.APIVersion, doc.APIVersion))
	}

	// D2: rule names are identifiers and unique
	names := map[string]string{} // name → path
	for i, r := range doc.Rules {
		path := rulePath(i)
		if !ruleNameRe.MatchString(r.Name) {
			errs = append(errs, errorf(PhaseDomain, path+".name", "invalid rule name %q", r.Name))
		}
		if prev, ok := names[r.Name]; ok {
			errs = append(errs, errorf(PhaseDomain, path+".name", "duplicate rule name %q (first at %s)", r.Name, prev))
		} else {
			names[r.Name] = path
		}
	}

	// D3: ruleorder and cache_rules name declared rules
	for i, clause := range doc.Ruleorder {
		for j, name := range clause {
			if _, ok := names[name]; !ok {
				errs = append(errs, errorf(PhaseDomain, fmt.Sprintf("ruleorder[%d][%d]", i, j), "unknown rule %q", name))
			}
		}
	}
	if c := doc.Config; c != nil {
		for i, name := range c.CacheRules {
			if _, ok := names[name]; !ok {
				errs = append(errs, errorf(PhaseDomain, fmt.Sprintf("config.cache_rules[%d]", i), "unknown rule %q", name))
			}
		}
		for name, cons := range c.WildcardConstraints {
			if _, err := regexp.Compile(cons); err != nil {
				errs = append(errs, errorf(PhaseDomain, "config.wildcard_constraints."+name, "invalid constraint: %s", err))
			}
		}
	}

	// D4: items, templates and expressions of every rule
	for i, r := range doc.Rules {
		errs = append(errs, validateRule(r, rulePath(i), names)...)
	}

	if HasErrors(errs) {
		return nil, errs
	}

	// D5: registration
	core, logs := observer.New(zapcore.WarnLevel)
	w, err := loader.Build(doc, loader.Options{Basedir: baseDir, Log: zap.New(core).Sugar()})
	for _, entry := range logs.All() {
		errs = append(errs, warningf(PhaseDomain, warningPath(doc, entry.ContextMap()), "%s", describe(entry)))
	}
	if err != nil {
		errs = append(errs, errorf(PhaseDomain, "", "%s", err))
		return nil, errs
	}
	return w, errs
}

func validateRule(r schema.Rule, path string, names map[string]string) []*ValidationError {
	var errs []*ValidationError
	collections := []struct {
		field string
		items []schema.Item
	}{
		{"input", r.Input},
		{"output", r.Output},
		{"log", r.Log},
	}
	for _, c := range collections {
		for j, it := range c.items {
			errs = append(errs, validateItem(it, fmt.Sprintf("%s.%s[%d]", path, c.field, j), c.field, names)...)
		}
	}
	if b := r.Benchmark; b != nil {
		errs = append(errs, validateItem(*b, path+".benchmark", "benchmark", names)...)
		if b.Name != "" {
			errs = append(errs, errorf(PhaseDomain, path+".benchmark.name", "a benchmark file cannot be named"))
		}
		if k := b.Kind(); k == "paths" || k == "multiext" {
			errs = append(errs, errorf(PhaseDomain, path+".benchmark."+k, "a benchmark is a single file"))
		}
	}
	if len(r.Output) == 0 {
		errs = append(errs, warningf(PhaseDomain, path+".output", "rule %s declares no output files", r.Name))
	}

	for j, p := range r.Params {
		if p.Expr != "" {
			errs = append(errs, validateExpr(p.Expr, fmt.Sprintf("%s.params[%d].expr", path, j))...)
		}
	}
	if r.Threads != nil && r.Threads.Expr != "" {
		errs = append(errs, validateExpr(r.Threads.Expr, path+".threads.expr")...)
	}
	for _, ns := range r.Resources {
		if ns.Spec.Expr != "" {
			errs = append(errs, validateExpr(ns.Spec.Expr, path+".resources."+ns.Name+".expr")...)
		}
	}
	if r.Group != nil && r.Group.Expr != "" {
		errs = append(errs, validateExpr(r.Group.Expr, path+".group.expr")...)
	}
	for name, cons := range r.WildcardConstraints {
		if _, err := regexp.Compile(cons); err != nil {
			errs = append(errs, errorf(PhaseDomain, path+".wildcard_constraints."+name, "invalid constraint: %s", err))
		}
	}
	return errs
}

func validateItem(it schema.Item, path, field string, names map[string]string) []*ValidationError {
	var errs []*ValidationError
	kind := it.Kind()
	if kind == "" {
		return []*ValidationError{errorf(PhaseDomain, path, "item needs exactly one of path, paths, expr, multiext or rule")}
	}
	for _, f := range it.Flags {
		if !slices.Contains(knownFlags, f) {
			errs = append(errs, warningf(PhaseDomain, path+".flags", "unknown flag %q", f))
		}
	}
	switch kind {
	case "path":
		errs = append(errs, validateTemplate(it.Path, path+".path")...)
	case "paths":
		for k, p := range it.Paths {
			errs = append(errs, validateTemplate(p, fmt.Sprintf("%s.paths[%d]", path, k))...)
		}
	case "multiext":
		for _, a := range pattern.Multiext(it.Multiext.Prefix, it.Multiext.Exts...) {
			errs = append(errs, validateTemplate(a.Text, path+".multiext")...)
		}
	case "expr":
		errs = append(errs, validateExpr(it.Expr, path+".expr")...)
	case "rule":
		if field != "input" {
			errs = append(errs, errorf(PhaseDomain, path+".rule", "rule references are only allowed in inputs"))
		} else if _, ok := names[it.Rule]; !ok {
			errs = append(errs, errorf(PhaseDomain, path+".rule", "unknown rule %q", it.Rule))
		}
	}
	if it.Unpack && kind != "expr" {
		errs = append(errs, errorf(PhaseDomain, path+".unpack", "unpack requires expr"))
	}
	if it.Subworkflow != "" && field != "input" {
		errs = append(errs, errorf(PhaseDomain, path+".subworkflow", "only input files may refer to a subworkflow"))
	}
	return errs
}

func validateTemplate(tmpl, path string) []*ValidationError {
	if _, err := pattern.Compile(tmpl); err != nil {
		return []*ValidationError{errorf(PhaseDomain, path, "%s", err)}
	}
	return nil
}

func validateExpr(src, path string) []*ValidationError {
	if _, err := eval.CompileExpr(path, src); err != nil {
		return []*ValidationError{errorf(PhaseDomain, path, "%s", err)}
	}
	return nil
}

func rulePath(i int) string {
	return fmt.Sprintf("rules[%d]", i)
}

// warningPath locates a registration warning by its rule field.
func warningPath(doc *schema.Workflow, ctx map[string]any) string {
	name, _ := ctx["rule"].(string)
	for i, r := range doc.Rules {
		if r.Name != name {
			continue
		}
		if prop, ok := ctx["property"].(string); ok {
			return rulePath(i) + "." + prop
		}
		return rulePath(i)
	}
	return ""
}

func describe(entry observer.LoggedEntry) string {
	ctx := entry.ContextMap()
	msg := entry.Message
	if flag, ok := ctx["flag"]; ok {
		msg = fmt.Sprintf("%s: %v", msg, flag)
	}
	if p, ok := ctx["path"]; ok {
		msg = fmt.Sprintf("%s (%v)", msg, p)
	}
	return msg
}
