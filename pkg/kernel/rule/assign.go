package rule

import (
	"fmt"
	"slices"

	"github.com/ormasoftchile/rulekit/pkg/kernel/eval"
	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
)

// SetInput appends input items. Accepted items are strings, annotated
// strings, patterns (including references to another rule's outputs),
// functions, Unpack-marked functions, lists of these (flattened
// recursively) and Named wrappers around any of them.
func (r *Rule) SetInput(items ...any) error {
	for _, it := range items {
		if err := r.setInOutputItem(it, false, ""); err != nil {
			return err
		}
	}
	return nil
}

// SetOutput appends output items and then validates the rule's outputs:
// consistent wildcards across products, no duplicates and cache
// eligibility.
func (r *Rule) SetOutput(items ...any) error {
	for _, it := range items {
		if err := r.setInOutputItem(it, true, ""); err != nil {
			return err
		}
	}
	for _, it := range r.output.Items() {
		if r.HasDynamicOutput() && !r.dynamicOutput[it.Pattern.String()] {
			return r.errorf(ErrSyntax, "a rule with dynamic output may not define any non-dynamic output files")
		}
		if err := r.registerWildcards(it.Pattern.NameSet()); err != nil {
			return err
		}
	}
	if err := r.CheckOutputDuplicates(); err != nil {
		return err
	}
	return r.CheckCaching()
}

func (r *Rule) setInOutputItem(item any, output bool, name string) error {
	coll := r.input
	modifier, property := r.InputModifier, "input"
	if output {
		coll = r.output
		modifier, property = r.OutputModifier, "output"
	}

	switch v := item.(type) {
	case NamedItem:
		if name != "" {
			return r.errorf(ErrSyntax, "item %q is named twice (%s, %s)", v.Value, name, v.Name)
		}
		return r.setInOutputItem(v.Value, output, v.Name)

	case string, pattern.Annotated, *pattern.Pattern:
		a, dep := r.annotate(v)
		a = modifier.Modify(a)
		r.checkFlags(a, output, property)
		if output {
			text, err := pattern.UpdateConstraints(a.Text, r.constraints, r.workflow.WildcardConstraints)
			if err != nil {
				return r.wrap(ErrPattern, err, nil, "")
			}
			a.Text = text
			if r.workflow.AllTemp {
				a.Flags = a.Flags.Set(pattern.FlagTemp, true)
			}
		} else if pattern.HasConstraints(a.Text) {
			r.workflow.Log.Warnw("wildcard constraints in inputs are ignored", "rule", r.Name, "path", a.Text)
		}
		if rep, ok := a.Flags.Value(pattern.FlagReport).(*pattern.Report); ok && rep.Caption != "" {
			joined := *rep
			joined.Caption = r.joinBasedir(rep.Caption)
			a.Flags = a.Flags.Set(pattern.FlagReport, &joined)
		}

		p, err := pattern.New(a)
		if err != nil {
			return r.wrap(ErrPattern, err, nil, "")
		}
		p = p.WithOwner(r.Name)
		key := p.String()
		if dep != "" {
			r.dependencies[key] = dep
		}
		if output {
			if p.HasFlag(pattern.FlagTemp) {
				r.tempOutput[key] = true
			}
			if p.HasFlag(pattern.FlagProtected) {
				r.protectedOutput[key] = true
			}
			if p.HasFlag(pattern.FlagTouch) {
				r.touchOutput[key] = true
			}
		}
		if p.HasFlag(pattern.FlagDynamic) {
			if output {
				r.dynamicOutput[key] = true
			} else {
				r.dynamicInput[key] = true
			}
		}
		if p.HasFlag(pattern.FlagSubworkflow) {
			if output {
				return r.errorf(ErrSyntax, "only input files may refer to a subworkflow")
			}
			sub := fmt.Sprint(p.Flags().Value(pattern.FlagSubworkflow))
			if other, ok := r.subworkflowInput[key]; ok && other != sub {
				return r.errorf(ErrWorkflow, "the input file %s is ambiguously associated with two subworkflows %s and %s", key, sub, other)
			}
			r.subworkflowInput[key] = sub
		}
		coll.Append(Item{Pattern: p})
		if name != "" {
			coll.AddName(name)
		}
		return nil

	case *eval.Func, UnpackItem:
		if output {
			return r.errorf(ErrSyntax, "only input files can be specified as functions")
		}
		coll.Append(funcItem(v))
		if name != "" {
			coll.AddName(name)
		}
		return nil
	}

	list, ok := asList(item)
	if !ok {
		return r.errorf(ErrSyntax, "input and output files have to be specified as strings or lists of strings, got %T", item)
	}
	start := coll.Len()
	for _, e := range list {
		if err := r.setInOutputItem(e, output, ""); err != nil {
			return err
		}
	}
	if name != "" {
		coll.SetRange(name, start, coll.Len())
	}
	return nil
}

// annotate converts a declared path into an annotated template and reports
// the rule producing it when it references another rule's output.
func (r *Rule) annotate(v any) (pattern.Annotated, string) {
	switch t := v.(type) {
	case *pattern.Pattern:
		dep := ""
		if owner := t.Owner(); owner != "" && owner != r.Name {
			if other, ok := r.workflow.Rule(owner); ok && other.producesTemplate(t.String()) {
				dep = owner
			}
		}
		return t.Annotated(), dep
	case pattern.Annotated:
		return t, ""
	case string:
		return pattern.Annotated{Text: t}, ""
	}
	return pattern.Annotated{}, ""
}

// producesTemplate reports whether template is one of the rule's outputs,
// compared without constraints.
func (r *Rule) producesTemplate(template string) bool {
	want, err := pattern.StripConstraints(template)
	if err != nil {
		return false
	}
	for _, it := range r.output.Items() {
		got, err := pattern.StripConstraints(it.Pattern.String())
		if err == nil && got == want {
			return true
		}
	}
	return false
}

func (r *Rule) checkFlags(a pattern.Annotated, output bool, property string) {
	for _, f := range a.Flags.Names() {
		switch {
		case !output && slices.Contains(pattern.OutputOnlyFlags, f):
			r.workflow.Log.Warnw("flag is only valid for outputs, not inputs", "rule", r.Name, "flag", f, "path", a.Text, "property", property)
		case output && slices.Contains(pattern.InputOnlyFlags, f):
			r.workflow.Log.Warnw("flag is only valid for inputs, not outputs", "rule", r.Name, "flag", f, "path", a.Text, "property", property)
		}
	}
}

func funcItem(v any) Item {
	switch t := v.(type) {
	case UnpackItem:
		return Item{Func: t.Func, Unpack: true}
	case *eval.Func:
		return Item{Func: t}
	}
	return Item{}
}

// asList flattens the supported list shapes by one level.
func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		return toAny(t), true
	case []pattern.Annotated:
		return toAny(t), true
	case []*pattern.Pattern:
		return toAny(t), true
	case []*eval.Func:
		return toAny(t), true
	}
	return nil, false
}

func toAny[T any](s []T) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// SetParams appends parameters. Lists are kept as single values.
func (r *Rule) SetParams(items ...any) error {
	for _, it := range items {
		name := ""
		if n, ok := it.(NamedItem); ok {
			name, it = n.Name, n.Value
		}
		switch v := it.(type) {
		case *eval.Func, UnpackItem:
			r.params.Append(funcItem(v))
		case NamedItem:
			return r.errorf(ErrSyntax, "parameter %q is named twice", v.Name)
		default:
			r.params.Append(Item{Value: v})
		}
		if name != "" {
			r.params.AddName(name)
		}
	}
	return nil
}

// SetLog appends log files. Functions are allowed and kept verbatim.
func (r *Rule) SetLog(items ...any) error {
	for _, it := range items {
		if err := r.setLogItem(it, ""); err != nil {
			return err
		}
	}
	for _, it := range r.log.Items() {
		if it.Pattern == nil {
			continue
		}
		if err := r.registerWildcards(it.Pattern.NameSet()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Rule) setLogItem(item any, name string) error {
	switch v := item.(type) {
	case NamedItem:
		return r.setLogItem(v.Value, v.Name)
	case string, pattern.Annotated, *pattern.Pattern:
		p, err := r.productPattern(v, r.LogModifier)
		if err != nil {
			return err
		}
		r.log.Append(Item{Pattern: p})
	case *eval.Func:
		r.log.Append(Item{Func: v})
	default:
		list, ok := asList(item)
		if !ok {
			return r.errorf(ErrSyntax, "log files have to be specified as strings, got %T", item)
		}
		start := r.log.Len()
		for _, e := range list {
			if err := r.setLogItem(e, ""); err != nil {
				return err
			}
		}
		if name != "" {
			r.log.SetRange(name, start, r.log.Len())
		}
		return nil
	}
	if name != "" {
		r.log.AddName(name)
	}
	return nil
}

// SetBenchmark declares the benchmark file, a template or a function of the
// wildcards returning a path.
func (r *Rule) SetBenchmark(v any) error {
	if f, ok := v.(*eval.Func); ok {
		if len(f.Needs) > 0 && !(len(f.Needs) == 1 && f.Needs[0] == eval.WildcardsCap) {
			return r.errorf(ErrSyntax, "benchmark functions may only use the wildcards")
		}
		r.benchmark = &Item{Func: f}
		return nil
	}
	p, err := r.productPattern(v, r.BenchmarkModifier)
	if err != nil {
		return err
	}
	r.benchmark = &Item{Pattern: p}
	return r.registerWildcards(p.NameSet())
}

// productPattern compiles a log or benchmark template.
func (r *Rule) productPattern(v any, modifier *PathModifier) (*pattern.Pattern, error) {
	switch v.(type) {
	case string, pattern.Annotated, *pattern.Pattern:
	case NamedItem:
		return nil, r.errorf(ErrSyntax, "a benchmark file cannot be named")
	default:
		return nil, r.errorf(ErrSyntax, "benchmark has to be a single string or function, got %T", v)
	}
	a, _ := r.annotate(v)
	a = modifier.Modify(a)
	text, err := pattern.UpdateConstraints(a.Text, r.constraints, r.workflow.WildcardConstraints)
	if err != nil {
		return nil, r.wrap(ErrPattern, err, nil, "")
	}
	a.Text = text
	p, err := pattern.New(a)
	if err != nil {
		return nil, r.wrap(ErrPattern, err, nil, "")
	}
	return p.WithOwner(r.Name), nil
}

// CheckOutputDuplicates fails when two declared outputs are identical.
// Empty entries are ignored.
func (r *Rule) CheckOutputDuplicates() error {
	seen := map[string]string{}
	idx := -1
	for i, it := range r.output.Items() {
		label, named := r.output.NameOf(i)
		if !named {
			idx++
			label = fmt.Sprint(idx)
		}
		v := it.Pattern.String()
		if v == "" {
			continue
		}
		if first, ok := seen[v]; ok {
			return r.errorf(ErrWorkflow, "duplicate output file pattern; first two duplicates are entries %s and %s", first, label)
		}
		seen[v] = label
	}
	return nil
}

// CheckCaching validates rules listed for between-workflow caching: they
// need outputs, several outputs must share one multiext prefix, and dynamic
// outputs are not cacheable.
func (r *Rule) CheckCaching() error {
	if !r.workflow.CacheRules[r.Name] {
		return nil
	}
	outs := r.output.Items()
	if len(outs) == 0 {
		return r.errorf(ErrWorkflow, "rules without output files cannot be cached")
	}
	if len(outs) > 1 {
		prefixes := map[string]bool{}
		for _, it := range outs {
			prefix, ok := it.Pattern.Flags().Value(pattern.FlagMultiext).(string)
			if !ok {
				return errMultiext(r)
			}
			prefixes[prefix] = true
		}
		if len(prefixes) > 1 {
			return errMultiext(r)
		}
	}
	if r.HasDynamicOutput() {
		return r.errorf(ErrWorkflow, "rules with dynamic output files may not be cached")
	}
	return nil
}

func errMultiext(r *Rule) error {
	return r.errorf(ErrWorkflow, "rules with multiple output files must define them as a single multiext() "+
		"so that they can be distinguished by a fixed set of extensions")
}
