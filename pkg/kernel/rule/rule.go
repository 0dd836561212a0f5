// Package rule implements rule templates and their resolution: registering
// input/output/log/params templates, matching requested paths against a
// rule's products, and expanding a rule into a concrete job for a wildcard
// assignment.
package rule

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ormasoftchile/rulekit/pkg/kernel/eval"
	"github.com/ormasoftchile/rulekit/pkg/kernel/namedlist"
	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
	"github.com/ormasoftchile/rulekit/pkg/kernel/resources"
)

// Item is one declared entry of an input, output, log or params collection.
// Exactly one of Pattern, Func or Value is meaningful.
type Item struct {
	Pattern *pattern.Pattern
	Func    *eval.Func
	Value   any
	Unpack  bool
}

// IsFunc reports whether the item is evaluated per job.
func (it Item) IsFunc() bool { return it.Func != nil }

func (it Item) String() string {
	switch {
	case it.Pattern != nil:
		return it.Pattern.String()
	case it.Func != nil:
		return it.Func.String()
	}
	return fmt.Sprint(it.Value)
}

// NamedItem attaches a name to a declared item. A named list binds the name
// to the whole range of items it produces.
type NamedItem struct {
	Name  string
	Value any
}

// Named wraps v with a name.
func Named(name string, v any) NamedItem { return NamedItem{Name: name, Value: v} }

// UnpackItem marks a function whose list or map result fans out into
// several entries.
type UnpackItem struct {
	Func *eval.Func
}

// Unpack marks f for fan-out.
func Unpack(f *eval.Func) UnpackItem { return UnpackItem{Func: f} }

// Spec is a resource, threads or group specification: a constant or a
// function evaluated per job.
type Spec struct {
	Value any
	Func  *eval.Func
}

func (s Spec) String() string {
	if s.Func != nil {
		return s.Func.String()
	}
	return fmt.Sprint(s.Value)
}

// Rule is a declarative template from which jobs are derived. A rule is
// mutated only while it is being registered; expansion never modifies it.
type Rule struct {
	Name         string
	Docstring    string
	Message      string
	Priority     int
	IsCheckpoint bool
	IsBranched   bool
	Basedir      string

	InputModifier     *PathModifier
	OutputModifier    *PathModifier
	LogModifier       *PathModifier
	BenchmarkModifier *PathModifier

	workflow    *Workflow
	input       *namedlist.List[Item]
	output      *namedlist.List[Item]
	params      *namedlist.List[Item]
	log         *namedlist.List[Item]
	benchmark   *Item
	group       *Spec
	version     string
	constraints map[string]string

	resourceNames []string
	resources     map[string]Spec

	dependencies     map[string]string
	dynamicOutput    map[string]bool
	dynamicInput     map[string]bool
	tempOutput       map[string]bool
	protectedOutput  map[string]bool
	touchOutput      map[string]bool
	subworkflowInput map[string]string

	wildcardNames map[string]struct{}
	registered    bool
}

func newRule(name string, w *Workflow) *Rule {
	r := &Rule{
		Name:             name,
		Basedir:          w.Basedir,
		workflow:         w,
		input:            &namedlist.List[Item]{},
		output:           &namedlist.List[Item]{},
		params:           &namedlist.List[Item]{},
		log:              &namedlist.List[Item]{},
		constraints:      map[string]string{},
		resources:        map[string]Spec{},
		dependencies:     map[string]string{},
		dynamicOutput:    map[string]bool{},
		dynamicInput:     map[string]bool{},
		tempOutput:       map[string]bool{},
		protectedOutput:  map[string]bool{},
		touchOutput:      map[string]bool{},
		subworkflowInput: map[string]string{},
	}
	r.SetResource(resources.Cores, Spec{Value: 1})
	return r
}

// clone returns a branch copy with independent collections.
func (r *Rule) clone() *Rule {
	c := *r
	c.IsBranched = true
	c.input = r.input.Clone()
	c.output = r.output.Clone()
	c.params = r.params.Clone()
	c.log = r.log.Clone()
	c.constraints = maps.Clone(r.constraints)
	c.resourceNames = slices.Clone(r.resourceNames)
	c.resources = maps.Clone(r.resources)
	c.dependencies = maps.Clone(r.dependencies)
	c.dynamicOutput = maps.Clone(r.dynamicOutput)
	c.dynamicInput = maps.Clone(r.dynamicInput)
	c.tempOutput = maps.Clone(r.tempOutput)
	c.protectedOutput = maps.Clone(r.protectedOutput)
	c.touchOutput = maps.Clone(r.touchOutput)
	c.subworkflowInput = maps.Clone(r.subworkflowInput)
	c.wildcardNames = maps.Clone(r.wildcardNames)
	return &c
}

func (r *Rule) String() string { return r.Name }

// Workflow returns the owning workflow.
func (r *Rule) Workflow() *Workflow { return r.workflow }

func (r *Rule) Input() *namedlist.List[Item] { return r.input }
func (r *Rule) Output() *namedlist.List[Item] { return r.output }
func (r *Rule) Params() *namedlist.List[Item] { return r.params }
func (r *Rule) Log() *namedlist.List[Item] { return r.log }

// Benchmark returns the benchmark template, or nil.
func (r *Rule) Benchmark() *Item { return r.benchmark }

// Group returns the group specification, or nil.
func (r *Rule) Group() *Spec { return r.group }

// Version returns the declared version string.
func (r *Rule) Version() string { return r.version }

// Dependencies maps input templates to the rule known to produce them.
func (r *Rule) Dependencies() map[string]string { return maps.Clone(r.dependencies) }

// WildcardConstraints returns the rule-level constraints.
func (r *Rule) WildcardConstraints() map[string]string { return maps.Clone(r.constraints) }

// WildcardNames returns the wildcard names shared by all products, sorted.
func (r *Rule) WildcardNames() []string {
	return slices.Sorted(maps.Keys(r.wildcardNames))
}

// HasWildcards reports whether the rule's products contain wildcards.
func (r *Rule) HasWildcards() bool { return len(r.wildcardNames) > 0 }

// HasDynamicOutput reports whether outputs use the legacy dynamic flag.
func (r *Rule) HasDynamicOutput() bool { return len(r.dynamicOutput) > 0 }

// IsTemp, IsProtected and IsTouch report output-set membership of a
// declared output template.
func (r *Rule) IsTemp(template string) bool { return r.tempOutput[template] }
func (r *Rule) IsProtected(template string) bool { return r.protectedOutput[template] }
func (r *Rule) IsTouch(template string) bool { return r.touchOutput[template] }

// IsDynamicOutput reports whether template is a dynamic output.
func (r *Rule) IsDynamicOutput(template string) bool { return r.dynamicOutput[template] }

// SubworkflowInputs maps input templates to their subworkflow.
func (r *Rule) SubworkflowInputs() map[string]string { return maps.Clone(r.subworkflowInput) }

// ResourceNames returns declared resources in declaration order. _cores is
// always first.
func (r *Rule) ResourceNames() []string { return slices.Clone(r.resourceNames) }

// Resource returns the specification of a declared resource.
func (r *Rule) Resource(name string) (Spec, bool) {
	s, ok := r.resources[name]
	return s, ok
}

// SetResource declares or replaces a resource specification.
func (r *Rule) SetResource(name string, s Spec) {
	if _, ok := r.resources[name]; !ok {
		r.resourceNames = append(r.resourceNames, name)
	}
	r.resources[name] = s
}

// SetThreads declares the _cores resource.
func (r *Rule) SetThreads(s Spec) { r.SetResource(resources.Cores, s) }

// SetGroup declares the job group.
func (r *Rule) SetGroup(s Spec) { r.group = &s }

// SetWildcardConstraints adds rule-level constraints. It must be called
// before templates are assigned.
func (r *Rule) SetWildcardConstraints(c map[string]string) {
	maps.Copy(r.constraints, c)
}

// SetVersion records the rule version.
func (r *Rule) SetVersion(v string) error {
	if strings.Contains(v, "\n") {
		return r.errorf(ErrWorkflow, "version string may not contain line breaks")
	}
	r.version = v
	return nil
}

func (r *Rule) registerWildcards(names map[string]struct{}) error {
	if !r.registered {
		r.wildcardNames = maps.Clone(names)
		if r.wildcardNames == nil {
			r.wildcardNames = map[string]struct{}{}
		}
		r.registered = true
		return nil
	}
	if !maps.Equal(r.wildcardNames, names) {
		return r.errorf(ErrSyntax,
			"not all output, log and benchmark files contain the same wildcards (%v vs %v); "+
				"this is required so that no two jobs write to the same file",
			r.WildcardNames(), slices.Sorted(maps.Keys(names)))
	}
	return nil
}

// CheckWildcards fails unless wc covers every wildcard of the rule.
func (r *Rule) CheckWildcards(wc pattern.Wildcards) error {
	var missing []string
	for _, n := range r.WildcardNames() {
		if _, ok := wc[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return &Error{
			Kind:      ErrUnresolved,
			Rule:      r.Name,
			Wildcards: wc.Clone(),
			Msg:       "could not resolve wildcards: " + strings.Join(missing, ", "),
		}
	}
	return nil
}

// products returns the output, log and benchmark templates.
func (r *Rule) products() []*pattern.Pattern {
	var out []*pattern.Pattern
	for _, it := range r.output.Items() {
		out = append(out, it.Pattern)
	}
	for _, it := range r.log.Items() {
		if it.Pattern != nil {
			out = append(out, it.Pattern)
		}
	}
	if r.benchmark != nil && r.benchmark.Pattern != nil {
		out = append(out, r.benchmark.Pattern)
	}
	return out
}

// Proxy is the view of a rule that other rules reference: its products with
// constraints stripped, still owned by the referenced rule.
type Proxy struct {
	rule *Rule
}

// Rule returns the referenced rule.
func (p *Proxy) Rule() *Rule { return p.rule }

// Output returns the referenced rule's outputs.
func (p *Proxy) Output() *namedlist.List[*pattern.Pattern] {
	return namedlist.Map(p.rule.output, func(it Item) *pattern.Pattern {
		return stripped(it.Pattern, p.rule.Name)
	})
}

// Log returns the referenced rule's log templates. Function logs are nil.
func (p *Proxy) Log() *namedlist.List[*pattern.Pattern] {
	return namedlist.Map(p.rule.log, func(it Item) *pattern.Pattern {
		if it.Pattern == nil {
			return nil
		}
		return stripped(it.Pattern, p.rule.Name)
	})
}

// OutputNamed returns the outputs bound to name.
func (p *Proxy) OutputNamed(name string) ([]*pattern.Pattern, error) {
	items, _, ok := p.Output().Get(name)
	if !ok {
		return nil, &Error{Kind: ErrWorkflow, Rule: p.rule.Name, Msg: fmt.Sprintf("no output named %q", name)}
	}
	return items, nil
}

func stripped(p *pattern.Pattern, owner string) *pattern.Pattern {
	text, err := pattern.StripConstraints(p.String())
	if err != nil {
		return p.WithOwner(owner)
	}
	q, err := pattern.New(pattern.Annotated{Text: text, Flags: p.Flags()})
	if err != nil {
		return p.WithOwner(owner)
	}
	return q.WithOwner(owner)
}

// joinBasedir resolves a path relative to the rule's base directory.
func (r *Rule) joinBasedir(p string) string {
	if r.Basedir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.Basedir, p)
}
