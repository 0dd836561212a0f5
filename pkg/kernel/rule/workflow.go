package rule

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
	"github.com/ormasoftchile/rulekit/pkg/kernel/resources"
)

// Workflow is the registry of rules plus the workflow-wide settings that
// rule registration and expansion consult. It is configured once and then
// read concurrently by expansions.
type Workflow struct {
	Ruleorder           Ruleorder
	GlobalResources     map[string]resources.Value
	MaxThreads          int
	WildcardConstraints map[string]string
	CacheRules          map[string]bool
	AllTemp             bool
	Basedir             string
	Log                 *zap.SugaredLogger

	rules map[string]*Rule
	order []string
}

// NewWorkflow returns an empty workflow. A nil logger discards warnings.
func NewWorkflow(log *zap.SugaredLogger) *Workflow {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Workflow{
		GlobalResources:     map[string]resources.Value{},
		WildcardConstraints: map[string]string{},
		CacheRules:          map[string]bool{},
		Log:                 log,
		rules:               map[string]*Rule{},
	}
}

// NewRule creates and registers an empty rule.
func (w *Workflow) NewRule(name string) (*Rule, error) {
	if name == "" {
		return nil, &Error{Kind: ErrSyntax, Msg: "rule name must not be empty"}
	}
	if _, ok := w.rules[name]; ok {
		return nil, &Error{Kind: ErrSyntax, Rule: name, Msg: "rule is defined more than once"}
	}
	r := newRule(name, w)
	w.rules[name] = r
	w.order = append(w.order, name)
	return r, nil
}

// Rule returns the named rule.
func (w *Workflow) Rule(name string) (*Rule, bool) {
	r, ok := w.rules[name]
	return r, ok
}

// Rules returns all rules in registration order.
func (w *Workflow) Rules() []*Rule {
	out := make([]*Rule, 0, len(w.order))
	for _, n := range w.order {
		out = append(out, w.rules[n])
	}
	return out
}

// Proxy returns a reference view of the named rule for use by other rules.
func (w *Workflow) Proxy(name string) (*Proxy, error) {
	r, ok := w.rules[name]
	if !ok {
		return nil, &Error{Kind: ErrWorkflow, Msg: fmt.Sprintf("no rule named %q", name)}
	}
	return &Proxy{rule: r}, nil
}

// Candidate is a rule able to produce a requested path.
type Candidate struct {
	Rule      *Rule
	Wildcards pattern.Wildcards
}

// Producers returns every rule producing path together with its wildcards,
// highest ruleorder priority first. Rules of equal priority keep
// registration order.
func (w *Workflow) Producers(path string, hint pattern.Wildcards) ([]Candidate, error) {
	var out []Candidate
	for _, r := range w.Rules() {
		if !r.IsProducer(path) {
			continue
		}
		wc, err := r.GetWildcards(path, hint)
		if err != nil {
			return nil, err
		}
		out = append(out, Candidate{Rule: r, Wildcards: wc})
	}
	slices.SortStableFunc(out, func(a, b Candidate) int {
		return w.Ruleorder.Compare(b.Rule, a.Rule)
	})
	return out, nil
}

// Producer selects the single rule producing path. Two candidates of equal
// priority are ambiguous.
func (w *Workflow) Producer(path string, hint pattern.Wildcards) (*Rule, pattern.Wildcards, error) {
	cands, err := w.Producers(path, hint)
	if err != nil {
		return nil, nil, err
	}
	if len(cands) == 0 {
		return nil, nil, &Error{Kind: ErrNoProducer, Msg: fmt.Sprintf("no rule produces %s", path)}
	}
	if len(cands) > 1 && w.Ruleorder.Compare(cands[0].Rule, cands[1].Rule) == 0 {
		names := []string{cands[0].Rule.Name}
		for _, c := range cands[1:] {
			if w.Ruleorder.Compare(cands[0].Rule, c.Rule) != 0 {
				break
			}
			names = append(names, c.Rule.Name)
		}
		return nil, nil, &Error{
			Kind: ErrAmbiguous,
			Msg:  fmt.Sprintf("rules %v can all produce %s; declare a ruleorder", names, path),
		}
	}
	return cands[0].Rule, cands[0].Wildcards, nil
}
