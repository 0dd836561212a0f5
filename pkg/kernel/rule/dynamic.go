package rule

import (
	"errors"
	"slices"

	"github.com/ormasoftchile/rulekit/pkg/kernel/eval"
	"github.com/ormasoftchile/rulekit/pkg/kernel/namedlist"
	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
	"github.com/ormasoftchile/rulekit/pkg/kernel/resources"
)

// Branch is a rule specialized for a set of values of its dynamic
// wildcards.
type Branch struct {
	Rule *Rule
	// Wildcards holds the wildcards that took a single value across all
	// expanded values. Only set for output branches.
	Wildcards pattern.Wildcards
}

// DynamicBranch specializes the rule's dynamic inputs (input is true) or
// dynamic outputs for values, replacing each dynamic template by one
// template per zipped value combination. The receiver is not modified.
// DynamicBranch returns nil when values lack a wildcard used by a dynamic
// template.
//
// For output branches the new rule is then fully expanded with the
// wildcards that took a single value.
func (r *Rule) DynamicBranch(values map[string][]string, input bool) (*Branch, error) {
	branch := r.clone()
	io, dynamic := branch.output, branch.dynamicOutput
	if input {
		io, dynamic = branch.input, branch.dynamicInput
	}

	type replacement struct {
		index int
		old   string
		items []Item
	}
	var repl []replacement
	for i, it := range io.Items() {
		if it.Pattern == nil || !dynamic[it.Pattern.String()] {
			continue
		}
		escaped, err := pattern.EscapeExcept(it.Pattern.String(), values)
		if err != nil {
			return nil, r.wrap(ErrPattern, err, nil, "")
		}
		expanded, err := pattern.Expand(escaped, values, pattern.Zip)
		if err != nil {
			var we *pattern.WildcardError
			if errors.As(err, &we) {
				return nil, nil
			}
			return nil, r.wrap(ErrPattern, err, nil, "")
		}
		slices.Reverse(expanded)
		items := make([]Item, 0, len(expanded))
		for _, e := range expanded {
			p, err := pattern.New(pattern.Annotated{Text: e, Flags: it.Pattern.Flags()})
			if err != nil {
				return nil, r.wrap(ErrPattern, err, nil, "")
			}
			items = append(items, Item{Pattern: p.WithOwner(branch.Name)})
		}
		repl = append(repl, replacement{index: i, old: it.Pattern.String(), items: items})
	}

	for i := len(repl) - 1; i >= 0; i-- {
		rp := repl[i]
		delete(dynamic, rp.old)
		if err := io.Insert(rp.index, rp.items); err != nil {
			return nil, r.wrap(ErrInternal, err, nil, "")
		}
	}
	if input {
		return &Branch{Rule: branch}, nil
	}

	for _, rp := range repl {
		for _, set := range []map[string]bool{branch.tempOutput, branch.protectedOutput, branch.touchOutput} {
			if !set[rp.old] {
				continue
			}
			delete(set, rp.old)
			for _, it := range rp.items {
				set[it.Pattern.String()] = true
			}
		}
	}

	branch.wildcardNames = map[string]struct{}{}
	wc := pattern.Wildcards{}
	for name, vals := range values {
		if len(vals) > 0 && allEqual(vals) {
			wc[name] = vals[0]
		}
	}

	in, err := branch.ExpandInput(wc, nil)
	if err != nil {
		return nil, err
	}
	if in.Incomplete {
		return nil, r.errorf(ErrInternal, "dynamic branching resulted in incomplete input files")
	}
	out, _, err := branch.ExpandOutput(wc)
	if err != nil {
		return nil, err
	}
	res, err := branch.ExpandResources(wc, Paths(in.Files), 1, nil)
	if err != nil {
		return nil, err
	}
	params, err := branch.ExpandParams(wc, in.Files, out, res, true)
	if err != nil {
		return nil, err
	}
	logs, err := branch.ExpandLog(wc)
	if err != nil {
		return nil, err
	}
	bench, err := branch.ExpandBenchmark(wc)
	if err != nil {
		return nil, err
	}

	templates := branch.output.Items()
	branch.output = literalItems(out)
	for i, it := range branch.output.Items() {
		old, key := templates[i].Pattern.String(), it.Pattern.String()
		for _, set := range []map[string]bool{branch.tempOutput, branch.protectedOutput, branch.touchOutput} {
			if set[old] {
				delete(set, old)
				set[key] = true
			}
		}
	}
	branch.input = literalItems(in.Files)
	branch.dependencies = in.Dependencies
	branch.log = literalItems(logs)
	branch.params = namedlist.Map(params, func(v any) Item { return Item{Value: v} })
	if bench != nil {
		branch.benchmark = &Item{Pattern: pattern.Literal(bench.Path, bench.Flags).WithOwner(branch.Name)}
	}
	branch.resourceNames = nil
	branch.resources = map[string]Spec{}
	for _, name := range res.Names() {
		v, _ := res.Get(name)
		branch.SetResource(name, Spec{Value: resourceSpecValue(v)})
	}
	return &Branch{Rule: branch, Wildcards: wc}, nil
}

func literalItems(files *Files) *namedlist.List[Item] {
	return namedlist.Map(files, func(f pattern.File) Item {
		return Item{Pattern: pattern.Literal(f.Path, f.Flags).WithOwner(f.Owner)}
	})
}

func resourceSpecValue(v resources.Value) any {
	if v.IsTBD() {
		return eval.TBDString
	}
	return v.Any()
}

func allEqual(vals []string) bool {
	for _, v := range vals[1:] {
		if v != vals[0] {
			return false
		}
	}
	return true
}
