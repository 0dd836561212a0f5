package rule

import (
	"fmt"

	"github.com/ormasoftchile/rulekit/pkg/kernel/eval"
	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
	"github.com/ormasoftchile/rulekit/pkg/kernel/resources"
)

// ExpandResources resolves every declared resource for wc. Resources named
// in skip are not evaluated and resolve to TBD.
func (r *Rule) ExpandResources(wc pattern.Wildcards, input []string, attempt int, skip map[string]bool) (*resources.Set, error) {
	out := resources.NewSet()

	threads, err := r.resolveResource(resources.Cores, wc, input, attempt, skip, nil)
	if err != nil {
		return nil, err
	}
	switch {
	case threads.IsNone():
		return nil, r.errorf(ErrResource, "threads must be given as an int")
	case threads.IsInt():
		n, _ := threads.Int()
		if limit := r.workflow.MaxThreads; limit > 0 && n > int64(limit) {
			threads = resources.Int(int64(limit))
		}
	case !threads.IsTBD():
		return nil, r.errorf(ErrResource, "threads must be given as an int, got %s %q", threads.Kind(), threads)
	}
	out.Put(resources.Cores, threads)

	for _, name := range r.resourceNames {
		if name == resources.Cores {
			continue
		}
		v, err := r.resolveResource(name, wc, input, attempt, skip, &threads)
		if err != nil {
			return nil, err
		}
		if v.IsNone() {
			continue
		}
		out.Put(name, v)
		if derived, ok := resources.Derived[name]; ok {
			if _, declared := r.resources[derived]; !declared {
				if mb, ok := v.Int(); ok {
					out.Put(derived, resources.Int(resources.MBToMiB(mb)))
				}
			}
		}
	}
	return out, nil
}

func (r *Rule) resolveResource(name string, wc pattern.Wildcards, input []string, attempt int, skip map[string]bool, threads *resources.Value) (resources.Value, error) {
	var v resources.Value
	if skip[name] {
		v = resources.TBD()
	} else {
		spec := r.resources[name]
		raw := spec.Value
		if spec.Func != nil {
			avail := eval.Args{
				eval.Rulename: r.Name,
				eval.Input:    input,
				eval.Attempt:  attempt,
			}
			if threads != nil {
				avail[eval.Threads] = threads.Any()
			}
			res, _, err := r.applyFunc(spec.Func, wc, callOptions{
				avail: avail,
				raw:   true,
				checkpoint: func(*eval.IncompleteCheckpointError) (any, error) {
					return 0, nil
				},
			})
			if err != nil {
				return resources.Value{}, r.wrap(ErrResource, err, wc, fmt.Sprintf("error evaluating resource %s", name))
			}
			raw = res
		}
		var err error
		v, err = resources.FromAny(raw)
		if err != nil {
			return resources.Value{}, r.wrap(ErrResource, err, wc,
				fmt.Sprintf("resource %s is neither int, float (rounded to the nearest int), str nor None", name))
		}
	}

	global, ok := r.workflow.GlobalResources[name]
	if !ok || global.IsNone() || v.IsNone() {
		return v, nil
	}
	if !v.IsTBD() && v.Kind() != global.Kind() {
		return resources.Value{}, r.errorf(ErrResource,
			"resource %s is of type %s but the global resource constraint defines %s with value %s; "+
				"resources with the same name need to have the same type",
			name, v.Kind(), global.Kind(), global)
	}
	if n, ok := v.Int(); ok {
		g, _ := global.Int()
		v = resources.Int(min(n, g))
	}
	return v, nil
}
