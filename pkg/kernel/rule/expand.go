package rule

import (
	"errors"
	"io/fs"
	"maps"
	"slices"

	"github.com/ormasoftchile/rulekit/pkg/kernel/eval"
	"github.com/ormasoftchile/rulekit/pkg/kernel/namedlist"
	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
	"github.com/ormasoftchile/rulekit/pkg/kernel/resources"
)

// CheckpointFunc decides the value used in place of a function result when
// the function depends on an incomplete checkpoint.
type CheckpointFunc func(*eval.IncompleteCheckpointError) (any, error)

// callOptions configures one function evaluation.
type callOptions struct {
	avail      eval.Args
	checkpoint CheckpointFunc
	groupID    *string
	raw        bool
}

// applyFunc evaluates f for wc. The second result reports an incomplete
// value: the group is not known yet or a checkpoint has not run.
func (r *Rule) applyFunc(f *eval.Func, wc pattern.Wildcards, opts callOptions) (any, bool, error) {
	avail := opts.avail.Clone()
	if f.Wants(eval.GroupID) {
		if opts.groupID == nil {
			return []any{}, true, nil
		}
		avail[eval.GroupID] = *opts.groupID
	}
	avail[eval.WildcardsCap] = wc

	v, err := f.Call(wc, avail)
	if err == nil {
		return v, false, nil
	}
	if ic, ok := eval.AsIncompleteCheckpoint(err); ok {
		if opts.checkpoint == nil {
			return nil, true, nil
		}
		v, cerr := opts.checkpoint(ic)
		if cerr != nil {
			return nil, true, cerr
		}
		return v, true, nil
	}
	var pe *fs.PathError
	if errors.As(err, &pe) && errors.Is(err, fs.ErrNotExist) {
		if in, ok := avail[eval.Input].([]string); ok && slices.Contains(in, pe.Path) {
			return eval.TBDString, false, nil
		}
	}
	if opts.raw {
		return nil, false, err
	}
	return nil, false, r.wrap(ErrFunction, err, wc, "error evaluating "+f.String())
}

// collectOptions configures applyWildcards for one collection kind.
type collectOptions[T any] struct {
	concretize   func(v any, fromFunc bool) (T, error)
	checkType    bool
	omitCallable bool
	noFlatten    bool
	modifier     *PathModifier
	call         callOptions
}

type namedValue struct {
	name  string
	value any
}

// applyWildcards turns declared items into concrete items appended to out.
// Named declared items keep their name over the range they produce.
func applyWildcards[T any](r *Rule, out *namedlist.List[T], items *namedlist.List[Item], wc pattern.Wildcards, opts collectOptions[T]) (bool, error) {
	incomplete := false
	for _, g := range items.Groups() {
		start := out.Len()
		if g.Range {
			for _, it := range g.Items {
				inc, err := applyItem(r, out, it, "", wc, opts)
				if err != nil {
					return false, err
				}
				incomplete = incomplete || inc
			}
			out.SetRange(g.Name, start, out.Len())
			continue
		}
		inc, err := applyItem(r, out, g.Items[0], g.Name, wc, opts)
		if err != nil {
			return false, err
		}
		incomplete = incomplete || inc
	}
	return incomplete, nil
}

func applyItem[T any](r *Rule, out *namedlist.List[T], it Item, name string, wc pattern.Wildcards, opts collectOptions[T]) (bool, error) {
	var value any
	incomplete := false
	fromFunc := it.IsFunc()
	switch {
	case fromFunc:
		if opts.omitCallable {
			return false, nil
		}
		v, inc, err := r.applyFunc(it.Func, wc, opts.call)
		if err != nil {
			return false, err
		}
		value, incomplete = v, inc
	case it.Pattern != nil:
		value = it.Pattern
	default:
		value = it.Value
	}

	pairs := []namedValue{{name: name, value: value}}
	if it.Unpack && !incomplete {
		if name != "" {
			return false, r.errorf(ErrWorkflow, "cannot combine named item (name %s) with unpack()", name)
		}
		switch v := value.(type) {
		case map[string]any:
			pairs = pairs[:0]
			for _, k := range slices.Sorted(maps.Keys(v)) {
				pairs = append(pairs, namedValue{name: k, value: v[k]})
			}
		case map[string]string:
			pairs = pairs[:0]
			for _, k := range slices.Sorted(maps.Keys(v)) {
				pairs = append(pairs, namedValue{name: k, value: v[k]})
			}
		default:
			list, ok := asList(value)
			if !ok {
				return false, r.errorf(ErrWorkflow, "can only use unpack() on list and dict, but %v (%T) was returned", value, value)
			}
			pairs = pairs[:0]
			for _, e := range list {
				pairs = append(pairs, namedValue{value: e})
			}
		}
	}

	start := out.Len()
	for _, p := range pairs {
		elems, iterable := asList(p.value)
		if !iterable || opts.noFlatten {
			elems, iterable = []any{p.value}, false
		}
		for _, e := range elems {
			if opts.checkType && !stringLike(e) {
				return false, r.errorf(ErrWorkflow, "function did not return str or list of str (got %T)", e)
			}
			if fromFunc && opts.modifier != nil && !incomplete {
				if s, ok := e.(string); ok {
					e = opts.modifier.ModifyString(s)
				}
			}
			c, err := opts.concretize(e, fromFunc)
			if err != nil {
				return false, err
			}
			out.Append(c)
		}
		if p.name != "" {
			if iterable {
				out.SetRange(p.name, start, out.Len())
			} else {
				out.SetName(p.name, start)
			}
			start = out.Len()
		}
	}
	return incomplete, nil
}

func stringLike(v any) bool {
	switch v.(type) {
	case string, pattern.Annotated, *pattern.Pattern, pattern.File:
		return true
	}
	return false
}

// toPattern compiles a function result or returns a declared template.
func (r *Rule) toPattern(v any) (*pattern.Pattern, error) {
	switch t := v.(type) {
	case *pattern.Pattern:
		return t, nil
	case pattern.Annotated:
		return pattern.New(t)
	case pattern.File:
		return pattern.Literal(t.Path, t.Flags).WithOwner(r.Name), nil
	case string:
		p, err := pattern.Compile(t)
		if err != nil {
			return nil, err
		}
		return p.WithOwner(r.Name), nil
	}
	return nil, r.errorf(ErrWorkflow, "expected a path, got %T", v)
}

// Files is an expanded collection of concrete paths.
type Files = namedlist.List[pattern.File]

// Paths returns the plain path strings of files.
func Paths(files *Files) []string {
	out := make([]string, 0, files.Len())
	for _, f := range files.Items() {
		out = append(out, f.Path)
	}
	return out
}

// InputExpansion is the result of ExpandInput.
type InputExpansion struct {
	Files *Files
	// Mapping maps each concrete path to the template it came from.
	Mapping map[string]string
	// Dependencies maps concrete paths to the rule producing them.
	Dependencies map[string]string
	Incomplete   bool
}

// ExpandInput concretizes the input templates for wc. A groupID of nil
// means the job group is not known yet.
func (r *Rule) ExpandInput(wc pattern.Wildcards, groupID *string) (*InputExpansion, error) {
	mapping := map[string]string{}
	files := &Files{}
	opts := collectOptions[pattern.File]{
		checkType: true,
		modifier:  r.InputModifier,
		call: callOptions{
			avail: eval.Args{},
			checkpoint: func(e *eval.IncompleteCheckpointError) (any, error) {
				return e.TargetFile, nil
			},
			groupID: groupID,
		},
		concretize: func(v any, fromFunc bool) (pattern.File, error) {
			p, err := r.toPattern(v)
			if err != nil {
				return pattern.File{}, err
			}
			f, err := p.Concretize(wc, pattern.ApplyOptions{
				FillMissing: r.dynamicInput[p.String()],
				FailDynamic: r.HasDynamicOutput(),
			})
			if err != nil {
				return pattern.File{}, err
			}
			mapping[f.Path] = p.String()
			return f, nil
		},
	}
	incomplete, err := applyWildcards(r, files, r.input, wc, opts)
	if err != nil {
		return nil, r.wildcardHint(err, wc, "wildcards in input files cannot be determined from output files")
	}

	deps := map[string]string{}
	for concrete, tmpl := range mapping {
		if dep, ok := r.dependencies[tmpl]; ok {
			deps[concrete] = dep
		}
	}
	r.checkPaths(files)
	return &InputExpansion{Files: files, Mapping: mapping, Dependencies: deps, Incomplete: incomplete}, nil
}

// ExpandOutput concretizes the output templates for wc. The mapping links
// each concrete path to its template.
func (r *Rule) ExpandOutput(wc pattern.Wildcards) (*Files, map[string]string, error) {
	mapping := map[string]string{}
	concrete := make([]pattern.File, 0, r.output.Len())
	for _, it := range r.output.Items() {
		f, err := it.Pattern.Concretize(wc, pattern.ApplyOptions{})
		if err != nil {
			return nil, nil, r.wildcardHint(err, wc, "wildcards in output files cannot be determined")
		}
		concrete = append(concrete, f)
		mapping[f.Path] = it.Pattern.String()
	}
	next := 0
	files := namedlist.Map(r.output, func(Item) pattern.File {
		f := concrete[next]
		next++
		return f
	})
	r.checkPaths(files)
	return files, mapping, nil
}

// ExpandParams resolves parameters. Literal strings (and strings inside
// literal lists) get wildcards substituted; function results are kept as
// returned.
func (r *Rule) ExpandParams(wc pattern.Wildcards, input, output *Files, res *resources.Set, omitCallable bool) (*namedlist.List[any], error) {
	inPaths := Paths(input)
	params := &namedlist.List[any]{}
	threads := any(nil)
	if v, ok := res.Get(resources.Cores); ok {
		threads = v.Any()
	}
	opts := collectOptions[any]{
		noFlatten:    true,
		omitCallable: omitCallable,
		call: callOptions{
			avail: eval.Args{
				eval.Input:     inPaths,
				eval.Output:    Paths(output),
				eval.Resources: res.Map(),
				eval.Threads:   threads,
			},
			checkpoint: func(e *eval.IncompleteCheckpointError) (any, error) {
				if slices.Contains(inPaths, e.TargetFile) {
					return eval.TBDString, nil
				}
				return nil, r.errorf(ErrWorkflow, "parameter depends on checkpoint %s but its output %s is not an input of this rule; add it to the inputs", e.Rule, e.TargetFile)
			},
		},
		concretize: func(v any, fromFunc bool) (any, error) {
			if fromFunc {
				return v, nil
			}
			switch t := v.(type) {
			case string:
				return pattern.Substitute(t, wc, pattern.ApplyOptions{})
			case []any:
				out := make([]any, len(t))
				for i, e := range t {
					s, ok := e.(string)
					if !ok {
						out[i] = e
						continue
					}
					applied, err := pattern.Substitute(s, wc, pattern.ApplyOptions{})
					if err != nil {
						return nil, err
					}
					out[i] = applied
				}
				return out, nil
			case []string:
				out := make([]any, len(t))
				for i, s := range t {
					applied, err := pattern.Substitute(s, wc, pattern.ApplyOptions{})
					if err != nil {
						return nil, err
					}
					out[i] = applied
				}
				return out, nil
			}
			return v, nil
		},
	}
	if _, err := applyWildcards(r, params, r.params, wc, opts); err != nil {
		return nil, r.wildcardHint(err, wc,
			"wildcards in params cannot be determined from output files; "+
				"use a function to deactivate automatic wildcard expansion in params strings")
	}
	return params, nil
}

// ExpandLog concretizes log templates. Function results are used verbatim.
func (r *Rule) ExpandLog(wc pattern.Wildcards) (*Files, error) {
	files := &Files{}
	opts := collectOptions[pattern.File]{
		checkType: true,
		modifier:  r.LogModifier,
		call:      callOptions{avail: eval.Args{}},
		concretize: func(v any, fromFunc bool) (pattern.File, error) {
			if fromFunc {
				switch t := v.(type) {
				case string:
					return pattern.File{Path: t, Owner: r.Name}, nil
				case pattern.File:
					return t, nil
				}
			}
			p, err := r.toPattern(v)
			if err != nil {
				return pattern.File{}, err
			}
			return p.Concretize(wc, pattern.ApplyOptions{FailDynamic: r.HasDynamicOutput()})
		},
	}
	if _, err := applyWildcards(r, files, r.log, wc, opts); err != nil {
		return nil, r.wildcardHint(err, wc, "wildcards in log files cannot be determined from output files")
	}
	r.checkPaths(files)
	return files, nil
}

// ExpandBenchmark concretizes the benchmark file, or returns nil.
func (r *Rule) ExpandBenchmark(wc pattern.Wildcards) (*pattern.File, error) {
	if r.benchmark == nil {
		return nil, nil
	}
	p := r.benchmark.Pattern
	if r.benchmark.Func != nil {
		v, _, err := r.applyFunc(r.benchmark.Func, wc, callOptions{avail: eval.Args{}})
		if err != nil {
			return nil, err
		}
		s, ok := v.(string)
		if !ok {
			return nil, r.errorf(ErrWorkflow, "benchmark function must return a string, got %T", v)
		}
		p, err = r.toPattern(r.BenchmarkModifier.ModifyString(s))
		if err != nil {
			return nil, r.wrap(ErrPattern, err, wc, "")
		}
	}
	f, err := p.Concretize(wc, pattern.ApplyOptions{})
	if err != nil {
		return nil, r.wildcardHint(err, wc, "wildcards in benchmark file cannot be determined from output files")
	}
	r.checkPath(f)
	return &f, nil
}

// ExpandGroup resolves the group of a job. Literal groups may use
// wildcards; missing ones are filled with the dynamic marker.
func (r *Rule) ExpandGroup(wc pattern.Wildcards) (any, error) {
	if r.group == nil {
		return nil, nil
	}
	if r.group.Func != nil {
		v, _, err := r.applyFunc(r.group.Func, wc, callOptions{avail: eval.Args{eval.Rulename: r.Name}})
		return v, err
	}
	s, ok := r.group.Value.(string)
	if !ok {
		return r.group.Value, nil
	}
	return pattern.Substitute(s, wc, pattern.ApplyOptions{FillMissing: true})
}

// wildcardHint rewraps wildcard errors with guidance for the collection.
func (r *Rule) wildcardHint(err error, wc pattern.Wildcards, hint string) error {
	var we *pattern.WildcardError
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	if errors.As(err, &we) {
		return r.wrap(ErrWildcard, err, wc, hint)
	}
	var pe *pattern.PatternError
	if errors.As(err, &pe) {
		return r.wrap(ErrPattern, err, wc, "")
	}
	return r.wrap(ErrWorkflow, err, wc, "")
}

func (r *Rule) checkPaths(files *Files) {
	for _, f := range files.Items() {
		r.checkPath(f)
	}
}

func (r *Rule) checkPath(f pattern.File) {
	for _, w := range pattern.CheckPath(f) {
		r.workflow.Log.Warnw(w, "rule", r.Name, "path", f.Path)
	}
}
