// Package resolve answers scheduler queries against a loaded workflow:
// which rule produces a path, under which wildcards, and which concrete job
// results. Every decision can be recorded in a trace.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
	"github.com/ormasoftchile/rulekit/pkg/kernel/rule"
	"github.com/ormasoftchile/rulekit/pkg/kernel/trace"
)

// Options configures a Resolver.
type Options struct {
	// Attempt is handed to resource functions. Zero means 1.
	Attempt int
	// SkipResources are resolved as TBD without evaluation.
	SkipResources map[string]bool
	// Trace receives resolution events when set.
	Trace *trace.Writer
	Log   *zap.SugaredLogger
	// Workers bounds ResolveAll. Zero means GOMAXPROCS.
	Workers int
}

// Resolver resolves paths against one workflow. It is safe for concurrent
// use once the workflow is fully registered.
type Resolver struct {
	w    *rule.Workflow
	opts Options
}

// New returns a resolver over w.
func New(w *rule.Workflow, opts Options) *Resolver {
	if opts.Log == nil {
		opts.Log = w.Log
	}
	if opts.Attempt < 1 {
		opts.Attempt = 1
	}
	if opts.Workers < 1 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Resolver{w: w, opts: opts}
}

// Workflow returns the underlying rule registry.
func (r *Resolver) Workflow() *rule.Workflow { return r.w }

// Match is the producer chosen for a path.
type Match struct {
	Path      string
	Rule      *rule.Rule
	Wildcards pattern.Wildcards
	// Candidates names every rule able to produce Path, highest priority
	// first.
	Candidates []string
}

// Resolution is a matched path together with its expanded job.
type Resolution struct {
	Match
	Job *rule.Job
}

// Match selects the rule producing path. hint pins wildcard values the
// caller already knows.
func (r *Resolver) Match(path string, hint pattern.Wildcards) (*Match, error) {
	producer, wc, err := r.w.Producer(path, hint)
	if err != nil {
		r.fail(path, err)
		return nil, err
	}
	cands, err := r.w.Producers(path, hint)
	if err != nil {
		r.fail(path, err)
		return nil, err
	}
	m := &Match{Path: path, Rule: producer, Wildcards: wc}
	for _, c := range cands {
		m.Candidates = append(m.Candidates, c.Rule.Name)
	}
	r.opts.Log.Debugw("producer selected", "path", path, "rule", producer.Name, "wildcards", wc.String())
	if tw := r.opts.Trace; tw != nil {
		tw.EmitProducerSelected(path, producer.Name, m.Candidates)
		tw.EmitWildcardsResolved(path, producer.Name, wc)
	}
	return m, nil
}

// Expand builds the job of the named rule under wc.
func (r *Resolver) Expand(name string, wc pattern.Wildcards) (*rule.Job, error) {
	rl, ok := r.w.Rule(name)
	if !ok {
		err := &rule.Error{Kind: rule.ErrWorkflow, Msg: fmt.Sprintf("no rule named %q", name)}
		r.fail("", err)
		return nil, err
	}
	return r.expand(rl, wc, "")
}

func (r *Resolver) expand(rl *rule.Rule, wc pattern.Wildcards, path string) (*rule.Job, error) {
	job, err := rl.Expand(wc, rule.ExpandOptions{
		Attempt:       r.opts.Attempt,
		SkipResources: r.opts.SkipResources,
	})
	if err != nil {
		r.fail(path, err)
		return nil, err
	}
	if tw := r.opts.Trace; tw != nil {
		tw.EmitJobExpanded(job.ID.String(), job.Rule, Summary(job), job.Incomplete)
	}
	return job, nil
}

// Resolve matches path and expands the producing job.
func (r *Resolver) Resolve(path string, hint pattern.Wildcards) (*Resolution, error) {
	m, err := r.Match(path, hint)
	if err != nil {
		return nil, err
	}
	job, err := r.expand(m.Rule, m.Wildcards, path)
	if err != nil {
		return nil, err
	}
	return &Resolution{Match: *m, Job: job}, nil
}

// ResolveAll resolves paths concurrently. Results keep the order of paths.
// The first failure cancels the remaining resolutions. Trace events are
// bracketed by resolve_start and resolve_complete.
func (r *Resolver) ResolveAll(ctx context.Context, workflow string, paths []string) ([]*Resolution, error) {
	start := time.Now()
	if tw := r.opts.Trace; tw != nil {
		tw.EmitResolveStart(workflow, paths)
	}
	out := make([]*Resolution, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.Resolve(p, nil)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	err := g.Wait()
	if tw := r.opts.Trace; tw != nil {
		status, n := "completed", len(paths)
		if err != nil {
			status, n = "failed", 0
			for _, res := range out {
				if res != nil {
					n++
				}
			}
		}
		tw.EmitResolveComplete(status, n, time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) fail(path string, err error) {
	r.opts.Log.Debugw("resolution failed", "path", path, "error", err)
	if tw := r.opts.Trace; tw != nil {
		tw.EmitResolutionFailed(path, Kind(err), err.Error())
	}
}

// Kind names the error category of err, or "error" for uncategorized
// errors.
func Kind(err error) string {
	var re *rule.Error
	if errors.As(err, &re) && re.Kind != nil {
		return re.Kind.Error()
	}
	var we *pattern.WildcardError
	if errors.As(err, &we) {
		return rule.ErrWildcard.Error()
	}
	return "error"
}

// Summary flattens a job into plain values for traces and JSON views.
func Summary(job *rule.Job) map[string]any {
	s := map[string]any{
		"wildcards": map[string]string(job.Wildcards),
		"input":     rule.Paths(job.Input),
		"output":    rule.Paths(job.Output),
		"log":       rule.Paths(job.Log),
		"resources": job.Resources.Map(),
	}
	if job.Benchmark != nil {
		s["benchmark"] = job.Benchmark.Path
	}
	if job.Group != nil {
		s["group"] = job.Group
	}
	if len(job.Dependencies) > 0 {
		s["dependencies"] = job.Dependencies
	}
	params := map[string]any{}
	for _, name := range job.Params.Names() {
		items, single, _ := job.Params.Get(name)
		if single {
			params[name] = items[0]
		} else {
			params[name] = items
		}
	}
	if len(params) > 0 {
		s["params"] = params
	}
	return s
}

// ParseWildcards reads name=value assignments as given on a command line.
func ParseWildcards(args []string) (pattern.Wildcards, error) {
	wc := pattern.Wildcards{}
	for _, a := range args {
		name, value, ok := strings.Cut(a, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid wildcard assignment %q, want name=value", a)
		}
		if _, dup := wc[name]; dup {
			return nil, fmt.Errorf("wildcard %s assigned twice", name)
		}
		wc[name] = value
	}
	return wc, nil
}
