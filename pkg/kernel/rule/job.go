package rule

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ormasoftchile/rulekit/pkg/kernel/namedlist"
	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
	"github.com/ormasoftchile/rulekit/pkg/kernel/resources"
)

// jobNamespace seeds deterministic job IDs.
var jobNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ormasoftchile/rulekit/job"))

// JobID returns the identity of the job of rule under wc. Equal rule names
// and assignments always give equal IDs.
func JobID(rule string, wc pattern.Wildcards) uuid.UUID {
	return uuid.NewSHA1(jobNamespace, []byte(rule+"\x00"+wc.String()))
}

// Job is a fully concrete instance of a rule.
type Job struct {
	ID           uuid.UUID
	Rule         string
	Wildcards    pattern.Wildcards
	Input        *Files
	Output       *Files
	Log          *Files
	Benchmark    *pattern.File
	Params       *namedlist.List[any]
	Resources    *resources.Set
	Group        any
	Dependencies map[string]string
	// Incomplete is set while inputs depend on an unfinished checkpoint or
	// an unknown group.
	Incomplete bool
}

// Threads returns the resolved _cores value, or 0 when it is not known yet.
func (j *Job) Threads() int {
	v, _ := j.Resources.Get(resources.Cores)
	n, _ := v.Int()
	return int(n)
}

// ExpandOptions carries the per-job context of an expansion.
type ExpandOptions struct {
	// Attempt is the 1-based retry counter handed to resource functions.
	Attempt int
	// GroupID is the job group, when already assigned.
	GroupID *string
	// SkipResources are resolved as TBD without evaluation.
	SkipResources map[string]bool
}

// Expand builds the concrete job for wc. Collections are expanded in
// dependency order: output, input, resources, params, log, benchmark and
// group.
func (r *Rule) Expand(wc pattern.Wildcards, opts ExpandOptions) (*Job, error) {
	if err := r.CheckWildcards(wc); err != nil {
		return nil, err
	}
	if opts.Attempt < 1 {
		opts.Attempt = 1
	}
	out, _, err := r.ExpandOutput(wc)
	if err != nil {
		return nil, err
	}
	in, err := r.ExpandInput(wc, opts.GroupID)
	if err != nil {
		return nil, err
	}
	res, err := r.ExpandResources(wc, Paths(in.Files), opts.Attempt, opts.SkipResources)
	if err != nil {
		return nil, err
	}
	params, err := r.ExpandParams(wc, in.Files, out, res, false)
	if err != nil {
		return nil, err
	}
	logs, err := r.ExpandLog(wc)
	if err != nil {
		return nil, err
	}
	bench, err := r.ExpandBenchmark(wc)
	if err != nil {
		return nil, err
	}
	group, err := r.ExpandGroup(wc)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:           JobID(r.Name, wc),
		Rule:         r.Name,
		Wildcards:    wc.Clone(),
		Input:        in.Files,
		Output:       out,
		Log:          logs,
		Benchmark:    bench,
		Params:       params,
		Resources:    res,
		Group:        group,
		Dependencies: in.Dependencies,
		Incomplete:   in.Incomplete,
	}, nil
}

// MissingInputs returns the inputs that do not exist on disk.
func (j *Job) MissingInputs() ([]string, error) {
	var missing []string
	for _, f := range j.Input.Items() {
		if _, err := os.Stat(f.Path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				missing = append(missing, f.Path)
				continue
			}
			return nil, err
		}
	}
	return missing, nil
}

// NewestInput returns the latest modification time among existing inputs
// not flagged ancient.
func (j *Job) NewestInput() (time.Time, error) {
	var newest time.Time
	for _, f := range j.Input.Items() {
		if f.Is(pattern.FlagAncient) {
			continue
		}
		st, err := os.Stat(f.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return time.Time{}, err
		}
		if st.ModTime().After(newest) {
			newest = st.ModTime()
		}
	}
	return newest, nil
}

type filesJSON struct {
	Paths []string                   `json:"paths"`
	Names []namedlist.Named[string] `json:"names,omitempty"`
}

func toFilesJSON(files *Files) filesJSON {
	out := filesJSON{Paths: Paths(files)}
	for _, n := range files.Names() {
		items, _, _ := files.Get(n)
		paths := make([]string, 0, len(items))
		for _, f := range items {
			paths = append(paths, f.Path)
		}
		out.Names = append(out.Names, namedlist.Named[string]{Name: n, Items: paths})
	}
	return out
}

// MarshalJSON renders the job for the scheduler and for tooling.
func (j *Job) MarshalJSON() ([]byte, error) {
	type paramJSON struct {
		Values []any                   `json:"values"`
		Names  []namedlist.Named[any] `json:"names,omitempty"`
	}
	var bench *string
	if j.Benchmark != nil {
		bench = &j.Benchmark.Path
	}
	return json.Marshal(struct {
		ID           string            `json:"id"`
		Rule         string            `json:"rule"`
		Wildcards    pattern.Wildcards `json:"wildcards"`
		Input        filesJSON         `json:"input"`
		Output       filesJSON         `json:"output"`
		Log          filesJSON         `json:"log"`
		Benchmark    *string           `json:"benchmark,omitempty"`
		Params       paramJSON         `json:"params"`
		Resources    *resources.Set    `json:"resources"`
		Group        any               `json:"group,omitempty"`
		Dependencies map[string]string `json:"dependencies,omitempty"`
		Incomplete   bool              `json:"incomplete,omitempty"`
	}{
		ID:           j.ID.String(),
		Rule:         j.Rule,
		Wildcards:    j.Wildcards,
		Input:        toFilesJSON(j.Input),
		Output:       toFilesJSON(j.Output),
		Log:          toFilesJSON(j.Log),
		Benchmark:    bench,
		Params:       paramJSON{Values: j.Params.Items(), Names: j.Params.Dict()},
		Resources:    j.Resources,
		Group:        j.Group,
		Dependencies: j.Dependencies,
		Incomplete:   j.Incomplete,
	})
}
