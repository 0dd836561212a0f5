package rule

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ormasoftchile/rulekit/pkg/kernel/eval"
	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
	"github.com/ormasoftchile/rulekit/pkg/kernel/resources"
)

func alignRule(t *testing.T, w *Workflow) *Rule {
	t.Helper()
	r := mustRule(t, w, "align")
	must(t, r.SetInput("reads/{sample}.fq", Named("ref", "ref/genome.fa")))
	must(t, r.SetOutput(Named("bam", "results/{sample}.bam")))
	must(t, r.SetLog("logs/{sample}.log"))
	must(t, r.SetParams(Named("rg", "@RG\tID:{sample}")))
	r.SetThreads(Spec{Value: 4})
	return r
}

func TestExpand_Align(t *testing.T) {
	w := NewWorkflow(nil)
	r := alignRule(t, w)

	job, err := r.Expand(pattern.Wildcards{"sample": "S1"}, ExpandOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"reads/S1.fq", "ref/genome.fa"}, Paths(job.Input)); diff != "" {
		t.Errorf("input (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"results/S1.bam"}, Paths(job.Output)); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"logs/S1.log"}, Paths(job.Log)); diff != "" {
		t.Errorf("log (-want +got):\n%s", diff)
	}
	ref, single, ok := job.Input.Get("ref")
	if !ok || !single || ref[0].Path != "ref/genome.fa" {
		t.Errorf("named input ref = %v (single=%v ok=%v)", ref, single, ok)
	}
	rg, _, _ := job.Params.Get("rg")
	if rg[0] != "@RG\tID:S1" {
		t.Errorf("param rg = %q", rg[0])
	}
	if job.Threads() != 4 {
		t.Errorf("threads = %d", job.Threads())
	}
	if job.Incomplete {
		t.Error("job should be complete")
	}

	wc, err := r.GetWildcards("results/S1.bam", nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(pattern.Wildcards{"sample": "S1"}, wc); diff != "" {
		t.Errorf("wildcards (-want +got):\n%s", diff)
	}
}

func TestExpand_UnresolvedWildcards(t *testing.T) {
	w := NewWorkflow(nil)
	r := alignRule(t, w)
	if _, err := r.Expand(pattern.Wildcards{}, ExpandOptions{}); !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected unresolved error, got %v", err)
	}
}

func TestExpand_InputWildcardNotInOutput(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "bad")
	must(t, r.SetInput("{other}.txt"))
	must(t, r.SetOutput("{s}.out"))
	_, err := r.Expand(pattern.Wildcards{"s": "x"}, ExpandOptions{})
	if !errors.Is(err, ErrWildcard) {
		t.Fatalf("expected wildcard error, got %v", err)
	}
	var we *pattern.WildcardError
	if !errors.As(err, &we) || we.Name != "other" {
		t.Errorf("expected wildcard error naming 'other', got %v", err)
	}
}

func TestExpand_JobIDDeterministic(t *testing.T) {
	w := NewWorkflow(nil)
	r := alignRule(t, w)
	a, err := r.Expand(pattern.Wildcards{"sample": "S1"}, ExpandOptions{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Expand(pattern.Wildcards{"sample": "S1"}, ExpandOptions{Attempt: 3})
	if err != nil {
		t.Fatal(err)
	}
	c, err := r.Expand(pattern.Wildcards{"sample": "S2"}, ExpandOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID {
		t.Errorf("same rule and wildcards gave different IDs %s and %s", a.ID, b.ID)
	}
	if a.ID == c.ID {
		t.Error("different wildcards gave the same ID")
	}
	if a.ID != JobID("align", pattern.Wildcards{"sample": "S1"}) {
		t.Error("Job.ID does not match JobID")
	}
}

func TestExpand_InputFunctions(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "fn")
	extra := eval.NewFunc("extra", func(wc pattern.Wildcards, _ eval.Args) (any, error) {
		if wc["s"] == "S1" {
			return []string{"a.txt", "b.txt"}, nil
		}
		return []string{}, nil
	}, eval.WildcardsCap)
	unpacked := eval.NewFunc("idx", func(pattern.Wildcards, eval.Args) (any, error) {
		return map[string]any{"fai": "ref/g.fa.fai", "dict": "ref/g.dict"}, nil
	})
	must(t, r.SetInput("in/{s}.txt", Named("extra", extra), Unpack(unpacked)))
	must(t, r.SetOutput("out/{s}.txt"))

	in, err := r.ExpandInput(pattern.Wildcards{"s": "S1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"in/S1.txt", "a.txt", "b.txt", "ref/g.dict", "ref/g.fa.fai"}
	if diff := cmp.Diff(want, Paths(in.Files)); diff != "" {
		t.Errorf("input (-want +got):\n%s", diff)
	}
	got, single, _ := in.Files.Get("extra")
	if single || len(got) != 2 {
		t.Errorf("extra should name a range of 2, got %v (single=%v)", got, single)
	}
	fai, _, ok := in.Files.Get("fai")
	if !ok || fai[0].Path != "ref/g.fa.fai" {
		t.Errorf("unpacked name fai = %v", fai)
	}

	in, err = r.ExpandInput(pattern.Wildcards{"s": "S2"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, _, ok := in.Files.Get("extra"); !ok || len(got) != 0 {
		t.Errorf("extra should be an empty named range, got %v (ok=%v)", got, ok)
	}
}

func TestExpand_InputFunctionTypeCheck(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "typed")
	bad := eval.NewFunc("bad", func(pattern.Wildcards, eval.Args) (any, error) { return 42, nil })
	must(t, r.SetInput(bad))
	must(t, r.SetOutput("x.txt"))
	if _, err := r.ExpandInput(pattern.Wildcards{}, nil); !errors.Is(err, ErrWorkflow) {
		t.Fatalf("expected workflow error, got %v", err)
	}
}

func TestExpand_InputFunctionError(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "failing")
	boom := errors.New("boom")
	fn := eval.NewFunc("f", func(pattern.Wildcards, eval.Args) (any, error) { return nil, boom })
	must(t, r.SetInput(fn))
	must(t, r.SetOutput("x.txt"))
	_, err := r.ExpandInput(pattern.Wildcards{}, nil)
	if !errors.Is(err, ErrFunction) || !errors.Is(err, boom) {
		t.Fatalf("expected function error wrapping boom, got %v", err)
	}
}

func TestExpand_Checkpoint(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "after")
	fn := eval.NewFunc("agg", func(pattern.Wildcards, eval.Args) (any, error) {
		return nil, &eval.IncompleteCheckpointError{Rule: "split", TargetFile: "split/done"}
	})
	must(t, r.SetInput(fn))
	must(t, r.SetOutput("agg.txt"))

	job, err := r.Expand(pattern.Wildcards{}, ExpandOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !job.Incomplete {
		t.Error("job should be incomplete")
	}
	if diff := cmp.Diff([]string{"split/done"}, Paths(job.Input)); diff != "" {
		t.Errorf("input (-want +got):\n%s", diff)
	}
}

func TestExpand_CheckpointExpr(t *testing.T) {
	target := filepath.Join(t.TempDir(), "done")
	w := NewWorkflow(nil)
	r := mustRule(t, w, "after")
	fn, err := eval.CompileExpr("agg", fmt.Sprintf("[checkpoint('split', %q)]", target))
	if err != nil {
		t.Fatal(err)
	}
	must(t, r.SetInput(fn))
	must(t, r.SetOutput("agg.txt"))

	in, err := r.ExpandInput(pattern.Wildcards{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !in.Incomplete {
		t.Error("expected incomplete input before the checkpoint ran")
	}
	if err := os.WriteFile(target, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	in, err = r.ExpandInput(pattern.Wildcards{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if in.Incomplete {
		t.Error("expected complete input after the checkpoint ran")
	}
	if diff := cmp.Diff([]string{target}, Paths(in.Files)); diff != "" {
		t.Errorf("input (-want +got):\n%s", diff)
	}
}

func TestExpand_GroupID(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "grouped")
	fn := eval.NewFunc("g", func(_ pattern.Wildcards, args eval.Args) (any, error) {
		return "shared/" + args[eval.GroupID].(string) + ".txt", nil
	}, eval.GroupID)
	must(t, r.SetInput(fn))
	must(t, r.SetOutput("{s}.txt"))

	job, err := r.Expand(pattern.Wildcards{"s": "a"}, ExpandOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !job.Incomplete || job.Input.Len() != 0 {
		t.Errorf("without group: incomplete=%v input=%v", job.Incomplete, Paths(job.Input))
	}
	gid := "g1"
	job, err = r.Expand(pattern.Wildcards{"s": "a"}, ExpandOptions{GroupID: &gid})
	if err != nil {
		t.Fatal(err)
	}
	if job.Incomplete {
		t.Error("job should be complete with a known group")
	}
	if diff := cmp.Diff([]string{"shared/g1.txt"}, Paths(job.Input)); diff != "" {
		t.Errorf("input (-want +got):\n%s", diff)
	}
}

func TestExpand_Dependencies(t *testing.T) {
	w := NewWorkflow(nil)
	idx := mustRule(t, w, "index")
	must(t, idx.SetOutput(Named("fai", "ref/{g}.fai")))
	proxy, err := w.Proxy("index")
	if err != nil {
		t.Fatal(err)
	}
	fai, err := proxy.OutputNamed("fai")
	if err != nil {
		t.Fatal(err)
	}

	align := mustRule(t, w, "align")
	must(t, align.SetInput(fai[0], "reads.fq"))
	must(t, align.SetOutput("out/{g}.bam"))
	if diff := cmp.Diff(map[string]string{"ref/{g}.fai": "index"}, align.Dependencies()); diff != "" {
		t.Errorf("rule dependencies (-want +got):\n%s", diff)
	}

	job, err := align.Expand(pattern.Wildcards{"g": "hg38"}, ExpandOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]string{"ref/hg38.fai": "index"}, job.Dependencies); diff != "" {
		t.Errorf("job dependencies (-want +got):\n%s", diff)
	}
}

func TestExpand_InputModifier(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "mod")
	r.InputModifier = &PathModifier{Prefix: "module"}
	fn := eval.NewFunc("f", func(pattern.Wildcards, eval.Args) (any, error) { return "b.txt", nil })
	must(t, r.SetInput("a/{s}.txt", "/abs/x", fn))
	must(t, r.SetOutput("{s}.out"))

	in, err := r.ExpandInput(pattern.Wildcards{"s": "1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"module/a/1.txt", "/abs/x", "module/b.txt"}
	if diff := cmp.Diff(want, Paths(in.Files)); diff != "" {
		t.Errorf("input (-want +got):\n%s", diff)
	}
}

func TestExpandParams(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "p")
	depth := eval.NewFunc("depth", func(_ pattern.Wildcards, args eval.Args) (any, error) {
		return args[eval.Threads].(int) * 2, nil
	}, eval.Threads)
	must(t, r.SetInput("in/{s}.txt"))
	must(t, r.SetOutput("out/{s}.txt"))
	must(t, r.SetParams(
		Named("prefix", "tmp/{s}"),
		Named("list", []any{"{s}.a", 3}),
		Named("depth", depth),
		"plain",
	))
	r.SetThreads(Spec{Value: 3})

	job, err := r.Expand(pattern.Wildcards{"s": "x"}, ExpandOptions{})
	if err != nil {
		t.Fatal(err)
	}
	want := []any{"tmp/x", []any{"x.a", 3}, 6, "plain"}
	if diff := cmp.Diff(want, job.Params.Items()); diff != "" {
		t.Errorf("params (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"prefix", "list", "depth"}, job.Params.Names()); diff != "" {
		t.Errorf("param names (-want +got):\n%s", diff)
	}
}

func TestExpandParams_FreeText(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "p")
	must(t, r.SetOutput("out/{s}.txt"))
	must(t, r.SetParams(
		Named("awk", "awk '{print $1}' {s}"),
		Named("json", `{"k": 1}`),
		Named("mixed", []any{"{s}-{", "} {}"}),
	))
	r.SetGroup(Spec{Value: "g-{s}-{ x y }"})

	job, err := r.Expand(pattern.Wildcards{"s": "A"}, ExpandOptions{})
	if err != nil {
		t.Fatal(err)
	}
	want := []any{"awk '{print $1}' A", `{"k": 1}`, []any{"A-{", "} {}"}}
	if diff := cmp.Diff(want, job.Params.Items()); diff != "" {
		t.Errorf("params (-want +got):\n%s", diff)
	}
	if job.Group != "g-A-{ x y }" {
		t.Errorf("group = %v", job.Group)
	}

	must(t, r.SetParams(Named("bad", "echo {missing}")))
	if _, err := r.Expand(pattern.Wildcards{"s": "A"}, ExpandOptions{}); !errors.Is(err, ErrWildcard) {
		t.Errorf("unknown wildcard in a param should be a wildcard error, got %v", err)
	}
}

func TestExpandParams_Unpack(t *testing.T) {
	mapFn := eval.NewFunc("m", func(pattern.Wildcards, eval.Args) (any, error) {
		return map[string]any{"b": 2, "a": 1}, nil
	})
	listFn := eval.NewFunc("l", func(pattern.Wildcards, eval.Args) (any, error) {
		return []any{1, 2}, nil
	})

	t.Run("map", func(t *testing.T) {
		w := NewWorkflow(nil)
		r := mustRule(t, w, "m")
		must(t, r.SetOutput("o.txt"))
		must(t, r.SetParams(Unpack(mapFn)))
		job, err := r.Expand(pattern.Wildcards{}, ExpandOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]any{1, 2}, job.Params.Items()); diff != "" {
			t.Errorf("params (-want +got):\n%s", diff)
		}
		a, _, _ := job.Params.Get("a")
		b, _, _ := job.Params.Get("b")
		if a[0] != 1 || b[0] != 2 {
			t.Errorf("a=%v b=%v", a, b)
		}
	})
	t.Run("list", func(t *testing.T) {
		w := NewWorkflow(nil)
		r := mustRule(t, w, "l")
		must(t, r.SetOutput("o.txt"))
		must(t, r.SetParams(Unpack(listFn)))
		job, err := r.Expand(pattern.Wildcards{}, ExpandOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]any{1, 2}, job.Params.Items()); diff != "" {
			t.Errorf("params (-want +got):\n%s", diff)
		}
		if len(job.Params.Names()) != 0 {
			t.Errorf("list unpack should not name params, got %v", job.Params.Names())
		}
	})
	t.Run("named", func(t *testing.T) {
		w := NewWorkflow(nil)
		r := mustRule(t, w, "n")
		must(t, r.SetOutput("o.txt"))
		must(t, r.SetParams(Named("x", Unpack(mapFn))))
		if _, err := r.Expand(pattern.Wildcards{}, ExpandOptions{}); !errors.Is(err, ErrWorkflow) {
			t.Fatalf("expected workflow error, got %v", err)
		}
	})
}

func TestExpandParams_MissingFile(t *testing.T) {
	readInput := eval.NewFunc("read", func(_ pattern.Wildcards, args eval.Args) (any, error) {
		in := args[eval.Input].([]string)
		return nil, &fs.PathError{Op: "open", Path: in[0], Err: fs.ErrNotExist}
	}, eval.Input)
	readOther := eval.NewFunc("other", func(pattern.Wildcards, eval.Args) (any, error) {
		return nil, &fs.PathError{Op: "open", Path: "elsewhere.txt", Err: fs.ErrNotExist}
	})

	w := NewWorkflow(nil)
	r := mustRule(t, w, "tbd")
	must(t, r.SetInput("in/{s}.txt"))
	must(t, r.SetOutput("out/{s}.txt"))
	must(t, r.SetParams(Named("content", readInput)))
	job, err := r.Expand(pattern.Wildcards{"s": "1"}, ExpandOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got := job.Params.At(0); got != eval.TBDString {
		t.Errorf("param = %v, want %s", got, eval.TBDString)
	}

	r2 := mustRule(t, w, "fails")
	must(t, r2.SetInput("in/{s}.txt"))
	must(t, r2.SetOutput("out2/{s}.txt"))
	must(t, r2.SetParams(readOther))
	_, err = r2.Expand(pattern.Wildcards{"s": "1"}, ExpandOptions{})
	if !errors.Is(err, ErrFunction) || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected function error wrapping ErrNotExist, got %v", err)
	}
}

func TestExpandParams_CheckpointNotInInput(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "p")
	fn := eval.NewFunc("cp", func(pattern.Wildcards, eval.Args) (any, error) {
		return nil, &eval.IncompleteCheckpointError{Rule: "split", TargetFile: "split/done"}
	})
	must(t, r.SetOutput("o.txt"))
	must(t, r.SetParams(fn))
	if _, err := r.Expand(pattern.Wildcards{}, ExpandOptions{}); !errors.Is(err, ErrWorkflow) {
		t.Fatalf("expected workflow error, got %v", err)
	}

	r2 := mustRule(t, w, "p2")
	must(t, r2.SetInput("split/done"))
	must(t, r2.SetOutput("o2.txt"))
	must(t, r2.SetParams(fn))
	job, err := r2.Expand(pattern.Wildcards{}, ExpandOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got := job.Params.At(0); got != eval.TBDString {
		t.Errorf("param = %v, want %s", got, eval.TBDString)
	}
}

func TestExpandLog_FunctionVerbatim(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "l")
	must(t, r.SetOutput("{s}.txt"))
	fn := eval.NewFunc("log", func(pattern.Wildcards, eval.Args) (any, error) { return "logs/{literal}.log", nil })
	must(t, r.SetLog(fn))
	logs, err := r.ExpandLog(pattern.Wildcards{"s": "a"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"logs/{literal}.log"}, Paths(logs)); diff != "" {
		t.Errorf("log (-want +got):\n%s", diff)
	}
}

func TestExpandGroup(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "g")
	must(t, r.SetOutput("{s}.txt"))

	r.SetGroup(Spec{Value: "grp-{s}"})
	g, err := r.ExpandGroup(pattern.Wildcards{"s": "a"})
	if err != nil {
		t.Fatal(err)
	}
	if g != "grp-a" {
		t.Errorf("group = %v", g)
	}
	g, err = r.ExpandGroup(pattern.Wildcards{})
	if err != nil {
		t.Fatal(err)
	}
	if g != "grp-"+pattern.DynamicFill {
		t.Errorf("group with missing wildcard = %v", g)
	}

	fn := eval.NewFunc("grp", func(_ pattern.Wildcards, args eval.Args) (any, error) {
		return "by-" + args[eval.Rulename].(string), nil
	}, eval.Rulename)
	r.SetGroup(Spec{Func: fn})
	g, err = r.ExpandGroup(pattern.Wildcards{"s": "a"})
	if err != nil {
		t.Fatal(err)
	}
	if g != "by-g" {
		t.Errorf("function group = %v", g)
	}
}

func TestJob_MissingInputs(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.txt")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := NewWorkflow(nil)
	r := mustRule(t, w, "m")
	must(t, r.SetInput(present, filepath.Join(dir, "{s}.txt")))
	must(t, r.SetOutput(filepath.Join(dir, "out", "{s}.txt")))

	job, err := r.Expand(pattern.Wildcards{"s": "absent"}, ExpandOptions{})
	if err != nil {
		t.Fatal(err)
	}
	missing, err := job.MissingInputs()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{filepath.Join(dir, "absent.txt")}, missing); diff != "" {
		t.Errorf("missing (-want +got):\n%s", diff)
	}
	newest, err := job.NewestInput()
	if err != nil {
		t.Fatal(err)
	}
	if newest.IsZero() {
		t.Error("expected the modification time of the present input")
	}
}

func TestJob_MarshalJSON(t *testing.T) {
	w := NewWorkflow(nil)
	r := alignRule(t, w)
	job, err := r.Expand(pattern.Wildcards{"sample": "S1"}, ExpandOptions{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Rule   string `json:"rule"`
		Output struct {
			Paths []string `json:"paths"`
		} `json:"output"`
		Resources map[string]any `json:"resources"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.Rule != "align" || len(got.Output.Paths) != 1 || got.Output.Paths[0] != "results/S1.bam" {
		t.Errorf("unexpected job JSON: %s", b)
	}
	if got.Resources[resources.Cores] != float64(4) {
		t.Errorf("resources = %v", got.Resources)
	}
}
