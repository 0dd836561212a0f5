package rule

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ormasoftchile/rulekit/pkg/kernel/eval"
	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
)

func mustRule(t *testing.T, w *Workflow, name string) *Rule {
	t.Helper()
	r, err := w.NewRule(name)
	if err != nil {
		t.Fatalf("NewRule(%q): %v", name, err)
	}
	return r
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func observedWorkflow() (*Workflow, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	return NewWorkflow(zap.New(core).Sugar()), logs
}

func TestNewRule_Duplicate(t *testing.T) {
	w := NewWorkflow(nil)
	mustRule(t, w, "a")
	if _, err := w.NewRule("a"); !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected syntax error, got %v", err)
	}
	if _, err := w.NewRule(""); !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected syntax error for empty name, got %v", err)
	}
}

func TestSetOutput_Duplicates(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "dup")
	err := r.SetOutput("a.txt", "a.txt")
	if !errors.Is(err, ErrWorkflow) {
		t.Fatalf("expected workflow error, got %v", err)
	}
	if !strings.Contains(err.Error(), "entries 0 and 1") {
		t.Errorf("error should name the duplicate entries: %v", err)
	}
}

func TestSetOutput_FunctionRejected(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "f")
	fn := eval.NewFunc("out", func(pattern.Wildcards, eval.Args) (any, error) { return "x", nil })
	if err := r.SetOutput(fn); !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected syntax error, got %v", err)
	}
}

func TestSetOutput_InconsistentWildcards(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "mixed")
	must(t, r.SetOutput("{a}.txt"))
	if err := r.SetLog("logs/{b}.log"); !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected syntax error for log wildcards, got %v", err)
	}
	if err := r.SetOutput("{a}/{c}.txt"); !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected syntax error for output wildcards, got %v", err)
	}
}

func TestSetOutput_DynamicAllOrNothing(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "dyn")
	if err := r.SetOutput(pattern.Dynamic("chunks/{i}.txt"), "chunks/{i}.done"); !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected syntax error, got %v", err)
	}
}

func TestSetOutput_GlobalConstraints(t *testing.T) {
	w := NewWorkflow(nil)
	w.WildcardConstraints["sample"] = "S[0-9]+"
	r := mustRule(t, w, "c")
	r.SetWildcardConstraints(map[string]string{"chunk": `\d+`})
	must(t, r.SetOutput("res/{sample}/{chunk}.txt", "res/{sample,[a-z]+}/{chunk}.log"))

	got := []string{r.Output().At(0).Pattern.String(), r.Output().At(1).Pattern.String()}
	want := []string{`res/{sample,S[0-9]+}/{chunk,\d+}.txt`, `res/{sample,[a-z]+}/{chunk,\d+}.log`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("constrained templates (-want +got):\n%s", diff)
	}
}

func TestSetVersion(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "v")
	must(t, r.SetVersion("1.2"))
	if err := r.SetVersion("1\n2"); !errors.Is(err, ErrWorkflow) {
		t.Fatalf("expected workflow error, got %v", err)
	}
	if r.Version() != "1.2" {
		t.Errorf("version = %q", r.Version())
	}
}

func TestSetBenchmark_FunctionCapabilities(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "b")
	must(t, r.SetOutput("{s}.txt"))
	bad := eval.NewFunc("bench", func(pattern.Wildcards, eval.Args) (any, error) { return "b.tsv", nil }, eval.Input)
	if err := r.SetBenchmark(bad); !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected syntax error, got %v", err)
	}
	good := eval.NewFunc("bench", func(wc pattern.Wildcards, _ eval.Args) (any, error) {
		return "bench/" + wc["s"] + ".tsv", nil
	}, eval.WildcardsCap)
	must(t, r.SetBenchmark(good))
	f, err := r.ExpandBenchmark(pattern.Wildcards{"s": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if f.Path != "bench/x.tsv" {
		t.Errorf("benchmark = %q", f.Path)
	}
}

func TestSetBenchmark_RejectsNonPaths(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "b")
	must(t, r.SetOutput("{s}.txt"))
	for _, v := range []any{
		Named("bench", "bench/{s}.tsv"),
		[]any{"bench/{s}.a.tsv", "bench/{s}.b.tsv"},
		42,
	} {
		if err := r.SetBenchmark(v); !errors.Is(err, ErrSyntax) {
			t.Errorf("SetBenchmark(%v): expected syntax error, got %v", v, err)
		}
	}
	f, err := r.ExpandBenchmark(pattern.Wildcards{"s": "x"})
	if err != nil || f != nil {
		t.Errorf("rejected benchmark must not be recorded, got %v, %v", f, err)
	}
}

func TestFlagWarnings(t *testing.T) {
	w, logs := observedWorkflow()
	r := mustRule(t, w, "warn")
	must(t, r.SetInput(pattern.Temp("in.txt"), "{s,[0-9]+}.raw"))
	must(t, r.SetOutput(pattern.Ancient("{s}.out")))

	var msgs []string
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
	}
	want := []string{
		"flag is only valid for outputs, not inputs",
		"wildcard constraints in inputs are ignored",
		"flag is only valid for inputs, not outputs",
	}
	if diff := cmp.Diff(want, msgs); diff != "" {
		t.Errorf("warnings (-want +got):\n%s", diff)
	}
	if got := logs.FilterField(zap.String("flag", "temp")).Len(); got != 1 {
		t.Errorf("expected one warning about temp, got %d", got)
	}
}

func TestAllTemp(t *testing.T) {
	w := NewWorkflow(nil)
	w.AllTemp = true
	r := mustRule(t, w, "t")
	must(t, r.SetOutput("{s}.txt"))
	if !r.IsTemp("{s}.txt") {
		t.Error("output should be temp in all-temp mode")
	}
}

func TestCheckCaching(t *testing.T) {
	w := NewWorkflow(nil)
	w.CacheRules["plain"] = true
	w.CacheRules["multi"] = true
	w.CacheRules["single"] = true

	plain := mustRule(t, w, "plain")
	if err := plain.SetOutput("a.txt", "b.txt"); !errors.Is(err, ErrWorkflow) {
		t.Fatalf("expected workflow error for several plain outputs, got %v", err)
	}
	multi := mustRule(t, w, "multi")
	must(t, multi.SetOutput(pattern.Multiext("ref/genome", ".fai", ".dict")))
	if got := multi.Output().Len(); got != 2 {
		t.Errorf("multiext outputs = %d, want 2", got)
	}
	single := mustRule(t, w, "single")
	must(t, single.SetOutput("one.txt"))

	none := mustRule(t, w, "none")
	w.CacheRules["none"] = true
	if err := none.SetOutput(); !errors.Is(err, ErrWorkflow) {
		t.Fatalf("expected workflow error without outputs, got %v", err)
	}
}

func TestSubworkflowInput(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "s")
	must(t, r.SetInput(pattern.Flag("lib/x.txt", pattern.FlagSubworkflow, "lib")))
	if diff := cmp.Diff(map[string]string{"lib/x.txt": "lib"}, r.SubworkflowInputs()); diff != "" {
		t.Errorf("subworkflow inputs (-want +got):\n%s", diff)
	}
	err := r.SetInput(pattern.Flag("lib/x.txt", pattern.FlagSubworkflow, "other"))
	if !errors.Is(err, ErrWorkflow) {
		t.Fatalf("expected workflow error, got %v", err)
	}
	if err := r.SetOutput(pattern.Flag("o.txt", pattern.FlagSubworkflow, "lib")); !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected syntax error for subworkflow output, got %v", err)
	}
}

func TestProxy_StripsConstraints(t *testing.T) {
	w := NewWorkflow(nil)
	idx := mustRule(t, w, "index")
	must(t, idx.SetOutput(Named("fai", "ref/{genome,[a-z0-9]+}.fai")))

	p, err := w.Proxy("index")
	if err != nil {
		t.Fatal(err)
	}
	outs, err := p.OutputNamed("fai")
	if err != nil {
		t.Fatal(err)
	}
	if got := outs[0].String(); got != "ref/{genome}.fai" {
		t.Errorf("proxy output = %q", got)
	}
	if outs[0].Owner() != "index" {
		t.Errorf("proxy owner = %q", outs[0].Owner())
	}
	if _, err := p.OutputNamed("missing"); !errors.Is(err, ErrWorkflow) {
		t.Errorf("expected workflow error, got %v", err)
	}
	if _, err := w.Proxy("nope"); !errors.Is(err, ErrWorkflow) {
		t.Errorf("expected workflow error, got %v", err)
	}
}

func TestPathModifier(t *testing.T) {
	m := &PathModifier{Prefix: "mod/", ReplacePrefix: map[string]string{"ref/": "/data/ref/", "ref/big/": "/big/"}}
	tests := []struct {
		in, want string
	}{
		{"a/{s}.txt", "mod/a/{s}.txt"},
		{"ref/genome.fa", "/data/ref/genome.fa"},
		{"ref/big/x.fa", "/big/x.fa"},
		{"/abs/path", "/abs/path"},
		{"s3://bucket/key", "s3://bucket/key"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := m.Modify(pattern.Annotated{Text: tt.in})
			if got.Text != tt.want {
				t.Errorf("Modify(%q) = %q, want %q", tt.in, got.Text, tt.want)
			}
			again := m.Modify(got)
			if again.Text != got.Text {
				t.Errorf("second Modify changed %q to %q", got.Text, again.Text)
			}
		})
	}
	if got := m.Modify(pattern.Annotated{Text: "x"}); got.Flags.Value(pattern.FlagModifiedBy) != m.ID() {
		t.Errorf("modified_by flag = %v", got.Flags.Value(pattern.FlagModifiedBy))
	}
	var zero *PathModifier
	if got := zero.Modify(pattern.Annotated{Text: "x"}); got.Text != "x" {
		t.Errorf("nil modifier changed the path to %q", got.Text)
	}
}
