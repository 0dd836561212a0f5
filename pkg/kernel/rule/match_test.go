package rule

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
)

func TestGetWildcards_ShortestMatch(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "two")
	must(t, r.SetOutput("{a}.txt", "out/{a}.txt"))

	wc, err := r.GetWildcards("out/x.txt", nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(pattern.Wildcards{"a": "x"}, wc); diff != "" {
		t.Errorf("wildcards (-want +got):\n%s", diff)
	}

	wc, err = r.GetWildcards("out/x.txt", pattern.Wildcards{"a": "out/x", "unrelated": "z"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(pattern.Wildcards{"a": "out/x"}, wc); diff != "" {
		t.Errorf("hinted wildcards (-want +got):\n%s", diff)
	}
}

func TestGetWildcards_Constraints(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "c")
	must(t, r.SetOutput("res/{sample,S[0-9]+}.bam"))

	if !r.IsProducer("res/S12.bam") {
		t.Error("expected res/S12.bam to be produced")
	}
	if r.IsProducer("res/X1.bam") {
		t.Error("constraint should reject res/X1.bam")
	}
	if _, err := r.GetWildcards("res/X1.bam", nil); !errors.Is(err, ErrUnresolved) {
		t.Errorf("expected unresolved error, got %v", err)
	}
	// a hint violating the constraint falls back to matching
	wc, err := r.GetWildcards("res/S1.bam", pattern.Wildcards{"sample": "bogus"})
	if err != nil {
		t.Fatal(err)
	}
	if wc["sample"] != "S1" {
		t.Errorf("sample = %q", wc["sample"])
	}
}

func TestGetWildcards_LogAndBenchmark(t *testing.T) {
	w := NewWorkflow(nil)
	r := mustRule(t, w, "p")
	must(t, r.SetOutput("out/{s}.txt"))
	must(t, r.SetLog("logs/{s}.log"))
	must(t, r.SetBenchmark("bench/{s}.tsv"))
	for _, path := range []string{"out/a.txt", "logs/a.log", "bench/a.tsv"} {
		wc, err := r.GetWildcards(path, nil)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		if wc["s"] != "a" {
			t.Errorf("%s: s = %q", path, wc["s"])
		}
	}
}

func TestRuleorder_Compare(t *testing.T) {
	w := NewWorkflow(nil)
	a := mustRule(t, w, "a")
	b := mustRule(t, w, "b")
	c := mustRule(t, w, "c")
	lit := mustRule(t, w, "lit")
	must(t, a.SetOutput("{x}.txt"))
	must(t, b.SetOutput("{x}.txt"))
	must(t, c.SetOutput("{x}/{y}.txt"))
	must(t, lit.SetOutput("fixed.txt"))

	var o Ruleorder
	if got := o.Compare(a, b); got != 0 {
		t.Errorf("no clauses: Compare(a, b) = %d", got)
	}
	if got := o.Compare(a, c); got != 0 {
		t.Errorf("both with wildcards: Compare(a, c) = %d, want 0", got)
	}
	if got := o.Compare(lit, c); got != 1 {
		t.Errorf("no wildcards wins: Compare(lit, c) = %d", got)
	}
	if got := o.Compare(a, lit); got != -1 {
		t.Errorf("no wildcards wins: Compare(a, lit) = %d", got)
	}
	o.Add("a", "b")
	if got := o.Compare(a, b); got != 1 {
		t.Errorf("Compare(a, b) = %d", got)
	}
	if got := o.Compare(b, a); got != -1 {
		t.Errorf("Compare(b, a) = %d", got)
	}
	o.Add("b", "a")
	if got := o.Compare(a, b); got != -1 {
		t.Errorf("later clause should win: Compare(a, b) = %d", got)
	}
	if got := o.Compare(a, a); got != 0 {
		t.Errorf("Compare(a, a) = %d", got)
	}
	if diff := cmp.Diff([][]string{{"a", "b"}, {"b", "a"}}, o.Clauses()); diff != "" {
		t.Errorf("clauses (-want +got):\n%s", diff)
	}
}

func TestWorkflow_Producer_WildcardCountIsNotPriority(t *testing.T) {
	w := NewWorkflow(nil)
	one := mustRule(t, w, "one")
	two := mustRule(t, w, "two")
	must(t, one.SetOutput("{x}.txt"))
	must(t, two.SetOutput("{x}_{y}.txt"))

	if _, _, err := w.Producer("p_q.txt", nil); !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("expected ambiguous error, got %v", err)
	}
	w.Ruleorder.Add("two", "one")
	r, wc, err := w.Producer("p_q.txt", nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Name != "two" || wc["x"] != "p" || wc["y"] != "q" {
		t.Errorf("producer = %s %v, want two x=p y=q", r.Name, wc)
	}
}

func TestWorkflow_Producer(t *testing.T) {
	w := NewWorkflow(nil)
	fast := mustRule(t, w, "fast")
	slow := mustRule(t, w, "slow")
	exact := mustRule(t, w, "exact")
	must(t, fast.SetOutput("{s}.bam"))
	must(t, slow.SetOutput("{s}.bam"))
	must(t, exact.SetOutput("special.bam"))

	if _, _, err := w.Producer("x.bam", nil); !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("expected ambiguous error, got %v", err)
	}
	if _, _, err := w.Producer("x.sam", nil); !errors.Is(err, ErrNoProducer) {
		t.Fatalf("expected no producer error, got %v", err)
	}

	r, wc, err := w.Producer("special.bam", nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Name != "exact" || len(wc) != 0 {
		t.Errorf("producer = %s %v, want exact", r.Name, wc)
	}

	w.Ruleorder.Add("slow", "fast")
	r, wc, err = w.Producer("x.bam", nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Name != "slow" || wc["s"] != "x" {
		t.Errorf("producer = %s %v, want slow", r.Name, wc)
	}

	cands, err := w.Producers("special.bam", nil)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, c := range cands {
		names = append(names, c.Rule.Name)
	}
	if diff := cmp.Diff([]string{"exact", "slow", "fast"}, names); diff != "" {
		t.Errorf("candidates (-want +got):\n%s", diff)
	}
}
