package resolve

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ormasoftchile/rulekit/pkg/kernel/loader"
	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
	"github.com/ormasoftchile/rulekit/pkg/kernel/rule"
	"github.com/ormasoftchile/rulekit/pkg/kernel/schema"
	"github.com/ormasoftchile/rulekit/pkg/kernel/trace"
)

const workflowYAML = `
apiVersion: rulekit/v0
ruleorder:
  - [fast, slow]
rules:
  - name: fast
    input: ["in/{x}.txt"]
    output: ["out/{x}.txt"]
    threads: 2
  - name: slow
    output: ["out/{x}.txt"]
  - name: a
    output: ["a/{x}.csv"]
  - name: b
    output: ["a/{y}.csv"]
`

func newResolver(t *testing.T, tw *trace.Writer) *Resolver {
	t.Helper()
	doc, err := schema.Load(strings.NewReader(workflowYAML))
	if err != nil {
		t.Fatal(err)
	}
	w, err := loader.Build(doc, loader.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return New(w, Options{Trace: tw})
}

func events(t *testing.T, buf *bytes.Buffer) []trace.Event {
	t.Helper()
	var out []trace.Event
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var evt trace.Event
		if err := json.Unmarshal(sc.Bytes(), &evt); err != nil {
			t.Fatal(err)
		}
		out = append(out, evt)
	}
	return out
}

func eventTypes(evts []trace.Event) []trace.EventType {
	var out []trace.EventType
	for _, e := range evts {
		out = append(out, e.Type)
	}
	return out
}

func TestResolve(t *testing.T) {
	var buf bytes.Buffer
	r := newResolver(t, trace.NewWriter(&buf, "run-1"))

	res, err := r.Resolve("out/1.txt", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Rule.Name != "fast" {
		t.Errorf("rule = %s, want fast", res.Rule.Name)
	}
	if diff := cmp.Diff([]string{"fast", "slow"}, res.Candidates); diff != "" {
		t.Errorf("candidates (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"in/1.txt"}, rule.Paths(res.Job.Input)); diff != "" {
		t.Errorf("input (-want +got):\n%s", diff)
	}
	if res.Job.Threads() != 2 {
		t.Errorf("threads = %d", res.Job.Threads())
	}

	want := []trace.EventType{trace.EventProducerSelected, trace.EventWildcardsResolved, trace.EventJobExpanded}
	if diff := cmp.Diff(want, eventTypes(events(t, &buf))); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestResolve_Failures(t *testing.T) {
	tests := []struct {
		path string
		kind error
	}{
		{"missing.txt", rule.ErrNoProducer},
		{"a/1.csv", rule.ErrAmbiguous},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var buf bytes.Buffer
			r := newResolver(t, trace.NewWriter(&buf, "run-1"))
			_, err := r.Resolve(tt.path, nil)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			evts := events(t, &buf)
			if len(evts) != 1 || evts[0].Type != trace.EventResolutionFailed {
				t.Fatalf("events = %v", eventTypes(evts))
			}
			failure, _ := evts[0].Data["failure"].(map[string]any)
			if failure["kind"] != Kind(err) {
				t.Errorf("failure kind = %v, want %s", failure["kind"], Kind(err))
			}
		})
	}
}

func TestExpand(t *testing.T) {
	r := newResolver(t, nil)
	job, err := r.Expand("slow", pattern.Wildcards{"x": "7"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"out/7.txt"}, rule.Paths(job.Output)); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
	if _, err := r.Expand("nope", nil); !errors.Is(err, rule.ErrWorkflow) {
		t.Errorf("expected workflow error, got %v", err)
	}
}

func TestResolveAll(t *testing.T) {
	var buf bytes.Buffer
	r := newResolver(t, trace.NewWriter(&buf, "run-1"))

	res, err := r.ResolveAll(context.Background(), "wf.yaml", []string{"out/1.txt", "out/2.txt", "out/3.txt"})
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"1", "2", "3"} {
		if res[i].Wildcards["x"] != want {
			t.Errorf("result %d wildcards = %v", i, res[i].Wildcards)
		}
	}

	evts := events(t, &buf)
	if evts[0].Type != trace.EventResolveStart || evts[len(evts)-1].Type != trace.EventResolveComplete {
		t.Errorf("events = %v", eventTypes(evts))
	}
	if len(evts) != 2+3*3 {
		t.Errorf("expected %d events, got %d", 2+3*3, len(evts))
	}
	v, err := trace.Verify(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if !v.Intact || !v.Complete || v.Jobs != 3 {
		t.Errorf("trace report = %+v", v)
	}
}

func TestResolveAll_Failure(t *testing.T) {
	var buf bytes.Buffer
	r := newResolver(t, trace.NewWriter(&buf, "run-1"))

	if _, err := r.ResolveAll(context.Background(), "wf.yaml", []string{"out/1.txt", "missing.txt"}); !errors.Is(err, rule.ErrNoProducer) {
		t.Fatalf("expected no producer error, got %v", err)
	}
	evts := events(t, &buf)
	last := evts[len(evts)-1]
	if last.Type != trace.EventResolveComplete || last.Data["status"] != "failed" {
		t.Errorf("last event = %+v", last)
	}
}

func TestSummary(t *testing.T) {
	r := newResolver(t, nil)
	res, err := r.Resolve("out/1.txt", nil)
	if err != nil {
		t.Fatal(err)
	}
	s := Summary(res.Job)
	if diff := cmp.Diff([]string{"out/1.txt"}, s["output"]); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
	res2, _ := s["resources"].(map[string]any)
	if res2["_cores"] != 2 {
		t.Errorf("resources = %v", res2)
	}
}

func TestParseWildcards(t *testing.T) {
	wc, err := ParseWildcards([]string{"sample=S1", "expr=a=b"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(pattern.Wildcards{"sample": "S1", "expr": "a=b"}, wc); diff != "" {
		t.Errorf("wildcards (-want +got):\n%s", diff)
	}
	for _, bad := range [][]string{{"novalue"}, {"=x"}, {"a=1", "a=2"}} {
		if _, err := ParseWildcards(bad); err == nil {
			t.Errorf("ParseWildcards(%q) should fail", bad)
		}
	}
}
