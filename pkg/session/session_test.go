package session

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ormasoftchile/rulekit/pkg/config"
	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
)

const doc = `
apiVersion: rulekit/v0
rules:
  - name: count
    output: ["counts/{sample}.txt"]
    resources:
      mem_mb: {expr: "100 * attempt"}
      runtime: 5
`

func writeWorkflow(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wf.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpen_AppliesSettings(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := &config.Settings{
		Attempt:             3,
		SkipResources:       []string{"runtime"},
		WildcardConstraints: map[string]string{"sample": "[A-Z]+"},
	}
	sess, err := Open(writeWorkflow(t), Options{Settings: s, Log: zap.New(core).Sugar()})
	if err != nil {
		t.Fatal(err)
	}
	if logs.FilterMessage("workflow loaded").Len() != 1 {
		t.Error("expected a load log entry")
	}
	if _, err := sess.Resolver.Match("counts/abc.txt", nil); err == nil {
		t.Error("settings constraint should reject lower-case samples")
	}
	job, err := sess.Resolver.Expand("count", pattern.Wildcards{"sample": "A"})
	if err != nil {
		t.Fatal(err)
	}
	if mem, _ := job.Resources.Get("mem_mb"); mem.Any() != 300 {
		t.Errorf("mem_mb = %v, want 300", mem)
	}
	if rt, _ := job.Resources.Get("runtime"); !rt.IsTBD() {
		t.Errorf("runtime = %v, want TBD", rt)
	}
}

func TestOpen_NoSettings(t *testing.T) {
	sess, err := Open(writeWorkflow(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.Workflow.Rules()) != 1 || sess.Doc == nil {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestOpen_Missing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.yaml"), Options{}); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
