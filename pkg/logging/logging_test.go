package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "rulekit.log")
	log, err := New(Options{Level: "warn", Format: "json", File: path})
	if err != nil {
		t.Fatal(err)
	}
	log.Infow("hidden", "rule", "a")
	log.Warnw("flag is only valid for outputs, not inputs", "rule", "a", "flag", "temp")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Error("info entry should be filtered at warn level")
	}
	if !strings.Contains(out, `"flag":"temp"`) {
		t.Errorf("expected structured warning, got %s", out)
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}

func TestNop(t *testing.T) {
	Nop().Warnw("discarded")
}
