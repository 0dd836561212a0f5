// Package session opens a workflow file with user settings applied and
// prepares a resolver over it.
package session

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ormasoftchile/rulekit/pkg/config"
	"github.com/ormasoftchile/rulekit/pkg/kernel/loader"
	"github.com/ormasoftchile/rulekit/pkg/kernel/resolve"
	"github.com/ormasoftchile/rulekit/pkg/kernel/rule"
	"github.com/ormasoftchile/rulekit/pkg/kernel/schema"
	"github.com/ormasoftchile/rulekit/pkg/kernel/trace"
)

// Options configures Open. A nil Settings applies no overrides.
type Options struct {
	Settings *config.Settings
	Log      *zap.SugaredLogger
	Trace    *trace.Writer
	Workers  int
}

// Session is a loaded workflow ready for resolution.
type Session struct {
	Path     string
	Doc      *schema.Workflow
	Workflow *rule.Workflow
	Resolver *resolve.Resolver
}

// Open decodes the workflow at path, overlays the settings and registers
// every rule.
func Open(path string, opts Options) (*Session, error) {
	doc, err := schema.LoadFile(path)
	if err != nil {
		return nil, err
	}
	ropts := resolve.Options{Log: opts.Log, Trace: opts.Trace, Workers: opts.Workers}
	if s := opts.Settings; s != nil {
		s.Apply(doc)
		ropts.Attempt = s.Attempt
		ropts.SkipResources = s.SkipSet()
	}
	w, err := loader.Build(doc, loader.Options{Basedir: filepath.Dir(path), Log: opts.Log})
	if err != nil {
		return nil, err
	}
	if opts.Log != nil {
		opts.Log.Debugw("workflow loaded", "path", path, "rules", len(w.Rules()))
	}
	return &Session{
		Path:     path,
		Doc:      doc,
		Workflow: w,
		Resolver: resolve.New(w, ropts),
	}, nil
}
