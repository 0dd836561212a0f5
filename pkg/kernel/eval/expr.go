package eval

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"

	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
)

// identCollector records every identifier referenced in an expression.
type identCollector struct {
	names map[string]struct{}
}

func (c *identCollector) Visit(node *ast.Node) {
	if id, ok := (*node).(*ast.IdentifierNode); ok {
		c.names[id.Value] = struct{}{}
	}
}

// Identifiers returns the identifiers referenced by source.
func Identifiers(source string) (map[string]struct{}, error) {
	tree, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	c := &identCollector{names: map[string]struct{}{}}
	ast.Walk(&tree.Node, c)
	return c.names, nil
}

// CompileExpr compiles an expression into a Func. The capability set is the
// set of context names the expression references.
func CompileExpr(name, source string) (*Func, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("expression %s is empty", name)
	}
	idents, err := Identifiers(source)
	if err != nil {
		return nil, fmt.Errorf("parse expression %q: %w", source, err)
	}
	var needs []Capability
	for _, c := range AllCapabilities() {
		if _, ok := idents[c.String()]; ok {
			needs = append(needs, c)
		}
	}
	program, err := expr.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", source, err)
	}
	f := NewFunc(name, func(wc pattern.Wildcards, args Args) (any, error) {
		return runProgram(program, wc, args)
	}, needs...)
	f.Source = source
	return f, nil
}

func runProgram(program *vm.Program, wc pattern.Wildcards, args Args) (any, error) {
	h := &helpers{}
	env := h.funcs()
	for _, c := range AllCapabilities() {
		env[c.String()] = nil
	}
	for c, v := range args {
		env[c.String()] = exprValue(v)
	}
	if _, ok := args[WildcardsCap]; !ok {
		env[WildcardsCap.String()] = exprValue(wc)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		if h.err != nil {
			return nil, h.err
		}
		return nil, err
	}
	return normalize(out), nil
}

// exprValue converts context values into shapes expressions can index.
func exprValue(v any) any {
	switch t := v.(type) {
	case pattern.Wildcards:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return m
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return m
	case fmt.Stringer:
		if IsTBD(t) {
			return TBDString
		}
	}
	return v
}

// normalize folds expression results onto the plain shapes callers expect.
func normalize(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	}
	return v
}

// helpers carries the expression helper functions. The first error raised by
// a helper is kept so its concrete type survives the expression runtime.
type helpers struct {
	err error
}

func (h *helpers) fail(err error) error {
	if h.err == nil {
		h.err = err
	}
	return err
}

func (h *helpers) funcs() map[string]any {
	return map[string]any{
		"exists": func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
		"readFile": func(path string) (string, error) {
			b, err := os.ReadFile(path)
			if err != nil {
				return "", h.fail(err)
			}
			return string(b), nil
		},
		"lines": func(path string) ([]any, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, h.fail(err)
			}
			defer f.Close()
			var out []any
			sc := bufio.NewScanner(f)
			for sc.Scan() {
				if line := strings.TrimSpace(sc.Text()); line != "" {
					out = append(out, line)
				}
			}
			if err := sc.Err(); err != nil {
				return nil, h.fail(err)
			}
			return out, nil
		},
		"basename": func(path string) string {
			return filepath.Base(path)
		},
		"checkpoint": func(rule, target string) (string, error) {
			if _, err := os.Stat(target); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return "", h.fail(&IncompleteCheckpointError{Rule: rule, TargetFile: target})
				}
				return "", h.fail(err)
			}
			return target, nil
		},
	}
}
