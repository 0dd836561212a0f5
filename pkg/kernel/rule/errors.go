package rule

import (
	"fmt"
	"strings"

	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
)

// kind is an error category. Categories may refine a parent category, so
// errors.Is(err, ErrWorkflow) also holds for resource errors.
type kind struct {
	name   string
	parent error
}

func (k *kind) Error() string { return k.name }
func (k *kind) Unwrap() error { return k.parent }

// Error categories.
var (
	ErrSyntax     = &kind{name: "syntax error"}
	ErrWorkflow   = &kind{name: "workflow error"}
	ErrPattern    = &kind{name: "pattern error", parent: ErrSyntax}
	ErrWildcard   = &kind{name: "wildcard error"}
	ErrFunction   = &kind{name: "function error"}
	ErrResource   = &kind{name: "resource error", parent: ErrWorkflow}
	ErrUnresolved = &kind{name: "unresolved wildcards"}
	ErrInternal   = &kind{name: "internal error"}
	ErrAmbiguous  = &kind{name: "ambiguous rule", parent: ErrWorkflow}
	ErrNoProducer = &kind{name: "no producer"}
)

// Error is returned by rule registration and expansion. It exposes both its
// category and its cause to errors.Is and errors.As.
type Error struct {
	Kind      error
	Rule      string
	Wildcards pattern.Wildcards
	Msg       string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Rule != "" {
		fmt.Fprintf(&b, " in rule %s", e.Rule)
	}
	if len(e.Wildcards) > 0 {
		fmt.Fprintf(&b, " (wildcards: %s)", e.Wildcards)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func (r *Rule) errorf(k error, format string, args ...any) error {
	return &Error{Kind: k, Rule: r.Name, Msg: fmt.Sprintf(format, args...)}
}

func (r *Rule) wrap(k error, err error, wc pattern.Wildcards, msg string) error {
	return &Error{Kind: k, Rule: r.Name, Wildcards: wc.Clone(), Msg: msg, Err: err}
}
