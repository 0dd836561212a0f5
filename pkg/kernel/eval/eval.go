// Package eval implements the calling convention for user evaluation
// functions: every function declares up front which pieces of job context it
// consumes, and only those are handed to it.
package eval

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
)

// Capability names one injectable piece of job context.
type Capability uint8

const (
	Input Capability = iota
	Output
	Params
	Resources
	Threads
	WildcardsCap
	Attempt
	Rulename
	GroupID
)

var capabilityNames = [...]string{
	Input:        "input",
	Output:       "output",
	Params:       "params",
	Resources:    "resources",
	Threads:      "threads",
	WildcardsCap: "wildcards",
	Attempt:      "attempt",
	Rulename:     "rulename",
	GroupID:      "groupid",
}

func (c Capability) String() string {
	if int(c) < len(capabilityNames) {
		return capabilityNames[c]
	}
	return fmt.Sprintf("capability(%d)", c)
}

// ParseCapability maps a context name to its capability.
func ParseCapability(name string) (Capability, bool) {
	for i, n := range capabilityNames {
		if n == name {
			return Capability(i), true
		}
	}
	return 0, false
}

// AllCapabilities lists every capability in declaration order.
func AllCapabilities() []Capability {
	out := make([]Capability, len(capabilityNames))
	for i := range out {
		out[i] = Capability(i)
	}
	return out
}

// Args is the context made available to, or passed into, a function.
type Args map[Capability]any

// Clone returns a shallow copy.
func (a Args) Clone() Args {
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// CallFunc is the body of an evaluation function. Wildcards are always
// passed; args holds exactly the declared capabilities.
type CallFunc func(wc pattern.Wildcards, args Args) (any, error)

// Func is a user evaluation function together with the set of capabilities
// it consumes.
type Func struct {
	Name   string
	Needs  []Capability
	Source string
	call   CallFunc
}

// NewFunc declares a function consuming needs.
func NewFunc(name string, call CallFunc, needs ...Capability) *Func {
	return &Func{Name: name, Needs: slices.Clone(needs), call: call}
}

// Wants reports whether f declared c.
func (f *Func) Wants(c Capability) bool {
	return slices.Contains(f.Needs, c)
}

func (f *Func) String() string {
	if f.Source != "" {
		return f.Source
	}
	if f.Name != "" {
		return "<function " + f.Name + ">"
	}
	return "<function>"
}

// Bind selects the declared capabilities from avail. A declared capability
// that is not available is an error.
func (f *Func) Bind(avail Args) (Args, error) {
	out := make(Args, len(f.Needs))
	var missing []string
	for _, c := range f.Needs {
		v, ok := avail[c]
		if !ok {
			missing = append(missing, c.String())
			continue
		}
		out[c] = v
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s requests unavailable context: %s", f, strings.Join(missing, ", "))
	}
	return out, nil
}

// Call binds avail, invokes f and realizes lazy sequences in the result.
func (f *Func) Call(wc pattern.Wildcards, avail Args) (any, error) {
	args, err := f.Bind(avail)
	if err != nil {
		return nil, err
	}
	v, err := f.call(wc.Clone(), args)
	if err != nil {
		return nil, err
	}
	return Realize(v)
}

// Realize drains lazy sequences into slices so that errors raised while
// producing values surface at call time.
func Realize(v any) (any, error) {
	switch s := v.(type) {
	case iter.Seq[any]:
		return slices.Collect(s), nil
	case iter.Seq[string]:
		return slices.Collect(s), nil
	case iter.Seq2[any, error]:
		var out []any
		for item, err := range s {
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case iter.Seq2[string, error]:
		var out []string
		for item, err := range s {
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	}
	return v, nil
}

// TBD stands in for a value that cannot be computed yet, typically during a
// dry run before input files exist.
type TBD struct{}

// TBDString is the textual form of TBD used inside path lists.
const TBDString = "<TBD>"

func (TBD) String() string { return TBDString }

// IsTBD reports whether v is the TBD placeholder.
func IsTBD(v any) bool {
	switch t := v.(type) {
	case TBD:
		return true
	case string:
		return t == TBDString
	}
	return false
}

// IncompleteCheckpointError signals that a function depends on the output of
// a checkpoint that has not been executed yet.
type IncompleteCheckpointError struct {
	Rule       string
	TargetFile string
}

func (e *IncompleteCheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s is incomplete: %s does not exist yet", e.Rule, e.TargetFile)
}

// AsIncompleteCheckpoint extracts the checkpoint signal from err.
func AsIncompleteCheckpoint(err error) (*IncompleteCheckpointError, bool) {
	var ic *IncompleteCheckpointError
	if errors.As(err, &ic) {
		return ic, true
	}
	return nil, false
}
