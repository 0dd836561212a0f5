// Package validate implements the rulekit/v0 3-phase validation pipeline:
// structural → semantic → domain.
package validate

import (
	"fmt"
	"path/filepath"

	"github.com/ormasoftchile/rulekit/pkg/kernel/rule"
	"github.com/ormasoftchile/rulekit/pkg/kernel/schema"
)

// Phase names.
const (
	PhaseStructural = "structural"
	PhaseSemantic   = "semantic"
	PhaseDomain     = "domain"
)

// ValidationError represents one error or warning from the validation pipeline.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s at %s", e.Phase, e.Message, e.Path)
	}
	return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
}

func errorf(phase, path, msg string, args ...any) *ValidationError {
	return &ValidationError{
		Phase:    phase,
		Path:     path,
		Message:  fmt.Sprintf(msg, args...),
		Severity: "error",
	}
}

func warningf(phase, path, msg string, args ...any) *ValidationError {
	return &ValidationError{
		Phase:    phase,
		Path:     path,
		Message:  fmt.Sprintf(msg, args...),
		Severity: "warning",
	}
}

// ValidateFile runs the full 3-phase pipeline on a workflow file. The rule
// registry is returned only when no phase reported an error.
func ValidateFile(path string) (*schema.Workflow, *rule.Workflow, []*ValidationError) {
	// Phase 1: Structural (strict decode)
	doc, err := schema.LoadFile(path)
	if err != nil {
		return nil, nil, []*ValidationError{errorf(PhaseStructural, "", "failed to load: %s", err)}
	}

	// Phase 2: Semantic (JSON Schema validation of the raw tree)
	tree, err := schema.DecodeTree(path)
	if err != nil {
		return doc, nil, []*ValidationError{errorf(PhaseSemantic, "", "%s", err)}
	}
	errs := validateTree(tree)
	if HasErrors(errs) {
		return doc, nil, errs
	}

	// Phase 3: Domain
	w, domainErrs := validateDomain(doc, filepath.Dir(path))
	errs = append(errs, domainErrs...)
	if HasErrors(errs) {
		return doc, nil, errs
	}
	return doc, w, errs
}

// ValidateWorkflow runs phases 2+3 on an already-decoded document.
func ValidateWorkflow(doc *schema.Workflow, baseDir string) (*rule.Workflow, []*ValidationError) {
	errs := validateSemantic(doc)
	if HasErrors(errs) {
		return nil, errs
	}
	w, domainErrs := validateDomain(doc, baseDir)
	errs = append(errs, domainErrs...)
	if HasErrors(errs) {
		return nil, errs
	}
	return w, errs
}

// HasErrors reports whether errs contains an error-severity entry.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// Errors returns the error-severity entries of errs.
func Errors(errs []*ValidationError) []*ValidationError {
	var out []*ValidationError
	for _, e := range errs {
		if e.Severity == "error" {
			out = append(out, e)
		}
	}
	return out
}

// Warnings returns the warning-severity entries of errs.
func Warnings(errs []*ValidationError) []*ValidationError {
	var out []*ValidationError
	for _, e := range errs {
		if e.Severity == "warning" {
			out = append(out, e)
		}
	}
	return out
}
