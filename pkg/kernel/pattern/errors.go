package pattern

import "fmt"

// PatternError reports malformed wildcard syntax or conflicting constraints.
type PatternError struct {
	Template string
	Msg      string
	Err      error
}

func (e *PatternError) Error() string {
	if e.Template == "" {
		return "pattern: " + e.Msg
	}
	return fmt.Sprintf("pattern %q: %s", e.Template, e.Msg)
}

func (e *PatternError) Unwrap() error { return e.Err }

// WildcardError reports a wildcard that could not be substituted.
type WildcardError struct {
	Name     string
	Template string
	Msg      string
}

func (e *WildcardError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = "missing value for wildcard"
	}
	if e.Template == "" {
		return fmt.Sprintf("%s %q", msg, e.Name)
	}
	return fmt.Sprintf("%s %q in %q", msg, e.Name, e.Template)
}
