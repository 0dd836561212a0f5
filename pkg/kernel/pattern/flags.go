package pattern

import (
	"slices"
	"strings"
)

// Flag names recognized on templates. Unknown flags are carried opaquely.
const (
	FlagTemp        = "temp"
	FlagProtected   = "protected"
	FlagTouch       = "touch"
	FlagDirectory   = "directory"
	FlagPipe        = "pipe"
	FlagService     = "service"
	FlagEnsure      = "ensure"
	FlagAncient     = "ancient"
	FlagDynamic     = "dynamic"
	FlagReport      = "report"
	FlagSubworkflow = "subworkflow"
	FlagLocal       = "local"
	FlagUnpack      = "unpack"
	FlagMultiext    = "multiext"
	FlagModifiedBy  = "modified_by"
)

// OutputOnlyFlags are meaningless on inputs.
var OutputOnlyFlags = []string{
	FlagProtected, FlagTemp, FlagDirectory, FlagTouch, FlagPipe, FlagService, FlagEnsure,
}

// InputOnlyFlags are meaningless on outputs.
var InputOnlyFlags = []string{FlagAncient}

// Flags are out-of-band annotations attached to a template. A flag maps to
// true or to a flag-specific value (a *Report, a subworkflow name, a
// multiext prefix).
type Flags map[string]any

// normalizeFlag folds aliases onto their canonical name.
func normalizeFlag(name string) string {
	if name == "temporary" {
		return FlagTemp
	}
	return strings.TrimSpace(name)
}

// Has reports whether the flag is set.
func (f Flags) Has(name string) bool {
	if f == nil {
		return false
	}
	_, ok := f[normalizeFlag(name)]
	return ok
}

// Value returns the flag value, or nil.
func (f Flags) Value(name string) any {
	if f == nil {
		return nil
	}
	return f[normalizeFlag(name)]
}

// Set returns a copy of f with the flag set.
func (f Flags) Set(name string, value any) Flags {
	out := f.Clone()
	if out == nil {
		out = Flags{}
	}
	if value == nil {
		value = true
	}
	out[normalizeFlag(name)] = value
	return out
}

// Clone returns an independent copy. Flag values are shared.
func (f Flags) Clone() Flags {
	if f == nil {
		return nil
	}
	out := make(Flags, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Names returns the set flag names in sorted order.
func (f Flags) Names() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// Report describes how a file is presented in generated reports.
type Report struct {
	Caption     string            `json:"caption,omitempty"`
	Category    string            `json:"category,omitempty"`
	Subcategory string            `json:"subcategory,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Patterns    []string          `json:"patterns,omitempty"`
	HTMLIndex   string            `json:"htmlindex,omitempty"`
}

// Annotated is a template string that has not been compiled yet, together
// with its flags.
type Annotated struct {
	Text  string
	Flags Flags
}

func (a Annotated) String() string { return a.Text }

// Flag attaches a flag to a string, an Annotated value or a Pattern template.
func Flag(v any, name string, value any) Annotated {
	switch t := v.(type) {
	case Annotated:
		return Annotated{Text: t.Text, Flags: t.Flags.Set(name, value)}
	case *Pattern:
		return Annotated{Text: t.raw, Flags: t.flags.Set(name, value)}
	case string:
		return Annotated{Text: t, Flags: Flags{}.Set(name, value)}
	default:
		return Annotated{Text: "", Flags: Flags{}.Set(name, value)}
	}
}

func Temp(v any) Annotated { return Flag(v, FlagTemp, true) }
func Protected(v any) Annotated { return Flag(v, FlagProtected, true) }
func Touch(v any) Annotated { return Flag(v, FlagTouch, true) }
func Directory(v any) Annotated { return Flag(v, FlagDirectory, true) }
func Pipe(v any) Annotated { return Flag(v, FlagPipe, true) }
func Ancient(v any) Annotated { return Flag(v, FlagAncient, true) }
func Dynamic(v any) Annotated { return Flag(v, FlagDynamic, true) }
func Local(v any) Annotated { return Flag(v, FlagLocal, true) }

// Multiext expands prefix into one annotated template per extension, each
// remembering the shared prefix.
func Multiext(prefix string, exts ...string) []Annotated {
	out := make([]Annotated, 0, len(exts))
	for _, ext := range exts {
		out = append(out, Flag(prefix+ext, FlagMultiext, prefix))
	}
	return out
}
