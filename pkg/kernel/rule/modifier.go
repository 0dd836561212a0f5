package rule

import (
	"maps"
	"slices"
	"strings"

	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
)

// PathModifier rewrites relative paths declared by a rule, for example to
// relocate a module's files below a prefix.
type PathModifier struct {
	// ReplacePrefix maps an old prefix to its replacement. The longest
	// matching prefix wins.
	ReplacePrefix map[string]string `json:"replace_prefix,omitempty" yaml:"replace_prefix,omitempty" mapstructure:"replace_prefix"`
	// Prefix is prepended to paths no replacement applied to.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty" mapstructure:"prefix"`
}

// IsZero reports whether m modifies nothing.
func (m *PathModifier) IsZero() bool {
	return m == nil || (m.Prefix == "" && len(m.ReplacePrefix) == 0)
}

// ID identifies the modifier in the modified_by flag.
func (m *PathModifier) ID() string {
	if m.IsZero() {
		return ""
	}
	var b strings.Builder
	b.WriteString("prefix=" + m.Prefix)
	for _, k := range slices.Sorted(maps.Keys(m.ReplacePrefix)) {
		b.WriteString(";" + k + "->" + m.ReplacePrefix[k])
	}
	return b.String()
}

// Modify rewrites a template. Absolute paths, URLs and templates already
// rewritten by the same modifier are returned unchanged. Rewritten templates
// keep their flags and gain the modified_by flag.
func (m *PathModifier) Modify(a pattern.Annotated) pattern.Annotated {
	if m.IsZero() || skipModify(a.Text) {
		return a
	}
	id := m.ID()
	if v, ok := a.Flags.Value(pattern.FlagModifiedBy).(string); ok && v == id {
		return a
	}
	text, changed := m.rewrite(a.Text)
	if !changed {
		return a
	}
	return pattern.Annotated{Text: text, Flags: a.Flags.Set(pattern.FlagModifiedBy, id)}
}

// ModifyString rewrites a concrete path returned by a function.
func (m *PathModifier) ModifyString(p string) string {
	if m.IsZero() || skipModify(p) {
		return p
	}
	out, _ := m.rewrite(p)
	return out
}

func (m *PathModifier) rewrite(p string) (string, bool) {
	keys := slices.Collect(maps.Keys(m.ReplacePrefix))
	slices.SortFunc(keys, func(a, b string) int { return len(b) - len(a) })
	for _, k := range keys {
		if strings.HasPrefix(p, k) {
			return m.ReplacePrefix[k] + strings.TrimPrefix(p, k), true
		}
	}
	if m.Prefix != "" {
		return strings.TrimSuffix(m.Prefix, "/") + "/" + p, true
	}
	return p, false
}

func skipModify(p string) bool {
	if strings.HasPrefix(p, "/") || p == "" {
		return true
	}
	i := strings.Index(p, "://")
	return i > 0 && !strings.ContainsAny(p[:i], "/{}")
}
