// Package pattern compiles path templates containing named wildcards into
// matchers and generators.
//
// A template such as "results/{sample}/{chunk,\d+}.bam" is compiled once
// into a Pattern. Apply substitutes a wildcard assignment to produce a
// concrete path; Match runs the reverse direction and recovers the
// assignment from a concrete path.
package pattern

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Wildcards maps wildcard names to values.
type Wildcards map[string]string

// Clone returns an independent copy.
func (w Wildcards) Clone() Wildcards {
	if w == nil {
		return Wildcards{}
	}
	return maps.Clone(w)
}

// Names returns the wildcard names in sorted order.
func (w Wildcards) Names() []string {
	return slices.Sorted(maps.Keys(w))
}

// String renders the assignment as "a=1, b=2" in name order.
func (w Wildcards) String() string {
	parts := make([]string, 0, len(w))
	for _, k := range w.Names() {
		parts = append(parts, k+"="+w[k])
	}
	return strings.Join(parts, ", ")
}

// DynamicFill is substituted for missing wildcards of legacy dynamic inputs.
const DynamicFill = "__rulekit_dynamic__"

const repeatGroupPrefix = "rkrep_"

// Pattern is a compiled template. A Pattern is immutable; the With*
// methods return modified copies.
type Pattern struct {
	raw         string
	segs        []segment
	names       []string
	constraints map[string]string
	re          *regexp.Regexp
	repeats     map[string]string // repeat group name -> wildcard name
	flags       Flags
	owner       string
}

// Compile parses and compiles template.
func Compile(template string) (*Pattern, error) {
	return compile(template, nil, "")
}

// MustCompile is like Compile but panics on error. Intended for tests and
// package-level templates.
func MustCompile(template string) *Pattern {
	p, err := Compile(template)
	if err != nil {
		panic(err)
	}
	return p
}

// New compiles an annotated template, keeping its flags.
func New(a Annotated) (*Pattern, error) {
	return compile(a.Text, a.Flags, "")
}

// Literal returns a pattern that matches and produces exactly path.
func Literal(path string, flags Flags) *Pattern {
	p, err := compile(escapeBraces(path), flags, "")
	if err != nil {
		// escaped text has no placeholders and cannot fail
		panic(err)
	}
	return p
}

func compile(template string, flags Flags, owner string) (*Pattern, error) {
	segs, err := parse(template)
	if err != nil {
		return nil, err
	}
	p := &Pattern{
		raw:         template,
		segs:        segs,
		constraints: map[string]string{},
		repeats:     map[string]string{},
		flags:       flags.Clone(),
		owner:       owner,
	}

	var b strings.Builder
	b.WriteString("^")
	seen := map[string]segment{}
	for _, s := range segs {
		if !s.isWildcard() {
			b.WriteString(regexp.QuoteMeta(s.literal))
			continue
		}
		first, dup := seen[s.name]
		if !dup {
			seen[s.name] = s
			p.names = append(p.names, s.name)
			expr := ".+"
			if s.hasConstraint {
				p.constraints[s.name] = s.constraint
				expr = s.constraint
			}
			fmt.Fprintf(&b, "(?P<%s>%s)", s.name, expr)
			continue
		}
		if s.hasConstraint && (!first.hasConstraint || first.constraint != s.constraint) {
			return nil, &PatternError{
				Template: template,
				Msg:      fmt.Sprintf("constraint for wildcard %q must be defined only in its first occurrence", s.name),
			}
		}
		group := repeatGroupPrefix + strconv.Itoa(len(p.repeats))
		p.repeats[group] = s.name
		expr := ".+"
		if first.hasConstraint {
			expr = first.constraint
		}
		fmt.Fprintf(&b, "(?P<%s>%s)", group, expr)
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, &PatternError{Template: template, Msg: "invalid wildcard constraint", Err: err}
	}
	p.re = re
	return p, nil
}

// String returns the template text, including constraints.
func (p *Pattern) String() string { return p.raw }

// Names returns the distinct wildcard names in order of first appearance.
func (p *Pattern) Names() []string { return slices.Clone(p.names) }

// NameSet returns the distinct wildcard names as a set.
func (p *Pattern) NameSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.names))
	for _, n := range p.names {
		set[n] = struct{}{}
	}
	return set
}

// HasWildcards reports whether the template contains any placeholder.
func (p *Pattern) HasWildcards() bool { return len(p.names) > 0 }

// Constraints returns the constraint regex of each constrained wildcard.
func (p *Pattern) Constraints() map[string]string { return maps.Clone(p.constraints) }

// Regexp returns the anchored regular expression used by Match.
func (p *Pattern) Regexp() *regexp.Regexp { return p.re }

// Flags returns the pattern's flags. The map must not be modified.
func (p *Pattern) Flags() Flags { return p.flags }

// HasFlag reports whether the named flag is set.
func (p *Pattern) HasFlag(name string) bool { return p.flags.Has(name) }

// Owner returns the name of the declaring rule, or "".
func (p *Pattern) Owner() string { return p.owner }

// WithOwner returns a copy bound to the named rule.
func (p *Pattern) WithOwner(owner string) *Pattern {
	c := *p
	c.owner = owner
	return &c
}

// WithFlags returns a copy carrying exactly flags.
func (p *Pattern) WithFlags(flags Flags) *Pattern {
	c := *p
	c.flags = flags.Clone()
	return &c
}

// WithFlag returns a copy with one more flag set.
func (p *Pattern) WithFlag(name string, value any) *Pattern {
	c := *p
	c.flags = p.flags.Set(name, value)
	return &c
}

// Annotated returns the template text with its flags.
func (p *Pattern) Annotated() Annotated {
	return Annotated{Text: p.raw, Flags: p.flags.Clone()}
}

// Match matches path against the whole template and returns the captured
// wildcard values.
func (p *Pattern) Match(path string) (Wildcards, bool) {
	m := p.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	wc := make(Wildcards, len(p.names))
	groups := p.re.SubexpNames()
	for i, g := range groups {
		if g == "" {
			continue
		}
		if _, ok := p.repeats[g]; ok {
			continue
		}
		wc[g] = m[i]
	}
	for i, g := range groups {
		name, ok := p.repeats[g]
		if !ok {
			continue
		}
		if wc[name] != m[i] {
			return nil, false
		}
	}
	return wc, true
}

// ApplyOptions controls leniency of Apply.
type ApplyOptions struct {
	// FillMissing substitutes DynamicFill for absent wildcards.
	FillMissing bool
	// FailDynamic rejects values equal to DynamicFill.
	FailDynamic bool
	// KeepMissing leaves absent wildcards in place as {name}.
	KeepMissing bool
}

// Apply substitutes every wildcard from wc.
func (p *Pattern) Apply(wc Wildcards, opts ApplyOptions) (string, error) {
	var b strings.Builder
	for _, s := range p.segs {
		if !s.isWildcard() {
			if opts.KeepMissing {
				b.WriteString(escapeBraces(s.literal))
			} else {
				b.WriteString(s.literal)
			}
			continue
		}
		v, ok := wc[s.name]
		switch {
		case ok:
			if opts.FailDynamic && v == DynamicFill {
				return "", &WildcardError{Name: s.name, Template: p.raw, Msg: "dynamic value for wildcard"}
			}
			b.WriteString(v)
		case opts.KeepMissing:
			b.WriteString("{" + s.name + "}")
		case opts.FillMissing:
			b.WriteString(DynamicFill)
		default:
			return "", &WildcardError{Name: s.name, Template: p.raw}
		}
	}
	return b.String(), nil
}

// Concretize applies wc and returns the resulting path with the pattern's
// flags.
func (p *Pattern) Concretize(wc Wildcards, opts ApplyOptions) (File, error) {
	path, err := p.Apply(wc, opts)
	if err != nil {
		return File{}, err
	}
	return File{Path: path, Flags: p.flags.Clone(), Owner: p.owner}, nil
}

// SatisfiesConstraints reports whether every value in wc that belongs to a
// constrained wildcard fully matches its constraint.
func (p *Pattern) SatisfiesConstraints(wc Wildcards) bool {
	for name, cons := range p.constraints {
		v, ok := wc[name]
		if !ok {
			continue
		}
		re, err := regexp.Compile("^(?:" + cons + ")$")
		if err != nil || !re.MatchString(v) {
			return false
		}
	}
	return true
}

// Substitute replaces the well-formed placeholders of free text with their
// values from wc. Text that does not parse as a placeholder, such as shell
// snippets or JSON, is copied unchanged; doubled braces become single ones.
// Constraints are not checked.
func Substitute(text string, wc Wildcards, opts ApplyOptions) (string, error) {
	if !strings.ContainsAny(text, "{}") {
		return text, nil
	}
	var b strings.Builder
	for i := 0; i < len(text); {
		c := text[i]
		if (c == '{' || c == '}') && i+1 < len(text) && text[i+1] == c {
			b.WriteByte(c)
			i += 2
			continue
		}
		if c != '{' {
			b.WriteByte(c)
			i++
			continue
		}
		seg, end, err := parsePlaceholder(text, i)
		if err != nil {
			b.WriteByte(c)
			i++
			continue
		}
		v, ok := wc[seg.name]
		switch {
		case ok:
			if opts.FailDynamic && v == DynamicFill {
				return "", &WildcardError{Name: seg.name, Template: text, Msg: "dynamic value for wildcard"}
			}
			b.WriteString(v)
		case opts.KeepMissing:
			b.WriteString(text[i:end])
		case opts.FillMissing:
			b.WriteString(DynamicFill)
		default:
			return "", &WildcardError{Name: seg.name, Template: text}
		}
		i = end
	}
	return b.String(), nil
}

// File is a concrete path carrying the flags of the template it came from.
type File struct {
	Path  string `json:"path"`
	Flags Flags  `json:"flags,omitempty"`
	Owner string `json:"-"`
}

func (f File) String() string { return f.Path }

// Is reports whether the file carries the named flag.
func (f File) Is(flag string) bool { return f.Flags.Has(flag) }
