package pattern

// UpdateConstraints rewrites the first occurrence of every unconstrained
// wildcard {name} into {name,regex}, taking regex from rule first and from
// global second. Inline constraints are never overridden.
func UpdateConstraints(template string, rule, global map[string]string) (string, error) {
	if len(rule) == 0 && len(global) == 0 {
		return template, nil
	}
	segs, err := parse(template)
	if err != nil {
		return "", err
	}
	examined := map[string]bool{}
	for i, s := range segs {
		if !s.isWildcard() || examined[s.name] {
			continue
		}
		examined[s.name] = true
		if s.hasConstraint {
			continue
		}
		cons, ok := rule[s.name]
		if !ok {
			cons, ok = global[s.name]
		}
		if ok {
			segs[i].constraint = cons
			segs[i].hasConstraint = true
		}
	}
	return render(segs), nil
}

// HasConstraints reports whether any wildcard of template carries an inline
// constraint. Malformed templates report false.
func HasConstraints(template string) bool {
	segs, err := parse(template)
	if err != nil {
		return false
	}
	for _, s := range segs {
		if s.hasConstraint {
			return true
		}
	}
	return false
}

// StripConstraints removes every inline constraint from template.
func StripConstraints(template string) (string, error) {
	segs, err := parse(template)
	if err != nil {
		return "", err
	}
	for i := range segs {
		segs[i].constraint = ""
		segs[i].hasConstraint = false
	}
	return render(segs), nil
}

// EscapeExcept turns every wildcard whose name is not in keep into literal
// text, so that a later Expand leaves it untouched. Selected wildcards are
// emitted without their constraint.
func EscapeExcept(template string, keep map[string][]string) (string, error) {
	segs, err := parse(template)
	if err != nil {
		return "", err
	}
	out := make([]segment, 0, len(segs))
	for _, s := range segs {
		if !s.isWildcard() {
			out = append(out, s)
			continue
		}
		if _, ok := keep[s.name]; ok {
			out = append(out, segment{name: s.name})
			continue
		}
		out = append(out, segment{literal: render([]segment{s})})
	}
	return render(out), nil
}
