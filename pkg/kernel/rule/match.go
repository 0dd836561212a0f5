package rule

import (
	"fmt"

	"github.com/ormasoftchile/rulekit/pkg/kernel/pattern"
)

// IsProducer reports whether any output, log or benchmark template of the
// rule matches path.
func (r *Rule) IsProducer(path string) bool {
	for _, p := range r.products() {
		if _, ok := p.Match(path); ok {
			return true
		}
	}
	return false
}

// GetWildcards recovers the wildcard assignment under which the rule
// produces path.
//
// When hint covers all wildcards of the rule, each product is formatted with
// the hint first; a product reproducing path with values satisfying its
// constraints yields the hint restricted to the rule's wildcards. Otherwise
// every product is matched and the match with the smallest total length of
// captured values wins; on ties the first product wins.
func (r *Rule) GetWildcards(path string, hint pattern.Wildcards) (pattern.Wildcards, error) {
	if hint != nil && r.coveredBy(hint) {
		restricted := pattern.Wildcards{}
		for _, n := range r.WildcardNames() {
			restricted[n] = hint[n]
		}
		for _, p := range r.products() {
			applied, err := p.Apply(restricted, pattern.ApplyOptions{})
			if err != nil {
				continue
			}
			if applied == path && p.SatisfiesConstraints(restricted) {
				return restricted, nil
			}
		}
	}

	var best pattern.Wildcards
	bestLen := 0
	for _, p := range r.products() {
		wc, ok := p.Match(path)
		if !ok {
			continue
		}
		l := wildcardLen(wc)
		if best == nil || l < bestLen {
			best, bestLen = wc, l
		}
	}
	if best == nil {
		return nil, &Error{
			Kind: ErrUnresolved,
			Rule: r.Name,
			Msg:  fmt.Sprintf("%s does not match any product of the rule", path),
		}
	}
	if err := r.CheckWildcards(best); err != nil {
		return nil, err
	}
	return best, nil
}

func (r *Rule) coveredBy(wc pattern.Wildcards) bool {
	for n := range r.wildcardNames {
		if _, ok := wc[n]; !ok {
			return false
		}
	}
	return true
}

func wildcardLen(wc pattern.Wildcards) int {
	n := 0
	for _, v := range wc {
		n += len(v)
	}
	return n
}
