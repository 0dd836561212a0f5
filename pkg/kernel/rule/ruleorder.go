package rule

import "slices"

// Ruleorder holds explicit priority clauses. Within a clause, earlier names
// win over later ones; later clauses override earlier ones.
type Ruleorder struct {
	clauses [][]string
}

// Add records names in descending priority.
func (o *Ruleorder) Add(names ...string) {
	o.clauses = append(o.clauses, slices.Clone(names))
}

// Clauses returns the declared clauses in declaration order.
func (o *Ruleorder) Clauses() [][]string {
	out := make([][]string, len(o.clauses))
	for i, c := range o.clauses {
		out[i] = slices.Clone(c)
	}
	return out
}

// Compare returns a positive number when a has priority over b, a negative
// number when b has priority over a and 0 when neither wins.
func (o *Ruleorder) Compare(a, b *Rule) int {
	if a.Name != b.Name {
		for i := len(o.clauses) - 1; i >= 0; i-- {
			clause := o.clauses[i]
			ia := slices.Index(clause, a.Name)
			ib := slices.Index(clause, b.Name)
			if ia < 0 || ib < 0 {
				continue
			}
			return sign(ib - ia)
		}
	}
	// a rule without wildcards is more specific than any rule with them
	return boolInt(b.HasWildcards()) - boolInt(a.HasWildcards())
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
