// Package css implements the subset of CSS this module needs: a tokenizer
// built on tdewolff/parse/v2/css, a selector matcher, and a cascade that
// resolves an ordered set of stylesheets plus a built-in user-agent sheet
// into an ir.ComputedStyle.
package css

// Combinator connects a CompoundSelector to the one before it in a Selector.
type Combinator int

const (
	// CombNone marks the first compound in a selector; it has no combinator.
	CombNone Combinator = iota
	CombDescendant
	CombChild
	CombAdjacentSibling
	CombGeneralSibling
)

// AttrOp is a `[attr op value]` comparison operator.
type AttrOp int

const (
	AttrExists AttrOp = iota
	AttrEquals
	AttrIncludes  // ~=
	AttrDashMatch // |=
	AttrPrefix    // ^=
	AttrSuffix    // $=
	AttrSubstring // *=
)

// AttrSelector is one `[attr op value]` clause.
type AttrSelector struct {
	Name  string
	Op    AttrOp
	Value string
}

// PseudoKind enumerates the supported pseudo-classes. Interactive ones
// (:hover, :active, :focus, :visited) are intentionally absent: in a static
// document there is no interaction state, so they always fail to match and
// aren't worth carrying as selector data.
type PseudoKind int

const (
	PseudoFirstChild PseudoKind = iota
	PseudoLastChild
	PseudoNthChild
	PseudoNot
	PseudoRoot
	PseudoEmpty
	PseudoLink
)

// PseudoSelector is one `:pseudo` or `:pseudo(arg)` clause.
type PseudoSelector struct {
	Kind PseudoKind
	// NthA, NthB hold the an+b coefficients for :nth-child.
	NthA, NthB int
	// Not holds the argument selector list for :not(...). Each is matched
	// independently; :not matches when none of them match.
	Not []CompoundSelector
}

// CompoundSelector is one "tag#id.class[attr]:pseudo" unit together with the
// combinator that connects it to the previous compound in the chain.
type CompoundSelector struct {
	Combinator Combinator
	Tag        string // "" or "*" matches any tag
	ID         string
	Classes    []string
	Attrs      []AttrSelector
	Pseudos    []PseudoSelector
}

// Selector is a left-to-right chain of compounds: ancestors first, the
// subject (the element the whole selector targets) last.
type Selector struct {
	Raw       string
	Compounds []CompoundSelector
}

// Specificity returns the (id, class-or-equivalent, type) specificity
// triple used by the cascade sort. :not(...) contributes the specificity of
// its argument, per the CSS spec; other pseudo-classes count as a class.
func (s Selector) Specificity() (ids, classes, types int) {
	for _, c := range s.Compounds {
		if c.ID != "" {
			ids++
		}
		classes += len(c.Classes) + len(c.Attrs)
		for _, ps := range c.Pseudos {
			if ps.Kind == PseudoNot {
				for _, inner := range ps.Not {
					innerSel := Selector{Compounds: []CompoundSelector{inner}}
					ia, ib, ic := innerSel.Specificity()
					ids += ia
					classes += ib
					types += ic
				}
				continue
			}
			classes++
		}
		if c.Tag != "" && c.Tag != "*" {
			types++
		}
	}
	return
}

// Subject returns the rightmost compound, the one the selector actually
// targets; the rest describe its ancestors/siblings.
func (s Selector) Subject() CompoundSelector {
	return s.Compounds[len(s.Compounds)-1]
}
