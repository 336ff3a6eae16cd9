package css

// Element is the view of a document node the selector matcher needs. An
// HTML importer wraps its own tree type to satisfy this; the IR has no
// Element of its own since cascade resolution always happens before HTML is
// compiled into IR.
type Element interface {
	TagName() string
	ID() string
	Classes() []string
	Attr(name string) (string, bool)
	Parent() Element
	PrevElementSibling() Element
	NextElementSibling() Element
	// ElementIndex returns this element's 1-based position among its
	// parent's element children, for :nth-child.
	ElementIndex() int
	// HasChildren reports whether the element has any child nodes at all
	// (elements or non-whitespace text), for :empty.
	HasChildren() bool
}

// Matches reports whether el satisfies sel.
func Matches(sel Selector, el Element) bool {
	return matchChain(sel.Compounds, len(sel.Compounds)-1, el)
}

// matchChain matches compounds[i] against el, then recurses leftward to
// satisfy compounds[i]'s combinator against an appropriate relative.
func matchChain(compounds []CompoundSelector, i int, el Element) bool {
	if el == nil {
		return false
	}
	c := compounds[i]
	if !matchCompound(c, el) {
		return false
	}
	if i == 0 {
		return true
	}
	prev := compounds[i-1]
	switch c.Combinator {
	case CombDescendant:
		for anc := el.Parent(); anc != nil; anc = anc.Parent() {
			if matchChain(compounds, i-1, anc) {
				return true
			}
		}
		return false
	case CombChild:
		return matchChain(compounds, i-1, el.Parent())
	case CombAdjacentSibling:
		return matchChain(compounds, i-1, el.PrevElementSibling())
	case CombGeneralSibling:
		for sib := el.PrevElementSibling(); sib != nil; sib = sib.PrevElementSibling() {
			if matchChain(compounds, i-1, sib) {
				return true
			}
		}
		return false
	default:
		_ = prev
		return false
	}
}

func matchCompound(c CompoundSelector, el Element) bool {
	if c.Tag != "" && c.Tag != "*" && !equalFold(c.Tag, el.TagName()) {
		return false
	}
	if c.ID != "" && c.ID != el.ID() {
		return false
	}
	if len(c.Classes) > 0 {
		have := el.Classes()
		for _, want := range c.Classes {
			if !containsStr(have, want) {
				return false
			}
		}
	}
	for _, a := range c.Attrs {
		if !matchAttr(a, el) {
			return false
		}
	}
	for _, p := range c.Pseudos {
		if !matchPseudo(p, el) {
			return false
		}
	}
	return true
}

func matchAttr(a AttrSelector, el Element) bool {
	v, ok := el.Attr(a.Name)
	if !ok {
		return false
	}
	switch a.Op {
	case AttrExists:
		return true
	case AttrEquals:
		return v == a.Value
	case AttrIncludes:
		for _, word := range splitSpace(v) {
			if word == a.Value {
				return true
			}
		}
		return false
	case AttrDashMatch:
		return v == a.Value || hasPrefixDash(v, a.Value)
	case AttrPrefix:
		return hasPrefix(v, a.Value)
	case AttrSuffix:
		return hasSuffix(v, a.Value)
	case AttrSubstring:
		return a.Value != "" && contains(v, a.Value)
	default:
		return false
	}
}

func matchPseudo(p PseudoSelector, el Element) bool {
	switch p.Kind {
	case PseudoFirstChild:
		return el.ElementIndex() == 1
	case PseudoLastChild:
		return el.NextElementSibling() == nil
	case PseudoNthChild:
		return matchNth(p.NthA, p.NthB, el.ElementIndex())
	case PseudoRoot:
		return el.Parent() == nil
	case PseudoEmpty:
		return !el.HasChildren()
	case PseudoLink:
		_, ok := el.Attr("href")
		return ok && equalFold(el.TagName(), "a")
	case PseudoNot:
		for _, inner := range p.Not {
			if matchCompound(inner, el) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func matchNth(a, b, index int) bool {
	if a == 0 {
		return index == b
	}
	k := index - b
	if a > 0 {
		return k >= 0 && k%a == 0
	}
	return k <= 0 && k%a == 0
}
