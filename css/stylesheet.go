package css

import "bookforge/ir"

// Origin distinguishes the built-in user-agent stylesheet from
// author-supplied stylesheets for cascade ordering.
type Origin int

const (
	OriginUserAgent Origin = iota
	OriginAuthor
)

// FontFace is a parsed @font-face block; only the fields the exporter layer
// needs (family name and source path) are kept.
type FontFace struct {
	Family string
	Src    string
	Style  string
	Weight string
}

// Rule is one qualified rule: a selector paired with its expanded
// declarations, tagged with the source order it was parsed in (used as the
// final cascade tiebreaker).
type Rule struct {
	Selector     Selector
	Declarations []Declaration
	Order        int
}

// Stylesheet is a parsed CSS text: rules plus any @font-face blocks.
// @import and @media are intentionally not represented as structure beyond
// what the parser resolves inline: unsupported at-rules are skipped.
type Stylesheet struct {
	Origin    Origin
	Rules     []Rule
	FontFaces []FontFace
}

// candidate is one declaration up for consideration during cascade, tagged
// with everything Cascade needs to rank it.
type candidate struct {
	decl            Declaration
	specIDs         int
	specClasses     int
	specTypes       int
	order           int
	authorOverUA    int // 1 for Author, 0 for UserAgent
}

// Cascade computes the ComputedStyle for el given the ordered list of
// sheets (earlier sheets are lower priority for same-specificity/important
// ties) and the parent's already-computed style. Sheets should be supplied
// UA-first, then author stylesheets in document order.
func Cascade(sheets []*Stylesheet, el Element, parent ir.ComputedStyle) ir.ComputedStyle {
	var candidates []candidate
	order := 0
	for _, sheet := range sheets {
		authorOverUA := 0
		if sheet.Origin == OriginAuthor {
			authorOverUA = 1
		}
		for _, rule := range sheet.Rules {
			if !Matches(rule.Selector, el) {
				continue
			}
			ids, classes, types := rule.Selector.Specificity()
			for _, d := range rule.Declarations {
				candidates = append(candidates, candidate{
					decl:         d,
					specIDs:      ids,
					specClasses:  classes,
					specTypes:    types,
					order:        order,
					authorOverUA: authorOverUA,
				})
			}
			order++
		}
	}

	sortCandidates(candidates)

	out := ir.InheritableProperties(parent)
	for _, c := range candidates {
		ApplyDeclaration(&out, c.decl)
	}
	return out
}

// sortCandidates orders candidates from lowest to highest priority so a
// simple forward apply lets later entries win: important, then author over
// UA, then specificity (id, class, type), then source order.
func sortCandidates(cs []candidate) {
	less := func(a, b candidate) bool {
		ai, bi := boolRank(a.decl.Important), boolRank(b.decl.Important)
		if ai != bi {
			return ai < bi
		}
		if a.authorOverUA != b.authorOverUA {
			return a.authorOverUA < b.authorOverUA
		}
		if a.specIDs != b.specIDs {
			return a.specIDs < b.specIDs
		}
		if a.specClasses != b.specClasses {
			return a.specClasses < b.specClasses
		}
		if a.specTypes != b.specTypes {
			return a.specTypes < b.specTypes
		}
		return a.order < b.order
	}
	// Simple insertion sort: candidate lists per element are small (a
	// handful of matching rules), so O(n^2) is fine and keeps this
	// dependency-free.
	for i := 1; i < len(cs); i++ {
		j := i
		for j > 0 && less(cs[j], cs[j-1]) {
			cs[j], cs[j-1] = cs[j-1], cs[j]
			j--
		}
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
