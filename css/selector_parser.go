package css

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSelectorList splits a comma-separated selector group and parses each
// member independently. A member that fails to parse is dropped (with the
// error available to the caller via the returned slice length mismatch);
// callers that need strict behavior should check len(result) against the
// number of comma-separated segments.
func ParseSelectorList(raw string) []Selector {
	var out []Selector
	for _, part := range splitTopLevelComma(raw) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if sel, err := parseSelector(part); err == nil {
			out = append(out, sel)
		}
	}
	return out
}

func splitTopLevelComma(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

func parseSelector(raw string) (Selector, error) {
	raw = strings.TrimSpace(raw)
	tokens := splitCombinatorAware(raw)
	if len(tokens) == 0 {
		return Selector{}, fmt.Errorf("css: empty selector")
	}
	sel := Selector{Raw: raw}
	comb := CombNone
	for _, tok := range tokens {
		switch tok {
		case ">":
			comb = CombChild
			continue
		case "+":
			comb = CombAdjacentSibling
			continue
		case "~":
			comb = CombGeneralSibling
			continue
		}
		compound, err := parseCompound(tok)
		if err != nil {
			return Selector{}, err
		}
		compound.Combinator = comb
		sel.Compounds = append(sel.Compounds, compound)
		comb = CombDescendant
	}
	if len(sel.Compounds) == 0 {
		return Selector{}, fmt.Errorf("css: no compounds in %q", raw)
	}
	sel.Compounds[0].Combinator = CombNone
	return sel, nil
}

// splitCombinatorAware tokenizes a selector chain into compound strings and
// single-character combinator tokens (">", "+", "~"), respecting [] and ()
// nesting so combinator-like characters inside attribute/pseudo arguments
// are not mistaken for combinators.
func splitCombinatorAware(raw string) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	runes := []rune(raw)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '[', '(':
			depth++
			cur.WriteRune(r)
		case ']', ')':
			depth--
			cur.WriteRune(r)
		case ' ', '\t', '\n':
			if depth > 0 {
				cur.WriteRune(r)
				continue
			}
			flush()
		case '>', '+', '~':
			if depth > 0 {
				cur.WriteRune(r)
				continue
			}
			flush()
			out = append(out, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

// parseCompound parses one "tag#id.class[attr=v]:pseudo" unit.
func parseCompound(tok string) (CompoundSelector, error) {
	var c CompoundSelector
	i := 0
	n := len(tok)

	readIdent := func() string {
		start := i
		for i < n && !strings.ContainsRune("#.[:", rune(tok[i])) {
			i++
		}
		return tok[start:i]
	}

	if i < n && tok[i] != '#' && tok[i] != '.' && tok[i] != '[' && tok[i] != ':' {
		c.Tag = readIdent()
	}

	for i < n {
		switch tok[i] {
		case '#':
			i++
			start := i
			for i < n && !strings.ContainsRune(".[:", rune(tok[i])) {
				i++
			}
			c.ID = tok[start:i]
		case '.':
			i++
			start := i
			for i < n && !strings.ContainsRune(".[:", rune(tok[i])) {
				i++
			}
			c.Classes = append(c.Classes, tok[start:i])
		case '[':
			end := strings.IndexByte(tok[i:], ']')
			if end < 0 {
				return c, fmt.Errorf("css: unterminated attribute selector in %q", tok)
			}
			attr, err := parseAttr(tok[i+1 : i+end])
			if err != nil {
				return c, err
			}
			c.Attrs = append(c.Attrs, attr)
			i += end + 1
		case ':':
			i++
			start := i
			for i < n && !strings.ContainsRune(".[:", rune(tok[i])) && tok[i] != '(' {
				i++
			}
			name := tok[start:i]
			var arg string
			if i < n && tok[i] == '(' {
				end := strings.IndexByte(tok[i:], ')')
				if end < 0 {
					return c, fmt.Errorf("css: unterminated pseudo-class argument in %q", tok)
				}
				arg = tok[i+1 : i+end]
				i += end + 1
			}
			ps, ok, err := parsePseudo(name, arg)
			if err != nil {
				return c, err
			}
			if ok {
				c.Pseudos = append(c.Pseudos, ps)
			}
		default:
			return c, fmt.Errorf("css: unexpected character %q in %q", tok[i], tok)
		}
	}
	return c, nil
}

func parseAttr(s string) (AttrSelector, error) {
	ops := []struct {
		sym string
		op  AttrOp
	}{
		{"~=", AttrIncludes}, {"|=", AttrDashMatch}, {"^=", AttrPrefix},
		{"$=", AttrSuffix}, {"*=", AttrSubstring}, {"=", AttrEquals},
	}
	for _, o := range ops {
		if idx := strings.Index(s, o.sym); idx >= 0 {
			name := strings.TrimSpace(s[:idx])
			val := strings.TrimSpace(s[idx+len(o.sym):])
			val = unquoteValue(val)
			return AttrSelector{Name: name, Op: o.op, Value: val}, nil
		}
	}
	return AttrSelector{Name: strings.TrimSpace(s), Op: AttrExists}, nil
}

func unquoteValue(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func parsePseudo(name, arg string) (PseudoSelector, bool, error) {
	switch strings.ToLower(name) {
	case "first-child":
		return PseudoSelector{Kind: PseudoFirstChild}, true, nil
	case "last-child":
		return PseudoSelector{Kind: PseudoLastChild}, true, nil
	case "root":
		return PseudoSelector{Kind: PseudoRoot}, true, nil
	case "empty":
		return PseudoSelector{Kind: PseudoEmpty}, true, nil
	case "link":
		return PseudoSelector{Kind: PseudoLink}, true, nil
	case "hover", "active", "focus", "visited":
		// Interactive pseudo-classes never match in a static document; we
		// still need the selector to parse, so represent them as an
		// always-false :not() wrapping a universal compound.
		return PseudoSelector{Kind: PseudoNot, Not: []CompoundSelector{{Tag: "*"}}}, true, nil
	case "nth-child":
		a, b, err := parseNth(arg)
		if err != nil {
			return PseudoSelector{}, false, err
		}
		return PseudoSelector{Kind: PseudoNthChild, NthA: a, NthB: b}, true, nil
	case "not":
		inner := ParseSelectorList(arg)
		var compounds []CompoundSelector
		for _, s := range inner {
			compounds = append(compounds, s.Subject())
		}
		return PseudoSelector{Kind: PseudoNot, Not: compounds}, true, nil
	default:
		return PseudoSelector{}, false, nil
	}
}

// parseNth parses the an+b argument of :nth-child(). Supports "odd", "even",
// "N", "aN", "aN+b", "aN-b", and bare "b".
func parseNth(arg string) (a, b int, err error) {
	arg = strings.ToLower(strings.ReplaceAll(arg, " ", ""))
	switch arg {
	case "odd":
		return 2, 1, nil
	case "even":
		return 2, 0, nil
	}
	nIdx := strings.IndexByte(arg, 'n')
	if nIdx < 0 {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return 0, 0, fmt.Errorf("css: bad nth-child argument %q", arg)
		}
		return 0, v, nil
	}
	aPart := arg[:nIdx]
	switch aPart {
	case "", "+":
		a = 1
	case "-":
		a = -1
	default:
		a, err = strconv.Atoi(aPart)
		if err != nil {
			return 0, 0, fmt.Errorf("css: bad nth-child coefficient %q", arg)
		}
	}
	bPart := arg[nIdx+1:]
	if bPart == "" {
		return a, 0, nil
	}
	b, err = strconv.Atoi(bPart)
	if err != nil {
		return 0, 0, fmt.Errorf("css: bad nth-child offset %q", arg)
	}
	return a, b, nil
}
