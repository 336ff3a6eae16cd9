// Package htmlimport compiles an HTML document plus its resolved
// stylesheets into an ir.Chapter: it walks golang.org/x/net/html's parse
// tree, maps each element to an ir.Role, computes its style via css.Cascade,
// and emits the arena nodes, running the optimizer pipeline once the whole
// tree has been built.
package htmlimport

import (
	"strings"

	"golang.org/x/net/html"

	"bookforge/css"
)

// element wraps an *html.Node to satisfy css.Element.
type element struct {
	n *html.Node
}

func wrap(n *html.Node) *element {
	if n == nil {
		return nil
	}
	return &element{n: n}
}

func (e *element) TagName() string { return e.n.Data }

func (e *element) ID() string {
	v, _ := e.attr("id")
	return v
}

func (e *element) Classes() []string {
	v, ok := e.attr("class")
	if !ok {
		return nil
	}
	return strings.Fields(v)
}

func (e *element) Attr(name string) (string, bool) { return e.attr(name) }

func (e *element) attr(name string) (string, bool) {
	for _, a := range e.n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func (e *element) Parent() css.Element {
	p := e.n.Parent
	for p != nil && p.Type != html.ElementNode {
		p = p.Parent
	}
	return wrap(p)
}

func (e *element) PrevElementSibling() css.Element {
	s := e.n.PrevSibling
	for s != nil && s.Type != html.ElementNode {
		s = s.PrevSibling
	}
	return wrap(s)
}

func (e *element) NextElementSibling() css.Element {
	s := e.n.NextSibling
	for s != nil && s.Type != html.ElementNode {
		s = s.NextSibling
	}
	return wrap(s)
}

func (e *element) ElementIndex() int {
	idx := 1
	for s := e.n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			idx++
		}
	}
	return idx
}

func (e *element) HasChildren() bool {
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return true
		}
	}
	return false
}
