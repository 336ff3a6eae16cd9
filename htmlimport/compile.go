package htmlimport

import (
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"bookforge/css"
	"bookforge/ir"
)

// Compile parses htmlDoc and compiles it, together with sheets (UA sheet
// first, then author sheets in document order), into a new ir.Chapter whose
// SourcePath is set to sourcePath. resolvePath, if non-nil, is passed to
// ir.ResolvePaths after compilation to rewrite src/href values relative to
// sourcePath; pass nil to skip path resolution (the caller will do it
// later, e.g. once multiple chapters' hrefs can be cross-resolved).
func Compile(htmlDoc []byte, sheets []*css.Stylesheet, sourcePath string, resolvePath func(sourcePath, ref string) string) (*ir.Chapter, error) {
	doc, err := html.Parse(bytes.NewReader(htmlDoc))
	if err != nil {
		return nil, err
	}

	c := ir.NewChapter()
	c.SourcePath = sourcePath

	comp := &compiler{chapter: c, sheets: sheets}
	comp.walkChildren(doc, c.Root(), ir.ComputedStyle{}, "")

	ir.Optimize(c)
	if resolvePath != nil {
		ir.ResolvePaths(c, resolvePath)
	}
	return c, nil
}

type compiler struct {
	chapter *ir.Chapter
	sheets  []*css.Stylesheet
}

// walkChildren compiles every child of n into parent, inheriting
// parentStyle and parentLang down the tree.
func (comp *compiler) walkChildren(n *html.Node, parent ir.NodeId, parentStyle ir.ComputedStyle, parentLang string) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		comp.walkNode(child, parent, parentStyle, parentLang)
	}
}

func (comp *compiler) walkNode(n *html.Node, parent ir.NodeId, parentStyle ir.ComputedStyle, parentLang string) {
	switch n.Type {
	case html.TextNode:
		if n.Data == "" {
			return
		}
		comp.chapter.AppendText(parent, n.Data, parentStyle, true)

	case html.ElementNode:
		comp.walkElement(n, parent, parentStyle, parentLang)

	case html.DocumentNode:
		comp.walkChildren(n, parent, parentStyle, parentLang)

	default:
		// Comment, doctype: no IR representation.
	}
}

func (comp *compiler) walkElement(n *html.Node, parent ir.NodeId, parentStyle ir.ComputedStyle, parentLang string) {
	tag := strings.ToLower(n.Data)
	if skipTags[tag] {
		return
	}

	lang := parentLang
	if v, ok := attrOf(n, "lang"); ok {
		lang = v
	} else if v, ok := attrOf(n, "xml:lang"); ok {
		lang = v
	}

	epubType, _ := attrOf(n, "epub:type")
	role := roleFor(tag, epubType)

	style := css.Cascade(comp.sheets, wrap(n), parentStyle)

	var id ir.NodeId
	if tag == "html" {
		// The chapter already has a root node; don't allocate a second one.
		id = parent
	} else {
		id = comp.chapter.AllocNode(role)
		comp.chapter.SetStyle(id, style)
		comp.chapter.AppendChild(parent, id)
	}

	comp.applySemantics(n, id, tag, epubType, lang)

	if tag == "img" || tag == "br" || tag == "hr" {
		// Leaf roles: no children to walk.
		return
	}
	comp.walkChildren(n, id, style, lang)
}

// applySemantics copies the HTML attributes the IR tracks onto id.
func (comp *compiler) applySemantics(n *html.Node, id ir.NodeId, tag, epubType, lang string) {
	c := comp.chapter
	if v, ok := attrOf(n, "id"); ok && v != "" {
		c.SetID(id, v)
	}
	if v, ok := attrOf(n, "title"); ok && v != "" {
		c.SetTitle(id, v)
	}
	if lang != "" {
		_, ownLang := attrOf(n, "lang")
		_, ownXMLLang := attrOf(n, "xml:lang")
		if ownLang || ownXMLLang {
			c.SetLang(id, lang)
		}
		c.SetLanguage(id, lang)
	}
	if epubType != "" {
		c.SetEpubType(id, epubType)
	}
	if v, ok := attrOf(n, "role"); ok && v != "" {
		c.SetSemanticRole(id, v)
	}

	switch tag {
	case "a":
		if v, ok := attrOf(n, "href"); ok {
			c.SetHref(id, v)
		}
	case "img":
		if v, ok := attrOf(n, "src"); ok {
			c.SetSrc(id, v)
		}
		if v, ok := attrOf(n, "alt"); ok {
			c.SetAlt(id, v)
		}
	case "time":
		if v, ok := attrOf(n, "datetime"); ok {
			c.SetDatetime(id, v)
		}
	case "ol":
		if v, ok := attrOf(n, "start"); ok {
			if start, err := strconv.Atoi(v); err == nil {
				sa := c.EnsureSemantics(id)
				sa.ListStart = start
				sa.HasListStart = true
			}
		}
	case "td", "th":
		sa := c.EnsureSemantics(id)
		sa.IsHeaderCell = tag == "th"
		sa.RowSpan = intAttrOr(n, "rowspan", 1)
		sa.ColSpan = intAttrOr(n, "colspan", 1)
	}
}

func attrOf(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func intAttrOr(n *html.Node, name string, def int) int {
	v, ok := attrOf(n, name)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || i <= 0 {
		return def
	}
	return i
}
