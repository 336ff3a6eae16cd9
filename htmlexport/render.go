// Package htmlexport renders an IR chapter back to HTML, the inverse of
// htmlimport. It is shared by every exporter that needs an HTML
// representation of a chapter (MOBI6/KF8, EPUB); each writer supplies its
// own href/src rewriting by post-processing the returned text, matching how
// htmlimport keeps path resolution as a separate pass from compilation.
package htmlexport

import (
	"fmt"
	"html"
	"strings"

	"bookforge/ir"
)

// tagFor maps a Role to its HTML tag name. Heading roles are handled
// separately since the tag depends on level.
var tagFor = map[ir.Role]string{
	ir.RoleRoot:                  "body",
	ir.RoleContainer:             "div",
	ir.RoleParagraph:             "p",
	ir.RoleInline:                "span",
	ir.RoleLink:                  "a",
	ir.RoleImage:                 "img",
	ir.RoleBreak:                 "br",
	ir.RoleRule:                  "hr",
	ir.RoleOrderedList:           "ol",
	ir.RoleUnorderedList:         "ul",
	ir.RoleListItem:              "li",
	ir.RoleDefinitionList:        "dl",
	ir.RoleDefinitionTerm:        "dt",
	ir.RoleDefinitionDescription: "dd",
	ir.RoleTable:                 "table",
	ir.RoleTableHead:             "thead",
	ir.RoleTableBody:             "tbody",
	ir.RoleTableRow:              "tr",
	ir.RoleTableCell:             "td",
	ir.RoleBlockQuote:            "blockquote",
	ir.RoleFigure:                "figure",
	ir.RoleCaption:               "figcaption",
	ir.RoleCodeBlock:             "pre",
	ir.RoleSidebar:               "aside",
	ir.RoleFootnote:              "aside",
}

// Render serializes c's reachable node tree to an HTML fragment (no
// <html>/<head> wrapper, just the body content), attaching a class="cN"
// attribute for every node whose StyleId has an entry in classFor.
func Render(c *ir.Chapter, classFor map[ir.StyleId]string) []byte {
	var b strings.Builder
	renderChildren(c, c.Root(), classFor, &b)
	return []byte(b.String())
}

func renderChildren(c *ir.Chapter, parent ir.NodeId, classFor map[ir.StyleId]string, b *strings.Builder) {
	for _, child := range c.Children(parent) {
		renderNode(c, child, classFor, b)
	}
}

func renderNode(c *ir.Chapter, id ir.NodeId, classFor map[ir.StyleId]string, b *strings.Builder) {
	node := c.Node(id)

	if node.Role == ir.RoleText {
		b.WriteString(html.EscapeString(c.Text(id)))
		return
	}

	tag := tagFor[node.Role]
	if level := node.Role.HeadingLevel(); level > 0 {
		tag = fmt.Sprintf("h%d", level)
	}
	if node.Role == ir.RoleTableCell {
		if sa := c.Semantics(id); sa != nil && sa.IsHeaderCell {
			tag = "th"
		}
	}
	if tag == "" {
		tag = "div"
	}

	b.WriteByte('<')
	b.WriteString(tag)
	writeAttrs(c, id, node, classFor, b)
	b.WriteByte('>')

	if node.Role.IsLeaf() {
		return
	}

	renderChildren(c, id, classFor, b)
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteByte('>')
}

func writeAttrs(c *ir.Chapter, id ir.NodeId, node ir.Node, classFor map[ir.StyleId]string, b *strings.Builder) {
	if class, ok := classFor[node.StyleId]; ok {
		writeAttr(b, "class", class)
	}
	if v, ok := c.ID(id); ok {
		writeAttr(b, "id", v)
	}
	if v, ok := c.Href(id); ok {
		writeAttr(b, "href", v)
	}
	if v, ok := c.Src(id); ok {
		writeAttr(b, "src", v)
	}
	if v, ok := c.Alt(id); ok {
		writeAttr(b, "alt", v)
	} else if node.Role == ir.RoleImage {
		writeAttr(b, "alt", "")
	}
	if v, ok := c.Title(id); ok {
		writeAttr(b, "title", v)
	}
	if v, ok := c.Lang(id); ok {
		writeAttr(b, "lang", v)
	}
	if v, ok := c.EpubType(id); ok {
		writeAttr(b, "epub:type", v)
	}
	if v, ok := c.Datetime(id); ok {
		writeAttr(b, "datetime", v)
	}

	if sa := c.Semantics(id); sa != nil {
		if sa.HasListStart {
			writeAttr(b, "start", fmt.Sprintf("%d", sa.ListStart))
		}
		if sa.RowSpan > 1 {
			writeAttr(b, "rowspan", fmt.Sprintf("%d", sa.RowSpan))
		}
		if sa.ColSpan > 1 {
			writeAttr(b, "colspan", fmt.Sprintf("%d", sa.ColSpan))
		}
	}
}

func writeAttr(b *strings.Builder, name, value string) {
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteString(`="`)
	b.WriteString(html.EscapeString(value))
	b.WriteString(`"`)
}
