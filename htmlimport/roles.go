package htmlimport

import "bookforge/ir"

// blockTags map HTML element names to a fixed ir.Role. Elements not listed
// here (including any the parser doesn't recognize) default to
// ir.RoleInline when they appear inline in the tree, or are dropped when
// they carry no renderable content (head, script, and so on - handled by
// skipTags).
var blockTags = map[string]ir.Role{
	"html":       ir.RoleRoot,
	"body":       ir.RoleContainer,
	"div":        ir.RoleContainer,
	"section":    ir.RoleContainer,
	"article":    ir.RoleContainer,
	"nav":        ir.RoleContainer,
	"header":     ir.RoleContainer,
	"footer":     ir.RoleContainer,
	"main":       ir.RoleContainer,
	"p":          ir.RoleParagraph,
	"h1":         ir.RoleHeading1,
	"h2":         ir.RoleHeading2,
	"h3":         ir.RoleHeading3,
	"h4":         ir.RoleHeading4,
	"h5":         ir.RoleHeading5,
	"h6":         ir.RoleHeading6,
	"a":          ir.RoleLink,
	"img":        ir.RoleImage,
	"br":         ir.RoleBreak,
	"hr":         ir.RoleRule,
	"ol":         ir.RoleOrderedList,
	"ul":         ir.RoleUnorderedList,
	"li":         ir.RoleListItem,
	"dl":         ir.RoleDefinitionList,
	"dt":         ir.RoleDefinitionTerm,
	"dd":         ir.RoleDefinitionDescription,
	"table":      ir.RoleTable,
	"thead":      ir.RoleTableHead,
	"tbody":      ir.RoleTableBody,
	"tfoot":      ir.RoleTableBody,
	"tr":         ir.RoleTableRow,
	"td":         ir.RoleTableCell,
	"th":         ir.RoleTableCell,
	"blockquote": ir.RoleBlockQuote,
	"figure":     ir.RoleFigure,
	"figcaption": ir.RoleCaption,
	"caption":    ir.RoleCaption,
	"pre":        ir.RoleCodeBlock,
	"aside":      ir.RoleSidebar,
}

// skipTags never produce an IR node themselves; head-level metadata and
// scripting elements carry no reader-visible content.
var skipTags = map[string]bool{
	"head": true, "script": true, "style": true, "link": true,
	"meta": true, "title": true, "base": true, "noscript": true,
	"template": true, "svg": true,
}

// footnoteEpubTypes identifies epub:type values that promote a container to
// ir.RoleFootnote regardless of its tag.
var footnoteEpubTypes = map[string]bool{
	"footnote": true, "rearnote": true, "endnote": true,
}

func roleFor(tag string, epubType string) ir.Role {
	if footnoteEpubTypes[epubType] {
		return ir.RoleFootnote
	}
	if r, ok := blockTags[tag]; ok {
		return r
	}
	return ir.RoleInline
}
