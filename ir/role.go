// Package ir implements the arena-allocated intermediate representation
// shared by every importer and exporter: a dense node array per chapter, an
// interned computed-style pool, a sparse semantic attribute map, and a
// single growable text buffer. Nothing in this package knows about EPUB,
// MOBI, or KFX; format backends translate to and from it.
package ir

// Role is the closed set of structural roles a Node can take.
type Role int

const (
	RoleRoot Role = iota
	RoleContainer
	RoleParagraph
	RoleHeading1
	RoleHeading2
	RoleHeading3
	RoleHeading4
	RoleHeading5
	RoleHeading6
	RoleInline
	RoleText
	RoleLink
	RoleImage
	RoleBreak
	RoleRule
	RoleOrderedList
	RoleUnorderedList
	RoleListItem
	RoleDefinitionList
	RoleDefinitionTerm
	RoleDefinitionDescription
	RoleTable
	RoleTableHead
	RoleTableBody
	RoleTableRow
	RoleTableCell
	RoleBlockQuote
	RoleFigure
	RoleCaption
	RoleCodeBlock
	RoleSidebar
	RoleFootnote
)

func (r Role) String() string {
	switch r {
	case RoleRoot:
		return "Root"
	case RoleContainer:
		return "Container"
	case RoleParagraph:
		return "Paragraph"
	case RoleHeading1, RoleHeading2, RoleHeading3, RoleHeading4, RoleHeading5, RoleHeading6:
		return "Heading"
	case RoleInline:
		return "Inline"
	case RoleText:
		return "Text"
	case RoleLink:
		return "Link"
	case RoleImage:
		return "Image"
	case RoleBreak:
		return "Break"
	case RoleRule:
		return "Rule"
	case RoleOrderedList:
		return "OrderedList"
	case RoleUnorderedList:
		return "UnorderedList"
	case RoleListItem:
		return "ListItem"
	case RoleDefinitionList:
		return "DefinitionList"
	case RoleDefinitionTerm:
		return "Term"
	case RoleDefinitionDescription:
		return "Description"
	case RoleTable:
		return "Table"
	case RoleTableHead:
		return "TableHead"
	case RoleTableBody:
		return "TableBody"
	case RoleTableRow:
		return "TableRow"
	case RoleTableCell:
		return "TableCell"
	case RoleBlockQuote:
		return "BlockQuote"
	case RoleFigure:
		return "Figure"
	case RoleCaption:
		return "Caption"
	case RoleCodeBlock:
		return "CodeBlock"
	case RoleSidebar:
		return "Sidebar"
	case RoleFootnote:
		return "Footnote"
	default:
		return "Unknown"
	}
}

// HeadingLevel returns 1..6 for a heading role, or 0 for any other role.
func (r Role) HeadingLevel() int {
	switch r {
	case RoleHeading1:
		return 1
	case RoleHeading2:
		return 2
	case RoleHeading3:
		return 3
	case RoleHeading4:
		return 4
	case RoleHeading5:
		return 5
	case RoleHeading6:
		return 6
	default:
		return 0
	}
}

// HeadingRole returns the heading role for level 1..6, clamping out-of-range
// levels to the nearest end.
func HeadingRole(level int) Role {
	switch {
	case level <= 1:
		return RoleHeading1
	case level >= 6:
		return RoleHeading6
	default:
		return Role(int(RoleHeading1) + level - 1)
	}
}

// IsLeaf reports whether nodes of this role never have children. Text is the
// only leaf role that carries string data; Break and Rule are childless but
// carry none.
func (r Role) IsLeaf() bool {
	return r == RoleText || r == RoleBreak || r == RoleRule
}

// isBlock reports whether a role participates in block layout, used by the
// mixed-content wrapping pass.
func (r Role) isBlock() bool {
	switch r {
	case RoleParagraph, RoleHeading1, RoleHeading2, RoleHeading3, RoleHeading4, RoleHeading5, RoleHeading6,
		RoleContainer, RoleOrderedList, RoleUnorderedList, RoleListItem,
		RoleDefinitionList, RoleDefinitionTerm, RoleDefinitionDescription,
		RoleTable, RoleTableHead, RoleTableBody, RoleTableRow, RoleTableCell,
		RoleBlockQuote, RoleFigure, RoleCaption, RoleCodeBlock, RoleSidebar, RoleFootnote, RoleRule:
		return true
	default:
		return false
	}
}

// prunable reports whether an empty node of this role should be deleted by
// the prune-empty optimizer pass.
func (r Role) prunable() bool {
	switch r {
	case RoleContainer, RoleInline, RoleFigure, RoleSidebar, RoleFootnote, RoleBlockQuote,
		RoleOrderedList, RoleUnorderedList, RoleListItem,
		RoleTable, RoleTableHead, RoleTableBody, RoleTableRow:
		return true
	default:
		return false
	}
}

// structuralContainer reports whether whitespace-only text directly inside a
// node of this role is vacuumed away by default.
func (r Role) structuralContainer() bool {
	switch r {
	case RoleRoot, RoleContainer, RoleFigure, RoleSidebar, RoleFootnote,
		RoleTable, RoleTableHead, RoleTableBody, RoleTableRow,
		RoleOrderedList, RoleUnorderedList, RoleDefinitionList:
		return true
	default:
		return false
	}
}
