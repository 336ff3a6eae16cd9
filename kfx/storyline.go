package kfx

import (
	"path"
	"strings"

	"bookforge/book"
	"bookforge/ir"
)

// storylineBuilder walks IR chapters into KFX $259 storyline / $260 section
// content entries. It is stateful across chapters: anchors collected while
// walking one chapter may be the target of a link discovered in another, so
// link resolution is deferred until every chapter has been walked.
type storylineBuilder struct {
	styles      *styleRegistry
	anchors     eidByAnchorID // source "id" attribute -> assigned EID
	links       []pendingLink
	assets      map[string]bool          // referenced asset source paths, for resource fragment generation
	sectionEIDs sectionEIDsBySectionName // every EID allocated while walking each section, for position_map
	current     string                   // section name currently being walked
	nextEID     int
}

// pendingLink is a content entry awaiting its $179 link_to field once the
// anchor map is complete.
type pendingLink struct {
	entry  StructValue
	target string
}

func newStorylineBuilder() *storylineBuilder {
	return &storylineBuilder{
		styles:      newStyleRegistry(),
		anchors:     make(eidByAnchorID),
		assets:      make(map[string]bool),
		sectionEIDs: make(sectionEIDsBySectionName),
	}
}

// beginSection marks which section subsequent allocEID calls belong to, so
// they can be grouped for the $264 position_map.
func (b *storylineBuilder) beginSection(name string) {
	b.current = name
}

func (b *storylineBuilder) allocEID() int {
	b.nextEID++
	if b.current != "" {
		b.sectionEIDs[b.current] = append(b.sectionEIDs[b.current], b.nextEID)
	}
	return b.nextEID
}

// buildChapter renders one chapter's storyline and section fragments. acc
// accumulates text content across every chapter so content_N fragments chunk
// by total size rather than by chapter boundary, matching how the teacher's
// accumulator was already built to be used.
func (b *storylineBuilder) buildChapter(c *ir.Chapter, acc *ContentAccumulator, storyName, sectionName string) (storyline, section *Fragment, firstEID int) {
	var items []any
	for _, child := range c.Children(c.Root()) {
		if entry := b.buildBlock(c, child, acc); entry != nil {
			items = append(items, entry)
			if firstEID == 0 {
				if eid, ok := entry.(StructValue).GetInt(SymUniqueID); ok {
					firstEID = int(eid)
				}
			}
		}
	}

	storyline = &Fragment{
		FType:   SymStoryline,
		FIDName: storyName,
		Value:   NewStruct().SetList(SymContentList, items),
	}

	ptEID := b.allocEID()
	pt := NewStruct().
		SetInt(SymUniqueID, int64(ptEID)).
		Set(SymStoryName, SymbolByName(storyName))
	section = &Fragment{
		FType:   SymSection,
		FIDName: sectionName,
		Value:   NewStruct().SetList(SymPageTemplates, []any{pt}),
	}

	if firstEID == 0 {
		firstEID = ptEID
	}
	return storyline, section, firstEID
}

// buildBlock renders one IR node as a content entry. Nodes whose children
// are all inline (text, links, breaks) collapse into a single $269 text
// entry; nodes with block children become a $270 container wrapping their
// children's own entries. This loses per-run inline style overrides and
// collapses multiple links in one paragraph to the first one found, a
// simplification recorded in the design notes rather than silently assumed.
func (b *storylineBuilder) buildBlock(c *ir.Chapter, id ir.NodeId, acc *ContentAccumulator) any {
	n := c.Node(id)

	switch n.Role {
	case ir.RoleImage:
		return b.buildImage(c, id)
	case ir.RoleBreak, ir.RoleRule:
		eid := b.allocEID()
		b.recordAnchor(c, id, eid)
		return NewStruct().SetInt(SymUniqueID, int64(eid)).SetSymbol(SymType, SymContainer)
	}

	children := c.Children(id)
	hasBlock := false
	for _, ch := range children {
		if isBlockRole(c.Node(ch).Role) {
			hasBlock = true
			break
		}
	}

	eid := b.allocEID()
	entry := NewStruct().SetInt(SymUniqueID, int64(eid)).SetSymbol(SymType, kfxTypeFor(n.Role, hasBlock))
	if n.Role == ir.RoleTableCell {
		entry.SetStruct(SymLayout, NewStruct())
	}
	if styleName := b.styleRef(c, id); styleName != "" {
		entry.Set(SymStyle, SymbolByName(styleName))
	}
	b.recordAnchor(c, id, eid)

	if hasBlock {
		var contentList []any
		for _, ch := range children {
			if e := b.buildBlock(c, ch, acc); e != nil {
				contentList = append(contentList, e)
			}
		}
		entry.SetList(SymContentList, contentList)
		return entry
	}

	text, linkTarget := b.collectInline(c, id)
	text = strings.TrimSpace(text)
	name, offset := acc.Add(text)
	entry.Set(SymContent, map[string]any{"name": SymbolByName(name), "$403": int64(offset)})

	if linkTarget != "" {
		b.links = append(b.links, pendingLink{entry: entry, target: linkTarget})
	}

	return entry
}

func (b *storylineBuilder) buildImage(c *ir.Chapter, id ir.NodeId) StructValue {
	eid := b.allocEID()
	b.recordAnchor(c, id, eid)
	entry := NewStruct().SetInt(SymUniqueID, int64(eid)).SetSymbol(SymType, SymImage)
	if styleName := b.styleRef(c, id); styleName != "" {
		entry.Set(SymStyle, SymbolByName(styleName))
	}
	if src, ok := c.Src(id); ok && src != "" {
		b.assets[src] = true
		entry.Set(SymResourceName, SymbolByName(resourceNameForSrc(src)))
	}
	return entry
}

// collectInline flattens a node's inline descendants (text runs, breaks,
// links) into plain text, reporting the fragment id of the first link
// target found, if any.
func (b *storylineBuilder) collectInline(c *ir.Chapter, id ir.NodeId) (text string, linkTarget string) {
	var buf strings.Builder
	var walk func(ir.NodeId)
	walk = func(n ir.NodeId) {
		node := c.Node(n)
		switch node.Role {
		case ir.RoleText:
			buf.WriteString(c.Text(n))
		case ir.RoleBreak:
			buf.WriteString(" ")
		case ir.RoleLink:
			if linkTarget == "" {
				if href, ok := c.Href(n); ok {
					if parsed := book.ParseHref(href); parsed.Kind == book.HrefFragment || parsed.Kind == book.HrefPath {
						linkTarget = parsed.Fragment
					}
				}
			}
			for _, ch := range c.Children(n) {
				walk(ch)
			}
		default:
			for _, ch := range c.Children(n) {
				walk(ch)
			}
		}
	}
	for _, ch := range c.Children(id) {
		walk(ch)
	}
	return buf.String(), linkTarget
}

func (b *storylineBuilder) recordAnchor(c *ir.Chapter, id ir.NodeId, eid int) {
	if idVal, ok := c.ID(id); ok && idVal != "" {
		b.anchors[idVal] = eid
	}
}

func (b *storylineBuilder) styleRef(c *ir.Chapter, id ir.NodeId) string {
	s := c.Style(id)
	if s == (ir.ComputedStyle{}) {
		return ""
	}
	return b.styles.Intern(s)
}

// resolveLinks fills in $179 link_to on every content entry collected during
// buildBlock once all chapters' anchors are known, and returns the set of
// anchor ids actually referenced so the caller can build only the anchor
// fragments that are used.
func (b *storylineBuilder) resolveLinks() map[string]bool {
	referenced := make(map[string]bool)
	for _, pl := range b.links {
		if eid, ok := b.anchors[pl.target]; ok && eid != 0 {
			pl.entry.Set(SymLinkTo, SymbolByName(pl.target))
			referenced[pl.target] = true
		}
	}
	return referenced
}

func isBlockRole(r ir.Role) bool {
	switch r {
	case ir.RoleText, ir.RoleInline, ir.RoleLink, ir.RoleBreak:
		return false
	default:
		return true
	}
}

// kfxTypeFor chooses the $159 content type for a node. List, table and
// landmark-ish roles always get a structural type regardless of what their
// children look like; everything else resolves to container or text
// depending on whether it has block-level children.
func kfxTypeFor(r ir.Role, hasBlock bool) KFXSymbol {
	switch r {
	case ir.RoleOrderedList, ir.RoleUnorderedList:
		return SymList
	case ir.RoleListItem:
		return SymListItem
	case ir.RoleTable:
		return SymTable
	case ir.RoleTableHead, ir.RoleTableBody:
		return SymTableBody
	case ir.RoleTableRow:
		return SymTableRow
	case ir.RoleTableCell:
		return SymContainer
	case ir.RoleFigure:
		return SymFigure
	case ir.RoleSidebar:
		return SymSidebar
	case ir.RoleFootnote:
		return SymFootnote
	default:
		if hasBlock {
			return SymContainer
		}
		return SymText
	}
}

// resourceNameForSrc derives a stable external_resource fragment name from an
// asset's source path. The teacher's resource subsystem (frag_resourcepath.go)
// names resources by base36 counter at container-build time; this names them
// from the asset path instead since assets are already addressed by path
// throughout book.Importer, so the mapping stays referentially obvious
// between the image entry and the resource fragment.
func resourceNameForSrc(src string) string {
	base := path.Base(src)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		base = "resource"
	}
	return base
}
