// Package bookfmt holds the default behaviors the Importer/Exporter
// contract in the book package describes but does not force on every
// format: default href resolution, and the default load_chapter recipe
// (extract stylesheets, compile HTML+CSS to IR, normalize paths). Format
// backends call into this package from their own Importer implementations
// rather than reimplementing the same recipe three times.
package bookfmt

import (
	"bookforge/book"
	"bookforge/ir"
)

// PathIndex maps a chapter's archive-relative path (as returned by
// Importer.SourceID) back to its ChapterId.
type PathIndex map[string]book.ChapterId

// AnchorIndex maps a format-specific "path#fragment" key to the
// GlobalNodeId it resolves to, populated by a backend's IndexAnchors
// implementation for anchors it can locate faster than a linear IR scan
// (KFX symbol ids, AZW3 aid/fileposNNNN).
type AnchorIndex map[string]book.GlobalNodeId

// DefaultResolveHref implements the shared href-resolution rule from spec
// 4.E: external schemes resolve immediately; a bare fragment resolves
// within fromChapter; "path#frag" consults paths first, then the anchors
// index, then falls back to scanning the target chapter's IR for a node
// with a matching id; a bare
// path resolves to the target chapter's start. An unresolvable href
// returns ok=false.
func DefaultResolveHref(
	chapters map[book.ChapterId]*ir.Chapter,
	paths PathIndex,
	anchors AnchorIndex,
	fromChapter book.ChapterId,
	rawHref string,
) (book.AnchorTarget, bool) {
	parsed := book.ParseHref(rawHref)
	switch parsed.Kind {
	case book.HrefExternal:
		return book.ExternalTarget(parsed.URL), true

	case book.HrefFragment:
		c := chapters[fromChapter]
		if c == nil {
			return book.AnchorTarget{}, false
		}
		if node, ok := findByID(c, parsed.Fragment); ok {
			return book.InternalTarget(book.GlobalNodeId{Chapter: fromChapter, Node: node}), true
		}
		return book.AnchorTarget{}, false

	case book.HrefPath:
		chapterID, ok := paths[parsed.Path]
		if !ok {
			return book.AnchorTarget{}, false
		}
		if parsed.Fragment == "" {
			return book.ChapterTarget(chapterID), true
		}
		if target, ok := anchors[parsed.Path+"#"+parsed.Fragment]; ok {
			return book.InternalTarget(target), true
		}
		c := chapters[chapterID]
		if c == nil {
			return book.AnchorTarget{}, false
		}
		if node, ok := findByID(c, parsed.Fragment); ok {
			return book.InternalTarget(book.GlobalNodeId{Chapter: chapterID, Node: node}), true
		}
		return book.AnchorTarget{}, false

	default:
		return book.AnchorTarget{}, false
	}
}

// findByID linearly scans a chapter for the node carrying the given id
// semantic attribute. Chapters are short enough (one HTML document) that
// this beats maintaining a per-chapter id index for formats that don't
// already need one.
func findByID(c *ir.Chapter, id string) (ir.NodeId, bool) {
	var found ir.NodeId
	var ok bool
	c.Walk(func(nodeID ir.NodeId) {
		if ok {
			return
		}
		if v, has := c.ID(nodeID); has && v == id {
			found, ok = nodeID, true
		}
	})
	return found, ok
}
