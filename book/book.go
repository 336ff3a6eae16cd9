package book

import (
	"io"

	"bookforge/ir"
)

// AssetRef describes one non-chapter resource an Importer can serve.
type AssetRef struct {
	ID       AssetId
	MimeType string
}

// Importer is the read side of a format backend: EPUB, MOBI/AZW3, and KFX
// each implement it. Every method is read-only except LoadChapter, whose
// result a Book caches, and IndexAnchors, which builds the backend's own
// anchor index.
type Importer interface {
	Metadata() Metadata
	Spine() []SpineEntry
	TOC() []TocEntry
	Landmarks() Landmarks
	FontFaces() []FontFaceRef
	Assets() []AssetRef
	LoadAsset(id AssetId) ([]byte, error)

	// SourceID returns the archive-relative path (or format equivalent)
	// identifying chapter within the source container.
	SourceID(chapter ChapterId) string

	// LoadRaw returns the chapter's bytes as provided by the format: HTML
	// text for EPUB/MOBI, opaque Ion tokens for KFX.
	LoadRaw(chapter ChapterId) ([]byte, error)

	// LoadChapter compiles chapter into an IR chapter.
	LoadChapter(chapter ChapterId) (*ir.Chapter, error)

	// RequiresNormalizedExport reports whether this format's raw stream
	// cannot feed an HTML-based exporter directly (true for KFX).
	RequiresNormalizedExport() bool

	// IndexAnchors lets the backend populate whatever id/offset →
	// GlobalNodeId map it needs before ResolveHref is called, given every
	// chapter in the book (already loaded).
	IndexAnchors(chapters map[ChapterId]*ir.Chapter) error

	// ResolveHref resolves a raw href found in fromChapter to its target,
	// using whatever index IndexAnchors built. ok is false for a broken
	// link.
	ResolveHref(fromChapter ChapterId, rawHref string) (AnchorTarget, bool)
}

// Exporter is the write side of a format backend.
type Exporter interface {
	Export(b *Book, w io.WriteSeeker) error
}

// Book owns an Importer and layers chapter caching and cross-chapter link
// resolution on top of it. Per spec 5's scheduling model, a Book is owned
// by one caller at a time; nothing here is safe for concurrent mutation.
type Book struct {
	importer Importer
	chapters map[ChapterId]*ir.Chapter
	Links    *ResolvedLinks
}

// New wraps importer in a Book with an empty chapter cache.
func New(importer Importer) *Book {
	return &Book{importer: importer, chapters: make(map[ChapterId]*ir.Chapter)}
}

func (b *Book) Metadata() Metadata          { return b.importer.Metadata() }
func (b *Book) Spine() []SpineEntry         { return b.importer.Spine() }
func (b *Book) TOC() []TocEntry             { return b.importer.TOC() }
func (b *Book) Landmarks() Landmarks        { return b.importer.Landmarks() }
func (b *Book) FontFaces() []FontFaceRef    { return b.importer.FontFaces() }
func (b *Book) Assets() []AssetRef          { return b.importer.Assets() }
func (b *Book) Importer() Importer          { return b.importer }

func (b *Book) LoadAsset(id AssetId) ([]byte, error) { return b.importer.LoadAsset(id) }

// LoadChapterCached returns the IR chapter for id, compiling and caching it
// on first access.
func (b *Book) LoadChapterCached(id ChapterId) (*ir.Chapter, error) {
	if c, ok := b.chapters[id]; ok {
		return c, nil
	}
	c, err := b.importer.LoadChapter(id)
	if err != nil {
		return nil, err
	}
	b.chapters[id] = c
	return c, nil
}

// ResolveLinks loads every spine chapter, lets the importer index anchors
// across all of them, then walks each chapter in document order resolving
// every Link node's href. The result is cached on the Book and also
// returned.
func (b *Book) ResolveLinks() (*ResolvedLinks, error) {
	spine := b.importer.Spine()
	loaded := make(map[ChapterId]*ir.Chapter, len(spine))
	for _, entry := range spine {
		c, err := b.LoadChapterCached(entry.ID)
		if err != nil {
			return nil, err
		}
		loaded[entry.ID] = c
	}

	if err := b.importer.IndexAnchors(loaded); err != nil {
		return nil, err
	}

	rl := newResolvedLinks()
	for _, entry := range spine {
		c := loaded[entry.ID]
		c.Walk(func(nodeID ir.NodeId) {
			if c.Node(nodeID).Role != ir.RoleLink {
				return
			}
			href, ok := c.Href(nodeID)
			if !ok || href == "" {
				return
			}
			source := GlobalNodeId{Chapter: entry.ID, Node: nodeID}
			target, ok := b.importer.ResolveHref(entry.ID, href)
			if !ok {
				rl.addBroken(source, href)
				return
			}
			rl.add(source, target)
		})
	}

	b.Links = rl
	return rl, nil
}
