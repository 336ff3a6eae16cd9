package kfx

import (
	"io"
	"testing"

	"bookforge/book"
	"bookforge/byteio"
	"bookforge/ir"
)

// memWriteSeeker is a minimal io.WriteSeeker backed by an in-memory buffer,
// standing in for a real file so Writer.Export can be exercised in a test.
type memWriteSeeker struct {
	buf []byte
	pos int64
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		m.pos = offset
	case io.SeekCurrent:
		m.pos += offset
	case io.SeekEnd:
		m.pos = int64(len(m.buf)) + offset
	}
	return m.pos, nil
}

// fakeImporter is a hand-built book.Importer, the same pattern
// book/resolvedlinks_test.go uses to drive Book without a real format
// backend.
type fakeImporter struct {
	md       book.Metadata
	spine    []book.SpineEntry
	toc      []book.TocEntry
	marks    book.Landmarks
	chapters map[book.ChapterId]*ir.Chapter
}

func (f *fakeImporter) Metadata() book.Metadata              { return f.md }
func (f *fakeImporter) Spine() []book.SpineEntry             { return f.spine }
func (f *fakeImporter) TOC() []book.TocEntry                 { return f.toc }
func (f *fakeImporter) Landmarks() book.Landmarks            { return f.marks }
func (f *fakeImporter) FontFaces() []book.FontFaceRef        { return nil }
func (f *fakeImporter) Assets() []book.AssetRef              { return nil }
func (f *fakeImporter) LoadAsset(book.AssetId) ([]byte, error) {
	return nil, nil
}
func (f *fakeImporter) SourceID(id book.ChapterId) string      { return string(id) }
func (f *fakeImporter) LoadRaw(book.ChapterId) ([]byte, error) { return nil, nil }
func (f *fakeImporter) LoadChapter(id book.ChapterId) (*ir.Chapter, error) {
	return f.chapters[id], nil
}
func (f *fakeImporter) RequiresNormalizedExport() bool { return false }
func (f *fakeImporter) IndexAnchors(map[book.ChapterId]*ir.Chapter) error {
	return nil
}
func (f *fakeImporter) ResolveHref(book.ChapterId, string) (book.AnchorTarget, bool) {
	return book.AnchorTarget{}, false
}

func buildTestBook() *book.Book {
	ch0 := ir.NewChapter()
	p := ch0.AllocNode(ir.RoleParagraph)
	ch0.AppendChild(ch0.Root(), p)
	ch0.SetStyle(p, ir.ComputedStyle{FontWeight: 700, Color: ir.RGBA(0x11, 0x22, 0x33, 0xff)})
	ch0.AppendText(p, "Hello world", ch0.Style(p), false)

	linkPara := ch0.AllocNode(ir.RoleParagraph)
	ch0.AppendChild(ch0.Root(), linkPara)
	link := ch0.AllocNode(ir.RoleLink)
	ch0.AppendChild(linkPara, link)
	ch0.SetHref(link, "#target")
	ch0.AppendText(link, "jump", ir.ComputedStyle{}, false)

	ch1 := ir.NewChapter()
	target := ch1.AllocNode(ir.RoleParagraph)
	ch1.AppendChild(ch1.Root(), target)
	ch1.SetID(target, "target")
	ch1.AppendText(target, "Target paragraph", ir.ComputedStyle{}, false)

	imp := &fakeImporter{
		md: book.Metadata{
			Title:     "Round Trip Book",
			Authors:   []string{"Ann Author"},
			Language:  "en",
			Publisher: "Example Press",
		},
		spine: []book.SpineEntry{{ID: "ch0"}, {ID: "ch1"}},
		toc: []book.TocEntry{
			{Title: "Chapter One", Href: "ch0"},
			{Title: "Chapter Two", Href: "ch1"},
		},
		marks: book.Landmarks{"cover": "ch0"},
		chapters: map[book.ChapterId]*ir.Chapter{
			"ch0": ch0,
			"ch1": ch1,
		},
	}
	return book.New(imp)
}

func TestWriterImporterRoundTrip(t *testing.T) {
	b := buildTestBook()

	out := &memWriteSeeker{}
	if err := NewWriter().Export(b, out); err != nil {
		t.Fatalf("Export: %v", err)
	}

	r, err := Open(byteio.NewMemSource(out.buf), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	md := r.Metadata()
	if md.Title != "Round Trip Book" {
		t.Fatalf("Title = %q", md.Title)
	}
	if len(md.Authors) != 1 || md.Authors[0] != "Ann Author" {
		t.Fatalf("Authors = %v", md.Authors)
	}
	if md.Publisher != "Example Press" {
		t.Fatalf("Publisher = %q", md.Publisher)
	}

	spine := r.Spine()
	if len(spine) != 2 {
		t.Fatalf("Spine len = %d, want 2", len(spine))
	}

	toc := r.TOC()
	if len(toc) != 2 || toc[0].Title != "Chapter One" || toc[0].Href == "" {
		t.Fatalf("TOC = %+v", toc)
	}

	marks := r.Landmarks()
	if marks["cover"] == "" {
		t.Fatalf("Landmarks missing cover: %+v", marks)
	}

	c0, err := r.LoadChapter(spine[0].ID)
	if err != nil {
		t.Fatalf("LoadChapter(%s): %v", spine[0].ID, err)
	}
	children := c0.Children(c0.Root())
	if len(children) != 2 {
		t.Fatalf("chapter 0 children = %d, want 2", len(children))
	}
	if c0.Node(children[0]).Role != ir.RoleParagraph {
		t.Fatalf("child 0 role = %v", c0.Node(children[0]).Role)
	}
	style := c0.Style(children[0])
	if style.FontWeight != 700 {
		t.Fatalf("FontWeight = %d, want 700", style.FontWeight)
	}
	if !style.Color.HasValue || style.Color.R != 0x11 {
		t.Fatalf("Color = %+v", style.Color)
	}

	linkChildren := c0.Children(children[1])
	if len(linkChildren) != 1 || c0.Node(linkChildren[0]).Role != ir.RoleLink {
		t.Fatalf("expected a Link child under paragraph 1, got %+v", linkChildren)
	}
	href, ok := c0.Href(linkChildren[0])
	if !ok || href != "#target" {
		t.Fatalf("Href = %q, ok=%v", href, ok)
	}

	c1, err := r.LoadChapter(spine[1].ID)
	if err != nil {
		t.Fatalf("LoadChapter(%s): %v", spine[1].ID, err)
	}
	targetChildren := c1.Children(c1.Root())
	if len(targetChildren) != 1 {
		t.Fatalf("chapter 1 children = %d, want 1", len(targetChildren))
	}
	id, ok := c1.ID(targetChildren[0])
	if !ok || id != "target" {
		t.Fatalf("ID = %q, ok=%v", id, ok)
	}
}
