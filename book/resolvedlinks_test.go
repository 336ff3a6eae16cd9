package book

import (
	"testing"

	"bookforge/ir"
)

type fakeImporter struct {
	spine     []SpineEntry
	chapters  map[ChapterId]*ir.Chapter
	hrefCalls []string
}

func (f *fakeImporter) Metadata() Metadata       { return Metadata{} }
func (f *fakeImporter) Spine() []SpineEntry      { return f.spine }
func (f *fakeImporter) TOC() []TocEntry          { return nil }
func (f *fakeImporter) Landmarks() Landmarks     { return nil }
func (f *fakeImporter) FontFaces() []FontFaceRef { return nil }
func (f *fakeImporter) Assets() []AssetRef       { return nil }
func (f *fakeImporter) LoadAsset(AssetId) ([]byte, error) { return nil, nil }
func (f *fakeImporter) SourceID(id ChapterId) string      { return string(id) }
func (f *fakeImporter) LoadRaw(ChapterId) ([]byte, error) { return nil, nil }
func (f *fakeImporter) LoadChapter(id ChapterId) (*ir.Chapter, error) { return f.chapters[id], nil }
func (f *fakeImporter) RequiresNormalizedExport() bool                { return false }
func (f *fakeImporter) IndexAnchors(map[ChapterId]*ir.Chapter) error  { return nil }
func (f *fakeImporter) ResolveHref(from ChapterId, href string) (AnchorTarget, bool) {
	f.hrefCalls = append(f.hrefCalls, href)
	if href == "#good" {
		return InternalTarget(GlobalNodeId{Chapter: from, Node: 0}), true
	}
	return AnchorTarget{}, false
}

func chapterWithLink(href string) *ir.Chapter {
	c := ir.NewChapter()
	link := c.AllocNode(ir.RoleLink)
	c.AppendChild(c.Root(), link)
	c.SetHref(link, href)
	return c
}

func TestResolveLinksForwardReverseAndBroken(t *testing.T) {
	imp := &fakeImporter{
		spine: []SpineEntry{{ID: "c1"}, {ID: "c2"}},
		chapters: map[ChapterId]*ir.Chapter{
			"c1": chapterWithLink("#good"),
			"c2": chapterWithLink("#missing"),
		},
	}
	b := New(imp)
	rl, err := b.ResolveLinks()
	if err != nil {
		t.Fatalf("ResolveLinks: %v", err)
	}
	if len(rl.Forward) != 1 {
		t.Fatalf("expected 1 resolved link, got %d", len(rl.Forward))
	}
	if len(rl.Broken) != 1 {
		t.Fatalf("expected 1 broken link, got %d", len(rl.Broken))
	}
	target := GlobalNodeId{Chapter: "c1", Node: 0}
	if !rl.IsLinkTarget(target) {
		t.Fatalf("expected target to be a link target via reverse index")
	}
}
