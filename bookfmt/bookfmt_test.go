package bookfmt

import (
	"errors"
	"strings"
	"testing"

	"bookforge/book"
	"bookforge/ir"
)

func chapterWithAnchor(id string) *ir.Chapter {
	c := ir.NewChapter()
	p := c.AllocNode(ir.RoleParagraph)
	c.AppendChild(c.Root(), p)
	c.SetID(p, id)
	return c
}

func TestDefaultResolveHrefExternal(t *testing.T) {
	target, ok := DefaultResolveHref(nil, nil, nil, "c1", "https://example.com/a")
	if !ok || target.Kind != book.AnchorExternal || target.External != "https://example.com/a" {
		t.Fatalf("unexpected external target: %+v, %v", target, ok)
	}
}

func TestDefaultResolveHrefBareFragmentSameChapter(t *testing.T) {
	chapters := map[book.ChapterId]*ir.Chapter{"c1": chapterWithAnchor("intro")}
	target, ok := DefaultResolveHref(chapters, nil, nil, "c1", "#intro")
	if !ok || target.Kind != book.AnchorInternal || target.Internal.Chapter != "c1" {
		t.Fatalf("unexpected internal target: %+v, %v", target, ok)
	}
}

func TestDefaultResolveHrefBareFragmentMissing(t *testing.T) {
	chapters := map[book.ChapterId]*ir.Chapter{"c1": chapterWithAnchor("intro")}
	_, ok := DefaultResolveHref(chapters, nil, nil, "c1", "#nope")
	if ok {
		t.Fatalf("expected unresolvable fragment to fail")
	}
}

func TestDefaultResolveHrefPathAndFragmentViaAnchorIndex(t *testing.T) {
	chapters := map[book.ChapterId]*ir.Chapter{"c2": chapterWithAnchor("sec1")}
	paths := PathIndex{"part0002.html": "c2"}
	anchors := AnchorIndex{"part0002.html#sec1": {Chapter: "c2", Node: 5}}
	target, ok := DefaultResolveHref(chapters, paths, anchors, "c1", "part0002.html#sec1")
	if !ok || target.Kind != book.AnchorInternal || target.Internal.Node != 5 {
		t.Fatalf("expected anchor-index hit, got %+v, %v", target, ok)
	}
}

func TestDefaultResolveHrefPathAndFragmentViaScanFallback(t *testing.T) {
	chapters := map[book.ChapterId]*ir.Chapter{"c2": chapterWithAnchor("sec1")}
	paths := PathIndex{"part0002.html": "c2"}
	target, ok := DefaultResolveHref(chapters, paths, nil, "c1", "part0002.html#sec1")
	if !ok || target.Kind != book.AnchorInternal || target.Internal.Chapter != "c2" {
		t.Fatalf("expected scan-fallback hit, got %+v, %v", target, ok)
	}
}

func TestDefaultResolveHrefBarePath(t *testing.T) {
	paths := PathIndex{"part0003.html": "c3"}
	target, ok := DefaultResolveHref(nil, paths, nil, "c1", "part0003.html")
	if !ok || target.Kind != book.AnchorChapter || target.Chapter != "c3" {
		t.Fatalf("unexpected chapter target: %+v, %v", target, ok)
	}
}

func TestDefaultResolveHrefUnknownPath(t *testing.T) {
	_, ok := DefaultResolveHref(nil, PathIndex{}, nil, "c1", "missing.html")
	if ok {
		t.Fatalf("expected unknown path to fail")
	}
}

func TestDefaultLoadChapterLinkedAndInlineStylesheets(t *testing.T) {
	doc := []byte(`<html><head>
<link rel="stylesheet" href="styles.css">
<style>.inline{font-weight:bold}</style>
</head><body>
<p class="lead">Hello</p>
<p class="inline">World</p>
</body></html>`)

	fetch := func(sourcePath, relPath string) ([]byte, error) {
		if strings.HasSuffix(relPath, "styles.css") {
			return []byte(`.lead{color:#ff0000}`), nil
		}
		return nil, errors.New("not found")
	}

	c, err := DefaultLoadChapter(doc, "chapter1.html", fetch, nil)
	if err != nil {
		t.Fatalf("DefaultLoadChapter: %v", err)
	}

	var sawLead, sawInlineBold bool
	c.Walk(func(id ir.NodeId) {
		st := c.Style(id)
		if st.Color.HasValue && st.Color.R == 0xff && st.Color.G == 0 && st.Color.B == 0 {
			sawLead = true
		}
		if st.FontWeight == 700 {
			sawInlineBold = true
		}
	})
	if !sawLead {
		t.Errorf("expected linked stylesheet color to apply to .lead paragraph")
	}
	if !sawInlineBold {
		t.Errorf("expected inline <style> rule to apply to .inline paragraph")
	}
}

func TestDefaultLoadChapterNoStylesheets(t *testing.T) {
	doc := []byte(`<html><body><p>Plain</p></body></html>`)
	c, err := DefaultLoadChapter(doc, "chapter1.html", nil, nil)
	if err != nil {
		t.Fatalf("DefaultLoadChapter: %v", err)
	}
	if c.Root() != 0 {
		t.Fatalf("expected root node id 0")
	}
}
