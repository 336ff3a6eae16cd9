package htmlimport

import (
	"testing"

	"bookforge/css"
	"bookforge/ir"
)

func TestCompileBasicStructure(t *testing.T) {
	doc := []byte(`<html><body>
		<h1>Title</h1>
		<p>Hello <b>world</b>.</p>
		<ul><li>one</li><li>two</li></ul>
	</body></html>`)

	c, err := Compile(doc, []*css.Stylesheet{css.UAStylesheet()}, "text/chapter1.html", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var roles []ir.Role
	c.Walk(func(id ir.NodeId) { roles = append(roles, c.Node(id).Role) })

	var sawHeading, sawParagraph, sawList bool
	for _, r := range roles {
		switch r {
		case ir.RoleHeading1:
			sawHeading = true
		case ir.RoleParagraph:
			sawParagraph = true
		case ir.RoleUnorderedList:
			sawList = true
		}
	}
	if !sawHeading || !sawParagraph || !sawList {
		t.Fatalf("expected heading/paragraph/list roles, got %v", roles)
	}
}

func TestCompileAppliesCascadeStyle(t *testing.T) {
	doc := []byte(`<html><body><p class="lead">styled</p></body></html>`)
	author := css.NewParser(nil).Parse([]byte(`.lead { color: #112233; }`), css.OriginAuthor, "inline")
	c, err := Compile(doc, []*css.Stylesheet{css.UAStylesheet(), author}, "chapter1.html", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var found bool
	c.Walk(func(id ir.NodeId) {
		if c.Node(id).Role == ir.RoleParagraph {
			style := c.Style(id)
			if style.Color.R == 0x11 && style.Color.G == 0x22 && style.Color.B == 0x33 {
				found = true
			}
		}
	})
	if !found {
		t.Fatalf("expected cascaded paragraph color to reach the IR style")
	}
}

func TestCompileResolvesLinkHref(t *testing.T) {
	doc := []byte(`<html><body><p><a href="../images/pic.png#frag">link</a></p></body></html>`)
	var resolved string
	resolve := func(sourcePath, ref string) string {
		resolved = ref
		return "rewritten/" + ref
	}
	c, err := Compile(doc, nil, "text/chapter1.html", resolve)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var href string
	var ok bool
	c.Walk(func(id ir.NodeId) {
		if c.Node(id).Role == ir.RoleLink {
			href, ok = c.Href(id)
		}
	})
	if !ok {
		t.Fatalf("expected a Link node with href")
	}
	if resolved == "" {
		t.Fatalf("expected resolver to be invoked")
	}
	if href == "" {
		t.Fatalf("expected rewritten href to be stored")
	}
}

func TestCompileImageAltAndSrc(t *testing.T) {
	doc := []byte(`<html><body><img src="cover.jpg" alt="Cover"/></body></html>`)
	c, err := Compile(doc, nil, "chapter1.html", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var src, alt string
	c.Walk(func(id ir.NodeId) {
		if c.Node(id).Role == ir.RoleImage {
			src, _ = c.Src(id)
			alt, _ = c.Alt(id)
		}
	})
	if src != "cover.jpg" || alt != "Cover" {
		t.Fatalf("expected src=cover.jpg alt=Cover, got src=%q alt=%q", src, alt)
	}
}

func TestCompileTableCellSpans(t *testing.T) {
	doc := []byte(`<html><body><table><tr><th colspan="2">H</th></tr><tr><td rowspan="3">D</td></tr></table></body></html>`)
	c, err := Compile(doc, nil, "chapter1.html", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var sawHeader, sawRowspan bool
	c.Walk(func(id ir.NodeId) {
		if c.Node(id).Role != ir.RoleTableCell {
			return
		}
		sa := c.Semantics(id)
		if sa == nil {
			return
		}
		if sa.IsHeaderCell && sa.ColSpan == 2 {
			sawHeader = true
		}
		if sa.RowSpan == 3 {
			sawRowspan = true
		}
	})
	if !sawHeader || !sawRowspan {
		t.Fatalf("expected header colspan=2 and data rowspan=3 cells")
	}
}

func TestCompileFootnoteEpubType(t *testing.T) {
	doc := []byte(`<html><body><aside epub:type="footnote" id="fn1">note text</aside></body></html>`)
	c, err := Compile(doc, nil, "chapter1.html", nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var sawFootnote bool
	c.Walk(func(id ir.NodeId) {
		if c.Node(id).Role == ir.RoleFootnote {
			sawFootnote = true
		}
	})
	if !sawFootnote {
		t.Fatalf("expected epub:type=footnote to produce a Footnote role")
	}
}
