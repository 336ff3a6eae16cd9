package ir

import "testing"

func TestAppendTextMerge(t *testing.T) {
	c := NewChapter()
	p := c.AllocNode(RoleParagraph)
	c.AppendChild(c.Root(), p)

	c.AppendText(p, "hello ", ComputedStyle{}, true)
	c.AppendText(p, "world", ComputedStyle{}, true)

	children := c.Children(p)
	if len(children) != 1 {
		t.Fatalf("expected merge into 1 text node, got %d", len(children))
	}
	if got := c.Text(children[0]); got != "hello world" {
		t.Fatalf("Text = %q, want %q", got, "hello world")
	}
}

func TestVacuumPreservesIDWhitespace(t *testing.T) {
	c := NewChapter()
	p := c.AllocNode(RoleContainer)
	c.AppendChild(c.Root(), p)
	ws := c.AppendText(p, "   ", ComputedStyle{}, false)
	c.SetID(ws, "anchor1")

	junk := c.AppendText(p, "\n\t", ComputedStyle{}, false)
	_ = junk

	vacuum(c)

	children := c.Children(p)
	if len(children) != 1 || children[0] != ws {
		t.Fatalf("expected only the id-bearing whitespace node to survive, got %v", children)
	}
}

func TestFuseListsConcatenatesSameKind(t *testing.T) {
	c := NewChapter()
	list1 := c.AllocNode(RoleUnorderedList)
	list2 := c.AllocNode(RoleUnorderedList)
	c.AppendChild(c.Root(), list1)
	c.AppendChild(c.Root(), list2)

	item1 := c.AllocNode(RoleListItem)
	c.AppendChild(list1, item1)
	item2 := c.AllocNode(RoleListItem)
	c.AppendChild(list2, item2)

	fuseLists(c)

	roots := c.Children(c.Root())
	if len(roots) != 1 {
		t.Fatalf("expected lists fused into one, got %d roots", len(roots))
	}
	items := c.Children(roots[0])
	if len(items) != 2 {
		t.Fatalf("expected 2 items after fuse, got %d", len(items))
	}
}

func TestPruneEmptyCascades(t *testing.T) {
	c := NewChapter()
	outer := c.AllocNode(RoleContainer)
	inner := c.AllocNode(RoleContainer)
	c.AppendChild(c.Root(), outer)
	c.AppendChild(outer, inner)

	pruneEmpty(c)

	if len(c.Children(c.Root())) != 0 {
		t.Fatalf("expected empty nested containers to prune away entirely")
	}
}

func TestPruneEmptyKeepsIDNode(t *testing.T) {
	c := NewChapter()
	outer := c.AllocNode(RoleContainer)
	c.AppendChild(c.Root(), outer)
	c.SetID(outer, "keep-me")

	pruneEmpty(c)

	if len(c.Children(c.Root())) != 1 {
		t.Fatalf("expected id-bearing empty container to survive prune")
	}
}

func TestNormalizeTablesClassifiesHeaderRow(t *testing.T) {
	c := NewChapter()
	table := c.AllocNode(RoleTable)
	c.AppendChild(c.Root(), table)

	headerRow := c.AllocNode(RoleTableRow)
	c.AppendChild(table, headerRow)
	cell := c.AllocNode(RoleTableCell)
	c.AppendChild(headerRow, cell)
	c.EnsureSemantics(cell).IsHeaderCell = true

	bodyRow := c.AllocNode(RoleTableRow)
	c.AppendChild(table, bodyRow)
	bodyCell := c.AllocNode(RoleTableCell)
	c.AppendChild(bodyRow, bodyCell)

	normalizeTables(c)

	children := c.Children(table)
	if len(children) != 2 {
		t.Fatalf("expected table head+body wrappers, got %d children", len(children))
	}
	if c.nodes[children[0]].Role != RoleTableHead {
		t.Fatalf("expected first child to be TableHead, got %v", c.nodes[children[0]].Role)
	}
	if c.nodes[children[1]].Role != RoleTableBody {
		t.Fatalf("expected second child to be TableBody, got %v", c.nodes[children[1]].Role)
	}
}

func TestStylePoolInterns(t *testing.T) {
	pool := NewStylePool()
	s := ComputedStyle{FontFamily: "Georgia"}
	id1 := pool.Intern(s)
	id2 := pool.Intern(s)
	if id1 != id2 {
		t.Fatalf("identical styles got different ids: %d vs %d", id1, id2)
	}
	if id1 == 0 {
		t.Fatalf("non-default style interned to id 0")
	}
	if pool.Intern(ComputedStyle{}) != 0 {
		t.Fatal("default style must intern to id 0")
	}
}

func TestGenerateCSSSkipsDefaultAndDedups(t *testing.T) {
	pool := NewStylePool()
	bold := pool.Intern(ComputedStyle{FontWeight: 700})
	out := GenerateCSS(pool, []StyleId{0, bold, bold, 0})
	if len(out.ClassFor) != 1 {
		t.Fatalf("expected 1 class (default skipped, dup removed), got %d", len(out.ClassFor))
	}
	if out.ClassFor[bold] != "c1" {
		t.Fatalf("class name = %q, want c1", out.ClassFor[bold])
	}
}

func TestResolvePathsRewritesRelativeOnly(t *testing.T) {
	c := NewChapter()
	c.SourcePath = "text/chapter1.xhtml"
	img := c.AllocNode(RoleImage)
	c.AppendChild(c.Root(), img)
	c.SetSrc(img, "../images/cover.jpg")

	link := c.AllocNode(RoleLink)
	c.AppendChild(c.Root(), link)
	c.SetHref(link, "https://example.com/x")

	frag := c.AllocNode(RoleLink)
	c.AppendChild(c.Root(), frag)
	c.SetHref(frag, "#section2")

	ResolvePaths(c, func(sourcePath, ref string) string {
		return "RESOLVED(" + sourcePath + "," + ref + ")"
	})

	if src, _ := c.Src(img); src != "RESOLVED(text/chapter1.xhtml,images/cover.jpg)" {
		t.Fatalf("src rewritten to %q", src)
	}
	if href, _ := c.Href(link); href != "https://example.com/x" {
		t.Fatalf("external href should pass through unchanged, got %q", href)
	}
	if href, _ := c.Href(frag); href != "#section2" {
		t.Fatalf("fragment-only href should pass through unchanged, got %q", href)
	}
}
