package css

import (
	"testing"

	"bookforge/ir"
)

type testElement struct {
	tag      string
	id       string
	classes  []string
	attrs    map[string]string
	parent   *testElement
	prev     *testElement
	next     *testElement
	index    int
	children bool
}

func (e *testElement) TagName() string { return e.tag }
func (e *testElement) ID() string      { return e.id }
func (e *testElement) Classes() []string {
	return e.classes
}
func (e *testElement) Attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}
func (e *testElement) Parent() Element {
	if e.parent == nil {
		return nil
	}
	return e.parent
}
func (e *testElement) PrevElementSibling() Element {
	if e.prev == nil {
		return nil
	}
	return e.prev
}
func (e *testElement) NextElementSibling() Element {
	if e.next == nil {
		return nil
	}
	return e.next
}
func (e *testElement) ElementIndex() int { return e.index }
func (e *testElement) HasChildren() bool { return e.children }

func TestSelectorMatchTagClassID(t *testing.T) {
	el := &testElement{tag: "p", id: "intro", classes: []string{"lead", "big"}, index: 1}
	sels := ParseSelectorList("p.lead, span#intro, p.missing")
	if len(sels) != 3 {
		t.Fatalf("expected 3 selectors, got %d", len(sels))
	}
	if !Matches(sels[0], el) {
		t.Errorf("expected p.lead to match")
	}
	if Matches(sels[1], el) {
		t.Errorf("span#intro should not match a <p>")
	}
	if Matches(sels[2], el) {
		t.Errorf("p.missing should not match")
	}
}

func TestSelectorDescendantAndChild(t *testing.T) {
	root := &testElement{tag: "div", classes: []string{"section"}, index: 1}
	child := &testElement{tag: "p", parent: root, index: 1}
	grand := &testElement{tag: "span", parent: child, index: 1}

	desc := ParseSelectorList("div.section span")[0]
	if !Matches(desc, grand) {
		t.Errorf("descendant combinator should match through p")
	}

	direct := ParseSelectorList("div.section > span")[0]
	if Matches(direct, grand) {
		t.Errorf("child combinator should not skip a level")
	}
	directP := ParseSelectorList("div.section > p")[0]
	if !Matches(directP, child) {
		t.Errorf("child combinator should match direct child")
	}
}

func TestSelectorAttrAndNth(t *testing.T) {
	first := &testElement{tag: "li", index: 1, attrs: map[string]string{"data-kind": "note"}}
	second := &testElement{tag: "li", index: 2}
	first.next = second
	second.prev = first

	attrSel := ParseSelectorList(`li[data-kind=note]`)[0]
	if !Matches(attrSel, first) {
		t.Errorf("attribute equals selector should match")
	}
	if Matches(attrSel, second) {
		t.Errorf("attribute equals selector should not match missing attribute")
	}

	nth := ParseSelectorList("li:nth-child(2)")[0]
	if Matches(nth, first) || !Matches(nth, second) {
		t.Errorf("nth-child(2) should match only the second element")
	}
}

func TestSpecificityOrdering(t *testing.T) {
	sel := ParseSelectorList("#id .cls tag")[0]
	ids, classes, types := sel.Specificity()
	if ids != 1 || classes != 1 || types != 1 {
		t.Errorf("expected (1,1,1) specificity, got (%d,%d,%d)", ids, classes, types)
	}
}

func TestExpandDeclarationMarginFourValue(t *testing.T) {
	decls := ExpandDeclaration("margin", "1px 2px 3px 4px", false)
	want := map[string]string{
		"margin-top": "1px", "margin-right": "2px",
		"margin-bottom": "3px", "margin-left": "4px",
	}
	if len(decls) != 4 {
		t.Fatalf("expected 4 declarations, got %d", len(decls))
	}
	for _, d := range decls {
		if d.Value.Raw != want[d.Property] {
			t.Errorf("%s: got %q want %q", d.Property, d.Value.Raw, want[d.Property])
		}
	}
}

func TestExpandDeclarationMarginOneValue(t *testing.T) {
	decls := ExpandDeclaration("padding", "2em", false)
	if len(decls) != 4 {
		t.Fatalf("expected 4 declarations, got %d", len(decls))
	}
	for _, d := range decls {
		if d.Value.Raw != "2em" {
			t.Errorf("%s: expected fill value 2em, got %q", d.Property, d.Value.Raw)
		}
	}
}

func TestExpandDeclarationBorderShorthand(t *testing.T) {
	decls := ExpandDeclaration("border", "1px solid red", true)
	byProp := map[string]Declaration{}
	for _, d := range decls {
		byProp[d.Property] = d
	}
	if len(decls) != 12 {
		t.Fatalf("expected 12 expanded border declarations, got %d", len(decls))
	}
	if !byProp["border-top-width"].Important {
		t.Errorf("expanded declarations should keep !important")
	}
	if byProp["border-top-style"].Value.Keyword != "solid" {
		t.Errorf("expected border style solid, got %q", byProp["border-top-style"].Value.Keyword)
	}
}

func TestExpandDeclarationBackgroundColorOnly(t *testing.T) {
	decls := ExpandDeclaration("background", "url(bg.png) #fff no-repeat", false)
	if len(decls) != 1 || decls[0].Property != "background-color" {
		t.Fatalf("expected single background-color declaration, got %+v", decls)
	}
}

func TestExpandDeclarationListStyle(t *testing.T) {
	decls := ExpandDeclaration("list-style", "square inside", false)
	if len(decls) != 2 {
		t.Fatalf("expected 2 declarations, got %d", len(decls))
	}
}

func TestApplyDeclarationColorAndFontSize(t *testing.T) {
	var style ir.ComputedStyle
	ApplyDeclaration(&style, Declaration{Property: "color", Value: parseValueString("#ff0000")})
	if !style.Color.HasValue || style.Color.R != 255 || style.Color.G != 0 {
		t.Errorf("expected red color, got %+v", style.Color)
	}
	ApplyDeclaration(&style, Declaration{Property: "font-size", Value: parseValueString("1.5em")})
	if style.FontSize.Unit != ir.LengthEm || style.FontSize.Value != 1.5 {
		t.Errorf("expected 1.5em font-size, got %+v", style.FontSize)
	}
}

func TestParseColorVariants(t *testing.T) {
	cases := []struct {
		raw          string
		r, g, b, a   uint8
	}{
		{"#fff", 255, 255, 255, 255},
		{"#ff0000", 255, 0, 0, 255},
		{"rgb(0, 128, 255)", 0, 128, 255, 255},
		{"rgba(10, 20, 30, 0.5)", 10, 20, 30, 127},
	}
	for _, c := range cases {
		v := parseValueString(c.raw)
		got, ok := parseColor(v)
		if !ok {
			t.Fatalf("%s: failed to parse", c.raw)
		}
		if got.R != c.r || got.G != c.g || got.B != c.b {
			t.Errorf("%s: got rgb(%d,%d,%d) want rgb(%d,%d,%d)", c.raw, got.R, got.G, got.B, c.r, c.g, c.b)
		}
	}
}

func TestCascadeSpecificityAndImportant(t *testing.T) {
	author := NewParser(nil).Parse([]byte(`
		p { color: #000000; }
		.lead { color: #0000ff; }
		#x { color: #00ff00 !important; }
	`), OriginAuthor, "test")

	el := &testElement{tag: "p", id: "x", classes: []string{"lead"}, index: 1, children: true}
	style := Cascade([]*Stylesheet{UAStylesheet(), author}, el, ir.ComputedStyle{})
	if style.Color.R != 0 || style.Color.G != 255 || style.Color.B != 0 {
		t.Errorf("expected !important #id rule to win, got %+v", style.Color)
	}
}

func TestCascadeUALowestPriority(t *testing.T) {
	el := &testElement{tag: "h1", index: 1}
	style := Cascade([]*Stylesheet{UAStylesheet()}, el, ir.ComputedStyle{})
	if style.FontWeight != 700 {
		t.Errorf("expected UA h1 bold, got weight %d", style.FontWeight)
	}
	if style.Display != ir.DisplayBlock {
		t.Errorf("expected UA h1 block display, got %v", style.Display)
	}
}

func TestCascadeInheritance(t *testing.T) {
	parent := ir.ComputedStyle{Color: ir.RGBA(1, 2, 3, 255)}
	el := &testElement{tag: "span", index: 1}
	style := Cascade(nil, el, parent)
	if style.Color != parent.Color {
		t.Errorf("expected inherited color, got %+v", style.Color)
	}
}

func TestParserFontFace(t *testing.T) {
	sheet := NewParser(nil).Parse([]byte(`
		@font-face { font-family: "Body Text"; src: url(fonts/body.ttf); font-weight: normal; }
		body { margin: 0; }
	`), OriginAuthor, "test")
	if len(sheet.FontFaces) != 1 || sheet.FontFaces[0].Family != "Body Text" {
		t.Fatalf("expected one font-face Body Text, got %+v", sheet.FontFaces)
	}
	if len(sheet.Rules) != 1 || len(sheet.Rules[0].Declarations) != 4 {
		t.Fatalf("expected one body rule whose margin shorthand expands to 4 declarations, got %+v", sheet.Rules)
	}
}
