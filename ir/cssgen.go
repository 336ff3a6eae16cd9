package ir

import (
	"fmt"
	"sort"
	"strings"
)

// GeneratedCSS is the result of GenerateCSS: the stylesheet text and the
// StyleId -> class name mapping an exporter attaches to elements.
type GeneratedCSS struct {
	CSS      string
	ClassFor map[StyleId]string
}

// GenerateCSS deduplicates usedIDs, sorts them, skips the default style, and
// emits one .c{id} rule per remaining id containing only properties that
// differ from the default. usedIDs need not be sorted or unique on input.
func GenerateCSS(pool *StylePool, usedIDs []StyleId) GeneratedCSS {
	seen := make(map[StyleId]bool, len(usedIDs))
	var ids []StyleId
	for _, id := range usedIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	def := pool.Default()
	classFor := make(map[StyleId]string, len(ids))
	var sb strings.Builder
	for _, id := range ids {
		class := fmt.Sprintf("c%d", id)
		classFor[id] = class
		decls := diffDecls(def, pool.Get(id))
		if len(decls) == 0 {
			continue
		}
		sb.WriteString(".")
		sb.WriteString(class)
		sb.WriteString(" {\n")
		for _, d := range decls {
			sb.WriteString("  ")
			sb.WriteString(d)
			sb.WriteString(";\n")
		}
		sb.WriteString("}\n")
	}
	return GeneratedCSS{CSS: sb.String(), ClassFor: classFor}
}

// diffDecls returns "property: value" strings, in a stable declaration order,
// for the font, color, background, text, spacing, margin, padding,
// width/height, display and vertical-align fields of s that differ from def.
// Borders, min/max sizes, box-sizing, float, clear, visibility, page breaks,
// list style, white-space, hyphens and language are not emitted.
func diffDecls(def, s ComputedStyle) []string {
	var out []string
	add := func(name, value string) { out = append(out, name+": "+value) }

	if s.FontFamily != def.FontFamily && s.FontFamily != "" {
		add("font-family", s.FontFamily)
	}
	if s.FontSize != def.FontSize {
		add("font-size", s.FontSize.String())
	}
	if s.FontWeight != def.FontWeight && s.FontWeight != 0 {
		add("font-weight", fmt.Sprintf("%d", s.FontWeight))
	}
	if s.FontStyle != def.FontStyle {
		add("font-style", fontStyleCSS(s.FontStyle))
	}
	if s.FontVariant != def.FontVariant {
		add("font-variant", fontVariantCSS(s.FontVariant))
	}
	if s.Color != def.Color && s.Color.HasValue {
		add("color", s.Color.String())
	}
	if s.Background != def.Background && s.Background.HasValue {
		add("background-color", s.Background.String())
	}
	if s.TextAlign != def.TextAlign {
		add("text-align", textAlignCSS(s.TextAlign))
	}
	if s.TextIndent != def.TextIndent {
		add("text-indent", s.TextIndent.String())
	}
	if s.TextTransform != def.TextTransform {
		add("text-transform", textTransformCSS(s.TextTransform))
	}
	if s.Decoration != def.Decoration {
		add("text-decoration", decorationCSS(s.Decoration))
	}
	if s.LineHeight != def.LineHeight {
		add("line-height", s.LineHeight.String())
	}
	if s.LetterSpacing != def.LetterSpacing {
		add("letter-spacing", s.LetterSpacing.String())
	}
	if s.WordSpacing != def.WordSpacing {
		add("word-spacing", s.WordSpacing.String())
	}
	if s.Margin != def.Margin {
		add("margin", sidesCSS(s.Margin))
	}
	if s.Padding != def.Padding {
		add("padding", sidesCSS(s.Padding))
	}
	if s.Width != def.Width {
		add("width", s.Width.String())
	}
	if s.Height != def.Height {
		add("height", s.Height.String())
	}
	if s.Display != def.Display {
		add("display", displayCSS(s.Display))
	}
	if s.VerticalAlign != def.VerticalAlign {
		add("vertical-align", verticalAlignCSS(s.VerticalAlign))
	}
	return out
}

func sidesCSS(s Sides) string {
	return fmt.Sprintf("%s %s %s %s", s.Top, s.Right, s.Bottom, s.Left)
}

func fontStyleCSS(v FontStyle) string {
	switch v {
	case FontStyleItalic:
		return "italic"
	case FontStyleOblique:
		return "oblique"
	default:
		return "normal"
	}
}

func fontVariantCSS(v FontVariant) string {
	if v == FontVariantSmallCaps {
		return "small-caps"
	}
	return "normal"
}

func textAlignCSS(v TextAlign) string {
	switch v {
	case TextAlignLeft:
		return "left"
	case TextAlignRight:
		return "right"
	case TextAlignCenter:
		return "center"
	case TextAlignJustify:
		return "justify"
	default:
		return "start"
	}
}

func textTransformCSS(v TextTransform) string {
	switch v {
	case TextTransformCapitalize:
		return "capitalize"
	case TextTransformUppercase:
		return "uppercase"
	case TextTransformLowercase:
		return "lowercase"
	default:
		return "none"
	}
}

func decorationCSS(v TextDecoration) string {
	switch v {
	case TextDecorationUnderline:
		return "underline"
	case TextDecorationLineThrough:
		return "line-through"
	case TextDecorationOverline:
		return "overline"
	default:
		return "none"
	}
}

func displayCSS(v Display) string {
	switch v {
	case DisplayBlock:
		return "block"
	case DisplayInlineBlock:
		return "inline-block"
	case DisplayNone:
		return "none"
	case DisplayTable:
		return "table"
	case DisplayTableRow:
		return "table-row"
	case DisplayTableCell:
		return "table-cell"
	case DisplayListItem:
		return "list-item"
	default:
		return "inline"
	}
}

func verticalAlignCSS(v VerticalAlign) string {
	switch v {
	case VerticalAlignSub:
		return "sub"
	case VerticalAlignSuper:
		return "super"
	case VerticalAlignTop:
		return "top"
	case VerticalAlignMiddle:
		return "middle"
	case VerticalAlignBottom:
		return "bottom"
	case VerticalAlignTextTop:
		return "text-top"
	case VerticalAlignTextBottom:
		return "text-bottom"
	default:
		return "baseline"
	}
}
