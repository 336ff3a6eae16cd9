package kfx

import (
	"fmt"

	"bookforge/ir"
)

// styleRegistry interns ir.ComputedStyle values into deduplicated $157 style
// fragments, the way the teacher's style subsystem deduplicated FB2 style
// declarations by content before this was adapted to read already-resolved
// IR styles instead of re-parsing CSS.
type styleRegistry struct {
	byKey   map[string]string
	props   map[string]StructValue
	order   []string
	counter int
}

func newStyleRegistry() *styleRegistry {
	return &styleRegistry{
		byKey: make(map[string]string),
		props: make(map[string]StructValue),
	}
}

// Intern returns the style fragment name for s, creating a new $157
// fragment the first time a given property set is seen.
func (r *styleRegistry) Intern(s ir.ComputedStyle) string {
	props := styleProperties(s)
	key := fmt.Sprintf("%v", props)
	if name, ok := r.byKey[key]; ok {
		return name
	}
	r.counter++
	name := fmt.Sprintf("style_%d", r.counter)
	r.byKey[key] = name
	r.props[name] = props
	r.order = append(r.order, name)
	return name
}

// Fragments returns one $157 style fragment per distinct style interned, in
// first-seen order.
func (r *styleRegistry) Fragments() []*Fragment {
	out := make([]*Fragment, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, &Fragment{FType: SymStyle, FIDName: name, Value: r.props[name]})
	}
	return out
}

// styleProperties maps a resolved ComputedStyle to the KFX style property
// struct; zero-valued properties are omitted so every style fragment carries
// only what its node actually sets.
func styleProperties(s ir.ComputedStyle) StructValue {
	out := NewStruct()

	if s.FontFamily != "" {
		out.SetString(SymFontFamily, s.FontFamily)
	}
	if px, ok := lengthPx(s.FontSize); ok {
		out.SetFloat(SymFontSize, px)
	}
	if s.FontWeight != 0 {
		out.SetSymbol(SymFontWeight, fontWeightSymbol(s.FontWeight))
	}
	switch s.FontStyle {
	case ir.FontStyleItalic, ir.FontStyleOblique:
		out.SetSymbol(SymFontStyle, SymItalic)
	}
	if s.Color.HasValue {
		out.SetString(SymTextColor, s.Color.String())
	}

	switch s.TextAlign {
	case ir.TextAlignLeft:
		out.SetSymbol(SymTextAlignment, SymHorizontal)
	case ir.TextAlignCenter:
		out.SetSymbol(SymTextAlignment, SymCenter)
	case ir.TextAlignJustify:
		out.SetSymbol(SymTextAlignment, SymJustify)
	}
	if px, ok := lengthPx(s.TextIndent); ok && px != 0 {
		out.SetFloat(SymTextIndent, px)
	}
	if px, ok := lengthPx(s.LineHeight); ok && px != 0 {
		out.SetFloat(SymLineHeight, px)
	}

	setSide(out, SymMarginTop, s.Margin.Top)
	setSide(out, SymMarginRight, s.Margin.Right)
	setSide(out, SymMarginBottom, s.Margin.Bottom)
	setSide(out, SymMarginLeft, s.Margin.Left)
	setSide(out, SymPaddingTop, s.Padding.Top)
	setSide(out, SymPaddingRight, s.Padding.Right)
	setSide(out, SymPaddingBottom, s.Padding.Bottom)
	setSide(out, SymPaddingLeft, s.Padding.Left)

	switch s.VerticalAlign {
	case ir.VerticalAlignSuper:
		out.SetSymbol(SymBaselineStyle, SymSuperscript)
	case ir.VerticalAlignSub:
		out.SetSymbol(SymBaselineStyle, SymSubscript)
	}

	return out
}

func setSide(out StructValue, field KFXSymbol, l ir.Length) {
	if px, ok := lengthPx(l); ok && px != 0 {
		out.SetFloat(field, px)
	}
}

// lengthPx converts a resolved Length to a pixel magnitude. KFX style
// properties carry plain numeric values (no unit symbol for the common
// px/em case); Auto lengths are reported as unset.
func lengthPx(l ir.Length) (float64, bool) {
	if l.Unit == ir.LengthAuto {
		return 0, false
	}
	return l.Value, true
}

// fontWeightSymbol maps the CSS 100-900 numeric scale to the nearest KFX
// weight symbol.
func fontWeightSymbol(weight int) KFXSymbol {
	switch {
	case weight >= 700:
		return SymBold
	case weight >= 600:
		return SymSemibold
	case weight >= 500:
		return SymMedium
	case weight > 0 && weight < 400:
		return SymLight
	default:
		return SymNormal
	}
}

// computedStyleFromGenericProps is the inverse of styleProperties, used by
// Importer.buildNode to recover an approximate ComputedStyle from a $157
// fragment decoded generically into map[string]any (symbol and string
// values both collapse to plain Go strings on read, so SymbolID parses them
// back). Only the subset of properties styleProperties emits round-trips;
// anything KFX doesn't carry at the style-fragment level (border, display,
// etc.) is left at its IR default.
func computedStyleFromGenericProps(props map[string]any) ir.ComputedStyle {
	var s ir.ComputedStyle

	if v, ok := mapString(props, fieldKey(SymFontFamily)); ok {
		s.FontFamily = v
	}
	if v, ok := mapFloat(props, fieldKey(SymFontSize)); ok {
		s.FontSize = ir.Px(v)
	}
	if v, ok := mapString(props, fieldKey(SymFontWeight)); ok {
		s.FontWeight = fontWeightFromSymbol(SymbolID(v))
	}
	if v, ok := mapString(props, fieldKey(SymFontStyle)); ok && SymbolID(v) == SymItalic {
		s.FontStyle = ir.FontStyleItalic
	}
	if v, ok := mapString(props, fieldKey(SymTextColor)); ok {
		s.Color = parseHexColor(v)
	}
	if v, ok := mapString(props, fieldKey(SymTextAlignment)); ok {
		switch SymbolID(v) {
		case SymHorizontal:
			s.TextAlign = ir.TextAlignLeft
		case SymCenter:
			s.TextAlign = ir.TextAlignCenter
		case SymJustify:
			s.TextAlign = ir.TextAlignJustify
		}
	}
	if v, ok := mapFloat(props, fieldKey(SymTextIndent)); ok {
		s.TextIndent = ir.Px(v)
	}
	if v, ok := mapFloat(props, fieldKey(SymLineHeight)); ok {
		s.LineHeight = ir.Px(v)
	}
	s.Margin.Top = genericSidePx(props, SymMarginTop)
	s.Margin.Right = genericSidePx(props, SymMarginRight)
	s.Margin.Bottom = genericSidePx(props, SymMarginBottom)
	s.Margin.Left = genericSidePx(props, SymMarginLeft)
	s.Padding.Top = genericSidePx(props, SymPaddingTop)
	s.Padding.Right = genericSidePx(props, SymPaddingRight)
	s.Padding.Bottom = genericSidePx(props, SymPaddingBottom)
	s.Padding.Left = genericSidePx(props, SymPaddingLeft)
	if v, ok := mapString(props, fieldKey(SymBaselineStyle)); ok {
		switch SymbolID(v) {
		case SymSuperscript:
			s.VerticalAlign = ir.VerticalAlignSuper
		case SymSubscript:
			s.VerticalAlign = ir.VerticalAlignSub
		}
	}
	return s
}

func genericSidePx(props map[string]any, field KFXSymbol) ir.Length {
	if v, ok := mapFloat(props, fieldKey(field)); ok {
		return ir.Px(v)
	}
	return ir.Auto
}

func fontWeightFromSymbol(sym KFXSymbol) int {
	switch sym {
	case SymBold:
		return 700
	case SymSemibold:
		return 600
	case SymMedium:
		return 500
	case SymLight:
		return 300
	default:
		return 400
	}
}

func parseHexColor(s string) ir.Color {
	if len(s) != 7 || s[0] != '#' {
		return ir.Color{}
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return ir.Color{}
	}
	return ir.RGBA(r, g, b, 255)
}
