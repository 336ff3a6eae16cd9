package css

import (
	"strconv"
	"strings"

	"bookforge/ir"
)

// Declaration is one elementary "property: value" pair after shorthand
// expansion, tagged with whether it was marked !important.
type Declaration struct {
	Property  string
	Value     Value
	Important bool
}

// ExpandDeclaration expands a raw property/value pair into one or more
// elementary declarations. margin/padding/border-width follow the CSS
// 1/2/3/4-value rect fill rule; border and border-{side} split width/style/
// color (order-independent); list-style splits type/position and discards
// any image; background extracts only a color and discards the rest.
// Unknown properties pass through as a single declaration with the raw
// value preserved, so the cascade can still apply them if ApplyDeclaration
// recognizes the name directly.
func ExpandDeclaration(property, raw string, important bool) []Declaration {
	property = strings.ToLower(strings.TrimSpace(property))
	switch property {
	case "margin", "padding":
		return rectDecls(property, raw, important)
	case "border-width":
		return rectDecls("border-width", raw, important)
	case "border":
		return borderDecls("border", raw, important, true, true, true)
	case "border-top", "border-right", "border-bottom", "border-left":
		side := strings.TrimPrefix(property, "border-")
		return borderSideDecls(side, raw, important)
	case "list-style":
		return listStyleDecls(raw, important)
	case "background":
		return backgroundDecls(raw, important)
	default:
		return []Declaration{{Property: property, Value: parseValueString(raw), Important: important}}
	}
}

// rectDecls implements the 1/2/3/4-value fill rule: 1 value sets all four
// sides, 2 values set (top/bottom, left/right), 3 set (top, left/right,
// bottom), 4 set (top, right, bottom, left).
func rectDecls(property, raw string, important bool) []Declaration {
	parts := splitValueList(raw)
	var top, right, bottom, left string
	switch len(parts) {
	case 1:
		top, right, bottom, left = parts[0], parts[0], parts[0], parts[0]
	case 2:
		top, right, bottom, left = parts[0], parts[1], parts[0], parts[1]
	case 3:
		top, right, bottom, left = parts[0], parts[1], parts[2], parts[1]
	case 4:
		top, right, bottom, left = parts[0], parts[1], parts[2], parts[3]
	default:
		return nil
	}
	return []Declaration{
		{Property: property + "-top", Value: parseValueString(top), Important: important},
		{Property: property + "-right", Value: parseValueString(right), Important: important},
		{Property: property + "-bottom", Value: parseValueString(bottom), Important: important},
		{Property: property + "-left", Value: parseValueString(left), Important: important},
	}
}

func borderDecls(prefix, raw string, important, width, style, color bool) []Declaration {
	w, s, c := classifyBorderParts(raw)
	var out []Declaration
	if width && w != "" {
		out = append(out, rectDecls("border-width", w, important)...)
	}
	if style && s != "" {
		out = append(out,
			Declaration{Property: "border-top-style", Value: parseValueString(s), Important: important},
			Declaration{Property: "border-right-style", Value: parseValueString(s), Important: important},
			Declaration{Property: "border-bottom-style", Value: parseValueString(s), Important: important},
			Declaration{Property: "border-left-style", Value: parseValueString(s), Important: important},
		)
	}
	if color && c != "" {
		out = append(out,
			Declaration{Property: "border-top-color", Value: parseValueString(c), Important: important},
			Declaration{Property: "border-right-color", Value: parseValueString(c), Important: important},
			Declaration{Property: "border-bottom-color", Value: parseValueString(c), Important: important},
			Declaration{Property: "border-left-color", Value: parseValueString(c), Important: important},
		)
	}
	return out
}

func borderSideDecls(side, raw string, important bool) []Declaration {
	w, s, c := classifyBorderParts(raw)
	var out []Declaration
	if w != "" {
		out = append(out, Declaration{Property: "border-" + side + "-width", Value: parseValueString(w), Important: important})
	}
	if s != "" {
		out = append(out, Declaration{Property: "border-" + side + "-style", Value: parseValueString(s), Important: important})
	}
	if c != "" {
		out = append(out, Declaration{Property: "border-" + side + "-color", Value: parseValueString(c), Important: important})
	}
	return out
}

var borderStyleKeywords = map[string]bool{
	"none": true, "solid": true, "dashed": true, "dotted": true, "double": true,
	"hidden": true, "groove": true, "ridge": true, "inset": true, "outset": true,
}

// classifyBorderParts splits a "width style color" shorthand (in any order,
// per spec) into its three elementary parts by value shape: a length is the
// width, a recognized border-style keyword is the style, anything else
// (color keyword, hex, rgb()) is the color.
func classifyBorderParts(raw string) (width, style, color string) {
	for _, part := range splitValueList(raw) {
		v := parseValueString(part)
		switch {
		case v.IsNumeric() || v.Keyword == "thin" || v.Keyword == "medium" || v.Keyword == "thick":
			width = part
		case borderStyleKeywords[v.Keyword]:
			style = part
		default:
			color = part
		}
	}
	return
}

func listStyleDecls(raw string, important bool) []Declaration {
	var out []Declaration
	for _, part := range splitValueList(raw) {
		v := parseValueString(part)
		switch v.Keyword {
		case "inside", "outside":
			out = append(out, Declaration{Property: "list-style-position", Value: v, Important: important})
		case "none", "disc", "circle", "square", "decimal", "lower-alpha", "upper-alpha", "lower-roman", "upper-roman":
			out = append(out, Declaration{Property: "list-style-type", Value: v, Important: important})
		default:
			// url(...) image reference: discarded per spec.
		}
	}
	return out
}

func backgroundDecls(raw string, important bool) []Declaration {
	for _, part := range splitValueList(raw) {
		v := parseValueString(part)
		if looksLikeColor(v) {
			return []Declaration{{Property: "background-color", Value: v, Important: important}}
		}
	}
	return nil
}

func looksLikeColor(v Value) bool {
	if strings.HasPrefix(v.Raw, "#") {
		return true
	}
	if strings.HasPrefix(v.Keyword, "rgb") || strings.HasPrefix(v.Keyword, "hsl") {
		return true
	}
	if _, ok := namedColors[v.Keyword]; ok {
		return true
	}
	return false
}

// ApplyDeclaration applies one elementary declaration onto style in place.
// Unrecognized properties are silently ignored, matching the "unknown
// properties parse-to-end and are dropped" rule for properties whose name
// the cascade has no slot for.
func ApplyDeclaration(style *ir.ComputedStyle, d Declaration) {
	v := d.Value
	switch d.Property {
	case "font-family":
		style.FontFamily = strings.Trim(v.Raw, `"'`)
	case "font-size":
		if l, ok := v.toLength(); ok {
			style.FontSize = l
		}
	case "font-weight":
		style.FontWeight = fontWeightValue(v)
	case "font-style":
		style.FontStyle = fontStyleValue(v.Keyword)
	case "font-variant":
		if v.Keyword == "small-caps" {
			style.FontVariant = ir.FontVariantSmallCaps
		}
	case "color":
		if c, ok := parseColor(v); ok {
			style.Color = c
		}
	case "background-color":
		if c, ok := parseColor(v); ok {
			style.Background = c
		}
	case "text-align":
		style.TextAlign = textAlignValue(v.Keyword)
	case "text-indent":
		if l, ok := v.toLength(); ok {
			style.TextIndent = l
		}
	case "text-transform":
		style.TextTransform = textTransformValue(v.Keyword)
	case "text-decoration", "text-decoration-line":
		style.Decoration = decorationValue(v.Keyword)
	case "line-height":
		if l, ok := v.toLength(); ok {
			style.LineHeight = l
		}
	case "letter-spacing":
		if l, ok := v.toLength(); ok {
			style.LetterSpacing = l
		}
	case "word-spacing":
		if l, ok := v.toLength(); ok {
			style.WordSpacing = l
		}
	case "hyphens":
		style.Hyphens = v.Keyword == "auto" || v.Keyword == "manual"
	case "white-space":
		style.WhiteSpace = whiteSpaceValue(v.Keyword)
	case "margin-top":
		setLen(&style.Margin.Top, v)
	case "margin-right":
		setLen(&style.Margin.Right, v)
	case "margin-bottom":
		setLen(&style.Margin.Bottom, v)
	case "margin-left":
		setLen(&style.Margin.Left, v)
	case "padding-top":
		setLen(&style.Padding.Top, v)
	case "padding-right":
		setLen(&style.Padding.Right, v)
	case "padding-bottom":
		setLen(&style.Padding.Bottom, v)
	case "padding-left":
		setLen(&style.Padding.Left, v)
	case "border-top-width":
		setLen(&style.BorderWidth.Top, v)
	case "border-right-width":
		setLen(&style.BorderWidth.Right, v)
	case "border-bottom-width":
		setLen(&style.BorderWidth.Bottom, v)
	case "border-left-width":
		setLen(&style.BorderWidth.Left, v)
	case "border-top-style":
		style.BorderStyle.Top = borderStyleValue(v.Keyword)
	case "border-right-style":
		style.BorderStyle.Right = borderStyleValue(v.Keyword)
	case "border-bottom-style":
		style.BorderStyle.Bottom = borderStyleValue(v.Keyword)
	case "border-left-style":
		style.BorderStyle.Left = borderStyleValue(v.Keyword)
	case "border-top-color":
		if c, ok := parseColor(v); ok {
			style.BorderColor.Top = c
		}
	case "border-right-color":
		if c, ok := parseColor(v); ok {
			style.BorderColor.Right = c
		}
	case "border-bottom-color":
		if c, ok := parseColor(v); ok {
			style.BorderColor.Bottom = c
		}
	case "border-left-color":
		if c, ok := parseColor(v); ok {
			style.BorderColor.Left = c
		}
	case "width":
		if l, ok := v.toLength(); ok {
			style.Width = l
		}
	case "height":
		if l, ok := v.toLength(); ok {
			style.Height = l
		}
	case "min-width":
		if l, ok := v.toLength(); ok {
			style.MinWidth = l
		}
	case "min-height":
		if l, ok := v.toLength(); ok {
			style.MinHeight = l
		}
	case "max-width":
		if l, ok := v.toLength(); ok {
			style.MaxWidth = l
		}
	case "max-height":
		if l, ok := v.toLength(); ok {
			style.MaxHeight = l
		}
	case "box-sizing":
		if v.Keyword == "border-box" {
			style.BoxSizing = ir.BoxSizingBorderBox
		}
	case "display":
		style.Display = displayValue(v.Keyword)
	case "float":
		style.Float = floatValue(v.Keyword)
	case "clear":
		style.Clear = clearValue(v.Keyword)
	case "visibility":
		style.Visibility = visibilityValue(v.Keyword)
	case "page-break-before":
		style.PageBreakBefore = pageBreakValue(v.Keyword)
	case "page-break-after":
		style.PageBreakAfter = pageBreakValue(v.Keyword)
	case "page-break-inside":
		style.PageBreakInside = pageBreakValue(v.Keyword)
	case "list-style-type":
		style.ListStyleType = listStyleTypeValue(v.Keyword)
	case "list-style-position":
		if v.Keyword == "inside" {
			style.ListStylePos = ir.ListStylePosInside
		}
	case "vertical-align":
		style.VerticalAlign = verticalAlignValue(v.Keyword)
	case "lang":
		style.Language = v.Raw
	}
}

func setLen(dst *ir.Length, v Value) {
	if l, ok := v.toLength(); ok {
		*dst = l
	}
}

func fontWeightValue(v Value) int {
	switch v.Keyword {
	case "bold":
		return 700
	case "normal":
		return 400
	case "":
		if v.IsNumeric() {
			return int(v.Number)
		}
	}
	if n, err := strconv.Atoi(v.Keyword); err == nil {
		return n
	}
	return 0
}

func fontStyleValue(kw string) ir.FontStyle {
	switch kw {
	case "italic":
		return ir.FontStyleItalic
	case "oblique":
		return ir.FontStyleOblique
	default:
		return ir.FontStyleNormal
	}
}

func textAlignValue(kw string) ir.TextAlign {
	switch kw {
	case "left":
		return ir.TextAlignLeft
	case "right":
		return ir.TextAlignRight
	case "center":
		return ir.TextAlignCenter
	case "justify":
		return ir.TextAlignJustify
	default:
		return ir.TextAlignStart
	}
}

func textTransformValue(kw string) ir.TextTransform {
	switch kw {
	case "capitalize":
		return ir.TextTransformCapitalize
	case "uppercase":
		return ir.TextTransformUppercase
	case "lowercase":
		return ir.TextTransformLowercase
	default:
		return ir.TextTransformNone
	}
}

func decorationValue(kw string) ir.TextDecoration {
	switch kw {
	case "underline":
		return ir.TextDecorationUnderline
	case "line-through":
		return ir.TextDecorationLineThrough
	case "overline":
		return ir.TextDecorationOverline
	default:
		return ir.TextDecorationNone
	}
}

func whiteSpaceValue(kw string) ir.WhiteSpace {
	switch kw {
	case "pre":
		return ir.WhiteSpacePre
	case "nowrap":
		return ir.WhiteSpaceNowrap
	case "pre-wrap":
		return ir.WhiteSpacePreWrap
	case "pre-line":
		return ir.WhiteSpacePreLine
	default:
		return ir.WhiteSpaceNormal
	}
}

func borderStyleValue(kw string) ir.BorderStyle {
	switch kw {
	case "solid":
		return ir.BorderStyleSolid
	case "dashed":
		return ir.BorderStyleDashed
	case "dotted":
		return ir.BorderStyleDotted
	case "double":
		return ir.BorderStyleDouble
	default:
		return ir.BorderStyleNone
	}
}

func displayValue(kw string) ir.Display {
	switch kw {
	case "block":
		return ir.DisplayBlock
	case "inline-block":
		return ir.DisplayInlineBlock
	case "none":
		return ir.DisplayNone
	case "table":
		return ir.DisplayTable
	case "table-row":
		return ir.DisplayTableRow
	case "table-cell":
		return ir.DisplayTableCell
	case "list-item":
		return ir.DisplayListItem
	default:
		return ir.DisplayInline
	}
}

func floatValue(kw string) ir.Float {
	switch kw {
	case "left":
		return ir.FloatLeft
	case "right":
		return ir.FloatRight
	default:
		return ir.FloatNone
	}
}

func clearValue(kw string) ir.Clear {
	switch kw {
	case "left":
		return ir.ClearLeft
	case "right":
		return ir.ClearRight
	case "both":
		return ir.ClearBoth
	default:
		return ir.ClearNone
	}
}

func visibilityValue(kw string) ir.Visibility {
	switch kw {
	case "hidden":
		return ir.VisibilityHidden
	case "collapse":
		return ir.VisibilityCollapse
	default:
		return ir.VisibilityVisible
	}
}

func pageBreakValue(kw string) ir.PageBreak {
	switch kw {
	case "always":
		return ir.PageBreakAlways
	case "avoid":
		return ir.PageBreakAvoid
	case "left":
		return ir.PageBreakLeft
	case "right":
		return ir.PageBreakRight
	default:
		return ir.PageBreakAuto
	}
}

func listStyleTypeValue(kw string) ir.ListStyleType {
	switch kw {
	case "circle":
		return ir.ListStyleCircle
	case "square":
		return ir.ListStyleSquare
	case "decimal":
		return ir.ListStyleDecimal
	case "lower-alpha":
		return ir.ListStyleLowerAlpha
	case "upper-alpha":
		return ir.ListStyleUpperAlpha
	case "lower-roman":
		return ir.ListStyleLowerRoman
	case "upper-roman":
		return ir.ListStyleUpperRoman
	case "none":
		return ir.ListStyleNone
	default:
		return ir.ListStyleDisc
	}
}

func verticalAlignValue(kw string) ir.VerticalAlign {
	switch kw {
	case "sub":
		return ir.VerticalAlignSub
	case "super":
		return ir.VerticalAlignSuper
	case "top":
		return ir.VerticalAlignTop
	case "middle":
		return ir.VerticalAlignMiddle
	case "bottom":
		return ir.VerticalAlignBottom
	case "text-top":
		return ir.VerticalAlignTextTop
	case "text-bottom":
		return ir.VerticalAlignTextBottom
	default:
		return ir.VerticalAlignBaseline
	}
}
