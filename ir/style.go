package ir

import "fmt"

// LengthUnit distinguishes the members of the Length sum type.
type LengthUnit int

const (
	LengthAuto LengthUnit = iota
	LengthPx
	LengthEm
	LengthRem
	LengthPercent
)

// Length is a CSS numeric value: Auto carries no magnitude, the others carry
// Value in their named unit.
type Length struct {
	Unit  LengthUnit
	Value float64
}

// Auto is the zero-magnitude Auto length.
var Auto = Length{Unit: LengthAuto}

func Px(v float64) Length      { return Length{Unit: LengthPx, Value: v} }
func Em(v float64) Length      { return Length{Unit: LengthEm, Value: v} }
func Rem(v float64) Length     { return Length{Unit: LengthRem, Value: v} }
func Percent(v float64) Length { return Length{Unit: LengthPercent, Value: v} }

func (l Length) String() string {
	switch l.Unit {
	case LengthAuto:
		return "auto"
	case LengthPx:
		return fmt.Sprintf("%gpx", l.Value)
	case LengthEm:
		return fmt.Sprintf("%gem", l.Value)
	case LengthRem:
		return fmt.Sprintf("%grem", l.Value)
	case LengthPercent:
		return fmt.Sprintf("%g%%", l.Value)
	default:
		return "auto"
	}
}

// Color is an rgba color in u8x4 components. HasValue distinguishes "not
// set" (transparent-black zero value) from an explicit transparent color;
// the default style always has HasValue == false for color properties.
type Color struct {
	R, G, B, A uint8
	HasValue   bool
}

func RGBA(r, g, b, a uint8) Color { return Color{R: r, G: g, B: b, A: a, HasValue: true} }

func (c Color) String() string {
	if !c.HasValue {
		return ""
	}
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("rgba(%d,%d,%d,%.3g)", c.R, c.G, c.B, float64(c.A)/255)
}

// Enumerated style properties. Zero value of each is the default.
type (
	FontStyle      int
	FontVariant    int
	TextAlign      int
	TextTransform  int
	WhiteSpace     int
	TextDecoration int
	BorderStyle    int
	Display        int
	Float          int
	Clear          int
	Visibility     int
	PageBreak      int
	ListStyleType  int
	ListStylePos   int
	VerticalAlign  int
	BoxSizing      int
)

const (
	FontStyleNormal FontStyle = iota
	FontStyleItalic
	FontStyleOblique
)

const (
	FontVariantNormal FontVariant = iota
	FontVariantSmallCaps
)

const (
	TextAlignStart TextAlign = iota
	TextAlignLeft
	TextAlignRight
	TextAlignCenter
	TextAlignJustify
)

const (
	TextTransformNone TextTransform = iota
	TextTransformCapitalize
	TextTransformUppercase
	TextTransformLowercase
)

const (
	WhiteSpaceNormal WhiteSpace = iota
	WhiteSpacePre
	WhiteSpaceNowrap
	WhiteSpacePreWrap
	WhiteSpacePreLine
)

const (
	TextDecorationNone TextDecoration = iota
	TextDecorationUnderline
	TextDecorationLineThrough
	TextDecorationOverline
)

const (
	BorderStyleNone BorderStyle = iota
	BorderStyleSolid
	BorderStyleDashed
	BorderStyleDotted
	BorderStyleDouble
)

const (
	DisplayInline Display = iota
	DisplayBlock
	DisplayInlineBlock
	DisplayNone
	DisplayTable
	DisplayTableRow
	DisplayTableCell
	DisplayListItem
)

const (
	FloatNone Float = iota
	FloatLeft
	FloatRight
)

const (
	ClearNone Clear = iota
	ClearLeft
	ClearRight
	ClearBoth
)

const (
	VisibilityVisible Visibility = iota
	VisibilityHidden
	VisibilityCollapse
)

const (
	PageBreakAuto PageBreak = iota
	PageBreakAlways
	PageBreakAvoid
	PageBreakLeft
	PageBreakRight
)

const (
	ListStyleDisc ListStyleType = iota
	ListStyleCircle
	ListStyleSquare
	ListStyleDecimal
	ListStyleLowerAlpha
	ListStyleUpperAlpha
	ListStyleLowerRoman
	ListStyleUpperRoman
	ListStyleNone
)

const (
	ListStylePosOutside ListStylePos = iota
	ListStylePosInside
)

const (
	VerticalAlignBaseline VerticalAlign = iota
	VerticalAlignSub
	VerticalAlignSuper
	VerticalAlignTop
	VerticalAlignMiddle
	VerticalAlignBottom
	VerticalAlignTextTop
	VerticalAlignTextBottom
)

const (
	BoxSizingContentBox BoxSizing = iota
	BoxSizingBorderBox
)

// Sides holds a four-sided box-model quantity: top, right, bottom, left.
type Sides struct {
	Top, Right, Bottom, Left Length
}

// SidesColor holds a four-sided color quantity, for border-color.
type SidesColor struct {
	Top, Right, Bottom, Left Color
}

// SidesBorderStyle holds a four-sided border-style quantity.
type SidesBorderStyle struct {
	Top, Right, Bottom, Left BorderStyle
}

// Corners holds four corner radii, for border-radius.
type Corners struct {
	TopLeft, TopRight, BottomRight, BottomLeft Length
}

// ComputedStyle is the flat, fully-resolved style of a node. The zero value
// is the default style (StyleId 0): no explicit color/background, normal
// text, zero box model, inline display, visible, auto everything.
type ComputedStyle struct {
	FontFamily  string
	FontSize    Length
	FontWeight  int // 100-900, CSS numeric scale; 0 means "not set" (inherits/defaults to 400)
	FontStyle   FontStyle
	FontVariant FontVariant

	Color      Color
	Background Color

	TextAlign      TextAlign
	TextIndent     Length
	TextTransform  TextTransform
	Hyphens        bool
	WhiteSpace     WhiteSpace
	Decoration     TextDecoration
	LineHeight     Length
	LetterSpacing  Length
	WordSpacing    Length

	Margin        Sides
	Padding       Sides
	BorderWidth   Sides
	BorderStyle   SidesBorderStyle
	BorderColor   SidesColor
	BorderRadius  Corners
	Width, Height Length
	MinWidth      Length
	MinHeight     Length
	MaxWidth      Length
	MaxHeight     Length
	BoxSizing     BoxSizing

	Display    Display
	Float      Float
	Clear      Clear
	Visibility Visibility

	PageBreakBefore PageBreak
	PageBreakAfter  PageBreak
	PageBreakInside PageBreak

	ListStyleType ListStyleType
	ListStylePos  ListStylePos

	VerticalAlign VerticalAlign
	Language      string
}

// InheritableProperties returns a style that inherits only the CSS
// properties defined as inheritable (font, color, text-*, line-height,
// letter/word-spacing, list-*, visibility, language) from parent, with every
// other property reset to the ComputedStyle zero value. Used to seed the
// cascade's starting point for a child element.
func InheritableProperties(parent ComputedStyle) ComputedStyle {
	var out ComputedStyle
	out.FontFamily = parent.FontFamily
	out.FontSize = parent.FontSize
	out.FontWeight = parent.FontWeight
	out.FontStyle = parent.FontStyle
	out.FontVariant = parent.FontVariant
	out.Color = parent.Color
	out.TextAlign = parent.TextAlign
	out.TextIndent = parent.TextIndent
	out.TextTransform = parent.TextTransform
	out.Hyphens = parent.Hyphens
	out.WhiteSpace = parent.WhiteSpace
	out.LineHeight = parent.LineHeight
	out.LetterSpacing = parent.LetterSpacing
	out.WordSpacing = parent.WordSpacing
	out.ListStyleType = parent.ListStyleType
	out.ListStylePos = parent.ListStylePos
	out.Visibility = parent.Visibility
	out.Language = parent.Language
	return out
}
