package css

import (
	"strconv"
	"strings"

	"bookforge/ir"
)

// namedColors covers the CSS Level 2 named colors plus the commonly used
// CSS3 extensions. Not exhaustive; an unrecognized keyword fails to parse
// as a color and the declaration is dropped.
var namedColors = map[string]ir.Color{
	"black":   ir.RGBA(0, 0, 0, 255),
	"silver":  ir.RGBA(192, 192, 192, 255),
	"gray":    ir.RGBA(128, 128, 128, 255),
	"grey":    ir.RGBA(128, 128, 128, 255),
	"white":   ir.RGBA(255, 255, 255, 255),
	"maroon":  ir.RGBA(128, 0, 0, 255),
	"red":     ir.RGBA(255, 0, 0, 255),
	"purple":  ir.RGBA(128, 0, 128, 255),
	"fuchsia": ir.RGBA(255, 0, 255, 255),
	"green":   ir.RGBA(0, 128, 0, 255),
	"lime":    ir.RGBA(0, 255, 0, 255),
	"olive":   ir.RGBA(128, 128, 0, 255),
	"yellow":  ir.RGBA(255, 255, 0, 255),
	"navy":    ir.RGBA(0, 0, 128, 255),
	"blue":    ir.RGBA(0, 0, 255, 255),
	"teal":    ir.RGBA(0, 128, 128, 255),
	"aqua":    ir.RGBA(0, 255, 255, 255),
	"orange":  ir.RGBA(255, 165, 0, 255),
	"brown":   ir.RGBA(165, 42, 42, 255),
	"pink":    ir.RGBA(255, 192, 203, 255),
	"transparent": {R: 0, G: 0, B: 0, A: 0, HasValue: true},
}

// parseColor recognizes #rgb, #rrggbb, #rrggbbaa, rgb()/rgba(), and named
// colors. Anything else fails.
func parseColor(v Value) (ir.Color, bool) {
	raw := strings.TrimSpace(v.Raw)
	switch {
	case strings.HasPrefix(raw, "#"):
		return parseHexColor(raw)
	case strings.HasPrefix(strings.ToLower(raw), "rgb"):
		return parseRGBFunc(raw)
	default:
		kw := strings.ToLower(strings.TrimSpace(raw))
		if c, ok := namedColors[kw]; ok {
			return c, true
		}
		return ir.Color{}, false
	}
}

func parseHexColor(s string) (ir.Color, bool) {
	s = strings.TrimPrefix(s, "#")
	expand := func(c byte) byte {
		v, err := strconv.ParseUint(string([]byte{c, c}), 16, 8)
		if err != nil {
			return 0
		}
		return byte(v)
	}
	byteAt := func(hex string) (byte, bool) {
		v, err := strconv.ParseUint(hex, 16, 8)
		if err != nil {
			return 0, false
		}
		return byte(v), true
	}
	switch len(s) {
	case 3:
		r, g, b := expand(s[0]), expand(s[1]), expand(s[2])
		return ir.RGBA(r, g, b, 255), true
	case 4:
		r, g, b, a := expand(s[0]), expand(s[1]), expand(s[2]), expand(s[3])
		return ir.RGBA(r, g, b, a), true
	case 6:
		r, ok1 := byteAt(s[0:2])
		g, ok2 := byteAt(s[2:4])
		b, ok3 := byteAt(s[4:6])
		if !ok1 || !ok2 || !ok3 {
			return ir.Color{}, false
		}
		return ir.RGBA(r, g, b, 255), true
	case 8:
		r, ok1 := byteAt(s[0:2])
		g, ok2 := byteAt(s[2:4])
		b, ok3 := byteAt(s[4:6])
		a, ok4 := byteAt(s[6:8])
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return ir.Color{}, false
		}
		return ir.RGBA(r, g, b, a), true
	default:
		return ir.Color{}, false
	}
}

func parseRGBFunc(s string) (ir.Color, bool) {
	open := strings.IndexByte(s, '(')
	close := strings.LastIndexByte(s, ')')
	if open < 0 || close < 0 || close < open {
		return ir.Color{}, false
	}
	inner := s[open+1 : close]
	inner = strings.ReplaceAll(inner, "/", ",")
	parts := strings.Split(inner, ",")
	if len(parts) < 3 {
		return ir.Color{}, false
	}
	comp := func(p string) byte {
		p = strings.TrimSpace(p)
		if strings.HasSuffix(p, "%") {
			f, _ := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
			return clampByte(f * 255 / 100)
		}
		f, _ := strconv.ParseFloat(p, 64)
		return clampByte(f)
	}
	r, g, b := comp(parts[0]), comp(parts[1]), comp(parts[2])
	a := byte(255)
	if len(parts) >= 4 {
		f, _ := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if f <= 1 {
			a = clampByte(f * 255)
		} else {
			a = clampByte(f)
		}
	}
	return ir.RGBA(r, g, b, a), true
}

func clampByte(f float64) byte {
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return byte(f)
}
