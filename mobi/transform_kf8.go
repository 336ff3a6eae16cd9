package mobi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	kindleFlowRe  = regexp.MustCompile(`kindle:flow:([0-9A-Fa-f]+)\?mime=[^"'\s)]*`)
	kindlePosRe   = regexp.MustCompile(`kindle:pos:fid:([0-9A-Za-z]+):off:([0-9A-Za-z]+)`)
	kindleEmbedRe = regexp.MustCompile(`kindle:embed:([0-9A-Fa-f]+)(?:\?mime=image/([a-zA-Z0-9.+-]+))?`)
	amznAttrRe    = regexp.MustCompile(`\s+(?:aid|data-[Aa]mzn[-\w]*)="[^"]*"`)
)

// KF8Transform rewrites kindle:-scheme URLs in a KF8 HTML flow into archive
// paths, using the DIV (fragment) index to resolve element ids to
// (file_number, insert_pos) and scanning the raw flow text near that point
// for an anchor attribute, per spec 4.G.
type KF8Transform struct {
	rawFlow string
	divs    []DivEntry
}

// NewKF8Transform builds a transform bound to the raw HTML flow text (used
// for nearby-anchor scanning) and the document's DIV index.
func NewKF8Transform(rawFlow string, divs []DivEntry) *KF8Transform {
	return &KF8Transform{rawFlow: rawFlow, divs: divs}
}

// Rewrite applies every kindle: URL rewrite, strips Amazon-only attributes,
// and ensures every <img> carries an alt attribute.
func (t *KF8Transform) Rewrite(html string) string {
	html = kindleFlowRe.ReplaceAllStringFunc(html, func(m string) string {
		sub := kindleFlowRe.FindStringSubmatch(m)
		n, err := strconv.ParseUint(sub[1], 16, 32)
		if err != nil {
			return m
		}
		return fmt.Sprintf("styles/style%04d.css", n)
	})

	html = kindleEmbedRe.ReplaceAllStringFunc(html, func(m string) string {
		sub := kindleEmbedRe.FindStringSubmatch(m)
		n, err := strconv.ParseUint(sub[1], 16, 32)
		if err != nil {
			return m
		}
		ext := sub[2]
		if ext == "" {
			ext = "jpg"
		}
		return fmt.Sprintf("images/image_%05d.%s", n, ext)
	})

	html = kindlePosRe.ReplaceAllStringFunc(html, func(m string) string {
		sub := kindlePosRe.FindStringSubmatch(m)
		fid, err1 := strconv.ParseUint(sub[1], 16, 32)
		off, err2 := strconv.ParseUint(sub[2], 16, 64)
		if err1 != nil || err2 != nil {
			return m
		}
		return t.resolvePos(uint32(fid), off)
	})

	html = amznAttrRe.ReplaceAllString(html, "")
	html = ensureImgAlt(html)
	return html
}

// resolvePos looks up element fid in the DIV index, adds off to its
// insertion position, and scans the raw flow near that offset for an id,
// name, or aid attribute, stopping at a <body> boundary.
func (t *KF8Transform) resolvePos(fid uint32, off uint64) string {
	if int(fid) >= len(t.divs) {
		return fmt.Sprintf("part%04d.html", fid)
	}
	div := t.divs[int(fid)]
	target := div.InsertPos + int(off)
	href := fmt.Sprintf("part%04d.html", div.FileNumber)

	anchor := t.scanForAnchor(target)
	if anchor != "" {
		href += "#" + anchor
	}
	return href
}

// scanForAnchor searches the raw flow text around target (from up to 2048
// bytes before it to 64 bytes after it) and returns the last aid= value in
// that window, else the last id=, else the last name=, never crossing a
// <body> tag boundary in either direction.
func (t *KF8Transform) scanForAnchor(target int) string {
	if target < 0 || target > len(t.rawFlow) {
		return ""
	}
	windowStart := target - 2048
	if bodyIdx := strings.LastIndex(t.rawFlow[:min(target, len(t.rawFlow))], "<body"); bodyIdx >= 0 && bodyIdx > windowStart {
		windowStart = bodyIdx
	}
	if windowStart < 0 {
		windowStart = 0
	}
	windowEnd := min(target+64, len(t.rawFlow))
	if bodyIdx := strings.Index(t.rawFlow[target:windowEnd], "<body"); bodyIdx >= 0 {
		windowEnd = target + bodyIdx
	}
	window := t.rawFlow[windowStart:windowEnd]

	for _, attr := range []string{"aid", "id", "name"} {
		re := regexp.MustCompile(attr + `="([^"]+)"`)
		matches := re.FindAllStringSubmatch(window, -1)
		if len(matches) == 0 {
			continue
		}
		value := matches[len(matches)-1][1]
		if attr == "aid" {
			return "aid-" + value
		}
		return value
	}
	return ""
}

var imgTagRe = regexp.MustCompile(`<img\b[^>]*>`)
var altAttrRe = regexp.MustCompile(`\balt\s*=`)

// ensureImgAlt adds an empty alt attribute to any <img> tag missing one.
func ensureImgAlt(html string) string {
	return imgTagRe.ReplaceAllStringFunc(html, func(tag string) string {
		if altAttrRe.MatchString(tag) {
			return tag
		}
		return strings.Replace(tag, "<img", `<img alt=""`, 1)
	})
}
