package mobi

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

var (
	mobi6FileposRe  = regexp.MustCompile(`filepos=['"]?(\d*)['"]?`)
	mobi6RecindexRe = regexp.MustCompile(`recindex=['"]?(\d+)['"]?`)
	emptyAnchorRe   = regexp.MustCompile(`<a id="filepos"\s*/>`)
)

// MOBI6Transform performs the two-pass filepos rewrite spec 4.G describes
// for MOBI6 content: first splice an anchor at every distinct filepos
// target, then rewrite every reference to point at it.
type MOBI6Transform struct {
	// AssetPathFor maps a resolved image record index to its archive path,
	// supplied by the caller since the mapping depends on the book's own
	// resource layout.
	AssetPathFor func(recordIndex int) string
}

// Rewrite runs both passes over raw, the fully assembled (single-flow)
// decompressed HTML text.
func (t *MOBI6Transform) Rewrite(raw string) string {
	targets := t.collectTargets(raw)
	raw = t.spliceAnchors(raw, targets)
	raw = t.rewriteReferences(raw)
	raw = emptyAnchorRe.ReplaceAllString(raw, "")
	return raw
}

// collectTargets finds every distinct, well-formed filepos target position.
func (t *MOBI6Transform) collectTargets(raw string) []int {
	seen := make(map[int]bool)
	for _, m := range mobi6FileposRe.FindAllStringSubmatch(raw, -1) {
		if m[1] == "" {
			continue
		}
		pos, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		seen[pos] = true
	}
	targets := make([]int, 0, len(seen))
	for pos := range seen {
		targets = append(targets, pos)
	}
	sort.Ints(targets)
	return targets
}

// spliceAnchors inserts <a id="fileposNNN" /> at every target byte offset,
// processing from the highest offset down so earlier splices don't shift
// the positions of ones not yet made.
func (t *MOBI6Transform) spliceAnchors(raw string, targets []int) string {
	for i := len(targets) - 1; i >= 0; i-- {
		pos := targets[i]
		if pos < 0 || pos > len(raw) {
			continue
		}
		anchor := fmt.Sprintf(`<a id="filepos%d" />`, pos)
		raw = raw[:pos] + anchor + raw[pos:]
	}
	return raw
}

// rewriteReferences rewrites filepos=NNN links to href="#fileposNNN" (empty
// or malformed positions stripped) and recindex="NNNNN" image references to
// their resolved asset path.
func (t *MOBI6Transform) rewriteReferences(raw string) string {
	raw = mobi6FileposRe.ReplaceAllStringFunc(raw, func(m string) string {
		sub := mobi6FileposRe.FindStringSubmatch(m)
		if sub[1] == "" {
			return ""
		}
		pos, err := strconv.Atoi(sub[1])
		if err != nil {
			return ""
		}
		return fmt.Sprintf(`href="#filepos%d"`, pos)
	})

	if t.AssetPathFor != nil {
		raw = mobi6RecindexRe.ReplaceAllStringFunc(raw, func(m string) string {
			sub := mobi6RecindexRe.FindStringSubmatch(m)
			idx, err := strconv.Atoi(sub[1])
			if err != nil {
				return m
			}
			path := t.AssetPathFor(idx)
			if path == "" {
				return m
			}
			return fmt.Sprintf(`src="%s"`, path)
		})
	}
	return raw
}

// NcxHrefMobi6 builds the href the spec names for a MOBI6 NCX entry
// targeting byte offset pos in the single content flow.
func NcxHrefMobi6(pos uint32) string {
	return fmt.Sprintf("content.html#filepos%d", pos)
}

// NcxHrefKF8 builds the href for a KF8 NCX entry targeting fileNumber.
func NcxHrefKF8(fileNumber int) string {
	return fmt.Sprintf("part%04d.html", fileNumber)
}
