package ir

import (
	"path"
	"strings"
)

// ResolvePaths walks the semantic map and rewrites every src and every
// non-external href through f, which receives the chapter's source path and
// the raw value and returns the rewritten value. Relative references are
// joined to the directory of the chapter's source path and normalized (../
// and ./ resolved, separators forced to /) before f sees them; absolute paths and http(s)/mailto/tel/data URIs pass through
// untouched. Old string ranges are left as unreachable storage in the
// semantic buffer, matching the arena's general no-shift-on-delete policy.
func ResolvePaths(c *Chapter, f func(sourcePath, ref string) string) {
	for id, sa := range c.semantics {
		if sa.HasSrc {
			raw := c.semBuf.slice(sa.Src)
			c.SetSrc(id, rewriteRef(c.SourcePath, raw, f))
		}
		if sa.HasHref {
			raw := c.semBuf.slice(sa.Href)
			if !isExternalRef(raw) {
				c.SetHref(id, rewriteRef(c.SourcePath, raw, f))
			}
		}
	}
}

func rewriteRef(sourcePath, raw string, f func(string, string) string) string {
	if isExternalRef(raw) {
		return raw
	}
	if strings.HasPrefix(raw, "#") {
		return raw
	}
	joined := raw
	if dir := path.Dir(strings.ReplaceAll(sourcePath, "\\", "/")); raw != "" && dir != "." {
		joined = dir + "/" + raw
	}
	norm := normalizeRelPath(joined)
	return f(sourcePath, norm)
}

// isExternalRef reports whether ref is an absolute-by-scheme reference that
// should never be rewritten: http(s), mailto, tel, data, or a leading "/".
func isExternalRef(ref string) bool {
	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"),
		strings.HasPrefix(lower, "mailto:"), strings.HasPrefix(lower, "tel:"),
		strings.HasPrefix(lower, "data:"):
		return true
	case strings.HasPrefix(ref, "/"):
		return true
	default:
		return false
	}
}

// normalizeRelPath collapses ../ and ./ segments and forces forward
// slashes, keeping any #fragment or ?query suffix intact.
func normalizeRelPath(ref string) string {
	base, suffix := splitFragment(ref)
	base = strings.ReplaceAll(base, "\\", "/")
	if base == "" {
		return ref
	}
	cleaned := path.Clean(base)
	if cleaned == "." {
		cleaned = ""
	}
	return cleaned + suffix
}

func splitFragment(ref string) (base, suffix string) {
	if i := strings.IndexByte(ref, '#'); i >= 0 {
		return ref[:i], ref[i:]
	}
	return ref, ""
}
