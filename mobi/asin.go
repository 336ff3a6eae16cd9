package mobi

import "strings"

// NormalizeASIN trims whitespace and a "urn:asin:" scheme prefix some EXTH
// identifier records carry, and upper-cases the result to match Amazon's
// canonical ASIN form (a leading "B0" followed by eight alphanumerics, or a
// 10-digit ISBN-10 reused as an ASIN). Anything that doesn't look like an
// ASIN is returned unchanged so ISBN/URI identifiers pass through untouched.
func NormalizeASIN(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "urn:asin:")
	s = strings.TrimPrefix(s, "URN:ASIN:")
	s = strings.ToUpper(s)
	if len(s) != 10 {
		return strings.TrimSpace(raw)
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9') && !(r >= 'A' && r <= 'Z') {
			return strings.TrimSpace(raw)
		}
	}
	return s
}
