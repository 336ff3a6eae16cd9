package book

import (
	"fmt"
	"strconv"
	"strings"
)

const kindleBase32Digits = "0123456789ABCDEFGHIJKLMNOPQRSTUV"

// KindleBase32Decode decodes a Kindle position offset digit string (base 32,
// digits 0-9A-V, case-insensitive). It returns ok=false if s is empty or
// contains any character outside that alphabet.
func KindleBase32Decode(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	var v uint64
	for _, r := range strings.ToUpper(s) {
		idx := strings.IndexRune(kindleBase32Digits, r)
		if idx < 0 {
			return 0, false
		}
		v = v*32 + uint64(idx)
	}
	return v, true
}

// KindleBase32Encode encodes v as a Kindle base32 offset digit string
// (uppercase, no leading zeros beyond a single "0" for v == 0).
func KindleBase32Encode(v uint64) string {
	if v == 0 {
		return "0"
	}
	var b []byte
	for v > 0 {
		b = append([]byte{kindleBase32Digits[v%32]}, b...)
		v /= 32
	}
	return string(b)
}

// HrefKind discriminates the parsed shape of a raw href value.
type HrefKind int

const (
	HrefUnknown HrefKind = iota
	HrefExternal
	HrefFragment
	HrefKindlePos
	HrefPath
)

// ParsedHref is the result of parsing a raw href string per spec 3.4: it is
// exactly one of an external URL, a same-chapter fragment, a Kindle
// position address, a path (optionally with a fragment), or unknown.
type ParsedHref struct {
	Kind     HrefKind
	URL      string // HrefExternal
	Fragment string // HrefFragment, or the fragment half of HrefPath
	Path     string // HrefPath
	FID      uint32 // HrefKindlePos: fid hex value
	Offset   uint64 // HrefKindlePos: decoded base32 offset
}

// ParseHref classifies a raw href. Recognized external schemes are
// http(s), mailto, and tel, matching the default href-resolution rule in
// spec 4.E.
func ParseHref(raw string) ParsedHref {
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"),
		strings.HasPrefix(lower, "mailto:"), strings.HasPrefix(lower, "tel:"):
		return ParsedHref{Kind: HrefExternal, URL: raw}
	case strings.HasPrefix(raw, "#"):
		return ParsedHref{Kind: HrefFragment, Fragment: raw[1:]}
	case strings.HasPrefix(lower, "kindle:pos:fid:"):
		if kp, ok := parseKindlePos(raw); ok {
			return kp
		}
		return ParsedHref{Kind: HrefUnknown}
	case raw == "":
		return ParsedHref{Kind: HrefUnknown}
	default:
		path, frag, _ := strings.Cut(raw, "#")
		return ParsedHref{Kind: HrefPath, Path: path, Fragment: frag}
	}
}

// parseKindlePos parses "kindle:pos:fid:XXXX:off:YYYY" where XXXX is
// hexadecimal and YYYY is a Kindle base32 digit string.
func parseKindlePos(raw string) (ParsedHref, bool) {
	const prefix = "kindle:pos:fid:"
	rest := raw[len(prefix):]
	fidStr, offPart, ok := strings.Cut(rest, ":off:")
	if !ok {
		return ParsedHref{}, false
	}
	fid, err := strconv.ParseUint(fidStr, 16, 32)
	if err != nil {
		return ParsedHref{}, false
	}
	offset, ok := KindleBase32Decode(offPart)
	if !ok {
		return ParsedHref{}, false
	}
	return ParsedHref{Kind: HrefKindlePos, FID: uint32(fid), Offset: offset}, true
}

// FormatKindlePos renders a Kindle position href for the given fid/offset,
// the inverse of parseKindlePos, used by the MOBI/KF8 writer.
func FormatKindlePos(fid uint32, offset uint64) string {
	return fmt.Sprintf("kindle:pos:fid:%04X:off:%s", fid, KindleBase32Encode(offset))
}
