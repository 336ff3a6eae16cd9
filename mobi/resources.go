package mobi

import (
	"bytes"

	"github.com/h2non/filetype"
)

// ResourceKind classifies a non-text record by content.
type ResourceKind int

const (
	ResourceUnknown ResourceKind = iota
	ResourceImage
	ResourceFont
	ResourceMetadata // FLIS/FCIS/SRCS/BOUN/FDST/DATP/RESC/CMET/PAGE/CONT/CRES/FONT marker/INDX
)

// metadataMagics lists the fixed 4-byte magics for structural records that
// carry no asset payload and are skipped during resource scanning.
var metadataMagics = [][]byte{
	[]byte("FLIS"), []byte("FCIS"), []byte("SRCS"), []byte("BOUN"),
	[]byte("FDST"), []byte("DATP"), []byte("RESC"), []byte("CMET"),
	[]byte("PAGE"), []byte("CONT"), []byte("CRES"), []byte("INDX"),
}

// DetectResource classifies one non-text record's content: a known image
// magic (JPEG/PNG/GIF/BMP), a font magic (TTF/OTF/WOFF), a known structural
// marker record, or unknown. h2non/filetype backs the image/font
// classification beyond the small fixed-magic list spec.md names, so
// variants (e.g. WOFF2, additional TTF collection signatures) are still
// recognized.
func DetectResource(data []byte) (ResourceKind, string) {
	for _, magic := range metadataMagics {
		if bytes.HasPrefix(data, magic) {
			return ResourceMetadata, ""
		}
	}

	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return ResourceImage, "jpg"
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}):
		return ResourceImage, "png"
	case bytes.HasPrefix(data, []byte("GIF8")):
		return ResourceImage, "gif"
	case bytes.HasPrefix(data, []byte("BM")):
		return ResourceImage, "bmp"
	case bytes.HasPrefix(data, []byte{0x00, 0x01, 0x00, 0x00}):
		return ResourceFont, "ttf"
	case bytes.HasPrefix(data, []byte("OTTO")):
		return ResourceFont, "otf"
	case bytes.HasPrefix(data, []byte("wOFF")):
		return ResourceFont, "woff"
	}

	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown && kind.Extension != "" {
		switch kind.Extension {
		case "jpg", "png", "gif", "bmp", "webp":
			return ResourceImage, kind.Extension
		case "ttf", "otf", "woff", "woff2":
			return ResourceFont, kind.Extension
		}
	}
	return ResourceUnknown, ""
}
