// Package book holds the format-agnostic view of an ebook: its metadata,
// spine, table of contents, and the resolved-links graph that ties Link
// nodes across chapters together. It defines the Importer/Exporter
// contract every format backend (epub, mobi, kfx) implements.
package book

// Metadata is the book-level descriptive record every format normalizes
// into on import and every format writer consumes on export.
type Metadata struct {
	Title       string
	Authors     []string
	Language    string
	Identifier  string
	Publisher   string
	Date        string
	Subjects    []string
	Rights      string
	Description string
	// CoverAsset is the asset id (format-specific) of the cover image, or
	// "" if the book has none.
	CoverAsset string
}

// ChapterId identifies one chapter within an importer's spine. Its
// concrete meaning is format-specific (archive path for EPUB/MOBI, an
// internal fragment index for KFX) but is always stable for the lifetime
// of one Importer instance.
type ChapterId string

// AssetId identifies a non-chapter resource (image, font, raw CSS) an
// importer can serve via LoadAsset.
type AssetId string

// SpineEntry is one reading-order entry.
type SpineEntry struct {
	ID           ChapterId
	SizeEstimate int
}

// TocEntry is one entry of the table of contents, recursively nested.
type TocEntry struct {
	Title    string
	Href     string
	Children []TocEntry
}

// Landmarks holds format-provided special-purpose navigation targets (EPUB3
// landmarks nav, or the MOBI/KF8 guide): cover, table of contents, start of
// reading, and so on. The map key is the landmark type string
// (epub:type value, or a synthesized equivalent for formats without one);
// the value is an href resolvable the same way TOC hrefs are.
type Landmarks map[string]string

// FontFaceRef is one embedded-font reference collected by a CSS pipeline
// across every chapter's stylesheets, deduplicated by (family, src).
type FontFaceRef struct {
	Family string
	Src    AssetId
	Style  string
	Weight string
}
