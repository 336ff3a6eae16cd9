package mobi

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"bookforge/book"
	"bookforge/bookfmt"
	"bookforge/byteio"
	"bookforge/ir"
)

// chapterRecord is one chapter the reader has sliced out of the assembled
// HTML: its archive-style path (also its ChapterId) and already-transformed
// HTML bytes.
type chapterRecord struct {
	path string
	html []byte
}

// Importer reads a PalmDB-framed MOBI6 or KF8/AZW3 file and implements
// book.Importer over it. Construction eagerly parses framing, headers, and
// decompresses text into per-chapter HTML; IR compilation stays lazy,
// performed by LoadChapter through bookfmt's default recipe, matching how
// the EPUB and KFX backends defer IR construction to first access.
type Importer struct {
	log *zap.Logger

	metadata book.Metadata
	isKF8    bool

	chapters    []chapterRecord
	chapterByID map[book.ChapterId]int
	assets      map[book.AssetId][]byte
	assetRefs   []book.AssetRef
	stylesheets map[string][]byte // path -> raw CSS, served as assets too

	toc       []book.TocEntry
	landmarks book.Landmarks

	paths    bookfmt.PathIndex
	indexed  map[book.ChapterId]*ir.Chapter
}

// Open parses src as a MOBI/AZW3 container and returns a ready-to-use
// Importer.
func Open(src byteio.Source, log *zap.Logger) (*Importer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("mobi")

	pdb, err := ParsePalmDB(src)
	if err != nil {
		return nil, err
	}
	if pdb.NumRecords() == 0 {
		return nil, fmt.Errorf("mobi: database has no records")
	}

	record0, err := pdb.Record(0)
	if err != nil {
		return nil, fmt.Errorf("mobi: read record 0: %w", err)
	}
	palmHdr, err := ParsePalmDOCHeader(record0)
	if err != nil {
		return nil, err
	}
	mobiHdr, err := ParseMobiHeader(record0)
	if err != nil {
		return nil, err
	}

	r := &Importer{
		log:         log,
		isKF8:       mobiHdr.IsKF8(),
		chapterByID: make(map[book.ChapterId]int),
		assets:      make(map[book.AssetId][]byte),
		stylesheets: make(map[string][]byte),
		paths:       make(bookfmt.PathIndex),
	}

	coverRec, thumbRec := -1, -1
	if mobiHdr.HasEXTH() {
		exthOff := 16 + int(mobiHdr.HeaderLength)
		if exthOff < len(record0) {
			records, err := ParseEXTH(record0[exthOff:], mobiHdr.TextEncoding)
			if err != nil {
				log.Warn("failed to parse EXTH block", zap.Error(err))
			} else {
				haveCover, haveThumb := false, false
				r.metadata, coverRec, thumbRec, haveCover, haveThumb = MetadataFromEXTH(records, mobiHdr.TextEncoding, mobiHdr.FullName(record0))
				if !haveCover {
					coverRec = -1
				}
				if !haveThumb {
					thumbRec = -1
				}
			}
		}
	}
	if r.metadata.Title == "" {
		r.metadata.Title = mobiHdr.FullName(record0)
	}

	raw, err := decompressText(pdb, palmHdr, mobiHdr)
	if err != nil {
		return nil, fmt.Errorf("mobi: decompress text: %w", err)
	}

	if r.isKF8 {
		if err := r.buildKF8(pdb, mobiHdr, raw); err != nil {
			return nil, fmt.Errorf("mobi: build KF8 structure: %w", err)
		}
	} else {
		r.buildMOBI6(raw)
	}

	if err := r.indexResources(pdb, mobiHdr, coverRec, thumbRec); err != nil {
		return nil, fmt.Errorf("mobi: index resources: %w", err)
	}

	for i, c := range r.chapters {
		r.chapterByID[book.ChapterId(c.path)] = i
		r.paths[c.path] = book.ChapterId(c.path)
	}

	r.landmarks = book.Landmarks{}
	if len(r.chapters) > 0 {
		r.landmarks["bodymatter"] = r.chapters[0].path
	}
	if r.metadata.CoverAsset != "" {
		r.landmarks["cover"] = string(r.metadata.CoverAsset)
	}

	return r, nil
}

// decompressText decompresses and concatenates every text record (after
// stripping trailing multibyte sections), choosing the scheme the PalmDOC
// header names.
func decompressText(pdb *PalmDB, palmHdr PalmDOCHeader, mobiHdr MobiHeader) ([]byte, error) {
	var huff *HuffCDIC
	if palmHdr.Compression == CompressionHuffCDIC {
		var err error
		huff, err = loadHuffCDIC(pdb, mobiHdr)
		if err != nil {
			return nil, err
		}
	}

	var out []byte
	for i := 1; i <= int(palmHdr.TextRecords); i++ {
		rec, err := pdb.Record(i)
		if err != nil {
			return nil, fmt.Errorf("read text record %d: %w", i, err)
		}
		rec = StripTrailingEntries(rec, mobiHdr.ExtraFlags)

		var decoded []byte
		switch palmHdr.Compression {
		case CompressionNone:
			decoded = rec
		case CompressionPalmDOC:
			decoded, err = DecompressPalmDOC(rec)
		case CompressionHuffCDIC:
			decoded, err = huff.Decode(rec)
		default:
			return nil, fmt.Errorf("unsupported compression scheme %d", palmHdr.Compression)
		}
		if err != nil {
			return nil, fmt.Errorf("decode text record %d: %w", i, err)
		}
		out = append(out, decoded...)
	}
	return out, nil
}

func loadHuffCDIC(pdb *PalmDB, mobiHdr MobiHeader) (*HuffCDIC, error) {
	huffIdx := int(mobiHdr.HuffmanRecIndex)
	huffCount := int(mobiHdr.HuffmanRecCount)
	if huffCount < 2 {
		return nil, fmt.Errorf("HUFF-CDIC requires at least a HUFF record and one CDIC record")
	}
	huffRec, err := pdb.Record(huffIdx)
	if err != nil {
		return nil, fmt.Errorf("read HUFF record: %w", err)
	}
	huffTbl, err := ParseHuffRecord(huffRec)
	if err != nil {
		return nil, err
	}

	cdics := make([]cdicTable, 0, huffCount-1)
	for i := 1; i < huffCount; i++ {
		rec, err := pdb.Record(huffIdx + i)
		if err != nil {
			return nil, fmt.Errorf("read CDIC record %d: %w", i, err)
		}
		t, err := ParseCDICRecord(rec)
		if err != nil {
			return nil, err
		}
		cdics = append(cdics, t)
	}
	return NewHuffCDIC(huffTbl, cdics)
}

// buildMOBI6 splits the single decompressed flow into one chapter after
// running the MOBI6 link-rewrite transform.
func (r *Importer) buildMOBI6(raw []byte) {
	transform := &MOBI6Transform{AssetPathFor: r.assetPathForRecindex}
	html := transform.Rewrite(string(raw))
	r.chapters = append(r.chapters, chapterRecord{path: "content.html", html: []byte(html)})
}

// assetPathForRecindex resolves a MOBI6 recindex reference to an asset
// path; populated lazily since resource indexing runs after flow assembly.
func (r *Importer) assetPathForRecindex(recordIndex int) string {
	for _, ref := range r.assetRefs {
		if ref.ID == book.AssetId(fmt.Sprintf("image-%d", recordIndex)) {
			return "images/" + string(ref.ID)
		}
	}
	return ""
}

// buildKF8 assembles the KF8 flow list, decodes the skeleton/DIV/NCX
// indices, slices the primary flow into per-skeleton-entry chapters, and
// rewrites kindle: URLs in each.
func (r *Importer) buildKF8(pdb *PalmDB, mobiHdr MobiHeader, raw []byte) error {
	var flows []Flow
	if mobiHdr.FDSTRecord != 0 && mobiHdr.FDSTRecord != 0xFFFFFFFF {
		fdstRec, err := pdb.Record(int(mobiHdr.FDSTRecord))
		if err == nil {
			if f, err := ParseFDST(fdstRec); err == nil {
				flows = f
			}
		}
	}
	if len(flows) == 0 {
		flows = SingleFlow(len(raw))
	}
	primary := raw[flows[0].Start:flows[0].End]

	for i := 1; i < len(flows); i++ {
		css := raw[flows[i].Start:flows[i].End]
		path := fmt.Sprintf("styles/style%04d.css", i)
		r.stylesheets[path] = css
	}

	var skeletons []SkeletonEntry
	var divs []DivEntry
	if mobiHdr.SkeletonRecord != 0 {
		if entries, err := r.decodeIndexRecords(pdb, int(mobiHdr.SkeletonRecord), int(mobiHdr.SkeletonCount)); err == nil {
			skeletons = DecodeSkeletonIndex(entries)
		}
	}
	if mobiHdr.FragmentRecord != 0 {
		if entries, err := r.decodeIndexRecords(pdb, int(mobiHdr.FragmentRecord), int(mobiHdr.FragmentCount)); err == nil {
			divs = DecodeDivIndex(entries)
		}
	}

	transform := NewKF8Transform(string(primary), divs)

	if len(skeletons) == 0 {
		r.chapters = append(r.chapters, chapterRecord{path: "part0000.html", html: []byte(transform.Rewrite(string(primary)))})
		return nil
	}

	sort.Slice(skeletons, func(i, j int) bool { return skeletons[i].InsertPos < skeletons[j].InsertPos })
	for i, sk := range skeletons {
		start := sk.InsertPos
		end := start + sk.Length
		if start < 0 || end > len(primary) || start > end {
			continue
		}
		chunk := transform.Rewrite(string(primary[start:end]))
		r.chapters = append(r.chapters, chapterRecord{
			path: fmt.Sprintf("part%04d.html", i),
			html: []byte(chunk),
		})
	}

	if len(r.chapters) == 0 {
		r.chapters = append(r.chapters, chapterRecord{path: "part0000.html", html: []byte(transform.Rewrite(string(primary)))})
	}

	if mobiHdr.NCXIndex != 0 && mobiHdr.NCXIndex != 0xFFFFFFFF {
		if entries, err := r.decodeIndexRecords(pdb, int(mobiHdr.NCXIndex), 1); err == nil {
			ncx := DecodeNcxIndex(entries, func(off uint32) string { return NcxHrefKF8(fileNumberForOffset(divs, off)) })
			r.toc = tocFromNcx(ncx)
		}
	}
	return nil
}

// decodeIndexRecords parses a run of INDX records starting at firstRecord,
// returning every entry across the whole run. The first record carries the
// TAGX control table every subsequent record in the run shares.
func (r *Importer) decodeIndexRecords(pdb *PalmDB, firstRecord, count int) ([]IndexEntry, error) {
	if count <= 0 {
		count = 1
	}
	var tagTable []tagxEntry
	controlBytes := 1
	var entries []IndexEntry

	for i := 0; i < count; i++ {
		rec, err := pdb.Record(firstRecord + i)
		if err != nil {
			return entries, err
		}
		if len(rec) < 12 {
			continue
		}
		if tagTable == nil {
			// TAGX immediately follows the 192-byte INDX header on the
			// first record of the run.
			if len(rec) > 192 {
				if t, cb, err := parseTAGX(rec[192:]); err == nil {
					tagTable, controlBytes = t, cb
				}
			}
		}
		if tagTable == nil {
			continue
		}
		es, err := ParseINDX(rec, tagTable, controlBytes)
		if err != nil {
			continue
		}
		entries = append(entries, es...)
	}
	return entries, nil
}

func fileNumberForOffset(divs []DivEntry, off uint32) int {
	for _, d := range divs {
		if uint32(d.InsertPos) == off {
			return d.FileNumber
		}
	}
	return 0
}

// tocFromNcx reassembles the flat NCX entry list into a TocEntry tree using
// each entry's Parent index, falling back to a flat list when no parent
// relationships are present.
func tocFromNcx(entries []NcxEntry) []book.TocEntry {
	hasParents := false
	for _, e := range entries {
		if e.Parent >= 0 {
			hasParents = true
			break
		}
	}
	if !hasParents {
		out := make([]book.TocEntry, len(entries))
		for i, e := range entries {
			out[i] = book.TocEntry{Title: e.Text, Href: e.Href}
		}
		return out
	}

	nodes := make([]book.TocEntry, len(entries))
	for i, e := range entries {
		nodes[i] = book.TocEntry{Title: e.Text, Href: e.Href}
	}
	var roots []book.TocEntry
	for i, e := range entries {
		if e.Parent < 0 || e.Parent >= len(nodes) || e.Parent == i {
			roots = append(roots, nodes[i])
			continue
		}
		nodes[e.Parent].Children = append(nodes[e.Parent].Children, nodes[i])
	}
	return roots
}

// indexResources scans every record after the first-image index, assigning
// each a path under images/ or fonts/ per its detected kind, and registers
// the EXTH-declared cover/thumbnail records as the book's cover asset.
func (r *Importer) indexResources(pdb *PalmDB, mobiHdr MobiHeader, coverRec, thumbRec int) error {
	start := int(mobiHdr.FirstImageRec)
	if start <= 0 || start >= pdb.NumRecords() {
		return nil
	}
	for i := start; i < pdb.NumRecords(); i++ {
		data, err := pdb.Record(i)
		if err != nil {
			continue
		}
		kind, ext := DetectResource(data)
		switch kind {
		case ResourceImage:
			id := book.AssetId(fmt.Sprintf("image-%d", i-start))
			r.assets[id] = data
			r.assetRefs = append(r.assetRefs, book.AssetRef{ID: id, MimeType: "image/" + ext})
			if coverRec >= 0 && i == start+coverRec {
				r.metadata.CoverAsset = string(id)
			}
		case ResourceFont:
			id := book.AssetId(fmt.Sprintf("font-%d.%s", i-start, ext))
			r.assets[id] = data
			r.assetRefs = append(r.assetRefs, book.AssetRef{ID: id, MimeType: "font/" + ext})
		}
	}
	return nil
}

// --- book.Importer ---

func (r *Importer) Metadata() book.Metadata       { return r.metadata }
func (r *Importer) Landmarks() book.Landmarks     { return r.landmarks }
func (r *Importer) FontFaces() []book.FontFaceRef { return nil }
func (r *Importer) Assets() []book.AssetRef       { return r.assetRefs }

func (r *Importer) Spine() []book.SpineEntry {
	out := make([]book.SpineEntry, len(r.chapters))
	for i, c := range r.chapters {
		out[i] = book.SpineEntry{ID: book.ChapterId(c.path), SizeEstimate: len(c.html)}
	}
	return out
}

func (r *Importer) TOC() []book.TocEntry {
	if len(r.toc) > 0 {
		return r.toc
	}
	return tocFromSpine(r.chapters)
}

func tocFromSpine(chapters []chapterRecord) []book.TocEntry {
	out := make([]book.TocEntry, len(chapters))
	for i, c := range chapters {
		out[i] = book.TocEntry{Title: c.path, Href: c.path}
	}
	return out
}

func (r *Importer) LoadAsset(id book.AssetId) ([]byte, error) {
	if data, ok := r.assets[id]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("mobi: unknown asset %q", id)
}

func (r *Importer) SourceID(chapter book.ChapterId) string { return string(chapter) }

func (r *Importer) LoadRaw(chapter book.ChapterId) ([]byte, error) {
	idx, ok := r.chapterByID[chapter]
	if !ok {
		return nil, fmt.Errorf("mobi: unknown chapter %q", chapter)
	}
	return r.chapters[idx].html, nil
}

func (r *Importer) LoadChapter(chapter book.ChapterId) (*ir.Chapter, error) {
	raw, err := r.LoadRaw(chapter)
	if err != nil {
		return nil, err
	}
	fetch := func(sourcePath, relPath string) ([]byte, error) {
		if css, ok := r.stylesheets[relPath]; ok {
			return css, nil
		}
		return nil, fmt.Errorf("mobi: unknown stylesheet %q", relPath)
	}
	return bookfmt.DefaultLoadChapter(raw, string(chapter), fetch, nil)
}

func (r *Importer) RequiresNormalizedExport() bool { return false }

// IndexAnchors keeps the already-compiled chapters around so ResolveHref can
// consult them; the kindle:pos rewrite already turned links into
// path[#id] hrefs pointing at real attribute ids from the source content, so
// no extra anchor index beyond the loaded chapters is needed.
func (r *Importer) IndexAnchors(chapters map[book.ChapterId]*ir.Chapter) error {
	r.indexed = chapters
	return nil
}

func (r *Importer) ResolveHref(fromChapter book.ChapterId, rawHref string) (book.AnchorTarget, bool) {
	return bookfmt.DefaultResolveHref(r.indexed, r.paths, nil, fromChapter, rawHref)
}
