package kfx

import (
	"fmt"
	"io"

	"bookforge/book"
)

// Writer implements book.Exporter, assembling a KFX container from the
// storyline/style/anchor/resource fragments produced by walking each spine
// chapter's IR against storylineBuilder and style.go, plus the generic
// navigation/position-map/metadata fragment builders kept from the
// teacher's fragment subsystem.
type Writer struct {
	GeneratorApp string
	GeneratorPkg string
}

// NewWriter returns a ready-to-use Writer.
func NewWriter() *Writer {
	return &Writer{GeneratorApp: "bookforge", GeneratorPkg: "kfx"}
}

// Export renders every spine chapter into storyline/section content,
// collects styles/anchors/resources discovered along the way, and emits a
// complete KFX v2 container.
func (w *Writer) Export(b *book.Book, out io.WriteSeeker) error {
	spine := b.Spine()
	if len(spine) == 0 {
		return fmt.Errorf("kfx: book has no spine entries")
	}

	assetsByID := make(map[string]book.AssetRef)
	for _, a := range b.Assets() {
		assetsByID[string(a.ID)] = a
	}

	builder := newStorylineBuilder()
	acc := NewContentAccumulator(1)

	sectionNames := make(sectionNameList, 0, len(spine))
	chapterStartSections := make(map[string]bool)
	tocTargets := make(map[book.ChapterId]int)

	c := NewContainer()
	c.ContainerID = "kfx-" + sanitizeContainerID(b.Metadata().Title)
	c.GeneratorApp = w.GeneratorApp
	c.GeneratorPkg = w.GeneratorPkg

	var readingOrderSections []any

	for i, entry := range spine {
		chapter, err := b.LoadChapterCached(entry.ID)
		if err != nil {
			return fmt.Errorf("kfx: load chapter %s: %w", entry.ID, err)
		}

		storyName := fmt.Sprintf("l%d", i)
		sectionName := fmt.Sprintf("c%d", i)

		builder.beginSection(sectionName)
		storyline, section, firstEID := builder.buildChapter(chapter, acc, storyName, sectionName)

		if err := c.Fragments.Add(storyline); err != nil {
			return fmt.Errorf("kfx: add storyline %s: %w", storyName, err)
		}
		if err := c.Fragments.Add(section); err != nil {
			return fmt.Errorf("kfx: add section %s: %w", sectionName, err)
		}

		sectionNames = append(sectionNames, sectionName)
		chapterStartSections[sectionName] = true
		tocTargets[entry.ID] = firstEID
		readingOrderSections = append(readingOrderSections, SymbolByName(sectionName))
	}

	referenced := builder.resolveLinks()

	for _, frag := range builder.styles.Fragments() {
		if err := c.Fragments.Add(frag); err != nil {
			return fmt.Errorf("kfx: add style %s: %w", frag.FIDName, err)
		}
	}

	for _, frag := range buildAnchorFragments(builder.anchors, referenced) {
		if err := c.Fragments.Add(frag); err != nil {
			return fmt.Errorf("kfx: add anchor %s: %w", frag.FIDName, err)
		}
	}

	if err := w.addResources(c, b, builder.assets, assetsByID); err != nil {
		return err
	}

	for name, list := range acc.Finish() {
		if err := c.Fragments.Add(buildContentFragmentByName(name, list)); err != nil {
			return fmt.Errorf("kfx: add content %s: %w", name, err)
		}
	}

	md := b.Metadata()
	if err := c.Fragments.Add(buildBookMetadataFragment(md)); err != nil {
		return fmt.Errorf("kfx: add book_metadata: %w", err)
	}

	documentData := &Fragment{
		FType: SymDocumentData,
		FID:   SymDocumentData,
		Value: []any{NewReadingOrder(SymDefault, readingOrderSections)},
	}
	if err := c.Fragments.Add(documentData); err != nil {
		return fmt.Errorf("kfx: add document_data: %w", err)
	}

	tocEntries := buildTOCEntries(b.TOC(), tocTargets, builder.anchors)
	landmarks := buildLandmarkInfo(b.Landmarks(), tocTargets, builder.anchors)
	startEID := 0
	if len(spine) > 0 {
		startEID = tocTargets[spine[0].ID]
	}
	landmarks.StartEID = startEID
	if err := c.Fragments.Add(BuildNavigation(tocEntries, startEID, nil, 0, landmarks)); err != nil {
		return fmt.Errorf("kfx: add book_navigation: %w", err)
	}

	posItems := CollectPositionItems(c.Fragments, sectionNames, chapterStartSections)
	if err := c.Fragments.Add(BuildPositionMap(sectionNames, builder.sectionEIDs)); err != nil {
		return fmt.Errorf("kfx: add position_map: %w", err)
	}
	allEIDs := CollectAllEIDs(builder.sectionEIDs)
	if err := c.Fragments.Add(BuildPositionIDMap(allEIDs, posItems)); err != nil {
		return fmt.Errorf("kfx: add position_id_map: %w", err)
	}
	if err := c.Fragments.Add(BuildLocationMap(posItems)); err != nil {
		return fmt.Errorf("kfx: add location_map: %w", err)
	}

	if err := c.Fragments.Add(BuildContentFeatures(0)); err != nil {
		return fmt.Errorf("kfx: add content_features: %w", err)
	}
	if err := c.Fragments.Add(BuildResourcePath()); err != nil {
		return fmt.Errorf("kfx: add resource_path: %w", err)
	}
	for _, frag := range BuildAuxiliaryDataFragments(sectionNames) {
		if err := c.Fragments.Add(frag); err != nil {
			return fmt.Errorf("kfx: add auxiliary_data %s: %w", frag.FIDName, err)
		}
	}

	c.FormatCapabilities = BuildFormatCapabilities(DefaultFormatFeatures()).Value

	dependencies := ComputeEntityDependencies(c.Fragments)
	entityMap := BuildContainerEntityMapFragment(c.ContainerID, c.Fragments, dependencies)
	if err := c.Fragments.Add(entityMap); err != nil {
		return fmt.Errorf("kfx: add container_entity_map: %w", err)
	}

	data, err := c.WriteContainer()
	if err != nil {
		return fmt.Errorf("kfx: write container: %w", err)
	}
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("kfx: write output: %w", err)
	}
	return nil
}

// addResources builds a $164 external_resource and $417 raw_media fragment
// pair for every image asset the storyline walk actually referenced.
func (w *Writer) addResources(c *Container, b *book.Book, assets map[string]bool, byID map[string]book.AssetRef) error {
	for src := range assets {
		ref, ok := byID[src]
		if !ok {
			continue
		}
		data, err := b.LoadAsset(ref.ID)
		if err != nil {
			return fmt.Errorf("kfx: load asset %s: %w", src, err)
		}
		name := resourceNameForSrc(src)
		format := formatSymbolForMime(ref.MimeType)

		ext := &Fragment{
			FType:   SymExtResource,
			FIDName: name,
			Value:   NewExternalResource(name, format, ref.MimeType, 0, 0),
		}
		if err := c.Fragments.Add(ext); err != nil {
			return fmt.Errorf("kfx: add external_resource %s: %w", name, err)
		}

		raw := &Fragment{
			FType:   SymRawMedia,
			FIDName: name,
			Value:   RawValue(data),
		}
		if err := c.Fragments.Add(raw); err != nil {
			return fmt.Errorf("kfx: add raw_media %s: %w", name, err)
		}
	}
	return nil
}

func formatSymbolForMime(mime string) KFXSymbol {
	switch mime {
	case "image/jpeg", "image/jpg":
		return SymFormatJPG
	case "image/gif":
		return SymFormatGIF
	default:
		return SymFormatPNG
	}
}

// buildBookMetadataFragment maps book.Metadata into a single $490
// categorised metadata entry; one category keeps every field together since
// KFX readers look fields up by key ($492) regardless of category nesting.
func buildBookMetadataFragment(md book.Metadata) *Fragment {
	var entries []any
	add := func(key, value string) {
		if value != "" {
			entries = append(entries, NewMetadataEntry(key, value))
		}
	}
	add("title", md.Title)
	add("language", md.Language)
	add("issue_date", md.Date)
	add("publisher", md.Publisher)
	add("description", md.Description)
	add("rights", md.Rights)
	add("ASIN", md.Identifier)
	for _, author := range md.Authors {
		add("author", author)
	}
	for _, subject := range md.Subjects {
		add("subject", subject)
	}

	return &Fragment{
		FType: SymBookMetadata,
		FID:   SymBookMetadata,
		Value: []any{NewCategorisedMetadata("kindle_title_metadata", entries)},
	}
}

// buildTOCEntries converts the book-level TOC into kfx.TOCEntry, resolving
// each href to the EID of the chapter (or in-chapter anchor) it targets.
func buildTOCEntries(entries []book.TocEntry, chapterEIDs map[book.ChapterId]int, anchors eidByAnchorID) []*TOCEntry {
	out := make([]*TOCEntry, 0, len(entries))
	for i, e := range entries {
		out = append(out, &TOCEntry{
			ID:           fmt.Sprintf("toc_%d", i),
			Title:        e.Title,
			FirstEID:     resolveHrefEID(e.Href, chapterEIDs, anchors),
			IncludeInTOC: true,
			Children:     buildTOCEntries(e.Children, chapterEIDs, anchors),
		})
	}
	return out
}

func buildLandmarkInfo(marks book.Landmarks, chapterEIDs map[book.ChapterId]int, anchors eidByAnchorID) LandmarkInfo {
	var info LandmarkInfo
	if href, ok := marks["cover"]; ok {
		info.CoverEID = resolveHrefEID(href, chapterEIDs, anchors)
	}
	if href, ok := marks["toc"]; ok {
		info.TOCEID = resolveHrefEID(href, chapterEIDs, anchors)
	}
	return info
}

// resolveHrefEID maps a TOC/landmark href to the EID it targets: an
// in-document fragment resolves through the anchors collected while walking
// chapters, a bare path resolves to that chapter's first content EID. This
// assumes href paths equal ChapterId strings, the same convention
// bookfmt.DefaultResolveHref's PathIndex relies on for EPUB/MOBI.
func resolveHrefEID(href string, chapterEIDs map[book.ChapterId]int, anchors eidByAnchorID) int {
	parsed := book.ParseHref(href)
	switch parsed.Kind {
	case book.HrefFragment:
		return anchors[parsed.Fragment]
	case book.HrefPath:
		if parsed.Fragment != "" {
			if eid, ok := anchors[parsed.Fragment]; ok {
				return eid
			}
		}
		return chapterEIDs[book.ChapterId(parsed.Path)]
	default:
		return 0
	}
}

func sanitizeContainerID(title string) string {
	if title == "" {
		return "book"
	}
	out := make([]rune, 0, len(title))
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
