package kfx

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"bookforge/book"
	"bookforge/byteio"
	"bookforge/ir"
)

// Importer reads a KFX container and implements book.Importer over it,
// inverting storylineBuilder's $259/$260 content entries, style.go's $157
// style properties, and frag_navigation.go's $389 navigation tree back into
// IR chapters and book-level metadata.
type Importer struct {
	log *zap.Logger
	c   *Container

	metadata  book.Metadata
	sections  []string // $538 reading-order section names, in spine order
	toc       []book.TocEntry
	landmarks book.Landmarks
	assetRefs []book.AssetRef
	assets    map[book.AssetId][]byte

	styles        map[string]map[string]any // $157 fragment name -> decoded properties
	anchorEID     map[string]int            // $266 anchor name -> target EID
	anchorNameByE map[int]string            // inverse of anchorEID
	content       map[string][]string       // $145 content fragment name -> paragraph chunks

	chapterEIDs map[book.ChapterId]map[int]ir.NodeId // populated as LoadChapter builds each chapter
	eidNode     map[int]book.GlobalNodeId            // populated by IndexAnchors
}

// Open parses the full KFX container read from src and indexes every
// fragment an Importer method needs, the way mobi.Open reads its source into
// memory once before building chapter/asset indexes.
func Open(src byteio.Source, log *zap.Logger) (*Importer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("kfx")

	data, err := src.ReadAt(0, int(src.Len()))
	if err != nil {
		return nil, fmt.Errorf("kfx: read container: %w", err)
	}

	c, err := ReadContainer(data)
	if err != nil {
		return nil, fmt.Errorf("kfx: parse container: %w", err)
	}

	r := &Importer{
		log:           log,
		c:             c,
		assets:        make(map[book.AssetId][]byte),
		styles:        make(map[string]map[string]any),
		anchorEID:     make(map[string]int),
		anchorNameByE: make(map[int]string),
		content:       make(map[string][]string),
		chapterEIDs:   make(map[book.ChapterId]map[int]ir.NodeId),
	}

	r.indexStyles()
	r.indexAnchors()
	r.indexContent()
	r.indexAssets()
	r.indexMetadata()
	r.indexSpine()
	r.indexNavigation()

	return r, nil
}

func (r *Importer) indexStyles() {
	for _, f := range r.c.Fragments.GetByType(SymStyle) {
		if props, ok := f.Value.(map[string]any); ok {
			r.styles[f.FIDName] = props
		}
	}
}

func (r *Importer) indexAnchors() {
	for _, f := range r.c.Fragments.GetByType(SymAnchor) {
		m, ok := f.Value.(map[string]any)
		if !ok {
			continue
		}
		pos, ok := mapStruct(m, fieldKey(SymPosition))
		if !ok {
			continue
		}
		eid, ok := mapInt(pos, fieldKey(SymUniqueID))
		if !ok {
			continue
		}
		name := f.FIDName
		if name == "" {
			name, _ = mapString(m, fieldKey(SymAnchorName))
		}
		if name == "" {
			continue
		}
		r.anchorEID[name] = int(eid)
		r.anchorNameByE[int(eid)] = name
	}
}

func (r *Importer) indexContent() {
	for _, f := range r.c.Fragments.GetByType(SymContent) {
		m, ok := f.Value.(map[string]any)
		if !ok {
			continue
		}
		list, _ := m[fieldKey(SymContentList)].([]any)
		texts := make([]string, len(list))
		for i, v := range list {
			texts[i], _ = v.(string)
		}
		name := f.FIDName
		if name == "" {
			name, _ = m["name"].(string)
		}
		r.content[name] = texts
	}
}

// indexAssets pairs every $164 external_resource fragment with the $417
// raw_media fragment addResources gave the same FIDName.
func (r *Importer) indexAssets() {
	rawByName := make(map[string][]byte)
	for _, f := range r.c.Fragments.GetByType(SymRawMedia) {
		if raw, ok := f.Value.(RawValue); ok {
			rawByName[f.FIDName] = []byte(raw)
		}
	}
	for _, f := range r.c.Fragments.GetByType(SymExtResource) {
		m, ok := f.Value.(map[string]any)
		if !ok {
			continue
		}
		data, ok := rawByName[f.FIDName]
		if !ok {
			continue
		}
		mime, _ := mapString(m, fieldKey(SymMIME))
		id := book.AssetId(f.FIDName)
		r.assets[id] = data
		r.assetRefs = append(r.assetRefs, book.AssetRef{ID: id, MimeType: mime})
	}
}

// indexMetadata reverses buildBookMetadataFragment's key->field mapping out
// of the $490 book_metadata root fragment.
func (r *Importer) indexMetadata() {
	f := r.c.Fragments.GetRoot(SymBookMetadata)
	if f == nil {
		return
	}
	categories, ok := f.Value.([]any)
	if !ok {
		return
	}
	for _, catAny := range categories {
		cat, ok := catAny.(map[string]any)
		if !ok {
			continue
		}
		entries, _ := cat[fieldKey(SymMetadata)].([]any)
		for _, entAny := range entries {
			ent, ok := entAny.(map[string]any)
			if !ok {
				continue
			}
			key, _ := mapString(ent, fieldKey(SymKey))
			value, _ := mapString(ent, fieldKey(SymValue))
			switch key {
			case "title":
				r.metadata.Title = value
			case "language":
				r.metadata.Language = value
			case "issue_date":
				r.metadata.Date = value
			case "publisher":
				r.metadata.Publisher = value
			case "description":
				r.metadata.Description = value
			case "rights":
				r.metadata.Rights = value
			case "ASIN":
				r.metadata.Identifier = value
			case "author":
				r.metadata.Authors = append(r.metadata.Authors, value)
			case "subject":
				r.metadata.Subjects = append(r.metadata.Subjects, value)
			}
		}
	}
}

// indexSpine reads the $538 document_data reading order's section list.
func (r *Importer) indexSpine() {
	f := r.c.Fragments.GetRoot(SymDocumentData)
	if f == nil {
		return
	}
	list, ok := f.Value.([]any)
	if !ok || len(list) == 0 {
		return
	}
	ro, ok := list[0].(map[string]any)
	if !ok {
		return
	}
	secs, _ := ro[fieldKey(SymSections)].([]any)
	for _, s := range secs {
		if name, ok := s.(string); ok && name != "" {
			r.sections = append(r.sections, name)
		}
	}
}

// indexNavigation reads the $389 book_navigation root fragment, splitting
// its nav containers into TOC entries and landmarks the way BuildNavigation
// assembled them.
func (r *Importer) indexNavigation() {
	r.landmarks = book.Landmarks{}

	f := r.c.Fragments.GetRoot(SymBookNavigation)
	if f == nil {
		return
	}
	list, ok := f.Value.([]any)
	if !ok || len(list) == 0 {
		return
	}
	ro, ok := list[0].(map[string]any)
	if !ok {
		return
	}
	containers, _ := ro[fieldKey(SymNavContainers)].([]any)
	for _, contAny := range containers {
		cont, ok := contAny.(map[string]any)
		if !ok {
			continue
		}
		navTypeText, _ := mapString(cont, fieldKey(SymNavType))
		entries, _ := cont[fieldKey(SymEntries)].([]any)
		switch SymbolID(navTypeText) {
		case SymTOC:
			r.toc = buildTOCFromNav(entries)
		case SymLandmarks:
			r.indexLandmarksFromNav(entries)
		}
	}
}

func buildTOCFromNav(entries []any) []book.TocEntry {
	out := make([]book.TocEntry, 0, len(entries))
	for _, eAny := range entries {
		e, ok := eAny.(map[string]any)
		if !ok {
			continue
		}
		title := ""
		if repr, ok := mapStruct(e, fieldKey(SymRepresentation)); ok {
			title, _ = mapString(repr, fieldKey(SymLabel))
		}
		href := ""
		if pos, ok := mapStruct(e, fieldKey(SymTargetPosition)); ok {
			if eid, ok := mapInt(pos, fieldKey(SymUniqueID)); ok {
				href = eidHref(int(eid))
			}
		}
		var children []book.TocEntry
		if childList, ok := e[fieldKey(SymEntries)].([]any); ok {
			children = buildTOCFromNav(childList)
		}
		out = append(out, book.TocEntry{Title: title, Href: href, Children: children})
	}
	return out
}

func (r *Importer) indexLandmarksFromNav(entries []any) {
	for _, eAny := range entries {
		e, ok := eAny.(map[string]any)
		if !ok {
			continue
		}
		typeText, _ := mapString(e, fieldKey(SymLandmarkType))
		pos, ok := mapStruct(e, fieldKey(SymTargetPosition))
		if !ok {
			continue
		}
		eid, ok := mapInt(pos, fieldKey(SymUniqueID))
		if !ok {
			continue
		}
		href := eidHref(int(eid))
		switch SymbolID(typeText) {
		case SymCoverPage:
			r.landmarks["cover"] = href
		case SymTOC:
			r.landmarks["toc"] = href
		case SymSRL:
			r.landmarks["bodymatter"] = href
		}
	}
}

// eidHref synthesizes a href for a TOC/landmark entry that, unlike an
// in-chapter link, has no original href text left by the time it reaches
// $389 - only the EID it targets. ResolveHref recognizes the prefix.
func eidHref(eid int) string {
	return fmt.Sprintf("#eid:%d", eid)
}

func (r *Importer) Metadata() book.Metadata       { return r.metadata }
func (r *Importer) TOC() []book.TocEntry          { return r.toc }
func (r *Importer) Landmarks() book.Landmarks     { return r.landmarks }
func (r *Importer) FontFaces() []book.FontFaceRef { return nil }
func (r *Importer) Assets() []book.AssetRef       { return r.assetRefs }

func (r *Importer) LoadAsset(id book.AssetId) ([]byte, error) {
	data, ok := r.assets[id]
	if !ok {
		return nil, fmt.Errorf("kfx: unknown asset %q", id)
	}
	return data, nil
}

// Spine returns one entry per $538 reading-order section, sized by its
// storyline's text content.
func (r *Importer) Spine() []book.SpineEntry {
	out := make([]book.SpineEntry, 0, len(r.sections))
	for _, name := range r.sections {
		out = append(out, book.SpineEntry{ID: book.ChapterId(name), SizeEstimate: r.sectionTextLen(name)})
	}
	return out
}

func (r *Importer) sectionTextLen(sectionName string) int {
	storyName, ok := r.storyNameForSection(sectionName)
	if !ok {
		return 0
	}
	entries, ok := r.storylineEntries(storyName)
	if !ok {
		return 0
	}
	total := 0
	for _, e := range entries {
		total += r.entryTextLen(e)
	}
	return total
}

func (r *Importer) entryTextLen(entAny any) int {
	ent, ok := entAny.(map[string]any)
	if !ok {
		return 0
	}
	if children, ok := mapList(ent, fieldKey(SymContentList)); ok {
		total := 0
		for _, ch := range children {
			total += r.entryTextLen(ch)
		}
		return total
	}
	return len(r.textForEntry(ent))
}

func (r *Importer) SourceID(chapter book.ChapterId) string {
	return string(chapter)
}

// LoadRaw has nothing useful to return: KFX content is addressed by EID
// inside an Ion struct, not by a byte range an HTML-based exporter could
// consume directly. RequiresNormalizedExport reports this so callers go
// through LoadChapter instead.
func (r *Importer) LoadRaw(chapter book.ChapterId) ([]byte, error) {
	return nil, fmt.Errorf("kfx: LoadRaw not supported, use LoadChapter (RequiresNormalizedExport)")
}

func (r *Importer) RequiresNormalizedExport() bool { return true }

// IndexAnchors builds the global eid -> GlobalNodeId map from the chapters
// already loaded, so ResolveHref and TOC/landmark hrefs elsewhere in the
// book can resolve regardless of which chapter they originated from.
func (r *Importer) IndexAnchors(chapters map[book.ChapterId]*ir.Chapter) error {
	r.eidNode = make(map[int]book.GlobalNodeId)
	for chapterID := range chapters {
		eids, ok := r.chapterEIDs[chapterID]
		if !ok {
			continue
		}
		for eid, nodeID := range eids {
			r.eidNode[eid] = book.GlobalNodeId{Chapter: chapterID, Node: nodeID}
		}
	}
	return nil
}

// ResolveHref resolves both synthetic "#eid:<N>" hrefs (from TOC/landmark
// reconstruction) and plain "#name" hrefs (from a $179 link_to naming a
// $266 anchor), the two shapes writer.go ever produces.
func (r *Importer) ResolveHref(fromChapter book.ChapterId, rawHref string) (book.AnchorTarget, bool) {
	parsed := book.ParseHref(rawHref)
	if parsed.Kind == book.HrefExternal {
		return book.ExternalTarget(rawHref), true
	}
	if parsed.Kind != book.HrefFragment {
		return book.AnchorTarget{}, false
	}

	frag := parsed.Fragment
	var eid int
	if n, ok := strings.CutPrefix(frag, "eid:"); ok {
		v, err := strconv.Atoi(n)
		if err != nil {
			return book.AnchorTarget{}, false
		}
		eid = v
	} else if v, ok := r.anchorEID[frag]; ok {
		eid = v
	} else {
		return book.AnchorTarget{}, false
	}

	target, ok := r.eidNode[eid]
	if !ok {
		return book.AnchorTarget{}, false
	}
	return book.InternalTarget(target), true
}

// storyNameForSection reads a $260 section fragment's single page_template
// to find the $259 storyline it points at.
func (r *Importer) storyNameForSection(sectionName string) (string, bool) {
	for _, f := range r.c.Fragments.GetByType(SymSection) {
		if f.FIDName != sectionName {
			continue
		}
		m, ok := f.Value.(map[string]any)
		if !ok {
			return "", false
		}
		templates, ok := mapList(m, fieldKey(SymPageTemplates))
		if !ok || len(templates) == 0 {
			return "", false
		}
		pt, ok := templates[0].(map[string]any)
		if !ok {
			return "", false
		}
		return mapString(pt, fieldKey(SymStoryName))
	}
	return "", false
}

func (r *Importer) storylineEntries(storyName string) ([]any, bool) {
	for _, f := range r.c.Fragments.GetByType(SymStoryline) {
		if f.FIDName != storyName {
			continue
		}
		m, ok := f.Value.(map[string]any)
		if !ok {
			return nil, false
		}
		entries, ok := mapList(m, fieldKey(SymContentList))
		return entries, ok
	}
	return nil, false
}

// LoadChapter rebuilds one spine chapter's IR tree from its $260 section and
// $259 storyline fragments, the inverse of storylineBuilder.buildChapter and
// buildBlock. Every EID allocated while walking this chapter is recorded in
// chapterEIDs for later use by IndexAnchors.
func (r *Importer) LoadChapter(chapterID book.ChapterId) (*ir.Chapter, error) {
	sectionName := string(chapterID)
	storyName, ok := r.storyNameForSection(sectionName)
	if !ok {
		r.log.Warn("section not found", zap.String("section", sectionName))
		return nil, fmt.Errorf("kfx: no section %q", sectionName)
	}
	entries, ok := r.storylineEntries(storyName)
	if !ok {
		r.log.Warn("storyline not found", zap.String("storyline", storyName), zap.String("section", sectionName))
		return nil, fmt.Errorf("kfx: no storyline %q for section %q", storyName, sectionName)
	}

	c := ir.NewChapter()
	c.SourcePath = sectionName
	eidMap := make(map[int]ir.NodeId)

	for _, entAny := range entries {
		ent, ok := entAny.(map[string]any)
		if !ok {
			continue
		}
		r.buildNode(c, c.Root(), ent, eidMap)
	}

	r.chapterEIDs[chapterID] = eidMap
	return c, nil
}

// buildNode inverts buildBlock/buildImage: it allocates one IR node per
// content entry, recurses into $146 content_list children for block
// entries, and resolves $145 leaf text through the content fragment index.
func (r *Importer) buildNode(c *ir.Chapter, parent ir.NodeId, ent map[string]any, eidMap map[int]ir.NodeId) {
	eid64, _ := mapInt(ent, fieldKey(SymUniqueID))
	eid := int(eid64)

	typeText, _ := mapString(ent, fieldKey(SymType))
	kfxType := SymbolID(typeText)

	_, isTableCell := ent[fieldKey(SymLayout)]
	contentList, hasContentList := mapList(ent, fieldKey(SymContentList))

	role := roleForKFXType(kfxType, hasContentList, isTableCell)

	id := c.AllocNode(role)
	c.AppendChild(parent, id)
	if eid > 0 {
		eidMap[eid] = id
		if name, ok := r.anchorNameByE[eid]; ok {
			c.SetID(id, name)
		}
	}

	if styleName, ok := mapString(ent, fieldKey(SymStyle)); ok && styleName != "" {
		if props, ok := r.styles[styleName]; ok {
			c.SetStyle(id, computedStyleFromGenericProps(props))
		}
	}

	switch role {
	case ir.RoleImage:
		if name, ok := mapString(ent, fieldKey(SymResourceName)); ok && name != "" {
			c.SetSrc(id, name)
		}
		return
	case ir.RoleBreak:
		return
	}

	if hasContentList {
		for _, childAny := range contentList {
			if child, ok := childAny.(map[string]any); ok {
				r.buildNode(c, id, child, eidMap)
			}
		}
		return
	}

	text := r.textForEntry(ent)
	if linkName, ok := mapString(ent, fieldKey(SymLinkTo)); ok && linkName != "" {
		link := c.AllocNode(ir.RoleLink)
		c.AppendChild(id, link)
		c.SetHref(link, "#"+linkName)
		c.AppendText(link, text, c.Style(id), false)
		return
	}
	c.AppendText(id, text, c.Style(id), false)
}

// roleForKFXType reverses kfxTypeFor. Several original roles share one KFX
// type symbol once written (all leaf block roles collapse to $269, ordered
// and unordered lists both write $276, table head and body both write
// $454, break and rule both write a bare $270); this always reconstructs
// the more common of each pair, a lossy but documented round-trip limit.
func roleForKFXType(sym KFXSymbol, hasContentList, isTableCell bool) ir.Role {
	switch sym {
	case SymList:
		return ir.RoleUnorderedList
	case SymListItem:
		return ir.RoleListItem
	case SymTable:
		return ir.RoleTable
	case SymTableBody:
		return ir.RoleTableBody
	case SymTableRow:
		return ir.RoleTableRow
	case SymFigure:
		return ir.RoleFigure
	case SymSidebar:
		return ir.RoleSidebar
	case SymFootnote:
		return ir.RoleFootnote
	case SymImage:
		return ir.RoleImage
	case SymContainer:
		switch {
		case isTableCell:
			return ir.RoleTableCell
		case hasContentList:
			return ir.RoleContainer
		default:
			return ir.RoleBreak
		}
	case SymText:
		return ir.RoleParagraph
	default:
		return ir.RoleContainer
	}
}

// textForEntry resolves a leaf entry's $145 content reference ({name,
// $403: index}) through the content fragment index built at Open time. The
// $403 field here reuses the symbol for a content_list array index, not its
// usual landmark/offset meaning.
func (r *Importer) textForEntry(ent map[string]any) string {
	cf, ok := mapStruct(ent, fieldKey(SymContent))
	if !ok {
		return ""
	}
	name, _ := cf["name"].(string)
	idx, _ := mapInt(cf, "$403")
	chunks, ok := r.content[name]
	if !ok || int(idx) < 0 || int(idx) >= len(chunks) {
		return ""
	}
	return chunks[idx]
}

// fieldKey returns the literal "$NNN" field key a generically decoded KFX
// struct uses for sym. The shared symbol table names every known symbol by
// its numeric id rather than its semantic text, so a decoded struct's field
// keys are never anything else.
func fieldKey(sym KFXSymbol) string {
	return "$" + strconv.Itoa(int(sym))
}

func mapString(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func mapInt(m map[string]any, key string) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch vv := v.(type) {
	case int64:
		return vv, true
	case int:
		return int64(vv), true
	default:
		return 0, false
	}
}

func mapFloat(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch vv := v.(type) {
	case float64:
		return vv, true
	case int64:
		return float64(vv), true
	default:
		return 0, false
	}
}

func mapList(m map[string]any, key string) ([]any, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	l, ok := v.([]any)
	return l, ok
}

func mapStruct(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	s, ok := v.(map[string]any)
	return s, ok
}
