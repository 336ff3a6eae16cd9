package ir

// strRange is an (offset, length) slice into a chapter's shared string
// buffer, the same range-not-allocation idiom used for node text.
type strRange struct {
	offset, length int
}

// SemanticAttrs holds the sparse, per-node attributes the IR tracks outside
// of style: href, src, alt, id, title, lang, epub:type, role, datetime,
// the resolved content language (no code-block language is recorded), and
// table metadata. Zero value means "not set" for
// every field; the string fields are ranges into the owning chapter's
// semantic string buffer rather than individual allocations.
type SemanticAttrs struct {
	Href         strRange
	Src          strRange
	Alt          strRange
	ID           strRange
	Title        strRange
	Lang         strRange
	EpubType     strRange
	Role         strRange
	Datetime     strRange
	Language     strRange
	HasHref      bool
	HasSrc       bool
	HasAlt       bool
	HasID        bool
	HasTitle     bool
	HasLang      bool
	HasEpubType  bool
	HasRole      bool
	HasDatetime  bool
	HasLanguage  bool
	ListStart    int
	HasListStart bool
	RowSpan      int
	ColSpan      int
	IsHeaderCell bool
}

// semanticBuf is the chapter's append-only buffer backing semantic string
// attributes, kept separate from the text buffer so path rewriting
// (resolve_paths) never touches displayed text.
type semanticBuf struct {
	data []byte
}

func (b *semanticBuf) append(s string) strRange {
	off := len(b.data)
	b.data = append(b.data, s...)
	return strRange{offset: off, length: len(s)}
}

func (b *semanticBuf) slice(r strRange) string {
	return string(b.data[r.offset : r.offset+r.length])
}
