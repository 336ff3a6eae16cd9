package book

import "bookforge/ir"

// GlobalNodeId identifies one node across the whole book: which chapter it
// lives in, and its id within that chapter's arena.
type GlobalNodeId struct {
	Chapter ChapterId
	Node    ir.NodeId
}

// AnchorTargetKind discriminates the AnchorTarget sum type.
type AnchorTargetKind int

const (
	// AnchorNone means the href could not be resolved.
	AnchorNone AnchorTargetKind = iota
	// AnchorInternal targets a specific node somewhere in the book.
	AnchorInternal
	// AnchorChapter targets the start of a chapter (no specific anchor).
	AnchorChapter
	// AnchorExternal targets a URL outside the book.
	AnchorExternal
)

// AnchorTarget is the resolved destination of a Link node's href.
type AnchorTarget struct {
	Kind     AnchorTargetKind
	Internal GlobalNodeId
	Chapter  ChapterId
	External string
}

func InternalTarget(id GlobalNodeId) AnchorTarget {
	return AnchorTarget{Kind: AnchorInternal, Internal: id}
}

func ChapterTarget(id ChapterId) AnchorTarget {
	return AnchorTarget{Kind: AnchorChapter, Chapter: id}
}

func ExternalTarget(url string) AnchorTarget {
	return AnchorTarget{Kind: AnchorExternal, External: url}
}

// BrokenLink records a Link node whose href could not be resolved.
type BrokenLink struct {
	Source GlobalNodeId
	Href   string
}

// ResolvedLinks is the output of Book.ResolveLinks: a forward map from
// every resolvable Link node to its target, a reverse map from target to
// every node that points at it, a per-chapter inbound-link index, and the
// list of hrefs that resolved to nothing.
type ResolvedLinks struct {
	Forward   map[GlobalNodeId]AnchorTarget
	Reverse   map[GlobalNodeId][]GlobalNodeId
	ByChapter map[ChapterId][]GlobalNodeId
	Broken    []BrokenLink
}

func newResolvedLinks() *ResolvedLinks {
	return &ResolvedLinks{
		Forward:   make(map[GlobalNodeId]AnchorTarget),
		Reverse:   make(map[GlobalNodeId][]GlobalNodeId),
		ByChapter: make(map[ChapterId][]GlobalNodeId),
	}
}

// IsLinkTarget reports whether target is the destination of at least one
// resolved link, an O(1) query backed by the reverse index.
func (rl *ResolvedLinks) IsLinkTarget(target GlobalNodeId) bool {
	return len(rl.Reverse[target]) > 0
}

func (rl *ResolvedLinks) add(source GlobalNodeId, target AnchorTarget) {
	rl.Forward[source] = target
	rl.ByChapter[source.Chapter] = append(rl.ByChapter[source.Chapter], source)
	if target.Kind == AnchorInternal {
		rl.Reverse[target.Internal] = append(rl.Reverse[target.Internal], source)
	}
}

func (rl *ResolvedLinks) addBroken(source GlobalNodeId, href string) {
	rl.Broken = append(rl.Broken, BrokenLink{Source: source, Href: href})
}
