package ir

// NodeId indexes into a Chapter's node array. NodeId(0) is always the Root.
type NodeId uint32

// NoNode is the sentinel for "no node" in parent/sibling/child links.
const NoNode NodeId = ^NodeId(0)

// Node is one entry in a chapter's dense node array.
type Node struct {
	Role        Role
	Parent      NodeId
	FirstChild  NodeId
	NextSibling NodeId
	StyleId     StyleId
	TextRange   strRange // non-empty only when Role == RoleText
}

// Chapter owns one document's worth of IR: the node arena, the interned
// style pool, the sparse semantic map, and the shared text buffer. A
// Chapter is safe to read concurrently once built; it is not safe to mutate
// concurrently with reads (the optimizer and path resolver run to
// completion before the chapter is handed out).
type Chapter struct {
	nodes     []Node
	styles    *StylePool
	semantics map[NodeId]*SemanticAttrs
	semBuf    semanticBuf
	text      []byte
	SourcePath string // archive-relative path this chapter was compiled from
}

// NewChapter returns an empty chapter with a single Root node (id 0).
func NewChapter() *Chapter {
	c := &Chapter{
		styles:    NewStylePool(),
		semantics: make(map[NodeId]*SemanticAttrs),
	}
	c.nodes = append(c.nodes, Node{
		Role:        RoleRoot,
		Parent:      NoNode,
		FirstChild:  NoNode,
		NextSibling: NoNode,
		StyleId:     0,
	})
	return c
}

// Root returns the id of the chapter's root node (always 0).
func (c *Chapter) Root() NodeId { return 0 }

// Len returns the number of nodes in the arena, including garbage left by deletions.
func (c *Chapter) Len() int { return len(c.nodes) }

// Node returns a copy of the node at id.
func (c *Chapter) Node(id NodeId) Node { return c.nodes[id] }

// SetStyle assigns a style to a node, interning s into the chapter's pool.
func (c *Chapter) SetStyle(id NodeId, s ComputedStyle) {
	c.nodes[id].StyleId = c.styles.Intern(s)
}

// Style returns the resolved style of a node.
func (c *Chapter) Style(id NodeId) ComputedStyle { return c.styles.Get(c.nodes[id].StyleId) }

// Styles returns the chapter's style pool.
func (c *Chapter) Styles() *StylePool { return c.styles }

// Text returns the text carried by a Text-role node, or "" for any other role.
func (c *Chapter) Text(id NodeId) string {
	n := c.nodes[id]
	if n.Role != RoleText || n.TextRange.length == 0 {
		return ""
	}
	return string(c.text[n.TextRange.offset : n.TextRange.offset+n.TextRange.length])
}

// Semantics returns the semantic attributes of a node, or nil if none are set.
func (c *Chapter) Semantics(id NodeId) *SemanticAttrs { return c.semantics[id] }

// EnsureSemantics returns the semantic attributes of a node, allocating an
// empty record if none exists yet.
func (c *Chapter) EnsureSemantics(id NodeId) *SemanticAttrs {
	if sa, ok := c.semantics[id]; ok {
		return sa
	}
	sa := &SemanticAttrs{}
	c.semantics[id] = sa
	return sa
}

// SetHref sets the href attribute on id.
func (c *Chapter) SetHref(id NodeId, href string) {
	sa := c.EnsureSemantics(id)
	sa.Href = c.semBuf.append(href)
	sa.HasHref = true
}

// Href returns the href attribute of id, or "" if unset.
func (c *Chapter) Href(id NodeId) (string, bool) {
	sa := c.semantics[id]
	if sa == nil || !sa.HasHref {
		return "", false
	}
	return c.semBuf.slice(sa.Href), true
}

// SetSrc sets the src attribute on id.
func (c *Chapter) SetSrc(id NodeId, src string) {
	sa := c.EnsureSemantics(id)
	sa.Src = c.semBuf.append(src)
	sa.HasSrc = true
}

// Src returns the src attribute of id, or "" if unset.
func (c *Chapter) Src(id NodeId) (string, bool) {
	sa := c.semantics[id]
	if sa == nil || !sa.HasSrc {
		return "", false
	}
	return c.semBuf.slice(sa.Src), true
}

// SetID sets the id attribute on id.
func (c *Chapter) SetID(id NodeId, value string) {
	sa := c.EnsureSemantics(id)
	sa.ID = c.semBuf.append(value)
	sa.HasID = true
}

// ID returns the id attribute of id, or "" if unset.
func (c *Chapter) ID(id NodeId) (string, bool) {
	sa := c.semantics[id]
	if sa == nil || !sa.HasID {
		return "", false
	}
	return c.semBuf.slice(sa.ID), true
}

// SetAlt sets the alt attribute on id.
func (c *Chapter) SetAlt(id NodeId, alt string) {
	sa := c.EnsureSemantics(id)
	sa.Alt = c.semBuf.append(alt)
	sa.HasAlt = true
}

// Alt returns the alt attribute of id, or "" if unset.
func (c *Chapter) Alt(id NodeId) (string, bool) {
	sa := c.semantics[id]
	if sa == nil || !sa.HasAlt {
		return "", false
	}
	return c.semBuf.slice(sa.Alt), true
}

// SetTitle sets the title attribute on id.
func (c *Chapter) SetTitle(id NodeId, title string) {
	sa := c.EnsureSemantics(id)
	sa.Title = c.semBuf.append(title)
	sa.HasTitle = true
}

// Title returns the title attribute of id, or "" if unset.
func (c *Chapter) Title(id NodeId) (string, bool) {
	sa := c.semantics[id]
	if sa == nil || !sa.HasTitle {
		return "", false
	}
	return c.semBuf.slice(sa.Title), true
}

// SetLang sets the lang attribute on id (the raw HTML lang/xml:lang value).
func (c *Chapter) SetLang(id NodeId, lang string) {
	sa := c.EnsureSemantics(id)
	sa.Lang = c.semBuf.append(lang)
	sa.HasLang = true
}

// Lang returns the lang attribute of id, or "" if unset.
func (c *Chapter) Lang(id NodeId) (string, bool) {
	sa := c.semantics[id]
	if sa == nil || !sa.HasLang {
		return "", false
	}
	return c.semBuf.slice(sa.Lang), true
}

// SetEpubType sets the epub:type attribute on id, preserved byte-for-byte
// for EPUB3 semantic inflection but not interpreted by the core itself.
func (c *Chapter) SetEpubType(id NodeId, epubType string) {
	sa := c.EnsureSemantics(id)
	sa.EpubType = c.semBuf.append(epubType)
	sa.HasEpubType = true
}

// EpubType returns the epub:type attribute of id, or "" if unset.
func (c *Chapter) EpubType(id NodeId) (string, bool) {
	sa := c.semantics[id]
	if sa == nil || !sa.HasEpubType {
		return "", false
	}
	return c.semBuf.slice(sa.EpubType), true
}

// SetSemanticRole sets the ARIA role attribute on id.
func (c *Chapter) SetSemanticRole(id NodeId, role string) {
	sa := c.EnsureSemantics(id)
	sa.Role = c.semBuf.append(role)
	sa.HasRole = true
}

// SemanticRole returns the ARIA role attribute of id, or "" if unset.
func (c *Chapter) SemanticRole(id NodeId) (string, bool) {
	sa := c.semantics[id]
	if sa == nil || !sa.HasRole {
		return "", false
	}
	return c.semBuf.slice(sa.Role), true
}

// SetDatetime sets the datetime attribute on id (e.g. from a <time> element).
func (c *Chapter) SetDatetime(id NodeId, datetime string) {
	sa := c.EnsureSemantics(id)
	sa.Datetime = c.semBuf.append(datetime)
	sa.HasDatetime = true
}

// Datetime returns the datetime attribute of id, or "" if unset.
func (c *Chapter) Datetime(id NodeId) (string, bool) {
	sa := c.semantics[id]
	if sa == nil || !sa.HasDatetime {
		return "", false
	}
	return c.semBuf.slice(sa.Datetime), true
}

// SetLanguage sets the effective content language of id, distinct from Lang
// in that it is always resolved (inherited from an ancestor's lang when id
// carries none of its own) rather than a raw per-node attribute echo.
func (c *Chapter) SetLanguage(id NodeId, language string) {
	sa := c.EnsureSemantics(id)
	sa.Language = c.semBuf.append(language)
	sa.HasLanguage = true
}

// Language returns the resolved content language of id, or "" if unset.
func (c *Chapter) Language(id NodeId) (string, bool) {
	sa := c.semantics[id]
	if sa == nil || !sa.HasLanguage {
		return "", false
	}
	return c.semBuf.slice(sa.Language), true
}

// AllocNode allocates a new, unlinked node and returns its id. The caller
// must attach it with AppendChild or InsertBefore.
func (c *Chapter) AllocNode(role Role) NodeId {
	id := NodeId(len(c.nodes))
	c.nodes = append(c.nodes, Node{
		Role:        role,
		Parent:      NoNode,
		FirstChild:  NoNode,
		NextSibling: NoNode,
		StyleId:     0,
	})
	return id
}

// AppendChild links child as the last child of parent.
func (c *Chapter) AppendChild(parent, child NodeId) {
	c.nodes[child].Parent = parent
	c.nodes[child].NextSibling = NoNode
	if c.nodes[parent].FirstChild == NoNode {
		c.nodes[parent].FirstChild = child
		return
	}
	last := c.lastChild(parent)
	c.nodes[last].NextSibling = child
}

// InsertBefore links child immediately before sibling under parent. If
// sibling is NoNode, child is appended as the last child.
func (c *Chapter) InsertBefore(parent, child, sibling NodeId) {
	c.nodes[child].Parent = parent
	if sibling == NoNode {
		c.AppendChild(parent, child)
		return
	}
	if c.nodes[parent].FirstChild == sibling {
		c.nodes[child].NextSibling = sibling
		c.nodes[parent].FirstChild = child
		return
	}
	prev := c.nodes[parent].FirstChild
	for prev != NoNode && c.nodes[prev].NextSibling != sibling {
		prev = c.nodes[prev].NextSibling
	}
	c.nodes[child].NextSibling = sibling
	c.nodes[prev].NextSibling = child
}

// unlink removes child from its parent's child list without deallocating
// it; used by optimizer passes that fuse or dissolve nodes. child retains
// its own Parent/FirstChild pointers until reassigned by the caller.
func (c *Chapter) unlink(parent, child NodeId) {
	if c.nodes[parent].FirstChild == child {
		c.nodes[parent].FirstChild = c.nodes[child].NextSibling
		return
	}
	prev := c.nodes[parent].FirstChild
	for prev != NoNode && c.nodes[prev].NextSibling != child {
		prev = c.nodes[prev].NextSibling
	}
	if prev != NoNode {
		c.nodes[prev].NextSibling = c.nodes[child].NextSibling
	}
}

func (c *Chapter) lastChild(parent NodeId) NodeId {
	child := c.nodes[parent].FirstChild
	if child == NoNode {
		return NoNode
	}
	for c.nodes[child].NextSibling != NoNode {
		child = c.nodes[child].NextSibling
	}
	return child
}

// Children returns the child ids of parent in document order.
func (c *Chapter) Children(parent NodeId) []NodeId {
	var out []NodeId
	for child := c.nodes[parent].FirstChild; child != NoNode; child = c.nodes[child].NextSibling {
		out = append(out, child)
	}
	return out
}

// AppendText appends a Text node under parent carrying s. When mergeWithPrev
// is set and parent's last child is a Text node with the same style whose
// range ends the shared buffer, s is merged into that node instead. Merging never copies
// existing text; new bytes are appended to the shared buffer and the
// preceding node's range is extended.
func (c *Chapter) AppendText(parent NodeId, s string, style ComputedStyle, mergeWithPrev bool) NodeId {
	styleId := c.styles.Intern(style)
	if mergeWithPrev {
		if last := c.lastChild(parent); last != NoNode {
			n := &c.nodes[last]
			if n.Role == RoleText && n.StyleId == styleId && n.TextRange.offset+n.TextRange.length == len(c.text) {
				added := len(s)
				c.text = append(c.text, s...)
				n.TextRange.length += added
				return last
			}
		}
	}
	off := len(c.text)
	c.text = append(c.text, s...)
	id := c.AllocNode(RoleText)
	c.nodes[id].StyleId = styleId
	c.nodes[id].TextRange = strRange{offset: off, length: len(s)}
	c.AppendChild(parent, id)
	return id
}

// Walk visits every reachable node in document order (pre-order DFS),
// calling visit(id) for each. The traversal pushes children in reverse so
// that an explicit stack yields the same order as recursive descent,
// without risking stack overflow on deeply nested documents.
func (c *Chapter) Walk(visit func(NodeId)) {
	stack := []NodeId{c.Root()}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(id)
		children := c.Children(id)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

// WalkPostOrder visits every reachable node with every child visited before
// its parent, the order the optimizer pipeline requires.
func (c *Chapter) WalkPostOrder(visit func(NodeId)) {
	var walk func(NodeId)
	walk = func(id NodeId) {
		for _, child := range c.Children(id) {
			walk(child)
		}
		visit(id)
	}
	walk(c.Root())
}
