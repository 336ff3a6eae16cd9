package ir

import "strings"

// Optimize runs the seven-pass bottom-up optimizer pipeline over c in place.
// Each pass is O(n) in the number of nodes and index-stable: node ids are
// never reused or renumbered, only unlinked.
func Optimize(c *Chapter) {
	vacuum(c)
	hoistNestedInlines(c)
	mergeAdjacentSpans(c)
	fuseLists(c)
	wrapMixedContent(c)
	normalizeTables(c)
	pruneEmpty(c)
}

// vacuum deletes whitespace-only Text nodes whose parent is a structural
// container, unless the node carries a semantic attribute (in practice,
// an id) worth preserving as a link target.
func vacuum(c *Chapter) {
	c.WalkPostOrder(func(id NodeId) {
		n := c.nodes[id]
		if n.Role != RoleText {
			return
		}
		parent := n.Parent
		if parent == NoNode || !c.nodes[parent].Role.structuralContainer() {
			return
		}
		if strings.TrimSpace(c.Text(id)) != "" {
			return
		}
		if sa := c.semantics[id]; sa != nil && sa.HasID {
			return
		}
		c.unlink(parent, id)
	})
}

// hoistNestedInlines dissolves an Inline node whose parent is also Inline
// and whose own style contributes nothing beyond the parent's (same
// resolved StyleId): its children are reparented directly onto the
// grandparent Inline in place of the dissolved node.
func hoistNestedInlines(c *Chapter) {
	c.WalkPostOrder(func(id NodeId) {
		n := c.nodes[id]
		if n.Role != RoleInline {
			return
		}
		parent := n.Parent
		if parent == NoNode || c.nodes[parent].Role != RoleInline {
			return
		}
		if n.StyleId != c.nodes[parent].StyleId {
			return
		}
		if c.semantics[id] != nil {
			return // carries its own semantics (href, id, ...); keep the wrapper
		}
		children := c.Children(id)
		if len(children) == 0 {
			return
		}
		// Splice id's children into parent, in id's position.
		next := n.NextSibling
		c.unlink(parent, id)
		insertBefore := next
		for _, child := range children {
			c.InsertBefore(parent, child, insertBefore)
		}
	})
}

// mergeAdjacentSpans coalesces sibling Text nodes that share a style, carry
// no semantic attributes, and whose text ranges are contiguous in the
// shared buffer.
func mergeAdjacentSpans(c *Chapter) {
	c.WalkPostOrder(func(id NodeId) {
		children := c.Children(id)
		for i := 0; i+1 < len(children); {
			a, b := children[i], children[i+1]
			na, nb := c.nodes[a], c.nodes[b]
			if na.Role != RoleText || nb.Role != RoleText {
				i++
				continue
			}
			if na.StyleId != nb.StyleId {
				i++
				continue
			}
			if c.semantics[a] != nil || c.semantics[b] != nil {
				i++
				continue
			}
			if na.TextRange.offset+na.TextRange.length != nb.TextRange.offset {
				i++
				continue
			}
			c.nodes[a].TextRange.length += nb.TextRange.length
			c.nodes[a].NextSibling = nb.NextSibling
			c.unlink(id, b)
			children = append(children[:i+1], children[i+2:]...)
		}
	})
}

// fuseLists concatenates adjacent sibling lists of the same kind (both
// OrderedList or both UnorderedList) by reparenting the second list's
// children onto the first and unlinking the now-empty second list.
func fuseLists(c *Chapter) {
	c.WalkPostOrder(func(id NodeId) {
		children := c.Children(id)
		for i := 0; i+1 < len(children); {
			a, b := children[i], children[i+1]
			ra, rb := c.nodes[a].Role, c.nodes[b].Role
			sameKind := (ra == RoleOrderedList && rb == RoleOrderedList) ||
				(ra == RoleUnorderedList && rb == RoleUnorderedList)
			if !sameKind {
				i++
				continue
			}
			for _, grandchild := range c.Children(b) {
				c.unlink(b, grandchild)
				c.AppendChild(a, grandchild)
			}
			c.nodes[a].NextSibling = c.nodes[b].NextSibling
			c.unlink(id, b)
			children = append(children[:i+1], children[i+2:]...)
		}
	})
}

// wrapMixedContent ensures that under a block container, inline-level
// siblings (Text, Inline, Link, Image, Break) that sit next to block-level
// siblings are grouped into a synthetic Paragraph, so an exporter never has
// to emit bare inline content as a direct child of a block container.
func wrapMixedContent(c *Chapter) {
	c.WalkPostOrder(func(id NodeId) {
		if !c.nodes[id].Role.isBlock() && c.nodes[id].Role != RoleRoot {
			return
		}
		children := c.Children(id)
		hasBlock, hasInline := false, false
		for _, child := range children {
			if c.nodes[child].Role.isBlock() {
				hasBlock = true
			} else {
				hasInline = true
			}
		}
		if !hasBlock || !hasInline {
			return
		}

		var run []NodeId
		flush := func(before NodeId) {
			if len(run) == 0 {
				return
			}
			wrapper := c.AllocNode(RoleParagraph)
			c.InsertBefore(id, wrapper, before)
			for _, child := range run {
				c.unlink(id, child)
				c.AppendChild(wrapper, child)
			}
			run = nil
		}
		for _, child := range children {
			if c.nodes[child].Role.isBlock() {
				flush(child)
			} else {
				run = append(run, child)
			}
		}
		flush(NoNode)
	})
}

// normalizeTables ensures every Table has explicit TableHead/TableBody
// wrappers and classifies a row as belonging to the head iff every one of
// its cells has IsHeaderCell set.
func normalizeTables(c *Chapter) {
	c.WalkPostOrder(func(id NodeId) {
		if c.nodes[id].Role != RoleTable {
			return
		}
		var head, body NodeId = NoNode, NoNode
		for _, child := range c.Children(id) {
			switch c.nodes[child].Role {
			case RoleTableHead:
				head = child
			case RoleTableBody:
				body = child
			case RoleTableRow:
				target := body
				if rowIsHeader(c, child) {
					if head == NoNode {
						head = c.AllocNode(RoleTableHead)
						c.InsertBefore(id, head, child)
					}
					target = head
				} else if target == NoNode {
					body = c.AllocNode(RoleTableBody)
					c.InsertBefore(id, body, child)
					target = body
				}
				c.unlink(id, child)
				c.AppendChild(target, child)
			}
		}
	})
}

func rowIsHeader(c *Chapter, row NodeId) bool {
	cells := c.Children(row)
	if len(cells) == 0 {
		return false
	}
	for _, cell := range cells {
		if c.nodes[cell].Role != RoleTableCell {
			return false
		}
		sa := c.semantics[cell]
		if sa == nil || !sa.IsHeaderCell {
			return false
		}
	}
	return true
}

// pruneEmpty deletes containers with a prunable role that have no children,
// no text (not applicable, since prunable roles are never Text), and no id
// or src semantic attribute. Bottom-up order means dissolving a child can
// make its parent empty too, cascading in a single pass.
func pruneEmpty(c *Chapter) {
	c.WalkPostOrder(func(id NodeId) {
		if id == c.Root() {
			return
		}
		n := c.nodes[id]
		if !n.Role.prunable() {
			return
		}
		if n.FirstChild != NoNode {
			return
		}
		if sa := c.semantics[id]; sa != nil && (sa.HasID || sa.HasSrc) {
			return
		}
		if n.Parent != NoNode {
			c.unlink(n.Parent, id)
		}
	})
}
