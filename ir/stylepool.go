package ir

// StyleId indexes into a StylePool. StyleId(0) is always the default style.
type StyleId uint32

// StylePool interns ComputedStyle values by structural equality: identical
// inputs return the same id. Mirrors the signature-keyed interning idiom
// used for style dedup elsewhere in this codebase, generalized from a
// format-specific registry to a plain value pool.
type StylePool struct {
	styles []ComputedStyle
	index  map[ComputedStyle]StyleId
}

// NewStylePool returns a pool with the default style already interned as id 0.
func NewStylePool() *StylePool {
	p := &StylePool{
		styles: make([]ComputedStyle, 1),
		index:  make(map[ComputedStyle]StyleId),
	}
	p.index[ComputedStyle{}] = 0
	return p
}

// Intern returns the id for s, allocating a new entry if s has not been seen.
func (p *StylePool) Intern(s ComputedStyle) StyleId {
	if id, ok := p.index[s]; ok {
		return id
	}
	id := StyleId(len(p.styles))
	p.styles = append(p.styles, s)
	p.index[s] = id
	return id
}

// Get returns the style for id. Panics on an out-of-range id, which would
// indicate a corrupted chapter.
func (p *StylePool) Get(id StyleId) ComputedStyle {
	return p.styles[id]
}

// Len returns the number of interned styles, including the default.
func (p *StylePool) Len() int { return len(p.styles) }

// Default returns the all-defaults style (id 0).
func (p *StylePool) Default() ComputedStyle { return p.styles[0] }
