// Package sexp provides the document model shared by the schematic tools:
// a span-annotated S-expression tree. Every node remembers the byte range
// it occupies in the original text, which lets the editor re-emit a
// modified document while copying every untouched region verbatim.
package sexp

import (
	"sort"
	"strings"
)

// NodeKind identifies what a Node holds.
type NodeKind int

const (
	// KindAtom is a bare token (identifier, number, keyword).
	KindAtom NodeKind = iota
	// KindString is a quoted string. Token keeps the raw quoted form.
	KindString
	// KindList is a parenthesized list of child nodes.
	KindList
)

func (k NodeKind) String() string {
	switch k {
	case KindAtom:
		return "atom"
	case KindString:
		return "string"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Span is a half-open byte range [Start, End) into the document source.
// For lists the range includes both parentheses.
type Span struct {
	Start int
	End   int
}

// Valid reports whether the span points into the source text. Nodes
// created in memory (not parsed) carry an invalid span.
func (s Span) Valid() bool { return s.Start >= 0 && s.End >= s.Start }

// Len returns the number of bytes covered.
func (s Span) Len() int { return s.End - s.Start }

// Node is one element of the parsed tree. Exactly one of Token (atoms and
// strings) or Children (lists) is meaningful. Raw, when non-empty, is
// preformatted text for a node that was spliced in by an edit; the writer
// emits it verbatim.
type Node struct {
	Kind     NodeKind
	Token    string // raw token text; strings include their quotes
	Children []*Node
	Span     Span
	Raw      string // preformatted replacement text for inserted nodes

	dirty   bool
	removed []Span // spans of deleted children, masked out on re-emit
}

// NewRaw returns an inserted node whose serialized form is the given
// preformatted text. The caller is responsible for indentation.
func NewRaw(text string) *Node {
	return &Node{Kind: KindList, Raw: text, Span: Span{Start: -1, End: -1}}
}

// Tag returns the leading atom of a list ("wire", "symbol", "property"...)
// or the empty string when the node is not a tagged list.
func (n *Node) Tag() string {
	if n == nil || n.Kind != KindList || len(n.Children) == 0 {
		return ""
	}
	head := n.Children[0]
	if head.Kind != KindAtom {
		return ""
	}
	return head.Token
}

// SetToken replaces an atom or string token in place and marks the node
// dirty so the writer re-emits it instead of copying the original span.
func (n *Node) SetToken(token string) {
	n.Token = token
	n.dirty = true
}

// Dirty reports whether this node or any descendant was modified or
// inserted since the document was parsed.
func (n *Node) Dirty() bool {
	if n.dirty || n.Raw != "" || !n.Span.Valid() {
		return true
	}
	for _, c := range n.Children {
		if c.Dirty() {
			return true
		}
	}
	return false
}

// StringValue returns the decoded value of a string node (quotes stripped,
// escapes resolved) or the token itself for atoms.
func (n *Node) StringValue() string {
	if n.Kind != KindString {
		return n.Token
	}
	return unquote(n.Token)
}

// Find returns the first child list tagged with key, or the bare atom key
// itself (KiCad uses bare flags like "hide").
func (n *Node) Find(key string) (*Node, bool) {
	if n == nil || n.Kind != KindList {
		return nil, false
	}
	for _, c := range n.Children {
		if c.Kind == KindAtom && c.Token == key {
			return c, true
		}
		if c.Kind == KindList && c.Tag() == key {
			return c, true
		}
	}
	return nil, false
}

// FindAll returns every child list tagged with key, in document order.
func (n *Node) FindAll(key string) []*Node {
	if n == nil || n.Kind != KindList {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == KindList && c.Tag() == key {
			out = append(out, c)
		}
	}
	return out
}

// HasFlag reports whether the list contains the bare atom flag.
func (n *Node) HasFlag(flag string) bool {
	if n == nil || n.Kind != KindList {
		return false
	}
	for _, c := range n.Children {
		if c.Kind == KindAtom && c.Token == flag {
			return true
		}
	}
	return false
}

// Arg returns the i-th element of a list (0 is the tag atom).
func (n *Node) Arg(i int) (*Node, bool) {
	if n == nil || n.Kind != KindList || i < 0 || i >= len(n.Children) {
		return nil, false
	}
	return n.Children[i], true
}

// InsertChild inserts child at index i, marking the parent dirty.
func (n *Node) InsertChild(i int, child *Node) {
	if i < 0 {
		i = 0
	}
	if i > len(n.Children) {
		i = len(n.Children)
	}
	n.Children = append(n.Children, nil)
	copy(n.Children[i+1:], n.Children[i:])
	n.Children[i] = child
	n.dirty = true
}

// RemoveChild removes the child at index i, marking the parent dirty. The
// child's original bytes (if it was parsed from source) are masked out of
// the parent's span on re-emit, together with the indentation run that
// preceded them.
func (n *Node) RemoveChild(i int) {
	if i < 0 || i >= len(n.Children) {
		return
	}
	if sp := n.Children[i].Span; sp.Valid() {
		n.removed = append(n.removed, sp)
		sort.Slice(n.removed, func(a, b int) bool { return n.removed[a].Start < n.removed[b].Start })
	}
	n.Children = append(n.Children[:i], n.Children[i+1:]...)
	n.dirty = true
}

// IndexOf returns the index of child in this list, or -1.
func (n *Node) IndexOf(child *Node) int {
	for i, c := range n.Children {
		if c == child {
			return i
		}
	}
	return -1
}

// unquote strips the surrounding quotes and resolves backslash escapes.
func unquote(token string) string {
	if len(token) < 2 || token[0] != '"' {
		return token
	}
	body := token[1 : len(token)-1]
	if !strings.ContainsRune(body, '\\') {
		return body
	}
	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch != '\\' || i+1 >= len(body) {
			b.WriteByte(ch)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}

// Quote renders a value as a KiCad quoted string token.
func Quote(value string) string {
	var b strings.Builder
	b.Grow(len(value) + 2)
	b.WriteByte('"')
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(value[i])
		}
	}
	b.WriteByte('"')
	return b.String()
}
