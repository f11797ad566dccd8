package sexp

import (
	"bytes"
)

// Bytes re-serializes the document. Subtrees that were never touched are
// copied verbatim from the original source, byte for byte, including
// whitespace and comments between them. Only modified, inserted, or
// removed nodes change the output, so a document with zero edits
// round-trips exactly and an edited document differs only inside the
// edited spans.
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(len(d.Source) + 256)

	cursor := 0
	for _, root := range d.Roots {
		if root.Span.Valid() {
			buf.Write(d.Source[cursor:root.Span.Start])
			d.emit(&buf, root)
			cursor = root.Span.End
		} else {
			d.emit(&buf, root)
		}
	}
	buf.Write(d.Source[cursor:])
	return buf.Bytes()
}

// emit writes one node. Clean nodes with a source span are copied; dirty
// lists interleave verbatim gap text between surviving children with the
// rendered form of inserted or modified ones.
func (d *Document) emit(buf *bytes.Buffer, n *Node) {
	if n.Raw != "" {
		buf.WriteString(n.Raw)
		return
	}
	if n.Span.Valid() && !n.Dirty() {
		buf.Write(d.Source[n.Span.Start:n.Span.End])
		return
	}
	switch n.Kind {
	case KindAtom, KindString:
		// Modified token: the new token replaces exactly the old span.
		buf.WriteString(n.Token)
	case KindList:
		d.emitList(buf, n)
	}
}

func (d *Document) emitList(buf *bytes.Buffer, n *Node) {
	if !n.Span.Valid() {
		// A list built entirely in memory; render flat. The editor
		// prefers Raw nodes with preformatted layout for anything
		// user-visible, so this is a fallback.
		buf.WriteByte('(')
		for i, c := range n.Children {
			if i > 0 {
				buf.WriteByte(' ')
			}
			d.emit(buf, c)
		}
		buf.WriteByte(')')
		return
	}

	// Walk the original span, substituting children in document order.
	cursor := n.Span.Start
	for _, c := range n.Children {
		if c.Span.Valid() {
			d.writeGap(buf, n, cursor, c.Span.Start)
			d.emit(buf, c)
			cursor = c.Span.End
			continue
		}
		// Inserted node: the editor bakes separator and indentation into
		// Raw; fall back to a single space for plain in-memory nodes.
		if c.Raw != "" {
			buf.WriteString(c.Raw)
		} else {
			buf.WriteByte(' ')
			d.emit(buf, c)
		}
	}
	d.writeGap(buf, n, cursor, n.Span.End)
}

// writeGap copies source bytes [from, to) minus any removed-child spans.
// Each removed span also swallows the whitespace run that led up to it so
// deletions do not leave blank indented lines behind.
func (d *Document) writeGap(buf *bytes.Buffer, n *Node, from, to int) {
	cursor := from
	for _, r := range n.removed {
		if r.End <= cursor || r.Start >= to {
			continue
		}
		start := r.Start
		for start > cursor && isSpace(d.Source[start-1]) {
			start--
		}
		buf.Write(d.Source[cursor:start])
		cursor = r.End
	}
	if cursor < to {
		buf.Write(d.Source[cursor:to])
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
