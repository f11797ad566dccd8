package sexp

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// documentLexer tokenizes the fully-parenthesized KiCad grammar. Byte
// offsets from the lexer drive the span annotations on the tree.
var documentLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Atom", Pattern: `[^()"\s]+`},
})

var (
	symLParen = documentLexer.Symbols()["LParen"]
	symRParen = documentLexer.Symbols()["RParen"]
	symString = documentLexer.Symbols()["String"]
	symAtom   = documentLexer.Symbols()["Atom"]
	symSpace  = documentLexer.Symbols()["Whitespace"]
	symComm   = documentLexer.Symbols()["Comment"]
)

// MalformedError reports a structural failure in the document text:
// unbalanced parentheses, an unterminated string, or a missing required
// section. Offset is the byte position where parsing gave up.
type MalformedError struct {
	Reason string
	Offset int
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed document at byte %d: %s", e.Offset, e.Reason)
}

// Document is a parsed schematic or library file: the original bytes plus
// the span-annotated tree over them. Roots is the list of top-level nodes
// (a well-formed file has exactly one).
type Document struct {
	Source []byte
	Roots  []*Node
}

// Root returns the single top-level list of the document.
func (d *Document) Root() *Node {
	if len(d.Roots) == 0 {
		return nil
	}
	return d.Roots[0]
}

// ParseFile reads and parses a document from disk.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse builds the span-annotated tree for the given text.
func Parse(source []byte) (*Document, error) {
	lx, err := documentLexer.Lex("", strings.NewReader(string(source)))
	if err != nil {
		return nil, &MalformedError{Reason: err.Error()}
	}

	doc := &Document{Source: source}
	var stack []*Node
	push := func(n *Node) {
		if len(stack) == 0 {
			doc.Roots = append(doc.Roots, n)
		} else {
			top := stack[len(stack)-1]
			top.Children = append(top.Children, n)
		}
	}

	for {
		tok, err := lx.Next()
		if err != nil {
			// The lexer fails on input no rule matches; an unterminated
			// string is the common case since '"' alone matches nothing.
			return nil, &MalformedError{Reason: err.Error(), Offset: lexErrOffset(err, len(source))}
		}
		if tok.EOF() {
			break
		}
		switch tok.Type {
		case symSpace, symComm:
			continue
		case symLParen:
			n := &Node{Kind: KindList, Span: Span{Start: tok.Pos.Offset, End: -1}}
			push(n)
			stack = append(stack, n)
		case symRParen:
			if len(stack) == 0 {
				return nil, &MalformedError{Reason: "unexpected ')'", Offset: tok.Pos.Offset}
			}
			top := stack[len(stack)-1]
			top.Span.End = tok.Pos.Offset + 1
			stack = stack[:len(stack)-1]
		case symString:
			push(&Node{
				Kind:  KindString,
				Token: tok.Value,
				Span:  Span{Start: tok.Pos.Offset, End: tok.Pos.Offset + len(tok.Value)},
			})
		case symAtom:
			push(&Node{
				Kind:  KindAtom,
				Token: tok.Value,
				Span:  Span{Start: tok.Pos.Offset, End: tok.Pos.Offset + len(tok.Value)},
			})
		}
	}

	if len(stack) != 0 {
		open := stack[len(stack)-1]
		return nil, &MalformedError{Reason: "unbalanced parentheses: list never closed", Offset: open.Span.Start}
	}
	if len(doc.Roots) == 0 {
		return nil, &MalformedError{Reason: "empty document"}
	}
	return doc, nil
}

// lexErrOffset pulls the byte offset out of a participle lexer error.
func lexErrOffset(err error, max int) int {
	type positioned interface {
		Position() lexer.Position
	}
	if pe, ok := err.(positioned); ok {
		if off := pe.Position().Offset; off >= 0 && off <= max {
			return off
		}
	}
	return 0
}
