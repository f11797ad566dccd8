package sexp

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const miniSchematic = `(kicad_sch
	(version 20231120)
	(generator "eeschema")
	(uuid "862335ee-c981-4fe1-9eb9-84db19301dd4")
	(paper "A4")
	(lib_symbols)
	(wire (pts (xy 100 50) (xy 150 50))
		(stroke (width 0) (type default))
		(uuid "wire-1")
	)
	(sheet_instances
		(path "/" (page "1"))
	)
)
`

func TestParseRoundTrip(t *testing.T) {
	doc, err := Parse([]byte(miniSchematic))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	out := doc.Bytes()
	if !bytes.Equal(out, []byte(miniSchematic)) {
		t.Errorf("round trip changed the document:\n%s", out)
	}
}

func TestParseSpans(t *testing.T) {
	doc, err := Parse([]byte(miniSchematic))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root := doc.Root()
	if root == nil {
		t.Fatal("no root node")
	}
	if root.Tag() != "kicad_sch" {
		t.Errorf("expected root tag kicad_sch, got %q", root.Tag())
	}
	if root.Span.Start != 0 || root.Span.End != len(miniSchematic)-1 {
		t.Errorf("root span [%d,%d) does not cover the document", root.Span.Start, root.Span.End)
	}
	wire, ok := root.Find("wire")
	if !ok {
		t.Fatal("wire node not found")
	}
	got := miniSchematic[wire.Span.Start:wire.Span.End]
	if !strings.HasPrefix(got, "(wire") || !strings.HasSuffix(got, ")") {
		t.Errorf("wire span covers %q", got)
	}
}

func TestParseMalformed(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"unbalanced open", `(kicad_sch (version 20231120)`},
		{"stray close", `(kicad_sch))`},
		{"unterminated string", `(kicad_sch (generator "eeschema`},
		{"empty", ``},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.input))
			var merr *MalformedError
			if !errors.As(err, &merr) {
				t.Errorf("expected MalformedError, got %v", err)
			}
		})
	}
}

func TestStringEscapes(t *testing.T) {
	input := `(label "line\nbreak \"quoted\"" (at 0 0 0))`
	doc, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	text, err := GetString(doc.Root(), 1)
	if err != nil {
		t.Fatalf("GetString failed: %v", err)
	}
	if text != "line\nbreak \"quoted\"" {
		t.Errorf("unexpected decoded string: %q", text)
	}
	if !bytes.Equal(doc.Bytes(), []byte(input)) {
		t.Error("escaped string did not round trip")
	}
}

func TestQuote(t *testing.T) {
	in := "10k \"precision\"\nline"
	q := Quote(in)
	doc, err := Parse([]byte("(value " + q + ")"))
	if err != nil {
		t.Fatalf("Parse of quoted value failed: %v", err)
	}
	got, _ := GetString(doc.Root(), 1)
	if got != in {
		t.Errorf("Quote/parse mismatch: %q != %q", got, in)
	}
}

func TestSetTokenLocality(t *testing.T) {
	doc, err := Parse([]byte(miniSchematic))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	paper, ok := doc.Root().Find("paper")
	if !ok {
		t.Fatal("paper node not found")
	}
	val, _ := paper.Arg(1)
	val.SetToken(`"A3"`)

	out := string(doc.Bytes())
	if !strings.Contains(out, `(paper "A3")`) {
		t.Errorf("paper token not replaced:\n%s", out)
	}
	// Every byte outside the replaced token must be untouched.
	want := strings.Replace(miniSchematic, `(paper "A4")`, `(paper "A3")`, 1)
	if out != want {
		t.Errorf("edit was not local:\n%s", out)
	}
}

func TestInsertRawChild(t *testing.T) {
	doc, err := Parse([]byte(miniSchematic))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root := doc.Root()
	sheets, _ := root.Find("sheet_instances")
	idx := root.IndexOf(sheets)
	root.InsertChild(idx, NewRaw("\n\t(junction (at 150 50) (diameter 0))"))

	out := string(doc.Bytes())
	if !strings.Contains(out, "(junction (at 150 50) (diameter 0))") {
		t.Errorf("inserted node missing:\n%s", out)
	}
	if !strings.Contains(out, "(sheet_instances") {
		t.Error("sheet_instances lost during insert")
	}
	// Prefix before the insertion point must be identical.
	wirePos := strings.Index(out, "(wire")
	if out[:wirePos] != miniSchematic[:strings.Index(miniSchematic, "(wire")] {
		t.Error("bytes before the insertion point changed")
	}
}

func TestRemoveChild(t *testing.T) {
	doc, err := Parse([]byte(miniSchematic))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root := doc.Root()
	wire, _ := root.Find("wire")
	root.RemoveChild(root.IndexOf(wire))

	out := string(doc.Bytes())
	if strings.Contains(out, "(wire") {
		t.Errorf("wire still present after removal:\n%s", out)
	}
	if strings.Contains(out, "\n\n\t(sheet_instances") {
		t.Errorf("removal left a blank line behind:\n%s", out)
	}
	if !strings.Contains(out, "(lib_symbols)") || !strings.Contains(out, "(sheet_instances") {
		t.Error("removal damaged sibling nodes")
	}
}

func TestFindAll(t *testing.T) {
	input := `(root (pin "1") (pin "2") (other) (pin "3"))`
	doc, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	pins := doc.Root().FindAll("pin")
	if len(pins) != 3 {
		t.Fatalf("expected 3 pins, got %d", len(pins))
	}
	last, _ := GetString(pins[2], 1)
	if last != "3" {
		t.Errorf("expected pin 3 last, got %q", last)
	}
}

func TestComments(t *testing.T) {
	input := "(kicad_sch # trailing comment\n\t(version 20231120)\n)\n"
	doc, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !bytes.Equal(doc.Bytes(), []byte(input)) {
		t.Error("comment did not survive round trip")
	}
}
