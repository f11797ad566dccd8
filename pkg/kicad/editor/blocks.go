package editor

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/schematic"
	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/sexp"
)

// The block builders render the text spliced into the document. Each
// block starts with a newline and carries its own indentation, matching
// the two-space style the schematic writer uses, so the surrounding
// bytes never need reflowing.

func instanceBlock(libID, reference, value string, x, y, rotation float64) string {
	fx, fy := sexp.FormatFloat(x), sexp.FormatFloat(y)
	var b strings.Builder
	fmt.Fprintf(&b, "\n  (symbol (lib_id %s) (at %s %s %s) (unit 1)\n",
		sexp.Quote(libID), fx, fy, sexp.FormatFloat(rotation))
	b.WriteString("    (in_bom yes) (on_board yes) (dnp no)\n")
	fmt.Fprintf(&b, "    (uuid %s)\n", sexp.Quote(uuid.NewString()))
	fmt.Fprintf(&b, "    (property \"Reference\" %s (at %s %s 0)\n      (effects (font (size 1.27 1.27)))\n    )\n",
		sexp.Quote(reference), fx, sexp.FormatFloat(y-2.54))
	fmt.Fprintf(&b, "    (property \"Value\" %s (at %s %s 0)\n      (effects (font (size 1.27 1.27)))\n    )\n",
		sexp.Quote(value), fx, sexp.FormatFloat(y+2.54))
	fmt.Fprintf(&b, "    (property \"Footprint\" \"\" (at %s %s 0)\n      (effects (font (size 1.27 1.27)) (hide yes))\n    )\n", fx, fy)
	fmt.Fprintf(&b, "    (property \"Datasheet\" \"~\" (at %s %s 0)\n      (effects (font (size 1.27 1.27)) (hide yes))\n    )\n", fx, fy)
	b.WriteString("  )")
	return b.String()
}

func propertyBlock(key, value string, x, y float64) string {
	return fmt.Sprintf("\n    (property %s %s (at %s %s 0)\n      (effects (font (size 1.27 1.27)))\n    )",
		sexp.Quote(key), sexp.Quote(value), sexp.FormatFloat(x), sexp.FormatFloat(y))
}

func wireBlock(points []schematic.Position) string {
	var pts strings.Builder
	for i, p := range points {
		if i > 0 {
			pts.WriteByte(' ')
		}
		fmt.Fprintf(&pts, "(xy %s %s)", sexp.FormatFloat(p.X), sexp.FormatFloat(p.Y))
	}
	return fmt.Sprintf("\n  (wire (pts %s)\n    (stroke (width 0) (type default))\n    (uuid %s)\n  )",
		pts.String(), sexp.Quote(uuid.NewString()))
}

func labelBlock(text string, kind schematic.LabelKind, x, y, angle float64) string {
	shape := ""
	if kind != schematic.LabelLocal {
		shape = " (shape input)"
	}
	return fmt.Sprintf("\n  (%s %s%s (at %s %s %s)\n    (effects (font (size 1.27 1.27)) (justify left bottom))\n    (uuid %s)\n  )",
		kind.String(), sexp.Quote(text), shape,
		sexp.FormatFloat(x), sexp.FormatFloat(y), sexp.FormatFloat(angle),
		sexp.Quote(uuid.NewString()))
}

func junctionBlock(x, y float64) string {
	return fmt.Sprintf("\n  (junction (at %s %s) (diameter 0) (color 0 0 0 0)\n    (uuid %s)\n  )",
		sexp.FormatFloat(x), sexp.FormatFloat(y), sexp.Quote(uuid.NewString()))
}

func noConnectBlock(x, y float64) string {
	return fmt.Sprintf("\n  (no_connect (at %s %s)\n    (uuid %s)\n  )",
		sexp.FormatFloat(x), sexp.FormatFloat(y), sexp.Quote(uuid.NewString()))
}

// indentBlock re-homes a library-file block under the lib_symbols
// section: the first line lands at depth two, every following line keeps
// its relative indentation shifted by extra spaces.
func indentBlock(block string, extra int) string {
	pad := strings.Repeat(" ", extra)
	return "\n" + pad + "  " + strings.ReplaceAll(block, "\n", "\n"+pad)
}
