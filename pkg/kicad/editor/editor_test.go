package editor

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/schematic"
	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/sexp"
	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/symbols"
)

const baseSchematic = `(kicad_sch (version 20231120) (generator "eeschema")
  (uuid "f1f1f1f1-0000-0000-0000-000000000000")
  (paper "A4")
  (lib_symbols
    (symbol "Device:R"
      (symbol "R_1_1"
        (pin passive line (at 0 3.81 270) (length 1.27)
          (name "~" (effects (font (size 1.27 1.27))))
          (number "1" (effects (font (size 1.27 1.27))))
        )
        (pin passive line (at 0 -3.81 90) (length 1.27)
          (name "~" (effects (font (size 1.27 1.27))))
          (number "2" (effects (font (size 1.27 1.27))))
        )
      )
    )
  )
  (symbol (lib_id "Device:R") (at 100 100 0) (unit 1)
    (uuid "aaaa0000-0000-0000-0000-000000000001")
    (property "Reference" "R1" (at 102 99 0)
      (effects (font (size 1.27 1.27)))
    )
    (property "Value" "10k" (at 102 101 0)
      (effects (font (size 1.27 1.27)))
    )
  )
  (sheet_instances
    (path "/" (page "1"))
  )
)
`

const extLib = `(kicad_symbol_lib (version 20231120) (generator "kicad_symbol_editor")
  (symbol "C"
    (symbol "C_1_1"
      (pin passive line (at 0 3.81 270) (length 2.794)
        (name "~" (effects (font (size 1.27 1.27))))
        (number "1" (effects (font (size 1.27 1.27))))
      )
      (pin passive line (at 0 -3.81 90) (length 2.794)
        (name "~" (effects (font (size 1.27 1.27))))
        (number "2" (effects (font (size 1.27 1.27))))
      )
    )
  )
)
`

func newEditor(t *testing.T) *Editor {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Device.kicad_sym"), []byte(extLib), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := sexp.Parse([]byte(baseSchematic))
	if err != nil {
		t.Fatal(err)
	}
	ed, err := New(doc, symbols.NewCatalog([]string{dir}, nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	return ed
}

// assertInsertionLocality checks that after is before plus inserted
// content: every original byte survives in the common prefix and suffix.
func assertInsertionLocality(t *testing.T, before, after string) {
	t.Helper()
	if len(after) <= len(before) {
		t.Fatalf("output did not grow: %d -> %d", len(before), len(after))
	}
	p := 0
	for p < len(before) && before[p] == after[p] {
		p++
	}
	s := 0
	for s < len(before)-p && before[len(before)-1-s] == after[len(after)-1-s] {
		s++
	}
	if p+s < len(before) {
		t.Errorf("edit disturbed %d original bytes outside the insertion", len(before)-p-s)
	}
}

func TestEnsureDefinitionAlreadyEmbedded(t *testing.T) {
	ed := newEditor(t)
	before := string(ed.Bytes())
	if err := ed.EnsureDefinition("Device:R"); err != nil {
		t.Fatal(err)
	}
	if got := string(ed.Bytes()); got != before {
		t.Error("no-op embed changed the document")
	}
}

func TestEnsureDefinitionEmbedsFromLibrary(t *testing.T) {
	ed := newEditor(t)
	before := string(ed.Bytes())
	if err := ed.EnsureDefinition("Device:C"); err != nil {
		t.Fatal(err)
	}
	after := string(ed.Bytes())
	if !strings.Contains(after, `(symbol "Device:C"`) {
		t.Fatal("definition not embedded")
	}
	assertInsertionLocality(t, before, after)

	sch, err := ed.Schematic()
	if err != nil {
		t.Fatal(err)
	}
	cat := symbols.NewCatalog(nil, nil)
	if _, err := cat.Resolve(sch.Doc, "Device:C"); err != nil {
		t.Errorf("embedded definition unusable: %v", err)
	}
}

func TestEnsureDefinitionRejectsWithoutLibSymbols(t *testing.T) {
	doc, err := sexp.Parse([]byte("(kicad_sch (version 20231120)\n)\n"))
	if err != nil {
		t.Fatal(err)
	}
	ed, err := New(doc, symbols.NewCatalog(nil, nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	err = ed.EnsureDefinition("Device:R")
	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("err = %v, want RejectedError", err)
	}
}

func TestAddInstance(t *testing.T) {
	ed := newEditor(t)
	before := string(ed.Bytes())
	if err := ed.AddInstance("Device:C", "C1", "100n", 120, 100, 0); err != nil {
		t.Fatal(err)
	}
	after := string(ed.Bytes())
	assertInsertionLocality(t, before, after)

	sch, err := ed.Schematic()
	if err != nil {
		t.Fatal(err)
	}
	c1 := sch.GetSymbol("C1")
	if c1 == nil {
		t.Fatal("C1 not placed")
	}
	// The definition was embedded before the instance.
	if !strings.Contains(after, `(symbol "Device:C"`) {
		t.Error("definition not embedded alongside the instance")
	}
	if c1.Value() != "100n" || c1.Position.X != 120 {
		t.Errorf("C1 = %+v", c1)
	}
	// The instance lands before sheet_instances.
	if strings.Index(after, `(lib_id "Device:C")`) > strings.Index(after, "(sheet_instances") {
		t.Error("instance inserted after sheet_instances")
	}
}

func TestAddInstanceRejectsDuplicateReference(t *testing.T) {
	ed := newEditor(t)
	err := ed.AddInstance("Device:R", "R1", "", 50, 50, 0)
	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("err = %v, want RejectedError", err)
	}
}

func TestAddWire(t *testing.T) {
	ed := newEditor(t)
	before := string(ed.Bytes())
	if err := ed.AddWire(
		schematic.Position{X: 100, Y: 96.19},
		schematic.Position{X: 120, Y: 96.19},
	); err != nil {
		t.Fatal(err)
	}
	assertInsertionLocality(t, before, string(ed.Bytes()))

	sch, err := ed.Schematic()
	if err != nil {
		t.Fatal(err)
	}
	if len(sch.Wires) != 1 || len(sch.Wires[0].Points) != 2 {
		t.Fatalf("wires = %+v", sch.Wires)
	}
	if sch.Wires[0].UUID == "" {
		t.Error("wire has no uuid")
	}

	if err := ed.AddWire(schematic.Position{X: 0, Y: 0}); err == nil {
		t.Error("single-point wire accepted")
	}
}

func TestAddLabelKinds(t *testing.T) {
	ed := newEditor(t)
	if err := ed.AddLabel("SIG", schematic.LabelLocal, 10, 10, 0); err != nil {
		t.Fatal(err)
	}
	if err := ed.AddLabel("VCC", schematic.LabelGlobal, 20, 20, 0); err != nil {
		t.Fatal(err)
	}
	sch, err := ed.Schematic()
	if err != nil {
		t.Fatal(err)
	}
	if len(sch.Labels) != 2 {
		t.Fatalf("labels = %+v", sch.Labels)
	}
	byText := map[string]schematic.LabelKind{}
	for _, l := range sch.Labels {
		byText[l.Text] = l.Kind
	}
	if byText["SIG"] != schematic.LabelLocal || byText["VCC"] != schematic.LabelGlobal {
		t.Errorf("kinds = %v", byText)
	}
}

func TestSetPropertyPatchesValueTokenOnly(t *testing.T) {
	ed := newEditor(t)
	before := string(ed.Bytes())
	if err := ed.SetProperty("R1", "Value", "22k"); err != nil {
		t.Fatal(err)
	}
	after := string(ed.Bytes())
	if want := strings.Replace(before, `"10k"`, `"22k"`, 1); after != want {
		t.Error("patch touched bytes outside the value token")
	}
}

func TestSetPropertyAddsMissing(t *testing.T) {
	ed := newEditor(t)
	if err := ed.SetProperty("R1", "MPN", "RC0603"); err != nil {
		t.Fatal(err)
	}
	sch, err := ed.Schematic()
	if err != nil {
		t.Fatal(err)
	}
	if got := sch.GetSymbol("R1").PropertyValue("MPN"); got != "RC0603" {
		t.Errorf("MPN = %q", got)
	}
}

func TestSetPropertyUnknownReference(t *testing.T) {
	ed := newEditor(t)
	err := ed.SetProperty("R9", "Value", "1k")
	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("err = %v, want RejectedError", err)
	}
}

func TestRemoveInstance(t *testing.T) {
	ed := newEditor(t)
	if err := ed.RemoveInstance("R1"); err != nil {
		t.Fatal(err)
	}
	after := string(ed.Bytes())
	if strings.Contains(after, `"R1"`) {
		t.Error("R1 still present")
	}
	// The definition survives removal of its last instance.
	if !strings.Contains(after, `(symbol "Device:R"`) {
		t.Error("embedded definition was dropped")
	}
	if strings.Contains(after, "\n\n\n") {
		t.Error("removal left blank lines")
	}
}

func TestConnectPins(t *testing.T) {
	ed := newEditor(t)
	if err := ed.AddInstance("Device:C", "C1", "", 120, 100, 0); err != nil {
		t.Fatal(err)
	}
	// R1 pin 2 is at (100, 96.19); C1 pin 2 at (120, 96.19): straight.
	if err := ed.ConnectPins("R1", "2", "C1", "2"); err != nil {
		t.Fatal(err)
	}
	sch, err := ed.Schematic()
	if err != nil {
		t.Fatal(err)
	}
	if len(sch.Wires) != 1 || len(sch.Wires[0].Points) != 2 {
		t.Fatalf("wires = %+v", sch.Wires)
	}

	// R1 pin 1 (100, 103.81) to C1 pin 2 (120, 96.19): L bend.
	if err := ed.ConnectPins("R1", "1", "C1", "2"); err != nil {
		t.Fatal(err)
	}
	sch, err = ed.Schematic()
	if err != nil {
		t.Fatal(err)
	}
	if len(sch.Wires) != 2 || len(sch.Wires[1].Points) != 3 {
		t.Fatalf("wires = %+v", sch.Wires)
	}
}

func TestConnectToNet(t *testing.T) {
	ed := newEditor(t)
	// R1 pin 2 points down (effective angle 90 in pin terms is up; pin 2
	// sits at (100, 96.19) with angle 90).
	if err := ed.ConnectToNet("R1", "2", "GND", schematic.LabelGlobal); err != nil {
		t.Fatal(err)
	}
	sch, err := ed.Schematic()
	if err != nil {
		t.Fatal(err)
	}
	if len(sch.Wires) != 1 {
		t.Fatalf("wires = %+v", sch.Wires)
	}
	pts := sch.Wires[0].Points
	if pts[0].X != 100 || pts[0].Y != 96.19 {
		t.Errorf("stub starts at %+v", pts[0])
	}
	dx, dy := pts[1].X-pts[0].X, pts[1].Y-pts[0].Y
	if dist := dx*dx + dy*dy; dist != stubLength*stubLength {
		t.Errorf("stub length² = %v", dist)
	}
	if len(sch.Labels) != 1 || sch.Labels[0].Text != "GND" {
		t.Fatalf("labels = %+v", sch.Labels)
	}
	if sch.Labels[0].Position != pts[1] {
		t.Errorf("label at %+v, stub end %+v", sch.Labels[0].Position, pts[1])
	}
}

func TestOpenAndSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.kicad_sch")
	if err := os.WriteFile(path, []byte(baseSchematic), 0o644); err != nil {
		t.Fatal(err)
	}
	ed, err := Open(path, symbols.NewCatalog(nil, nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := ed.Save(path); err != nil {
		t.Fatal(err)
	}
	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != baseSchematic {
		t.Error("zero-edit save is not byte-identical")
	}
}
