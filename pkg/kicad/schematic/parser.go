package schematic

import (
	"fmt"

	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/sexp"
)

// Load reads and parses a schematic file from disk.
func Load(path string) (*Schematic, error) {
	doc, err := sexp.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc)
}

// Parse parses schematic text.
func Parse(source []byte) (*Schematic, error) {
	doc, err := sexp.Parse(source)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc)
}

// FromDocument builds the typed view over an already-parsed document.
func FromDocument(doc *sexp.Document) (*Schematic, error) {
	root := doc.Root()
	if root.Tag() != "kicad_sch" {
		return nil, fmt.Errorf("not a KiCad schematic: expected 'kicad_sch' root, got %q", root.Tag())
	}

	sch := &Schematic{Doc: doc}

	if versionNode, ok := root.Find("version"); ok {
		sch.Version, _ = sexp.GetInt(versionNode, 1)
	}
	if genNode, ok := root.Find("generator"); ok {
		sch.Generator, _ = sexp.GetString(genNode, 1)
	}
	if uuidNode, ok := root.Find("uuid"); ok {
		sch.UUID, _ = sexp.GetUUID(uuidNode)
	}
	if paperNode, ok := root.Find("paper"); ok {
		sch.Paper, _ = sexp.GetString(paperNode, 1)
	}

	sch.Symbols = parseSymbols(root)
	sch.Wires = parseWires(root)
	sch.Junctions = parseJunctions(root)
	sch.NoConnects = parseNoConnects(root)
	sch.Labels = parseLabels(root)
	sch.Sheets = parseSheets(root)

	return sch, nil
}

// parseSymbols extracts the placed instances. Top-level (symbol ...) nodes
// are instances; definitions live inside (lib_symbols ...) and are handled
// by the symbols package.
func parseSymbols(root *sexp.Node) []Symbol {
	nodes := root.FindAll("symbol")
	symbols := make([]Symbol, 0, len(nodes))
	for _, node := range nodes {
		symbols = append(symbols, parseSymbol(node))
	}
	return symbols
}

func parseSymbol(node *sexp.Node) Symbol {
	sym := Symbol{Unit: 1, Node: node}

	if libNode, ok := node.Find("lib_id"); ok {
		sym.LibID, _ = sexp.GetString(libNode, 1)
	}
	if atNode, ok := node.Find("at"); ok {
		pos, _ := sexp.GetPosition(atNode)
		sym.Position = pos.Position
		sym.Angle = pos.Angle
	}
	if mirrorNode, ok := node.Find("mirror"); ok {
		sym.Mirror, _ = sexp.GetString(mirrorNode, 1)
	}
	if unitNode, ok := node.Find("unit"); ok {
		sym.Unit, _ = sexp.GetInt(unitNode, 1)
	}
	if uuidNode, ok := node.Find("uuid"); ok {
		sym.UUID, _ = sexp.GetUUID(uuidNode)
	}
	for _, pn := range node.FindAll("property") {
		if prop, err := sexp.GetProperty(pn); err == nil {
			sym.Properties = append(sym.Properties, prop)
		}
	}

	return sym
}

func parseWires(root *sexp.Node) []Wire {
	nodes := root.FindAll("wire")
	wires := make([]Wire, 0, len(nodes))
	for _, wn := range nodes {
		wire := Wire{Node: wn}
		if ptsNode, ok := wn.Find("pts"); ok {
			for _, xy := range ptsNode.FindAll("xy") {
				if pos, err := sexp.GetPositionXY(xy); err == nil {
					wire.Points = append(wire.Points, pos)
				}
			}
		}
		if uuidNode, ok := wn.Find("uuid"); ok {
			wire.UUID, _ = sexp.GetUUID(uuidNode)
		}
		wires = append(wires, wire)
	}
	return wires
}

func parseJunctions(root *sexp.Node) []Junction {
	nodes := root.FindAll("junction")
	junctions := make([]Junction, 0, len(nodes))
	for _, jn := range nodes {
		junc := Junction{Node: jn}
		if atNode, ok := jn.Find("at"); ok {
			pos, _ := sexp.GetPosition(atNode)
			junc.Position = pos.Position
		}
		if uuidNode, ok := jn.Find("uuid"); ok {
			junc.UUID, _ = sexp.GetUUID(uuidNode)
		}
		junctions = append(junctions, junc)
	}
	return junctions
}

func parseNoConnects(root *sexp.Node) []NoConnect {
	nodes := root.FindAll("no_connect")
	ncs := make([]NoConnect, 0, len(nodes))
	for _, ncn := range nodes {
		nc := NoConnect{Node: ncn}
		if atNode, ok := ncn.Find("at"); ok {
			pos, _ := sexp.GetPosition(atNode)
			nc.Position = pos.Position
		}
		if uuidNode, ok := ncn.Find("uuid"); ok {
			nc.UUID, _ = sexp.GetUUID(uuidNode)
		}
		ncs = append(ncs, nc)
	}
	return ncs
}

// parseLabels collects local, global, and hierarchical labels into one
// list tagged by kind.
func parseLabels(root *sexp.Node) []Label {
	var labels []Label
	for _, spec := range []struct {
		tag  string
		kind LabelKind
	}{
		{"label", LabelLocal},
		{"global_label", LabelGlobal},
		{"hierarchical_label", LabelHierarchical},
	} {
		for _, ln := range root.FindAll(spec.tag) {
			label := Label{Kind: spec.kind, Node: ln}
			label.Text, _ = sexp.GetString(ln, 1)
			if atNode, ok := ln.Find("at"); ok {
				pos, _ := sexp.GetPosition(atNode)
				label.Position = pos.Position
				label.Angle = pos.Angle
			}
			if uuidNode, ok := ln.Find("uuid"); ok {
				label.UUID, _ = sexp.GetUUID(uuidNode)
			}
			labels = append(labels, label)
		}
	}
	return labels
}

func parseSheets(root *sexp.Node) []Sheet {
	nodes := root.FindAll("sheet")
	sheets := make([]Sheet, 0, len(nodes))
	for _, sn := range nodes {
		sheet := Sheet{Node: sn}
		if atNode, ok := sn.Find("at"); ok {
			pos, _ := sexp.GetPosition(atNode)
			sheet.Position = pos.Position
		}
		if uuidNode, ok := sn.Find("uuid"); ok {
			sheet.UUID, _ = sexp.GetUUID(uuidNode)
		}
		for _, pn := range sn.FindAll("property") {
			prop, err := sexp.GetProperty(pn)
			if err != nil {
				continue
			}
			switch prop.Key {
			case "Sheetname", "Sheet name":
				sheet.Name = prop.Value
			case "Sheetfile", "Sheet file":
				sheet.File = prop.Value
			}
		}
		for _, pn := range sn.FindAll("pin") {
			pin := SheetPin{}
			pin.Name, _ = sexp.GetString(pn, 1)
			pin.Shape, _ = sexp.GetString(pn, 2)
			if atNode, ok := pn.Find("at"); ok {
				pos, _ := sexp.GetPosition(atNode)
				pin.Position = pos.Position
			}
			sheet.Pins = append(sheet.Pins, pin)
		}
		sheets = append(sheets, sheet)
	}
	return sheets
}
