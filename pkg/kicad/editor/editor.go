// Package editor performs structural schematic edits over the parse
// tree. Every operation leaves unrelated text byte-for-byte unchanged:
// insertions are preformatted blocks spliced between siblings, patches
// replace single value tokens in place.
package editor

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/schematic"
	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/sexp"
	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/symbols"
)

// RejectedError reports an edit that was refused before touching the
// document. The document is unchanged whenever one is returned.
type RejectedError struct {
	Op     string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Op, e.Reason)
}

// Editor owns one schematic document and applies edits to it. After each
// successful edit the document is re-parsed from its own serialized form,
// so later edits and lookups see earlier ones. Not safe for concurrent
// use.
type Editor struct {
	doc     *sexp.Document
	catalog *symbols.Catalog
	res     *schematic.Resolver
	log     *zap.Logger

	sch *schematic.Schematic // lazy typed view, dropped on each edit
}

// New wraps an already-parsed document. A nil logger is replaced with
// zap.NewNop().
func New(doc *sexp.Document, catalog *symbols.Catalog, log *zap.Logger) (*Editor, error) {
	if log == nil {
		log = zap.NewNop()
	}
	root := doc.Root()
	if root == nil || root.Tag() != "kicad_sch" {
		return nil, fmt.Errorf("not a KiCad schematic document")
	}
	return &Editor{
		doc:     doc,
		catalog: catalog,
		res:     schematic.NewResolver(catalog, log),
		log:     log,
	}, nil
}

// Open loads a schematic file into a new editor.
func Open(path string, catalog *symbols.Catalog, log *zap.Logger) (*Editor, error) {
	doc, err := sexp.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return New(doc, catalog, log)
}

// Bytes serializes the current document.
func (e *Editor) Bytes() []byte { return e.doc.Bytes() }

// Save writes the current document to path.
func (e *Editor) Save(path string) error {
	return os.WriteFile(path, e.Bytes(), 0o644)
}

// Schematic returns the typed view of the current document state.
func (e *Editor) Schematic() (*schematic.Schematic, error) {
	if e.sch != nil {
		return e.sch, nil
	}
	sch, err := schematic.FromDocument(e.doc)
	if err != nil {
		return nil, err
	}
	e.sch = sch
	return sch, nil
}

// commit re-parses the mutated document so the next operation sees a
// clean span-annotated tree. The re-parse also acts as a self-check: a
// malformed emit is a bug, surfaced here instead of in the saved file.
func (e *Editor) commit() error {
	out := e.doc.Bytes()
	doc, err := sexp.Parse(out)
	if err != nil {
		return fmt.Errorf("internal: edited document no longer parses: %w", err)
	}
	e.doc = doc
	e.sch = nil
	return nil
}

// EnsureDefinition makes sure libID's definition is embedded in the
// document's lib_symbols section, copying it (and its extends parent)
// from the library files when absent. Embedding keeps the schematic
// interpretable without the libraries installed.
func (e *Editor) EnsureDefinition(libID string) error {
	root := e.doc.Root()
	libSyms, ok := root.Find("lib_symbols")
	if !ok {
		return &RejectedError{Op: "insert definition", Reason: "document has no lib_symbols section"}
	}
	for _, sym := range libSyms.FindAll("symbol") {
		if name, err := sexp.GetString(sym, 1); err == nil && name == libID {
			return nil
		}
	}
	blocks, err := e.catalog.ExtractBlocks(libID)
	if err != nil {
		return err
	}
	for _, block := range blocks {
		libSyms.InsertChild(len(libSyms.Children), sexp.NewRaw(indentBlock(block, 2)))
	}
	e.log.Info("embedded symbol definition", zap.String("lib_id", libID), zap.Int("blocks", len(blocks)))
	return e.commit()
}

// AddInstance places a new component. The definition is embedded first
// if needed. Duplicate reference designators are rejected; power symbol
// references are exempt from uniqueness.
func (e *Editor) AddInstance(libID, reference, value string, x, y, rotation float64) error {
	sch, err := e.Schematic()
	if err != nil {
		return err
	}
	if existing := sch.GetSymbol(reference); existing != nil && !existing.IsPower() {
		return &RejectedError{
			Op:     "add instance",
			Reason: fmt.Sprintf("reference %s already placed", reference),
		}
	}
	if err := e.EnsureDefinition(libID); err != nil {
		return err
	}
	_, symName, err := symbols.SplitLibID(libID)
	if err != nil {
		return err
	}
	if value == "" {
		value = symName
	}
	e.insertTopLevel(instanceBlock(libID, reference, value, x, y, rotation))
	e.log.Info("placed instance",
		zap.String("reference", reference),
		zap.String("lib_id", libID),
		zap.Float64("x", x),
		zap.Float64("y", y))
	return e.commit()
}

// AddWire routes a polyline wire through the given points.
func (e *Editor) AddWire(points ...schematic.Position) error {
	if len(points) < 2 {
		return &RejectedError{Op: "add wire", Reason: "a wire needs at least two points"}
	}
	e.insertTopLevel(wireBlock(points))
	return e.commit()
}

// AddLabel attaches a net label at a position. kind selects local,
// global, or hierarchical.
func (e *Editor) AddLabel(text string, kind schematic.LabelKind, x, y, angle float64) error {
	if text == "" {
		return &RejectedError{Op: "add label", Reason: "empty label text"}
	}
	e.insertTopLevel(labelBlock(text, kind, x, y, angle))
	return e.commit()
}

// AddJunction marks an explicit wire join.
func (e *Editor) AddJunction(x, y float64) error {
	e.insertTopLevel(junctionBlock(x, y))
	return e.commit()
}

// AddNoConnect marks a deliberately unconnected pin.
func (e *Editor) AddNoConnect(x, y float64) error {
	e.insertTopLevel(noConnectBlock(x, y))
	return e.commit()
}

// SetProperty patches one property value of a placed instance. Only the
// value token changes; position, effects, and everything else keep their
// original bytes. A missing property is added after the last existing
// one.
func (e *Editor) SetProperty(reference, key, value string) error {
	sch, err := e.Schematic()
	if err != nil {
		return err
	}
	sym := sch.GetSymbol(reference)
	if sym == nil {
		return &RejectedError{Op: "set property", Reason: fmt.Sprintf("symbol %s not found", reference)}
	}
	if prop, ok := sym.Property(key); ok {
		valNode, ok := prop.Node.Arg(2)
		if !ok {
			return fmt.Errorf("property %q on %s has no value token", key, reference)
		}
		valNode.SetToken(sexp.Quote(value))
	} else {
		idx := lastPropertyIndex(sym.Node)
		sym.Node.InsertChild(idx+1, sexp.NewRaw(propertyBlock(key, value, sym.Position.X, sym.Position.Y)))
	}
	e.log.Info("patched property",
		zap.String("reference", reference),
		zap.String("key", key),
		zap.String("value", value))
	return e.commit()
}

// RemoveInstance deletes a placed component. The definition stays
// embedded; other instances may still use it.
func (e *Editor) RemoveInstance(reference string) error {
	sch, err := e.Schematic()
	if err != nil {
		return err
	}
	sym := sch.GetSymbol(reference)
	if sym == nil {
		return &RejectedError{Op: "remove instance", Reason: fmt.Sprintf("symbol %s not found", reference)}
	}
	root := e.doc.Root()
	idx := root.IndexOf(sym.Node)
	if idx < 0 {
		return fmt.Errorf("instance %s is not a top-level element", reference)
	}
	root.RemoveChild(idx)
	e.log.Info("removed instance", zap.String("reference", reference))
	return e.commit()
}

// ConnectPins routes a wire between two component pins. Aligned pins get
// a straight segment; otherwise the route is an L bend, horizontal leg
// first.
func (e *Editor) ConnectPins(refA, pinA, refB, pinB string) error {
	sch, err := e.Schematic()
	if err != nil {
		return err
	}
	a, err := e.res.PinPosition(sch, refA, pinA)
	if err != nil {
		return err
	}
	b, err := e.res.PinPosition(sch, refB, pinB)
	if err != nil {
		return err
	}
	start := schematic.Position{X: a.X, Y: a.Y}
	end := schematic.Position{X: b.X, Y: b.Y}
	if start.X == end.X || start.Y == end.Y {
		return e.AddWire(start, end)
	}
	corner := schematic.Position{X: end.X, Y: start.Y}
	return e.AddWire(start, corner, end)
}

// stubLength is one 0.1in grid step, the wire stub drawn from a pin so a
// net label has something to attach to.
const stubLength = 2.54

// ConnectToNet attaches a pin to a named net: a short stub wire leaves
// the pin in its outward direction and a label is placed at the stub's
// end.
func (e *Editor) ConnectToNet(reference, pin, netName string, kind schematic.LabelKind) error {
	sch, err := e.Schematic()
	if err != nil {
		return err
	}
	loc, err := e.res.PinPosition(sch, reference, pin)
	if err != nil {
		return err
	}
	end := schematic.Position{X: loc.X, Y: loc.Y}
	var labelAngle float64
	switch loc.CardinalDirection() {
	case "right":
		end.X += stubLength
	case "left":
		end.X -= stubLength
		labelAngle = 180
	case "up":
		end.Y += stubLength
		labelAngle = 90
	case "down":
		end.Y -= stubLength
		labelAngle = 270
	}
	if err := e.AddWire(schematic.Position{X: loc.X, Y: loc.Y}, end); err != nil {
		return err
	}
	if err := e.AddLabel(netName, kind, end.X, end.Y, labelAngle); err != nil {
		return err
	}
	e.log.Info("connected pin to net",
		zap.String("reference", reference),
		zap.String("pin", pin),
		zap.String("net", netName))
	return nil
}

// insertTopLevel splices a preformatted block into the root list, before
// the sheet_instances section when present, else at the end.
func (e *Editor) insertTopLevel(block string) {
	root := e.doc.Root()
	idx := len(root.Children)
	if si, ok := root.Find("sheet_instances"); ok {
		idx = root.IndexOf(si)
	}
	root.InsertChild(idx, sexp.NewRaw(block))
}

func lastPropertyIndex(sym *sexp.Node) int {
	last := 0
	for i, c := range sym.Children {
		if c.Tag() == "property" {
			last = i
		}
	}
	return last
}
