// Package schematic provides a typed view over parsed KiCad schematic
// documents (.kicad_sch) plus pin geometry resolution for placed symbols.
package schematic

import (
	"strings"

	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/sexp"
)

// Re-export shared coordinate types for convenience.
type Position = sexp.Position
type PositionAngle = sexp.PositionAngle
type Property = sexp.Property

// LabelKind distinguishes the three KiCad label flavors. Global labels
// propagate connectivity across hierarchical sheets; the others do not.
type LabelKind int

const (
	LabelLocal LabelKind = iota
	LabelGlobal
	LabelHierarchical
)

func (k LabelKind) String() string {
	switch k {
	case LabelGlobal:
		return "global_label"
	case LabelHierarchical:
		return "hierarchical_label"
	default:
		return "label"
	}
}

// Schematic is the typed view of one schematic document. Every element
// keeps a pointer to its backing tree node so edits can address it.
type Schematic struct {
	Doc *sexp.Document

	Version   int
	Generator string
	UUID      string
	Paper     string

	Symbols    []Symbol
	Wires      []Wire
	Junctions  []Junction
	NoConnects []NoConnect
	Labels     []Label
	Sheets     []Sheet
}

// Symbol is a placed instance of a library symbol.
type Symbol struct {
	LibID      string
	Position   Position
	Angle      float64
	Mirror     string // "x", "y", or empty
	Unit       int
	UUID       string
	Properties []Property

	Node *sexp.Node
}

// Reference returns the instance's reference designator ("R1").
func (s *Symbol) Reference() string {
	return s.PropertyValue("Reference")
}

// Value returns the Value property ("10k").
func (s *Symbol) Value() string {
	return s.PropertyValue("Value")
}

// PropertyValue returns a named property value or "".
func (s *Symbol) PropertyValue(key string) string {
	for _, p := range s.Properties {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

// Property returns the named property with its backing node.
func (s *Symbol) Property(key string) (Property, bool) {
	for _, p := range s.Properties {
		if p.Key == key {
			return p, true
		}
	}
	return Property{}, false
}

// IsPower reports whether the instance is a power symbol. Power symbols
// carry '#'-prefixed references and are excluded from connectivity
// accounting and reference uniqueness.
func (s *Symbol) IsPower() bool {
	return strings.HasPrefix(s.Reference(), "#")
}

// Wire is a routed polyline with at least two points.
type Wire struct {
	Points []Position
	UUID   string

	Node *sexp.Node
}

// Junction marks an explicit wire join.
type Junction struct {
	Position Position
	UUID     string

	Node *sexp.Node
}

// NoConnect marks a deliberately unconnected pin.
type NoConnect struct {
	Position Position
	UUID     string

	Node *sexp.Node
}

// Label attaches a net name to whatever geometry touches it.
type Label struct {
	Text     string
	Kind     LabelKind
	Position Position
	Angle    float64
	UUID     string

	Node *sexp.Node
}

// Sheet is a hierarchical reference to a child schematic file.
type Sheet struct {
	Name     string
	File     string // path relative to the parent document's directory
	Position Position
	UUID     string
	Pins     []SheetPin

	Node *sexp.Node
}

// SheetPin is a hierarchical connection point on a sheet boundary.
type SheetPin struct {
	Name     string
	Shape    string
	Position Position
}

// GetSymbol returns the instance with the given reference designator. If
// the exact reference is absent it retries the trailing-underscore
// variant (R1 <-> R1_), which documents use to dodge collisions with
// template placeholder instances.
func (s *Schematic) GetSymbol(ref string) *Symbol {
	if sym := s.findSymbol(ref); sym != nil {
		return sym
	}
	if alt, ok := referenceVariant(ref); ok {
		return s.findSymbol(alt)
	}
	return nil
}

func (s *Schematic) findSymbol(ref string) *Symbol {
	for i := range s.Symbols {
		if s.Symbols[i].Reference() == ref {
			return &s.Symbols[i]
		}
	}
	return nil
}

// referenceVariant returns the one tolerated naming variant of ref.
func referenceVariant(ref string) (string, bool) {
	if ref == "" {
		return "", false
	}
	if strings.HasSuffix(ref, "_") {
		return strings.TrimSuffix(ref, "_"), true
	}
	return ref + "_", true
}

// References returns all non-empty reference designators in order.
func (s *Schematic) References() []string {
	var refs []string
	for i := range s.Symbols {
		if ref := s.Symbols[i].Reference(); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

// LabelTexts returns the distinct label texts across all label kinds.
func (s *Schematic) LabelTexts() []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range s.Labels {
		if !seen[l.Text] {
			seen[l.Text] = true
			out = append(out, l.Text)
		}
	}
	return out
}
