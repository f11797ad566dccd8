// Package symbols resolves symbol definitions (pin geometry tables) from
// a schematic's embedded lib_symbols section or from external .kicad_sym
// library files found on a configured search path.
package symbols

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/sexp"
)

// ErrSymbolNotFound is matched by errors.Is for any failed lookup.
var ErrSymbolNotFound = errors.New("symbol not found")

// NotFoundError reports a lib_id that resolved nowhere, with the places
// that were tried.
type NotFoundError struct {
	LibID    string
	Searched []string
}

func (e *NotFoundError) Error() string {
	if len(e.Searched) == 0 {
		return fmt.Sprintf("symbol %q not found", e.LibID)
	}
	return fmt.Sprintf("symbol %q not found (searched: %s)", e.LibID, strings.Join(e.Searched, ", "))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrSymbolNotFound }

// PinGeometry is one pin of a symbol definition, in the symbol's local
// coordinate frame. Angles are the canonical 0/90/180/270 but stored as
// floats the way the files carry them.
type PinGeometry struct {
	X          float64 `msgpack:"x"`
	Y          float64 `msgpack:"y"`
	AngleDeg   float64 `msgpack:"angle"`
	Length     float64 `msgpack:"length"`
	Name       string  `msgpack:"name"`
	Number     string  `msgpack:"number"`
	Electrical string  `msgpack:"electrical"` // passive, input, output, power_in, ...
	Shape      string  `msgpack:"shape"`      // line, inverted, clock, ...
}

// Definition is an immutable pin geometry table for one symbol, keyed by
// pin number. Owned by the catalog that resolved it.
type Definition struct {
	Name    string                 `msgpack:"name"`
	Extends string                 `msgpack:"extends"`
	Pins    map[string]PinGeometry `msgpack:"pins"`
}

// PinNumbers returns the sorted pin numbers, for diagnostics.
func (d *Definition) PinNumbers() []string {
	nums := make([]string, 0, len(d.Pins))
	for n := range d.Pins {
		nums = append(nums, n)
	}
	sort.Strings(nums)
	return nums
}

// PinNames returns the sorted non-empty pin names, for diagnostics.
func (d *Definition) PinNames() []string {
	var names []string
	for _, p := range d.Pins {
		if p.Name != "" && p.Name != "~" {
			names = append(names, p.Name)
		}
	}
	sort.Strings(names)
	return names
}

// FindPin matches by pin number first, then by pin name
// (case-insensitive), then by zero-stripped digits ("01" -> "1").
func (d *Definition) FindPin(identifier string) (PinGeometry, bool) {
	id := strings.TrimSpace(identifier)
	if pin, ok := d.Pins[id]; ok {
		return pin, true
	}
	for _, pin := range d.Pins {
		if pin.Name != "" && strings.EqualFold(pin.Name, id) {
			return pin, true
		}
	}
	if stripped := strings.TrimLeft(id, "0"); stripped != "" && stripped != id {
		if pin, ok := d.Pins[stripped]; ok {
			return pin, true
		}
	}
	return PinGeometry{}, false
}

// unitSuffix matches the _<unit>_<style> sub-symbol naming convention.
// Blocks with this suffix are pin/graphic groups of a parent definition,
// never standalone symbols.
var unitSuffix = regexp.MustCompile(`_\d+_\d+$`)

// IsUnitName reports whether name is a sub-symbol group name.
func IsUnitName(name string) bool {
	return unitSuffix.MatchString(name)
}

// parseDefinition extracts the pin table from a (symbol "Name" ...) node,
// recursing into the unit sub-groups where the pins actually live.
func parseDefinition(node *sexp.Node) *Definition {
	def := &Definition{Pins: make(map[string]PinGeometry)}
	def.Name, _ = sexp.GetString(node, 1)
	if extNode, ok := node.Find("extends"); ok {
		def.Extends, _ = sexp.GetString(extNode, 1)
	}
	collectPins(node, def.Pins)
	return def
}

func collectPins(node *sexp.Node, pins map[string]PinGeometry) {
	for _, pn := range node.FindAll("pin") {
		pin := PinGeometry{Electrical: "passive"}
		if v, err := sexp.GetString(pn, 1); err == nil {
			pin.Electrical = v
		}
		pin.Shape, _ = sexp.GetString(pn, 2)
		if atNode, ok := pn.Find("at"); ok {
			pos, _ := sexp.GetPosition(atNode)
			pin.X = pos.X
			pin.Y = pos.Y
			pin.AngleDeg = pos.Angle
		}
		if lenNode, ok := pn.Find("length"); ok {
			pin.Length, _ = sexp.GetFloat(lenNode, 1)
		}
		if nameNode, ok := pn.Find("name"); ok {
			pin.Name, _ = sexp.GetString(nameNode, 1)
		}
		if numNode, ok := pn.Find("number"); ok {
			pin.Number, _ = sexp.GetString(numNode, 1)
		}
		if pin.Number != "" {
			pins[pin.Number] = pin
		}
	}
	// Pins are usually nested inside unit sub-symbols.
	for _, sub := range node.FindAll("symbol") {
		collectPins(sub, pins)
	}
}

// merged returns a copy of child with the parent's pins filled in
// underneath; the child's own declarations win on conflict.
func merged(child, parent *Definition) *Definition {
	out := &Definition{
		Name:    child.Name,
		Extends: child.Extends,
		Pins:    make(map[string]PinGeometry, len(child.Pins)+len(parent.Pins)),
	}
	for num, pin := range parent.Pins {
		out.Pins[num] = pin
	}
	for num, pin := range child.Pins {
		out.Pins[num] = pin
	}
	return out
}

// SplitLibID splits "Device:R" into library and symbol names.
func SplitLibID(libID string) (lib, name string, err error) {
	idx := strings.Index(libID, ":")
	if idx <= 0 || idx == len(libID)-1 {
		return "", "", fmt.Errorf("invalid lib_id %q: want \"Library:Symbol\"", libID)
	}
	return libID[:idx], libID[idx+1:], nil
}
