// Package netlist derives electrical connectivity from schematic
// geometry. Nets are computed on demand and never persisted; running the
// builder twice on an unmodified document yields the same partition.
package netlist

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DefaultTolerance is the coincidence distance in millimetres, a hundredth
// of the 2.54mm schematic grid. The comparison is inclusive: two points at
// exactly this distance connect.
const DefaultTolerance = 0.0254

// PinRef identifies one component pin. References on child sheets carry a
// "SheetName/" prefix per nesting level.
type PinRef struct {
	Reference string `json:"reference"`
	Pin       string `json:"pin"`
}

func (p PinRef) String() string {
	return fmt.Sprintf("%s.%s", p.Reference, p.Pin)
}

// Net is a maximal set of pins that are electrically the same node.
type Net struct {
	Name string   `json:"name"`
	Pins []PinRef `json:"pins"`
}

// Conflict records a net touched by more than one distinct label text.
// The builder picks the lexically smallest text as the net's name and
// reports the rest here rather than silently resolving them.
type Conflict struct {
	Net    string   `json:"net"`
	Labels []string `json:"labels"`
}

// Result is one connectivity computation over a document hierarchy.
type Result struct {
	Nets      []Net      `json:"nets"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// Net returns the net containing the given pin, or nil.
func (r *Result) Net(ref, pin string) *Net {
	for i := range r.Nets {
		for _, p := range r.Nets[i].Pins {
			if p.Reference == ref && p.Pin == pin {
				return &r.Nets[i]
			}
		}
	}
	return nil
}

// NetByName returns the named net, or nil.
func (r *Result) NetByName(name string) *Net {
	for i := range r.Nets {
		if r.Nets[i].Name == name {
			return &r.Nets[i]
		}
	}
	return nil
}

// ExportJSON renders the result as indented JSON.
func (r *Result) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func sortPins(pins []PinRef) {
	sort.Slice(pins, func(i, j int) bool {
		if pins[i].Reference != pins[j].Reference {
			return pins[i].Reference < pins[j].Reference
		}
		return pins[i].Pin < pins[j].Pin
	})
}
