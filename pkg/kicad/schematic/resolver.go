package schematic

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/symbols"
)

// ReferenceNotFoundError reports a reference designator that matched no
// symbol instance, even after the trailing-underscore variant fallback.
type ReferenceNotFoundError struct {
	Reference string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("symbol %s not found in schematic", e.Reference)
}

// PinNotFoundError reports a pin identifier that matched nothing on the
// resolved definition. It carries every known pin number and name;
// a silent wrong-pin resolution would corrupt downstream wiring, so the
// caller gets the full picture.
type PinNotFoundError struct {
	Reference string
	LibID     string
	Pin       string
	Numbers   []string
	Names     []string
}

func (e *PinNotFoundError) Error() string {
	return fmt.Sprintf("pin %q not found on %s (%s). Available pin numbers: [%s]. Available pin names: [%s]",
		e.Pin, e.Reference, e.LibID,
		strings.Join(e.Numbers, " "), strings.Join(e.Names, " "))
}

// PinLocation is a pin's absolute placement in schematic coordinates.
// EffectiveAngle is the pin's outward direction after instance rotation,
// in degrees counter-clockwise from +x.
type PinLocation struct {
	Reference      string  `json:"reference"`
	PinNumber      string  `json:"pin_number"`
	PinName        string  `json:"pin_name,omitempty"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	PinAngle       float64 `json:"pin_angle"`
	Rotation       float64 `json:"symbol_rotation"`
	EffectiveAngle float64 `json:"effective_angle"`
}

// CardinalDirection snaps the effective angle to the nearest of the four
// cardinal directions, for stub-wire placement.
func (l PinLocation) CardinalDirection() string {
	a := math.Mod(l.EffectiveAngle+360, 360)
	switch {
	case a >= 315 || a < 45:
		return "right"
	case a < 135:
		return "up"
	case a < 225:
		return "left"
	default:
		return "down"
	}
}

// Resolver computes absolute pin positions for placed symbol instances,
// consulting a catalog for the definition-relative pin geometry.
type Resolver struct {
	catalog *symbols.Catalog
	log     *zap.Logger
}

// NewResolver wires a resolver to a catalog. A nil logger is replaced
// with zap.NewNop().
func NewResolver(catalog *symbols.Catalog, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{catalog: catalog, log: log}
}

// PinPosition resolves the absolute position and effective angle of one
// pin on one placed instance. The pin may be addressed by number or by
// name.
func (r *Resolver) PinPosition(sch *Schematic, reference, pin string) (PinLocation, error) {
	sym := sch.GetSymbol(reference)
	if sym == nil {
		return PinLocation{}, &ReferenceNotFoundError{Reference: reference}
	}
	def, err := r.catalog.Resolve(sch.Doc, sym.LibID)
	if err != nil {
		return PinLocation{}, err
	}
	geom, ok := def.FindPin(pin)
	if !ok {
		return PinLocation{}, &PinNotFoundError{
			Reference: sym.Reference(),
			LibID:     sym.LibID,
			Pin:       pin,
			Numbers:   def.PinNumbers(),
			Names:     def.PinNames(),
		}
	}
	loc := r.place(sym, geom)
	r.log.Debug("pin resolved",
		zap.String("reference", loc.Reference),
		zap.String("pin", loc.PinNumber),
		zap.Float64("x", loc.X),
		zap.Float64("y", loc.Y),
		zap.Float64("effective_angle", loc.EffectiveAngle))
	return loc, nil
}

// AllPinPositions resolves every pin of an instance, in definition order
// by pin number.
func (r *Resolver) AllPinPositions(sch *Schematic, reference string) ([]PinLocation, error) {
	sym := sch.GetSymbol(reference)
	if sym == nil {
		return nil, &ReferenceNotFoundError{Reference: reference}
	}
	def, err := r.catalog.Resolve(sch.Doc, sym.LibID)
	if err != nil {
		return nil, err
	}
	locs := make([]PinLocation, 0, len(def.Pins))
	for _, num := range def.PinNumbers() {
		locs = append(locs, r.place(sym, def.Pins[num]))
	}
	return locs, nil
}

// place maps a definition-relative pin into schematic coordinates:
// mirror first, then rotation, then translation by the instance
// position. Rotation is counter-clockwise about the instance origin;
// exactly 0° with no mirror skips the transform to avoid floating
// round-trip error.
func (r *Resolver) place(sym *Symbol, geom symbols.PinGeometry) PinLocation {
	x, y := geom.X, geom.Y
	if sym.Mirror != "" || sym.Angle != 0 {
		m := placementMatrix(sym.Angle, sym.Mirror)
		v := mat.NewVecDense(2, []float64{x, y})
		var out mat.VecDense
		out.MulVec(m, v)
		x, y = out.AtVec(0), out.AtVec(1)
	}
	return PinLocation{
		Reference:      sym.Reference(),
		PinNumber:      geom.Number,
		PinName:        geom.Name,
		X:              sym.Position.X + x,
		Y:              sym.Position.Y + y,
		PinAngle:       geom.AngleDeg,
		Rotation:       sym.Angle,
		EffectiveAngle: math.Mod(geom.AngleDeg+sym.Angle, 360),
	}
}

// placementMatrix composes the mirror reflection with the rotation.
// Mirror "x" reflects across the x axis, "y" across the y axis; the
// reflection applies in definition space, before rotation.
func placementMatrix(angleDeg float64, mirror string) *mat.Dense {
	rad := angleDeg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	rot := mat.NewDense(2, 2, []float64{
		cos, -sin,
		sin, cos,
	})
	mx, my := 1.0, 1.0
	switch mirror {
	case "x":
		my = -1
	case "y":
		mx = -1
	}
	ref := mat.NewDense(2, 2, []float64{
		mx, 0,
		0, my,
	})
	var out mat.Dense
	out.Mul(rot, ref)
	return &out
}
