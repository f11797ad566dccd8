package netlist

import (
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/schematic"
)

// maxSheetDepth bounds hierarchical recursion so a sheet cycle on disk
// cannot hang the builder.
const maxSheetDepth = 20

// Builder computes net partitions over a schematic and its child sheets.
type Builder struct {
	resolver  *schematic.Resolver
	tolerance float64
	log       *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithTolerance overrides the coincidence distance in millimetres.
func WithTolerance(mm float64) Option {
	return func(b *Builder) {
		if mm > 0 {
			b.tolerance = mm
		}
	}
}

// NewBuilder wires a builder to a pin resolver. A nil logger is replaced
// with zap.NewNop().
func NewBuilder(resolver *schematic.Resolver, log *zap.Logger, opts ...Option) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Builder{
		resolver:  resolver,
		tolerance: DefaultTolerance,
		log:       log,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Tolerance returns the coincidence distance in effect.
func (b *Builder) Tolerance() float64 { return b.tolerance }

// point is one candidate connection point. Spatial coincidence only
// applies within a single sheet scope; cross-sheet connectivity goes
// through global labels and sheet pins, never raw geometry.
type point struct {
	scope int
	x, y  float64
	pin   int // index into collector.pins, or -1
	label int // index into collector.labels, or -1
}

type labelPoint struct {
	text string
	kind schematic.LabelKind
}

// pendingSheetPin links a sheet-pin point in the parent scope to the
// child scope whose matching hierarchical labels it connects to.
type pendingSheetPin struct {
	point      int
	childScope int
	name       string
}

type collector struct {
	points   []point
	pins     []PinRef
	labels   []labelPoint
	segments [][2]int // point index pairs joined by a wire segment
	pending  []pendingSheetPin
	scopes   int
}

func (c *collector) addPoint(scope int, x, y float64) int {
	c.points = append(c.points, point{scope: scope, x: x, y: y, pin: -1, label: -1})
	return len(c.points) - 1
}

// Build partitions all pins of the document and its recursively loaded
// child sheets into nets. dir is the directory sheet file paths resolve
// against. Resolution failures on individual symbols are logged and
// skipped; they never abort the whole computation.
func (b *Builder) Build(sch *schematic.Schematic, dir string) (*Result, error) {
	col := &collector{}
	if err := b.collect(col, sch, dir, "", nil); err != nil {
		return nil, err
	}
	uf := newUnionFind(len(col.points))

	// A wire conducts along its whole polyline, whatever its length.
	for _, seg := range col.segments {
		uf.union(seg[0], seg[1])
	}

	// Spatial coincidence within each scope, inclusive of the boundary.
	tol2 := b.tolerance * b.tolerance
	for i := 0; i < len(col.points); i++ {
		for j := i + 1; j < len(col.points); j++ {
			pi, pj := col.points[i], col.points[j]
			if pi.scope != pj.scope {
				continue
			}
			dx, dy := pi.x-pj.x, pi.y-pj.y
			if dx*dx+dy*dy <= tol2 {
				uf.union(i, j)
			}
		}
	}

	// Global labels are net-name anchors across every sheet.
	globalAnchor := make(map[string]int)
	for i, p := range col.points {
		if p.label < 0 || col.labels[p.label].kind != schematic.LabelGlobal {
			continue
		}
		text := col.labels[p.label].text
		if anchor, ok := globalAnchor[text]; ok {
			uf.union(anchor, i)
		} else {
			globalAnchor[text] = i
		}
	}

	// A sheet pin joins the parent-side point to the child sheet's
	// hierarchical labels of the same name. Local labels stay inside
	// their own sheet.
	for _, sp := range col.pending {
		for i, p := range col.points {
			if p.scope != sp.childScope || p.label < 0 {
				continue
			}
			lbl := col.labels[p.label]
			if lbl.kind == schematic.LabelHierarchical && lbl.text == sp.name {
				uf.union(sp.point, i)
			}
		}
	}

	return b.finalize(col, uf), nil
}

// collect walks one document, appending its connection points, then
// recurses into its sheets. prefix scopes the reference designators.
func (b *Builder) collect(col *collector, sch *schematic.Schematic, dir, prefix string, stack []string) error {
	if len(stack) > maxSheetDepth {
		return fmt.Errorf("sheet nesting exceeds %d levels (cycle?)", maxSheetDepth)
	}
	scope := col.scopes
	col.scopes++

	for _, w := range sch.Wires {
		prev := -1
		for _, pt := range w.Points {
			idx := col.addPoint(scope, pt.X, pt.Y)
			if prev >= 0 {
				col.segments = append(col.segments, [2]int{prev, idx})
			}
			prev = idx
		}
	}
	for _, j := range sch.Junctions {
		col.addPoint(scope, j.Position.X, j.Position.Y)
	}
	for _, l := range sch.Labels {
		idx := col.addPoint(scope, l.Position.X, l.Position.Y)
		col.points[idx].label = len(col.labels)
		col.labels = append(col.labels, labelPoint{text: l.Text, kind: l.Kind})
	}

	for i := range sch.Symbols {
		sym := &sch.Symbols[i]
		ref := sym.Reference()
		if ref == "" || sym.IsPower() {
			continue
		}
		locs, err := b.resolver.AllPinPositions(sch, ref)
		if err != nil {
			b.log.Warn("skipping unresolvable symbol",
				zap.String("reference", prefix+ref),
				zap.String("lib_id", sym.LibID),
				zap.Error(err))
			continue
		}
		for _, loc := range locs {
			idx := col.addPoint(scope, loc.X, loc.Y)
			col.points[idx].pin = len(col.pins)
			col.pins = append(col.pins, PinRef{
				Reference: prefix + ref,
				Pin:       loc.PinNumber,
			})
		}
	}

	for _, sheet := range sch.Sheets {
		childScope, err := b.collectSheet(col, sheet, dir, prefix, stack)
		if err != nil {
			return err
		}
		for _, pin := range sheet.Pins {
			idx := col.addPoint(scope, pin.Position.X, pin.Position.Y)
			col.pending = append(col.pending, pendingSheetPin{
				point:      idx,
				childScope: childScope,
				name:       pin.Name,
			})
		}
	}
	return nil
}

func (b *Builder) collectSheet(col *collector, sheet schematic.Sheet, dir, prefix string, stack []string) (int, error) {
	path := sheet.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	for _, seen := range stack {
		if seen == path {
			return 0, fmt.Errorf("sheet cycle through %s", path)
		}
	}
	child, err := schematic.Load(path)
	if err != nil {
		return 0, fmt.Errorf("load sheet %q (%s): %w", sheet.Name, path, err)
	}
	childScope := col.scopes
	childPrefix := prefix + sheet.Name + "/"
	if err := b.collect(col, child, filepath.Dir(path), childPrefix, append(stack, path)); err != nil {
		return 0, err
	}
	return childScope, nil
}

// finalize groups points by union-find root and shapes the components
// into named, sorted nets. Components with no pins are dropped.
func (b *Builder) finalize(col *collector, uf *unionFind) *Result {
	type component struct {
		pins   []PinRef
		labels map[string]bool
	}
	comps := make(map[int]*component)
	for i, p := range col.points {
		root := uf.find(i)
		comp, ok := comps[root]
		if !ok {
			comp = &component{labels: make(map[string]bool)}
			comps[root] = comp
		}
		if p.pin >= 0 {
			comp.pins = append(comp.pins, col.pins[p.pin])
		}
		if p.label >= 0 {
			comp.labels[col.labels[p.label].text] = true
		}
	}

	result := &Result{}
	for _, comp := range comps {
		if len(comp.pins) == 0 {
			continue
		}
		pins := dedupePins(comp.pins)
		texts := make([]string, 0, len(comp.labels))
		for t := range comp.labels {
			texts = append(texts, t)
		}
		sort.Strings(texts)

		var name string
		switch {
		case len(texts) >= 1:
			name = texts[0]
		default:
			name = fmt.Sprintf("Net-(%s-Pad%s)", pins[0].Reference, pins[0].Pin)
		}
		if len(texts) > 1 {
			result.Conflicts = append(result.Conflicts, Conflict{Net: name, Labels: texts})
		}
		result.Nets = append(result.Nets, Net{Name: name, Pins: pins})
	}

	sort.Slice(result.Nets, func(i, j int) bool {
		return result.Nets[i].Name < result.Nets[j].Name
	})
	sort.Slice(result.Conflicts, func(i, j int) bool {
		return result.Conflicts[i].Net < result.Conflicts[j].Net
	})
	b.log.Debug("connectivity built",
		zap.Int("points", len(col.points)),
		zap.Int("nets", len(result.Nets)),
		zap.Int("conflicts", len(result.Conflicts)))
	return result
}

// dedupePins sorts and removes duplicates; a pin can land on several
// coincident points of the same component.
func dedupePins(pins []PinRef) []PinRef {
	sortPins(pins)
	out := pins[:0]
	for i, p := range pins {
		if i == 0 || p != pins[i-1] {
			out = append(out, p)
		}
	}
	return out
}
