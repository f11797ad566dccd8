package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/editor"
	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/schematic"
)

var (
	editOutput string

	addLib   string
	addRef   string
	addValue string
	addAt    string

	wireFrom   string
	wireTo     string
	wirePoints string

	labelAt    string
	labelKind  string
	labelAngle float64

	markAt string

	netLabelKind string
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit a schematic in place",
	Long: `Structural schematic edits. Every edit is format preserving: bytes
outside the edited element are written back exactly as they were read.

By default the file is modified in place; --output redirects the result.`,
}

var editAddComponentCmd = &cobra.Command{
	Use:   "add-component <schematic_file>",
	Short: "Place a component, embedding its symbol definition if needed",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddComponent,
}

var editAddWireCmd = &cobra.Command{
	Use:   "add-wire <schematic_file>",
	Short: "Route a wire",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddWire,
}

var editAddLabelCmd = &cobra.Command{
	Use:   "add-label <schematic_file> <text>",
	Short: "Attach a net label",
	Args:  cobra.ExactArgs(2),
	RunE:  runAddLabel,
}

var editAddJunctionCmd = &cobra.Command{
	Use:   "add-junction <schematic_file>",
	Short: "Mark an explicit wire join",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMarker(args[0], func(ed *editor.Editor, p schematic.Position) error {
			return ed.AddJunction(p.X, p.Y)
		})
	},
}

var editAddNoConnectCmd = &cobra.Command{
	Use:   "add-no-connect <schematic_file>",
	Short: "Mark a deliberately unconnected pin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMarker(args[0], func(ed *editor.Editor, p schematic.Position) error {
			return ed.AddNoConnect(p.X, p.Y)
		})
	},
}

var editSetPropertyCmd = &cobra.Command{
	Use:   "set-property <schematic_file> <reference> <key> <value>",
	Short: "Patch one property of a placed component",
	Args:  cobra.ExactArgs(4),
	RunE:  runSetProperty,
}

var editRemoveCmd = &cobra.Command{
	Use:   "remove <schematic_file> <reference>",
	Short: "Remove a placed component",
	Args:  cobra.ExactArgs(2),
	RunE:  runRemove,
}

var editConnectCmd = &cobra.Command{
	Use:   "connect <schematic_file> <refA> <pinA> <refB> <pinB>",
	Short: "Route a wire between two component pins",
	Args:  cobra.ExactArgs(5),
	RunE:  runConnect,
}

var editConnectNetCmd = &cobra.Command{
	Use:   "connect-net <schematic_file> <reference> <pin> <net_name>",
	Short: "Attach a pin to a named net via a stub wire and label",
	Args:  cobra.ExactArgs(4),
	RunE:  runConnectNet,
}

func init() {
	editCmd.PersistentFlags().StringVarP(&editOutput, "output", "o", "", "write the result here instead of in place")

	editAddComponentCmd.Flags().StringVar(&addLib, "lib", "", "symbol to place, as Library:Symbol (required)")
	editAddComponentCmd.Flags().StringVar(&addRef, "ref", "", "reference designator (required)")
	editAddComponentCmd.Flags().StringVar(&addValue, "value", "", "Value property (defaults to the symbol name)")
	editAddComponentCmd.Flags().StringVar(&addAt, "at", "0,0", "placement as x,y or x,y,rotation")
	editAddComponentCmd.MarkFlagRequired("lib")
	editAddComponentCmd.MarkFlagRequired("ref")

	editAddWireCmd.Flags().StringVar(&wireFrom, "from", "", "start point x,y")
	editAddWireCmd.Flags().StringVar(&wireTo, "to", "", "end point x,y")
	editAddWireCmd.Flags().StringVar(&wirePoints, "points", "", "polyline points, space-separated x,y pairs")

	editAddLabelCmd.Flags().StringVar(&labelAt, "at", "", "label position x,y (required)")
	editAddLabelCmd.Flags().StringVar(&labelKind, "kind", "local", "label kind: local, global, or hierarchical")
	editAddLabelCmd.Flags().Float64Var(&labelAngle, "angle", 0, "label angle in degrees")
	editAddLabelCmd.MarkFlagRequired("at")

	editAddJunctionCmd.Flags().StringVar(&markAt, "at", "", "position x,y (required)")
	editAddJunctionCmd.MarkFlagRequired("at")
	editAddNoConnectCmd.Flags().StringVar(&markAt, "at", "", "position x,y (required)")
	editAddNoConnectCmd.MarkFlagRequired("at")

	editConnectNetCmd.Flags().StringVar(&netLabelKind, "kind", "local", "label kind: local, global, or hierarchical")

	editCmd.AddCommand(editAddComponentCmd)
	editCmd.AddCommand(editAddWireCmd)
	editCmd.AddCommand(editAddLabelCmd)
	editCmd.AddCommand(editAddJunctionCmd)
	editCmd.AddCommand(editAddNoConnectCmd)
	editCmd.AddCommand(editSetPropertyCmd)
	editCmd.AddCommand(editRemoveCmd)
	editCmd.AddCommand(editConnectCmd)
	editCmd.AddCommand(editConnectNetCmd)
	rootCmd.AddCommand(editCmd)
}

// withEditor opens the schematic, applies fn, and writes the result.
func withEditor(path string, fn func(*editor.Editor) error) error {
	tc, err := newToolchain()
	if err != nil {
		return err
	}
	defer tc.log.Sync()

	ed, err := editor.Open(path, tc.catalog, tc.log)
	if err != nil {
		return err
	}
	if err := fn(ed); err != nil {
		return err
	}
	dest := path
	if editOutput != "" {
		dest = editOutput
	}
	if err := ed.Save(dest); err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("Wrote %s\n", dest)
	return nil
}

func runAddComponent(cmd *cobra.Command, args []string) error {
	x, y, rot, err := parsePlacement(addAt)
	if err != nil {
		return err
	}
	return withEditor(args[0], func(ed *editor.Editor) error {
		return ed.AddInstance(addLib, addRef, addValue, x, y, rot)
	})
}

func runAddWire(cmd *cobra.Command, args []string) error {
	var points []schematic.Position
	switch {
	case wirePoints != "":
		for _, field := range strings.Fields(wirePoints) {
			p, err := parsePoint(field)
			if err != nil {
				return err
			}
			points = append(points, p)
		}
	case wireFrom != "" && wireTo != "":
		from, err := parsePoint(wireFrom)
		if err != nil {
			return err
		}
		to, err := parsePoint(wireTo)
		if err != nil {
			return err
		}
		points = []schematic.Position{from, to}
	default:
		return fmt.Errorf("give either --from and --to, or --points")
	}
	return withEditor(args[0], func(ed *editor.Editor) error {
		return ed.AddWire(points...)
	})
}

func runAddLabel(cmd *cobra.Command, args []string) error {
	p, err := parsePoint(labelAt)
	if err != nil {
		return err
	}
	kind, err := parseLabelKind(labelKind)
	if err != nil {
		return err
	}
	return withEditor(args[0], func(ed *editor.Editor) error {
		return ed.AddLabel(args[1], kind, p.X, p.Y, labelAngle)
	})
}

func runMarker(path string, add func(*editor.Editor, schematic.Position) error) error {
	p, err := parsePoint(markAt)
	if err != nil {
		return err
	}
	return withEditor(path, func(ed *editor.Editor) error {
		return add(ed, p)
	})
}

func runSetProperty(cmd *cobra.Command, args []string) error {
	return withEditor(args[0], func(ed *editor.Editor) error {
		return ed.SetProperty(args[1], args[2], args[3])
	})
}

func runRemove(cmd *cobra.Command, args []string) error {
	return withEditor(args[0], func(ed *editor.Editor) error {
		return ed.RemoveInstance(args[1])
	})
}

func runConnect(cmd *cobra.Command, args []string) error {
	return withEditor(args[0], func(ed *editor.Editor) error {
		return ed.ConnectPins(args[1], args[2], args[3], args[4])
	})
}

func runConnectNet(cmd *cobra.Command, args []string) error {
	kind, err := parseLabelKind(netLabelKind)
	if err != nil {
		return err
	}
	return withEditor(args[0], func(ed *editor.Editor) error {
		return ed.ConnectToNet(args[1], args[2], args[3], kind)
	})
}

func parsePoint(s string) (schematic.Position, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return schematic.Position{}, fmt.Errorf("invalid point %q: want x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return schematic.Position{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return schematic.Position{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	return schematic.Position{X: x, Y: y}, nil
}

func parsePlacement(s string) (x, y, rotation float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid placement %q: want x,y or x,y,rotation", s)
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		vals[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid placement %q: %w", s, err)
		}
	}
	x, y = vals[0], vals[1]
	if len(vals) == 3 {
		rotation = vals[2]
	}
	return x, y, rotation, nil
}

func parseLabelKind(s string) (schematic.LabelKind, error) {
	switch strings.ToLower(s) {
	case "local", "label", "":
		return schematic.LabelLocal, nil
	case "global", "global_label":
		return schematic.LabelGlobal, nil
	case "hierarchical", "hierarchical_label":
		return schematic.LabelHierarchical, nil
	default:
		return 0, fmt.Errorf("unknown label kind %q", s)
	}
}
