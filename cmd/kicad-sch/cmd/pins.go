package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/schematic"
)

var pinsCmd = &cobra.Command{
	Use:   "pins <schematic_file> <reference> [pin]",
	Short: "Locate component pins",
	Long: `Resolve the absolute position of a component's pins, accounting for
the instance's placement, rotation, and mirroring.

Without a pin argument every pin is listed. The pin may be given by
number or by name.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runPins,
}

func init() {
	rootCmd.AddCommand(pinsCmd)
}

func runPins(cmd *cobra.Command, args []string) error {
	tc, err := newToolchain()
	if err != nil {
		return err
	}
	defer tc.log.Sync()

	sch, err := schematic.Load(args[0])
	if err != nil {
		return err
	}
	resolver := schematic.NewResolver(tc.catalog, tc.log)

	var locs []schematic.PinLocation
	if len(args) >= 3 {
		loc, err := resolver.PinPosition(sch, args[1], args[2])
		if err != nil {
			return err
		}
		locs = []schematic.PinLocation{loc}
	} else {
		locs, err = resolver.AllPinPositions(sch, args[1])
		if err != nil {
			return err
		}
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(locs)
	}
	if len(locs) == 0 {
		fmt.Printf("%s has no pins\n", args[1])
		return nil
	}
	color.New(color.Bold, color.FgCyan).Printf("Pins of %s:\n", locs[0].Reference)
	for _, loc := range locs {
		name := ""
		if loc.PinName != "" && loc.PinName != "~" {
			name = fmt.Sprintf(" (%s)", loc.PinName)
		}
		fmt.Printf("  pin %s%s at (%g, %g), facing %s\n",
			loc.PinNumber, name, loc.X, loc.Y, loc.CardinalDirection())
	}
	return nil
}
