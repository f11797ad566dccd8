package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/schematic"
)

var infoCmd = &cobra.Command{
	Use:   "info <schematic_file> [reference]",
	Short: "Show schematic information",
	Long: `Display information about a KiCad schematic file.

Without a reference argument: shows a schematic summary.
With a reference argument: shows details for that component.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	sch, err := schematic.Load(args[0])
	if err != nil {
		return err
	}
	if len(args) >= 2 {
		return showComponent(sch, args[1])
	}
	return showSummary(sch, args[0])
}

func showSummary(sch *schematic.Schematic, filename string) error {
	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"file":        filename,
			"version":     sch.Version,
			"generator":   sch.Generator,
			"paper":       sch.Paper,
			"components":  len(sch.Symbols),
			"wires":       len(sch.Wires),
			"junctions":   len(sch.Junctions),
			"labels":      len(sch.Labels),
			"sheets":      len(sch.Sheets),
			"no_connects": len(sch.NoConnects),
			"references":  sch.References(),
		})
	}

	heading := color.New(color.Bold, color.FgCyan)
	heading.Printf("Schematic: %s\n", filename)
	fmt.Printf("Version: %d\n", sch.Version)
	fmt.Printf("Generator: %s\n", sch.Generator)
	fmt.Printf("Paper: %s\n", sch.Paper)
	fmt.Println()

	heading.Println("Statistics:")
	fmt.Printf("  Components: %d\n", len(sch.Symbols))
	fmt.Printf("  Wires: %d\n", len(sch.Wires))
	fmt.Printf("  Junctions: %d\n", len(sch.Junctions))
	fmt.Printf("  Labels: %d\n", len(sch.Labels))
	fmt.Printf("  Sheets: %d\n", len(sch.Sheets))
	fmt.Printf("  No-connects: %d\n", len(sch.NoConnects))
	fmt.Println()

	if len(sch.Symbols) > 0 {
		heading.Println("Components:")
		byPrefix := make(map[string][]string)
		for i := range sch.Symbols {
			ref := sch.Symbols[i].Reference()
			if ref == "" {
				continue
			}
			prefix := strings.TrimRight(ref, "0123456789_")
			byPrefix[prefix] = append(byPrefix[prefix], ref)
		}
		prefixes := make([]string, 0, len(byPrefix))
		for p := range byPrefix {
			prefixes = append(prefixes, p)
		}
		sort.Strings(prefixes)
		for _, p := range prefixes {
			refs := byPrefix[p]
			sort.Strings(refs)
			fmt.Printf("  %s (%d): %s\n", p, len(refs), strings.Join(refs, ", "))
		}
	}
	return nil
}

func showComponent(sch *schematic.Schematic, ref string) error {
	sym := sch.GetSymbol(ref)
	if sym == nil {
		return fmt.Errorf("component %s not found (have: %s)", ref, strings.Join(sch.References(), ", "))
	}
	if jsonOutput {
		props := map[string]string{}
		for _, p := range sym.Properties {
			props[p.Key] = p.Value
		}
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"reference":  sym.Reference(),
			"lib_id":     sym.LibID,
			"x":          sym.Position.X,
			"y":          sym.Position.Y,
			"rotation":   sym.Angle,
			"mirror":     sym.Mirror,
			"unit":       sym.Unit,
			"uuid":       sym.UUID,
			"properties": props,
		})
	}

	color.New(color.Bold, color.FgCyan).Printf("Component: %s\n", sym.Reference())
	fmt.Printf("Library symbol: %s\n", sym.LibID)
	fmt.Printf("Position: (%g, %g)", sym.Position.X, sym.Position.Y)
	if sym.Angle != 0 {
		fmt.Printf(" rotated %g°", sym.Angle)
	}
	if sym.Mirror != "" {
		fmt.Printf(" mirrored %s", sym.Mirror)
	}
	fmt.Println()
	if sym.UUID != "" {
		fmt.Printf("UUID: %s\n", sym.UUID)
	}
	fmt.Println("Properties:")
	for _, p := range sym.Properties {
		fmt.Printf("  %s: %s\n", p.Key, p.Value)
	}
	return nil
}
