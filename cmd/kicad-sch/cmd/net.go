package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/netlist"
	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/schematic"
)

var netTolerance float64

var netCmd = &cobra.Command{
	Use:   "net <schematic_file> [net_name]",
	Short: "Derive the netlist from schematic geometry",
	Long: `Partition all component pins into nets by scanning wires, labels, and
resolved pin positions. Hierarchical child sheets are loaded recursively;
global labels connect across sheets.

Without a net name every net is listed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runNet,
}

func init() {
	netCmd.Flags().Float64Var(&netTolerance, "tolerance", 0,
		"coincidence distance in mm (default from config, else 0.0254)")
	rootCmd.AddCommand(netCmd)
}

func runNet(cmd *cobra.Command, args []string) error {
	tc, err := newToolchain()
	if err != nil {
		return err
	}
	defer tc.log.Sync()

	sch, err := schematic.Load(args[0])
	if err != nil {
		return err
	}

	var opts []netlist.Option
	switch {
	case netTolerance > 0:
		opts = append(opts, netlist.WithTolerance(netTolerance))
	case tc.cfg.Netlist.ToleranceMM > 0:
		opts = append(opts, netlist.WithTolerance(tc.cfg.Netlist.ToleranceMM))
	}
	resolver := schematic.NewResolver(tc.catalog, tc.log)
	builder := netlist.NewBuilder(resolver, tc.log, opts...)

	result, err := builder.Build(sch, filepath.Dir(args[0]))
	if err != nil {
		return err
	}
	if len(args) >= 2 {
		net := result.NetByName(args[1])
		if net == nil {
			return fmt.Errorf("no net named %q", args[1])
		}
		trimmed := &netlist.Result{Nets: []netlist.Net{*net}}
		for _, c := range result.Conflicts {
			if c.Net == net.Name {
				trimmed.Conflicts = append(trimmed.Conflicts, c)
			}
		}
		result = trimmed
	}

	if jsonOutput {
		out, err := result.ExportJSON()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(out, '\n'))
		return err
	}

	heading := color.New(color.Bold, color.FgCyan)
	heading.Printf("Nets (%d):\n", len(result.Nets))
	for _, net := range result.Nets {
		pins := make([]string, len(net.Pins))
		for i, p := range net.Pins {
			pins[i] = p.String()
		}
		fmt.Printf("  %s: %s\n", net.Name, strings.Join(pins, ", "))
	}
	if len(result.Conflicts) > 0 {
		warn := color.New(color.Bold, color.FgYellow)
		warn.Printf("Label conflicts (%d):\n", len(result.Conflicts))
		for _, c := range result.Conflicts {
			fmt.Printf("  net %s carries labels: %s\n", c.Net, strings.Join(c.Labels, ", "))
		}
	}
	return nil
}
