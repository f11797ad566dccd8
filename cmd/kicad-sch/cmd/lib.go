package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var libCmd = &cobra.Command{
	Use:   "lib",
	Short: "Symbol library operations",
	Long:  `Inspect the .kicad_sym libraries on the configured search path.`,
}

var libListCmd = &cobra.Command{
	Use:   "list",
	Short: "List libraries on the search path",
	Args:  cobra.NoArgs,
	RunE:  runLibList,
}

var libSymbolsCmd = &cobra.Command{
	Use:   "symbols <library>",
	Short: "List the symbols in a library",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibSymbols,
}

func init() {
	libCmd.AddCommand(libListCmd)
	libCmd.AddCommand(libSymbolsCmd)
	rootCmd.AddCommand(libCmd)
}

func runLibList(cmd *cobra.Command, args []string) error {
	tc, err := newToolchain()
	if err != nil {
		return err
	}
	defer tc.log.Sync()

	libs, err := tc.catalog.ListLibraries()
	if err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(libs)
	}
	color.New(color.Bold, color.FgCyan).Printf("Libraries (%d):\n", len(libs))
	for _, name := range libs {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func runLibSymbols(cmd *cobra.Command, args []string) error {
	tc, err := newToolchain()
	if err != nil {
		return err
	}
	defer tc.log.Sync()

	syms, err := tc.catalog.ListSymbols(args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(syms)
	}
	color.New(color.Bold, color.FgCyan).Printf("%s (%d symbols):\n", args[0], len(syms))
	for _, name := range syms {
		fmt.Printf("  %s\n", name)
	}
	return nil
}
