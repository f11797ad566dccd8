package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mixelpixx/KiCAD-MCP-Server/internal/config"
	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/symbols"
)

var (
	// Global flags
	cfgFile    string
	verbose    bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "kicad-sch",
	Short: "KiCad schematic connectivity and editing tools",
	Long: `kicad-sch reads, analyzes, and edits KiCad schematic files (.kicad_sch).

All edits are format preserving: every byte outside the edited element
stays exactly as it was on disk.

Examples:
  kicad-sch info board.kicad_sch            # Show schematic summary
  kicad-sch pins board.kicad_sch R1         # Locate every pin of R1
  kicad-sch net board.kicad_sch             # Derive the netlist
  kicad-sch edit add-wire board.kicad_sch --from 100,100 --to 120,100
  kicad-sch lib list                        # Show libraries on the search path`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a kicad-sch.toml config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "machine-readable JSON output")
}

// loadConfig resolves the effective configuration for this invocation.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	return config.Default(), nil
}

// buildLogger constructs the process logger from config and the
// --verbose flag, which forces debug level.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Logging.Level != "" {
		if err := level.Set(cfg.Logging.Level); err != nil {
			return nil, fmt.Errorf("logging.level: %w", err)
		}
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	var zc zap.Config
	if cfg.Logging.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// toolchain is the wired-up set of collaborators every subcommand needs.
type toolchain struct {
	cfg     *config.Config
	log     *zap.Logger
	catalog *symbols.Catalog
}

func newToolchain() (*toolchain, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := buildLogger(cfg)
	if err != nil {
		return nil, err
	}
	var opts []symbols.Option
	if cfg.Libraries.CacheDir != "" {
		opts = append(opts, symbols.WithDiskCache(cfg.Libraries.CacheDir))
	}
	return &toolchain{
		cfg:     cfg,
		log:     log,
		catalog: symbols.NewCatalog(cfg.Libraries.SearchPaths, log, opts...),
	}, nil
}
