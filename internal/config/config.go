// Package config loads tool configuration from a TOML file, with
// environment and platform-convention defaults for the symbol library
// search path.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration document.
type Config struct {
	Libraries Libraries `toml:"libraries"`
	Netlist   Netlist   `toml:"netlist"`
	Logging   Logging   `toml:"logging"`
}

// Libraries configures symbol definition lookup.
type Libraries struct {
	// SearchPaths are directories scanned for <Library>.kicad_sym files,
	// in order. The KICAD_SYMBOL_DIR environment variable, when set, is
	// prepended at load time.
	SearchPaths []string `toml:"search_paths"`
	// CacheDir enables the parsed-library disk cache when non-empty.
	CacheDir string `toml:"cache_dir"`
}

// Netlist configures connectivity extraction.
type Netlist struct {
	// ToleranceMM is the coincidence distance in millimetres. Zero means
	// the built-in default (0.0254, a hundredth of the schematic grid).
	ToleranceMM float64 `toml:"tolerance_mm"`
}

// Logging configures the zap logger.
type Logging struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string `toml:"level"`
	// Development switches to the human-readable console encoder.
	Development bool `toml:"development"`
}

// Default returns the configuration used when no file is given: the
// platform's conventional KiCad symbol directories plus KICAD_SYMBOL_DIR.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnvironment()
	return cfg
}

// Load reads a TOML configuration file and applies the environment on
// top of it.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	cfg.applyEnvironment()
	return cfg, nil
}

// applyEnvironment prepends KICAD_SYMBOL_DIR and appends the platform
// defaults so explicit configuration always wins.
func (c *Config) applyEnvironment() {
	if dir := os.Getenv("KICAD_SYMBOL_DIR"); dir != "" {
		c.Libraries.SearchPaths = append([]string{dir}, c.Libraries.SearchPaths...)
	}
	for _, dir := range platformSymbolDirs() {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			c.Libraries.SearchPaths = append(c.Libraries.SearchPaths, dir)
		}
	}
}

func platformSymbolDirs() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"/Applications/KiCad/KiCad.app/Contents/SharedSupport/symbols"}
	case "windows":
		program := os.Getenv("ProgramFiles")
		if program == "" {
			program = `C:\Program Files`
		}
		return []string{filepath.Join(program, "KiCad", "share", "kicad", "symbols")}
	default:
		return []string{
			"/usr/share/kicad/symbols",
			"/usr/local/share/kicad/symbols",
		}
	}
}
