package symbols

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mixelpixx/KiCAD-MCP-Server/pkg/kicad/sexp"
)

// Catalog resolves symbol definitions against a list of library search
// directories. Parsed libraries are memoized for the catalog's lifetime
// and optionally persisted to a disk cache. Safe for concurrent use.
type Catalog struct {
	searchPaths []string
	cacheDir    string
	log         *zap.Logger

	mu   sync.Mutex
	libs map[string]*library
}

// library is one loaded .kicad_sym file. doc is nil when the pin tables
// came from the disk cache; it is parsed on demand for block extraction.
type library struct {
	path string
	defs map[string]*Definition
	doc  *sexp.Document
}

// errLibraryMissing tags the "no such file on the search path" case so
// callers can map it to NotFoundError without masking read or parse
// failures of a file that does exist.
var errLibraryMissing = errors.New("library file not found")

// Option configures a Catalog.
type Option func(*Catalog)

// WithDiskCache persists parsed pin tables under dir.
func WithDiskCache(dir string) Option {
	return func(c *Catalog) { c.cacheDir = dir }
}

// NewCatalog builds a catalog over the given library directories.
// A nil logger is replaced with zap.NewNop().
func NewCatalog(searchPaths []string, log *zap.Logger, opts ...Option) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Catalog{
		searchPaths: searchPaths,
		log:         log,
		libs:        make(map[string]*library),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the pin geometry table for libID. Definitions embedded
// in the document's lib_symbols section take precedence over library
// files; a schematic must stay interpretable without its libraries
// installed. An extends parent, if any, is resolved in the same scope
// and merged underneath the child.
func (c *Catalog) Resolve(doc *sexp.Document, libID string) (*Definition, error) {
	var searched []string
	if doc != nil {
		if def, ok := c.resolveEmbedded(doc, libID); ok {
			return def, nil
		}
		searched = append(searched, "embedded lib_symbols")
	}

	libName, symName, err := SplitLibID(libID)
	if err != nil {
		return nil, err
	}
	lib, err := c.loadLibrary(libName)
	if err != nil {
		if errors.Is(err, errLibraryMissing) {
			searched = append(searched, c.searchPaths...)
			return nil, &NotFoundError{LibID: libID, Searched: searched}
		}
		return nil, err
	}
	def, ok := lib.defs[symName]
	if !ok {
		return nil, &NotFoundError{LibID: libID, Searched: append(searched, lib.path)}
	}
	// Follow the whole extends chain; the seen set stops a cycle.
	seen := map[string]bool{symName: true}
	for cur := def; cur.Extends != "" && !seen[cur.Extends]; {
		parent, ok := lib.defs[cur.Extends]
		if !ok {
			return nil, fmt.Errorf("symbol %q extends unknown parent %q in %s", libID, cur.Extends, lib.path)
		}
		seen[cur.Extends] = true
		def = merged(def, parent)
		cur = parent
	}
	return def, nil
}

// resolveEmbedded looks libID up in the document's lib_symbols section.
// Embedded names are full lib_ids; an embedded extends parent carries
// the same library prefix.
func (c *Catalog) resolveEmbedded(doc *sexp.Document, libID string) (*Definition, bool) {
	root := doc.Root()
	if root == nil {
		return nil, false
	}
	libSyms, ok := root.Find("lib_symbols")
	if !ok {
		return nil, false
	}
	var found *sexp.Node
	for _, sym := range libSyms.FindAll("symbol") {
		if name, err := sexp.GetString(sym, 1); err == nil && name == libID {
			found = sym
			break
		}
	}
	if found == nil {
		return nil, false
	}
	def := parseDefinition(found)
	if def.Extends != "" {
		libName, _, err := SplitLibID(libID)
		parentID := def.Extends
		if err == nil && !strings.Contains(parentID, ":") {
			parentID = libName + ":" + parentID
		}
		if parent, ok := c.resolveEmbedded(doc, parentID); ok {
			def = merged(def, parent)
		}
	}
	return def, true
}

// ExtractBlocks returns the raw library text for libID, renamed with its
// library prefix and ready for insertion into a schematic's lib_symbols
// section. When the symbol extends a parent, the parent's block comes
// first. The blocks keep the library file's own formatting.
func (c *Catalog) ExtractBlocks(libID string) ([]string, error) {
	libName, symName, err := SplitLibID(libID)
	if err != nil {
		return nil, err
	}
	lib, err := c.loadLibrary(libName)
	if err != nil {
		if errors.Is(err, errLibraryMissing) {
			return nil, &NotFoundError{LibID: libID, Searched: c.searchPaths}
		}
		return nil, err
	}
	if err := c.ensureDoc(lib); err != nil {
		return nil, err
	}
	def, ok := lib.defs[symName]
	if !ok {
		return nil, &NotFoundError{LibID: libID, Searched: []string{lib.path}}
	}
	// Ancestors come before descendants so every extends target is
	// already present when the blocks are spliced in order.
	chain := []string{symName}
	seen := map[string]bool{symName: true}
	for cur := def; cur.Extends != "" && !seen[cur.Extends]; {
		parent, ok := lib.defs[cur.Extends]
		if !ok {
			return nil, fmt.Errorf("symbol %q extends unknown parent %q in %s", libID, cur.Extends, lib.path)
		}
		seen[cur.Extends] = true
		chain = append([]string{cur.Extends}, chain...)
		cur = parent
	}
	blocks := make([]string, 0, len(chain))
	for _, name := range chain {
		block, err := extractRenamed(lib, libName, name)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// extractRenamed copies the symbol's source span with the top-level name
// rewritten from "Name" to "Lib:Name". Only the name token changes; the
// body bytes are untouched.
func extractRenamed(lib *library, libName, symName string) (string, error) {
	root := lib.doc.Root()
	for _, sym := range root.FindAll("symbol") {
		name, err := sexp.GetString(sym, 1)
		if err != nil || name != symName {
			continue
		}
		nameNode := sym.Children[1]
		if !sym.Span.Valid() || !nameNode.Span.Valid() {
			return "", fmt.Errorf("symbol %q in %s has no source span", symName, lib.path)
		}
		src := lib.doc.Source
		var b strings.Builder
		b.Write(src[sym.Span.Start:nameNode.Span.Start])
		b.WriteString(sexp.Quote(libName + ":" + symName))
		b.Write(src[nameNode.Span.End:sym.Span.End])
		return b.String(), nil
	}
	return "", &NotFoundError{LibID: libName + ":" + symName, Searched: []string{lib.path}}
}

// loadLibrary finds <name>.kicad_sym on the search path and returns its
// definitions, from the memo, the disk cache, or a fresh parse.
func (c *Catalog) loadLibrary(name string) (*library, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if lib, ok := c.libs[name]; ok {
		return lib, nil
	}
	path, err := c.findLibraryFile(name)
	if err != nil {
		return nil, err
	}
	if defs, ok := c.readDiskCache(path); ok {
		lib := &library{path: path, defs: defs}
		c.libs[name] = lib
		c.log.Debug("symbol library cache hit", zap.String("library", name), zap.String("path", path))
		return lib, nil
	}
	lib, err := parseLibraryFile(path)
	if err != nil {
		return nil, err
	}
	c.libs[name] = lib
	c.writeDiskCache(path, lib.defs)
	c.log.Debug("symbol library loaded",
		zap.String("library", name),
		zap.String("path", path),
		zap.Int("symbols", len(lib.defs)))
	return lib, nil
}

func (c *Catalog) findLibraryFile(name string) (string, error) {
	for _, dir := range c.searchPaths {
		path := filepath.Join(dir, name+".kicad_sym")
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no %s.kicad_sym on search path %v", errLibraryMissing, name, c.searchPaths)
}

// ensureDoc parses the library file if the definitions came from the
// disk cache and the parse tree is needed for block extraction.
func (c *Catalog) ensureDoc(lib *library) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if lib.doc != nil {
		return nil
	}
	parsed, err := parseLibraryFile(lib.path)
	if err != nil {
		return err
	}
	lib.doc = parsed.doc
	lib.defs = parsed.defs
	return nil
}

func parseLibraryFile(path string) (*library, error) {
	doc, err := sexp.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse library %s: %w", path, err)
	}
	root := doc.Root()
	if root == nil || root.Tag() != "kicad_symbol_lib" {
		return nil, fmt.Errorf("%s: not a kicad_symbol_lib document", path)
	}
	defs := make(map[string]*Definition)
	for _, sym := range root.FindAll("symbol") {
		name, err := sexp.GetString(sym, 1)
		if err != nil || IsUnitName(name) {
			continue
		}
		def := parseDefinition(sym)
		defs[name] = def
	}
	return &library{path: path, defs: defs, doc: doc}, nil
}

// ListLibraries returns the sorted names of every .kicad_sym file found
// on the search path.
func (c *Catalog) ListLibraries() ([]string, error) {
	seen := make(map[string]bool)
	for _, dir := range c.searchPaths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if name, ok := strings.CutSuffix(e.Name(), ".kicad_sym"); ok {
				seen[name] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// ListSymbols returns the sorted standalone symbol names in a library,
// excluding the unit sub-groups.
func (c *Catalog) ListSymbols(libName string) ([]string, error) {
	lib, err := c.loadLibrary(libName)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(lib.defs))
	for n := range lib.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}
