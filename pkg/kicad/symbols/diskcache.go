package symbols

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// cacheEntry is the on-disk form of a parsed library's pin tables. The
// source file's mtime and size invalidate it; stale entries are simply
// ignored and overwritten after the next parse.
type cacheEntry struct {
	Path    string                 `msgpack:"path"`
	ModTime int64                  `msgpack:"mtime"`
	Size    int64                  `msgpack:"size"`
	Defs    map[string]*Definition `msgpack:"defs"`
}

func (c *Catalog) cacheFile(libPath string) string {
	sum := sha256.Sum256([]byte(libPath))
	return filepath.Join(c.cacheDir, hex.EncodeToString(sum[:8])+".symcache")
}

func (c *Catalog) readDiskCache(libPath string) (map[string]*Definition, bool) {
	if c.cacheDir == "" {
		return nil, false
	}
	info, err := os.Stat(libPath)
	if err != nil {
		return nil, false
	}
	raw, err := os.ReadFile(c.cacheFile(libPath))
	if err != nil {
		return nil, false
	}
	var entry cacheEntry
	if err := msgpack.Unmarshal(raw, &entry); err != nil {
		c.log.Debug("symbol cache entry unreadable", zap.String("path", libPath), zap.Error(err))
		return nil, false
	}
	if entry.Path != libPath || entry.ModTime != info.ModTime().UnixNano() || entry.Size != info.Size() {
		return nil, false
	}
	return entry.Defs, true
}

func (c *Catalog) writeDiskCache(libPath string, defs map[string]*Definition) {
	if c.cacheDir == "" {
		return
	}
	info, err := os.Stat(libPath)
	if err != nil {
		return
	}
	entry := cacheEntry{
		Path:    libPath,
		ModTime: info.ModTime().UnixNano(),
		Size:    info.Size(),
		Defs:    defs,
	}
	raw, err := msgpack.Marshal(&entry)
	if err != nil {
		return
	}
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return
	}
	if err := os.WriteFile(c.cacheFile(libPath), raw, 0o644); err != nil {
		c.log.Debug("symbol cache write failed", zap.String("path", libPath), zap.Error(err))
	}
}
