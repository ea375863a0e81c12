// Package cache stores report documents as files, sharded by id prefix.
package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Type names a cache directory.
type Type string

// Cache types.
const (
	Reports Type = "reports"
	Stats   Type = "stats"
	Visuals Type = "visuals"
)

const shardPrefixLen = 2

var errInvalidID = errors.New("invalid id")

// Cache keeps one file per id under <base>/<type>/<id[:2]>/<id><ext>.
type Cache struct {
	dir string
	ext string
}

// New creates the cache directory. ext is the file extension, e.g. ".md".
func New(baseDir string, t Type, ext string) (*Cache, error) {
	dir := filepath.Join(baseDir, string(t))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Cache{dir: dir, ext: ext}, nil
}

// Path returns the file that holds id.
func (c *Cache) Path(id string) string {
	if len(id) < shardPrefixLen {
		return filepath.Join(c.dir, id+c.ext)
	}
	return filepath.Join(c.dir, id[:shardPrefixLen], id+c.ext)
}

// Read opens id and passes it to readFn.
func (c *Cache) Read(id string, readFn func(io.Reader) error) error {
	if id == "" {
		return fmt.Errorf("read: %w", errInvalidID)
	}
	f, err := os.Open(c.Path(id))
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	defer f.Close() //nolint:errcheck
	if err := readFn(f); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return nil
}

// Write replaces id atomically with what writeFn produces.
func (c *Cache) Write(id string, writeFn func(io.Writer) error) error {
	if id == "" {
		return fmt.Errorf("write: %w", errInvalidID)
	}
	path := c.Path(id)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeFn(tmp); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Delete removes id.
func (c *Cache) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("delete: %w", errInvalidID)
	}
	if err := os.Remove(c.Path(id)); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}
