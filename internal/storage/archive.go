package storage

import (
	"context"
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dotcommander/courtside/internal/storage/cache"
)

// Archive is the report index plus the report markdown files.
type Archive struct {
	*Index
	files *cache.Cache
}

// OpenArchive opens the archive rooted at dir.
func OpenArchive(dir string) (*Archive, error) {
	idx, err := OpenIndex(dir)
	if err != nil {
		return nil, err
	}
	files, err := cache.New(filepath.Dir(idx.indexPath), cache.Reports, ".md")
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	return &Archive{Index: idx, files: files}, nil
}

// Put stores markdown and indexes e. An empty id is generated; the stored
// entry is returned.
func (a *Archive) Put(e Entry, markdown string) (Entry, error) {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = a.now().UTC()
	}
	err := a.files.Write(e.ID, func(w io.Writer) error {
		_, err := io.WriteString(w, markdown)
		return err
	})
	if err != nil {
		return e, fmt.Errorf("store report %s: %w", ShortID(e.ID), err)
	}
	if err := a.Save(e); err != nil {
		_ = a.files.Delete(e.ID)
		return e, err
	}
	return e, nil
}

// Read returns the markdown of report id.
func (a *Archive) Read(id string) (string, error) {
	var sb strings.Builder
	err := a.files.Read(id, func(r io.Reader) error {
		_, err := io.Copy(&sb, r)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("read report %s: %w", ShortID(id), err)
	}
	return sb.String(), nil
}

// Remove deletes the report file and its index entry.
func (a *Archive) Remove(id string) error {
	if err := a.files.Delete(id); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return a.Delete(id)
}

// Prune removes every report older than d and returns them.
func (a *Archive) Prune(d time.Duration) ([]Entry, error) {
	old := a.ListOlderThan(d)
	for _, e := range old {
		if err := a.Remove(e.ID); err != nil {
			return nil, err
		}
	}
	return old, nil
}

const noExpiry = 10 * 365 * 24 * time.Hour

// FileCache is a file-backed stats cache for when no Redis is configured.
// Entries expire by file modification time.
type FileCache struct {
	files *cache.Cache
	now   func() time.Time
}

// NewFileCache keeps entries under dir.
func NewFileCache(dir string) (*FileCache, error) {
	files, err := cache.New(dir, cache.Stats, ".toon")
	if err != nil {
		return nil, err
	}
	return &FileCache{files: files, now: time.Now}, nil
}

func fileKey(key string) string {
	sum := sha1.Sum([]byte(key)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// Get returns the value of key unless it is missing or older than its TTL.
func (c *FileCache) Get(_ context.Context, key string) (string, bool, error) {
	id := fileKey(key)
	info, err := os.Stat(c.files.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !c.now().Before(info.ModTime()) {
		_ = c.files.Delete(id)
		return "", false, nil
	}
	var sb strings.Builder
	if err := c.files.Read(id, func(r io.Reader) error {
		_, err := io.Copy(&sb, r)
		return err
	}); err != nil {
		return "", false, err
	}
	return sb.String(), true, nil
}

// Set stores value. The expiry time is kept as the file modification time;
// a ttl <= 0 keeps the entry for years.
func (c *FileCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	id := fileKey(key)
	if err := c.files.Write(id, func(w io.Writer) error {
		_, err := io.WriteString(w, value)
		return err
	}); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = noExpiry
	}
	exp := c.now().Add(ttl)
	return os.Chtimes(c.files.Path(id), exp, exp)
}
