// Package storage archives generated game reports: a JSONL index of report
// metadata plus one markdown file per report.
package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

var (
	// ErrNoMatches is returned when no reports match the query.
	ErrNoMatches = errors.New("no reports found")
	// ErrManyMatches is returned when multiple reports match the query.
	ErrManyMatches = errors.New("multiple reports matched the input")
)

const (
	indexFileName      = "index.jsonl"
	lockFileName       = "index.lock"
	compactMinOps      = 256
	compactScaleFactor = 4
)

// Entry is the metadata of one archived report.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	Model     string    `json:"model,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type indexEvent struct {
	Op    string `json:"op"`
	ID    string `json:"id,omitempty"`
	Entry *Entry `json:"entry,omitempty"`
}

// Index is an append-only JSONL report index guarded by a file lock, so
// several processes can share one archive.
type Index struct {
	mu             sync.RWMutex
	indexPath      string
	lock           *flock.Flock
	entries        map[string]Entry
	ops            int
	now            func() time.Time
	cleanupTempDir string
}

// OpenIndex loads the index in dir. The special value ":memory:" uses a
// temporary directory removed on Close.
func OpenIndex(dir string) (*Index, error) {
	dir, cleanup, err := resolveDir(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create archive directory: %w", err)
	}
	idx := &Index{
		indexPath:      filepath.Join(dir, indexFileName),
		lock:           flock.New(filepath.Join(dir, lockFileName)),
		entries:        map[string]Entry{},
		now:            time.Now,
		cleanupTempDir: cleanup,
	}
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

func resolveDir(ds string) (dir, cleanup string, err error) {
	if ds != ":memory:" {
		return ds, "", nil
	}
	tmp, err := os.MkdirTemp("", "courtside-reports-*")
	if err != nil {
		return "", "", fmt.Errorf("could not create temp archive directory: %w", err)
	}
	return tmp, tmp, nil
}

// Close releases temporary resources.
func (x *Index) Close() error {
	if x.cleanupTempDir == "" {
		return nil
	}
	if err := os.RemoveAll(x.cleanupTempDir); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Save upserts e. A zero CreatedAt is set to now.
func (x *Index) Save(e Entry) error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("save: %w", errors.New("empty id"))
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("save: %w", errors.New("empty title"))
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = x.now().UTC()
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries[e.ID] = e
	if err := x.appendLocked(indexEvent{Op: "upsert", Entry: &e}); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := x.compactIfNeededLocked(); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Delete removes the entry with id. Unknown ids are not an error.
func (x *Index) Delete(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("delete: %w", errors.New("empty id"))
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.entries[id]; !ok {
		return nil
	}
	delete(x.entries, id)
	if err := x.appendLocked(indexEvent{Op: "delete", ID: id}); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if err := x.compactIfNeededLocked(); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// List returns entries newest first.
func (x *Index) List() []Entry {
	return x.filter(func(Entry) bool { return true })
}

// ListOlderThan returns entries created more than d ago, newest first.
func (x *Index) ListOlderThan(d time.Duration) []Entry {
	cutoff := x.now().Add(-d)
	return x.filter(func(e Entry) bool { return e.CreatedAt.Before(cutoff) })
}

// ListGame returns the reports of one game, newest first.
func (x *Index) ListGame(date, homeTeam string) []Entry {
	return x.filter(func(e Entry) bool {
		return e.Date == date && strings.EqualFold(e.HomeTeam, homeTeam)
	})
}

func (x *Index) filter(keep func(Entry) bool) []Entry {
	x.mu.RLock()
	out := make([]Entry, 0, len(x.entries))
	for _, e := range x.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	x.mu.RUnlock()
	sortNewestFirst(out)
	return out
}

// FindHEAD returns the newest entry.
func (x *Index) FindHEAD() (*Entry, error) {
	list := x.List()
	if len(list) == 0 {
		return nil, fmt.Errorf("find head: %w", ErrNoMatches)
	}
	return &list[0], nil
}

// Find resolves an entry by ID prefix or exact title.
func (x *Index) Find(in string) (*Entry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var found []Entry
	for _, e := range x.entries {
		if e.Title == in || (len(in) >= IDMinLen && strings.HasPrefix(e.ID, in)) {
			found = append(found, e)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNoMatches, in)
	case 1:
		return &found[0], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrManyMatches, in)
}

// Completions returns shell completion candidates for ids and titles.
func (x *Index) Completions(in string) []string {
	set := map[string]struct{}{}
	x.mu.RLock()
	for _, e := range x.entries {
		if strings.HasPrefix(e.ID, in) {
			id := e.ID
			if len(in) < IDShort && len(id) > IDShort {
				id = id[:IDShort]
			}
			set[id+"\t"+e.Title] = struct{}{}
		}
		if strings.HasPrefix(e.Title, in) {
			set[e.Title+"\t"+ShortID(e.ID)] = struct{}{}
		}
	}
	x.mu.RUnlock()

	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (x *Index) load() error {
	if err := x.lock.Lock(); err != nil {
		return fmt.Errorf("could not lock index file: %w", err)
	}
	defer func() { _ = x.lock.Unlock() }()

	f, err := os.Open(x.indexPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not open index file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var evt indexEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			return fmt.Errorf("could not parse index event: %w", err)
		}
		if err := x.apply(evt); err != nil {
			return err
		}
		x.ops++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("could not scan index file: %w", err)
	}
	return nil
}

func (x *Index) apply(evt indexEvent) error {
	switch evt.Op {
	case "upsert":
		if evt.Entry == nil || strings.TrimSpace(evt.Entry.ID) == "" {
			return fmt.Errorf("invalid upsert event: missing entry id")
		}
		x.entries[evt.Entry.ID] = *evt.Entry
	case "delete":
		if strings.TrimSpace(evt.ID) == "" {
			return fmt.Errorf("invalid delete event: empty id")
		}
		delete(x.entries, evt.ID)
	default:
		return fmt.Errorf("invalid index event op: %q", evt.Op)
	}
	return nil
}

func (x *Index) appendLocked(evt indexEvent) error {
	if err := x.lock.Lock(); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = x.lock.Unlock() }()

	f, err := os.OpenFile(x.indexPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = f.Close() }()

	bts, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal index event: %w", err)
	}
	if _, err := f.Write(append(bts, '\n')); err != nil {
		return fmt.Errorf("write index event: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}
	x.ops++
	return nil
}

func (x *Index) compactIfNeededLocked() error {
	if x.ops < compactMinOps {
		return nil
	}
	if len(x.entries) > 0 && x.ops < len(x.entries)*compactScaleFactor {
		return nil
	}
	return x.compactLocked()
}

// compactLocked rewrites the index with one upsert per live entry.
func (x *Index) compactLocked() error {
	if err := x.lock.Lock(); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = x.lock.Unlock() }()

	items := make([]Entry, 0, len(x.entries))
	for _, e := range x.entries {
		items = append(items, e)
	}
	sortNewestFirst(items)

	tmpPath := x.indexPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open compacted index: %w", err)
	}
	enc := json.NewEncoder(f)
	for i := len(items) - 1; i >= 0; i-- {
		if err := enc.Encode(indexEvent{Op: "upsert", Entry: &items[i]}); err != nil {
			_ = f.Close()
			return fmt.Errorf("write compacted index: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync compacted index: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close compacted index: %w", err)
	}
	if err := os.Rename(tmpPath, x.indexPath); err != nil {
		return fmt.Errorf("replace index with compacted version: %w", err)
	}
	if d, err := os.Open(filepath.Dir(x.indexPath)); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	x.ops = len(x.entries)
	return nil
}

func sortNewestFirst(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].CreatedAt.Equal(es[j].CreatedAt) {
			return es[i].ID < es[j].ID
		}
		return es[i].CreatedAt.After(es[j].CreatedAt)
	})
}
