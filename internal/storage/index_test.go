package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testIndex(tb testing.TB) (*Index, *clock) {
	idx, err := OpenIndex(":memory:")
	require.NoError(tb, err)
	tb.Cleanup(func() { require.NoError(tb, idx.Close()) })
	c := &clock{t: time.Date(2025, 11, 17, 10, 0, 0, 0, time.UTC)}
	idx.now = c.now
	return idx, c
}

func entry(id, title string) Entry {
	return Entry{ID: id, Title: title, Date: "20251116", HomeTeam: "HOU", AwayTeam: "ORL"}
}

func TestIndex(t *testing.T) {
	const testid = "df31ae23ab8b75b5643c2f846c570997edc71333"

	t.Run("list empty", func(t *testing.T) {
		idx, _ := testIndex(t)
		require.Empty(t, idx.List())
	})

	t.Run("save and find", func(t *testing.T) {
		idx, c := testIndex(t)
		require.NoError(t, idx.Save(entry(testid, "ORL @ HOU, 20251116")))

		e, err := idx.Find("df31")
		require.NoError(t, err)
		require.Equal(t, testid, e.ID)
		require.Equal(t, c.t, e.CreatedAt)
	})

	t.Run("save validation", func(t *testing.T) {
		idx, _ := testIndex(t)
		require.Error(t, idx.Save(entry("", "title")))
		require.Error(t, idx.Save(entry(NewID(), " ")))
	})

	t.Run("update keeps one entry", func(t *testing.T) {
		idx, _ := testIndex(t)
		require.NoError(t, idx.Save(entry(testid, "first")))
		require.NoError(t, idx.Save(entry(testid, "second")))
		require.Len(t, idx.List(), 1)
		e, err := idx.Find(testid)
		require.NoError(t, err)
		require.Equal(t, "second", e.Title)
	})

	t.Run("head is newest", func(t *testing.T) {
		idx, c := testIndex(t)
		_, err := idx.FindHEAD()
		require.ErrorIs(t, err, ErrNoMatches)

		require.NoError(t, idx.Save(entry(testid, "old")))
		c.advance(time.Minute)
		next := NewID()
		require.NoError(t, idx.Save(entry(next, "new")))

		head, err := idx.FindHEAD()
		require.NoError(t, err)
		require.Equal(t, next, head.ID)
	})

	t.Run("find by title and ambiguity", func(t *testing.T) {
		idx, _ := testIndex(t)
		const testid2 = "df31ae23ab9b75b5641c2f846c571000edc71315"
		require.NoError(t, idx.Save(entry(testid, "game one")))
		require.NoError(t, idx.Save(entry(testid2, "game two")))

		e, err := idx.Find("game two")
		require.NoError(t, err)
		require.Equal(t, testid2, e.ID)

		_, err = idx.Find("df31ae")
		require.ErrorIs(t, err, ErrManyMatches)
		_, err = idx.Find("game")
		require.ErrorIs(t, err, ErrNoMatches)
		_, err = idx.Find("df3")
		require.ErrorIs(t, err, ErrNoMatches, "prefixes shorter than IDMinLen only match titles")
	})

	t.Run("older than and per game", func(t *testing.T) {
		idx, c := testIndex(t)
		oldID := NewID()
		require.NoError(t, idx.Save(entry(oldID, "old")))
		c.advance(48 * time.Hour)
		other := Entry{ID: NewID(), Title: "other", Date: "20251201", HomeTeam: "HOU", AwayTeam: "UTA"}
		require.NoError(t, idx.Save(other))

		old := idx.ListOlderThan(24 * time.Hour)
		require.Len(t, old, 1)
		require.Equal(t, oldID, old[0].ID)

		game := idx.ListGame("20251201", "hou")
		require.Len(t, game, 1)
		require.Equal(t, other.ID, game[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		idx, _ := testIndex(t)
		require.NoError(t, idx.Save(entry(testid, "x")))
		require.NoError(t, idx.Delete(NewID()))
		require.Len(t, idx.List(), 1)
		require.NoError(t, idx.Delete(testid))
		require.Empty(t, idx.List())
		require.Error(t, idx.Delete(""))
	})

	t.Run("completions", func(t *testing.T) {
		idx, _ := testIndex(t)
		const testid1 = "fc5012d8c67073ea0a46a3c05488a0e1d87df74b"
		const title1 = "some title"
		const testid2 = "6c33f71694bf41a18c844a96d1f62f153e5f6f44"
		const title2 = "finals game"
		require.NoError(t, idx.Save(entry(testid1, title1)))
		require.NoError(t, idx.Save(entry(testid2, title2)))

		require.Equal(t, []string{
			fmt.Sprintf("%s\t%s", testid1[:IDShort], title1),
			fmt.Sprintf("%s\t%s", title2, testid2[:IDShort]),
		}, idx.Completions("f"))
		require.Equal(t, []string{fmt.Sprintf("%s\t%s", testid1, title1)}, idx.Completions(testid1[:8]))
	})

	t.Run("persists to jsonl", func(t *testing.T) {
		dir := t.TempDir()
		idx, err := OpenIndex(dir)
		require.NoError(t, err)
		require.NoError(t, idx.Save(entry(testid, "x")))
		require.NoError(t, idx.Delete(testid))
		require.NoError(t, idx.Save(entry(testid, "y")))
		require.NoError(t, idx.Close())

		again, err := OpenIndex(dir)
		require.NoError(t, err)
		e, err := again.Find(testid[:8])
		require.NoError(t, err)
		require.Equal(t, "y", e.Title)
		_, err = os.Stat(filepath.Join(dir, indexFileName))
		require.NoError(t, err)
	})

	t.Run("compaction", func(t *testing.T) {
		dir := t.TempDir()
		idx, err := OpenIndex(dir)
		require.NoError(t, err)
		for range compactMinOps {
			require.NoError(t, idx.Save(entry(testid, "same")))
		}
		require.Equal(t, 1, idx.ops)

		again, err := OpenIndex(dir)
		require.NoError(t, err)
		require.Len(t, again.List(), 1)
	})

	t.Run("corrupt index", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, indexFileName), []byte("{nope\n"), 0o600))
		_, err := OpenIndex(dir)
		require.Error(t, err)
	})
}

func TestArchive(t *testing.T) {
	a, err := OpenArchive(t.TempDir())
	require.NoError(t, err)

	e, err := a.Put(entry("", "ORL @ HOU, 20251116"), "## Rockets hold off Magic\n")
	require.NoError(t, err)
	require.Len(t, e.ID, 40)
	require.False(t, e.CreatedAt.IsZero())

	md, err := a.Read(e.ID)
	require.NoError(t, err)
	require.Equal(t, "## Rockets hold off Magic\n", md)

	got, err := a.Find(ShortID(e.ID))
	require.NoError(t, err)
	require.Equal(t, e, *got)

	t.Run("remove", func(t *testing.T) {
		e2, err := a.Put(entry("", "second"), "text")
		require.NoError(t, err)
		require.NoError(t, a.Remove(e2.ID))
		_, err = a.Read(e2.ID)
		require.Error(t, err)
		require.Len(t, a.List(), 1)
	})

	t.Run("prune", func(t *testing.T) {
		a.now = func() time.Time { return e.CreatedAt.Add(72 * time.Hour) }
		pruned, err := a.Prune(24 * time.Hour)
		require.NoError(t, err)
		require.Len(t, pruned, 1)
		require.Empty(t, a.List())
	})
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	require.NoError(t, err)
	now := time.Now()
	c.now = func() time.Time { return now }

	_, ok, err := c.Get(ctx, "courtside:pbp:20251116:HOU")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "courtside:pbp:20251116:HOU", "[1]{Time}:\n  12:00.0", time.Hour))
	v, ok, err := c.Get(ctx, "courtside:pbp:20251116:HOU")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "[1]{Time}:\n  12:00.0", v)

	now = now.Add(2 * time.Hour)
	_, ok, err = c.Get(ctx, "courtside:pbp:20251116:HOU")
	require.NoError(t, err)
	require.False(t, ok, "expired")

	require.NoError(t, c.Set(ctx, "forever", "v", 0))
	_, ok, err = c.Get(ctx, "forever")
	require.NoError(t, err)
	require.True(t, ok)
}
