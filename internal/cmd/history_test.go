package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/courtside/internal/config"
	"github.com/dotcommander/courtside/internal/errs"
	"github.com/dotcommander/courtside/internal/storage"
)

// seedArchive stores reports in a temp archive and closes it, so the
// commands under test can open it themselves.
func seedArchive(t *testing.T, entries ...storage.Entry) (*config.Config, []storage.Entry) {
	t.Helper()
	cfg := &config.Config{
		Settings: config.Settings{CachePath: t.TempDir(), Quiet: true, Raw: true},
	}
	a, err := openArchive(cfg)
	require.NoError(t, err)
	stored := make([]storage.Entry, 0, len(entries))
	for _, e := range entries {
		s, err := a.Put(e, "# "+e.Title+"\n")
		require.NoError(t, err)
		stored = append(stored, s)
	}
	require.NoError(t, a.Close())
	return cfg, stored
}

func reloadEntries(t *testing.T, cfg *config.Config) []storage.Entry {
	t.Helper()
	a, err := openArchive(cfg)
	require.NoError(t, err)
	defer a.Close() //nolint:errcheck
	return a.List()
}

func TestListReports(t *testing.T) {
	t.Run("empty archive", func(t *testing.T) {
		cfg, _ := seedArchive(t)
		require.NoError(t, listReports(cfg, true))
	})

	t.Run("with reports", func(t *testing.T) {
		cfg, _ := seedArchive(t, storage.Entry{Title: "HOU vs DAL, 2025-01-15", Date: "20250115", HomeTeam: "HOU", AwayTeam: "DAL"})
		require.NoError(t, listReports(cfg, true))
	})
}

func TestShowReport(t *testing.T) {
	cfg, stored := seedArchive(t,
		storage.Entry{Title: "older", CreatedAt: time.Now().Add(-time.Hour)},
		storage.Entry{Title: "newer"},
	)

	t.Run("by id prefix", func(t *testing.T) {
		require.NoError(t, showReport(cfg, storage.ShortID(stored[0].ID)))
	})

	t.Run("by title", func(t *testing.T) {
		require.NoError(t, showReport(cfg, "newer"))
	})

	t.Run("last", func(t *testing.T) {
		require.NoError(t, showReport(cfg, ""))
	})

	t.Run("unknown", func(t *testing.T) {
		err := showReport(cfg, "nope")
		require.ErrorIs(t, err, storage.ErrNoMatches)
	})
}

func TestDeleteReports(t *testing.T) {
	t.Run("deletes single report", func(t *testing.T) {
		cfg, stored := seedArchive(t, storage.Entry{Title: "first"}, storage.Entry{Title: "second"})
		require.NoError(t, deleteReports(cfg, []string{stored[0].ID}))

		left := reloadEntries(t, cfg)
		require.Len(t, left, 1)
		require.Equal(t, "second", left[0].Title)
	})

	t.Run("deletes multiple reports", func(t *testing.T) {
		cfg, _ := seedArchive(t, storage.Entry{Title: "first"}, storage.Entry{Title: "second"})
		require.NoError(t, deleteReports(cfg, []string{"first", "second"}))
		require.Empty(t, reloadEntries(t, cfg))
	})

	t.Run("stops on unknown report", func(t *testing.T) {
		cfg, _ := seedArchive(t, storage.Entry{Title: "first"})
		require.Error(t, deleteReports(cfg, []string{"missing"}))
		require.Len(t, reloadEntries(t, cfg), 1)
	})
}

func TestPruneReports(t *testing.T) {
	t.Run("requires a duration", func(t *testing.T) {
		cfg, _ := seedArchive(t)
		err := pruneReports(cfg, 0)
		require.Error(t, err)
		require.Equal(t, errs.CodeUsage, errs.ExitCode(err))
	})

	t.Run("deletes only old reports", func(t *testing.T) {
		cfg, _ := seedArchive(t,
			storage.Entry{Title: "stale", CreatedAt: time.Now().Add(-72 * time.Hour)},
			storage.Entry{Title: "fresh"},
		)
		require.NoError(t, pruneReports(cfg, 24*time.Hour))

		left := reloadEntries(t, cfg)
		require.Len(t, left, 1)
		require.Equal(t, "fresh", left[0].Title)
	})

	t.Run("nothing to prune", func(t *testing.T) {
		cfg, _ := seedArchive(t, storage.Entry{Title: "fresh"})
		require.NoError(t, pruneReports(cfg, time.Hour))
		require.Len(t, reloadEntries(t, cfg), 1)
	})
}
