package shooting

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/courtside/internal/stats"
)

var profiles = []struct {
	team     string
	threes   string
	rim      string
	threePct string
}{
	{"Boston Celtics*", ".540", ".210", ".368"},
	{"Golden State Warriors*", ".520", ".220", ".366"},
	{"Miami Heat", ".470", ".250", ".360"},
	{"Denver Nuggets*", ".330", ".360", ".377"},
	{"Memphis Grizzlies*", ".340", ".370", ".352"},
	{"Sacramento Kings", ".350", ".350", ".362"},
}

// leaguePage mimics the site: the shooting table is commented out and has a
// spacer column between header groups.
func leaguePage() string {
	var b strings.Builder
	b.WriteString(`<html><body><table id="per_game-team"><tr><th>x</th></tr><tr><th>y</th></tr><tr><td>1</td></tr></table>`)
	b.WriteString(`<div id="all_shooting-team"><!--
<table id="shooting-team"><thead>
<tr><th colspan="4"></th><th></th><th colspan="2">% of FGA by Distance</th><th></th><th colspan="1">FG% by Distance</th></tr>
<tr><th>Rk</th><th>Team</th><th>G</th><th>MP</th><th></th><th>3P</th><th>0-3</th><th></th><th>3P</th></tr>
</thead><tbody>`)
	for i, p := range profiles {
		fmt.Fprintf(&b, `<tr><th>%d</th><td>%s</td><td>82</td><td>19780</td><td></td><td>%s</td><td>%s</td><td></td><td>%s</td></tr>`,
			i+1, p.team, p.threes, p.rim, p.threePct)
	}
	b.WriteString(`</tbody><tfoot><tr><td></td><td>League Average</td></tr></tfoot></table>
--></div></body></html>`)
	return b.String()
}

func newLeague(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/leagues/NBA_2025.html":
			_, _ = w.Write([]byte(leaguePage()))
		case "/leagues/NBA_2024.html":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTeamShooting(t *testing.T) {
	srv := newLeague(t)
	c := NewClient(stats.NewHTTPGetter(0, 0, "test"), srv.URL, nil)
	ctx := context.Background()

	t.Run("commented table", func(t *testing.T) {
		table, err := c.TeamShooting(ctx, 2025)
		require.NoError(t, err)
		require.Equal(t, []string{"Rk", "Team", "G", "MP", "3P", "0-3", "3P.1"}, table.Columns)
		require.Equal(t, 6, table.Len())
		require.Equal(t, "Boston Celtics*", table.Row(0)["Team"])
	})

	t.Run("missing season", func(t *testing.T) {
		_, err := c.TeamShooting(ctx, 2023)
		require.ErrorIs(t, err, stats.ErrParse)
	})

	t.Run("server error", func(t *testing.T) {
		_, err := c.TeamShooting(ctx, 2024)
		require.ErrorIs(t, err, stats.ErrFetch)
	})

	t.Run("invalid season", func(t *testing.T) {
		_, err := c.TeamShooting(ctx, 25)
		require.ErrorIs(t, err, stats.ErrParse)
	})
}

func TestLeagueURL(t *testing.T) {
	require.Equal(t, "https://www.basketball-reference.com/leagues/NBA_2025.html", LeagueURL("", 2025))
}

func TestCluster(t *testing.T) {
	srv := newLeague(t)
	table, err := NewClient(stats.NewHTTPGetter(0, 0, "test"), srv.URL, nil).TeamShooting(context.Background(), 2025)
	require.NoError(t, err)

	t.Run("separates shot profiles", func(t *testing.T) {
		c, err := Cluster(table, 2)
		require.NoError(t, err)
		require.Equal(t, []string{"3P", "0-3", "3P.1"}, c.Features)
		require.Equal(t, "Boston Celtics", c.Teams[0])
		require.Equal(t, c.Labels[0], c.Labels[1])
		require.Equal(t, c.Labels[0], c.Labels[2])
		require.Equal(t, c.Labels[3], c.Labels[4])
		require.Equal(t, c.Labels[3], c.Labels[5])
		require.NotEqual(t, c.Labels[0], c.Labels[3])
		require.Len(t, c.Centroids, 2)
	})

	t.Run("deterministic", func(t *testing.T) {
		a, err := Cluster(table, 3)
		require.NoError(t, err)
		b, err := Cluster(table, 3)
		require.NoError(t, err)
		require.Equal(t, a.Labels, b.Labels)
		require.Equal(t, 1, a.Labels[0])
	})

	t.Run("one cluster per team", func(t *testing.T) {
		c, err := Cluster(table, 6)
		require.NoError(t, err)
		require.InDelta(t, 0, c.Inertia, 1e-9)
	})

	t.Run("bad k", func(t *testing.T) {
		_, err := Cluster(table, 0)
		require.Error(t, err)
		_, err = Cluster(table, 7)
		require.Error(t, err)
	})

	t.Run("table rendering", func(t *testing.T) {
		c, err := Cluster(table, 2)
		require.NoError(t, err)
		out := c.Table(table)
		require.Equal(t, []string{"Team", "Cluster", "3P", "0-3", "3P.1"}, out.Columns)
		require.Equal(t, "1", out.Rows[0][1])
		md := stats.Markdown(out)
		require.True(t, strings.HasPrefix(md, "| Team | Cluster | 3P | 0-3 | 3P.1 |\n|---|---|---|---|---|\n"))
	})
}
