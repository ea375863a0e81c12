// Package shooting loads the league team shooting table and clusters teams
// by shot profile.
package shooting

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dotcommander/courtside/internal/logging"
	"github.com/dotcommander/courtside/internal/stats"
)

// TableID is the id of the team shooting table on the league page.
const TableID = "shooting-team"

// LeagueURL returns the league season page, e.g. NBA_2025.html for the
// 2024-25 season.
func LeagueURL(base string, season int) string {
	if base == "" {
		base = stats.DefaultBaseURL
	}
	return fmt.Sprintf("%s/leagues/NBA_%d.html", strings.TrimRight(base, "/"), season)
}

// ValidateSeason checks that season is a plausible end year.
func ValidateSeason(season int) error {
	if season < 1947 || season > time.Now().Year()+1 {
		return fmt.Errorf("invalid season %d: want the year the season ends, e.g. 2025", season)
	}
	return nil
}

// Client loads team shooting tables.
type Client struct {
	getter  stats.PageGetter
	baseURL string
	log     *logging.Logger
}

// NewClient returns a Client fetching from baseURL (default the box-score
// site) with getter.
func NewClient(getter stats.PageGetter, baseURL string, log *logging.Logger) *Client {
	if baseURL == "" {
		baseURL = stats.DefaultBaseURL
	}
	return &Client{getter: getter, baseURL: baseURL, log: logging.OrNop(log)}
}

// TeamShooting returns the season's team shooting table with spacer columns
// removed. Failures use the same error types as play-by-play fetches.
func (c *Client) TeamShooting(ctx context.Context, season int) (*stats.Table, error) {
	url := LeagueURL(c.baseURL, season)
	team := "season " + strconv.Itoa(season)
	log := c.log.With("url", url, "season", season)

	if err := ValidateSeason(season); err != nil {
		return nil, &stats.ParseError{URL: url, Team: team, Reason: err.Error()}
	}

	page, err := c.getter.Get(ctx, url)
	switch {
	case err != nil:
		ferr := &stats.FetchError{URL: url, Team: team, Err: err}
		log.Errorw("could not fetch league page", "error", ferr)
		return nil, ferr
	case page.StatusCode == http.StatusNotFound:
		perr := &stats.ParseError{URL: url, Team: team, Reason: "no league page for this season"}
		log.Errorw("could not fetch league page", "error", perr)
		return nil, perr
	case page.StatusCode < 200 || page.StatusCode > 299:
		ferr := &stats.FetchError{URL: url, Team: team, StatusCode: page.StatusCode}
		log.Errorw("could not fetch league page", "error", ferr)
		return nil, ferr
	case page.Truncated:
		perr := &stats.ParseError{URL: url, Team: team, Reason: stats.TooLargeReason}
		log.Errorw("could not parse league page", "error", perr)
		return nil, perr
	}

	table, err := stats.ParseTableID(bytes.NewReader(page.Body), TableID)
	if err != nil {
		perr := &stats.ParseError{URL: url, Team: team, Reason: err.Error()}
		log.Errorw("could not parse team shooting table", "error", perr)
		return nil, perr
	}
	table = dropSpacers(table)
	log.Debugw("fetched team shooting", "teams", table.Len())
	return table, nil
}

// dropSpacers removes unnamed columns that are empty in every row.
func dropSpacers(t *stats.Table) *stats.Table {
	var keep []int
	for j, c := range t.Columns {
		if !strings.HasPrefix(c, "Unnamed: ") {
			keep = append(keep, j)
			continue
		}
		for _, row := range t.Rows {
			if row[j] != "" {
				keep = append(keep, j)
				break
			}
		}
	}
	out := &stats.Table{Columns: make([]string, 0, len(keep)), Rows: make([][]string, 0, len(t.Rows))}
	for _, j := range keep {
		out.Columns = append(out.Columns, t.Columns[j])
	}
	for _, row := range t.Rows {
		r := make([]string, 0, len(keep))
		for _, j := range keep {
			r = append(r, row[j])
		}
		out.Rows = append(out.Rows, r)
	}
	return out
}
