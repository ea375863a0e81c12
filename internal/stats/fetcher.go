package stats

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/dotcommander/courtside/internal/logging"
)

// Source yields the play-by-play table of a game.
type Source interface {
	PlayByPlay(ctx context.Context, key GameKey) (*Table, error)
}

// Fetcher retrieves and parses play-by-play pages.
type Fetcher struct {
	getter  PageGetter
	baseURL string
	retries int
	backoff func() backoff.BackOff
	log     *logging.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithBaseURL overrides the site root.
func WithBaseURL(u string) FetcherOption {
	return func(f *Fetcher) { f.baseURL = u }
}

// WithRetries retries transient fetch failures up to n extra times with
// exponential backoff. Parse failures and missing pages are never retried.
func WithRetries(n int) FetcherOption {
	return func(f *Fetcher) { f.retries = max(n, 0) }
}

// WithBackoff replaces the retry schedule.
func WithBackoff(fn func() backoff.BackOff) FetcherOption {
	return func(f *Fetcher) { f.backoff = fn }
}

// WithLogger sets the logger failures are reported to.
func WithLogger(l *logging.Logger) FetcherOption {
	return func(f *Fetcher) { f.log = l }
}

// NewFetcher returns a Fetcher using getter for transport.
func NewFetcher(getter PageGetter, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		getter:  getter,
		baseURL: DefaultBaseURL,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = logging.OrNop(f.log)
	return f
}

// PlayByPlay fetches the first table of the game's play-by-play page.
//
// It returns *FetchError when the page cannot be retrieved and *ParseError
// when the page holds no two-level table. A 404 is a ParseError: the site
// answered, there is just no game published under that key.
func (f *Fetcher) PlayByPlay(ctx context.Context, key GameKey) (*Table, error) {
	key = key.Normalize()
	url := PlayByPlayURL(f.baseURL, key)
	log := f.log.With("url", url, "date", key.Date, "team", key.HomeTeam)

	if err := key.Validate(); err != nil {
		perr := &ParseError{URL: url, Date: key.Date, Team: key.HomeTeam, Reason: err.Error()}
		log.Errorw("invalid game key", "error", perr)
		return nil, perr
	}

	page, err := f.get(ctx, url, key)
	if err != nil {
		log.Errorw("could not fetch play-by-play page", "error", err)
		return nil, err
	}

	table, err := ParseTable(bytes.NewReader(page.Body))
	if err != nil {
		perr := &ParseError{URL: url, Date: key.Date, Team: key.HomeTeam, Reason: err.Error()}
		log.Errorw("could not parse play-by-play page", "error", perr)
		return nil, perr
	}
	log.Debugw("fetched play-by-play", "rows", table.Len(), "columns", table.Width())
	return table, nil
}

func (f *Fetcher) get(ctx context.Context, url string, key GameKey) (*Page, error) {
	attempt := 0
	op := func() (*Page, error) {
		attempt++
		page, err := f.getOnce(ctx, url, key)
		if err == nil {
			return page, nil
		}
		var ferr *FetchError
		if errors.As(err, &ferr) && ferr.Transient() && ctx.Err() == nil {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}
	if f.retries == 0 {
		page, err := op()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		return page, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(f.backoff()),
		backoff.WithMaxTries(uint(f.retries+1)),
		backoff.WithNotify(func(err error, d time.Duration) {
			f.log.Warnw("retrying play-by-play fetch", "url", url, "attempt", attempt, "wait", d, "error", err)
		}),
	)
}

func (f *Fetcher) getOnce(ctx context.Context, url string, key GameKey) (*Page, error) {
	page, err := f.getter.Get(ctx, url)
	if err != nil {
		return nil, &FetchError{URL: url, Date: key.Date, Team: key.HomeTeam, Err: err}
	}
	switch {
	case page.StatusCode == http.StatusNotFound:
		return nil, &ParseError{URL: url, Date: key.Date, Team: key.HomeTeam, Reason: "no play-by-play page published for this date and team"}
	case page.StatusCode < 200 || page.StatusCode > 299:
		return nil, &FetchError{URL: url, Date: key.Date, Team: key.HomeTeam, StatusCode: page.StatusCode}
	case page.Truncated:
		return nil, &ParseError{URL: url, Date: key.Date, Team: key.HomeTeam, Reason: TooLargeReason}
	}
	return page, nil
}
