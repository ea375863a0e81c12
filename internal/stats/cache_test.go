package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memCache struct {
	data    map[string]string
	failGet bool
}

func (m *memCache) Get(_ context.Context, key string) (string, bool, error) {
	if m.failGet {
		return "", false, errors.New("down")
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.data[key] = value
	return nil
}

type countingSource struct {
	calls int
	table *Table
	err   error
}

func (c *countingSource) PlayByPlay(context.Context, GameKey) (*Table, error) {
	c.calls++
	return c.table, c.err
}

func TestCachedSource(t *testing.T) {
	ctx := context.Background()
	key := GameKey{Date: "20251116", HomeTeam: "HOU"}

	t.Run("second lookup is served from cache", func(t *testing.T) {
		src := &countingSource{table: sampleTable()}
		cache := &memCache{data: map[string]string{}}
		cs := NewCachedSource(src, cache, time.Hour, nil)

		a, err := cs.PlayByPlay(ctx, key)
		require.NoError(t, err)
		b, err := cs.PlayByPlay(ctx, key)
		require.NoError(t, err)
		require.Equal(t, 1, src.calls)
		require.Equal(t, a, b)
		require.Contains(t, cache.data, "courtside:pbp:202511160HOU")
	})

	t.Run("cache failure falls through", func(t *testing.T) {
		src := &countingSource{table: sampleTable()}
		cs := NewCachedSource(src, &memCache{data: map[string]string{}, failGet: true}, time.Hour, nil)
		_, err := cs.PlayByPlay(ctx, key)
		require.NoError(t, err)
		require.Equal(t, 1, src.calls)
	})

	t.Run("corrupt entry refetched", func(t *testing.T) {
		src := &countingSource{table: sampleTable()}
		cache := &memCache{data: map[string]string{"courtside:pbp:202511160HOU": "garbage"}}
		cs := NewCachedSource(src, cache, time.Hour, nil)
		_, err := cs.PlayByPlay(ctx, key)
		require.NoError(t, err)
		require.Equal(t, 1, src.calls)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		src := &countingSource{err: &ParseError{Reason: "x"}}
		cache := &memCache{data: map[string]string{}}
		cs := NewCachedSource(src, cache, time.Hour, nil)
		_, err := cs.PlayByPlay(ctx, key)
		require.ErrorIs(t, err, ErrParse)
		require.Empty(t, cache.data)
	})
}
