package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadInstructions(t *testing.T) {
	const content = "just text"
	ctx := context.Background()

	t.Run("raw text", func(t *testing.T) {
		msg, err := LoadInstructions(ctx, content)
		require.NoError(t, err)
		require.Equal(t, content, msg)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "foo.txt")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		msg, err := LoadInstructions(ctx, "file://"+path)
		require.NoError(t, err)
		require.Equal(t, content, msg)
	})

	t.Run("markdown file strips yaml frontmatter", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agent.md")
		md := "---\nname: reporter\n---\nWrite like a newspaper.\n"
		require.NoError(t, os.WriteFile(path, []byte(md), 0o644))

		msg, err := LoadInstructions(ctx, "file://"+path)
		require.NoError(t, err)
		require.Equal(t, "Write like a newspaper.\n", msg)
	})

	t.Run("markdown file with invalid frontmatter errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agent.md")
		require.NoError(t, os.WriteFile(path, []byte("---\nname: [broken\n---\ncontent"), 0o644))

		_, err := LoadInstructions(ctx, "file://"+path)
		require.ErrorContains(t, err, "invalid markdown frontmatter")
	})

	t.Run("http", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("remote"))
		}))
		defer srv.Close()

		msg, err := LoadInstructions(ctx, srv.URL)
		require.NoError(t, err)
		require.Equal(t, "remote", msg)
	})

	t.Run("http error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusGone)
		}))
		defer srv.Close()

		_, err := LoadInstructions(ctx, srv.URL)
		require.ErrorContains(t, err, "HTTP 410")
	})
}
