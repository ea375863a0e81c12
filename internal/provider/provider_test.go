package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	catalog := DefaultCatalog()

	t.Run("claude without reasoning", func(t *testing.T) {
		main, reasoning := Resolve("claude", "", catalog)
		require.Equal(t, "claude-sonnet-4-5", main.ModelID)
		require.Equal(t, "claude-sonnet-4-5", reasoning.ModelID)
		require.Equal(t, Claude, main.Family)
		require.Equal(t, "anthropic", main.Family.API())
	})

	t.Run("unknown provider falls back to default family", func(t *testing.T) {
		main, reasoning := Resolve("unknown-provider", "", catalog)
		require.Equal(t, DefaultFamily, main.Family)
		require.Equal(t, DefaultFamily.DefaultModel(), main.ModelID)
		require.Equal(t, AzureAPIVersion, main.APIVersion)
		require.Equal(t, main, reasoning)
	})

	t.Run("every catalog entry maps to its id", func(t *testing.T) {
		for name, id := range catalog {
			main, _ := Resolve(name, "", catalog)
			require.Equal(t, id, main.ModelID, name)
		}
	})

	t.Run("catalog families follow the provider name", func(t *testing.T) {
		az, _ := Resolve("AzureOpenAI", "", catalog)
		require.Equal(t, AzureOpenAI, az.Family)
		require.Equal(t, "gpt-4.1", az.ModelID)

		mini, _ := Resolve("OpenAI-mini", "", catalog)
		require.Equal(t, OpenAI, mini.Family)
		require.Equal(t, "gpt-4.1-mini", mini.ModelID)
	})

	t.Run("reasoning override", func(t *testing.T) {
		main, reasoning := Resolve("AzureOpenAI", "OpenAI-mini", catalog)
		require.Equal(t, "gpt-4.1", main.ModelID)
		require.Equal(t, "gpt-4.1-mini", reasoning.ModelID)
	})

	t.Run("unresolvable reasoning defaults to provider", func(t *testing.T) {
		main, reasoning := Resolve("claude", "mystery", catalog)
		require.Equal(t, main, reasoning)
	})

	t.Run("family prefix uses literal model id", func(t *testing.T) {
		main, _ := Resolve("claude-opus-4-1", "", catalog)
		require.Equal(t, Claude, main.Family)
		require.Equal(t, "claude-opus-4-1", main.ModelID)

		o, _ := Resolve("o3-mini", "", nil)
		require.Equal(t, OpenAI, o.Family)
		require.Equal(t, "o3-mini", o.ModelID)
	})

	t.Run("nil catalog", func(t *testing.T) {
		main, _ := Resolve("claude", "", nil)
		require.Equal(t, "claude-sonnet-4-5", main.ModelID)
	})

	t.Run("idempotent", func(t *testing.T) {
		a1, b1 := Resolve("OpenAI", "claude", catalog)
		a2, b2 := Resolve("OpenAI", "claude", catalog)
		require.Equal(t, a1, a2)
		require.Equal(t, b1, b2)
	})

	t.Run("keys differing by case resolve the same way every time", func(t *testing.T) {
		cat := Catalog{"OPENAI": "gpt-a", "openai": "gpt-b"}
		for range 200 {
			sel, _ := Resolve("OpenAi", "", cat)
			require.Equal(t, "gpt-a", sel.ModelID)
		}
	})
}

func TestLookup(t *testing.T) {
	t.Run("known", func(t *testing.T) {
		s, err := Lookup("OpenAI", DefaultCatalog())
		require.NoError(t, err)
		require.Equal(t, "gpt-5-mini", s.ModelID)
	})

	t.Run("unknown", func(t *testing.T) {
		s, err := Lookup("nope", DefaultCatalog())
		var rerr *ResolutionError
		require.True(t, errors.As(err, &rerr))
		require.Equal(t, "nope", rerr.Name)
		require.Equal(t, DefaultFamily, s.Family)
	})
}

func TestParseFamily(t *testing.T) {
	for in, want := range map[string]Family{
		"claude":           Claude,
		"Anthropic":        Claude,
		"claude-3-5-haiku": Claude,
		"azure":            AzureOpenAI,
		"AzureOpenAI":      AzureOpenAI,
		"OpenAI":           OpenAI,
		"gpt-4.1":          OpenAI,
		"o4-mini":          OpenAI,
	} {
		t.Run(in, func(t *testing.T) {
			got, ok := ParseFamily(in)
			require.True(t, ok)
			require.Equal(t, want, got)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		got, ok := ParseFamily("llama")
		require.False(t, ok)
		require.Equal(t, DefaultFamily, got)
	})
}
