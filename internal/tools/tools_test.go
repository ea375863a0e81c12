package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/courtside/internal/proto"
)

func echoTool(name string, stop bool) Func {
	return Func{
		ToolName:        name,
		ToolDescription: "echoes its arguments",
		Parameters: []Param{
			{Name: "season", Type: Integer, Description: "season year", Required: true},
			{Name: "n_cluster", Type: Integer},
			{Name: "label", Type: String, Enum: []string{"a", "b"}},
			{Name: "ratio", Type: Number},
			{Name: "loud", Type: Boolean},
		},
		Stop: stop,
		Fn: func(_ context.Context, a Args) (string, error) {
			return a.String("label") + ":" + string(rune('0'+a.Int("season", 0)%10)), nil
		},
	}
}

func TestParseArgs(t *testing.T) {
	params := echoTool("x", false).Params()

	t.Run("valid", func(t *testing.T) {
		args, err := ParseArgs("x", params, []byte(`{"season":2025,"n_cluster":"4","label":"a","ratio":0.5,"loud":"true"}`))
		require.NoError(t, err)
		require.Equal(t, 2025, args.Int("season", 0))
		require.Equal(t, 4, args.Int("n_cluster", 0))
		require.Equal(t, "a", args.String("label"))
		require.InDelta(t, 0.5, args.Float("ratio", 0), 1e-9)
		require.True(t, args.Bool("loud"))
	})

	t.Run("defaults for optional", func(t *testing.T) {
		args, err := ParseArgs("x", params, []byte(`{"season":2025}`))
		require.NoError(t, err)
		require.Equal(t, 5, args.Int("n_cluster", 5))
		require.Empty(t, args.String("label"))
	})

	for name, raw := range map[string]string{
		"missing required": `{}`,
		"not an object":    `[1,2]`,
		"non integer":      `{"season":20.5}`,
		"bad enum":         `{"season":2025,"label":"c"}`,
		"bad bool":         `{"season":2025,"loud":"maybe"}`,
		"bad number":       `{"season":"soon"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseArgs("x", params, []byte(raw))
			var aerr *ArgumentError
			require.True(t, errors.As(err, &aerr), "got %v", err)
			require.Equal(t, "x", aerr.Tool)
		})
	}
}

func TestParseArrayArgs(t *testing.T) {
	params := []Param{
		{Name: "labels", Type: Array},
		{Name: "values", Type: Array, Items: Number},
		{Name: "ops", Type: Array, Enum: []string{"mean", "max"}},
	}

	t.Run("json arrays", func(t *testing.T) {
		args, err := ParseArgs("x", params, []byte(`{"labels":["HOU","ORL"],"values":[1.5,"2"]}`))
		require.NoError(t, err)
		require.Equal(t, []string{"HOU", "ORL"}, args.Strings("labels"))
		require.Equal(t, []float64{1.5, 2}, args.Floats("values"))
		require.Nil(t, args.Strings("ops"))
	})

	t.Run("comma separated string", func(t *testing.T) {
		args, err := ParseArgs("x", params, []byte(`{"labels":"HOU, ORL,","values":"3,4"}`))
		require.NoError(t, err)
		require.Equal(t, []string{"HOU", "ORL"}, args.Strings("labels"))
		require.Equal(t, []float64{3, 4}, args.Floats("values"))
	})

	for name, raw := range map[string]string{
		"bad element": `{"values":[1,"x"]}`,
		"not a list":  `{"labels":true}`,
		"bad enum":    `{"ops":["median"]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseArgs("x", params, []byte(raw))
			var aerr *ArgumentError
			require.True(t, errors.As(err, &aerr), "got %v", err)
		})
	}

	t.Run("schema carries item type", func(t *testing.T) {
		props := Schema(params)["properties"].(map[string]any)
		require.Equal(t, map[string]any{"type": "number"}, props["values"].(map[string]any)["items"])
		require.Equal(t, []string{"mean", "max"}, props["ops"].(map[string]any)["items"].(map[string]any)["enum"])
	})
}

func TestSchema(t *testing.T) {
	s := Schema(echoTool("x", false).Params())
	require.Equal(t, "object", s["type"])
	require.Equal(t, []string{"season"}, s["required"])
	props := s["properties"].(map[string]any)
	require.Len(t, props, 5)
	require.Equal(t, map[string]any{"type": "integer", "description": "season year"}, props["season"])
	require.Equal(t, []string{"a", "b"}, props["label"].(map[string]any)["enum"])
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps registration order", func(t *testing.T) {
		r := NewRegistry(echoTool("b", false), echoTool("a", true))
		var names []string
		for _, tool := range r.List() {
			names = append(names, tool.Name())
		}
		require.Equal(t, []string{"b", "a"}, names)
		require.Equal(t, "b", r.Specs()[0].Name)
		require.Equal(t, 2, r.Len())
	})

	t.Run("rejects duplicates and bad names", func(t *testing.T) {
		r := NewRegistry(echoTool("a", false))
		require.Error(t, r.Register(echoTool("a", false)))
		require.Error(t, r.Register(echoTool("has space", false)))
		require.Panics(t, func() { NewRegistry(echoTool("a", false), echoTool("a", false)) })
	})

	t.Run("rejects duplicate params", func(t *testing.T) {
		tool := echoTool("dup", false)
		tool.Parameters = append(tool.Parameters, Param{Name: "season", Type: Integer})
		require.Error(t, NewRegistry().Register(tool))
	})

	t.Run("call validates", func(t *testing.T) {
		r := NewRegistry(echoTool("a", false))
		var call proto.ToolCaller = r.Call
		out, err := call(ctx, "a", []byte(`{"season":2025,"label":"b"}`))
		require.NoError(t, err)
		require.Equal(t, "b:5", out)

		_, err = r.Call(ctx, "a", []byte(`{}`))
		require.Error(t, err)

		_, err = r.Call(ctx, "nope", nil)
		require.ErrorAs(t, err, &ErrUnknownTool{})
	})

	t.Run("subset", func(t *testing.T) {
		r := NewRegistry(echoTool("a", false), echoTool("b", false), echoTool("c", false))
		sub, missing := r.Subset("c", "a")
		require.Empty(t, missing)
		require.Equal(t, "c", sub.List()[0].Name())
		require.Equal(t, 2, sub.Len())

		sub, missing = r.Subset("zzz", "b")
		require.Equal(t, []string{"zzz"}, missing)
		require.Equal(t, 1, sub.Len())
	})
}
