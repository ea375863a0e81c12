package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/courtside/internal/proto"
)

func TestCallTool(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		msg, status := CallTool(ctx, "call_1", "think", []byte(`{"thought":"x"}`),
			func(_ context.Context, name string, args []byte) (string, error) {
				return name + ":" + string(args), nil
			})
		require.NoError(t, status.Err)
		require.Equal(t, proto.RoleTool, msg.Role)
		require.Equal(t, `think:{"thought":"x"}`, msg.Content)
		require.Equal(t, "call_1", msg.ToolCalls[0].ID)
		require.False(t, msg.ToolCalls[0].IsError)
	})

	t.Run("error becomes tool content", func(t *testing.T) {
		msg, status := CallTool(ctx, "call_2", "boom", nil,
			func(context.Context, string, []byte) (string, error) {
				return "", errors.New("kaput")
			})
		require.Error(t, status.Err)
		require.Equal(t, "kaput", msg.Content)
		require.True(t, msg.ToolCalls[0].IsError)
	})

	t.Run("no caller", func(t *testing.T) {
		_, status := CallTool(ctx, "call_3", "x", nil, nil)
		require.Error(t, status.Err)
	})
}
