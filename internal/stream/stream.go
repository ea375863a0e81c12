// Package stream defines the streaming completion interfaces.
package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/dotcommander/courtside/internal/proto"
)

// ErrNoContent is returned by Stream.Current when the last part carried no
// text.
var ErrNoContent = errors.New("no content")

// Client starts completion streams.
type Client interface {
	Request(ctx context.Context, request proto.Request) Stream
}

// Stream is an in-flight completion.
//
// Callers loop on Next/Current until Next returns false, then check Err and
// run CallTools. When CallTools returns results, the next Next call starts a
// new step with the tool outputs appended.
type Stream interface {
	Next() bool
	Current() (proto.Chunk, error)
	Close() error
	Err() error
	Messages() []proto.Message
	CallTools() []proto.ToolCallStatus
	DrainWarnings() []string
}

// CallTool runs one tool call and builds the tool message answering it.
func CallTool(ctx context.Context, id, name string, args []byte, caller proto.ToolCaller) (proto.Message, proto.ToolCallStatus) {
	status := proto.ToolCallStatus{Name: name}
	if caller == nil {
		status.Err = fmt.Errorf("no tool caller configured")
	} else {
		status.Output, status.Err = caller(ctx, name, args)
	}

	content := status.Output
	if status.Err != nil {
		content = status.Err.Error()
	}
	return proto.Message{
		Role:    proto.RoleTool,
		Content: content,
		ToolCalls: []proto.ToolCall{{
			ID:       id,
			IsError:  status.Err != nil,
			Function: proto.Function{Name: name, Arguments: args},
		}},
	}, status
}
