// Package proto holds the provider-neutral message and request types.
package proto

import (
	"context"
	"fmt"
	"strings"
)

// Roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Chunk is a streamed piece of assistant text.
type Chunk struct {
	Content string
}

// Function is the name and raw JSON arguments of a tool call.
type Function struct {
	Name      string `json:"name"`
	Arguments []byte `json:"arguments"`
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID       string   `json:"id"`
	Function Function `json:"function"`
	IsError  bool     `json:"is_error,omitempty"`
}

// Message is one conversation turn.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

func (m Message) String() string {
	var sb strings.Builder
	switch m.Role {
	case RoleSystem:
		sb.WriteString("**System**: ")
	case RoleUser:
		sb.WriteString("**Prompt**: ")
	case RoleAssistant:
		sb.WriteString("**Assistant**: ")
	case RoleTool:
		sb.WriteString("**Tool**: ")
	}
	sb.WriteString(m.Content)
	return sb.String()
}

// Conversation is an ordered list of messages.
type Conversation []Message

func (c Conversation) String() string {
	var sb strings.Builder
	for _, m := range c {
		if m.Content == "" {
			continue
		}
		sb.WriteString(m.String())
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}

// ToolSpec describes a tool to the model. Schema is a JSON schema object.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolCaller executes a tool by name with raw JSON arguments.
type ToolCaller func(ctx context.Context, name string, args []byte) (string, error)

// Request is a completion request.
type Request struct {
	Messages            []Message
	API                 string
	Model               string
	User                string
	Temperature         *float64
	TopP                *float64
	TopK                *int64
	MaxTokens           *int64
	MaxCompletionTokens *int64
	Tools               []ToolSpec
	ToolCaller          ToolCaller
}

// ToolCallStatus is the outcome of one executed tool call.
type ToolCallStatus struct {
	Name   string
	Output string
	Err    error
}

func (s ToolCallStatus) String() string {
	if s.Err != nil {
		return fmt.Sprintf("\n> Ran tool: `%s` (failed: %v)\n\n", s.Name, s.Err)
	}
	return fmt.Sprintf("\n> Ran tool: `%s`\n\n", s.Name)
}
