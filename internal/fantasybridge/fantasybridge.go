package fantasybridge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/azure"
	fopenai "charm.land/fantasy/providers/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dotcommander/courtside/internal/proto"
	"github.com/dotcommander/courtside/internal/stream"
)

var _ stream.Client = &Client{}

// API names understood by New.
const (
	APIAnthropic = "anthropic"
	APIOpenAI    = "openai"
	APIAzure     = "azure"
)

// Config represents provider configuration used by the fantasy bridge.
type Config struct {
	API        string
	BaseURL    string
	APIKey     string
	APIVersion string
	HTTPClient *http.Client
}

// Client is a stream.Client backed by charm.land/fantasy.
type Client struct {
	provider fantasy.Provider
	config   Config
}

// New creates a new Fantasy-backed stream client.
func New(cfg Config) (*Client, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{provider: provider, config: cfg}, nil
}

func newProvider(cfg Config) (fantasy.Provider, error) {
	switch cfg.API {
	case APIOpenAI:
		opts := []fopenai.Option{fopenai.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, fopenai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, fopenai.WithHTTPClient(cfg.HTTPClient))
		}
		provider, err := fopenai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy openai provider: %w", err)
		}
		return provider, nil
	case APIAnthropic:
		opts := []anthropic.Option{anthropic.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/v1")))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, anthropic.WithHTTPClient(cfg.HTTPClient))
		}
		provider, err := anthropic.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy anthropic provider: %w", err)
		}
		return provider, nil
	case APIAzure:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("azure provider needs a base URL (set AZURE_OPENAI_ENDPOINT)")
		}
		opts := []azure.Option{azure.WithAPIKey(cfg.APIKey), azure.WithBaseURL(cfg.BaseURL)}
		if cfg.HTTPClient != nil {
			opts = append(opts, azure.WithHTTPClient(cfg.HTTPClient))
		}
		provider, err := azure.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy azure provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported API %q", cfg.API)
	}
}

// Request implements stream.Client.
func (c *Client) Request(ctx context.Context, request proto.Request) stream.Stream {
	streamCtx, cancel := context.WithCancel(ctx)
	s := &Stream{
		ctx:         streamCtx,
		cancel:      cancel,
		provider:    c.provider,
		request:     request,
		messages:    request.Messages,
		api:         c.config.API,
		warningSeen: map[string]struct{}{},
	}
	if err := s.startStep(); err != nil {
		s.err = err
	}
	return s
}

// Stream is a stream.Stream implementation backed by fantasy stream events.
type Stream struct {
	ctx      context.Context
	cancel   context.CancelFunc
	provider fantasy.Provider
	request  proto.Request
	api      string

	mu sync.Mutex

	messages []proto.Message

	partCh chan fantasy.StreamPart
	last   fantasy.StreamPart
	err    error

	stepText         strings.Builder
	stepToolCalls    []proto.ToolCall
	stepToolCallSeen map[string]struct{}
	stepDone         bool
	warningSeen      map[string]struct{}
	pendingWarnings  []string

	// step counts model round trips; each one is traced as llm.step.
	step int
	span trace.Span
}

// Next implements stream.Stream.
func (s *Stream) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		s.endSpan()
		return false
	}

	if s.stepDone {
		if err := s.startStep(); err != nil {
			s.err = err
			return false
		}
	}

	part, ok := <-s.partCh
	if !ok {
		s.finalizeStep()
		return false
	}

	s.last = part
	s.consumePart(part)
	return true
}

// Current implements stream.Stream.
func (s *Stream) Current() (proto.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.last.Type {
	case fantasy.StreamPartTypeTextDelta:
		return proto.Chunk{Content: s.last.Delta}, nil
	case fantasy.StreamPartTypeError:
		if s.last.Error != nil {
			s.err = s.last.Error
			return proto.Chunk{}, s.last.Error
		}
	}
	return proto.Chunk{}, stream.ErrNoContent
}

// Close implements stream.Stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.endSpan()
	s.mu.Unlock()
	s.cancel()
	return nil
}

// Err implements stream.Stream.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Messages implements stream.Stream.
func (s *Stream) Messages() []proto.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages
}

// CallTools implements stream.Stream.
func (s *Stream) CallTools() []proto.ToolCallStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]proto.ToolCallStatus, 0, len(s.stepToolCalls))
	for _, call := range s.stepToolCalls {
		msg, status := stream.CallTool(
			s.ctx,
			call.ID,
			call.Function.Name,
			call.Function.Arguments,
			s.request.ToolCaller,
		)
		s.messages = append(s.messages, msg)
		statuses = append(statuses, status)
	}

	s.stepToolCalls = nil
	s.stepToolCallSeen = map[string]struct{}{}

	return statuses
}

// DrainWarnings implements stream.Stream.
func (s *Stream) DrainWarnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	warnings := append([]string(nil), s.pendingWarnings...)
	s.pendingWarnings = nil
	return warnings
}

func (s *Stream) startStep() error {
	s.step++
	ctx, span := otel.Tracer("courtside/llm").Start(s.ctx, "llm.step", trace.WithAttributes(
		attribute.String("llm.api", s.api),
		attribute.String("llm.model", s.request.Model),
		attribute.Int("llm.step", s.step),
		attribute.Int("llm.messages", len(s.messages)),
	))
	s.span = span

	model, err := s.provider.LanguageModel(ctx, s.request.Model)
	if err != nil {
		return s.failStep(fmt.Errorf("fantasy language model: %w", err))
	}

	seq, err := model.Stream(ctx, s.buildCall())
	if err != nil {
		return s.failStep(fmt.Errorf("fantasy stream: %w", err))
	}

	s.partCh = make(chan fantasy.StreamPart, 64)
	s.stepDone = false
	s.stepText.Reset()
	s.stepToolCalls = nil
	s.stepToolCallSeen = map[string]struct{}{}

	go func() {
		defer close(s.partCh)
		for part := range seq {
			select {
			case <-s.ctx.Done():
				return
			case s.partCh <- part:
			}
		}
	}()

	return nil
}

func (s *Stream) buildCall() fantasy.Call {
	call := fantasy.Call{
		Prompt:          toFantasyPrompt(s.messages),
		MaxOutputTokens: s.request.MaxTokens,
		Temperature:     s.request.Temperature,
		TopP:            s.request.TopP,
		TopK:            s.request.TopK,
		Tools:           toFantasyTools(s.request.Tools),
		ToolChoice:      toolChoiceForRequest(s.request),
		ProviderOptions: fantasy.ProviderOptions{},
	}

	switch s.api {
	case APIOpenAI, APIAzure:
		opts := &fopenai.ProviderOptions{}
		set := false
		if s.request.User != "" {
			user := s.request.User
			opts.User = &user
			set = true
		}
		if s.request.MaxCompletionTokens != nil {
			opts.MaxCompletionTokens = s.request.MaxCompletionTokens
			set = true
		}
		if set {
			call.ProviderOptions[fopenai.Name] = opts
		}
	}

	return call
}

func (s *Stream) finalizeStep() {
	msg := proto.Message{
		Role:      proto.RoleAssistant,
		Content:   s.stepText.String(),
		ToolCalls: append([]proto.ToolCall(nil), s.stepToolCalls...),
	}
	if msg.Content != "" || len(msg.ToolCalls) > 0 {
		s.messages = append(s.messages, msg)
	}
	s.stepDone = true
	if s.span != nil {
		s.span.SetAttributes(
			attribute.Int("llm.output_chars", len(msg.Content)),
			attribute.Int("llm.tool_calls", len(msg.ToolCalls)),
		)
		if s.err != nil {
			s.span.RecordError(s.err)
			s.span.SetStatus(codes.Error, s.err.Error())
		}
	}
	s.endSpan()
}

func (s *Stream) failStep(err error) error {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
	s.endSpan()
	return err
}

func (s *Stream) endSpan() {
	if s.span != nil {
		s.span.End()
		s.span = nil
	}
}

func (s *Stream) consumePart(part fantasy.StreamPart) {
	switch part.Type {
	case fantasy.StreamPartTypeTextDelta:
		s.stepText.WriteString(part.Delta)
	case fantasy.StreamPartTypeToolCall:
		if part.ProviderExecuted {
			return
		}
		if _, exists := s.stepToolCallSeen[part.ID]; exists {
			return
		}
		s.stepToolCallSeen[part.ID] = struct{}{}
		s.stepToolCalls = append(s.stepToolCalls, proto.ToolCall{
			ID: part.ID,
			Function: proto.Function{
				Name:      part.ToolCallName,
				Arguments: []byte(part.ToolCallInput),
			},
		})
	case fantasy.StreamPartTypeError:
		s.err = part.Error
	case fantasy.StreamPartTypeWarnings:
		for _, w := range part.Warnings {
			s.addWarning(string(w.Type), warningText(w))
		}
	}
}

// addWarning queues text once per kind for DrainWarnings.
func (s *Stream) addWarning(kind, text string) {
	key := kind + ":" + text
	if _, dup := s.warningSeen[key]; dup {
		return
	}
	s.warningSeen[key] = struct{}{}
	s.pendingWarnings = append(s.pendingWarnings, text)
	if s.span != nil {
		s.span.AddEvent("llm.warning", trace.WithAttributes(attribute.String("text", text)))
	}
}

func warningText(w fantasy.CallWarning) string {
	for _, t := range []string{w.Message, w.Details} {
		if t = strings.TrimSpace(t); t != "" {
			return t
		}
	}
	if w.Setting != "" {
		return fmt.Sprintf("unsupported setting: %s", w.Setting)
	}
	return "provider warning"
}
