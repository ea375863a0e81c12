package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/go-shellwords"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/http/httpproxy"

	"github.com/dotcommander/courtside/internal/config"
	"github.com/dotcommander/courtside/internal/errs"
	"github.com/dotcommander/courtside/internal/fantasybridge"
	"github.com/dotcommander/courtside/internal/logging"
	"github.com/dotcommander/courtside/internal/proto"
	"github.com/dotcommander/courtside/internal/provider"
	"github.com/dotcommander/courtside/internal/stream"
	"github.com/dotcommander/courtside/internal/tools"
)

// DefaultMaxSteps bounds the number of tool round trips in one run.
const DefaultMaxSteps = 8

// ClientFactory builds a stream client for a provider configuration.
type ClientFactory func(fantasybridge.Config) (stream.Client, error)

// LLM runs one agent turn.
type LLM interface {
	Run(ctx context.Context, req Request) (*Response, error)
}

// Request is one agent turn.
type Request struct {
	// Name labels the run in logs and traces.
	Name      string
	Selection provider.Selection
	// System prompts, in order.
	System []string
	// Messages are prior turns followed by the new user message.
	Messages []proto.Message
	Tools    *tools.Registry
	// Extra is consulted for tools not in Tools, e.g. MCP tools.
	Extra    []proto.ToolSpec
	ExtraFn  proto.ToolCaller
	MaxSteps int
	// OnChunk receives streamed text as it arrives.
	OnChunk func(string)
	// OnTool is told about every executed tool call.
	OnTool func(proto.ToolCallStatus)
}

// Response is the result of a turn.
type Response struct {
	Content   string
	Messages  []proto.Message
	ToolCalls []proto.ToolCallStatus
	// Stopped is true when a stop-after-call tool produced Content.
	Stopped bool
}

// Service is the LLM orchestration layer shared by the report workflow, the
// team runner and the HTTP API.
type Service struct {
	cfg           *config.Config
	log           *logging.Logger
	clientFactory ClientFactory

	mu      sync.Mutex
	clients map[string]stream.Client
}

var _ LLM = (*Service)(nil)

// New creates an agent service. The optional factory replaces the default
// fantasy client constructor.
func New(cfg *config.Config, log *logging.Logger, factory ...ClientFactory) *Service {
	s := &Service{
		cfg:           cfg,
		log:           logging.OrNop(log),
		clientFactory: NewFantasyClient,
		clients:       map[string]stream.Client{},
	}
	if len(factory) > 0 && factory[0] != nil {
		s.clientFactory = factory[0]
	}
	return s
}

// Run executes a turn, calling tools until the model answers without tool
// calls, a stop-after-call tool runs, or MaxSteps is exceeded.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	ctx, span := otel.Tracer("courtside/agent").Start(ctx, "agent.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("agent.name", req.Name),
		attribute.String("llm.model", req.Selection.ModelID),
		attribute.String("llm.family", req.Selection.Family.String()),
	)

	resp, err := s.run(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("agent.tool_calls", len(resp.ToolCalls)))
	return resp, nil
}

func (s *Service) run(ctx context.Context, req Request) (*Response, error) {
	sel := req.Selection
	client, err := s.client(ctx, sel)
	if err != nil {
		return nil, err
	}

	reg := req.Tools
	if reg == nil {
		reg = tools.NewRegistry()
	}
	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	messages := make([]proto.Message, 0, len(req.System)+len(req.Messages))
	for _, sys := range req.System {
		if strings.TrimSpace(sys) != "" {
			messages = append(messages, proto.Message{Role: proto.RoleSystem, Content: sys})
		}
	}
	messages = append(messages, req.Messages...)

	request := proto.Request{
		Messages:   messages,
		API:        sel.Family.API(),
		Model:      sel.ModelID,
		User:       s.user(sel),
		Tools:      append(reg.Specs(), req.Extra...),
		ToolCaller: dispatch(reg, req.ExtraFn),
	}
	if n := s.cfg.Narration.MaxTokens; n > 0 {
		request.MaxTokens = &n
	}
	if t := s.cfg.Narration.Temperature; t > 0 {
		request.Temperature = &t
	}
	if len(request.Tools) == 0 {
		request.ToolCaller = nil
	}

	log := s.log.With("agent", req.Name, "model", sel.ModelID, "family", sel.Family.String())
	log.Debugw("starting agent run", "messages", len(messages), "tools", len(request.Tools))

	st := client.Request(ctx, request)
	defer func() { _ = st.Close() }()

	resp := &Response{}
	for step := 0; ; step++ {
		for st.Next() {
			chunk, err := st.Current()
			if err != nil && !errors.Is(err, stream.ErrNoContent) {
				return nil, mapError(err, sel)
			}
			if chunk.Content != "" && req.OnChunk != nil {
				req.OnChunk(chunk.Content)
			}
		}
		if err := st.Err(); err != nil {
			return nil, mapError(err, sel)
		}
		for _, w := range st.DrainWarnings() {
			log.Warnw("provider warning", "warning", w)
		}

		results := st.CallTools()
		if len(results) == 0 {
			break
		}
		for _, r := range results {
			resp.ToolCalls = append(resp.ToolCalls, r)
			if req.OnTool != nil {
				req.OnTool(r)
			}
			if r.Err != nil {
				log.Warnw("tool call failed", "tool", r.Name, "error", r.Err)
				continue
			}
			if t, ok := reg.Get(r.Name); ok && t.StopAfterCall() {
				resp.Content = r.Output
				resp.Messages = st.Messages()
				resp.Stopped = true
				return resp, nil
			}
		}
		if step+1 >= maxSteps {
			return nil, errs.Error{
				Err:    fmt.Errorf("agent %s exceeded %d tool steps", req.Name, maxSteps),
				Reason: "The model kept calling tools without answering.",
			}
		}
	}

	resp.Messages = st.Messages()
	resp.Content = lastAssistant(resp.Messages)
	return resp, nil
}

func dispatch(reg *tools.Registry, extra proto.ToolCaller) proto.ToolCaller {
	return func(ctx context.Context, name string, args []byte) (string, error) {
		if _, ok := reg.Get(name); ok || extra == nil {
			return reg.Call(ctx, name, args)
		}
		return extra(ctx, name, args)
	}
}

func lastAssistant(messages []proto.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == proto.RoleAssistant && strings.TrimSpace(messages[i].Content) != "" {
			return messages[i].Content
		}
	}
	return ""
}

func (s *Service) user(sel provider.Selection) string {
	if api, ok := s.cfg.APIs.Get(sel.Family.API()); ok && api.User != "" {
		return api.User
	}
	return s.cfg.User
}

// client returns a cached stream client for the selection's API.
func (s *Service) client(ctx context.Context, sel provider.Selection) (stream.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sel.Family.API()
	if c, ok := s.clients[key]; ok {
		return c, nil
	}
	providerCfg, err := s.providerConfig(ctx, sel)
	if err != nil {
		return nil, err
	}
	c, err := s.clientFactory(providerCfg)
	if err != nil {
		return nil, err
	}
	s.clients[key] = c
	return c, nil
}

func (s *Service) providerConfig(ctx context.Context, sel provider.Selection) (fantasybridge.Config, error) {
	name := sel.Family.API()
	api, _ := s.cfg.APIs.Get(name)

	var docs string
	switch sel.Family {
	case provider.Claude:
		docs = "https://console.anthropic.com/settings/keys"
	case provider.OpenAI:
		docs = "https://platform.openai.com/account/api-keys"
	default:
		docs = "https://aka.ms/oai/access"
	}
	key, err := ensureKey(ctx, api, sel.Family.KeyEnv(), docs)
	if err != nil {
		return fantasybridge.Config{}, err
	}

	pc := fantasybridge.Config{
		API:        name,
		APIKey:     key,
		BaseURL:    api.BaseURL,
		APIVersion: sel.APIVersion,
	}
	if api.Version != "" {
		pc.APIVersion = api.Version
	}
	if err := ApplyProxyConfig(s.cfg.HTTPProxy, s.cfg.NoProxy, &pc); err != nil {
		return fantasybridge.Config{}, err
	}
	return pc, nil
}

// ApplyProxyConfig gives the provider an instrumented HTTP client, routed
// through httpProxy unless the host matches noProxy.
func ApplyProxyConfig(httpProxy, noProxy string, providerCfg *fantasybridge.Config) error {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return errs.Error{Err: fmt.Errorf("default transport is not *http.Transport"), Reason: "Could not configure proxy."}
	}
	tr := base.Clone()
	if httpProxy != "" {
		if _, err := url.Parse(httpProxy); err != nil {
			return errs.Error{Err: err, Reason: "There was an error parsing your proxy URL."}
		}
		proxyFunc := (&httpproxy.Config{
			HTTPProxy:  httpProxy,
			HTTPSProxy: httpProxy,
			NoProxy:    noProxy,
		}).ProxyFunc()
		tr.Proxy = func(r *http.Request) (*url.URL, error) { return proxyFunc(r.URL) }
	}
	tr.DialContext = (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ResponseHeaderTimeout = 120 * time.Second
	tr.IdleConnTimeout = 90 * time.Second
	tr.ExpectContinueTimeout = 1 * time.Second
	providerCfg.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(tr)}
	return nil
}

// NewFantasyClient creates the fantasy bridge client.
func NewFantasyClient(cfg fantasybridge.Config) (stream.Client, error) {
	if cfg.API == "" {
		return nil, errs.Error{Reason: "missing fantasy provider configuration"}
	}
	client, err := fantasybridge.New(cfg)
	if err != nil {
		return nil, errs.Error{Err: err, Reason: "Could not set up the LLM provider.", Code: errs.CodeConfig}
	}
	return client, nil
}

func ensureKey(ctx context.Context, api config.API, defaultEnv, docsURL string) (string, error) {
	key := api.APIKey
	if key == "" && api.APIKeyCmd != "" {
		args, err := shellwords.Parse(api.APIKeyCmd)
		if err != nil {
			return "", errs.Error{Err: err, Reason: "Failed to parse api-key-cmd", Code: errs.CodeConfig}
		}
		if len(args) == 0 {
			return "", errs.Error{Reason: "api-key-cmd is empty", Code: errs.CodeConfig}
		}
		// #nosec G204 -- api-key-cmd is explicitly configured by the local user.
		out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
		if err != nil {
			return "", errs.Error{Err: err, Reason: "Cannot exec api-key-cmd", Code: errs.CodeConfig}
		}
		key = strings.TrimSpace(string(out))
	}
	if key != "" {
		return key, nil
	}
	env := api.APIKeyEnv
	if env == "" {
		env = defaultEnv
	}
	return "", errs.Error{
		Reason: fmt.Sprintf("%s required; set %s or add an api-key to courtside.yml.", env, env),
		Err:    errs.UserErrorf("You can grab one at %s", docsURL),
		Code:   errs.CodeConfig,
	}
}
