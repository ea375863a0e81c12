package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dotcommander/courtside/internal/agent"
	"github.com/dotcommander/courtside/internal/chart"
	"github.com/dotcommander/courtside/internal/config"
	"github.com/dotcommander/courtside/internal/errs"
	"github.com/dotcommander/courtside/internal/knowledge"
	"github.com/dotcommander/courtside/internal/logging"
	imcp "github.com/dotcommander/courtside/internal/mcp"
	"github.com/dotcommander/courtside/internal/memory"
	"github.com/dotcommander/courtside/internal/provider"
	"github.com/dotcommander/courtside/internal/report"
	"github.com/dotcommander/courtside/internal/shooting"
	"github.com/dotcommander/courtside/internal/stats"
	"github.com/dotcommander/courtside/internal/storage"
	"github.com/dotcommander/courtside/internal/team"
	"github.com/dotcommander/courtside/internal/telemetry"
	"github.com/dotcommander/courtside/internal/tools"
	"github.com/dotcommander/courtside/internal/tools/builtin"
)

// needs selects the optional backends a command opens.
type needs struct {
	memory    bool
	knowledge bool
}

// services is the wired object graph shared by the commands.
type services struct {
	cfg     *config.Config
	log     *logging.Logger
	version string

	main         provider.Selection
	reasoning    provider.Selection
	instructions map[string]string

	getter    stats.PageGetter
	source    stats.Source
	llm       *agent.Service
	memory    *memory.Store
	knowledge *knowledge.Base
	mcp       *imcp.Service

	closers []func() error
}

func (rt *runtime) newLogger() (*logging.Logger, error) {
	level := rt.cfg.Log.Level
	if rt.cfg.Verbose {
		level = logging.LevelDebug
	}
	log, err := logging.New(level, rt.cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, errs.Wrap(err, "Invalid log settings.").WithCode(errs.CodeConfig)
	}
	return log, nil
}

// openServices wires everything a command needs. Call Close when done.
func (rt *runtime) openServices(ctx context.Context, n needs) (*services, error) {
	log, err := rt.newLogger()
	if err != nil {
		return nil, err
	}
	s := &services{cfg: &rt.cfg, log: log, version: rt.build.Version, mcp: imcp.New(&rt.cfg)}
	s.closers = append(s.closers, func() error {
		_ = log.Sync()
		return nil
	})

	if err := s.resolveProviders(); err != nil {
		return nil, err
	}
	if s.instructions, err = s.loadInstructions(ctx); err != nil {
		return nil, err
	}

	tp, err := telemetry.Start(ctx, rt.cfg.Tracing, rt.build.Version, log)
	if err != nil {
		return nil, errs.Wrap(err, "Could not start tracing.").WithCode(errs.CodeConfig)
	}
	s.closers = append(s.closers, func() error {
		return tp.Shutdown(context.WithoutCancel(ctx))
	})

	if err := s.openSource(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.llm = agent.New(&rt.cfg, log)

	if n.memory || n.knowledge {
		store, err := memory.Open(ctx, rt.cfg.Memory.DSN)
		if err != nil {
			_ = s.Close()
			return nil, errs.Wrap(err, "Could not open the memory database.").WithCode(errs.CodeConfig)
		}
		s.memory = store
		s.closers = append(s.closers, store.Close)
	}
	if n.knowledge && rt.cfg.Knowledge.Enabled {
		kb, err := s.openKnowledge(ctx)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.knowledge = kb
		s.closers = append(s.closers, kb.Close)
	}
	return s, nil
}

func (s *services) resolveProviders() error {
	catalog := provider.Catalog(s.cfg.Catalog)
	if !s.cfg.StrictProvider {
		s.main, s.reasoning = provider.Resolve(s.cfg.Provider, s.cfg.ReasoningProvider, catalog)
		return nil
	}
	main, err := provider.Lookup(s.cfg.Provider, catalog)
	if err != nil {
		return errs.Wrap(err, "Unknown provider.").WithCode(errs.CodeConfig)
	}
	s.main, s.reasoning = main, main
	if s.cfg.ReasoningProvider != "" {
		r, err := provider.Lookup(s.cfg.ReasoningProvider, catalog)
		if err != nil {
			return errs.Wrap(err, "Unknown reasoning provider.").WithCode(errs.CodeConfig)
		}
		s.reasoning = r
	}
	return nil
}

func (s *services) openSource(ctx context.Context) error {
	f := s.cfg.Fetch
	if f.Browser {
		b := stats.NewBrowserGetter(f.Timeout, f.MinInterval, f.UserAgent)
		s.getter = b
		s.closers = append(s.closers, func() error {
			b.Close()
			return nil
		})
	} else {
		s.getter = stats.NewHTTPGetter(f.Timeout, f.MinInterval, f.UserAgent)
	}

	fetcher := stats.NewFetcher(s.getter,
		stats.WithBaseURL(f.BaseURL),
		stats.WithRetries(f.Retries),
		stats.WithLogger(s.log))

	var c stats.Cache
	if url := s.cfg.Cache.RedisURL; url != "" {
		rc, err := stats.NewRedisCache(ctx, url)
		if err != nil {
			return errs.Wrap(err, "Could not connect to the Redis cache.").WithCode(errs.CodeConfig)
		}
		s.closers = append(s.closers, rc.Close)
		c = rc
	} else {
		fc, err := storage.NewFileCache(s.cfg.CachePath)
		if err != nil {
			return errs.Wrap(err, "Could not open the stats cache.").WithCode(errs.CodeConfig)
		}
		c = fc
	}
	s.source = stats.NewCachedSource(fetcher, c, s.cfg.Cache.TTL, s.log)
	return nil
}

func (s *services) openKnowledge(ctx context.Context) (*knowledge.Base, error) {
	k := s.cfg.Knowledge
	api, _ := s.cfg.APIs.Get(k.EmbeddingAPI)
	embedder, err := knowledge.NewOpenAIEmbedder(knowledge.EmbedderConfig{
		API:        k.EmbeddingAPI,
		APIKey:     api.APIKey,
		BaseURL:    api.BaseURL,
		APIVersion: api.Version,
		Model:      k.EmbeddingModel,
		Dimensions: k.Dimensions,
	})
	if err != nil {
		return nil, errs.Wrap(err, "Could not set up embeddings.").WithCode(errs.CodeConfig)
	}
	store, err := knowledge.NewQdrantStore(ctx, knowledge.QdrantConfig{
		Host:       k.Host,
		Port:       k.Port,
		APIKey:     k.APIKey,
		UseTLS:     k.UseTLS,
		Collection: k.Collection,
		Dimensions: k.Dimensions,
	})
	if err != nil {
		return nil, errs.Wrap(err, "Could not connect to the vector store.").WithCode(errs.CodeConfig)
	}
	reader := &knowledge.WebsiteReader{
		Getter:   s.getter,
		MaxDepth: k.MaxDepth,
		MaxLinks: k.MaxLinks,
		Log:      s.log,
	}
	var contents knowledge.Contents
	if s.memory != nil {
		contents = s.memory
	}
	return knowledge.New(store, embedder, contents, reader, k.ChunkSize, s.log), nil
}

// workflow returns a report workflow whose narration streams to onChunk.
func (s *services) workflow(onChunk func(string)) *report.Workflow {
	narrator := &report.AgentNarrator{
		LLM:          s.llm,
		Selection:    s.main,
		Instructions: s.instructions[team.GameReportAgentID],
		OnChunk:      onChunk,
	}
	return report.New(s.source, narrator, report.WithLogger(s.log))
}

// registry returns the built-in tools backed by the open services.
func (s *services) registry() *tools.Registry {
	d := builtin.Deps{
		Stats:    s.source,
		Shooting: shooting.NewClient(s.getter, s.cfg.Fetch.BaseURL, s.log),
		Reports:  s.workflow(nil),
	}
	if s.knowledge != nil {
		d.Knowledge = s.knowledge
	}
	if charts, err := chart.NewStore(s.cfg.CachePath); err != nil {
		s.log.Warnw("charts disabled", "error", err)
	} else {
		d.Charts = charts
	}
	return builtin.Registry(d)
}

// team assembles the team and a runner over the built-in tools plus the
// tools of enabled MCP servers.
func (s *services) team(ctx context.Context) (*team.Team, *team.Runner) {
	t := team.Assemble(team.Deps{
		Model:        s.main,
		Reasoning:    s.reasoning,
		Instructions: s.instructions,
		HistoryRuns:  s.cfg.Memory.HistoryRuns,
	})

	opts := []team.Option{
		team.WithLogger(s.log),
		team.WithMaxSteps(s.cfg.Narration.MaxSteps),
		team.WithReasoning(s.cfg.ReasoningProvider != ""),
	}
	if s.memory != nil {
		opts = append(opts, team.WithStore(s.memory))
	}
	if len(s.cfg.MCPServers) > 0 {
		specs, err := s.mcp.Specs(ctx)
		if err != nil {
			s.log.Warnw("mcp tools unavailable", "error", err)
		} else if len(specs) > 0 {
			opts = append(opts, team.WithExtraTools(specs, s.mcp.Caller()))
		}
	}
	return t, team.NewRunner(s.llm, s.registry(), opts...)
}

// loadInstructions resolves file:// and http(s) instruction overrides.
func (s *services) loadInstructions(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s.cfg.Instructions))
	for id, src := range s.cfg.Instructions {
		text, err := config.LoadInstructions(ctx, src)
		if err != nil {
			return nil, errs.Error{
				Err:    err,
				Reason: fmt.Sprintf("Could not load the instructions of %s.", id),
				Code:   errs.CodeConfig,
			}
		}
		out[id] = text
	}
	return out, nil
}

func (s *services) archive() (*storage.Archive, error) {
	return openArchive(s.cfg)
}

// Close releases everything in reverse order of opening.
func (s *services) Close() error {
	var errList []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errList = append(errList, err)
		}
	}
	s.closers = nil
	return errors.Join(errList...)
}
