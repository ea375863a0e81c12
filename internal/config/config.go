package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	stdstrings "strings"
	"text/template"
	"time"

	_ "embed"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/courtside/internal/errs"
	"github.com/dotcommander/courtside/internal/provider"
)

//go:embed config_template.yml
var configTemplate string

// EnvPrefix is the prefix of every environment variable read into Settings.
const EnvPrefix = "COURTSIDE_"

// API represents an LLM API endpoint and its credentials.
type API struct {
	Name       string
	APIKey     string `yaml:"api-key"`
	APIKeyEnv  string `yaml:"api-key-env"`
	APIKeyCmd  string `yaml:"api-key-cmd"`
	Version    string `yaml:"version"`
	BaseURL    string `yaml:"base-url"`
	BaseURLEnv string `yaml:"base-url-env"`
	User       string `yaml:"user"`
}

// APIs is a type alias to allow custom YAML decoding.
type APIs []API

// UnmarshalYAML implements sorted API YAML decoding.
func (apis *APIs) UnmarshalYAML(node *yaml.Node) error {
	for i := 0; i < len(node.Content); i += 2 {
		var api API
		if err := node.Content[i+1].Decode(&api); err != nil {
			return fmt.Errorf("error decoding YAML file: %s", err)
		}
		api.Name = node.Content[i].Value
		*apis = append(*apis, api)
	}
	return nil
}

// Get returns the API named name.
func (apis APIs) Get(name string) (API, bool) {
	for _, api := range apis {
		if stdstrings.EqualFold(api.Name, name) {
			return api, true
		}
	}
	return API{}, false
}

// ReportSettings are the defaults of the report command.
type ReportSettings struct {
	Date     string `yaml:"date" env:"DATE"`
	HomeTeam string `yaml:"home-team" env:"HOME_TEAM"`
	AwayTeam string `yaml:"away-team" env:"AWAY_TEAM"`
	NoSave   bool   `yaml:"no-save" env:"NO_SAVE"`
}

// FetchSettings configure the play-by-play fetcher.
type FetchSettings struct {
	BaseURL     string        `yaml:"base-url" env:"BASE_URL"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
	UserAgent   string        `yaml:"user-agent" env:"USER_AGENT"`
	MinInterval time.Duration `yaml:"min-interval" env:"MIN_INTERVAL"`
	Retries     int           `yaml:"retries" env:"RETRIES"`
	Browser     bool          `yaml:"browser" env:"BROWSER"`
}

// NarrationSettings tune the LLM call that writes the report.
type NarrationSettings struct {
	MaxTokens   int64   `yaml:"max-tokens" env:"MAX_TOKENS"`
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	MaxSteps    int     `yaml:"max-steps" env:"MAX_STEPS"`
}

// MemorySettings configure the relational memory store.
type MemorySettings struct {
	DSN         string `yaml:"dsn" env:"DSN"`
	HistoryRuns int    `yaml:"history-runs" env:"HISTORY_RUNS"`
}

// KnowledgeSettings configure the vector knowledge base.
type KnowledgeSettings struct {
	Enabled        bool   `yaml:"enabled" env:"ENABLED"`
	Host           string `yaml:"host" env:"HOST"`
	Port           int    `yaml:"port" env:"PORT"`
	APIKey         string `yaml:"api-key" env:"API_KEY"`
	UseTLS         bool   `yaml:"tls" env:"TLS"`
	Collection     string `yaml:"collection" env:"COLLECTION"`
	EmbeddingAPI   string `yaml:"embedding-api" env:"EMBEDDING_API"`
	EmbeddingModel string `yaml:"embedding-model" env:"EMBEDDING_MODEL"`
	Dimensions     int    `yaml:"dimensions" env:"DIMENSIONS"`
	SourceURL      string `yaml:"source-url" env:"SOURCE_URL"`
	MaxDepth       int    `yaml:"max-depth" env:"MAX_DEPTH"`
	MaxLinks       int    `yaml:"max-links" env:"MAX_LINKS"`
	ChunkSize      int    `yaml:"chunk-size" env:"CHUNK_SIZE"`
}

// CacheSettings configure the Redis play-by-play cache.
type CacheSettings struct {
	RedisURL string        `yaml:"redis-url" env:"REDIS_URL"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
}

// TracingSettings configure the OpenTelemetry exporter.
type TracingSettings struct {
	Enabled         bool              `yaml:"enabled" env:"ENABLED"`
	Target          string            `yaml:"target" env:"TARGET"`
	Endpoint        string            `yaml:"endpoint" env:"ENDPOINT"`
	Protocol        string            `yaml:"protocol" env:"PROTOCOL"`
	Experiment      string            `yaml:"experiment" env:"EXPERIMENT"`
	DatabricksHost  string            `yaml:"databricks-host" env:"DATABRICKS_HOST"`
	DatabricksToken string            `yaml:"databricks-token" env:"DATABRICKS_TOKEN"`
	Headers         map[string]string `yaml:"headers"`
}

// ServerSettings configure the HTTP API.
type ServerSettings struct {
	Addr        string   `yaml:"addr" env:"ADDR"`
	CORSOrigins []string `yaml:"cors-origins" env:"CORS_ORIGINS"`
}

// LogSettings configure the zap logger.
type LogSettings struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Settings holds persisted configuration loaded from the YAML settings file
// and environment variables.
type Settings struct {
	Provider          string            `yaml:"provider" env:"PROVIDER"`
	ReasoningProvider string            `yaml:"reasoning-provider" env:"REASONING_PROVIDER"`
	StrictProvider    bool              `yaml:"strict-provider" env:"STRICT_PROVIDER"`
	Catalog           map[string]string `yaml:"catalog"`
	APIs              APIs              `yaml:"apis"`
	HTTPProxy         string            `yaml:"http-proxy" env:"HTTP_PROXY"`
	NoProxy           string            `yaml:"no-proxy" env:"NO_PROXY"`

	Report       ReportSettings    `yaml:"report" envPrefix:"REPORT_"`
	Fetch        FetchSettings     `yaml:"fetch" envPrefix:"FETCH_"`
	Narration    NarrationSettings `yaml:"narration" envPrefix:"NARRATION_"`
	Instructions map[string]string `yaml:"instructions"`
	Memory       MemorySettings    `yaml:"memory" envPrefix:"MEMORY_"`
	Knowledge    KnowledgeSettings `yaml:"knowledge" envPrefix:"KNOWLEDGE_"`
	Cache        CacheSettings     `yaml:"cache" envPrefix:"CACHE_"`
	Tracing      TracingSettings   `yaml:"tracing" envPrefix:"TRACING_"`
	Server       ServerSettings    `yaml:"server" envPrefix:"SERVER_"`
	Log          LogSettings       `yaml:"log" envPrefix:"LOG_"`

	CachePath string `yaml:"cache-path" env:"CACHE_PATH"`
	WordWrap  int    `yaml:"word-wrap" env:"WORD_WRAP"`
	Quiet     bool   `yaml:"quiet" env:"QUIET"`
	Raw       bool   `yaml:"raw" env:"RAW"`
	Theme     string `yaml:"theme" env:"THEME"`
	User      string `yaml:"user" env:"USER_ID"`

	MCPServers map[string]MCPServerConfig `yaml:"mcp-servers"`
	MCPDisable []string                   `yaml:"mcp-disable" env:"MCP_DISABLE"`
	MCPTimeout time.Duration              `yaml:"mcp-timeout" env:"MCP_TIMEOUT"`
}

// Runtime holds CLI/runtime-only options that should not be loaded from the
// settings file.
type Runtime struct {
	SettingsPath string
	Ask          bool
	Copy         bool
	Verbose      bool
}

// Config is the application configuration (settings + runtime-only options).
//
// Settings fields are promoted for ergonomic access, but runtime fields are
// explicitly excluded from YAML/env parsing.
type Config struct {
	Settings `yaml:",inline"`
	Runtime  `yaml:"-" env:"-"`
}

// MCPServerConfig holds configuration for an MCP server.
type MCPServerConfig struct {
	Type    string   `yaml:"type"`
	Command string   `yaml:"command"`
	Env     []string `yaml:"env"`
	Args    []string `yaml:"args"`
	URL     string   `yaml:"url"`
}

// ConfigDir returns ~/.config/courtside.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errs.Error{Err: err, Reason: "Could not determine home directory.", Code: errs.CodeConfig}
	}
	return filepath.Join(home, ".config", "courtside"), nil
}

// Ensure loads settings from disk and environment and applies defaults.
//
// It also creates the default settings file if it does not exist.
func Ensure() (Config, error) {
	var c Config
	dir, err := ConfigDir()
	if err != nil {
		return c, err
	}
	sp := filepath.Join(dir, "courtside.yml")
	c.SettingsPath = sp

	if dirErr := os.MkdirAll(dir, 0o700); dirErr != nil {
		return c, errs.Error{Err: dirErr, Reason: "Could not create config directory.", Code: errs.CodeConfig}
	}
	if err := WriteConfigFile(sp); err != nil {
		return c, err
	}
	content, err := os.ReadFile(sp)
	if err != nil {
		return c, errs.Error{Err: err, Reason: "Could not read settings file.", Code: errs.CodeConfig}
	}
	c, err = Load(content, sp, os.Environ())
	if err != nil {
		return c, err
	}
	return c, c.EnsureDirs()
}

// Load decodes YAML content, overlays the given environment and applies
// defaults. It performs every environment lookup the rest of the program
// needs, so later code only reads the returned Config.
func Load(content []byte, settingsPath string, environ []string) (Config, error) {
	var c Config
	c.SettingsPath = settingsPath
	if err := yaml.Unmarshal(content, &c); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not parse settings file.", Code: errs.CodeConfig}
	}

	envs := envMap(environ)
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix, Environment: envs}); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not parse environment into settings file.", Code: errs.CodeConfig}
	}

	if err := MergeInstructionsFromDir(&c); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not load agent instructions directory.", Code: errs.CodeConfig}
	}

	applyDefaults(&c, filepath.Dir(settingsPath))
	resolveAPIEnv(&c, envs)
	if c.HTTPProxy == "" {
		c.HTTPProxy = firstNonEmpty(envs["HTTPS_PROXY"], envs["HTTP_PROXY"])
	}
	return c, nil
}

// ReportsDir is where saved game reports live.
func (c Config) ReportsDir() string { return filepath.Join(c.CachePath, "reports") }

// VisualsDir is where chart files are written.
func (c Config) VisualsDir() string { return filepath.Join(c.CachePath, "visuals") }

// EnsureDirs creates the directories the cache path needs.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.CachePath, c.ReportsDir(), c.VisualsDir()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errs.Error{Err: err, Reason: "Could not create cache directory.", Code: errs.CodeConfig}
		}
	}
	return nil
}

func applyDefaults(c *Config, dir string) {
	d := Default()
	if c.Provider == "" {
		c.Provider = d.Provider
	}
	if c.Catalog == nil {
		c.Catalog = d.Catalog
	}
	if len(c.APIs) == 0 {
		c.APIs = d.APIs
	}
	if c.NoProxy == "" {
		c.NoProxy = d.NoProxy
	}
	if c.Report.Date == "" {
		c.Report.Date = d.Report.Date
	}
	if c.Report.HomeTeam == "" {
		c.Report.HomeTeam = d.Report.HomeTeam
	}
	if c.Report.AwayTeam == "" {
		c.Report.AwayTeam = d.Report.AwayTeam
	}
	if c.Fetch.BaseURL == "" {
		c.Fetch.BaseURL = d.Fetch.BaseURL
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = d.Fetch.Timeout
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = d.Fetch.UserAgent
	}
	if c.Fetch.MinInterval == 0 {
		c.Fetch.MinInterval = d.Fetch.MinInterval
	}
	if c.Narration.MaxSteps == 0 {
		c.Narration.MaxSteps = d.Narration.MaxSteps
	}
	if c.Memory.HistoryRuns == 0 {
		c.Memory.HistoryRuns = d.Memory.HistoryRuns
	}
	if c.CachePath == "" {
		c.CachePath = filepath.Join(dir, "cache")
	}
	if c.Memory.DSN == "" {
		c.Memory.DSN = "sqlite://" + filepath.Join(c.CachePath, "courtside.db")
	}
	k := &c.Knowledge
	if k.Host == "" {
		k.Host = d.Knowledge.Host
	}
	if k.Port == 0 {
		k.Port = d.Knowledge.Port
	}
	if k.Collection == "" {
		k.Collection = d.Knowledge.Collection
	}
	if k.EmbeddingAPI == "" {
		k.EmbeddingAPI = d.Knowledge.EmbeddingAPI
	}
	if k.EmbeddingModel == "" {
		k.EmbeddingModel = d.Knowledge.EmbeddingModel
	}
	if k.Dimensions == 0 {
		k.Dimensions = d.Knowledge.Dimensions
	}
	if k.SourceURL == "" {
		k.SourceURL = d.Knowledge.SourceURL
	}
	if k.MaxDepth == 0 {
		k.MaxDepth = d.Knowledge.MaxDepth
	}
	if k.MaxLinks == 0 {
		k.MaxLinks = d.Knowledge.MaxLinks
	}
	if k.ChunkSize == 0 {
		k.ChunkSize = d.Knowledge.ChunkSize
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = d.Cache.TTL
	}
	if c.Tracing.Target == "" {
		c.Tracing.Target = d.Tracing.Target
	}
	if c.Tracing.Protocol == "" {
		c.Tracing.Protocol = d.Tracing.Protocol
	}
	if c.Tracing.Experiment == "" {
		c.Tracing.Experiment = d.Tracing.Experiment
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.WordWrap == 0 {
		c.WordWrap = d.WordWrap
	}
	if c.MCPTimeout == 0 {
		c.MCPTimeout = d.MCPTimeout
	}
}

// resolveAPIEnv copies api-key-env and base-url-env values into the API
// entries so nothing downstream reads the environment.
func resolveAPIEnv(c *Config, envs map[string]string) {
	for i := range c.APIs {
		api := &c.APIs[i]
		if api.APIKey == "" && api.APIKeyEnv != "" {
			api.APIKey = envs[api.APIKeyEnv]
		}
		if api.BaseURL == "" && api.BaseURLEnv != "" {
			api.BaseURL = envs[api.BaseURLEnv]
		}
	}
}

func envMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := stdstrings.Cut(kv, "=")
		if ok {
			m[k] = v
		}
	}
	return m
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// MergeInstructionsFromDir merges agent instruction overrides found in
// ~/.config/courtside/instructions/<agent-id>.md into cfg.
//
// Entries already present in the settings file win.
func MergeInstructionsFromDir(cfg *Config) error {
	dir := filepath.Join(filepath.Dir(cfg.SettingsPath), "instructions")
	found, err := readInstructionsDir(dir)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return nil
	}
	if cfg.Instructions == nil {
		cfg.Instructions = map[string]string{}
	}
	for id, src := range found {
		if _, exists := cfg.Instructions[id]; exists {
			continue
		}
		cfg.Instructions[id] = src
	}
	return nil
}

func readInstructionsDir(dir string) (map[string]string, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("read instructions directory %q: %w", dir, err)
	}

	found := map[string]string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := stdstrings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}
		id := stdstrings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if id == "" {
			return nil
		}
		found[id] = "file://" + path
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read instructions directory %q: %w", dir, err)
	}
	return found, nil
}

// WriteConfigFile creates the config file at path if it does not exist.
func WriteConfigFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return createConfigFile(path)
	} else if err != nil {
		return errs.Error{Err: err, Reason: "Could not stat path.", Code: errs.CodeConfig}
	}
	return nil
}

func createConfigFile(path string) error {
	tmpl := template.Must(template.New("config").Parse(configTemplate))

	f, err := os.Create(path)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not create configuration file.", Code: errs.CodeConfig}
	}
	defer func() { _ = f.Close() }()

	m := struct{ Config Config }{Config: Default()}
	if err := tmpl.Execute(f, m); err != nil {
		return errs.Error{Err: err, Reason: "Could not render template.", Code: errs.CodeConfig}
	}
	return nil
}

// defaultAPIs has one entry per model family, in family order.
func defaultAPIs() APIs {
	var apis APIs
	for _, f := range provider.Families() {
		api := API{Name: f.API(), APIKeyEnv: f.KeyEnv(), Version: f.APIVersion()}
		switch f {
		case provider.AzureOpenAI:
			api.BaseURLEnv = "AZURE_OPENAI_ENDPOINT"
		case provider.OpenAI:
			api.BaseURL = "https://api.openai.com/v1"
		}
		apis = append(apis, api)
	}
	return apis
}

// Default returns the default configuration values.
func Default() Config {
	return Config{
		Settings: Settings{
			Provider: provider.DefaultFamily.String(),
			Catalog:  provider.DefaultCatalog(),
			APIs:     defaultAPIs(),
			NoProxy:  "localhost,127.0.0.1",
			Report: ReportSettings{
				Date:     "20251116",
				HomeTeam: "HOU",
				AwayTeam: "ORL",
			},
			Fetch: FetchSettings{
				BaseURL:     "https://www.basketball-reference.com",
				Timeout:     30 * time.Second,
				UserAgent:   "Mozilla/5.0 (compatible; courtside/1.0)",
				MinInterval: 3 * time.Second,
			},
			Narration: NarrationSettings{MaxSteps: 8},
			Memory:    MemorySettings{HistoryRuns: 3},
			Knowledge: KnowledgeSettings{
				Host:           "localhost",
				Port:           6334,
				Collection:     "basketball_knowledge",
				EmbeddingAPI:   "openai",
				EmbeddingModel: "text-embedding-3-small",
				Dimensions:     1536,
				SourceURL:      "https://www.nba.com/stats/help/glossary",
				MaxDepth:       2,
				MaxLinks:       5,
				ChunkSize:      2000,
			},
			Cache: CacheSettings{TTL: 24 * time.Hour},
			Tracing: TracingSettings{
				Target:     "local",
				Protocol:   "http",
				Experiment: "MCP_Experiments",
			},
			Server:     ServerSettings{Addr: ":7777", CORSOrigins: []string{"*"}},
			Log:        LogSettings{Level: "info", Format: "console"},
			WordWrap:   80,
			MCPTimeout: 15 * time.Second,
		},
	}
}
