package model

import "time"

// Config is the full runtime configuration, loaded by the CLI through
// viper and rendered to YAML by `morbid config show`.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http" mapstructure:"http"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	Cost       CostConfig       `yaml:"cost" mapstructure:"cost"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" mapstructure:"checkpoint"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
}

// HTTPConfig covers the shared plain-HTTP fetch path.
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// CacheConfig covers the fetched-page cache shared by scrape adapters.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// BrowserConfig covers the shared headless browser.
type BrowserConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	BinPath        string        `yaml:"bin_path" mapstructure:"bin_path"`
	Headless       bool          `yaml:"headless" mapstructure:"headless"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	PageTimeout    time.Duration `yaml:"page_timeout" mapstructure:"page_timeout"`
	MaxContentLen  int           `yaml:"max_content_len" mapstructure:"max_content_len"`
	SessionDir     string        `yaml:"session_dir" mapstructure:"session_dir"`
	SolverAPIKey   string        `yaml:"solver_api_key" mapstructure:"solver_api_key"`
	SolverCostEach float64       `yaml:"solver_cost_each" mapstructure:"solver_cost_each"`
	// Credentials holds per-origin logins for hard-paywalled sites,
	// keyed by top-level domain.
	Credentials map[string]SiteCredentials `yaml:"credentials" mapstructure:"credentials"`
}

// SiteCredentials is one origin's login for paywall authentication.
type SiteCredentials struct {
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// LLMConfig covers the synthesis provider.
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// BatchConfig covers the asynchronous research job path.
type BatchConfig struct {
	Model              string `yaml:"model" mapstructure:"model"`
	CompletionWindow   string `yaml:"completion_window" mapstructure:"completion_window"`
	Limit              int    `yaml:"limit" mapstructure:"limit"`
	CheckpointInterval int    `yaml:"checkpoint_interval" mapstructure:"checkpoint_interval"` // results between saves
}

// SourcesConfig selects and tunes adapters.
type SourcesConfig struct {
	Enabled      []string      `yaml:"enabled" mapstructure:"enabled"`
	MinDelay     time.Duration `yaml:"min_delay" mapstructure:"min_delay"` // floor applied to every adapter
	RespectRobots bool         `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// CostConfig is the backpressure valve for interactive enrichment.
type CostConfig struct {
	PerSubjectUSD float64 `yaml:"per_subject_usd" mapstructure:"per_subject_usd"`
	TotalUSD      float64 `yaml:"total_usd" mapstructure:"total_usd"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// CheckpointConfig locates batch progress files.
type CheckpointConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// OutputConfig controls operator-facing reporting.
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults, the lowest layer of the
// configuration hierarchy.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "Morbid/0.3 (+https://github.com/deadonfilm/morbid)",
			MaxBodyBytes: 2_000_000,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "./.morbid-cache",
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Browser: BrowserConfig{
			Enabled:       true,
			Headless:      true,
			IdleTimeout:   90 * time.Second,
			PageTimeout:   45 * time.Second,
			MaxContentLen: 20_000,
			SessionDir:    "./.morbid-sessions",
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			Timeout:   60,
			MaxTokens: 2000,
		},
		Batch: BatchConfig{
			Model:              "gpt-4o-mini",
			CompletionWindow:   "24h",
			Limit:              500,
			CheckpointInterval: 25,
		},
		Sources: SourcesConfig{
			Enabled:       []string{"wikidata", "wikipedia", "tradepress", "wayback", "findagrave", "llmresearch"},
			MinDelay:      500 * time.Millisecond,
			RespectRobots: true,
		},
		Cost: CostConfig{
			PerSubjectUSD: 0.25,
			TotalUSD:      10.0,
		},
		Storage: StorageConfig{
			Path: "./morbid.db",
		},
		Checkpoint: CheckpointConfig{
			Dir: "./.morbid-checkpoints",
		},
	}
}
