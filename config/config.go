package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the ledger, market data fetchers, advisory workflow
// and the shells need. It is persisted as a JSON document and can be updated
// at runtime through the Manager.
type Config struct {
	DataDir      string `json:"data_dir"`
	DataCacheDir string `json:"data_cache_dir"`

	// LLM decision process
	LLMProvider string `json:"llm_provider"` // "openai" or "deepseek"
	APIKey      string `json:"api_key"`
	BaseURL     string `json:"base_url"`
	ModelName   string `json:"model_name"`
	MaxTokens   int    `json:"max_tokens"`

	// Longport market data credentials (optional provider)
	LongportAppKey      string `json:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token"`

	CacheEnabled bool `json:"cache_enabled"`

	// Advisory context sizing
	ContextWindow  int `json:"context_window"`  // indicator rows shown to the model
	HistoryDigest  int `json:"history_digest"`  // recent trade records shown to the model
	AnalyzeTimeout int `json:"analyze_timeout"` // seconds for model/data calls

	ServerAddr string `json:"server_addr"`

	Debug            bool `json:"debug"`
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`
}

// DefaultConfig builds a config rooted at the working directory, then layers
// .env and environment variables on top.
func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	_ = godotenv.Load()
	cfg.loadFromEnv()

	return cfg
}

// DefaultConfigWithRoot builds the defaults without touching the environment.
func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		DataDir:      filepath.Join(root, "data"),
		DataCacheDir: filepath.Join(root, "data", "cache"),

		LLMProvider: "openai",
		ModelName:   "gpt-4o",
		MaxTokens:   8192,

		CacheEnabled: true,

		ContextWindow:  5,
		HistoryDigest:  10,
		AnalyzeTimeout: 120,

		ServerAddr: ":8000",

		EinoDebugEnabled: false,
		EinoDebugPort:    52538,
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("DATA_CACHE_DIR"); val != "" {
		c.DataCacheDir = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = val
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.APIKey = val
	}
	if val := os.Getenv("OPENAI_BASE_URL"); val != "" {
		c.BaseURL = val
	}
	if val := os.Getenv("OPENAI_MODEL_NAME"); val != "" {
		c.ModelName = val
	}
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.LLMProvider = "deepseek"
		c.APIKey = val
		if os.Getenv("OPENAI_MODEL_NAME") == "" {
			c.ModelName = "deepseek-chat"
		}
	}

	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}

	if val := os.Getenv("CACHE_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.CacheEnabled = enabled
		}
	}
	if val := os.Getenv("ANALYZE_TIMEOUT"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.AnalyzeTimeout = v
		}
	}
	if val := os.Getenv("SERVER_ADDR"); val != "" {
		c.ServerAddr = val
	}

	if val := os.Getenv("EASYFOLIO_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.EinoDebugPort = port
		}
	}
}

// Validate checks the fields other components depend on and normalizes the
// sizing knobs.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	switch c.LLMProvider {
	case "", "openai", "deepseek":
	default:
		return fmt.Errorf("unsupported llm_provider %q", c.LLMProvider)
	}
	if c.ContextWindow <= 0 {
		c.ContextWindow = 5
	}
	if c.HistoryDigest <= 0 {
		c.HistoryDigest = 10
	}
	if c.AnalyzeTimeout <= 0 {
		c.AnalyzeTimeout = 120
	}
	return nil
}

// HasModel reports whether an LLM is configured. Without one the advisory
// workflow runs in demo mode and emits a locally generated report.
func (c *Config) HasModel() bool {
	return c.APIKey != "" && c.APIKey != "YOUR_API_KEY"
}

// AnalyzeTimeoutDuration returns the analyze timeout as a duration.
func (c *Config) AnalyzeTimeoutDuration() time.Duration {
	return time.Duration(c.AnalyzeTimeout) * time.Second
}

// MaskedAPIKey returns the API key in the obfuscated form exposed over the
// config endpoint.
func (c *Config) MaskedAPIKey() string {
	if len(c.APIKey) > 8 {
		return c.APIKey[:4] + "..." + c.APIKey[len(c.APIKey)-4:]
	}
	if c.APIKey == "" {
		return "Not Set"
	}
	return "****"
}

// EnsureDirectories creates the data and cache directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.DataCacheDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}
