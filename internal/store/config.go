package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModelGemini = "GEMINI"
	ModelClaude = "CLAUDE"

	DataPolygon = "POLYGON"
	DataYahoo   = "YAHOO"
	DataKite    = "KITE"

	CacheNone  = "NONE"
	CacheFile  = "FILE"
	CacheRedis = "REDIS"

	CompilerModel      = "MODEL"
	CompilerArithmetic = "ARITHMETIC"
)

type Config struct {
	Server struct {
		Addr                string `yaml:"addr"`
		StaticDir           string `yaml:"static_dir"`
		ShutdownTimeoutSecs int    `yaml:"shutdown_timeout_seconds"`
	} `yaml:"server"`
	Model struct {
		Provider    string  `yaml:"provider"`
		Name        string  `yaml:"name"`
		Temperature float32 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
		Retry       struct {
			Attempts       int     `yaml:"attempts"`
			InitialDelayMS int     `yaml:"initial_delay_ms"`
			ExpBase        float64 `yaml:"exp_base"`
			MaxDelayMS     int     `yaml:"max_delay_ms"`
			StatusCodes    []int   `yaml:"status_codes"`
		} `yaml:"retry"`
	} `yaml:"model"`
	Data struct {
		Provider          string `yaml:"provider"`
		TradingDays       int    `yaml:"trading_days"`
		BaseURL           string `yaml:"base_url"`
		RequestsPerMinute int    `yaml:"requests_per_minute"`
		TimeoutSeconds    int    `yaml:"timeout_seconds"`
		Exchange          string `yaml:"exchange"`
		Cache             struct {
			Backend    string `yaml:"backend"`
			TTLMinutes int    `yaml:"ttl_minutes"`
			Dir        string `yaml:"dir"`
			RedisAddr  string `yaml:"redis_addr"`
			RedisDB    int    `yaml:"redis_db"`
		} `yaml:"cache"`
	} `yaml:"data"`
	Analysis struct {
		Parallel       bool `yaml:"parallel"`
		TimeoutSeconds int  `yaml:"timeout_seconds"`
		Weights        struct {
			Technical   float64 `yaml:"technical"`
			Fundamental float64 `yaml:"fundamental"`
		} `yaml:"weights"`
		Headlines struct {
			Enabled  bool   `yaml:"enabled"`
			Max      int    `yaml:"max"`
			Language string `yaml:"language"`
			Region   string `yaml:"region"`
		} `yaml:"headlines"`
	} `yaml:"analysis"`
	Compiler struct {
		Mode                string  `yaml:"mode"`
		MaxAttempts         int     `yaml:"max_attempts"`
		ScoreTolerance      int     `yaml:"score_tolerance"`
		ConfidenceTolerance float64 `yaml:"confidence_tolerance"`
	} `yaml:"compiler"`
	RunLog struct {
		Enabled           bool   `yaml:"enabled"`
		Dir               string `yaml:"dir"`
		CompressAfterDays int    `yaml:"compress_after_days"`
	} `yaml:"runlog"`
	Publish struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"publish"`
	Watchlist struct {
		Enabled  bool     `yaml:"enabled"`
		Schedule string   `yaml:"schedule"`
		Tickers  []string `yaml:"tickers"`
	} `yaml:"watchlist"`
}

// Credentials are read from the environment only, never from config.yaml.
type Credentials struct {
	GeminiAPIKey    string
	AnthropicAPIKey string
	PolygonAPIKey   string
	KiteAPIKey      string
	KiteAccessToken string
}

// LoadCredentials reads API keys from the environment. GEMINI_API_KEY wins
// over GOOGLE_API_KEY when both are set.
func LoadCredentials() Credentials {
	gemini := os.Getenv("GEMINI_API_KEY")
	if gemini == "" {
		gemini = os.Getenv("GOOGLE_API_KEY")
	}
	return Credentials{
		GeminiAPIKey:    gemini,
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		PolygonAPIKey:   os.Getenv("POLYGON_API_KEY"),
		KiteAPIKey:      os.Getenv("KITE_API_KEY"),
		KiteAccessToken: os.Getenv("KITE_ACCESS_TOKEN"),
	}
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "static"
	}
	if c.Server.ShutdownTimeoutSecs == 0 {
		c.Server.ShutdownTimeoutSecs = 15
	}

	c.Model.Provider = strings.ToUpper(c.Model.Provider)
	if c.Model.Provider == "" {
		c.Model.Provider = ModelGemini
	}
	if c.Model.Temperature == 0 {
		c.Model.Temperature = 0.2
	}
	if c.Model.MaxTokens == 0 {
		c.Model.MaxTokens = 4096
	}
	if c.Model.Retry.Attempts == 0 {
		c.Model.Retry.Attempts = 5
	}
	if c.Model.Retry.InitialDelayMS == 0 {
		c.Model.Retry.InitialDelayMS = 1000
	}
	if c.Model.Retry.ExpBase == 0 {
		c.Model.Retry.ExpBase = 7
	}
	if c.Model.Retry.MaxDelayMS == 0 {
		c.Model.Retry.MaxDelayMS = 60_000
	}
	if len(c.Model.Retry.StatusCodes) == 0 {
		c.Model.Retry.StatusCodes = []int{429, 500, 503, 504}
	}

	c.Data.Provider = strings.ToUpper(c.Data.Provider)
	if c.Data.Provider == "" {
		c.Data.Provider = DataPolygon
	}
	if c.Data.TradingDays == 0 {
		c.Data.TradingDays = 180
	}
	if c.Data.TimeoutSeconds == 0 {
		c.Data.TimeoutSeconds = 20
	}
	if c.Data.Exchange == "" {
		c.Data.Exchange = "NSE"
	}
	c.Data.Cache.Backend = strings.ToUpper(c.Data.Cache.Backend)
	if c.Data.Cache.Backend == "" {
		c.Data.Cache.Backend = CacheNone
	}
	if c.Data.Cache.TTLMinutes == 0 {
		c.Data.Cache.TTLMinutes = 15
	}
	if c.Data.Cache.Dir == "" {
		c.Data.Cache.Dir = "cache/snapshots"
	}
	if c.Data.Cache.RedisAddr == "" {
		c.Data.Cache.RedisAddr = "localhost:6379"
	}

	if c.Analysis.Weights.Technical == 0 && c.Analysis.Weights.Fundamental == 0 {
		c.Analysis.Weights.Technical = 0.45
		c.Analysis.Weights.Fundamental = 0.55
	}
	if c.Analysis.Headlines.Max == 0 {
		c.Analysis.Headlines.Max = 8
	}
	if c.Analysis.Headlines.Language == "" {
		c.Analysis.Headlines.Language = "en-US"
	}
	if c.Analysis.Headlines.Region == "" {
		c.Analysis.Headlines.Region = "US"
	}

	c.Compiler.Mode = strings.ToUpper(c.Compiler.Mode)
	if c.Compiler.Mode == "" {
		c.Compiler.Mode = CompilerModel
	}
	if c.Compiler.MaxAttempts == 0 {
		c.Compiler.MaxAttempts = 2
	}
	if c.Compiler.ScoreTolerance == 0 {
		c.Compiler.ScoreTolerance = 1
	}
	if c.Compiler.ConfidenceTolerance == 0 {
		c.Compiler.ConfidenceTolerance = 0.02
	}

	if c.RunLog.Dir == "" {
		c.RunLog.Dir = "logs/runs"
	}
	if c.RunLog.CompressAfterDays == 0 {
		c.RunLog.CompressAfterDays = 7
	}

	if c.Publish.Topic == "" {
		c.Publish.Topic = "stockiq.analysis.completed"
	}

	if c.Watchlist.Schedule == "" {
		c.Watchlist.Schedule = "0 22 * * 1-5"
	}
}

func (c *Config) Validate() error {
	if c.Model.Provider != ModelGemini && c.Model.Provider != ModelClaude {
		return fmt.Errorf("invalid model.provider '%s': must be 'GEMINI' or 'CLAUDE'", c.Model.Provider)
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("model.temperature must be between 0-2, got %.2f", c.Model.Temperature)
	}
	if c.Model.Retry.Attempts < 1 {
		return fmt.Errorf("model.retry.attempts must be at least 1, got %d", c.Model.Retry.Attempts)
	}
	switch c.Data.Provider {
	case DataPolygon, DataYahoo, DataKite:
	default:
		return fmt.Errorf("invalid data.provider '%s': must be 'POLYGON', 'YAHOO', or 'KITE'", c.Data.Provider)
	}
	if c.Data.TradingDays < 1 {
		return fmt.Errorf("data.trading_days must be positive, got %d", c.Data.TradingDays)
	}
	switch c.Data.Cache.Backend {
	case CacheNone, CacheFile, CacheRedis:
	default:
		return fmt.Errorf("data.cache.backend must be 'NONE', 'FILE', or 'REDIS', got '%s'", c.Data.Cache.Backend)
	}
	if c.Analysis.Weights.Technical < 0 || c.Analysis.Weights.Fundamental < 0 {
		return errors.New("analysis.weights must not be negative")
	}
	if c.Compiler.Mode != CompilerModel && c.Compiler.Mode != CompilerArithmetic {
		return fmt.Errorf("compiler.mode must be 'MODEL' or 'ARITHMETIC', got '%s'", c.Compiler.Mode)
	}
	if c.Compiler.MaxAttempts < 1 {
		return fmt.Errorf("compiler.max_attempts must be at least 1, got %d", c.Compiler.MaxAttempts)
	}
	if c.Publish.Enabled && len(c.Publish.Brokers) == 0 {
		return errors.New("publish.brokers cannot be empty when publishing is enabled")
	}
	if c.Watchlist.Enabled && len(c.Watchlist.Tickers) == 0 {
		return errors.New("watchlist.tickers cannot be empty when the watchlist is enabled")
	}
	return nil
}

// LoadConfig reads path, fills defaults and validates. A missing file yields
// the defaults.
func LoadConfig(path string) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.Analysis.TimeoutSeconds) * time.Second
}

func (c *Config) DataTimeout() time.Duration {
	return time.Duration(c.Data.TimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Data.Cache.TTLMinutes) * time.Minute
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSecs) * time.Second
}
