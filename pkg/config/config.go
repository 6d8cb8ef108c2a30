package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server (read-only report API)
	Port string
	Env  string // development, staging, production

	// Database (SQLite file)
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Acquisition
	Sources   SourceConfig
	Collector CollectorConfig

	// External APIs
	FRED FREDConfig
	LLM  LLMConfig

	// Output
	Output OutputConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Warnings collected while normalizing toggles (bad input falls back to defaults)
	Warnings []string
}

// DatabaseConfig holds SQLite configuration
type DatabaseConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	Prefix   string // key namespace, e.g. "committee:cache:report:2026-10-16"
}

// SourceConfig selects the upstream provider per field group
type SourceConfig struct {
	Market   string // yahoo | naver
	Flow     string // krx | naver
	Macro    string // fred | off
	News     string // google | off
	Fallback string // inprocess | disabled

	YahooBaseURL string
	NaverBaseURL string
	KRXBaseURL   string
	NewsBaseURL  string
	NewsQuery    string
	ISMURL       string
}

// CollectorConfig holds the acquisition worker pool settings
type CollectorConfig struct {
	Workers      int
	FetchTimeout time.Duration
	FetchRetries int // retries on 5xx/429 per request
	RatePerSec   int
}

// FREDConfig holds FRED (St. Louis Fed) API configuration
type FREDConfig struct {
	APIKey   string
	BaseURL  string
	CacheTTL time.Duration
}

// LLMConfig holds the opinion generator configuration
type LLMConfig struct {
	Mode            string // openai | rules
	APIKey          string
	BaseURL         string
	Model           string
	ModelCandidates []string
	Timeout         time.Duration
	TracePath       string
}

// OutputConfig holds run artifact settings
type OutputConfig struct {
	RunsDir    string
	RulesPath  string
	Watchlist  []string
	Schedule   string
	ScheduleTZ string
}

// Toggle allow-lists. The first entry is the documented default.
var (
	MarketSources    = []string{"yahoo", "naver"}
	FlowSources      = []string{"krx", "naver"}
	MacroSources     = []string{"fred", "off"}
	NewsSources      = []string{"google", "off"}
	FallbackModes    = []string{"inprocess", "disabled"}
	LLMModes         = []string{"openai", "rules"}
	DefaultWatchlist = []string{"SPY", "QQQ", "XLK"}
)

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit env file. An empty path searches the
// default locations; a named file that cannot be read is an error.
func LoadFrom(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		loadEnvFile()
	}

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			Path:        getEnv("COMMITTEE_DB_PATH", filepath.Join("data", "committee.db")),
			BusyTimeout: getEnvAsDuration("DB_BUSY_TIMEOUT", "5s"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Prefix:   getEnv("REDIS_PREFIX", "committee"),
		},

		Sources: SourceConfig{
			YahooBaseURL: getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
			NaverBaseURL: getEnv("NAVER_BASE_URL", "https://finance.naver.com"),
			KRXBaseURL:   getEnv("KRX_BASE_URL", "https://data.krx.co.kr"),
			NewsBaseURL:  getEnv("NEWS_BASE_URL", "https://news.google.com"),
			NewsQuery:    getEnv("NEWS_QUERY", "KOSPI"),
			ISMURL:       getEnv("ISM_PMI_URL", "https://go.weareism.org/ism-manufacturing-pmi"),
		},

		Collector: CollectorConfig{
			Workers:      getEnvAsInt("COLLECT_WORKERS", 6),
			FetchTimeout: getEnvAsDuration("FETCH_TIMEOUT", "15s"),
			FetchRetries: getEnvAsInt("FETCH_RETRIES", 2),
			RatePerSec:   getEnvAsInt("FETCH_RATE_PER_SEC", 5),
		},

		FRED: FREDConfig{
			APIKey:   normalizeAPIKey(getEnv("FRED_API_KEY", "")),
			BaseURL:  getEnv("FRED_BASE_URL", "https://api.stlouisfed.org"),
			CacheTTL: getEnvAsDuration("FRED_CACHE_TTL", "6h"),
		},

		LLM: LLMConfig{
			APIKey:          strings.TrimSpace(getEnv("OPENAI_API_KEY", "")),
			BaseURL:         strings.TrimRight(getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
			Model:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			ModelCandidates: getEnvAsList("OPENAI_MODEL_CANDIDATES", nil),
			Timeout:         getEnvAsDuration("OPENAI_TIMEOUT", "45s"),
			TracePath:       getEnv("LLM_TRACE_PATH", filepath.Join("runs", "llm_trace.jsonl")),
		},

		Output: OutputConfig{
			RunsDir:    getEnv("RUNS_DIR", "runs"),
			RulesPath:  getEnv("RULES_PATH", ""),
			Watchlist:  getEnvAsList("WATCHLIST", DefaultWatchlist),
			Schedule:   getEnv("REPORT_SCHEDULE", "0 30 16 * * 1-5"),
			ScheduleTZ: getEnv("REPORT_TZ", "Asia/Seoul"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	// ⭐ SSOT: 토글 값은 허용 목록으로 정규화 (잘못된 값은 기본값 + 경고)
	cfg.Sources.Market = cfg.toggle("MARKET_SOURCE", MarketSources)
	cfg.Sources.Flow = cfg.toggle("FLOW_SOURCE", FlowSources)
	cfg.Sources.Macro = cfg.toggle("MACRO_SOURCE", MacroSources)
	cfg.Sources.News = cfg.toggle("NEWS_SOURCE", NewsSources)
	cfg.Sources.Fallback = cfg.toggle("FALLBACK_MODE", FallbackModes)

	llmDefault := "rules"
	if cfg.LLM.APIKey != "" {
		llmDefault = "openai"
	}
	cfg.LLM.Mode = cfg.toggleWithDefault("LLM_MODE", LLMModes, llmDefault)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("COMMITTEE_DB_PATH is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Collector.Workers < 1 {
		return fmt.Errorf("COLLECT_WORKERS must be >= 1")
	}

	if c.LLM.Mode == "openai" && c.LLM.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when LLM_MODE=openai")
	}

	if len(c.Output.Watchlist) == 0 || len(c.Output.Watchlist) > 50 {
		return fmt.Errorf("WATCHLIST must contain 1..50 symbols")
	}

	return nil
}

// FallbackEnabled reports whether the in-process default fetchers are active
func (c *Config) FallbackEnabled() bool {
	return c.Sources.Fallback == "inprocess"
}

// LLMEnabled reports whether opinions are requested from the chat completions API
func (c *Config) LLMEnabled() bool {
	return c.LLM.Mode == "openai" && c.LLM.APIKey != ""
}

// Models returns the model candidates in try order, primary model first
func (c *LLMConfig) Models() []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(c.ModelCandidates)+1)
	for _, m := range append([]string{c.Model}, c.ModelCandidates...) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// Helper functions (private, only used within this file)

func (c *Config) toggle(key string, allowed []string) string {
	return c.toggleWithDefault(key, allowed, allowed[0])
}

func (c *Config) toggleWithDefault(key string, allowed []string, def string) string {
	value, warning := NormalizeToggle(os.Getenv(key), allowed, def)
	if warning != "" {
		c.Warnings = append(c.Warnings, key+": "+warning)
	}
	return value
}

// NormalizeToggle maps raw to an allow-listed value.
// Empty input silently yields def; unrecognized input yields def with a warning.
func NormalizeToggle(raw string, allowed []string, def string) (string, string) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return def, ""
	}
	for _, a := range allowed {
		if value == a {
			return value, ""
		}
	}
	return def, fmt.Sprintf("unrecognized value %q, using %q (allowed: %s)", raw, def, strings.Join(allowed, "|"))
}

// normalizeAPIKey strips whitespace and surrounding quotes copied from dashboards
func normalizeAPIKey(raw string) string {
	return strings.Trim(strings.TrimSpace(raw), `"'`)
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
