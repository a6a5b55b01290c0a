package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectDir   string `json:"project_dir"`
	ResultsDir   string `json:"results_dir"`
	DataDir      string `json:"data_dir"`
	DataCacheDir string `json:"data_cache_dir"`
	DBPath       string `json:"db_path"`

	LLMProvider   string `json:"llm_provider"`
	DeepThinkLLM  string `json:"deep_think_llm"`
	QuickThinkLLM string `json:"quick_think_llm"`
	BackendURL    string `json:"backend_url"`

	MaxDebateRounds      int           `json:"max_debate_rounds"`
	MaxRiskDiscussRounds int           `json:"max_risk_rounds"`
	MaxTurnRetries       int           `json:"max_turn_retries"`
	TurnTimeout          time.Duration `json:"turn_timeout"`
	StageTimeout         time.Duration `json:"stage_timeout"`

	// Memory tiers
	IntradayLookbackDays int     `json:"intraday_lookback_days"`
	DailyLookbackDays    int     `json:"daily_lookback_days"`
	SlowLookbackDays     int     `json:"slow_lookback_days"`
	SlowCycleDays        int     `json:"slow_cycle_days"`
	DigestMaxChars       int     `json:"digest_max_chars"`
	DedupSimilarity      float64 `json:"dedup_similarity"`
	MinConfidence        float64 `json:"min_confidence"`

	// Portfolio
	InitialCash         float64 `json:"initial_cash"`
	MaxPositionFraction float64 `json:"max_position_fraction"`

	// Stock selection
	SymbolPool []string `json:"symbol_pool"`
	TopSymbols int      `json:"top_symbols"`

	OnlineTools  bool `json:"online_tools"`
	CacheEnabled bool `json:"cache_enabled"`
	Debug        bool `json:"debug"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`

	// Longport API Configuration
	LongportAppKey      string `json:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token"`

	// AI Model API Keys
	OpenAIAPIKey   string `json:"openai_api_key"`
	DeepSeekAPIKey string `json:"deepseek_api_key"`

	// Market data API keys
	FinnhubAPIKey string `json:"finnhub_api_key"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	cfg := &Config{
		ProjectDir:   currentDir,
		ResultsDir:   filepath.Join(currentDir, "results"),
		DataDir:      filepath.Join(currentDir, "data"),
		DataCacheDir: filepath.Join(currentDir, "data", "cache"),
		DBPath:       filepath.Join(currentDir, "data", "tradecycle.db"),

		LLMProvider:   "deepseek",
		DeepThinkLLM:  "deepseek-chat",
		QuickThinkLLM: "deepseek-chat",
		BackendURL:    "",

		MaxDebateRounds:      2,
		MaxRiskDiscussRounds: 1,
		MaxTurnRetries:       3,
		TurnTimeout:          60 * time.Second,
		StageTimeout:         5 * time.Minute,

		IntradayLookbackDays: 1,
		DailyLookbackDays:    7,
		SlowLookbackDays:     30,
		SlowCycleDays:        7,
		DigestMaxChars:       2000,
		DedupSimilarity:      0.85,
		MinConfidence:        0.3,

		InitialCash:         100000,
		MaxPositionFraction: 0.5,

		SymbolPool: []string{"AAPL", "MSFT", "GOOGL", "NVDA", "META", "AMZN", "TSLA", "JPM", "UNH", "XOM"},
		TopSymbols: 5,

		OnlineTools:  true,
		CacheEnabled: true,
		Debug:        false,

		EinoDebugEnabled: false,
		EinoDebugPort:    52538,
	}

	// Load environment variables from .env file
	_ = godotenv.Load()

	// Override with environment variables if they exist
	cfg.loadFromEnv()

	return cfg
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
		c.DataCacheDir = filepath.Join(val, "cache")
		c.DBPath = filepath.Join(val, "tradecycle.db")
	}
	if val := os.Getenv("DATA_CACHE_DIR"); val != "" {
		c.DataCacheDir = val
	}
	if val := os.Getenv("TRADECYCLE_DB_PATH"); val != "" {
		c.DBPath = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = val
	}
	if val := os.Getenv("DEEP_THINK_LLM"); val != "" {
		c.DeepThinkLLM = val
	}
	if val := os.Getenv("QUICK_THINK_LLM"); val != "" {
		c.QuickThinkLLM = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}

	if val := os.Getenv("MAX_DEBATE_ROUNDS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxDebateRounds = v
		}
	}
	if val := os.Getenv("MAX_RISK_ROUNDS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxRiskDiscussRounds = v
		}
	}
	if val := os.Getenv("MAX_TURN_RETRIES"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxTurnRetries = v
		}
	}
	if val := os.Getenv("TURN_TIMEOUT_SECONDS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil && v > 0 {
			c.TurnTimeout = time.Duration(v) * time.Second
		}
	}
	if val := os.Getenv("STAGE_TIMEOUT_SECONDS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil && v > 0 {
			c.StageTimeout = time.Duration(v) * time.Second
		}
	}

	if val := os.Getenv("SLOW_CYCLE_DAYS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil && v > 0 {
			c.SlowCycleDays = v
		}
	}
	if val := os.Getenv("DIGEST_MAX_CHARS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil && v > 0 {
			c.DigestMaxChars = v
		}
	}
	if val := os.Getenv("DEDUP_SIMILARITY"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.DedupSimilarity = v
		}
	}
	if val := os.Getenv("MIN_CONFIDENCE"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.MinConfidence = v
		}
	}

	if val := os.Getenv("INITIAL_CASH"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil && v > 0 {
			c.InitialCash = v
		}
	}
	if val := os.Getenv("MAX_POSITION_FRACTION"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil && v > 0 && v <= 1 {
			c.MaxPositionFraction = v
		}
	}

	if val := os.Getenv("SYMBOL_POOL"); val != "" {
		var pool []string
		for _, part := range strings.Split(val, ",") {
			if s := strings.ToUpper(strings.TrimSpace(part)); s != "" {
				pool = append(pool, s)
			}
		}
		if len(pool) > 0 {
			c.SymbolPool = pool
		}
	}
	if val := os.Getenv("TOP_SYMBOLS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil && v > 0 {
			c.TopSymbols = v
		}
	}

	if val := os.Getenv("ONLINE_TOOLS"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.OnlineTools = enabled
		}
	}
	if val := os.Getenv("CACHE_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.CacheEnabled = enabled
		}
	}
	if val := os.Getenv("TRADECYCLE_DEBUG"); val != "" {
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

	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}

	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}
	if val := os.Getenv("TRADECYCLE_FINNHUB_API_KEY"); val != "" {
		c.FinnhubAPIKey = val
	}
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir, c.DataDir, c.DataCacheDir, filepath.Dir(c.DBPath)}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

var (
	defaultCfg  *Config
	defaultOnce sync.Once
)

// Get returns the process-wide configuration, loading it on first use.
func Get() *Config {
	defaultOnce.Do(func() {
		defaultCfg = DefaultConfig()
	})
	return defaultCfg
}
