package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dyike/tradecycle/config"
)

// ConfigManager handles advanced configuration management. Values set
// through it are persisted to tradecycle.json in the project directory
// and overlaid on top of the environment-derived defaults at startup.
type ConfigManager struct {
	config     *config.Config
	configPath string
}

// NewConfigManager creates a new configuration manager
func NewConfigManager(cfg *config.Config) *ConfigManager {
	return &ConfigManager{
		config:     cfg,
		configPath: filepath.Join(cfg.ProjectDir, "tradecycle.json"),
	}
}

// SaveConfig saves the current configuration to file
func (cm *ConfigManager) SaveConfig() error {
	jsonData, err := json.MarshalIndent(cm.serializable(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(cm.configPath, jsonData, 0o644)
}

func (cm *ConfigManager) serializable() map[string]interface{} {
	return map[string]interface{}{
		"llm_provider":          cm.config.LLMProvider,
		"deep_think_llm":        cm.config.DeepThinkLLM,
		"quick_think_llm":       cm.config.QuickThinkLLM,
		"backend_url":           cm.config.BackendURL,
		"max_debate_rounds":     cm.config.MaxDebateRounds,
		"max_risk_rounds":       cm.config.MaxRiskDiscussRounds,
		"max_turn_retries":      cm.config.MaxTurnRetries,
		"turn_timeout_seconds":  int(cm.config.TurnTimeout / time.Second),
		"stage_timeout_seconds": int(cm.config.StageTimeout / time.Second),
		"slow_cycle_days":       cm.config.SlowCycleDays,
		"digest_max_chars":      cm.config.DigestMaxChars,
		"dedup_similarity":      cm.config.DedupSimilarity,
		"min_confidence":        cm.config.MinConfidence,
		"initial_cash":          cm.config.InitialCash,
		"max_position_fraction": cm.config.MaxPositionFraction,
		"symbol_pool":           strings.Join(cm.config.SymbolPool, ","),
		"top_symbols":           cm.config.TopSymbols,
		"online_tools":          cm.config.OnlineTools,
		"cache_enabled":         cm.config.CacheEnabled,
		"debug":                 cm.config.Debug,
		"eino_debug_enabled":    cm.config.EinoDebugEnabled,
		"eino_debug_port":       cm.config.EinoDebugPort,
	}
}

// LoadConfig loads configuration from file. A missing file is not an
// error; the environment-derived defaults stay in effect.
func (cm *ConfigManager) LoadConfig() error {
	if _, err := os.Stat(cm.configPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var configData map[string]interface{}
	if err := json.Unmarshal(data, &configData); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	cm.applyConfigData(configData)
	return nil
}

// applyConfigData overlays parsed JSON values onto the live config.
// JSON numbers arrive as float64.
func (cm *ConfigManager) applyConfigData(configData map[string]interface{}) {
	if val, ok := configData["llm_provider"].(string); ok {
		cm.config.LLMProvider = val
	}
	if val, ok := configData["deep_think_llm"].(string); ok {
		cm.config.DeepThinkLLM = val
	}
	if val, ok := configData["quick_think_llm"].(string); ok {
		cm.config.QuickThinkLLM = val
	}
	if val, ok := configData["backend_url"].(string); ok {
		cm.config.BackendURL = val
	}
	if val, ok := configData["max_debate_rounds"].(float64); ok {
		cm.config.MaxDebateRounds = int(val)
	}
	if val, ok := configData["max_risk_rounds"].(float64); ok {
		cm.config.MaxRiskDiscussRounds = int(val)
	}
	if val, ok := configData["max_turn_retries"].(float64); ok {
		cm.config.MaxTurnRetries = int(val)
	}
	if val, ok := configData["turn_timeout_seconds"].(float64); ok && val > 0 {
		cm.config.TurnTimeout = time.Duration(val) * time.Second
	}
	if val, ok := configData["stage_timeout_seconds"].(float64); ok && val > 0 {
		cm.config.StageTimeout = time.Duration(val) * time.Second
	}
	if val, ok := configData["slow_cycle_days"].(float64); ok && val > 0 {
		cm.config.SlowCycleDays = int(val)
	}
	if val, ok := configData["digest_max_chars"].(float64); ok && val > 0 {
		cm.config.DigestMaxChars = int(val)
	}
	if val, ok := configData["dedup_similarity"].(float64); ok {
		cm.config.DedupSimilarity = val
	}
	if val, ok := configData["min_confidence"].(float64); ok {
		cm.config.MinConfidence = val
	}
	if val, ok := configData["initial_cash"].(float64); ok && val > 0 {
		cm.config.InitialCash = val
	}
	if val, ok := configData["max_position_fraction"].(float64); ok && val > 0 && val <= 1 {
		cm.config.MaxPositionFraction = val
	}
	if val, ok := configData["symbol_pool"].(string); ok {
		if pool := parseSymbolList(val); len(pool) > 0 {
			cm.config.SymbolPool = pool
		}
	}
	if val, ok := configData["top_symbols"].(float64); ok && val > 0 {
		cm.config.TopSymbols = int(val)
	}
	if val, ok := configData["online_tools"].(bool); ok {
		cm.config.OnlineTools = val
	}
	if val, ok := configData["cache_enabled"].(bool); ok {
		cm.config.CacheEnabled = val
	}
	if val, ok := configData["debug"].(bool); ok {
		cm.config.Debug = val
	}
	if val, ok := configData["eino_debug_enabled"].(bool); ok {
		cm.config.EinoDebugEnabled = val
	}
	if val, ok := configData["eino_debug_port"].(float64); ok {
		cm.config.EinoDebugPort = int(val)
	}
}

// ResetConfig resets configuration to defaults
func (cm *ConfigManager) ResetConfig() error {
	defaultConfig := config.DefaultConfig()
	*cm.config = *defaultConfig
	DisplaySuccess("Configuration reset to defaults")
	return nil
}

// ExportConfig exports configuration to a specified file
func (cm *ConfigManager) ExportConfig(filename string) error {
	configData := cm.serializable()
	configData["metadata"] = map[string]string{
		"version":     Version,
		"exported_at": time.Now().Format(time.RFC3339),
		"description": "tradecycle Configuration Export",
	}
	configData["directories"] = map[string]string{
		"project_dir":    cm.config.ProjectDir,
		"results_dir":    cm.config.ResultsDir,
		"data_dir":       cm.config.DataDir,
		"data_cache_dir": cm.config.DataCacheDir,
		"db_path":        cm.config.DBPath,
	}

	jsonData, err := json.MarshalIndent(configData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(filename, jsonData, 0o644)
}

// ImportConfig imports configuration from a specified file and
// persists it as the local overlay.
func (cm *ConfigManager) ImportConfig(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var configData map[string]interface{}
	if err := json.Unmarshal(data, &configData); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if metadata, ok := configData["metadata"].(map[string]interface{}); ok {
		if version, ok := metadata["version"].(string); ok {
			DisplayInfo(fmt.Sprintf("Importing configuration version: %s", version))
		}
	}

	cm.applyConfigData(configData)
	return cm.SaveConfig()
}

// GetConfigValue gets a configuration value by key
func (cm *ConfigManager) GetConfigValue(key string) (interface{}, error) {
	switch strings.ToLower(key) {
	case "llm_provider":
		return cm.config.LLMProvider, nil
	case "deep_think_llm":
		return cm.config.DeepThinkLLM, nil
	case "quick_think_llm":
		return cm.config.QuickThinkLLM, nil
	case "backend_url":
		return cm.config.BackendURL, nil
	case "max_debate_rounds":
		return cm.config.MaxDebateRounds, nil
	case "max_risk_rounds":
		return cm.config.MaxRiskDiscussRounds, nil
	case "max_turn_retries":
		return cm.config.MaxTurnRetries, nil
	case "turn_timeout_seconds":
		return int(cm.config.TurnTimeout / time.Second), nil
	case "stage_timeout_seconds":
		return int(cm.config.StageTimeout / time.Second), nil
	case "slow_cycle_days":
		return cm.config.SlowCycleDays, nil
	case "digest_max_chars":
		return cm.config.DigestMaxChars, nil
	case "dedup_similarity":
		return cm.config.DedupSimilarity, nil
	case "min_confidence":
		return cm.config.MinConfidence, nil
	case "initial_cash":
		return cm.config.InitialCash, nil
	case "max_position_fraction":
		return cm.config.MaxPositionFraction, nil
	case "symbol_pool":
		return strings.Join(cm.config.SymbolPool, ","), nil
	case "top_symbols":
		return cm.config.TopSymbols, nil
	case "online_tools":
		return cm.config.OnlineTools, nil
	case "cache_enabled":
		return cm.config.CacheEnabled, nil
	case "debug":
		return cm.config.Debug, nil
	case "eino_debug_enabled":
		return cm.config.EinoDebugEnabled, nil
	case "eino_debug_port":
		return cm.config.EinoDebugPort, nil
	case "project_dir":
		return cm.config.ProjectDir, nil
	case "results_dir":
		return cm.config.ResultsDir, nil
	case "data_dir":
		return cm.config.DataDir, nil
	case "data_cache_dir":
		return cm.config.DataCacheDir, nil
	case "db_path":
		return cm.config.DBPath, nil
	default:
		return nil, fmt.Errorf("unknown configuration key: %s", key)
	}
}

// SetConfigValue sets a configuration value by key
func (cm *ConfigManager) SetConfigValue(key, value string) error {
	switch strings.ToLower(key) {
	case "llm_provider":
		validProviders := []string{"openai", "deepseek"}
		if !contains(validProviders, value) {
			return fmt.Errorf("invalid LLM provider. Valid options: %s", strings.Join(validProviders, ", "))
		}
		cm.config.LLMProvider = value

	case "deep_think_llm":
		cm.config.DeepThinkLLM = value

	case "quick_think_llm":
		cm.config.QuickThinkLLM = value

	case "backend_url":
		cm.config.BackendURL = value

	case "max_debate_rounds":
		if i, err := strconv.Atoi(value); err == nil && i >= 1 && i <= 10 {
			cm.config.MaxDebateRounds = i
		} else {
			return fmt.Errorf("max_debate_rounds must be between 1-10")
		}

	case "max_risk_rounds":
		if i, err := strconv.Atoi(value); err == nil && i >= 1 && i <= 10 {
			cm.config.MaxRiskDiscussRounds = i
		} else {
			return fmt.Errorf("max_risk_rounds must be between 1-10")
		}

	case "max_turn_retries":
		if i, err := strconv.Atoi(value); err == nil && i >= 0 && i <= 10 {
			cm.config.MaxTurnRetries = i
		} else {
			return fmt.Errorf("max_turn_retries must be between 0-10")
		}

	case "turn_timeout_seconds":
		if i, err := strconv.Atoi(value); err == nil && i >= 5 && i <= 600 {
			cm.config.TurnTimeout = time.Duration(i) * time.Second
		} else {
			return fmt.Errorf("turn_timeout_seconds must be between 5-600")
		}

	case "stage_timeout_seconds":
		if i, err := strconv.Atoi(value); err == nil && i >= 30 && i <= 3600 {
			cm.config.StageTimeout = time.Duration(i) * time.Second
		} else {
			return fmt.Errorf("stage_timeout_seconds must be between 30-3600")
		}

	case "slow_cycle_days":
		if i, err := strconv.Atoi(value); err == nil && i >= 1 && i <= 90 {
			cm.config.SlowCycleDays = i
		} else {
			return fmt.Errorf("slow_cycle_days must be between 1-90")
		}

	case "digest_max_chars":
		if i, err := strconv.Atoi(value); err == nil && i >= 200 && i <= 20000 {
			cm.config.DigestMaxChars = i
		} else {
			return fmt.Errorf("digest_max_chars must be between 200-20000")
		}

	case "dedup_similarity":
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 && f <= 1 {
			cm.config.DedupSimilarity = f
		} else {
			return fmt.Errorf("dedup_similarity must be between 0.0-1.0")
		}

	case "min_confidence":
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 && f <= 1 {
			cm.config.MinConfidence = f
		} else {
			return fmt.Errorf("min_confidence must be between 0.0-1.0")
		}

	case "initial_cash":
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
			cm.config.InitialCash = f
		} else {
			return fmt.Errorf("initial_cash must be a positive number")
		}

	case "max_position_fraction":
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 && f <= 1 {
			cm.config.MaxPositionFraction = f
		} else {
			return fmt.Errorf("max_position_fraction must be between 0.0-1.0 (exclusive of 0)")
		}

	case "symbol_pool":
		pool := parseSymbolList(value)
		if len(pool) == 0 {
			return fmt.Errorf("symbol_pool must list at least one symbol")
		}
		for _, s := range pool {
			if err := validateSymbolToken(s); err != nil {
				return err
			}
		}
		cm.config.SymbolPool = pool

	case "top_symbols":
		if i, err := strconv.Atoi(value); err == nil && i >= 1 && i <= 50 {
			cm.config.TopSymbols = i
		} else {
			return fmt.Errorf("top_symbols must be between 1-50")
		}

	case "online_tools":
		if b, err := strconv.ParseBool(value); err == nil {
			cm.config.OnlineTools = b
		} else {
			return fmt.Errorf("online_tools must be true or false")
		}

	case "cache_enabled":
		if b, err := strconv.ParseBool(value); err == nil {
			cm.config.CacheEnabled = b
		} else {
			return fmt.Errorf("cache_enabled must be true or false")
		}

	case "debug":
		if b, err := strconv.ParseBool(value); err == nil {
			cm.config.Debug = b
		} else {
			return fmt.Errorf("debug must be true or false")
		}

	case "eino_debug_enabled":
		if b, err := strconv.ParseBool(value); err == nil {
			cm.config.EinoDebugEnabled = b
		} else {
			return fmt.Errorf("eino_debug_enabled must be true or false")
		}

	case "eino_debug_port":
		if i, err := strconv.Atoi(value); err == nil && i >= 1024 && i <= 65535 {
			cm.config.EinoDebugPort = i
		} else {
			return fmt.Errorf("eino_debug_port must be between 1024-65535")
		}

	default:
		return fmt.Errorf("unknown or read-only configuration key: %s", key)
	}

	return nil
}

// ValidateConfiguration validates the current configuration
func (cm *ConfigManager) ValidateConfiguration() []string {
	var warnings []string

	// Check required credentials based on provider
	switch cm.config.LLMProvider {
	case "openai":
		if cm.config.OpenAIAPIKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
			warnings = append(warnings, "OPENAI_API_KEY not configured - run and backtest commands will fail")
		}
	case "deepseek":
		if cm.config.DeepSeekAPIKey == "" && os.Getenv("DEEPSEEK_API_KEY") == "" {
			warnings = append(warnings, "DEEPSEEK_API_KEY not configured - run and backtest commands will fail")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("unknown llm_provider %q (supported: openai, deepseek)", cm.config.LLMProvider))
	}

	// Check market data credentials
	if cm.config.OnlineTools {
		if cm.config.FinnhubAPIKey == "" && os.Getenv("FINNHUB_API_KEY") == "" {
			warnings = append(warnings, "Finnhub API key not configured - insider data will be unavailable")
		}
		longportKeys := []string{cm.config.LongportAppKey, cm.config.LongportAppSecret, cm.config.LongportAccessToken}
		configured := 0
		for _, k := range longportKeys {
			if k != "" {
				configured++
			}
		}
		if configured > 0 && configured < 3 {
			warnings = append(warnings, "Longport credentials incomplete - set app key, secret, and access token together")
		}
	} else {
		warnings = append(warnings, "online_tools disabled - only cached candle files will be served")
	}

	// Check directory permissions
	dirs := []string{cm.config.ResultsDir, cm.config.DataDir, cm.config.DataCacheDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			warnings = append(warnings, fmt.Sprintf("Cannot create/access directory: %s", dir))
		}
	}

	// Validate numeric ranges
	if cm.config.MaxDebateRounds < 1 || cm.config.MaxDebateRounds > 10 {
		warnings = append(warnings, "max_debate_rounds should be between 1-10")
	}
	if cm.config.MaxRiskDiscussRounds < 1 || cm.config.MaxRiskDiscussRounds > 10 {
		warnings = append(warnings, "max_risk_rounds should be between 1-10")
	}
	if cm.config.MaxPositionFraction <= 0 || cm.config.MaxPositionFraction > 1 {
		warnings = append(warnings, "max_position_fraction should be between 0.0-1.0")
	}
	if cm.config.InitialCash <= 0 {
		warnings = append(warnings, "initial_cash should be a positive number")
	}
	if cm.config.TopSymbols > len(cm.config.SymbolPool) {
		warnings = append(warnings, fmt.Sprintf("top_symbols (%d) exceeds the symbol pool size (%d)", cm.config.TopSymbols, len(cm.config.SymbolPool)))
	}
	if cm.config.EinoDebugEnabled && (cm.config.EinoDebugPort < 1024 || cm.config.EinoDebugPort > 65535) {
		warnings = append(warnings, "eino_debug_port should be between 1024-65535")
	}

	return warnings
}

// ListAvailableKeys returns all available configuration keys
func (cm *ConfigManager) ListAvailableKeys() []string {
	return []string{
		"llm_provider", "deep_think_llm", "quick_think_llm", "backend_url",
		"max_debate_rounds", "max_risk_rounds", "max_turn_retries",
		"turn_timeout_seconds", "stage_timeout_seconds",
		"slow_cycle_days", "digest_max_chars", "dedup_similarity", "min_confidence",
		"initial_cash", "max_position_fraction", "symbol_pool", "top_symbols",
		"online_tools", "cache_enabled", "debug",
		"eino_debug_enabled", "eino_debug_port",
	}
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
