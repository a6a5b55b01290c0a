package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dyike/tradecycle/config"
)

func testConfigManager(t *testing.T) (*ConfigManager, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.ProjectDir = dir
	cfg.ResultsDir = filepath.Join(dir, "results")
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.DataCacheDir = filepath.Join(dir, "cache")
	cfg.DBPath = filepath.Join(dir, "tradecycle.db")

	return NewConfigManager(cfg), cfg
}

func TestSetConfigValueRanges(t *testing.T) {
	cm, cfg := testConfigManager(t)

	cases := []struct {
		key     string
		value   string
		wantErr bool
	}{
		{"max_debate_rounds", "5", false},
		{"max_debate_rounds", "0", true},
		{"max_debate_rounds", "eleven", true},
		{"max_risk_rounds", "11", true},
		{"max_turn_retries", "0", false},
		{"turn_timeout_seconds", "4", true},
		{"turn_timeout_seconds", "60", false},
		{"stage_timeout_seconds", "7200", true},
		{"slow_cycle_days", "91", true},
		{"digest_max_chars", "100", true},
		{"dedup_similarity", "1.5", true},
		{"min_confidence", "0.4", false},
		{"initial_cash", "-5", true},
		{"max_position_fraction", "0", true},
		{"max_position_fraction", "0.25", false},
		{"symbol_pool", "aapl, msft", false},
		{"symbol_pool", "GOOD,BAD_SYM", true},
		{"top_symbols", "51", true},
		{"llm_provider", "deepseek", false},
		{"llm_provider", "claude", true},
		{"online_tools", "false", false},
		{"eino_debug_port", "80", true},
		{"bogus_key", "x", true},
	}

	for _, tc := range cases {
		err := cm.SetConfigValue(tc.key, tc.value)
		if tc.wantErr && err == nil {
			t.Errorf("SetConfigValue(%q, %q): expected error", tc.key, tc.value)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("SetConfigValue(%q, %q): unexpected error %v", tc.key, tc.value, err)
		}
	}

	if cfg.MaxDebateRounds != 5 {
		t.Errorf("expected max debate rounds 5, got %d", cfg.MaxDebateRounds)
	}
	if cfg.TurnTimeout != 60*time.Second {
		t.Errorf("expected turn timeout 60s, got %s", cfg.TurnTimeout)
	}
	if !reflect.DeepEqual(cfg.SymbolPool, []string{"AAPL", "MSFT"}) {
		t.Errorf("expected symbol pool [AAPL MSFT], got %v", cfg.SymbolPool)
	}
	if cfg.MaxPositionFraction != 0.25 {
		t.Errorf("expected position fraction 0.25, got %f", cfg.MaxPositionFraction)
	}
}

func TestGetConfigValue(t *testing.T) {
	cm, _ := testConfigManager(t)

	if err := cm.SetConfigValue("max_debate_rounds", "4"); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, err := cm.GetConfigValue("max_debate_rounds")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != 4 {
		t.Errorf("expected 4, got %v", val)
	}

	if err := cm.SetConfigValue("symbol_pool", "AAPL,TSLA"); err != nil {
		t.Fatalf("set pool: %v", err)
	}
	val, err = cm.GetConfigValue("symbol_pool")
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if val != "AAPL,TSLA" {
		t.Errorf("expected AAPL,TSLA, got %v", val)
	}

	if _, err := cm.GetConfigValue("bogus_key"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestListAvailableKeysReadable(t *testing.T) {
	cm, _ := testConfigManager(t)

	for _, key := range cm.ListAvailableKeys() {
		if _, err := cm.GetConfigValue(key); err != nil {
			t.Errorf("listed key %q is not readable: %v", key, err)
		}
	}
}

func TestSaveAndLoadConfigRoundTrip(t *testing.T) {
	cm, cfg := testConfigManager(t)

	sets := map[string]string{
		"max_debate_rounds":    "7",
		"turn_timeout_seconds": "90",
		"symbol_pool":          "aapl tsla",
		"llm_provider":         "openai",
	}
	for key, value := range sets {
		if err := cm.SetConfigValue(key, value); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	if err := cm.SaveConfig(); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.ProjectDir, "tradecycle.json")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	fresh := config.DefaultConfig()
	fresh.ProjectDir = cfg.ProjectDir
	cm2 := NewConfigManager(fresh)
	if err := cm2.LoadConfig(); err != nil {
		t.Fatalf("load: %v", err)
	}

	if fresh.MaxDebateRounds != 7 {
		t.Errorf("expected debate rounds 7, got %d", fresh.MaxDebateRounds)
	}
	if fresh.TurnTimeout != 90*time.Second {
		t.Errorf("expected turn timeout 90s, got %s", fresh.TurnTimeout)
	}
	if !reflect.DeepEqual(fresh.SymbolPool, []string{"AAPL", "TSLA"}) {
		t.Errorf("expected symbol pool [AAPL TSLA], got %v", fresh.SymbolPool)
	}
	if fresh.LLMProvider != "openai" {
		t.Errorf("expected provider openai, got %s", fresh.LLMProvider)
	}
}

func TestLoadConfigMissingFileIsSilent(t *testing.T) {
	cm, cfg := testConfigManager(t)

	before := cfg.MaxDebateRounds
	if err := cm.LoadConfig(); err != nil {
		t.Fatalf("expected nil for missing config file, got %v", err)
	}
	if cfg.MaxDebateRounds != before {
		t.Errorf("missing config file changed values: %d -> %d", before, cfg.MaxDebateRounds)
	}
}

func TestExportAndImportConfig(t *testing.T) {
	cm, cfg := testConfigManager(t)

	if err := cm.SetConfigValue("max_risk_rounds", "3"); err != nil {
		t.Fatalf("set: %v", err)
	}

	exportPath := filepath.Join(cfg.ProjectDir, "export.json")
	if err := cm.ExportConfig(exportPath); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var exported map[string]interface{}
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if _, ok := exported["metadata"]; !ok {
		t.Error("export is missing metadata")
	}
	if got := exported["max_risk_rounds"]; got != float64(3) {
		t.Errorf("expected exported max_risk_rounds 3, got %v", got)
	}

	fresh := config.DefaultConfig()
	fresh.ProjectDir = t.TempDir()
	cm2 := NewConfigManager(fresh)
	if err := cm2.ImportConfig(exportPath); err != nil {
		t.Fatalf("import: %v", err)
	}
	if fresh.MaxRiskDiscussRounds != 3 {
		t.Errorf("expected imported risk rounds 3, got %d", fresh.MaxRiskDiscussRounds)
	}
}

func TestValidateConfigurationWarns(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("FINNHUB_API_KEY", "")

	cm, cfg := testConfigManager(t)
	cfg.LLMProvider = "deepseek"
	cfg.DeepSeekAPIKey = ""
	cfg.FinnhubAPIKey = ""
	cfg.OnlineTools = true
	cfg.LongportAppKey = "key-only"
	cfg.LongportAppSecret = ""
	cfg.LongportAccessToken = ""

	warnings := cm.ValidateConfiguration()

	hasWarning := func(substr string) bool {
		for _, w := range warnings {
			if strings.Contains(w, substr) {
				return true
			}
		}
		return false
	}

	if !hasWarning("DEEPSEEK_API_KEY") {
		t.Errorf("expected a provider key warning, got %v", warnings)
	}
	if !hasWarning("Finnhub") {
		t.Errorf("expected a Finnhub warning, got %v", warnings)
	}
	if !hasWarning("Longport") {
		t.Errorf("expected a Longport warning, got %v", warnings)
	}
}

func TestValidateConfigurationClean(t *testing.T) {
	cm, cfg := testConfigManager(t)
	cfg.LLMProvider = "deepseek"
	cfg.DeepSeekAPIKey = "sk-test"
	cfg.FinnhubAPIKey = "fh-test"
	cfg.OnlineTools = true
	cfg.LongportAppKey = ""
	cfg.LongportAppSecret = ""
	cfg.LongportAccessToken = ""

	if warnings := cm.ValidateConfiguration(); len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
}
