package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadSymbolsFromFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "symbols.txt")
	content := "# watchlist\naapl\n\n  MSFT \nnvda\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write symbols file: %v", err)
	}

	symbols, err := LoadSymbolsFromFile(path)
	if err != nil {
		t.Fatalf("LoadSymbolsFromFile: %v", err)
	}
	if want := []string{"AAPL", "MSFT", "NVDA"}; !reflect.DeepEqual(symbols, want) {
		t.Errorf("expected %v, got %v", want, symbols)
	}

	emptyPath := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(emptyPath, []byte("# only comments\n\n"), 0o644); err != nil {
		t.Fatalf("write empty file: %v", err)
	}
	if _, err := LoadSymbolsFromFile(emptyPath); err == nil {
		t.Error("expected error for a file without symbols")
	}

	if _, err := LoadSymbolsFromFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestValidateSymbols(t *testing.T) {
	valid, invalid := ValidateSymbols([]string{"aapl", "BRK.B", "TOOLONGSYMBOL", "BAD_SYM"})

	if want := []string{"AAPL", "BRK.B"}; !reflect.DeepEqual(valid, want) {
		t.Errorf("expected valid %v, got %v", want, valid)
	}
	if want := []string{"TOOLONGSYMBOL", "BAD_SYM"}; !reflect.DeepEqual(invalid, want) {
		t.Errorf("expected invalid %v, got %v", want, invalid)
	}
}

func TestEstimateBacktestDuration(t *testing.T) {
	if got := EstimateBacktestDuration(10, 2); got != 15*time.Minute {
		t.Errorf("expected 15m for 10 days and 2 symbols, got %s", got)
	}
	if got := EstimateBacktestDuration(2, 6); got != 6*time.Minute {
		t.Errorf("expected 6m for 2 days and a wide universe, got %s", got)
	}
}

func TestDayStatusString(t *testing.T) {
	cases := map[DayStatus]string{
		DayPending:    "⏳ Pending",
		DayRunning:    "🔄 Running",
		DayCompleted:  "✅ Completed",
		DayQuiet:      "🌙 Quiet",
		DayFailed:     "❌ Failed",
		DayStatus(99): "❓ Unknown",
	}

	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("DayStatus(%d).String() = %q, want %q", status, got, want)
		}
	}
}
