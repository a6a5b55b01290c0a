package dataflows

import (
	"errors"
	"testing"
	"time"
)

func TestValidateSymbol(t *testing.T) {
	if err := ValidateSymbol("AAPL"); err != nil {
		t.Errorf("AAPL should be valid: %v", err)
	}
	if err := ValidateSymbol("  tsla "); err != nil {
		t.Errorf("padded symbol should be valid: %v", err)
	}
	if err := ValidateSymbol(""); err == nil {
		t.Error("empty symbol should be invalid")
	}
	if err := ValidateSymbol("WAYTOOLONGSYM"); err == nil {
		t.Error("oversized symbol should be invalid")
	}
}

func TestNormalizeSymbol(t *testing.T) {
	if got := NormalizeSymbol("  aapl "); got != "AAPL" {
		t.Errorf("expected AAPL, got %q", got)
	}
}

func TestNormalizeDate(t *testing.T) {
	in := time.Date(2024, 3, 15, 14, 30, 45, 99, time.FixedZone("X", 3600))
	got := NormalizeDate(in)
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestParseDateString(t *testing.T) {
	got, err := ParseDateString("2024-03-15")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got.Year() != 2024 || got.Month() != 3 || got.Day() != 15 {
		t.Errorf("wrong date: %s", got)
	}

	if _, err := ParseDateString("not a date"); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	cfg := &RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}

	attempts := 0
	err := WithRetry(cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryExhausted(t *testing.T) {
	cfg := &RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
		Multiplier: 2.0,
	}

	sentinel := errors.New("hard failure")
	attempts := 0
	err := WithRetry(cfg, func() error {
		attempts++
		return sentinel
	})

	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("last error should be wrapped, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", attempts)
	}
}

func TestCacheManagerRoundTrip(t *testing.T) {
	cm := NewCacheManager(t.TempDir(), time.Hour, true)

	type payload struct {
		Value int `json:"value"`
	}

	if err := cm.Set("src", "method", "key1", payload{Value: 42}); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got payload
	if !cm.Get("src", "method", "key1", &got) {
		t.Fatal("expected cache hit")
	}
	if got.Value != 42 {
		t.Errorf("expected 42, got %d", got.Value)
	}

	if cm.Get("src", "method", "other", &got) {
		t.Error("expected miss for different params")
	}
}

func TestCacheManagerDisabled(t *testing.T) {
	cm := NewCacheManager(t.TempDir(), time.Hour, false)

	if err := cm.Set("src", "m", "k", 1); err != nil {
		t.Fatalf("set on disabled cache should be a no-op, got %v", err)
	}
	var got int
	if cm.Get("src", "m", "k", &got) {
		t.Error("disabled cache should never hit")
	}
}
