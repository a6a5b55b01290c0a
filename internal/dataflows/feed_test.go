package dataflows

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/tradecycle/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func candle(symbol, date string, open, close float64) *models.Candle {
	return &models.Candle{
		Symbol: symbol,
		Date:   day(date),
		Open:   decimal.NewFromFloat(open),
		High:   decimal.NewFromFloat(close + 1),
		Low:    decimal.NewFromFloat(open - 1),
		Close:  decimal.NewFromFloat(close),
		Volume: 1000000,
	}
}

func TestStaticFeedHistoryRange(t *testing.T) {
	feed := NewStaticFeed()
	feed.Add(
		candle("AAPL", "2024-01-10", 100, 101),
		candle("AAPL", "2024-01-11", 101, 102),
		candle("AAPL", "2024-01-12", 102, 103),
	)

	got, err := feed.History("aapl", day("2024-01-11"), day("2024-01-12"))
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(got))
	}
	if !got[0].Date.Equal(day("2024-01-11")) {
		t.Errorf("candles out of order: first is %s", got[0].Date)
	}
}

func TestCandleOnExactDate(t *testing.T) {
	feed := NewStaticFeed()
	feed.Add(candle("AAPL", "2024-01-11", 101, 102))

	c, err := CandleOn(feed, "AAPL", day("2024-01-11"))
	if err != nil {
		t.Fatalf("CandleOn failed: %v", err)
	}
	if !c.Open.Equal(decimal.NewFromInt(101)) {
		t.Errorf("wrong candle: open=%s", c.Open)
	}
}

func TestCandleOnMissingDate(t *testing.T) {
	feed := NewStaticFeed()
	feed.Add(candle("AAPL", "2024-01-11", 101, 102))

	// 2024-01-13 is a Saturday
	_, err := CandleOn(feed, "AAPL", day("2024-01-13"))
	if err == nil {
		t.Fatal("expected error for missing date")
	}
	var missing *models.MissingDataError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingDataError, got %T: %v", err, err)
	}
}

func TestNextOpenSkipsWeekend(t *testing.T) {
	feed := NewStaticFeed()
	feed.Add(
		candle("AAPL", "2024-01-12", 102, 103), // Friday
		candle("AAPL", "2024-01-16", 104, 105), // Tuesday after MLK day
	)

	c, err := NextOpen(feed, "AAPL", day("2024-01-12"))
	if err != nil {
		t.Fatalf("NextOpen failed: %v", err)
	}
	if !c.Date.Equal(day("2024-01-16")) {
		t.Errorf("expected next session 2024-01-16, got %s", c.Date.Format("2006-01-02"))
	}
}

func TestNextOpenNoFutureData(t *testing.T) {
	feed := NewStaticFeed()
	feed.Add(candle("AAPL", "2024-01-12", 102, 103))

	_, err := NextOpen(feed, "AAPL", day("2024-01-12"))
	var missing *models.MissingDataError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingDataError, got %T: %v", err, err)
	}
}

func TestFileFeedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{DataDir: dir}

	candles := []*models.Candle{
		candle("MSFT", "2024-02-01", 400, 405),
		candle("MSFT", "2024-02-02", 405, 410),
	}
	path := dir + "/market_data/price_data/MSFT.json"
	if err := SaveDataToFile(candles, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	feed := NewFileFeed(cfg)
	got, err := feed.History("MSFT", day("2024-02-01"), day("2024-02-02"))
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(got))
	}
	if !got[1].Close.Equal(decimal.NewFromInt(410)) {
		t.Errorf("wrong close: %s", got[1].Close)
	}
}

func TestFileFeedMissingSymbol(t *testing.T) {
	feed := NewFileFeed(&Config{DataDir: t.TempDir()})
	if _, err := feed.History("NOPE", day("2024-02-01"), day("2024-02-02")); err == nil {
		t.Fatal("expected error for missing symbol file")
	}
}
