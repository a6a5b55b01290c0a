package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dyike/tradecycle/internal/dataflows"
	"github.com/dyike/tradecycle/internal/models"
)

func TestClassifyTrendingAndFlat(t *testing.T) {
	bull := series("SPY", ramp(100, 0.3, 210)...)
	if regime, _ := Classify(bull); regime != models.RegimeBull {
		t.Errorf("steady uptrend = %s, want bull", regime)
	}

	bear := series("SPY", ramp(200, -0.3, 210)...)
	if regime, _ := Classify(bear); regime != models.RegimeBear {
		t.Errorf("steady downtrend = %s, want bear", regime)
	}

	chop := make([]float64, 210)
	for i := range chop {
		chop[i] = 100
		if i%2 == 1 {
			chop[i] = 101
		}
	}
	if regime, _ := Classify(series("SPY", chop...)); regime != models.RegimeSideways {
		t.Errorf("1%% chop = %s, want sideways", regime)
	}
}

func TestClassifyVolatileAndUnknown(t *testing.T) {
	swings := make([]float64, 210)
	for i := range swings {
		swings[i] = 100
		if i%2 == 1 {
			swings[i] = 106
		}
	}
	regime, vol := Classify(series("SPY", swings...))
	if regime != models.RegimeVolatile {
		t.Errorf("6%% swings = %s (vol %.2f), want volatile", regime, vol)
	}
	if vol <= volExtreme {
		t.Errorf("annualized vol = %.2f, want above %.2f", vol, volExtreme)
	}

	if regime, _ := Classify(series("SPY", flat(100, 30)...)); regime != models.RegimeUnknown {
		t.Errorf("30 bars = %s, want unknown", regime)
	}
}

func TestClassifierConstraints(t *testing.T) {
	feed := dataflows.NewStaticFeed()
	feed.Add(series("AAPL", ramp(100, 0.3, 210)...)...)

	swings := make([]float64, 210)
	for i := range swings {
		swings[i] = 100
		if i%2 == 1 {
			swings[i] = 106
		}
	}
	feed.Add(series("SWNG", swings...)...)

	asOf := time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC)
	c := NewClassifier(feed)

	rc, err := c.Constraints(context.Background(), "AAPL", asOf)
	if err != nil {
		t.Fatalf("Constraints: %v", err)
	}
	if rc.Regime != models.RegimeBull || rc.MaxPositions != 5 {
		t.Errorf("bull constraints = %s/%d positions, want bull/5", rc.Regime, rc.MaxPositions)
	}

	rc, err = c.Constraints(context.Background(), "SWNG", asOf)
	if err != nil {
		t.Fatalf("Constraints: %v", err)
	}
	if rc.Regime != models.RegimeVolatile || rc.MaxPositions != 2 {
		t.Errorf("volatile constraints = %s/%d positions, want volatile/2", rc.Regime, rc.MaxPositions)
	}
}

func TestClassifierMissingData(t *testing.T) {
	c := NewClassifier(dataflows.NewStaticFeed())
	asOf := time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC)

	rc, err := c.Constraints(context.Background(), "GHOST", asOf)
	var missing *models.MissingDataError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want MissingDataError", err)
	}
	if rc.Regime != models.RegimeUnknown {
		t.Errorf("regime on missing data = %s, want unknown", rc.Regime)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Constraints(cancelled, "GHOST", asOf); !errors.Is(err, context.Canceled) {
		t.Errorf("err after cancel = %v, want context.Canceled", err)
	}
}
