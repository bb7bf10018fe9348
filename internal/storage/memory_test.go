package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"btc-predictor/internal/model"
)

func seedForecast(id string, createdAt time.Time) model.Forecast {
	return model.Forecast{
		ID:          id,
		Timeframe:   "5m",
		CreatedAt:   createdAt,
		Deadline:    createdAt.Add(5 * time.Minute),
		EntryPrice:  decimal.NewFromInt(68000),
		Direction:   model.DirectionUp,
		TargetPrice: decimal.NewFromInt(69000),
		Confidence:  0.9,
		State:       model.StateCreated,
	}
}

func TestMemoryForecastImmutability(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	f := seedForecast("f1", time.Now().UTC())
	if err := m.InsertForecast(ctx, f); err != nil {
		t.Fatalf("first insert should succeed: %v", err)
	}
	if err := m.InsertForecast(ctx, f); !errors.Is(err, model.ErrImmutableViolation) {
		t.Fatalf("duplicate insert must be ErrImmutableViolation, got %v", err)
	}

	if err := m.UpdateForecastState(ctx, "f1", model.StateReviewed, ""); err != nil {
		t.Fatalf("state update should succeed: %v", err)
	}
	got, err := m.GetForecast(ctx, "f1")
	if err != nil {
		t.Fatalf("get forecast: %v", err)
	}
	if got.State != model.StateReviewed {
		t.Fatalf("state = %s, want REVIEWED", got.State)
	}

	if err := m.UpdateForecastState(ctx, "missing", model.StateFailed, "x"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("updating a missing forecast must be ErrNotFound, got %v", err)
	}
}

func TestMemoryLatestForecast(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now().UTC()

	_ = m.InsertForecast(ctx, seedForecast("old", now.Add(-time.Hour)))
	_ = m.InsertForecast(ctx, seedForecast("new", now))

	latest, err := m.LatestForecast(ctx, "5m")
	if err != nil {
		t.Fatalf("latest forecast: %v", err)
	}
	if latest.ID != "new" {
		t.Fatalf("latest = %s, want new", latest.ID)
	}

	if _, err := m.LatestForecast(ctx, "1h"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("empty timeframe must be ErrNotFound, got %v", err)
	}
}

func TestMemoryLearningDeduplication(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	l := model.Learning{ID: "l1", Timeframe: "5m", SourceForecastID: "f1", Kind: model.LearningCaution, CreatedAt: time.Now()}
	inserted, err := m.InsertLearning(ctx, l)
	if err != nil || !inserted {
		t.Fatalf("first learning insert should report inserted, got %v %v", inserted, err)
	}

	l.ID = "l2"
	inserted, err = m.InsertLearning(ctx, l)
	if err != nil {
		t.Fatalf("duplicate learning insert should not error: %v", err)
	}
	if inserted {
		t.Fatal("second learning for the same forecast must be a no-op")
	}
}

func TestMemoryMetaRuleDeduplication(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rule := model.MetaRule{ID: "r1", Timeframe: "5m", SupportIDs: []string{"l1", "l2"}, Pattern: "x", CreatedAt: time.Now()}
	inserted, err := m.InsertMetaRule(ctx, rule)
	if err != nil || !inserted {
		t.Fatalf("first rule insert should report inserted, got %v %v", inserted, err)
	}

	// Same support set in a different order is the same rule.
	dup := model.MetaRule{ID: "r2", Timeframe: "5m", SupportIDs: []string{"l2", "l1"}, Pattern: "y", CreatedAt: time.Now()}
	inserted, err = m.InsertMetaRule(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate rule insert should not error: %v", err)
	}
	if inserted {
		t.Fatal("a rule with the same support set must be a no-op")
	}
}

func TestMemoryTrackRecord(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now().UTC()

	_ = m.InsertForecast(ctx, seedForecast("f1", now.Add(-10*time.Minute)))
	_ = m.InsertForecast(ctx, seedForecast("f2", now))
	_ = m.InsertOutcome(ctx, model.Outcome{ForecastID: "f1", ResolvedAt: now, RealizedPrice: decimal.NewFromInt(69000), CorrectDirection: true})
	_ = m.InsertScore(ctx, model.CalibrationScore{ForecastID: "f1", DirectionCorrect: true, PriceError: decimal.NewFromFloat(0.01), CalibrationError: 0.1})

	track, err := m.TrackRecord(ctx)
	if err != nil {
		t.Fatalf("track record: %v", err)
	}
	if track.Total != 2 || track.Resolved != 1 || track.Correct != 1 {
		t.Fatalf("unexpected track record: %+v", track)
	}
	if track.AccuracyPct != 100 {
		t.Fatalf("accuracy = %v, want 100", track.AccuracyPct)
	}
}
