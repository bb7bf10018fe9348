package storage

import (
	"context"
	"fmt"
)

// Schema statements are idempotent so startup can always run them. Entities
// are append-only; the forecast state/failure columns are the only mutable
// fields in the model.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS forecasts (
        id               TEXT PRIMARY KEY,
        timeframe        TEXT NOT NULL,
        created_at       TIMESTAMPTZ NOT NULL,
        deadline         TIMESTAMPTZ NOT NULL,
        entry_price      NUMERIC NOT NULL,
        direction        TEXT NOT NULL,
        target_price     NUMERIC NOT NULL,
        confidence       DOUBLE PRECISION NOT NULL,
        rationale        TEXT NOT NULL DEFAULT '',
        context_snapshot JSONB NOT NULL DEFAULT '{}',
        state            TEXT NOT NULL,
        failure          TEXT NOT NULL DEFAULT ''
    );`,
	`CREATE INDEX IF NOT EXISTS idx_forecasts_timeframe_created
        ON forecasts (timeframe, created_at);`,
	`CREATE TABLE IF NOT EXISTS reviews (
        forecast_id TEXT PRIMARY KEY REFERENCES forecasts(id),
        agreement   TEXT NOT NULL,
        confidence  DOUBLE PRECISION NOT NULL,
        concerns    JSONB NOT NULL DEFAULT '[]',
        veto        BOOLEAN NOT NULL,
        consensus   TEXT NOT NULL,
        created_at  TIMESTAMPTZ NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS outcomes (
        forecast_id       TEXT PRIMARY KEY REFERENCES forecasts(id),
        resolved_at       TIMESTAMPTZ NOT NULL,
        realized_price    NUMERIC NOT NULL,
        correct_direction BOOLEAN NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS scores (
        forecast_id       TEXT PRIMARY KEY REFERENCES forecasts(id),
        direction_correct BOOLEAN NOT NULL,
        price_error       NUMERIC NOT NULL,
        calibration_error DOUBLE PRECISION NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS learnings (
        id                 TEXT PRIMARY KEY,
        timeframe          TEXT NOT NULL,
        source_forecast_id TEXT NOT NULL UNIQUE REFERENCES forecasts(id),
        kind               TEXT NOT NULL,
        condition          TEXT NOT NULL,
        guidance           TEXT NOT NULL,
        created_at         TIMESTAMPTZ NOT NULL
    );`,
	`CREATE INDEX IF NOT EXISTS idx_learnings_timeframe_created
        ON learnings (timeframe, created_at);`,
	`CREATE TABLE IF NOT EXISTS meta_rules (
        id          TEXT PRIMARY KEY,
        timeframe   TEXT NOT NULL,
        support_key TEXT NOT NULL UNIQUE,
        support_ids JSONB NOT NULL,
        pattern     TEXT NOT NULL,
        created_at  TIMESTAMPTZ NOT NULL
    );`,
	`CREATE INDEX IF NOT EXISTS idx_meta_rules_timeframe_created
        ON meta_rules (timeframe, created_at);`,
}

// EnsureSchema creates the tables and indexes if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
