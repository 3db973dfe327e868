package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS extraction_records (
		id             UUID PRIMARY KEY,
		request_id     TEXT NOT NULL,
		identity       TEXT NOT NULL,
		title          TEXT NOT NULL,
		image_url      TEXT NOT NULL,
		images         TEXT[] NOT NULL DEFAULT '{}',
		price_current  TEXT NOT NULL,
		price_original TEXT,
		currency       TEXT NOT NULL,
		category       TEXT NOT NULL,
		region_code    TEXT NOT NULL,
		region_location TEXT NOT NULL,
		region_confirmed BOOLEAN NOT NULL,
		source_url     TEXT NOT NULL,
		page_type      TEXT NOT NULL,
		extracted_at   TIMESTAMPTZ NOT NULL
	)`,
	`ALTER TABLE extraction_records ADD COLUMN IF NOT EXISTS images TEXT[] NOT NULL DEFAULT '{}'`,
	`CREATE INDEX IF NOT EXISTS idx_extraction_records_identity ON extraction_records (identity, region_code)`,
	`CREATE TABLE IF NOT EXISTS outbox_event (
		id             UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		payload        JSONB NOT NULL,
		target_stream  TEXT NOT NULL,
		status         TEXT NOT NULL,
		retry_count    INT NOT NULL DEFAULT 0,
		error_message  TEXT,
		created_at     TIMESTAMPTZ NOT NULL,
		processed_at   TIMESTAMPTZ,
		next_retry_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_event_pending ON outbox_event (status, next_retry_at)`,
}

// EnsureSchema creates the record and outbox tables when missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
