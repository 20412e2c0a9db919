package database

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS scrape_jobs (
	id             UUID PRIMARY KEY,
	url            TEXT NOT NULL,
	strategy       TEXT NOT NULL,
	max_pages      INTEGER NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	pages_scraped  INTEGER NOT NULL DEFAULT 0,
	products_found INTEGER NOT NULL DEFAULT 0,
	duplicates     INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	started_at     TIMESTAMPTZ,
	completed_at   TIMESTAMPTZ,
	error          TEXT
);

CREATE INDEX IF NOT EXISTS idx_scrape_jobs_status ON scrape_jobs (status);
CREATE INDEX IF NOT EXISTS idx_scrape_jobs_created_at ON scrape_jobs (created_at DESC);

CREATE TABLE IF NOT EXISTS products (
	tcin          TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	url           TEXT NOT NULL DEFAULT '',
	image         TEXT NOT NULL DEFAULT '',
	price         TEXT NOT NULL DEFAULT '',
	price_value   NUMERIC(10,2),
	rating        NUMERIC(3,2),
	review_count  INTEGER,
	source        TEXT NOT NULL DEFAULT '',
	first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_seen_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS job_products (
	job_id       UUID NOT NULL REFERENCES scrape_jobs (id) ON DELETE CASCADE,
	tcin         TEXT NOT NULL REFERENCES products (tcin),
	page_number  INTEGER NOT NULL,
	position     INTEGER NOT NULL,
	is_sponsored BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (job_id, tcin)
);

CREATE TABLE IF NOT EXISTS outbox_event (
	id             UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        JSONB NOT NULL,
	target_stream  TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	error_message  TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	processed_at   TIMESTAMPTZ,
	next_retry_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_outbox_event_pending ON outbox_event (status, next_retry_at);
`

// Migrate creates the tables when they do not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
