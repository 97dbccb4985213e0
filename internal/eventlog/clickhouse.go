package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

const createEventsTable = `
CREATE TABLE IF NOT EXISTS cache_events (
    id          UUID,
    store       LowCardinality(String),
    op          LowCardinality(String),
    result      LowCardinality(String),
    latency_us  Int64,
    created_at  DateTime64(6, 'UTC')
)
ENGINE = MergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (store, created_at)
TTL toDateTime(created_at) + INTERVAL 30 DAY
`

// ClickHouseSink persists event batches into the cache_events table for
// offline hit-rate analysis.
type ClickHouseSink struct {
	db *sql.DB
}

// NewClickHouseSink opens the connection, verifies it and ensures the
// cache_events table exists.
func NewClickHouseSink(ctx context.Context, dsn string) (*ClickHouseSink, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open clickhouse: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("eventlog: ping clickhouse: %w", err)
	}

	if _, err := db.ExecContext(ctx, createEventsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("eventlog: create cache_events: %w", err)
	}

	return &ClickHouseSink{db: db}, nil
}

// WriteBatch inserts the batch in one transaction using the driver's
// batching protocol.
func (s *ClickHouseSink) WriteBatch(ctx context.Context, events []Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("eventlog: begin batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO cache_events (id, store, op, result, latency_us, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("eventlog: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.ID, e.Store, e.Op, e.Result, e.LatencyUS, e.CreatedAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("eventlog: insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("eventlog: commit batch: %w", err)
	}
	return nil
}

func (s *ClickHouseSink) Close() error { return s.db.Close() }
