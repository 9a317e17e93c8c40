// Package journal keeps an append-only record of uploads, downloads and deletes
// in DuckDB. It is an audit trail only; the upload directory stays the source
// of truth for what files exist.
package journal

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/lanbox/backend/internal/models"
	"github.com/marcboeker/go-duckdb"
)

// DefaultRecent is how many events Stats returns when no limit is given.
const DefaultRecent = 20

// Journal is a DuckDB-backed event log.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the journal at path. An empty path keeps it in memory.
func Open(path string) (*Journal, error) {
	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	schema := []string{
		"CREATE SEQUENCE IF NOT EXISTS event_seq",
		`CREATE TABLE IF NOT EXISTS events (
			id       BIGINT DEFAULT nextval('event_seq'),
			kind     VARCHAR NOT NULL,
			filename VARCHAR NOT NULL,
			size     BIGINT NOT NULL,
			remote   VARCHAR,
			at_ms    BIGINT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create events table: %w", err)
		}
	}

	return &Journal{db: db, now: time.Now}, nil
}

// Record appends one event. A zero At is stamped with the current time.
func (j *Journal) Record(ctx context.Context, ev models.Event) error {
	if ev.At.IsZero() {
		ev.At = j.now()
	}
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO events (kind, filename, size, remote, at_ms) VALUES (?, ?, ?, ?, ?)",
		string(ev.Kind), ev.Filename, ev.Size, ev.Remote, ev.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("recording %s event: %w", ev.Kind, err)
	}
	return nil
}

// Stats returns totals per event kind plus the most recent events, newest first.
func (j *Journal) Stats(ctx context.Context, recent int) (*models.Stats, error) {
	if recent <= 0 {
		recent = DefaultRecent
	}

	stats := &models.Stats{}
	// sum() yields HUGEINT in DuckDB; cast so it scans into int64.
	err := j.db.QueryRowContext(ctx, `
		SELECT
			count(*) FILTER (WHERE kind = 'upload'),
			count(*) FILTER (WHERE kind = 'download'),
			count(*) FILTER (WHERE kind = 'delete'),
			CAST(coalesce(sum(size) FILTER (WHERE kind = 'upload'), 0) AS BIGINT),
			CAST(coalesce(sum(size) FILTER (WHERE kind = 'download'), 0) AS BIGINT)
		FROM events
	`).Scan(&stats.Uploads, &stats.Downloads, &stats.Deletes, &stats.BytesUploaded, &stats.BytesDownloaded)
	if err != nil {
		return nil, fmt.Errorf("querying totals: %w", err)
	}

	stats.Recent, err = j.Recent(ctx, recent)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]models.Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT kind, filename, size, coalesce(remote, ''), at_ms
		FROM events
		ORDER BY at_ms DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent events: %w", err)
	}
	defer rows.Close()

	events := make([]models.Event, 0, limit)
	for rows.Next() {
		var (
			ev   models.Event
			kind string
			atMs int64
		)
		if err := rows.Scan(&kind, &ev.Filename, &ev.Size, &ev.Remote, &atMs); err != nil {
			return nil, err
		}
		ev.Kind = models.EventKind(kind)
		ev.At = time.UnixMilli(atMs)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
