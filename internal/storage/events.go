// Package storage provides the Postgres-backed event journal
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// EventRecord is one journaled bridge event
type EventRecord struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Format      string    `json:"format"`
	PlacementID string    `json:"placement_id"`
	AttemptID   string    `json:"attempt_id,omitempty"`
	Outcome     string    `json:"outcome"`
	Callback    string    `json:"callback,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	ErrorCode   string    `json:"error_code,omitempty"`
	NetworkCode int       `json:"network_code,omitempty"`
	Message     string    `json:"message,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

var eventColumns = []string{
	"id", "kind", "format", "placement_id", "attempt_id", "outcome",
	"callback", "reason", "error_code", "network_code", "message", "occurred_at",
}

const createEventsTable = `
	CREATE TABLE IF NOT EXISTS ad_events (
		id           UUID PRIMARY KEY,
		kind         VARCHAR(64) NOT NULL,
		format       VARCHAR(32) NOT NULL,
		placement_id VARCHAR(255) NOT NULL,
		attempt_id   VARCHAR(64) NOT NULL DEFAULT '',
		outcome      VARCHAR(16) NOT NULL,
		callback     VARCHAR(32) NOT NULL DEFAULT '',
		reason       VARCHAR(64) NOT NULL DEFAULT '',
		error_code   VARCHAR(32) NOT NULL DEFAULT '',
		network_code INTEGER NOT NULL DEFAULT 0,
		message      TEXT NOT NULL DEFAULT '',
		occurred_at  TIMESTAMPTZ NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_ad_events_placement ON ad_events (placement_id, occurred_at DESC);
`

// EventStore provides database operations for journaled events
type EventStore struct {
	db *sql.DB
}

// NewEventStore creates a new event store
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// CreateTables creates the journal table if it does not exist
func (s *EventStore) CreateTables(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createEventsTable); err != nil {
		return fmt.Errorf("failed to create ad_events: %w", err)
	}
	return nil
}

// InsertBatch writes events in one COPY inside a transaction
func (s *EventStore) InsertBatch(ctx context.Context, events []EventRecord) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("ad_events", eventColumns...))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for _, e := range events {
		_, err := stmt.ExecContext(ctx,
			e.ID,
			e.Kind,
			e.Format,
			e.PlacementID,
			e.AttemptID,
			e.Outcome,
			e.Callback,
			e.Reason,
			e.ErrorCode,
			e.NetworkCode,
			e.Message,
			e.OccurredAt,
		)
		if err != nil {
			_ = stmt.Close()
			return fmt.Errorf("failed to copy event %s: %w", e.ID, err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	return nil
}

// ListByPlacement returns the most recent events for a placement, newest first
func (s *EventStore) ListByPlacement(ctx context.Context, placementID string, limit int) ([]*EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, kind, format, placement_id, attempt_id, outcome,
		       callback, reason, error_code, network_code, message, occurred_at
		FROM ad_events
		WHERE placement_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, placementID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]*EventRecord, 0, limit)
	for rows.Next() {
		var e EventRecord
		err := rows.Scan(
			&e.ID,
			&e.Kind,
			&e.Format,
			&e.PlacementID,
			&e.AttemptID,
			&e.Outcome,
			&e.Callback,
			&e.Reason,
			&e.ErrorCode,
			&e.NetworkCode,
			&e.Message,
			&e.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// CountByOutcome returns event counts per outcome for a placement
func (s *EventStore) CountByOutcome(ctx context.Context, placementID string) (map[string]int, error) {
	query := `
		SELECT outcome, COUNT(*)
		FROM ad_events
		WHERE placement_id = $1
		GROUP BY outcome
	`

	rows, err := s.db.QueryContext(ctx, query, placementID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN renders the lib/pq key/value connection string
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// NewDBConnection opens and pings a Postgres pool sized for the journal writers
func NewDBConnection(cfg DBConfig) (*sql.DB, error) {
	connector, err := pq.NewConnector(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	db := sql.OpenDB(connector)

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
