// Package pgstore keeps build results in a PostgreSQL table as JSONB documents.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "build_results"

const driverName = "postgres"

// Store is a history.Store backed by PostgreSQL.
type Store struct {
	db    *sql.DB
	table string
}

// Open connects with dsn and verifies the connection.
func Open(ctx context.Context, dsn, table string) (*Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()

		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return New(db, table), nil
}

// New wraps an open database. An empty table uses DefaultTable.
func New(db *sql.DB, table string) *Store {
	if table == "" {
		table = DefaultTable
	}

	return &Store{db: db, table: pq.QuoteIdentifier(table)}
}

// EnsureSchema creates the results table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			build_id    BIGINT PRIMARY KEY,
			status      TEXT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			payload     JSONB NOT NULL
		)`, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	return nil
}

// Save implements history.Store. Saving an existing id replaces the record.
func (s *Store) Save(ctx context.Context, result *build.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode build %d: %w", result.BuildID, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (build_id, status, recorded_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (build_id) DO UPDATE
		SET status = EXCLUDED.status, recorded_at = EXCLUDED.recorded_at, payload = EXCLUDED.payload`, s.table)

	recordedAt := result.Timestamp
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	if _, err := s.db.ExecContext(ctx, query, result.BuildID, result.Status.String(), recordedAt, payload); err != nil {
		return fmt.Errorf("insert build %d: %w", result.BuildID, err)
	}

	return nil
}

// Load implements history.Loader.
func (s *Store) Load(ctx context.Context, id build.ID) (*build.Result, error) {
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE build_id = $1`, s.table)

	var payload []byte

	err := s.db.QueryRowContext(ctx, query, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", history.ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("select build %d: %w", id, err)
	}

	var r build.Result

	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("%w: build %d: %w", history.ErrCorrupt, id, err)
	}

	if err := history.Verify(id, &r); err != nil {
		return nil, err
	}

	return &r, nil
}

// IDs implements history.Store.
func (s *Store) IDs(ctx context.Context) ([]build.ID, error) {
	query := fmt.Sprintf(`SELECT build_id FROM %s ORDER BY build_id`, s.table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	defer rows.Close()

	var ids []build.ID

	for rows.Next() {
		var id build.ID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan build id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}

	return ids, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
