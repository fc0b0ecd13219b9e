package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/aonescu/kubespresso/internal/types"
)

// PostgresStore is the durable decision journal.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store, err := NewPostgresStoreFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreFromDB wraps an open handle and makes sure the schema exists.
func NewPostgresStoreFromDB(db *sql.DB) (*PostgresStore, error) {
	store := &PostgresStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	-- Decisions: append-only audit trail of handled events
	CREATE TABLE IF NOT EXISTS decisions (
		id UUID PRIMARY KEY,
		kind TEXT NOT NULL,
		namespace TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		uid TEXT NOT NULL DEFAULT '',
		event_type TEXT NOT NULL,
		resource_version TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		decided_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_decided ON decisions(decided_at DESC);
	CREATE INDEX IF NOT EXISTS idx_decisions_resource ON decisions(kind, namespace, name);
	CREATE INDEX IF NOT EXISTS idx_decisions_outcome ON decisions(outcome);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *PostgresStore) Record(ctx context.Context, d types.Decision) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (
			id, kind, namespace, name, uid, event_type,
			resource_version, outcome, reason, error, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`, d.ID, d.Kind, d.Namespace, d.Name, d.UID, string(d.EventType),
		d.Version, string(d.Outcome), d.Reason, d.Error, d.DecidedAt)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

const selectDecisions = `
	SELECT id, kind, namespace, name, uid, event_type,
	       resource_version, outcome, reason, error, decided_at
	FROM decisions
`

// Recent returns up to limit decisions, newest first. A limit of zero or
// less returns all of them.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]types.Decision, error) {
	return s.query(ctx, "", nil, limit)
}

func (s *PostgresStore) ForResource(ctx context.Context, kind, namespace, name string, limit int) ([]types.Decision, error) {
	return s.query(ctx, "WHERE kind = $1 AND namespace = $2 AND name = $3",
		[]interface{}{kind, namespace, name}, limit)
}

func (s *PostgresStore) query(ctx context.Context, where string, args []interface{}, limit int) ([]types.Decision, error) {
	var query strings.Builder
	query.WriteString(selectDecisions)
	if where != "" {
		query.WriteString(where)
		query.WriteString("\n")
	}
	query.WriteString("ORDER BY decided_at DESC")
	if limit > 0 {
		args = append(args, limit)
		query.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	decisions := make([]types.Decision, 0)
	for rows.Next() {
		var d types.Decision
		var eventType, outcome string
		if err := rows.Scan(
			&d.ID, &d.Kind, &d.Namespace, &d.Name, &d.UID, &eventType,
			&d.Version, &outcome, &d.Reason, &d.Error, &d.DecidedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.EventType = types.EventType(eventType)
		d.Outcome = types.Outcome(outcome)
		decisions = append(decisions, d)
	}

	return decisions, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *PostgresStore) Ping() error {
	return s.db.Ping()
}
