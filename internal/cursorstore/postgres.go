package cursorstore

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/long0419/splunk-event-collector/internal/planner"
)

// PostgresStore persists cursors to a table reached through
// database/sql and lib/pq, matching the teacher's resolved_table.go
// get-or-default read and literal UPSERT write, generalized from a
// single endpoint key to (instance, saved search).
type PostgresStore struct {
	db *sql.DB
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS splunk_cursors (
	instance TEXT NOT NULL,
	saved_search TEXT NOT NULL,
	committed BOOLEAN NOT NULL,
	last_committed_time DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (instance, saved_search)
)`

const postgresQuery = `SELECT committed, last_committed_time FROM splunk_cursors WHERE instance = $1 AND saved_search = $2`

const postgresUpsert = `
INSERT INTO splunk_cursors (instance, saved_search, committed, last_committed_time)
VALUES ($1, $2, $3, $4)
ON CONFLICT (instance, saved_search) DO UPDATE SET committed = $3, last_committed_time = $4`

// OpenPostgresStore opens a connection pool against dsn and ensures the
// cursor table exists.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "could not ping postgres cursor store")
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		return nil, errors.Wrap(err, "could not create cursor table")
	}
	return &PostgresStore{db: db}, nil
}

// Get implements Store.
func (p *PostgresStore) Get(ctx context.Context, key Key) (planner.Cursor, error) {
	row := p.db.QueryRowContext(ctx, postgresQuery, key.Instance, key.Search)
	var cursor planner.Cursor
	switch err := row.Scan(&cursor.Committed, &cursor.LastCommittedTime); err {
	case sql.ErrNoRows:
		return planner.Cursor{}, nil
	case nil:
		return cursor, nil
	default:
		return planner.Cursor{}, errors.Wrap(err, "reading cursor")
	}
}

// Put implements Store.
func (p *PostgresStore) Put(ctx context.Context, key Key, cursor planner.Cursor) error {
	_, err := p.db.ExecContext(ctx, postgresUpsert, key.Instance, key.Search, cursor.Committed, cursor.LastCommittedTime)
	return errors.Wrap(err, "writing cursor")
}

// Close releases the underlying connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}
