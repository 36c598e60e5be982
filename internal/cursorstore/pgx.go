package cursorstore

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/long0419/splunk-event-collector/internal/planner"
)

// PgxStore is the pgxpool-backed alternative to PostgresStore, for
// deployments that prefer pgx's native protocol and pooling over
// database/sql, grounded on the teacher's StagingPool wrapper around
// *pgxpool.Pool in internal/types/types.go.
type PgxStore struct {
	pool *pgxpool.Pool
}

// OpenPgxStore opens a pgxpool.Pool against dsn and ensures the cursor
// table exists.
func OpenPgxStore(ctx context.Context, dsn string) (*PgxStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "could not ping pgx cursor store")
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "could not create cursor table")
	}
	return &PgxStore{pool: pool}, nil
}

// Get implements Store.
func (p *PgxStore) Get(ctx context.Context, key Key) (planner.Cursor, error) {
	row := p.pool.QueryRow(ctx, postgresQuery, key.Instance, key.Search)
	var cursor planner.Cursor
	switch err := row.Scan(&cursor.Committed, &cursor.LastCommittedTime); {
	case err == nil:
		return cursor, nil
	case errors.Is(err, pgx.ErrNoRows):
		return planner.Cursor{}, nil
	default:
		return planner.Cursor{}, errors.Wrap(err, "reading cursor")
	}
}

// Put implements Store.
func (p *PgxStore) Put(ctx context.Context, key Key, cursor planner.Cursor) error {
	_, err := p.pool.Exec(ctx, postgresUpsert, key.Instance, key.Search, cursor.Committed, cursor.LastCommittedTime)
	return errors.Wrap(err, "writing cursor")
}

// Close releases the underlying pool.
func (p *PgxStore) Close() {
	p.pool.Close()
}
