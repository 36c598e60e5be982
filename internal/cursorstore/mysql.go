package cursorstore

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/long0419/splunk-event-collector/internal/planner"
)

// MySQLStore is the go-sql-driver/mysql-backed Store, grounded on the
// teacher's OpenMySQLAsTarget in internal/util/stdpool/my.go: open,
// then ping-retry until the server accepts connections rather than
// failing on the first transient dial error.
type MySQLStore struct {
	db *sql.DB
}

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS splunk_cursors (
	instance VARCHAR(255) NOT NULL,
	saved_search VARCHAR(255) NOT NULL,
	committed BOOLEAN NOT NULL,
	last_committed_time DOUBLE NOT NULL,
	PRIMARY KEY (instance, saved_search)
)`

const mysqlQuery = `SELECT committed, last_committed_time FROM splunk_cursors WHERE instance = ? AND saved_search = ?`

const mysqlUpsert = `
INSERT INTO splunk_cursors (instance, saved_search, committed, last_committed_time)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE committed = VALUES(committed), last_committed_time = VALUES(last_committed_time)`

// OpenMySQLStore opens a connection against dsn, retrying the initial
// ping while the server is still starting up, and ensures the cursor
// table exists.
func OpenMySQLStore(ctx context.Context, dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for {
		err := db.PingContext(ctx)
		if err == nil {
			break
		}
		if !isMySQLStartupError(err) {
			return nil, errors.Wrap(err, "could not ping mysql cursor store")
		}
		log.WithError(err).Info("waiting for mysql cursor store to become ready")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	if _, err := db.ExecContext(ctx, mysqlSchema); err != nil {
		return nil, errors.Wrap(err, "could not create cursor table")
	}
	return &MySQLStore{db: db}, nil
}

func isMySQLStartupError(err error) bool {
	return errors.Is(err, sqldriver.ErrBadConn)
}

// Get implements Store.
func (m *MySQLStore) Get(ctx context.Context, key Key) (planner.Cursor, error) {
	row := m.db.QueryRowContext(ctx, mysqlQuery, key.Instance, key.Search)
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
func (m *MySQLStore) Put(ctx context.Context, key Key, cursor planner.Cursor) error {
	_, err := m.db.ExecContext(ctx, mysqlUpsert, key.Instance, key.Search, cursor.Committed, cursor.LastCommittedTime)
	return errors.Wrap(err, "writing cursor")
}

// Close releases the underlying connection pool.
func (m *MySQLStore) Close() error {
	return m.db.Close()
}
