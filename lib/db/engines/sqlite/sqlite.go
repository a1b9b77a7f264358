package sqlite

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/ValentinKolb/litemap/lib/db"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	driverName = "sqlite"
	memoryPath = ":memory:"
)

// All records live in a single table, the key column doubles as primary key index.
const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

const (
	stmtUpsert    = `INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`
	stmtGet       = `SELECT value FROM kv WHERE key = ?`
	stmtDelete    = `DELETE FROM kv WHERE key = ?`
	stmtDeleteAll = `DELETE FROM kv`
	stmtCount     = `SELECT COUNT(*) FROM kv`
)

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

type sqliteImpl struct {
	path   string
	conn   *sql.DB
	closed atomic.Bool
}

// NewSQLiteDB opens (or creates) the sqlite database file at path and makes sure
// the kv table exists. Missing parent directories are created. The special path
// ":memory:" opens a private in-memory database.
func NewSQLiteDB(path string) (db.KVDB, error) {
	if path == "" {
		return nil, errors.New("sqlite: path must not be empty")
	}

	if path != memoryPath && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrapf(err, "sqlite: could not create directory %s", dir)
			}
		}
	}

	conn, err := sql.Open(driverName, path)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: could not open %s", path)
	}

	// A single connection keeps ":memory:" databases alive and matches the
	// one-operation-at-a-time access pattern of the store layer.
	conn.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if path != memoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range append(pragmas, schema) {
		if _, err := conn.Exec(p); err != nil {
			_ = conn.Close()
			return nil, errors.Wrapf(err, "sqlite: could not initialize %s", path)
		}
	}

	return &sqliteImpl{path: path, conn: conn}, nil
}

// prefixClause returns the where clause and arguments that select all keys
// starting with prefix. A range is used instead of LIKE so that '%' and '_'
// inside a prefix are matched literally.
func prefixClause(prefix string) (string, []interface{}) {
	if prefix == "" {
		return "", nil
	}
	upper := db.PrefixUpperBound(prefix)
	if upper == nil {
		return " WHERE key >= ?", []interface{}{prefix}
	}
	return " WHERE key >= ? AND key < ?", []interface{}{prefix, string(upper)}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.KVDB)
// --------------------------------------------------------------------------

func (s *sqliteImpl) Put(key string, value []byte) error {
	if s.closed.Load() {
		return db.ErrClosed
	}
	if key == "" {
		return db.ErrEmptyKey
	}
	if _, err := s.conn.Exec(stmtUpsert, key, string(value)); err != nil {
		return errors.Wrapf(err, "sqlite: could not put %q", key)
	}
	return nil
}

func (s *sqliteImpl) BatchPut(entries []db.Entry) (err error) {
	if s.closed.Load() {
		return db.ErrClosed
	}
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if e.Key == "" {
			return db.ErrEmptyKey
		}
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return errors.Wrap(err, "sqlite: could not begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(stmtUpsert)
	if err != nil {
		return errors.Wrap(err, "sqlite: could not prepare batch statement")
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err = stmt.Exec(e.Key, string(e.Value)); err != nil {
			return errors.Wrapf(err, "sqlite: could not put %q in batch", e.Key)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "sqlite: could not commit batch")
	}
	return nil
}

func (s *sqliteImpl) Delete(key string) (bool, error) {
	if s.closed.Load() {
		return false, db.ErrClosed
	}
	if key == "" {
		return false, db.ErrEmptyKey
	}
	res, err := s.conn.Exec(stmtDelete, key)
	if err != nil {
		return false, errors.Wrapf(err, "sqlite: could not delete %q", key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "sqlite: could not read affected rows")
	}
	return n > 0, nil
}

func (s *sqliteImpl) DeletePrefix(prefix string) (int, error) {
	if s.closed.Load() {
		return 0, db.ErrClosed
	}
	where, args := prefixClause(prefix)
	res, err := s.conn.Exec(`DELETE FROM kv`+where, args...)
	if err != nil {
		return 0, errors.Wrapf(err, "sqlite: could not delete prefix %q", prefix)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "sqlite: could not read affected rows")
	}
	return int(n), nil
}

func (s *sqliteImpl) DeleteAll() (int, error) {
	if s.closed.Load() {
		return 0, db.ErrClosed
	}
	res, err := s.conn.Exec(stmtDeleteAll)
	if err != nil {
		return 0, errors.Wrap(err, "sqlite: could not clear table")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "sqlite: could not read affected rows")
	}
	return int(n), nil
}

func (s *sqliteImpl) Get(key string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, db.ErrClosed
	}
	if key == "" {
		return nil, false, db.ErrEmptyKey
	}
	var value string
	err := s.conn.QueryRow(stmtGet, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "sqlite: could not get %q", key)
	}
	return []byte(value), true, nil
}

func (s *sqliteImpl) Keys(prefix string) ([]string, error) {
	if s.closed.Load() {
		return nil, db.ErrClosed
	}
	where, args := prefixClause(prefix)
	rows, err := s.conn.Query(`SELECT key FROM kv`+where+` ORDER BY key`, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: could not scan prefix %q", prefix)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.Wrap(err, "sqlite: could not read key")
		}
		keys = append(keys, key)
	}
	return keys, errors.Wrap(rows.Err(), "sqlite: key scan failed")
}

func (s *sqliteImpl) ScanPrefix(prefix string) ([]db.Entry, error) {
	if s.closed.Load() {
		return nil, db.ErrClosed
	}
	where, args := prefixClause(prefix)
	rows, err := s.conn.Query(`SELECT key, value FROM kv`+where+` ORDER BY key`, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite: could not scan prefix %q", prefix)
	}
	defer rows.Close()

	entries := make([]db.Entry, 0)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, errors.Wrap(err, "sqlite: could not read entry")
		}
		entries = append(entries, db.Entry{Key: key, Value: []byte(value)})
	}
	return entries, errors.Wrap(rows.Err(), "sqlite: entry scan failed")
}

func (s *sqliteImpl) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		DbType:     db.ImplSQLite,
		Identifier: s.path,
	}
	if s.closed.Load() {
		return info
	}
	var count int
	if err := s.conn.QueryRow(stmtCount).Scan(&count); err == nil {
		info.KeyCount = count
	}
	return info
}

func (s *sqliteImpl) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return db.ErrClosed
	}
	return errors.Wrap(s.conn.Close(), "sqlite: could not close")
}
