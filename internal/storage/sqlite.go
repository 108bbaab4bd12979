package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const (
	sqliteModule = "modernc.org/sqlite"
	sqliteFile   = "kv.sqlite"
)

func init() {
	Register("sqlite", func(opts Options) (Backend, error) {
		return NewSQLiteEngine(opts)
	})
}

// SQLiteEngine stores pairs in a single WITHOUT ROWID table, so the primary
// key B-tree holds the values inline.
type SQLiteEngine struct {
	db      *sql.DB
	version string

	putStmt *sql.Stmt
	getStmt *sql.Stmt
	delStmt *sql.Stmt
}

var (
	_ Backend  = (*SQLiteEngine)(nil)
	_ Batcher  = (*SQLiteEngine)(nil)
	_ Iterable = (*SQLiteEngine)(nil)
)

func NewSQLiteEngine(opts Options) (*SQLiteEngine, error) {
	dsn, err := sqliteDSN(opts)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.InMemory {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	e := &SQLiteEngine{db: db}
	if err := e.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := e.prepare(); err != nil {
		e.Close()
		return nil, err
	}

	var libVersion string
	if err := db.QueryRow(`SELECT sqlite_version()`).Scan(&libVersion); err != nil {
		libVersion = "unknown"
	}
	e.version = fmt.Sprintf("%s (sqlite %s)", moduleVersion(sqliteModule), libVersion)

	return e, nil
}

func sqliteDSN(opts Options) (string, error) {
	cfg := opts.Engines.SQLite

	pragmas := url.Values{}
	if cfg.BusyTimeout > 0 {
		pragmas.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout))
	}
	if opts.Sync {
		pragmas.Add("_pragma", "synchronous(FULL)")
	} else {
		pragmas.Add("_pragma", "synchronous(OFF)")
	}
	if cfg.CacheSizeKB > 0 {
		pragmas.Add("_pragma", fmt.Sprintf("cache_size(-%d)", cfg.CacheSizeKB))
	}

	if opts.InMemory {
		return "file::memory:?" + pragmas.Encode(), nil
	}

	if cfg.JournalMode != "" {
		pragmas.Add("_pragma", fmt.Sprintf("journal_mode(%s)", cfg.JournalMode))
	}
	if err := os.MkdirAll(opts.Path, 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}

	return "file:" + filepath.Join(opts.Path, sqliteFile) + "?" + pragmas.Encode(), nil
}

func (e *SQLiteEngine) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		k BLOB PRIMARY KEY,
		v BLOB NOT NULL
	) WITHOUT ROWID;
	`
	_, err := e.db.Exec(query)
	return err
}

func (e *SQLiteEngine) prepare() error {
	var err error
	if e.putStmt, err = e.db.Prepare(`INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`); err != nil {
		return fmt.Errorf("failed to prepare put: %w", err)
	}
	if e.getStmt, err = e.db.Prepare(`SELECT v FROM kv WHERE k = ?`); err != nil {
		return fmt.Errorf("failed to prepare get: %w", err)
	}
	if e.delStmt, err = e.db.Prepare(`DELETE FROM kv WHERE k = ?`); err != nil {
		return fmt.Errorf("failed to prepare delete: %w", err)
	}
	return nil
}

func (e *SQLiteEngine) Name() string    { return "sqlite" }
func (e *SQLiteEngine) Version() string { return e.version }

func (e *SQLiteEngine) Put(key, value []byte) error {
	_, err := e.putStmt.Exec(key, value)
	return err
}

func (e *SQLiteEngine) Get(key []byte) ([]byte, error) {
	var value []byte
	err := e.getStmt.QueryRow(key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	return value, err
}

func (e *SQLiteEngine) Delete(key []byte) error {
	_, err := e.delStmt.Exec(key)
	return err
}

func (e *SQLiteEngine) Close() error {
	for _, stmt := range []*sql.Stmt{e.putStmt, e.getStmt, e.delStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return e.db.Close()
}

func (e *SQLiteEngine) NewBatch() Batch {
	return &sqliteBatch{engine: e}
}

type sqliteOp struct {
	key    []byte
	value  []byte
	delete bool
}

// sqliteBatch buffers writes and applies them in one transaction on Commit.
type sqliteBatch struct {
	engine *SQLiteEngine
	ops    []sqliteOp
}

func (b *sqliteBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, sqliteOp{key: clone(key), value: clone(value)})
	return nil
}

func (b *sqliteBatch) Delete(key []byte) error {
	b.ops = append(b.ops, sqliteOp{key: clone(key), delete: true})
	return nil
}

func (b *sqliteBatch) Len() int { return len(b.ops) }

func (b *sqliteBatch) Commit() error {
	tx, err := b.engine.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	put := tx.Stmt(b.engine.putStmt)
	del := tx.Stmt(b.engine.delStmt)

	for _, op := range b.ops {
		if op.delete {
			_, err = del.Exec(op.key)
		} else {
			_, err = put.Exec(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (e *SQLiteEngine) NewIterator() (Iterator, error) {
	return &sqliteIterator{db: e.db}, nil
}

type sqliteIterator struct {
	db    *sql.DB
	rows  *sql.Rows
	key   []byte
	value []byte
	valid bool
}

func (i *sqliteIterator) SeekToFirst() {
	i.query(`SELECT k, v FROM kv ORDER BY k`)
}

func (i *sqliteIterator) Seek(key []byte) {
	i.query(`SELECT k, v FROM kv WHERE k >= ? ORDER BY k`, key)
}

func (i *sqliteIterator) query(q string, args ...interface{}) {
	if i.rows != nil {
		i.rows.Close()
	}

	rows, err := i.db.Query(q, args...)
	if err != nil {
		i.rows, i.valid = nil, false
		return
	}
	i.rows = rows
	i.Next()
}

func (i *sqliteIterator) Valid() bool { return i.valid }

func (i *sqliteIterator) Next() {
	if i.rows == nil || !i.rows.Next() {
		i.valid = false
		return
	}
	i.valid = i.rows.Scan(&i.key, &i.value) == nil
}

func (i *sqliteIterator) Key() []byte   { return i.key }
func (i *sqliteIterator) Value() []byte { return i.value }

func (i *sqliteIterator) Close() error {
	if i.rows == nil {
		return nil
	}
	return i.rows.Close()
}
