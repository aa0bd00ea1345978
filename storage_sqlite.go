package docstore

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteStorage keeps the whole keyspace in a single kv(k, v) table ordered
// by SQLite's byte-wise BLOB comparison, which matches the ordering the
// tuple codec produces. Grounded on the teacher pack's SqliteStore (single
// database/sql handle, WAL mode, ON CONFLICT upsert), collapsed from a
// (collection, key) composite-key table down to one flat BLOB-keyed table
// since this store's keyspace is already flat.
type sqliteStorage struct {
	mu sync.Mutex // serializes writers; bbolt/mem do the same via BeginTx(true)
	db *sql.DB
}

func newSqliteStorage(path string) (storage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		k BLOB PRIMARY KEY,
		v BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &sqliteStorage{db: db}, nil
}

func (s *sqliteStorage) BeginTx(writable bool) (storageTx, error) {
	if writable {
		s.mu.Lock()
	}
	sqlTx, err := s.db.Begin()
	if err != nil {
		if writable {
			s.mu.Unlock()
		}
		return nil, err
	}
	return &sqliteStorageTx{s: s, tx: sqlTx, writable: writable}, nil
}

func (s *sqliteStorage) Close() error { return s.db.Close() }

type sqliteStorageTx struct {
	s        *sqliteStorage
	tx       *sql.Tx
	writable bool
	done     bool
}

func (tx *sqliteStorageTx) Writable() bool { return tx.writable }

func (tx *sqliteStorageTx) Bucket() storageBucket { return sqliteBucket{tx: tx} }

func (tx *sqliteStorageTx) finish() {
	if tx.done {
		return
	}
	tx.done = true
	if tx.writable {
		tx.s.mu.Unlock()
	}
}

func (tx *sqliteStorageTx) Commit() error {
	defer tx.finish()
	return tx.tx.Commit()
}

func (tx *sqliteStorageTx) Rollback() error {
	defer tx.finish()
	err := tx.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

func (tx *sqliteStorageTx) Size() int64 { return 0 }

type sqliteBucket struct {
	tx *sqliteStorageTx
}

func (b sqliteBucket) Get(key []byte) []byte {
	var v []byte
	err := b.tx.tx.QueryRow(`SELECT v FROM kv WHERE k = ?`, key).Scan(&v)
	if err != nil {
		return nil
	}
	return v
}

func (b sqliteBucket) Put(key, value []byte) error {
	_, err := b.tx.tx.Exec(
		`INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		key, value)
	return err
}

func (b sqliteBucket) Delete(key []byte) error {
	_, err := b.tx.tx.Exec(`DELETE FROM kv WHERE k = ?`, key)
	return err
}

func (b sqliteBucket) Cursor() storageCursor {
	rows, err := b.tx.tx.Query(`SELECT k, v FROM kv ORDER BY k ASC`)
	if err != nil {
		return &sqliteCursor{}
	}
	defer rows.Close()
	var keys, vals [][]byte
	for rows.Next() {
		var k, v []byte
		if rows.Scan(&k, &v) != nil {
			break
		}
		keys = append(keys, k)
		vals = append(vals, v)
	}
	return &sqliteCursor{keys: keys, vals: vals, pos: -1, b: b}
}

func (b sqliteBucket) Stats() bucketStats {
	return bucketStats{KeyN: b.KeyCount()}
}

func (b sqliteBucket) KeyCount() int {
	var n int
	_ = b.tx.tx.QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&n)
	return n
}

// sqliteCursor materializes the ordered key set up front. Simple and
// correct for the sizes this store targets; a production-scale backend
// would instead drive a server-side cursor.
type sqliteCursor struct {
	b    sqliteBucket
	keys [][]byte
	vals [][]byte
	pos  int
}

func (c *sqliteCursor) at(i int) ([]byte, []byte) {
	if i < 0 || i >= len(c.keys) {
		return nil, nil
	}
	c.pos = i
	return c.keys[i], c.vals[i]
}

func (c *sqliteCursor) First() ([]byte, []byte) { return c.at(0) }
func (c *sqliteCursor) Last() ([]byte, []byte)  { return c.at(len(c.keys) - 1) }

func (c *sqliteCursor) Seek(seek []byte) ([]byte, []byte) {
	i := sort.Search(len(c.keys), func(i int) bool { return bytes.Compare(c.keys[i], seek) >= 0 })
	return c.at(i)
}

func (c *sqliteCursor) SeekLast(prefix []byte) ([]byte, []byte) {
	if len(prefix) == 0 {
		return c.Last()
	}
	limit := append([]byte(nil), prefix...)
	if inc(limit) {
		i := sort.Search(len(c.keys), func(i int) bool { return bytes.Compare(c.keys[i], limit) >= 0 })
		return c.at(i - 1)
	}
	return c.Last()
}

func (c *sqliteCursor) Next() ([]byte, []byte) { return c.at(c.pos + 1) }
func (c *sqliteCursor) Prev() ([]byte, []byte) { return c.at(c.pos - 1) }

func (c *sqliteCursor) Delete() error {
	if c.pos < 0 || c.pos >= len(c.keys) {
		return nil
	}
	return c.b.Delete(c.keys[c.pos])
}
