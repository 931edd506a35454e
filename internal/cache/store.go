package cache

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/lumelang/lume/internal/typesystem"
)

// Store is the optional on-disk incremental cache: a single SQLite
// database under the configured cache directory. Entries survive across
// build processes; validity is still decided by the in-memory layer's
// read-set probing, so a stale row simply loses the lookup.
type Store struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS entries (
	func      INTEGER NOT NULL,
	args_hash TEXT    NOT NULL,
	payload   BLOB    NOT NULL,
	PRIMARY KEY (func, args_hash)
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// OpenStore opens (creating if needed) the cache database in dir and
// stamps the current session ID into its metadata.
func OpenStore(dir, sessionID string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "comptime.db"))
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}
	if _, err := db.Exec(
		`INSERT INTO meta (key, value) VALUES ('last_session', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, sessionID); err != nil {
		db.Close()
		return nil, fmt.Errorf("stamping cache session: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(fn typesystem.FuncID, argsHash string) (*Entry, bool, error) {
	var payload []byte
	err := s.db.QueryRow(
		`SELECT payload FROM entries WHERE func = ? AND args_hash = ?`,
		int64(fn), argsHash).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	e := &Entry{}
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(e); err != nil {
		// A corrupt row is a miss, not a build failure.
		return nil, false, nil
	}
	return e, true, nil
}

func (s *Store) Put(fn typesystem.FuncID, argsHash string, e *Entry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	_, err := s.db.Exec(
		`INSERT INTO entries (func, args_hash, payload) VALUES (?, ?, ?)
		 ON CONFLICT(func, args_hash) DO UPDATE SET payload = excluded.payload`,
		int64(fn), argsHash, buf.Bytes())
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
