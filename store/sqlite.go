package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	key          TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	content_type TEXT NOT NULL,
	data         BLOB NOT NULL,
	expires      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS artifacts_expires ON artifacts(expires);
`

// SQLite keeps artifacts in a database file so they survive restarts. Expired
// rows are removed on every write.
type SQLite struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	ttl  time.Duration
	log  *zap.Logger
	now  func() time.Time
}

func NewSQLite(path string, ttl time.Duration, log *zap.Logger) (*SQLite, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("open artifact database %q: %w", path, err)
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("prepare artifact database: %w", err)
	}
	return &SQLite{conn: conn, ttl: ttl, log: log, now: time.Now}, nil
}

func (s *SQLite) Put(ctx context.Context, a Artifact) (key string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer sqlitex.Save(s.conn)(&err)

	now := s.now()
	if err := s.purge(now); err != nil {
		return "", err
	}

	key = newKey()
	data := a.Data
	if data == nil {
		data = []byte{}
	}
	err = sqlitex.Execute(s.conn,
		`INSERT INTO artifacts (key, name, content_type, data, expires) VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{key, a.Name, a.ContentType, data, expiresAt(now, s.ttl).UnixMilli()}})
	if err != nil {
		return "", fmt.Errorf("store artifact: %w", err)
	}
	return key, nil
}

func (s *SQLite) purge(now time.Time) error {
	err := sqlitex.Execute(s.conn, `DELETE FROM artifacts WHERE expires <= ?`,
		&sqlitex.ExecOptions{Args: []any{now.UnixMilli()}})
	if err != nil {
		return fmt.Errorf("purge expired artifacts: %w", err)
	}
	if n := s.conn.Changes(); n > 0 {
		s.log.Debug("Expired artifacts removed", zap.Int("count", n))
	}
	return nil
}

func (s *SQLite) Take(ctx context.Context, key string) (a Artifact, err error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer sqlitex.Save(s.conn)(&err)

	found := false
	err = sqlitex.Execute(s.conn,
		`SELECT name, content_type, data FROM artifacts WHERE key = ? AND expires > ?`,
		&sqlitex.ExecOptions{
			Args: []any{key, s.now().UnixMilli()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				a.Name = stmt.ColumnText(0)
				a.ContentType = stmt.ColumnText(1)
				a.Data = make([]byte, stmt.ColumnLen(2))
				stmt.ColumnBytes(2, a.Data)
				return nil
			},
		})
	if err != nil {
		return Artifact{}, fmt.Errorf("read artifact: %w", err)
	}
	if !found {
		return Artifact{}, ErrNotFound
	}

	err = sqlitex.Execute(s.conn, `DELETE FROM artifacts WHERE key = ?`, &sqlitex.ExecOptions{Args: []any{key}})
	if err != nil {
		return Artifact{}, fmt.Errorf("remove artifact: %w", err)
	}
	return a, nil
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return errors.New("artifact database already closed")
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
