// Package memory persists agent runs, user memories and the knowledge
// contents registry in SQLite or PostgreSQL.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

type dialect int

const (
	sqlite dialect = iota
	postgres
)

// Run is one persisted agent or team exchange.
type Run struct {
	ID        int64
	SessionID string
	AgentID   string
	UserID    string
	Input     string
	Output    string
	CreatedAt time.Time
}

// Store is the relational memory store.
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// Open connects to dsn and creates the schema. Accepted forms are
// sqlite://<path> and postgres:// or postgresql:// URLs.
func Open(ctx context.Context, dsn string) (*Store, error) {
	s := &Store{now: time.Now}
	var driver, source string
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("sqlite dsn has no path")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		driver, source, s.dialect = "sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", sqlite
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		driver, source, s.dialect = "postgres", dsn, postgres
	default:
		return nil, fmt.Errorf("unsupported memory dsn %q: want sqlite:// or postgres://", dsn)
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if s.dialect == sqlite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}
	s.db = db
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == postgres {
		id = "BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id ` + id + `,
			session_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			input TEXT NOT NULL,
			output TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_session ON runs (session_id, agent_id, id)`,
		`CREATE TABLE IF NOT EXISTS user_memories (
			id ` + id + `,
			user_id TEXT NOT NULL,
			memory TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_memories_user ON user_memories (user_id)`,
		`CREATE TABLE IF NOT EXISTS knowledge_contents (
			url TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			chunks INTEGER NOT NULL,
			created_at BIGINT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveRun stores r and returns its id. CreatedAt defaults to now.
func (s *Store) SaveRun(ctx context.Context, r Run) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO runs (session_id, agent_id, user_id, input, output, created_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		r.SessionID, r.AgentID, r.UserID, r.Input, r.Output, r.CreatedAt.UnixMilli(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save run: %w", err)
	}
	return id, nil
}

// History returns the last n runs of agent in session, oldest first.
func (s *Store) History(ctx context.Context, session, agent string, n int) ([]Run, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, session_id, agent_id, user_id, input, output, created_at FROM runs
		 WHERE session_id = ? AND agent_id = ? ORDER BY id DESC LIMIT ?`),
		session, agent, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var created int64
		if err := rows.Scan(&r.ID, &r.SessionID, &r.AgentID, &r.UserID, &r.Input, &r.Output, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CreatedAt = time.UnixMilli(created)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	return runs, nil
}

// AddMemory records a fact about user.
func (s *Store) AddMemory(ctx context.Context, user, memory string) error {
	memory = strings.TrimSpace(memory)
	if memory == "" {
		return fmt.Errorf("empty memory")
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO user_memories (user_id, memory, created_at) VALUES (?, ?, ?)`),
		user, memory, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("add memory: %w", err)
	}
	return nil
}

// Memories returns user's memories, oldest first.
func (s *Store) Memories(ctx context.Context, user string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT memory FROM user_memories WHERE user_id = ? ORDER BY id`), user)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// HasContent reports whether url was already ingested into the knowledge base.
func (s *Store) HasContent(ctx context.Context, url string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT COUNT(*) FROM knowledge_contents WHERE url = ?`), url).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query contents: %w", err)
	}
	return n > 0, nil
}

// MarkContent records that url was ingested as chunks pieces.
func (s *Store) MarkContent(ctx context.Context, url, hash string, chunks int) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO knowledge_contents (url, content_hash, chunks, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (url) DO UPDATE SET content_hash = excluded.content_hash, chunks = excluded.chunks, created_at = excluded.created_at`),
		url, hash, chunks, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("mark content: %w", err)
	}
	return nil
}
