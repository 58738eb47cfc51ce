package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"github.com/ismaeeeelshaikh/college-ai-assistant/internal/chat"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    title      TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);

CREATE TABLE IF NOT EXISTS exchanges (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    question   TEXT NOT NULL,
    answer     TEXT NOT NULL,
    timestamp  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id, id);
`

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	clock clockwork.Clock
}

var _ Store = (*SQLiteStore)(nil)

// StoreOption configures a SQLiteStore.
type StoreOption func(*SQLiteStore)

// WithClock sets the clock used for created/updated timestamps.
func WithClock(c clockwork.Clock) StoreOption {
	return func(s *SQLiteStore) { s.clock = c }
}

// DefaultDBPath returns the default database path (~/.local/share/chatctl/sessions.db).
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "chatctl", "sessions.db"), nil
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the schema exists.
func NewSQLiteStore(dbPath string, opts ...StoreOption) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps per-connection pragmas in effect and serializes writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	s := &SQLiteStore{db: db, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SQLiteStore) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *SQLiteStore) Create(ctx context.Context, title string) (chat.SessionSummary, error) {
	now := s.now()
	sum := chat.SessionSummary{ID: uuid.NewString(), Title: title, CreatedAt: now, UpdatedAt: now}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		sum.ID, sum.Title, formatTime(now), formatTime(now))
	if err != nil {
		return chat.SessionSummary{}, fmt.Errorf("create session: %w", err)
	}
	return sum, nil
}

func (s *SQLiteStore) CreateWithExchange(ctx context.Context, title, question, answer string) (chat.SessionSummary, chat.Exchange, error) {
	now := s.now()
	sum := chat.SessionSummary{ID: uuid.NewString(), Title: title, CreatedAt: now, UpdatedAt: now, MessageCount: 1}

	var ex chat.Exchange
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			sum.ID, sum.Title, formatTime(now), formatTime(now)); err != nil {
			return err
		}
		var err error
		ex, err = insertExchange(ctx, tx, sum.ID, question, answer, now)
		return err
	})
	if err != nil {
		return chat.SessionSummary{}, chat.Exchange{}, fmt.Errorf("create session: %w", err)
	}
	return sum, ex, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]chat.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.title, s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM exchanges e WHERE e.session_id = s.id)
		FROM sessions s
		ORDER BY s.updated_at DESC, s.created_at DESC, s.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := []chat.SessionSummary{}
	for rows.Next() {
		var sum chat.SessionSummary
		var createdAt, updatedAt string
		if err := rows.Scan(&sum.ID, &sum.Title, &createdAt, &updatedAt, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.CreatedAt = parseTime(createdAt)
		sum.UpdatedAt = parseTime(updatedAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (chat.SessionDetail, error) {
	var d chat.SessionDetail
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions WHERE id = ?`, id,
	).Scan(&d.ID, &d.Title, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.SessionDetail{}, chat.NotFound("get session", id)
	}
	if err != nil {
		return chat.SessionDetail{}, fmt.Errorf("load session: %w", err)
	}
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, answer, timestamp FROM exchanges WHERE session_id = ? ORDER BY id`, id)
	if err != nil {
		return chat.SessionDetail{}, fmt.Errorf("load exchanges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ex chat.Exchange
		var rowID int64
		var ts string
		if err := rows.Scan(&rowID, &ex.Question, &ex.Answer, &ts); err != nil {
			return chat.SessionDetail{}, fmt.Errorf("scan exchange: %w", err)
		}
		ex.ID = fmt.Sprint(rowID)
		ex.Timestamp = parseTime(ts)
		d.Exchanges = append(d.Exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return chat.SessionDetail{}, err
	}
	d.MessageCount = len(d.Exchanges)
	return d, nil
}

func (s *SQLiteStore) Rename(ctx context.Context, id, title string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`,
		title, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return chat.NotFound("rename session", id)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM exchanges WHERE session_id = ?`, id); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, _ = result.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return chat.NotFound("delete session", id)
	}
	return nil
}

func (s *SQLiteStore) AppendExchange(ctx context.Context, sessionID, question, answer string) (chat.Exchange, error) {
	now := s.now()
	var ex chat.Exchange
	var missing bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE sessions SET updated_at = ? WHERE id = ?`, formatTime(now), sessionID)
		if err != nil {
			return err
		}
		if n, _ := result.RowsAffected(); n == 0 {
			missing = true
			return nil
		}
		ex, err = insertExchange(ctx, tx, sessionID, question, answer, now)
		return err
	})
	if err != nil {
		return chat.Exchange{}, fmt.Errorf("append exchange: %w", err)
	}
	if missing {
		return chat.Exchange{}, chat.NotFound("send message", sessionID)
	}
	return ex, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertExchange(ctx context.Context, tx *sql.Tx, sessionID, question, answer string, ts time.Time) (chat.Exchange, error) {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO exchanges (session_id, question, answer, timestamp) VALUES (?, ?, ?, ?)`,
		sessionID, question, answer, formatTime(ts))
	if err != nil {
		return chat.Exchange{}, err
	}
	rowID, _ := result.LastInsertId()
	return chat.Exchange{ID: fmt.Sprint(rowID), Question: question, Answer: answer, Timestamp: ts}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t.UTC()
}
