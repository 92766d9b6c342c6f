// Package sqlstore implements storage.Driver over database/sql. The sqlite
// and postgres packages open the connection and pick the Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/agentconsole/pkg/chat/session"
	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
	"github.com/papercomputeco/agentconsole/pkg/logger"
	"github.com/papercomputeco/agentconsole/pkg/storage"
)

// Dialect captures the differences between the supported SQL databases.
type Dialect struct {
	// Name is used in log lines.
	Name string

	// Placeholder returns the bind parameter for the n-th argument (1-based).
	Placeholder func(n int) string
}

var (
	// SQLite binds parameters with "?".
	SQLite = Dialect{
		Name:        "sqlite",
		Placeholder: func(int) string { return "?" },
	}

	// Postgres binds parameters with "$n".
	Postgres = Dialect{
		Name:        "postgres",
		Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}
)

// Timestamps are stored as unix milliseconds so both databases agree on
// their representation.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		agent_id   TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_agent_updated ON sessions (agent_id, updated_at)`,
	`CREATE TABLE IF NOT EXISTS messages (
		session_id TEXT NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
		seq        INTEGER NOT NULL,
		id         TEXT NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (session_id, seq)
	)`,
}

// Store implements storage.Driver on a *sql.DB.
type Store struct {
	DB *sql.DB

	dialect Dialect
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for session and message times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates the schema if needed and returns a Store that owns db.
func New(ctx context.Context, db *sql.DB, dialect Dialect, opts ...Option) (*Store, error) {
	s := &Store{
		DB:      db,
		dialect: dialect,
		logger:  logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("dialect", dialect.Name)

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	s.logger.Debug("session schema ready")

	return s, nil
}

// rebind rewrites "?" parameters into the dialect's placeholders.
func (s *Store) rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CreateSession inserts a new, empty session.
func (s *Store) CreateSession(ctx context.Context, agentID string) (*storage.SessionSummary, error) {
	now := s.now().UTC().Truncate(time.Millisecond)
	summary := &storage.SessionSummary{
		ID:             uuid.NewString(),
		VirtualAgentID: agentID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := s.DB.ExecContext(ctx,
		s.rebind(`INSERT INTO sessions (id, agent_id, created_at, updated_at) VALUES (?, ?, ?, ?)`),
		summary.ID, agentID, now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	s.logger.Debug("session created", "session_id", summary.ID, "agent_id", agentID)
	return summary, nil
}

// GetSession loads the session row and its messages in seq order.
func (s *Store) GetSession(ctx context.Context, id string) (*session.History, error) {
	history := &session.History{ID: id}

	err := s.DB.QueryRowContext(ctx,
		s.rebind(`SELECT agent_id FROM sessions WHERE id = ?`), id,
	).Scan(&history.VirtualAgentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	rows, err := s.DB.QueryContext(ctx,
		s.rebind(`SELECT id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY seq`), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m       transcript.Message
			role    string
			content string
			created int64
		)
		if err := rows.Scan(&m.ID, &role, &content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if err := json.Unmarshal([]byte(content), &m.Content); err != nil {
			return nil, fmt.Errorf("failed to unmarshal content of message %s: %w", m.ID, err)
		}
		m.Role = transcript.Role(role)
		m.Timestamp = time.UnixMilli(created).UTC()
		history.Messages = append(history.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return history, nil
}

// ListSessions returns summaries with message counts, newest first.
func (s *Store) ListSessions(ctx context.Context, agentID string) ([]storage.SessionSummary, error) {
	query := `SELECT s.id, s.agent_id, s.created_at, s.updated_at, COUNT(m.seq)
		FROM sessions s LEFT JOIN messages m ON m.session_id = s.id`
	var args []any
	if agentID != "" {
		query += ` WHERE s.agent_id = ?`
		args = append(args, agentID)
	}
	query += ` GROUP BY s.id, s.agent_id, s.created_at, s.updated_at ORDER BY s.updated_at DESC, s.created_at DESC, s.id`

	rows, err := s.DB.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	out := []storage.SessionSummary{}
	for rows.Next() {
		var (
			sum              storage.SessionSummary
			created, updated int64
		)
		if err := rows.Scan(&sum.ID, &sum.VirtualAgentID, &created, &updated, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sum.CreatedAt = time.UnixMilli(created).UTC()
		sum.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return out, nil
}

// AppendMessages inserts msgs after the session's last message in one
// transaction.
func (s *Store) AppendMessages(ctx context.Context, id string, msgs ...transcript.Message) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC().UnixMilli()
	res, err := tx.ExecContext(ctx, s.rebind(`UPDATE sessions SET updated_at = ? WHERE id = ?`), now, id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.NotFoundError{ID: id}
	}

	var next int64
	err = tx.QueryRowContext(ctx,
		s.rebind(`SELECT COALESCE(MAX(seq), -1) + 1 FROM messages WHERE session_id = ?`), id,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to read message sequence: %w", err)
	}

	insert := s.rebind(`INSERT INTO messages (session_id, seq, id, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	for i, m := range msgs {
		content := m.Content
		if content == nil {
			content = []transcript.ContentItem{}
		}
		data, err := json.Marshal(content)
		if err != nil {
			return fmt.Errorf("failed to marshal content of message %s: %w", m.ID, err)
		}

		ts := m.Timestamp
		if ts.IsZero() {
			ts = time.UnixMilli(now)
		}

		if _, err := tx.ExecContext(ctx, insert, id, next+int64(i), m.ID, string(m.Role), string(data), ts.UnixMilli()); err != nil {
			return fmt.Errorf("failed to insert message %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}

	s.logger.Debug("messages appended", "session_id", id, "count", len(msgs))
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

var _ storage.Driver = (*Store)(nil)
