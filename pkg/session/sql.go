package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/schemaflow-ai/schemaflow/pkg/config"
)

// SQLService stores transcripts in MySQL or SQLite.
type SQLService struct {
	db      *sql.DB
	dialect string
	agent   string
}

var schemaStatements = map[string][]string{
	"sqlite": {
		`CREATE TABLE IF NOT EXISTS sessions (
    id VARCHAR(255) PRIMARY KEY,
    agent VARCHAR(255) NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at)`,
		`CREATE TABLE IF NOT EXISTS session_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id VARCHAR(255) NOT NULL,
    message_id VARCHAR(255) NOT NULL,
    role VARCHAR(50) NOT NULL,
    content TEXT NOT NULL,
    sequence_num INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sequence ON session_messages(session_id, sequence_num)`,
	},
	"mysql": {
		`CREATE TABLE IF NOT EXISTS sessions (
    id VARCHAR(255) PRIMARY KEY,
    agent VARCHAR(255) NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    INDEX idx_sessions_updated_at (updated_at)
)`,
		`CREATE TABLE IF NOT EXISTS session_messages (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    session_id VARCHAR(255) NOT NULL,
    message_id VARCHAR(255) NOT NULL,
    role VARCHAR(50) NOT NULL,
    content TEXT NOT NULL,
    sequence_num BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    INDEX idx_messages_sequence (session_id, sequence_num),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
)`,
	},
}

// NewSQLService wraps an open database connection. dialect is "mysql"
// or "sqlite".
func NewSQLService(db *sql.DB, dialect, agent string) (*SQLService, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if _, ok := schemaStatements[dialect]; !ok {
		return nil, fmt.Errorf("unsupported dialect: %s (supported: mysql, sqlite)", dialect)
	}

	s := &SQLService{db: db, dialect: dialect, agent: agent}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// NewSQLServiceFromConfig opens the configured database and prepares
// the schema.
func NewSQLServiceFromConfig(cfg *config.SessionStoreConfig, agent string) (*SQLService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("session store configuration is required")
	}

	var dialect, driver string
	switch cfg.Backend {
	case config.SessionBackendMySQL:
		dialect, driver = "mysql", "mysql"
	case config.SessionBackendSQLite:
		dialect, driver = "sqlite", "sqlite3"
		if dir := filepath.Dir(cfg.Database); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create session directory: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Backend)
	}

	db, err := sql.Open(driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to session database: %w", err)
	}

	return NewSQLService(db, dialect, agent)
}

func (s *SQLService) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stmt := range schemaStatements[s.dialect] {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLService) AppendMessage(ctx context.Context, sessionID string, message *Message) error {
	if message == nil {
		return fmt.Errorf("message cannot be nil")
	}
	return s.AppendMessages(ctx, sessionID, []*Message{message})
}

func (s *SQLService) AppendMessages(ctx context.Context, sessionID string, messages []*Message) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now()
	if err = s.ensureSession(ctx, tx, sessionID, now); err != nil {
		return err
	}

	var startSeq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence_num), 0) FROM session_messages WHERE session_id = ?`,
		sessionID).Scan(&startSeq)
	if err != nil {
		return fmt.Errorf("failed to get sequence number: %w", err)
	}

	for i, message := range messages {
		if message == nil {
			err = fmt.Errorf("message at index %d is nil", i)
			return err
		}
		createdAt := message.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO session_messages (session_id, message_id, role, content, sequence_num, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, message.ID, message.Role, message.Content, startSeq+int64(i)+1, createdAt)
		if err != nil {
			err = fmt.Errorf("failed to insert message at index %d: %w", i, err)
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, now, sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session timestamp: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLService) ensureSession(ctx context.Context, tx *sql.Tx, sessionID string, now time.Time) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&one)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to look up session: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, agent, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		sessionID, s.agent, now, now)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *SQLService) Messages(ctx context.Context, sessionID string, limit int) ([]*Message, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}

	query := `
SELECT message_id, role, content, created_at
FROM session_messages
WHERE session_id = ?
ORDER BY sequence_num ASC`
	args := []any{sessionID}

	if limit > 0 {
		query = `
SELECT message_id, role, content, created_at FROM (
    SELECT message_id, role, content, created_at, sequence_num
    FROM session_messages
    WHERE session_id = ?
    ORDER BY sequence_num DESC
    LIMIT ?
) sub ORDER BY sequence_num ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

func (s *SQLService) List(ctx context.Context) ([]*Metadata, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent, created_at, updated_at FROM sessions WHERE agent = ? ORDER BY updated_at DESC`,
		s.agent)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*Metadata{}
	for rows.Next() {
		m := &Metadata{}
		if err := rows.Scan(&m.ID, &m.Agent, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

func (s *SQLService) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM session_messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	var result sql.Result
	result, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		err = fmt.Errorf("session '%s' not found", sessionID)
		return err
	}

	return tx.Commit()
}

func (s *SQLService) Close() error {
	return s.db.Close()
}
