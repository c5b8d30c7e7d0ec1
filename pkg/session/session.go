// Package session persists chat transcripts for the web server.
//
// Each session belongs to one agent and holds an ordered message
// history. Backends: in-memory (default), MySQL, SQLite.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/schemaflow-ai/schemaflow/pkg/config"
)

// Message is one transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage builds a message with a fresh ID and timestamp.
func NewMessage(role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Metadata describes a session without its messages.
type Metadata struct {
	ID        string    `json:"id"`
	Agent     string    `json:"agent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service manages session transcripts.
type Service interface {
	// AppendMessage adds one message, creating the session on first use.
	AppendMessage(ctx context.Context, sessionID string, message *Message) error

	// AppendMessages adds several messages atomically.
	AppendMessages(ctx context.Context, sessionID string, messages []*Message) error

	// Messages returns the session transcript in order. A positive limit
	// returns only the most recent messages.
	Messages(ctx context.Context, sessionID string, limit int) ([]*Message, error)

	// List returns metadata for all sessions, most recently updated first.
	List(ctx context.Context) ([]*Metadata, error)

	// Delete removes a session and its messages.
	Delete(ctx context.Context, sessionID string) error

	Close() error
}

// NewFromConfig builds the configured session service. agent names the
// agent whose transcripts the service stores.
func NewFromConfig(cfg *config.SessionStoreConfig, agent string) (Service, error) {
	if cfg == nil {
		cfg = &config.SessionStoreConfig{}
	}
	cfg.SetDefaults()

	switch cfg.Backend {
	case config.SessionBackendMemory:
		return NewMemoryService(agent), nil
	case config.SessionBackendMySQL, config.SessionBackendSQLite:
		return NewSQLServiceFromConfig(cfg, agent)
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Backend)
	}
}
