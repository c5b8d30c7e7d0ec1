package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryService keeps transcripts in process memory. Useful for
// development and for deployments that do not need persistence.
type MemoryService struct {
	agent    string
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

type memorySession struct {
	meta     Metadata
	messages []*Message
}

func NewMemoryService(agent string) *MemoryService {
	return &MemoryService{
		agent:    agent,
		sessions: make(map[string]*memorySession),
	}
}

func (s *MemoryService) AppendMessage(ctx context.Context, sessionID string, message *Message) error {
	if message == nil {
		return fmt.Errorf("message cannot be nil")
	}
	return s.AppendMessages(ctx, sessionID, []*Message{message})
}

func (s *MemoryService) AppendMessages(_ context.Context, sessionID string, messages []*Message) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}
	if len(messages) == 0 {
		return nil
	}
	for i, message := range messages {
		if message == nil {
			return fmt.Errorf("message at index %d is nil", i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[sessionID]
	if !exists {
		now := time.Now()
		sess = &memorySession{
			meta: Metadata{ID: sessionID, Agent: s.agent, CreatedAt: now, UpdatedAt: now},
		}
		s.sessions[sessionID] = sess
	}

	sess.messages = append(sess.messages, messages...)
	sess.meta.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryService) Messages(_ context.Context, sessionID string, limit int) ([]*Message, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[sessionID]
	if !exists {
		return []*Message{}, nil
	}

	messages := sess.messages
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	out := make([]*Message, len(messages))
	copy(out, messages)
	return out, nil
}

func (s *MemoryService) List(_ context.Context) ([]*Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Metadata, 0, len(s.sessions))
	for _, sess := range s.sessions {
		meta := sess.meta
		out = append(out, &meta)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryService) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; !exists {
		return fmt.Errorf("session '%s' not found", sessionID)
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryService) Close() error {
	return nil
}
