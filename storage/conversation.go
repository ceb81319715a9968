// Package storage provides conversation storage abstraction.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory and SQLite without API changes
// - Each storage implementation encapsulates its own data structures and protocols

package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/richinex/smith/llm"
)

// Snapshot is the persisted form of a conversation log.
type Snapshot struct {
	SystemPrompt string
	Messages     []llm.Message
}

// Empty reports whether the snapshot holds no messages.
func (s Snapshot) Empty() bool {
	return len(s.Messages) == 0
}

// SessionInfo summarizes a stored session.
type SessionInfo struct {
	ID           string
	MessageCount int
	UpdatedAt    time.Time
}

// ConversationStorage defines the interface for storing conversation history.
// Implementations can use different backends (memory, database).
type ConversationStorage interface {
	// Save replaces the stored conversation for a session.
	Save(ctx context.Context, sessionID string, snap Snapshot) error

	// Load loads the conversation for a session.
	// Returns an empty snapshot if the session doesn't exist.
	// Returns error only for storage failures (I/O errors, etc.), not missing sessions.
	Load(ctx context.Context, sessionID string) (Snapshot, error)

	// Delete deletes a session and its messages.
	Delete(ctx context.Context, sessionID string) error

	// ListSessions lists all session IDs, most recently updated first.
	ListSessions(ctx context.Context) ([]string, error)

	// Sessions lists session summaries, most recently updated first.
	Sessions(ctx context.Context) ([]SessionInfo, error)

	// Exists checks if a session exists.
	Exists(ctx context.Context, sessionID string) (bool, error)
}

// NewSessionID returns a fresh random session ID.
func NewSessionID() string {
	return uuid.New().String()
}

func cloneMessages(msgs []llm.Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
