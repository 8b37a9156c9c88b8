package chainz

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Session carries conversation memory and shared tool state between calls.
// It is the explicit replacement for package-level variables that one tool writes and
// another reads: whoever owns the router owns the session and passes it in.
//
// Sessions are safe for concurrent use by multiple goroutines.
type Session struct {
	id        string
	messages  []Message
	values    map[string]string
	lastUsage *TokenUsage
	mu        sync.RWMutex
}

// NewSession creates an empty session with a unique ID.
//
// Example:
//
//	session := chainz.NewSession()
//	router.Respond(ctx, session, "Hi, I'm trying to learn Go.")
//	router.Respond(ctx, session, "What did I just say?") // sees the first exchange
func NewSession() *Session {
	return &Session{
		id:       uuid.New().String(),
		messages: make([]Message, 0),
		values:   make(map[string]string),
	}
}

// ID returns the unique identifier for this session.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Messages returns a copy of all messages in the session.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]Message, len(s.messages))
	copy(messages, s.messages)
	return messages
}

// At returns the message at index.
func (s *Session) At(index int) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.messages) {
		return Message{}, fmt.Errorf("index %d out of bounds (session has %d messages)", index, len(s.messages))
	}
	return s.messages[index], nil
}

// Append adds a new message to the session.
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, Message{
		Role:    role,
		Content: content,
	})
}

// Len returns the number of messages in the session.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Clear removes all messages from the session. Stored values are kept.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = make([]Message, 0)
}

// Prune removes the last n message pairs (user + assistant) from the session.
// If n would remove more messages than exist, all messages are removed.
func (s *Session) Prune(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n < 0 {
		return fmt.Errorf("prune count must be non-negative, got %d", n)
	}

	remove := n * 2
	if remove >= len(s.messages) {
		s.messages = make([]Message, 0)
		return nil
	}
	s.messages = s.messages[:len(s.messages)-remove]
	return nil
}

// Truncate keeps only the first keepFirst messages and the last keepLast messages.
func (s *Session) Truncate(keepFirst, keepLast int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keepFirst < 0 || keepLast < 0 {
		return fmt.Errorf("keepFirst and keepLast must be non-negative")
	}

	total := len(s.messages)
	if keepFirst+keepLast >= total {
		return nil
	}

	kept := make([]Message, 0, keepFirst+keepLast)
	kept = append(kept, s.messages[:keepFirst]...)
	kept = append(kept, s.messages[total-keepLast:]...)
	s.messages = kept
	return nil
}

// Set stores a named value for tools sharing this session.
func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Value returns a stored value and whether it was present.
func (s *Session) Value(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Delete removes a stored value.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// LastUsage returns the token usage from the most recent successful call.
// Returns nil if no calls have been made yet.
func (s *Session) LastUsage() *TokenUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastUsage == nil {
		return nil
	}
	usage := *s.lastUsage
	return &usage
}

// SetUsage updates the session's last usage statistics.
func (s *Session) SetUsage(usage *TokenUsage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if usage != nil {
		u := *usage
		s.lastUsage = &u
	}
}
