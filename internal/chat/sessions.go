// Package chat implements the master chat surface: session memory, build
// intent routing into the workflow builder, and defensive extraction of
// canvas commands from freeform LLM output.
package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"axon/internal/logging"
)

// DefaultSessionTTL is the inactivity window after which a session expires.
const DefaultSessionTTL = 30 * time.Minute

const maxSessions = 1024

// Message is one turn of a chat session.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a time-bounded conversational memory scoped to one dialogue.
type Session struct {
	ID           string    `json:"id"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// SessionManager stores sessions in a TTL map. Re-adding on every activity
// refreshes the expiry, so the TTL measures inactivity; lookups evict stale
// entries lazily and List sweeps them eagerly.
type SessionManager struct {
	cache  *expirable.LRU[string, *Session]
	logger logging.Logger
}

// NewSessionManager creates the manager. A zero ttl uses DefaultSessionTTL.
func NewSessionManager(ttl time.Duration, logger logging.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		cache:  expirable.NewLRU[string, *Session](maxSessions, nil, ttl),
		logger: logging.OrNop(logger),
	}
}

// Create allocates a fresh session.
func (m *SessionManager) Create() *Session {
	now := time.Now()
	s := &Session{ID: uuid.NewString(), CreatedAt: now, LastActivity: now}
	m.cache.Add(s.ID, s)
	m.logger.Debug("Created chat session %s", s.ID)
	return s
}

// Get returns the session if it exists and has not expired.
func (m *SessionManager) Get(id string) (*Session, bool) {
	return m.cache.Get(id)
}

// Append records a message and refreshes the session's TTL.
func (m *SessionManager) Append(s *Session, role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content, Timestamp: time.Now()})
	s.LastActivity = time.Now()
	m.cache.Add(s.ID, s)
}

// List returns the live sessions, sweeping expired entries.
func (m *SessionManager) List() []*Session {
	return m.cache.Values()
}

// Delete removes a session.
func (m *SessionManager) Delete(id string) bool {
	return m.cache.Remove(id)
}
