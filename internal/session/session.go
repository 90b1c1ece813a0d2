// Package session keeps per-conversation message history in memory.
// Sessions are created lazily on first append and retained for the
// process lifetime unless a session bound is configured.
package session

import (
	"container/list"
	"sync"
	"time"
)

// Role of a message author.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one immutable history entry.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type sessionState struct {
	mu       sync.Mutex
	messages []Message
	lruElem  *list.Element
}

// Store holds message history keyed by session id. Appends to one
// session never block reads or writes on another: the registry lock is
// only held long enough to find or create the session, and each session
// carries its own mutex.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*sessionState
	lru         *list.List // front = most recently touched, values are session ids
	maxSessions int
}

// NewStore creates a session store. maxSessions <= 0 means unbounded
// retention; otherwise the least-recently-touched session is evicted
// when the bound is exceeded.
func NewStore(maxSessions int) *Store {
	return &Store{
		sessions:    make(map[string]*sessionState),
		lru:         list.New(),
		maxSessions: maxSessions,
	}
}

// get finds or lazily creates the session and marks it recently used.
func (s *Store) get(sessionID string) *sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		st = &sessionState{}
		st.lruElem = s.lru.PushFront(sessionID)
		s.sessions[sessionID] = st
		if s.maxSessions > 0 && len(s.sessions) > s.maxSessions {
			if oldest := s.lru.Back(); oldest != nil {
				s.lru.Remove(oldest)
				delete(s.sessions, oldest.Value.(string))
			}
		}
	} else {
		s.lru.MoveToFront(st.lruElem)
	}
	return st
}

// Append adds one message to the session, creating it if needed.
func (s *Store) Append(sessionID string, msg Message) {
	st := s.get(sessionID)
	st.mu.Lock()
	st.messages = append(st.messages, msg)
	st.mu.Unlock()
}

// AppendExchange appends a (user, assistant) pair as one unit. A
// concurrent reader sees either neither message or both, never the
// user message alone.
func (s *Store) AppendExchange(sessionID string, user, assistant Message) {
	st := s.get(sessionID)
	st.mu.Lock()
	st.messages = append(st.messages, user, assistant)
	st.mu.Unlock()
}

// RecentContext returns the last windowSize messages, oldest first.
// Unknown sessions and windowSize <= 0 yield an empty slice. Lookups
// never create a session.
func (s *Store) RecentContext(sessionID string, windowSize int) []Message {
	s.mu.Lock()
	st, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok || windowSize <= 0 {
		return []Message{}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	start := len(st.messages) - windowSize
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(st.messages)-start)
	copy(out, st.messages[start:])
	return out
}

// History returns the full message history of a session, oldest first.
func (s *Store) History(sessionID string) []Message {
	s.mu.Lock()
	st, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return []Message{}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]Message, len(st.messages))
	copy(out, st.messages)
	return out
}
