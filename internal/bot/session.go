package bot

import "sync"

// State of a multi-step conversation. A chat with no session at all is
// idle; there is no explicit idle state.
type State string

const (
	StateAwaitingCategory State = "awaiting_category"
	StateAwaitingTitle    State = "awaiting_title"
)

// Draft accumulates the pieces of a goal across the /create flow.
type Draft struct {
	CategoryID *int64
	Title      *string
}

// Complete reports whether the draft can be committed.
func (d Draft) Complete() bool {
	return d.CategoryID != nil && d.Title != nil
}

// Session is the per-chat conversation state.
type Session struct {
	State State
	Draft Draft
}

// SessionStore keeps per-chat sessions. The bot only needs get/set/
// delete by chat id, so a durable implementation can be swapped in
// without touching the state machine.
type SessionStore interface {
	Get(chatID int64) (*Session, bool)
	Set(chatID int64, s *Session)
	Delete(chatID int64)
}

// MemorySessionStore holds sessions for the life of the process, like
// the system this replaces: pending flows are lost on restart and the
// user simply starts over.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[int64]*Session)}
}

func (m *MemorySessionStore) Get(chatID int64) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	return s, ok
}

func (m *MemorySessionStore) Set(chatID int64, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[chatID] = s
}

func (m *MemorySessionStore) Delete(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}
