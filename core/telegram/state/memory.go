package state

import "sync"

// Table is the in-memory Manager. An absent entry reads as StateNone.
type Table struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

var _ Manager = (*Table)(nil)

// NewTable constructs an empty session table.
func NewTable() *Table {
	return &Table{sessions: make(map[int64]Session)}
}

// Get returns a copy of the chat's session, or a StateNone session when none exists.
func (t *Table) Get(chatID int64) Session {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if session, ok := t.sessions[chatID]; ok {
		return session
	}
	return Session{State: StateNone}
}

// Set stores the session; setting StateNone removes the entry.
func (t *Table) Set(chatID int64, session Session) {
	if !session.Active() {
		t.Clear(chatID)
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[chatID] = session
}

// Clear removes the chat's session.
func (t *Table) Clear(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, chatID)
}

// Len reports how many chats are mid-flow.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
