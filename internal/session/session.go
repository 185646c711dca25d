// Package session implements the per-message reflection session state
// machine and its in-memory registry. A session tracks one flagged message
// from detection to exactly one terminal resolution; the original message
// text lives only inside the session and is purged on every terminal
// transition before the session leaves the registry.
package session

import (
	"sync"
	"time"
)

// State is the lifecycle state of a reflection session.
type State string

const (
	// StatePending is the only non-terminal state: the author has been
	// prompted and the session is waiting for a choice or the deadline.
	StatePending State = "pending"

	// Terminal states. A session enters exactly one of these, once.
	StatePosted    State = "posted"
	StateEdited    State = "edited"
	StateCancelled State = "cancelled"
	StateExpired   State = "expired"
)

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	return s == StatePosted || s == StateEdited || s == StateCancelled || s == StateExpired
}

// Resolution records which action resolved a session and when. It never
// carries message content.
type Resolution struct {
	Action     string
	ResolvedAt time.Time
}

// MessageRef identifies the original platform message so the gateway can
// delete it. Opaque to the session core.
type MessageRef struct {
	AdapterID string `json:"adapter_id"`
	MessageID string `json:"message_id"`
}

// Session is the unit of work: one flagged message awaiting resolution.
// All state mutation goes through Store.CompareAndTransition; everything
// else reads under the session mutex.
type Session struct {
	ID        string
	UserID    string
	GuildID   string
	ChannelID string
	Origin    MessageRef
	Score     float64
	CreatedAt time.Time
	Deadline  time.Time

	mu         sync.Mutex
	state      State
	content    string // present only while state == pending
	resolution *Resolution
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Content returns the original message text. It is empty once the session
// has reached a terminal state (privacy purge).
func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// Resolution returns the terminal resolution record, or nil while pending.
func (s *Session) Resolution() *Resolution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolution
}

// Expired reports whether the session's deadline has passed at t.
func (s *Session) Expired(t time.Time) bool {
	return !t.Before(s.Deadline)
}
