package session

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a session stays pending before the expiry
// scheduler force-resolves it.
const DefaultTTL = 5 * time.Minute

// Event describes a flagged inbound message from which a session is created.
type Event struct {
	UserID    string
	GuildID   string
	ChannelID string
	Origin    MessageRef
	Content   string
	Score     float64
}

// Store is the process-wide registry of live sessions. The registry lock
// guards only the map; per-session state is guarded by the session's own
// mutex, so unrelated sessions never serialize on each other and the
// registry lock is never held across an external call.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time // injectable for tests
}

// NewStore creates an empty session registry with the given TTL.
// A non-positive ttl falls back to DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create registers a new pending session for the event and returns it.
func (st *Store) Create(ev Event) *Session {
	now := st.now()
	s := &Session{
		ID:        uuid.NewString(),
		UserID:    ev.UserID,
		GuildID:   ev.GuildID,
		ChannelID: ev.ChannelID,
		Origin:    ev.Origin,
		Score:     ev.Score,
		CreatedAt: now,
		Deadline:  now.Add(st.ttl),
		state:     StatePending,
		content:   ev.Content,
	}

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns the session with the given ID, or nil if absent.
func (st *Store) Get(id string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[id]
}

// Len returns the number of registered sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// CompareAndTransition atomically moves the session from expected to next
// and records the resolution. It returns false if the session is absent or
// its state no longer equals expected; exactly one of any set of racing
// callers observes true. On a transition to a terminal state the message
// content is purged before the method returns.
func (st *Store) CompareAndTransition(id string, expected, next State, res Resolution) bool {
	st.mu.RLock()
	s := st.sessions[id]
	st.mu.RUnlock()
	if s == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != expected {
		return false
	}
	s.state = next
	if next.Terminal() {
		s.content = ""
		r := res
		s.resolution = &r
	}
	return true
}

// Remove deletes the session from the registry. The session must already
// be terminal; removal of a still-pending session is a bug and is logged.
func (st *Store) Remove(id string) {
	st.mu.Lock()
	s := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if s != nil && !s.State().Terminal() {
		log.Printf("[session] removed non-terminal session id=%s", id)
	}
}

// Drain force-expires every still-pending session and empties the
// registry. Called on shutdown so no pending content outlives the process.
// It returns the number of sessions that were forced to expired.
func (st *Store) Drain() int {
	st.mu.Lock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()

	forced := 0
	now := st.now()
	for _, s := range sessions {
		s.mu.Lock()
		if s.state == StatePending {
			s.state = StateExpired
			s.content = ""
			s.resolution = &Resolution{Action: "expire", ResolvedAt: now}
			forced++
		}
		s.mu.Unlock()
	}
	return forced
}
