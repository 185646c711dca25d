// Package resolution carries out the terminal action for a reflection
// session exactly once. Every resolution path, whether a user choice or
// the expiry scheduler, funnels through the session store's atomic
// compare-and-transition; the side effect (posting a message) only happens
// after winning that transition, so racing triggers can never double-post.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/reflectpause/pausebot/internal/decision"
	"github.com/reflectpause/pausebot/internal/metrics"
	"github.com/reflectpause/pausebot/internal/session"
	"github.com/reflectpause/pausebot/internal/transport"
)

// Action is the resolution requested for a session.
type Action string

const (
	ActionPost   Action = "post"
	ActionEdit   Action = "edit"
	ActionCancel Action = "cancel"
	ActionExpire Action = "expire"
)

// MaxEditBytes bounds the replacement text accepted for an edit.
const MaxEditBytes = 4096

var (
	// ErrSessionNotActive signals a resolution attempt against an absent,
	// already-terminal, or past-deadline session. It is a no-op marker for
	// late duplicate triggers, not a failure.
	ErrSessionNotActive = errors.New("resolution: session not active")

	// ErrInvalidEditPayload rejects an edit whose replacement text is
	// empty or oversized. The session stays pending so the author may
	// retry within the remaining TTL.
	ErrInvalidEditPayload = errors.New("resolution: invalid edit payload")

	errUnknownAction = errors.New("resolution: unknown action")
)

// Outcome reports what a Resolve call did.
type Outcome struct {
	SessionID string
	Action    Action
	State     session.State
	Posted    bool // whether a message was sent to the channel
}

// Executor performs terminal transitions and their side effects.
type Executor struct {
	store     *session.Store
	transport transport.Transport
	sink      decision.Sink
	now       func() time.Time
}

// NewExecutor wires an Executor to the session registry, the messaging
// transport, and the decision sink.
func NewExecutor(store *session.Store, tr transport.Transport, sink decision.Sink) *Executor {
	return &Executor{store: store, transport: tr, sink: sink, now: time.Now}
}

// targetState maps an action to the terminal state it produces.
func targetState(action Action) (session.State, error) {
	switch action {
	case ActionPost:
		return session.StatePosted, nil
	case ActionEdit:
		return session.StateEdited, nil
	case ActionCancel:
		return session.StateCancelled, nil
	case ActionExpire:
		return session.StateExpired, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownAction, action)
	}
}

// Resolve drives the session to a terminal state. payload is the
// replacement text for edit and ignored otherwise. Callers racing against
// the expiry scheduler (or against themselves) see ErrSessionNotActive on
// every attempt but the winning one.
func (e *Executor) Resolve(ctx context.Context, sessionID string, action Action, payload string) (Outcome, error) {
	next, err := targetState(action)
	if err != nil {
		return Outcome{}, err
	}

	s := e.store.Get(sessionID)
	if s == nil || s.State().Terminal() {
		return Outcome{}, ErrSessionNotActive
	}

	now := e.now()

	// A session past its deadline belongs to the expiry path alone.
	if action != ActionExpire && s.Expired(now) {
		return Outcome{}, ErrSessionNotActive
	}

	// Validate before transitioning so a bad edit leaves the session
	// pending with its deadline intact.
	if action == ActionEdit {
		if err := validateEdit(payload); err != nil {
			return Outcome{}, err
		}
	}

	// Capture content before the transition purges it.
	text := s.Content()

	won := e.store.CompareAndTransition(sessionID, session.StatePending, next, session.Resolution{
		Action:     string(action),
		ResolvedAt: now,
	})
	if !won {
		return Outcome{}, ErrSessionNotActive
	}

	out := Outcome{SessionID: sessionID, Action: action, State: next}

	// Side effects only after winning the transition.
	switch action {
	case ActionPost:
		out.Posted = e.post(ctx, s, text)
	case ActionEdit:
		out.Posted = e.post(ctx, s, payload)
	case ActionCancel, ActionExpire:
		// Nothing is posted.
	}

	e.record(ctx, s, next, now)
	e.store.Remove(sessionID)
	metrics.SessionsActive.Dec()
	metrics.DecisionsTotal.WithLabelValues(string(next)).Inc()

	return out, nil
}

// post sends text to the session's origin channel. A transport failure
// cannot reverse the committed transition; it is logged and the outcome
// reports that nothing was posted.
func (e *Executor) post(ctx context.Context, s *session.Session, text string) bool {
	err := e.transport.PostMessage(ctx, s.Origin.AdapterID, s.ChannelID, text)
	if err != nil {
		log.Printf("[resolution] post failed session=%s channel=%s: %v", s.ID, s.ChannelID, err)
		return false
	}
	return true
}

// record forwards the content-free decision record. Sink failures are
// logged and dropped; the resolution is already committed.
func (e *Executor) record(ctx context.Context, s *session.Session, state session.State, at time.Time) {
	rec := decision.Record{
		Category:    decision.CategoryFor(state),
		GuildID:     s.GuildID,
		UserHash:    decision.HashUser(s.UserID),
		ScoreBucket: decision.BucketScore(s.Score),
		ResolvedAt:  at,
	}
	if err := e.sink.Record(ctx, rec); err != nil {
		log.Printf("[resolution] decision sink unavailable session=%s: %v", s.ID, err)
	}
}

func validateEdit(payload string) error {
	if strings.TrimSpace(payload) == "" {
		return fmt.Errorf("%w: replacement text is empty", ErrInvalidEditPayload)
	}
	if len(payload) > MaxEditBytes {
		return fmt.Errorf("%w: replacement exceeds %d byte limit", ErrInvalidEditPayload, MaxEditBytes)
	}
	return nil
}
