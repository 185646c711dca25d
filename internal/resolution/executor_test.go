package resolution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/reflectpause/pausebot/internal/decision"
	"github.com/reflectpause/pausebot/internal/session"
)

// fakeTransport records posted messages and can be told to fail.
type fakeTransport struct {
	mu     sync.Mutex
	posts  []string
	failed bool
}

func (f *fakeTransport) DeleteOriginal(context.Context, session.MessageRef) error { return nil }

func (f *fakeTransport) SendReflection(context.Context, string, string, string, []string) error {
	return nil
}

func (f *fakeTransport) PostMessage(_ context.Context, _, _, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed {
		return errors.New("transport down")
	}
	f.posts = append(f.posts, text)
	return nil
}

func (f *fakeTransport) posted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.posts...)
}

// fakeSink records decision records and can be told to fail.
type fakeSink struct {
	mu      sync.Mutex
	records []decision.Record
	failed  bool
}

func (f *fakeSink) Record(_ context.Context, rec decision.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed {
		return errors.New("sink down")
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeSink) recorded() []decision.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]decision.Record(nil), f.records...)
}

func newTestExecutor(ttl time.Duration) (*Executor, *session.Store, *fakeTransport, *fakeSink) {
	store := session.NewStore(ttl)
	tr := &fakeTransport{}
	sink := &fakeSink{}
	return NewExecutor(store, tr, sink), store, tr, sink
}

func createSession(store *session.Store) *session.Session {
	return store.Create(session.Event{
		UserID:    "u1",
		GuildID:   "g1",
		ChannelID: "c1",
		Origin:    session.MessageRef{AdapterID: "a1", MessageID: "m1"},
		Content:   "original text",
		Score:     0.9,
	})
}

func TestResolve_Post(t *testing.T) {
	exec, store, tr, sink := newTestExecutor(5 * time.Minute)
	s := createSession(store)

	out, err := exec.Resolve(context.Background(), s.ID, ActionPost, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.State != session.StatePosted || !out.Posted {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	posts := tr.posted()
	if len(posts) != 1 || posts[0] != "original text" {
		t.Fatalf("expected original content posted once, got %v", posts)
	}
	if s.Content() != "" {
		t.Error("content not purged")
	}
	if store.Get(s.ID) != nil {
		t.Error("session not removed from store")
	}

	recs := sink.recorded()
	if len(recs) != 1 || recs[0].Category != decision.CategoryPosted {
		t.Fatalf("expected one posted record, got %v", recs)
	}
	if recs[0].GuildID != "g1" {
		t.Errorf("record guild: expected g1, got %s", recs[0].GuildID)
	}
}

func TestResolve_EditPostsPayload(t *testing.T) {
	exec, store, tr, _ := newTestExecutor(5 * time.Minute)
	s := createSession(store)

	out, err := exec.Resolve(context.Background(), s.ID, ActionEdit, "kinder words")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.State != session.StateEdited {
		t.Fatalf("expected edited state, got %q", out.State)
	}

	posts := tr.posted()
	if len(posts) != 1 || posts[0] != "kinder words" {
		t.Fatalf("expected edited text posted, got %v", posts)
	}
}

func TestResolve_EmptyEditRejected(t *testing.T) {
	exec, store, tr, sink := newTestExecutor(5 * time.Minute)
	s := createSession(store)
	deadline := s.Deadline

	for _, payload := range []string{"", "   ", "\n\t"} {
		_, err := exec.Resolve(context.Background(), s.ID, ActionEdit, payload)
		if !errors.Is(err, ErrInvalidEditPayload) {
			t.Fatalf("payload %q: expected ErrInvalidEditPayload, got %v", payload, err)
		}
	}

	// Session untouched: still pending, deadline unchanged, retry works.
	if s.State() != session.StatePending {
		t.Fatalf("session left pending check failed: %q", s.State())
	}
	if !s.Deadline.Equal(deadline) {
		t.Error("deadline changed by rejected edit")
	}
	if len(tr.posted()) != 0 || len(sink.recorded()) != 0 {
		t.Error("side effects from rejected edit")
	}

	if _, err := exec.Resolve(context.Background(), s.ID, ActionEdit, "second try"); err != nil {
		t.Fatalf("retry after rejection failed: %v", err)
	}
}

func TestResolve_CancelPostsNothing(t *testing.T) {
	exec, store, tr, sink := newTestExecutor(5 * time.Minute)
	s := createSession(store)

	out, err := exec.Resolve(context.Background(), s.ID, ActionCancel, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.State != session.StateCancelled || out.Posted {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(tr.posted()) != 0 {
		t.Fatal("cancel must not post")
	}
	recs := sink.recorded()
	if len(recs) != 1 || recs[0].Category != decision.CategoryCancelled {
		t.Fatalf("expected cancelled record, got %v", recs)
	}
}

func TestResolve_ExpirePostsNothing(t *testing.T) {
	exec, store, tr, sink := newTestExecutor(5 * time.Minute)
	s := createSession(store)

	out, err := exec.Resolve(context.Background(), s.ID, ActionExpire, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.State != session.StateExpired {
		t.Fatalf("expected expired, got %q", out.State)
	}
	if len(tr.posted()) != 0 {
		t.Fatal("expire must not post")
	}
	recs := sink.recorded()
	if len(recs) != 1 || recs[0].Category != decision.CategoryExpired {
		t.Fatalf("expected expired record, got %v", recs)
	}
}

func TestResolve_AbsentSession(t *testing.T) {
	exec, _, _, _ := newTestExecutor(5 * time.Minute)

	_, err := exec.Resolve(context.Background(), "missing", ActionPost, "")
	if !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
}

func TestResolve_IdempotentOnTerminalSession(t *testing.T) {
	exec, store, tr, _ := newTestExecutor(5 * time.Minute)
	s := createSession(store)

	if _, err := exec.Resolve(context.Background(), s.ID, ActionPost, ""); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	for i := 0; i < 2; i++ {
		_, err := exec.Resolve(context.Background(), s.ID, ActionPost, "")
		if !errors.Is(err, ErrSessionNotActive) {
			t.Fatalf("attempt %d: expected ErrSessionNotActive, got %v", i+2, err)
		}
	}
	if len(tr.posted()) != 1 {
		t.Fatalf("duplicate post: message posted %d times", len(tr.posted()))
	}
}

func TestResolve_PastDeadlineRejectsUserActions(t *testing.T) {
	exec, store, _, _ := newTestExecutor(5 * time.Minute)
	s := createSession(store)

	// Move the executor's clock past the deadline.
	exec.now = func() time.Time { return s.Deadline.Add(time.Second) }

	for _, action := range []Action{ActionPost, ActionEdit, ActionCancel} {
		payload := ""
		if action == ActionEdit {
			payload = "still trying"
		}
		_, err := exec.Resolve(context.Background(), s.ID, action, payload)
		if !errors.Is(err, ErrSessionNotActive) {
			t.Fatalf("action %q past deadline: expected ErrSessionNotActive, got %v", action, err)
		}
	}

	// The expiry path still resolves it.
	out, err := exec.Resolve(context.Background(), s.ID, ActionExpire, "")
	if err != nil {
		t.Fatalf("expire past deadline: %v", err)
	}
	if out.State != session.StateExpired {
		t.Fatalf("expected expired, got %q", out.State)
	}
}

// A user choice and the expiry path racing on the same session: exactly one
// resolution and at most one post, every time.
func TestResolve_UserVsExpiryRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		exec, store, tr, sink := newTestExecutor(5 * time.Minute)
		s := createSession(store)

		var wg sync.WaitGroup
		results := make([]error, 2)

		wg.Add(2)
		go func() {
			defer wg.Done()
			_, results[0] = exec.Resolve(context.Background(), s.ID, ActionPost, "")
		}()
		go func() {
			defer wg.Done()
			_, results[1] = exec.Resolve(context.Background(), s.ID, ActionExpire, "")
		}()
		wg.Wait()

		winners := 0
		for _, err := range results {
			if err == nil {
				winners++
			} else if !errors.Is(err, ErrSessionNotActive) {
				t.Fatalf("round %d: unexpected error %v", i, err)
			}
		}
		if winners != 1 {
			t.Fatalf("round %d: expected exactly 1 winner, got %d", i, winners)
		}
		if len(tr.posted()) > 1 {
			t.Fatalf("round %d: message posted %d times", i, len(tr.posted()))
		}
		if len(sink.recorded()) != 1 {
			t.Fatalf("round %d: expected exactly 1 decision record, got %d", i, len(sink.recorded()))
		}
		if s.Content() != "" {
			t.Fatalf("round %d: content survived resolution", i)
		}
	}
}

func TestResolve_SinkFailureDoesNotRevert(t *testing.T) {
	exec, store, tr, sink := newTestExecutor(5 * time.Minute)
	sink.failed = true
	s := createSession(store)

	out, err := exec.Resolve(context.Background(), s.ID, ActionPost, "")
	if err != nil {
		t.Fatalf("sink failure must not fail the resolution: %v", err)
	}
	if out.State != session.StatePosted {
		t.Fatalf("expected posted, got %q", out.State)
	}
	if len(tr.posted()) != 1 {
		t.Fatal("message not posted despite sink failure")
	}
	if store.Get(s.ID) != nil {
		t.Fatal("session not removed despite sink failure")
	}
}

func TestResolve_TransportFailureKeepsResolution(t *testing.T) {
	exec, store, tr, sink := newTestExecutor(5 * time.Minute)
	tr.failed = true
	s := createSession(store)

	out, err := exec.Resolve(context.Background(), s.ID, ActionPost, "")
	if err != nil {
		t.Fatalf("transport failure must not fail the resolution: %v", err)
	}
	if out.Posted {
		t.Fatal("outcome claims a post that failed")
	}
	if out.State != session.StatePosted {
		t.Fatalf("expected posted state, got %q", out.State)
	}
	if len(sink.recorded()) != 1 {
		t.Fatal("decision record missing after transport failure")
	}
}

func TestResolve_UnknownAction(t *testing.T) {
	exec, store, _, _ := newTestExecutor(5 * time.Minute)
	s := createSession(store)

	if _, err := exec.Resolve(context.Background(), s.ID, Action("shred"), ""); err == nil {
		t.Fatal("expected error for unknown action")
	}
	if s.State() != session.StatePending {
		t.Fatalf("unknown action mutated state: %q", s.State())
	}
}
