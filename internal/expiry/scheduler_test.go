package expiry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// collector records expiry callbacks with their firing times.
type collector struct {
	mu    sync.Mutex
	fired map[string]time.Time
}

func newCollector() *collector {
	return &collector{fired: make(map[string]time.Time)}
}

func (c *collector) expire(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fired[id] = time.Now()
}

func (c *collector) firedAt(id string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.fired[id]
	return t, ok
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fired)
}

func TestScheduler_FiresAfterDeadline(t *testing.T) {
	c := newCollector()
	s := NewScheduler(c.expire)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	deadline := time.Now().Add(30 * time.Millisecond)
	s.Add("s1", deadline)

	waitFor(t, 2*time.Second, func() bool {
		_, ok := c.firedAt("s1")
		return ok
	})

	at, _ := c.firedAt("s1")
	if at.Before(deadline) {
		t.Fatalf("fired %s before deadline %s", at, deadline)
	}
}

func TestScheduler_FiresInDeadlineOrder(t *testing.T) {
	c := newCollector()
	s := NewScheduler(c.expire)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	now := time.Now()
	// Added out of order; must fire in deadline order.
	s.Add("late", now.Add(80*time.Millisecond))
	s.Add("early", now.Add(20*time.Millisecond))

	waitFor(t, 2*time.Second, func() bool { return c.count() == 2 })

	earlyAt, _ := c.firedAt("early")
	lateAt, _ := c.firedAt("late")
	if lateAt.Before(earlyAt) {
		t.Fatalf("late fired before early (late=%s early=%s)", lateAt, earlyAt)
	}
}

func TestScheduler_RemoveCancelsExpiry(t *testing.T) {
	c := newCollector()
	s := NewScheduler(c.expire)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Add("kept", time.Now().Add(60*time.Millisecond))
	s.Add("removed", time.Now().Add(30*time.Millisecond))
	s.Remove("removed")

	waitFor(t, 2*time.Second, func() bool {
		_, ok := c.firedAt("kept")
		return ok
	})

	if _, ok := c.firedAt("removed"); ok {
		t.Fatal("removed session still expired")
	}
}

func TestScheduler_RemoveAfterReAdd(t *testing.T) {
	c := newCollector()
	s := NewScheduler(c.expire)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// Re-adding an ID supersedes the first deadline; surfacing the stale
	// entry must not orphan the fresh one, so the Remove still lands.
	s.Add("readded", time.Now().Add(40*time.Millisecond))
	time.Sleep(10 * time.Millisecond)
	s.Add("readded", time.Now().Add(70*time.Millisecond))
	time.Sleep(10 * time.Millisecond)
	s.Remove("readded")

	s.Add("kept", time.Now().Add(120*time.Millisecond))
	waitFor(t, 2*time.Second, func() bool {
		_, ok := c.firedAt("kept")
		return ok
	})

	if _, ok := c.firedAt("readded"); ok {
		t.Fatal("removed session expired via its superseded entry")
	}
}

func TestScheduler_PastDeadlineFiresImmediately(t *testing.T) {
	c := newCollector()
	s := NewScheduler(c.expire)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Add("overdue", time.Now().Add(-time.Second))

	waitFor(t, 2*time.Second, func() bool {
		_, ok := c.firedAt("overdue")
		return ok
	})
}

func TestScheduler_ManySessions(t *testing.T) {
	c := newCollector()
	s := NewScheduler(c.expire)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	now := time.Now()
	const n = 200
	for i := 0; i < n; i++ {
		s.Add(sessionID(i), now.Add(time.Duration(10+i%5)*time.Millisecond))
	}

	waitFor(t, 5*time.Second, func() bool { return c.count() == n })
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	c := newCollector()
	s := NewScheduler(c.expire)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}

func sessionID(i int) string {
	return fmt.Sprintf("s%03d", i)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
