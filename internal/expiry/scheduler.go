// Package expiry guarantees that every pending reflection session is
// eventually resolved even if the author never reacts. Deadlines are kept
// in a min-heap and a single coordinating goroutine sleeps until the
// earliest one, so overhead stays bounded no matter how many sessions are
// live (no per-session timers).
package expiry

import (
	"container/heap"
	"context"
	"log"
	"time"
)

type entry struct {
	sessionID string
	deadline  time.Time
	index     int
	removed   bool
}

// deadlineHeap orders entries by soonest deadline first.
type deadlineHeap []*entry

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h deadlineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *deadlineHeap) Push(x interface{}) { e := x.(*entry); e.index = len(*h); *h = append(*h, e) }
func (h *deadlineHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// ExpireFunc is called once per session when its deadline passes. It must
// tolerate the session having already been resolved by the user; losing
// that race is not an error.
type ExpireFunc func(sessionID string)

// Scheduler tracks per-session deadlines and fires the expire callback at
// or after each deadline, never before. Add and Remove are safe to call
// from any goroutine while Run is active.
type Scheduler struct {
	expire ExpireFunc
	addCh  chan *entry
	rmCh   chan string
	now    func() time.Time
}

// NewScheduler creates a Scheduler that invokes expire for each due session.
func NewScheduler(expire ExpireFunc) *Scheduler {
	return &Scheduler{
		expire: expire,
		addCh:  make(chan *entry, 64),
		rmCh:   make(chan string, 64),
		now:    time.Now,
	}
}

// Add registers a session deadline. Must not be called after Run returns.
func (s *Scheduler) Add(sessionID string, deadline time.Time) {
	s.addCh <- &entry{sessionID: sessionID, deadline: deadline}
}

// Remove drops a session's deadline, typically after a user resolution.
// Removal is lazy: the entry is marked and skipped when it surfaces.
func (s *Scheduler) Remove(sessionID string) {
	s.rmCh <- sessionID
}

// Run is the coordinating loop. It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	h := &deadlineHeap{}
	heap.Init(h)
	byID := make(map[string]*entry)

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	rearm := func() {
		if armed {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			armed = false
		}
		// Drop already-removed entries off the top before arming. A stale
		// entry may share its ID with a live re-added one, so only clear
		// the mapping when it still points at the popped entry.
		for h.Len() > 0 && (*h)[0].removed {
			e := heap.Pop(h).(*entry)
			if byID[e.sessionID] == e {
				delete(byID, e.sessionID)
			}
		}
		if h.Len() == 0 {
			return
		}
		d := (*h)[0].deadline.Sub(s.now())
		if d < 0 {
			d = 0
		}
		timer.Reset(d)
		armed = true
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("[expiry] scheduler stopped (%d deadlines outstanding)", h.Len())
			return

		case e := <-s.addCh:
			if old, ok := byID[e.sessionID]; ok {
				old.removed = true
			}
			byID[e.sessionID] = e
			heap.Push(h, e)
			rearm()

		case id := <-s.rmCh:
			if e, ok := byID[id]; ok {
				e.removed = true
				delete(byID, id)
			}
			rearm()

		case <-timer.C:
			armed = false
			now := s.now()
			for h.Len() > 0 {
				top := (*h)[0]
				if top.removed {
					heap.Pop(h)
					if byID[top.sessionID] == top {
						delete(byID, top.sessionID)
					}
					continue
				}
				if top.deadline.After(now) {
					break
				}
				heap.Pop(h)
				delete(byID, top.sessionID)
				s.expire(top.sessionID)
			}
			rearm()
		}
	}
}
