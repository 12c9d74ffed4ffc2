// Package schedule runs keyed one-shot deadlines.  Deadlines live in a
// min-heap that a reaper loop polls; cancelling a key removes it
// deterministically, so a cancelled deadline can never fire afterwards.
package schedule

import (
	"context"
	"sync"
	"time"

	pq "github.com/emirpasic/gods/queues/priorityqueue"
	"go.uber.org/zap"
)

// Handler is called once for every key whose deadline passed.
type Handler func(ctx context.Context, key string)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets how often Run polls the heap.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger sets the logger used to report handler panics.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Scheduler) { s.logger = l }
}

type deadline struct {
	key string
	at  time.Time
	gen uint64
}

func byDeadline(a, b interface{}) int {
	da, db := a.(deadline), b.(deadline)
	switch {
	case da.at.Before(db.at):
		return -1
	case da.at.After(db.at):
		return 1
	case da.gen < db.gen:
		return -1
	case da.gen > db.gen:
		return 1
	}
	return 0
}

// Scheduler holds at most one live deadline per key.  Heap entries whose
// generation no longer matches the live one are stale and skipped.
type Scheduler struct {
	mu       sync.Mutex
	heap     *pq.Queue
	live     map[string]deadline
	seq      uint64
	handler  Handler
	interval time.Duration
	now      func() time.Time
	logger   *zap.SugaredLogger
}

// New returns a Scheduler that calls h for due keys.
func New(h Handler, opts ...Option) *Scheduler {
	s := &Scheduler{
		heap:     pq.NewWith(byDeadline),
		live:     make(map[string]deadline),
		handler:  h,
		interval: time.Second,
		now:      time.Now,
		logger:   zap.NewNop().Sugar(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Schedule arms key to fire at at, replacing any earlier deadline for
// the same key.
func (s *Scheduler) Schedule(key string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	d := deadline{key: key, at: at, gen: s.seq}
	s.live[key] = d
	s.heap.Enqueue(d)
	s.compactLocked()
}

// Cancel disarms key and reports whether it was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live[key]
	delete(s.live, key)
	return ok
}

// Deadline returns the pending deadline of key.
func (s *Scheduler) Deadline(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.live[key]
	return d.at, ok
}

// Len returns the number of pending keys.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// compactLocked rebuilds the heap once stale entries dominate it.
func (s *Scheduler) compactLocked() {
	if s.heap.Size() < 64 || s.heap.Size() < 4*len(s.live) {
		return
	}
	s.heap.Clear()
	for _, d := range s.live {
		s.heap.Enqueue(d)
	}
}

// due pops every live deadline at or before now, in deadline order.
func (s *Scheduler) due(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for {
		v, ok := s.heap.Peek()
		if !ok {
			break
		}
		d := v.(deadline)
		if d.at.After(now) {
			break
		}
		s.heap.Dequeue()
		if cur, ok := s.live[d.key]; !ok || cur.gen != d.gen {
			continue
		}
		delete(s.live, d.key)
		keys = append(keys, d.key)
	}
	return keys
}

// Fire runs the handler for every key that is due now and returns how
// many fired.  Handlers run outside the lock, so they may schedule or
// cancel keys themselves.
func (s *Scheduler) Fire(ctx context.Context) int {
	keys := s.due(s.now())
	for _, k := range keys {
		s.call(ctx, k)
	}
	return len(keys)
}

func (s *Scheduler) call(ctx context.Context, key string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("deadline handler for %s panicked: %v", key, r)
		}
	}()
	s.handler(ctx, key)
}

// Run polls for due deadlines until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Fire(ctx)
		}
	}
}
