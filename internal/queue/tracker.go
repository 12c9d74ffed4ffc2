package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/schedule"
)

const defaultStatusTTL = 10 * time.Minute

type entry struct {
	owner     string
	position  uint64
	executing bool
	view      StatusView // set once terminal
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithStatusTTL sets how long a terminal status stays queryable.
func WithStatusTTL(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.ttl = d
		}
	}
}

// WithTrackerClock replaces time.Now.
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// WithSweepInterval sets how often expired statuses are removed.
func WithSweepInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.sweepEvery = d }
}

// WithTrackerLogger sets the tracker logger.
func WithTrackerLogger(l *zap.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = l.Sugar() }
}

// Tracker maps tracking IDs to the progress of admitted requests.  A
// terminal result never changes, and is forgotten StatusTTL after it was
// recorded.
type Tracker struct {
	mu         sync.Mutex
	entries    map[string]*entry
	processed  uint64
	ttl        time.Duration
	sweepEvery time.Duration
	now        func() time.Time
	cleanup    *schedule.Scheduler
	logger     *zap.SugaredLogger
}

// NewTracker returns an empty Tracker.  Call Run to start removing
// expired statuses.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		entries:    make(map[string]*entry),
		ttl:        defaultStatusTTL,
		sweepEvery: time.Second,
		now:        time.Now,
		logger:     zap.NewNop().Sugar(),
	}
	for _, o := range opts {
		o(t)
	}
	t.cleanup = schedule.New(t.forget,
		schedule.WithClock(t.now),
		schedule.WithInterval(t.sweepEvery),
		schedule.WithLogger(t.logger),
	)
	return t
}

// Begin records a request admitted for owner at the given global
// position.  Reusing a tracking ID would merge two callers' results, so
// it panics.
func (t *Tracker) Begin(id, owner string, position uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[id]; ok {
		panic(fmt.Sprintf("queue: duplicate tracking id %q", id))
	}
	t.entries[id] = &entry{owner: owner, position: position}
}

// MarkExecuting records that the worker picked the request up.
func (t *Tracker) MarkExecuting(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok && e.view.Status == "" {
		e.executing = true
	}
}

// Succeed records the booking created for id.
func (t *Tracker) Succeed(id string, b *model.Booking) bool {
	return t.finish(id, confirmedView(id, b))
}

// Fail records why id failed.
func (t *Tracker) Fail(id string, err error) bool {
	return t.finish(id, failedView(id, err))
}

// finish stores the first terminal view for id and arms its cleanup.
// Later results are ignored.
func (t *Tracker) finish(id string, v StatusView) bool {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok || e.view.Status.Terminal() {
		t.mu.Unlock()
		return false
	}
	e.view = v
	e.executing = false
	t.processed++
	t.mu.Unlock()

	t.cleanup.Schedule(id, t.now().Add(t.ttl))
	return true
}

// View returns the current status of id.  A waiting request reports how
// many requests, itself included, are still ahead of completion; the
// count is 0 once it is executing.
func (t *Tracker) View(id string) StatusView {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return notFoundView(id)
	}
	return t.viewLocked(id, e)
}

// ViewFor is View restricted to the user the request was admitted for.
// Anyone else gets not_found, exactly as for an unknown ID.
func (t *Tracker) ViewFor(id, userID string) StatusView {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok || e.owner != userID {
		return notFoundView(id)
	}
	return t.viewLocked(id, e)
}

func (t *Tracker) viewLocked(id string, e *entry) StatusView {
	if e.view.Status.Terminal() {
		v := e.view
		if v.Booking != nil {
			cp := *v.Booking
			v.Booking = &cp
		}
		return v
	}
	var remaining uint64
	if !e.executing && e.position > t.processed {
		remaining = e.position - t.processed
	}
	return processingView(id, remaining)
}

// Processed returns how many admitted requests reached a terminal state.
func (t *Tracker) Processed() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processed
}

// Len returns the number of tracked requests.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Tracker) forget(_ context.Context, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// Sweep removes every status whose TTL has elapsed.
func (t *Tracker) Sweep(ctx context.Context) int {
	return t.cleanup.Fire(ctx)
}

// Run removes expired statuses until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	return t.cleanup.Run(ctx)
}
