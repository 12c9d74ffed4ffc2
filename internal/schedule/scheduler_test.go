package schedule

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *recorder) handle(_ context.Context, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
}

func (r *recorder) fired() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

func newTestScheduler() (*Scheduler, *fakeClock, *recorder) {
	clock := &fakeClock{now: time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	return New(rec.handle, WithClock(clock.Now)), clock, rec
}

func TestScheduler_FiresInDeadlineOrder(t *testing.T) {
	s, clock, rec := newTestScheduler()
	base := clock.Now()
	s.Schedule("c", base.Add(3*time.Second))
	s.Schedule("a", base.Add(time.Second))
	s.Schedule("b", base.Add(2*time.Second))

	assert.Zero(t, s.Fire(context.Background()))

	clock.Advance(2 * time.Second)
	assert.Equal(t, 2, s.Fire(context.Background()))
	assert.Equal(t, []string{"a", "b"}, rec.fired())
	assert.Equal(t, 1, s.Len())

	clock.Advance(time.Second)
	s.Fire(context.Background())
	assert.Equal(t, []string{"a", "b", "c"}, rec.fired())
	assert.Zero(t, s.Len())
}

func TestScheduler_CancelIsDeterministic(t *testing.T) {
	s, clock, rec := newTestScheduler()
	s.Schedule("booking-1", clock.Now().Add(time.Second))

	assert.True(t, s.Cancel("booking-1"))
	assert.False(t, s.Cancel("booking-1"))

	clock.Advance(time.Minute)
	assert.Zero(t, s.Fire(context.Background()))
	assert.Empty(t, rec.fired())
}

func TestScheduler_RescheduleReplaces(t *testing.T) {
	s, clock, rec := newTestScheduler()
	base := clock.Now()
	s.Schedule("k", base.Add(time.Second))
	s.Schedule("k", base.Add(10*time.Second))

	at, ok := s.Deadline("k")
	require.True(t, ok)
	assert.Equal(t, base.Add(10*time.Second), at)

	clock.Advance(5 * time.Second)
	assert.Zero(t, s.Fire(context.Background()))

	clock.Advance(5 * time.Second)
	assert.Equal(t, 1, s.Fire(context.Background()))
	assert.Equal(t, []string{"k"}, rec.fired())
}

func TestScheduler_HandlerPanicDoesNotStopOthers(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	rec := &recorder{}
	s := New(func(ctx context.Context, key string) {
		if key == "bad" {
			panic("boom")
		}
		rec.handle(ctx, key)
	}, WithClock(clock.Now))
	s.Schedule("bad", clock.Now())
	s.Schedule("good", clock.Now().Add(time.Millisecond))

	clock.Advance(time.Second)
	assert.Equal(t, 2, s.Fire(context.Background()))
	assert.Equal(t, []string{"good"}, rec.fired())
}

func TestScheduler_CompactsStaleEntries(t *testing.T) {
	s, clock, rec := newTestScheduler()
	for i := 0; i < 500; i++ {
		s.Schedule("same", clock.Now().Add(time.Duration(i)*time.Millisecond))
	}
	assert.Less(t, s.heap.Size(), 100)

	clock.Advance(time.Second)
	s.Fire(context.Background())
	assert.Equal(t, []string{"same"}, rec.fired())
}

func TestScheduler_Run(t *testing.T) {
	rec := &recorder{}
	s := New(rec.handle, WithInterval(5*time.Millisecond))
	for i := 0; i < 3; i++ {
		s.Schedule(fmt.Sprintf("k%d", i), time.Now())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(rec.fired()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
