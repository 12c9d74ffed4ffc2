// Package queue admits booking requests without blocking the caller and
// executes them one pass at a time in arrival order.  Callers learn the
// outcome by polling the Tracker with the tracking ID they were given.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/ticket-booking/internal/config"
	"github.com/iliyamo/ticket-booking/internal/metrics"
	"github.com/iliyamo/ticket-booking/internal/model"
	"github.com/iliyamo/ticket-booking/internal/service"
)

// ErrShuttingDown fails requests that were still waiting when the worker
// stopped, and new requests offered after that.
var ErrShuttingDown = fmt.Errorf("%w: admission queue is shutting down", model.ErrInternal)

// ErrAlreadyRunning is returned by Run when another Run is active.
var ErrAlreadyRunning = errors.New("queue: worker already running")

// Executor runs one admitted request.
type Executor interface {
	Execute(ctx context.Context, userID string, req service.BookingRequest) (*model.Booking, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, userID string, req service.BookingRequest) (*model.Booking, error)

func (f ExecutorFunc) Execute(ctx context.Context, userID string, req service.BookingRequest) (*model.Booking, error) {
	return f(ctx, userID, req)
}

// Item is a request waiting in the queue.
type Item struct {
	TrackingID string
	UserID     string
	Request    service.BookingRequest
	Position   uint64
}

// Admission is returned to the caller on enqueue.
type Admission struct {
	TrackingID    string `json:"tracking_id"`
	Status        Status `json:"status"`
	QueuePosition uint64 `json:"queue_position"`
}

// AdmissionQueue is a FIFO of booking requests drained by a single
// worker (Run).  Enqueue never waits for execution.
//
// The backing slice is consumed through a head index and compacted once
// the consumed prefix passes CompactThreshold and outweighs the live
// tail.
type AdmissionQueue struct {
	exec    Executor
	tracker *Tracker
	cfg     config.QueueConfig
	logger  *zap.SugaredLogger

	mu         sync.Mutex
	items      []*Item
	head       int
	admitted   uint64
	processing bool
	running    bool
	closed     bool

	wake chan struct{}
}

// NewAdmissionQueue returns a queue that runs requests through exec and
// reports them to tracker.
func NewAdmissionQueue(exec Executor, tracker *Tracker, cfg config.QueueConfig, logger *zap.Logger) *AdmissionQueue {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.CompactThreshold < 1 {
		cfg.CompactThreshold = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdmissionQueue{
		exec:    exec,
		tracker: tracker,
		cfg:     cfg,
		logger:  logger.Sugar(),
		wake:    make(chan struct{}, 1),
	}
}

// Tracker returns the status tracker the queue reports to.
func (q *AdmissionQueue) Tracker() *Tracker { return q.tracker }

// Enqueue validates the request and admits it.  It returns before any
// stock is touched; the returned position is the request's index in the
// global admission order.
func (q *AdmissionQueue) Enqueue(userID string, req service.BookingRequest) (Admission, error) {
	if strings.TrimSpace(userID) == "" {
		return Admission{}, fmt.Errorf("%w: user is required", model.ErrInvalid)
	}
	if err := req.Validate(); err != nil {
		return Admission{}, err
	}

	item, wake, err := q.push(userID, req)
	if err != nil {
		return Admission{}, err
	}
	if wake {
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}
	metrics.Admissions.Inc()
	return Admission{TrackingID: item.TrackingID, Status: StatusProcessing, QueuePosition: item.Position}, nil
}

func (q *AdmissionQueue) push(userID string, req service.BookingRequest) (*Item, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, false, ErrShuttingDown
	}
	q.admitted++
	item := &Item{
		TrackingID: fmt.Sprintf("%s-%d", userID, q.admitted),
		UserID:     userID,
		Request:    req,
		Position:   q.admitted,
	}
	q.tracker.Begin(item.TrackingID, userID, item.Position)
	q.items = append(q.items, item)
	metrics.QueueDepth.Set(float64(len(q.items) - q.head))
	return item, !q.processing, nil
}

// Status returns the view of a tracking ID regardless of who owns it.
func (q *AdmissionQueue) Status(trackingID string) StatusView {
	return q.tracker.View(trackingID)
}

// StatusFor returns the view of a tracking ID as seen by userID: a
// request admitted for someone else reads as not_found.
func (q *AdmissionQueue) StatusFor(trackingID, userID string) StatusView {
	return q.tracker.ViewFor(trackingID, userID)
}

// Len returns the number of waiting requests.
func (q *AdmissionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Draining reports whether the worker is in a drain pass.
func (q *AdmissionQueue) Draining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing
}

// Closed reports whether the queue stopped admitting requests.
func (q *AdmissionQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Run is the worker.  It sleeps until a request arrives, drains the
// queue, and goes back to sleep.  When ctx is done it finishes the pass
// it is in, fails whatever is still waiting and returns.
func (q *AdmissionQueue) Run(ctx context.Context) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return ErrAlreadyRunning
	}
	q.running = true
	q.mu.Unlock()
	defer q.shutdown()

	q.logger.Infof("admission worker started (batch=%d)", q.cfg.BatchSize)
	for {
		// Requests admitted before Run started did not signal.
		q.drain(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-q.wake:
		}
	}
}

// drain executes batches until the queue is observed empty.
func (q *AdmissionQueue) drain(ctx context.Context) {
	for ctx.Err() == nil {
		batch := q.next()
		if batch == nil {
			return
		}
		q.execute(ctx, batch)
	}
}

// next takes the next batch off the head.  When the queue is empty it
// clears the processing flag under the same lock, so a concurrent
// Enqueue either lands in this pass or signals a new one.
func (q *AdmissionQueue) next() []*Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	waiting := len(q.items) - q.head
	if waiting == 0 {
		q.processing = false
		return nil
	}
	q.processing = true
	n := min(waiting, q.cfg.BatchSize)
	batch := make([]*Item, n)
	copy(batch, q.items[q.head:q.head+n])
	clear(q.items[q.head : q.head+n])
	q.head += n
	q.compactLocked()
	metrics.QueueDepth.Set(float64(len(q.items) - q.head))
	return batch
}

func (q *AdmissionQueue) compactLocked() {
	live := len(q.items) - q.head
	if q.head < q.cfg.CompactThreshold || q.head < live {
		return
	}
	copy(q.items, q.items[q.head:])
	clear(q.items[live:])
	q.items = q.items[:live]
	q.head = 0
}

// execute runs a batch.  Batch members run concurrently; the store's
// conditional decrement keeps them from selling the same stock twice.
func (q *AdmissionQueue) execute(ctx context.Context, batch []*Item) {
	if len(batch) == 1 {
		q.process(ctx, batch[0])
		return
	}
	var g errgroup.Group
	g.SetLimit(len(batch))
	for _, it := range batch {
		it := it
		g.Go(func() error {
			q.process(ctx, it)
			return nil
		})
	}
	_ = g.Wait()
}

// process runs one item to completion.  Cancelling ctx does not abort
// it, and a panic is recorded as an internal failure.
func (q *AdmissionQueue) process(ctx context.Context, it *Item) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Errorf("booking %s panicked: %v", it.TrackingID, r)
			q.tracker.Fail(it.TrackingID, model.Internal("execute booking", fmt.Errorf("panic: %v", r)))
			metrics.Outcomes.WithLabelValues(string(StatusFailed), string(model.KindInternal)).Inc()
		}
	}()
	q.tracker.MarkExecuting(it.TrackingID)

	start := time.Now()
	b, err := q.exec.Execute(context.WithoutCancel(ctx), it.UserID, it.Request)
	metrics.ExecutionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		kind := model.KindOf(err)
		if kind == model.KindInternal {
			q.logger.Errorf("booking %s failed: %v", it.TrackingID, err)
		} else {
			q.logger.Infof("booking %s rejected (%s): %v", it.TrackingID, kind, err)
		}
		q.tracker.Fail(it.TrackingID, err)
		metrics.Outcomes.WithLabelValues(string(StatusFailed), string(kind)).Inc()
		return
	}
	q.tracker.Succeed(it.TrackingID, b)
	metrics.Outcomes.WithLabelValues(string(StatusConfirmed), "").Inc()
}

// shutdown closes the queue and fails every request still waiting.
func (q *AdmissionQueue) shutdown() {
	q.mu.Lock()
	q.closed = true
	q.running = false
	q.processing = false
	left := append([]*Item(nil), q.items[q.head:]...)
	q.items = nil
	q.head = 0
	q.mu.Unlock()

	metrics.QueueDepth.Set(0)
	for _, it := range left {
		q.tracker.Fail(it.TrackingID, ErrShuttingDown)
		metrics.Outcomes.WithLabelValues(string(StatusFailed), string(model.KindInternal)).Inc()
	}
	if len(left) > 0 {
		q.logger.Warnf("admission worker stopped with %d waiting requests", len(left))
	}
}
