package config

import "time"

// QueueConfig tunes the admission queue, its status tracker and the
// booking expiry reaper.
type QueueConfig struct {
	// BatchSize is the number of items executed together in one pass.
	// 1 keeps execution strictly sequential.
	BatchSize int
	// CompactThreshold is the consumed prefix length after which the
	// queue's backing slice is compacted.
	CompactThreshold int
	// StatusTTL is how long a terminal status stays queryable.
	StatusTTL time.Duration
	// BookingTTL is how long a pending booking waits for confirmation.
	BookingTTL time.Duration
	// ReapInterval is the polling period of the deadline schedulers.
	ReapInterval time.Duration
}

// LoadQueueConfig reads QUEUE_* variables, falling back to defaults and
// clamping values that would stall the worker.
func LoadQueueConfig() QueueConfig {
	c := QueueConfig{
		BatchSize:        envInt("QUEUE_BATCH_SIZE", 1),
		CompactThreshold: envInt("QUEUE_COMPACT_THRESHOLD", 1024),
		StatusTTL:        envDur("QUEUE_STATUS_TTL", 10*time.Minute),
		BookingTTL:       envDur("BOOKING_TTL", 5*time.Minute),
		ReapInterval:     envDur("QUEUE_REAP_INTERVAL", time.Second),
	}
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.CompactThreshold < 1 {
		c.CompactThreshold = 1
	}
	if c.StatusTTL <= 0 {
		c.StatusTTL = 10 * time.Minute
	}
	if c.BookingTTL <= 0 {
		c.BookingTTL = 5 * time.Minute
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = time.Second
	}
	return c
}
