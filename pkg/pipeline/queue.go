// Package pipeline carries samples from the ingest loop to the delivery
// layer: a bounded drop-oldest hand-off queue plus a broadcaster that fans
// each sample out to per-subscriber queues.
package pipeline

import (
	"context"
	"sync"

	"github.com/afolab/afo-dashboard/pkg/types"
)

// SampleQueue is a bounded hand-off buffer between producer and consumer.
// Put never blocks: at capacity the oldest undelivered sample is evicted so
// the newest is always admitted.  Get blocks until a sample is available.
type SampleQueue struct {
	mu    sync.Mutex
	buf   []types.Sample
	head  int
	count int
	wake  chan struct{}
}

// NewSampleQueue creates a queue with the given capacity; capacities below 1
// are raised to 1.
func NewSampleQueue(capacity int) *SampleQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &SampleQueue{
		buf:  make([]types.Sample, capacity),
		wake: make(chan struct{}, 1),
	}
}

// Put admits s, evicting the oldest queued sample if the queue is full.
// It reports whether an eviction happened.
func (q *SampleQueue) Put(s types.Sample) bool {
	q.mu.Lock()
	evicted := false
	if q.count == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		evicted = true
	}
	q.buf[(q.head+q.count)%len(q.buf)] = s
	q.count++
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return evicted
}

// Get blocks until a sample is available or ctx is cancelled.
func (q *SampleQueue) Get(ctx context.Context) (types.Sample, error) {
	for {
		if s, ok := q.TryGet(); ok {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return types.Sample{}, ctx.Err()
		case <-q.wake:
		}
	}
}

// TryGet removes and returns the oldest sample without blocking.
func (q *SampleQueue) TryGet() (types.Sample, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return types.Sample{}, false
	}
	s := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return s, true
}

// Len returns the number of queued samples.
func (q *SampleQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the queue capacity.
func (q *SampleQueue) Cap() int { return len(q.buf) }
