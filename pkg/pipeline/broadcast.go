package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/afolab/afo-dashboard/pkg/log"
	"github.com/afolab/afo-dashboard/pkg/metrics"
	"github.com/afolab/afo-dashboard/pkg/types"
)

// ErrTooManySubscribers is returned by Subscribe when the concurrent-client
// cap is reached.  The caller surfaces this as an explicit over-capacity
// response, never a silent hang.
var ErrTooManySubscribers = errors.New("pipeline: too many subscribers")

// Broadcaster drains the shared SampleQueue with a single dispatcher loop
// and copies every sample into each subscriber's private bounded queue, so
// concurrent subscribers each see the full stream instead of competing for
// samples.  Slow subscribers lose their own oldest samples only.
type Broadcaster struct {
	source *SampleQueue
	max    int

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	capped int
}

// Subscription is one consumer's private view of the stream.
type Subscription struct {
	pending   *SampleQueue
	b         *Broadcaster
	capped    bool
	closeOnce sync.Once
}

// NewBroadcaster wraps source.  maxSubscribers caps Subscribe; Tap is exempt.
func NewBroadcaster(source *SampleQueue, maxSubscribers int) *Broadcaster {
	return &Broadcaster{
		source: source,
		max:    maxSubscribers,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Run dispatches until ctx is cancelled.  It is the sole reader of the
// shared queue.
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		s, err := b.source.Get(ctx)
		if err != nil {
			log.Logger.Debug().Msg("broadcaster stopped")
			return
		}
		metrics.SamplesDispatched.Inc()
		if s.AvgDt > 0 {
			metrics.AvgSampleInterval.Set(s.AvgDt)
		}
		b.mu.Lock()
		for sub := range b.subs {
			if sub.pending.Put(s) {
				metrics.SubscriberEvictions.Inc()
			}
		}
		b.mu.Unlock()
	}
}

// Subscribe registers a capped subscriber with a private buffer of the given
// capacity.  The (max+1)-th concurrent call fails with
// ErrTooManySubscribers; closing any subscription frees its slot.
func (b *Broadcaster) Subscribe(buffer int) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.capped >= b.max {
		metrics.SubscriberRejections.Inc()
		return nil, ErrTooManySubscribers
	}
	sub := &Subscription{pending: NewSampleQueue(buffer), b: b, capped: true}
	b.subs[sub] = struct{}{}
	b.capped++
	metrics.ActiveSubscribers.Set(float64(b.capped))
	return sub, nil
}

// Tap registers an internal, uncapped subscriber (windower feed, CSV log).
func (b *Broadcaster) Tap(buffer int) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &Subscription{pending: NewSampleQueue(buffer), b: b}
	b.subs[sub] = struct{}{}
	return sub
}

// Count returns the number of live capped subscribers.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capped
}

// Next blocks until a sample is delivered or ctx is cancelled.
func (s *Subscription) Next(ctx context.Context) (types.Sample, error) {
	return s.pending.Get(ctx)
}

// TryNext returns an immediately-available sample, if any.
func (s *Subscription) TryNext() (types.Sample, bool) {
	return s.pending.TryGet()
}

// Close releases the subscriber's slot.  Idempotent.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.b.mu.Lock()
		delete(s.b.subs, s)
		if s.capped {
			s.b.capped--
			metrics.ActiveSubscribers.Set(float64(s.b.capped))
		}
		s.b.mu.Unlock()
	})
}
