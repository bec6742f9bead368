package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/afolab/afo-dashboard/pkg/types"
)

func TestQueue_DropOldest(t *testing.T) {
	const capacity = 3
	q := NewSampleQueue(capacity)

	// capacity+1 puts with no gets: exactly the newest `capacity` remain.
	for i := 1; i <= capacity+1; i++ {
		evicted := q.Put(types.Sample{T: float64(i)})
		if wantEvict := i > capacity; evicted != wantEvict {
			t.Errorf("put %d: evicted=%v, want %v", i, evicted, wantEvict)
		}
	}
	if q.Len() != capacity {
		t.Fatalf("len=%d, want %d", q.Len(), capacity)
	}
	for want := 2; want <= capacity+1; want++ {
		s, ok := q.TryGet()
		if !ok {
			t.Fatalf("TryGet ran dry at %d", want)
		}
		if s.T != float64(want) {
			t.Errorf("got t=%v, want %v", s.T, want)
		}
	}
}

func TestQueue_CapacityOne(t *testing.T) {
	q := NewSampleQueue(1)
	q.Put(types.Sample{T: 1})
	q.Put(types.Sample{T: 2})
	q.Put(types.Sample{T: 3})
	s, ok := q.TryGet()
	if !ok || s.T != 3 {
		t.Fatalf("capacity-1 queue must hold only the newest sample, got %v ok=%v", s.T, ok)
	}
	if _, ok := q.TryGet(); ok {
		t.Fatal("queue should be empty")
	}
}

func TestQueue_GetBlocksUntilPut(t *testing.T) {
	q := NewSampleQueue(4)
	done := make(chan types.Sample, 1)
	go func() {
		s, err := q.Get(context.Background())
		if err != nil {
			t.Errorf("Get: %v", err)
		}
		done <- s
	}()

	select {
	case <-done:
		t.Fatal("Get returned before any Put")
	case <-time.After(20 * time.Millisecond):
	}

	q.Put(types.Sample{T: 9})
	select {
	case s := <-done:
		if s.T != 9 {
			t.Errorf("got t=%v, want 9", s.T)
		}
	case <-time.After(time.Second):
		t.Fatal("Get never woke up")
	}
}

func TestQueue_GetCancelled(t *testing.T) {
	q := NewSampleQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Get(ctx)
		errCh <- err
	}()
	cancel()
	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected context error")
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not observe cancellation")
	}
}

func TestQueue_MinimumCapacity(t *testing.T) {
	if got := NewSampleQueue(0).Cap(); got != 1 {
		t.Errorf("Cap()=%d, want 1", got)
	}
	if got := NewSampleQueue(-5).Cap(); got != 1 {
		t.Errorf("Cap()=%d, want 1", got)
	}
}
