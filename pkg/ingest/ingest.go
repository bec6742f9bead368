// Package ingest owns the network socket and feeds decoded samples into the
// pipeline.  Three interchangeable sources share one queue contract: a UDP
// datagram receiver, a TCP stream receiver, and a synthetic signal generator
// used when the simulation host is unreachable.
package ingest

import (
	"context"
	"time"

	"github.com/afolab/afo-dashboard/pkg/codec"
	"github.com/afolab/afo-dashboard/pkg/metrics"
	"github.com/afolab/afo-dashboard/pkg/pipeline"
	"github.com/afolab/afo-dashboard/pkg/types"
)

// readTimeout bounds every blocking socket read so the loops can observe
// cancellation promptly.
const readTimeout = time.Second

// backoffInterval is the fixed sleep between stream-transport reconnects.
const backoffInterval = time.Second

// timeNow is swapped out by tests.
var timeNow = time.Now

// dtTracker keeps the running mean of simulation-time deltas:
// avg = (avg*count + dt) / (count + 1).
type dtTracker struct {
	prev    float64
	hasPrev bool
	avg     float64
	count   int
}

func (tr *dtTracker) observe(t float64) float64 {
	if tr.hasPrev {
		dt := t - tr.prev
		tr.avg = (tr.avg*float64(tr.count) + dt) / float64(tr.count+1)
		tr.count++
	}
	tr.prev = t
	tr.hasPrev = true
	return tr.avg
}

// frameSink turns valid frames into samples and enqueues them.  Shared by
// both transport variants; never returns an error, since a bad frame is a
// drop, not a failure.
type frameSink struct {
	layout *codec.Layout
	queue  *pipeline.SampleQueue
	track  dtTracker
}

func (fs *frameSink) consume(frame []byte) {
	sig, err := fs.layout.DecodeSignals(frame)
	if err != nil {
		// Length is checked before we get here; this only trips when the
		// transport hands over a wrong-size buffer.
		metrics.FramesMalformed.Inc()
		return
	}
	avg := fs.track.observe(sig[types.SignalTime])
	sample := types.SampleFromSignals(sig, time.Now(), avg)
	if fs.queue.Put(sample) {
		metrics.QueueEvictions.Inc()
	}
}

// sleepCtx sleeps for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
