package ingest

import (
	"context"
	"math"
	"time"

	"github.com/afolab/afo-dashboard/pkg/log"
	"github.com/afolab/afo-dashboard/pkg/metrics"
	"github.com/afolab/afo-dashboard/pkg/pipeline"
	"github.com/afolab/afo-dashboard/pkg/types"
)

// fakeStatusword mimics a drive in the "switched on, target reached" state
// so the dashboard's status colouring behaves like the real rig.
const fakeStatusword = 1591

// SignalGenerator synthesizes deterministic periodic waveforms at the
// nominal sample rate when the simulation host is unreachable.  Downstream
// components cannot tell it apart from a real source.
type SignalGenerator struct {
	queue *pipeline.SampleQueue
	rate  float64
	track dtTracker
}

func NewSignalGenerator(queue *pipeline.SampleQueue, sampleRateHz float64) *SignalGenerator {
	if sampleRateHz <= 0 {
		sampleRateHz = 100
	}
	return &SignalGenerator{queue: queue, rate: sampleRateHz}
}

// Run emits samples until ctx is cancelled.
func (g *SignalGenerator) Run(ctx context.Context) error {
	log.Logger.Info().Float64("rate_hz", g.rate).Msg("simulation host unreachable, generating synthetic data")
	dt := 1.0 / g.rate
	ticker := time.NewTicker(time.Duration(float64(time.Second) * dt))
	defer ticker.Stop()

	t := 0.0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if g.queue.Put(g.At(t)) {
			metrics.QueueEvictions.Inc()
		}
		t += dt
	}
}

// At returns the synthetic sample for elapsed synthetic time t.  Purely
// deterministic; exposed for tests.
func (g *SignalGenerator) At(t float64) types.Sample {
	s := types.Sample{
		T:            t,
		ReceivedAt:   timeNow(),
		Ankle:        20.0 * math.Sin(t),
		Torque:       5.0 * math.Sin(t/2.0),
		DemandTorque: 4.0 * math.Sin(t/2.0+0.5),
		Gait:         math.Mod(t, 1.0) * 100.0,
		Statusword:   fakeStatusword,
		AvgDt:        g.track.observe(t),
	}
	for i := 0; i < types.NumPressure; i++ {
		s.Press[i] = 500.0 + 100.0*math.Sin(t+float64(i))
	}
	for i := 0; i < types.NumIMU; i++ {
		s.IMU[i] = math.Sin(t + float64(i)*0.1)
	}
	return s
}
