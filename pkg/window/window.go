// Package window maintains the rolling display window: a capped ring of
// (time, value) points per channel with FIFO eviction.  The cap tracks the
// observed arrival rate, so retention self-adjusts instead of assuming the
// nominal sample rate.  The server keeps one instance for /api/history; the
// browser client runs the identical algorithm in JS.
package window

import (
	"math"
	"sync"

	"github.com/afolab/afo-dashboard/pkg/types"
)

// Point is one retained chart point.
type Point struct {
	T float64 `json:"t"`
	V float64 `json:"v"`
}

// ring is a fixed-capacity FIFO of points.
type ring struct {
	pts   []Point
	head  int
	count int
}

func newRing(capacity int) *ring {
	return &ring{pts: make([]Point, capacity)}
}

func (r *ring) push(p Point) {
	if r.count == len(r.pts) {
		r.pts[r.head] = p
		r.head = (r.head + 1) % len(r.pts)
		return
	}
	r.pts[(r.head+r.count)%len(r.pts)] = p
	r.count++
}

// ordered returns the retained points oldest-first.
func (r *ring) ordered() []Point {
	if r.count == 0 {
		return nil
	}
	out := make([]Point, r.count)
	if r.count < len(r.pts) {
		copy(out, r.pts[:r.count])
	} else {
		n := copy(out, r.pts[r.head:])
		copy(out[n:], r.pts[:r.head])
	}
	return out
}

// resize rebuilds the ring with a new capacity, keeping the newest points.
func (r *ring) resize(capacity int) *ring {
	if capacity == len(r.pts) {
		return r
	}
	pts := r.ordered()
	if len(pts) > capacity {
		pts = pts[len(pts)-capacity:]
	}
	nr := newRing(capacity)
	for _, p := range pts {
		nr.push(p)
	}
	return nr
}

// Windower holds one ring per channel and the visible time range.
type Windower struct {
	mu          sync.Mutex
	windowSec   float64
	nominalRate float64
	avgDt       float64
	cap         int
	channels    map[string]*ring
	latestT     float64
	hasData     bool
}

func New(windowSeconds, nominalRateHz float64) *Windower {
	w := &Windower{
		windowSec:   windowSeconds,
		nominalRate: nominalRateHz,
		channels:    make(map[string]*ring),
	}
	w.cap = w.computeCap()
	return w
}

// computeCap derives the per-channel capacity: round(window / avg_dt) when a
// live rate estimate exists, window * nominal rate otherwise.  Never below 2.
func (w *Windower) computeCap() int {
	var c int
	if w.avgDt > 0 {
		c = int(math.Round(w.windowSec / w.avgDt))
	} else {
		c = int(w.windowSec * w.nominalRate)
	}
	if c < 2 {
		c = 2
	}
	return c
}

// Push appends one sample's points to every channel ring, updating the rate
// estimate and cap first.
func (w *Windower) Push(s types.Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if s.AvgDt > 0 && s.AvgDt != w.avgDt {
		w.avgDt = s.AvgDt
		w.applyCapLocked(w.computeCap())
	}

	w.appendLocked("ankle", s.T, s.Ankle)
	w.appendLocked("torque", s.T, s.Torque)
	w.appendLocked("demand_torque", s.T, s.DemandTorque)
	w.appendLocked("gait", s.T, s.Gait)
	for i, v := range s.Press {
		w.appendLocked(types.PressureSignal(i+1), s.T, v)
	}
	for i, v := range s.IMU {
		w.appendLocked(types.IMUSignal(i+1), s.T, v)
	}
	w.latestT = s.T
	w.hasData = true
}

func (w *Windower) appendLocked(channel string, t, v float64) {
	r, ok := w.channels[channel]
	if !ok {
		r = newRing(w.cap)
		w.channels[channel] = r
	}
	r.push(Point{T: t, V: v})
}

func (w *Windower) applyCapLocked(capacity int) {
	if capacity == w.cap {
		return
	}
	w.cap = capacity
	for name, r := range w.channels {
		w.channels[name] = r.resize(capacity)
	}
}

// SetWindow changes the visible window live.  Only the cap and the range
// computation change; channels keep their (possibly trimmed) data.
func (w *Windower) SetWindow(seconds float64) {
	if seconds <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.windowSec = seconds
	w.applyCapLocked(w.computeCap())
}

// Window returns the current window length in seconds.
func (w *Windower) Window() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.windowSec
}

// Cap returns the current per-channel capacity.
func (w *Windower) Cap() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cap
}

// Range returns the visible x-axis range [latest - window, latest].  ok is
// false until at least one sample has been pushed.
func (w *Windower) Range() (lo, hi float64, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hasData {
		return 0, 0, false
	}
	return w.latestT - w.windowSec, w.latestT, true
}

// Snapshot returns the retained points per channel, oldest-first.
func (w *Windower) Snapshot() map[string][]Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string][]Point, len(w.channels))
	for name, r := range w.channels {
		if pts := r.ordered(); len(pts) > 0 {
			out[name] = pts
		}
	}
	return out
}
