// Package control sends the 4-value control frame back to the simulation
// host.  Sending is fire-and-forget: only the most recent UI state matters,
// so throttled and failed sends are dropped, never queued.
package control

import (
	"net"
	"sync"
	"time"

	"github.com/afolab/afo-dashboard/pkg/codec"
	"github.com/afolab/afo-dashboard/pkg/log"
	"github.com/afolab/afo-dashboard/pkg/metrics"
	"github.com/afolab/afo-dashboard/pkg/types"
)

// sendTimeout bounds the dial and write of a single control frame.
const sendTimeout = time.Second

// Sender encodes and transmits control frames, rate-limited to one send per
// MinInterval against a monotonic timestamp of the last successful send.
type Sender struct {
	network     string // "udp" or "tcp"
	addr        string
	minInterval time.Duration

	mu   sync.Mutex
	last time.Time

	// test hooks
	now  func() time.Time
	dial func(network, addr string) (net.Conn, error)
}

func NewSender(network, addr string, minInterval time.Duration) *Sender {
	d := net.Dialer{Timeout: sendTimeout}
	return &Sender{
		network:     network,
		addr:        addr,
		minInterval: minInterval,
		now:         time.Now,
		dial:        d.Dial,
	}
}

// Send transmits st unless a send happened within the minimum interval.  It
// reports whether a frame actually went out; callers are free to ignore
// that, the UI never awaits confirmation.
func (s *Sender) Send(st types.ControlState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.last.IsZero() && now.Sub(s.last) < s.minInterval {
		metrics.ControlThrottled.Inc()
		return false
	}

	payload := codec.EncodeControl(st.Zero, st.Motor, st.Assist, st.K)
	conn, err := s.dial(s.network, s.addr)
	if err != nil {
		metrics.ControlFailed.Inc()
		log.Logger.Debug().Err(err).Str("addr", s.addr).Msg("control dial failed")
		return false
	}
	defer conn.Close()
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	_ = conn.SetWriteDeadline(now.Add(sendTimeout))
	if _, err := conn.Write(payload); err != nil {
		metrics.ControlFailed.Inc()
		log.Logger.Debug().Err(err).Str("addr", s.addr).Msg("control send failed")
		return false
	}

	s.last = now
	metrics.ControlSent.Inc()
	return true
}
