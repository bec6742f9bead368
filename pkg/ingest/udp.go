package ingest

import (
	"context"
	"net"
	"sync"

	"github.com/afolab/afo-dashboard/pkg/codec"
	"github.com/afolab/afo-dashboard/pkg/log"
	"github.com/afolab/afo-dashboard/pkg/metrics"
	"github.com/afolab/afo-dashboard/pkg/pipeline"
)

// UDPReceiver receives one telemetry frame per datagram.  A datagram of the
// wrong length is a no-op continue, never an error; socket timeouts are the
// poll-for-cancellation mechanism, not failures.
type UDPReceiver struct {
	addr string
	sink frameSink

	mu    sync.Mutex
	bound net.Addr
}

func NewUDPReceiver(addr string, layout *codec.Layout, queue *pipeline.SampleQueue) *UDPReceiver {
	return &UDPReceiver{
		addr: addr,
		sink: frameSink{layout: layout, queue: queue},
	}
}

// LocalAddr returns the bound address once Run has started, nil before.
func (r *UDPReceiver) LocalAddr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bound
}

// Run binds and receives until ctx is cancelled.  The bind error is the only
// fatal condition; everything after that is retried in place.
func (r *UDPReceiver) Run(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", r.addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	r.mu.Lock()
	r.bound = conn.LocalAddr()
	r.mu.Unlock()
	log.Logger.Info().Str("addr", r.addr).Msg("listening for telemetry datagrams")

	expected := r.sink.layout.Size()
	// One spare byte so oversized datagrams read as expected+1 and fail the
	// length check instead of being silently truncated to a valid size.
	buf := make([]byte, expected+1)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := conn.SetReadDeadline(timeNow().Add(readTimeout)); err != nil {
			return err
		}
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			log.Logger.Warn().Err(err).Msg("udp receive failed")
			continue
		}
		metrics.FramesReceived.Inc()
		if n != expected {
			metrics.FramesMalformed.Inc()
			continue
		}
		r.sink.consume(buf[:n])
	}
}
