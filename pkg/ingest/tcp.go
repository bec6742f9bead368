package ingest

import (
	"context"
	"net"

	"github.com/afolab/afo-dashboard/pkg/codec"
	"github.com/afolab/afo-dashboard/pkg/log"
	"github.com/afolab/afo-dashboard/pkg/metrics"
	"github.com/afolab/afo-dashboard/pkg/pipeline"
)

// TCPReceiver reassembles frames from a length-prefix-free byte stream by
// accumulating exactly layout.Size() bytes per frame.  Connection failures
// are retried with a fixed one-second backoff until cancelled; they are
// never fatal to the process.
type TCPReceiver struct {
	addr string
	sink frameSink
}

func NewTCPReceiver(addr string, layout *codec.Layout, queue *pipeline.SampleQueue) *TCPReceiver {
	return &TCPReceiver{
		addr: addr,
		sink: frameSink{layout: layout, queue: queue},
	}
}

// Run cycles through Connecting -> Receiving -> BackoffWaiting until ctx is
// cancelled.
func (r *TCPReceiver) Run(ctx context.Context) error {
	log.Logger.Info().Str("addr", r.addr).Msg("connecting to telemetry stream")
	var d net.Dialer
	for ctx.Err() == nil {
		conn, err := d.DialContext(ctx, "tcp", r.addr)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Logger.Warn().Err(err).Str("addr", r.addr).Msg("connect failed, backing off")
			sleepCtx(ctx, backoffInterval)
			continue
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		r.receive(ctx, conn)
		conn.Close()
		sleepCtx(ctx, backoffInterval)
	}
	return nil
}

// receive reads frames until the connection breaks or ctx is cancelled.
// Partial frames survive read timeouts; the fill offset is only reset once a
// whole frame has been consumed.
func (r *TCPReceiver) receive(ctx context.Context, conn net.Conn) {
	frame := make([]byte, r.sink.layout.Size())
	fill := 0
	for {
		if ctx.Err() != nil {
			return
		}
		if err := conn.SetReadDeadline(timeNow().Add(readTimeout)); err != nil {
			return
		}
		n, err := conn.Read(frame[fill:])
		fill += n
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			log.Logger.Debug().Err(err).Msg("telemetry stream closed")
			return
		}
		if fill < len(frame) {
			continue
		}
		fill = 0
		metrics.FramesReceived.Inc()
		r.sink.consume(frame)
	}
}
