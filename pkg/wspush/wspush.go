// Package wspush is the WebSocket twin of the SSE endpoint: the same Batch
// JSON over a dedicated HTTP server, for clients that prefer a socket.  It
// shares the broadcaster (and therefore the client cap) with the SSE side,
// and uses ping/pong liveness so a dead client releases its slot instead of
// tying it up indefinitely.
package wspush

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/afolab/afo-dashboard/pkg/log"
	"github.com/afolab/afo-dashboard/pkg/pipeline"
	"github.com/afolab/afo-dashboard/pkg/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard has no auth; any origin may subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server serves /ws on its own listener.
type Server struct {
	srv           *http.Server
	b             *pipeline.Broadcaster
	batchMax      int
	flushInterval time.Duration
	ctx           context.Context
}

func NewServer(addr string, b *pipeline.Broadcaster, batchMax int, flushInterval time.Duration) *Server {
	s := &Server{
		b:             b,
		batchMax:      batchMax,
		flushInterval: flushInterval,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.ctx = ctx
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()
	log.Logger.Info().Str("addr", s.srv.Addr).Msg("websocket push listening")
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sub, err := s.b.Subscribe(s.batchMax * 2)
	if err != nil {
		http.Error(w, "Too many clients", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		log.Logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := uuid.NewString()
	log.Logger.Info().Str("client", id).Msg("websocket client connected")

	ctx, cancel := context.WithCancel(s.ctx)
	go s.readPump(conn, cancel)
	s.writePump(ctx, conn, sub, id)

	cancel()
	sub.Close()
	conn.Close()
	log.Logger.Info().Str("client", id).Msg("websocket client disconnected")
}

// readPump consumes client frames solely to service pong handling and to
// notice the close.
func (s *Server) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump mirrors the SSE delivery loop: block for one sample, drain what
// is immediately available up to the batch cap, throttle flushes.
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, sub *pipeline.Subscription, id string) {
	samples := make([]types.Sample, 0, s.batchMax)
	var lastFlush time.Time
	lastPing := time.Now()
	for {
		if time.Since(lastPing) >= pingPeriod {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			lastPing = time.Now()
		}
		waitCtx, cancel := context.WithTimeout(ctx, pingPeriod)
		first, err := sub.Next(waitCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Idle stream: keep the connection alive and let a dead client
			// fail the write so its slot is reclaimed.
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			lastPing = time.Now()
			continue
		}
		samples = append(samples[:0], first)
		for len(samples) < s.batchMax {
			next, ok := sub.TryNext()
			if !ok {
				break
			}
			samples = append(samples, next)
		}

		if wait := s.flushInterval - time.Since(lastFlush); wait > 0 {
			time.Sleep(wait)
		}
		payload, err := types.MarshalBatch(types.BatchFrom(samples))
		if err != nil {
			log.Logger.Error().Err(err).Msg("batch marshal failed")
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Logger.Debug().Err(err).Str("client", id).Msg("websocket write failed")
			return
		}
		lastFlush = time.Now()
	}
}
