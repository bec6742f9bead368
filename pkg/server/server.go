// Package server is the HTTP surface of the dashboard: the embedded page,
// the SSE push channel, the JSON snapshots and the metrics endpoint.
package server

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"sync"
	"time"

	fiber "github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	recovermiddleware "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/afolab/afo-dashboard/pkg/control"
	"github.com/afolab/afo-dashboard/pkg/log"
	"github.com/afolab/afo-dashboard/pkg/metrics"
	"github.com/afolab/afo-dashboard/pkg/pipeline"
	"github.com/afolab/afo-dashboard/pkg/types"
	"github.com/afolab/afo-dashboard/pkg/window"
)

//go:embed index.html
var indexHTML string

// heartbeatInterval is how long an SSE stream may sit idle before a comment
// line is written to probe the connection; a stalled client fails the write
// and releases its slot.
const heartbeatInterval = 15 * time.Second

// Options are the delivery tunables, straight from configuration.
type Options struct {
	BatchMax      int
	FlushInterval time.Duration
}

// Server encapsulates the Fiber app, the broadcaster, the rolling window
// store and the control sender.  Safe for concurrent use.
type Server struct {
	app  *fiber.App
	b    *pipeline.Broadcaster
	win  *window.Windower
	ctrl *control.Sender
	opts Options

	latestMu  sync.RWMutex
	latest    types.Sample
	hasLatest bool

	runCtx context.Context
}

func New(b *pipeline.Broadcaster, win *window.Windower, ctrl *control.Sender, opts Options) *Server {
	if opts.BatchMax < 1 {
		opts.BatchMax = 1
	}
	s := &Server{b: b, win: win, ctrl: ctrl, opts: opts}

	app := fiber.New(fiber.Config{
		ServerHeader: "afo-dashboard",
	})
	app.Use(recovermiddleware.New())

	app.Get("/", s.handleIndex)
	app.Get("/events", s.handleSSE)
	app.Get("/api/latest", s.handleLatest)
	app.Get("/api/history", s.handleHistory)
	app.Post("/api/control", s.handleControl)
	app.Post("/api/window", s.handleWindow)
	app.Get("/healthz", s.handleHealthz)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	s.app = app
	return s
}

// Run serves addr until ctx is cancelled.  It also starts the internal tap
// that keeps the latest-sample snapshot and the window store current.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.runCtx = ctx
	go s.trackLatest(ctx)
	go func() {
		<-ctx.Done()
		_ = s.app.Shutdown()
	}()
	log.Logger.Info().Str("addr", addr).Msg("dashboard listening")
	return s.app.Listen(addr)
}

// App exposes the fiber app for in-process tests.
func (s *Server) App() *fiber.App { return s.app }

// trackLatest drains an internal tap: every sample updates the snapshot and
// the window store regardless of how many browser clients are connected.
func (s *Server) trackLatest(ctx context.Context) {
	tap := s.b.Tap(s.opts.BatchMax * 2)
	defer tap.Close()
	for {
		sample, err := tap.Next(ctx)
		if err != nil {
			return
		}
		s.latestMu.Lock()
		s.latest = sample
		s.hasLatest = true
		s.latestMu.Unlock()
		s.win.Push(sample)
	}
}

func (s *Server) handleIndex(c fiber.Ctx) error {
	c.Set("Content-Type", "text/html; charset=utf-8")
	c.Set("Cache-Control", "no-store")
	return c.SendString(indexHTML)
}

func (s *Server) handleHealthz(c fiber.Ctx) error {
	return c.SendString("ok")
}

func (s *Server) handleLatest(c fiber.Ctx) error {
	s.latestMu.RLock()
	sample, ok := s.latest, s.hasLatest
	s.latestMu.RUnlock()
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}
	payload, err := types.MarshalBatch(types.BatchFrom([]types.Sample{sample}))
	if err != nil {
		return err
	}
	c.Set("Content-Type", "application/json; charset=utf-8")
	return c.Send(payload)
}

func (s *Server) handleHistory(c fiber.Ctx) error {
	lo, hi, _ := s.win.Range()
	resp := struct {
		Channels map[string][]window.Point `json:"channels"`
		RangeLo  float64                   `json:"range_lo"`
		RangeHi  float64                   `json:"range_hi"`
		Window   float64                   `json:"window_seconds"`
	}{
		Channels: s.win.Snapshot(),
		RangeLo:  lo,
		RangeHi:  hi,
		Window:   s.win.Window(),
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	c.Set("Content-Type", "application/json; charset=utf-8")
	return c.Send(b)
}

// handleControl relays a UI state change to the simulation host.  The send
// is fire-and-forget; 202 means the request was accepted, not that the
// frame went out.
func (s *Server) handleControl(c fiber.Ctx) error {
	var st types.ControlState
	if err := c.Bind().Body(&st); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("bad control state")
	}
	s.ctrl.Send(st)
	return c.SendStatus(fiber.StatusAccepted)
}

// handleWindow changes the rolling display window live (e.g. 2 s vs 10 s).
func (s *Server) handleWindow(c fiber.Ctx) error {
	var req struct {
		Seconds float64 `json:"seconds"`
	}
	if err := c.Bind().Body(&req); err != nil || req.Seconds <= 0 {
		return c.Status(fiber.StatusBadRequest).SendString("bad window")
	}
	s.win.SetWindow(req.Seconds)
	return c.SendStatus(fiber.StatusNoContent)
}

var sseBufPool = sync.Pool{New: func() any { b := make([]byte, 0, 4096); return &b }}

// buildSSEEvent frames payload as one push-channel event: "data:<JSON>\n\n".
func buildSSEEvent(payload []byte) []byte {
	buf := sseBufPool.Get().(*[]byte)
	*buf = (*buf)[:0]
	*buf = append(*buf, "data:"...)
	*buf = append(*buf, payload...)
	*buf = append(*buf, "\n\n"...)
	out := make([]byte, len(*buf))
	copy(out, *buf)
	sseBufPool.Put(buf)
	return out
}

// handleSSE is the push-channel endpoint.  Over-capacity connects are
// rejected with an explicit 503; registered clients get batched events until
// they disconnect, which is the only cleanup.
func (s *Server) handleSSE(c fiber.Ctx) error {
	sub, err := s.b.Subscribe(s.opts.BatchMax * 2)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("Too many clients")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	c.RequestCtx().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer sub.Close()

		if _, err := w.WriteString("retry: 2000\n\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}

		samples := make([]types.Sample, 0, s.opts.BatchMax)
		var lastFlush time.Time
		for {
			waitCtx, cancel := context.WithTimeout(ctx, heartbeatInterval)
			first, err := sub.Next(waitCtx)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// Idle heartbeat; fails on a stalled client and frees the slot.
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
				continue
			}

			samples = append(samples[:0], first)
			for len(samples) < s.opts.BatchMax {
				next, ok := sub.TryNext()
				if !ok {
					break
				}
				samples = append(samples, next)
			}

			if wait := s.opts.FlushInterval - time.Since(lastFlush); wait > 0 {
				time.Sleep(wait)
			}
			payload, err := types.MarshalBatch(types.BatchFrom(samples))
			if err != nil {
				log.Logger.Error().Err(err).Msg("batch marshal failed")
				continue
			}
			if _, err := w.Write(buildSSEEvent(payload)); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
			lastFlush = time.Now()
		}
	})
	return nil
}
