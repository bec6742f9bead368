// Package csvlog writes a best-effort rolling CSV of the live stream: the
// newest rows only, rewritten in place on a fixed interval so the file never
// grows without bound.
package csvlog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/afolab/afo-dashboard/pkg/log"
	"github.com/afolab/afo-dashboard/pkg/types"
)

// header matches the layout the offline viewer expects.
var header = buildHeader()

func buildHeader() string {
	cols := []string{"time", "ankle_angle"}
	for i := 1; i <= types.NumPressure; i++ {
		cols = append(cols, types.PressureSignal(i))
	}
	return strings.Join(cols, ",")
}

// Logger retains the newest maxRows rows in memory and flushes them to path
// from a background goroutine.  Log never blocks on disk I/O.
type Logger struct {
	path          string
	flushInterval time.Duration

	mu   sync.Mutex
	ring []string
	head int
	used int

	stop chan struct{}
	done chan struct{}
}

func New(path string, flushInterval time.Duration, maxRows int) (*Logger, error) {
	if maxRows < 1 {
		maxRows = 1
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	if err := os.WriteFile(path, []byte(header+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("csvlog: %w", err)
	}
	l := &Logger{
		path:          path,
		flushInterval: flushInterval,
		ring:          make([]string, maxRows),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go l.worker()
	return l, nil
}

// Log records one sample's row, evicting the oldest row at capacity.
func (l *Logger) Log(s types.Sample) {
	var b strings.Builder
	fmt.Fprintf(&b, "%.4f,%.4f", s.T, s.Ankle)
	for _, p := range s.Press {
		fmt.Fprintf(&b, ",%.1f", p)
	}
	l.mu.Lock()
	if l.used == len(l.ring) {
		l.ring[l.head] = b.String()
		l.head = (l.head + 1) % len(l.ring)
	} else {
		l.ring[(l.head+l.used)%len(l.ring)] = b.String()
		l.used++
	}
	l.mu.Unlock()
}

func (l *Logger) worker() {
	defer close(l.done)
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			l.Flush()
			return
		case <-ticker.C:
			l.Flush()
		}
	}
}

// Flush rewrites the file with the header plus the retained rows.  Disk
// errors are logged and otherwise ignored; logging is best-effort.
func (l *Logger) Flush() {
	l.mu.Lock()
	rows := make([]string, 0, l.used)
	for i := 0; i < l.used; i++ {
		rows = append(rows, l.ring[(l.head+i)%len(l.ring)])
	}
	l.mu.Unlock()

	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	for _, row := range rows {
		b.WriteString(row)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(l.path, []byte(b.String()), 0o644); err != nil {
		log.Logger.Warn().Err(err).Str("path", l.path).Msg("csv flush failed")
	}
}

// Close stops the worker after a final flush.
func (l *Logger) Close() {
	close(l.stop)
	<-l.done
}
