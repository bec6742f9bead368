package wspush

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/afolab/afo-dashboard/pkg/pipeline"
	"github.com/afolab/afo-dashboard/pkg/types"
)

func newTestPush(t *testing.T, maxClients int) (*Server, *pipeline.SampleQueue, *httptest.Server) {
	t.Helper()
	q := pipeline.NewSampleQueue(8)
	b := pipeline.NewBroadcaster(q, maxClients)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go b.Run(ctx)

	s := NewServer("", b, 50, time.Millisecond)
	s.ctx = ctx
	ts := httptest.NewServer(http.HandlerFunc(s.handleWS))
	t.Cleanup(ts.Close)
	return s, q, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func TestPush_DeliversBatches(t *testing.T) {
	_, q, ts := newTestPush(t, 5)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	resp.Body.Close()

	q.Put(types.Sample{T: 1.5, Statusword: 1591})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var batch struct {
		T          []float64 `json:"t"`
		Statusword float64   `json:"statusword"`
	}
	if err := json.Unmarshal(payload, &batch); err != nil {
		t.Fatalf("unmarshal %q: %v", payload, err)
	}
	if len(batch.T) < 1 || batch.T[0] != 1.5 || batch.Statusword != 1591 {
		t.Errorf("batch: %+v", batch)
	}
}

func TestPush_RejectsOverCapacity(t *testing.T) {
	_, _, ts := newTestPush(t, 1)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	resp.Body.Close()

	// Second client exceeds the shared cap.
	httpResp, err := http.Get(ts.URL + "/ws")
	if err != nil {
		t.Fatal(err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", httpResp.StatusCode)
	}
}
