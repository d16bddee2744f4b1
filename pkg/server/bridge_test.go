package server

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vango-dev/vdombridge/pkg/actor"
	"github.com/vango-dev/vdombridge/pkg/protocol"
	"github.com/vango-dev/vdombridge/pkg/render"
	"github.com/vango-dev/vdombridge/pkg/vdom"
)

var (
	errFakeTimeout = errors.New("fake: i/o timeout")
	errBoom        = errors.New("boom")
)

type fakeMsg struct {
	mt   int
	data []byte
	err  error
}

// fakeTransport is an in-memory Transport. Inbound messages are fed through
// push; writes are recorded and mirrored on the written channel.
type fakeTransport struct {
	in      chan fakeMsg
	kick    chan struct{}
	written chan fakeMsg

	mu       sync.Mutex
	deadline time.Time
	writeErr error
	closed   bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:      make(chan fakeMsg, 16),
		kick:    make(chan struct{}, 1),
		written: make(chan fakeMsg, 64),
	}
}

func (f *fakeTransport) push(mt int, data string) {
	f.in <- fakeMsg{mt: mt, data: []byte(data)}
}

func (f *fakeTransport) pushErr(err error) {
	f.in <- fakeMsg{err: err}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	for {
		f.mu.Lock()
		d := f.deadline
		f.mu.Unlock()

		var timeout <-chan time.Time
		if !d.IsZero() {
			wait := time.Until(d)
			if wait <= 0 {
				return 0, nil, errFakeTimeout
			}
			timeout = time.After(wait)
		}
		select {
		case m := <-f.in:
			return m.mt, m.data, m.err
		case <-timeout:
			return 0, nil, errFakeTimeout
		case <-f.kick:
		}
	}
}

func (f *fakeTransport) record(mt int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written <- fakeMsg{mt: mt, data: data}
	return nil
}

func (f *fakeTransport) WriteMessage(mt int, data []byte) error {
	return f.record(mt, data)
}

func (f *fakeTransport) WriteControl(mt int, data []byte, _ time.Time) error {
	return f.record(mt, data)
}

func (f *fakeTransport) SetReadDeadline(t time.Time) error {
	f.mu.Lock()
	f.deadline = t
	f.mu.Unlock()
	select {
	case f.kick <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) failWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// next returns the next written message.
func (f *fakeTransport) next(t *testing.T) fakeMsg {
	t.Helper()
	select {
	case m := <-f.written:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for write")
	}
	return fakeMsg{}
}

func (f *fakeTransport) expectQuiet(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case m := <-f.written:
		t.Fatalf("unexpected write: type=%d data=%s", m.mt, m.data)
	case <-time.After(wait):
	}
}

// counterReducer increments on "inc", fails on "fail" and treats "nop" as a
// no-op.
func counterReducer(_ actor.Effects, n int, a protocol.Action) (int, bool, error) {
	switch a.Tag {
	case "inc":
		return n + 1, true, nil
	case "fail":
		return n, false, errBoom
	}
	return n, false, nil
}

var counterRenderer = render.Func[int](func(n int) *vdom.VNode {
	return vdom.Div(strconv.Itoa(n))
})

func testCodec() *protocol.Codec {
	return protocol.NewCodec("inc", "nop", "fail")
}

func newTestSession() Session {
	return actor.New(0, counterReducer, render.Renderer[int](counterRenderer))
}

func snapshotText(n int) string {
	return `{"tree":{"tag":"div","props":{},"children":["` + strconv.Itoa(n) + `"]}}`
}

type bridgeHarness struct {
	conn    *fakeTransport
	metrics *Metrics
	cancel  context.CancelFunc
	errCh   chan error
}

func startBridge(t *testing.T, session Session) *bridgeHarness {
	t.Helper()
	conn := newFakeTransport()
	metrics := NewMetrics(prometheus.NewRegistry())
	cfg := DefaultConfig()
	cfg.CloseGracePeriod = 50 * time.Millisecond

	b := NewBridge("test-conn", conn, testCodec(), session, cfg, metrics, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &bridgeHarness{conn: conn, metrics: metrics, cancel: cancel, errCh: make(chan error, 1)}
	go func() { h.errCh <- b.Run(ctx) }()
	return h
}

func (h *bridgeHarness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not finish")
	}
	return nil
}

func expectText(t *testing.T, m fakeMsg, want string) {
	t.Helper()
	if m.mt != websocket.TextMessage {
		t.Fatalf("message type = %d, want text", m.mt)
	}
	if string(m.data) != want {
		t.Fatalf("message = %s, want %s", m.data, want)
	}
}

func expectClose(t *testing.T, m fakeMsg) {
	t.Helper()
	if m.mt != websocket.CloseMessage {
		t.Fatalf("message type = %d, want close", m.mt)
	}
}

func TestBridge_InitialSnapshotAndActions(t *testing.T) {
	h := startBridge(t, newTestSession())
	expectText(t, h.conn.next(t), snapshotText(0))

	h.conn.push(websocket.TextMessage, `{"tag":"inc","associated":{}}`)
	expectText(t, h.conn.next(t), snapshotText(1))

	h.conn.push(websocket.TextMessage, `{"tag":"nop","associated":{}}`)
	h.conn.expectQuiet(t, 50*time.Millisecond)

	h.conn.push(websocket.TextMessage, `{"tag":"inc","associated":{}}`)
	expectText(t, h.conn.next(t), snapshotText(2))

	if got := testutil.ToFloat64(h.metrics.actionsReceived); got != 3 {
		t.Errorf("actions_received = %v, want 3", got)
	}
}

func TestBridge_MalformedMessageKeepsConnectionOpen(t *testing.T) {
	h := startBridge(t, newTestSession())
	h.conn.next(t)

	h.conn.push(websocket.TextMessage, `{"tag":`)
	h.conn.push(websocket.TextMessage, `{"tag":"unknown","associated":{}}`)
	h.conn.push(websocket.TextMessage, `{"tag":"inc"}`)
	h.conn.expectQuiet(t, 50*time.Millisecond)

	h.conn.push(websocket.TextMessage, `{"tag":"inc","associated":{}}`)
	expectText(t, h.conn.next(t), snapshotText(1))

	if got := testutil.ToFloat64(h.metrics.decodeErrors); got != 3 {
		t.Errorf("decode_errors = %v, want 3", got)
	}
	if h.conn.isClosed() {
		t.Error("transport closed after decode errors")
	}
}

func TestBridge_BinaryMessagesDropped(t *testing.T) {
	h := startBridge(t, newTestSession())
	h.conn.next(t)

	h.conn.push(websocket.BinaryMessage, `{"tag":"inc","associated":{}}`)
	h.conn.expectQuiet(t, 50*time.Millisecond)

	h.conn.push(websocket.TextMessage, `{"tag":"inc","associated":{}}`)
	expectText(t, h.conn.next(t), snapshotText(1))

	if got := testutil.ToFloat64(h.metrics.droppedMessages.WithLabelValues("binary")); got != 1 {
		t.Errorf("dropped binary = %v, want 1", got)
	}
}

func TestBridge_ActionBeforePeerCloseIsApplied(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := startBridge(t, newTestSession())
		h.conn.next(t)

		h.conn.push(websocket.TextMessage, `{"tag":"inc","associated":{}}`)
		h.conn.pushErr(&websocket.CloseError{Code: websocket.CloseNormalClosure})

		expectText(t, h.conn.next(t), snapshotText(1))
		expectClose(t, h.conn.next(t))
		if err := h.wait(t); err != nil {
			t.Fatalf("run %d: Run() = %v, want nil", i, err)
		}
	}
}

func TestBridge_PeerCloseEndsBothDirections(t *testing.T) {
	h := startBridge(t, newTestSession())
	h.conn.next(t)

	h.conn.pushErr(&websocket.CloseError{Code: websocket.CloseNormalClosure})
	expectClose(t, h.conn.next(t))

	if err := h.wait(t); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if !h.conn.isClosed() {
		t.Error("transport not closed")
	}
	h.conn.expectQuiet(t, 20*time.Millisecond)
}

func TestBridge_SessionFailureClosesConnection(t *testing.T) {
	h := startBridge(t, newTestSession())
	h.conn.next(t)

	h.conn.push(websocket.TextMessage, `{"tag":"fail","associated":{}}`)
	expectClose(t, h.conn.next(t))

	err := h.wait(t)
	var re *actor.ReducerError
	if !errors.As(err, &re) || !errors.Is(err, errBoom) {
		t.Fatalf("Run() = %v, want ReducerError", err)
	}
	if !h.conn.isClosed() {
		t.Error("transport not closed")
	}
}

func TestBridge_UnresponsivePeerBoundedByGracePeriod(t *testing.T) {
	session := newTestSession()
	h := startBridge(t, session)
	h.conn.next(t)

	// Ending the session from the server side: the peer never answers
	// the close frame, so the read loop must give up after the grace period.
	session.CloseInput()
	expectClose(t, h.conn.next(t))
	if err := h.wait(t); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
}

func TestBridge_WriteErrorAbortsConnection(t *testing.T) {
	h := startBridge(t, newTestSession())
	h.conn.next(t)

	h.conn.failWrites(io.ErrClosedPipe)
	h.conn.push(websocket.TextMessage, `{"tag":"inc","associated":{}}`)

	err := h.wait(t)
	var be *BridgeError
	if !errors.As(err, &be) || be.Op != "write" || !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("Run() = %v, want write BridgeError", err)
	}
	if got := testutil.ToFloat64(h.metrics.transportErrors.WithLabelValues("write")); got != 1 {
		t.Errorf("write errors = %v, want 1", got)
	}
}

func TestBridge_ReadErrorAbortsConnection(t *testing.T) {
	h := startBridge(t, newTestSession())
	h.conn.next(t)

	h.conn.pushErr(io.ErrUnexpectedEOF)
	expectClose(t, h.conn.next(t))

	err := h.wait(t)
	var be *BridgeError
	if !errors.As(err, &be) || be.Op != "read" || be.ConnID != "test-conn" {
		t.Fatalf("Run() = %v, want read BridgeError", err)
	}
}

func TestBridge_ContextCancelClosesGracefully(t *testing.T) {
	h := startBridge(t, newTestSession())
	h.conn.next(t)

	h.cancel()
	expectClose(t, h.conn.next(t))
	if err := h.wait(t); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
}

func TestBridgeError_Message(t *testing.T) {
	err := &BridgeError{ConnID: "c1", Op: "read", Err: io.EOF}
	if err.Error() != "server: conn c1: read: EOF" {
		t.Errorf("Error() = %q", err.Error())
	}
	err.ConnID = ""
	if err.Error() != "server: read: EOF" {
		t.Errorf("Error() = %q", err.Error())
	}
}
