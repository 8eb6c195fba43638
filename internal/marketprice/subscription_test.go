package marketprice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// fakeConn is an in-memory Conn. Frames pushed to the frames channel are
// returned by ReadMessage; Close ends the read loop. writeErrs and closeErrs
// are consumed one per call to fail early attempts.
type fakeConn struct {
	mu        sync.Mutex
	writes    []string
	writeErrs []error
	closeErrs []error
	frames    chan []byte
	closed    bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16)}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writes = append(c.writes, string(data))

	if len(c.writeErrs) > 0 {
		werr := c.writeErrs[0]
		c.writeErrs = c.writeErrs[1:]
		return werr
	}
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	raw, ok := <-c.frames
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return 1, raw, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.closeErrs) > 0 {
		cerr := c.closeErrs[0]
		c.closeErrs = c.closeErrs[1:]
		return cerr
	}
	if !c.closed {
		c.closed = true
		close(c.frames)
	}
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) sentFrames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.writes))
	copy(out, c.writes)
	return out
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return nil, d.err
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestManager(dialer Dialer, retry RetryPolicy) *SubscriptionManager {
	return NewSubscriptionManager(dialer, "wss://test/ws", "tickers", retry, 0, testLogger())
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	manager := newTestManager(&fakeDialer{}, RetryPolicy{Interval: time.Millisecond})

	if err := manager.Stop(); err != nil {
		t.Fatalf("Stop() on idle manager returned error: %v", err)
	}
	if manager.IsActive() {
		t.Error("manager reports active without a Start")
	}
}

func TestStartSendsSubscribeFrame(t *testing.T) {
	dialer := &fakeDialer{}
	manager := newTestManager(dialer, RetryPolicy{Interval: time.Millisecond})

	err := manager.Start(context.Background(), []string{"btc-usdt", "eth-usdt"}, func([]byte) {})
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer manager.Stop()

	if !manager.IsActive() {
		t.Fatal("manager not active after Start")
	}

	frames := dialer.conn(0).sentFrames()
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame sent, got %d", len(frames))
	}
	for _, want := range []string{`"op":"subscribe"`, `"channel":"tickers"`, `"instId":"BTC-USDT"`, `"instId":"ETH-USDT"`} {
		if !strings.Contains(frames[0], want) {
			t.Errorf("subscribe frame %s missing %s", frames[0], want)
		}
	}
}

func TestStartWhileActiveFails(t *testing.T) {
	dialer := &fakeDialer{}
	manager := newTestManager(dialer, RetryPolicy{Interval: time.Millisecond})

	if err := manager.Start(context.Background(), []string{"BTC-USDT"}, func([]byte) {}); err != nil {
		t.Fatalf("first Start() failed: %v", err)
	}
	defer manager.Stop()

	if err := manager.Start(context.Background(), []string{"ETH-USDT"}, func([]byte) {}); err == nil {
		t.Fatal("second Start() without Stop succeeded, want error")
	}
	if dialer.dialCount() != 1 {
		t.Errorf("expected 1 dial, got %d", dialer.dialCount())
	}
}

func TestStopSendsUnsubscribeAndCloses(t *testing.T) {
	dialer := &fakeDialer{}
	manager := newTestManager(dialer, RetryPolicy{Interval: time.Millisecond})

	if err := manager.Start(context.Background(), []string{"BTC-USDT"}, func([]byte) {}); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := manager.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	if manager.IsActive() {
		t.Error("manager still active after Stop")
	}

	conn := dialer.conn(0)
	if !conn.isClosed() {
		t.Error("connection not closed by Stop")
	}

	frames := conn.sentFrames()
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d: %v", len(frames), frames)
	}
	if !strings.Contains(frames[1], `"op":"unsubscribe"`) {
		t.Errorf("teardown frame is not an unsubscribe: %s", frames[1])
	}
	if !strings.Contains(frames[1], `"instId":"BTC-USDT"`) {
		t.Errorf("teardown frame dropped the instrument args: %s", frames[1])
	}
}

func TestStopRetriesAfterBackoff(t *testing.T) {
	dialer := &fakeDialer{}
	manager := newTestManager(dialer, RetryPolicy{Interval: 300 * time.Millisecond})

	if err := manager.Start(context.Background(), []string{"BTC-USDT"}, func([]byte) {}); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	// First teardown write fails, second attempt succeeds
	conn := dialer.conn(0)
	conn.mu.Lock()
	conn.writeErrs = []error{errors.New("broken pipe")}
	conn.mu.Unlock()

	started := time.Now()
	if err := manager.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	elapsed := time.Since(started)

	if elapsed < 300*time.Millisecond {
		t.Errorf("Stop() returned after %v, want at least the 300ms backoff", elapsed)
	}
	if manager.IsActive() {
		t.Error("manager still active after retried Stop")
	}

	// subscribe + failed unsubscribe + retried unsubscribe
	frames := conn.sentFrames()
	if len(frames) != 3 {
		t.Errorf("expected 3 frames (one retry), got %d: %v", len(frames), frames)
	}
}

func TestStopGivesUpAfterMaxAttempts(t *testing.T) {
	dialer := &fakeDialer{}
	manager := newTestManager(dialer, RetryPolicy{Interval: time.Millisecond, MaxAttempts: 2})

	if err := manager.Start(context.Background(), []string{"BTC-USDT"}, func([]byte) {}); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	conn := dialer.conn(0)
	conn.mu.Lock()
	conn.writeErrs = []error{errors.New("broken pipe"), errors.New("broken pipe")}
	conn.mu.Unlock()

	if err := manager.Stop(); err == nil {
		t.Fatal("Stop() succeeded despite exhausted attempts, want error")
	}

	// The channel is still held; a later Stop can retry teardown
	if !manager.IsActive() {
		t.Error("manager went idle without a successful teardown")
	}
	if err := manager.Stop(); err != nil {
		t.Fatalf("follow-up Stop() failed: %v", err)
	}
}

func TestDialFailureSurfaces(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("connection refused")}
	manager := newTestManager(dialer, RetryPolicy{Interval: time.Millisecond})

	if err := manager.Start(context.Background(), []string{"BTC-USDT"}, func([]byte) {}); err == nil {
		t.Fatal("Start() succeeded with a failing dialer, want error")
	}
	if manager.IsActive() {
		t.Error("manager active after failed Start")
	}
}

func TestReadLoopDeliversFrames(t *testing.T) {
	dialer := &fakeDialer{}
	manager := newTestManager(dialer, RetryPolicy{Interval: time.Millisecond})

	received := make(chan []byte, 4)
	err := manager.Start(context.Background(), []string{"BTC-USDT"}, func(raw []byte) {
		received <- raw
	})
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer manager.Stop()

	dialer.conn(0).frames <- []byte(`{"data":[{"instId":"BTC-USDT"}]}`)

	select {
	case raw := <-received:
		if !strings.Contains(string(raw), "BTC-USDT") {
			t.Errorf("unexpected frame delivered: %s", raw)
		}
	case <-time.After(time.Second):
		t.Fatal("frame never reached the handler")
	}
}
