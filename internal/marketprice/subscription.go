package marketprice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/rezaHssini/OKX-public-market-price-subscription/internal/metrics"
)

// FrameHandler receives raw inbound frames from the stream. It must not block.
type FrameHandler func(raw []byte)

// RetryPolicy controls the teardown retry loop. MaxAttempts 0 retries
// forever, which is the default: teardown must eventually succeed.
type RetryPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// SubscriptionManager owns at most one active streaming channel: the socket
// plus its mutable subscribe message. Callers are expected to serialize
// Start/Stop; Stop is always invoked before Start within one Get.
type SubscriptionManager struct {
	dialer       Dialer
	url          string
	channel      string
	retry        RetryPolicy
	pingInterval time.Duration
	limiter      *rate.Limiter
	logger       *logrus.Logger

	mu      sync.Mutex
	conn    Conn
	msg     *subscribeRequest
	handler FrameHandler
	active  bool
	done    chan struct{}
}

// NewSubscriptionManager creates an idle subscription manager.
func NewSubscriptionManager(dialer Dialer, url, channel string, retry RetryPolicy, pingInterval time.Duration, logger *logrus.Logger) *SubscriptionManager {
	if retry.Interval <= 0 {
		retry.Interval = 300 * time.Millisecond
	}
	return &SubscriptionManager{
		dialer:       dialer,
		url:          url,
		channel:      channel,
		retry:        retry,
		pingInterval: pingInterval,
		// OKX is strict about subscribe request rates
		limiter: rate.NewLimiter(rate.Limit(3), 5),
		logger:  logger,
	}
}

// IsActive reports whether a channel is currently open.
func (m *SubscriptionManager) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Start opens a new streaming connection, sends the subscribe frame for the
// given instruments (uppercased) and installs onFrame as the inbound handler.
// It does not wait for a subscription confirmation. The caller must Stop any
// previous channel first.
func (m *SubscriptionManager) Start(ctx context.Context, instruments []string, onFrame FrameHandler) error {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return fmt.Errorf("subscription already active")
	}
	m.mu.Unlock()

	conn, err := m.dialer.Dial(ctx, m.url)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", m.url, err)
	}

	if err := m.limiter.Wait(ctx); err != nil {
		_ = conn.Close()
		return fmt.Errorf("rate limit wait failed: %w", err)
	}

	args := make([]subscribeArg, 0, len(instruments))
	for _, inst := range instruments {
		args = append(args, subscribeArg{
			Channel: m.channel,
			InstID:  strings.ToUpper(inst),
		})
	}
	msg := &subscribeRequest{Op: opSubscribe, Args: args}

	if err := conn.WriteJSON(msg); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to send subscribe frame: %w", err)
	}

	done := make(chan struct{})

	m.mu.Lock()
	m.conn = conn
	m.msg = msg
	m.handler = onFrame
	m.active = true
	m.done = done
	m.mu.Unlock()

	metrics.ActiveSubscription.Set(1)
	m.logger.WithFields(logrus.Fields{
		"channel":     m.channel,
		"instruments": len(args),
	}).Info("Subscription started")

	go m.readLoop(conn, done)
	if m.pingInterval > 0 {
		go m.pingLoop(conn, done)
	}

	return nil
}

// Stop tears down the active channel: the held message's op is flipped to
// unsubscribe, the frame is sent and the transport closed. A transport error
// restarts the whole sequence after the retry interval until it succeeds or
// the configured attempt cap is exhausted. Stopping an idle manager is a
// no-op.
func (m *SubscriptionManager) Stop() error {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return nil
	}
	conn := m.conn
	msg := m.msg
	done := m.done
	m.mu.Unlock()

	msg.Op = opUnsubscribe

	attempt := 0
	for {
		attempt++
		err := teardown(conn, msg)
		if err == nil {
			break
		}

		m.logger.WithError(err).Warnf("Failed to close subscription (attempt %d), retrying in %v", attempt, m.retry.Interval)
		metrics.CloseRetries.Inc()

		if m.retry.MaxAttempts > 0 && attempt >= m.retry.MaxAttempts {
			return fmt.Errorf("giving up on subscription teardown after %d attempts: %w", attempt, err)
		}

		time.Sleep(m.retry.Interval)
	}

	close(done)

	m.mu.Lock()
	m.conn = nil
	m.msg = nil
	m.handler = nil
	m.active = false
	m.done = nil
	m.mu.Unlock()

	metrics.ActiveSubscription.Set(0)
	m.logger.Info("Subscription stopped")
	return nil
}

// teardown sends the unsubscribe frame and closes the transport as one unit;
// a failure in either step fails the whole sequence.
func teardown(conn Conn, msg *subscribeRequest) error {
	if err := conn.WriteJSON(msg); err != nil {
		return err
	}
	return conn.Close()
}

// readLoop drains inbound frames until the connection dies or Stop closes it.
func (m *SubscriptionManager) readLoop(conn Conn, done chan struct{}) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				// Closed by Stop
			default:
				m.logger.WithError(err).Debug("Stream read ended")
			}
			return
		}

		m.mu.Lock()
		handler := m.handler
		m.mu.Unlock()

		if handler != nil {
			handler(raw)
		}
	}
}

// pingLoop keeps the connection alive; OKX drops idle connections after 30s.
func (m *SubscriptionManager) pingLoop(conn Conn, done chan struct{}) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(map[string]string{"op": opPing}); err != nil {
				m.logger.WithError(err).Debug("Stream ping failed")
				return
			}
		}
	}
}
