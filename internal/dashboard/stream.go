package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"store_dashboard/internal/metrics"

	"github.com/avast/retry-go/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	frameMalformed = "malformed"
	frameOther     = "other"
	closeGrace     = time.Second
)

var ErrNilHandler = errors.New("order handler is required")

type OrderHandler func(Order)

type StreamConfig struct {
	// MinBackoff is the wait before the first redial after a drop. It
	// doubles on every drop up to MaxBackoff, and a connection that stays
	// up for MaxBackoff resets it.
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// MaxAttempts bounds reconnect attempts after a drop; 0 keeps trying
	// until the stream is closed.
	MaxAttempts uint
}

// OrderStream is a live subscription to the backend order feed. It
// reconnects with exponential backoff after a drop and runs until Close is
// called or the context passed to ConnectToOrderStream is done.
type OrderStream struct {
	url     string
	dialer  *websocket.Dialer
	cfg     StreamConfig
	handler OrderHandler
	metrics *metrics.Metrics
	logger  *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
}

// ConnectToOrderStream dials the order feed and forwards every new_order
// frame to handler on the stream's reader goroutine. The first dial is
// synchronous so an unreachable backend is reported to the caller.
func (c *Client) ConnectToOrderStream(ctx context.Context, handler OrderHandler) (*OrderStream, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	s := &OrderStream{
		url:     c.wsURL,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		cfg:     c.stream,
		handler: handler,
		metrics: c.metrics,
		logger:  c.logger.Named("stream"),
		done:    make(chan struct{}),
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect order stream: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.setConn(conn)

	go s.closeOnDone(runCtx)
	go s.run(runCtx, conn)

	s.logger.Info("order stream connected", zap.String("url", s.url))
	return s, nil
}

// Close stops the stream and waits for its reader to exit. Safe to call
// more than once.
func (s *OrderStream) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// Done is closed once the stream has stopped for good.
func (s *OrderStream) Done() <-chan struct{} {
	return s.done
}

func (s *OrderStream) run(ctx context.Context, conn *websocket.Conn) {
	defer close(s.done)
	defer s.cancel()

	b := newBackoff(s.cfg.MinBackoff, s.cfg.MaxBackoff)
	for {
		connectedAt := time.Now()
		s.readLoop(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		if time.Since(connectedAt) >= b.max {
			b.reset()
		}

		delay := b.next()
		if !sleepContext(ctx, delay) {
			return
		}
		next, err := s.reconnect(ctx, delay)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("order stream gave up reconnecting", zap.Error(err))
			}
			return
		}
		conn = next
		s.setConn(conn)
		if ctx.Err() != nil {
			_ = conn.Close()
			return
		}
		s.logger.Info("order stream reconnected", zap.String("url", s.url))
	}
}

func (s *OrderStream) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("websocket error", zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.dispatch(data)
	}
}

func (s *OrderStream) dispatch(data []byte) {
	kind, order, err := decodeFrame(data)
	if err != nil {
		s.metrics.StreamFrames.WithLabelValues(frameMalformed).Inc()
		s.logger.Error("websocket message error", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}
	s.metrics.StreamFrames.WithLabelValues(frameLabel(kind)).Inc()
	if kind != messageNewOrder {
		s.logger.Debug("ignoring stream message", zap.String("type", kind))
		return
	}
	s.handler(order)
}

// reconnect redials until a dial succeeds, backing off from delay between
// failed dials.
func (s *OrderStream) reconnect(ctx context.Context, delay time.Duration) (*websocket.Conn, error) {
	var conn *websocket.Conn

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(s.cfg.MaxAttempts),
		retry.Delay(delay),
		retry.MaxDelay(s.cfg.MaxBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("order stream reconnect failed",
				zap.Uint("attempt", n+1),
				zap.Error(err),
			)
		}),
	)

	err := r.Do(func() error {
		s.metrics.StreamReconnects.Inc()
		c, err := s.dial(ctx)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *OrderStream) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *OrderStream) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

// closeOnDone unblocks the reader once the stream is cancelled.
func (s *OrderStream) closeOnDone(ctx context.Context) {
	<-ctx.Done()

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
	_ = conn.Close()
}

// frameLabel keeps the frame metric to a fixed set of series whatever
// types the backend sends.
func frameLabel(kind string) string {
	if kind == messageNewOrder {
		return messageNewOrder
	}
	return frameOther
}

// backoff is the redial delay carried across connection drops.
type backoff struct {
	min, max time.Duration
	cur      time.Duration
}

func newBackoff(minDelay, maxDelay time.Duration) *backoff {
	if minDelay <= 0 {
		minDelay = time.Second
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &backoff{min: minDelay, max: maxDelay}
}

// next returns the delay to wait now and doubles the following one.
func (b *backoff) next() time.Duration {
	if b.cur == 0 {
		b.cur = b.min
	}
	d := b.cur
	b.cur = min(b.cur*2, b.max)
	return d
}

func (b *backoff) reset() {
	b.cur = 0
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// decodeFrame returns the frame type and, for new_order frames, the order
// carried in data.
func decodeFrame(data []byte) (string, Order, error) {
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", Order{}, fmt.Errorf("decode frame: %w", err)
	}
	if msg.Type != messageNewOrder {
		if msg.Type == "" {
			return "unknown", Order{}, nil
		}
		return msg.Type, Order{}, nil
	}

	var order Order
	if err := json.Unmarshal(msg.Data, &order); err != nil {
		return "", Order{}, fmt.Errorf("decode order: %w", err)
	}
	return msg.Type, order, nil
}
