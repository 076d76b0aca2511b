package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/victorivanov/retrostate/internal/observability"
	"github.com/victorivanov/retrostate/internal/store"
)

const (
	defaultMinBackoff = time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Client follows a retrocast gateway and applies its events to a session.
type Client struct {
	url        string
	token      string
	sess       *store.Session
	dispatcher *Dispatcher
	dialer     *websocket.Dialer
	log        *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration

	mu        sync.Mutex
	sessionID string
	sequence  atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithBackoff sets the reconnect delay bounds used by Run.
func WithBackoff(minDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		if minDelay > 0 && maxDelay >= minDelay {
			c.minBackoff, c.maxBackoff = minDelay, maxDelay
		}
	}
}

func NewClient(url, token string, sess *store.Session, opts ...Option) *Client {
	c := &Client{
		url:        url,
		token:      token,
		sess:       sess,
		dialer:     websocket.DefaultDialer,
		log:        slog.Default(),
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "gateway")
	c.dispatcher = NewDispatcher(sess, c.log)
	return c
}

// SessionID returns the gateway session id from the last READY.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Sequence returns the last dispatch sequence seen.
func (c *Client) Sequence() int64 {
	return c.sequence.Load()
}

// Run keeps a gateway connection open until ctx is cancelled, reconnecting
// with exponential backoff. Reconnects resume the previous gateway session
// when one is known. Run returns nil once ctx is done.
func (c *Client) Run(ctx context.Context) error {
	delay := c.minBackoff
	for {
		start := time.Now()
		err := c.Connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(start) > c.maxBackoff {
			delay = c.minBackoff
		}
		if normalClose(err) {
			c.log.Info("gateway connection closed", "retry_in", delay)
		} else {
			c.log.Warn("gateway connection lost", "error", err, "retry_in", delay)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, c.maxBackoff)
	}
}

// Connect runs a single gateway connection: HELLO, IDENTIFY or RESUME, then
// heartbeats and dispatches until the socket closes or ctx is cancelled.
func (c *Client) Connect(ctx context.Context) error {
	ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dialing gateway: %w", err)
	}

	hello, err := readHello(ws)
	if err != nil {
		_ = ws.Close()
		return err
	}

	conn := newConnection(ws, time.Duration(hello.HeartbeatInterval)*time.Millisecond, c.log)
	defer observability.SetFeedConnected(false)

	go conn.writePump(c.sequence.Load)
	go func() {
		select {
		case <-ctx.Done():
			conn.close(ctx.Err())
		case <-conn.done:
		}
	}()

	conn.sendPayload(c.handshake())
	conn.readPump(func(p GatewayPayload) error { return c.handle(conn, p) })

	<-conn.done
	if ctx.Err() != nil {
		return nil
	}
	return conn.err
}

// handshake returns a RESUME when a previous session is known and an
// IDENTIFY otherwise.
func (c *Client) handshake() GatewayPayload {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()

	if seq := c.sequence.Load(); sessionID != "" && seq > 0 {
		return GatewayPayload{Op: OpResume, Data: mustMarshal(ResumeData{
			Token:     c.token,
			SessionID: sessionID,
			Sequence:  seq,
		})}
	}
	return GatewayPayload{Op: OpIdentify, Data: mustMarshal(IdentifyData{Token: c.token})}
}

// handle processes one payload from the server. A non-nil error closes the
// connection.
func (c *Client) handle(conn *connection, p GatewayPayload) error {
	switch p.Op {
	case OpDispatch:
		if p.Sequence != nil {
			c.sequence.Store(*p.Sequence)
		}
		if p.Event == nil {
			return nil
		}
		c.dispatch(*p.Event, p.Data)

	case OpHeartbeat:
		conn.sendPayload(heartbeat(c.sequence.Load()))

	case OpHeartbeatAck:
		conn.lastAck.Store(time.Now().UnixMilli())

	case OpReconnect:
		return errReconnect

	case OpInvalidSession:
		c.mu.Lock()
		c.sessionID = ""
		c.mu.Unlock()
		c.sequence.Store(0)
		return errInvalidSession
	}
	return nil
}

func (c *Client) dispatch(event string, data json.RawMessage) {
	switch event {
	case EventReady:
		var ready ReadyData
		if err := json.Unmarshal(data, &ready); err != nil {
			c.log.Error("invalid ready data", "error", err)
			return
		}
		c.mu.Lock()
		c.sessionID = ready.SessionID
		c.mu.Unlock()
		if id := ready.UserID.Int64(); id != 0 && id != c.sess.Me() {
			c.log.Info("gateway session user differs, switching", "from", c.sess.Me(), "to", id)
			c.sess.SetMe(id)
		}
		observability.SetFeedConnected(true)
		observability.IncFeedEvent(event, resultApplied)
		c.log.Info("gateway ready", "session_id", ready.SessionID)

	case EventResumed:
		observability.SetFeedConnected(true)
		observability.IncFeedEvent(event, resultApplied)
		c.log.Info("gateway resumed", "sequence", c.sequence.Load())

	default:
		// Rejections are logged and counted by the dispatcher.
		_ = c.dispatcher.Dispatch(event, data)
	}
}

func readHello(ws *websocket.Conn) (HelloData, error) {
	var hello HelloData
	_ = ws.SetReadDeadline(time.Now().Add(helloWait))
	defer func() { _ = ws.SetReadDeadline(time.Time{}) }()

	var p GatewayPayload
	if err := ws.ReadJSON(&p); err != nil {
		return hello, fmt.Errorf("reading hello: %w", err)
	}
	if p.Op != OpHello {
		return hello, fmt.Errorf("expected hello, got op %d", p.Op)
	}
	if err := json.Unmarshal(p.Data, &hello); err != nil {
		return hello, fmt.Errorf("decoding hello: %w", err)
	}
	return hello, nil
}

// normalClose reports whether err is an orderly end of a gateway connection.
func normalClose(err error) bool {
	return err == nil || errors.Is(err, errReconnect) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
