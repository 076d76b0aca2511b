package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	heartbeatInterval = 41250 * time.Millisecond
	heartbeatTimeout  = 10 * time.Second
	writeWait         = 10 * time.Second
	helloWait         = 10 * time.Second
	maxMessageSize    = 1 << 20
	sendBufferSize    = 256
)

var (
	errHeartbeatTimeout = errors.New("heartbeat ack timeout")
	errReconnect        = errors.New("server requested reconnect")
	errInvalidSession   = errors.New("session invalidated by server")
)

// connection is one WebSocket session with the gateway. Writes go through
// send so that only writePump touches the socket for writing.
type connection struct {
	ws       *websocket.Conn
	send     chan []byte
	interval time.Duration
	log      *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
	err       error

	lastAck atomic.Int64 // unix millis of the last HEARTBEAT_ACK
}

func newConnection(ws *websocket.Conn, interval time.Duration, log *slog.Logger) *connection {
	if interval <= 0 {
		interval = heartbeatInterval
	}
	c := &connection{
		ws:       ws,
		send:     make(chan []byte, sendBufferSize),
		interval: interval,
		log:      log,
		done:     make(chan struct{}),
	}
	c.lastAck.Store(time.Now().UnixMilli())
	ws.SetReadLimit(maxMessageSize)
	return c
}

// sendPayload marshals and queues a payload to be sent.
func (c *connection) sendPayload(p GatewayPayload) {
	data, err := json.Marshal(p)
	if err != nil {
		c.log.Error("marshal error", "op", p.Op, "error", err)
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.log.Warn("send buffer full, dropping message", "op", p.Op)
	}
}

// close terminates the connection, recording the first cause.
func (c *connection) close(cause error) {
	c.closeOnce.Do(func() {
		c.err = cause
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

// readPump reads payloads from the socket and hands each to handle until
// the socket fails or handle returns an error.
func (c *connection) readPump(handle func(GatewayPayload) error) {
	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Error("read error", "error", err)
			}
			c.close(err)
			return
		}
		var payload GatewayPayload
		if err := json.Unmarshal(message, &payload); err != nil {
			c.log.Error("invalid payload", "error", err)
			continue
		}
		if err := handle(payload); err != nil {
			c.close(err)
			return
		}
	}
}

// writePump writes queued payloads to the socket and sends a heartbeat
// every interval carrying the last sequence seen.
func (c *connection) writePump(seq func() int64) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close(err)
				return
			}

		case <-ticker.C:
			lastAck := c.lastAck.Load()
			if time.Since(time.UnixMilli(lastAck)) > c.interval+heartbeatTimeout {
				c.log.Warn("heartbeat timeout")
				c.close(errHeartbeatTimeout)
				return
			}
			c.sendPayload(heartbeat(seq()))

		case <-c.done:
			return
		}
	}
}

func heartbeat(seq int64) GatewayPayload {
	if seq == 0 {
		return GatewayPayload{Op: OpHeartbeat}
	}
	return GatewayPayload{Op: OpHeartbeat, Data: mustMarshal(seq)}
}
