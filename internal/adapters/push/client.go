package push

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	commandTimeout = 15 * time.Second

	msgSnapshot      = "session_snapshot"
	msgCommandResult = "command_result"
)

// Client is one connected viewer. send is never closed; the hub closes
// done when it drops the client.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	mu       sync.Mutex
	identity string // set once the viewer starts a live session
}

type snapshotMessage struct {
	Type string             `json:"type"`
	At   time.Time          `json:"at"`
	Data domain.SessionView `json:"data"`
}

type commandResult struct {
	Type    string             `json:"type"`
	Command domain.CommandType `json:"command,omitempty"`
	OK      bool               `json:"ok"`
	Error   string             `json:"error,omitempty"`
	Session domain.Session     `json:"session"`
}

// Handler upgrades viewers to websockets. Allowed origins are matched
// exactly; an empty list accepts any origin.
func (h *Hub) Handler(d Dispatcher, allowedOrigins []string) http.Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			for _, o := range allowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("push: upgrade failed", "err", err)
			return
		}
		c := &Client{conn: conn, send: make(chan []byte, clientBuffer), done: make(chan struct{})}

		// The first message every viewer sees is the current view.
		if msg, err := json.Marshal(snapshotMessage{Type: msgSnapshot, At: time.Now().UTC(), Data: d.View()}); err == nil {
			c.send <- msg
		}
		if !h.join(c) {
			conn.Close()
			return
		}

		go c.writePump()
		go c.readPump(h, d)
	})
}

// readPump decodes inbound commands and dispatches them. When the viewer
// goes away its live session, if any, is stopped and persisted.
func (c *Client) readPump(h *Hub, d Dispatcher) {
	defer func() {
		h.leave(c)
		c.conn.Close()

		c.mu.Lock()
		identity := c.identity
		c.mu.Unlock()
		if identity != "" {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			if err := d.Disconnect(ctx, identity); err != nil {
				slog.Error("push: stop on disconnect failed", "err", err)
			}
			cancel()
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("push: viewer read error", "err", err)
			}
			return
		}
		c.handle(d, raw)
	}
}

func (c *Client) handle(d Dispatcher, raw []byte) {
	res := commandResult{Type: msgCommandResult}

	cmd, err := domain.DecodeCommand(raw)
	if err == nil {
		res.Command = cmd.Type()
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		err = d.Dispatch(ctx, cmd)
		cancel()
	}
	if err == nil {
		if start, ok := cmd.(domain.StartCommand); ok && start.Mode == domain.ModeLive {
			c.mu.Lock()
			c.identity = start.Identity
			c.mu.Unlock()
		}
	}

	res.OK = err == nil
	if err != nil {
		res.Error = errorCode(err)
	}
	res.Session = d.View().Session

	msg, merr := json.Marshal(res)
	if merr != nil {
		return
	}
	c.enqueue(msg)
}

// enqueue queues msg unless the client was dropped or its buffer is full.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// errorCode maps domain errors onto stable wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation_error: " + err.Error()
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return "invalid_state_transition: " + err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return "not_found: " + err.Error()
	case errors.Is(err, domain.ErrPersistence):
		return "persistence_failure: " + err.Error()
	}
	return "internal_error: " + err.Error()
}
