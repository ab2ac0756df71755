// Package realtime holds the single push-event connection shared by the
// client stores.
package realtime

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"enlechat/protocol"
)

// EventDisconnect is delivered locally when the connection drops. It is
// never sent over the wire.
const EventDisconnect = "disconnect"

var ErrNotConnected = errors.New("realtime: not connected")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second

	// events buffered between the socket and the handlers
	queueSize = 256
)

// Handler receives one decoded event. Handlers of a connection run on a
// single goroutine in arrival order, so a slow handler delays later events.
type Handler func(env *protocol.Envelope)

type subscription struct {
	id int
	fn Handler
}

// Channel is a websocket connection carrying protocol envelopes.
type Channel struct {
	log *zap.Logger

	conn   *websocket.Conn
	mu     sync.Mutex
	sendMu sync.Mutex

	handlers map[string][]subscription
	nextID   int

	done      chan struct{}
	connected bool
	lastPong  time.Time
	pongMu    sync.RWMutex
}

func New(log *zap.Logger) *Channel {
	if log == nil {
		log = zap.NewNop()
	}
	return &Channel{
		log:      log,
		handlers: make(map[string][]subscription),
	}
}

// WebsocketURL maps the REST base URL onto the /ws endpoint.
func WebsocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("realtime: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Connect dials the server. Handlers registered before or after Connect
// stay attached across reconnects.
func (c *Channel) Connect(serverURL string, header http.Header) error {
	wsURL, err := WebsocketURL(serverURL)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(wsURL, header)
	if err != nil {
		return fmt.Errorf("realtime: dial %s: %w", wsURL, err)
	}

	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.done = make(chan struct{})
	c.connected = true
	c.mu.Unlock()

	c.pongMu.Lock()
	c.lastPong = time.Now()
	c.pongMu.Unlock()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		c.pongMu.Lock()
		c.lastPong = time.Now()
		c.pongMu.Unlock()
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.pingLoop(conn, c.done)
	go c.readLoop(conn)

	c.log.Info("realtime connected", zap.String("url", wsURL))
	return nil
}

// Close shuts the connection. Safe to call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	close(c.done)
	conn := c.conn
	c.mu.Unlock()

	c.sendMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.sendMu.Unlock()

	return conn.Close()
}

func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// LastPongAt returns when the server last answered a ping.
func (c *Channel) LastPongAt() time.Time {
	c.pongMu.RLock()
	defer c.pongMu.RUnlock()
	return c.lastPong
}

// On registers fn for event and returns a func that detaches it.
func (c *Channel) On(event string, fn Handler) (cancel func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[event] = append(c.handlers[event], subscription{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			subs := c.handlers[event]
			for i, s := range subs {
				if s.id == id {
					c.handlers[event] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(c.handlers[event]) == 0 {
				delete(c.handlers, event)
			}
		})
	}
}

// Emit sends one event.
func (c *Channel) Emit(event string, data any) error {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn, connected := c.conn, c.connected
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("realtime: emit %s: %w", event, err)
	}
	return nil
}

func (c *Channel) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.sendMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.sendMu.Unlock()
			if err != nil {
				c.log.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

// readLoop decodes frames and hands them to one dispatcher per connection,
// so handlers see events in the order the server sent them.
func (c *Channel) readLoop(conn *websocket.Conn) {
	queue := make(chan *protocol.Envelope, queueSize)
	go c.dispatch(queue)
	defer close(queue)

	for {
		kind, frame, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			wasConnected := c.connected && c.conn == conn
			if wasConnected {
				c.connected = false
				close(c.done)
			}
			c.mu.Unlock()
			if wasConnected {
				conn.Close()
				c.log.Warn("realtime connection lost", zap.Error(err))
				queue <- &protocol.Envelope{Event: EventDisconnect}
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		env, err := protocol.Decode(frame)
		if err != nil {
			c.log.Debug("dropping frame", zap.Error(err))
			continue
		}
		queue <- env
	}
}

func (c *Channel) dispatch(queue <-chan *protocol.Envelope) {
	for env := range queue {
		c.notifyHandlers(env)
	}
}

// notifyHandlers runs the handlers for env one after another.
func (c *Channel) notifyHandlers(env *protocol.Envelope) {
	c.mu.Lock()
	subs := make([]subscription, len(c.handlers[env.Event]))
	copy(subs, c.handlers[env.Event])
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(env)
	}
}
