package websocket

import (
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/caleywoods/wayfindr/internal/transport"
	"github.com/caleywoods/wayfindr/pkg/streaming"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

const (
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// ClientConfig configures a Client. Callbacks run on the client's own
// goroutines and must not block for long.
type ClientConfig struct {
	URL            string
	Player         uuid.UUID
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// PongWait is how long the server may stay silent before the
	// connection counts as lost.
	PongWait time.Duration

	OnMessage    func(streaming.Envelope)
	OnConnect    func()
	OnDisconnect func()
}

// link is one live connection. stop is closed when it is abandoned.
// Envelopes queued on a link are never carried over to the next one.
type link struct {
	conn   *ws.Conn
	sendCh chan []byte
	stop   chan struct{}
}

// Client is the player side of the websocket transport. It reconnects with
// exponential backoff until closed; every reconnect is a fresh join.
type Client struct {
	mu     sync.Mutex
	cur    *link
	done   chan struct{}
	closed bool

	cfg    ClientConfig
	logger *slog.Logger
}

// NewClient creates an unconnected Client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		done:   make(chan struct{}),
		cfg:    cfg,
		logger: logger,
	}
}

// Dial connects once and starts the read and write loops. A failed first
// dial is returned to the caller and not retried.
func (c *Client) Dial() error {
	conn, err := c.dialOnce()
	if err != nil {
		return err
	}
	return c.attach(conn)
}

// dialOnce performs a single dial with the player query param.
func (c *Client) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set(PlayerParam, c.cfg.Player.String())
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (c *Client) attach(conn *ws.Conn) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return transport.ErrClosed
	}
	l := &link{conn: conn, sendCh: make(chan []byte, sendChSize), stop: make(chan struct{})}
	c.cur = l
	c.mu.Unlock()

	go c.writeLoop(l)
	go c.readLoop(l)

	if c.cfg.OnConnect != nil {
		c.cfg.OnConnect()
	}
	return nil
}

// Connected reports whether a connection is live.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur != nil
}

// Send marshals env and pushes it to the current link's write loop.
// Non-blocking. It fails when the client is disconnected or closed, and when
// the queue is full.
func (c *Client) Send(env streaming.Envelope) error {
	data, err := streaming.Marshal(env)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	if c.cur == nil {
		return transport.ErrDisconnected
	}
	select {
	case c.cur.sendCh <- data:
		return nil
	default:
		return transport.ErrQueueFull
	}
}

func (c *Client) writeLoop(l *link) {
	ticker := time.NewTicker(pingPeriod(c.cfg.PongWait))
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			if err := l.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket ping failed", "error", err)
				c.lost(l)
				return
			}
		case data := <-l.sendCh:
			if err := l.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				c.lost(l)
				return
			}
			if err := l.conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.lost(l)
				return
			}
		}
	}
}

func (c *Client) readLoop(l *link) {
	keepAlive(l.conn, c.cfg.PongWait)
	for {
		_, message, err := l.conn.ReadMessage()
		if err != nil {
			select {
			case <-l.stop:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			c.lost(l)
			return
		}

		env, err := streaming.Unmarshal(message)
		if err != nil {
			c.logger.Warn("Dropping frame", "error", err, "size", len(message))
			continue
		}
		if c.cfg.OnMessage != nil {
			c.cfg.OnMessage(env)
		}
	}
}

// lost abandons l and starts reconnecting. Only the first caller per link
// does anything.
func (c *Client) lost(l *link) {
	c.mu.Lock()
	if c.cur != l {
		c.mu.Unlock()
		return
	}
	c.cur = nil
	close(l.stop)
	closed := c.closed
	c.mu.Unlock()

	_ = l.conn.Close()
	if c.cfg.OnDisconnect != nil {
		c.cfg.OnDisconnect()
	}
	if !closed {
		go c.reconnect()
	}
}

// reconnect dials with exponential backoff until it succeeds or the client
// is closed.
func (c *Client) reconnect() {
	backoff := c.cfg.InitialBackoff
	for attempt := 1; ; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt)
		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "backoff", backoff, "error", err)
			backoff *= 2
			if backoff > c.cfg.MaxBackoff {
				backoff = c.cfg.MaxBackoff
			}
			continue
		}

		if err := c.attach(conn); err != nil {
			return
		}
		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		return
	}
}

// Close sends a close frame and stops reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	l := c.cur
	c.cur = nil
	if l != nil {
		close(l.stop)
	}
	c.mu.Unlock()

	if l == nil {
		return nil
	}
	_ = l.conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	if c.cfg.OnDisconnect != nil {
		c.cfg.OnDisconnect()
	}
	return l.conn.Close()
}
