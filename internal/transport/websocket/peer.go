// Package websocket carries replication envelopes over gorilla/websocket
// text frames.
package websocket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/caleywoods/wayfindr/internal/transport"
	"github.com/caleywoods/wayfindr/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	sendChSize      = 1024
	writeWait       = 10 * time.Second
	defaultPongWait = 60 * time.Second
)

// pingPeriod must stay below pongWait so a healthy peer always answers in
// time.
func pingPeriod(pongWait time.Duration) time.Duration {
	return pongWait * 9 / 10
}

// keepAlive arms the read deadline and pushes it out on every pong.
func keepAlive(conn *ws.Conn, pongWait time.Duration) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// peer is one server-side connection with a single write goroutine.
type peer struct {
	mu       sync.Mutex
	conn     *ws.Conn
	sendCh   chan []byte
	done     chan struct{}
	closed   bool
	pongWait time.Duration
	logger   *slog.Logger
}

func newPeer(conn *ws.Conn, pongWait time.Duration, logger *slog.Logger) *peer {
	return &peer{
		conn:     conn,
		sendCh:   make(chan []byte, sendChSize),
		done:     make(chan struct{}),
		pongWait: pongWait,
		logger:   logger,
	}
}

// Send pushes env to the write loop. Non-blocking.
func (p *peer) Send(env streaming.Envelope) error {
	data, err := streaming.Marshal(env)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return transport.ErrClosed
	}
	select {
	case p.sendCh <- data:
		return nil
	default:
		return transport.ErrQueueFull
	}
}

// writeLoop drains sendCh and pings until close or the first write error.
func (p *peer) writeLoop() {
	ticker := time.NewTicker(pingPeriod(p.pongWait))
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if err := p.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				p.logger.Warn("WebSocket ping failed", "error", err)
				p.close()
				return
			}
		case data := <-p.sendCh:
			if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				p.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				p.close()
				return
			}
			if err := p.conn.WriteMessage(ws.TextMessage, data); err != nil {
				p.logger.Warn("WebSocket write error", "error", err)
				p.close()
				return
			}
		}
	}
}

// readLoop decodes frames and hands them to receive until the connection
// fails or stops answering pings. Undecodable and unknown frames are logged
// and skipped.
func (p *peer) readLoop(receive func(streaming.Envelope)) {
	keepAlive(p.conn, p.pongWait)
	for {
		_, message, err := p.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				p.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		env, err := streaming.Unmarshal(message)
		if err != nil {
			p.logger.Warn("Dropping frame", "error", err, "size", len(message))
			continue
		}
		receive(env)
	}
}

func (p *peer) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	_ = p.conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	_ = p.conn.Close()
}
