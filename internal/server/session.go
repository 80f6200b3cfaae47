// Package server manages individual WebSocket sessions, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jaevor/go-nanoid"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

var newSessionID = mustSessionIDGenerator()

func mustSessionIDGenerator() func() string {
	gen, err := nanoid.CustomASCII("0123456789abcdefghijklmnopqrstuvwxyz", 6)
	if err != nil {
		panic(err)
	}
	return gen
}

// Session represents one live client connection in the chat system: the
// WebSocket itself, the assigned display name, the outbound message channel,
// and the per-connection rate limiter.
type Session struct {
	conn           *websocket.Conn
	send           chan string
	hub            *Hub
	dispatcher     *Dispatcher
	name           string
	addr           string
	closed         bool
	maxMessageSize int64
	limiter        *rateLimiter
	rateLimit      RateLimitConfig
	log            *slog.Logger
}

// NewSession creates a Session for the given connection with a freshly
// assigned display name. The send channel is buffered to absorb broadcast
// bursts.
func NewSession(conn *websocket.Conn, hub *Hub, dispatcher *Dispatcher, addr string, log *slog.Logger) *Session {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Session{
		conn:           conn,
		send:           make(chan string, 256),
		hub:            hub,
		dispatcher:     dispatcher,
		name:           "guest-" + newSessionID(),
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		limiter:        newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
		log:            log,
	}
}

// Name returns the display name assigned at connect time.
func (s *Session) Name() string {
	return s.name
}

// SendChan exposes the outbound message channel for reading.
func (s *Session) SendChan() <-chan string {
	return s.send
}

func (s *Session) setupReadConnection() {
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.log.Warn("error setting initial read deadline", "addr", s.addr, "error", err)
	}
	s.conn.SetPongHandler(func(string) error {
		if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			s.log.Warn("error setting read deadline in pong handler", "addr", s.addr, "error", err)
		}
		return nil
	})
}

// handleReadError reports whether the read loop should stop for the given
// error.
func (s *Session) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		s.log.Warn("inbound message exceeded maximum size", "addr", s.addr, "limit", s.maxMessageSize)
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		s.log.Info("session disconnected", "name", s.name, "addr", s.addr)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		s.log.Info("session connection closed", "name", s.name, "addr", s.addr)
		return true
	}

	s.log.Warn("websocket read error", "addr", s.addr, "error", err)
	return true
}

func (s *Session) allowMessage() bool {
	if s.limiter != nil && !s.limiter.allow() {
		s.log.Warn("rate limit exceeded; discarding message",
			"name", s.name, "addr", s.addr,
			"burst", s.rateLimit.Burst, "interval", s.rateLimit.RefillInterval)
		return false
	}
	return true
}

func (s *Session) readPump() {
	defer func() {
		s.hub.unregister <- s
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.log.Warn("error closing connection in readPump", "addr", s.addr, "error", err)
		}
	}()

	s.setupReadConnection()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if s.handleReadError(err) {
				break
			}
			continue
		}

		if !s.allowMessage() {
			continue
		}

		text := strings.TrimRight(string(raw), "\r\n")
		if text == "" {
			continue
		}

		// Dispatch runs on the read pump goroutine, so one session's
		// messages are processed strictly in arrival order.
		s.dispatcher.Dispatch(s.hub.ctx, s, text)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.log.Warn("error closing connection in writePump", "addr", s.addr, "error", err)
		}
	}()

	for {
		select {
		case message, ok := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.log.Warn("error setting write deadline", "addr", s.addr, "error", err)
				return
			}
			if !ok {
				s.writeCloseMessage()
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
				if !isExpectedCloseError(err) {
					s.log.Warn("error writing message", "addr", s.addr, "error", err)
				}
				return
			}

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.log.Warn("error setting write deadline for ping", "addr", s.addr, "error", err)
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) writeCloseMessage() {
	if err := s.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		s.log.Warn("error writing close message", "addr", s.addr, "error", err)
	}
}

// isExpectedCloseError checks if an error is expected during connection
// closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
