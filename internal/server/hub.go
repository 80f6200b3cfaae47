// Package server coordinates session registration, message broadcast, and
// connection cleanup for the ratechat WebSocket system via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Hub owns the set of live sessions and handles message broadcasting. All
// registry mutation goes through its channels; the mutex guards the set for
// snapshot reads during broadcast.
type Hub struct {
	sessions   map[*Session]bool
	broadcast  chan string
	register   chan *Session
	unregister chan *Session
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	log        *slog.Logger
}

// NewHub creates a Hub ready to manage sessions. Call Run in its own
// goroutine before registering anything.
func NewHub(log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		sessions:   make(map[*Session]bool),
		broadcast:  make(chan string),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        log,
	}
}

// RegisterChan returns the channel used for registering new sessions.
func (h *Hub) RegisterChan() chan<- *Session {
	return h.register
}

// UnregisterChan returns the channel used for removing sessions.
func (h *Hub) UnregisterChan() chan<- *Session {
	return h.unregister
}

// Broadcast queues a message for delivery to every session registered at the
// time the hub processes it. Delivery is best effort per recipient; the call
// itself never fails.
func (h *Hub) Broadcast(message string) {
	select {
	case h.broadcast <- message:
	case <-h.ctx.Done():
	}
}

// SessionCount reports the number of currently registered sessions.
func (h *Hub) SessionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.sessions)
}

// Run starts the hub's event loop, handling registration, unregistration,
// and broadcasts. It runs until Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownSessions()
			return

		case sess := <-h.register:
			if sess == nil {
				h.log.Warn("received nil session registration; skipping")
				continue
			}

			h.mutex.Lock()
			sess.closed = false
			h.sessions[sess] = true
			count := len(h.sessions)
			h.mutex.Unlock()
			h.log.Info("session registered", "name", sess.name, "addr", sess.addr, "total", count)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				sess.writePump()
			}()
			go func() {
				defer h.wg.Done()
				sess.readPump()
			}()

		case sess := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.sessions[sess]; ok {
				delete(h.sessions, sess)
				sess.closed = true
				count := len(h.sessions)
				h.mutex.Unlock()
				// Close the channel after releasing the lock.
				close(sess.send)
				h.log.Info("session unregistered", "name", sess.name, "addr", sess.addr, "total", count)
			} else {
				h.mutex.Unlock()
			}

		case message := <-h.broadcast:
			h.handleBroadcast(message)
		}
	}
}

// handleBroadcast delivers a message to a snapshot of the current sessions.
// Sessions whose send buffer is full or already closed are dropped from the
// registry; they never block or fail delivery to the rest.
func (h *Hub) handleBroadcast(message string) {
	sessions := h.sessionSnapshot()
	if len(sessions) == 0 {
		return
	}

	var failed []*Session
	for _, sess := range sessions {
		if !h.safeSend(sess, message) {
			failed = append(failed, sess)
		}
	}
	h.removeFailedSessions(failed)
}

func (h *Hub) safeSend(sess *Session, message string) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Warn("recovered from panic in safeSend", "panic", r)
		}
	}()

	// Hold the lock during the send so unregistration cannot close the
	// channel underneath us.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.sessions[sess]; !exists || sess.closed {
		return false
	}

	select {
	case sess.send <- message:
		return true
	default:
		return false
	}
}

func (h *Hub) sessionSnapshot() []*Session {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	sessions := make([]*Session, 0, len(h.sessions))
	for sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

func (h *Hub) removeFailedSessions(failed []*Session) {
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan string
	for _, sess := range failed {
		if _, exists := h.sessions[sess]; exists {
			delete(h.sessions, sess)
			sess.closed = true
			channelsToClose = append(channelsToClose, sess.send)
			h.log.Warn("session removed due to full send buffer", "name", sess.name, "addr", sess.addr)
		}
	}
	h.mutex.Unlock()

	for _, ch := range channelsToClose {
		close(ch)
	}
}

func (h *Hub) shutdownSessions() {
	h.mutex.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.mutex.Unlock()

	for _, sess := range sessions {
		if sess.conn != nil {
			if err := sess.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn("error closing session connection", "addr", sess.addr, "error", err)
			}
		}
	}

	h.log.Info("closed all session connections", "count", len(sessions))
}

// Shutdown stops the event loop and waits for the session goroutines to
// finish, up to the given timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")
	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached; some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
