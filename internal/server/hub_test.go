package server

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRunningHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testLogger())
	go hub.Run()
	t.Cleanup(func() {
		_ = hub.Shutdown(time.Second)
	})
	return hub
}

// attachSession inserts a connection-less session directly into the registry
// so broadcast semantics can be exercised without real sockets. The read and
// write pumps are never started for these sessions.
func attachSession(t *testing.T, hub *Hub) *Session {
	t.Helper()
	sess := NewSession(nil, hub, nil, "127.0.0.1:0", testLogger())
	hub.mutex.Lock()
	hub.sessions[sess] = true
	hub.mutex.Unlock()
	return sess
}

func receive(t *testing.T, sess *Session, timeout time.Duration) string {
	t.Helper()
	select {
	case msg := <-sess.send:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for message on session %s", sess.Name())
		return ""
	}
}

// TestBroadcastToEmptyRegistryIsNoOp verifies that broadcasting with no
// registered sessions neither blocks nor fails.
func TestBroadcastToEmptyRegistryIsNoOp(t *testing.T) {
	hub := newRunningHub(t)

	done := make(chan struct{})
	go func() {
		hub.Broadcast("nobody home")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast to empty registry blocked")
	}
	assert.Zero(t, hub.SessionCount())
}

// TestBroadcastReachesAllSessions verifies snapshot delivery to every
// registered session.
func TestBroadcastReachesAllSessions(t *testing.T) {
	hub := newRunningHub(t)
	a := attachSession(t, hub)
	b := attachSession(t, hub)

	hub.Broadcast("hello everyone")

	assert.Equal(t, "hello everyone", receive(t, a, time.Second))
	assert.Equal(t, "hello everyone", receive(t, b, time.Second))
	assert.Equal(t, 2, hub.SessionCount())
}

// TestBroadcastSkipsClosedSession verifies that one already-closed session
// does not block or fail delivery to the remaining open sessions, and that
// the dead session is removed from the registry.
func TestBroadcastSkipsClosedSession(t *testing.T) {
	hub := newRunningHub(t)
	open := attachSession(t, hub)
	dead := attachSession(t, hub)

	hub.mutex.Lock()
	dead.closed = true
	hub.mutex.Unlock()

	hub.Broadcast("still delivered")

	assert.Equal(t, "still delivered", receive(t, open, time.Second))
	require.Eventually(t, func() bool {
		return hub.SessionCount() == 1
	}, time.Second, 10*time.Millisecond, "dead session should be removed")
}

// TestBroadcastDropsSessionWithFullBuffer verifies that a session whose send
// buffer is saturated is dropped instead of blocking the broadcast.
func TestBroadcastDropsSessionWithFullBuffer(t *testing.T) {
	hub := newRunningHub(t)
	healthy := attachSession(t, hub)
	stuck := attachSession(t, hub)

	for i := 0; i < cap(stuck.send); i++ {
		stuck.send <- "filler"
	}

	hub.Broadcast("overflow test")

	assert.Equal(t, "overflow test", receive(t, healthy, time.Second))
	require.Eventually(t, func() bool {
		return hub.SessionCount() == 1
	}, time.Second, 10*time.Millisecond, "stuck session should be removed")
}

// TestUnregisterIsIdempotent verifies that unregistering the same session
// twice removes it once and leaves the hub healthy.
func TestUnregisterIsIdempotent(t *testing.T) {
	hub := newRunningHub(t)
	sess := attachSession(t, hub)
	require.Equal(t, 1, hub.SessionCount())

	hub.UnregisterChan() <- sess
	require.Eventually(t, func() bool {
		return hub.SessionCount() == 0
	}, time.Second, 10*time.Millisecond)

	// Second removal of an unknown session must be a no-op.
	hub.UnregisterChan() <- sess
	hub.Broadcast("post-removal")
	assert.Zero(t, hub.SessionCount())
}

// TestSessionNamesAreUnique verifies that each session gets a distinct
// guest display name at creation.
func TestSessionNamesAreUnique(t *testing.T) {
	hub := NewHub(testLogger())

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		sess := NewSession(nil, hub, nil, "127.0.0.1:0", testLogger())
		assert.True(t, strings.HasPrefix(sess.Name(), "guest-"), "name %q", sess.Name())
		assert.False(t, seen[sess.Name()], "duplicate name %q", sess.Name())
		seen[sess.Name()] = true
	}
}
