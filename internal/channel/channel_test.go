package channel

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/malu-zinha/compass-live/internal/clock"
)

// wsServer is a minimal transcription endpoint for channel tests. It
// records connections and can push messages or kill the active socket.
type wsServer struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn
	ids   []string
}

func newWSServer(t *testing.T) *wsServer {
	s := &wsServer{t: t}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.ids = append(s.ids, r.URL.Query().Get("id"))
		s.mu.Unlock()
		// Drain inbound frames so writes from the client succeed.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *wsServer) lastConn() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		return nil
	}
	return s.conns[len(s.conns)-1]
}

func (s *wsServer) push(payload string) {
	if err := s.lastConn().WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		s.t.Fatalf("server push: %v", err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConnectRequiresSession(t *testing.T) {
	c := New(Options{StreamURL: "ws://unused", Log: zerolog.Nop()})
	if err := c.Connect(""); err != ErrNoSession {
		t.Errorf("Connect(\"\") = %v, want ErrNoSession", err)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
}

func TestConnectOpensAndDeliversEvents(t *testing.T) {
	srv := newWSServer(t)

	var mu sync.Mutex
	var events []Event
	c := New(Options{
		StreamURL: srv.url(),
		Log:       zerolog.Nop(),
		OnEvent: func(ev Event) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	})
	defer c.Close()

	if err := c.Connect("42"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if c.State() != StateOpen {
		t.Fatalf("state = %v, want open", c.State())
	}

	srv.mu.Lock()
	id := srv.ids[0]
	srv.mu.Unlock()
	if id != "42" {
		t.Errorf("session id on wire = %q, want 42", id)
	}

	srv.push(`{"transcript_update":[{"id":"A_1","new_words":"hi"}]}`)
	srv.push(`{"bogus":true}`)
	srv.push(`{"transcript_finalize":{"id":"A_1"}}`)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, "events not delivered")

	mu.Lock()
	defer mu.Unlock()
	if events[0].Kind != KindTranscriptDelta || events[1].Kind != KindFinalize {
		t.Errorf("event kinds = %v, %v", events[0].Kind, events[1].Kind)
	}
}

func TestSendDroppedWhenNotOpen(t *testing.T) {
	c := New(Options{StreamURL: "ws://unused", Log: zerolog.Nop()})
	// Must not panic or block.
	c.Send([]byte{1, 2, 3})
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
}

func TestSendWhileOpen(t *testing.T) {
	srv := newWSServer(t)
	c := New(Options{StreamURL: srv.url(), Log: zerolog.Nop()})
	defer c.Close()

	if err := c.Connect("7"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c.Send(make([]byte, 640))
	// No assertion beyond not blocking: the server drains frames.
}

func TestReconnectAfterUnexpectedClose(t *testing.T) {
	srv := newWSServer(t)
	fake := clock.NewFake(time.Unix(0, 0))

	c := New(Options{
		StreamURL: srv.url(),
		Backoff:   3 * time.Second,
		Clock:     fake,
		Log:       zerolog.Nop(),
	})
	defer c.Close()

	if err := c.Connect("9"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Server kills the connection; the channel should arm the backoff.
	srv.lastConn().Close()
	waitFor(t, func() bool { return c.State() == StateReconnecting }, "channel never entered reconnecting")
	if fake.Pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", fake.Pending())
	}

	fake.Advance(3 * time.Second)

	waitFor(t, func() bool { return srv.connCount() == 2 }, "no second connection after backoff")
	waitFor(t, func() bool { return c.State() == StateOpen }, "channel did not reopen")
}

func TestNoReconnectAfterClose(t *testing.T) {
	srv := newWSServer(t)
	fake := clock.NewFake(time.Unix(0, 0))

	c := New(Options{
		StreamURL: srv.url(),
		Backoff:   3 * time.Second,
		Clock:     fake,
		Log:       zerolog.Nop(),
	})

	if err := c.Connect("11"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Unexpected close arms the backoff, then the caller tears down.
	srv.lastConn().Close()
	waitFor(t, func() bool { return c.State() == StateReconnecting }, "channel never entered reconnecting")

	c.Close()
	fake.Advance(10 * time.Second)

	if got := srv.connCount(); got != 1 {
		t.Errorf("connections = %d, want 1 (no reconnect after teardown)", got)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
}

func TestCloseIdempotent(t *testing.T) {
	srv := newWSServer(t)
	c := New(Options{StreamURL: srv.url(), Log: zerolog.Nop()})
	if err := c.Connect("5"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c.Close()
	c.Close()
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
}
