// Package channel owns the duplex websocket connection for one interview
// session: encoded audio frames go out, transcript and suggestion events
// come in. The channel reconnects on unexpected closes for as long as the
// session is active and goes quiet the moment it is torn down.
package channel

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/malu-zinha/compass-live/internal/clock"
	"github.com/malu-zinha/compass-live/internal/metrics"
)

// ErrNoSession means Connect was called without an interview session id.
var ErrNoSession = errors.New("no active interview session")

// State of the channel's connection lifecycle.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "idle"
	}
}

// Options configures a Channel.
type Options struct {
	// StreamURL is the ws/wss endpoint; the session id is appended as the
	// "id" query parameter.
	StreamURL string
	// Backoff between reconnect attempts after an unexpected close.
	Backoff time.Duration
	// OnEvent receives every decoded inbound event, in delivery order, on
	// the channel's single read goroutine.
	OnEvent func(Event)
	Clock   clock.Clock
	Dialer  *websocket.Dialer
	Log     zerolog.Logger
}

// Channel is the duplex transcription transport for one session. All state
// is session-scoped; two channels never share anything.
type Channel struct {
	streamURL string
	backoff   time.Duration
	onEvent   func(Event)
	clk       clock.Clock
	dialer    *websocket.Dialer
	log       zerolog.Logger

	mu        sync.Mutex
	state     State
	sessionID string
	active    bool
	conn      *websocket.Conn
	retry     clock.Timer
}

// New creates an idle channel. Connect arms it.
func New(opts Options) *Channel {
	if opts.Backoff <= 0 {
		opts.Backoff = 3 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Channel{
		streamURL: opts.StreamURL,
		backoff:   opts.Backoff,
		onEvent:   opts.OnEvent,
		clk:       opts.Clock,
		dialer:    opts.Dialer,
		log:       opts.Log.With().Str("component", "channel").Logger(),
	}
}

// Connect opens the channel for the given session. It fails immediately
// with ErrNoSession when the id is empty — there is nothing to stream to
// without an active interview. On success the websocket handshake has
// completed and the channel is Open.
func (c *Channel) Connect(sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}

	c.mu.Lock()
	c.sessionID = sessionID
	c.active = true
	c.state = StateConnecting
	c.mu.Unlock()

	return c.dial()
}

func (c *Channel) dial() error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	sessionID := c.sessionID
	c.mu.Unlock()

	u, err := url.Parse(c.streamURL)
	if err != nil {
		return fmt.Errorf("parse stream url: %w", err)
	}
	q := u.Query()
	q.Set("id", sessionID)
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.Dial(u.String(), nil)
	if err != nil {
		c.log.Warn().Err(err).Str("session", sessionID).Msg("dial failed")
		c.scheduleReconnect()
		return nil
	}

	c.mu.Lock()
	if !c.active {
		// Torn down while the dial was in flight.
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	c.log.Info().Str("session", sessionID).Msg("channel open")
	go c.readLoop(conn)
	return nil
}

// Send writes one audio frame as a binary message. Valid only while Open:
// outside that state the frame is dropped with a debug log so audio
// capture never blocks on transport state. Write failures are likewise
// recovered locally — the read loop notices the dead connection and
// triggers the reconnect path.
func (c *Channel) Send(frame []byte) {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		metrics.FramesDroppedTotal.Inc()
		c.log.Debug().Int("bytes", len(frame)).Msg("channel not open, dropping frame")
		return
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		metrics.FramesDroppedTotal.Inc()
		c.log.Warn().Err(err).Msg("frame write failed")
		return
	}
	metrics.FramesSentTotal.Inc()
}

// State reports the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		ev, err := DecodeEvent(data)
		if err != nil {
			// Malformed payloads are swallowed: log, drop the single
			// event, keep the channel open.
			metrics.MalformedEventsTotal.Inc()
			c.log.Warn().Err(err).Msg("dropping malformed event")
			continue
		}
		if ev.Kind == KindUnknown {
			continue
		}

		metrics.EventsReceivedTotal.WithLabelValues(ev.Kind.String()).Inc()
		if c.onEvent != nil {
			c.onEvent(ev)
		}
	}
}

// handleClose runs when the read loop dies. If the session is still active
// this is an unexpected close and the reconnect backoff is armed; after
// teardown it is a no-op.
func (c *Channel) handleClose(conn *websocket.Conn, err error) {
	conn.Close()

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	active := c.active
	c.mu.Unlock()

	if !active {
		return
	}

	c.log.Warn().Err(err).Msg("channel closed unexpectedly")
	c.scheduleReconnect()
}

func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || c.retry != nil {
		return
	}
	c.state = StateReconnecting
	c.log.Info().Dur("backoff", c.backoff).Msg("reconnect scheduled")

	c.retry = c.clk.AfterFunc(c.backoff, func() {
		c.mu.Lock()
		c.retry = nil
		// The liveness flag closes the teardown race: a backoff armed
		// before Close must not reconnect after it.
		if !c.active {
			c.mu.Unlock()
			return
		}
		c.state = StateConnecting
		c.mu.Unlock()

		metrics.ReconnectsTotal.Inc()
		_ = c.dial()
	})
}

// Close tears the channel down: marks the session inactive, cancels any
// armed reconnect, closes the connection, and returns to Idle. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	if !c.active && c.state == StateIdle && c.conn == nil {
		c.mu.Unlock()
		return
	}
	c.active = false
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = StateIdle
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}
	c.log.Info().Msg("channel closed")
}
