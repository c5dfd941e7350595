package wled

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wledfleet/wledd/internal/errors"
)

const (
	// DefaultBackoffBase is the initial reconnect delay.
	DefaultBackoffBase = 2500 * time.Millisecond

	// DefaultBackoffCap is the reconnect delay ceiling.
	DefaultBackoffCap = 60 * time.Second

	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
)

// StateHandler receives parsed state snapshots. It is invoked from the
// socket's read goroutine; implementations must not block.
type StateHandler func(State)

// StatusHandler receives connection status transitions. Same threading
// contract as StateHandler.
type StatusHandler func(Status)

// SocketConfig tunes a Socket's reconnect behaviour.
type SocketConfig struct {
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Socket is one persistent WebSocket connection to a device's /ws endpoint.
// It owns the connection lifecycle: dialing, the read pump, reconnect with
// exponential backoff, and manual teardown.
//
// Concurrency contract:
//   - Connect, Disconnect, and SendState are safe for concurrent use.
//   - State and status handlers fire on the socket's own goroutines; callers
//     that share state must funnel them into their own writer context.
//   - After Disconnect returns, no reconnect attempt will fire.
type Socket struct {
	addr   string
	logger *slog.Logger
	cfg    SocketConfig
	dialer *websocket.Dialer

	onState  StateHandler
	onStatus StatusHandler

	mu          sync.Mutex
	conn        *websocket.Conn
	status      Status
	manualClose bool
	retryCount  int
	retryTimer  *time.Timer
	gen         uint64 // connection generation; stale pump callbacks are ignored
	lastState   *State
}

// NewSocket creates a socket for the device at addr (host or host:port).
// The socket starts Disconnected; nothing happens until Connect.
func NewSocket(addr string, logger *slog.Logger, cfg SocketConfig, onState StateHandler, onStatus StatusHandler) *Socket {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = DefaultBackoffCap
	}
	return &Socket{
		addr:     addr,
		logger:   logger,
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		onState:  onState,
		onStatus: onStatus,
		status:   StatusDisconnected,
	}
}

// Address returns the address this socket was created against.
func (s *Socket) Address() string {
	return s.addr
}

// Status returns the current connection status.
func (s *Socket) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastState returns the most recent parsed state snapshot, or nil if none
// has been received on the current or any previous connection.
func (s *Socket) LastState() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastState == nil {
		return nil
	}
	st := *s.lastState
	return &st
}

// Connect transitions the socket to Connecting and dials in the background.
// It is a no-op when already Connecting or Connected. An empty address is
// logged and the socket stays Disconnected; there is nothing to retry until
// the caller replaces the socket with an addressed one.
func (s *Socket) Connect() {
	s.mu.Lock()
	if s.status != StatusDisconnected {
		s.mu.Unlock()
		return
	}
	if s.addr == "" {
		s.mu.Unlock()
		s.logger.Warn("socket: connect skipped, no address")
		return
	}
	s.manualClose = false
	s.status = StatusConnecting
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.notifyStatus(StatusConnecting)
	go s.dial(gen)
}

func (s *Socket) dial(gen uint64) {
	url := "ws://" + s.addr + "/ws"
	conn, resp, err := s.dialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		s.logger.Debug("socket: dial failed", "addr", s.addr, "error", err)
		s.handleFailure(gen, nil)
		return
	}

	s.mu.Lock()
	if gen != s.gen || s.manualClose {
		// Torn down while the dial was in flight.
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.status = StatusConnected
	s.retryCount = 0
	s.mu.Unlock()

	s.logger.Info("socket: connected", "addr", s.addr)
	s.notifyStatus(StatusConnected)
	s.readPump(conn, gen)
}

// readPump reads frames until the connection dies. Undecodable frames are
// dropped without touching connection state; the next frame is still read.
func (s *Socket) readPump(conn *websocket.Conn, gen uint64) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.handleFailure(gen, err)
			return
		}

		var st State
		if err := json.Unmarshal(msg, &st); err != nil {
			s.logger.Debug("socket: dropping undecodable frame", "addr", s.addr, "error", err)
			continue
		}

		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.lastState = &st
		// A frame arriving while still Connecting is an implicit open:
		// covers races where the dial result was observed late.
		implicit := s.status == StatusConnecting
		if implicit {
			s.status = StatusConnected
			s.retryCount = 0
		}
		s.mu.Unlock()

		if implicit {
			s.notifyStatus(StatusConnected)
		}
		if s.onState != nil {
			s.onState(st)
		}
	}
}

// handleFailure drives the socket to Disconnected and, unless the close was
// caller-initiated, schedules a reconnect with exponential backoff.
func (s *Socket) handleFailure(gen uint64, cause error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	// First observer of a dead connection wins. Closing the conn below makes
	// the companion goroutine (the read pump, after a write failure) error on
	// the same generation; the bump turns its callback into a no-op so one
	// failure consumes exactly one backoff step.
	s.gen++
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}

	wasManual := s.manualClose
	s.status = StatusDisconnected

	var delay time.Duration
	if !wasManual {
		delay = backoffDelay(s.cfg.BackoffBase, s.cfg.BackoffCap, s.retryCount)
		s.retryCount++
		retries := s.retryCount
		if s.retryTimer != nil {
			s.retryTimer.Stop()
		}
		s.retryTimer = time.AfterFunc(delay, s.retryConnect)
		s.mu.Unlock()

		if cause != nil && !websocket.IsCloseError(cause, websocket.CloseNormalClosure) {
			s.logger.Warn("socket: connection lost", "addr", s.addr, "error", cause, "retry_in", delay, "retries", retries)
		} else {
			s.logger.Debug("socket: connection closed", "addr", s.addr, "retry_in", delay)
		}
	} else {
		s.mu.Unlock()
	}

	s.notifyStatus(StatusDisconnected)
}

// retryConnect fires from the backoff timer. It is skipped when the socket
// was manually disconnected in the meantime, and Connect itself no-ops if an
// attempt is already in progress.
func (s *Socket) retryConnect() {
	s.mu.Lock()
	if s.manualClose {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.Connect()
}

// Disconnect closes the socket with a normal-closure code and cancels any
// pending reconnect. It is idempotent; after it returns no reconnect fires
// until the next Connect.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	s.manualClose = true
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.gen++ // invalidate in-flight dials and pumps
	conn := s.conn
	s.conn = nil
	wasDisconnected := s.status == StatusDisconnected
	s.status = StatusDisconnected
	s.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(writeWait)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}

	if !wasDisconnected {
		s.logger.Info("socket: disconnected", "addr", s.addr)
		s.notifyStatus(StatusDisconnected)
	}
}

// SendState serializes a partial state patch and writes it to the device.
// A send against a disconnected socket is itself a reconnect trigger: the
// socket starts connecting and the send fails with ErrDeviceUnavailable.
// Write failures route through the same failure handling as reads.
func (s *Socket) SendState(patch StatePatch) error {
	s.mu.Lock()
	if s.status != StatusConnected || s.conn == nil {
		s.mu.Unlock()
		s.Connect()
		return errors.DeviceUnavailablef("device %s not connected, reconnect initiated", s.addr)
	}
	conn := s.conn
	gen := s.gen

	payload, err := json.Marshal(patch)
	if err != nil {
		s.mu.Unlock()
		return errors.Internalf("failed to marshal state patch: %v", err)
	}

	// Serialize writes under the socket mutex; gorilla connections allow at
	// most one concurrent writer.
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	werr := conn.WriteMessage(websocket.TextMessage, payload)
	s.mu.Unlock()

	if werr != nil {
		s.handleFailure(gen, werr)
		return errors.DeviceUnavailablef("failed to send state to %s: %v", s.addr, werr)
	}

	s.logger.Debug("socket: sent state patch", "addr", s.addr, "payload", string(payload))
	return nil
}

func (s *Socket) notifyStatus(st Status) {
	if s.onStatus != nil {
		s.onStatus(st)
	}
}

// backoffDelay computes min(base * 2^retry, limit).
func backoffDelay(base, limit time.Duration, retry int) time.Duration {
	d := base
	for i := 0; i < retry; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	if d > limit {
		return limit
	}
	return d
}
