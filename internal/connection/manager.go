package connection

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/marketdeck/syncd/internal/metrics"
)

// TopicSource supplies the topics to replay on every (re)connect. The
// backend has no memory of a disconnected client's interest, so replay is
// the only way subscriptions survive a reconnect.
type TopicSource interface {
	Topics() []string
}

// StateListener observes lifecycle transitions. Listeners are invoked
// synchronously on the transition path, in registration order, so no
// transition is ever skipped from a listener's point of view. A listener
// must not call Connect, Disconnect, or State from inside the callback;
// Send and Connected are safe.
type StateListener func(state State)

// MessageListener observes inbound envelopes.
type MessageListener func(env Envelope)

// ExhaustedListener observes reconnect exhaustion. Fires exactly once per
// exhaustion; only a manual Connect resumes afterwards.
type ExhaustedListener func(ev ExhaustedEvent)

// Manager owns one WebSocket connection and its lifecycle.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger
	topics TopicSource

	// mu guards the lifecycle fields. gen is bumped on every (re)dial and
	// on Disconnect so goroutines belonging to a superseded connection
	// re-validate ownership before mutating state.
	mu             sync.Mutex
	state          State
	gen            int
	conn           *websocket.Conn
	autoReconnect  bool
	attempt        int
	backoff        *backoff.Backoff
	reconnectTimer *time.Timer
	heartbeatStop  chan struct{}

	// Send fast path: no lifecycle lock, so a state listener may send.
	connected atomic.Bool
	writeMu   sync.Mutex
	writeConn *websocket.Conn

	listenerMu         sync.Mutex
	nextListenerID     int
	stateListeners     []registeredState
	msgListeners       []registeredMsg
	exhaustedListeners []registeredExhausted

	latencyMicros atomic.Int64
}

type registeredState struct {
	id int
	fn StateListener
}

type registeredMsg struct {
	id int
	fn MessageListener
}

type registeredExhausted struct {
	id int
	fn ExhaustedListener
}

// NewManager creates a Connection Manager. topics may be nil when there is
// nothing to replay.
func NewManager(cfg ManagerConfig, topics TopicSource, logger *slog.Logger) *Manager {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		cfg:     cfg,
		logger:  logger,
		topics:  topics,
		state:   StateDisconnected,
		backoff: newBackoff(cfg.Reconnect),
	}
}

func newBackoff(p ReconnectPolicy) *backoff.Backoff {
	return &backoff.Backoff{
		Min:    p.BaseDelay,
		Max:    p.MaxDelay,
		Factor: p.Factor,
		Jitter: false,
	}
}

// Connect opens the connection. Idempotent: a no-op while connecting or
// connected. Re-enables auto-reconnect after a Disconnect or exhaustion.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateConnecting || m.state == StateConnected {
		return
	}

	m.autoReconnect = true
	m.attempt = 0
	m.backoff.Reset()
	m.stopReconnectTimerLocked()
	m.setStateLocked(StateConnecting)

	m.gen++
	go m.dial(m.gen)
}

// Disconnect disables auto-reconnect, cancels any pending reconnect timer,
// closes the transport, and settles in the disconnected state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.autoReconnect = false
	m.stopReconnectTimerLocked()
	m.gen++ // invalidate any in-flight dial or read loop
	m.teardownConnLocked()
	m.setStateLocked(StateDisconnected)
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports whether the transport is currently open.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// Latency returns the most recent heartbeat round-trip latency.
func (m *Manager) Latency() time.Duration {
	return time.Duration(m.latencyMicros.Load()) * time.Microsecond
}

// Send serializes and transmits payload. While not connected the call is a
// safe no-op; the TradingClient is the queueing variant.
func (m *Manager) Send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return m.sendRaw(data)
}

func (m *Manager) sendRaw(data []byte) error {
	if !m.connected.Load() {
		m.logger.Debug("send dropped, not connected")
		return nil
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.writeConn == nil {
		return nil
	}
	m.writeConn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	return m.writeConn.WriteMessage(websocket.TextMessage, data)
}

// OnStateChange registers a state observer and returns an unregister
// function. The observer is immediately invoked once with the current
// state, so there is no missed-initial-state race. Registration and the
// initial invoke happen atomically with respect to transitions: a
// transition cannot slip in between them, so the observer always sees its
// initial state first and every later state in transition order.
func (m *Manager) OnStateChange(fn StateListener) func() {
	m.mu.Lock()
	m.listenerMu.Lock()
	m.nextListenerID++
	id := m.nextListenerID
	m.stateListeners = append(m.stateListeners, registeredState{id: id, fn: fn})
	m.listenerMu.Unlock()

	fn(m.state)
	m.mu.Unlock()

	return func() {
		m.listenerMu.Lock()
		defer m.listenerMu.Unlock()
		for i, l := range m.stateListeners {
			if l.id == id {
				m.stateListeners = append(m.stateListeners[:i:i], m.stateListeners[i+1:]...)
				return
			}
		}
	}
}

// OnMessage registers a message observer; returns an unregister function.
func (m *Manager) OnMessage(fn MessageListener) func() {
	m.listenerMu.Lock()
	m.nextListenerID++
	id := m.nextListenerID
	m.msgListeners = append(m.msgListeners, registeredMsg{id: id, fn: fn})
	m.listenerMu.Unlock()

	return func() {
		m.listenerMu.Lock()
		defer m.listenerMu.Unlock()
		for i, l := range m.msgListeners {
			if l.id == id {
				m.msgListeners = append(m.msgListeners[:i:i], m.msgListeners[i+1:]...)
				return
			}
		}
	}
}

// OnReconnectExhausted registers an exhaustion observer; returns an
// unregister function.
func (m *Manager) OnReconnectExhausted(fn ExhaustedListener) func() {
	m.listenerMu.Lock()
	m.nextListenerID++
	id := m.nextListenerID
	m.exhaustedListeners = append(m.exhaustedListeners, registeredExhausted{id: id, fn: fn})
	m.listenerMu.Unlock()

	return func() {
		m.listenerMu.Lock()
		defer m.listenerMu.Unlock()
		for i, l := range m.exhaustedListeners {
			if l.id == id {
				m.exhaustedListeners = append(m.exhaustedListeners[:i:i], m.exhaustedListeners[i+1:]...)
				return
			}
		}
	}
}

// dial establishes the transport for generation g.
func (m *Manager) dial(g int) {
	addr := JoinEndpoint(m.cfg.URL, m.cfg.Endpoint)
	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.HandshakeTimeout}

	conn, _, err := dialer.Dial(addr, nil)

	m.mu.Lock()
	if m.gen != g {
		// Superseded by Disconnect or a newer Connect while dialing.
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		m.logger.Warn("dial failed", "url", addr, "error", err)
		m.setStateLocked(StateError)
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return
	}

	m.conn = conn
	m.attempt = 0
	m.backoff.Reset()

	stop := make(chan struct{})
	m.heartbeatStop = stop

	m.writeMu.Lock()
	m.writeConn = conn
	m.writeMu.Unlock()
	m.connected.Store(true)

	m.setStateLocked(StateConnected)
	m.mu.Unlock()

	m.logger.Info("connected", "url", addr)

	m.resubscribe()
	go m.heartbeatLoop(stop)
	go m.readLoop(conn, g)
}

// resubscribe replays every registry topic, in set order.
func (m *Manager) resubscribe() {
	if m.topics == nil {
		return
	}
	for _, topic := range m.topics.Topics() {
		if err := m.Send(SubscribeCommand{Action: "subscribe", Symbol: topic}); err != nil {
			m.logger.Warn("resubscribe failed", "topic", topic, "error", err)
			continue
		}
		m.logger.Debug("resubscribed", "topic", topic)
	}
}

// readLoop reads frames until the transport fails or is superseded.
func (m *Manager) readLoop(conn *websocket.Conn, g int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(g, err)
			return
		}
		m.handleFrame(data)
	}
}

// handleFrame parses one inbound frame. A malformed frame becomes an error
// envelope; the connection stays open.
func (m *Manager) handleFrame(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		m.logger.Warn("malformed frame", "error", err)
		m.dispatch(Envelope{
			Type:      "error",
			Data:      json.RawMessage(`{"message":"malformed frame"}`),
			Timestamp: time.Now().UnixMilli(),
		})
		return
	}

	if env.Type == "pong" && env.Timestamp > 0 {
		lat := time.Since(time.UnixMilli(env.Timestamp))
		if lat > 0 {
			m.latencyMicros.Store(lat.Microseconds())
			metrics.SocketLatencySeconds.Set(lat.Seconds())
		}
	}

	m.dispatch(env)
}

func (m *Manager) dispatch(env Envelope) {
	m.listenerMu.Lock()
	listeners := make([]registeredMsg, len(m.msgListeners))
	copy(listeners, m.msgListeners)
	m.listenerMu.Unlock()

	for _, l := range listeners {
		l.fn(env)
	}
}

// handleDisconnect runs when generation g's transport closes.
func (m *Manager) handleDisconnect(g int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != g {
		return // already superseded; nothing to do
	}

	if !isNormalClose(err) {
		m.logger.Warn("connection lost", "error", err)
	}

	m.teardownConnLocked()
	m.setStateLocked(StateDisconnected)

	if m.autoReconnect {
		m.scheduleReconnectLocked()
	}
}

// scheduleReconnectLocked arms the backoff timer for the next attempt, or
// signals exhaustion once attempts run out. Caller holds mu.
func (m *Manager) scheduleReconnectLocked() {
	m.attempt++
	if m.attempt > m.cfg.Reconnect.MaxAttempts {
		m.logger.Error("reconnect attempts exhausted",
			"attempts", m.cfg.Reconnect.MaxAttempts,
		)
		m.autoReconnect = false
		m.setStateLocked(StateDisconnected)
		m.notifyExhausted(ExhaustedEvent{Attempts: m.cfg.Reconnect.MaxAttempts})
		return
	}

	delay := m.backoff.Duration()
	metrics.ReconnectAttempts.Inc()
	m.setStateLocked(StateReconnecting)
	m.logger.Info("scheduling reconnect", "attempt", m.attempt, "delay", delay)

	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.state != StateReconnecting || !m.autoReconnect {
			m.mu.Unlock()
			return
		}
		m.setStateLocked(StateConnecting)
		m.gen++
		g := m.gen
		m.mu.Unlock()

		m.dial(g)
	})
}

// heartbeatLoop sends periodic pings for one connection. It runs only
// while that connection is up; stop is closed on teardown so the timer
// never runs while disconnected.
func (m *Manager) heartbeatLoop(stop chan struct{}) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := m.Send(m.cfg.HeartbeatFrame()); err != nil {
				m.logger.Warn("heartbeat send failed", "error", err)
			}
		}
	}
}

func (m *Manager) teardownConnLocked() {
	m.connected.Store(false)

	m.writeMu.Lock()
	m.writeConn = nil
	m.writeMu.Unlock()

	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}

func (m *Manager) stopReconnectTimerLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

// setStateLocked transitions to s and notifies state listeners
// synchronously. Caller holds mu.
func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	metrics.ConnectionState.Set(stateOrdinal(s))

	m.listenerMu.Lock()
	listeners := make([]registeredState, len(m.stateListeners))
	copy(listeners, m.stateListeners)
	m.listenerMu.Unlock()

	for _, l := range listeners {
		l.fn(s)
	}
}

func (m *Manager) notifyExhausted(ev ExhaustedEvent) {
	m.listenerMu.Lock()
	listeners := make([]registeredExhausted, len(m.exhaustedListeners))
	copy(listeners, m.exhaustedListeners)
	m.listenerMu.Unlock()

	for _, l := range listeners {
		l.fn(ev)
	}
}

func stateOrdinal(s State) float64 {
	switch s {
	case StateConnecting:
		return 1
	case StateConnected:
		return 2
	case StateReconnecting:
		return 3
	case StateError:
		return 4
	default:
		return 0
	}
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
	)
}

// JoinEndpoint joins a socket base address and an endpoint path with
// exactly one path separator at the seam.
func JoinEndpoint(base, endpoint string) string {
	base = strings.TrimRight(base, "/")
	if endpoint == "" {
		return base
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return base + endpoint
}
