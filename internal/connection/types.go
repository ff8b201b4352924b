package connection

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected = errors.New("not connected")
)

// State is the connection lifecycle state. Exactly one is active at any
// time.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateReconnecting State = "reconnecting"
	StateError        State = "error"
)

// Envelope is a parsed inbound socket frame. Type selects the notification
// stream; Data is left opaque for the consumer.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"` // unix millis
	ID        string          `json:"id,omitempty"`
}

// ExhaustedEvent is published when automatic reconnection gives up.
type ExhaustedEvent struct {
	Attempts int
}

// Client -> server frames.

// SubscribeCommand subscribes or unsubscribes a topic.
type SubscribeCommand struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Symbol string `json:"symbol"`
}

// PingCommand is the base heartbeat frame.
type PingCommand struct {
	Action string `json:"action"` // "ping"
}

// TradingPing is the trading variant's heartbeat frame. The server echoes
// the timestamp in its pong, which drives the latency metric.
type TradingPing struct {
	Type      string `json:"type"` // "ping"
	Timestamp int64  `json:"timestamp"`
}

// PredictionRequest asks the backend for a price prediction.
type PredictionRequest struct {
	Action string `json:"action"` // "get_prediction"
	Symbol string `json:"symbol"`
	ID     string `json:"id,omitempty"`
}

// StrategyRequest asks the backend to generate a trading strategy.
type StrategyRequest struct {
	Action           string         `json:"action"` // "generate_strategy"
	Symbol           string         `json:"symbol"`
	MarketConditions map[string]any `json:"market_conditions"`
	ID               string         `json:"id,omitempty"`
}

// StatusRequest asks the backend for engine status.
type StatusRequest struct {
	Action string `json:"action"` // "get_status"
	ID     string `json:"id,omitempty"`
}

// ReconnectPolicy controls automatic reconnection. The delay before
// attempt k is BaseDelay * Factor^(k-1), capped at MaxDelay; reconnection
// is abandoned once k exceeds MaxAttempts.
type ReconnectPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
	MaxAttempts int
}

// ManagerConfig configures a Connection Manager.
type ManagerConfig struct {
	URL      string // socket base address (e.g. ws://localhost:8000)
	Endpoint string // path joined onto URL (e.g. /ws/realtime)

	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration

	// HeartbeatFrame builds the periodic ping payload. Defaults to the
	// base {"action":"ping"} frame.
	HeartbeatFrame func() any

	Reconnect ReconnectPolicy
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		URL:               "ws://localhost:8000",
		Endpoint:          "/ws/realtime",
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      5 * time.Second,
		HeartbeatInterval: 25 * time.Second,
		Reconnect: ReconnectPolicy{
			BaseDelay:   1 * time.Second,
			MaxDelay:    30 * time.Second,
			Factor:      1.5,
			MaxAttempts: 10,
		},
	}
}

func (c *ManagerConfig) applyDefaults() {
	def := DefaultManagerConfig()
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.HeartbeatFrame == nil {
		c.HeartbeatFrame = func() any { return PingCommand{Action: "ping"} }
	}
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = def.Reconnect.BaseDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = def.Reconnect.MaxDelay
	}
	if c.Reconnect.Factor == 0 {
		c.Reconnect.Factor = def.Reconnect.Factor
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = def.Reconnect.MaxAttempts
	}
}
