package connection

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
)

// TradingClient wraps a Manager with an offline send queue and the
// trading-engine request frames. While disconnected, sends are queued up
// to maxQueue frames (oldest dropped first); the queue is flushed in FIFO
// order as soon as the connection comes up.
type TradingClient struct {
	*Manager
	logger *slog.Logger

	queueMu  sync.Mutex
	queue    deque.Deque[[]byte]
	maxQueue int
}

// NewTradingClient creates a trading client. maxQueue <= 0 falls back to
// 100 queued frames.
func NewTradingClient(cfg ManagerConfig, topics TopicSource, maxQueue int, logger *slog.Logger) *TradingClient {
	if logger == nil {
		logger = slog.Default()
	}
	if maxQueue <= 0 {
		maxQueue = 100
	}
	if cfg.HeartbeatFrame == nil {
		cfg.HeartbeatFrame = func() any {
			return TradingPing{Type: "ping", Timestamp: time.Now().UnixMilli()}
		}
	}

	c := &TradingClient{
		Manager:  NewManager(cfg, topics, logger),
		logger:   logger,
		maxQueue: maxQueue,
	}

	c.OnStateChange(func(s State) {
		if s == StateConnected {
			go c.flush()
		}
	})

	return c
}

// Send transmits payload, or queues it while disconnected.
func (c *TradingClient) Send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if !c.Connected() {
		c.enqueue(data)
		return nil
	}
	return c.sendRaw(data)
}

// RequestPrediction asks the engine for a price prediction and returns the
// request ID to correlate the response envelope.
func (c *TradingClient) RequestPrediction(symbol string) (string, error) {
	id := uuid.NewString()
	err := c.Send(PredictionRequest{Action: "get_prediction", Symbol: symbol, ID: id})
	return id, err
}

// GenerateStrategy asks the engine to generate a trading strategy for the
// given market conditions.
func (c *TradingClient) GenerateStrategy(symbol string, conditions map[string]any) (string, error) {
	id := uuid.NewString()
	err := c.Send(StrategyRequest{
		Action:           "generate_strategy",
		Symbol:           symbol,
		MarketConditions: conditions,
		ID:               id,
	})
	return id, err
}

// RequestStatus asks the engine for its current status.
func (c *TradingClient) RequestStatus() (string, error) {
	id := uuid.NewString()
	err := c.Send(StatusRequest{Action: "get_status", ID: id})
	return id, err
}

// QueueLen reports the number of frames waiting for a connection.
func (c *TradingClient) QueueLen() int {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return c.queue.Len()
}

func (c *TradingClient) enqueue(data []byte) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()

	if c.queue.Len() >= c.maxQueue {
		c.queue.PopFront()
		c.logger.Warn("send queue full, dropping oldest frame", "max", c.maxQueue)
	}
	c.queue.PushBack(data)
}

// flush drains the queue in FIFO order. Frames that fail to send are
// dropped; the connection loss that caused the failure re-queues nothing.
func (c *TradingClient) flush() {
	for {
		c.queueMu.Lock()
		if c.queue.Len() == 0 {
			c.queueMu.Unlock()
			return
		}
		data := c.queue.PopFront()
		n := c.queue.Len()
		c.queueMu.Unlock()

		if !c.Connected() {
			// Went down mid-flush; put it back for the next connect.
			c.queueMu.Lock()
			c.queue.PushFront(data)
			c.queueMu.Unlock()
			return
		}
		if err := c.sendRaw(data); err != nil {
			c.logger.Warn("queued send failed", "remaining", n, "error", err)
		}
	}
}
