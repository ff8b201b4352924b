package connection

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestTradingClient_QueueIsBoundedDropOldest(t *testing.T) {
	c := NewTradingClient(testConfig("ws://localhost:1"), nil, 3, nil)

	for i := 0; i < 5; i++ {
		if _, err := c.RequestPrediction("BTC-USD"); err != nil {
			t.Fatalf("RequestPrediction failed: %v", err)
		}
	}

	if got := c.QueueLen(); got != 3 {
		t.Errorf("QueueLen = %d, want 3 (oldest frames dropped)", got)
	}
}

func TestTradingClient_FlushesQueueOnConnect(t *testing.T) {
	frames := make(chan PredictionRequest, 16)
	url := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req PredictionRequest
			if json.Unmarshal(data, &req) == nil && req.Action == "get_prediction" {
				frames <- req
			}
		}
	})

	c := NewTradingClient(testConfig(url), nil, 10, nil)
	defer c.Disconnect()

	ids := make([]string, 0, 3)
	for _, sym := range []string{"BTC-USD", "ETH-USD", "SOL-USD"} {
		id, err := c.RequestPrediction(sym)
		if err != nil {
			t.Fatalf("RequestPrediction failed: %v", err)
		}
		ids = append(ids, id)
	}
	if got := c.QueueLen(); got != 3 {
		t.Fatalf("QueueLen before connect = %d, want 3", got)
	}

	c.Connect()

	// Queued frames arrive in FIFO order.
	for i, want := range ids {
		select {
		case req := <-frames:
			if req.ID != want {
				t.Errorf("frame %d ID = %q, want %q", i, req.ID, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("queued frame %d never flushed", i)
		}
	}

	if got := c.QueueLen(); got != 0 {
		t.Errorf("QueueLen after flush = %d, want 0", got)
	}
}

func TestTradingClient_SendsDirectlyWhenConnected(t *testing.T) {
	frames := make(chan StatusRequest, 4)
	url := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req StatusRequest
			if json.Unmarshal(data, &req) == nil && req.Action == "get_status" {
				frames <- req
			}
		}
	})

	c := NewTradingClient(testConfig(url), nil, 10, nil)
	defer c.Disconnect()

	states := make(chan State, 16)
	c.OnStateChange(func(s State) { states <- s })
	c.Connect()
	waitForState(t, states, StateConnected)

	id, err := c.RequestStatus()
	if err != nil {
		t.Fatalf("RequestStatus failed: %v", err)
	}
	if id == "" {
		t.Fatal("RequestStatus returned empty request ID")
	}

	select {
	case req := <-frames:
		if req.ID != id {
			t.Errorf("frame ID = %q, want %q", req.ID, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("status request never arrived")
	}
	if got := c.QueueLen(); got != 0 {
		t.Errorf("QueueLen = %d, want 0 (connected sends bypass the queue)", got)
	}
}

func TestTradingClient_RequestIDsAreUnique(t *testing.T) {
	c := NewTradingClient(testConfig("ws://localhost:1"), nil, 10, nil)

	a, _ := c.GenerateStrategy("BTC-USD", map[string]any{"trend": "bullish"})
	b, _ := c.GenerateStrategy("BTC-USD", map[string]any{"trend": "bullish"})
	if a == "" || b == "" || a == b {
		t.Errorf("request IDs must be unique and non-empty, got %q and %q", a, b)
	}
}
