package subscription

import (
	"reflect"
	"testing"

	"github.com/marketdeck/syncd/internal/connection"
)

type fakeSender struct {
	connected bool
	sent      []connection.SubscribeCommand
}

func (f *fakeSender) Send(payload any) error {
	f.sent = append(f.sent, payload.(connection.SubscribeCommand))
	return nil
}

func (f *fakeSender) Connected() bool { return f.connected }

func TestRegistry_SubscribeSendsWhileConnected(t *testing.T) {
	sender := &fakeSender{connected: true}
	r := New(nil)
	r.Bind(sender)

	r.Subscribe("BTC-USD")
	r.Subscribe("ETH-USD")

	want := []connection.SubscribeCommand{
		{Action: "subscribe", Symbol: "BTC-USD"},
		{Action: "subscribe", Symbol: "ETH-USD"},
	}
	if !reflect.DeepEqual(sender.sent, want) {
		t.Errorf("sent = %+v, want %+v", sender.sent, want)
	}
}

func TestRegistry_DuplicateSubscribeIsNoop(t *testing.T) {
	sender := &fakeSender{connected: true}
	r := New(nil)
	r.Bind(sender)

	r.Subscribe("BTC-USD")
	r.Subscribe("BTC-USD")

	if len(sender.sent) != 1 {
		t.Errorf("sent %d frames, want 1 (duplicate must not re-send)", len(sender.sent))
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestRegistry_SubscribeWhileDisconnectedRecordsOnly(t *testing.T) {
	sender := &fakeSender{connected: false}
	r := New(nil)
	r.Bind(sender)

	r.Subscribe("BTC-USD")

	if len(sender.sent) != 0 {
		t.Errorf("sent %d frames while disconnected, want 0", len(sender.sent))
	}
	if !r.Subscribed("BTC-USD") {
		t.Error("topic not recorded for replay")
	}

	// The manager replays Topics() on connect, so the topic is delivered
	// exactly once through that path, not via a second Subscribe.
	if got := r.Topics(); !reflect.DeepEqual(got, []string{"BTC-USD"}) {
		t.Errorf("Topics = %v, want [BTC-USD]", got)
	}
}

func TestRegistry_UnsubscribeRemovesAndSends(t *testing.T) {
	sender := &fakeSender{connected: true}
	r := New(nil)
	r.Bind(sender)

	r.Subscribe("BTC-USD")
	r.Subscribe("ETH-USD")
	r.Unsubscribe("BTC-USD")

	if r.Subscribed("BTC-USD") {
		t.Error("BTC-USD still subscribed after Unsubscribe")
	}
	last := sender.sent[len(sender.sent)-1]
	if last.Action != "unsubscribe" || last.Symbol != "BTC-USD" {
		t.Errorf("last frame = %+v, want unsubscribe BTC-USD", last)
	}
	if got := r.Topics(); !reflect.DeepEqual(got, []string{"ETH-USD"}) {
		t.Errorf("Topics = %v, want [ETH-USD]", got)
	}
}

func TestRegistry_UnsubscribeUnknownIsNoop(t *testing.T) {
	sender := &fakeSender{connected: true}
	r := New(nil)
	r.Bind(sender)

	r.Unsubscribe("nope")
	if len(sender.sent) != 0 {
		t.Errorf("sent %d frames for unknown topic, want 0", len(sender.sent))
	}
}

func TestRegistry_TopicsPreserveInsertionOrder(t *testing.T) {
	r := New(nil)

	for _, topic := range []string{"c", "a", "b"} {
		r.Subscribe(topic)
	}
	r.Unsubscribe("a")
	r.Subscribe("a") // re-added topics go to the back

	want := []string{"c", "b", "a"}
	if got := r.Topics(); !reflect.DeepEqual(got, want) {
		t.Errorf("Topics = %v, want %v", got, want)
	}

	// The returned slice is a copy.
	got := r.Topics()
	got[0] = "mutated"
	if r.Topics()[0] != "c" {
		t.Error("Topics returned internal slice, want copy")
	}
}

func TestRegistry_NilSenderIsSafe(t *testing.T) {
	r := New(nil)
	r.Subscribe("BTC-USD")
	r.Unsubscribe("BTC-USD")
}
