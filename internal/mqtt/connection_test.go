package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}
func (t *fakeToken) Error() error { return t.err }

type recordedSubscription struct {
	topic   string
	qos     byte
	handler paho.MessageHandler
}

// fakeClient records subscribe/unsubscribe/publish calls so tests can drive
// the connection's reconnect behavior without a broker.
type fakeClient struct {
	mu            sync.Mutex
	subscriptions []recordedSubscription
	unsubscribed  []string
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() paho.Token    { return &fakeToken{} }
func (c *fakeClient) Disconnect(uint)        {}

func (c *fakeClient) Publish(string, byte, bool, interface{}) paho.Token {
	return &fakeToken{}
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions = append(c.subscriptions, recordedSubscription{topic: topic, qos: qos, handler: callback})
	return &fakeToken{}
}

func (c *fakeClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &fakeToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribed = append(c.unsubscribed, topics...)
	return &fakeToken{}
}

func (c *fakeClient) AddRoute(string, paho.MessageHandler) {}

func (c *fakeClient) OptionsReader() paho.ClientOptionsReader {
	return paho.ClientOptionsReader{}
}

func (c *fakeClient) recorded() []recordedSubscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]recordedSubscription(nil), c.subscriptions...)
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func newTestConnection(client paho.Client) *Connection {
	return &Connection{
		client: client,
		logger: zap.NewNop(),
		routes: make(map[string]route),
	}
}

func TestSubscribeRecordsRoute(t *testing.T) {
	client := &fakeClient{}
	conn := newTestConnection(client)

	var got [][]byte
	err := conn.Subscribe("sensors/telemetry", 1, func(_ string, payload []byte) {
		got = append(got, payload)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	subs := client.recorded()
	if len(subs) != 1 || subs[0].topic != "sensors/telemetry" || subs[0].qos != 1 {
		t.Fatalf("unexpected subscriptions: %+v", subs)
	}

	subs[0].handler(client, &fakeMessage{topic: "sensors/telemetry", payload: []byte("reading")})
	if len(got) != 1 || string(got[0]) != "reading" {
		t.Errorf("handler not dispatched, got %q", got)
	}
}

func TestReconnectReestablishesSubscription(t *testing.T) {
	client := &fakeClient{}
	conn := newTestConnection(client)

	var got [][]byte
	if err := conn.Subscribe("sensors/telemetry", 1, func(_ string, payload []byte) {
		got = append(got, payload)
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A broker reconnect fires the on-connect handler, which replays every
	// recorded route.
	conn.resubscribe()

	subs := client.recorded()
	if len(subs) != 2 {
		t.Fatalf("expected the route to be re-subscribed, got %d subscribe calls", len(subs))
	}
	if subs[1].topic != "sensors/telemetry" || subs[1].qos != 1 {
		t.Errorf("re-subscription changed the route: %+v", subs[1])
	}

	// Messages arriving after the reconnect process exactly as before.
	subs[1].handler(client, &fakeMessage{topic: "sensors/telemetry", payload: []byte("after-reconnect")})
	if len(got) != 1 || string(got[0]) != "after-reconnect" {
		t.Errorf("handler lost across reconnect, got %q", got)
	}
}

func TestUnsubscribeDropsRouteFromReconnectSet(t *testing.T) {
	client := &fakeClient{}
	conn := newTestConnection(client)

	if err := conn.Subscribe("sensors/telemetry", 1, func(string, []byte) {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := conn.Unsubscribe("sensors/telemetry"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conn.resubscribe()

	if subs := client.recorded(); len(subs) != 1 {
		t.Errorf("unsubscribed route must not be replayed, got %d subscribe calls", len(subs))
	}
	if len(client.unsubscribed) != 1 || client.unsubscribed[0] != "sensors/telemetry" {
		t.Errorf("unexpected unsubscribe calls: %v", client.unsubscribed)
	}
}

func TestSubscriberProcessesAcrossReconnect(t *testing.T) {
	client := &fakeClient{}
	conn := newTestConnection(client)

	var processed []string
	subscriber := NewSubscriber(conn, "sensors/telemetry", zap.NewNop(), func(_ context.Context, payload []byte) {
		processed = append(processed, string(payload))
	})
	if err := subscriber.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deliver := func(payload string) {
		subs := client.recorded()
		subs[len(subs)-1].handler(client, &fakeMessage{topic: "sensors/telemetry", payload: []byte(payload)})
	}

	deliver("before")
	conn.resubscribe()
	deliver("after")

	if len(processed) != 2 || processed[0] != "before" || processed[1] != "after" {
		t.Fatalf("expected both messages processed in order, got %v", processed)
	}

	if err := subscriber.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deliver("late")
	if len(processed) != 2 {
		t.Errorf("stopped subscriber must not process messages, got %v", processed)
	}
}
