package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// newTestManager returns a manager whose clients are fakes. clients
// collects every client the manager creates, in order.
func newTestManager(t *testing.T, setup func(*fakeClient)) (*Manager, *[]*fakeClient) {
	t.Helper()
	var clients []*fakeClient
	m := NewManager(Options{
		Broker:         "tcp://broker.test:1883",
		TopicPrefix:    "sensors",
		ConnectTimeout: 200 * time.Millisecond,
		Buffer:         4,
	})
	m.newClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		c := newFakeClient(opts)
		if setup != nil {
			setup(c)
		}
		clients = append(clients, c)
		return c
	}
	m.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return m, &clients
}

func TestTopic(t *testing.T) {
	if got := Topic("sensors/", "dev-1"); got != "sensors/dev-1/telemetry" {
		t.Errorf("Topic() = %q", got)
	}
}

func TestConnectSubscribesAndDelivers(t *testing.T) {
	m, clients := newTestManager(t, nil)

	readings, err := m.Connect(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !m.IsConnectedTo("dev-1") {
		t.Error("IsConnectedTo(dev-1) = false after Connect")
	}

	c := (*clients)[0]
	if !c.deliver("sensors/dev-1/telemetry", []byte(`{"heart_rate":72,"temperature":36.6}`)) {
		t.Fatal("no handler registered on telemetry topic")
	}

	select {
	case r := <-readings:
		if r.DeviceID != "dev-1" {
			t.Errorf("DeviceID = %q, want dev-1", r.DeviceID)
		}
		if v, ok := r.Value(MetricHeartRate); !ok || v != 72 {
			t.Errorf("heart_rate = %v, %v", v, ok)
		}
		if _, ok := r.Value(MetricHumidity); ok {
			t.Error("humidity should be absent")
		}
		if !r.Timestamp.Equal(m.now()) {
			t.Errorf("Timestamp = %v, want injected now", r.Timestamp)
		}
	case <-time.After(time.Second):
		t.Fatal("no reading delivered")
	}
}

func TestConnectSameDeviceReusesSession(t *testing.T) {
	m, clients := newTestManager(t, nil)

	first, err := m.Connect(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	second, err := m.Connect(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if first != second {
		t.Error("second Connect should return the same channel")
	}
	if len(*clients) != 1 {
		t.Errorf("clients created = %d, want 1", len(*clients))
	}
}

func TestConnectOtherDeviceReplacesSession(t *testing.T) {
	m, clients := newTestManager(t, nil)

	first, err := m.Connect(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if _, err := m.Connect(context.Background(), "dev-2"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if m.IsConnectedTo("dev-1") {
		t.Error("still connected to dev-1")
	}
	if !m.IsConnectedTo("dev-2") {
		t.Error("not connected to dev-2")
	}
	old := (*clients)[0]
	if old.IsConnected() || len(old.unsubscribed) != 1 {
		t.Errorf("old client connected=%v unsubscribed=%v", old.IsConnected(), old.unsubscribed)
	}
	if _, ok := <-first; ok {
		t.Error("old readings channel should be closed")
	}
}

func TestConnectError(t *testing.T) {
	m, _ := newTestManager(t, func(c *fakeClient) { c.ConnectErr = errors.New("connection refused") })

	if _, err := m.Connect(context.Background(), "dev-1"); err == nil {
		t.Fatal("Connect() should fail")
	}
	if m.IsConnectedTo("dev-1") {
		t.Error("IsConnectedTo should be false after failed connect")
	}
}

func TestConnectTimesOut(t *testing.T) {
	m, _ := newTestManager(t, func(c *fakeClient) { c.HangConnect = true })

	start := time.Now()
	if _, err := m.Connect(context.Background(), "dev-1"); err == nil {
		t.Fatal("Connect() should time out")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Connect() took %v", elapsed)
	}
}

func TestConnectHonoursContext(t *testing.T) {
	m, _ := newTestManager(t, func(c *fakeClient) { c.HangConnect = true })
	m.opts.ConnectTimeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Connect(ctx, "dev-1"); !errors.Is(err, context.Canceled) {
		t.Errorf("Connect() error = %v, want context.Canceled", err)
	}
}

func TestSubscribeErrorDisconnects(t *testing.T) {
	m, clients := newTestManager(t, func(c *fakeClient) { c.SubscribeErr = errors.New("not authorised") })

	if _, err := m.Connect(context.Background(), "dev-1"); err == nil {
		t.Fatal("Connect() should fail")
	}
	if (*clients)[0].IsConnected() {
		t.Error("client left connected after subscribe failure")
	}
}

func TestMalformedReadingDropped(t *testing.T) {
	m, clients := newTestManager(t, nil)
	readings, err := m.Connect(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	(*clients)[0].deliver("sensors/dev-1/telemetry", []byte("not json"))
	select {
	case r := <-readings:
		t.Errorf("unexpected reading %+v", r)
	default:
	}
}

func TestFullBufferDropsNewReadings(t *testing.T) {
	m, clients := newTestManager(t, nil)
	readings, err := m.Connect(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	c := (*clients)[0]
	for i := 0; i < 10; i++ {
		c.deliver("sensors/dev-1/telemetry", []byte(`{"stress":1}`))
	}
	if got := len(readings); got != 4 {
		t.Errorf("queued readings = %d, want 4", got)
	}
}

func TestDisconnectIdempotentAndClosesChannel(t *testing.T) {
	m, clients := newTestManager(t, nil)
	readings, err := m.Connect(context.Background(), "dev-1")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	m.Disconnect()
	m.Disconnect()

	if _, ok := <-readings; ok {
		t.Error("readings channel should be closed")
	}
	c := (*clients)[0]
	if c.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", c.disconnects)
	}
	if m.IsConnectedTo("dev-1") {
		t.Error("IsConnectedTo should be false after Disconnect")
	}
}

func TestLateDeliveryAfterCloseIgnored(t *testing.T) {
	m, clients := newTestManager(t, nil)
	if _, err := m.Connect(context.Background(), "dev-1"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	c := (*clients)[0]
	c.mu.Lock()
	handler := c.handlers["sensors/dev-1/telemetry"]
	c.mu.Unlock()

	m.Disconnect()
	handler(c, &fakeMessage{topic: "sensors/dev-1/telemetry", payload: []byte(`{"hrv":40}`)})
}

func TestPublish(t *testing.T) {
	m, clients := newTestManager(t, nil)

	if err := m.Publish(context.Background(), []byte("{}")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() before Connect error = %v, want ErrNotConnected", err)
	}

	if _, err := m.Connect(context.Background(), "dev-1"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := m.Publish(context.Background(), []byte(`{"heart_rate":60}`)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got := len((*clients)[0].published["sensors/dev-1/telemetry"]); got != 1 {
		t.Errorf("published = %d, want 1", got)
	}
}
