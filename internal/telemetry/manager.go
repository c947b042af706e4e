package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotConnected is returned when an operation needs a live session.
var ErrNotConnected = errors.New("telemetry: not connected")

// Options configures the broker connection.
type Options struct {
	Broker         string // e.g. tcp://localhost:1883
	Username       string
	Password       string
	TopicPrefix    string
	ConnectTimeout time.Duration
	Buffer         int // readings queued before new ones are dropped
}

// Topic returns the telemetry topic for deviceID.
func Topic(prefix, deviceID string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + deviceID + "/telemetry"
}

// Manager holds at most one MQTT session, bound to one device. Connecting
// to another device replaces the session.
type Manager struct {
	opts      Options
	newClient func(*mqtt.ClientOptions) mqtt.Client
	now       func() time.Time

	mu      sync.Mutex
	session *session
}

// session is one broker connection subscribed to one device.
type session struct {
	deviceID string
	topic    string
	client   mqtt.Client

	mu       sync.Mutex
	closed   bool
	readings chan Reading
}

// NewManager returns a manager that connects with paho.
func NewManager(opts Options) *Manager {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	return &Manager{
		opts:      opts,
		newClient: mqtt.NewClient,
		now:       time.Now,
	}
}

// Connect opens a session for deviceID and returns its readings. Calling it
// again for the same device reuses the live session.
func (m *Manager) Connect(ctx context.Context, deviceID string) (<-chan Reading, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("telemetry: empty device id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.session; s != nil {
		if s.deviceID == deviceID && s.client.IsConnected() {
			return s.readings, nil
		}
		m.closeLocked()
	}

	clientID := fmt.Sprintf("sensorprov-%d-%s", os.Getpid(), deviceID)
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.opts.Broker)
	opts.SetClientID(clientID)
	opts.SetUsername(m.opts.Username)
	opts.SetPassword(m.opts.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(m.opts.ConnectTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("[MQTT] connection lost", "device", deviceID, "error", err)
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		slog.Debug("[MQTT] connected", "broker", m.opts.Broker, "client_id", clientID)
	})

	client := m.newClient(opts)
	if err := waitToken(ctx, client.Connect(), m.opts.ConnectTimeout); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("telemetry: connect %s: %w", m.opts.Broker, err)
	}

	s := &session{
		deviceID: deviceID,
		topic:    Topic(m.opts.TopicPrefix, deviceID),
		client:   client,
		readings: make(chan Reading, m.opts.Buffer),
	}

	token := client.Subscribe(s.topic, 1 /* at-least-once */, func(_ mqtt.Client, msg mqtt.Message) {
		s.deliver(msg.Payload(), m.now())
	})
	if err := waitToken(ctx, token, m.opts.ConnectTimeout); err != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("telemetry: subscribe %s: %w", s.topic, err)
	}

	m.session = s
	slog.Info("[MQTT] subscribed", "device", deviceID, "topic", s.topic)
	return s.readings, nil
}

// IsConnectedTo reports whether a live session for deviceID exists.
func (m *Manager) IsConnectedTo(deviceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil && m.session.deviceID == deviceID && m.session.client.IsConnected()
}

// Publish sends a raw payload to the current device's topic.
func (m *Manager) Publish(ctx context.Context, payload []byte) error {
	m.mu.Lock()
	s := m.session
	m.mu.Unlock()
	if s == nil {
		return ErrNotConnected
	}
	token := s.client.Publish(s.topic, 1, false, payload)
	if err := waitToken(ctx, token, m.opts.ConnectTimeout); err != nil {
		return fmt.Errorf("telemetry: publish %s: %w", s.topic, err)
	}
	return nil
}

// Disconnect closes the current session, if any. The readings channel is
// closed. It is safe to call more than once.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

func (m *Manager) closeLocked() {
	s := m.session
	if s == nil {
		return
	}
	m.session = nil

	if s.client.IsConnected() {
		if token := s.client.Unsubscribe(s.topic); !token.WaitTimeout(time.Second) || token.Error() != nil {
			slog.Warn("[MQTT] unsubscribe failed", "topic", s.topic, "error", token.Error())
		}
		s.client.Disconnect(250 /* milliseconds */)
	}
	s.close()
	slog.Info("[MQTT] disconnected", "device", s.deviceID)
}

func (s *session) deliver(payload []byte, now time.Time) {
	r, err := ParseReading(payload, now)
	if err != nil {
		slog.Warn("[MQTT] dropping malformed reading", "topic", s.topic, "error", err)
		return
	}
	if r.DeviceID == "" {
		r.DeviceID = s.deviceID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.readings <- r:
	default:
		slog.Warn("[MQTT] reading buffer full, dropping", "device", s.deviceID)
	}
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.readings)
	}
}

// waitToken waits for a paho token, giving up on ctx or after timeout.
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	}
}
