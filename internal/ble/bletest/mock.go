// Package bletest provides in-memory implementations of the ble interfaces
// for tests. They record every interaction and let tests simulate
// notifications, read values and disconnects.
package bletest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chaz8081/sensorprov/internal/ble"
)

// Characteristic records writes and reads and allows subscribing.
type Characteristic struct {
	mu           sync.Mutex
	writes       [][]byte
	callback     func([]byte)
	value        []byte
	reads        int
	subscribed   bool
	unsubscribed bool

	ReadErr        error
	WriteErr       error
	SubscribeErr   error
	UnsubscribeErr error

	// OnWrite, when set, is called after every successful write.
	OnWrite func(data []byte)
	// OnRead, when set, is called at the start of every read.
	OnRead func()

	// MTUValue is reported by MTU. Zero means ble.DefaultMTU.
	MTUValue int
	MTUErr   error
}

func (c *Characteristic) Write(data []byte) error {
	c.mu.Lock()
	if c.WriteErr != nil {
		err := c.WriteErr
		c.mu.Unlock()
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	hook := c.OnWrite
	c.mu.Unlock()

	if hook != nil {
		hook(cp)
	}
	return nil
}

func (c *Characteristic) Read() ([]byte, error) {
	c.mu.Lock()
	hook := c.OnRead
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if c.ReadErr != nil {
		return nil, c.ReadErr
	}
	cp := make([]byte, len(c.value))
	copy(cp, c.value)
	return cp, nil
}

func (c *Characteristic) Subscribe(cb func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubscribeErr != nil {
		return c.SubscribeErr
	}
	c.callback = cb
	c.subscribed = true
	return nil
}

func (c *Characteristic) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = nil
	c.unsubscribed = true
	return c.UnsubscribeErr
}

func (c *Characteristic) MTU() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.MTUErr != nil {
		return 0, c.MTUErr
	}
	if c.MTUValue == 0 {
		return ble.DefaultMTU, nil
	}
	return c.MTUValue, nil
}

// SetValue sets the value returned by subsequent reads.
func (c *Characteristic) SetValue(v []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = append([]byte(nil), v...)
}

// SetReadErr makes subsequent reads fail with err (nil clears it).
func (c *Characteristic) SetReadErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ReadErr = err
}

// SimulateNotification sends a notification to the subscriber, if any.
func (c *Characteristic) SimulateNotification(data []byte) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

// Writes returns a copy of everything written so far.
func (c *Characteristic) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// Written returns every write joined in order, as the device would
// reassemble them.
func (c *Characteristic) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []byte
	for _, w := range c.writes {
		out = append(out, w...)
	}
	return out
}

// Reads returns the number of Read calls.
func (c *Characteristic) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Subscribed reports whether Subscribe succeeded at least once.
func (c *Characteristic) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed
}

// Unsubscribed reports whether Unsubscribe was called.
func (c *Characteristic) Unsubscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsubscribed
}

// Connection simulates a connection to a sensor exposing the UART service.
type Connection struct {
	RX     *Characteristic
	Status *Characteristic

	DisconnectErr error

	mu           sync.Mutex
	disconnectCb func()
	disconnects  int
}

// NewConnection returns a connection with fresh RX and status characteristics.
func NewConnection() *Connection {
	return &Connection{
		RX:     &Characteristic{},
		Status: &Characteristic{},
	}
}

func (c *Connection) DiscoverCharacteristic(serviceUUID, charUUID string) (ble.Characteristic, error) {
	if !strings.EqualFold(serviceUUID, ble.ServiceUUID) {
		return nil, fmt.Errorf("mock: unknown service UUID %q", serviceUUID)
	}
	switch strings.ToLower(charUUID) {
	case ble.RXCharUUID:
		return c.RX, nil
	case ble.StatusCharUUID:
		return c.Status, nil
	default:
		return nil, fmt.Errorf("mock: unknown characteristic UUID %q", charUUID)
	}
}

func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	return c.DisconnectErr
}

func (c *Connection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

// SimulateDisconnect triggers the disconnect callback.
func (c *Connection) SimulateDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Disconnects returns how many times Disconnect was called.
func (c *Connection) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

// ErrConnect is returned by Adapter.Connect for each queued failure.
var ErrConnect = errors.New("mock: connect failed")

// Adapter simulates the BLE adapter.
type Adapter struct {
	Devices   []ble.Device
	EnableErr error

	// NewConnection builds the connection handed out by Connect.
	// Defaults to NewConnection.
	NewConnection func() *Connection

	mu         sync.Mutex
	failures   int
	attempts   int
	connection *Connection
}

// NewAdapter returns an adapter that advertises devices.
func NewAdapter(devices []ble.Device) *Adapter {
	return &Adapter{Devices: devices}
}

// FailConnects makes the next n Connect calls fail with ErrConnect.
func (a *Adapter) FailConnects(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = n
}

func (a *Adapter) Enable() error { return a.EnableErr }

func (a *Adapter) Scan(ctx context.Context, _ string) ([]ble.Device, error) {
	return a.Devices, nil
}

func (a *Adapter) Connect(ctx context.Context, _ string) (ble.Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts++
	if a.failures > 0 {
		a.failures--
		return nil, ErrConnect
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	newConn := a.NewConnection
	if newConn == nil {
		newConn = NewConnection
	}
	a.connection = newConn()
	return a.connection, nil
}

// LatestConnection returns the most recently created connection.
func (a *Adapter) LatestConnection() *Connection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connection
}

// Attempts returns the number of Connect calls.
func (a *Adapter) Attempts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempts
}

var (
	_ ble.Adapter        = (*Adapter)(nil)
	_ ble.Connection     = (*Connection)(nil)
	_ ble.Characteristic = (*Characteristic)(nil)
)
