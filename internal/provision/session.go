package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/sensorprov/internal/ble"
)

// ErrTimeout is returned by Session.Run when no terminal state was reached
// before the deadline. It is retryable and distinct from StatusFailed.
var ErrTimeout = errors.New("provision: no response from device")

const (
	DefaultPollInterval = 2 * time.Second
	DefaultTimeout      = 45 * time.Second
)

// SessionOptions configures a provisioning attempt.
type SessionOptions struct {
	PollInterval time.Duration // manual status reads while not terminal
	Timeout      time.Duration // overall deadline from the start of Run
	ChunkDelay   time.Duration // pause between credential write chunks
	OnEvent      func(Event)   // state updates for the UI; may be nil
}

// DefaultSessionOptions returns the firmware-recommended timings.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		PollInterval: DefaultPollInterval,
		Timeout:      DefaultTimeout,
		ChunkDelay:   ble.DefaultChunkDelay,
	}
}

// Result is the state an attempt ended in.
type Result struct {
	Status   Status
	ErrorKey ErrorKey
}

// Success reports whether the device joined the network.
func (r Result) Success() bool {
	return r.Status == StatusSuccess
}

// Session is one provisioning attempt against a connected device. Status
// notifications and manual reads both feed the same Machine, so whichever
// arrives first wins. A Session is single use; Close it when done.
type Session struct {
	conn     ble.Connection
	deviceID string
	status   ble.Characteristic
	rx       ble.Characteristic
	opts     SessionOptions
	machine  *Machine

	reading atomic.Bool
	reads   sync.WaitGroup

	mu         sync.Mutex
	ticker     *time.Ticker
	deadline   *time.Timer
	timedOut   chan struct{}
	subscribed bool
	closed     bool

	closeOnce sync.Once
	closeErr  error
}

// NewSession discovers the UART characteristics on conn.
func NewSession(conn ble.Connection, deviceID string, opts SessionOptions) (*Session, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ChunkDelay <= 0 {
		opts.ChunkDelay = ble.DefaultChunkDelay
	}

	statusChar, err := conn.DiscoverCharacteristic(ble.ServiceUUID, ble.StatusCharUUID)
	if err != nil {
		return nil, fmt.Errorf("provision: discover status characteristic: %w", err)
	}
	rxChar, err := conn.DiscoverCharacteristic(ble.ServiceUUID, ble.RXCharUUID)
	if err != nil {
		return nil, fmt.Errorf("provision: discover RX characteristic: %w", err)
	}

	s := &Session{
		conn:     conn,
		deviceID: deviceID,
		status:   statusChar,
		rx:       rxChar,
		opts:     opts,
		timedOut: make(chan struct{}),
	}
	s.machine = NewMachine(MachineOptions{
		OnEvent:      opts.OnEvent,
		OnConnecting: s.armDeadline,
		OnTerminal: func(Event) {
			s.stopPoll()
			s.stopDeadline()
		},
	})
	return s, nil
}

// Machine exposes the session's state machine.
func (s *Session) Machine() *Machine {
	return s.machine
}

// Run subscribes to status notifications, sends creds, reads the status once
// and then polls until the device reports a terminal state. It returns
// ErrTimeout if the deadline passes first and ctx.Err() on cancellation;
// in both cases the machine state is left as it was.
func (s *Session) Run(ctx context.Context, creds Credentials) (Result, error) {
	payload, err := creds.Marshal()
	if err != nil {
		return s.result(), err
	}

	s.armDeadline()

	if err := s.status.Subscribe(s.onNotification); err != nil {
		// Polling still covers us.
		slog.Warn("[PROV] subscribe failed, relying on polling",
			"device", s.deviceID, "char", ble.StatusCharUUID, "error", err)
	} else {
		s.mu.Lock()
		s.subscribed = true
		s.mu.Unlock()
	}

	if err := ble.WriteChunked(s.rx, payload, s.opts.ChunkDelay); err != nil {
		return s.result(), fmt.Errorf("provision: send credentials to %s: %w", s.deviceID, err)
	}
	slog.Info("[PROV] credentials sent", "device", s.deviceID, "ssid", creds.SSID)
	s.machine.Start()

	s.startRead()
	tick := s.startPoll()

	for {
		select {
		case <-s.machine.Done():
			return s.result(), nil
		case <-s.timedOut:
			s.stopPoll()
			// A terminal notification may have raced the deadline.
			if s.machine.Terminal() {
				return s.result(), nil
			}
			slog.Warn("[PROV] no terminal status before deadline",
				"device", s.deviceID, "timeout", s.opts.Timeout)
			return s.result(), ErrTimeout
		case <-ctx.Done():
			return s.result(), ctx.Err()
		case <-tick:
			if !s.machine.Terminal() {
				s.startRead()
			}
		}
	}
}

// Close tears the attempt down: stop polling, stop the deadline, drop the
// notification subscription and disconnect. Every step runs even when an
// earlier one fails. Close returns once no status read is in flight and is
// idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		subscribed := s.subscribed
		s.subscribed = false
		s.closed = true
		s.mu.Unlock()

		errs := []error{
			runStep("stop poll", func() error { s.stopPoll(); return nil }),
			runStep("stop deadline", func() error { s.stopDeadline(); return nil }),
		}
		if subscribed {
			errs = append(errs, runStep("unsubscribe", s.status.Unsubscribe))
		}
		errs = append(errs, runStep("disconnect", s.conn.Disconnect))
		// A read blocked on the link returns once it is gone.
		s.reads.Wait()
		s.closeErr = errors.Join(errs...)
		if s.closeErr != nil {
			slog.Warn("[PROV] teardown incomplete", "device", s.deviceID, "error", s.closeErr)
		}
	})
	return s.closeErr
}

// runStep runs one teardown step, turning a panic into an error so the
// remaining steps still run.
func runStep(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provision: %s: panic: %v", name, r)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("provision: %s: %w", name, err)
	}
	return nil
}

func (s *Session) onNotification(buf []byte) {
	slog.Debug("[PROV] notification", "device", s.deviceID, "bytes", fmt.Sprintf("%X", buf))
	s.machine.Feed(buf)
}

// startRead launches one manual read unless the session is closed.
func (s *Session) startRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.reads.Add(1)
	go func() {
		defer s.reads.Done()
		s.readStatus()
	}()
}

// readStatus performs one manual read. At most one read is in flight; a
// failed read is logged and left to the next poll.
func (s *Session) readStatus() {
	if !s.reading.CompareAndSwap(false, true) {
		slog.Debug("[PROV] status read already in flight", "device", s.deviceID)
		return
	}
	defer s.reading.Store(false)

	buf, err := s.status.Read()
	if err != nil {
		slog.Warn("[PROV] status read failed",
			"device", s.deviceID, "char", ble.StatusCharUUID, "error", err)
		return
	}
	slog.Debug("[PROV] status read", "device", s.deviceID, "bytes", fmt.Sprintf("%X", buf))
	s.machine.Feed(buf)
}

func (s *Session) armDeadline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deadline != nil {
		return
	}
	timedOut := s.timedOut
	s.deadline = time.AfterFunc(s.opts.Timeout, func() { close(timedOut) })
}

func (s *Session) stopDeadline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deadline != nil {
		s.deadline.Stop()
	}
}

func (s *Session) startPoll() <-chan time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine.Terminal() {
		return nil
	}
	s.ticker = time.NewTicker(s.opts.PollInterval)
	return s.ticker.C
}

func (s *Session) stopPoll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		s.ticker.Stop()
	}
}

func (s *Session) result() Result {
	status, key := s.machine.Status()
	return Result{Status: status, ErrorKey: key}
}
