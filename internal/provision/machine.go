package provision

import (
	"log/slog"
	"sync"
)

// Event describes the machine state after a notification was applied.
type Event struct {
	Status   Status
	ErrorKey ErrorKey
	// RawText is the decoded payload of the notification, for diagnostics.
	RawText string
	// Unknown is set when the device sent a status byte outside the defined
	// range. Code holds that byte; Status keeps the current state.
	Unknown bool
	Code    Status
}

// MachineOptions holds the hooks a Machine calls. All hooks run outside the
// machine's lock and may be nil.
type MachineOptions struct {
	// OnEvent is called on every transition and for unknown status bytes.
	OnEvent func(Event)
	// OnConnecting is the entry action for StatusConnecting.
	OnConnecting func()
	// OnTerminal is the exit action, called once when a terminal state is reached.
	OnTerminal func(Event)
}

// Machine holds the provisioning state of one attempt. It is safe for
// concurrent use: notifications and poll results may be applied from
// different goroutines. A retry must use a new Machine.
type Machine struct {
	opts MachineOptions

	mu       sync.Mutex
	status   Status
	errKey   ErrorKey
	lastText string
	done     chan struct{}
}

// NewMachine returns a machine in StatusIdle.
func NewMachine(opts MachineOptions) *Machine {
	return &Machine{
		opts:   opts,
		status: StatusIdle,
		done:   make(chan struct{}),
	}
}

// Feed runs decode, interpret and transition for one raw buffer.
func (m *Machine) Feed(buf []byte) (Event, bool) {
	return m.Apply(Decode(buf))
}

// Apply interprets n and transitions if it moves the attempt forward. It
// reports whether the state changed. Applying the same notification twice
// is harmless, and nothing moves the machine once it is terminal.
func (m *Machine) Apply(n Notification) (Event, bool) {
	if n.Kind == FrameEmpty {
		slog.Debug("[PROV] empty status buffer ignored")
		return m.current(), false
	}

	out := Interpret(n)

	m.mu.Lock()
	if m.status.Terminal() {
		ev := m.eventLocked()
		m.mu.Unlock()
		slog.Debug("[PROV] late notification after terminal state",
			"status", ev.Status, "kind", n.Kind, "raw", n.RawText)
		return ev, false
	}

	if !out.Matched {
		m.lastText = n.RawText
		ev := m.eventLocked()
		m.mu.Unlock()
		slog.Debug("[PROV] notification not recognised", "kind", n.Kind, "raw", n.RawText)
		return ev, false
	}

	if !out.Status.Known() {
		m.lastText = n.RawText
		ev := m.eventLocked()
		ev.Unknown = true
		ev.Code = out.Status
		m.mu.Unlock()
		slog.Warn("[PROV] unknown status byte", "code", out.Status, "raw", n.RawText)
		m.emit(ev)
		return ev, false
	}

	// The device reporting idle never rewinds an attempt, and repeats of the
	// current state are not transitions.
	if out.Status == StatusIdle || (out.Status == m.status && out.ErrorKey == m.errKey) {
		m.lastText = n.RawText
		ev := m.eventLocked()
		m.mu.Unlock()
		return ev, false
	}

	m.status = out.Status
	m.errKey = out.ErrorKey
	m.lastText = n.RawText
	terminal := m.status.Terminal()
	if terminal {
		close(m.done)
	}
	ev := m.eventLocked()
	m.mu.Unlock()

	slog.Info("[PROV] status changed", "status", ev.Status, "error_key", ev.ErrorKey)
	m.emit(ev)
	if ev.Status == StatusConnecting && m.opts.OnConnecting != nil {
		m.opts.OnConnecting()
	}
	if terminal && m.opts.OnTerminal != nil {
		m.opts.OnTerminal(ev)
	}
	return ev, true
}

// Status returns the current state and error key.
func (m *Machine) Status() (Status, ErrorKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.errKey
}

// Terminal reports whether the attempt has finished.
func (m *Machine) Terminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.Terminal()
}

// Done is closed when the machine reaches a terminal state.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

func (m *Machine) current() Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventLocked()
}

func (m *Machine) eventLocked() Event {
	return Event{Status: m.status, ErrorKey: m.errKey, RawText: m.lastText}
}

func (m *Machine) emit(ev Event) {
	if m.opts.OnEvent != nil {
		m.opts.OnEvent(ev)
	}
}

// Start moves a fresh machine to StatusConnecting once credentials have
// been handed to the device. It is a no-op in any other state.
func (m *Machine) Start() (Event, bool) {
	m.mu.Lock()
	idle := m.status == StatusIdle
	m.mu.Unlock()
	if !idle {
		return m.current(), false
	}
	return m.Apply(Notification{Kind: FrameStatus, Code: StatusConnecting, HasCode: true})
}
