package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chaz8081/sensorprov/internal/display"
	"github.com/chaz8081/sensorprov/internal/provision"
)

// ProvisionFunc runs one provisioning attempt, reporting state changes
// through onEvent. Each call must start from scratch.
type ProvisionFunc func(ctx context.Context, onEvent func(provision.Event)) (provision.Result, error)

// Phase is where the screen is in the attempt lifecycle.
type Phase int

const (
	PhaseRunning Phase = iota
	PhaseDone          // terminal state reached
	PhaseTimeout       // deadline passed, Retry/Cancel dialog shown
	PhaseError         // transport or setup error
	PhaseCancelled
)

// Model is the Bubbletea model for a provisioning session.
type Model struct {
	deviceID string
	ssid     string
	run      ProvisionFunc

	phase   Phase
	current display.Presentation
	rawText string
	result  provision.Result
	err     error
	seq     int
	attempt *attempt
	width   int

	// Components
	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	styles  Styles
}

// --- Custom messages for async operations ---

// startMsg begins a fresh attempt.
type startMsg struct{}

// eventMsg delivers a state machine event from a running attempt.
type eventMsg struct {
	attempt int
	ev      provision.Event
}

// doneMsg signals that an attempt returned.
type doneMsg struct {
	attempt int
	result  provision.Result
	err     error
}

// attempt is the channel between one provisioning goroutine and the UI.
type attempt struct {
	id     int
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	msgs   chan tea.Msg
}

func (a *attempt) send(ctx context.Context, msg tea.Msg) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.msgs <- msg:
	case <-ctx.Done():
	}
}

func (a *attempt) finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	close(a.msgs)
}

// NewModel returns a model that provisions deviceID with run.
func NewModel(deviceID, ssid string, run ProvisionFunc) Model {
	h := help.New()
	h.ShowAll = false

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	m := Model{
		deviceID: deviceID,
		ssid:     ssid,
		run:      run,
		current:  display.ForStatus(provision.StatusIdle, provision.ErrorKeyNone),
		keys:     DefaultKeyMap(),
		help:     h,
		spinner:  s,
		styles:   DefaultStyles(),
	}
	m.updateKeys()
	return m
}

// Init starts the first attempt and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg { return startMsg{} })
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case startMsg:
		cmd := m.start()
		return m, cmd

	case eventMsg:
		if m.attempt == nil || msg.attempt != m.attempt.id {
			return m, nil
		}
		m.current = display.ForEvent(msg.ev)
		if msg.ev.RawText != "" {
			m.rawText = msg.ev.RawText
		}
		return m, waitForMsg(m.attempt.msgs)

	case doneMsg:
		if m.attempt == nil || msg.attempt != m.attempt.id {
			return m, nil
		}
		return m.finish(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.stop()
		if m.phase == PhaseRunning {
			m.phase = PhaseCancelled
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.phase == PhaseDone {
			return m, tea.Quit
		}
		m.stop()
		m.phase = PhaseCancelled
		return m, tea.Quit

	case key.Matches(msg, m.keys.Retry):
		if !m.retryable() {
			return m, nil
		}
		cmd := m.start()
		return m, cmd
	}
	return m, nil
}

// start discards the current attempt and launches a new one.
func (m *Model) start() tea.Cmd {
	m.stop()

	m.seq++
	ctx, cancel := context.WithCancel(context.Background())
	a := &attempt{id: m.seq, cancel: cancel, msgs: make(chan tea.Msg, 16)}
	m.attempt = a
	m.phase = PhaseRunning
	m.current = display.ForStatus(provision.StatusIdle, provision.ErrorKeyNone)
	m.rawText = ""
	m.result = provision.Result{}
	m.err = nil
	m.updateKeys()

	run := m.run
	go func() {
		defer a.finish()
		res, err := run(ctx, func(ev provision.Event) {
			a.send(ctx, eventMsg{attempt: a.id, ev: ev})
		})
		a.send(ctx, doneMsg{attempt: a.id, result: res, err: err})
	}()

	return tea.Batch(m.spinner.Tick, waitForMsg(a.msgs))
}

func (m *Model) stop() {
	if m.attempt != nil {
		m.attempt.cancel()
	}
}

func (m Model) finish(msg doneMsg) (tea.Model, tea.Cmd) {
	m.result = msg.result
	m.err = msg.err

	switch {
	case errors.Is(msg.err, provision.ErrTimeout):
		m.phase = PhaseTimeout
		m.current = display.Timeout()
	case msg.err != nil:
		m.phase = PhaseError
		m.current = display.Unreachable()
	default:
		m.phase = PhaseDone
		m.current = display.ForStatus(msg.result.Status, msg.result.ErrorKey)
	}
	m.updateKeys()

	if m.phase == PhaseDone && msg.result.Success() {
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) retryable() bool {
	switch m.phase {
	case PhaseTimeout, PhaseError:
		return true
	case PhaseDone:
		return !m.result.Success()
	}
	return false
}

func (m *Model) updateKeys() {
	m.keys.Retry.SetEnabled(m.retryable())
}

// Phase returns the current phase.
func (m Model) Phase() Phase {
	return m.phase
}

// Result returns how the last attempt ended.
func (m Model) Result() (provision.Result, error) {
	return m.result, m.err
}

// View renders the screen.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("sensorprov"))
	b.WriteString("  ")
	b.WriteString(m.styles.Subtitle.Render(fmt.Sprintf("provisioning %s", m.deviceID)))
	b.WriteString("\n\n")

	if m.ssid != "" {
		b.WriteString(m.styles.Label.Render("Network"))
		b.WriteString(m.ssid)
		b.WriteString("\n")
	}
	if m.seq > 1 {
		b.WriteString(m.styles.Label.Render("Attempt"))
		b.WriteString(fmt.Sprintf("%d", m.seq))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.phase == PhaseRunning {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
	}
	b.WriteString(m.current.Line())
	b.WriteString("\n")

	if m.rawText != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Label.Render("Device"))
		b.WriteString(m.styles.Muted.Render(m.rawText))
		b.WriteString("\n")
	}

	switch m.phase {
	case PhaseTimeout, PhaseError:
		dialog := m.current.Title + "\n\n" + m.current.Description + "\n\n[r] Retry   [c] Cancel"
		b.WriteString(m.styles.Dialog.BorderForeground(m.current.Color).Render(dialog))
		b.WriteString("\n")
	case PhaseCancelled:
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render("Cancelled."))
		b.WriteString("\n")
	}

	b.WriteString(m.styles.Help.Render(m.help.View(m.keys)))

	return m.styles.App.Render(b.String())
}

// waitForMsg delivers the next message of an attempt.
func waitForMsg(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
