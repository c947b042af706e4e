// Package display maps provisioning outcomes to what the user sees: an
// icon, a colour, a short title and a human readable description.
package display

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/chaz8081/sensorprov/internal/provision"
)

// Kind identifies a display state. The five provisioning states map one to
// one; Unknown, Timeout and Unreachable have no provisioning status of their
// own.
type Kind int

const (
	KindIdle Kind = iota
	KindConnecting
	KindSuccess
	KindFailed
	KindSSIDNotFound
	KindUnknown
	KindTimeout
	KindUnreachable
)

// Presentation is everything needed to render one state.
type Presentation struct {
	Kind        Kind
	Icon        string
	Color       lipgloss.AdaptiveColor
	Title       string
	Description string
}

var (
	colorMuted   = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	colorActive  = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	colorError   = lipgloss.AdaptiveColor{Light: "#E06C75", Dark: "#FF6B6B"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#D19A66", Dark: "#FFCC66"}
)

var presentations = map[Kind]Presentation{
	KindIdle: {
		Icon:        "○",
		Color:       colorMuted,
		Title:       "Ready",
		Description: "Waiting to send WiFi credentials to the device.",
	},
	KindConnecting: {
		Icon:        "◌",
		Color:       colorActive,
		Title:       "Connecting",
		Description: "The device is joining the WiFi network.",
	},
	KindSuccess: {
		Icon:        "✓",
		Color:       colorSuccess,
		Title:       "Connected",
		Description: "The device is online and will start sending readings.",
	},
	KindFailed: {
		Icon:        "✗",
		Color:       colorError,
		Title:       "Connection failed",
		Description: "The device could not connect to the WiFi network.",
	},
	KindSSIDNotFound: {
		Icon:        "?",
		Color:       colorError,
		Title:       "Network not found",
		Description: "The device cannot see that network. Check the name and make sure it is a 2.4 GHz network in range.",
	},
	KindUnknown: {
		Icon:        "!",
		Color:       colorWarning,
		Title:       "Unknown status",
		Description: "The device reported a status this tool does not recognise.",
	},
	KindTimeout: {
		Icon:        "⏱",
		Color:       colorWarning,
		Title:       "No response",
		Description: "The device did not report a result in time. Retry, or cancel and check that it is powered and nearby.",
	},
	KindUnreachable: {
		Icon:        "✗",
		Color:       colorError,
		Title:       "Could not reach the device",
		Description: "Make sure the sensor is powered on and in range, then retry. Run with --log-level debug for details.",
	},
}

// failedDetail refines the Failed description per error key.
var failedDetail = map[provision.ErrorKey]string{
	provision.ErrorKeyWrongPassword: "The WiFi password was rejected. Check it and try again.",
	provision.ErrorKeyWeakSignal:    "The WiFi signal is too weak. Move the device closer to the router.",
	provision.ErrorKeyConnectFailed: "The device could not connect to the WiFi network.",
}

// ForStatus returns the presentation for a provisioning status. Failed is
// refined by key; statuses outside the known set render as unknown.
func ForStatus(status provision.Status, key provision.ErrorKey) Presentation {
	var kind Kind
	switch status {
	case provision.StatusIdle:
		kind = KindIdle
	case provision.StatusConnecting:
		kind = KindConnecting
	case provision.StatusSuccess:
		kind = KindSuccess
	case provision.StatusFailed:
		kind = KindFailed
	case provision.StatusSSIDNotFound:
		kind = KindSSIDNotFound
	default:
		return ForUnknown(uint8(status))
	}

	p := presentations[kind]
	p.Kind = kind
	if kind == KindFailed {
		if detail, ok := failedDetail[key]; ok {
			p.Description = detail
		}
	}
	return p
}

// ForEvent returns the presentation for a state machine event.
func ForEvent(ev provision.Event) Presentation {
	if ev.Unknown {
		return ForUnknown(uint8(ev.Code))
	}
	return ForStatus(ev.Status, ev.ErrorKey)
}

// ForUnknown returns the presentation for an unrecognised status byte.
func ForUnknown(code uint8) Presentation {
	p := presentations[KindUnknown]
	p.Kind = KindUnknown
	p.Title = fmt.Sprintf("Unknown status 0x%02X", code)
	return p
}

// Unreachable is shown when the attempt failed before the device could
// report a status, for example when the connection could not be opened.
func Unreachable() Presentation {
	p := presentations[KindUnreachable]
	p.Kind = KindUnreachable
	return p
}

// Timeout returns the presentation for an attempt that hit its deadline.
func Timeout() Presentation {
	p := presentations[KindTimeout]
	p.Kind = KindTimeout
	return p
}

// Line renders the presentation as a single coloured line.
func (p Presentation) Line() string {
	style := lipgloss.NewStyle().Foreground(p.Color).Bold(true)
	return style.Render(p.Icon+" "+p.Title) + "  " + p.Description
}

// Plain renders the presentation without styling, for logs and pipes.
func (p Presentation) Plain() string {
	return p.Icon + " " + p.Title + ": " + p.Description
}
