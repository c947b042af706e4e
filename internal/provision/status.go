// Package provision implements the WiFi provisioning flow for sensors over
// BLE: decoding status notifications, interpreting them, and driving the
// provisioning state machine with a polling fallback and an overall deadline.
package provision

import "fmt"

// Status is the provisioning state reported by a device. Values match the
// status byte the firmware sends.
type Status uint8

const (
	StatusIdle         Status = 0x00 // no attempt made yet
	StatusConnecting   Status = 0x01 // device is joining the network
	StatusSuccess      Status = 0x02 // device joined the network
	StatusFailed       Status = 0x03 // generic connection failure
	StatusSSIDNotFound Status = 0x04 // target network not visible
)

// Known reports whether s is one of the five defined statuses.
func (s Status) Known() bool {
	return s <= StatusSSIDNotFound
}

// Terminal reports whether s ends a provisioning attempt.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusSSIDNotFound:
		return true
	}
	return false
}

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusSSIDNotFound:
		return "ssid_not_found"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(s))
	}
}

// ErrorKey refines a failure without changing the Status.
type ErrorKey string

const (
	ErrorKeyNone          ErrorKey = ""
	ErrorKeyWrongPassword ErrorKey = "wrong_password"
	ErrorKeySSIDNotFound  ErrorKey = "ssid_not_found"
	ErrorKeyWeakSignal    ErrorKey = "weak_signal"
	ErrorKeyConnectFailed ErrorKey = "connect_failed"
)
