package provision

import (
	"fmt"
	"strings"
)

// Outcome is the interpretation of a single Notification.
type Outcome struct {
	Status   Status
	ErrorKey ErrorKey
	// Matched is false when nothing in the notification was recognised;
	// the caller must not transition in that case.
	Matched bool
}

// Interpret applies the precedence rules to n. A JSON error field wins over
// everything, then result/status fields, then the raw status byte.
func Interpret(n Notification) Outcome {
	if msg, ok := truthy(n.JSON, "error"); ok {
		key := ClassifyError(msg)
		if key == ErrorKeySSIDNotFound {
			return Outcome{Status: StatusSSIDNotFound, ErrorKey: key, Matched: true}
		}
		return Outcome{Status: StatusFailed, ErrorKey: key, Matched: true}
	}

	if result, _ := truthy(n.JSON, "result"); result == "success" {
		return Outcome{Status: StatusSuccess, Matched: true}
	}

	switch status, _ := truthy(n.JSON, "status"); status {
	case "connecting", "received", "sent":
		return Outcome{Status: StatusConnecting, Matched: true}
	case "connected":
		return Outcome{Status: StatusSuccess, Matched: true}
	}

	if !n.HasCode {
		return Outcome{}
	}

	out := Outcome{Status: n.Code, Matched: true}
	switch n.Code {
	case StatusSSIDNotFound:
		out.ErrorKey = ErrorKeySSIDNotFound
	case StatusFailed:
		out.ErrorKey = ErrorKeyConnectFailed
	}
	return out
}

// ClassifyError maps a device error message to an ErrorKey by substring.
// Unrecognised messages fall into connect_failed.
func ClassifyError(msg string) ErrorKey {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "password"):
		return ErrorKeyWrongPassword
	case strings.Contains(msg, "ssid"):
		return ErrorKeySSIDNotFound
	case strings.Contains(msg, "weak"):
		return ErrorKeyWeakSignal
	case strings.Contains(msg, "connect"):
		return ErrorKeyConnectFailed
	default:
		return ErrorKeyConnectFailed
	}
}

// truthy returns obj[key] as a string when it is set to something other
// than null, false or the empty string.
func truthy(obj map[string]any, key string) (string, bool) {
	v, ok := obj[key]
	if !ok || v == nil {
		return "", false
	}
	switch v := v.(type) {
	case string:
		return v, v != ""
	case bool:
		return "true", v
	case float64:
		return fmt.Sprint(v), v != 0
	default:
		return fmt.Sprint(v), true
	}
}
