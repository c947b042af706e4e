package provision

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// jsonStart is the first byte of a pure-JSON frame.
const jsonStart = '{'

// FrameKind tells how a status buffer was framed.
type FrameKind int

const (
	FrameEmpty  FrameKind = iota // zero-length buffer
	FrameJSON                    // whole buffer is a JSON object
	FrameText                    // started with '{' but did not parse
	FrameStatus                  // status byte, optionally followed by a payload
)

func (k FrameKind) String() string {
	switch k {
	case FrameEmpty:
		return "empty"
	case FrameJSON:
		return "json"
	case FrameText:
		return "text"
	case FrameStatus:
		return "status"
	default:
		return fmt.Sprintf("FrameKind(%d)", int(k))
	}
}

// Notification is one decoded status buffer.
type Notification struct {
	Kind FrameKind

	// Code is the leading status byte; only meaningful when HasCode is set.
	Code    Status
	HasCode bool

	// JSON is the parsed payload object, nil when absent or malformed.
	JSON map[string]any

	// RawText is the payload for display: indented JSON when it parsed,
	// the plain text otherwise.
	RawText string
}

// Decode converts a raw status buffer into a Notification. A buffer starting
// with '{' is pure JSON; anything else carries a status byte followed by an
// optional JSON (or plain text) payload. Malformed JSON is never an error.
func Decode(buf []byte) Notification {
	if len(buf) == 0 {
		return Notification{Kind: FrameEmpty}
	}

	if buf[0] == jsonStart {
		obj, text := decodePayload(buf)
		if obj == nil {
			return Notification{Kind: FrameText, RawText: text}
		}
		return Notification{Kind: FrameJSON, JSON: obj, RawText: text}
	}

	n := Notification{
		Kind:    FrameStatus,
		Code:    Status(buf[0]),
		HasCode: true,
	}
	if len(buf) > 1 {
		n.JSON, n.RawText = decodePayload(buf[1:])
	}
	return n
}

// DecodeBase64 decodes a characteristic value delivered base64-encoded by
// the BLE binding, then applies Decode.
func DecodeBase64(value string) (Notification, error) {
	buf, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return Notification{}, fmt.Errorf("provision: decode base64 value: %w", err)
	}
	return Decode(buf), nil
}

// decodePayload parses b as a JSON object. It returns the object and its
// indented form, or nil and the plain text when b is not a JSON object.
func decodePayload(b []byte) (map[string]any, string) {
	text := strings.ToValidUTF8(string(b), "�")

	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil || obj == nil {
		return nil, text
	}
	pretty, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return obj, text
	}
	return obj, string(pretty)
}
