// Package api talks to the fleet backend.
package api

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Device is the backend's view of a sensor.
type Device struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MAC      string `json:"mac"`
	Status   string `json:"status"`
	Firmware string `json:"firmware,omitempty"`
}

// NormalizeDevice extracts a Device from a backend response. The backend
// has shipped several envelopes over time:
//
//	{"device": {...}}
//	{"data": {"device": {...}}}
//	{"data": {...}}
//	{...}
//
// and several spellings of the id and address fields.
func NormalizeDevice(body []byte) (Device, error) {
	var root map[string]any
	if err := json.Unmarshal(body, &root); err != nil {
		return Device{}, fmt.Errorf("api: decode device: %w", err)
	}

	obj := root
	if d, ok := root["device"].(map[string]any); ok {
		obj = d
	} else if data, ok := root["data"].(map[string]any); ok {
		if d, ok := data["device"].(map[string]any); ok {
			obj = d
		} else {
			obj = data
		}
	}

	dev := Device{
		ID:       firstString(obj, "id", "_id", "device_id", "deviceId"),
		Name:     firstString(obj, "name", "device_name", "deviceName"),
		MAC:      firstString(obj, "mac", "mac_address", "macAddress"),
		Status:   firstString(obj, "status", "state"),
		Firmware: firstString(obj, "firmware", "firmware_version", "fw"),
	}
	if dev.ID == "" {
		return Device{}, fmt.Errorf("api: response has no device id")
	}
	return dev, nil
}

// firstString returns the first of keys present in obj as a string.
// Numeric ids are formatted without a fraction.
func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
