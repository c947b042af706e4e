package ble

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ScanForDevices scans for sensors advertising the Nordic UART service.
// When prefix is non-empty only devices whose advertised name starts with it
// (case-insensitive) are returned.
func ScanForDevices(adapter Adapter, prefix string, timeout time.Duration) ([]Device, error) {
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	devices, err := adapter.Scan(ctx, ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: scan: %w", err)
	}
	if prefix == "" {
		return devices, nil
	}

	var filtered []Device
	for _, d := range devices {
		if strings.HasPrefix(strings.ToLower(d.Name), strings.ToLower(prefix)) {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}
