package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chaz8081/sensorprov/internal/ble"
	"github.com/chaz8081/sensorprov/internal/config"
)

// ScanCmd lists nearby sensors.
type ScanCmd struct {
	Prefix  string        `help:"Only list devices whose name starts with this (default from config)."`
	Timeout time.Duration `help:"How long to scan (default from config)."`
}

func (c *ScanCmd) Run(cfg *config.Config) error {
	prefix := c.Prefix
	if prefix == "" {
		prefix = cfg.BLE.NamePrefix
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = cfg.BLE.ScanTimeout
	}

	fmt.Fprintf(os.Stderr, "Scanning for %s...\n", timeout)
	devices, err := ble.ScanForDevices(ble.NewBluetoothAdapter(), prefix, timeout)
	if err != nil {
		return err
	}
	printDevices(os.Stdout, devices)
	return nil
}

func printDevices(w io.Writer, devices []ble.Device) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No sensors found.")
		return
	}
	fmt.Fprintf(w, "%-24s %-40s %s\n", "NAME", "ADDRESS", "RSSI")
	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(w, "%-24s %-40s %d dBm\n", name, d.MAC, d.RSSI)
	}
}
