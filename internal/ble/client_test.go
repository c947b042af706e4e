package ble_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chaz8081/sensorprov/internal/ble"
	"github.com/chaz8081/sensorprov/internal/ble/bletest"
)

const testMAC = "AA:BB:CC:DD:EE:FF"

func TestClientConnect(t *testing.T) {
	adapter := bletest.NewAdapter(nil)
	client := ble.NewClient(adapter, ble.DefaultClientOptions())

	conn, err := client.Connect(context.Background(), testMAC)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if conn == nil {
		t.Fatal("Connect() returned nil connection")
	}
	if !client.IsConnectedTo(testMAC) {
		t.Error("IsConnectedTo() = false after Connect()")
	}
	if client.IsConnectedTo("11:22:33:44:55:66") {
		t.Error("IsConnectedTo() = true for a different device")
	}
}

func TestClientConnectReusesLiveConnection(t *testing.T) {
	adapter := bletest.NewAdapter(nil)
	client := ble.NewClient(adapter, ble.DefaultClientOptions())

	if _, err := client.Connect(context.Background(), testMAC); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if _, err := client.Connect(context.Background(), testMAC); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}
	if got := adapter.Attempts(); got != 1 {
		t.Errorf("adapter attempts = %d, want 1", got)
	}
}

func TestClientConnectToOtherDeviceDropsCurrent(t *testing.T) {
	adapter := bletest.NewAdapter(nil)
	client := ble.NewClient(adapter, ble.DefaultClientOptions())

	if _, err := client.Connect(context.Background(), testMAC); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	first := adapter.LatestConnection()

	if _, err := client.Connect(context.Background(), "11:22:33:44:55:66"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if first.Disconnects() != 1 {
		t.Errorf("first connection disconnects = %d, want 1", first.Disconnects())
	}
	if client.IsConnectedTo(testMAC) {
		t.Error("client still connected to the first device")
	}
}

func TestClientConnectRetries(t *testing.T) {
	adapter := bletest.NewAdapter(nil)
	adapter.FailConnects(1)
	opts := ble.DefaultClientOptions()
	opts.ReconnectMax = 1
	client := ble.NewClient(adapter, opts)

	if _, err := client.Connect(context.Background(), testMAC); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if got := adapter.Attempts(); got != 2 {
		t.Errorf("adapter attempts = %d, want 2", got)
	}
}

func TestClientConnectGivesUp(t *testing.T) {
	adapter := bletest.NewAdapter(nil)
	adapter.FailConnects(10)
	opts := ble.DefaultClientOptions()
	opts.ConnectAttempts = 1
	client := ble.NewClient(adapter, opts)

	_, err := client.Connect(context.Background(), testMAC)
	if !errors.Is(err, bletest.ErrConnect) {
		t.Fatalf("Connect() error = %v, want %v", err, bletest.ErrConnect)
	}
	if client.IsConnectedTo(testMAC) {
		t.Error("IsConnectedTo() = true after failed Connect()")
	}
}

func TestClientConnectHonoursContextDuringBackoff(t *testing.T) {
	adapter := bletest.NewAdapter(nil)
	adapter.FailConnects(10)
	client := ble.NewClient(adapter, ble.DefaultClientOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Connect(ctx, testMAC)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Connect() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Connect() took %v, should stop at ctx deadline", elapsed)
	}
}

func TestClientDisconnectIsIdempotent(t *testing.T) {
	adapter := bletest.NewAdapter(nil)
	client := ble.NewClient(adapter, ble.DefaultClientOptions())

	conn, err := client.Connect(context.Background(), testMAC)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := conn.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if err := conn.Disconnect(); err != nil {
		t.Fatalf("second Disconnect() error = %v", err)
	}
	if err := client.Disconnect(); err != nil {
		t.Fatalf("client Disconnect() error = %v", err)
	}
	if got := adapter.LatestConnection().Disconnects(); got != 1 {
		t.Errorf("underlying disconnects = %d, want 1", got)
	}
	if client.IsConnectedTo(testMAC) {
		t.Error("IsConnectedTo() = true after Disconnect()")
	}
}

func TestClientTracksPeripheralDisconnect(t *testing.T) {
	adapter := bletest.NewAdapter(nil)
	client := ble.NewClient(adapter, ble.DefaultClientOptions())

	if _, err := client.Connect(context.Background(), testMAC); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	adapter.LatestConnection().SimulateDisconnect()

	if client.IsConnectedTo(testMAC) {
		t.Error("IsConnectedTo() = true after peripheral disconnect")
	}
}
