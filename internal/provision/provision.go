package provision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chaz8081/sensorprov/internal/ble"
)

// Provision connects to deviceID through client, runs one provisioning
// attempt and tears it down again. Retrying means calling Provision again:
// every attempt subscribes and sends credentials from scratch.
func Provision(ctx context.Context, client *ble.Client, deviceID string, creds Credentials, opts SessionOptions) (Result, error) {
	if err := creds.Validate(); err != nil {
		return Result{}, err
	}

	conn, err := client.Connect(ctx, deviceID)
	if err != nil {
		return Result{}, fmt.Errorf("provision: %w", err)
	}

	sess, err := NewSession(conn, deviceID, opts)
	if err != nil {
		if derr := conn.Disconnect(); derr != nil {
			slog.Warn("[PROV] disconnect after setup failure", "device", deviceID, "error", derr)
		}
		return Result{}, err
	}
	defer sess.Close()

	return sess.Run(ctx, creds)
}
