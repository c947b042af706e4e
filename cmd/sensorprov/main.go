// Command sensorprov provisions health sensors onto WiFi over BLE and
// follows their telemetry.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/chaz8081/sensorprov/internal/ble"
	"github.com/chaz8081/sensorprov/internal/config"
	"github.com/chaz8081/sensorprov/internal/logging"
	"github.com/chaz8081/sensorprov/internal/provision"
)

// CLI is the root command structure for sensorprov.
type CLI struct {
	ConfigPath string `name:"config" help:"Path to config file (default: ~/.config/sensorprov/config.yaml)." placeholder:"PATH"`
	LogLevel   string `help:"Override the configured log level."`

	Scan      ScanCmd      `cmd:"" help:"Scan for sensors advertising the provisioning service"`
	Provision ProvisionCmd `cmd:"" help:"Send WiFi credentials to a sensor and follow its status"`
	Decode    DecodeCmd    `cmd:"" help:"Decode a captured status notification"`
	Watch     WatchCmd     `cmd:"" help:"Stream a sensor's telemetry from the MQTT broker"`
	Register  RegisterCmd  `cmd:"" help:"Register a provisioned sensor with the backend"`
	Config    ConfigCmd    `cmd:"" help:"Manage the config file"`
}

func main() {
	var cli CLI
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx := kong.Parse(&cli,
		kong.Name("sensorprov"),
		kong.Description("BLE WiFi provisioning and telemetry companion for sensor devices."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	cfg, err := loadConfig(cli.ConfigPath)
	if err != nil {
		kctx.Fatalf("config: %v", err)
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		kctx.Fatalf("config validation: %v", err)
	}
	logging.Setup(cfg.LogLevel, os.Stderr)

	err = kctx.Run(&cli, cfg)
	kctx.FatalIfErrorf(err)
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		slog.Debug("Config loaded", "path", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	slog.Debug("No config file found, using defaults")
	return config.Default(), nil
}

func newBLEClient(cfg *config.Config) *ble.Client {
	return ble.NewClient(ble.NewBluetoothAdapter(), ble.ClientOptions{
		ConnectAttempts: cfg.BLE.ConnectAttempts,
		ConnectTimeout:  cfg.BLE.ConnectTimeout,
	})
}

func sessionOptions(cfg *config.Config) provision.SessionOptions {
	return provision.SessionOptions{
		PollInterval: cfg.Provision.PollInterval,
		Timeout:      cfg.Provision.Timeout,
	}
}
