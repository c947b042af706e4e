package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/chaz8081/sensorprov/internal/api"
	"github.com/chaz8081/sensorprov/internal/config"
	"github.com/chaz8081/sensorprov/internal/display"
	"github.com/chaz8081/sensorprov/internal/provision"
	"github.com/chaz8081/sensorprov/internal/tui"
)

// ProvisionCmd sends WiFi credentials to a sensor.
type ProvisionCmd struct {
	Device   string `arg:"" help:"Device address as printed by scan."`
	SSID     string `name:"ssid" required:"" help:"WiFi network name."`
	Password string `env:"SENSORPROV_WIFI_PASSWORD" help:"WiFi password (or set SENSORPROV_WIFI_PASSWORD)."`
	TUI      bool   `name:"tui" help:"Show the interactive provisioning screen."`
	Register bool   `help:"Register the device with the backend after it joins the network."`
}

func (c *ProvisionCmd) Run(ctx context.Context, cfg *config.Config) error {
	creds := provision.Credentials{SSID: c.SSID, Password: c.Password}
	if err := creds.Validate(); err != nil {
		return err
	}

	client := newBLEClient(cfg)
	defer client.Disconnect()

	attempt := func(ctx context.Context, onEvent func(provision.Event)) (provision.Result, error) {
		opts := sessionOptions(cfg)
		opts.OnEvent = onEvent
		return provision.Provision(ctx, client, c.Device, creds, opts)
	}

	var (
		res provision.Result
		err error
	)
	if c.TUI {
		res, err = tui.Run(c.Device, c.SSID, attempt)
	} else {
		res, err = runPlain(ctx, os.Stdout, bufio.NewReader(os.Stdin), attempt)
	}
	if err != nil {
		return attemptError(c.Device, err)
	}
	if !res.Success() {
		p := display.ForStatus(res.Status, res.ErrorKey)
		return fmt.Errorf("%s: %s", p.Title, p.Description)
	}

	if c.Register {
		return registerDevice(ctx, cfg, api.RegisterRequest{DeviceID: c.Device, MAC: c.Device, SSID: c.SSID})
	}
	return nil
}

// attemptError turns an attempt error into the message shown to the user.
// Transport and setup errors are reduced to a fixed message; the underlying
// error only goes to the debug log.
func attemptError(device string, err error) error {
	var p display.Presentation
	switch {
	case errors.Is(err, context.Canceled):
		return errors.New("provisioning cancelled")
	case errors.Is(err, provision.ErrTimeout):
		p = display.Timeout()
	default:
		slog.Debug("[PROV] attempt failed", "device", device, "error", err)
		p = display.Unreachable()
	}
	return fmt.Errorf("%s: %s", p.Title, p.Description)
}

// runPlain runs attempts with line output, asking before each retry after
// a timeout.
func runPlain(ctx context.Context, w io.Writer, in *bufio.Reader, attempt tui.ProvisionFunc) (provision.Result, error) {
	for {
		res, err := attempt(ctx, func(ev provision.Event) {
			fmt.Fprintln(w, display.ForEvent(ev).Plain())
			if ev.Unknown && ev.RawText != "" {
				fmt.Fprintf(w, "  device said: %s\n", ev.RawText)
			}
		})
		if !errors.Is(err, provision.ErrTimeout) {
			if err != nil && !errors.Is(err, context.Canceled) {
				fmt.Fprintln(w, display.Unreachable().Plain())
			}
			return res, err
		}

		fmt.Fprintln(w, display.Timeout().Plain())
		if !confirm(w, in, "Retry?") {
			return res, err
		}
	}
}

func confirm(w io.Writer, in *bufio.Reader, question string) bool {
	fmt.Fprintf(w, "%s [y/N] ", question)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
