package main

import (
	"context"
	"fmt"
	"os"

	"github.com/chaz8081/sensorprov/internal/api"
	"github.com/chaz8081/sensorprov/internal/config"
)

// RegisterCmd announces a provisioned device to the backend.
type RegisterCmd struct {
	Device string `arg:"" help:"Device id."`
	Name   string `help:"Display name."`
	MAC    string `name:"mac" help:"Device address."`
}

func (c *RegisterCmd) Run(ctx context.Context, cfg *config.Config) error {
	return registerDevice(ctx, cfg, api.RegisterRequest{DeviceID: c.Device, Name: c.Name, MAC: c.MAC})
}

func registerDevice(ctx context.Context, cfg *config.Config, req api.RegisterRequest) error {
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("register: api.base_url is not configured")
	}
	client := api.NewClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout)
	dev, err := client.RegisterDevice(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Registered %s", dev.ID)
	if dev.Status != "" {
		fmt.Fprintf(os.Stdout, " (%s)", dev.Status)
	}
	fmt.Fprintln(os.Stdout)
	return nil
}
