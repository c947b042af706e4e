package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/sensorprov/internal/config"
)

// ConfigCmd groups config file commands.
type ConfigCmd struct {
	Init ConfigInitCmd `cmd:"" help:"Write the default config file"`
	Show ConfigShowCmd `cmd:"" help:"Print the effective config"`
}

type ConfigInitCmd struct{}

func (c *ConfigInitCmd) Run() error {
	path, err := config.WriteDefault()
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
		return nil
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run(cfg *config.Config) error {
	shown := *cfg
	if shown.MQTT.Password != "" {
		shown.MQTT.Password = "***"
	}
	if shown.API.Token != "" {
		shown.API.Token = "***"
	}
	out, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}
