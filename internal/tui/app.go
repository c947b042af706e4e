package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chaz8081/sensorprov/internal/provision"
)

// Run shows the provisioning screen until the device joins the network or
// the user leaves. It returns the outcome of the last attempt.
func Run(deviceID, ssid string, run ProvisionFunc) (provision.Result, error) {
	p := tea.NewProgram(NewModel(deviceID, ssid, run))

	final, err := p.Run()
	if err != nil {
		return provision.Result{}, fmt.Errorf("tui: %w", err)
	}

	m := final.(Model)
	if m.Phase() == PhaseCancelled {
		return m.result, context.Canceled
	}
	return m.Result()
}
