//go:build !nosdl

package main

import (
	"log/slog"

	"github.com/soar/joyctrl/internal/config"
	"github.com/soar/joyctrl/internal/gamepad"
	"github.com/soar/joyctrl/internal/gamepad/sdlcapture"
)

func openCapture(s config.Settings, registry *gamepad.Registry, logger *slog.Logger) (gamepad.Source, error) {
	if s.Capture == "evdev" {
		return gamepad.NewEvdevReader(registry, s.EvdevDevices, int32(s.EvdevTriggerMax), logger), nil
	}
	return sdlcapture.NewReader(registry, logger), nil
}
