//go:build nosdl

package main

import (
	"errors"
	"log/slog"

	"github.com/soar/joyctrl/internal/config"
	"github.com/soar/joyctrl/internal/gamepad"
)

// Built with -tags nosdl: no libSDL3 is loaded and only evdev capture exists.
func openCapture(s config.Settings, registry *gamepad.Registry, logger *slog.Logger) (gamepad.Source, error) {
	if s.Capture == "evdev" {
		return gamepad.NewEvdevReader(registry, s.EvdevDevices, int32(s.EvdevTriggerMax), logger), nil
	}
	return nil, errors.New("built without SDL support (nosdl tag), use --capture=evdev")
}
