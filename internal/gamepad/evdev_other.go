//go:build !linux

package gamepad

import (
	"context"
	"errors"
	"log/slog"
)

// EvdevReader is only available on linux.
type EvdevReader struct{}

func NewEvdevReader(*Registry, []string, int32, *slog.Logger) *EvdevReader {
	return &EvdevReader{}
}

func (*EvdevReader) Run(context.Context, func()) error {
	return errors.New("evdev capture is only supported on linux")
}
