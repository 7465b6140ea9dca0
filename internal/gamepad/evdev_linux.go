//go:build linux

package gamepad

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	evdev "github.com/gvalkov/golang-evdev"
)

var evdevButtons = map[uint16]Button{
	evdev.BTN_A:      ButtonA,
	evdev.BTN_B:      ButtonB,
	evdev.BTN_X:      ButtonX,
	evdev.BTN_Y:      ButtonY,
	evdev.BTN_TL:     ButtonLeftShoulder,
	evdev.BTN_TR:     ButtonRightShoulder,
	evdev.BTN_SELECT: ButtonBack,
	evdev.BTN_START:  ButtonStart,
	evdev.BTN_MODE:   ButtonGuide,
	evdev.BTN_THUMBL: ButtonLeftStick,
	evdev.BTN_THUMBR: ButtonRightStick,
}

var evdevSticks = map[uint16]Axis{
	evdev.ABS_X:  AxisLeftX,
	evdev.ABS_Y:  AxisLeftY,
	evdev.ABS_RX: AxisRightX,
	evdev.ABS_RY: AxisRightY,
}

var evdevTriggers = map[uint16]Axis{
	evdev.ABS_Z:  AxisTriggerLeft,
	evdev.ABS_RZ: AxisTriggerRight,
}

// Name fragments used to pick gamepads when no device paths are configured.
var gamepadNameHints = []string{"controller", "gamepad", "joystick", "xbox", "dualsense", "dualshock", "pro controller"}

// EvdevReader captures gamepads straight from /dev/input event nodes. Sticks
// are expected in the xpad range (-32768..32767); triggers in 0..TriggerMax.
type EvdevReader struct {
	Paths      []string
	TriggerMax int32

	registry *Registry
	logger   *slog.Logger
}

func NewEvdevReader(registry *Registry, paths []string, triggerMax int32, logger *slog.Logger) *EvdevReader {
	if logger == nil {
		logger = slog.Default()
	}
	if triggerMax <= 0 {
		triggerMax = 255
	}
	return &EvdevReader{
		Paths:      paths,
		TriggerMax: triggerMax,
		registry:   registry,
		logger:     logger.With("component", "capture", "backend", "evdev"),
	}
}

type evdevDevice struct {
	dev  *evdev.InputDevice
	path string
	id   DeviceID
}

func (r *EvdevReader) discover() ([]*evdevDevice, error) {
	paths := r.Paths
	explicit := len(paths) > 0
	if !explicit {
		var err error
		paths, err = filepath.Glob("/dev/input/event*")
		if err != nil {
			return nil, fmt.Errorf("list input devices: %w", err)
		}
	}

	var devices []*evdevDevice
	for _, path := range paths {
		dev, err := evdev.Open(path)
		if err != nil {
			if explicit {
				return nil, fmt.Errorf("open %s: %w", path, err)
			}
			continue
		}
		if !explicit && !looksLikeGamepad(dev.Name) {
			dev.File.Close()
			continue
		}
		devices = append(devices, &evdevDevice{
			dev:  dev,
			path: path,
			id:   DeviceID(len(devices) + 1),
		})
	}
	if len(devices) == 0 {
		return nil, errors.New("no gamepad input devices found")
	}
	return devices, nil
}

func looksLikeGamepad(name string) bool {
	name = strings.ToLower(name)
	for _, hint := range gamepadNameHints {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

// Run opens the devices and starts one read goroutine per device.
func (r *EvdevReader) Run(ctx context.Context, ready func()) error {
	devices, err := r.discover()
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, d := range devices {
		r.registry.Attach(d.id, d.dev.Name)
		r.logger.Info("device opened", "name", d.dev.Name, "path", d.path, "id", d.id)

		wg.Add(1)
		go func(d *evdevDevice) {
			defer wg.Done()
			r.readLoop(ctx, d)
		}(d)
	}
	if ready != nil {
		ready()
	}

	<-ctx.Done()
	for _, d := range devices {
		// Unblocks ReadOne.
		d.dev.File.Close()
	}
	wg.Wait()
	return nil
}

func (r *EvdevReader) readLoop(ctx context.Context, d *evdevDevice) {
	defer r.registry.Detach(d.id)
	for {
		event, err := d.dev.ReadOne()
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("device read failed, detaching", "name", d.dev.Name, "error", err)
			}
			return
		}
		r.apply(d.id, event.Type, event.Code, event.Value)
	}
}

func (r *EvdevReader) apply(id DeviceID, typ, code uint16, value int32) {
	switch typ {
	case evdev.EV_KEY:
		if b, ok := evdevButtons[code]; ok {
			r.registry.SetButton(id, b, value != 0)
		}
	case evdev.EV_ABS:
		switch code {
		case evdev.ABS_HAT0X:
			r.registry.SetButton(id, ButtonDPadLeft, value < 0)
			r.registry.SetButton(id, ButtonDPadRight, value > 0)
			return
		case evdev.ABS_HAT0Y:
			r.registry.SetButton(id, ButtonDPadUp, value < 0)
			r.registry.SetButton(id, ButtonDPadDown, value > 0)
			return
		}
		if a, ok := evdevSticks[code]; ok {
			r.registry.SetAxis(id, a, clampInt16(value))
			return
		}
		if a, ok := evdevTriggers[code]; ok {
			r.registry.SetAxis(id, a, ScaleTrigger(value, 0, r.TriggerMax))
		}
	}
}

func clampInt16(v int32) int16 {
	if v > AxisMax {
		return AxisMax
	}
	if v < -AxisMax {
		return -AxisMax
	}
	return int16(v)
}
