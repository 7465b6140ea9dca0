//go:build !nosdl

// Package sdlcapture reads joysticks through SDL3. It is kept apart from
// package gamepad because the SDL bindings load libSDL3 at init.
package sdlcapture

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/jupiterrider/purego-sdl3/sdl"

	"github.com/soar/joyctrl/internal/gamepad"
)

var _ gamepad.Source = (*Reader)(nil)

const pollDelayNS = 4_000_000 // ~250Hz

type joystickInfo struct {
	joystick *sdl.Joystick
	mapping  *gamepad.DeviceMapping
	name     string
	id       gamepad.DeviceID
}

// Reader captures every connected joystick through the SDL3 joystick API
// and writes its state into a Registry.
type Reader struct {
	registry  *gamepad.Registry
	logger    *slog.Logger
	joysticks map[sdl.JoystickID]*joystickInfo
}

// NewReader returns a Reader writing into registry.
func NewReader(registry *gamepad.Registry, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		registry:  registry,
		logger:    logger.With("component", "capture", "backend", "sdl"),
		joysticks: make(map[sdl.JoystickID]*joystickInfo),
	}
}

// Run initializes SDL and runs the event+polling loop on a locked OS thread.
func (r *Reader) Run(ctx context.Context, ready func()) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if !sdl.Init(sdl.InitJoystick) {
		return fmt.Errorf("sdl init: %s", sdl.GetError())
	}
	defer sdl.Quit()

	r.logger.Info("SDL3 joystick subsystem initialized")

	for _, id := range sdl.GetJoysticks() {
		r.openJoystick(id)
	}
	if ready != nil {
		ready()
	}

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return nil
		default:
		}

		r.processEvents()
		r.pollState()
		sdl.DelayNS(pollDelayNS)
	}
}

func (r *Reader) processEvents() {
	var event sdl.Event
	for sdl.PollEvent(&event) {
		switch event.Type() {
		case sdl.EventJoystickAdded:
			r.openJoystick(event.JDevice().Which)
		case sdl.EventJoystickRemoved:
			r.removeJoystick(event.JDevice().Which)
		}
	}
}

func (r *Reader) openJoystick(instanceID sdl.JoystickID) {
	if _, exists := r.joysticks[instanceID]; exists {
		return
	}

	js := sdl.OpenJoystick(instanceID)
	if js == nil {
		r.logger.Warn("failed to open joystick", "instance", instanceID, "error", sdl.GetError())
		return
	}

	jsID := sdl.GetJoystickID(js)
	vendorID := sdl.GetJoystickVendor(js)
	productID := sdl.GetJoystickProduct(js)
	name := sdl.GetJoystickName(js)
	mapping := gamepad.GetMapping(vendorID, productID)

	info := &joystickInfo{
		joystick: js,
		mapping:  mapping,
		name:     name,
		id:       gamepad.DeviceID(jsID),
	}
	r.joysticks[jsID] = info
	r.registry.Attach(info.id, name)

	r.logger.Info("joystick connected",
		"name", name,
		"id", info.id,
		"vid", fmt.Sprintf("%04X", vendorID),
		"pid", fmt.Sprintf("%04X", productID),
		"mapping", mapping.Name,
		"axes", sdl.GetNumJoystickAxes(js),
		"buttons", sdl.GetNumJoystickButtons(js),
		"hats", sdl.GetNumJoystickHats(js))
}

func (r *Reader) removeJoystick(instanceID sdl.JoystickID) {
	info, exists := r.joysticks[instanceID]
	if !exists {
		return
	}

	r.logger.Info("joystick disconnected", "name", info.name, "id", info.id)
	sdl.CloseJoystick(info.joystick)
	delete(r.joysticks, instanceID)
	r.registry.Detach(info.id)
}

func (r *Reader) closeAll() {
	for id, info := range r.joysticks {
		sdl.CloseJoystick(info.joystick)
		delete(r.joysticks, id)
		r.registry.Detach(info.id)
	}
}

func (r *Reader) pollState() {
	for _, info := range r.joysticks {
		js := info.joystick
		if !sdl.JoystickConnected(js) {
			continue
		}

		s := gamepad.NewSnapshot(info.id, info.name)
		hat := func() (uint8, bool) {
			if sdl.GetNumJoystickHats(js) == 0 {
				return 0, false
			}
			return sdl.GetJoystickHat(js, 0), true
		}
		info.mapping.Apply(&s,
			func(i int32) int16 { return sdl.GetJoystickAxis(js, i) },
			func(i int32) bool { return sdl.GetJoystickButton(js, i) },
			sdl.GetNumJoystickButtons(js),
			hat)

		r.registry.Replace(s)
	}
}
