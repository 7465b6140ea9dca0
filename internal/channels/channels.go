// Package channels registers the ipc channels the daemon exposes to its UI and
// to joyctl.
package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/soar/joyctrl/internal/engine"
	"github.com/soar/joyctrl/internal/gamepad"
	"github.com/soar/joyctrl/internal/ipc"
	"github.com/soar/joyctrl/internal/mapping"
	"github.com/soar/joyctrl/internal/shell"
	"github.com/soar/joyctrl/internal/sink"
	"github.com/soar/joyctrl/internal/store"
	"github.com/soar/joyctrl/internal/watch"
)

// Channel names.
const (
	IsMappingActive       = "is-mapping-active"
	ToggleMappingActive   = "toggle-mapping-active"
	SetMappingActive      = "set-mapping-active"
	ControllersStates     = "controllers-states"
	GetConfig             = "get-config"
	SetConfig             = "set-config"
	ToggleVirtualKeyboard = "toggle-virtual-keyboard"
	IsVirtualKeyboardOpen = "is-virtual-keyboard-open"
	PressKeys             = "press-keys"
	ReleaseKeys           = "release-keys"
	WriteText             = "write-text"
	RuntimeStatus         = "runtime-status"
)

// DefaultStatesInterval limits how often controllers-states pushes an update
// to one client.
const DefaultStatesInterval = 16 * time.Millisecond

// Deps are the daemon pieces the channels operate on.
type Deps struct {
	Flag    *engine.ActiveFlag
	Devices engine.Devices
	Store   *store.Store
	Overlay *shell.Overlay
	Status  func() engine.Status

	StatesInterval time.Duration
}

// Register installs every channel on svc.
func Register(svc *ipc.Service, d Deps) {
	if d.StatesInterval <= 0 {
		d.StatesInterval = DefaultStatesInterval
	}

	svc.On(IsMappingActive, stream(d.Flag.Subscribe, 0, identity[bool]))
	svc.On(ToggleMappingActive, ipc.Once(func(context.Context, json.RawMessage) (any, error) {
		return d.Flag.Toggle(), nil
	}))
	svc.On(SetMappingActive, ipc.Once(func(_ context.Context, data json.RawMessage) (any, error) {
		var active bool
		if err := json.Unmarshal(data, &active); err != nil {
			return nil, fmt.Errorf("set-mapping-active wants a boolean: %w", err)
		}
		d.Flag.Set(active)
		return active, nil
	}))

	svc.On(ControllersStates, func(ctx context.Context, data json.RawMessage, s *ipc.Stream) error {
		var opts struct {
			IntervalMs int `json:"intervalMs"`
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &opts); err != nil {
				return err
			}
		}
		every := d.StatesInterval
		if opts.IntervalMs > 0 {
			every = time.Duration(opts.IntervalMs) * time.Millisecond
		}
		h := stream(d.Devices.Subscribe, every, func(v gamepad.Snapshots) (any, error) { return v.List(), nil })
		return h(ctx, nil, s)
	})

	svc.On(GetConfig, func(ctx context.Context, data json.RawMessage, s *ipc.Stream) error {
		var req struct {
			Key string `json:"key"`
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				return err
			}
		}
		if req.Key != "" {
			if _, err := d.Store.Value(req.Key); err != nil {
				return err
			}
		}
		h := stream(d.Store.Subscribe, 0, func(mapping.Config) (any, error) {
			if req.Key != "" {
				return d.Store.Value(req.Key)
			}
			doc, err := d.Store.Document()
			return json.RawMessage(doc), err
		})
		return h(ctx, nil, s)
	})
	svc.On(SetConfig, ipc.Once(func(_ context.Context, data json.RawMessage) (any, error) {
		var req struct {
			Key   string          `json:"key"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("set-config wants {key, value}: %w", err)
		}
		if len(req.Value) == 0 {
			return nil, errors.New("set-config: missing value")
		}
		if err := d.Store.Set(req.Key, req.Value); err != nil {
			return nil, err
		}
		return d.Store.Value(req.Key)
	}))

	svc.On(ToggleVirtualKeyboard, ipc.Once(func(context.Context, json.RawMessage) (any, error) {
		return d.Overlay.Toggle(), nil
	}))
	svc.On(IsVirtualKeyboardOpen, stream(d.Overlay.Subscribe, 0, identity[bool]))

	svc.On(PressKeys, ipc.Once(func(_ context.Context, data json.RawMessage) (any, error) {
		keys, err := decodeKeys(data)
		if err != nil {
			return nil, err
		}
		vk := d.Overlay.Session()
		for _, k := range keys {
			if err := vk.Press(k); err != nil {
				return nil, fmt.Errorf("press %s: %w", k, err)
			}
		}
		return len(keys), nil
	}))
	svc.On(ReleaseKeys, ipc.Once(func(_ context.Context, data json.RawMessage) (any, error) {
		keys, err := decodeKeys(data)
		if err != nil {
			return nil, err
		}
		vk := d.Overlay.Session()
		var errs []error
		for i := len(keys) - 1; i >= 0; i-- {
			if err := vk.Release(keys[i]); err != nil {
				errs = append(errs, fmt.Errorf("release %s: %w", keys[i], err))
			}
		}
		return len(keys), errors.Join(errs...)
	}))
	svc.On(WriteText, ipc.Once(func(_ context.Context, data json.RawMessage) (any, error) {
		var req struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("write-text wants {text}: %w", err)
		}
		return len(req.Text), d.Overlay.Session().WriteText(req.Text)
	}))

	svc.On(RuntimeStatus, ipc.Once(func(context.Context, json.RawMessage) (any, error) {
		if d.Status == nil {
			return nil, errors.New("runtime not running")
		}
		return d.Status(), nil
	}))
}

// decodeKeys accepts {"keys": [...]} or a bare array of key names.
func decodeKeys(data json.RawMessage) ([]sink.Key, error) {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		var req struct {
			Keys []string `json:"keys"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("want a list of key names: %w", err)
		}
		names = req.Keys
	}
	if len(names) == 0 {
		return nil, errors.New("no keys given")
	}
	return sink.ParseKeys(names)
}

func identity[T any](v T) (any, error) { return v, nil }

// stream serves a watch cell: the current value first, then every change,
// at most one message per every when every is positive.
func stream[T any](subscribe func() *watch.Receiver[T], every time.Duration, render func(T) (any, error)) ipc.Handler {
	return func(ctx context.Context, _ json.RawMessage, s *ipc.Stream) error {
		sub := subscribe()
		v := sub.Borrow()
		for {
			out, err := render(v)
			if err != nil {
				return err
			}
			if err := s.Send(out); err != nil {
				return err
			}
			if every > 0 {
				t := time.NewTimer(every)
				select {
				case <-ctx.Done():
					t.Stop()
					return ctx.Err()
				case <-t.C:
				}
			}
			if v, err = sub.Wait(ctx); err != nil {
				return err
			}
		}
	}
}
