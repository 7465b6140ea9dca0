package engine

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/soar/joyctrl/internal/mapping"
	"github.com/soar/joyctrl/internal/shell"
	"github.com/soar/joyctrl/internal/sink"
)

const (
	DefaultSensitivity   = 5.0
	DefaultAbsoluteScale = 1.314
	// Scroll speeds in units per second.
	DefaultScrollDirectionSpeed = 10.0
	DefaultScrollStickSpeed     = 20.0

	openTimeout = 10 * time.Second
)

// Toggler flips a piece of UI state, the on-screen keyboard.
type Toggler interface {
	Toggle() bool
}

// Input is the analog reading a stick action is driven by, normalized to
// [-1, 1]. Zero for button and axis-trigger rules.
type Input struct {
	X, Y float64
}

type accumulator struct {
	x, y float64
}

// take adds dx, dy and returns the whole units, keeping the fractional rest.
func (a *accumulator) take(dx, dy float64) (int, int) {
	a.x += dx
	a.y += dy
	ix, iy := math.Trunc(a.x), math.Trunc(a.y)
	a.x -= ix
	a.y -= iy
	return int(ix), int(iy)
}

// Executor applies actions to the sink. It is driven from the runtime loop
// goroutine only; Sensitivity may be read from anywhere.
type Executor struct {
	sink    sink.Sink
	flag    *ActiveFlag
	overlay Toggler
	opener  shell.Opener
	display shell.Display
	logger  *slog.Logger

	absoluteScale float64
	sensitivity   atomic.Uint64 // float64 bits
	acc           map[Key]*accumulator
}

// ExecutorOptions carries the optional collaborators. Nil fields disable the
// actions that need them.
type ExecutorOptions struct {
	Overlay       Toggler
	Opener        shell.Opener
	Display       shell.Display
	AbsoluteScale float64
	Logger        *slog.Logger
}

func NewExecutor(s sink.Sink, flag *ActiveFlag, opts ExecutorOptions) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scale := opts.AbsoluteScale
	if scale <= 0 {
		scale = DefaultAbsoluteScale
	}
	e := &Executor{
		sink:          s,
		flag:          flag,
		overlay:       opts.Overlay,
		opener:        opts.Opener,
		display:       opts.Display,
		logger:        logger.With("component", "executor"),
		absoluteScale: scale,
		acc:           make(map[Key]*accumulator),
	}
	e.SetSensitivity(DefaultSensitivity)
	return e
}

func (e *Executor) Sensitivity() float64 {
	return math.Float64frombits(e.sensitivity.Load())
}

func (e *Executor) SetSensitivity(v float64) {
	if v > 0 {
		e.sensitivity.Store(math.Float64bits(v))
	}
}

// Accumulator returns the fractional remainders held for k.
func (e *Executor) Accumulator(k Key) (x, y float64) {
	if a, ok := e.acc[k]; ok {
		return a.x, a.y
	}
	return 0, 0
}

// Forget drops the accumulators of k, zeroing them.
func (e *Executor) Forget(k Key) {
	delete(e.acc, k)
}

func (e *Executor) accumulator(k Key) *accumulator {
	a, ok := e.acc[k]
	if !ok {
		a = &accumulator{}
		e.acc[k] = a
	}
	return a
}

func (e *Executor) fail(k Key, a mapping.Action, op string, err error) {
	if err != nil {
		e.logger.Warn("injection failed", "rule", k.Rule, "device", k.Device, "action", a.Kind(), "op", op, "error", err)
	}
}

// Fire executes a once. edge is true on the tick the rule activated; dt is
// the tick length in seconds. Failures are logged, never returned.
func (e *Executor) Fire(k Key, a mapping.Action, in Input, dt float64, edge bool) {
	switch act := a.(type) {
	case mapping.PressKeys:
		keys, err := sink.ParseKeys(act.Keys)
		if err != nil {
			e.fail(k, a, "parse", err)
			return
		}
		for _, key := range keys {
			e.fail(k, a, "press", e.sink.Press(key))
		}

	case mapping.WriteText:
		e.fail(k, a, "text", e.sink.WriteText(act.Text))

	case mapping.MouseClick:
		e.fail(k, a, "click", e.sink.Click(mouseButton(act.Button), sink.Press))

	case mapping.MouseMoveDirection:
		speed := act.Speed
		if speed <= 0 {
			speed = e.Sensitivity() * 100
		}
		ux, uy := act.Direction.Vector()
		dx, dy := e.accumulator(k).take(float64(ux)*speed*dt, float64(uy)*speed*dt)
		if dx != 0 || dy != 0 {
			e.fail(k, a, "move", e.sink.MoveRelative(dx, dy))
		}

	case mapping.ScrollDirection:
		acc := e.accumulator(k)
		ux, uy := act.Direction.Vector()
		axis, unit := sink.Vertical, uy
		if ux != 0 {
			axis, unit = sink.Horizontal, ux
		}
		if edge {
			*acc = accumulator{}
			e.fail(k, a, "scroll", e.sink.Scroll(unit, axis))
			return
		}
		speed := act.Speed
		if speed <= 0 {
			speed = DefaultScrollDirectionSpeed
		}
		_, n := acc.take(0, float64(unit)*speed*dt)
		if n != 0 {
			e.fail(k, a, "scroll", e.sink.Scroll(n, axis))
		}

	case mapping.MouseMoveStick:
		if act.Mode == mapping.Absolute {
			e.moveAbsolute(k, a, in)
			return
		}
		speed := act.Speed
		if speed <= 0 {
			s := e.Sensitivity()
			speed = s * s * 100
		}
		dx, dy := e.accumulator(k).take(in.X*speed*dt, in.Y*speed*dt)
		if dx != 0 || dy != 0 {
			e.fail(k, a, "move", e.sink.MoveRelative(dx, dy))
		}

	case mapping.ScrollStick:
		speed := act.Speed
		if speed <= 0 {
			speed = DefaultScrollStickSpeed
		}
		nx, ny := e.accumulator(k).take(in.X*speed*dt, in.Y*speed*dt)
		if ny != 0 {
			e.fail(k, a, "scroll", e.sink.Scroll(ny, sink.Vertical))
		}
		if nx != 0 {
			e.fail(k, a, "scroll", e.sink.Scroll(nx, sink.Horizontal))
		}

	case mapping.ToggleMappingActive:
		active := e.flag.Toggle()
		e.logger.Info("mapping toggled", "rule", k.Rule, "active", active)

	case mapping.ToggleVirtualKeyboard:
		if e.overlay == nil {
			e.logger.Warn("no virtual keyboard available", "rule", k.Rule)
			return
		}
		e.overlay.Toggle()

	case mapping.SetMouseSensitivity:
		e.SetSensitivity(act.Sensitivity)
		e.logger.Info("mouse sensitivity set", "rule", k.Rule, "sensitivity", act.Sensitivity)

	case mapping.OpenWebsite:
		e.open(k, a, func(ctx context.Context, o shell.Opener) error { return o.OpenURL(ctx, act.URL) })

	case mapping.OpenFile:
		e.open(k, a, func(ctx context.Context, o shell.Opener) error { return o.OpenPath(ctx, act.Path) })

	default:
		e.logger.Warn("unhandled action", "rule", k.Rule, "action", a.Kind())
	}
}

// moveAbsolute projects the stick onto the work area:
// origin + ((v*scale + 1) / 2) * size, clamped inside the area.
func (e *Executor) moveAbsolute(k Key, a mapping.Action, in Input) {
	if e.display == nil {
		e.logger.Warn("absolute move without a display", "rule", k.Rule)
		return
	}
	area := e.display.WorkArea()
	x := project(in.X, e.absoluteScale, area.X, area.Width)
	y := project(in.Y, e.absoluteScale, area.Y, area.Height)
	e.fail(k, a, "moveTo", e.sink.MoveAbsolute(x, y))
}

func project(v, scale float64, origin, size int) int {
	if size <= 0 {
		return origin
	}
	p := origin + int(((v*scale+1)/2)*float64(size))
	if p < origin {
		return origin
	}
	if last := origin + size - 1; p > last {
		return last
	}
	return p
}

// open runs the shell call off the tick path.
func (e *Executor) open(k Key, a mapping.Action, call func(context.Context, shell.Opener) error) {
	if e.opener == nil {
		e.logger.Warn("no opener available", "rule", k.Rule, "action", a.Kind())
		return
	}
	o := e.opener
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
		defer cancel()
		if err := call(ctx, o); err != nil {
			e.logger.Warn("open failed", "rule", k.Rule, "action", a.Kind(), "error", err)
		}
	}()
}

// Inverse undoes what Fire left held: keys are released in reverse order and
// a pressed mouse button is released. Actions without a held state have no
// inverse. The accumulators of k are dropped either way.
func (e *Executor) Inverse(k Key, a mapping.Action) {
	defer e.Forget(k)
	switch act := a.(type) {
	case mapping.PressKeys:
		keys, err := sink.ParseKeys(act.Keys)
		if err != nil {
			return
		}
		for i := len(keys) - 1; i >= 0; i-- {
			e.fail(k, a, "release", e.sink.Release(keys[i]))
		}
	case mapping.MouseClick:
		e.fail(k, a, "click", e.sink.Click(mouseButton(act.Button), sink.Release))
	}
}

// HasInverse reports whether Inverse does anything for a.
func HasInverse(a mapping.Action) bool {
	switch a.(type) {
	case mapping.PressKeys, mapping.MouseClick:
		return true
	}
	return false
}

func mouseButton(b mapping.MouseButton) sink.Button {
	switch b {
	case mapping.MouseRight:
		return sink.ButtonRight
	case mapping.MouseMiddle:
		return sink.ButtonMiddle
	}
	return sink.ButtonLeft
}
