// Package engine is the input mapping runtime: it evaluates the rule set
// against every connected device each tick, tracks which rules are holding
// their action, and drives the executor.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"sync"
	"time"

	"github.com/soar/joyctrl/internal/gamepad"
	"github.com/soar/joyctrl/internal/mapping"
	"github.com/soar/joyctrl/internal/watch"
)

// Devices is the capture side as the runtime sees it.
type Devices interface {
	Snapshots() gamepad.Snapshots
	Subscribe() *watch.Receiver[gamepad.Snapshots]
}

// Rules is the configuration store as the runtime sees it.
type Rules interface {
	Get() mapping.Config
	Subscribe() *watch.Receiver[mapping.Config]
}

// TickMode selects what wakes the loop.
type TickMode uint8

const (
	// Interval wakes on every device, rule or flag change and on a fixed timer.
	Interval TickMode = iota
	// Event wakes on changes only, plus the timer while a continuous action is
	// held.
	Event
)

func (m TickMode) String() string {
	if m == Event {
		return "event"
	}
	return "interval"
}

// ParseTickMode accepts "interval" or "event".
func ParseTickMode(s string) (TickMode, error) {
	switch s {
	case "interval", "":
		return Interval, nil
	case "event":
		return Event, nil
	}
	return Interval, fmt.Errorf("unknown tick mode %q", s)
}

const (
	DefaultTick     = 4 * time.Millisecond
	DefaultMaxDelta = 50 * time.Millisecond
)

type Options struct {
	Mode TickMode
	// Tick is the timer period.
	Tick time.Duration
	// MaxDelta caps the time one tick may account for.
	MaxDelta time.Duration
	Logger   *slog.Logger
}

// Status is a point-in-time summary of the runtime.
type Status struct {
	Active      bool      `json:"active"`
	Devices     int       `json:"devices"`
	Rules       int       `json:"rules"`
	Held        []string  `json:"held"`
	Ticks       uint64    `json:"ticks"`
	LastTick    time.Time `json:"lastTick"`
	Sensitivity float64   `json:"sensitivity"`
	Mode        string    `json:"mode"`
}

// releaser is implemented by sinks that track held input.
type releaser interface {
	ReleaseAll() error
}

// Runtime is the mapping loop. Step is not safe for concurrent use; Run calls
// it from a single goroutine.
type Runtime struct {
	devices Devices
	rules   Rules
	flag    *ActiveFlag
	exec    *Executor
	tracker *Tracker
	opts    Options
	logger  *slog.Logger

	lastTick time.Time
	ticks    uint64

	statusMu sync.Mutex
	status   Status
}

func NewRuntime(devices Devices, rules Rules, flag *ActiveFlag, exec *Executor, opts Options) *Runtime {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.MaxDelta <= 0 {
		opts.MaxDelta = DefaultMaxDelta
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		devices: devices,
		rules:   rules,
		flag:    flag,
		exec:    exec,
		tracker: NewTracker(),
		opts:    opts,
		logger:  logger.With("component", "runtime"),
	}
}

// Tracker exposes the activation records, for status and tests.
func (r *Runtime) Tracker() *Tracker { return r.tracker }

// Status returns the summary published by the last tick.
func (r *Runtime) Status() Status {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	s := r.status
	s.Held = append([]string{}, r.status.Held...)
	s.Mode = r.opts.Mode.String()
	return s
}

// Run drives Step until ctx is cancelled, then force-releases everything the
// runtime holds.
func (r *Runtime) Run(ctx context.Context) error {
	devSub := r.devices.Subscribe()
	cfgSub := r.rules.Subscribe()
	flagSub := r.flag.Subscribe()

	timer := time.NewTimer(r.opts.Tick)
	defer timer.Stop()
	defer r.Shutdown()

	r.logger.Info("mapping runtime started", "mode", r.opts.Mode.String(), "tick", r.opts.Tick)
	r.Step(time.Now())

	for {
		var tick <-chan time.Time
		if r.opts.Mode == Interval || r.tracker.AnyContinuous() {
			timer.Reset(r.opts.Tick)
			tick = timer.C
		} else {
			timer.Stop()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-devSub.Changed():
			devSub.Borrow()
		case <-cfgSub.Changed():
			cfgSub.Borrow()
		case <-flagSub.Changed():
			flagSub.Borrow()
		case <-tick:
		}
		r.Step(time.Now())
	}
}

// Step runs one evaluate -> transition -> execute pass over every device and
// every rule, in rule order.
func (r *Runtime) Step(now time.Time) {
	dt := r.delta(now)
	cfg := r.rules.Get()
	r.reconcile(cfg)

	snaps := r.devices.Snapshots()
	r.dropVanished(snaps)
	active := r.flag.Load()

	for _, id := range snaps.IDs() {
		snap := snaps[id]
		for _, rule := range cfg.Mappings {
			k := Key{Device: id, Rule: rule.ID}
			satisfied, in := r.satisfied(snap, rule, cfg.Deadzone, active)

			state, rec := r.tracker.Advance(k, satisfied, rule.Action, now)
			switch state {
			case JustPressed:
				r.logger.Debug("rule activated", "rule", rule.ID, "device", id)
				r.exec.Fire(k, rec.Action, in, dt, true)
			case Active:
				if rec.Action != nil && rec.Continuous {
					r.exec.Fire(k, rec.Action, in, dt, false)
				}
			case AutoReset:
				r.logger.Debug("rule released", "rule", rule.ID, "device", id)
				r.exec.Inverse(k, rec.Action)
			}
		}
	}

	r.ticks++
	r.publish(now, snaps, cfg)
}

func (r *Runtime) delta(now time.Time) float64 {
	if r.lastTick.IsZero() {
		r.lastTick = now
		return 0
	}
	d := now.Sub(r.lastTick)
	r.lastTick = now
	if d < 0 {
		d = 0
	}
	if d > r.opts.MaxDelta {
		d = r.opts.MaxDelta
	}
	return d.Seconds()
}

// satisfied evaluates trigger, conditions and the global gate for one rule.
// While mapping is inactive only the toggle rule can be satisfied, so held
// rules auto-reset when mapping is switched off.
func (r *Runtime) satisfied(s gamepad.Snapshot, rule mapping.Rule, deadzone float64, active bool) (bool, Input) {
	if !active && !mapping.IsToggle(rule.Action) {
		return false, Input{}
	}

	var in Input
	switch t := rule.Trigger.(type) {
	case mapping.ButtonTrigger:
		if !s.Pressed(t.Button) {
			return false, in
		}
	case mapping.AxisTrigger:
		if s.Percent(t.Axis) < t.Threshold {
			return false, in
		}
	case mapping.StickTrigger:
		in.X, in.Y = s.StickValues(t.Stick)
		if math.Max(math.Abs(in.X), math.Abs(in.Y)) < deadzone {
			return false, Input{}
		}
	default:
		return false, in
	}
	return mapping.Evaluate(s, rule.Conditions), in
}

// reconcile applies a hot-reloaded rule set to the held records. A removed
// rule is released. A rule whose action changed releases the old action; a
// continuous replacement takes over the record, a one-shot replacement waits
// for the trigger to be released before it can fire.
func (r *Runtime) reconcile(cfg mapping.Config) {
	if r.tracker.Len() == 0 {
		return
	}
	next := make(map[string]mapping.Rule, len(cfg.Mappings))
	for _, rule := range cfg.Mappings {
		next[rule.ID] = rule
	}

	for _, k := range r.tracker.Keys() {
		rec, _ := r.tracker.Get(k)
		rule, ok := next[k.Rule]
		switch {
		case !ok:
			r.logger.Info("held rule removed by reload", "rule", k.Rule, "device", k.Device)
			r.tracker.Remove(k)
			r.exec.Inverse(k, rec.Action)
		case rec.Action != nil && !reflect.DeepEqual(rec.Action, rule.Action):
			r.logger.Info("held rule changed by reload", "rule", k.Rule, "device", k.Device)
			r.exec.Inverse(k, rec.Action)
			rec.Continuous = rule.Action.Continuous()
			if rec.Continuous {
				rec.Action = rule.Action
			} else {
				rec.Action = nil
			}
		}
	}
}

// dropVanished releases everything held for devices that disconnected.
func (r *Runtime) dropVanished(snaps gamepad.Snapshots) {
	for _, k := range r.tracker.Keys() {
		if _, ok := snaps[k.Device]; ok {
			continue
		}
		rec, _ := r.tracker.Remove(k)
		r.logger.Info("device gone, releasing rule", "rule", k.Rule, "device", k.Device)
		r.exec.Inverse(k, rec.Action)
	}
}

// Shutdown inverts every held record and then releases whatever the sink
// still reports as held. It runs once on the way out of Run and is safe to
// call again.
func (r *Runtime) Shutdown() {
	for _, k := range r.tracker.Keys() {
		rec, _ := r.tracker.Remove(k)
		r.exec.Inverse(k, rec.Action)
	}
	if rel, ok := r.exec.sink.(releaser); ok {
		if err := rel.ReleaseAll(); err != nil {
			r.logger.Warn("final release failed", "error", err)
		}
	}
	r.logger.Info("mapping runtime stopped, all input released")
}

func (r *Runtime) publish(now time.Time, snaps gamepad.Snapshots, cfg mapping.Config) {
	held := make([]string, 0, r.tracker.Len())
	for _, k := range r.tracker.Keys() {
		held = append(held, k.String())
	}
	r.statusMu.Lock()
	r.status = Status{
		Active:      r.flag.Load(),
		Devices:     len(snaps),
		Rules:       len(cfg.Mappings),
		Held:        held,
		Ticks:       r.ticks,
		LastTick:    now,
		Sensitivity: r.exec.Sensitivity(),
		Mode:        r.opts.Mode.String(),
	}
	r.statusMu.Unlock()
}
