package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/soar/joyctrl/internal/gamepad"
	"github.com/soar/joyctrl/internal/mapping"
)

// Key identifies one activation: a rule as seen on one device.
type Key struct {
	Device gamepad.DeviceID
	Rule   string
}

func (k Key) String() string { return fmt.Sprintf("%d/%s", k.Device, k.Rule) }

// State is the outcome of one tracker step for a rule.
type State uint8

const (
	Idle State = iota
	JustPressed
	Active
	AutoReset
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case JustPressed:
		return "justPressed"
	case Active:
		return "active"
	case AutoReset:
		return "autoReset"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Record exists exactly while a rule is holding its action. Its presence is
// the rule's memory of the last edge: no record means the trigger was
// released on the previous tick.
type Record struct {
	ActiveSince time.Time
	Continuous  bool
	// Action is what was activated and what the auto-reset inverts. It is nil
	// when a hot reload replaced a held one-shot action: the record then waits
	// for the release without firing anything.
	Action mapping.Action
}

// Tracker holds the activation records of every rule on every device.
type Tracker struct {
	records map[Key]*Record
}

func NewTracker() *Tracker {
	return &Tracker{records: make(map[Key]*Record)}
}

// Advance moves the rule at k one tick forward given whether its trigger and
// conditions are satisfied now.
//
//	no record, satisfied     -> JustPressed (record created)
//	record,    satisfied     -> Active
//	record,    not satisfied -> AutoReset (record removed, returned for the inverse)
//	no record, not satisfied -> Idle
func (t *Tracker) Advance(k Key, satisfied bool, a mapping.Action, now time.Time) (State, *Record) {
	rec, ok := t.records[k]
	switch {
	case !ok && satisfied:
		rec = &Record{ActiveSince: now, Continuous: a.Continuous(), Action: a}
		t.records[k] = rec
		return JustPressed, rec
	case ok && satisfied:
		return Active, rec
	case ok:
		delete(t.records, k)
		return AutoReset, rec
	}
	return Idle, nil
}

// Get returns the record for k, if any.
func (t *Tracker) Get(k Key) (*Record, bool) {
	rec, ok := t.records[k]
	return rec, ok
}

// Remove drops the record for k and returns it.
func (t *Tracker) Remove(k Key) (*Record, bool) {
	rec, ok := t.records[k]
	if ok {
		delete(t.records, k)
	}
	return rec, ok
}

func (t *Tracker) Len() int { return len(t.records) }

// Keys returns every tracked key ordered by device then rule id.
func (t *Tracker) Keys() []Key {
	keys := make([]Key, 0, len(t.records))
	for k := range t.records {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Device != keys[j].Device {
			return keys[i].Device < keys[j].Device
		}
		return keys[i].Rule < keys[j].Rule
	})
	return keys
}

// AnyContinuous reports whether a continuous action is being held.
func (t *Tracker) AnyContinuous() bool {
	for _, rec := range t.records {
		if rec.Continuous && rec.Action != nil {
			return true
		}
	}
	return false
}
