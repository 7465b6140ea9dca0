// Package mapping defines the persisted rule model: triggers, conditions and
// actions, the rule set document, and the condition evaluator.
package mapping

import (
	"errors"
	"fmt"

	"github.com/soar/joyctrl/internal/gamepad"
)

var (
	// ErrInvalidRule marks a rule entry that failed validation or decoding.
	ErrInvalidRule = errors.New("invalid rule")
	// ErrDuplicateID marks a rule whose id was already used earlier in the set.
	ErrDuplicateID = errors.New("duplicate rule id")
)

// Trigger is what makes a rule fire: a button, an axis past a threshold, or a
// stick outside the deadzone.
type Trigger interface {
	Kind() string
}

// ButtonTrigger fires while Button is held.
type ButtonTrigger struct {
	Button gamepad.Button
}

// AxisTrigger fires while abs(axis)/32767*100 >= Threshold.
type AxisTrigger struct {
	Axis      gamepad.Axis
	Threshold float64
}

// StickTrigger fires while the stick leaves the deadzone.
type StickTrigger struct {
	Stick gamepad.Stick
}

func (ButtonTrigger) Kind() string { return "buttonPressed" }
func (AxisTrigger) Kind() string   { return "axisTrigger" }
func (StickTrigger) Kind() string  { return "axisStick" }

// Rule binds a trigger and optional conditions to an action. ID is the
// activation tracking key and is unique within a Config.
type Rule struct {
	ID         string
	Trigger    Trigger
	Conditions []Condition
	Action     Action
}

func (r Rule) String() string {
	return fmt.Sprintf("%s(%s -> %s)", r.ID, r.Trigger.Kind(), r.Action.Kind())
}

const (
	DefaultDeadzone            = 0.1
	DefaultMappingActiveOnBoot = true
)

// Config is the persisted rule set document.
type Config struct {
	MappingActiveOnBoot bool
	Mappings            []Rule
	Deadzone            float64
	KeyboardLayout      string
}

// DefaultConfig returns the document used when nothing is stored yet.
func DefaultConfig() Config {
	return Config{
		MappingActiveOnBoot: DefaultMappingActiveOnBoot,
		Mappings:            []Rule{},
		Deadzone:            DefaultDeadzone,
	}
}
