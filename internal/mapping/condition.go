package mapping

import (
	"fmt"

	"github.com/soar/joyctrl/internal/gamepad"
)

// Operator tags a condition as part of the Or group or the And group.
type Operator uint8

const (
	And Operator = iota
	Or
)

func (o Operator) String() string {
	if o == Or {
		return "or"
	}
	return "and"
}

func (o Operator) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Operator) UnmarshalText(text []byte) error {
	switch string(text) {
	case "and":
		*o = And
	case "or":
		*o = Or
	default:
		return fmt.Errorf("unknown operator %q", text)
	}
	return nil
}

// Predicate is a leaf test against a snapshot.
type Predicate uint8

const (
	ButtonPressed Predicate = iota
	ButtonNotPressed
)

func (p Predicate) String() string {
	switch p {
	case ButtonPressed:
		return "buttonPressed"
	case ButtonNotPressed:
		return "buttonNotPressed"
	}
	return fmt.Sprintf("predicate(%d)", uint8(p))
}

func (p Predicate) MarshalText() ([]byte, error) {
	if p > ButtonNotPressed {
		return nil, fmt.Errorf("invalid predicate %d", uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *Predicate) UnmarshalText(text []byte) error {
	switch string(text) {
	case "buttonPressed":
		*p = ButtonPressed
	case "buttonNotPressed":
		*p = ButtonNotPressed
	default:
		return fmt.Errorf("unknown condition type %q", text)
	}
	return nil
}

// Condition is one tagged leaf of a rule's condition list.
type Condition struct {
	Operator Operator       `json:"operator"`
	Type     Predicate      `json:"type"`
	Button   gamepad.Button `json:"button"`
}

// Test evaluates the leaf alone. Unknown predicates are false.
func (c Condition) Test(s gamepad.Snapshot) bool {
	switch c.Type {
	case ButtonPressed:
		return s.Pressed(c.Button)
	case ButtonNotPressed:
		return !s.Pressed(c.Button)
	}
	return false
}

// Evaluate reports whether a condition list holds for s.
//
// An empty list is true. Otherwise the Or-tagged leaves are combined with OR
// and the And-tagged leaves with AND, an empty group counting as false, and the
// two partial results are ORed together: any Or leaf matching, or every And
// leaf matching, is enough.
func Evaluate(s gamepad.Snapshot, conds []Condition) bool {
	if len(conds) == 0 {
		return true
	}

	var orResult bool
	andResult := true
	andSeen := false
	for _, c := range conds {
		switch c.Operator {
		case Or:
			if c.Test(s) {
				orResult = true
			}
		case And:
			andSeen = true
			if !c.Test(s) {
				andResult = false
			}
		}
	}
	if !andSeen {
		andResult = false
	}
	return orResult || andResult
}
