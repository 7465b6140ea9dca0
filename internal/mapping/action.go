package mapping

import "fmt"

// Action is the closed set of things a rule can do. Every variant declares
// whether it repeats while its rule is held, so adding a variant is a compile
// error until that decision is made.
type Action interface {
	// Kind is the persisted type tag.
	Kind() string
	// Continuous reports whether the action fires every tick while held.
	Continuous() bool
}

// Direction of a directional move or scroll.
type Direction uint8

const (
	Up Direction = iota
	Down
	Left
	Right
)

var directionNames = [...]string{"up", "down", "left", "right"}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

func (d Direction) MarshalText() ([]byte, error) {
	if int(d) >= len(directionNames) {
		return nil, fmt.Errorf("invalid direction %d", uint8(d))
	}
	return []byte(directionNames[d]), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	for i, name := range directionNames {
		if name == string(text) {
			*d = Direction(i)
			return nil
		}
	}
	return fmt.Errorf("unknown direction %q", text)
}

// Vector returns the unit step of the direction. Up and left are negative.
func (d Direction) Vector() (x, y int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	return 0, 0
}

// MouseButton is a pointer button.
type MouseButton uint8

const (
	MouseLeft MouseButton = iota
	MouseRight
	MouseMiddle
)

var mouseButtonNames = [...]string{"left", "right", "middle"}

func (b MouseButton) String() string {
	if int(b) < len(mouseButtonNames) {
		return mouseButtonNames[b]
	}
	return fmt.Sprintf("mouseButton(%d)", uint8(b))
}

func (b MouseButton) MarshalText() ([]byte, error) {
	if int(b) >= len(mouseButtonNames) {
		return nil, fmt.Errorf("invalid mouse button %d", uint8(b))
	}
	return []byte(mouseButtonNames[b]), nil
}

func (b *MouseButton) UnmarshalText(text []byte) error {
	for i, name := range mouseButtonNames {
		if name == string(text) {
			*b = MouseButton(i)
			return nil
		}
	}
	return fmt.Errorf("unknown mouse button %q", text)
}

// MoveMode selects how a stick drives the cursor.
type MoveMode uint8

const (
	// Relative moves the cursor by a velocity proportional to deflection.
	Relative MoveMode = iota
	// Absolute maps stick position onto the work area.
	Absolute
)

func (m MoveMode) String() string {
	if m == Absolute {
		return "absolute"
	}
	return "relative"
}

func (m MoveMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *MoveMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "relative":
		*m = Relative
	case "absolute":
		*m = Absolute
	default:
		return fmt.Errorf("unknown move mode %q", text)
	}
	return nil
}

type (
	// PressKeys holds a key chord while the rule is held.
	PressKeys struct {
		Keys []string `json:"keys"`
	}

	WriteText struct {
		Text string `json:"text"`
	}

	MouseMoveDirection struct {
		Direction Direction `json:"direction"`
		// Speed in px/s; zero means sensitivity*100.
		Speed float64 `json:"speed,omitempty"`
	}

	MouseClick struct {
		Button MouseButton `json:"button"`
	}

	MouseMoveStick struct {
		Mode MoveMode `json:"mode"`
		// Speed in px/s at full deflection; zero means sensitivity²*100.
		Speed float64 `json:"speed,omitempty"`
	}

	ScrollDirection struct {
		Direction Direction `json:"direction"`
		// Speed in units/s; zero means 10.
		Speed float64 `json:"speed,omitempty"`
	}

	ScrollStick struct {
		// Speed in units/s at full deflection; zero means 20.
		Speed float64 `json:"speed,omitempty"`
	}

	ToggleMappingActive struct{}

	ToggleVirtualKeyboard struct{}

	SetMouseSensitivity struct {
		Sensitivity float64 `json:"sensitivity"`
	}

	OpenWebsite struct {
		URL string `json:"url"`
	}

	OpenFile struct {
		Path string `json:"path"`
	}
)

func (PressKeys) Kind() string             { return "pressKeys" }
func (WriteText) Kind() string             { return "writeText" }
func (MouseMoveDirection) Kind() string    { return "mouseMoveDirection" }
func (MouseClick) Kind() string            { return "mouseClick" }
func (MouseMoveStick) Kind() string        { return "mouseMoveStick" }
func (ScrollDirection) Kind() string       { return "scrollDirection" }
func (ScrollStick) Kind() string           { return "scrollStick" }
func (ToggleMappingActive) Kind() string   { return "toogleMappingActive" }
func (ToggleVirtualKeyboard) Kind() string { return "toogleVirtualKeyboard" }
func (SetMouseSensitivity) Kind() string   { return "setMouseSensitivity" }
func (OpenWebsite) Kind() string           { return "openWebsite" }
func (OpenFile) Kind() string              { return "openFile" }

func (PressKeys) Continuous() bool             { return false }
func (WriteText) Continuous() bool             { return false }
func (MouseMoveDirection) Continuous() bool    { return true }
func (MouseClick) Continuous() bool            { return false }
func (MouseMoveStick) Continuous() bool        { return true }
func (ScrollDirection) Continuous() bool       { return true }
func (ScrollStick) Continuous() bool           { return true }
func (ToggleMappingActive) Continuous() bool   { return false }
func (ToggleVirtualKeyboard) Continuous() bool { return false }
func (SetMouseSensitivity) Continuous() bool   { return false }
func (OpenWebsite) Continuous() bool           { return false }
func (OpenFile) Continuous() bool              { return false }

// StickAction reports whether a can be bound to an analog stick.
func StickAction(a Action) bool {
	switch a.(type) {
	case MouseMoveStick, ScrollStick:
		return true
	}
	return false
}

// IsToggle reports whether a toggles the global mapping flag. Such actions run
// even while mapping is inactive.
func IsToggle(a Action) bool {
	_, ok := a.(ToggleMappingActive)
	return ok
}
