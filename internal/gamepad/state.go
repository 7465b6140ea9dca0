package gamepad

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Button identifies a gamepad button.
type Button uint8

const (
	ButtonA Button = iota
	ButtonB
	ButtonX
	ButtonY
	ButtonBack
	ButtonGuide
	ButtonStart
	ButtonLeftStick
	ButtonRightStick
	ButtonLeftShoulder
	ButtonRightShoulder
	ButtonDPadUp
	ButtonDPadDown
	ButtonDPadLeft
	ButtonDPadRight
	ButtonMisc1
	ButtonPaddle1
	ButtonPaddle2
	ButtonPaddle3
	ButtonPaddle4
	ButtonTouchpad

	NumButtons = int(ButtonTouchpad) + 1
)

var buttonNames = [NumButtons]string{
	"a", "b", "x", "y", "back", "guide", "start",
	"leftStick", "rightStick", "leftShoulder", "rightShoulder",
	"dPadUp", "dPadDown", "dPadLeft", "dPadRight",
	"misc1", "paddle1", "paddle2", "paddle3", "paddle4", "touchpad",
}

func (b Button) String() string {
	if int(b) < NumButtons {
		return buttonNames[b]
	}
	return fmt.Sprintf("button(%d)", uint8(b))
}

func (b Button) Valid() bool { return int(b) < NumButtons }

func (b Button) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("invalid button %d", uint8(b))
	}
	return []byte(buttonNames[b]), nil
}

func (b *Button) UnmarshalText(text []byte) error {
	v, err := ParseButton(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// ParseButton resolves a button id such as "leftShoulder".
func ParseButton(s string) (Button, error) {
	for i, name := range buttonNames {
		if name == s {
			return Button(i), nil
		}
	}
	return 0, fmt.Errorf("unknown button %q", s)
}

// Axis identifies an analog axis.
type Axis uint8

const (
	AxisLeftX Axis = iota
	AxisLeftY
	AxisRightX
	AxisRightY
	AxisTriggerLeft
	AxisTriggerRight

	NumAxes = int(AxisTriggerRight) + 1
)

var axisNames = [NumAxes]string{"leftX", "leftY", "rightX", "rightY", "triggerLeft", "triggerRight"}

func (a Axis) String() string {
	if int(a) < NumAxes {
		return axisNames[a]
	}
	return fmt.Sprintf("axis(%d)", uint8(a))
}

func (a Axis) Valid() bool { return int(a) < NumAxes }

func (a Axis) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid axis %d", uint8(a))
	}
	return []byte(axisNames[a]), nil
}

func (a *Axis) UnmarshalText(text []byte) error {
	v, err := ParseAxis(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAxis resolves an axis id such as "triggerLeft".
func ParseAxis(s string) (Axis, error) {
	for i, name := range axisNames {
		if name == s {
			return Axis(i), nil
		}
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// Stick pairs two axes.
type Stick uint8

const (
	LeftStick Stick = iota
	RightStick
)

// Axes returns the X and Y axes of the stick.
func (s Stick) Axes() (Axis, Axis) {
	if s == RightStick {
		return AxisRightX, AxisRightY
	}
	return AxisLeftX, AxisLeftY
}

func (s Stick) String() string {
	switch s {
	case LeftStick:
		return "leftStick"
	case RightStick:
		return "rightStick"
	default:
		return fmt.Sprintf("stick(%d)", uint8(s))
	}
}

func (s Stick) MarshalText() ([]byte, error) {
	if s > RightStick {
		return nil, fmt.Errorf("invalid stick %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Stick) UnmarshalText(text []byte) error {
	switch string(text) {
	case "leftStick":
		*s = LeftStick
	case "rightStick":
		*s = RightStick
	default:
		return fmt.Errorf("unknown stick %q", text)
	}
	return nil
}

// DeviceID is the capture subsystem's instance id of a connected device.
type DeviceID uint32

// AxisMax is the largest magnitude a normalized axis is divided by.
const AxisMax = math.MaxInt16

// Snapshot is the full state of one device. It is a value type: copying a
// Snapshot clones it, so readers never share memory with the capture side.
type Snapshot struct {
	ID      DeviceID
	Name    string
	Buttons [NumButtons]bool
	Axes    [NumAxes]int16
}

// NewSnapshot returns a snapshot with every button released and every axis
// centred.
func NewSnapshot(id DeviceID, name string) Snapshot {
	return Snapshot{ID: id, Name: name}
}

// Pressed reports whether b is held. Unknown buttons read as released.
func (s Snapshot) Pressed(b Button) bool {
	if !b.Valid() {
		return false
	}
	return s.Buttons[b]
}

// Raw returns the raw axis value. Unknown axes read as 0.
func (s Snapshot) Raw(a Axis) int16 {
	if !a.Valid() {
		return 0
	}
	return s.Axes[a]
}

func (s *Snapshot) SetButton(b Button, pressed bool) {
	if b.Valid() {
		s.Buttons[b] = pressed
	}
}

// SetAxis stores raw clamped to [-AxisMax, AxisMax] so abs never overflows.
func (s *Snapshot) SetAxis(a Axis, raw int16) {
	if !a.Valid() {
		return
	}
	if raw < -AxisMax {
		raw = -AxisMax
	}
	s.Axes[a] = raw
}

// Normalized returns the axis value in [-1, 1].
func (s Snapshot) Normalized(a Axis) float64 {
	return NormalizeAxis(s.Raw(a))
}

// Percent returns abs(raw) / AxisMax * 100, the scale trigger thresholds use.
func (s Snapshot) Percent(a Axis) float64 {
	raw := int32(s.Raw(a))
	if raw < 0 {
		raw = -raw
	}
	return float64(raw) / AxisMax * 100
}

// StickValues returns the normalized X and Y of a stick.
func (s Snapshot) StickValues(st Stick) (float64, float64) {
	ax, ay := st.Axes()
	return s.Normalized(ax), s.Normalized(ay)
}

type snapshotJSON struct {
	ID      DeviceID         `json:"id"`
	Name    string           `json:"name"`
	Buttons map[string]bool  `json:"buttons"`
	Axis    map[string]int16 `json:"axis"`
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		ID:      s.ID,
		Name:    s.Name,
		Buttons: make(map[string]bool, NumButtons),
		Axis:    make(map[string]int16, NumAxes),
	}
	for i, name := range buttonNames {
		out.Buttons[name] = s.Buttons[i]
	}
	for i, name := range axisNames {
		out.Axis[name] = s.Axes[i]
	}
	return json.Marshal(out)
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var in snapshotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = NewSnapshot(in.ID, in.Name)
	for name, pressed := range in.Buttons {
		b, err := ParseButton(name)
		if err != nil {
			return err
		}
		s.SetButton(b, pressed)
	}
	for name, raw := range in.Axis {
		a, err := ParseAxis(name)
		if err != nil {
			return err
		}
		s.SetAxis(a, raw)
	}
	return nil
}

// Snapshots maps every connected device to its latest state. Values published
// through a Registry are never mutated afterwards.
type Snapshots map[DeviceID]Snapshot

// IDs returns the device ids in ascending order.
func (m Snapshots) IDs() []DeviceID {
	ids := make([]DeviceID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// List returns the snapshots ordered by device id.
func (m Snapshots) List() []Snapshot {
	out := make([]Snapshot, 0, len(m))
	for _, id := range m.IDs() {
		out = append(out, m[id])
	}
	return out
}

func (m Snapshots) clone() Snapshots {
	out := make(Snapshots, len(m)+1)
	for id, s := range m {
		out[id] = s
	}
	return out
}
