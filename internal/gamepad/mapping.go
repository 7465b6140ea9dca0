package gamepad

import "math"

// AxisMapping defines how a raw joystick axis index maps to an Axis.
type AxisMapping struct {
	Index     int32
	Target    Axis
	IsTrigger bool
	Invert    bool
	// For triggers: raw range. Some devices use -32768..32767, others 0..32767.
	RawMin int16
	RawMax int16
}

// ButtonMapping defines how a raw joystick button index maps to a Button.
type ButtonMapping struct {
	Index  int32
	Target Button
}

// DeviceMapping holds the complete mapping for a specific device type.
type DeviceMapping struct {
	Name    string
	Axes    []AxisMapping
	Buttons []ButtonMapping
	HasHat  bool
}

// Hat bits as reported by joystick hat 0.
const (
	hatUp    uint8 = 0x01
	hatRight uint8 = 0x02
	hatDown  uint8 = 0x04
	hatLeft  uint8 = 0x08
)

// NormalizeAxis converts a raw axis value to -1.0..1.0. Zero stays exactly
// zero and -32768 clamps to -1.
func NormalizeAxis(raw int16) float64 {
	if raw == 0 {
		return 0
	}
	v := float64(raw) / AxisMax
	return math.Max(-1, math.Min(1, v))
}

// ScaleTrigger converts a raw trigger reading in [rawMin, rawMax] to the
// 0..AxisMax range triggers are stored in.
func ScaleTrigger(raw int32, rawMin, rawMax int32) int16 {
	if rawMax == rawMin {
		return 0
	}
	v := float64(raw-rawMin) / float64(rawMax-rawMin)
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return int16(math.Round(v * AxisMax))
}

// ApplyHat sets the D-pad buttons from a hat bitmask.
func ApplyHat(s *Snapshot, hat uint8) {
	s.SetButton(ButtonDPadUp, hat&hatUp != 0)
	s.SetButton(ButtonDPadRight, hat&hatRight != 0)
	s.SetButton(ButtonDPadDown, hat&hatDown != 0)
	s.SetButton(ButtonDPadLeft, hat&hatLeft != 0)
}

var standardAxes = []AxisMapping{
	{Index: 0, Target: AxisLeftX},
	{Index: 1, Target: AxisLeftY},
	{Index: 2, Target: AxisRightX},
	{Index: 3, Target: AxisRightY},
	{Index: 4, Target: AxisTriggerLeft, IsTrigger: true, RawMin: -32768, RawMax: 32767},
	{Index: 5, Target: AxisTriggerRight, IsTrigger: true, RawMin: -32768, RawMax: 32767},
}

var xboxMapping = &DeviceMapping{
	Name: "xbox",
	Axes: standardAxes,
	Buttons: []ButtonMapping{
		{Index: 0, Target: ButtonA},
		{Index: 1, Target: ButtonB},
		{Index: 2, Target: ButtonX},
		{Index: 3, Target: ButtonY},
		{Index: 4, Target: ButtonLeftShoulder},
		{Index: 5, Target: ButtonRightShoulder},
		{Index: 6, Target: ButtonBack},
		{Index: 7, Target: ButtonStart},
		{Index: 8, Target: ButtonLeftStick},
		{Index: 9, Target: ButtonRightStick},
		{Index: 10, Target: ButtonGuide},
		{Index: 11, Target: ButtonMisc1},
	},
	HasHat: true,
}

var playstationMapping = &DeviceMapping{
	Name: "playstation",
	Axes: standardAxes,
	Buttons: []ButtonMapping{
		{Index: 0, Target: ButtonA},     // Cross
		{Index: 1, Target: ButtonB},     // Circle
		{Index: 2, Target: ButtonX},     // Square
		{Index: 3, Target: ButtonY},     // Triangle
		{Index: 4, Target: ButtonBack},  // Share / Create
		{Index: 5, Target: ButtonGuide}, // PS button
		{Index: 6, Target: ButtonStart}, // Options
		{Index: 7, Target: ButtonLeftStick},
		{Index: 8, Target: ButtonRightStick},
		{Index: 9, Target: ButtonLeftShoulder},   // L1
		{Index: 10, Target: ButtonRightShoulder}, // R1
		{Index: 11, Target: ButtonTouchpad},
	},
	HasHat: true,
}

var switchProMapping = &DeviceMapping{
	Name: "switch_pro",
	Axes: standardAxes[:4],
	Buttons: []ButtonMapping{
		{Index: 0, Target: ButtonA},
		{Index: 1, Target: ButtonB},
		{Index: 2, Target: ButtonX},
		{Index: 3, Target: ButtonY},
		{Index: 4, Target: ButtonLeftShoulder},
		{Index: 5, Target: ButtonRightShoulder},
		{Index: 6, Target: ButtonBack},
		{Index: 7, Target: ButtonStart},
		{Index: 8, Target: ButtonLeftStick},
		{Index: 9, Target: ButtonRightStick},
		{Index: 10, Target: ButtonGuide},
		{Index: 11, Target: ButtonMisc1}, // Capture
	},
	HasHat: true,
}

var genericMapping = &DeviceMapping{
	Name: "generic",
	Axes: standardAxes,
	Buttons: []ButtonMapping{
		{Index: 0, Target: ButtonA},
		{Index: 1, Target: ButtonB},
		{Index: 2, Target: ButtonX},
		{Index: 3, Target: ButtonY},
		{Index: 4, Target: ButtonLeftShoulder},
		{Index: 5, Target: ButtonRightShoulder},
		{Index: 6, Target: ButtonBack},
		{Index: 7, Target: ButtonStart},
		{Index: 8, Target: ButtonLeftStick},
		{Index: 9, Target: ButtonRightStick},
		{Index: 10, Target: ButtonGuide},
		{Index: 11, Target: ButtonPaddle1},
		{Index: 12, Target: ButtonPaddle2},
		{Index: 13, Target: ButtonPaddle3},
		{Index: 14, Target: ButtonPaddle4},
	},
	HasHat: true,
}

// Known vendor/product IDs.
type deviceKey struct {
	VendorID  uint16
	ProductID uint16
}

var knownDevices = map[deviceKey]*DeviceMapping{
	// Microsoft Xbox controllers
	{0x045E, 0x028E}: xboxMapping, // Xbox 360
	{0x045E, 0x02FF}: xboxMapping, // Xbox One
	{0x045E, 0x0B12}: xboxMapping, // Xbox Series X|S
	{0x045E, 0x0B13}: xboxMapping, // Xbox Series X|S (wireless)
	// Sony PlayStation controllers
	{0x054C, 0x0CE6}: playstationMapping, // DualSense
	{0x054C, 0x09CC}: playstationMapping, // DualShock 4 v2
	{0x054C, 0x05C4}: playstationMapping, // DualShock 4 v1
	// Nintendo Switch Pro Controller
	{0x057E, 0x2009}: switchProMapping,
}

// GetMapping returns the appropriate mapping for a device identified by vendor/product ID.
// Falls back to generic mapping if no specific mapping is found.
func GetMapping(vendorID, productID uint16) *DeviceMapping {
	key := deviceKey{VendorID: vendorID, ProductID: productID}
	if m, ok := knownDevices[key]; ok {
		return m
	}
	return genericMapping
}

// Apply reads a device through the given accessors into a fresh snapshot.
// numButtons bounds the button indices the device actually reports.
func (m *DeviceMapping) Apply(s *Snapshot, axis func(int32) int16, button func(int32) bool, numButtons int32, hat func() (uint8, bool)) {
	for _, am := range m.Axes {
		raw := axis(am.Index)
		if am.IsTrigger {
			s.SetAxis(am.Target, ScaleTrigger(int32(raw), int32(am.RawMin), int32(am.RawMax)))
			continue
		}
		if am.Invert {
			raw = invert(raw)
		}
		s.SetAxis(am.Target, raw)
	}
	for _, bm := range m.Buttons {
		if bm.Index >= numButtons {
			continue
		}
		s.SetButton(bm.Target, button(bm.Index))
	}
	if m.HasHat && hat != nil {
		if v, ok := hat(); ok {
			ApplyHat(s, v)
		}
	}
}

func invert(raw int16) int16 {
	if raw == math.MinInt16 {
		return math.MaxInt16
	}
	return -raw
}
