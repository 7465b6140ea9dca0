package gamepad

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAxis(t *testing.T) {
	tests := []struct {
		raw  int16
		want float64
	}{
		{0, 0},
		{AxisMax, 1},
		{-AxisMax, -1},
		{math.MinInt16, -1},
		{16384, 16384.0 / AxisMax},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalizeAxis(tt.raw), 1e-9, "raw=%d", tt.raw)
	}
}

func TestSnapshot_EveryIDPresent(t *testing.T) {
	s := NewSnapshot(1, "pad")
	for i := 0; i < NumButtons; i++ {
		assert.False(t, s.Pressed(Button(i)))
	}
	for i := 0; i < NumAxes; i++ {
		assert.Zero(t, s.Raw(Axis(i)))
	}
	assert.False(t, s.Pressed(Button(200)))
	assert.Zero(t, s.Raw(Axis(200)))
}

func TestSnapshot_SetAxisClampsMin(t *testing.T) {
	var s Snapshot
	s.SetAxis(AxisLeftX, math.MinInt16)
	assert.Equal(t, int16(-AxisMax), s.Raw(AxisLeftX))
	assert.InDelta(t, 100, s.Percent(AxisLeftX), 1e-9)
}

func TestSnapshot_PercentMonotonic(t *testing.T) {
	var s Snapshot
	prev := -1.0
	for raw := 0; raw <= AxisMax; raw += 997 {
		s.SetAxis(AxisTriggerLeft, int16(raw))
		p := s.Percent(AxisTriggerLeft)
		assert.Greater(t, p, prev)
		prev = p
	}
}

func TestSnapshot_Percent20000(t *testing.T) {
	var s Snapshot
	s.SetAxis(AxisTriggerRight, 20000)
	assert.InDelta(t, 61.04, s.Percent(AxisTriggerRight), 0.01)
}

func TestSnapshot_JSON(t *testing.T) {
	s := NewSnapshot(7, "Xbox Controller")
	s.SetButton(ButtonA, true)
	s.SetAxis(AxisLeftY, -1200)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	buttons := generic["buttons"].(map[string]any)
	assert.Len(t, buttons, NumButtons)
	assert.Equal(t, true, buttons["a"])
	assert.Len(t, generic["axis"].(map[string]any), NumAxes)

	var back Snapshot
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)
}

func TestParseIDs(t *testing.T) {
	b, err := ParseButton("leftShoulder")
	require.NoError(t, err)
	assert.Equal(t, ButtonLeftShoulder, b)

	a, err := ParseAxis("triggerRight")
	require.NoError(t, err)
	assert.Equal(t, AxisTriggerRight, a)

	_, err = ParseButton("nope")
	assert.Error(t, err)

	var st Stick
	require.NoError(t, st.UnmarshalText([]byte("rightStick")))
	x, y := st.Axes()
	assert.Equal(t, AxisRightX, x)
	assert.Equal(t, AxisRightY, y)
}

func TestScaleTrigger(t *testing.T) {
	assert.Equal(t, int16(0), ScaleTrigger(-32768, -32768, 32767))
	assert.Equal(t, int16(AxisMax), ScaleTrigger(32767, -32768, 32767))
	assert.Equal(t, int16(AxisMax), ScaleTrigger(255, 0, 255))
	assert.Equal(t, int16(0), ScaleTrigger(-5, 0, 255))
	assert.Equal(t, int16(0), ScaleTrigger(3, 3, 3))
}

func TestDeviceMapping_Apply(t *testing.T) {
	m := &DeviceMapping{
		Axes: []AxisMapping{
			{Index: 0, Target: AxisLeftX, Invert: true},
			{Index: 4, Target: AxisTriggerLeft, IsTrigger: true, RawMin: -32768, RawMax: 32767},
		},
		Buttons: []ButtonMapping{
			{Index: 0, Target: ButtonA},
			{Index: 9, Target: ButtonB},
		},
		HasHat: true,
	}
	axes := map[int32]int16{0: 1000, 4: 32767}
	var s Snapshot
	m.Apply(&s,
		func(i int32) int16 { return axes[i] },
		func(int32) bool { return true },
		4,
		func() (uint8, bool) { return hatUp | hatLeft, true })

	assert.Equal(t, int16(-1000), s.Raw(AxisLeftX))
	assert.Equal(t, int16(AxisMax), s.Raw(AxisTriggerLeft))
	assert.True(t, s.Pressed(ButtonA))
	assert.False(t, s.Pressed(ButtonB), "index beyond device button count")
	assert.True(t, s.Pressed(ButtonDPadUp))
	assert.True(t, s.Pressed(ButtonDPadLeft))
	assert.False(t, s.Pressed(ButtonDPadDown))
}

func TestGetMapping(t *testing.T) {
	assert.Equal(t, "playstation", GetMapping(0x054C, 0x0CE6).Name)
	assert.Equal(t, "generic", GetMapping(0x1234, 0x5678).Name)
}
