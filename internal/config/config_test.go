package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soar/joyctrl/internal/engine"
)

func TestLoad_Defaults(t *testing.T) {
	s, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", s.Listen)
	assert.Equal(t, DefaultRulesPath(), s.Rules)
	assert.Equal(t, engine.DefaultTick, s.Tick)
	assert.Equal(t, engine.Interval, s.TickMode)
	assert.Equal(t, engine.DefaultMaxDelta, s.MaxDelta)
	assert.Equal(t, "sdl", s.Capture)
	assert.Empty(t, s.EvdevDevices)
	assert.Equal(t, "uinput", s.Sink)
	assert.Equal(t, engine.DefaultAbsoluteScale, s.AbsoluteScale)
	assert.True(t, s.Tray)
	assert.Equal(t, "info", s.LogLevel)
	assert.Empty(t, s.ConfigFile)
}

func TestLoad_Flags(t *testing.T) {
	s, err := Load([]string{
		"--tick-mode=event",
		"--tick=10ms",
		"--capture=EVDEV",
		"--evdev-devices=/dev/input/event3,/dev/input/event4",
		"--tray=false",
	})
	require.NoError(t, err)

	assert.Equal(t, engine.Event, s.TickMode)
	assert.Equal(t, 10*time.Millisecond, s.Tick)
	assert.Equal(t, "evdev", s.Capture)
	assert.Equal(t, []string{"/dev/input/event3", "/dev/input/event4"}, s.EvdevDevices)
	assert.False(t, s.Tray)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("JOYCTRL_LISTEN", ":9000")
	t.Setenv("JOYCTRL_MAX_DELTA", "20ms")
	t.Setenv("JOYCTRL_SINK", "log")

	s, err := Load([]string{"--sink=uinput"})
	require.NoError(t, err)

	assert.Equal(t, ":9000", s.Listen)
	assert.Equal(t, 20*time.Millisecond, s.MaxDelta)
	assert.Equal(t, "uinput", s.Sink, "an explicit flag beats the environment")
}

func TestLoad_SettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "joyctrl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: 127.0.0.1:7000
sink: log
screen-width: 2560
screen-height: 1440
log-format: json
`), 0o644))

	s, err := Load([]string{"--config", path, "--screen-height=1600"})
	require.NoError(t, err)

	assert.Equal(t, path, s.ConfigFile)
	assert.Equal(t, "127.0.0.1:7000", s.Listen)
	assert.Equal(t, "log", s.Sink)
	assert.Equal(t, 2560, s.ScreenWidth)
	assert.Equal(t, 1600, s.ScreenHeight)
	assert.Equal(t, "json", s.LogFormat)
}

func TestLoad_MissingSettingsFile(t *testing.T) {
	_, err := Load([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"capture", []string{"--capture=joy"}, "capture"},
		{"sink", []string{"--sink=x11"}, "sink"},
		{"tick", []string{"--tick=0s"}, "tick"},
		{"tick mode", []string{"--tick-mode=sometimes"}, "tick mode"},
		{"scale", []string{"--absolute-scale=0"}, "absolute-scale"},
		{"screen", []string{"--screen-width=-1"}, "screen size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_Help(t *testing.T) {
	_, err := Load([]string{"--help"})
	assert.ErrorIs(t, err, pflag.ErrHelp)
}
