// Package config loads the daemon settings from flags, the environment
// (JOYCTRL_*) and an optional settings file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/soar/joyctrl/internal/engine"
)

const EnvPrefix = "JOYCTRL"

// Settings are the daemon settings. The rule set lives elsewhere (see Rules).
type Settings struct {
	Listen string
	// Rules is the path of the rule set document.
	Rules string

	Tick     time.Duration
	TickMode engine.TickMode
	MaxDelta time.Duration

	Capture         string
	EvdevDevices    []string
	EvdevTriggerMax int

	Sink          string
	UInputPath    string
	ScreenWidth   int
	ScreenHeight  int
	AbsoluteScale float64

	Tray bool

	LogLevel  string
	LogFormat string
	LogOutput string

	// ConfigFile is the settings file that was read, if any.
	ConfigFile string
}

// DefaultRulesPath is rules.json under the user config directory.
func DefaultRulesPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "rules.json"
	}
	return filepath.Join(dir, "joyctrl", "rules.json")
}

// NewFlagSet returns the daemon flags with their defaults.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "settings file (json, yaml or toml)")
	fs.String("listen", "127.0.0.1:8080", "address of the UI and ipc server")
	fs.String("rules", DefaultRulesPath(), "rule set document (.json, .yaml or .yml)")
	fs.Duration("tick", engine.DefaultTick, "runtime tick period")
	fs.String("tick-mode", "interval", "interval or event")
	fs.Duration("max-delta", engine.DefaultMaxDelta, "longest time a single tick may account for")
	fs.String("capture", "sdl", "gamepad capture backend: sdl or evdev")
	fs.StringSlice("evdev-devices", nil, "event nodes to read with the evdev backend (default: autodetect)")
	fs.Int("evdev-trigger-max", 255, "raw maximum of evdev trigger axes")
	fs.String("sink", "uinput", "injection backend: uinput or log")
	fs.String("uinput-path", "/dev/uinput", "uinput device node")
	fs.Int("screen-width", 1920, "screen width for absolute cursor moves")
	fs.Int("screen-height", 1080, "screen height for absolute cursor moves")
	fs.Float64("absolute-scale", engine.DefaultAbsoluteScale, "stick scale for absolute cursor moves")
	fs.Bool("tray", true, "show the system tray icon")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("log-format", "text", "text or json")
	fs.String("log-output", "stderr", "stderr, stdout or a file path")
	return fs
}

// Load parses args and resolves every setting. pflag.ErrHelp is returned
// unwrapped when -h was given.
func Load(args []string) (Settings, error) {
	fs := NewFlagSet("joyctrl")
	if err := fs.Parse(args); err != nil {
		return Settings{}, err
	}
	return FromFlags(fs)
}

// FromFlags resolves the settings of an already parsed flag set.
func FromFlags(fs *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Settings{}, fmt.Errorf("bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
		}
	}

	mode, err := engine.ParseTickMode(v.GetString("tick-mode"))
	if err != nil {
		return Settings{}, err
	}
	s := Settings{
		Listen:          v.GetString("listen"),
		Rules:           v.GetString("rules"),
		Tick:            v.GetDuration("tick"),
		TickMode:        mode,
		MaxDelta:        v.GetDuration("max-delta"),
		Capture:         strings.ToLower(v.GetString("capture")),
		EvdevDevices:    v.GetStringSlice("evdev-devices"),
		EvdevTriggerMax: v.GetInt("evdev-trigger-max"),
		Sink:            strings.ToLower(v.GetString("sink")),
		UInputPath:      v.GetString("uinput-path"),
		ScreenWidth:     v.GetInt("screen-width"),
		ScreenHeight:    v.GetInt("screen-height"),
		AbsoluteScale:   v.GetFloat64("absolute-scale"),
		Tray:            v.GetBool("tray"),
		LogLevel:        v.GetString("log-level"),
		LogFormat:       v.GetString("log-format"),
		LogOutput:       v.GetString("log-output"),
		ConfigFile:      v.ConfigFileUsed(),
	}
	return s, s.Validate()
}

// Validate checks the settings that cannot be caught later with a useful
// message.
func (s Settings) Validate() error {
	var errs []error
	if s.Listen == "" {
		errs = append(errs, errors.New("listen: empty address"))
	}
	if s.Rules == "" {
		errs = append(errs, errors.New("rules: empty path"))
	}
	if s.Tick <= 0 {
		errs = append(errs, fmt.Errorf("tick: must be positive, got %s", s.Tick))
	}
	if s.MaxDelta <= 0 {
		errs = append(errs, fmt.Errorf("max-delta: must be positive, got %s", s.MaxDelta))
	}
	switch s.Capture {
	case "sdl", "evdev":
	default:
		errs = append(errs, fmt.Errorf("capture: unknown backend %q", s.Capture))
	}
	switch s.Sink {
	case "uinput", "log":
	default:
		errs = append(errs, fmt.Errorf("sink: unknown backend %q", s.Sink))
	}
	if s.ScreenWidth < 0 || s.ScreenHeight < 0 {
		errs = append(errs, fmt.Errorf("screen size %dx%d is negative", s.ScreenWidth, s.ScreenHeight))
	}
	if s.AbsoluteScale <= 0 {
		errs = append(errs, fmt.Errorf("absolute-scale: must be positive, got %g", s.AbsoluteScale))
	}
	return errors.Join(errs...)
}
