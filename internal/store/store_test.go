package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/soar/joyctrl/internal/gamepad"
	"github.com/soar/joyctrl/internal/mapping"
)

const rulesJSON = `{
  "mappingActiveOnBoot": false,
  "mappings": [
    {"type": "buttonPressed", "id": "a-enter", "button": "a",
     "action": {"type": "pressKeys", "keys": ["enter"]}},
    {"type": "axisStick", "id": "ls-mouse", "stick": "leftStick",
     "action": {"type": "mouseMoveStick", "mode": "relative"}}
  ]
}`

const rulesYAML = `mappingActiveOnBoot: true
deadzone: 0.25
mappings:
  - type: buttonPressed
    id: guide-toggle
    button: guide
    action:
      type: toogleMappingActive
  - type: axisTrigger
    id: lt-shift
    axis: triggerLeft
    threshold: 50
    action:
      type: pressKeys
      keys: [shift]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	s := New(path, nil)

	require.NoError(t, s.Load())
	assert.Equal(t, mapping.DefaultConfig(), s.Get())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "load must not create the file")
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	writeFile(t, path, rulesJSON)
	s := New(path, nil)
	require.NoError(t, s.Load())

	cfg := s.Get()
	assert.False(t, cfg.MappingActiveOnBoot)
	require.Len(t, cfg.Mappings, 2)
	assert.Equal(t, "a-enter", cfg.Mappings[0].ID)
	assert.Equal(t, mapping.StickTrigger{Stick: gamepad.LeftStick}, cfg.Mappings[1].Trigger)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	writeFile(t, path, rulesYAML)
	s := New(path, nil)
	require.NoError(t, s.Load())

	cfg := s.Get()
	assert.True(t, cfg.MappingActiveOnBoot)
	assert.Equal(t, 0.25, cfg.Deadzone)
	require.Len(t, cfg.Mappings, 2)
	assert.Equal(t, mapping.ToggleMappingActive{}, cfg.Mappings[0].Action)
	assert.Equal(t, mapping.AxisTrigger{Axis: gamepad.AxisTriggerLeft, Threshold: 50}, cfg.Mappings[1].Trigger)
}

func TestLoad_SkipsBadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	writeFile(t, path, `{"mappings": [
		{"type": "buttonPressed", "id": "ok", "button": "a", "action": {"type": "writeText", "text": "hi"}},
		{"type": "buttonPressed", "id": "bad", "button": "nope", "action": {"type": "writeText", "text": "x"}},
		{"type": "buttonPressed", "id": "ok", "button": "b", "action": {"type": "writeText", "text": "dup"}}
	]}`)
	s := New(path, nil)
	require.NoError(t, s.Load())

	cfg := s.Get()
	require.Len(t, cfg.Mappings, 1)
	assert.Equal(t, mapping.WriteText{Text: "hi"}, cfg.Mappings[0].Action)
}

func TestLoad_BrokenDocumentKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	writeFile(t, path, rulesJSON)
	s := New(path, nil)
	require.NoError(t, s.Load())

	writeFile(t, path, `{"mappings": [`)
	assert.Error(t, s.Load())
	assert.Len(t, s.Get().Mappings, 2)

	writeFile(t, path, `[]`)
	assert.Error(t, s.Load())
	assert.Len(t, s.Get().Mappings, 2)
}

func TestLoad_UnchangedDoesNotNotify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	writeFile(t, path, rulesJSON)
	s := New(path, nil)
	require.NoError(t, s.Load())

	sub := s.Subscribe()
	require.NoError(t, s.Load())
	assert.False(t, sub.HasChanged())
}

func TestSet_WritesAndPublishes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	writeFile(t, path, rulesJSON)
	s := New(path, nil)
	require.NoError(t, s.Load())
	sub := s.Subscribe()

	require.NoError(t, s.Set("mappingActiveOnBoot", json.RawMessage(`true`)))
	assert.True(t, sub.HasChanged())
	assert.True(t, sub.Borrow().MappingActiveOnBoot)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, true, onDisk["mappingActiveOnBoot"])
	assert.Len(t, onDisk["mappings"], 2)

	// A fresh store reads back the same thing.
	other := New(path, nil)
	require.NoError(t, other.Load())
	assert.Equal(t, s.Get(), other.Get())
}

func TestSet_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "rules.json")
	s := New(path, nil)
	require.NoError(t, s.Load())

	require.NoError(t, s.Set("deadzone", json.RawMessage(`0.3`)))
	assert.Equal(t, 0.3, s.Get().Deadzone)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestSet_Mappings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	s := New(path, nil)
	require.NoError(t, s.Load())

	rules := `[{"type": "buttonPressed", "id": "x", "button": "x", "action": {"type": "mouseClick", "button": "right"}}]`
	require.NoError(t, s.Set("mappings", json.RawMessage(rules)))
	require.Len(t, s.Get().Mappings, 1)
	assert.Equal(t, mapping.MouseClick{Button: mapping.MouseRight}, s.Get().Mappings[0].Action)

	raw, err := s.Value("mappings")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"mouseClick"`)
}

func TestSet_Rejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	writeFile(t, path, rulesJSON)
	s := New(path, nil)
	require.NoError(t, s.Load())
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = s.Set("theme", json.RawMessage(`"dark"`))
	assert.ErrorIs(t, err, ErrUnknownKey)

	assert.Error(t, s.Set("deadzone", json.RawMessage(`"wide"`)))
	assert.Error(t, s.Set("mappingActiveOnBoot", json.RawMessage(`1`)))
	assert.Error(t, s.Set("mappings", json.RawMessage(`{}`)))
	assert.Error(t, s.Set("deadzone", json.RawMessage(`0.`)))

	err = s.Set("mappings", json.RawMessage(`[{"type": "buttonPressed", "id": "x", "button": "x", "action": {"type": "nope"}}]`))
	assert.ErrorIs(t, err, mapping.ErrInvalidRule)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, s.Get().Mappings, 2)
}

func TestSet_KeepsWorkingWithSkippedRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	writeFile(t, path, `{
  "mappings": [
    {"type": "buttonPressed", "id": "ok", "button": "a", "action": {"type": "pressKeys", "keys": ["enter"]}},
    {"type": "buttonPressed", "id": "bad", "button": "nope", "action": {"type": "pressKeys", "keys": ["enter"]}}
  ]
}`)
	s := New(path, nil)
	require.NoError(t, s.Load())
	require.Len(t, s.Get().Mappings, 1)

	require.NoError(t, s.Set("deadzone", json.RawMessage(`0.2`)))
	require.NoError(t, s.Set("mappingActiveOnBoot", json.RawMessage(`false`)))

	cfg := s.Get()
	assert.InDelta(t, 0.2, cfg.Deadzone, 1e-9)
	assert.False(t, cfg.MappingActiveOnBoot)
	require.Len(t, cfg.Mappings, 1)
	assert.Equal(t, "ok", cfg.Mappings[0].ID)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"bad"`, "skipped rules stay in the file")

	require.NoError(t, s.Set("mappings", json.RawMessage(`[{"type": "buttonPressed", "id": "b", "button": "b", "action": {"type": "writeText", "text": "hi"}}]`)))
	require.Len(t, s.Get().Mappings, 1)
	assert.Equal(t, "b", s.Get().Mappings[0].ID)
}

func TestSet_KeyboardLayoutNull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	s := New(path, nil)
	require.NoError(t, s.Load())

	require.NoError(t, s.Set("keyboardLayout", json.RawMessage(`"de"`)))
	assert.Equal(t, "de", s.Get().KeyboardLayout)
	require.NoError(t, s.Set("keyboardLayout", json.RawMessage(`null`)))
	assert.Empty(t, s.Get().KeyboardLayout)
}

func TestSet_KeepsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yml")
	writeFile(t, path, rulesYAML)
	s := New(path, nil)
	require.NoError(t, s.Load())

	require.NoError(t, s.Set("deadzone", json.RawMessage(`0.05`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, 0.05, doc["deadzone"])
	assert.NotContains(t, string(data), "{\"")

	other := New(path, nil)
	require.NoError(t, other.Load())
	assert.Equal(t, s.Get(), other.Get())
	assert.Equal(t, 0.05, other.Get().Deadzone)
}

func TestValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	writeFile(t, path, rulesJSON)
	s := New(path, nil)
	require.NoError(t, s.Load())

	raw, err := s.Value("mappingActiveOnBoot")
	require.NoError(t, err)
	assert.Equal(t, "false", string(raw))

	raw, err = s.Value("keyboardLayout")
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))

	_, err = s.Value("nope")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	writeFile(t, path, rulesJSON)
	s := New(path, nil)
	require.NoError(t, s.Load())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx))

	writeFile(t, path, `{"mappings": [
		{"type": "buttonPressed", "id": "only", "button": "y", "action": {"type": "writeText", "text": "y"}}
	]}`)
	assert.Eventually(t, func() bool {
		m := s.Get().Mappings
		return len(m) == 1 && m[0].ID == "only"
	}, 3*time.Second, 20*time.Millisecond)

	// A broken save keeps the last good rules.
	writeFile(t, path, `{"mappings": [`)
	time.Sleep(3 * reloadDebounce)
	assert.Len(t, s.Get().Mappings, 1)
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	writeFile(t, path, rulesJSON)
	s := New(path, nil)
	require.NoError(t, s.Load())
	sub := s.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx))

	writeFile(t, filepath.Join(dir, "other.json"), `{"mappings": []}`)
	time.Sleep(3 * reloadDebounce)
	assert.False(t, sub.HasChanged())
}
