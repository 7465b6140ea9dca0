package mapping

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"github.com/soar/joyctrl/internal/gamepad"
)

//go:embed rule.schema.json
var ruleSchemaJSON []byte

const ruleSchemaURL = "joyctrl:///rule.schema.json"

var ruleSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(ruleSchemaURL, bytes.NewReader(ruleSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add rule schema: %w", err)
	}
	return compiler.Compile(ruleSchemaURL)
})

// ValidateRule checks a single raw mapping entry against the rule schema.
func ValidateRule(raw []byte) error {
	schema, err := ruleSchema()
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return err
	}
	return schema.Validate(instance)
}

// DecodeRule validates and decodes one mapping entry.
func DecodeRule(raw []byte) (Rule, error) {
	if err := ValidateRule(raw); err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	doc := gjson.ParseBytes(raw)
	r := Rule{ID: doc.Get("id").String()}

	switch kind := doc.Get("type").String(); kind {
	case "buttonPressed":
		b, err := gamepad.ParseButton(doc.Get("button").String())
		if err != nil {
			return Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		r.Trigger = ButtonTrigger{Button: b}
	case "axisTrigger":
		a, err := gamepad.ParseAxis(doc.Get("axis").String())
		if err != nil {
			return Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		r.Trigger = AxisTrigger{Axis: a, Threshold: doc.Get("threshold").Float()}
	case "axisStick":
		var st gamepad.Stick
		if err := st.UnmarshalText([]byte(doc.Get("stick").String())); err != nil {
			return Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		r.Trigger = StickTrigger{Stick: st}
	default:
		return Rule{}, fmt.Errorf("%w: unknown mapping type %q", ErrInvalidRule, kind)
	}

	if c := doc.Get("conditions"); c.Exists() {
		if err := json.Unmarshal([]byte(c.Raw), &r.Conditions); err != nil {
			return Rule{}, fmt.Errorf("%w: conditions: %v", ErrInvalidRule, err)
		}
		if len(r.Conditions) == 0 {
			r.Conditions = nil
		}
	}

	action, err := DecodeAction([]byte(doc.Get("action").Raw))
	if err != nil {
		return Rule{}, err
	}
	r.Action = action

	if _, ok := r.Trigger.(StickTrigger); ok && !StickAction(action) {
		return Rule{}, fmt.Errorf("%w: stick rule needs mouseMoveStick or scrollStick, got %s", ErrInvalidRule, action.Kind())
	}
	return r, nil
}

// DecodeAction decodes a tagged action object.
func DecodeAction(raw []byte) (Action, error) {
	kind := gjson.GetBytes(raw, "type").String()

	var into Action
	switch kind {
	case "pressKeys":
		var a PressKeys
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, kind, err)
		}
		into = a
	case "writeText":
		var a WriteText
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, kind, err)
		}
		into = a
	case "mouseMoveDirection":
		var a MouseMoveDirection
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, kind, err)
		}
		into = a
	case "mouseClick":
		var a MouseClick
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, kind, err)
		}
		into = a
	case "mouseMoveStick":
		var a MouseMoveStick
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, kind, err)
		}
		into = a
	case "scrollDirection":
		var a ScrollDirection
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, kind, err)
		}
		into = a
	case "scrollStick":
		var a ScrollStick
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, kind, err)
		}
		into = a
	case "toogleMappingActive", "toggleMappingActive":
		into = ToggleMappingActive{}
	case "toogleVirtualKeyboard", "toggleVirtualKeyboard":
		into = ToggleVirtualKeyboard{}
	case "setMouseSensitivity":
		var a SetMouseSensitivity
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, kind, err)
		}
		if a.Sensitivity <= 0 {
			return nil, fmt.Errorf("%w: sensitivity must be positive", ErrInvalidRule)
		}
		into = a
	case "openWebsite":
		var a OpenWebsite
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, kind, err)
		}
		into = a
	case "openFile":
		var a OpenFile
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRule, kind, err)
		}
		into = a
	default:
		return nil, fmt.Errorf("%w: unknown action type %q", ErrInvalidRule, kind)
	}
	return into, nil
}

// MarshalAction encodes a as a tagged object.
func MarshalAction(a Action) ([]byte, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(a.Kind())
	if bytes.Equal(body, []byte("{}")) {
		return []byte(`{"type":` + string(tag) + `}`), nil
	}
	return append([]byte(`{"type":`+string(tag)+`,`), body[1:]...), nil
}

type ruleJSON struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Button     *gamepad.Button `json:"button,omitempty"`
	Axis       *gamepad.Axis   `json:"axis,omitempty"`
	Threshold  *float64        `json:"threshold,omitempty"`
	Stick      *gamepad.Stick  `json:"stick,omitempty"`
	Conditions []Condition     `json:"conditions"`
	Action     json.RawMessage `json:"action"`
}

func (r Rule) MarshalJSON() ([]byte, error) {
	action, err := MarshalAction(r.Action)
	if err != nil {
		return nil, err
	}
	out := ruleJSON{
		Type:       r.Trigger.Kind(),
		ID:         r.ID,
		Conditions: r.Conditions,
		Action:     action,
	}
	if out.Conditions == nil {
		out.Conditions = []Condition{}
	}
	switch t := r.Trigger.(type) {
	case ButtonTrigger:
		out.Button = &t.Button
	case AxisTrigger:
		out.Axis = &t.Axis
		out.Threshold = &t.Threshold
	case StickTrigger:
		out.Stick = &t.Stick
	}
	return json.Marshal(out)
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	v, err := DecodeRule(data)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// DecodeConfig parses a rule set document. Entries that fail validation, stick
// rules with non-stick actions and duplicate ids are dropped; the returned
// Config holds the remaining rules in order and the error joins every reason
// an entry was dropped. A document that is not JSON at all is an error with a
// zero Config.
func DecodeConfig(data []byte) (Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return DefaultConfig(), nil
	}
	if !gjson.ValidBytes(data) {
		return Config{}, errors.New("rules document is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return Config{}, errors.New("rules document must be an object")
	}

	cfg := DefaultConfig()
	if v := doc.Get("mappingActiveOnBoot"); v.Exists() {
		cfg.MappingActiveOnBoot = v.Bool()
	}
	if v := doc.Get("deadzone"); v.Exists() && v.Type == gjson.Number {
		cfg.Deadzone = v.Float()
	}
	if v := doc.Get("keyboardLayout"); v.Type == gjson.String {
		cfg.KeyboardLayout = v.String()
	}

	var errs []error
	seen := make(map[string]bool)
	for i, entry := range doc.Get("mappings").Array() {
		r, err := DecodeRule([]byte(entry.Raw))
		if err != nil {
			errs = append(errs, fmt.Errorf("mappings[%d] (%s): %w", i, entry.Get("id").String(), err))
			continue
		}
		if seen[r.ID] {
			errs = append(errs, fmt.Errorf("mappings[%d]: %w: %s", i, ErrDuplicateID, r.ID))
			continue
		}
		seen[r.ID] = true
		cfg.Mappings = append(cfg.Mappings, r)
	}
	return cfg, errors.Join(errs...)
}

type configJSON struct {
	MappingActiveOnBoot bool    `json:"mappingActiveOnBoot"`
	Mappings            []Rule  `json:"mappings"`
	Deadzone            float64 `json:"deadzone"`
	KeyboardLayout      *string `json:"keyboardLayout"`
}

func (c Config) MarshalJSON() ([]byte, error) {
	out := configJSON{
		MappingActiveOnBoot: c.MappingActiveOnBoot,
		Mappings:            c.Mappings,
		Deadzone:            c.Deadzone,
	}
	if out.Mappings == nil {
		out.Mappings = []Rule{}
	}
	if c.KeyboardLayout != "" {
		out.KeyboardLayout = &c.KeyboardLayout
	}
	return json.Marshal(out)
}
