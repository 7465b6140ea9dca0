package sink

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Named identifies a non-character key.
type Named uint8

const (
	NoName Named = iota
	KeyMeta
	KeyBackspace
	KeyTab
	KeyEnter
	KeyShift
	KeyControl
	KeyAlt
	KeySpace
	KeyCapsLock
	KeyEscape
	KeyDelete
	KeyArrowLeft
	KeyArrowRight
	KeyArrowUp
	KeyArrowDown
	KeyPrintScreen
	KeyMediaPlayPause
	KeyMediaStop
	KeyMediaPrevious
	KeyMediaNext
	KeyVolumeMute
	KeyVolumeDown
	KeyVolumeUp
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyInsert
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

var namedKeys = map[string]Named{
	"meta":               KeyMeta,
	"super":              KeyMeta,
	"backspace":          KeyBackspace,
	"bksp":               KeyBackspace,
	"tab":                KeyTab,
	"enter":              KeyEnter,
	"return":             KeyEnter,
	"shift":              KeyShift,
	"ctrl":               KeyControl,
	"control":            KeyControl,
	"alt":                KeyAlt,
	"space":              KeySpace,
	"lock":               KeyCapsLock,
	"capslock":           KeyCapsLock,
	"escape":             KeyEscape,
	"esc":                KeyEscape,
	"delete":             KeyDelete,
	"arrowleft":          KeyArrowLeft,
	"arrowright":         KeyArrowRight,
	"arrowup":            KeyArrowUp,
	"arrowdown":          KeyArrowDown,
	"prtscr":             KeyPrintScreen,
	"mediaplaypause":     KeyMediaPlayPause,
	"mediastop":          KeyMediaStop,
	"mediatrackprevious": KeyMediaPrevious,
	"mediatracknext":     KeyMediaNext,
	"audiovolumemute":    KeyVolumeMute,
	"audiovolumedown":    KeyVolumeDown,
	"audiovolumeup":      KeyVolumeUp,
	"home":               KeyHome,
	"end":                KeyEnd,
	"pageup":             KeyPageUp,
	"pagedown":           KeyPageDown,
	"insert":             KeyInsert,
	"f1":                 KeyF1,
	"f2":                 KeyF2,
	"f3":                 KeyF3,
	"f4":                 KeyF4,
	"f5":                 KeyF5,
	"f6":                 KeyF6,
	"f7":                 KeyF7,
	"f8":                 KeyF8,
	"f9":                 KeyF9,
	"f10":                KeyF10,
	"f11":                KeyF11,
	"f12":                KeyF12,
}

var namedStrings = func() map[Named]string {
	out := make(map[Named]string, len(namedKeys))
	for name, k := range namedKeys {
		// Longest alias wins, ties broken alphabetically.
		prev, ok := out[k]
		if !ok || len(name) > len(prev) || (len(name) == len(prev) && name < prev) {
			out[k] = name
		}
	}
	return out
}()

// Key is either a named key or a single character.
type Key struct {
	Name Named
	Rune rune
}

// Char returns the key for a single character.
func Char(r rune) Key { return Key{Rune: r} }

func (k Key) String() string {
	if k.Name != NoName {
		return namedStrings[k.Name]
	}
	return string(k.Rune)
}

// ParseKey resolves a key name. Names are case-insensitive and may be wrapped
// in braces ("{enter}"). Anything else must be exactly one character, which is
// kept with its case.
func ParseKey(s string) (Key, error) {
	if s == "" {
		return Key{}, fmt.Errorf("%w: empty name", ErrUnknownKey)
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "{") && strings.HasSuffix(lower, "}") && len(lower) > 2 {
		lower = lower[1 : len(lower)-1]
	}
	if n, ok := namedKeys[lower]; ok {
		return Key{Name: n}, nil
	}
	if utf8.RuneCountInString(s) == 1 {
		r, _ := utf8.DecodeRuneInString(s)
		return Char(r), nil
	}
	return Key{}, fmt.Errorf("%w: %q", ErrUnknownKey, s)
}

// ParseKeys resolves every name, stopping at the first failure.
func ParseKeys(names []string) ([]Key, error) {
	keys := make([]Key, 0, len(names))
	for _, n := range names {
		k, err := ParseKey(n)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}
