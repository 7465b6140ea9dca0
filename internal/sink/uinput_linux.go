//go:build linux

package sink

import (
	"errors"
	"fmt"

	"github.com/bendahl/uinput"
)

// Linux input event codes (input-event-codes.h).
const (
	codeLeftShift = 42
)

var namedCodes = map[Named]int{
	KeyMeta:           125,
	KeyBackspace:      14,
	KeyTab:            15,
	KeyEnter:          28,
	KeyShift:          codeLeftShift,
	KeyControl:        29,
	KeyAlt:            56,
	KeySpace:          57,
	KeyCapsLock:       58,
	KeyEscape:         1,
	KeyDelete:         111,
	KeyArrowLeft:      105,
	KeyArrowRight:     106,
	KeyArrowUp:        103,
	KeyArrowDown:      108,
	KeyPrintScreen:    99,
	KeyMediaPlayPause: 164,
	KeyMediaStop:      166,
	KeyMediaPrevious:  165,
	KeyMediaNext:      163,
	KeyVolumeMute:     113,
	KeyVolumeDown:     114,
	KeyVolumeUp:       115,
	KeyHome:           102,
	KeyEnd:            107,
	KeyPageUp:         104,
	KeyPageDown:       109,
	KeyInsert:         110,
	KeyF1:             59,
	KeyF2:             60,
	KeyF3:             61,
	KeyF4:             62,
	KeyF5:             63,
	KeyF6:             64,
	KeyF7:             65,
	KeyF8:             66,
	KeyF9:             67,
	KeyF10:            68,
	KeyF11:            87,
	KeyF12:            88,
}

type runeCode struct {
	code  int
	shift bool
}

// US layout.
var runeCodes = func() map[rune]runeCode {
	m := map[rune]runeCode{
		'1': {2, false}, '2': {3, false}, '3': {4, false}, '4': {5, false}, '5': {6, false},
		'6': {7, false}, '7': {8, false}, '8': {9, false}, '9': {10, false}, '0': {11, false},
		'-': {12, false}, '=': {13, false}, '[': {26, false}, ']': {27, false},
		';': {39, false}, '\'': {40, false}, '`': {41, false}, '\\': {43, false},
		',': {51, false}, '.': {52, false}, '/': {53, false},
		' ': {57, false}, '\n': {28, false}, '\t': {15, false},

		'!': {2, true}, '@': {3, true}, '#': {4, true}, '$': {5, true}, '%': {6, true},
		'^': {7, true}, '&': {8, true}, '*': {9, true}, '(': {10, true}, ')': {11, true},
		'_': {12, true}, '+': {13, true}, '{': {26, true}, '}': {27, true},
		':': {39, true}, '"': {40, true}, '~': {41, true}, '|': {43, true},
		'<': {51, true}, '>': {52, true}, '?': {53, true},
	}
	letters := map[rune]int{
		'a': 30, 'b': 48, 'c': 46, 'd': 32, 'e': 18, 'f': 33, 'g': 34, 'h': 35, 'i': 23,
		'j': 36, 'k': 37, 'l': 38, 'm': 50, 'n': 49, 'o': 24, 'p': 25, 'q': 16, 'r': 19,
		's': 31, 't': 20, 'u': 22, 'v': 47, 'w': 17, 'x': 45, 'y': 21, 'z': 44,
	}
	for r, code := range letters {
		m[r] = runeCode{code, false}
		m[r-'a'+'A'] = runeCode{code, true}
	}
	return m
}()

func resolve(k Key) (runeCode, error) {
	if k.Name != NoName {
		code, ok := namedCodes[k.Name]
		if !ok {
			return runeCode{}, fmt.Errorf("%w: %s", ErrUnknownKey, k)
		}
		return runeCode{code: code}, nil
	}
	rc, ok := runeCodes[k.Rune]
	if !ok {
		return runeCode{}, fmt.Errorf("%w: %q", ErrUnknownKey, k.Rune)
	}
	return rc, nil
}

// UInput injects through /dev/uinput: a virtual keyboard, a relative mouse,
// and an absolute touchpad spanning the screen for absolute cursor moves.
type UInput struct {
	keyboard uinput.Keyboard
	mouse    uinput.Mouse
	touch    uinput.TouchPad
}

// NewUInput creates the virtual devices. width and height size the absolute
// pointer; zero skips it and MoveAbsolute fails.
func NewUInput(path, name string, width, height int) (*UInput, error) {
	keyboard, err := uinput.CreateKeyboard(path, []byte(name+" keyboard"))
	if err != nil {
		return nil, fmt.Errorf("create virtual keyboard: %w", err)
	}
	mouse, err := uinput.CreateMouse(path, []byte(name+" mouse"))
	if err != nil {
		keyboard.Close()
		return nil, fmt.Errorf("create virtual mouse: %w", err)
	}
	u := &UInput{keyboard: keyboard, mouse: mouse}
	if width > 0 && height > 0 {
		touch, err := uinput.CreateTouchPad(path, []byte(name+" pointer"), 0, int32(width-1), 0, int32(height-1))
		if err != nil {
			u.Close()
			return nil, fmt.Errorf("create virtual pointer: %w", err)
		}
		u.touch = touch
	}
	return u, nil
}

func (u *UInput) Close() error {
	var errs []error
	if u.touch != nil {
		errs = append(errs, u.touch.Close())
	}
	errs = append(errs, u.mouse.Close(), u.keyboard.Close())
	return errors.Join(errs...)
}

func (u *UInput) Press(k Key) error {
	rc, err := resolve(k)
	if err != nil {
		return err
	}
	if rc.shift {
		if err := u.keyboard.KeyDown(codeLeftShift); err != nil {
			return err
		}
	}
	return u.keyboard.KeyDown(rc.code)
}

func (u *UInput) Release(k Key) error {
	rc, err := resolve(k)
	if err != nil {
		return err
	}
	if err := u.keyboard.KeyUp(rc.code); err != nil {
		return err
	}
	if rc.shift {
		return u.keyboard.KeyUp(codeLeftShift)
	}
	return nil
}

// WriteText types text on the US layout. Characters the layout cannot produce
// are skipped and reported.
func (u *UInput) WriteText(text string) error {
	var errs []error
	for _, r := range text {
		rc, err := resolve(Char(r))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rc.shift {
			if err := u.keyboard.KeyDown(codeLeftShift); err != nil {
				return err
			}
		}
		err = u.keyboard.KeyPress(rc.code)
		if rc.shift {
			if upErr := u.keyboard.KeyUp(codeLeftShift); upErr != nil && err == nil {
				err = upErr
			}
		}
		if err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

func (u *UInput) MoveRelative(dx, dy int) error {
	return u.mouse.Move(int32(dx), int32(dy))
}

func (u *UInput) MoveAbsolute(x, y int) error {
	if u.touch == nil {
		return errors.New("absolute pointer not configured")
	}
	return u.touch.MoveTo(int32(x), int32(y))
}

// Scroll maps negative (up) amounts onto positive REL_WHEEL steps, which is
// the kernel's "away from the user" direction.
func (u *UInput) Scroll(amount int, axis ScrollAxis) error {
	if amount == 0 {
		return nil
	}
	if axis == Horizontal {
		return u.mouse.Wheel(true, int32(amount))
	}
	return u.mouse.Wheel(false, int32(-amount))
}

func (u *UInput) Click(b Button, d Direction) error {
	switch b {
	case ButtonLeft:
		switch d {
		case Press:
			return u.mouse.LeftPress()
		case Release:
			return u.mouse.LeftRelease()
		default:
			return u.mouse.LeftClick()
		}
	case ButtonRight:
		switch d {
		case Press:
			return u.mouse.RightPress()
		case Release:
			return u.mouse.RightRelease()
		default:
			return u.mouse.RightClick()
		}
	case ButtonMiddle:
		switch d {
		case Press:
			return u.mouse.MiddlePress()
		case Release:
			return u.mouse.MiddleRelease()
		default:
			return u.mouse.MiddleClick()
		}
	}
	return fmt.Errorf("unsupported mouse button %s", b)
}
