// Package sink is the virtual input boundary: everything the mapping runtime
// injects into the host goes through a Sink.
package sink

import (
	"errors"
	"fmt"
)

// ErrUnknownKey is returned for key names or runes a sink cannot produce.
var ErrUnknownKey = errors.New("unknown key")

// Button is a pointer button.
type Button uint8

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	}
	return fmt.Sprintf("button(%d)", uint8(b))
}

// Direction of a button or key transition.
type Direction uint8

const (
	Press Direction = iota
	Release
	Click
)

func (d Direction) String() string {
	switch d {
	case Press:
		return "press"
	case Release:
		return "release"
	case Click:
		return "click"
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// ScrollAxis selects the wheel.
type ScrollAxis uint8

const (
	Vertical ScrollAxis = iota
	Horizontal
)

func (a ScrollAxis) String() string {
	if a == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

// Sink injects synthetic input. Negative scroll amounts go up or left.
// Every method may fail; callers in the tick path log and continue.
type Sink interface {
	Press(k Key) error
	Release(k Key) error
	WriteText(text string) error
	MoveRelative(dx, dy int) error
	MoveAbsolute(x, y int) error
	Scroll(amount int, axis ScrollAxis) error
	Click(b Button, d Direction) error
}
