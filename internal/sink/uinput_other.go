//go:build !linux

package sink

import "errors"

// UInput is only available on linux.
type UInput struct{ Log }

func NewUInput(string, string, int, int) (*UInput, error) {
	return nil, errors.New("uinput sink is only supported on linux; use --sink=log")
}

func (*UInput) Close() error { return nil }
