package engine

import "github.com/soar/joyctrl/internal/watch"

// ActiveFlag is the global mapping enable switch. It is injected into the
// runtime and the executor rather than living in a package variable.
type ActiveFlag struct {
	v *watch.Value[bool]
}

func NewActiveFlag(active bool) *ActiveFlag {
	return &ActiveFlag{v: watch.New(active)}
}

func (f *ActiveFlag) Load() bool { return f.v.Load() }

// Set stores active and reports whether the value changed.
func (f *ActiveFlag) Set(active bool) bool {
	return f.v.CompareAndStore(active, func(a, b bool) bool { return a == b })
}

// Toggle flips the flag and returns the new value.
func (f *ActiveFlag) Toggle() bool {
	return f.v.Update(func(v bool) bool { return !v })
}

func (f *ActiveFlag) Subscribe() *watch.Receiver[bool] { return f.v.Subscribe() }
