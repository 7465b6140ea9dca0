package sink

import (
	"errors"
	"sync"
)

// Session is a view over a Sink that remembers the keys pressed through it,
// so one caller (the on-screen keyboard) can let go of exactly its own keys.
// Caps lock is a latch: each press flips it, and Reset taps it again when it
// was left on.
type Session struct {
	mu       sync.Mutex
	s        Sink
	pressed  map[Key]struct{}
	capsLock bool
}

func NewSession(s Sink) *Session {
	return &Session{s: s, pressed: make(map[Key]struct{})}
}

func (v *Session) Press(k Key) error {
	if err := v.s.Press(k); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if k.Name == KeyCapsLock {
		v.capsLock = !v.capsLock
	}
	v.pressed[k] = struct{}{}
	return nil
}

func (v *Session) Release(k Key) error {
	v.mu.Lock()
	delete(v.pressed, k)
	v.mu.Unlock()
	return v.s.Release(k)
}

func (v *Session) WriteText(text string) error {
	return v.s.WriteText(text)
}

// CapsLock reports whether this session left caps lock on.
func (v *Session) CapsLock() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.capsLock
}

// Reset releases every key still held by the session and turns caps lock back
// off.
func (v *Session) Reset() error {
	v.mu.Lock()
	keys := make([]Key, 0, len(v.pressed))
	for k := range v.pressed {
		keys = append(keys, k)
	}
	clear(v.pressed)
	caps := v.capsLock
	v.capsLock = false
	v.mu.Unlock()

	var errs []error
	for _, k := range keys {
		if err := v.s.Release(k); err != nil {
			errs = append(errs, err)
		}
	}
	if caps {
		capsKey := Key{Name: KeyCapsLock}
		if err := v.s.Press(capsKey); err != nil {
			errs = append(errs, err)
		} else if err := v.s.Release(capsKey); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
