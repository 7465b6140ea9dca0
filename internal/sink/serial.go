package sink

import (
	"errors"
	"sync"
)

// Serial makes a Sink safe for concurrent callers and remembers what is held.
// Calls are strictly ordered: one call runs at a time, so a release can never
// overtake its own press.
type Serial struct {
	mu      sync.Mutex
	s       Sink
	keys    map[Key]struct{}
	order   []Key
	buttons map[Button]struct{}
}

func NewSerial(s Sink) *Serial {
	return &Serial{
		s:       s,
		keys:    make(map[Key]struct{}),
		buttons: make(map[Button]struct{}),
	}
}

func (s *Serial) Press(k Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.s.Press(k); err != nil {
		return err
	}
	if _, ok := s.keys[k]; !ok {
		s.keys[k] = struct{}{}
		s.order = append(s.order, k)
	}
	return nil
}

func (s *Serial) Release(k Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forgetKey(k)
	return s.s.Release(k)
}

func (s *Serial) forgetKey(k Key) {
	if _, ok := s.keys[k]; !ok {
		return
	}
	delete(s.keys, k)
	for i, held := range s.order {
		if held == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Serial) WriteText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s.WriteText(text)
}

func (s *Serial) MoveRelative(dx, dy int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s.MoveRelative(dx, dy)
}

func (s *Serial) MoveAbsolute(x, y int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s.MoveAbsolute(x, y)
}

func (s *Serial) Scroll(amount int, axis ScrollAxis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s.Scroll(amount, axis)
}

func (s *Serial) Click(b Button, d Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch d {
	case Press:
		if err := s.s.Click(b, d); err != nil {
			return err
		}
		s.buttons[b] = struct{}{}
		return nil
	case Release:
		delete(s.buttons, b)
	}
	return s.s.Click(b, d)
}

// Held returns the keys currently held, oldest first.
func (s *Serial) Held() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Key(nil), s.order...)
}

// ReleaseAll releases every held key, newest first, then every held button.
// It keeps going past failures and returns them joined.
func (s *Serial) ReleaseAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for i := len(s.order) - 1; i >= 0; i-- {
		if err := s.s.Release(s.order[i]); err != nil {
			errs = append(errs, err)
		}
	}
	s.order = nil
	clear(s.keys)

	for _, b := range []Button{ButtonLeft, ButtonRight, ButtonMiddle} {
		if _, ok := s.buttons[b]; !ok {
			continue
		}
		if err := s.s.Click(b, Release); err != nil {
			errs = append(errs, err)
		}
	}
	clear(s.buttons)
	return errors.Join(errs...)
}
