// Package sinktest provides a recording sink for tests.
package sinktest

import (
	"fmt"
	"sync"

	"github.com/soar/joyctrl/internal/sink"
)

// Call is one recorded sink invocation, rendered as text such as
// "press(a)", "scroll(-2,vertical)" or "click(left,release)".
type Call string

// Recorder records every call. Fail makes every call return an error after
// being recorded.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
	Fail  error
}

func (r *Recorder) record(format string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call(fmt.Sprintf(format, args...)))
	return r.Fail
}

func (r *Recorder) Press(k sink.Key) error   { return r.record("press(%s)", k) }
func (r *Recorder) Release(k sink.Key) error { return r.record("release(%s)", k) }
func (r *Recorder) WriteText(text string) error {
	return r.record("text(%s)", text)
}
func (r *Recorder) MoveRelative(dx, dy int) error { return r.record("move(%d,%d)", dx, dy) }
func (r *Recorder) MoveAbsolute(x, y int) error   { return r.record("moveTo(%d,%d)", x, y) }
func (r *Recorder) Scroll(amount int, axis sink.ScrollAxis) error {
	return r.record("scroll(%d,%s)", amount, axis)
}
func (r *Recorder) Click(b sink.Button, d sink.Direction) error {
	return r.record("click(%s,%s)", b, d)
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Take returns the recorded calls and clears the log.
func (r *Recorder) Take() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.calls
	r.calls = nil
	return out
}

// Strings is Calls as plain strings, convenient for assert.Equal.
func (r *Recorder) Strings() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = string(c)
	}
	return out
}
