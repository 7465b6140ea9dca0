package gamepad

import (
	"context"
	"sync"

	"github.com/soar/joyctrl/internal/watch"
)

// Source is a capture backend. Run opens the backend, calls ready once the
// backend is initialized and then blocks until ctx is cancelled. An error
// returned before ready is called is an initialization failure.
type Source interface {
	Run(ctx context.Context, ready func()) error
}

// Registry owns the live device snapshots. Capture backends are the only
// writers; everything else reads immutable copies.
type Registry struct {
	mu    sync.Mutex // serializes writers; readers go through cell
	state Snapshots
	cell  *watch.Value[Snapshots]
}

func NewRegistry() *Registry {
	s := Snapshots{}
	return &Registry{
		state: s,
		cell:  watch.New(s.clone()),
	}
}

// Snapshots returns the latest published map. The result must not be mutated.
func (r *Registry) Snapshots() Snapshots {
	return r.cell.Load()
}

// Subscribe returns a receiver woken on every published change.
func (r *Registry) Subscribe() *watch.Receiver[Snapshots] {
	return r.cell.Subscribe()
}

// Attach registers a device with a neutral snapshot.
func (r *Registry) Attach(id DeviceID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[id] = NewSnapshot(id, name)
	r.publishLocked()
}

// Detach removes a device.
func (r *Registry) Detach(id DeviceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state[id]; !ok {
		return
	}
	delete(r.state, id)
	r.publishLocked()
}

// SetButton applies a single button event. Events for unknown devices are
// ignored.
func (r *Registry) SetButton(id DeviceID, b Button, pressed bool) {
	r.mutate(id, func(s *Snapshot) { s.SetButton(b, pressed) })
}

// SetAxis applies a single axis event.
func (r *Registry) SetAxis(id DeviceID, a Axis, raw int16) {
	r.mutate(id, func(s *Snapshot) { s.SetAxis(a, raw) })
}

// Replace swaps in a fully polled snapshot, publishing only if it differs.
func (r *Registry) Replace(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.state[s.ID]
	if !ok || prev == s {
		return
	}
	r.state[s.ID] = s
	r.publishLocked()
}

func (r *Registry) mutate(id DeviceID, fn func(*Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.state[id]
	if !ok {
		return
	}
	next := s
	fn(&next)
	if next == s {
		return
	}
	r.state[id] = next
	r.publishLocked()
}

// publishLocked stores a copy so published maps stay immutable while the
// writer keeps mutating its own.
func (r *Registry) publishLocked() {
	r.cell.Store(r.state.clone())
}
