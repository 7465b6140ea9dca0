package shell

import (
	"log/slog"

	"github.com/soar/joyctrl/internal/sink"
	"github.com/soar/joyctrl/internal/watch"
)

// Overlay is the open state of the on-screen keyboard. The UI renders it; the
// daemon owns the state so rules, the tray and the UI agree. Closing the
// overlay releases every key it still holds.
type Overlay struct {
	open    *watch.Value[bool]
	session *sink.Session
	logger  *slog.Logger
}

func NewOverlay(session *sink.Session, logger *slog.Logger) *Overlay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Overlay{
		open:    watch.New(false),
		session: session,
		logger:  logger.With("component", "overlay"),
	}
}

// Session is the sink view keys typed on the overlay go through.
func (o *Overlay) Session() *sink.Session { return o.session }

func (o *Overlay) IsOpen() bool { return o.open.Load() }

func (o *Overlay) Subscribe() *watch.Receiver[bool] { return o.open.Subscribe() }

// Toggle flips the state and returns the new one.
func (o *Overlay) Toggle() bool {
	open := o.open.Update(func(v bool) bool { return !v })
	o.changed(open)
	return open
}

func (o *Overlay) SetOpen(open bool) {
	if o.open.CompareAndStore(open, func(a, b bool) bool { return a == b }) {
		o.changed(open)
	}
}

func (o *Overlay) changed(open bool) {
	o.logger.Info("virtual keyboard", "open", open)
	if open {
		return
	}
	if err := o.session.Reset(); err != nil {
		o.logger.Warn("releasing virtual keyboard keys", "error", err)
	}
}
