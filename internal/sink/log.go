package sink

import "log/slog"

// Log is a dry-run sink: it only records what it would inject.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "sink", "sink", "log")}
}

func (l *Log) Press(k Key) error {
	l.logger.Info("key press", "key", k.String())
	return nil
}

func (l *Log) Release(k Key) error {
	l.logger.Info("key release", "key", k.String())
	return nil
}

func (l *Log) WriteText(text string) error {
	l.logger.Info("write text", "text", text)
	return nil
}

func (l *Log) MoveRelative(dx, dy int) error {
	l.logger.Debug("move relative", "dx", dx, "dy", dy)
	return nil
}

func (l *Log) MoveAbsolute(x, y int) error {
	l.logger.Debug("move absolute", "x", x, "y", y)
	return nil
}

func (l *Log) Scroll(amount int, axis ScrollAxis) error {
	l.logger.Debug("scroll", "amount", amount, "axis", axis.String())
	return nil
}

func (l *Log) Click(b Button, d Direction) error {
	l.logger.Info("mouse button", "button", b.String(), "direction", d.String())
	return nil
}
