//go:build !windows

// Package console installs a Ctrl+C handler that keeps working while SDL owns
// the main thread. Outside windows os/signal is enough and this is a no-op.
package console

import "log/slog"

func HandleInterrupt(func(), *slog.Logger) func() {
	return func() {}
}
