// Package shell holds the OS-facing collaborators the mapping runtime triggers
// as side effects: opening URLs and files, the on-screen keyboard state, and
// display geometry.
package shell

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// Opener hands a URL or a filesystem path to the desktop.
type Opener interface {
	OpenURL(ctx context.Context, url string) error
	OpenPath(ctx context.Context, path string) error
}

// CommandOpener launches the platform's open command and does not wait for it.
type CommandOpener struct {
	goos  string
	start func(*exec.Cmd) error
}

func NewCommandOpener() *CommandOpener {
	return &CommandOpener{goos: runtime.GOOS, start: (*exec.Cmd).Start}
}

func (o *CommandOpener) OpenURL(ctx context.Context, url string) error {
	return o.open(ctx, url)
}

func (o *CommandOpener) OpenPath(ctx context.Context, path string) error {
	return o.open(ctx, path)
}

func (o *CommandOpener) open(_ context.Context, target string) error {
	name, args := openCommand(o.goos, target)
	// Not bound to ctx: the launched program outlives the request.
	cmd := exec.Command(name, args...)
	if err := o.start(cmd); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	go cmd.Wait()
	return nil
}

func openCommand(goos, target string) (string, []string) {
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	case "darwin":
		return "open", []string{target}
	default:
		return "xdg-open", []string{target}
	}
}

// LoggingOpener wraps an Opener and logs every request and failure.
type LoggingOpener struct {
	Opener
	logger *slog.Logger
}

func WithLogging(o Opener, logger *slog.Logger) *LoggingOpener {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingOpener{Opener: o, logger: logger.With("component", "shell")}
}

func (o *LoggingOpener) OpenURL(ctx context.Context, url string) error {
	o.logger.Info("open url", "url", url)
	err := o.Opener.OpenURL(ctx, url)
	if err != nil {
		o.logger.Warn("open url failed", "url", url, "error", err)
	}
	return err
}

func (o *LoggingOpener) OpenPath(ctx context.Context, path string) error {
	o.logger.Info("open path", "path", path)
	err := o.Opener.OpenPath(ctx, path)
	if err != nil {
		o.logger.Warn("open path failed", "path", path, "error", err)
	}
	return err
}
