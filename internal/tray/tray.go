// Package tray shows the daemon in the system tray: mapping on/off, the
// on-screen keyboard, the UI and the rule file.
package tray

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"fyne.io/systray"

	"github.com/soar/joyctrl/internal/engine"
	"github.com/soar/joyctrl/internal/shell"
)

// ShutdownFunc is called when "Exit" is clicked
type ShutdownFunc func()

type Options struct {
	Flag    *engine.ActiveFlag
	Overlay *shell.Overlay
	Opener  shell.Opener
	// UIURL is opened by "Open UI".
	UIURL string
	// RulesPath is opened by "Edit rules".
	RulesPath string
	Logger    *slog.Logger
}

// Tray manages the system tray icon and menu
type Tray struct {
	opts         Options
	logger       *slog.Logger
	shutdownFunc ShutdownFunc
	once         sync.Once
	shuttingDown atomic.Bool

	menuActive   *systray.MenuItem
	menuKeyboard *systray.MenuItem
	menuOpen     *systray.MenuItem
	menuRules    *systray.MenuItem
	menuExit     *systray.MenuItem
}

func New(opts Options, shutdownFn ShutdownFunc) *Tray {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{
		opts:         opts,
		logger:       logger.With("component", "tray"),
		shutdownFunc: shutdownFn,
	}
}

// Run shows the tray and blocks until Quit or Exit. ctx bounds the goroutines
// that keep the check marks in sync.
func (t *Tray) Run(ctx context.Context) {
	systray.Run(func() {
		t.onReady(ctx)
	}, func() {
		t.shuttingDown.Store(true)
		t.logger.Info("system tray exiting")
	})
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	t.shuttingDown.Store(true)
	systray.Quit()
}

func (t *Tray) onReady(ctx context.Context) {
	systray.SetIcon(Icon())
	systray.SetTitle("joyctrl")
	systray.SetTooltip("joyctrl - " + t.opts.UIURL)

	t.menuActive = systray.AddMenuItemCheckbox("Mapping active", "Turn gamepad mapping on or off", t.opts.Flag.Load())
	t.menuKeyboard = systray.AddMenuItemCheckbox("Virtual keyboard", "Show the on-screen keyboard", t.opts.Overlay.IsOpen())
	systray.AddSeparator()
	t.menuOpen = systray.AddMenuItem("Open UI", "Open the web interface")
	t.menuRules = systray.AddMenuItem("Edit rules", t.opts.RulesPath)
	systray.AddSeparator()
	t.menuExit = systray.AddMenuItem("Exit", "Quit joyctrl")

	go follow(ctx, t.opts.Flag.Subscribe().Wait, t.menuActive)
	go follow(ctx, t.opts.Overlay.Subscribe().Wait, t.menuKeyboard)
	go t.handleMenuClicks(ctx)

	t.logger.Info("system tray initialized")
}

// follow mirrors a boolean cell onto a checkbox item.
func follow(ctx context.Context, wait func(context.Context) (bool, error), item *systray.MenuItem) {
	for {
		v, err := wait(ctx)
		if err != nil {
			return
		}
		if v {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

// handleMenuClicks processes menu item clicks without blocking
func (t *Tray) handleMenuClicks(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.menuActive.ClickedCh:
			t.logger.Info("mapping toggled from tray", "active", t.opts.Flag.Toggle())
		case <-t.menuKeyboard.ClickedCh:
			t.opts.Overlay.Toggle()
		case <-t.menuOpen.ClickedCh:
			t.open(ctx, t.opts.Opener.OpenURL, t.opts.UIURL)
		case <-t.menuRules.ClickedCh:
			t.open(ctx, t.opts.Opener.OpenPath, t.opts.RulesPath)
		case <-t.menuExit.ClickedCh:
			if t.shuttingDown.CompareAndSwap(false, true) {
				t.once.Do(t.shutdownFunc)
				systray.Quit()
				return
			}
		}
	}
}

func (t *Tray) open(ctx context.Context, fn func(context.Context, string) error, target string) {
	if t.shuttingDown.Load() || target == "" {
		return
	}
	if err := fn(ctx, target); err != nil {
		t.logger.Warn("open failed", "target", target, "error", err)
	}
}
