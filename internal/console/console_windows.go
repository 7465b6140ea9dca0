//go:build windows

// Package console installs a Ctrl+C handler that keeps working while SDL owns
// the main thread.
package console

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/windows"
)

var (
	kernel32                  = windows.NewLazySystemDLL("kernel32.dll")
	procSetConsoleCtrlHandler = kernel32.NewProc("SetConsoleCtrlHandler")
)

const (
	ctrlCEvent     = 0
	ctrlBreakEvent = 1
	ctrlCloseEvent = 2
)

var (
	callbackOnce sync.Once
	callback     uintptr
	fired        atomic.Bool
	onInterrupt  atomic.Pointer[func()]
)

// HandleInterrupt calls fn once on Ctrl+C, Ctrl+Break or when the console
// window is closed. SDL replaces console handlers during init, so the
// returned function installs the handler again.
func HandleInterrupt(fn func(), logger *slog.Logger) func() {
	if logger == nil {
		logger = slog.Default()
	}
	onInterrupt.Store(&fn)
	callbackOnce.Do(func() {
		callback = windows.NewCallback(handleCtrl)
	})
	register := func() {
		ret, _, err := procSetConsoleCtrlHandler.Call(callback, 1)
		if ret == 0 {
			logger.Warn("console control handler not installed", "component", "console", "error", err)
		}
	}
	register()
	return register
}

func handleCtrl(ctrlType uint32) uintptr {
	switch ctrlType {
	case ctrlCEvent, ctrlBreakEvent, ctrlCloseEvent:
		if fired.CompareAndSwap(false, true) {
			if fn := onInterrupt.Load(); fn != nil {
				(*fn)()
			}
		}
		return 1
	}
	return 0
}
