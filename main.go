package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/soar/joyctrl/internal/channels"
	"github.com/soar/joyctrl/internal/config"
	"github.com/soar/joyctrl/internal/console"
	"github.com/soar/joyctrl/internal/engine"
	"github.com/soar/joyctrl/internal/gamepad"
	"github.com/soar/joyctrl/internal/hub"
	"github.com/soar/joyctrl/internal/ipc"
	"github.com/soar/joyctrl/internal/logging"
	"github.com/soar/joyctrl/internal/server"
	"github.com/soar/joyctrl/internal/shell"
	"github.com/soar/joyctrl/internal/sink"
	"github.com/soar/joyctrl/internal/store"
	"github.com/soar/joyctrl/internal/tray"
)

// Cross-platform signal handling: os.Interrupt is Ctrl+C everywhere.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	settings, err := config.Load(args)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "joyctrl:", err)
		return 2
	}

	logger, closeLog, err := logging.New(logging.Config{
		Level:  settings.LogLevel,
		Format: settings.LogFormat,
		Output: settings.LogOutput,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "joyctrl:", err)
		return 2
	}
	defer closeLog()
	slog.SetDefault(logger)
	if settings.ConfigFile != "" {
		logger.Info("settings loaded", "file", settings.ConfigFile)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Shutdown requests from every source end up here.
	stop := make(chan string, 4)
	requestStop := func(reason string) {
		select {
		case stop <- reason:
		default:
		}
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)
	defer signal.Stop(sigCh)
	reregisterConsole := console.HandleInterrupt(func() { requestStop("console interrupt") }, logger)

	out, closeSink, err := openSink(settings, logger)
	if err != nil {
		logger.Error("cannot create input sink", "sink", settings.Sink, "error", err)
		return 1
	}
	defer closeSink()
	serial := sink.NewSerial(out)

	rules := store.New(settings.Rules, logger)
	if err := rules.Load(); err != nil {
		logger.Error("cannot load rules", "path", settings.Rules, "error", err)
		return 1
	}
	if err := rules.Watch(ctx); err != nil {
		logger.Warn("rules hot reload disabled", "path", settings.Rules, "error", err)
	}
	flag := engine.NewActiveFlag(rules.Get().MappingActiveOnBoot)

	registry := gamepad.NewRegistry()
	reader, err := openCapture(settings, registry, logger)
	if err != nil {
		logger.Error("cannot start gamepad capture", "backend", settings.Capture, "error", err)
		return 1
	}
	ready := make(chan struct{})
	captureDone := make(chan error, 1)
	go func(done chan<- error) {
		done <- reader.Run(ctx, func() { close(ready) })
	}(captureDone)
	select {
	case <-ready:
		// SDL init replaces console handlers.
		reregisterConsole()
	case err := <-captureDone:
		if err == nil {
			err = errors.New("capture stopped during startup")
		}
		logger.Error("cannot start gamepad capture", "backend", settings.Capture, "error", err)
		return 1
	}

	overlay := shell.NewOverlay(sink.NewSession(serial), logger)
	opener := shell.WithLogging(shell.NewOpener(), logger)
	exec := engine.NewExecutor(serial, flag, engine.ExecutorOptions{
		Overlay:       overlay,
		Opener:        opener,
		Display:       shell.StaticDisplay{Width: settings.ScreenWidth, Height: settings.ScreenHeight},
		AbsoluteScale: settings.AbsoluteScale,
		Logger:        logger,
	})
	rt := engine.NewRuntime(registry, rules, flag, exec, engine.Options{
		Mode:     settings.TickMode,
		Tick:     settings.Tick,
		MaxDelta: settings.MaxDelta,
		Logger:   logger,
	})
	runtimeDone := make(chan struct{})
	go func() {
		defer close(runtimeDone)
		if err := rt.Run(ctx); err != nil {
			logger.Error("mapping runtime failed", "error", err)
		}
	}()

	svc := ipc.NewService(logger)
	channels.Register(svc, channels.Deps{
		Flag:    flag,
		Devices: registry,
		Store:   rules,
		Overlay: overlay,
		Status:  rt.Status,
	})
	h := hub.NewHub(svc, logger)
	go h.Run(ctx)

	srv, err := server.New(h, getFrontendFS(), settings.Listen, logger)
	if err != nil {
		logger.Error("cannot load UI", "error", err)
		cancel()
		<-runtimeDone
		return 1
	}
	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()
	url := uiURL(settings.Listen)
	logger.Info("joyctrl started", "ui", url, "rules", settings.Rules, "active", flag.Load())

	var t *tray.Tray
	if settings.Tray {
		t = tray.New(tray.Options{
			Flag:      flag,
			Overlay:   overlay,
			Opener:    opener,
			UIURL:     url,
			RulesPath: settings.Rules,
			Logger:    logger,
		}, func() { requestStop("tray exit") })
		go t.Run(ctx)
	}

	// Wait for shutdown signal, tray request, or server error
	var exitCode int
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case reason := <-stop:
		logger.Info("shutting down", "reason", reason)
	case err := <-serverErrCh:
		logger.Error("HTTP server error", "error", err)
		exitCode = 1
	case err := <-captureDone:
		logger.Error("gamepad capture stopped", "error", err)
		exitCode = 1
		captureDone = nil
	}
	cancel()

	// The runtime releases everything it holds before returning.
	<-runtimeDone
	if captureDone != nil {
		select {
		case <-captureDone:
		case <-time.After(shutdownTimeout):
			logger.Warn("gamepad capture did not stop in time")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", "error", err)
	}
	if t != nil {
		t.Quit()
	}

	logger.Info("joyctrl stopped")
	return exitCode
}

func openSink(s config.Settings, logger *slog.Logger) (sink.Sink, func() error, error) {
	if s.Sink == "log" {
		return sink.NewLog(logger), func() error { return nil }, nil
	}
	u, err := sink.NewUInput(s.UInputPath, "joyctrl", s.ScreenWidth, s.ScreenHeight)
	if err != nil {
		return nil, nil, err
	}
	return u, u.Close, nil
}

// uiURL is the address a browser on this machine reaches the UI at.
func uiURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
