package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soar/joyctrl/internal/channels"
	"github.com/soar/joyctrl/internal/engine"
	"github.com/soar/joyctrl/internal/gamepad"
	"github.com/soar/joyctrl/internal/hub"
	"github.com/soar/joyctrl/internal/ipc"
	"github.com/soar/joyctrl/internal/server"
	"github.com/soar/joyctrl/internal/shell"
	"github.com/soar/joyctrl/internal/sink"
	"github.com/soar/joyctrl/internal/sink/sinktest"
	"github.com/soar/joyctrl/internal/store"
)

type daemon struct {
	addr string
	flag *engine.ActiveFlag
	rec  *sinktest.Recorder
}

func startDaemon(t *testing.T) *daemon {
	t.Helper()
	d := &daemon{flag: engine.NewActiveFlag(true), rec: &sinktest.Recorder{}}

	rules := store.New(filepath.Join(t.TempDir(), "rules.yaml"), nil)
	require.NoError(t, rules.Load())
	overlay := shell.NewOverlay(sink.NewSession(sink.NewSerial(d.rec)), nil)

	svc := ipc.NewService(nil)
	channels.Register(svc, channels.Deps{
		Flag:    d.flag,
		Devices: gamepad.NewRegistry(),
		Store:   rules,
		Overlay: overlay,
		Status: func() engine.Status {
			return engine.Status{Active: d.flag.Load(), Mode: "event", Held: []string{}}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(svc, nil)
	go h.Run(ctx)
	srv, err := server.New(h, fstest.MapFS{}, "127.0.0.1:0", nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler(ctx))
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	d.addr = "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	return d
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (d *daemon) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr syncBuffer
	code := run(context.Background(), append([]string{"--addr", d.addr}, args...), &stdout, &stderr)
	return code, strings.TrimSpace(stdout.String()), stderr.String()
}

func TestMappingCommands(t *testing.T) {
	d := startDaemon(t)

	code, out, _ := d.run(t, "toggle")
	assert.Equal(t, 0, code)
	assert.Equal(t, "false", out)
	assert.False(t, d.flag.Load())

	code, out, _ = d.run(t, "on")
	assert.Equal(t, 0, code)
	assert.Equal(t, "true", out)
	assert.True(t, d.flag.Load())

	code, out, _ = d.run(t, "status")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, `"active": true`)
	assert.Contains(t, out, `"mode": "event"`)
}

func TestConfigCommands(t *testing.T) {
	d := startDaemon(t)

	code, out, _ := d.run(t, "get", "deadzone")
	assert.Equal(t, 0, code)
	assert.Equal(t, "0.1", out)

	code, out, _ = d.run(t, "set", "deadzone", "0.25")
	assert.Equal(t, 0, code)
	assert.Equal(t, "0.25", out)

	code, out, _ = d.run(t, "get")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, `"deadzone": 0.25`)

	code, _, errOut := d.run(t, "set", "deadzone", `"wide"`)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "set-config")

	code, _, errOut = d.run(t, "set", "deadzone", "not json")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not JSON")
}

func TestKeyboardCommands(t *testing.T) {
	d := startDaemon(t)

	code, _, _ := d.run(t, "press", "ctrl", "a")
	require.Equal(t, 0, code)
	code, _, _ = d.run(t, "type", "hello", "world")
	require.Equal(t, 0, code)

	assert.Equal(t, []string{
		"press(control)", "press(a)", "release(a)", "release(control)", "text(hello world)",
	}, d.rec.Strings())

	code, out, _ := d.run(t, "keyboard")
	assert.Equal(t, 0, code)
	assert.Equal(t, "true", out)
}

func TestWatch(t *testing.T) {
	d := startDaemon(t)

	var stdout, stderr syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		done <- run(ctx, []string{"--addr", d.addr, "watch", channels.IsMappingActive}, &stdout, &stderr)
	}()

	assert.Eventually(t, func() bool { return stdout.String() == "true\n" }, 2*time.Second, time.Millisecond)
	d.flag.Set(false)
	assert.Eventually(t, func() bool { return stdout.String() == "true\nfalse\n" }, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestUsageErrors(t *testing.T) {
	d := startDaemon(t)

	code, _, errOut := d.run(t, "dance")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "dance"`)
	assert.Contains(t, errOut, "usage: joyctl")

	code, _, _ = d.run(t, "press")
	assert.Equal(t, 2, code)

	var stdout, stderr syncBuffer
	assert.Equal(t, 2, run(context.Background(), nil, &stdout, &stderr))
}

func TestUnreachableDaemon(t *testing.T) {
	var stdout, stderr syncBuffer
	code := run(context.Background(), []string{"--addr", "ws://127.0.0.1:1/ws", "status"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "connect")
}
