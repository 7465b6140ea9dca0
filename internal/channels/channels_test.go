package channels

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soar/joyctrl/internal/engine"
	"github.com/soar/joyctrl/internal/gamepad"
	"github.com/soar/joyctrl/internal/ipc"
	"github.com/soar/joyctrl/internal/shell"
	"github.com/soar/joyctrl/internal/sink"
	"github.com/soar/joyctrl/internal/sink/sinktest"
	"github.com/soar/joyctrl/internal/store"
)

type replies struct {
	mu  sync.Mutex
	all []ipc.Reply
}

func (r *replies) emit(rep ipc.Reply) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, rep)
}

func (r *replies) of(id string) []ipc.Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ipc.Reply
	for _, rep := range r.all {
		if rep.StreamID == id {
			out = append(out, rep)
		}
	}
	return out
}

func (r *replies) data(id string) []string {
	var out []string
	for _, rep := range r.of(id) {
		if rep.Type == ipc.TypeData {
			out = append(out, string(rep.Payload))
		}
	}
	return out
}

type env struct {
	reg     *gamepad.Registry
	flag    *engine.ActiveFlag
	store   *store.Store
	overlay *shell.Overlay
	rec     *sinktest.Recorder
	replies *replies
	session *ipc.Session
	seq     int
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		reg:     gamepad.NewRegistry(),
		flag:    engine.NewActiveFlag(true),
		store:   store.New(filepath.Join(t.TempDir(), "rules.json"), nil),
		rec:     &sinktest.Recorder{},
		replies: &replies{},
	}
	require.NoError(t, e.store.Load())
	e.overlay = shell.NewOverlay(sink.NewSession(sink.NewSerial(e.rec)), nil)

	svc := ipc.NewService(nil)
	Register(svc, Deps{
		Flag:    e.flag,
		Devices: e.reg,
		Store:   e.store,
		Overlay: e.overlay,
		Status: func() engine.Status {
			return engine.Status{Active: e.flag.Load(), Mode: "interval"}
		},
		StatesInterval: time.Millisecond,
	})
	e.session = svc.NewSession(e.replies.emit)
	t.Cleanup(e.session.Close)
	return e
}

func (e *env) open(t *testing.T, channel string, data string) string {
	t.Helper()
	e.seq++
	id := channel + "#" + strconv.Itoa(e.seq)
	req := ipc.Request{Channel: channel, StreamID: id}
	if data != "" {
		req.Data = json.RawMessage(data)
	}
	require.NoError(t, e.session.Trigger(context.Background(), req))
	return id
}

// call runs a one-shot channel and returns its replies.
func (e *env) call(t *testing.T, channel string, data string) []ipc.Reply {
	t.Helper()
	id := e.open(t, channel, data)
	require.Eventually(t, func() bool {
		rs := e.replies.of(id)
		return len(rs) > 0 && rs[len(rs)-1].Type == ipc.TypeClose
	}, time.Second, time.Millisecond)
	return e.replies.of(id)
}

func payload(t *testing.T, rs []ipc.Reply) string {
	t.Helper()
	require.NotEmpty(t, rs)
	require.Equal(t, ipc.TypeData, rs[0].Type, "first reply: %s", rs[0].Payload)
	return string(rs[0].Payload)
}

func TestMappingActiveChannels(t *testing.T) {
	e := newEnv(t)
	watchID := e.open(t, IsMappingActive, "")
	assert.Eventually(t, func() bool { return len(e.replies.data(watchID)) == 1 }, time.Second, time.Millisecond)

	assert.Equal(t, "false", payload(t, e.call(t, ToggleMappingActive, "")))
	assert.False(t, e.flag.Load())
	assert.Equal(t, "true", payload(t, e.call(t, SetMappingActive, "true")))
	assert.True(t, e.flag.Load())

	assert.Eventually(t, func() bool {
		d := e.replies.data(watchID)
		return len(d) > 0 && d[len(d)-1] == "true"
	}, time.Second, time.Millisecond)
	assert.Equal(t, "true", e.replies.data(watchID)[0])

	rs := e.call(t, SetMappingActive, `"yes"`)
	assert.Equal(t, ipc.TypeError, rs[0].Type)
}

func TestControllersStates(t *testing.T) {
	e := newEnv(t)
	id := e.open(t, ControllersStates, `{"intervalMs": 1}`)
	assert.Eventually(t, func() bool { return len(e.replies.data(id)) == 1 }, time.Second, time.Millisecond)
	assert.JSONEq(t, `[]`, e.replies.data(id)[0])

	e.reg.Attach(7, "Pad")
	e.reg.SetButton(7, gamepad.ButtonA, true)
	assert.Eventually(t, func() bool {
		d := e.replies.data(id)
		if len(d) == 0 {
			return false
		}
		var list []gamepad.Snapshot
		if json.Unmarshal([]byte(d[len(d)-1]), &list) != nil || len(list) != 1 {
			return false
		}
		return list[0].ID == 7 && list[0].Pressed(gamepad.ButtonA)
	}, time.Second, time.Millisecond)
}

func TestConfigChannels(t *testing.T) {
	e := newEnv(t)
	id := e.open(t, GetConfig, `{"key": "deadzone"}`)
	assert.Eventually(t, func() bool { return len(e.replies.data(id)) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "0.1", e.replies.data(id)[0])

	assert.Equal(t, "0.3", payload(t, e.call(t, SetConfig, `{"key": "deadzone", "value": 0.3}`)))
	assert.Eventually(t, func() bool {
		d := e.replies.data(id)
		return d[len(d)-1] == "0.3"
	}, time.Second, time.Millisecond)

	wholeID := e.open(t, GetConfig, "")
	require.Eventually(t, func() bool { return len(e.replies.data(wholeID)) == 1 }, time.Second, time.Millisecond)
	assert.JSONEq(t, `{"mappingActiveOnBoot": true, "mappings": [], "deadzone": 0.3, "keyboardLayout": null}`, e.replies.data(wholeID)[0])

	rs := e.call(t, SetConfig, `{"key": "colour", "value": 1}`)
	assert.Equal(t, ipc.TypeError, rs[0].Type)
	assert.Contains(t, string(rs[0].Payload), "unknown config key")

	rs = e.call(t, GetConfig, `{"key": "colour"}`)
	assert.Equal(t, ipc.TypeError, rs[0].Type)

	rs = e.call(t, SetConfig, `{"key": "deadzone"}`)
	assert.Equal(t, ipc.TypeError, rs[0].Type)
}

func TestVirtualKeyboardChannels(t *testing.T) {
	e := newEnv(t)
	openID := e.open(t, IsVirtualKeyboardOpen, "")

	assert.Equal(t, "true", payload(t, e.call(t, ToggleVirtualKeyboard, "")))
	assert.Equal(t, "2", payload(t, e.call(t, PressKeys, `{"keys": ["ctrl", "a"]}`)))
	assert.Equal(t, "1", payload(t, e.call(t, PressKeys, `["{lock}"]`)))
	assert.Equal(t, "1", payload(t, e.call(t, ReleaseKeys, `["{lock}"]`)))
	assert.Equal(t, "3", payload(t, e.call(t, WriteText, `{"text": "hé"}`)), "byte length")

	assert.Equal(t, []string{
		"press(control)", "press(a)", "press(capslock)", "release(capslock)", "text(hé)",
	}, e.rec.Strings())
	e.rec.Take()

	// Closing the keyboard lets go of what it still holds and turns caps
	// lock back off.
	assert.Equal(t, "false", payload(t, e.call(t, ToggleVirtualKeyboard, "")))
	calls := e.rec.Strings()
	assert.ElementsMatch(t, []string{"release(control)", "release(a)", "press(capslock)", "release(capslock)"}, calls)
	assert.Equal(t, []string{"press(capslock)", "release(capslock)"}, calls[2:])

	assert.Eventually(t, func() bool {
		d := e.replies.data(openID)
		return len(d) > 0 && d[len(d)-1] == "false"
	}, time.Second, time.Millisecond)
}

func TestPressKeysErrors(t *testing.T) {
	e := newEnv(t)
	for _, data := range []string{`[]`, `{"keys": ["nosuchkey"]}`, `"a"`} {
		rs := e.call(t, PressKeys, data)
		assert.Equal(t, ipc.TypeError, rs[0].Type, data)
	}
	assert.Empty(t, e.rec.Calls())
}

func TestRuntimeStatus(t *testing.T) {
	e := newEnv(t)
	var st engine.Status
	require.NoError(t, json.Unmarshal([]byte(payload(t, e.call(t, RuntimeStatus, ""))), &st))
	assert.True(t, st.Active)
	assert.Equal(t, "interval", st.Mode)
}
