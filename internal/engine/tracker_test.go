package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soar/joyctrl/internal/mapping"
)

func TestTracker_Transitions(t *testing.T) {
	tr := NewTracker()
	k := Key{Device: 1, Rule: "r"}
	a := mapping.PressKeys{Keys: []string{"a"}}
	now := time.Unix(100, 0)

	steps := []struct {
		satisfied bool
		want      State
	}{
		{false, Idle},
		{true, JustPressed},
		{true, Active},
		{true, Active},
		{false, AutoReset},
		{false, Idle},
		{true, JustPressed},
	}
	for i, s := range steps {
		got, _ := tr.Advance(k, s.satisfied, a, now)
		assert.Equal(t, s.want, got, "step %d", i)
	}
}

func TestTracker_RecordLifetime(t *testing.T) {
	tr := NewTracker()
	k := Key{Device: 2, Rule: "move"}
	a := mapping.MouseMoveStick{}
	now := time.Unix(5, 0)

	_, rec := tr.Advance(k, true, a, now)
	require.NotNil(t, rec)
	assert.Equal(t, now, rec.ActiveSince)
	assert.True(t, rec.Continuous)
	assert.True(t, tr.AnyContinuous())

	_, again := tr.Advance(k, true, a, now.Add(time.Second))
	assert.Same(t, rec, again)
	assert.Equal(t, now, again.ActiveSince)

	state, last := tr.Advance(k, false, a, now.Add(2*time.Second))
	assert.Equal(t, AutoReset, state)
	assert.Same(t, rec, last)
	assert.Zero(t, tr.Len())
	assert.False(t, tr.AnyContinuous())
}

func TestTracker_KeysSorted(t *testing.T) {
	tr := NewTracker()
	a := mapping.PressKeys{Keys: []string{"a"}}
	for _, k := range []Key{{2, "b"}, {1, "z"}, {2, "a"}, {1, "a"}} {
		tr.Advance(k, true, a, time.Time{})
	}
	assert.Equal(t, []Key{{1, "a"}, {1, "z"}, {2, "a"}, {2, "b"}}, tr.Keys())

	rec, ok := tr.Remove(Key{1, "z"})
	assert.True(t, ok)
	assert.NotNil(t, rec)
	_, ok = tr.Remove(Key{1, "z"})
	assert.False(t, ok)
	assert.Equal(t, 3, tr.Len())
}

func TestTracker_DormantRecordIsNotContinuous(t *testing.T) {
	tr := NewTracker()
	k := Key{Device: 1, Rule: "r"}
	_, rec := tr.Advance(k, true, mapping.ScrollStick{}, time.Time{})
	rec.Action = nil
	assert.False(t, tr.AnyContinuous())
}

func TestKey_String(t *testing.T) {
	assert.Equal(t, "3/open-browser", Key{Device: 3, Rule: "open-browser"}.String())
	assert.Equal(t, "justPressed", JustPressed.String())
}

func TestActiveFlag(t *testing.T) {
	f := NewActiveFlag(false)
	sub := f.Subscribe()

	assert.False(t, f.Set(false))
	assert.False(t, sub.HasChanged())

	assert.True(t, f.Set(true))
	assert.True(t, sub.HasChanged())
	assert.True(t, sub.Borrow())

	assert.False(t, f.Toggle())
	assert.False(t, f.Load())
}
