package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isPending(s *Scheduler, key Key) bool {
	_, ok := s.pending[key]
	return ok
}

type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (m *manualTimer) Stop() bool {
	was := !m.stopped
	m.stopped = true
	return was
}

type manualClock struct{ timers []*manualTimer }

func (c *manualClock) AfterFunc(d time.Duration, f func()) Stopper {
	t := &manualTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fireAll runs every timer callback, stopped ones included, to mimic a Stop
// that lost the race with the fire.
func (c *manualClock) fireAll() {
	for _, t := range c.timers {
		t.f()
	}
}

func TestSchedule_FireIsClaimedOnce(t *testing.T) {
	clk := &manualClock{}
	var got []Fired
	s := New(func(f Fired) { got = append(got, f) }, clk.AfterFunc)

	s.Schedule(CleanupKey("ROOM01"), time.Second)
	require.True(t, isPending(s, CleanupKey("ROOM01")))
	assert.Equal(t, time.Second, clk.timers[0].d)

	clk.fireAll()
	require.Len(t, got, 1)
	assert.True(t, s.Claim(got[0]))
	assert.False(t, s.Claim(got[0]))
	assert.Zero(t, s.Len())
}

func TestSchedule_ReplacesPendingTimer(t *testing.T) {
	clk := &manualClock{}
	var got []Fired
	s := New(func(f Fired) { got = append(got, f) }, clk.AfterFunc)

	key := GraceKey("conn-1")
	s.Schedule(key, time.Minute)
	s.Schedule(key, 2*time.Minute)

	require.Len(t, clk.timers, 2)
	assert.True(t, clk.timers[0].stopped)
	assert.Equal(t, 1, s.Len())

	clk.fireAll()
	require.Len(t, got, 2)
	assert.False(t, s.Claim(got[0]), "stale generation")
	assert.True(t, s.Claim(got[1]))
}

func TestCancel(t *testing.T) {
	clk := &manualClock{}
	var got []Fired
	s := New(func(f Fired) { got = append(got, f) }, clk.AfterFunc)

	key := GraceKey("conn-1")
	s.Schedule(key, time.Minute)
	assert.True(t, s.Cancel(key))
	assert.False(t, s.Cancel(key))

	clk.fireAll()
	require.Len(t, got, 1)
	assert.False(t, s.Claim(got[0]))
}

func TestKeysAreIndependent(t *testing.T) {
	clk := &manualClock{}
	s := New(func(Fired) {}, clk.AfterFunc)

	s.Schedule(CleanupKey("ROOM01"), time.Second)
	s.Schedule(CleanupKey("ROOM02"), time.Second)
	s.Schedule(GraceKey("ROOM01"), time.Second)
	assert.Equal(t, 3, s.Len())

	s.Cancel(CleanupKey("ROOM02"))
	assert.True(t, isPending(s, CleanupKey("ROOM01")))
	assert.True(t, isPending(s, GraceKey("ROOM01")))

	s.StopAll()
	assert.Zero(t, s.Len())
	for _, tm := range clk.timers {
		assert.True(t, tm.stopped)
	}
}

func TestRealAfterFunc(t *testing.T) {
	done := make(chan Fired, 1)
	s := New(func(f Fired) { done <- f }, nil)
	s.Schedule(CleanupKey("X"), time.Millisecond)

	select {
	case f := <-done:
		assert.Equal(t, "cleanup:X", f.Key.String())
		assert.True(t, s.Claim(f))
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}
