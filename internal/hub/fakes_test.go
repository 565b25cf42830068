package hub

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/ar-duel-backend/internal/engine"
	"github.com/DoyleJ11/ar-duel-backend/internal/scheduler"
	"github.com/DoyleJ11/ar-duel-backend/internal/store"
	"github.com/DoyleJ11/ar-duel-backend/internal/types"
)

type fakeTransport struct {
	mu     sync.Mutex
	inbox  map[string][]types.ServerMessage
	groups map[string]map[string]bool
	closed []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbox:  make(map[string][]types.ServerMessage),
		groups: make(map[string]map[string]bool),
	}
}

func (f *fakeTransport) Send(connID string, msg types.ServerMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbox[connID] = append(f.inbox[connID], msg)
}

func (f *fakeTransport) Broadcast(group string, msg types.ServerMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range f.groups[group] {
		f.inbox[id] = append(f.inbox[id], msg)
	}
}

func (f *fakeTransport) Join(group, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.groups[group] == nil {
		f.groups[group] = make(map[string]bool)
	}
	f.groups[group][connID] = true
}

func (f *fakeTransport) Leave(group, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.groups[group], connID)
}

func (f *fakeTransport) Close(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, connID)
}

func (f *fakeTransport) InGroup(group, connID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groups[group][connID]
}

func (f *fakeTransport) GroupsOf(connID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for g, members := range f.groups {
		if members[connID] {
			out = append(out, g)
		}
	}
	return out
}

// drain returns and forgets everything sent to connID so far.
func (f *fakeTransport) drain(connID string) []types.ServerMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.inbox[connID]
	delete(f.inbox, connID)
	return out
}

func (f *fakeTransport) wasClosed(connID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.closed, connID)
}

type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) scheduler.Stopper {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{d: d, f: f}
	m.timers = append(m.timers, t)
	return stopper{m: m, t: t}
}

type stopper struct {
	m *manualTimers
	t *manualTimer
}

func (s stopper) Stop() bool {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	was := !s.t.stopped
	s.t.stopped = true
	return was
}

// fire runs the newest live timer armed for d.
func (m *manualTimers) fire(t *testing.T, d time.Duration) {
	t.Helper()
	m.mu.Lock()
	var found *manualTimer
	for i := len(m.timers) - 1; i >= 0; i-- {
		if tm := m.timers[i]; tm.d == d && !tm.stopped {
			found = tm
			break
		}
	}
	if found != nil {
		found.stopped = true
	}
	m.mu.Unlock()
	require.NotNil(t, found, "no live timer for %s", d)
	found.f()
}

func (m *manualTimers) live(d time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, tm := range m.timers {
		if tm.d == d && !tm.stopped {
			n++
		}
	}
	return n
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeMatches struct {
	mu      sync.Mutex
	matches []store.Match
}

func (f *fakeMatches) RecordMatch(m store.Match) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches = append(f.matches, m)
}

func (f *fakeMatches) all() []store.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.matches)
}

const (
	testGrace   = 5 * time.Minute
	testCleanup = 10 * time.Second
	testLeave   = time.Second
	testMinAge  = 2 * time.Minute
)

type harness struct {
	hub     *Hub
	tr      *fakeTransport
	timers  *manualTimers
	clock   *clock
	matches *fakeMatches
}

func newHarness(t *testing.T, codes ...string) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hs := &harness{
		tr:      newFakeTransport(),
		timers:  &manualTimers{},
		clock:   &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		matches: &fakeMatches{},
	}
	next := 0
	tokens := 0
	hs.hub = NewHub(ctx, Options{
		Transport:         hs.tr,
		Logger:            zap.NewNop(),
		Matches:           hs.matches,
		Grace:             testGrace,
		DisconnectCleanup: testCleanup,
		LeaveCleanup:      testLeave,
		MinRoomAge:        testMinAge,
		Codes: engine.CodeFunc(func() (string, error) {
			if next >= len(codes) {
				return "", fmt.Errorf("out of codes")
			}
			next++
			return codes[next-1], nil
		}),
		Now: hs.clock.Now,
		NewToken: func() string {
			tokens++
			return fmt.Sprintf("tok-%d", tokens)
		},
		AfterFunc: hs.timers.AfterFunc,
	})
	return hs
}

// room round-trips through the inbox, so everything posted before it has
// been handled when it returns.
func (hs *harness) room(t *testing.T, code string) *engine.Room {
	t.Helper()
	reply := make(chan *engine.Room, 1)
	require.True(t, hs.hub.Post(lookupRoom{Code: code, Reply: reply}))
	select {
	case rm := <-reply:
		return rm
	case <-time.After(time.Second):
		t.Fatal("hub did not reply")
		return nil
	}
}

func (hs *harness) connect(t *testing.T, id string) {
	t.Helper()
	require.True(t, hs.hub.Post(Connect{ConnID: id}))
}

func (hs *harness) send(t *testing.T, id, typ string, data any) {
	t.Helper()
	var raw []byte
	if data != nil {
		raw = mustJSON(t, data)
	}
	require.True(t, hs.hub.Post(Inbound{ConnID: id, Msg: types.ClientMessage{Type: typ, Data: raw}}))
}

func ofType(msgs []types.ServerMessage, typ string) []types.ServerMessage {
	var out []types.ServerMessage
	for _, m := range msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func lastOfType(t *testing.T, msgs []types.ServerMessage, typ string) types.ServerMessage {
	t.Helper()
	got := ofType(msgs, typ)
	require.NotEmpty(t, got, "no %q message", typ)
	return got[len(got)-1]
}
