// Package scheduler keeps keyed, cancellable deferred timers for the hub.
//
// A Scheduler is owned by a single goroutine. Timer callbacks never touch its
// state; they only post a Fired value back to the owner, which calls Claim to
// find out whether the fire is still current.
package scheduler

import "time"

type Kind string

const (
	KindGrace   Kind = "grace"
	KindCleanup Kind = "cleanup"
)

type Key struct {
	Kind Kind
	ID   string
}

func (k Key) String() string { return string(k.Kind) + ":" + k.ID }

func GraceKey(connID string) Key { return Key{Kind: KindGrace, ID: connID} }
func CleanupKey(code string) Key { return Key{Kind: KindCleanup, ID: code} }

type Fired struct {
	Key Key
	Gen uint64
}

type Stopper interface {
	Stop() bool
}

// AfterFunc matches time.AfterFunc so tests can swap in a manual clock.
type AfterFunc func(d time.Duration, f func()) Stopper

func RealAfterFunc(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }

type entry struct {
	gen   uint64
	timer Stopper
}

type Scheduler struct {
	post    func(Fired)
	after   AfterFunc
	gen     uint64
	pending map[Key]entry
}

func New(post func(Fired), after AfterFunc) *Scheduler {
	if after == nil {
		after = RealAfterFunc
	}
	return &Scheduler{
		post:    post,
		after:   after,
		pending: make(map[Key]entry),
	}
}

// Schedule arms key to fire after d, replacing any timer already pending
// under the same key.
func (s *Scheduler) Schedule(key Key, d time.Duration) {
	s.Cancel(key)
	s.gen++
	f := Fired{Key: key, Gen: s.gen}
	s.pending[key] = entry{
		gen:   f.Gen,
		timer: s.after(d, func() { s.post(f) }),
	}
}

func (s *Scheduler) Cancel(key Key) bool {
	e, ok := s.pending[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.pending, key)
	return true
}

// Claim reports whether f is the live fire for its key and, if so, forgets
// the key. Fires from replaced or cancelled timers return false.
func (s *Scheduler) Claim(f Fired) bool {
	e, ok := s.pending[f.Key]
	if !ok || e.gen != f.Gen {
		return false
	}
	delete(s.pending, f.Key)
	return true
}

func (s *Scheduler) Len() int { return len(s.pending) }

func (s *Scheduler) StopAll() {
	for k, e := range s.pending {
		e.timer.Stop()
		delete(s.pending, k)
	}
}
