package engine

import (
	"fmt"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func seqCodes(codes ...string) CodeFunc {
	i := 0
	return func() (string, error) {
		if i >= len(codes) {
			return "", fmt.Errorf("out of codes")
		}
		c := codes[i]
		i++
		return c, nil
	}
}

func newTestRegistry(codes ...string) (*Registry, *fakeClock) {
	clk := &fakeClock{t: fakeNow}
	n := 0
	reg := NewRegistry(Options{
		Codes: seqCodes(codes...),
		Now:   clk.Now,
		NewToken: func() string {
			n++
			return fmt.Sprintf("tok-%d", n)
		},
	})
	return reg, clk
}

// duel sets up a two-slot room with host "h" and guest "g".
func duel() (*Registry, *fakeClock, string) {
	reg, clk := newTestRegistry("ROOM01", "ROOM02", "ROOM03")
	j, err := reg.Create("h")
	if err != nil {
		panic(err)
	}
	if _, err := reg.Join(j.Room.Code, "g"); err != nil {
		panic(err)
	}
	return reg, clk, j.Room.Code
}

func hint(b bool) *bool { return &b }

type fakeMembership struct {
	groups map[string][]string // conn -> groups
}

func (f fakeMembership) InGroup(group, connID string) bool {
	for _, g := range f.groups[connID] {
		if g == group {
			return true
		}
	}
	return false
}

func (f fakeMembership) GroupsOf(connID string) []string { return f.groups[connID] }

var fakeNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
