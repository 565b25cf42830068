package engine

import "time"

type CleanupDecision struct {
	Code     string
	Deleted  bool
	Missing  bool // room was already gone
	Occupied int
	Pending  int
	RetryIn  time.Duration // >0 when only the minimum age held the room back
}

// Cleanup deletes code if it is empty, has no pending reconnects and is old
// enough.
func (g *Registry) Cleanup(code string) CleanupDecision {
	d := CleanupDecision{Code: code}
	rm, ok := g.rooms[code]
	if !ok {
		d.Missing = true
		return d
	}
	d.Occupied = len(rm.slots)
	d.Pending = len(g.Pending(code))
	if d.Occupied > 0 || d.Pending > 0 {
		return d
	}
	if age := g.now().Sub(rm.createdAt); age < g.minAge {
		d.RetryIn = g.minAge - age
		return d
	}
	g.DeleteRoom(code)
	d.Deleted = true
	return d
}
