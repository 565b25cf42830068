package engine

import (
	"errors"
	"fmt"
)

// Departure describes what a connection left behind when it vacated a room.
type Departure struct {
	Code     string
	Slot     Slot
	Room     Room
	Promoted bool // the remaining slot became host
	Empty    bool
}

type Joined struct {
	Room     Room
	Slot     Slot
	Previous *Departure // set when the connection had to leave another room first
}

// Create makes a new room with connID as host.
func (g *Registry) Create(connID string) (Joined, error) {
	rm, err := g.CreateRoom()
	if err != nil {
		return Joined{}, err
	}
	prev := g.vacate(connID)
	slot, err := g.RegisterSlot(rm.Code, connID, true)
	if err != nil {
		return Joined{}, err
	}
	delete(g.left, connID)
	return Joined{Room: g.rooms[rm.Code].view(), Slot: slot, Previous: prev}, nil
}

func (g *Registry) Join(code, connID string) (Joined, error) {
	code = NormalizeCode(code)
	rm, ok := g.rooms[code]
	if !ok {
		return Joined{}, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	return g.join(rm, connID)
}

// JoinDefault joins the shared DEFAULT room, creating it when missing.
func (g *Registry) JoinDefault(connID string) (Joined, error) {
	g.EnsureRoom(DefaultRoomCode)
	return g.join(g.rooms[DefaultRoomCode], connID)
}

func (g *Registry) join(rm *room, connID string) (Joined, error) {
	if s, ok := rm.slots[connID]; ok {
		return Joined{Room: rm.view(), Slot: *s}, nil
	}
	if len(rm.slots) >= MaxSlots {
		return Joined{}, ErrRoomFull
	}
	prev := g.vacate(connID)
	slot, err := g.RegisterSlot(rm.code, connID, rm.hostSlot() == nil)
	if err != nil {
		return Joined{}, err
	}
	delete(g.left, connID)
	return Joined{Room: rm.view(), Slot: slot, Previous: prev}, nil
}

func (g *Registry) SetReady(connID string, ready bool) (Room, error) {
	rm := g.roomOf(connID)
	if rm == nil {
		return Room{}, ErrNotInRoom
	}
	rm.slots[connID].Ready = ready
	switch {
	case rm.state == RoomWaiting && len(rm.slots) == MaxSlots && rm.allReady():
		rm.state = RoomActive
	case rm.state == RoomActive && !ready:
		rm.state = RoomWaiting
	}
	return rm.view(), nil
}

// Reset restores every slot to full health and puts the room back in waiting.
func (g *Registry) Reset(connID string) (Room, error) {
	rm := g.roomOf(connID)
	if rm == nil {
		return Room{}, ErrNotInRoom
	}
	for _, s := range rm.slots {
		s.Health = FullHealth
		s.Ready = false
	}
	rm.state = RoomWaiting
	return rm.view(), nil
}

// Leave removes connID from its room for good. Until it creates or joins a
// room again, reconciliation will not put it back anywhere.
func (g *Registry) Leave(connID string) (Departure, error) {
	delete(g.ledger, connID)
	d := g.vacate(connID)
	if d == nil {
		return Departure{}, ErrNotInRoom
	}
	g.left[connID] = struct{}{}
	return *d, nil
}

func (g *Registry) vacate(connID string) *Departure {
	rm := g.roomOf(connID)
	if rm == nil {
		return nil
	}
	s := *rm.slots[connID]
	g.RemoveSlot(rm.code, connID)
	if rm.state == RoomActive {
		rm.state = RoomWaiting
	}
	promoted := g.settleHost(rm)
	return &Departure{
		Code:     rm.code,
		Slot:     s,
		Room:     rm.view(),
		Promoted: promoted,
		Empty:    len(rm.slots) == 0,
	}
}

// IsSoft reports whether err is a reconciliation outcome rather than a failure.
func IsSoft(err error) bool {
	return errors.Is(err, ErrNoMatch) ||
		errors.Is(err, ErrReconciliationAmbiguous) ||
		errors.Is(err, ErrAlreadyBound) ||
		errors.Is(err, ErrDeparted)
}
