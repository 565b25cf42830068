package engine

import "time"

// DisconnectedRecord keeps a departed slot restorable for the grace window.
type DisconnectedRecord struct {
	ConnID         string
	RoomCode       string
	Slot           Slot
	DisconnectedAt time.Time
}

type Disconnection struct {
	Record DisconnectedRecord
	Room   Room
}

type Expiry struct {
	Record   DisconnectedRecord
	Room     *Room // nil when the room is already gone
	Promoted bool
}

// Disconnect moves connID's slot into the ledger. Connections with no room
// report false.
func (g *Registry) Disconnect(connID string) (Disconnection, bool) {
	delete(g.left, connID)
	rm := g.roomOf(connID)
	if rm == nil {
		return Disconnection{}, false
	}
	rec := DisconnectedRecord{
		ConnID:         connID,
		RoomCode:       rm.code,
		Slot:           *rm.slots[connID],
		DisconnectedAt: g.now(),
	}
	g.RemoveSlot(rm.code, connID)
	if rm.state == RoomActive {
		rm.state = RoomWaiting
	}
	g.ledger[connID] = rec
	return Disconnection{Record: rec, Room: rm.view()}, true
}

// ExpireRecord drops the ledger entry for connID once its grace ran out.
func (g *Registry) ExpireRecord(connID string) (Expiry, bool) {
	rec, ok := g.ledger[connID]
	if !ok {
		return Expiry{}, false
	}
	delete(g.ledger, connID)
	exp := Expiry{Record: rec}
	if rm, ok := g.rooms[rec.RoomCode]; ok {
		exp.Promoted = g.settleHost(rm)
		v := rm.view()
		exp.Room = &v
	}
	return exp, true
}

// Pending lists ledger records for a room, in-grace or not.
func (g *Registry) Pending(code string) []DisconnectedRecord {
	var out []DisconnectedRecord
	for _, rec := range g.ledger {
		if rec.RoomCode == code {
			out = append(out, rec)
		}
	}
	return out
}

func (g *Registry) withinGrace(rec DisconnectedRecord) bool {
	return g.now().Sub(rec.DisconnectedAt) <= g.grace
}

func (g *Registry) pendingRole(code string, isHost bool) int {
	n := 0
	for _, rec := range g.ledger {
		if rec.RoomCode == code && rec.Slot.IsHost == isHost && g.withinGrace(rec) {
			n++
		}
	}
	return n
}

// settleHost promotes a remaining slot when the room has nobody holding or
// awaiting the host role.
func (g *Registry) settleHost(rm *room) bool {
	if len(rm.slots) == 0 || rm.hostSlot() != nil || g.pendingRole(rm.code, true) > 0 {
		return false
	}
	first := rm.snapshot()[0]
	rm.slots[first.ID].IsHost = true
	return true
}
