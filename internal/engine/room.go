package engine

import (
	"slices"
	"strings"
	"time"
)

type RoomState string

const (
	RoomWaiting RoomState = "waiting"
	RoomActive  RoomState = "active"
	RoomEnded   RoomState = "ended"
)

const (
	MaxSlots        = 2
	FullHealth      = 100
	DefaultRoomCode = "DEFAULT"
)

// Slot is a participant's identity inside a room. ID is whichever connection
// currently owns it; everything else survives reconnection.
type Slot struct {
	ID     string `json:"id"`
	IsHost bool   `json:"isHost"`
	Health int    `json:"health"`
	Ready  bool   `json:"ready"`
	Token  string `json:"-"`
}

// Room is a copy of a live room, safe to hand outside the registry.
type Room struct {
	Code      string
	State     RoomState
	CreatedAt time.Time
	Slots     []Slot // host first
	PeakSlots int
}

func (r Room) SlotFor(connID string) (Slot, bool) {
	for _, s := range r.Slots {
		if s.ID == connID {
			return s, true
		}
	}
	return Slot{}, false
}

func (r Room) Host() (Slot, bool) {
	for _, s := range r.Slots {
		if s.IsHost {
			return s, true
		}
	}
	return Slot{}, false
}

type SlotSummary struct {
	ID     string `json:"id"`
	IsHost bool   `json:"isHost"`
	Ready  bool   `json:"ready"`
}

type RoomSummary struct {
	Code              string        `json:"code"`
	State             RoomState     `json:"state"`
	PlayerCount       int           `json:"playerCount"`
	PendingReconnects int           `json:"pendingReconnects"`
	CreatedAt         time.Time     `json:"createdAt"`
	Players           []SlotSummary `json:"players"`
}

type room struct {
	code      string
	state     RoomState
	createdAt time.Time
	slots     map[string]*Slot
	peak      int
}

func newRoom(code string, now time.Time) *room {
	return &room{
		code:      code,
		state:     RoomWaiting,
		createdAt: now,
		slots:     make(map[string]*Slot, MaxSlots),
	}
}

func (r *room) put(s *Slot) {
	r.slots[s.ID] = s
	if len(r.slots) > r.peak {
		r.peak = len(r.slots)
	}
}

func (r *room) hostSlot() *Slot {
	for _, s := range r.slots {
		if s.IsHost {
			return s
		}
	}
	return nil
}

func (r *room) hasRole(isHost bool) bool {
	for _, s := range r.slots {
		if s.IsHost == isHost {
			return true
		}
	}
	return false
}

func (r *room) allReady() bool {
	for _, s := range r.slots {
		if !s.Ready {
			return false
		}
	}
	return len(r.slots) > 0
}

func (r *room) snapshot() []Slot {
	out := make([]Slot, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b Slot) int {
		if a.IsHost != b.IsHost {
			if a.IsHost {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (r *room) view() Room {
	return Room{
		Code:      r.code,
		State:     r.state,
		CreatedAt: r.createdAt,
		Slots:     r.snapshot(),
		PeakSlots: r.peak,
	}
}

func (r *room) summary(pending int) RoomSummary {
	players := make([]SlotSummary, 0, len(r.slots))
	for _, s := range r.snapshot() {
		players = append(players, SlotSummary{ID: ShortID(s.ID), IsHost: s.IsHost, Ready: s.Ready})
	}
	return RoomSummary{
		Code:              r.code,
		State:             r.state,
		PlayerCount:       len(r.slots),
		PendingReconnects: pending,
		CreatedAt:         r.createdAt,
		Players:           players,
	}
}

// ShortID redacts a connection id for public listings.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
