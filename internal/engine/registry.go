package engine

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultGrace      = 5 * time.Minute
	DefaultMinRoomAge = 2 * time.Minute
)

type Options struct {
	Codes      CodeGenerator
	Now        func() time.Time
	NewToken   func() string
	Grace      time.Duration
	MinRoomAge time.Duration
}

// Registry holds every live room, the connection index and the disconnect
// ledger. It is not safe for concurrent use; the hub goroutine owns it.
type Registry struct {
	rooms  map[string]*room
	index  map[string]string // conn id -> room code
	ledger map[string]DisconnectedRecord
	left   map[string]struct{} // conns that left explicitly and have not entered a room since

	codes  CodeGenerator
	now    func() time.Time
	token  func() string
	grace  time.Duration
	minAge time.Duration
}

func NewRegistry(opts Options) *Registry {
	if opts.Codes == nil {
		opts.Codes = RandomCodes{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewToken == nil {
		opts.NewToken = uuid.NewString
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.MinRoomAge <= 0 {
		opts.MinRoomAge = DefaultMinRoomAge
	}
	return &Registry{
		rooms:  make(map[string]*room),
		index:  make(map[string]string),
		ledger: make(map[string]DisconnectedRecord),
		left:   make(map[string]struct{}),
		codes:  opts.Codes,
		now:    opts.Now,
		token:  opts.NewToken,
		grace:  opts.Grace,
		minAge: opts.MinRoomAge,
	}
}

func (g *Registry) Grace() time.Duration { return g.grace }

// CreateRoom allocates a fresh, unused code.
func (g *Registry) CreateRoom() (Room, error) {
	for range maxCodeAttempts {
		code, err := g.codes.NewCode()
		if err != nil {
			return Room{}, fmt.Errorf("generate room code: %w", err)
		}
		if _, taken := g.rooms[code]; taken {
			continue
		}
		rm := newRoom(code, g.now())
		g.rooms[code] = rm
		return rm.view(), nil
	}
	return Room{}, ErrCodeSpaceExhausted
}

func (g *Registry) EnsureRoom(code string) Room {
	rm, ok := g.rooms[code]
	if !ok {
		rm = newRoom(code, g.now())
		g.rooms[code] = rm
	}
	return rm.view()
}

func (g *Registry) Lookup(code string) (Room, error) {
	rm, ok := g.rooms[NormalizeCode(code)]
	if !ok {
		return Room{}, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	return rm.view(), nil
}

func (g *Registry) RoomFor(connID string) (Room, error) {
	rm := g.roomOf(connID)
	if rm == nil {
		return Room{}, ErrRoomNotFound
	}
	return rm.view(), nil
}

func (g *Registry) roomOf(connID string) *room {
	code, ok := g.index[connID]
	if !ok {
		return nil
	}
	return g.rooms[code]
}

// RegisterSlot adds a fresh slot at full health. A full room is left untouched.
func (g *Registry) RegisterSlot(code, connID string, isHost bool) (Slot, error) {
	rm, ok := g.rooms[code]
	if !ok {
		return Slot{}, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	if len(rm.slots) >= MaxSlots {
		return Slot{}, ErrRoomFull
	}
	s := &Slot{
		ID:     connID,
		IsHost: isHost,
		Health: FullHealth,
		Token:  g.token(),
	}
	rm.put(s)
	g.index[connID] = code
	return *s, nil
}

func (g *Registry) RemoveSlot(code, connID string) {
	if rm, ok := g.rooms[code]; ok {
		delete(rm.slots, connID)
	}
	if g.index[connID] == code {
		delete(g.index, connID)
	}
}

func (g *Registry) DeleteRoom(code string) {
	rm, ok := g.rooms[code]
	if !ok {
		return
	}
	for id := range rm.slots {
		delete(g.index, id)
	}
	delete(g.rooms, code)
}

// ListRooms returns summaries ordered by creation time.
func (g *Registry) ListRooms() []RoomSummary {
	pending := make(map[string]int)
	for _, rec := range g.ledger {
		pending[rec.RoomCode]++
	}
	out := make([]RoomSummary, 0, len(g.rooms))
	for code, rm := range g.rooms {
		out = append(out, rm.summary(pending[code]))
	}
	slices.SortFunc(out, func(a, b RoomSummary) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.Code < b.Code {
			return -1
		}
		if a.Code > b.Code {
			return 1
		}
		return 0
	})
	return out
}
