package engine

import "fmt"

// Rule names one level of the reconciliation chain, in priority order.
type Rule int

const (
	RuleSessionToken Rule = iota
	RuleLedger
	RuleGroup
	RuleRoleParity
	RuleSingleRoom
)

func (r Rule) String() string {
	switch r {
	case RuleSessionToken:
		return "session-token"
	case RuleLedger:
		return "ledger"
	case RuleGroup:
		return "group"
	case RuleRoleParity:
		return "role-parity"
	case RuleSingleRoom:
		return "single-room"
	default:
		return fmt.Sprintf("rule(%d)", int(r))
	}
}

// Stage limits how far down the chain a reconciliation may go.
type Stage int

const (
	StageConnect Stage = iota // token and ledger only
	StageEvent                // full chain, for room-scoped events from unmapped connections
)

// Claim is what a reconnecting client says about itself. Both parts are optional.
type Claim struct {
	Token  string
	IsHost *bool
}

// Membership answers transport group queries. Groups are named by room code.
type Membership interface {
	InGroup(group, connID string) bool
	GroupsOf(connID string) []string
}

type Match struct {
	Rule     Rule
	Room     Room
	Slot     Slot
	Replaced string // conn id that previously owned the slot
	Restored bool   // slot came back from the disconnect ledger
}

type binding struct {
	code     string
	takeover string
	record   *DisconnectedRecord
	isHost   bool
}

type rule struct {
	name Rule
	find func(connID string, c Claim, m Membership) []binding
}

func (g *Registry) chain() []rule {
	return []rule{
		{RuleSessionToken, g.byToken},
		{RuleLedger, g.byLedger},
		{RuleGroup, g.byGroup},
		{RuleRoleParity, g.byRoleParity},
		{RuleSingleRoom, g.bySingleRoom},
	}
}

// Reconcile tries to rebind connID to a prior in-room identity. The first rule
// yielding exactly one candidate wins; several candidates stop the chain with
// ErrReconciliationAmbiguous and leave everything untouched.
func (g *Registry) Reconcile(connID string, c Claim, m Membership, stage Stage) (Match, error) {
	if _, ok := g.index[connID]; ok {
		return Match{}, ErrAlreadyBound
	}
	if _, ok := g.left[connID]; ok {
		return Match{}, ErrDeparted
	}
	last := RuleSingleRoom
	if stage == StageConnect {
		last = RuleLedger
	}
	for _, r := range g.chain()[:last+1] {
		cands := r.find(connID, c, m)
		switch len(cands) {
		case 0:
			continue
		case 1:
			return g.bind(connID, r.name, cands[0]), nil
		default:
			return Match{}, fmt.Errorf("%w: %s matched %d candidates", ErrReconciliationAmbiguous, r.name, len(cands))
		}
	}
	return Match{}, ErrNoMatch
}

func (g *Registry) restorable(rec DisconnectedRecord) bool {
	if !g.withinGrace(rec) {
		return false
	}
	rm, ok := g.rooms[rec.RoomCode]
	return ok && len(rm.slots) < MaxSlots && !rm.hasRole(rec.Slot.IsHost)
}

func (g *Registry) byToken(_ string, c Claim, _ Membership) []binding {
	if c.Token == "" {
		return nil
	}
	for _, rec := range g.ledger {
		if rec.Slot.Token == c.Token && g.restorable(rec) {
			return []binding{recordBinding(rec)}
		}
	}
	for code, rm := range g.rooms {
		for id, s := range rm.slots {
			if s.Token == c.Token {
				return []binding{{code: code, takeover: id, isHost: s.IsHost}}
			}
		}
	}
	return nil
}

func (g *Registry) byLedger(_ string, c Claim, _ Membership) []binding {
	var out []binding
	for _, rec := range g.ledger {
		if g.restorable(rec) {
			out = append(out, recordBinding(rec))
		}
	}
	return narrow(out, c.IsHost)
}

func (g *Registry) byGroup(connID string, c Claim, m Membership) []binding {
	if m == nil {
		return nil
	}
	var rooms []*room
	for _, code := range m.GroupsOf(connID) {
		if rm, ok := g.rooms[code]; ok {
			rooms = append(rooms, rm)
		}
	}
	switch len(rooms) {
	case 0:
		return nil
	case 1:
		if len(rooms[0].slots) >= MaxSlots {
			return nil
		}
		return g.adopt(rooms[0], c.IsHost)
	}
	out := make([]binding, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, binding{code: rm.code, isHost: rm.hostSlot() == nil})
	}
	return out
}

func (g *Registry) byRoleParity(_ string, c Claim, m Membership) []binding {
	if c.IsHost == nil || m == nil {
		return nil
	}
	var out []binding
	for code, rm := range g.rooms {
		var match *Slot
		n := 0
		for _, s := range rm.slots {
			if s.IsHost == *c.IsHost {
				match = s
				n++
			}
		}
		if n == 1 && !m.InGroup(code, match.ID) {
			out = append(out, binding{code: code, takeover: match.ID, isHost: match.IsHost})
		}
	}
	return out
}

func (g *Registry) bySingleRoom(_ string, c Claim, m Membership) []binding {
	if len(g.rooms) != 1 {
		return nil
	}
	var rm *room
	for _, r := range g.rooms {
		rm = r
	}
	var ghosts []binding
	if m != nil {
		for id, s := range rm.slots {
			if !m.InGroup(rm.code, id) {
				ghosts = append(ghosts, binding{code: rm.code, takeover: id, isHost: s.IsHost})
			}
		}
	}
	if len(ghosts) > 0 {
		return narrow(ghosts, c.IsHost)
	}
	if len(rm.slots) < rm.peak {
		return g.adopt(rm, c.IsHost)
	}
	return nil
}

// adopt binds into rm: a pending record of the room when one fits, otherwise a
// fresh slot in the missing role.
func (g *Registry) adopt(rm *room, hint *bool) []binding {
	var recs []binding
	for _, rec := range g.ledger {
		if rec.RoomCode == rm.code && g.restorable(rec) {
			recs = append(recs, recordBinding(rec))
		}
	}
	if len(recs) > 0 {
		return narrow(recs, hint)
	}
	if len(rm.slots) >= MaxSlots {
		return nil
	}
	return []binding{{code: rm.code, isHost: rm.hostSlot() == nil}}
}

func recordBinding(rec DisconnectedRecord) binding {
	return binding{code: rec.RoomCode, record: &rec, isHost: rec.Slot.IsHost}
}

// narrow applies the isHost hint to break a tie. When nothing of the hinted
// role remains the tie stands.
func narrow(cands []binding, hint *bool) []binding {
	if len(cands) < 2 || hint == nil {
		return cands
	}
	var kept []binding
	for _, b := range cands {
		if b.isHost == *hint {
			kept = append(kept, b)
		}
	}
	if len(kept) == 0 {
		return cands
	}
	return kept
}

func (g *Registry) bind(connID string, r Rule, b binding) Match {
	rm := g.rooms[b.code]
	m := Match{Rule: r}

	switch {
	case b.takeover != "":
		s := rm.slots[b.takeover]
		delete(rm.slots, b.takeover)
		delete(g.index, b.takeover)
		delete(g.ledger, b.takeover)
		s.ID = connID
		rm.put(s)
		m.Replaced = b.takeover
	case b.record != nil:
		s := b.record.Slot
		s.ID = connID
		rm.put(&s)
		delete(g.ledger, b.record.ConnID)
		m.Replaced = b.record.ConnID
		m.Restored = true
	default:
		rm.put(&Slot{ID: connID, IsHost: b.isHost, Health: FullHealth, Token: g.token()})
	}
	g.index[connID] = rm.code
	g.settleHost(rm)

	m.Room = rm.view()
	m.Slot = *rm.slots[connID]
	return m
}
