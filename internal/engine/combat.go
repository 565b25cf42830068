package engine

// ShotOutcome is the result of one shot. Room always carries the post-shot
// slots.
type ShotOutcome struct {
	Room         Room
	Target       Slot
	Ignored      bool // target was already eliminated
	GameOver     bool
	WinnerConnID string
	WinnerIsHost bool
	SameRole     bool // shooter and target both claim the same role
}

func (g *Registry) Shoot(connID string, damage int) (ShotOutcome, error) {
	if damage < 0 {
		return ShotOutcome{}, ErrInvalidDamage
	}
	rm := g.roomOf(connID)
	if rm == nil {
		return ShotOutcome{}, ErrNotInRoom
	}
	return applyShot(rm, connID, damage)
}

func applyShot(rm *room, shooterID string, damage int) (ShotOutcome, error) {
	if damage < 0 {
		return ShotOutcome{}, ErrInvalidDamage
	}
	shooter, ok := rm.slots[shooterID]
	if !ok {
		return ShotOutcome{}, ErrNotInRoom
	}
	if len(rm.slots) < MaxSlots {
		return ShotOutcome{}, ErrNoTarget
	}

	var target *Slot
	for id, s := range rm.slots {
		if id != shooterID {
			target = s
			break
		}
	}
	if target == nil || target == shooter {
		return ShotOutcome{}, ErrSelfTarget
	}

	out := ShotOutcome{SameRole: target.IsHost == shooter.IsHost}
	if target.Health <= 0 {
		out.Ignored = true
		out.Target = *target
		out.Room = rm.view()
		return out, nil
	}

	target.Health = max(0, target.Health-damage)
	if target.Health == 0 {
		rm.state = RoomEnded
		for _, s := range rm.slots {
			s.Ready = false
		}
		out.GameOver = true
		out.WinnerConnID = shooter.ID
		out.WinnerIsHost = shooter.IsHost
	}
	out.Target = *target
	out.Room = rm.view()
	return out, nil
}
