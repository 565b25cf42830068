package hub

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/ar-duel-backend/internal/engine"
	"github.com/DoyleJ11/ar-duel-backend/internal/scheduler"
	"github.com/DoyleJ11/ar-duel-backend/internal/store"
	"github.com/DoyleJ11/ar-duel-backend/internal/types"
)

const (
	msgRoomNotFound    = "Room not found"
	msgRoomFull        = "Room is full"
	msgNotInRoom       = "Not in a room"
	msgInvalidDamage   = "Invalid damage"
	msgSessionNotFound = "Session not found"
	msgBadPayload      = "Invalid payload"
	msgUnknownEvent    = "Unknown event"
	msgCreateFailed    = "Could not create room"
)

func (h *Hub) onConnect(m Connect) {
	h.tr.Send(m.ConnID, types.Msg(types.EvConnected, types.ConnectedData{PlayerID: m.ConnID}))
	h.reconcile(m.ConnID, engine.Claim{Token: m.Token, IsHost: m.IsHost}, engine.StageConnect)
}

func (h *Hub) onDisconnect(connID string) {
	d, ok := h.reg.Disconnect(connID)
	if !ok {
		return
	}
	code := d.Record.RoomCode
	h.log.Info("player disconnected",
		zap.String("conn", connID),
		zap.String("room", code),
		zap.Bool("host", d.Record.Slot.IsHost),
		zap.Duration("grace", h.opts.Grace))

	h.tr.Leave(code, connID)
	h.broadcastPlayers(d.Room)
	h.sched.Schedule(scheduler.GraceKey(connID), h.opts.Grace)
	h.sched.Schedule(scheduler.CleanupKey(code), h.opts.DisconnectCleanup)
}

func (h *Hub) dispatch(connID string, msg types.ClientMessage) {
	switch msg.Type {
	case types.EvCreateRoom:
		h.onCreateRoom(connID)
	case types.EvJoinRoom:
		h.onJoinRoom(connID, msg.Data)
	case types.EvJoinGame:
		h.onJoinGame(connID)
	case types.EvSetReady:
		h.onSetReady(connID, msg.Data)
	case types.EvShoot:
		h.onShoot(connID, msg.Data)
	case types.EvResetGame:
		h.onResetGame(connID)
	case types.EvLeaveRoom:
		h.onLeaveRoom(connID)
	case types.EvGetRoomInfo:
		h.onGetRoomInfo(connID, msg.Data)
	case types.EvHeartbeat:
		h.onHeartbeat(connID)
	case types.EvResume:
		h.onResume(connID, msg.Data)
	default:
		h.tr.Send(connID, types.Error(types.EvError, msgUnknownEvent))
	}
}

func (h *Hub) onCreateRoom(connID string) {
	j, err := h.reg.Create(connID)
	if err != nil {
		h.log.Error("create room", zap.String("conn", connID), zap.Error(err))
		h.tr.Send(connID, types.Error(types.EvError, msgCreateFailed))
		return
	}
	h.log.Info("room created", zap.String("room", j.Room.Code), zap.String("conn", connID))
	h.enter(connID, types.EvRoomCreated, j)
}

func (h *Hub) onJoinRoom(connID string, raw json.RawMessage) {
	data, err := decode[types.JoinRoomData](raw)
	if err != nil || data.RoomCode == "" {
		h.tr.Send(connID, types.Error(types.EvJoinError, msgRoomNotFound))
		return
	}
	j, err := h.reg.Join(data.RoomCode, connID)
	switch {
	case errors.Is(err, engine.ErrRoomNotFound):
		h.tr.Send(connID, types.Error(types.EvJoinError, msgRoomNotFound))
		return
	case errors.Is(err, engine.ErrRoomFull):
		h.tr.Send(connID, types.Error(types.EvJoinError, msgRoomFull))
		return
	case err != nil:
		h.log.Error("join room", zap.String("conn", connID), zap.Error(err))
		return
	}
	h.log.Info("room joined", zap.String("room", j.Room.Code), zap.String("conn", connID), zap.Bool("host", j.Slot.IsHost))
	h.enter(connID, types.EvRoomJoined, j)
}

func (h *Hub) onJoinGame(connID string) {
	j, err := h.reg.JoinDefault(connID)
	if errors.Is(err, engine.ErrRoomFull) {
		h.tr.Send(connID, types.Msg(types.EvGameFull, nil))
		h.tr.Close(connID)
		return
	}
	if err != nil {
		h.log.Error("join default room", zap.String("conn", connID), zap.Error(err))
		return
	}
	h.enter(connID, entryEvent(j.Slot.IsHost), j)
}

// enter finishes a create or join once the registry has accepted it.
func (h *Hub) enter(connID, event string, j engine.Joined) {
	h.afterDeparture(connID, j.Previous)
	h.tr.Join(j.Room.Code, connID)
	h.tr.Send(connID, types.Msg(event, types.RoomEntered{RoomCode: j.Room.Code, SessionToken: j.Slot.Token}))
	h.broadcastPlayers(j.Room)
}

// entryEvent names the event a client gets when it lands in a room without
// having asked for a specific code: hosts see roomCreated, guests roomJoined.
func entryEvent(isHost bool) string {
	if isHost {
		return types.EvRoomCreated
	}
	return types.EvRoomJoined
}

func (h *Hub) onSetReady(connID string, raw json.RawMessage) {
	data, err := decode[types.SetReadyData](raw)
	if err != nil {
		h.tr.Send(connID, types.Error(types.EvSetReadyError, msgBadPayload))
		return
	}
	if _, ok := h.resolveRoom(connID, engine.Claim{IsHost: data.IsHost}); !ok {
		h.tr.Send(connID, types.Error(types.EvSetReadyError, msgNotInRoom))
		return
	}
	rm, err := h.reg.SetReady(connID, data.Ready)
	if err != nil {
		h.tr.Send(connID, types.Error(types.EvSetReadyError, msgNotInRoom))
		return
	}
	h.broadcastPlayers(rm)
}

func (h *Hub) onShoot(connID string, raw json.RawMessage) {
	data, err := decode[types.ShootData](raw)
	if err != nil {
		h.tr.Send(connID, types.Error(types.EvError, msgBadPayload))
		return
	}
	log := h.log.With(zap.String("conn", connID), zap.Int("damage", data.Damage))
	if _, ok := h.resolveRoom(connID, engine.Claim{}); !ok {
		log.Debug("shot from connection without a room")
		return
	}

	out, err := h.reg.Shoot(connID, data.Damage)
	switch {
	case errors.Is(err, engine.ErrInvalidDamage):
		h.tr.Send(connID, types.Error(types.EvError, msgInvalidDamage))
		return
	case errors.Is(err, engine.ErrNoTarget):
		log.Debug("shot with no target")
		return
	case errors.Is(err, engine.ErrSelfTarget):
		log.Error("shot resolved to shooter's own slot", zap.Error(err))
		return
	case err != nil:
		log.Warn("shot rejected", zap.Error(err))
		return
	}
	if out.SameRole {
		log.Warn("shooter and target share a role", zap.Bool("host", out.Target.IsHost))
	}
	if out.Ignored {
		log.Debug("target already eliminated")
		return
	}

	if out.GameOver {
		log.Info("game over", zap.String("room", out.Room.Code), zap.String("winner", out.WinnerConnID))
		h.tr.Broadcast(out.Room.Code, types.Msg(types.EvGameOver, types.GameOver{
			Winner:       out.WinnerConnID,
			WinnerIsHost: out.WinnerIsHost,
		}))
		h.recordMatch(out)
	}
	h.broadcastPlayers(out.Room)
}

func (h *Hub) onResetGame(connID string) {
	if _, ok := h.resolveRoom(connID, engine.Claim{}); !ok {
		return
	}
	rm, err := h.reg.Reset(connID)
	if err != nil {
		return
	}
	h.log.Info("game reset", zap.String("room", rm.Code))
	h.broadcastPlayers(rm)
}

func (h *Hub) onLeaveRoom(connID string) {
	d, err := h.reg.Leave(connID)
	if err != nil {
		return
	}
	h.log.Info("player left", zap.String("conn", connID), zap.String("room", d.Code), zap.Bool("promoted", d.Promoted))
	h.afterDeparture(connID, &d)
}

func (h *Hub) afterDeparture(connID string, d *engine.Departure) {
	if d == nil {
		return
	}
	h.tr.Leave(d.Code, connID)
	if !d.Empty {
		h.broadcastPlayers(d.Room)
	}
	h.sched.Schedule(scheduler.CleanupKey(d.Code), h.opts.LeaveCleanup)
}

func (h *Hub) onGetRoomInfo(connID string, raw json.RawMessage) {
	data, _ := decode[types.RoomInfoRequest](raw)
	rm, err := h.reg.Lookup(data.RoomCode)
	if err != nil {
		h.tr.Send(connID, types.Msg(types.EvRoomInfo, types.RoomInfo{Error: msgRoomNotFound}))
		return
	}
	h.tr.Send(connID, types.Msg(types.EvRoomInfo, types.RoomInfo{
		Code:      rm.Code,
		Players:   rm.Slots,
		CreatedAt: &rm.CreatedAt,
	}))
}

// onHeartbeat only reports; it never reconciles.
func (h *Hub) onHeartbeat(connID string) {
	ack := types.HeartbeatAck{PlayerID: connID}
	if rm, err := h.reg.RoomFor(connID); err == nil {
		ack.RoomCode = &rm.Code
	}
	h.tr.Send(connID, types.Msg(types.EvHeartbeatAck, ack))
}

func (h *Hub) onResume(connID string, raw json.RawMessage) {
	data, err := decode[types.ResumeData](raw)
	if err != nil || data.SessionToken == "" {
		h.tr.Send(connID, types.Error(types.EvError, msgSessionNotFound))
		return
	}
	claim := engine.Claim{Token: data.SessionToken, IsHost: data.IsHost}
	if _, ok := h.reconcile(connID, claim, engine.StageConnect); !ok {
		h.tr.Send(connID, types.Error(types.EvError, msgSessionNotFound))
	}
}

// resolveRoom finds connID's room, running the full reconciliation chain when
// the connection has no mapping.
func (h *Hub) resolveRoom(connID string, claim engine.Claim) (engine.Room, bool) {
	if rm, err := h.reg.RoomFor(connID); err == nil {
		return rm, true
	}
	return h.reconcile(connID, claim, engine.StageEvent)
}

func (h *Hub) reconcile(connID string, claim engine.Claim, stage engine.Stage) (engine.Room, bool) {
	m, err := h.reg.Reconcile(connID, claim, h.tr, stage)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrReconciliationAmbiguous):
			h.log.Warn("reconciliation ambiguous", zap.String("conn", connID), zap.Error(err))
		case !engine.IsSoft(err):
			h.log.Error("reconcile", zap.String("conn", connID), zap.Error(err))
		}
		return engine.Room{}, false
	}
	h.log.Info("player reconciled",
		zap.String("conn", connID),
		zap.Stringer("rule", m.Rule),
		zap.String("room", m.Room.Code),
		zap.String("replaced", m.Replaced),
		zap.Bool("host", m.Slot.IsHost))

	if m.Replaced != "" {
		h.sched.Cancel(scheduler.GraceKey(m.Replaced))
		if !m.Restored {
			h.tr.Leave(m.Room.Code, m.Replaced)
			h.tr.Close(m.Replaced)
		}
	}
	h.tr.Join(m.Room.Code, connID)
	h.tr.Send(connID, types.Msg(entryEvent(m.Slot.IsHost), types.RoomEntered{RoomCode: m.Room.Code, SessionToken: m.Slot.Token}))
	h.broadcastPlayers(m.Room)
	return m.Room, true
}

func (h *Hub) onTimer(f scheduler.Fired) {
	if !h.sched.Claim(f) {
		return
	}
	switch f.Key.Kind {
	case scheduler.KindGrace:
		h.expireGrace(f.Key.ID)
	case scheduler.KindCleanup:
		h.cleanup(f.Key.ID)
	}
}

func (h *Hub) expireGrace(connID string) {
	exp, ok := h.reg.ExpireRecord(connID)
	if !ok {
		return
	}
	h.log.Info("reconnect grace expired", zap.String("conn", connID), zap.String("room", exp.Record.RoomCode))
	if exp.Room == nil {
		return
	}
	if exp.Promoted {
		h.broadcastPlayers(*exp.Room)
	}
	h.cleanup(exp.Record.RoomCode)
}

func (h *Hub) cleanup(code string) {
	d := h.reg.Cleanup(code)
	switch {
	case d.Deleted:
		h.log.Info("room deleted", zap.String("room", code))
	case d.RetryIn > 0:
		h.sched.Schedule(scheduler.CleanupKey(code), d.RetryIn)
	case d.Missing:
	default:
		h.log.Debug("room kept", zap.String("room", code), zap.Int("players", d.Occupied), zap.Int("pending", d.Pending))
	}
}

func (h *Hub) broadcastPlayers(rm engine.Room) {
	h.tr.Broadcast(rm.Code, types.Msg(types.EvPlayerUpdate, types.PlayerUpdate{Players: rm.Slots}))
}

func (h *Hub) recordMatch(out engine.ShotOutcome) {
	if h.rec == nil {
		return
	}
	winner, _ := out.Room.SlotFor(out.WinnerConnID)
	h.rec.RecordMatch(store.Match{
		RoomCode:     out.Room.Code,
		WinnerConnID: out.WinnerConnID,
		WinnerIsHost: out.WinnerIsHost,
		LoserConnID:  out.Target.ID,
		WinnerHealth: winner.Health,
		EndedAt:      h.now(),
	})
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}
