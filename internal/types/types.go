package types

import (
	"encoding/json"
	"time"

	"github.com/DoyleJ11/ar-duel-backend/internal/engine"
)

// Inbound event names.
const (
	EvCreateRoom  = "createRoom"
	EvJoinRoom    = "joinRoom"
	EvJoinGame    = "joinGame"
	EvSetReady    = "setReady"
	EvShoot       = "shoot"
	EvResetGame   = "resetGame"
	EvLeaveRoom   = "leaveRoom"
	EvGetRoomInfo = "getRoomInfo"
	EvHeartbeat   = "heartbeat"
	EvResume      = "resume"
)

// Outbound event names.
const (
	EvConnected     = "connected"
	EvRoomCreated   = "roomCreated"
	EvRoomJoined    = "roomJoined"
	EvJoinError     = "joinError"
	EvSetReadyError = "setReadyError"
	EvError         = "error"
	EvPlayerUpdate  = "playerUpdate"
	EvGameOver      = "gameOver"
	EvGameFull      = "gameFull"
	EvRoomInfo      = "roomInfo"
	EvHeartbeatAck  = "heartbeatAck"
)

type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type JoinRoomData struct {
	RoomCode string `json:"roomCode"`
}

type SetReadyData struct {
	Ready    bool   `json:"ready"`
	IsHost   *bool  `json:"isHost,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
}

type ShootData struct {
	Damage    int    `json:"damage"`
	ShooterID string `json:"shooterId,omitempty"`
}

type ResumeData struct {
	SessionToken string `json:"sessionToken"`
	IsHost       *bool  `json:"isHost,omitempty"`
}

type RoomInfoRequest struct {
	RoomCode string `json:"roomCode"`
}

type ConnectedData struct {
	PlayerID string `json:"playerId"`
}

type RoomEntered struct {
	RoomCode     string `json:"roomCode"`
	SessionToken string `json:"sessionToken"`
}

type ErrorData struct {
	Message string `json:"message"`
}

type PlayerUpdate struct {
	Players []engine.Slot `json:"players"`
}

type GameOver struct {
	Winner       string `json:"winner"`
	WinnerIsHost bool   `json:"winnerIsHost"`
}

type RoomInfo struct {
	Code      string        `json:"code,omitempty"`
	Players   []engine.Slot `json:"players,omitempty"`
	CreatedAt *time.Time    `json:"createdAt,omitempty"`
	Error     string        `json:"error,omitempty"`
}

type HeartbeatAck struct {
	RoomCode *string `json:"roomCode"`
	PlayerID string  `json:"playerId"`
}

func Msg(typ string, data any) ServerMessage {
	return ServerMessage{Type: typ, Data: data}
}

func Error(typ, message string) ServerMessage {
	return ServerMessage{Type: typ, Data: ErrorData{Message: message}}
}
