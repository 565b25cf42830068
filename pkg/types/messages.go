package types

// Every frame is {"type": string, "data": object}. "data" may be omitted when empty.
//
// Client -> Server
// createRoom: {}
//
// joinRoom:
//   roomCode: string // case-insensitive
//
// joinGame: {} // legacy shared "DEFAULT" room
//
// setReady:
//   ready: boolean
//   isHost: boolean // optional hint, used only when the server lost track of you
//
// shoot:
//   damage: number // >= 0, the other player is always the target
//
// resetGame: {}
// leaveRoom: {}
//
// getRoomInfo:
//   roomCode: string
//
// heartbeat: {}
//
// resume:
//   sessionToken: string
//   isHost: boolean // optional
//
// The websocket URL also accepts ?session=<token>&host=true|false, which is
// the same as sending resume right after connecting.

// Server -> Client
// connected:
//   playerId: string
//
// roomCreated / roomJoined:
//   roomCode: string
//   sessionToken: string // keep it, it is the only reliable way back after a reconnect
//
// joinError / setReadyError / error:
//   message: string
//
// playerUpdate:
//   players: { id, isHost, health, ready }[]
//
// gameOver:
//   winner: string // player id
//   winnerIsHost: boolean
//
// gameFull: {} // the connection is closed right after
//
// roomInfo:
//   code, players, createdAt | error
//
// heartbeatAck:
//   roomCode: string | null
//   playerId: string
