package engine

import "errors"

var ErrRoomNotFound = errors.New("room not found")
var ErrRoomFull = errors.New("room is full")
var ErrNotInRoom = errors.New("connection is not in a room")
var ErrNoTarget = errors.New("no target in room")
var ErrSelfTarget = errors.New("shooter resolved to its own slot")
var ErrInvalidDamage = errors.New("damage must not be negative")
var ErrCodeSpaceExhausted = errors.New("no unused room code found")

// Reconciliation outcomes. Neither is a client-facing failure: callers fall
// through to the normal create/join flow.
var ErrReconciliationAmbiguous = errors.New("reconciliation ambiguous")
var ErrNoMatch = errors.New("no reconciliation match")
var ErrAlreadyBound = errors.New("connection already bound to a room")
var ErrDeparted = errors.New("connection left its room")
