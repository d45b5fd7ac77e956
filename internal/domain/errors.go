package domain

import "errors"

// Action-level error taxonomy. Callers match with errors.Is; adapters
// map these to transport status codes.
var (
	ErrAuthRequired      = errors.New("authentication required")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomInactive      = errors.New("room is no longer active")
	ErrRoomFull          = errors.New("room is full")
	ErrRoomNameEmpty     = errors.New("room name empty")
	ErrRoomCodeTaken     = errors.New("room code already in use")
	ErrAlreadyPresent    = errors.New("already present in room")
	ErrAlreadyRecording  = errors.New("a recording is already in progress")
	ErrNoActiveRoom      = errors.New("no active room")
	ErrNoActiveRecording = errors.New("no active recording")
	ErrMediaAccessDenied = errors.New("media access denied")
	ErrConnectionFailed  = errors.New("peer connection failed")
	ErrSignalingError    = errors.New("signaling error")
)
