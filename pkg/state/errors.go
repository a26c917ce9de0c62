package state

import "errors"

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrAlreadyInRoom     = errors.New("user is already in the room")
	ErrNotInRoom         = errors.New("user is not in a room")
	ErrInvalidRoomID     = errors.New("invalid room id")
	ErrUnknownClient     = errors.New("unknown client")
	ErrAlreadyRegistered = errors.New("connection is already registered")
)
