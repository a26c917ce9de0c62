// Package protocol defines the wire events exchanged between the relay server
// and its clients, plus the envelope codec that frames them.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Event is the closed set of wire events. Only types in this package satisfy it.
type Event interface {
	tag() string
}

// UserInfo identifies a connected user on the wire.
type UserInfo struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// RoomInfo identifies a room on the wire.
type RoomInfo struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ScopeKind discriminates chat scopes.
type ScopeKind string

const (
	ScopeGlobal ScopeKind = "Global"
	ScopeRoom   ScopeKind = "Room"
)

// Scope says whether a Chat targets all connected clients or one room's members.
type Scope struct {
	Kind     ScopeKind
	RoomID   uuid.UUID
	RoomName string
}

// GlobalScope returns the scope covering every connected client.
func GlobalScope() Scope {
	return Scope{Kind: ScopeGlobal}
}

// RoomScope returns the scope covering one room's members.
func RoomScope(room RoomInfo) Scope {
	return Scope{Kind: ScopeRoom, RoomID: room.ID, RoomName: room.Name}
}

type scopeJSON struct {
	Kind     ScopeKind  `json:"kind"`
	RoomID   *uuid.UUID `json:"roomId,omitempty"`
	RoomName string     `json:"roomName,omitempty"`
}

func (s Scope) MarshalJSON() ([]byte, error) {
	out := scopeJSON{Kind: s.Kind}
	if s.Kind == ScopeRoom {
		id := s.RoomID
		out.RoomID = &id
		out.RoomName = s.RoomName
	}
	return json.Marshal(out)
}

func (s *Scope) UnmarshalJSON(data []byte) error {
	var in scopeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case ScopeGlobal:
		*s = Scope{Kind: ScopeGlobal}
	case ScopeRoom:
		if in.RoomID == nil {
			return fmt.Errorf("room scope is missing roomId")
		}
		*s = Scope{Kind: ScopeRoom, RoomID: *in.RoomID, RoomName: in.RoomName}
	default:
		return fmt.Errorf("unknown scope kind %q", in.Kind)
	}
	return nil
}

// ErrorKind enumerates the domain errors a server reports to a single client.
type ErrorKind string

const (
	KindRoomNotFound      ErrorKind = "RoomNotFound"
	KindRoomAlreadyExists ErrorKind = "RoomAlreadyExists"
	KindAlreadyInRoom     ErrorKind = "AlreadyInRoom"
	KindInvalidRoomID     ErrorKind = "InvalidRoomId"
	KindPermissionDenied  ErrorKind = "PermissionDenied"
)

// Join is a client's handshake carrying its display name.
type Join struct {
	Username string `json:"username"`
}

// AssignedID tells a client the identity the server generated for it.
type AssignedID struct {
	UserID uuid.UUID `json:"userId"`
}

// Chat carries one message. ID is the sender-generated correlation id echoed
// back in the matching AckDelivered.
type Chat struct {
	ID      uuid.UUID `json:"id"`
	Sender  UserInfo  `json:"sender"`
	Content string    `json:"content"`
	Scope   Scope     `json:"scope"`
}

// AckDelivered confirms fan-out of the Chat with the same correlation id.
type AckDelivered struct {
	ID uuid.UUID `json:"id"`
}

// CreateRoom is both the client request (roomName only) and the server's
// unicast confirmation, which additionally carries the assigned room id.
type CreateRoom struct {
	Creator  UserInfo  `json:"creator"`
	RoomID   uuid.UUID `json:"roomId"`
	RoomName string    `json:"roomName"`
}

// JoinRoom is the client request to enter a room and the broadcast sent to the
// post-join member set.
type JoinRoom struct {
	User UserInfo `json:"user"`
	Room RoomInfo `json:"room"`
}

// LeaveRoom is the client request to leave its room and the notice sent to
// every member present before the removal.
type LeaveRoom struct {
	User UserInfo `json:"user"`
	Room RoomInfo `json:"room"`
}

// ErrorEvent reports a domain error to the requesting client only.
type ErrorEvent struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Ping is a liveness probe. The server treats it as a no-op.
type Ping struct{}

func (Join) tag() string         { return "Join" }
func (AssignedID) tag() string   { return "AssignedId" }
func (Chat) tag() string         { return "Chat" }
func (AckDelivered) tag() string { return "AckDelivered" }
func (CreateRoom) tag() string   { return "CreateRoom" }
func (JoinRoom) tag() string     { return "JoinRoom" }
func (LeaveRoom) tag() string    { return "LeaveRoom" }
func (ErrorEvent) tag() string   { return "Error" }
func (Ping) tag() string         { return "Ping" }
