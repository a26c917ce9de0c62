package state

import (
	"time"

	"github.com/google/uuid"
)

// Outbound is the serialized, single-consumer message sink bound to exactly
// one connection. Implementations must keep writes ordered per connection.
type Outbound interface {
	Send(frame []byte)
	Close(err error)
}

// Client is the canonical record for one connected client. The registry owns
// it; the room side and delivery only reference the identity.
type Client struct {
	ID        uuid.UUID
	Name      string // empty until the Join handshake completes
	IPAddress string
	Sink      Outbound
	CreatedAt time.Time
}

// Room is a named channel with a member set. A room with zero members is
// removed immediately.
type Room struct {
	ID      uuid.UUID
	Name    string
	OwnerID uuid.UUID
	Members map[uuid.UUID]struct{}
}

// RoomInfo is the identity/name pair handed back to callers.
type RoomInfo struct {
	ID   uuid.UUID
	Name string
}

// LeaveResult reports a completed leave. Members is the pre-removal snapshot,
// leaver included, so callers can notify everyone who was present.
type LeaveResult struct {
	Room    RoomInfo
	Members []uuid.UUID
}

// JoinResult reports a completed join. Members is the post-join member set.
// Left is non-nil when joining implicitly vacated a different room.
type JoinResult struct {
	Room    RoomInfo
	Members []uuid.UUID
	Left    *LeaveResult
}
