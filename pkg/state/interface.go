package state

import (
	"github.com/google/uuid"
)

type Manager interface {
	// --- Connection Registry ---
	Register(id uuid.UUID, ipAddr string, sink Outbound) (*Client, error)
	// SetName completes the join handshake for a registered client.
	SetName(id uuid.UUID, name string) error
	Lookup(id uuid.UUID) (*Client, bool)
	// Unregister is idempotent; removing an unknown identity is a no-op.
	Unregister(id uuid.UUID)
	// Snapshot returns all registered clients at one point in time.
	Snapshot() []*Client
	ConnectionCountForIP(ipAddr string) int
	FindOldestConnectionFromIP(ipAddr string) (*Client, bool)

	// --- Room & Membership Management ---
	// CreateRoom makes a fresh room with the owner as sole member. Fails with
	// ErrAlreadyInRoom if the owner already occupies a room.
	CreateRoom(ownerID uuid.UUID, name string) (RoomInfo, error)
	// JoinRoom adds the user to the room, implicitly leaving any other room
	// first. Joining the room the user is already in fails with ErrAlreadyInRoom.
	JoinRoom(userID, roomID uuid.UUID) (JoinResult, error)
	// LeaveRoom removes the user's membership and deletes the room if it is
	// now empty.
	LeaveRoom(userID uuid.UUID) (LeaveResult, error)
	RoomOf(userID uuid.UUID) (RoomInfo, bool)
	MembersOf(roomID uuid.UUID) ([]uuid.UUID, bool)
}
