package statemanager

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pixperk/rws/pkg/state"
	"github.com/samber/lo"
)

// InMemoryManager keeps all relay state in process memory. The client map and
// the room structures are guarded by separate mutexes; the rooms map and the
// membership index always mutate together under roomMu so the bidirectional
// invariant (member-set entry iff index entry) holds at every observable point.
type InMemoryManager struct {
	clients  map[uuid.UUID]*state.Client
	clientMu sync.RWMutex

	rooms    map[uuid.UUID]*state.Room
	userRoom map[uuid.UUID]uuid.UUID // membership index: user -> occupied room
	roomMu   sync.RWMutex

	logger *slog.Logger
}

func NewInMemoryManager(logger *slog.Logger) *InMemoryManager {
	return &InMemoryManager{
		clients:  make(map[uuid.UUID]*state.Client),
		rooms:    make(map[uuid.UUID]*state.Room),
		userRoom: make(map[uuid.UUID]uuid.UUID),
		logger:   logger.With(slog.String("component", "state_manager_inmemory")),
	}
}

// compile-time check to ensure InMemoryManager implements Manager.
var _ state.Manager = (*InMemoryManager)(nil)

// --- Connection Registry ---

func (m *InMemoryManager) Register(id uuid.UUID, ipAddr string, sink state.Outbound) (*state.Client, error) {
	m.clientMu.Lock()
	defer m.clientMu.Unlock()

	if _, exists := m.clients[id]; exists {
		return nil, state.ErrAlreadyRegistered
	}
	client := &state.Client{
		ID:        id,
		IPAddress: ipAddr,
		Sink:      sink,
		CreatedAt: time.Now(),
	}
	m.clients[id] = client
	m.logger.Debug("Client registered", slog.String("clientID", id.String()))
	return client, nil
}

func (m *InMemoryManager) SetName(id uuid.UUID, name string) error {
	m.clientMu.Lock()
	defer m.clientMu.Unlock()

	client, ok := m.clients[id]
	if !ok {
		return state.ErrUnknownClient
	}
	client.Name = name
	m.logger.Debug("Client named", slog.String("clientID", id.String()), slog.String("name", name))
	return nil
}

func (m *InMemoryManager) Lookup(id uuid.UUID) (*state.Client, bool) {
	m.clientMu.RLock()
	defer m.clientMu.RUnlock()
	client, ok := m.clients[id]
	return client, ok
}

func (m *InMemoryManager) Unregister(id uuid.UUID) {
	m.clientMu.Lock()
	defer m.clientMu.Unlock()

	if _, ok := m.clients[id]; !ok {
		// already gone; unregistering twice is fine
		return
	}
	delete(m.clients, id)
	m.logger.Debug("Client unregistered", slog.String("clientID", id.String()))
}

func (m *InMemoryManager) Snapshot() []*state.Client {
	m.clientMu.RLock()
	defer m.clientMu.RUnlock()
	return lo.Values(m.clients)
}

func (m *InMemoryManager) ConnectionCountForIP(ipAddr string) int {
	m.clientMu.RLock()
	defer m.clientMu.RUnlock()

	count := 0
	for _, c := range m.clients {
		if c.IPAddress == ipAddr {
			count++
		}
	}
	return count
}

func (m *InMemoryManager) FindOldestConnectionFromIP(ipAddr string) (*state.Client, bool) {
	m.clientMu.RLock()
	defer m.clientMu.RUnlock()

	var oldest *state.Client
	for _, c := range m.clients {
		if c.IPAddress != ipAddr {
			continue
		}
		if oldest == nil || c.CreatedAt.Before(oldest.CreatedAt) {
			oldest = c
		}
	}
	return oldest, oldest != nil
}

// --- Room & Membership Management ---

func (m *InMemoryManager) CreateRoom(ownerID uuid.UUID, name string) (state.RoomInfo, error) {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	if _, occupied := m.userRoom[ownerID]; occupied {
		return state.RoomInfo{}, state.ErrAlreadyInRoom
	}

	roomID := m.freshRoomIDLocked()
	room := &state.Room{
		ID:      roomID,
		Name:    name,
		OwnerID: ownerID,
		Members: map[uuid.UUID]struct{}{ownerID: {}},
	}
	m.rooms[roomID] = room
	m.userRoom[ownerID] = roomID

	m.logger.Debug("Room created",
		slog.String("roomID", roomID.String()),
		slog.String("name", name),
		slog.String("ownerID", ownerID.String()),
	)
	return state.RoomInfo{ID: roomID, Name: name}, nil
}

// freshRoomIDLocked generates a room id that does not collide with any live
// room. Ids of removed rooms are never reused. Caller holds roomMu.
func (m *InMemoryManager) freshRoomIDLocked() uuid.UUID {
	for {
		id := uuid.New()
		if _, taken := m.rooms[id]; !taken {
			return id
		}
	}
}

func (m *InMemoryManager) JoinRoom(userID, roomID uuid.UUID) (state.JoinResult, error) {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return state.JoinResult{}, state.ErrRoomNotFound
	}
	if current, occupied := m.userRoom[userID]; occupied && current == roomID {
		return state.JoinResult{}, state.ErrAlreadyInRoom
	}

	// Occupying a different room: vacate it first, as one atomic move.
	var left *state.LeaveResult
	if _, occupied := m.userRoom[userID]; occupied {
		res, err := m.leaveLocked(userID)
		if err != nil {
			return state.JoinResult{}, err
		}
		left = &res
	}

	room.Members[userID] = struct{}{}
	m.userRoom[userID] = roomID

	m.logger.Debug("User joined room",
		slog.String("userID", userID.String()),
		slog.String("roomID", roomID.String()),
	)
	return state.JoinResult{
		Room:    state.RoomInfo{ID: room.ID, Name: room.Name},
		Members: lo.Keys(room.Members),
		Left:    left,
	}, nil
}

func (m *InMemoryManager) LeaveRoom(userID uuid.UUID) (state.LeaveResult, error) {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()
	return m.leaveLocked(userID)
}

// leaveLocked removes the user's membership, deleting the room once it is
// empty. Caller holds roomMu.
func (m *InMemoryManager) leaveLocked(userID uuid.UUID) (state.LeaveResult, error) {
	roomID, occupied := m.userRoom[userID]
	if !occupied {
		return state.LeaveResult{}, state.ErrNotInRoom
	}
	room := m.rooms[roomID]

	// Snapshot before removal so the leaver can be notified too.
	members := lo.Keys(room.Members)
	delete(room.Members, userID)
	delete(m.userRoom, userID)

	if len(room.Members) == 0 {
		delete(m.rooms, roomID)
		m.logger.Debug("Removed empty room", slog.String("roomID", roomID.String()))
	}

	m.logger.Debug("User left room",
		slog.String("userID", userID.String()),
		slog.String("roomID", roomID.String()),
	)
	return state.LeaveResult{
		Room:    state.RoomInfo{ID: room.ID, Name: room.Name},
		Members: members,
	}, nil
}

func (m *InMemoryManager) RoomOf(userID uuid.UUID) (state.RoomInfo, bool) {
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()

	roomID, occupied := m.userRoom[userID]
	if !occupied {
		return state.RoomInfo{}, false
	}
	room := m.rooms[roomID]
	return state.RoomInfo{ID: room.ID, Name: room.Name}, true
}

func (m *InMemoryManager) MembersOf(roomID uuid.UUID) ([]uuid.UUID, bool) {
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return nil, false
	}
	return lo.Keys(room.Members), true
}
