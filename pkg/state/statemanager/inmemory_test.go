package statemanager_test

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pixperk/rws/pkg/state"
	"github.com/pixperk/rws/pkg/state/statemanager"
)

// --- Test Suite Setup ---

func newTestLogger() *slog.Logger {
	// Discard logger output during tests by setting a high level
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestManager() *statemanager.InMemoryManager {
	return statemanager.NewInMemoryManager(newTestLogger())
}

// nopSink satisfies state.Outbound for registry tests.
type nopSink struct{}

func (nopSink) Send([]byte) {}
func (nopSink) Close(error) {}

func register(t *testing.T, m *statemanager.InMemoryManager, ip string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if _, err := m.Register(id, ip, nopSink{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return id
}

// --- Connection Registry Tests ---

func TestRegistryLifecycle(t *testing.T) {
	m := newTestManager()
	id := register(t, m, "127.0.0.1")

	client, found := m.Lookup(id)
	if !found {
		t.Fatal("Lookup failed to find registered client")
	}
	if client.Name != "" {
		t.Errorf("Expected empty name before join handshake, got %q", client.Name)
	}

	if err := m.SetName(id, "ayaan"); err != nil {
		t.Fatalf("SetName failed: %v", err)
	}
	client, _ = m.Lookup(id)
	if client.Name != "ayaan" {
		t.Errorf("Expected name ayaan, got %q", client.Name)
	}

	m.Unregister(id)
	if _, found := m.Lookup(id); found {
		t.Error("Found client after it should have been unregistered")
	}

	// idempotent
	m.Unregister(id)
}

func TestRegisterDuplicateFails(t *testing.T) {
	m := newTestManager()
	id := register(t, m, "127.0.0.1")

	if _, err := m.Register(id, "127.0.0.1", nopSink{}); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}

func TestSetNameUnknownClient(t *testing.T) {
	m := newTestManager()
	if err := m.SetName(uuid.New(), "ghost"); err == nil {
		t.Error("Expected SetName on unknown client to fail")
	}
}

func TestConnectionCountAndOldestForIP(t *testing.T) {
	m := newTestManager()
	first := register(t, m, "1.1.1.1")
	time.Sleep(5 * time.Millisecond) // Ensure timestamps are different
	register(t, m, "1.1.1.1")
	register(t, m, "2.2.2.2")

	if count := m.ConnectionCountForIP("1.1.1.1"); count != 2 {
		t.Errorf("Expected 2 connections for 1.1.1.1, got %d", count)
	}
	if count := m.ConnectionCountForIP("3.3.3.3"); count != 0 {
		t.Errorf("Expected 0 connections for unknown IP, got %d", count)
	}

	oldest, found := m.FindOldestConnectionFromIP("1.1.1.1")
	if !found {
		t.Fatal("Expected to find oldest connection")
	}
	if oldest.ID != first {
		t.Errorf("Expected oldest connection %s, got %s", first, oldest.ID)
	}
}

// --- Room & Membership Tests ---

func TestCreateRoomMakesOwnerSoleMember(t *testing.T) {
	m := newTestManager()
	owner := uuid.New()

	room, err := m.CreateRoom(owner, "lobby")
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	occupied, found := m.RoomOf(owner)
	if !found || occupied.ID != room.ID {
		t.Errorf("Expected owner to occupy room %s", room.ID)
	}
	members, found := m.MembersOf(room.ID)
	if !found || len(members) != 1 || members[0] != owner {
		t.Errorf("Expected member set {owner}, got %v", members)
	}
}

func TestCreateRoomWhileInRoomFails(t *testing.T) {
	m := newTestManager()
	owner := uuid.New()

	first, err := m.CreateRoom(owner, "lobby")
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if _, err := m.CreateRoom(owner, "other"); err != state.ErrAlreadyInRoom {
		t.Errorf("Expected ErrAlreadyInRoom, got %v", err)
	}

	// prior membership untouched
	occupied, found := m.RoomOf(owner)
	if !found || occupied.ID != first.ID {
		t.Error("Expected failed create to leave prior membership unchanged")
	}
}

func TestJoinUnknownRoomFails(t *testing.T) {
	m := newTestManager()
	user := uuid.New()

	if _, err := m.JoinRoom(user, uuid.New()); err != state.ErrRoomNotFound {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
	if _, found := m.RoomOf(user); found {
		t.Error("Expected membership index untouched after failed join")
	}
}

func TestJoinSameRoomTwiceFails(t *testing.T) {
	m := newTestManager()
	owner, joiner := uuid.New(), uuid.New()

	room, _ := m.CreateRoom(owner, "lobby")
	if _, err := m.JoinRoom(joiner, room.ID); err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}
	if _, err := m.JoinRoom(joiner, room.ID); err != state.ErrAlreadyInRoom {
		t.Errorf("Expected ErrAlreadyInRoom, got %v", err)
	}
}

func TestJoinReportsPostJoinMembers(t *testing.T) {
	m := newTestManager()
	owner, joiner := uuid.New(), uuid.New()

	room, _ := m.CreateRoom(owner, "lobby")
	res, err := m.JoinRoom(joiner, room.ID)
	if err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}
	if len(res.Members) != 2 {
		t.Errorf("Expected post-join member set of 2, got %d", len(res.Members))
	}
	if res.Left != nil {
		t.Error("Expected no implicit leave for a roomless joiner")
	}
}

func TestJoinDifferentRoomImplicitlyLeaves(t *testing.T) {
	m := newTestManager()
	ownerA, ownerB := uuid.New(), uuid.New()

	roomA, _ := m.CreateRoom(ownerA, "a")
	roomB, _ := m.CreateRoom(ownerB, "b")

	res, err := m.JoinRoom(ownerA, roomB.ID)
	if err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}
	if res.Left == nil {
		t.Fatal("Expected implicit leave of the old room")
	}
	if res.Left.Room.ID != roomA.ID {
		t.Errorf("Expected to leave room %s, left %s", roomA.ID, res.Left.Room.ID)
	}
	if len(res.Left.Members) != 1 || res.Left.Members[0] != ownerA {
		t.Errorf("Expected pre-removal snapshot {ownerA}, got %v", res.Left.Members)
	}

	// roomA had a single member, so it must be gone now
	if _, found := m.MembersOf(roomA.ID); found {
		t.Error("Expected emptied room to be deleted")
	}
	occupied, _ := m.RoomOf(ownerA)
	if occupied.ID != roomB.ID {
		t.Errorf("Expected ownerA to occupy room b, got %s", occupied.ID)
	}
}

func TestLeaveLastMemberDeletesRoom(t *testing.T) {
	m := newTestManager()
	owner := uuid.New()

	room, _ := m.CreateRoom(owner, "lobby")
	res, err := m.LeaveRoom(owner)
	if err != nil {
		t.Fatalf("LeaveRoom failed: %v", err)
	}
	if len(res.Members) != 1 || res.Members[0] != owner {
		t.Errorf("Expected pre-removal snapshot to include the leaver, got %v", res.Members)
	}
	if _, found := m.MembersOf(room.ID); found {
		t.Error("Expected room deleted once member count reached zero")
	}
}

func TestLeaveKeepsRoomAliveForRemainingMembers(t *testing.T) {
	m := newTestManager()
	owner, joiner := uuid.New(), uuid.New()

	room, _ := m.CreateRoom(owner, "lobby")
	m.JoinRoom(joiner, room.ID)

	res, err := m.LeaveRoom(owner)
	if err != nil {
		t.Fatalf("LeaveRoom failed: %v", err)
	}
	if len(res.Members) != 2 {
		t.Errorf("Expected snapshot of 2 pre-removal members, got %d", len(res.Members))
	}

	members, found := m.MembersOf(room.ID)
	if !found {
		t.Fatal("Expected room to survive with a remaining member")
	}
	if len(members) != 1 || members[0] != joiner {
		t.Errorf("Expected member set {joiner}, got %v", members)
	}
	if _, found := m.RoomOf(owner); found {
		t.Error("Expected leaver's index entry removed")
	}
}

func TestLeaveWithoutRoomFails(t *testing.T) {
	m := newTestManager()
	if _, err := m.LeaveRoom(uuid.New()); err != state.ErrNotInRoom {
		t.Errorf("Expected ErrNotInRoom, got %v", err)
	}
}

// Hammers join/leave from many goroutines, then checks the bidirectional
// invariant: a user occupies room R iff R's member set contains the user.
func TestMembershipInvariantUnderConcurrency(t *testing.T) {
	m := newTestManager()
	owner := uuid.New()
	room, _ := m.CreateRoom(owner, "arena")

	const workers = 16
	const rounds = 50

	users := make([]uuid.UUID, workers)
	for i := range users {
		users[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for _, user := range users {
		wg.Add(1)
		go func(user uuid.UUID) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				if _, err := m.JoinRoom(user, room.ID); err != nil && err != state.ErrAlreadyInRoom {
					t.Errorf("JoinRoom: %v", err)
					return
				}
				if _, err := m.LeaveRoom(user); err != nil && err != state.ErrNotInRoom {
					t.Errorf("LeaveRoom: %v", err)
					return
				}
			}
		}(user)
	}
	wg.Wait()

	members, found := m.MembersOf(room.ID)
	if !found {
		t.Fatal("Expected the room to survive: the owner never left")
	}
	inSet := make(map[uuid.UUID]bool, len(members))
	for _, id := range members {
		inSet[id] = true
	}
	for _, user := range append(users, owner) {
		occupied, viaIndex := m.RoomOf(user)
		if viaIndex != inSet[user] {
			t.Errorf("Invariant broken for %s: index=%v memberSet=%v", user, viaIndex, inSet[user])
		}
		if viaIndex && occupied.ID != room.ID {
			t.Errorf("User %s indexed into unexpected room %s", user, occupied.ID)
		}
	}
}
