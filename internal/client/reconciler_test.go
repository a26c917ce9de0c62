package client_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pixperk/rws/internal/client"
	"github.com/pixperk/rws/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitChatInsertsOptimisticEntry(t *testing.T) {
	r := client.NewReconciler("alice")

	ev := r.SubmitChat("hello")
	assert.NotEqual(t, uuid.Nil, ev.ID, "every submission gets a fresh correlation id")
	assert.Equal(t, "hello", ev.Content)

	log := r.Log()
	require.Len(t, log, 1)
	assert.True(t, log[0].Pending, "local echo starts out pending")
	assert.Equal(t, "hello", log[0].Content)
	assert.Equal(t, ev.ID, log[0].CorrelationID)
	assert.Equal(t, 1, r.PendingCount())
}

func TestAckRewritesEntryInPlace(t *testing.T) {
	r := client.NewReconciler("alice")
	ev := r.SubmitChat("hello")

	lines := r.Apply(protocol.AckDelivered{ID: ev.ID})
	require.Len(t, lines, 1)
	assert.Equal(t, client.LineSystem, lines[0].Kind)

	log := r.Log()
	require.Len(t, log, 1)
	assert.False(t, log[0].Pending, "ack confirms the entry in place")
	assert.Equal(t, 0, r.PendingCount(), "acked ids leave the pending map")
}

func TestAckTargetsTheRightEntryAmongMany(t *testing.T) {
	r := client.NewReconciler("alice")

	first := r.SubmitChat("first")
	// an interleaved foreign message shifts log positions
	r.Apply(protocol.Chat{
		ID:      uuid.New(),
		Sender:  protocol.UserInfo{ID: uuid.New(), Username: "bob"},
		Content: "hi",
		Scope:   protocol.GlobalScope(),
	})
	second := r.SubmitChat("second")

	r.Apply(protocol.AckDelivered{ID: second.ID})

	log := r.Log()
	require.Len(t, log, 3)
	assert.True(t, log[0].Pending, "first submission still awaiting its ack")
	assert.False(t, log[2].Pending, "second submission confirmed")

	r.Apply(protocol.AckDelivered{ID: first.ID})
	assert.False(t, r.Log()[0].Pending)
	assert.Equal(t, 0, r.PendingCount())
}

func TestDuplicateAckIsIgnored(t *testing.T) {
	r := client.NewReconciler("alice")
	ev := r.SubmitChat("hello")

	require.NotEmpty(t, r.Apply(protocol.AckDelivered{ID: ev.ID}))
	assert.Empty(t, r.Apply(protocol.AckDelivered{ID: ev.ID}), "each id is consumed exactly once")
	assert.Empty(t, r.Apply(protocol.AckDelivered{ID: uuid.New()}), "unknown ids are ignored")
}

func TestForeignChatAppends(t *testing.T) {
	r := client.NewReconciler("alice")

	lines := r.Apply(protocol.Chat{
		ID:      uuid.New(),
		Sender:  protocol.UserInfo{ID: uuid.New(), Username: "bob"},
		Content: "hi",
		Scope:   protocol.GlobalScope(),
	})
	require.Len(t, lines, 1)
	assert.Equal(t, client.LineChat, lines[0].Kind)
	assert.Contains(t, lines[0].Text, "bob: hi")

	log := r.Log()
	require.Len(t, log, 1)
	assert.False(t, log[0].Pending)
	assert.Equal(t, "bob", log[0].Sender)
}

func TestAssignedIDBecomesSelf(t *testing.T) {
	r := client.NewReconciler("alice")
	myID := uuid.New()

	r.Apply(protocol.AssignedID{UserID: myID})
	assert.Equal(t, myID, r.MyID())
	assert.Equal(t, protocol.UserInfo{ID: myID, Username: "alice"}, r.Self())
}

func TestRoomTracking(t *testing.T) {
	r := client.NewReconciler("alice")
	myID := uuid.New()
	r.Apply(protocol.AssignedID{UserID: myID})

	_, inRoom := r.CurrentRoom()
	assert.False(t, inRoom)

	roomID := uuid.New()
	r.Apply(protocol.CreateRoom{
		Creator:  protocol.UserInfo{ID: myID, Username: "alice"},
		RoomID:   roomID,
		RoomName: "lobby",
	})
	room, inRoom := r.CurrentRoom()
	require.True(t, inRoom)
	assert.Equal(t, roomID, room.ID)
	assert.Equal(t, "lobby", room.Name)

	// chats submitted while in a room carry the room scope
	ev := r.SubmitChat("hi")
	assert.Equal(t, protocol.ScopeRoom, ev.Scope.Kind)
	assert.Equal(t, roomID, ev.Scope.RoomID)

	// someone else joining does not move us
	r.Apply(protocol.JoinRoom{
		User: protocol.UserInfo{ID: uuid.New(), Username: "bob"},
		Room: protocol.RoomInfo{ID: uuid.New(), Name: "other"},
	})
	room, _ = r.CurrentRoom()
	assert.Equal(t, roomID, room.ID)

	r.Apply(protocol.LeaveRoom{
		User: protocol.UserInfo{ID: myID, Username: "alice"},
		Room: protocol.RoomInfo{ID: roomID, Name: "lobby"},
	})
	_, inRoom = r.CurrentRoom()
	assert.False(t, inRoom)

	ev = r.SubmitChat("back to global")
	assert.Equal(t, protocol.ScopeGlobal, ev.Scope.Kind)
}

func TestErrorEventsRenderAsErrors(t *testing.T) {
	r := client.NewReconciler("alice")

	lines := r.Apply(protocol.ErrorEvent{Kind: protocol.KindRoomNotFound, Message: "no such room"})
	require.Len(t, lines, 1)
	assert.Equal(t, client.LineError, lines[0].Kind)
	assert.Contains(t, lines[0].Text, "no such room")
}
