// Package client implements the relay's client half: the optimistic message
// reconciler, the command layer, and the websocket loop behind the rws-client
// binary.
package client

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pixperk/rws/pkg/protocol"
)

// LineKind classifies display lines so the caller can render them differently.
type LineKind int

const (
	LineChat LineKind = iota
	LineSystem
	LineError
)

type Line struct {
	Kind LineKind
	Text string
}

// Message is one entry in the local ordered log. Pending entries are
// optimistic local echoes awaiting the server's AckDelivered.
type Message struct {
	CorrelationID uuid.UUID
	Sender        string
	Content       string
	Pending       bool
}

// Reconciler keeps the local message log consistent with what the server
// confirmed. Outgoing chats are inserted optimistically under a fresh
// correlation id and rewritten in place when the matching ack arrives; the
// id -> position index keeps that rewrite O(1).
type Reconciler struct {
	mu       sync.Mutex
	username string
	myID     uuid.UUID
	room     *protocol.RoomInfo

	log     []Message
	index   map[uuid.UUID]int
	pending map[uuid.UUID]string
}

func NewReconciler(username string) *Reconciler {
	return &Reconciler{
		username: username,
		index:    make(map[uuid.UUID]int),
		pending:  make(map[uuid.UUID]string),
	}
}

// SubmitChat records an optimistic entry for user input and returns the Chat
// event to send, carrying a fresh correlation id.
func (r *Reconciler) SubmitChat(content string) protocol.Chat {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New()
	r.pending[id] = content
	r.index[id] = len(r.log)
	r.log = append(r.log, Message{
		CorrelationID: id,
		Sender:        r.username,
		Content:       content,
		Pending:       true,
	})

	scope := protocol.GlobalScope()
	if r.room != nil {
		scope = protocol.RoomScope(*r.room)
	}
	return protocol.Chat{
		ID:      id,
		Sender:  protocol.UserInfo{ID: r.myID, Username: r.username},
		Content: content,
		Scope:   scope,
	}
}

// Apply folds one server event into the log and returns the display lines it
// produced. Unhandled event kinds produce no lines.
func (r *Reconciler) Apply(event protocol.Event) []Line {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev := event.(type) {
	case protocol.AssignedID:
		r.myID = ev.UserID
		return []Line{{LineSystem, "connected to server"}}

	case protocol.Join:
		if ev.Username == r.username {
			return []Line{{LineSystem, "you joined the chat"}}
		}
		return []Line{{LineSystem, fmt.Sprintf("%s joined", ev.Username)}}

	case protocol.Chat:
		// only others' messages arrive; our own are echoed locally
		r.log = append(r.log, Message{
			CorrelationID: ev.ID,
			Sender:        ev.Sender.Username,
			Content:       ev.Content,
		})
		if ev.Scope.Kind == protocol.ScopeRoom {
			return []Line{{LineChat, fmt.Sprintf("[%s] %s: %s", ev.Scope.RoomName, ev.Sender.Username, ev.Content)}}
		}
		return []Line{{LineChat, fmt.Sprintf("%s: %s", ev.Sender.Username, ev.Content)}}

	case protocol.AckDelivered:
		return r.ackLocked(ev.ID)

	case protocol.CreateRoom:
		room := protocol.RoomInfo{ID: ev.RoomID, Name: ev.RoomName}
		r.room = &room
		return []Line{{LineSystem, fmt.Sprintf("room %q created, id: %s", ev.RoomName, ev.RoomID)}}

	case protocol.JoinRoom:
		if ev.User.ID == r.myID {
			room := ev.Room
			r.room = &room
			return []Line{{LineSystem, fmt.Sprintf("you joined room %q", ev.Room.Name)}}
		}
		return []Line{{LineSystem, fmt.Sprintf("%s joined room %q", ev.User.Username, ev.Room.Name)}}

	case protocol.LeaveRoom:
		if ev.User.ID == r.myID {
			r.room = nil
			return []Line{{LineSystem, fmt.Sprintf("you left room %q", ev.Room.Name)}}
		}
		return []Line{{LineSystem, fmt.Sprintf("%s left room %q", ev.User.Username, ev.Room.Name)}}

	case protocol.ErrorEvent:
		return []Line{{LineError, fmt.Sprintf("%s: %s", ev.Kind, ev.Message)}}

	case protocol.Ping:
		return nil

	default:
		return nil
	}
}

// ackLocked rewrites the optimistic entry for the acked correlation id in
// place. Each pending id is removed exactly once.
func (r *Reconciler) ackLocked(id uuid.UUID) []Line {
	content, ok := r.pending[id]
	if !ok {
		// ack for something we never sent, or a duplicate; at-least-once makes
		// that legal, so just ignore it
		return nil
	}
	delete(r.pending, id)

	if pos, ok := r.index[id]; ok {
		r.log[pos].Pending = false
	}
	return []Line{{LineSystem, fmt.Sprintf("delivered: %s", content)}}
}

// MyID reports the server-assigned identity, zero until AssignedId arrives.
func (r *Reconciler) MyID() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.myID
}

// Self returns the identity to stamp on outgoing events.
func (r *Reconciler) Self() protocol.UserInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return protocol.UserInfo{ID: r.myID, Username: r.username}
}

// CurrentRoom reports the room this client currently occupies, if any.
func (r *Reconciler) CurrentRoom() (protocol.RoomInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.room == nil {
		return protocol.RoomInfo{}, false
	}
	return *r.room, true
}

// Log returns a copy of the ordered message log.
func (r *Reconciler) Log() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.log))
	copy(out, r.log)
	return out
}

// PendingCount reports how many optimistic entries still await their ack.
func (r *Reconciler) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
